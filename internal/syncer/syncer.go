// Package syncer mirrors the source library into the sync tree using
// hardlinks. It never copies data: a mirrored file is another name for the
// same storage, which is what lets the managed services import with
// importMode "move" without touching the seeding original.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"reelsync/internal/config"
	"reelsync/internal/extras"
	"reelsync/internal/hardlink"
	"reelsync/internal/logging"
	"reelsync/internal/pathmap"
	"reelsync/internal/services"
	"reelsync/internal/textutil"
)

// Classification describes how a mirrored entry should be handled downstream.
type Classification string

const (
	ClassNormal Classification = "normal"
	ClassExtra  Classification = "extra"
	ClassSample Classification = "sample"
	ClassSkip   Classification = "skip"
)

// Entry is the result of mirroring one source file.
type Entry struct {
	SourcePath string
	RelPath    string // destination-relative path after naming rules
	Truncated  bool
	Class      Classification
}

// Result summarizes one sync run.
type Result struct {
	Entries []Entry
	Linked  int
	Skipped int
	Failed  int
}

// Engine walks the source tree and creates hardlinked mirrors.
type Engine struct {
	cfg       *config.Config
	inspector hardlink.Inspector
	logger    *slog.Logger
	dryRun    bool
}

// New constructs a sync engine. With dryRun set, all decision logic runs
// but no filesystem mutation happens; every suppressed action is logged.
func New(cfg *config.Config, inspector hardlink.Inspector, logger *slog.Logger, dryRun bool) *Engine {
	return &Engine{
		cfg:       cfg,
		inspector: inspector,
		logger:    logging.NewComponentLogger(logger, "syncer"),
		dryRun:    dryRun,
	}
}

// Run mirrors the source tree, optionally restricted to one subpath
// (absolute, or relative to the library root). Per-file failures are
// logged and counted; only configuration and path-safety problems abort.
func (e *Engine) Run(ctx context.Context, filter string) (*Result, error) {
	root := e.cfg.Paths.LibraryDir
	if root == "" {
		return nil, services.Wrap(services.ErrConfiguration, "sync", "resolve source", "paths.library_dir is not configured", nil)
	}

	start := root
	if strings.TrimSpace(filter) != "" {
		resolved, err := e.resolveFilter(root, filter)
		if err != nil {
			return nil, err
		}
		start = resolved
	}

	logger := logging.WithContext(ctx, e.logger)
	logger.Info("sync started",
		logging.String("source", start),
		logging.String("destination", e.cfg.Paths.SyncDir),
		logging.Bool(logging.FieldDryRun, e.dryRun),
	)

	result := &Result{}
	walkErr := filepath.WalkDir(start, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if d.IsDir() {
			return nil
		}
		entry, fileErr := e.syncFile(ctx, root, path)
		if fileErr != nil {
			if services.IsFatal(fileErr) {
				return fileErr
			}
			result.Failed++
			logger.Warn("file skipped", logging.String("file", path), logging.Error(fileErr))
			return nil
		}
		result.Entries = append(result.Entries, entry)
		switch entry.Class {
		case ClassSkip:
			result.Skipped++
		default:
			result.Linked++
		}
		return nil
	})
	if walkErr != nil {
		if errors.Is(walkErr, context.Canceled) || services.IsFatal(walkErr) {
			return result, walkErr
		}
		return result, services.Wrap(services.ErrFilesystem, "sync", "walk source", "source walk failed", walkErr)
	}

	logger.Info("sync finished",
		logging.Int("linked", result.Linked),
		logging.Int("skipped", result.Skipped),
		logging.Int("failed", result.Failed),
		logging.Bool(logging.FieldDryRun, e.dryRun),
	)
	return result, nil
}

func (e *Engine) resolveFilter(root, filter string) (string, error) {
	candidate := filter
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(root, candidate)
	}
	if !pathmap.Within(root, candidate) {
		return "", services.Wrap(services.ErrPathSafety, "sync", "check filter",
			fmt.Sprintf("filter %q is outside the library root", filter), pathmap.ErrPathOutOfBase)
	}
	if _, err := os.Stat(candidate); err != nil {
		return "", services.Wrap(services.ErrFilesystem, "sync", "stat filter", "filter path unavailable", err)
	}
	return candidate, nil
}

func (e *Engine) syncFile(ctx context.Context, root, path string) (Entry, error) {
	rel, err := pathmap.Rel(root, path)
	if err != nil {
		return Entry{}, services.Wrap(services.ErrPathSafety, "sync", "relativize", "file escapes the library root", err)
	}
	if e.isHidden(rel) {
		return Entry{SourcePath: path, RelPath: rel, Class: ClassSkip}, nil
	}

	destRel := e.destinationRel(rel)
	destPath := filepath.Join(e.cfg.Paths.SyncDir, destRel)
	destPath, truncated, err := e.fitPathLength(destPath)
	if err != nil {
		return Entry{}, err
	}
	destRel, err = pathmap.Rel(e.cfg.Paths.SyncDir, destPath)
	if err != nil {
		return Entry{}, services.Wrap(services.ErrPathSafety, "sync", "check destination", "destination escapes the sync root", err)
	}

	entry := Entry{
		SourcePath: path,
		RelPath:    destRel,
		Truncated:  truncated,
		Class:      e.classify(destRel),
	}

	mirrored, err := e.alreadyMirrored(path)
	if err != nil {
		// Enumeration failures mean "no known hardlinks"; mirror anyway.
		logging.WithContext(ctx, e.logger).Debug("link enumeration unavailable",
			logging.String("file", path), logging.Error(err))
	}
	if mirrored {
		entry.Class = ClassSkip
		return entry, nil
	}

	if err := e.link(ctx, path, destPath); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

func (e *Engine) isHidden(rel string) bool {
	prefix := e.cfg.Sync.HiddenPrefix
	for _, segment := range strings.Split(rel, string(filepath.Separator)) {
		if strings.HasPrefix(segment, prefix) {
			return true
		}
	}
	return false
}

// destinationRel normalizes naked files sitting directly under a category
// folder into the folder-per-title layout the managed services expect.
func (e *Engine) destinationRel(rel string) string {
	segments := strings.Split(rel, string(filepath.Separator))
	if len(segments) != 2 {
		return rel
	}
	category := segments[0]
	for _, known := range e.cfg.Sync.Categories {
		if strings.EqualFold(category, known) {
			filename := segments[1]
			title := textutil.SanitizeFileName(strings.TrimSuffix(filename, filepath.Ext(filename)))
			if title == "" {
				return rel
			}
			return filepath.Join(category, title, filename)
		}
	}
	return rel
}

func (e *Engine) classify(destRel string) Classification {
	filename := filepath.Base(destRel)
	if extras.IsSample(filename) {
		return ClassSample
	}
	if matched, inside := extras.MatchRelPath(destRel); matched && !inside {
		return ClassExtra
	}
	return ClassNormal
}

// alreadyMirrored reports whether the source file has at least two links
// of which one lives under the sync root outside the trash area.
func (e *Engine) alreadyMirrored(path string) (bool, error) {
	count, err := e.inspector.LinkCount(path)
	if err != nil {
		return false, err
	}
	if count < 2 {
		return false, nil
	}
	links, err := e.inspector.Enumerate(path)
	if err != nil {
		return false, err
	}
	for _, link := range links {
		if pathmap.Within(e.cfg.Paths.TrashDir, link) {
			continue
		}
		if pathmap.Within(e.cfg.Paths.SyncDir, link) {
			return true, nil
		}
	}
	return false, nil
}

func (e *Engine) link(ctx context.Context, src, dest string) error {
	logger := logging.WithContext(ctx, e.logger)
	if e.dryRun {
		logger.Info("would link",
			logging.String("source", src),
			logging.String("destination", dest),
			logging.Bool(logging.FieldDryRun, true),
		)
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return services.Wrap(services.ErrFilesystem, "sync", "create directories", "destination directory", err)
	}
	if err := os.Link(src, dest); err != nil {
		if errors.Is(err, fs.ErrExist) {
			logger.Debug("destination already linked", logging.String("destination", dest))
			return nil
		}
		if fallbackErr := linkFallback(src, dest); fallbackErr != nil {
			return services.Wrap(services.ErrFilesystem, "sync", "create link",
				fmt.Sprintf("link %s", dest), errors.Join(err, fallbackErr))
		}
	}
	logger.Info("linked",
		logging.String("source", src),
		logging.String("destination", dest),
	)
	return nil
}
