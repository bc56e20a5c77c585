// Package merge prunes and reorganizes the hardlinked mirror. Files whose
// library original disappeared are moved to the trash area, never erased;
// bonus material is gathered into per-title Extras folders.
package merge

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"reelsync/internal/config"
	"reelsync/internal/extras"
	"reelsync/internal/hardlink"
	"reelsync/internal/logging"
	"reelsync/internal/pathmap"
	"reelsync/internal/services"
)

// Action names what the engine decided for one file.
type Action string

const (
	ActionKeep     Action = "keep"
	ActionTrash    Action = "trash"
	ActionRelocate Action = "relocate"
)

// Decision records the classification of one mirror entry.
type Decision struct {
	Path   string
	Dest   string // set for trash and relocate
	Action Action
}

// Result summarizes one cleanup run.
type Result struct {
	Decisions []Decision
	Trashed   int
	Relocated int
	Kept      int
	Failed    int
}

// sidecarExtensions are metadata companions that follow their main file
// and are never classified on their own.
var sidecarExtensions = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".png": {}, ".nfo": {},
	".srt": {}, ".sub": {}, ".idx": {}, ".txt": {}, ".xml": {},
}

// Engine walks the mirror and applies trash/relocate decisions.
type Engine struct {
	cfg       *config.Config
	inspector hardlink.Inspector
	logger    *slog.Logger
	dryRun    bool
}

func New(cfg *config.Config, inspector hardlink.Inspector, logger *slog.Logger, dryRun bool) *Engine {
	return &Engine{
		cfg:       cfg,
		inspector: inspector,
		logger:    logging.NewComponentLogger(logger, "merge"),
		dryRun:    dryRun,
	}
}

// Run cleans the mirror, optionally restricted to one subtree (absolute,
// or relative to the sync root). Decisions are collected during the walk
// and applied afterwards so moves never disturb the traversal.
func (e *Engine) Run(ctx context.Context, target string) (*Result, error) {
	syncRoot := e.cfg.Paths.SyncDir
	if syncRoot == "" {
		return nil, services.Wrap(services.ErrConfiguration, "merge", "resolve target", "paths.sync_dir is not configured", nil)
	}

	start := syncRoot
	if strings.TrimSpace(target) != "" {
		candidate := target
		if !filepath.IsAbs(candidate) {
			candidate = filepath.Join(syncRoot, candidate)
		}
		if !pathmap.Within(syncRoot, candidate) {
			return nil, services.Wrap(services.ErrPathSafety, "merge", "check target",
				fmt.Sprintf("target %q is outside the sync root", target), pathmap.ErrPathOutOfBase)
		}
		start = candidate
	}

	logger := logging.WithContext(ctx, e.logger)
	logger.Info("cleanup started",
		logging.String("target", start),
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
		decision, decideErr := e.decide(syncRoot, path)
		if decideErr != nil {
			result.Failed++
			logger.Warn("file not classified", logging.String("file", path), logging.Error(decideErr))
			return nil
		}
		result.Decisions = append(result.Decisions, decision)
		return nil
	})
	if walkErr != nil {
		if errors.Is(walkErr, context.Canceled) {
			return result, walkErr
		}
		return result, services.Wrap(services.ErrFilesystem, "merge", "walk mirror", "mirror walk failed", walkErr)
	}

	for i := range result.Decisions {
		decision := &result.Decisions[i]
		switch decision.Action {
		case ActionTrash:
			dest, err := e.move(ctx, decision.Path, decision.Dest, "trash")
			if err != nil {
				result.Failed++
				logger.Warn("trash move failed", logging.String("file", decision.Path), logging.Error(err))
				continue
			}
			decision.Dest = dest
			result.Trashed++
		case ActionRelocate:
			dest, err := e.move(ctx, decision.Path, decision.Dest, "relocate")
			if err != nil {
				result.Failed++
				logger.Warn("extras move failed", logging.String("file", decision.Path), logging.Error(err))
				continue
			}
			decision.Dest = dest
			result.Relocated++
		default:
			result.Kept++
		}
	}

	if !e.dryRun {
		e.pruneEmptyDirs(start, syncRoot)
	}

	logger.Info("cleanup finished",
		logging.Int("trashed", result.Trashed),
		logging.Int("relocated", result.Relocated),
		logging.Int("kept", result.Kept),
		logging.Int("failed", result.Failed),
		logging.Bool(logging.FieldDryRun, e.dryRun),
	)
	return result, nil
}

// decide classifies one file. The two actions are mutually exclusive:
// library backing is checked first, and only backed files are considered
// for extras relocation.
func (e *Engine) decide(syncRoot, path string) (Decision, error) {
	rel, err := pathmap.Rel(syncRoot, path)
	if err != nil {
		return Decision{}, err
	}
	if _, sidecar := sidecarExtensions[strings.ToLower(filepath.Ext(path))]; sidecar {
		return Decision{Path: path, Action: ActionKeep}, nil
	}

	backed, err := e.libraryBacked(path)
	if err != nil {
		// Enumeration failure must never cause a trash move.
		return Decision{Path: path, Action: ActionKeep}, err
	}
	if !backed {
		return Decision{
			Path:   path,
			Dest:   filepath.Join(e.cfg.Paths.TrashDir, rel),
			Action: ActionTrash,
		}, nil
	}

	segments := strings.Split(rel, string(filepath.Separator))
	matched, inside := extras.MatchRelPath(rel)
	if matched && !inside && len(segments) >= 3 {
		// Extras land next to the file they belong to. A recognized bonus
		// folder is renamed in place; a loose sample gains a sibling folder.
		// Season directories keep their own Extras that way.
		parent := filepath.Dir(path)
		dest := filepath.Join(parent, extras.FolderName, filepath.Base(path))
		if extras.IsExtrasFolder(filepath.Base(parent)) {
			dest = filepath.Join(filepath.Dir(parent), extras.FolderName, filepath.Base(path))
		}
		return Decision{Path: path, Dest: dest, Action: ActionRelocate}, nil
	}
	return Decision{Path: path, Action: ActionKeep}, nil
}

// libraryBacked reports whether any hardlink of path lives under the
// library root outside the trash area.
func (e *Engine) libraryBacked(path string) (bool, error) {
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
		if pathmap.Within(e.cfg.Paths.LibraryDir, link) {
			return true, nil
		}
	}
	return false, nil
}

func (e *Engine) move(ctx context.Context, src, dest, action string) (string, error) {
	logger := logging.WithContext(ctx, e.logger)
	if e.dryRun {
		logger.Info("would move",
			logging.String("action", action),
			logging.String("source", src),
			logging.String("destination", dest),
			logging.Bool(logging.FieldDryRun, true),
		)
		return dest, nil
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", services.Wrap(services.ErrFilesystem, "merge", "create directories", "move destination directory", err)
	}
	dest = nextFreePath(dest)
	if err := os.Rename(src, dest); err != nil {
		return "", services.Wrap(services.ErrFilesystem, "merge", "move file", fmt.Sprintf("move to %s", dest), err)
	}
	logger.Info("moved",
		logging.String("action", action),
		logging.String("source", src),
		logging.String("destination", dest),
	)
	return dest, nil
}

// nextFreePath resolves collisions by inserting a numeric suffix before
// the extension. Existing trash entries are never overwritten.
func nextFreePath(dest string) string {
	if _, err := os.Lstat(dest); errors.Is(err, fs.ErrNotExist) {
		return dest
	}
	ext := filepath.Ext(dest)
	stem := strings.TrimSuffix(dest, ext)
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s.%d%s", stem, i, ext)
		if _, err := os.Lstat(candidate); errors.Is(err, fs.ErrNotExist) {
			return candidate
		}
	}
}

// pruneEmptyDirs removes directories the moves left empty, deepest first.
// The walked root itself is preserved.
func (e *Engine) pruneEmptyDirs(start, syncRoot string) {
	var dirs []string
	_ = filepath.WalkDir(start, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		dirs = append(dirs, path)
		return nil
	})
	sort.Slice(dirs, func(i, j int) bool { return len(dirs[i]) > len(dirs[j]) })
	for _, dir := range dirs {
		if dir == start || dir == syncRoot {
			continue
		}
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			continue
		}
		_ = os.Remove(dir)
	}
}
