// Package watcher observes the source library for newly completed files.
// Creation events are followed recursively into new directories; files are
// reported only once their size is stable across two samples, so
// in-progress transfers never enter the pipeline.
package watcher

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"reelsync/internal/logging"
	"reelsync/internal/services"
)

// Handler receives one stabilized file path. Handlers run on their own
// goroutine per event so slow downstream work never blocks detection.
type Handler func(ctx context.Context, path string)

// Watcher emits stabilized file-creation events under one root.
type Watcher struct {
	root          string
	stabilization time.Duration
	hiddenPrefix  string
	logger        *slog.Logger
}

// New builds a watcher for root.
func New(root string, stabilization time.Duration, hiddenPrefix string, logger *slog.Logger) *Watcher {
	if stabilization <= 0 {
		stabilization = 5 * time.Second
	}
	return &Watcher{
		root:          root,
		stabilization: stabilization,
		hiddenPrefix:  hiddenPrefix,
		logger:        logging.NewComponentLogger(logger, "watcher"),
	}
}

// Run watches until the context is cancelled, invoking handle for every
// stabilized file. The watch set grows as directories appear.
func (w *Watcher) Run(ctx context.Context, handle Handler) error {
	notify, err := fsnotify.NewWatcher()
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "watch", "initialize", "create watcher", err)
	}
	defer notify.Close()

	if err := w.addTree(notify, w.root); err != nil {
		return err
	}
	w.logger.Info("watching", logging.String("root", w.root))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err, ok := <-notify.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", logging.Error(err))
		case event, ok := <-notify.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) {
				continue
			}
			w.handleCreate(ctx, notify, event.Name, handle)
		}
	}
}

func (w *Watcher) handleCreate(ctx context.Context, notify *fsnotify.Watcher, path string, handle Handler) {
	if w.isHidden(path) {
		return
	}
	info, err := os.Lstat(path)
	if err != nil {
		return
	}
	if info.IsDir() {
		// Files may land in the directory before the watch is in place;
		// pick them up during registration.
		if err := w.addTree(notify, path); err != nil {
			w.logger.Warn("watch new directory", logging.String("dir", path), logging.Error(err))
		}
		_ = filepath.WalkDir(path, func(entry string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() || w.isHidden(entry) {
				return nil
			}
			go w.stabilize(ctx, entry, handle)
			return nil
		})
		return
	}
	go w.stabilize(ctx, path, handle)
}

// stabilize waits until two consecutive size samples match, then hands the
// file off. A vanished file abandons the wait.
func (w *Watcher) stabilize(ctx context.Context, path string, handle Handler) {
	var lastSize int64 = -1
	for {
		info, err := os.Lstat(path)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				w.logger.Warn("stabilization stat failed", logging.String("file", path), logging.Error(err))
			}
			return
		}
		if info.Size() == lastSize {
			break
		}
		lastSize = info.Size()
		select {
		case <-ctx.Done():
			return
		case <-time.After(w.stabilization):
		}
	}
	w.logger.Debug("file stable", logging.String("file", path))
	handle(ctx, path)
}

func (w *Watcher) addTree(notify *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.isHidden(path) {
			return filepath.SkipDir
		}
		if err := notify.Add(path); err != nil {
			return services.Wrap(services.ErrFilesystem, "watch", "add watch", path, err)
		}
		return nil
	})
}

func (w *Watcher) isHidden(path string) bool {
	if w.hiddenPrefix == "" {
		return false
	}
	rel, err := filepath.Rel(w.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return false
	}
	for _, segment := range strings.Split(rel, string(filepath.Separator)) {
		if strings.HasPrefix(segment, w.hiddenPrefix) {
			return true
		}
	}
	return false
}
