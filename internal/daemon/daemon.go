// Package daemon runs the long-lived watch pipeline: one instance per
// host, a recursive watcher over the source library, the queue-driven
// stage workers, and an opportunistic cleanup schedule.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"reelsync/internal/config"
	"reelsync/internal/hardlink"
	"reelsync/internal/lockfile"
	"reelsync/internal/logging"
	"reelsync/internal/merge"
	"reelsync/internal/notifications"
	"reelsync/internal/pipeline"
	"reelsync/internal/queue"
	"reelsync/internal/reconcile"
	"reelsync/internal/services"
	"reelsync/internal/syncer"
	"reelsync/internal/watcher"
)

// Daemon owns the long-running components.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *queue.Store
	pipeline *pipeline.Pipeline
	watcher  *watcher.Watcher
	instance *flock.Flock
}

// New wires the daemon from configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "daemon", "initialize", "create directories", err)
	}

	store, err := queue.Open(cfg)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "daemon", "initialize", "open queue", err)
	}

	inspector := hardlink.NewInspector(cfg.Paths.LibraryDir, cfg.Paths.SyncDir, cfg.Paths.TrashDir)
	locks := lockfile.NewManager(cfg.Paths.LockDir, lockfile.RetryPolicy{Interval: cfg.LockRetryInterval()}, logger)
	notifier := notifications.NewService(cfg)

	pipe := pipeline.New(cfg, store, locks,
		syncer.New(cfg, inspector, logger, false),
		reconcile.New(cfg, nil, logger, false),
		merge.New(cfg, inspector, logger, false),
		notifier, logger)

	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		pipeline: pipe,
		watcher:  watcher.New(cfg.Paths.LibraryDir, cfg.StabilizationInterval(), cfg.Sync.HiddenPrefix, logger),
	}, nil
}

// Run blocks until the context is cancelled. Exactly one daemon instance
// runs per lock directory.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.acquireInstanceLock(); err != nil {
		return err
	}
	defer d.releaseInstanceLock()
	defer d.store.Close()

	d.logger.Info("daemon started",
		logging.String("library", d.cfg.Paths.LibraryDir),
		logging.String("sync", d.cfg.Paths.SyncDir),
		logging.Int("pid", os.Getpid()),
	)

	errCh := make(chan error, 2)
	go func() {
		errCh <- d.pipeline.Run(ctx)
	}()
	go func() {
		errCh <- d.watcher.Run(ctx, d.pipeline.HandleFile)
	}()
	go d.cleanupLoop(ctx)

	err := <-errCh
	d.logger.Info("daemon stopping", logging.Error(err))
	return err
}

// cleanupLoop runs the merge engine on the configured schedule. Cleanup
// shares the sync stage lock, so it waits out any in-flight mirror work.
func (d *Daemon) cleanupLoop(ctx context.Context) {
	interval := d.cfg.CleanupInterval()
	if interval <= 0 {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
		result, err := d.pipeline.Cleanup(ctx)
		if err != nil {
			d.logger.Warn("scheduled cleanup failed", logging.Error(err))
			continue
		}
		d.logger.Info("scheduled cleanup finished",
			logging.Int("trashed", result.Trashed),
			logging.Int("relocated", result.Relocated),
		)
	}
}

func (d *Daemon) acquireInstanceLock() error {
	path := filepath.Join(d.cfg.Paths.LockDir, "daemon.lock")
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "daemon", "instance lock", path, err)
	}
	if !ok {
		return services.Wrap(services.ErrConfiguration, "daemon", "instance lock",
			fmt.Sprintf("another instance holds %s", path), nil)
	}
	d.instance = lock
	return nil
}

func (d *Daemon) releaseInstanceLock() {
	if d.instance == nil {
		return
	}
	_ = d.instance.Unlock()
	_ = os.Remove(d.instance.Path())
	d.instance = nil
}

// Store exposes the queue for status reporting.
func (d *Daemon) Store() *queue.Store { return d.store }
