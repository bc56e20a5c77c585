// Package pipeline chains the sync and reconcile stages over the persisted
// event queue. The watcher enqueues stabilized files; one worker per stage
// claims items by status, so detection, mirroring, and importing proceed
// independently while each stage stays serialized behind its own lock.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"reelsync/internal/config"
	"reelsync/internal/lockfile"
	"reelsync/internal/logging"
	"reelsync/internal/merge"
	"reelsync/internal/notifications"
	"reelsync/internal/queue"
	"reelsync/internal/reconcile"
	"reelsync/internal/services"
	"reelsync/internal/syncer"
)

// Stage lock names. CLI commands acquire the same locks so manual runs
// and the daemon never operate on the mirror concurrently.
const (
	LockSync      = "sync"
	LockReconcile = "reconcile"
)

// Pipeline drives queue items through sync and reconcile.
type Pipeline struct {
	cfg       *config.Config
	store     *queue.Store
	locks     *lockfile.Manager
	syncer    *syncer.Engine
	reconcile *reconcile.Engine
	cleanup   *merge.Engine
	notifier  notifications.Service
	logger    *slog.Logger
}

// New wires a pipeline over pre-built engines.
func New(cfg *config.Config, store *queue.Store, locks *lockfile.Manager,
	syncEngine *syncer.Engine, reconcileEngine *reconcile.Engine, cleanupEngine *merge.Engine,
	notifier notifications.Service, logger *slog.Logger) *Pipeline {
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	return &Pipeline{
		cfg:       cfg,
		store:     store,
		locks:     locks,
		syncer:    syncEngine,
		reconcile: reconcileEngine,
		cleanup:   cleanupEngine,
		notifier:  notifier,
		logger:    logging.NewComponentLogger(logger, "pipeline"),
	}
}

// HandleFile enqueues one stabilized file. Safe to call from watcher
// goroutines.
func (p *Pipeline) HandleFile(ctx context.Context, path string) {
	item, err := p.store.Enqueue(ctx, path, uuid.NewString())
	if err != nil {
		p.logger.Error("enqueue failed", logging.String("file", path), logging.Error(err))
		return
	}
	p.logger.Info("event queued",
		logging.String("file", path),
		logging.Int64("item", item.ID),
	)
}

// Run starts the stage workers and blocks until the context is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	if _, err := p.store.ResetStuck(ctx, p.cfg.StuckResetInterval()); err != nil {
		p.logger.Warn("reset stuck items", logging.Error(err))
	}

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		p.workLoop(ctx, p.syncStep)
	}()
	go func() {
		defer wg.Done()
		p.workLoop(ctx, p.reconcileStep)
	}()
	go func() {
		defer wg.Done()
		p.stuckLoop(ctx)
	}()
	wg.Wait()
	return ctx.Err()
}

// workLoop polls the queue until cancelled. step reports whether it found
// work; idle loops sleep for the poll interval.
func (p *Pipeline) workLoop(ctx context.Context, step func(ctx context.Context) bool) {
	for {
		busy := step(ctx)
		if busy {
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(p.cfg.QueuePollInterval()):
		}
	}
}

func (p *Pipeline) stuckLoop(ctx context.Context) {
	interval := p.cfg.StuckResetInterval()
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
		if reset, err := p.store.ResetStuck(ctx, interval); err != nil {
			p.logger.Warn("reset stuck items", logging.Error(err))
		} else if reset > 0 {
			p.logger.Info("reset stuck items", logging.Int64("count", reset))
		}
	}
}

// syncStep claims one pending item and mirrors its file.
func (p *Pipeline) syncStep(ctx context.Context) bool {
	item, err := p.store.NextForStatuses(ctx, queue.StatusPending)
	if err != nil || item == nil {
		if err != nil && !errors.Is(err, context.Canceled) {
			p.logger.Error("queue poll failed", logging.Error(err))
		}
		return false
	}

	runCtx := services.WithRunID(ctx, item.RunID)
	runCtx = services.WithStage(runCtx, "sync")
	logger := logging.WithContext(runCtx, p.logger)

	item.Status = queue.StatusSyncing
	if err := p.store.Update(ctx, item); err != nil {
		logger.Error("claim failed", logging.Error(err))
		return false
	}

	lock, err := p.locks.Acquire(runCtx, LockSync)
	if err != nil {
		p.fail(ctx, item, err)
		return true
	}
	result, err := p.syncer.Run(runCtx, item.SourcePath)
	lock.Release()
	if err != nil {
		p.fail(ctx, item, err)
		return true
	}

	subpath := deriveSubpath(result)
	if subpath == "" {
		// Nothing mirrored (hidden, already linked); the pipeline is done
		// with this event.
		item.Status = queue.StatusCompleted
		if err := p.store.Update(ctx, item); err != nil {
			logger.Error("complete failed", logging.Error(err))
		}
		return true
	}

	item.Subpath = subpath
	item.Status = queue.StatusSynced
	if err := p.store.Update(ctx, item); err != nil {
		logger.Error("mark synced failed", logging.Error(err))
		return true
	}
	logger.Info("sync stage finished",
		logging.Int64("item", item.ID),
		logging.String("subpath", subpath),
	)
	_ = p.notifier.NotifySyncCompleted(runCtx, subpath, result.Linked)
	return true
}

// reconcileStep claims one synced item and imports its subpath.
func (p *Pipeline) reconcileStep(ctx context.Context) bool {
	item, err := p.store.NextForStatuses(ctx, queue.StatusSynced)
	if err != nil || item == nil {
		if err != nil && !errors.Is(err, context.Canceled) {
			p.logger.Error("queue poll failed", logging.Error(err))
		}
		return false
	}

	runCtx := services.WithRunID(ctx, item.RunID)
	runCtx = services.WithStage(runCtx, "reconcile")
	logger := logging.WithContext(runCtx, p.logger)

	item.Status = queue.StatusReconciling
	if err := p.store.Update(ctx, item); err != nil {
		logger.Error("claim failed", logging.Error(err))
		return false
	}

	lock, err := p.locks.Acquire(runCtx, LockReconcile)
	if err != nil {
		p.fail(ctx, item, err)
		return true
	}
	report, err := p.reconcile.Run(runCtx, item.Subpath)
	lock.Release()
	if err != nil {
		p.fail(ctx, item, err)
		return true
	}

	item.Status = queue.StatusCompleted
	if len(report.Dropped) > 0 && len(report.Accepted) == 0 {
		item.Status = queue.StatusFailed
		item.ErrorMessage = report.Dropped[0].Reason
	}
	if err := p.store.Update(ctx, item); err != nil {
		logger.Error("finalize failed", logging.Error(err))
		return true
	}
	logger.Info("reconcile stage finished",
		logging.Int64("item", item.ID),
		logging.Int("accepted", len(report.Accepted)),
		logging.Int("dropped", len(report.Dropped)),
	)
	if report.Imported {
		_ = p.notifier.NotifyImportCompleted(runCtx, report.Service, len(report.Accepted))
	}
	if item.Status == queue.StatusFailed {
		_ = p.notifier.NotifyPipelineFailed(runCtx, item.SourcePath, errors.New(item.ErrorMessage))
	}
	return true
}

// Cleanup runs the merge engine under its own stage lock. The daemon calls
// this opportunistically; it shares the sync lock so the two mirror
// mutators never overlap.
func (p *Pipeline) Cleanup(ctx context.Context) (*merge.Result, error) {
	lock, err := p.locks.Acquire(ctx, LockSync)
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	result, err := p.cleanup.Run(ctx, "")
	if err != nil {
		return nil, err
	}
	_ = p.notifier.NotifyCleanupCompleted(ctx, result.Trashed, result.Relocated)
	return result, nil
}

func (p *Pipeline) fail(ctx context.Context, item *queue.Item, cause error) {
	item.Status = queue.StatusFailed
	item.ErrorMessage = cause.Error()
	if err := p.store.Update(ctx, item); err != nil {
		p.logger.Error("mark failed", logging.Error(err))
	}
	p.logger.Error("pipeline item failed",
		logging.Int64("item", item.ID),
		logging.String("file", item.SourcePath),
		logging.Error(cause),
	)
	_ = p.notifier.NotifyPipelineFailed(ctx, item.SourcePath, cause)
}

// deriveSubpath picks the destination subpath the reconcile stage should
// import: the folder of the first mirrored (non-skip) entry.
func deriveSubpath(result *syncer.Result) string {
	for _, entry := range result.Entries {
		if entry.Class == syncer.ClassSkip {
			continue
		}
		if dir := filepath.Dir(entry.RelPath); dir != "." {
			return dir
		}
		return entry.RelPath
	}
	return ""
}
