// Package lockfile serializes pipeline stages across processes. Each stage
// owns one lock file; concurrent invocations of the same stage queue on it
// while different stages proceed independently.
package lockfile

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"reelsync/internal/logging"
)

// RetryPolicy controls how lock acquisition waits. A zero MaxAttempts
// retries forever; tests inject short intervals and bounded attempts.
type RetryPolicy struct {
	Interval    time.Duration
	MaxAttempts int
}

// DefaultRetry waits one second between attempts, indefinitely.
var DefaultRetry = RetryPolicy{Interval: time.Second}

// Handle represents a held stage lock.
type Handle struct {
	name string
	path string
	lock *flock.Flock
}

// Manager acquires stage-scoped locks under a shared directory.
type Manager struct {
	dir    string
	retry  RetryPolicy
	logger *slog.Logger
}

// NewManager constructs a lock manager rooted at dir.
func NewManager(dir string, retry RetryPolicy, logger *slog.Logger) *Manager {
	if retry.Interval <= 0 {
		retry.Interval = DefaultRetry.Interval
	}
	return &Manager{
		dir:    dir,
		retry:  retry,
		logger: logging.NewComponentLogger(logger, "lockfile"),
	}
}

// Acquire blocks until the named stage lock is held, retrying on the
// manager's policy and logging elapsed wait time. It returns early only
// when the context is canceled or the policy's attempts are exhausted.
func (m *Manager) Acquire(ctx context.Context, name string) (*Handle, error) {
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure lock directory: %w", err)
	}
	path := filepath.Join(m.dir, name+".lock")
	lock := flock.New(path)

	start := time.Now()
	attempts := 0
	for {
		ok, err := lock.TryLock()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", path, err)
		}
		if ok {
			return &Handle{name: name, path: path, lock: lock}, nil
		}

		attempts++
		if m.retry.MaxAttempts > 0 && attempts >= m.retry.MaxAttempts {
			return nil, fmt.Errorf("lock %s still held after %d attempts", path, attempts)
		}
		m.logger.Info("waiting for stage lock",
			logging.String("stage", name),
			logging.Duration("elapsed", time.Since(start).Round(time.Second)),
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.retry.Interval):
		}
	}
}

// Release unlocks and removes the lock file. Safe on a nil handle so it can
// sit in a defer next to Acquire.
func (h *Handle) Release() error {
	if h == nil || h.lock == nil {
		return nil
	}
	if err := h.lock.Unlock(); err != nil {
		return fmt.Errorf("release lock %s: %w", h.path, err)
	}
	if err := os.Remove(h.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove lock file %s: %w", h.path, err)
	}
	return nil
}

// Path returns the lock file location, exposed for status output.
func (h *Handle) Path() string {
	if h == nil {
		return ""
	}
	return h.path
}
