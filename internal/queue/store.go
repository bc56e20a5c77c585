// Package queue persists watch events in SQLite so the pipeline survives
// daemon restarts and the CLI can inspect history.
package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"reelsync/internal/config"
)

// Store manages queue persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Open initializes or connects to the queue database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(filepath.Join(cfg.Paths.LogDir, "queue.db"))
}

// OpenPath connects to the queue database at an explicit location.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// Enqueue records a new watch event. An existing non-terminal item for the
// same source path is returned instead of inserting a duplicate.
func (s *Store) Enqueue(ctx context.Context, sourcePath, runID string) (*Item, error) {
	ctx = ensureContext(ctx)

	existing, err := s.findActive(ctx, sourcePath)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(ctx,
		`INSERT INTO queue_items (source_path, run_id, status, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?)`,
		sourcePath, runID, StatusPending, timestamp, timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert queue item: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

// GetByID fetches a single item.
func (s *Store) GetByID(ctx context.Context, id int64) (*Item, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		selectColumns+" FROM queue_items WHERE id = ?", id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return item, err
}

// NextForStatuses claims the oldest item in any of the given statuses, or
// nil when the queue has none.
func (s *Store) NextForStatuses(ctx context.Context, statuses ...Status) (*Item, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(statuses))
	args := make([]any, len(statuses))
	for i, status := range statuses {
		placeholders[i] = "?"
		args[i] = status
	}
	row := s.db.QueryRowContext(ensureContext(ctx),
		selectColumns+` FROM queue_items
         WHERE status IN (`+strings.Join(placeholders, ",")+`)
         ORDER BY created_at ASC, id ASC LIMIT 1`, args...)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return item, err
}

// Update persists the item's mutable fields.
func (s *Store) Update(ctx context.Context, item *Item) error {
	item.UpdatedAt = time.Now().UTC()
	return s.execWithoutResultRetry(ensureContext(ctx),
		`UPDATE queue_items
         SET subpath = ?, run_id = ?, status = ?, error_message = ?, updated_at = ?
         WHERE id = ?`,
		item.Subpath, item.RunID, item.Status, item.ErrorMessage,
		item.UpdatedAt.Format(time.RFC3339Nano), item.ID,
	)
}

// List returns all items, newest first.
func (s *Store) List(ctx context.Context) ([]Item, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		selectColumns+" FROM queue_items ORDER BY created_at DESC, id DESC")
	if err != nil {
		return nil, fmt.Errorf("list queue items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// Stats returns the number of items per status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		"SELECT status, COUNT(1) FROM queue_items GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Clear removes terminal items; with all set, everything goes.
func (s *Store) Clear(ctx context.Context, all bool) (int64, error) {
	query := "DELETE FROM queue_items WHERE status IN (?, ?)"
	args := []any{StatusCompleted, StatusFailed}
	if all {
		query = "DELETE FROM queue_items"
		args = nil
	}
	res, err := s.execWithRetry(ensureContext(ctx), query, args...)
	if err != nil {
		return 0, fmt.Errorf("clear queue: %w", err)
	}
	return res.RowsAffected()
}

// ResetStuck returns in-flight items untouched for longer than olderThan
// to their pre-stage status, so a crashed worker's claim is released.
func (s *Store) ResetStuck(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan).Format(time.RFC3339Nano)
	ctx = ensureContext(ctx)

	syncing, err := s.execWithRetry(ctx,
		"UPDATE queue_items SET status = ?, updated_at = ? WHERE status = ? AND updated_at < ?",
		StatusPending, time.Now().UTC().Format(time.RFC3339Nano), StatusSyncing, cutoff)
	if err != nil {
		return 0, fmt.Errorf("reset stuck sync items: %w", err)
	}
	reconciling, err := s.execWithRetry(ctx,
		"UPDATE queue_items SET status = ?, updated_at = ? WHERE status = ? AND updated_at < ?",
		StatusSynced, time.Now().UTC().Format(time.RFC3339Nano), StatusReconciling, cutoff)
	if err != nil {
		return 0, fmt.Errorf("reset stuck reconcile items: %w", err)
	}

	first, _ := syncing.RowsAffected()
	second, _ := reconciling.RowsAffected()
	return first + second, nil
}

func (s *Store) findActive(ctx context.Context, sourcePath string) (*Item, error) {
	row := s.db.QueryRowContext(ctx,
		selectColumns+` FROM queue_items
         WHERE source_path = ? AND status NOT IN (?, ?)
         ORDER BY created_at DESC LIMIT 1`,
		sourcePath, StatusCompleted, StatusFailed)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return item, err
}

const selectColumns = `SELECT id, source_path, subpath, run_id, status, error_message, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*Item, error) {
	var item Item
	var created, updated string
	if err := row.Scan(&item.ID, &item.SourcePath, &item.Subpath, &item.RunID,
		&item.Status, &item.ErrorMessage, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan queue item: %w", err)
	}
	item.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	item.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
	return &item, nil
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Store) execWithoutResultRetry(ctx context.Context, query string, args ...any) error {
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
}
