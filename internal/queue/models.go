package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a queue item.
type Status string

const (
	StatusPending     Status = "pending"
	StatusSyncing     Status = "syncing"
	StatusSynced      Status = "synced"
	StatusReconciling Status = "reconciling"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
)

// Terminal reports whether no worker will pick the item up again.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ParseStatus maps user input onto a Status.
func ParseStatus(value string) (Status, bool) {
	switch Status(strings.ToLower(strings.TrimSpace(value))) {
	case StatusPending:
		return StatusPending, true
	case StatusSyncing:
		return StatusSyncing, true
	case StatusSynced:
		return StatusSynced, true
	case StatusReconciling:
		return StatusReconciling, true
	case StatusCompleted:
		return StatusCompleted, true
	case StatusFailed:
		return StatusFailed, true
	default:
		return "", false
	}
}

// Item is one watch event moving through the pipeline. SourcePath is the
// file that triggered the event; Subpath is the destination-relative
// subpath the sync stage produced, which the reconcile stage consumes.
type Item struct {
	ID           int64
	SourcePath   string
	Subpath      string
	RunID        string
	Status       Status
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
