package lockfile

import (
	"context"
	"os"
	"testing"
	"time"

	"reelsync/internal/logging"
)

func TestAcquireAndRelease(t *testing.T) {
	manager := NewManager(t.TempDir(), RetryPolicy{Interval: 10 * time.Millisecond}, logging.NewNop())

	handle, err := manager.Acquire(context.Background(), "sync")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if _, err := os.Stat(handle.Path()); err != nil {
		t.Fatalf("lock file missing: %v", err)
	}
	if err := handle.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, err := os.Stat(handle.Path()); !os.IsNotExist(err) {
		t.Fatalf("lock file still present after release: %v", err)
	}
}

func TestAcquireWaitsForHolder(t *testing.T) {
	dir := t.TempDir()
	manager := NewManager(dir, RetryPolicy{Interval: 10 * time.Millisecond}, logging.NewNop())

	first, err := manager.Acquire(context.Background(), "sync")
	if err != nil {
		t.Fatal(err)
	}

	acquired := make(chan error, 1)
	go func() {
		second, err := manager.Acquire(context.Background(), "sync")
		if err == nil {
			second.Release()
		}
		acquired <- err
	}()

	select {
	case err := <-acquired:
		t.Fatalf("second acquire returned %v while lock was held", err)
	case <-time.After(50 * time.Millisecond):
	}

	if err := first.Release(); err != nil {
		t.Fatal(err)
	}
	select {
	case err := <-acquired:
		if err != nil {
			t.Fatalf("second acquire after release: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("second acquire never completed")
	}
}

func TestAcquireBoundedAttempts(t *testing.T) {
	dir := t.TempDir()
	holder := NewManager(dir, RetryPolicy{Interval: 5 * time.Millisecond}, logging.NewNop())
	handle, err := holder.Acquire(context.Background(), "sync")
	if err != nil {
		t.Fatal(err)
	}
	defer handle.Release()

	bounded := NewManager(dir, RetryPolicy{Interval: 5 * time.Millisecond, MaxAttempts: 3}, logging.NewNop())
	if _, err := bounded.Acquire(context.Background(), "sync"); err == nil {
		t.Fatal("expected bounded acquire to give up")
	}
}

func TestAcquireHonorsContext(t *testing.T) {
	dir := t.TempDir()
	holder := NewManager(dir, RetryPolicy{Interval: 5 * time.Millisecond}, logging.NewNop())
	handle, err := holder.Acquire(context.Background(), "sync")
	if err != nil {
		t.Fatal(err)
	}
	defer handle.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	waiter := NewManager(dir, RetryPolicy{Interval: 5 * time.Millisecond}, logging.NewNop())
	if _, err := waiter.Acquire(ctx, "sync"); err != context.DeadlineExceeded {
		t.Fatalf("err = %v, want context deadline", err)
	}
}

func TestDifferentStagesDoNotBlock(t *testing.T) {
	manager := NewManager(t.TempDir(), RetryPolicy{Interval: 5 * time.Millisecond, MaxAttempts: 2}, logging.NewNop())

	syncLock, err := manager.Acquire(context.Background(), "sync")
	if err != nil {
		t.Fatal(err)
	}
	defer syncLock.Release()

	reconcileLock, err := manager.Acquire(context.Background(), "reconcile")
	if err != nil {
		t.Fatalf("different stage blocked: %v", err)
	}
	reconcileLock.Release()
}

func TestReleaseNilHandle(t *testing.T) {
	var handle *Handle
	if err := handle.Release(); err != nil {
		t.Fatalf("nil release: %v", err)
	}
}
