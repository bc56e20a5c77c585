package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"reelsync/internal/logging"
)

type collector struct {
	mu    sync.Mutex
	paths []string
	seen  chan string
}

func newCollector() *collector {
	return &collector{seen: make(chan string, 16)}
}

func (c *collector) handle(_ context.Context, path string) {
	c.mu.Lock()
	c.paths = append(c.paths, path)
	c.mu.Unlock()
	c.seen <- path
}

func (c *collector) wait(t *testing.T, want string) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case got := <-c.seen:
			if got == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", want)
		}
	}
}

func startWatcher(t *testing.T, root string) (*collector, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	c := newCollector()
	w := New(root, 20*time.Millisecond, ".", logging.NewNop())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx, c.handle)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	// Give the watch set a moment to register.
	time.Sleep(100 * time.Millisecond)
	return c, cancel
}

func TestRunReportsStableFiles(t *testing.T) {
	root := t.TempDir()
	c, _ := startWatcher(t, root)

	file := filepath.Join(root, "movie.mkv")
	if err := os.WriteFile(file, []byte("payload"), 0o644); err != nil {
		t.Fatal(err)
	}
	c.wait(t, file)
}

func TestRunFollowsNewDirectories(t *testing.T) {
	root := t.TempDir()
	c, _ := startWatcher(t, root)

	dir := filepath.Join(root, "Movies", "Heat (1995)")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	file := filepath.Join(dir, "Heat (1995).mkv")
	if err := os.WriteFile(file, []byte("payload"), 0o644); err != nil {
		t.Fatal(err)
	}
	c.wait(t, file)
}

func TestRunSkipsHiddenFiles(t *testing.T) {
	root := t.TempDir()
	c, _ := startWatcher(t, root)

	hidden := filepath.Join(root, ".partial.mkv")
	if err := os.WriteFile(hidden, []byte("payload"), 0o644); err != nil {
		t.Fatal(err)
	}
	visible := filepath.Join(root, "done.mkv")
	if err := os.WriteFile(visible, []byte("payload"), 0o644); err != nil {
		t.Fatal(err)
	}
	c.wait(t, visible)

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, path := range c.paths {
		if path == hidden {
			t.Fatal("hidden file reported")
		}
	}
}

func TestStabilizeAbandonsVanishedFile(t *testing.T) {
	root := t.TempDir()
	w := New(root, 20*time.Millisecond, ".", logging.NewNop())

	file := filepath.Join(root, "gone.mkv")
	if err := os.WriteFile(file, []byte("payload"), 0o644); err != nil {
		t.Fatal(err)
	}
	called := false
	go func() {
		time.Sleep(5 * time.Millisecond)
		_ = os.Remove(file)
	}()
	w.stabilize(context.Background(), file, func(context.Context, string) { called = true })
	if called {
		t.Fatal("handler called for vanished file")
	}
}
