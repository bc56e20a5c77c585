package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"reelsync/internal/config"
	"reelsync/internal/hardlink"
	"reelsync/internal/lockfile"
	"reelsync/internal/logging"
	"reelsync/internal/merge"
	"reelsync/internal/notifications"
	"reelsync/internal/queue"
	"reelsync/internal/reconcile"
	"reelsync/internal/services/arr"
	"reelsync/internal/syncer"
	"reelsync/internal/testsupport"
)

type stubCatalog struct {
	imported [][]arr.Candidate
}

func (s *stubCatalog) Name() string                       { return "Movies" }
func (s *stubCatalog) SystemStatus(context.Context) error { return nil }

func (s *stubCatalog) ManualImport(_ context.Context, folder string) ([]arr.Candidate, error) {
	return []arr.Candidate{{Path: folder + "/file.mkv", Movie: &arr.Entity{ID: 1}}}, nil
}

func (s *stubCatalog) Lookup(context.Context, string) ([]arr.LookupResult, error) {
	return nil, nil
}

func (s *stubCatalog) Add(context.Context, arr.LookupResult, string, int) (int64, error) {
	return 0, nil
}

func (s *stubCatalog) Delete(context.Context, int64) error { return nil }

func (s *stubCatalog) ManualImportCommand(_ context.Context, candidates []arr.Candidate) error {
	s.imported = append(s.imported, candidates)
	return nil
}

func testPipeline(t *testing.T) (*Pipeline, *config.Config, *queue.Store, *stubCatalog) {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithServices("http://radarr.local", "http://sonarr.local"))

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })

	logger := logging.NewNop()
	inspector := hardlink.NewInspector(cfg.Paths.LibraryDir, cfg.Paths.SyncDir, cfg.Paths.TrashDir)
	catalog := &stubCatalog{}
	p := New(cfg, store,
		lockfile.NewManager(cfg.Paths.LockDir, lockfile.RetryPolicy{Interval: cfg.LockRetryInterval()}, logger),
		syncer.New(cfg, inspector, logger, false),
		reconcile.New(cfg, func(config.Service) reconcile.Catalog { return catalog }, logger, false),
		merge.New(cfg, inspector, logger, false),
		notifications.NewService(cfg),
		logger,
	)
	return p, cfg, store, catalog
}

func TestStepsDriveItemToCompletion(t *testing.T) {
	p, cfg, store, catalog := testPipeline(t)
	ctx := context.Background()

	src := filepath.Join(cfg.Paths.LibraryDir, "Movies", "Heat (1995)", "Heat (1995).mkv")
	testsupport.WriteFile(t, src)

	p.HandleFile(ctx, src)

	if busy := p.syncStep(ctx); !busy {
		t.Fatal("sync step found no work")
	}
	item, err := store.NextForStatuses(ctx, queue.StatusSynced)
	if err != nil || item == nil {
		t.Fatalf("no synced item: %v", err)
	}
	want := filepath.Join("Movies", "Heat (1995)")
	if item.Subpath != want {
		t.Fatalf("subpath = %q, want %q", item.Subpath, want)
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.SyncDir, want, "Heat (1995).mkv")); err != nil {
		t.Fatalf("mirror missing: %v", err)
	}

	if busy := p.reconcileStep(ctx); !busy {
		t.Fatal("reconcile step found no work")
	}
	item, err = store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatal(err)
	}
	if item.Status != queue.StatusCompleted {
		t.Fatalf("status = %s, want completed (%s)", item.Status, item.ErrorMessage)
	}
	if len(catalog.imported) != 1 {
		t.Fatalf("imports = %d, want 1", len(catalog.imported))
	}
}

func TestSyncStepCompletesAlreadyMirroredItems(t *testing.T) {
	p, cfg, store, _ := testPipeline(t)
	ctx := context.Background()

	src := filepath.Join(cfg.Paths.LibraryDir, "Movies", "Heat (1995)", "Heat (1995).mkv")
	dest := filepath.Join(cfg.Paths.SyncDir, "Movies", "Heat (1995)", "Heat (1995).mkv")
	testsupport.WriteFile(t, src)
	testsupport.Hardlink(t, src, dest)

	p.HandleFile(ctx, src)
	if busy := p.syncStep(ctx); !busy {
		t.Fatal("sync step found no work")
	}

	items, err := store.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].Status != queue.StatusCompleted {
		t.Fatalf("items = %+v, want one completed", items)
	}
}

func TestSyncStepFailureMarksItem(t *testing.T) {
	p, cfg, store, _ := testPipeline(t)
	ctx := context.Background()

	// A path outside the library root trips the path-safety check.
	p.HandleFile(ctx, filepath.Join(cfg.Paths.TrashDir, "rogue.mkv"))
	if busy := p.syncStep(ctx); !busy {
		t.Fatal("sync step found no work")
	}

	items, err := store.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].Status != queue.StatusFailed {
		t.Fatalf("items = %+v, want one failed", items)
	}
	if items[0].ErrorMessage == "" {
		t.Fatal("failure reason missing")
	}
}

func TestCleanupRunsUnderLock(t *testing.T) {
	p, cfg, _, _ := testPipeline(t)
	ctx := context.Background()

	orphan := filepath.Join(cfg.Paths.SyncDir, "Movies", "Gone", "Gone.mkv")
	testsupport.WriteFile(t, orphan)

	result, err := p.Cleanup(ctx)
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if result.Trashed != 1 {
		t.Fatalf("trashed = %d, want 1", result.Trashed)
	}
}
