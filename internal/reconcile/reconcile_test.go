package reconcile

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"reelsync/internal/config"
	"reelsync/internal/logging"
	"reelsync/internal/services"
	"reelsync/internal/services/arr"
)

type fakeCatalog struct {
	name       string
	statusErr  error
	discovery  [][]arr.Candidate // consumed one response per ManualImport call
	lookup     []arr.LookupResult
	lookupErr  error
	addIDs     []int64
	addErrs    []error
	added      []string
	deleted    []int64
	imported   [][]arr.Candidate
	importErr  error
	discovered []string
}

func (f *fakeCatalog) Name() string { return f.name }

func (f *fakeCatalog) SystemStatus(context.Context) error { return f.statusErr }

func (f *fakeCatalog) ManualImport(_ context.Context, folder string) ([]arr.Candidate, error) {
	f.discovered = append(f.discovered, folder)
	if len(f.discovery) == 0 {
		return nil, nil
	}
	next := f.discovery[0]
	f.discovery = f.discovery[1:]
	return next, nil
}

func (f *fakeCatalog) Lookup(context.Context, string) ([]arr.LookupResult, error) {
	return f.lookup, f.lookupErr
}

func (f *fakeCatalog) Add(_ context.Context, result arr.LookupResult, _ string, _ int) (int64, error) {
	f.added = append(f.added, result.Title)
	var err error
	if len(f.addErrs) > 0 {
		err = f.addErrs[0]
		f.addErrs = f.addErrs[1:]
	}
	if err != nil {
		return 0, err
	}
	id := int64(len(f.added))
	if len(f.addIDs) > 0 {
		id = f.addIDs[0]
		f.addIDs = f.addIDs[1:]
	}
	return id, nil
}

func (f *fakeCatalog) Delete(_ context.Context, id int64) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeCatalog) ManualImportCommand(_ context.Context, candidates []arr.Candidate) error {
	f.imported = append(f.imported, candidates)
	return f.importErr
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.SyncDir = filepath.Join(t.TempDir(), "sync")
	cfg.Movies.URL = "http://radarr.local"
	cfg.Movies.APIKey = "k"
	cfg.TV.URL = "http://sonarr.local"
	cfg.TV.APIKey = "k"
	cfg.Workflow.StatusPollMaxAttempts = 1
	return &cfg
}

func testEngine(cfg *config.Config, catalog Catalog, dryRun bool) *Engine {
	return New(cfg, func(config.Service) Catalog { return catalog }, logging.NewNop(), dryRun)
}

func unknownMovie(path string) arr.Candidate {
	return arr.Candidate{
		Path:       path,
		Rejections: []arr.Rejection{{Reason: "Unknown Movie"}},
	}
}

func TestRunImportsCleanCandidates(t *testing.T) {
	cfg := testConfig(t)
	catalog := &fakeCatalog{
		name: "Movies",
		discovery: [][]arr.Candidate{{
			{Path: "/sync/Movies/Heat/Heat.mkv", Movie: &arr.Entity{ID: 7}},
		}},
	}

	report, err := testEngine(cfg, catalog, false).Run(context.Background(), "Movies/Heat")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Accepted) != 1 || len(report.Dropped) != 0 {
		t.Fatalf("accepted = %d dropped = %d", len(report.Accepted), len(report.Dropped))
	}
	if !report.Imported || len(catalog.imported) != 1 {
		t.Fatal("import command not submitted")
	}
}

func TestRunRepairLoopAddsVerifiesRemoves(t *testing.T) {
	cfg := testConfig(t)
	file := "/sync/Movies/Flow/Flow.mkv"
	resolved := arr.Candidate{Path: file, Movie: &arr.Entity{ID: 102}}
	catalog := &fakeCatalog{
		name: "Movies",
		discovery: [][]arr.Candidate{
			{unknownMovie(file)}, // initial discovery
			{unknownMovie(file)}, // free re-discovery, still unknown
			{unknownMovie(file)}, // after adding 101, still unknown
			{resolved},           // after adding 102, accepted
		},
		lookup: []arr.LookupResult{
			{Title: "Flow", TmdbID: 101, Popularity: 80},
			{Title: "Flow", TmdbID: 102, Popularity: 40},
		},
		addIDs: []int64{101, 102},
	}

	report, err := testEngine(cfg, catalog, false).Run(context.Background(), "Movies/Flow")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(catalog.added) != 2 {
		t.Fatalf("adds = %d, want 2", len(catalog.added))
	}
	if len(catalog.deleted) != 1 || catalog.deleted[0] != 101 {
		t.Fatalf("deleted = %v, want [101]", catalog.deleted)
	}
	if len(report.Accepted) != 1 || report.Accepted[0].Movie.ID != 102 {
		t.Fatalf("accepted = %+v, want movie 102", report.Accepted)
	}
	if len(catalog.imported) != 1 {
		t.Fatal("import command not submitted")
	}
}

func TestRunRepairBoundedByLookupResults(t *testing.T) {
	cfg := testConfig(t)
	file := "/sync/Movies/Flow/Flow.mkv"
	catalog := &fakeCatalog{
		name: "Movies",
		discovery: [][]arr.Candidate{
			{unknownMovie(file)},
			{unknownMovie(file)},
			{unknownMovie(file)}, // after add 1
			{unknownMovie(file)}, // after add 2
		},
		lookup: []arr.LookupResult{
			{Title: "Flow", TmdbID: 101},
			{Title: "Flow", TmdbID: 102},
		},
	}

	report, err := testEngine(cfg, catalog, false).Run(context.Background(), "Movies/Flow")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(catalog.added) != 2 {
		t.Fatalf("adds = %d, want exactly the number of lookup results", len(catalog.added))
	}
	if len(report.Dropped) != 1 || len(report.Accepted) != 0 {
		t.Fatalf("dropped = %d accepted = %d, want 1/0", len(report.Dropped), len(report.Accepted))
	}
	if len(catalog.imported) != 0 {
		t.Fatal("nothing should be imported")
	}
}

func TestRunIdentityConflictTriesNextResult(t *testing.T) {
	cfg := testConfig(t)
	file := "/sync/Movies/Flow/Flow.mkv"
	resolved := arr.Candidate{Path: file, Movie: &arr.Entity{ID: 102}}
	catalog := &fakeCatalog{
		name: "Movies",
		discovery: [][]arr.Candidate{
			{unknownMovie(file)},
			{unknownMovie(file)},
			{resolved}, // after the second add
		},
		lookup: []arr.LookupResult{
			{Title: "Flow", TmdbID: 101},
			{Title: "Flow", TmdbID: 102},
		},
		addErrs: []error{fmt.Errorf("%w: Flow", arr.ErrAlreadyExists), nil},
	}

	report, err := testEngine(cfg, catalog, false).Run(context.Background(), "Movies/Flow")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(catalog.added) != 2 {
		t.Fatalf("adds = %d, want 2", len(catalog.added))
	}
	if len(report.Accepted) != 1 {
		t.Fatalf("accepted = %d, want 1", len(report.Accepted))
	}
}

func TestRunOtherAddFailureStopsLoop(t *testing.T) {
	cfg := testConfig(t)
	file := "/sync/Movies/Flow/Flow.mkv"
	catalog := &fakeCatalog{
		name: "Movies",
		discovery: [][]arr.Candidate{
			{unknownMovie(file)},
			{unknownMovie(file)},
		},
		lookup: []arr.LookupResult{
			{Title: "Flow", TmdbID: 101},
			{Title: "Flow", TmdbID: 102},
		},
		addErrs: []error{errors.New("boom")},
	}

	report, err := testEngine(cfg, catalog, false).Run(context.Background(), "Movies/Flow")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(catalog.added) != 1 {
		t.Fatalf("adds = %d, want 1 (loop stops on non-conflict failure)", len(catalog.added))
	}
	if len(report.Dropped) != 1 {
		t.Fatalf("dropped = %d, want 1", len(report.Dropped))
	}
}

func TestRunErrorRejectionDrops(t *testing.T) {
	cfg := testConfig(t)
	catalog := &fakeCatalog{
		name: "Movies",
		discovery: [][]arr.Candidate{{
			{
				Path:       "/sync/Movies/X/X.mkv",
				Rejections: []arr.Rejection{{Reason: "Episode file already imported"}},
			},
		}},
	}

	report, err := testEngine(cfg, catalog, false).Run(context.Background(), "Movies/X")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Dropped) != 1 || len(report.Accepted) != 0 {
		t.Fatalf("dropped = %d accepted = %d, want 1/0", len(report.Dropped), len(report.Accepted))
	}
}

func TestRunWarnRejectionPassesThrough(t *testing.T) {
	cfg := testConfig(t)
	catalog := &fakeCatalog{
		name: "Movies",
		discovery: [][]arr.Candidate{{
			{
				Path:       "/sync/Movies/X/X.mkv",
				Movie:      &arr.Entity{ID: 3},
				Rejections: []arr.Rejection{{Reason: "Unable to parse file"}},
			},
		}},
	}

	report, err := testEngine(cfg, catalog, false).Run(context.Background(), "Movies/X")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Accepted) != 1 {
		t.Fatalf("accepted = %d, want 1", len(report.Accepted))
	}
}

func TestRunFreshDiscoveryAdoptedWithoutLookup(t *testing.T) {
	cfg := testConfig(t)
	file := "/sync/Movies/Flow/Flow.mkv"
	resolved := arr.Candidate{Path: file, Movie: &arr.Entity{ID: 9}}
	catalog := &fakeCatalog{
		name: "Movies",
		discovery: [][]arr.Candidate{
			{unknownMovie(file)},
			{resolved}, // re-discovery already resolved
		},
	}

	report, err := testEngine(cfg, catalog, false).Run(context.Background(), "Movies/Flow")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(catalog.added) != 0 {
		t.Fatalf("adds = %d, want 0", len(catalog.added))
	}
	if len(report.Accepted) != 1 || report.Accepted[0].Movie.ID != 9 {
		t.Fatalf("accepted = %+v, want movie 9", report.Accepted)
	}
}

func TestRunDryRunSuppressesMutation(t *testing.T) {
	cfg := testConfig(t)
	file := "/sync/Movies/Flow/Flow.mkv"
	catalog := &fakeCatalog{
		name: "Movies",
		discovery: [][]arr.Candidate{
			{
				{Path: "/sync/Movies/Heat/Heat.mkv", Movie: &arr.Entity{ID: 7}},
				unknownMovie(file),
			},
			{unknownMovie(file)},
		},
		lookup: []arr.LookupResult{{Title: "Flow", TmdbID: 101}},
	}

	report, err := testEngine(cfg, catalog, true).Run(context.Background(), "Movies")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(catalog.added) != 0 || len(catalog.deleted) != 0 || len(catalog.imported) != 0 {
		t.Fatal("dry run mutated the catalog")
	}
	if len(report.Accepted) != 1 || len(report.Dropped) != 1 {
		t.Fatalf("accepted = %d dropped = %d, want 1/1", len(report.Accepted), len(report.Dropped))
	}
}

func TestRunUnknownCategoryFails(t *testing.T) {
	cfg := testConfig(t)
	_, err := testEngine(cfg, &fakeCatalog{name: "Movies"}, false).Run(context.Background(), "Music/Album")
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("err = %v, want configuration", err)
	}
}

func TestWaitReadyGivesUpAfterMaxAttempts(t *testing.T) {
	cfg := testConfig(t)
	cfg.Workflow.StatusPollMaxAttempts = 1
	catalog := &fakeCatalog{name: "Movies", statusErr: errors.New("down")}

	err := testEngine(cfg, catalog, false).WaitReady(context.Background(), catalog)
	if !errors.Is(err, services.ErrConnectivity) {
		t.Fatalf("err = %v, want connectivity", err)
	}
}

func TestRunMixedRejectionsEnterRepairLoop(t *testing.T) {
	cfg := testConfig(t)
	file := "/sync/Movies/Flow/Flow.mkv"
	mixed := arr.Candidate{
		Path: file,
		Rejections: []arr.Rejection{
			{Reason: "Unknown Movie"},
			{Reason: "Unable to determine if file is a sample"},
		},
	}
	resolved := arr.Candidate{Path: file, Movie: &arr.Entity{ID: 11}}
	catalog := &fakeCatalog{
		name: "Movies",
		discovery: [][]arr.Candidate{
			{mixed},
			{mixed},    // free re-discovery, still unknown
			{resolved}, // after the add, both rejections cleared
		},
		lookup: []arr.LookupResult{{Title: "Flow", TmdbID: 101}},
	}

	report, err := testEngine(cfg, catalog, false).Run(context.Background(), "Movies/Flow")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(catalog.added) != 1 {
		t.Fatalf("adds = %d, want the unknown-movie rejection to drive a repair", len(catalog.added))
	}
	if len(report.Accepted) != 1 || report.Accepted[0].Movie.ID != 11 {
		t.Fatalf("accepted = %+v, want movie 11", report.Accepted)
	}
}

func TestRunRepairedCandidateStillGradedByRemainingRejections(t *testing.T) {
	cfg := testConfig(t)
	file := "/sync/Movies/Flow/Flow.mkv"
	mixed := arr.Candidate{
		Path: file,
		Rejections: []arr.Rejection{
			{Reason: "Unknown Movie"},
			{Reason: "Unable to determine if file is a sample"},
		},
	}
	stillBroken := arr.Candidate{
		Path:       file,
		Movie:      &arr.Entity{ID: 11},
		Rejections: []arr.Rejection{{Reason: "Unable to determine if file is a sample"}},
	}
	catalog := &fakeCatalog{
		name: "Movies",
		discovery: [][]arr.Candidate{
			{mixed},
			{mixed},       // free re-discovery, still unknown
			{stillBroken}, // the add resolved the identity, not the hard failure
		},
		lookup: []arr.LookupResult{{Title: "Flow", TmdbID: 101}},
	}

	report, err := testEngine(cfg, catalog, false).Run(context.Background(), "Movies/Flow")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(catalog.added) != 1 {
		t.Fatalf("adds = %d, want 1", len(catalog.added))
	}
	if len(report.Dropped) != 1 || len(report.Accepted) != 0 {
		t.Fatalf("dropped = %d accepted = %d, want 1/0", len(report.Dropped), len(report.Accepted))
	}
}
