// Package reconcile drives imports against the managed-library services.
// Per run it waits for the service to come up, discovers import candidates
// under a sync subpath, repairs recoverable rejections through catalog
// lookup, and submits one bulk move-mode import for everything accepted.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"time"

	"reelsync/internal/config"
	"reelsync/internal/logging"
	"reelsync/internal/pathmap"
	"reelsync/internal/services"
	"reelsync/internal/services/arr"
	"reelsync/internal/textutil"
)

// Catalog is the managed-library surface the engine drives. Satisfied by
// *arr.Client; faked in tests.
type Catalog interface {
	Name() string
	SystemStatus(ctx context.Context) error
	ManualImport(ctx context.Context, folder string) ([]arr.Candidate, error)
	Lookup(ctx context.Context, term string) ([]arr.LookupResult, error)
	Add(ctx context.Context, result arr.LookupResult, rootDir string, qualityProfileID int) (int64, error)
	Delete(ctx context.Context, id int64) error
	ManualImportCommand(ctx context.Context, candidates []arr.Candidate) error
}

// CatalogFactory builds a catalog client for one service configuration.
type CatalogFactory func(service config.Service) Catalog

// Dropped records one candidate excluded from the import batch.
type Dropped struct {
	Path   string
	Reason string
}

// Report summarizes one reconciliation run.
type Report struct {
	Service  string
	Accepted []arr.Candidate
	Dropped  []Dropped
	Imported bool
}

// Engine reconciles one sync subpath against its managed service.
type Engine struct {
	cfg        *config.Config
	translator pathmap.Translator
	factory    CatalogFactory
	logger     *slog.Logger
	dryRun     bool
}

// New constructs a reconciliation engine. A nil factory builds real HTTP
// clients from the service configuration.
func New(cfg *config.Config, factory CatalogFactory, logger *slog.Logger, dryRun bool) *Engine {
	base := logging.NewComponentLogger(logger, "reconcile")
	if factory == nil {
		timeout := cfg.RequestTimeout()
		factory = func(service config.Service) Catalog {
			return arr.New(service, nil, timeout, base)
		}
	}
	return &Engine{
		cfg:        cfg,
		translator: pathmap.New(cfg.Translate.NativeBase, cfg.Translate.CanonicalBase),
		factory:    factory,
		logger:     base,
		dryRun:     dryRun,
	}
}

// Run reconciles the given sync subpath (its first segment selects the
// managed service).
func (e *Engine) Run(ctx context.Context, subpath string) (*Report, error) {
	service, ok := e.cfg.ServiceFor(subpath)
	if !ok {
		return nil, services.Wrap(services.ErrConfiguration, "reconcile", "select service",
			fmt.Sprintf("no managed service handles %q", subpath), nil)
	}
	if service.URL == "" {
		return nil, services.Wrap(services.ErrConfiguration, "reconcile", "select service",
			fmt.Sprintf("service %s has no url configured", service.DisplayName), nil)
	}
	catalog := e.factory(service)
	logger := logging.WithContext(ctx, e.logger)

	if err := e.WaitReady(ctx, catalog); err != nil {
		return nil, err
	}

	folder, err := e.translator.ToCanonical(filepath.Join(e.cfg.Paths.SyncDir, subpath))
	if err != nil {
		return nil, services.Wrap(services.ErrPathSafety, "reconcile", "translate path", subpath, err)
	}

	candidates, err := catalog.ManualImport(ctx, folder)
	if err != nil {
		return nil, err
	}
	logger.Info("discovery finished",
		logging.String("service", service.DisplayName),
		logging.String("folder", folder),
		logging.Int("candidates", len(candidates)),
	)

	report := &Report{Service: service.DisplayName}
	for _, candidate := range candidates {
		accepted, dropped := e.repair(ctx, catalog, service, candidate)
		if dropped != nil {
			report.Dropped = append(report.Dropped, *dropped)
			logger.Warn("candidate dropped",
				logging.String("file", dropped.Path),
				logging.String("reason", dropped.Reason),
			)
			continue
		}
		report.Accepted = append(report.Accepted, *accepted)
	}

	if len(report.Accepted) == 0 {
		logger.Info("nothing to import", logging.String("service", service.DisplayName))
		return report, nil
	}
	if e.dryRun {
		for _, candidate := range report.Accepted {
			logger.Info("would import",
				logging.String("file", candidate.Path),
				logging.Bool(logging.FieldDryRun, true),
			)
		}
		return report, nil
	}
	if err := catalog.ManualImportCommand(ctx, report.Accepted); err != nil {
		return report, err
	}
	report.Imported = true
	logger.Info("import submitted",
		logging.String("service", service.DisplayName),
		logging.Int("files", len(report.Accepted)),
	)
	return report, nil
}

// WaitReady blocks until the service status endpoint answers healthy,
// polling on the configured interval. A max-attempts cap of zero means
// wait forever; dependent services are expected to come up eventually.
func (e *Engine) WaitReady(ctx context.Context, catalog Catalog) error {
	interval := e.cfg.StatusPollInterval()
	maxAttempts := e.cfg.Workflow.StatusPollMaxAttempts
	logger := logging.WithContext(ctx, e.logger)

	start := time.Now()
	for attempt := 1; ; attempt++ {
		err := e.probe(ctx, catalog)
		if err == nil {
			return nil
		}
		if maxAttempts > 0 && attempt >= maxAttempts {
			return services.Wrap(services.ErrConnectivity, "reconcile", "wait ready",
				fmt.Sprintf("%s not ready after %d attempts", catalog.Name(), attempt), err)
		}
		logger.Info("service not ready",
			logging.String("service", catalog.Name()),
			logging.Duration("waited", time.Since(start).Round(time.Second)),
			logging.Error(err),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

func (e *Engine) probe(ctx context.Context, catalog Catalog) error {
	probeCtx, cancel := context.WithTimeout(ctx, e.cfg.RequestTimeout())
	defer cancel()
	return catalog.SystemStatus(probeCtx)
}

// repair resolves one candidate to either an accepted import entry or a
// drop decision. Any Info rejection triggers the lookup repair loop, even
// when harder rejections ride along; the surviving rejections are graded
// only afterwards. Warn rejections pass through; Error rejections drop
// the candidate.
func (e *Engine) repair(ctx context.Context, catalog Catalog, service config.Service, candidate arr.Candidate) (*arr.Candidate, *Dropped) {
	if len(candidate.Rejections) == 0 {
		return &candidate, nil
	}

	if candidate.HasSeverity(arr.SeverityInfo) {
		repaired, dropped := e.repairUnknown(ctx, catalog, service, candidate)
		if dropped != nil {
			return nil, dropped
		}
		candidate = *repaired
		if len(candidate.Rejections) == 0 {
			return &candidate, nil
		}
	}

	if severity, _ := candidate.WorstSeverity(); severity == arr.SeverityError {
		return nil, &Dropped{Path: candidate.Path, Reason: rejectionSummary(candidate)}
	}
	// Warn-grade rejections are naming heuristics; the import proceeds.
	return &candidate, nil
}

// repairUnknown handles the "title unknown to the catalog" case: one free
// re-discovery, then the ranked add/verify/remove loop. Each ranked lookup
// result is tried at most once, so the loop performs at most N add
// attempts for N results.
func (e *Engine) repairUnknown(ctx context.Context, catalog Catalog, service config.Service, candidate arr.Candidate) (*arr.Candidate, *Dropped) {
	logger := logging.WithContext(ctx, e.logger)

	fresh, found, err := e.rediscover(ctx, catalog, candidate.Path)
	if err != nil {
		return nil, &Dropped{Path: candidate.Path, Reason: err.Error()}
	}
	if found && !fresh.HasSeverity(arr.SeverityInfo) {
		return &fresh, nil
	}

	term := textutil.NormalizeSearchTerm(textutil.TitleFromFilename(path.Base(candidate.Path)))
	results, err := catalog.Lookup(ctx, term)
	if err != nil {
		return nil, &Dropped{Path: candidate.Path, Reason: err.Error()}
	}
	if len(results) == 0 {
		return nil, &Dropped{Path: candidate.Path, Reason: fmt.Sprintf("no catalog match for %q", term)}
	}
	if e.dryRun {
		logger.Info("would repair",
			logging.String("file", candidate.Path),
			logging.String("term", term),
			logging.String("best_match", results[0].Title),
			logging.Bool(logging.FieldDryRun, true),
		)
		return nil, &Dropped{Path: candidate.Path, Reason: "repair suppressed (dry run)"}
	}

	for _, result := range results {
		id, err := catalog.Add(ctx, result, service.RootDir, service.QualityProfileID)
		if errors.Is(err, arr.ErrAlreadyExists) {
			logger.Debug("identity conflict, trying next match",
				logging.String("title", result.Title))
			continue
		}
		if err != nil {
			return nil, &Dropped{Path: candidate.Path, Reason: err.Error()}
		}

		fresh, found, err := e.rediscover(ctx, catalog, candidate.Path)
		if err != nil {
			return nil, &Dropped{Path: candidate.Path, Reason: err.Error()}
		}
		if found && !fresh.HasSeverity(arr.SeverityInfo) {
			logger.Info("repaired via catalog",
				logging.String("file", candidate.Path),
				logging.String("title", result.Title),
			)
			return &fresh, nil
		}
		// Wrong match; remove it so the library is not polluted.
		if err := catalog.Delete(ctx, id); err != nil {
			logger.Warn("rollback of wrong match failed",
				logging.String("title", result.Title),
				logging.Error(err),
			)
		}
	}
	return nil, &Dropped{
		Path:   candidate.Path,
		Reason: fmt.Sprintf("no catalog entry resolved the rejection after %d attempts", len(results)),
	}
}

// rediscover re-queries the discovery endpoint for the folder holding one
// file and returns the fresh candidate for that exact path.
func (e *Engine) rediscover(ctx context.Context, catalog Catalog, filePath string) (arr.Candidate, bool, error) {
	candidates, err := catalog.ManualImport(ctx, path.Dir(filePath))
	if err != nil {
		return arr.Candidate{}, false, err
	}
	for _, candidate := range candidates {
		if candidate.Path == filePath {
			return candidate, true, nil
		}
	}
	return arr.Candidate{}, false, nil
}

func rejectionSummary(candidate arr.Candidate) string {
	if len(candidate.Rejections) == 0 {
		return "rejected"
	}
	return candidate.Rejections[0].Reason
}
