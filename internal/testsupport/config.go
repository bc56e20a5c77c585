// Package testsupport provides shared fixtures for package tests.
package testsupport

import (
	"path/filepath"
	"testing"

	"reelsync/internal/config"
)

// ConfigOption customizes the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per
// test, with path-length limits disabled so deep temp paths never trip
// truncation.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.LibraryDir = filepath.Join(base, "library")
	cfg.Paths.SyncDir = filepath.Join(base, "sync")
	cfg.Paths.TrashDir = filepath.Join(base, "trash")
	cfg.Paths.LockDir = filepath.Join(base, "locks")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Sync.MaxPathLength = 0
	cfg.Workflow.StatusPollMaxAttempts = 1

	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithServices fills both managed services with test endpoints.
func WithServices(moviesURL, tvURL string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Movies.URL = moviesURL
		cfg.Movies.APIKey = "test-key"
		cfg.TV.URL = tvURL
		cfg.TV.APIKey = "test-key"
	}
}
