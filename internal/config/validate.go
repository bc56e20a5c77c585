package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateSync(); err != nil {
		return err
	}
	if err := c.validateServices(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.LibraryDir) == "" {
		return errors.New("paths.library_dir must be set")
	}
	if strings.TrimSpace(c.Paths.SyncDir) == "" {
		return errors.New("paths.sync_dir must be set")
	}
	if c.Paths.SyncDir == c.Paths.LibraryDir {
		return errors.New("paths.sync_dir must differ from paths.library_dir")
	}
	if strings.TrimSpace(c.Paths.TrashDir) == "" {
		return errors.New("paths.trash_dir must be set")
	}
	if (c.Translate.NativeBase == "") != (c.Translate.CanonicalBase == "") {
		return errors.New("translate.native_base and translate.canonical_base must be set together")
	}
	return nil
}

func (c *Config) validateSync() error {
	if c.Sync.MinFilenameLength >= c.Sync.MaxPathLength {
		return errors.New("sync.min_filename_length must be smaller than sync.max_path_length")
	}
	seen := make(map[string]struct{}, len(c.Sync.Categories))
	for _, category := range c.Sync.Categories {
		key := strings.ToLower(category)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("sync.categories contains duplicate entry %q", category)
		}
		seen[key] = struct{}{}
	}
	return nil
}

func (c *Config) validateServices() error {
	for _, check := range []struct {
		name string
		svc  Service
	}{
		{"movies", c.Movies},
		{"tv", c.TV},
	} {
		if svc := check.svc; svc.URL != "" && svc.APIKey == "" {
			return fmt.Errorf("%s.api_key must be set when %s.url is configured", check.name, check.name)
		}
	}
	if c.Movies.URL == "" && c.TV.URL == "" {
		// Sync-only installs are valid; reconciliation commands will refuse to run.
		return nil
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	for name, value := range map[string]int{
		"workflow.lock_retry_seconds":      c.Workflow.LockRetrySeconds,
		"workflow.status_poll_seconds":     c.Workflow.StatusPollSeconds,
		"workflow.queue_poll_seconds":      c.Workflow.QueuePollSeconds,
		"workflow.request_timeout_seconds": c.Workflow.RequestTimeoutSeconds,
		"watcher.stabilization_seconds":    c.Watcher.StabilizationSeconds,
	} {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	if c.Workflow.StatusPollMaxAttempts < 0 {
		return errors.New("workflow.status_poll_max_attempts must not be negative")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
