package main

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"reelsync/internal/config"
	"reelsync/internal/hardlink"
	"reelsync/internal/lockfile"
	"reelsync/internal/logging"
	"reelsync/internal/queue"
)

// commandContext carries lazily-initialized state shared by subcommands.
// Configuration and logger construction happen at most once per process.
type commandContext struct {
	configFlag  *string
	verboseFlag *bool

	configOnce   sync.Once
	config       *config.Config
	configPath   string
	configExists bool
	configErr    error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(configFlag *string, verboseFlag *bool) *commandContext {
	return &commandContext{
		configFlag:  configFlag,
		verboseFlag: verboseFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, exists, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
		c.configExists = exists
	})
	return c.config, c.configErr
}

// ensureLogger builds the CLI logger from the loaded configuration. Logs go
// to stderr so table output on stdout stays clean.
func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		level := cfg.Logging.Level
		if c.verboseFlag != nil && *c.verboseFlag {
			level = "debug"
		}
		c.logger, c.loggerErr = logging.New(logging.Options{
			Level:       level,
			Format:      cfg.Logging.Format,
			OutputPaths: []string{"stderr"},
		})
	})
	return c.logger, c.loggerErr
}

// withStore opens the queue database for the duration of fn.
func (c *commandContext) withStore(fn func(*queue.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := queue.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func (c *commandContext) inspector() (hardlink.Inspector, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return hardlink.NewInspector(cfg.Paths.LibraryDir, cfg.Paths.SyncDir, cfg.Paths.TrashDir), nil
}

func (c *commandContext) lockManager() (*lockfile.Manager, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}
	return lockfile.NewManager(cfg.Paths.LockDir, lockfile.RetryPolicy{Interval: cfg.LockRetryInterval()}, logger), nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
