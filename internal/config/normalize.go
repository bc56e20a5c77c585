package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeTranslate(); err != nil {
		return err
	}
	c.normalizeSync()
	c.normalizeService(&c.Movies, "RADARR_API_KEY", defaultMoviesEndpoint, defaultMoviesDisplayName)
	c.normalizeService(&c.TV, "SONARR_API_KEY", defaultTVEndpoint, defaultTVDisplayName)
	if err := c.normalizeUsers(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.LibraryDir, err = expandPath(c.Paths.LibraryDir); err != nil {
		return fmt.Errorf("paths.library_dir: %w", err)
	}
	if c.Paths.SyncDir, err = expandPath(c.Paths.SyncDir); err != nil {
		return fmt.Errorf("paths.sync_dir: %w", err)
	}
	if c.Paths.TrashDir, err = expandPath(c.Paths.TrashDir); err != nil {
		return fmt.Errorf("paths.trash_dir: %w", err)
	}
	if c.Paths.LockDir, err = expandPath(c.Paths.LockDir); err != nil {
		return fmt.Errorf("paths.lock_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeTranslate() error {
	c.Translate.NativeBase = strings.TrimSpace(c.Translate.NativeBase)
	c.Translate.CanonicalBase = strings.TrimSpace(c.Translate.CanonicalBase)
	if c.Translate.NativeBase != "" {
		expanded, err := expandPath(c.Translate.NativeBase)
		if err != nil {
			return fmt.Errorf("translate.native_base: %w", err)
		}
		c.Translate.NativeBase = expanded
	}
	return nil
}

func (c *Config) normalizeSync() {
	if c.Sync.MaxPathLength <= 0 {
		c.Sync.MaxPathLength = defaultMaxPathLength
	}
	if c.Sync.MinFilenameLength <= 0 {
		c.Sync.MinFilenameLength = defaultMinFilenameLength
	}
	if c.Sync.HiddenPrefix == "" {
		c.Sync.HiddenPrefix = defaultHiddenPrefix
	}
	categories := make([]string, 0, len(c.Sync.Categories))
	for _, category := range c.Sync.Categories {
		if trimmed := strings.TrimSpace(category); trimmed != "" {
			categories = append(categories, trimmed)
		}
	}
	if len(categories) == 0 {
		categories = []string{c.Movies.DisplayName, c.TV.DisplayName}
	}
	c.Sync.Categories = categories
}

func (c *Config) normalizeService(svc *Service, envKey, defaultEndpoint, defaultName string) {
	svc.URL = strings.TrimRight(strings.TrimSpace(svc.URL), "/")
	svc.APIKey = strings.TrimSpace(svc.APIKey)
	if svc.APIKey == "" {
		if value, ok := os.LookupEnv(envKey); ok {
			svc.APIKey = strings.TrimSpace(value)
		}
	}
	svc.Endpoint = strings.TrimSpace(svc.Endpoint)
	if svc.Endpoint == "" {
		svc.Endpoint = defaultEndpoint
	}
	svc.DisplayName = strings.TrimSpace(svc.DisplayName)
	if svc.DisplayName == "" {
		svc.DisplayName = defaultName
	}
	svc.RootDir = strings.TrimSpace(svc.RootDir)
}

func (c *Config) normalizeUsers() error {
	c.Users.URL = strings.TrimRight(strings.TrimSpace(c.Users.URL), "/")
	c.Users.Email = strings.TrimSpace(c.Users.Email)
	c.Users.MediaServer = strings.ToLower(strings.TrimSpace(c.Users.MediaServer))
	if c.Users.MediaServer == "" {
		c.Users.MediaServer = defaultMediaServer
	}
	if c.Users.PasswordFile != "" {
		expanded, err := expandPath(c.Users.PasswordFile)
		if err != nil {
			return fmt.Errorf("users.password_file: %w", err)
		}
		c.Users.PasswordFile = expanded
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
