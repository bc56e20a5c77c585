package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains the directory layout reelsync operates on.
type Paths struct {
	LibraryDir string `toml:"library_dir"` // source tree, written by the download client
	SyncDir    string `toml:"sync_dir"`    // hardlinked mirror tree
	TrashDir   string `toml:"trash_dir"`   // recoverable-delete area
	LockDir    string `toml:"lock_dir"`
	LogDir     string `toml:"log_dir"`
}

// Translate holds the base-path pair mapping the mounted/container view of
// the library onto the native view.
type Translate struct {
	NativeBase    string `toml:"native_base"`
	CanonicalBase string `toml:"canonical_base"`
}

// Sync contains mirror-engine settings.
type Sync struct {
	MaxPathLength     int      `toml:"max_path_length"`
	MinFilenameLength int      `toml:"min_filename_length"`
	Categories        []string `toml:"categories"`
	HiddenPrefix      string   `toml:"hidden_prefix"`
}

// Service describes one managed-library endpoint (Radarr or Sonarr
// semantics). Endpoint is the lookup/add resource name ("movie" or
// "series"); DisplayName is used in logs and notifications.
type Service struct {
	URL              string `toml:"url"`
	APIKey           string `toml:"api_key"`
	Endpoint         string `toml:"endpoint"`
	DisplayName      string `toml:"display_name"`
	RootDir          string `toml:"root_dir"`
	QualityProfileID int    `toml:"quality_profile_id"`
}

// Users contains the Jellyseerr-equivalent user-provisioning settings.
type Users struct {
	URL          string `toml:"url"`
	Email        string `toml:"email"`
	PasswordFile string `toml:"password_file"`
	MediaServer  string `toml:"media_server"`
}

// Watcher contains filesystem-event settings.
type Watcher struct {
	StabilizationSeconds int `toml:"stabilization_seconds"`
}

// Workflow contains retry and polling policies. Zero max-attempt values
// mean unbounded, matching the blocking waits the pipeline depends on.
type Workflow struct {
	LockRetrySeconds       int `toml:"lock_retry_seconds"`
	StatusPollSeconds      int `toml:"status_poll_seconds"`
	StatusPollMaxAttempts  int `toml:"status_poll_max_attempts"`
	QueuePollSeconds       int `toml:"queue_poll_seconds"`
	RequestTimeoutSeconds  int `toml:"request_timeout_seconds"`
	StuckResetAfterMinutes int `toml:"stuck_reset_after_minutes"`
	CleanupIntervalMinutes int `toml:"cleanup_interval_minutes"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Config encapsulates all configuration values for reelsync.
//
// Sections by subsystem:
//   - Paths: source/mirror/trash/lock/log directories
//   - Translate: container-to-native base path pair
//   - Sync: mirror naming rules and length limits
//   - Movies / TV: the two managed-library services
//   - Users: Jellyseerr-equivalent user provisioning
//   - Watcher: file-event stabilization
//   - Workflow: retry policies and polling intervals
//   - Logging, Notifications
type Config struct {
	Paths         Paths         `toml:"paths"`
	Translate     Translate     `toml:"translate"`
	Sync          Sync          `toml:"sync"`
	Movies        Service       `toml:"movies"`
	TV            Service       `toml:"tv"`
	Users         Users         `toml:"users"`
	Watcher       Watcher       `toml:"watcher"`
	Workflow      Workflow      `toml:"workflow"`
	Logging       Logging       `toml:"logging"`
	Notifications Notifications `toml:"notifications"`
}

// DefaultConfigPath returns the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/reelsync/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("reelsync.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the pipeline needs. The source
// library is created best-effort so the daemon can start while external
// storage is temporarily offline.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.SyncDir, c.Paths.TrashDir, c.Paths.LockDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.LibraryDir) != "" {
		_ = os.MkdirAll(c.Paths.LibraryDir, 0o755)
	}
	return nil
}

// ServiceFor returns the managed-library service handling the given sync
// subpath category, matching on the first path segment.
func (c *Config) ServiceFor(subpath string) (Service, bool) {
	segment := subpath
	if idx := strings.IndexAny(segment, `/\`); idx >= 0 {
		segment = segment[:idx]
	}
	segment = strings.TrimSpace(segment)
	switch {
	case strings.EqualFold(segment, c.Movies.DisplayName):
		return c.Movies, true
	case strings.EqualFold(segment, c.TV.DisplayName):
		return c.TV, true
	default:
		return Service{}, false
	}
}

// LockRetryInterval returns the lock acquisition retry delay.
func (c *Config) LockRetryInterval() time.Duration {
	if c.Workflow.LockRetrySeconds <= 0 {
		return time.Second
	}
	return time.Duration(c.Workflow.LockRetrySeconds) * time.Second
}

// StatusPollInterval returns the service readiness polling delay.
func (c *Config) StatusPollInterval() time.Duration {
	if c.Workflow.StatusPollSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.Workflow.StatusPollSeconds) * time.Second
}

// StabilizationInterval returns the watcher size-stability sampling window.
func (c *Config) StabilizationInterval() time.Duration {
	if c.Watcher.StabilizationSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.Watcher.StabilizationSeconds) * time.Second
}

// QueuePollInterval returns the delay between idle queue polls.
func (c *Config) QueuePollInterval() time.Duration {
	if c.Workflow.QueuePollSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.Workflow.QueuePollSeconds) * time.Second
}

// StuckResetInterval returns the age after which an in-flight queue claim
// is considered abandoned.
func (c *Config) StuckResetInterval() time.Duration {
	if c.Workflow.StuckResetAfterMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(c.Workflow.StuckResetAfterMinutes) * time.Minute
}

// CleanupInterval returns the delay between opportunistic cleanup passes
// in the daemon. Zero or negative disables scheduled cleanup.
func (c *Config) CleanupInterval() time.Duration {
	if c.Workflow.CleanupIntervalMinutes <= 0 {
		return 0
	}
	return time.Duration(c.Workflow.CleanupIntervalMinutes) * time.Minute
}

// RequestTimeout returns the per-request HTTP timeout for service clients.
func (c *Config) RequestTimeout() time.Duration {
	if c.Workflow.RequestTimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Workflow.RequestTimeoutSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
