package config

const (
	defaultLibraryDir = "~/media/library"
	defaultSyncDir    = "~/media/sync"
	defaultTrashDir   = "~/media/trash"
	defaultLockDir    = "~/.local/share/reelsync/locks"
	defaultLogDir     = "~/.local/share/reelsync/logs"

	defaultMaxPathLength     = 259
	defaultMinFilenameLength = 16
	defaultHiddenPrefix      = "."

	defaultMoviesEndpoint    = "movie"
	defaultMoviesDisplayName = "Movies"
	defaultTVEndpoint        = "series"
	defaultTVDisplayName     = "TV"

	defaultMediaServer = "jellyfin"

	defaultStabilizationSeconds  = 5
	defaultLockRetrySeconds      = 1
	defaultStatusPollSeconds     = 15
	defaultQueuePollSeconds      = 5
	defaultRequestTimeoutSeconds = 30
	defaultStuckResetMinutes     = 60
	defaultCleanupMinutes        = 360

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LibraryDir: defaultLibraryDir,
			SyncDir:    defaultSyncDir,
			TrashDir:   defaultTrashDir,
			LockDir:    defaultLockDir,
			LogDir:     defaultLogDir,
		},
		Sync: Sync{
			MaxPathLength:     defaultMaxPathLength,
			MinFilenameLength: defaultMinFilenameLength,
			Categories:        []string{defaultMoviesDisplayName, defaultTVDisplayName},
			HiddenPrefix:      defaultHiddenPrefix,
		},
		Movies: Service{
			Endpoint:    defaultMoviesEndpoint,
			DisplayName: defaultMoviesDisplayName,
		},
		TV: Service{
			Endpoint:    defaultTVEndpoint,
			DisplayName: defaultTVDisplayName,
		},
		Users: Users{
			MediaServer: defaultMediaServer,
		},
		Watcher: Watcher{
			StabilizationSeconds: defaultStabilizationSeconds,
		},
		Workflow: Workflow{
			LockRetrySeconds:       defaultLockRetrySeconds,
			StatusPollSeconds:      defaultStatusPollSeconds,
			QueuePollSeconds:       defaultQueuePollSeconds,
			RequestTimeoutSeconds:  defaultRequestTimeoutSeconds,
			StuckResetAfterMinutes: defaultStuckResetMinutes,
			CleanupIntervalMinutes: defaultCleanupMinutes,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
