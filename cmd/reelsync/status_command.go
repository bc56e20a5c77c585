package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"reelsync/internal/config"
	"reelsync/internal/queue"
	"reelsync/internal/services/arr"
	"reelsync/internal/services/overseerr"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configuration, daemon, queue, and service health",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if _, err := ctx.ensureLogger(); err != nil {
				return err
			}

			source := ctx.configPath
			if !ctx.configExists {
				source += " (defaults)"
			}

			probeCtx, cancel := context.WithTimeout(cmd.Context(), cfg.RequestTimeout())
			defer cancel()

			sections := []statusSection{
				{title: "Configuration", lines: []statusLine{
					{label: "Config", state: stateInfo, message: source},
					{label: "Library", state: stateInfo, message: cfg.Paths.LibraryDir},
					{label: "Sync", state: stateInfo, message: cfg.Paths.SyncDir},
				}},
				{title: "Daemon", lines: []statusLine{daemonLine(cfg)}},
				{title: "Queue", lines: []statusLine{queueLine(cmd.Context(), ctx)}},
				{title: "Services", lines: []statusLine{
					serviceLine(probeCtx, ctx, cfg.Movies),
					serviceLine(probeCtx, ctx, cfg.TV),
					usersLine(probeCtx, ctx, cfg),
				}},
			}

			out := cmd.OutOrStdout()
			writeStatus(out, sections, shouldColorize(out))
			return nil
		},
	}
}

// daemonLine reports whether another process holds the instance lock.
func daemonLine(cfg *config.Config) statusLine {
	lock := flock.New(filepath.Join(cfg.Paths.LockDir, "daemon.lock"))
	ok, err := lock.TryLock()
	switch {
	case err != nil:
		return statusLine{label: "Daemon", state: stateWarn, message: err.Error()}
	case ok:
		_ = lock.Unlock()
		return statusLine{label: "Daemon", state: stateInfo, message: "not running"}
	default:
		return statusLine{label: "Daemon", state: stateOK, message: "running"}
	}
}

func queueLine(cmdCtx context.Context, ctx *commandContext) statusLine {
	line := statusLine{label: "Items", state: stateOK, message: "empty"}
	err := ctx.withStore(func(store *queue.Store) error {
		stats, err := store.Stats(cmdCtx)
		if err != nil {
			return err
		}
		total := 0
		var parts []string
		for _, status := range statusOrder {
			if count := stats[status]; count > 0 {
				total += count
				parts = append(parts, fmt.Sprintf("%d %s", count, status))
			}
		}
		if total > 0 {
			line.message = strings.Join(parts, ", ")
		}
		if stats[queue.StatusFailed] > 0 {
			line.state = stateWarn
		}
		return nil
	})
	if err != nil {
		return statusLine{label: "Items", state: stateError, message: err.Error()}
	}
	return line
}

func serviceLine(probeCtx context.Context, ctx *commandContext, service config.Service) statusLine {
	label := service.DisplayName
	if strings.TrimSpace(service.URL) == "" {
		return statusLine{label: label, state: stateInfo, message: "not configured"}
	}
	cfg, _ := ctx.ensureConfig()
	logger, _ := ctx.ensureLogger()
	client := arr.New(service, nil, cfg.RequestTimeout(), logger)
	if err := client.SystemStatus(probeCtx); err != nil {
		return statusLine{label: label, state: stateError, message: err.Error()}
	}
	return statusLine{label: label, state: stateOK, message: service.URL}
}

func usersLine(probeCtx context.Context, ctx *commandContext, cfg *config.Config) statusLine {
	if strings.TrimSpace(cfg.Users.URL) == "" {
		return statusLine{label: "Users", state: stateInfo, message: "not configured"}
	}
	logger, _ := ctx.ensureLogger()
	client, err := overseerr.New(cfg.Users, nil, cfg.RequestTimeout(), logger)
	if err != nil {
		return statusLine{label: "Users", state: stateError, message: err.Error()}
	}
	if err := client.Status(probeCtx); err != nil {
		return statusLine{label: "Users", state: stateError, message: err.Error()}
	}
	return statusLine{label: "Users", state: stateOK, message: cfg.Users.URL}
}
