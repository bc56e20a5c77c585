package main

import (
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"reelsync/internal/daemon"
	"reelsync/internal/logging"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Watch the library and run the sync/reconcile pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			level := cfg.Logging.Level
			if ctx.verboseFlag != nil && *ctx.verboseFlag {
				level = "debug"
			}
			logger, err := logging.New(logging.Options{
				Level:       level,
				Format:      cfg.Logging.Format,
				OutputPaths: []string{"stderr", filepath.Join(cfg.Paths.LogDir, "reelsync.log")},
			})
			if err != nil {
				return err
			}

			d, err := daemon.New(cfg, logger)
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return d.Run(runCtx)
		},
	}
}
