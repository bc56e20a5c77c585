package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"reelsync/internal/pipeline"
	"reelsync/internal/reconcile"
)

func newReconcileCommand(ctx *commandContext) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "reconcile <subpath>",
		Short: "Import one sync subpath through its managed service",
		Long: "Reconcile runs a manual-import pass for the given subpath below the sync\n" +
			"directory, for example \"Movies/Heat (1995)\". The first path segment selects\n" +
			"the managed service.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			locks, err := ctx.lockManager()
			if err != nil {
				return err
			}

			lock, err := locks.Acquire(cmd.Context(), pipeline.LockReconcile)
			if err != nil {
				return err
			}
			defer lock.Release()

			engine := reconcile.New(cfg, nil, logger, dryRun)
			report, err := engine.Run(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Service: %s\n", report.Service)
			fmt.Fprintf(out, "Accepted %d, dropped %d\n", len(report.Accepted), len(report.Dropped))
			for _, dropped := range report.Dropped {
				fmt.Fprintf(out, "  dropped %s: %s\n", dropped.Path, dropped.Reason)
			}
			switch {
			case dryRun:
				fmt.Fprintln(out, "Dry run: import command not submitted")
			case report.Imported:
				fmt.Fprintln(out, "Import command submitted")
			default:
				fmt.Fprintln(out, "Nothing to import")
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "Discover and validate without importing")
	return cmd
}
