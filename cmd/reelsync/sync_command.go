package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"reelsync/internal/pipeline"
	"reelsync/internal/syncer"
)

func newSyncCommand(ctx *commandContext) *cobra.Command {
	var pathFlag string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Mirror the source library into the hardlinked sync tree",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			inspector, err := ctx.inspector()
			if err != nil {
				return err
			}
			locks, err := ctx.lockManager()
			if err != nil {
				return err
			}

			lock, err := locks.Acquire(cmd.Context(), pipeline.LockSync)
			if err != nil {
				return err
			}
			defer lock.Release()

			engine := syncer.New(cfg, inspector, logger, dryRun)
			result, err := engine.Run(cmd.Context(), pathFlag)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if dryRun {
				fmt.Fprintln(out, "Dry run: no links were created")
			}
			fmt.Fprintf(out, "Linked %d, skipped %d, failed %d\n",
				result.Linked, result.Skipped, result.Failed)
			for _, entry := range result.Entries {
				if entry.Truncated {
					fmt.Fprintf(out, "  shortened: %s\n", entry.RelPath)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&pathFlag, "path", "p", "", "Limit the run to one subtree of the library")
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "Report what would be linked without touching the mirror")
	return cmd
}
