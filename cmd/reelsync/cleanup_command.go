package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"reelsync/internal/merge"
	"reelsync/internal/pipeline"
)

func newCleanupCommand(ctx *commandContext) *cobra.Command {
	var pathFlag string
	var dryRun bool
	var yes bool

	cmd := &cobra.Command{
		Use:     "cleanup",
		Aliases: []string{"merge"},
		Short:   "Trash orphaned mirror files and reorganize misplaced extras",
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

			if !dryRun && !yes {
				fmt.Fprint(cmd.OutOrStdout(), "Move unbacked mirror files to trash? [y/N] ")
				reader := bufio.NewReader(cmd.InOrStdin())
				answer, _ := reader.ReadString('\n')
				switch strings.ToLower(strings.TrimSpace(answer)) {
				case "y", "yes":
				default:
					fmt.Fprintln(cmd.OutOrStdout(), "Aborted")
					return nil
				}
			}

			// Shares the sync lock; cleanup and mirroring both mutate the
			// sync tree.
			lock, err := locks.Acquire(cmd.Context(), pipeline.LockSync)
			if err != nil {
				return err
			}
			defer lock.Release()

			engine := merge.New(cfg, inspector, logger, dryRun)
			result, err := engine.Run(cmd.Context(), pathFlag)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if dryRun {
				fmt.Fprintln(out, "Dry run: no files were moved")
			}
			fmt.Fprintf(out, "Trashed %d, relocated %d, kept %d, failed %d\n",
				result.Trashed, result.Relocated, result.Kept, result.Failed)
			return nil
		},
	}

	cmd.Flags().StringVarP(&pathFlag, "path", "p", "", "Limit the run to one subtree of the sync directory")
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "Report decisions without moving anything")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}
