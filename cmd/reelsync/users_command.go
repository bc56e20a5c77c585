package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"reelsync/internal/services/overseerr"
)

func newUsersCommand(ctx *commandContext) *cobra.Command {
	usersCmd := &cobra.Command{
		Use:   "users",
		Short: "Manage request-manager user accounts",
	}
	usersCmd.AddCommand(newUsersSyncCommand(ctx))
	return usersCmd
}

func newUsersSyncCommand(ctx *commandContext) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Import missing media-server accounts and reset their passwords",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			provisioner, err := overseerr.NewProvisioner(cfg, nil, logger, dryRun)
			if err != nil {
				return err
			}
			report, err := provisioner.Run(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if dryRun {
				fmt.Fprintln(out, "Dry run: no accounts were changed")
			}
			fmt.Fprintf(out, "Media-server accounts: %d\n", report.MediaUsers)
			fmt.Fprintf(out, "Imported %d, passwords reset %d, failures %d\n",
				report.Imported, report.Resets, report.Failures)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "Report missing accounts without importing")
	return cmd
}
