package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"reelsync/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the event queue",
	}

	queueCmd.AddCommand(newQueueStatusCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))
	queueCmd.AddCommand(newQueueResetCommand(ctx))

	return queueCmd
}

// statusOrder fixes the stats display to pipeline order.
var statusOrder = []queue.Status{
	queue.StatusPending,
	queue.StatusSyncing,
	queue.StatusSynced,
	queue.StatusReconciling,
	queue.StatusCompleted,
	queue.StatusFailed,
}

func newQueueStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show queue status summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				stats, err := store.Stats(cmd.Context())
				if err != nil {
					return err
				}

				var rows [][]string
				for _, status := range statusOrder {
					if count := stats[status]; count > 0 {
						rows = append(rows, []string{string(status), strconv.Itoa(count)})
					}
				}
				if len(rows) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				table := renderTable([]column{{name: "Status"}, {name: "Count", numeric: true}}, rows)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List queue items",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				items, err := store.List(cmd.Context())
				if err != nil {
					return err
				}
				if len(items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}

				rows := make([][]string, 0, len(items))
				for _, item := range items {
					detail := item.Subpath
					if item.Status == queue.StatusFailed && item.ErrorMessage != "" {
						detail = item.ErrorMessage
					}
					rows = append(rows, []string{
						strconv.FormatInt(item.ID, 10),
						item.SourcePath,
						string(item.Status),
						item.CreatedAt.Format(time.RFC3339),
						detail,
					})
				}
				table := renderTable([]column{
					{name: "ID", numeric: true},
					{name: "Source"},
					{name: "Status"},
					{name: "Created"},
					{name: "Detail"},
				}, rows)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var clearAll bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove finished queue items",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				removed, err := store.Clear(cmd.Context(), clearAll)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d item(s)\n", removed)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&clearAll, "all", false, "Remove every item, including unfinished ones")
	return cmd
}

func newQueueResetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Release items stuck in an in-flight status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				reset, err := store.ResetStuck(cmd.Context(), 0)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Released %d item(s)\n", reset)
				return nil
			})
		},
	}
}
