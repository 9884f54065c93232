package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/taskgate/internal/model"
	"github.com/alfredjeanlab/taskgate/internal/ui"
)

var historyCmd = &cobra.Command{
	Use:     "history <task-id>",
	Short:   "Show a task's status history",
	GroupID: "audit",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		id := args[0]
		withEvents, _ := cmd.Flags().GetBool("events")

		entries, err := apiClient.GetHistory(ctx, id)
		if err != nil {
			return fmt.Errorf("getting history for %s: %w", id, err)
		}
		var evs []*model.Event
		if withEvents {
			if evs, err = apiClient.GetEvents(ctx, id); err != nil {
				return fmt.Errorf("getting events for %s: %w", id, err)
			}
		}

		w := cmd.OutOrStdout()
		if jsonOutput {
			if withEvents {
				return printJSON(w, map[string]any{"history": entries, "events": evs})
			}
			return printJSON(w, entries)
		}
		printHistory(w, entries)
		if withEvents && len(evs) > 0 {
			fmt.Fprintln(w)
			fmt.Fprintln(w, "Events:")
			for _, e := range evs {
				printEvent(w, e)
			}
		}
		return nil
	},
}

var transitionsCmd = &cobra.Command{
	Use:     "transitions [task-id]",
	Short:   "Show the status graph, or where a task may move next",
	GroupID: "audit",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		w := cmd.OutOrStdout()

		if len(args) == 1 {
			allowed, err := apiClient.AllowedTransitions(ctx, args[0])
			if err != nil {
				return fmt.Errorf("transitions for %s: %w", args[0], err)
			}
			if jsonOutput {
				return printJSON(w, allowed)
			}
			fmt.Fprintf(w, "%s -> %s\n", ui.RenderStatus(allowed.Status), joinStatuses(allowed.Allowed))
			return nil
		}

		table, err := apiClient.TransitionTable(ctx)
		if err != nil {
			return fmt.Errorf("transition table: %w", err)
		}
		if jsonOutput {
			return printJSON(w, table)
		}
		for _, from := range table.Statuses {
			fmt.Fprintf(w, "%-14s -> %s\n", from, joinStatuses(table.Transitions[from]))
		}
		return nil
	},
}

func joinStatuses(ss []model.Status) string {
	if len(ss) == 0 {
		return ui.RenderMuted("(none)")
	}
	parts := make([]string, len(ss))
	for i, s := range ss {
		parts[i] = ui.RenderStatus(s)
	}
	return strings.Join(parts, ", ")
}

var healthCmd = &cobra.Command{
	Use:     "health",
	Short:   "Check server health",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := apiClient.Health(context.Background())
		if err != nil {
			return fmt.Errorf("health check: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), status)
		return nil
	},
}

func init() {
	historyCmd.Flags().Bool("events", false, "also list recorded events")
}
