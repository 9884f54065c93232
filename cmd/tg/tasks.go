package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/taskgate/internal/client"
	"github.com/alfredjeanlab/taskgate/internal/model"
)

var createCmd = &cobra.Command{
	Use:     "create <title>",
	Short:   "Create a new task",
	GroupID: "tasks",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		description, _ := cmd.Flags().GetString("description")
		priority, _ := cmd.Flags().GetString("priority")
		assignee, _ := cmd.Flags().GetString("assignee")
		stakeholders, _ := cmd.Flags().GetStringSlice("stakeholder")

		task, err := apiClient.CreateTask(context.Background(), &client.CreateTaskRequest{
			Title:          args[0],
			Description:    description,
			Priority:       model.Priority(priority),
			Assignee:       assignee,
			CreatedBy:      actor,
			StakeholderIDs: stakeholders,
		})
		if err != nil {
			return fmt.Errorf("creating task: %w", err)
		}

		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), task)
		}
		printTask(cmd.OutOrStdout(), task)
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:     "show <id>",
	Short:   "Show details of a task",
	GroupID: "tasks",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		id := args[0]

		task, err := apiClient.GetTask(ctx, id)
		if err != nil {
			return fmt.Errorf("getting task %s: %w", id, err)
		}
		open, err := approvalClient.GetApprovalState(ctx, id)
		if err != nil {
			return fmt.Errorf("getting approval state for %s: %w", id, err)
		}

		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), map[string]any{"task": task, "approval": open})
		}
		w := cmd.OutOrStdout()
		printTask(w, task)
		if open != nil {
			fmt.Fprintln(w)
			printApproval(w, open)
		}
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:     "list",
	Short:   "List tasks",
	GroupID: "tasks",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		statuses, _ := cmd.Flags().GetStringSlice("status")
		priorities, _ := cmd.Flags().GetStringSlice("priority")
		assignee, _ := cmd.Flags().GetString("assignee")
		createdBy, _ := cmd.Flags().GetString("created-by")
		stakeholder, _ := cmd.Flags().GetString("stakeholder")
		search, _ := cmd.Flags().GetString("search")
		sort, _ := cmd.Flags().GetString("sort")
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		req := &client.ListTasksRequest{
			Assignee:    assignee,
			CreatedBy:   createdBy,
			Stakeholder: stakeholder,
			Search:      search,
			Sort:        sort,
			Limit:       limit,
			Offset:      offset,
		}
		for _, s := range statuses {
			req.Status = append(req.Status, model.Status(s))
		}
		for _, p := range priorities {
			req.Priority = append(req.Priority, model.Priority(p))
		}

		resp, err := apiClient.ListTasks(context.Background(), req)
		if err != nil {
			return fmt.Errorf("listing tasks: %w", err)
		}

		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), resp)
		}
		printTaskList(cmd.OutOrStdout(), resp.Tasks, resp.Total)
		return nil
	},
}

var updateCmd = &cobra.Command{
	Use:     "update <id>",
	Short:   "Update a task's fields (status changes go through 'tg move')",
	GroupID: "tasks",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := &client.UpdateTaskRequest{Actor: actor}

		if cmd.Flags().Changed("title") {
			v, _ := cmd.Flags().GetString("title")
			req.Title = &v
		}
		if cmd.Flags().Changed("description") {
			v, _ := cmd.Flags().GetString("description")
			req.Description = &v
		}
		if cmd.Flags().Changed("priority") {
			v, _ := cmd.Flags().GetString("priority")
			p := model.Priority(v)
			req.Priority = &p
		}
		if cmd.Flags().Changed("assignee") {
			v, _ := cmd.Flags().GetString("assignee")
			req.Assignee = &v
		}

		task, err := apiClient.UpdateTask(context.Background(), args[0], req)
		if err != nil {
			return fmt.Errorf("updating task %s: %w", args[0], err)
		}

		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), task)
		}
		printTask(cmd.OutOrStdout(), task)
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:     "delete <id>...",
	Short:   "Delete one or more tasks",
	GroupID: "tasks",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, id := range args {
			if err := apiClient.DeleteTask(context.Background(), id, actor); err != nil {
				return fmt.Errorf("deleting task %s: %w", id, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", id)
		}
		return nil
	},
}

var stakeholdersCmd = &cobra.Command{
	Use:     "stakeholders <id> [member...]",
	Short:   "Show or replace a task's stakeholders",
	Long:    "With only a task ID, prints the stakeholders. Otherwise replaces them; use --clear to remove all.",
	GroupID: "tasks",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		id, members := args[0], args[1:]
		clearAll, _ := cmd.Flags().GetBool("clear")

		var (
			task *model.Task
			err  error
		)
		if len(members) == 0 && !clearAll {
			task, err = apiClient.GetTask(ctx, id)
		} else {
			task, err = apiClient.SetStakeholders(ctx, id, actor, members)
		}
		if err != nil {
			return fmt.Errorf("stakeholders for %s: %w", id, err)
		}

		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), task.StakeholderIDs)
		}
		if len(task.StakeholderIDs) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "%s has no stakeholders\n", id)
			return nil
		}
		for _, s := range task.StakeholderIDs {
			fmt.Fprintln(cmd.OutOrStdout(), s)
		}
		return nil
	},
}

func init() {
	createCmd.Flags().StringP("description", "d", "", "task description")
	createCmd.Flags().StringP("priority", "p", string(model.PriorityMedium), "priority (low, medium, high, urgent)")
	createCmd.Flags().String("assignee", "", "assignee")
	createCmd.Flags().StringSliceP("stakeholder", "s", nil, "stakeholder member IDs (repeatable)")

	listCmd.Flags().StringSlice("status", nil, "filter by status (repeatable)")
	listCmd.Flags().StringSlice("priority", nil, "filter by priority (repeatable)")
	listCmd.Flags().String("assignee", "", "filter by assignee")
	listCmd.Flags().String("created-by", "", "filter by creator")
	listCmd.Flags().String("stakeholder", "", "filter by stakeholder")
	listCmd.Flags().String("search", "", "substring match on title or description")
	listCmd.Flags().String("sort", "", "sort column, prefix '-' for descending")
	listCmd.Flags().Int("limit", 50, "maximum number of results")
	listCmd.Flags().Int("offset", 0, "number of results to skip")

	updateCmd.Flags().String("title", "", "new title")
	updateCmd.Flags().StringP("description", "d", "", "new description")
	updateCmd.Flags().StringP("priority", "p", "", "new priority")
	updateCmd.Flags().String("assignee", "", "new assignee")

	stakeholdersCmd.Flags().Bool("clear", false, "remove every stakeholder")
}
