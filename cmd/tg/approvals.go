package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/taskgate/internal/client"
	"github.com/alfredjeanlab/taskgate/internal/idgen"
	"github.com/alfredjeanlab/taskgate/internal/model"
)

// resolveApprovalID accepts an approval ID or a task ID; a task ID resolves
// to the task's open approval.
func resolveApprovalID(ctx context.Context, ref string) (string, error) {
	if strings.HasPrefix(ref, idgen.ApprovalPrefix) {
		return ref, nil
	}
	open, err := approvalClient.GetApprovalState(ctx, ref)
	if err != nil {
		return "", fmt.Errorf("getting approval state for %s: %w", ref, err)
	}
	if open == nil {
		return "", fmt.Errorf("%s has no open approval", ref)
	}
	return open.ID, nil
}

var moveCmd = &cobra.Command{
	Use:     "move <task-id> <status>",
	Short:   "Request a status change (opens an approval when the task has stakeholders)",
	GroupID: "workflow",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		comment, _ := cmd.Flags().GetString("comment")

		res, err := approvalClient.RequestTransition(context.Background(), &client.TransitionRequest{
			TaskID:   args[0],
			Actor:    actor,
			ToStatus: model.Status(args[1]),
			Comment:  comment,
		})
		if err != nil {
			return fmt.Errorf("moving %s to %s: %w", args[0], args[1], err)
		}

		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), res)
		}
		printTransitionResult(cmd.OutOrStdout(), res)
		return nil
	},
}

// voteCmd builds approve and reject, which differ only in the vote cast.
func voteCmd(use, short string, vote model.Vote) *cobra.Command {
	c := &cobra.Command{
		Use:     use + " <approval-id|task-id>",
		Short:   short,
		GroupID: "workflow",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			comment, _ := cmd.Flags().GetString("comment")

			id, err := resolveApprovalID(ctx, args[0])
			if err != nil {
				return err
			}
			res, err := approvalClient.CastBallot(ctx, &client.BallotRequest{
				ApprovalID: id,
				Actor:      actor,
				Vote:       vote,
				Comment:    comment,
			})
			if err != nil {
				return fmt.Errorf("voting on %s: %w", id, err)
			}

			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), res)
			}
			printBallotResult(cmd.OutOrStdout(), res)
			return nil
		},
	}
	c.Flags().StringP("comment", "m", "", "comment recorded with the vote")
	return c
}

var (
	approveCmd = voteCmd("approve", "Approve a pending status change", model.VoteApproved)
	rejectCmd  = voteCmd("reject", "Reject a pending status change", model.VoteRejected)
)

var cancelCmd = &cobra.Command{
	Use:     "cancel <approval-id|task-id>",
	Short:   "Withdraw your own pending approval",
	GroupID: "workflow",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		id, err := resolveApprovalID(ctx, args[0])
		if err != nil {
			return err
		}
		a, err := approvalClient.CancelApproval(ctx, id, actor)
		if err != nil {
			return fmt.Errorf("cancelling %s: %w", id, err)
		}

		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), a)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "approval %s cancelled; %s stays %s\n", a.ID, a.TaskID, a.FromStatus)
		return nil
	},
}

var approvalCmd = &cobra.Command{
	Use:     "approval <approval-id|task-id>",
	Short:   "Show an approval and its ballots",
	Long:    "Shows an approval by ID. Given a task ID, shows the task's open approval, or with --all every approval on the task.",
	GroupID: "workflow",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		ref := args[0]
		all, _ := cmd.Flags().GetBool("all")
		w := cmd.OutOrStdout()

		if all && !strings.HasPrefix(ref, idgen.ApprovalPrefix) {
			list, err := apiClient.ListApprovals(ctx, ref)
			if err != nil {
				return fmt.Errorf("listing approvals for %s: %w", ref, err)
			}
			if jsonOutput {
				return printJSON(w, list)
			}
			printApprovalList(w, list)
			return nil
		}

		var (
			a   *model.PendingApproval
			err error
		)
		if strings.HasPrefix(ref, idgen.ApprovalPrefix) {
			a, err = apiClient.GetApproval(ctx, ref)
		} else {
			a, err = approvalClient.GetApprovalState(ctx, ref)
		}
		if err != nil {
			return fmt.Errorf("getting approval %s: %w", ref, err)
		}

		if jsonOutput {
			return printJSON(w, a)
		}
		if a == nil {
			fmt.Fprintf(w, "%s has no open approval\n", ref)
			return nil
		}
		printApproval(w, a)
		return nil
	},
}

var pendingCmd = &cobra.Command{
	Use:     "pending [member]",
	Short:   "List open approvals waiting on a member's vote (defaults to --actor)",
	GroupID: "workflow",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		member := actor
		if len(args) == 1 {
			member = args[0]
		}
		list, err := apiClient.PendingApprovals(context.Background(), member)
		if err != nil {
			return fmt.Errorf("pending approvals for %s: %w", member, err)
		}

		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), list)
		}
		printApprovalList(cmd.OutOrStdout(), list)
		return nil
	},
}

func init() {
	moveCmd.Flags().StringP("comment", "m", "", "reason for the change")
	approvalCmd.Flags().Bool("all", false, "list every approval on the task, newest first")
}
