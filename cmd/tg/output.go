package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/alfredjeanlab/taskgate/internal/approval"
	"github.com/alfredjeanlab/taskgate/internal/model"
	"github.com/alfredjeanlab/taskgate/internal/ui"
)

const timeLayout = "2006-01-02 15:04:05"

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}

func printTask(w io.Writer, t *model.Task) {
	fmt.Fprintf(w, "ID:           %s\n", t.ID)
	fmt.Fprintf(w, "Title:        %s\n", t.Title)
	fmt.Fprintf(w, "Status:       %s\n", ui.RenderStatus(t.Status))
	fmt.Fprintf(w, "Priority:     %s\n", t.Priority)
	if t.Assignee != "" {
		fmt.Fprintf(w, "Assignee:     %s\n", t.Assignee)
	}
	if t.Description != "" {
		fmt.Fprintf(w, "Description:  %s\n", t.Description)
	}
	if len(t.StakeholderIDs) > 0 {
		fmt.Fprintf(w, "Stakeholders: %s\n", strings.Join(t.StakeholderIDs, ", "))
	}
	fmt.Fprintf(w, "Created By:   %s\n", t.CreatedBy)
	fmt.Fprintf(w, "Created At:   %s\n", t.CreatedAt.Format(timeLayout))
	fmt.Fprintf(w, "Updated At:   %s\n", t.UpdatedAt.Format(timeLayout))
	if t.CompletedAt != nil {
		fmt.Fprintf(w, "Completed At: %s\n", t.CompletedAt.Format(timeLayout))
	}
}

func printTaskList(w io.Writer, tasks []*model.Task, total int) {
	titleWidth := max(20, ui.TerminalWidth(120)-70)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tPRIORITY\tTITLE\tASSIGNEE")
	for _, t := range tasks {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			t.ID,
			ui.RenderStatus(t.Status),
			t.Priority,
			ui.Truncate(t.Title, titleWidth),
			t.Assignee,
		)
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d tasks (%d total)\n", len(tasks), total)
}

func printApproval(w io.Writer, a *model.PendingApproval) {
	fmt.Fprintf(w, "Approval:   %s\n", a.ID)
	fmt.Fprintf(w, "Task:       %s\n", a.TaskID)
	fmt.Fprintf(w, "Transition: %s -> %s\n", ui.RenderStatus(a.FromStatus), ui.RenderStatus(a.ToStatus))
	fmt.Fprintf(w, "Requester:  %s\n", a.RequesterID)
	if a.ReviewType != "" {
		fmt.Fprintf(w, "Review:     %s\n", a.ReviewType)
	}
	if a.Comment != "" {
		fmt.Fprintf(w, "Comment:    %s\n", a.Comment)
	}
	fmt.Fprintf(w, "Outcome:    %s\n", ui.RenderOutcome(a.Outcome))
	fmt.Fprintf(w, "Requested:  %s\n", a.CreatedAt.Format(timeLayout))
	if a.ResolvedAt != nil {
		fmt.Fprintf(w, "Resolved:   %s\n", a.ResolvedAt.Format(timeLayout))
	}
	if len(a.Ballots) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Ballots:")
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, b := range a.Ballots {
		voted := ""
		if b.VotedAt != nil {
			voted = b.VotedAt.Format(timeLayout)
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", b.StakeholderID, ui.RenderVote(b.Vote), voted, b.Comment)
	}
	tw.Flush()
}

func printApprovalList(w io.Writer, approvals []*model.PendingApproval) {
	if len(approvals) == 0 {
		fmt.Fprintln(w, "no approvals")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTASK\tTRANSITION\tREQUESTER\tVOTES\tOUTCOME")
	for _, a := range approvals {
		fmt.Fprintf(tw, "%s\t%s\t%s -> %s\t%s\t%d/%d\t%s\n",
			a.ID,
			a.TaskID,
			a.FromStatus,
			a.ToStatus,
			a.RequesterID,
			approvedCount(a),
			len(a.Ballots),
			ui.RenderOutcome(a.Outcome),
		)
	}
	tw.Flush()
}

func approvedCount(a *model.PendingApproval) int {
	n := 0
	for _, b := range a.Ballots {
		if b.Vote == model.VoteApproved {
			n++
		}
	}
	return n
}

func printHistory(w io.Writer, entries []*model.HistoryEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "no history")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "WHEN\tFROM\tTO\tBY\tREVIEW\tNOTE")
	for _, h := range entries {
		review := ""
		if h.ReviewResult != "" {
			review = string(h.ReviewResult)
		}
		note := h.Comment
		if h.Feedback != "" {
			note = "feedback: " + h.Feedback
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			h.ChangedAt.Format(timeLayout),
			h.FromStatus,
			h.ToStatus,
			h.ChangedBy,
			review,
			note,
		)
	}
	tw.Flush()
}

// printTransitionResult reports what a transition request did.
func printTransitionResult(w io.Writer, res *approval.TransitionResult) {
	switch res.Kind {
	case approval.ResultApplied:
		fmt.Fprintf(w, "%s moved to %s\n", res.Task.ID, ui.RenderStatus(res.Task.Status))
	case approval.ResultNoop:
		fmt.Fprintf(w, "%s is already %s\n", res.Task.ID, ui.RenderStatus(res.Task.Status))
	case approval.ResultPending:
		fmt.Fprintf(w, "approval %s opened: %s -> %s awaits %s\n",
			res.Approval.ID,
			res.Approval.FromStatus,
			res.Approval.ToStatus,
			strings.Join(res.Approval.Roster(), ", "),
		)
	default:
		fmt.Fprintf(w, "%s: %s\n", res.Task.ID, res.Kind)
	}
}

// printBallotResult reports what a vote did.
func printBallotResult(w io.Writer, res *approval.BallotResult) {
	switch res.Kind {
	case approval.ResultApplied:
		fmt.Fprintf(w, "approval %s passed; %s moved to %s\n", res.Approval.ID, res.Task.ID, ui.RenderStatus(res.Task.Status))
	case approval.ResultRejected:
		fmt.Fprintf(w, "approval %s rejected; %s stays %s\n", res.Approval.ID, res.Task.ID, ui.RenderStatus(res.Task.Status))
	default:
		fmt.Fprintf(w, "vote recorded on %s (%d/%d approved)\n", res.Approval.ID, approvedCount(res.Approval), len(res.Approval.Ballots))
	}
}

func printEvent(w io.Writer, e *model.Event) {
	fmt.Fprintf(w, "%s  %-32s %s  %s\n",
		e.CreatedAt.Local().Format(time.TimeOnly),
		e.Topic,
		e.TaskID,
		ui.RenderMuted(e.Actor),
	)
}
