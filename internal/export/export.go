// Package export writes periodic JSONL snapshots of the audit trail (tasks,
// approvals with their ballots, and status history) to external
// destinations.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/alfredjeanlab/taskgate/internal/model"
	"github.com/alfredjeanlab/taskgate/internal/store"
)

// Version is the snapshot format version written in the header.
const Version = "1"

// Header is the first JSONL record of a snapshot.
type Header struct {
	Version       string    `json:"version"`
	Type          string    `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	TaskCount     int       `json:"task_count"`
	ApprovalCount int       `json:"approval_count"`
	HistoryCount  int       `json:"history_count"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// WriteJSONL writes a snapshot of s to w: a header, then tasks sorted by
// ID, then each task's approvals oldest first, then the full history
// including rows of deleted tasks.
func WriteJSONL(ctx context.Context, s store.Store, w io.Writer, now time.Time) error {
	tasks, _, err := s.ListTasks(ctx, model.TaskFilter{Sort: "created_at"})
	if err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })

	var approvals []*model.PendingApproval
	for _, t := range tasks {
		list, err := s.ListApprovals(ctx, t.ID)
		if err != nil {
			return fmt.Errorf("list approvals for %s: %w", t.ID, err)
		}
		// ListApprovals is newest first.
		for i := len(list) - 1; i >= 0; i-- {
			approvals = append(approvals, list[i])
		}
	}

	history, err := s.ListAllHistory(ctx)
	if err != nil {
		return fmt.Errorf("list history: %w", err)
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(Header{
		Version:       Version,
		Type:          "header",
		Timestamp:     now.UTC(),
		TaskCount:     len(tasks),
		ApprovalCount: len(approvals),
		HistoryCount:  len(history),
	}); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}
	for _, t := range tasks {
		if err := enc.Encode(record{Type: "task", Data: t}); err != nil {
			return fmt.Errorf("encode task %s: %w", t.ID, err)
		}
	}
	for _, a := range approvals {
		if err := enc.Encode(record{Type: "approval", Data: a}); err != nil {
			return fmt.Errorf("encode approval %s: %w", a.ID, err)
		}
	}
	for _, h := range history {
		if err := enc.Encode(record{Type: "history", Data: h}); err != nil {
			return fmt.Errorf("encode history %d: %w", h.ID, err)
		}
	}
	return nil
}
