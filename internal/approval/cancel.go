package approval

import (
	"context"
	"fmt"

	"github.com/alfredjeanlab/taskgate/internal/model"
	"github.com/alfredjeanlab/taskgate/internal/store"
)

// CancelPendingApproval withdraws an open approval. Only its requester may
// cancel it. The task keeps its status, ballots are kept as cast, and no
// history row is written; the cancellation is audited as an event.
func (e *Engine) CancelPendingApproval(ctx context.Context, approvalID, requesterID string) (*model.PendingApproval, error) {
	var cancelled *model.PendingApproval
	err := e.run(ctx, "cancel approval", func(tx store.Store) ([]Notification, error) {
		cancelled = nil
		task, a, err := lockApprovalAndTask(ctx, tx, approvalID)
		if err != nil {
			return nil, err
		}
		if a.RequesterID != requesterID {
			return nil, fmt.Errorf("%w: only %s may cancel %s", ErrUnauthorized, a.RequesterID, a.ID)
		}
		if !a.IsOpen() {
			return nil, fmt.Errorf("%w: %s is %s", ErrAlreadyResolved, a.ID, a.Outcome)
		}
		if err := e.resolve(ctx, tx, a, model.OutcomeCancelled); err != nil {
			return nil, err
		}
		cancelled = a
		return []Notification{{
			Kind:     NotifyApprovalCancelled,
			TaskID:   task.ID,
			Actor:    requesterID,
			Task:     task.Clone(),
			Approval: a.Clone(),
			Roster:   a.Roster(),
		}}, nil
	})
	if err != nil {
		return nil, err
	}
	return cancelled, nil
}
