package approval

import (
	"context"
	"errors"
	"fmt"

	"github.com/alfredjeanlab/taskgate/internal/model"
	"github.com/alfredjeanlab/taskgate/internal/store"
)

// GetTask returns a task by ID.
func (e *Engine) GetTask(ctx context.Context, id string) (*model.Task, error) {
	task, err := e.store.GetTask(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFound("task", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	return task, nil
}

// ListTasks returns the tasks matching filter and the total match count.
func (e *Engine) ListTasks(ctx context.Context, filter model.TaskFilter) ([]*model.Task, int, error) {
	tasks, total, err := e.store.ListTasks(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, total, nil
}

// GetApprovalState returns the open approval on a task with its ballots,
// or nil when none is open.
func (e *Engine) GetApprovalState(ctx context.Context, taskID string) (*model.PendingApproval, error) {
	if _, err := e.GetTask(ctx, taskID); err != nil {
		return nil, err
	}
	return openApproval(ctx, e.store, taskID)
}

// GetApproval returns an approval by ID, open or resolved.
func (e *Engine) GetApproval(ctx context.Context, id string) (*model.PendingApproval, error) {
	a, err := e.store.GetApproval(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFound("approval", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get approval %s: %w", id, err)
	}
	return a, nil
}

// ListApprovals returns every approval on a task, newest first.
func (e *Engine) ListApprovals(ctx context.Context, taskID string) ([]*model.PendingApproval, error) {
	list, err := e.store.ListApprovals(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("list approvals: %w", err)
	}
	return list, nil
}

// PendingForStakeholder returns the open approvals on which stakeholderID
// still owes a vote.
func (e *Engine) PendingForStakeholder(ctx context.Context, stakeholderID string) ([]*model.PendingApproval, error) {
	list, err := e.store.ListOpenApprovalsForStakeholder(ctx, stakeholderID)
	if err != nil {
		return nil, fmt.Errorf("pending approvals for %s: %w", stakeholderID, err)
	}
	return list, nil
}

// History returns the status history of a task, oldest first. History
// outlives the task, so a deleted task's ID still returns its rows.
func (e *Engine) History(ctx context.Context, taskID string) ([]*model.HistoryEntry, error) {
	entries, err := e.store.GetHistory(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("history for %s: %w", taskID, err)
	}
	return entries, nil
}

// AllowedTransitions returns the statuses reachable in one step from the
// task's current status.
func (e *Engine) AllowedTransitions(ctx context.Context, taskID string) ([]model.Status, error) {
	task, err := e.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return model.AllowedTransitions(task.Status), nil
}
