package approval

import (
	"context"
	"fmt"
	"strings"

	"github.com/alfredjeanlab/taskgate/internal/idgen"
	"github.com/alfredjeanlab/taskgate/internal/model"
	"github.com/alfredjeanlab/taskgate/internal/store"
)

// NewTask holds the fields accepted when creating a task. New tasks start
// in todo.
type NewTask struct {
	Title          string
	Description    string
	Priority       model.Priority
	Assignee       string
	CreatedBy      string
	StakeholderIDs []string
}

// TaskUpdate holds the editable fields of a task; nil fields are left
// unchanged. Status is not editable here, it only moves through
// RequestTransition.
type TaskUpdate struct {
	Title       *string
	Description *string
	Priority    *model.Priority
	Assignee    *string
}

// CreateTask validates and stores a new task in todo. No history row is
// written for creation.
func (e *Engine) CreateTask(ctx context.Context, in NewTask) (*model.Task, error) {
	id, err := e.newID(idgen.TaskPrefix)
	if err != nil {
		return nil, fmt.Errorf("task id: %w", err)
	}
	if in.Priority == "" {
		in.Priority = model.PriorityMedium
	}
	now := e.now()
	task := &model.Task{
		ID:             id,
		Title:          strings.TrimSpace(in.Title),
		Description:    in.Description,
		Status:         model.StatusTodo,
		Priority:       in.Priority,
		Assignee:       in.Assignee,
		CreatedBy:      in.CreatedBy,
		CreatedAt:      now,
		UpdatedAt:      now,
		StakeholderIDs: model.NewRoster(in.StakeholderIDs, ""),
	}
	if err := validate(task); err != nil {
		return nil, err
	}

	err = e.run(ctx, "create task", func(tx store.Store) ([]Notification, error) {
		if err := tx.CreateTask(ctx, task); err != nil {
			return nil, fmt.Errorf("create task: %w", err)
		}
		return []Notification{{
			Kind:   NotifyTaskCreated,
			TaskID: task.ID,
			Actor:  task.CreatedBy,
			Task:   task.Clone(),
		}}, nil
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// UpdateTask edits a task's fields. It fails with ErrTaskLocked while an
// approval is open on the task.
func (e *Engine) UpdateTask(ctx context.Context, taskID, actorID string, upd TaskUpdate) (*model.Task, error) {
	var updated *model.Task
	err := e.run(ctx, "update task", func(tx store.Store) ([]Notification, error) {
		updated = nil
		task, err := e.lockForEdit(ctx, tx, taskID, actorID)
		if err != nil {
			return nil, err
		}
		if upd.Title != nil {
			task.Title = strings.TrimSpace(*upd.Title)
		}
		if upd.Description != nil {
			task.Description = *upd.Description
		}
		if upd.Priority != nil {
			task.Priority = *upd.Priority
		}
		if upd.Assignee != nil {
			task.Assignee = *upd.Assignee
		}
		if err := validate(task); err != nil {
			return nil, err
		}
		task.UpdatedAt = e.now()
		if err := tx.UpdateTask(ctx, task); err != nil {
			return nil, fmt.Errorf("update task %s: %w", task.ID, err)
		}
		updated = task
		return []Notification{{
			Kind:   NotifyTaskUpdated,
			TaskID: task.ID,
			Actor:  actorID,
			Task:   task.Clone(),
		}}, nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// SetStakeholders replaces a task's stakeholder set. Open approvals keep the
// roster they were created with, so the set cannot change while one is open.
func (e *Engine) SetStakeholders(ctx context.Context, taskID, actorID string, stakeholderIDs []string) (*model.Task, error) {
	ids := model.NewRoster(stakeholderIDs, "")
	var updated *model.Task
	err := e.run(ctx, "set stakeholders", func(tx store.Store) ([]Notification, error) {
		updated = nil
		task, err := e.lockForEdit(ctx, tx, taskID, actorID)
		if err != nil {
			return nil, err
		}
		if err := tx.SetStakeholders(ctx, task.ID, ids); err != nil {
			return nil, fmt.Errorf("set stakeholders on %s: %w", task.ID, err)
		}
		task.StakeholderIDs = ids
		task.UpdatedAt = e.now()
		if err := tx.UpdateTask(ctx, task); err != nil {
			return nil, fmt.Errorf("update task %s: %w", task.ID, err)
		}
		updated = task
		return []Notification{{
			Kind:   NotifyTaskUpdated,
			TaskID: task.ID,
			Actor:  actorID,
			Task:   task.Clone(),
		}}, nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteTask removes a task and its closed approvals. History rows are kept.
// It fails with ErrTaskLocked while an approval is open on the task.
func (e *Engine) DeleteTask(ctx context.Context, taskID, actorID string) error {
	return e.run(ctx, "delete task", func(tx store.Store) ([]Notification, error) {
		task, err := e.lockForEdit(ctx, tx, taskID, actorID)
		if err != nil {
			return nil, err
		}
		if err := tx.DeleteTask(ctx, task.ID); err != nil {
			return nil, fmt.Errorf("delete task %s: %w", task.ID, err)
		}
		return []Notification{{
			Kind:   NotifyTaskDeleted,
			TaskID: task.ID,
			Actor:  actorID,
			Task:   task,
		}}, nil
	})
}

// lockForEdit locks the task and enforces the mutation guard: the actor
// must be the creator or an admin, and no approval may be open.
func (e *Engine) lockForEdit(ctx context.Context, tx store.Store, taskID, actorID string) (*model.Task, error) {
	task, err := lockTask(ctx, tx, taskID)
	if err != nil {
		return nil, err
	}
	if !e.authz.IsCreatorOrAdmin(actorID, task) {
		return nil, fmt.Errorf("%w: %s may not edit %s", ErrUnauthorized, actorID, task.ID)
	}
	open, err := openApproval(ctx, tx, task.ID)
	if err != nil {
		return nil, err
	}
	if open != nil {
		return nil, fmt.Errorf("%w: %s awaits votes on %s -> %s (%s)",
			ErrTaskLocked, task.ID, open.FromStatus, open.ToStatus, open.ID)
	}
	return task, nil
}

// validate runs model validation, tagging failures as ErrInvalidInput while
// keeping the *model.ValidationError reachable through errors.As.
func validate(task *model.Task) error {
	if err := model.ValidateTask(task); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return nil
}
