package approval

import (
	"context"
	"fmt"
	"strings"

	"github.com/alfredjeanlab/taskgate/internal/idgen"
	"github.com/alfredjeanlab/taskgate/internal/model"
	"github.com/alfredjeanlab/taskgate/internal/store"
)

// ResultKind says what a request or ballot did to the task.
type ResultKind string

const (
	// ResultApplied means the task's status changed.
	ResultApplied ResultKind = "applied"
	// ResultPending means an approval was opened and awaits votes.
	ResultPending ResultKind = "pending"
	// ResultRejected means a vote rejected the approval; the status is unchanged.
	ResultRejected ResultKind = "rejected"
	// ResultNoop means the requested status was already current.
	ResultNoop ResultKind = "noop"
)

// TransitionRequest asks to move a task to ToStatus.
type TransitionRequest struct {
	TaskID      string
	RequesterID string
	ToStatus    model.Status
	Comment     string
}

// TransitionResult reports the outcome of RequestTransition. Approval is set
// when Kind is ResultPending; History is set when Kind is ResultApplied.
type TransitionResult struct {
	Kind     ResultKind             `json:"kind"`
	Task     *model.Task            `json:"task"`
	Approval *model.PendingApproval `json:"approval,omitempty"`
	History  *model.HistoryEntry    `json:"history,omitempty"`
}

// RequestTransition applies a status change immediately when the task has no
// stakeholders left to ask, and otherwise opens a pending approval whose
// roster is the task's stakeholders at this moment.
//
// Checks run in order: task exists, requester is creator or admin, no
// approval is open, the transition is legal.
func (e *Engine) RequestTransition(ctx context.Context, req TransitionRequest) (*TransitionResult, error) {
	if strings.TrimSpace(req.RequesterID) == "" {
		return nil, fmt.Errorf("%w: requester is required", ErrInvalidInput)
	}

	var result *TransitionResult
	err := e.run(ctx, "request transition", func(tx store.Store) ([]Notification, error) {
		result = nil
		task, err := lockTask(ctx, tx, req.TaskID)
		if err != nil {
			return nil, err
		}
		if !e.authz.IsCreatorOrAdmin(req.RequesterID, task) {
			return nil, fmt.Errorf("%w: %s may not change the status of %s", ErrUnauthorized, req.RequesterID, task.ID)
		}
		open, err := openApproval(ctx, tx, task.ID)
		if err != nil {
			return nil, err
		}
		if open != nil {
			return nil, fmt.Errorf("%w: %s already awaits votes on %s -> %s",
				ErrDuplicatePendingApproval, task.ID, open.FromStatus, open.ToStatus)
		}
		if !model.IsLegal(task.Status, req.ToStatus) {
			return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, task.Status, req.ToStatus)
		}
		if task.Status == req.ToStatus {
			result = &TransitionResult{Kind: ResultNoop, Task: task}
			return nil, nil
		}

		exclude := ""
		if e.excludeRequester {
			exclude = req.RequesterID
		}
		roster := model.NewRoster(task.StakeholderIDs, exclude)
		if len(roster) == 0 {
			return e.applyImmediately(ctx, tx, task, req, &result)
		}
		return e.openApproval(ctx, tx, task, roster, req, &result)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (e *Engine) applyImmediately(ctx context.Context, tx store.Store, task *model.Task, req TransitionRequest, out **TransitionResult) ([]Notification, error) {
	entry := &model.HistoryEntry{
		ToStatus:   req.ToStatus,
		ChangedBy:  req.RequesterID,
		Comment:    req.Comment,
		ReviewType: model.ReviewTypeFor(task.Status),
	}
	if err := e.applyStatus(ctx, tx, task, entry); err != nil {
		return nil, err
	}
	*out = &TransitionResult{Kind: ResultApplied, Task: task, History: entry}
	return []Notification{{
		Kind:    NotifyStatusChanged,
		TaskID:  task.ID,
		Actor:   req.RequesterID,
		Task:    task.Clone(),
		Comment: req.Comment,
		History: entry,
	}}, nil
}

func (e *Engine) openApproval(ctx context.Context, tx store.Store, task *model.Task, roster model.Roster, req TransitionRequest, out **TransitionResult) ([]Notification, error) {
	id, err := e.newID(idgen.ApprovalPrefix)
	if err != nil {
		return nil, fmt.Errorf("approval id: %w", err)
	}
	now := e.now()
	a := &model.PendingApproval{
		ID:          id,
		TaskID:      task.ID,
		FromStatus:  task.Status,
		ToStatus:    req.ToStatus,
		RequesterID: req.RequesterID,
		Comment:     req.Comment,
		ReviewType:  model.ReviewTypeFor(task.Status),
		Outcome:     model.OutcomeOpen,
		CreatedAt:   now,
		Ballots:     make([]*model.Ballot, 0, len(roster)),
	}
	for _, member := range roster {
		bid, err := e.newID(idgen.BallotPrefix)
		if err != nil {
			return nil, fmt.Errorf("ballot id: %w", err)
		}
		a.Ballots = append(a.Ballots, &model.Ballot{
			ID:            bid,
			ApprovalID:    id,
			StakeholderID: member,
			Vote:          model.VotePending,
			CreatedAt:     now,
		})
	}
	if err := tx.CreateApproval(ctx, a); err != nil {
		// ErrConflict from the one-open-approval index is retried by run,
		// and the retry reports the duplicate.
		return nil, fmt.Errorf("create approval: %w", err)
	}
	*out = &TransitionResult{Kind: ResultPending, Task: task, Approval: a}
	return []Notification{{
		Kind:     NotifyApprovalRequested,
		TaskID:   task.ID,
		Actor:    req.RequesterID,
		Task:     task.Clone(),
		Approval: a.Clone(),
		Roster:   roster,
		Comment:  req.Comment,
	}}, nil
}
