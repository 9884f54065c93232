package approval

import (
	"context"
	"errors"
	"fmt"

	"github.com/alfredjeanlab/taskgate/internal/model"
	"github.com/alfredjeanlab/taskgate/internal/store"
)

// BallotRequest is one stakeholder's vote on an open approval.
type BallotRequest struct {
	ApprovalID    string
	StakeholderID string
	Vote          model.Vote
	Comment       string
}

// BallotResult reports what a vote did. Kind is ResultApplied when the vote
// completed a unanimous approval, ResultRejected when it rejected the
// approval, and ResultPending when other ballots are still outstanding.
type BallotResult struct {
	Kind     ResultKind             `json:"kind"`
	Task     *model.Task            `json:"task"`
	Approval *model.PendingApproval `json:"approval"`
	Ballot   *model.Ballot          `json:"ballot"`
	History  *model.HistoryEntry    `json:"history,omitempty"`
}

// CastBallot records a vote. A rejection resolves the approval at once and
// leaves the task where it was; the approval that completes a unanimous
// roster applies the requested status.
//
// Exactly one caller finalizes an approval: the vote and the resolution are
// conditional updates, and a caller that loses either race retries from the
// top, where it sees the new state.
func (e *Engine) CastBallot(ctx context.Context, req BallotRequest) (*BallotResult, error) {
	if !req.Vote.IsDecision() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidVote, req.Vote)
	}

	var result *BallotResult
	err := e.run(ctx, "cast ballot", func(tx store.Store) ([]Notification, error) {
		result = nil
		task, a, err := lockApprovalAndTask(ctx, tx, req.ApprovalID)
		if err != nil {
			return nil, err
		}
		if !a.IsOpen() {
			return nil, fmt.Errorf("%w: %s is %s", ErrAlreadyResolved, a.ID, a.Outcome)
		}
		ballot := a.Ballot(req.StakeholderID)
		if ballot == nil {
			return nil, fmt.Errorf("%w: %s is not on the roster of %s", ErrUnauthorized, req.StakeholderID, a.ID)
		}
		if ballot.Vote != model.VotePending {
			return nil, fmt.Errorf("%w: %s voted %s on %s", ErrAlreadyVoted, req.StakeholderID, ballot.Vote, a.ID)
		}

		now := e.now()
		ok, err := tx.RecordVote(ctx, ballot.ID, req.Vote, req.Comment, now)
		if err != nil {
			return nil, fmt.Errorf("record vote: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("ballot %s: %w", ballot.ID, store.ErrConflict)
		}
		ballot.Vote = req.Vote
		ballot.Comment = req.Comment
		ballot.VotedAt = &now

		switch _, rejected, pending := a.Tally(); {
		case rejected > 0:
			return e.finalizeRejected(ctx, tx, task, a, req, &result)
		case pending == 0:
			return e.finalizeApproved(ctx, tx, task, a, req, &result)
		default:
			result = &BallotResult{Kind: ResultPending, Task: task, Approval: a, Ballot: ballot}
			return []Notification{{
				Kind:     NotifyBallotCast,
				TaskID:   task.ID,
				Actor:    req.StakeholderID,
				Task:     task.Clone(),
				Approval: a.Clone(),
				Comment:  req.Comment,
			}}, nil
		}
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// lockApprovalAndTask locks the task row and then the approval row, the
// same order every writer uses.
func lockApprovalAndTask(ctx context.Context, tx store.Store, approvalID string) (*model.Task, *model.PendingApproval, error) {
	peek, err := tx.GetApproval(ctx, approvalID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, notFound("approval", approvalID)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("get approval %s: %w", approvalID, err)
	}
	task, err := lockTask(ctx, tx, peek.TaskID)
	if err != nil {
		return nil, nil, err
	}
	a, err := tx.LockApproval(ctx, approvalID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, notFound("approval", approvalID)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("lock approval %s: %w", approvalID, err)
	}
	return task, a, nil
}

// resolve moves a to outcome, reporting store.ErrConflict if another
// caller resolved it first.
func (e *Engine) resolve(ctx context.Context, tx store.Store, a *model.PendingApproval, outcome model.Outcome) error {
	now := e.now()
	ok, err := tx.ResolveApproval(ctx, a.ID, outcome, now)
	if err != nil {
		return fmt.Errorf("resolve approval %s: %w", a.ID, err)
	}
	if !ok {
		return fmt.Errorf("approval %s: %w", a.ID, store.ErrConflict)
	}
	a.Outcome = outcome
	a.ResolvedAt = &now
	return nil
}

func (e *Engine) finalizeRejected(ctx context.Context, tx store.Store, task *model.Task, a *model.PendingApproval, req BallotRequest, out **BallotResult) ([]Notification, error) {
	if err := e.resolve(ctx, tx, a, model.OutcomeRejected); err != nil {
		return nil, err
	}
	entry := &model.HistoryEntry{
		TaskID:       task.ID,
		ApprovalID:   a.ID,
		FromStatus:   a.FromStatus,
		ToStatus:     a.ToStatus,
		ChangedBy:    a.RequesterID,
		Comment:      a.Comment,
		ReviewType:   a.ReviewType,
		ReviewResult: model.ReviewRejected,
		Feedback:     req.Comment,
		ChangedAt:    *a.ResolvedAt,
	}
	if err := tx.AppendHistory(ctx, entry); err != nil {
		return nil, fmt.Errorf("append history for %s: %w", task.ID, err)
	}
	*out = &BallotResult{Kind: ResultRejected, Task: task, Approval: a, Ballot: a.Ballot(req.StakeholderID), History: entry}
	return []Notification{{
		Kind:     NotifyApprovalRejected,
		TaskID:   task.ID,
		Actor:    req.StakeholderID,
		Task:     task.Clone(),
		Approval: a.Clone(),
		Comment:  req.Comment,
		History:  entry,
	}}, nil
}

func (e *Engine) finalizeApproved(ctx context.Context, tx store.Store, task *model.Task, a *model.PendingApproval, req BallotRequest, out **BallotResult) ([]Notification, error) {
	if err := e.resolve(ctx, tx, a, model.OutcomeApproved); err != nil {
		return nil, err
	}
	entry := &model.HistoryEntry{
		ApprovalID:   a.ID,
		ToStatus:     a.ToStatus,
		ChangedBy:    a.RequesterID,
		Comment:      a.Comment,
		ReviewType:   a.ReviewType,
		ReviewResult: model.ReviewPassed,
	}
	if err := e.applyStatus(ctx, tx, task, entry); err != nil {
		return nil, err
	}
	*out = &BallotResult{Kind: ResultApplied, Task: task, Approval: a, Ballot: a.Ballot(req.StakeholderID), History: entry}
	return []Notification{{
		Kind:     NotifyApprovalApproved,
		TaskID:   task.ID,
		Actor:    req.StakeholderID,
		Task:     task.Clone(),
		Approval: a.Clone(),
		Comment:  req.Comment,
		History:  entry,
	}}, nil
}
