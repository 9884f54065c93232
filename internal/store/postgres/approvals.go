package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/alfredjeanlab/taskgate/internal/model"
	"github.com/alfredjeanlab/taskgate/internal/store"
)

// approvalColumns is the column list used for SELECT statements on pending_approvals.
const approvalColumns = `id, task_id, from_status, to_status, requester_id,
	comment, review_type, outcome, created_at, resolved_at`

const ballotColumns = `id, approval_id, stakeholder_id, vote, comment, created_at, voted_at`

// queryCreateApproval inserts the approval row and one row per ballot. A
// concurrent open approval on the same task trips the partial unique index
// and surfaces as store.ErrConflict.
func queryCreateApproval(ctx context.Context, db executor, a *model.PendingApproval) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO pending_approvals (
			id, task_id, from_status, to_status, requester_id,
			comment, review_type, outcome, created_at, resolved_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		a.ID,
		a.TaskID,
		string(a.FromStatus),
		string(a.ToStatus),
		a.RequesterID,
		a.Comment,
		nullString(string(a.ReviewType)),
		string(a.Outcome),
		a.CreatedAt,
		nullTimePtr(a.ResolvedAt),
	)
	if err != nil {
		return mapError(err)
	}

	for _, b := range a.Ballots {
		if _, err := db.ExecContext(ctx, `
			INSERT INTO ballots (`+ballotColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			b.ID,
			a.ID,
			b.StakeholderID,
			string(b.Vote),
			b.Comment,
			b.CreatedAt,
			nullTimePtr(b.VotedAt),
		); err != nil {
			return mapError(err)
		}
	}
	return nil
}

// queryGetApproval loads an approval with its ballots. With lock set the
// approval row is locked FOR UPDATE, which serializes voters and the
// requester on the same approval.
func queryGetApproval(ctx context.Context, db executor, id string, lock bool) (*model.PendingApproval, error) {
	q := `SELECT ` + approvalColumns + ` FROM pending_approvals WHERE id = $1`
	if lock {
		q += ` FOR UPDATE`
	}
	a, err := scanApproval(db.QueryRowContext(ctx, q, id))
	if err != nil {
		return nil, mapError(err)
	}
	if a.Ballots, err = queryGetBallots(ctx, db, a.ID); err != nil {
		return nil, err
	}
	return a, nil
}

func queryGetOpenApproval(ctx context.Context, db executor, taskID string) (*model.PendingApproval, error) {
	a, err := scanApproval(db.QueryRowContext(ctx, `
		SELECT `+approvalColumns+` FROM pending_approvals
		WHERE task_id = $1 AND outcome = 'open'`,
		taskID,
	))
	if err != nil {
		return nil, mapError(err)
	}
	if a.Ballots, err = queryGetBallots(ctx, db, a.ID); err != nil {
		return nil, err
	}
	return a, nil
}

func queryGetBallots(ctx context.Context, db executor, approvalID string) ([]*model.Ballot, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+ballotColumns+` FROM ballots
		WHERE approval_id = $1
		ORDER BY created_at ASC, stakeholder_id ASC`,
		approvalID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBallots(rows)
}

// queryListApprovals returns every approval for a task, newest first. An
// empty taskID lists approvals across all tasks.
func queryListApprovals(ctx context.Context, db executor, taskID string) ([]*model.PendingApproval, error) {
	q := `SELECT ` + approvalColumns + ` FROM pending_approvals`
	var args []any
	if taskID != "" {
		q += ` WHERE task_id = $1`
		args = append(args, taskID)
	}
	q += ` ORDER BY created_at DESC, id DESC`
	return queryApprovalsWithBallots(ctx, db, q, args...)
}

func queryListOpenApprovalsForStakeholder(ctx context.Context, db executor, stakeholderID string) ([]*model.PendingApproval, error) {
	return queryApprovalsWithBallots(ctx, db, `
		SELECT `+approvalColumns+` FROM pending_approvals pa
		WHERE pa.outcome = 'open'
		  AND EXISTS (
			SELECT 1 FROM ballots b
			WHERE b.approval_id = pa.id AND b.stakeholder_id = $1 AND b.vote = 'pending'
		  )
		ORDER BY pa.created_at DESC, pa.id DESC`,
		stakeholderID,
	)
}

func queryApprovalsWithBallots(ctx context.Context, db executor, q string, args ...any) ([]*model.PendingApproval, error) {
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list approvals: %w", err)
	}
	var approvals []*model.PendingApproval
	for rows.Next() {
		a, err := scanApproval(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan approvals: %w", err)
		}
		approvals = append(approvals, a)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("scan approvals: %w", err)
	}
	rows.Close()

	for _, a := range approvals {
		if a.Ballots, err = queryGetBallots(ctx, db, a.ID); err != nil {
			return nil, fmt.Errorf("ballots for %s: %w", a.ID, err)
		}
	}
	return approvals, nil
}

// queryRecordVote moves a ballot out of pending. The vote = 'pending' guard
// makes it a compare-and-swap: it reports false when another writer already
// recorded a vote on this ballot.
func queryRecordVote(ctx context.Context, db executor, ballotID string, vote model.Vote, comment string, at time.Time) (bool, error) {
	res, err := db.ExecContext(ctx, `
		UPDATE ballots SET vote = $2, comment = $3, voted_at = $4
		WHERE id = $1 AND vote = 'pending'`,
		ballotID, string(vote), comment, at,
	)
	if err != nil {
		return false, mapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if n == 1 {
		return true, nil
	}
	// Distinguish "already voted" from "no such ballot".
	var exists bool
	if err := db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM ballots WHERE id = $1)`, ballotID).Scan(&exists); err != nil {
		return false, mapError(err)
	}
	if !exists {
		return false, store.ErrNotFound
	}
	return false, nil
}

// queryResolveApproval closes an open approval. The outcome = 'open' guard
// makes it a compare-and-swap; only the caller that sees true may apply the
// finalize side effects.
func queryResolveApproval(ctx context.Context, db executor, id string, outcome model.Outcome, at time.Time) (bool, error) {
	res, err := db.ExecContext(ctx, `
		UPDATE pending_approvals SET outcome = $2, resolved_at = $3
		WHERE id = $1 AND outcome = 'open'`,
		id, string(outcome), at,
	)
	if err != nil {
		return false, mapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if n == 1 {
		return true, nil
	}
	var exists bool
	if err := db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM pending_approvals WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, mapError(err)
	}
	if !exists {
		return false, store.ErrNotFound
	}
	return false, nil
}
