package postgres

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/alfredjeanlab/taskgate/internal/model"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// taskNulls holds the nullable task columns while scanning.
type taskNulls struct {
	assignee    sql.NullString
	completedAt sql.NullTime
}

func (n *taskNulls) apply(t *model.Task) {
	t.Assignee = n.assignee.String
	if n.completedAt.Valid {
		ts := n.completedAt.Time
		t.CompletedAt = &ts
	}
}

// scanTask scans a single row into a model.Task.
// The row must contain columns in the order defined by taskColumns.
func scanTask(row scannable) (*model.Task, error) {
	var t model.Task
	var n taskNulls
	err := row.Scan(
		&t.ID,
		&t.Title,
		&t.Description,
		&t.Status,
		&t.Priority,
		&n.assignee,
		&t.CreatedBy,
		&t.CreatedAt,
		&t.UpdatedAt,
		&n.completedAt,
	)
	if err != nil {
		return nil, err
	}
	n.apply(&t)
	return &t, nil
}

// scanTaskWithTotal scans a row that has a leading total_count column
// followed by the standard task columns.
func scanTaskWithTotal(row scannable) (*model.Task, int, error) {
	var total int
	var t model.Task
	var n taskNulls
	err := row.Scan(
		&total,
		&t.ID,
		&t.Title,
		&t.Description,
		&t.Status,
		&t.Priority,
		&n.assignee,
		&t.CreatedBy,
		&t.CreatedAt,
		&t.UpdatedAt,
		&n.completedAt,
	)
	if err != nil {
		return nil, 0, err
	}
	n.apply(&t)
	return &t, total, nil
}

// scanApproval scans a single row into a model.PendingApproval (without ballots).
func scanApproval(row scannable) (*model.PendingApproval, error) {
	var a model.PendingApproval
	var (
		reviewType sql.NullString
		resolvedAt sql.NullTime
	)
	err := row.Scan(
		&a.ID,
		&a.TaskID,
		&a.FromStatus,
		&a.ToStatus,
		&a.RequesterID,
		&a.Comment,
		&reviewType,
		&a.Outcome,
		&a.CreatedAt,
		&resolvedAt,
	)
	if err != nil {
		return nil, err
	}
	a.ReviewType = model.ReviewType(reviewType.String)
	if resolvedAt.Valid {
		ts := resolvedAt.Time
		a.ResolvedAt = &ts
	}
	return &a, nil
}

// scanBallots scans multiple rows into a slice of model.Ballot pointers.
func scanBallots(rows *sql.Rows) ([]*model.Ballot, error) {
	var ballots []*model.Ballot
	for rows.Next() {
		var b model.Ballot
		var votedAt sql.NullTime
		if err := rows.Scan(
			&b.ID,
			&b.ApprovalID,
			&b.StakeholderID,
			&b.Vote,
			&b.Comment,
			&b.CreatedAt,
			&votedAt,
		); err != nil {
			return nil, err
		}
		if votedAt.Valid {
			ts := votedAt.Time
			b.VotedAt = &ts
		}
		ballots = append(ballots, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ballots, nil
}

// scanHistoryEntries scans multiple rows into a slice of model.HistoryEntry pointers.
func scanHistoryEntries(rows *sql.Rows) ([]*model.HistoryEntry, error) {
	var entries []*model.HistoryEntry
	for rows.Next() {
		var h model.HistoryEntry
		var (
			approvalID   sql.NullString
			reviewType   sql.NullString
			reviewResult sql.NullString
		)
		if err := rows.Scan(
			&h.ID,
			&h.TaskID,
			&approvalID,
			&h.FromStatus,
			&h.ToStatus,
			&h.ChangedBy,
			&h.Comment,
			&reviewType,
			&reviewResult,
			&h.Feedback,
			&h.ChangedAt,
		); err != nil {
			return nil, err
		}
		h.ApprovalID = approvalID.String
		h.ReviewType = model.ReviewType(reviewType.String)
		h.ReviewResult = model.ReviewResult(reviewResult.String)
		entries = append(entries, &h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// scanEvent scans a single row into a model.Event.
func scanEvent(row scannable) (*model.Event, error) {
	var e model.Event
	var (
		actor   sql.NullString
		payload []byte
	)
	err := row.Scan(&e.ID, &e.Topic, &e.TaskID, &actor, &payload, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	e.Actor = actor.String
	if len(payload) > 0 {
		e.Payload = json.RawMessage(payload)
	}
	return &e, nil
}

// scanEvents scans multiple rows into a slice of model.Event pointers.
func scanEvents(rows *sql.Rows) ([]*model.Event, error) {
	var events []*model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// nullTimePtr converts a *time.Time to a sql.NullTime.
func nullTimePtr(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// nullTime converts a time.Time to a sql.NullTime; the zero time is null.
func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

// nullString converts a string to sql.NullString; empty string is null.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
