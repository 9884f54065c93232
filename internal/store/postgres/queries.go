package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/alfredjeanlab/taskgate/internal/model"
)

// taskColumns is the column list used for SELECT statements on the tasks table.
const taskColumns = `id, title, description, status, priority, assignee,
	created_by, created_at, updated_at, completed_at`

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func queryCreateTask(ctx context.Context, db executor, t *model.Task) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO tasks (
			id, title, description, status, priority, assignee,
			created_by, created_at, updated_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		t.ID,
		t.Title,
		t.Description,
		string(t.Status),
		string(t.Priority),
		nullString(t.Assignee),
		t.CreatedBy,
		t.CreatedAt,
		t.UpdatedAt,
		nullTimePtr(t.CompletedAt),
	)
	return mapError(err)
}

// queryGetTask loads a task and its stakeholders. With lock set the task row
// is locked FOR UPDATE until the surrounding transaction ends.
func queryGetTask(ctx context.Context, db executor, id string, lock bool) (*model.Task, error) {
	q := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`
	if lock {
		q += ` FOR UPDATE`
	}
	t, err := scanTask(db.QueryRowContext(ctx, q, id))
	if err != nil {
		return nil, mapError(err)
	}

	ids, err := queryGetStakeholders(ctx, db, id)
	if err != nil {
		return nil, err
	}
	t.StakeholderIDs = ids
	return t, nil
}

func queryGetStakeholders(ctx context.Context, db executor, taskID string) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT stakeholder_id FROM task_stakeholders
		WHERE task_id = $1
		ORDER BY position ASC`,
		taskID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// queryReplaceStakeholders rewrites the stakeholder set of a task, keeping
// the given order. Duplicates and blanks are dropped.
func queryReplaceStakeholders(ctx context.Context, db executor, taskID string, ids []string) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM task_stakeholders WHERE task_id = $1`, taskID); err != nil {
		return mapError(err)
	}
	for i, id := range model.NewRoster(ids, "") {
		if _, err := db.ExecContext(ctx, `
			INSERT INTO task_stakeholders (task_id, stakeholder_id, position)
			VALUES ($1, $2, $3)`,
			taskID, id, i,
		); err != nil {
			return mapError(err)
		}
	}
	return nil
}

func queryListTasks(ctx context.Context, db executor, filter model.TaskFilter) ([]*model.Task, int, error) {
	var (
		whereClauses []string
		args         []any
		argIdx       int
	)

	nextArg := func() string {
		argIdx++
		return fmt.Sprintf("$%d", argIdx)
	}

	if len(filter.Status) > 0 {
		statuses := make([]string, len(filter.Status))
		for i, s := range filter.Status {
			statuses[i] = string(s)
		}
		whereClauses = append(whereClauses, "status = ANY("+nextArg()+")")
		args = append(args, pq.Array(statuses))
	}

	if len(filter.Priority) > 0 {
		priorities := make([]string, len(filter.Priority))
		for i, p := range filter.Priority {
			priorities[i] = string(p)
		}
		whereClauses = append(whereClauses, "priority = ANY("+nextArg()+")")
		args = append(args, pq.Array(priorities))
	}

	if filter.Assignee != "" {
		whereClauses = append(whereClauses, "assignee = "+nextArg())
		args = append(args, filter.Assignee)
	}

	if filter.CreatedBy != "" {
		whereClauses = append(whereClauses, "created_by = "+nextArg())
		args = append(args, filter.CreatedBy)
	}

	if filter.Stakeholder != "" {
		whereClauses = append(whereClauses,
			"EXISTS (SELECT 1 FROM task_stakeholders ts WHERE ts.task_id = tasks.id AND ts.stakeholder_id = "+nextArg()+")")
		args = append(args, filter.Stakeholder)
	}

	if filter.Search != "" {
		p := nextArg()
		whereClauses = append(whereClauses,
			fmt.Sprintf("(title ILIKE '%%' || %s || '%%' OR description ILIKE '%%' || %s || '%%')", p, p))
		args = append(args, filter.Search)
	}

	whereSQL := ""
	if len(whereClauses) > 0 {
		whereSQL = " WHERE " + strings.Join(whereClauses, " AND ")
	}

	// Single query with COUNT(*) OVER() to get total and rows atomically.
	dataQuery := "SELECT COUNT(*) OVER() AS total_count, " + taskColumns + " FROM tasks" + whereSQL + " ORDER BY " + parseSortClause(filter.Sort)

	if filter.Limit > 0 {
		dataQuery += " LIMIT " + nextArg()
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		dataQuery += " OFFSET " + nextArg()
		args = append(args, filter.Offset)
	}

	rows, err := db.QueryContext(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list tasks: %w", err)
	}

	var tasks []*model.Task
	var total int
	for rows.Next() {
		t, n, err := scanTaskWithTotal(rows)
		if err != nil {
			rows.Close()
			return nil, 0, fmt.Errorf("scan tasks: %w", err)
		}
		total = n
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, 0, fmt.Errorf("scan tasks: %w", err)
	}
	rows.Close()

	// Stakeholders are loaded after the result set is closed; a *sql.Tx
	// cannot run a second query while rows are open.
	for _, t := range tasks {
		ids, err := queryGetStakeholders(ctx, db, t.ID)
		if err != nil {
			return nil, 0, fmt.Errorf("stakeholders for %s: %w", t.ID, err)
		}
		t.StakeholderIDs = ids
	}

	return tasks, total, nil
}

// queryUpdateTask writes every mutable column of the task row. Stakeholders
// are written separately through queryReplaceStakeholders.
func queryUpdateTask(ctx context.Context, db executor, t *model.Task) error {
	res, err := db.ExecContext(ctx, `
		UPDATE tasks SET
			title = $2,
			description = $3,
			status = $4,
			priority = $5,
			assignee = $6,
			updated_at = $7,
			completed_at = $8
		WHERE id = $1`,
		t.ID,
		t.Title,
		t.Description,
		string(t.Status),
		string(t.Priority),
		nullString(t.Assignee),
		t.UpdatedAt,
		nullTimePtr(t.CompletedAt),
	)
	if err != nil {
		return mapError(err)
	}
	return checkRowsAffected(res)
}

func queryDeleteTask(ctx context.Context, db executor, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return mapError(err)
	}
	return checkRowsAffected(res)
}

func queryAppendHistory(ctx context.Context, db executor, e *model.HistoryEntry) error {
	err := db.QueryRowContext(ctx, `
		INSERT INTO task_history (
			task_id, approval_id, from_status, to_status, changed_by,
			comment, review_type, review_result, feedback, changed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, COALESCE($10, NOW()))
		RETURNING id, changed_at`,
		e.TaskID,
		nullString(e.ApprovalID),
		string(e.FromStatus),
		string(e.ToStatus),
		e.ChangedBy,
		e.Comment,
		nullString(string(e.ReviewType)),
		nullString(string(e.ReviewResult)),
		e.Feedback,
		nullTime(e.ChangedAt),
	).Scan(&e.ID, &e.ChangedAt)
	return mapError(err)
}

// queryGetHistory returns history oldest first. An empty taskID returns the
// history of every task, including deleted ones.
func queryGetHistory(ctx context.Context, db executor, taskID string) ([]*model.HistoryEntry, error) {
	q := `SELECT id, task_id, approval_id, from_status, to_status, changed_by,
			comment, review_type, review_result, feedback, changed_at
		FROM task_history`
	var args []any
	if taskID != "" {
		q += ` WHERE task_id = $1`
		args = append(args, taskID)
	}
	q += ` ORDER BY id ASC`

	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanHistoryEntries(rows)
}

func queryRecordEvent(ctx context.Context, db executor, e *model.Event) error {
	return db.QueryRowContext(ctx, `
		INSERT INTO events (topic, task_id, actor, payload)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		e.Topic, e.TaskID, e.Actor, []byte(e.Payload),
	).Scan(&e.ID, &e.CreatedAt)
}

func queryGetEvents(ctx context.Context, db executor, taskID string) ([]*model.Event, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, topic, task_id, actor, payload, created_at
		FROM events
		WHERE task_id = $1
		ORDER BY id ASC`,
		taskID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

// parseSortClause converts a sort spec like "-priority" or "title" into a safe
// ORDER BY clause. Unknown columns fall back to newest first.
func parseSortClause(sort string) string {
	allowed := map[string]string{
		"created_at": "created_at",
		"updated_at": "updated_at",
		"title":      "title",
		"status":     "status",
		"priority":   "array_position(ARRAY['low','medium','high','urgent'], priority)",
	}

	dir := "ASC"
	col := sort
	if strings.HasPrefix(sort, "-") {
		dir = "DESC"
		col = sort[1:]
	}

	expr, ok := allowed[col]
	if !ok {
		return "created_at DESC, id DESC"
	}
	return expr + " " + dir + ", id " + dir
}
