package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/alfredjeanlab/taskgate/internal/store"
)

// PostgreSQL error codes the store translates.
const (
	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

// openApprovalIndex is the partial unique index guarding one open approval per task.
const openApprovalIndex = "uq_pending_approvals_open_task"

// mapError translates driver errors into store sentinels. Errors that are
// already sentinels, or that the store does not recognise, pass through.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}

	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch string(pqErr.Code) {
	case codeSerializationFailure, codeDeadlockDetected:
		return fmt.Errorf("%w: %s", store.ErrConflict, pqErr.Message)
	case codeUniqueViolation:
		if pqErr.Constraint == openApprovalIndex {
			return fmt.Errorf("%w: task already has an open approval", store.ErrConflict)
		}
		return fmt.Errorf("%w: duplicate key %s", store.ErrConflict, pqErr.Constraint)
	case codeForeignKeyViolation:
		return fmt.Errorf("%w: %s", store.ErrNotFound, pqErr.Constraint)
	}
	return err
}

// checkRowsAffected returns store.ErrNotFound when a statement touched nothing.
func checkRowsAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
