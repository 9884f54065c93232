// Package postgres implements the store.Store interface backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/alfredjeanlab/taskgate/internal/model"
	"github.com/alfredjeanlab/taskgate/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore implements store.Store backed by a PostgreSQL database.
type PostgresStore struct {
	db *sql.DB
}

// Compile-time check that PostgresStore implements store.Store.
var _ store.Store = (*PostgresStore)(nil)

// New opens a connection to the PostgreSQL database at the given URL,
// configures the connection pool, and runs any pending migrations.
func New(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewWithDB wraps an already-open database without running migrations.
func NewWithDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) CreateTask(ctx context.Context, task *model.Task) error {
	// Task row and stakeholder rows must land together.
	return s.RunInTransaction(ctx, func(tx store.Store) error {
		return tx.CreateTask(ctx, task)
	})
}

func (s *PostgresStore) GetTask(ctx context.Context, id string) (*model.Task, error) {
	return queryGetTask(ctx, s.db, id, false)
}

// LockTask outside a transaction cannot hold a lock; it behaves like GetTask.
func (s *PostgresStore) LockTask(ctx context.Context, id string) (*model.Task, error) {
	return queryGetTask(ctx, s.db, id, false)
}

func (s *PostgresStore) ListTasks(ctx context.Context, filter model.TaskFilter) ([]*model.Task, int, error) {
	return queryListTasks(ctx, s.db, filter)
}

func (s *PostgresStore) UpdateTask(ctx context.Context, task *model.Task) error {
	return queryUpdateTask(ctx, s.db, task)
}

func (s *PostgresStore) DeleteTask(ctx context.Context, id string) error {
	return queryDeleteTask(ctx, s.db, id)
}

func (s *PostgresStore) SetStakeholders(ctx context.Context, taskID string, ids []string) error {
	return s.RunInTransaction(ctx, func(tx store.Store) error {
		return tx.SetStakeholders(ctx, taskID, ids)
	})
}

func (s *PostgresStore) CreateApproval(ctx context.Context, a *model.PendingApproval) error {
	return s.RunInTransaction(ctx, func(tx store.Store) error {
		return tx.CreateApproval(ctx, a)
	})
}

func (s *PostgresStore) GetApproval(ctx context.Context, id string) (*model.PendingApproval, error) {
	return queryGetApproval(ctx, s.db, id, false)
}

func (s *PostgresStore) LockApproval(ctx context.Context, id string) (*model.PendingApproval, error) {
	return queryGetApproval(ctx, s.db, id, false)
}

func (s *PostgresStore) GetOpenApproval(ctx context.Context, taskID string) (*model.PendingApproval, error) {
	return queryGetOpenApproval(ctx, s.db, taskID)
}

func (s *PostgresStore) ListApprovals(ctx context.Context, taskID string) ([]*model.PendingApproval, error) {
	return queryListApprovals(ctx, s.db, taskID)
}

func (s *PostgresStore) ListOpenApprovalsForStakeholder(ctx context.Context, stakeholderID string) ([]*model.PendingApproval, error) {
	return queryListOpenApprovalsForStakeholder(ctx, s.db, stakeholderID)
}

func (s *PostgresStore) RecordVote(ctx context.Context, ballotID string, vote model.Vote, comment string, at time.Time) (bool, error) {
	return queryRecordVote(ctx, s.db, ballotID, vote, comment, at)
}

func (s *PostgresStore) ResolveApproval(ctx context.Context, id string, outcome model.Outcome, at time.Time) (bool, error) {
	return queryResolveApproval(ctx, s.db, id, outcome, at)
}

func (s *PostgresStore) AppendHistory(ctx context.Context, e *model.HistoryEntry) error {
	return queryAppendHistory(ctx, s.db, e)
}

func (s *PostgresStore) GetHistory(ctx context.Context, taskID string) ([]*model.HistoryEntry, error) {
	return queryGetHistory(ctx, s.db, taskID)
}

func (s *PostgresStore) ListAllHistory(ctx context.Context) ([]*model.HistoryEntry, error) {
	return queryGetHistory(ctx, s.db, "")
}

func (s *PostgresStore) RecordEvent(ctx context.Context, event *model.Event) error {
	return queryRecordEvent(ctx, s.db, event)
}

func (s *PostgresStore) GetEvents(ctx context.Context, taskID string) ([]*model.Event, error) {
	return queryGetEvents(ctx, s.db, taskID)
}

// RunInTransaction begins a database transaction, creates a txStore that
// delegates to it, calls fn, and commits on success or rolls back on error.
// Serialization failures and deadlocks come back as store.ErrConflict.
func (s *PostgresStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	txS := &txStore{tx: tx}
	if err := fn(txS); err != nil {
		_ = tx.Rollback()
		return mapError(err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", mapError(err))
	}
	return nil
}

// txStore implements store.Store using a *sql.Tx.
type txStore struct {
	tx *sql.Tx
}

// Compile-time check that txStore implements store.Store.
var _ store.Store = (*txStore)(nil)

func (s *txStore) CreateTask(ctx context.Context, task *model.Task) error {
	if err := queryCreateTask(ctx, s.tx, task); err != nil {
		return err
	}
	return queryReplaceStakeholders(ctx, s.tx, task.ID, task.StakeholderIDs)
}

func (s *txStore) GetTask(ctx context.Context, id string) (*model.Task, error) {
	return queryGetTask(ctx, s.tx, id, false)
}

func (s *txStore) LockTask(ctx context.Context, id string) (*model.Task, error) {
	return queryGetTask(ctx, s.tx, id, true)
}

func (s *txStore) ListTasks(ctx context.Context, filter model.TaskFilter) ([]*model.Task, int, error) {
	return queryListTasks(ctx, s.tx, filter)
}

func (s *txStore) UpdateTask(ctx context.Context, task *model.Task) error {
	return queryUpdateTask(ctx, s.tx, task)
}

func (s *txStore) DeleteTask(ctx context.Context, id string) error {
	return queryDeleteTask(ctx, s.tx, id)
}

func (s *txStore) SetStakeholders(ctx context.Context, taskID string, ids []string) error {
	return queryReplaceStakeholders(ctx, s.tx, taskID, ids)
}

func (s *txStore) CreateApproval(ctx context.Context, a *model.PendingApproval) error {
	return queryCreateApproval(ctx, s.tx, a)
}

func (s *txStore) GetApproval(ctx context.Context, id string) (*model.PendingApproval, error) {
	return queryGetApproval(ctx, s.tx, id, false)
}

func (s *txStore) LockApproval(ctx context.Context, id string) (*model.PendingApproval, error) {
	return queryGetApproval(ctx, s.tx, id, true)
}

func (s *txStore) GetOpenApproval(ctx context.Context, taskID string) (*model.PendingApproval, error) {
	return queryGetOpenApproval(ctx, s.tx, taskID)
}

func (s *txStore) ListApprovals(ctx context.Context, taskID string) ([]*model.PendingApproval, error) {
	return queryListApprovals(ctx, s.tx, taskID)
}

func (s *txStore) ListOpenApprovalsForStakeholder(ctx context.Context, stakeholderID string) ([]*model.PendingApproval, error) {
	return queryListOpenApprovalsForStakeholder(ctx, s.tx, stakeholderID)
}

func (s *txStore) RecordVote(ctx context.Context, ballotID string, vote model.Vote, comment string, at time.Time) (bool, error) {
	return queryRecordVote(ctx, s.tx, ballotID, vote, comment, at)
}

func (s *txStore) ResolveApproval(ctx context.Context, id string, outcome model.Outcome, at time.Time) (bool, error) {
	return queryResolveApproval(ctx, s.tx, id, outcome, at)
}

func (s *txStore) AppendHistory(ctx context.Context, e *model.HistoryEntry) error {
	return queryAppendHistory(ctx, s.tx, e)
}

func (s *txStore) GetHistory(ctx context.Context, taskID string) ([]*model.HistoryEntry, error) {
	return queryGetHistory(ctx, s.tx, taskID)
}

func (s *txStore) ListAllHistory(ctx context.Context) ([]*model.HistoryEntry, error) {
	return queryGetHistory(ctx, s.tx, "")
}

func (s *txStore) RecordEvent(ctx context.Context, event *model.Event) error {
	return queryRecordEvent(ctx, s.tx, event)
}

func (s *txStore) GetEvents(ctx context.Context, taskID string) ([]*model.Event, error) {
	return queryGetEvents(ctx, s.tx, taskID)
}

// RunInTransaction on a txStore reuses the existing transaction (no nesting).
func (s *txStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(s)
}

// Close is a no-op for a transaction store; the parent store owns the connection.
func (s *txStore) Close() error {
	return nil
}
