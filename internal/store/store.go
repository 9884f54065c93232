// Package store defines the persistence boundary for tasks, approvals and
// their audit trail.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/alfredjeanlab/taskgate/internal/model"
)

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a transaction lost a race with a concurrent
	// writer (serialization failure, deadlock, or a violated uniqueness
	// guard). The whole transaction may be retried.
	ErrConflict = errors.New("conflict")
)

// Store defines the persistence interface for the approval engine.
//
// Every read-modify-write sequence must run inside RunInTransaction and use
// the Store handed to fn. LockTask and LockApproval take row locks that are
// held until that transaction ends.
type Store interface {
	// Tasks
	CreateTask(ctx context.Context, task *model.Task) error
	GetTask(ctx context.Context, id string) (*model.Task, error)
	LockTask(ctx context.Context, id string) (*model.Task, error)
	ListTasks(ctx context.Context, filter model.TaskFilter) ([]*model.Task, int, error) // returns tasks, total count, error
	UpdateTask(ctx context.Context, task *model.Task) error
	DeleteTask(ctx context.Context, id string) error
	SetStakeholders(ctx context.Context, taskID string, stakeholderIDs []string) error

	// Approvals
	CreateApproval(ctx context.Context, approval *model.PendingApproval) error // inserts approval.Ballots too
	GetApproval(ctx context.Context, id string) (*model.PendingApproval, error)
	LockApproval(ctx context.Context, id string) (*model.PendingApproval, error)
	GetOpenApproval(ctx context.Context, taskID string) (*model.PendingApproval, error) // ErrNotFound when none is open
	ListApprovals(ctx context.Context, taskID string) ([]*model.PendingApproval, error)
	ListOpenApprovalsForStakeholder(ctx context.Context, stakeholderID string) ([]*model.PendingApproval, error)

	// RecordVote moves a pending ballot to vote. It reports false when the
	// ballot had already left pending.
	RecordVote(ctx context.Context, ballotID string, vote model.Vote, comment string, at time.Time) (bool, error)
	// ResolveApproval moves an open approval to outcome. It reports false
	// when the approval was no longer open.
	ResolveApproval(ctx context.Context, id string, outcome model.Outcome, at time.Time) (bool, error)

	// History (append-only)
	AppendHistory(ctx context.Context, entry *model.HistoryEntry) error
	GetHistory(ctx context.Context, taskID string) ([]*model.HistoryEntry, error)
	ListAllHistory(ctx context.Context) ([]*model.HistoryEntry, error)

	// Events
	RecordEvent(ctx context.Context, event *model.Event) error
	GetEvents(ctx context.Context, taskID string) ([]*model.Event, error)

	// Transaction support
	RunInTransaction(ctx context.Context, fn func(tx Store) error) error

	// Lifecycle
	Close() error
}
