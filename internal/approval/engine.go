package approval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alfredjeanlab/taskgate/internal/idgen"
	"github.com/alfredjeanlab/taskgate/internal/model"
	"github.com/alfredjeanlab/taskgate/internal/store"
)

// Default retry policy for transactions that lose a race.
const (
	DefaultMaxRetries   = 3
	DefaultRetryBackoff = 10 * time.Millisecond
)

// Authorizer decides who may request transitions and edit a task.
type Authorizer interface {
	IsCreatorOrAdmin(requesterID string, task *model.Task) bool
}

// AuthorizerFunc adapts a function to the Authorizer interface.
type AuthorizerFunc func(requesterID string, task *model.Task) bool

// IsCreatorOrAdmin calls f(requesterID, task).
func (f AuthorizerFunc) IsCreatorOrAdmin(requesterID string, task *model.Task) bool {
	return f(requesterID, task)
}

// Engine runs the approval lifecycle against a store.
type Engine struct {
	store            store.Store
	authz            Authorizer
	notifier         Notifier
	logger           *slog.Logger
	now              func() time.Time
	newID            func(prefix string) (string, error)
	excludeRequester bool
	maxRetries       int
	retryBackoff     time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithNotifier sets the receiver of post-commit notifications.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithLogger sets the engine's logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDGenerator replaces the ID generator used for tasks, approvals and ballots.
func WithIDGenerator(gen func(prefix string) (string, error)) Option {
	return func(e *Engine) { e.newID = gen }
}

// WithExcludeRequester controls whether a requester who is also a
// stakeholder is left off the roster of their own request. Default true.
func WithExcludeRequester(exclude bool) Option {
	return func(e *Engine) { e.excludeRequester = exclude }
}

// WithRetry bounds how many times a conflicting transaction is retried
// and how long to wait before the first retry. The wait doubles per attempt.
func WithRetry(maxRetries int, backoff time.Duration) Option {
	return func(e *Engine) {
		e.maxRetries = maxRetries
		e.retryBackoff = backoff
	}
}

// New returns an Engine over s that authorizes requests with authz.
func New(s store.Store, authz Authorizer, opts ...Option) *Engine {
	e := &Engine{
		store:            s,
		authz:            authz,
		notifier:         noopNotifier{},
		logger:           slog.Default(),
		now:              func() time.Time { return time.Now().UTC() },
		newID:            idgen.New,
		excludeRequester: true,
		maxRetries:       DefaultMaxRetries,
		retryBackoff:     DefaultRetryBackoff,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// IsLegal reports whether the transition graph allows from -> to.
func (e *Engine) IsLegal(from, to model.Status) bool {
	return model.IsLegal(from, to)
}

// txFunc is one attempt of a transactional operation. It returns the
// notifications to send if the attempt commits.
type txFunc func(tx store.Store) ([]Notification, error)

// run executes fn in a transaction, retrying on store.ErrConflict, and
// sends fn's notifications once a transaction commits.
func (e *Engine) run(ctx context.Context, op string, fn txFunc) error {
	backoff := e.retryBackoff
	for attempt := 0; ; attempt++ {
		var notes []Notification
		err := e.store.RunInTransaction(ctx, func(tx store.Store) error {
			var err error
			notes, err = fn(tx)
			return err
		})
		if err == nil {
			e.notify(ctx, notes)
			return nil
		}
		if !errors.Is(err, store.ErrConflict) {
			return err
		}
		if attempt >= e.maxRetries {
			return fmt.Errorf("%s: gave up after %d attempts: %w", op, attempt+1, err)
		}
		e.logger.Debug("retrying after conflict", "op", op, "attempt", attempt+1, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

func (e *Engine) notify(ctx context.Context, notes []Notification) {
	for _, n := range notes {
		n.Recipients = recipients(n)
		e.notifier.Notify(ctx, n)
	}
}

// lockTask locks the task row, translating a missing row.
func lockTask(ctx context.Context, tx store.Store, id string) (*model.Task, error) {
	task, err := tx.LockTask(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFound("task", id)
	}
	if err != nil {
		return nil, fmt.Errorf("lock task %s: %w", id, err)
	}
	return task, nil
}

// openApproval returns the task's open approval, or nil.
func openApproval(ctx context.Context, tx store.Store, taskID string) (*model.PendingApproval, error) {
	a, err := tx.GetOpenApproval(ctx, taskID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open approval for %s: %w", taskID, err)
	}
	return a, nil
}

// applyStatus moves the task to status and appends its history row.
func (e *Engine) applyStatus(ctx context.Context, tx store.Store, task *model.Task, entry *model.HistoryEntry) error {
	entry.TaskID = task.ID
	entry.FromStatus = task.Status
	entry.ChangedAt = e.now()
	task.ApplyStatus(entry.ToStatus, entry.ChangedAt)
	if err := tx.UpdateTask(ctx, task); err != nil {
		return fmt.Errorf("update task %s: %w", task.ID, err)
	}
	if err := tx.AppendHistory(ctx, entry); err != nil {
		return fmt.Errorf("append history for %s: %w", task.ID, err)
	}
	return nil
}
