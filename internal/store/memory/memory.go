// Package memory implements store.Store in process memory. Transactions are
// serialized and applied copy-on-write, so a failed transaction leaves no
// trace. It backs `tg serve --memory` and the engine tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/alfredjeanlab/taskgate/internal/model"
	"github.com/alfredjeanlab/taskgate/internal/store"
)

// MemoryStore implements store.Store backed by in-process maps.
type MemoryStore struct {
	mu    sync.Mutex
	state *state
}

// Compile-time check that MemoryStore implements store.Store.
var _ store.Store = (*MemoryStore)(nil)

// New returns an empty MemoryStore.
func New() *MemoryStore {
	return &MemoryStore{state: newState()}
}

// state holds every table. Rows are stored as private copies and cloned on
// the way in and out so callers never alias stored data.
type state struct {
	tasks        map[string]*model.Task
	stakeholders map[string][]string
	approvals    map[string]*model.PendingApproval // ballots embedded
	history      []*model.HistoryEntry
	events       []*model.Event
	nextHistory  int64
	nextEvent    int64
}

func newState() *state {
	return &state{
		tasks:        make(map[string]*model.Task),
		stakeholders: make(map[string][]string),
		approvals:    make(map[string]*model.PendingApproval),
	}
}

func (s *state) clone() *state {
	c := &state{
		tasks:        make(map[string]*model.Task, len(s.tasks)),
		stakeholders: make(map[string][]string, len(s.stakeholders)),
		approvals:    make(map[string]*model.PendingApproval, len(s.approvals)),
		nextHistory:  s.nextHistory,
		nextEvent:    s.nextEvent,
	}
	for id, t := range s.tasks {
		c.tasks[id] = t.Clone()
	}
	for id, ids := range s.stakeholders {
		c.stakeholders[id] = append([]string(nil), ids...)
	}
	for id, a := range s.approvals {
		c.approvals[id] = a.Clone()
	}
	// History and events are append-only; their rows are never mutated, so
	// sharing the row pointers is safe.
	c.history = append([]*model.HistoryEntry(nil), s.history...)
	c.events = append([]*model.Event(nil), s.events...)
	return c
}

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }

// RunInTransaction runs fn against a private copy of the store and swaps the
// copy in only when fn succeeds. Transactions are fully serialized; fn must
// use the tx it is given, not the MemoryStore.
func (m *MemoryStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	work := m.state.clone()
	if err := fn(&txStore{state: work}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.state = work
	return nil
}

func (m *MemoryStore) do(fn func(s *state) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(m.state)
}

func (m *MemoryStore) CreateTask(_ context.Context, task *model.Task) error {
	return m.do(func(s *state) error { return s.createTask(task) })
}

func (m *MemoryStore) GetTask(_ context.Context, id string) (t *model.Task, err error) {
	err = m.do(func(s *state) error { t, err = s.getTask(id); return err })
	return t, err
}

func (m *MemoryStore) LockTask(ctx context.Context, id string) (*model.Task, error) {
	return m.GetTask(ctx, id)
}

func (m *MemoryStore) ListTasks(_ context.Context, filter model.TaskFilter) (ts []*model.Task, total int, err error) {
	err = m.do(func(s *state) error { ts, total = s.listTasks(filter); return nil })
	return ts, total, err
}

func (m *MemoryStore) UpdateTask(_ context.Context, task *model.Task) error {
	return m.do(func(s *state) error { return s.updateTask(task) })
}

func (m *MemoryStore) DeleteTask(_ context.Context, id string) error {
	return m.do(func(s *state) error { return s.deleteTask(id) })
}

func (m *MemoryStore) SetStakeholders(_ context.Context, taskID string, ids []string) error {
	return m.do(func(s *state) error { return s.setStakeholders(taskID, ids) })
}

func (m *MemoryStore) CreateApproval(_ context.Context, a *model.PendingApproval) error {
	return m.do(func(s *state) error { return s.createApproval(a) })
}

func (m *MemoryStore) GetApproval(_ context.Context, id string) (a *model.PendingApproval, err error) {
	err = m.do(func(s *state) error { a, err = s.getApproval(id); return err })
	return a, err
}

func (m *MemoryStore) LockApproval(ctx context.Context, id string) (*model.PendingApproval, error) {
	return m.GetApproval(ctx, id)
}

func (m *MemoryStore) GetOpenApproval(_ context.Context, taskID string) (a *model.PendingApproval, err error) {
	err = m.do(func(s *state) error { a, err = s.getOpenApproval(taskID); return err })
	return a, err
}

func (m *MemoryStore) ListApprovals(_ context.Context, taskID string) (as []*model.PendingApproval, err error) {
	err = m.do(func(s *state) error { as = s.listApprovals(taskID); return nil })
	return as, err
}

func (m *MemoryStore) ListOpenApprovalsForStakeholder(_ context.Context, stakeholderID string) (as []*model.PendingApproval, err error) {
	err = m.do(func(s *state) error { as = s.listOpenForStakeholder(stakeholderID); return nil })
	return as, err
}

func (m *MemoryStore) RecordVote(_ context.Context, ballotID string, vote model.Vote, comment string, at time.Time) (ok bool, err error) {
	err = m.do(func(s *state) error { ok, err = s.recordVote(ballotID, vote, comment, at); return err })
	return ok, err
}

func (m *MemoryStore) ResolveApproval(_ context.Context, id string, outcome model.Outcome, at time.Time) (ok bool, err error) {
	err = m.do(func(s *state) error { ok, err = s.resolveApproval(id, outcome, at); return err })
	return ok, err
}

func (m *MemoryStore) AppendHistory(_ context.Context, e *model.HistoryEntry) error {
	return m.do(func(s *state) error { s.appendHistory(e); return nil })
}

func (m *MemoryStore) GetHistory(_ context.Context, taskID string) (hs []*model.HistoryEntry, err error) {
	err = m.do(func(s *state) error { hs = s.getHistory(taskID); return nil })
	return hs, err
}

func (m *MemoryStore) ListAllHistory(_ context.Context) (hs []*model.HistoryEntry, err error) {
	err = m.do(func(s *state) error { hs = s.getHistory(""); return nil })
	return hs, err
}

func (m *MemoryStore) RecordEvent(_ context.Context, e *model.Event) error {
	return m.do(func(s *state) error { s.recordEvent(e); return nil })
}

func (m *MemoryStore) GetEvents(_ context.Context, taskID string) (es []*model.Event, err error) {
	err = m.do(func(s *state) error { es = s.getEvents(taskID); return nil })
	return es, err
}

// txStore implements store.Store over a transaction's private state.
type txStore struct {
	state *state
}

// Compile-time check that txStore implements store.Store.
var _ store.Store = (*txStore)(nil)

func (t *txStore) CreateTask(_ context.Context, task *model.Task) error {
	return t.state.createTask(task)
}

func (t *txStore) GetTask(_ context.Context, id string) (*model.Task, error) {
	return t.state.getTask(id)
}

func (t *txStore) LockTask(_ context.Context, id string) (*model.Task, error) {
	return t.state.getTask(id)
}

func (t *txStore) ListTasks(_ context.Context, filter model.TaskFilter) ([]*model.Task, int, error) {
	ts, total := t.state.listTasks(filter)
	return ts, total, nil
}

func (t *txStore) UpdateTask(_ context.Context, task *model.Task) error {
	return t.state.updateTask(task)
}

func (t *txStore) DeleteTask(_ context.Context, id string) error {
	return t.state.deleteTask(id)
}

func (t *txStore) SetStakeholders(_ context.Context, taskID string, ids []string) error {
	return t.state.setStakeholders(taskID, ids)
}

func (t *txStore) CreateApproval(_ context.Context, a *model.PendingApproval) error {
	return t.state.createApproval(a)
}

func (t *txStore) GetApproval(_ context.Context, id string) (*model.PendingApproval, error) {
	return t.state.getApproval(id)
}

func (t *txStore) LockApproval(_ context.Context, id string) (*model.PendingApproval, error) {
	return t.state.getApproval(id)
}

func (t *txStore) GetOpenApproval(_ context.Context, taskID string) (*model.PendingApproval, error) {
	return t.state.getOpenApproval(taskID)
}

func (t *txStore) ListApprovals(_ context.Context, taskID string) ([]*model.PendingApproval, error) {
	return t.state.listApprovals(taskID), nil
}

func (t *txStore) ListOpenApprovalsForStakeholder(_ context.Context, stakeholderID string) ([]*model.PendingApproval, error) {
	return t.state.listOpenForStakeholder(stakeholderID), nil
}

func (t *txStore) RecordVote(_ context.Context, ballotID string, vote model.Vote, comment string, at time.Time) (bool, error) {
	return t.state.recordVote(ballotID, vote, comment, at)
}

func (t *txStore) ResolveApproval(_ context.Context, id string, outcome model.Outcome, at time.Time) (bool, error) {
	return t.state.resolveApproval(id, outcome, at)
}

func (t *txStore) AppendHistory(_ context.Context, e *model.HistoryEntry) error {
	t.state.appendHistory(e)
	return nil
}

func (t *txStore) GetHistory(_ context.Context, taskID string) ([]*model.HistoryEntry, error) {
	return t.state.getHistory(taskID), nil
}

func (t *txStore) ListAllHistory(_ context.Context) ([]*model.HistoryEntry, error) {
	return t.state.getHistory(""), nil
}

func (t *txStore) RecordEvent(_ context.Context, e *model.Event) error {
	t.state.recordEvent(e)
	return nil
}

func (t *txStore) GetEvents(_ context.Context, taskID string) ([]*model.Event, error) {
	return t.state.getEvents(taskID), nil
}

// RunInTransaction on a txStore reuses the existing transaction (no nesting).
func (t *txStore) RunInTransaction(_ context.Context, fn func(tx store.Store) error) error {
	return fn(t)
}

// Close is a no-op for a transaction store.
func (t *txStore) Close() error { return nil }

// --- table operations ---

func (s *state) createTask(task *model.Task) error {
	if _, exists := s.tasks[task.ID]; exists {
		return store.ErrConflict
	}
	row := task.Clone()
	s.stakeholders[task.ID] = model.NewRoster(task.StakeholderIDs, "")
	row.StakeholderIDs = nil
	s.tasks[task.ID] = row
	return nil
}

func (s *state) getTask(id string) (*model.Task, error) {
	row, ok := s.tasks[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	t := row.Clone()
	t.StakeholderIDs = append([]string(nil), s.stakeholders[id]...)
	return t, nil
}

func (s *state) updateTask(task *model.Task) error {
	if _, ok := s.tasks[task.ID]; !ok {
		return store.ErrNotFound
	}
	row := task.Clone()
	row.StakeholderIDs = nil
	s.tasks[task.ID] = row
	return nil
}

func (s *state) deleteTask(id string) error {
	if _, ok := s.tasks[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.tasks, id)
	delete(s.stakeholders, id)
	for aid, a := range s.approvals {
		if a.TaskID == id {
			delete(s.approvals, aid)
		}
	}
	return nil
}

func (s *state) setStakeholders(taskID string, ids []string) error {
	if _, ok := s.tasks[taskID]; !ok {
		return store.ErrNotFound
	}
	s.stakeholders[taskID] = model.NewRoster(ids, "")
	return nil
}

func (s *state) listTasks(filter model.TaskFilter) ([]*model.Task, int) {
	var out []*model.Task
	for id := range s.tasks {
		t, _ := s.getTask(id)
		if matchesFilter(t, filter) {
			out = append(out, t)
		}
	}
	sortTasks(out, filter.Sort)

	total := len(out)
	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, total
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, total
}

func matchesFilter(t *model.Task, f model.TaskFilter) bool {
	if len(f.Status) > 0 && !containsStatus(f.Status, t.Status) {
		return false
	}
	if len(f.Priority) > 0 {
		ok := false
		for _, p := range f.Priority {
			ok = ok || p == t.Priority
		}
		if !ok {
			return false
		}
	}
	if f.Assignee != "" && t.Assignee != f.Assignee {
		return false
	}
	if f.CreatedBy != "" && t.CreatedBy != f.CreatedBy {
		return false
	}
	if f.Stakeholder != "" && !model.Roster(t.StakeholderIDs).Contains(f.Stakeholder) {
		return false
	}
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(t.Title), q) && !strings.Contains(strings.ToLower(t.Description), q) {
			return false
		}
	}
	return true
}

func containsStatus(list []model.Status, s model.Status) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

var priorityRank = map[model.Priority]int{
	model.PriorityLow:    0,
	model.PriorityMedium: 1,
	model.PriorityHigh:   2,
	model.PriorityUrgent: 3,
}

// sortTasks orders tasks the way the Postgres store's sort clause does,
// defaulting to newest first. Ties break on ID for a stable order.
func sortTasks(ts []*model.Task, spec string) {
	desc := strings.HasPrefix(spec, "-")
	field := strings.TrimPrefix(spec, "-")
	if field == "" {
		field, desc = "created_at", true
	}
	less := func(a, b *model.Task) int {
		switch field {
		case "title":
			return strings.Compare(a.Title, b.Title)
		case "status":
			return strings.Compare(string(a.Status), string(b.Status))
		case "priority":
			return priorityRank[a.Priority] - priorityRank[b.Priority]
		case "updated_at":
			return a.UpdatedAt.Compare(b.UpdatedAt)
		default:
			return a.CreatedAt.Compare(b.CreatedAt)
		}
	}
	sort.SliceStable(ts, func(i, j int) bool {
		c := less(ts[i], ts[j])
		if c == 0 {
			return ts[i].ID < ts[j].ID
		}
		if desc {
			return c > 0
		}
		return c < 0
	})
}

func (s *state) createApproval(a *model.PendingApproval) error {
	if _, exists := s.approvals[a.ID]; exists {
		return store.ErrConflict
	}
	if _, ok := s.tasks[a.TaskID]; !ok {
		return store.ErrNotFound
	}
	if a.Outcome == model.OutcomeOpen {
		if _, err := s.getOpenApproval(a.TaskID); err == nil {
			// Mirrors the one-open-approval-per-task unique index.
			return store.ErrConflict
		}
	}
	s.approvals[a.ID] = a.Clone()
	return nil
}

func (s *state) getApproval(id string) (*model.PendingApproval, error) {
	a, ok := s.approvals[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return a.Clone(), nil
}

func (s *state) getOpenApproval(taskID string) (*model.PendingApproval, error) {
	for _, a := range s.approvals {
		if a.TaskID == taskID && a.Outcome == model.OutcomeOpen {
			return a.Clone(), nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *state) listApprovals(taskID string) []*model.PendingApproval {
	var out []*model.PendingApproval
	for _, a := range s.approvals {
		if taskID == "" || a.TaskID == taskID {
			out = append(out, a.Clone())
		}
	}
	sortApprovalsNewestFirst(out)
	return out
}

func (s *state) listOpenForStakeholder(stakeholderID string) []*model.PendingApproval {
	var out []*model.PendingApproval
	for _, a := range s.approvals {
		if a.Outcome != model.OutcomeOpen {
			continue
		}
		if b := a.Ballot(stakeholderID); b != nil && b.Vote == model.VotePending {
			out = append(out, a.Clone())
		}
	}
	sortApprovalsNewestFirst(out)
	return out
}

func sortApprovalsNewestFirst(as []*model.PendingApproval) {
	sort.Slice(as, func(i, j int) bool {
		if as[i].CreatedAt.Equal(as[j].CreatedAt) {
			return as[i].ID > as[j].ID
		}
		return as[i].CreatedAt.After(as[j].CreatedAt)
	})
}

func (s *state) recordVote(ballotID string, vote model.Vote, comment string, at time.Time) (bool, error) {
	for _, a := range s.approvals {
		for _, b := range a.Ballots {
			if b.ID != ballotID {
				continue
			}
			if b.Vote != model.VotePending {
				return false, nil
			}
			ts := at
			b.Vote = vote
			b.Comment = comment
			b.VotedAt = &ts
			return true, nil
		}
	}
	return false, store.ErrNotFound
}

func (s *state) resolveApproval(id string, outcome model.Outcome, at time.Time) (bool, error) {
	a, ok := s.approvals[id]
	if !ok {
		return false, store.ErrNotFound
	}
	if a.Outcome != model.OutcomeOpen {
		return false, nil
	}
	ts := at
	a.Outcome = outcome
	a.ResolvedAt = &ts
	return true, nil
}

func (s *state) appendHistory(e *model.HistoryEntry) {
	s.nextHistory++
	e.ID = s.nextHistory
	if e.ChangedAt.IsZero() {
		e.ChangedAt = time.Now().UTC()
	}
	row := *e
	s.history = append(s.history, &row)
}

func (s *state) getHistory(taskID string) []*model.HistoryEntry {
	var out []*model.HistoryEntry
	for _, h := range s.history {
		if taskID == "" || h.TaskID == taskID {
			row := *h
			out = append(out, &row)
		}
	}
	return out
}

func (s *state) recordEvent(e *model.Event) {
	s.nextEvent++
	e.ID = s.nextEvent
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	row := *e
	row.Payload = append([]byte(nil), e.Payload...)
	s.events = append(s.events, &row)
}

func (s *state) getEvents(taskID string) []*model.Event {
	var out []*model.Event
	for _, e := range s.events {
		if e.TaskID == taskID {
			row := *e
			out = append(out, &row)
		}
	}
	return out
}
