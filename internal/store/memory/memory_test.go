package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alfredjeanlab/taskgate/internal/model"
	"github.com/alfredjeanlab/taskgate/internal/store"
)

func seedTask(t *testing.T, s *MemoryStore, id string, stakeholders ...string) *model.Task {
	t.Helper()
	now := time.Now().UTC()
	task := &model.Task{
		ID:             id,
		Title:          "task " + id,
		Status:         model.StatusTodo,
		Priority:       model.PriorityMedium,
		CreatedBy:      "alice",
		CreatedAt:      now,
		UpdatedAt:      now,
		StakeholderIDs: stakeholders,
	}
	if err := s.CreateTask(context.Background(), task); err != nil {
		t.Fatalf("CreateTask(%s): %v", id, err)
	}
	return task
}

func openApproval(id, taskID string, voters ...string) *model.PendingApproval {
	a := &model.PendingApproval{
		ID:          id,
		TaskID:      taskID,
		FromStatus:  model.StatusTodo,
		ToStatus:    model.StatusTaskReview,
		RequesterID: "alice",
		Outcome:     model.OutcomeOpen,
		CreatedAt:   time.Now().UTC(),
	}
	for _, v := range voters {
		a.Ballots = append(a.Ballots, &model.Ballot{
			ID: id + "-" + v, ApprovalID: id, StakeholderID: v, Vote: model.VotePending,
		})
	}
	return a
}

func TestGetTask_IncludesStakeholders(t *testing.T) {
	s := New()
	seedTask(t, s, "tk-1", "bob", "carol", "bob")

	got, err := s.GetTask(context.Background(), "tk-1")
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if len(got.StakeholderIDs) != 2 || got.StakeholderIDs[0] != "bob" || got.StakeholderIDs[1] != "carol" {
		t.Errorf("StakeholderIDs = %v, want [bob carol]", got.StakeholderIDs)
	}

	got.Title = "mutated"
	again, _ := s.GetTask(context.Background(), "tk-1")
	if again.Title == "mutated" {
		t.Error("GetTask returned an alias of stored data")
	}
}

func TestGetTask_NotFound(t *testing.T) {
	s := New()
	if _, err := s.GetTask(context.Background(), "nope"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestRunInTransaction_RollsBackOnError(t *testing.T) {
	s := New()
	seedTask(t, s, "tk-1")
	boom := errors.New("boom")

	err := s.RunInTransaction(context.Background(), func(tx store.Store) error {
		task, err := tx.LockTask(context.Background(), "tk-1")
		if err != nil {
			return err
		}
		task.Title = "changed"
		if err := tx.UpdateTask(context.Background(), task); err != nil {
			return err
		}
		if err := tx.AppendHistory(context.Background(), &model.HistoryEntry{TaskID: "tk-1"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}

	got, _ := s.GetTask(context.Background(), "tk-1")
	if got.Title != "task tk-1" {
		t.Errorf("Title = %q after rollback", got.Title)
	}
	if h, _ := s.GetHistory(context.Background(), "tk-1"); len(h) != 0 {
		t.Errorf("history has %d rows after rollback", len(h))
	}
}

func TestRunInTransaction_Commits(t *testing.T) {
	s := New()
	seedTask(t, s, "tk-1")

	err := s.RunInTransaction(context.Background(), func(tx store.Store) error {
		return tx.SetStakeholders(context.Background(), "tk-1", []string{"dave"})
	})
	if err != nil {
		t.Fatalf("RunInTransaction: %v", err)
	}
	got, _ := s.GetTask(context.Background(), "tk-1")
	if len(got.StakeholderIDs) != 1 || got.StakeholderIDs[0] != "dave" {
		t.Errorf("StakeholderIDs = %v", got.StakeholderIDs)
	}
}

func TestCreateApproval_OneOpenPerTask(t *testing.T) {
	s := New()
	seedTask(t, s, "tk-1")
	ctx := context.Background()

	if err := s.CreateApproval(ctx, openApproval("ap-1", "tk-1", "bob")); err != nil {
		t.Fatalf("first CreateApproval: %v", err)
	}
	if err := s.CreateApproval(ctx, openApproval("ap-2", "tk-1", "bob")); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("second open approval err = %v, want ErrConflict", err)
	}

	if ok, err := s.ResolveApproval(ctx, "ap-1", model.OutcomeCancelled, time.Now()); err != nil || !ok {
		t.Fatalf("ResolveApproval = %v, %v", ok, err)
	}
	if err := s.CreateApproval(ctx, openApproval("ap-2", "tk-1", "bob")); err != nil {
		t.Fatalf("CreateApproval after cancel: %v", err)
	}
}

func TestRecordVote_OnlyOnce(t *testing.T) {
	s := New()
	seedTask(t, s, "tk-1")
	ctx := context.Background()
	if err := s.CreateApproval(ctx, openApproval("ap-1", "tk-1", "bob")); err != nil {
		t.Fatal(err)
	}

	ok, err := s.RecordVote(ctx, "ap-1-bob", model.VoteApproved, "lgtm", time.Now())
	if err != nil || !ok {
		t.Fatalf("first RecordVote = %v, %v", ok, err)
	}
	ok, err = s.RecordVote(ctx, "ap-1-bob", model.VoteRejected, "", time.Now())
	if err != nil || ok {
		t.Fatalf("second RecordVote = %v, %v; want false, nil", ok, err)
	}

	a, _ := s.GetApproval(ctx, "ap-1")
	if b := a.Ballot("bob"); b.Vote != model.VoteApproved || b.Comment != "lgtm" || b.VotedAt == nil {
		t.Errorf("ballot = %+v", b)
	}
	if _, err := s.RecordVote(ctx, "missing", model.VoteApproved, "", time.Now()); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("missing ballot err = %v", err)
	}
}

func TestResolveApproval_CompareAndSwap(t *testing.T) {
	s := New()
	seedTask(t, s, "tk-1")
	ctx := context.Background()
	_ = s.CreateApproval(ctx, openApproval("ap-1", "tk-1", "bob"))

	if ok, _ := s.ResolveApproval(ctx, "ap-1", model.OutcomeApproved, time.Now()); !ok {
		t.Fatal("first resolve should win")
	}
	if ok, _ := s.ResolveApproval(ctx, "ap-1", model.OutcomeRejected, time.Now()); ok {
		t.Fatal("second resolve should lose")
	}
	a, _ := s.GetApproval(ctx, "ap-1")
	if a.Outcome != model.OutcomeApproved || a.ResolvedAt == nil {
		t.Errorf("approval = %+v", a)
	}
	if _, err := s.GetOpenApproval(ctx, "tk-1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetOpenApproval err = %v, want ErrNotFound", err)
	}
}

func TestListOpenApprovalsForStakeholder(t *testing.T) {
	s := New()
	ctx := context.Background()
	seedTask(t, s, "tk-1")
	seedTask(t, s, "tk-2")
	_ = s.CreateApproval(ctx, openApproval("ap-1", "tk-1", "bob", "carol"))
	_ = s.CreateApproval(ctx, openApproval("ap-2", "tk-2", "carol"))
	_, _ = s.RecordVote(ctx, "ap-1-carol", model.VoteApproved, "", time.Now())

	got, err := s.ListOpenApprovalsForStakeholder(ctx, "carol")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "ap-2" {
		t.Errorf("carol owes votes on %v, want [ap-2]", got)
	}
}

func TestDeleteTask_KeepsHistory(t *testing.T) {
	s := New()
	ctx := context.Background()
	seedTask(t, s, "tk-1")
	_ = s.AppendHistory(ctx, &model.HistoryEntry{TaskID: "tk-1", FromStatus: model.StatusTodo, ToStatus: model.StatusCancelled})

	if err := s.DeleteTask(ctx, "tk-1"); err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}
	if err := s.DeleteTask(ctx, "tk-1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("second DeleteTask err = %v", err)
	}
	h, _ := s.ListAllHistory(ctx)
	if len(h) != 1 || h[0].ID != 1 {
		t.Errorf("history = %v", h)
	}
}

func TestListTasks_FilterSortPage(t *testing.T) {
	s := New()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, title := range []string{"alpha", "bravo", "charlie", "delta"} {
		task := &model.Task{
			ID: "tk-" + title, Title: title, Status: model.StatusTodo, Priority: model.PriorityLow,
			CreatedBy: "alice", CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}
		if title == "charlie" {
			task.Assignee = "bob"
			task.StakeholderIDs = []string{"erin"}
		}
		_ = s.CreateTask(ctx, task)
	}

	tasks, total, _ := s.ListTasks(ctx, model.TaskFilter{})
	if total != 4 || tasks[0].Title != "delta" {
		t.Fatalf("default sort: total=%d first=%q", total, tasks[0].Title)
	}

	tasks, total, _ = s.ListTasks(ctx, model.TaskFilter{Sort: "title", Limit: 2, Offset: 1})
	if total != 4 || len(tasks) != 2 || tasks[0].Title != "bravo" || tasks[1].Title != "charlie" {
		t.Fatalf("paged: total=%d tasks=%v", total, tasks)
	}

	tasks, _, _ = s.ListTasks(ctx, model.TaskFilter{Assignee: "bob"})
	if len(tasks) != 1 || tasks[0].Title != "charlie" {
		t.Errorf("assignee filter = %v", tasks)
	}
	tasks, _, _ = s.ListTasks(ctx, model.TaskFilter{Stakeholder: "erin"})
	if len(tasks) != 1 || tasks[0].Title != "charlie" {
		t.Errorf("stakeholder filter = %v", tasks)
	}
	tasks, _, _ = s.ListTasks(ctx, model.TaskFilter{Search: "ELT"})
	if len(tasks) != 1 || tasks[0].Title != "delta" {
		t.Errorf("search filter = %v", tasks)
	}
}
