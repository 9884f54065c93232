package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alfredjeanlab/taskgate/internal/approval"
	"github.com/alfredjeanlab/taskgate/internal/authz"
	"github.com/alfredjeanlab/taskgate/internal/events"
	"github.com/alfredjeanlab/taskgate/internal/model"
	"github.com/alfredjeanlab/taskgate/internal/server"
	"github.com/alfredjeanlab/taskgate/internal/store/memory"
)

// testHandler captures the incoming request details and returns a canned response.
type testHandler struct {
	// captured from the request
	method      string
	path        string
	rawPath     string // URL-encoded path (for testing PathEscape)
	query       string
	body        string
	contentType string
	auth        string

	// canned response
	statusCode   int
	responseBody string
}

func (h *testHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.method = r.Method
	h.path = r.URL.Path
	h.rawPath = r.URL.RawPath
	h.query = r.URL.RawQuery
	h.contentType = r.Header.Get("Content-Type")
	h.auth = r.Header.Get("Authorization")
	if r.Body != nil {
		data, _ := io.ReadAll(r.Body)
		h.body = string(data)
	}

	w.Header().Set("Content-Type", "application/json")
	if h.statusCode != 0 {
		w.WriteHeader(h.statusCode)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	if h.responseBody != "" {
		_, _ = w.Write([]byte(h.responseBody))
	}
}

// newTestClient creates an HTTPClient pointed at a test server with the given handler.
func newTestClient(h http.Handler) (*HTTPClient, *httptest.Server) {
	srv := httptest.NewServer(h)
	c := NewHTTPClient(srv.URL, "")
	return c, srv
}

func TestHTTPClient_CreateTask(t *testing.T) {
	h := &testHandler{
		statusCode: http.StatusCreated,
		responseBody: `{
			"id": "tk-abc",
			"title": "Fix the widget",
			"status": "todo",
			"priority": "high",
			"created_by": "alice",
			"created_at": "2026-01-15T10:00:00Z",
			"updated_at": "2026-01-15T10:00:00Z",
			"stakeholder_ids": ["bob", "carol"]
		}`,
	}
	c, srv := newTestClient(h)
	defer srv.Close()

	task, err := c.CreateTask(context.Background(), &CreateTaskRequest{
		Title:          "Fix the widget",
		Priority:       model.PriorityHigh,
		CreatedBy:      "alice",
		StakeholderIDs: []string{"bob", "carol"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.method != http.MethodPost || h.path != "/v1/tasks" {
		t.Errorf("request = %s %s", h.method, h.path)
	}
	if h.contentType != "application/json" {
		t.Errorf("expected Content-Type=application/json, got %q", h.contentType)
	}
	if !strings.Contains(h.body, `"stakeholder_ids":["bob","carol"]`) {
		t.Errorf("body = %s", h.body)
	}
	if task.ID != "tk-abc" || task.Priority != model.PriorityHigh || len(task.StakeholderIDs) != 2 {
		t.Errorf("task = %+v", task)
	}
}

func TestHTTPClient_ListTasks_Query(t *testing.T) {
	h := &testHandler{responseBody: `{"tasks":[{"id":"tk-1","title":"a","status":"todo"}],"total":7}`}
	c, srv := newTestClient(h)
	defer srv.Close()

	resp, err := c.ListTasks(context.Background(), &ListTasksRequest{
		Status:      []model.Status{model.StatusTodo, model.StatusTaskReview},
		Stakeholder: "bob",
		Sort:        "-priority",
		Limit:       5,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"status=todo%2Ctask_review", "stakeholder=bob", "sort=-priority", "limit=5"} {
		if !strings.Contains(h.query, want) {
			t.Errorf("query %q missing %q", h.query, want)
		}
	}
	if resp.Total != 7 || len(resp.Tasks) != 1 {
		t.Errorf("resp = %+v", resp)
	}
}

func TestHTTPClient_PathEscape(t *testing.T) {
	h := &testHandler{responseBody: `{"id":"tk/1"}`}
	c, srv := newTestClient(h)
	defer srv.Close()

	if _, err := c.GetTask(context.Background(), "tk/1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.rawPath != "/v1/tasks/tk%2F1" {
		t.Errorf("raw path = %q", h.rawPath)
	}
}

func TestHTTPClient_DeleteTask(t *testing.T) {
	h := &testHandler{statusCode: http.StatusNoContent}
	c, srv := newTestClient(h)
	defer srv.Close()

	if err := c.DeleteTask(context.Background(), "tk-1", "alice"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.method != http.MethodDelete || h.path != "/v1/tasks/tk-1" || h.query != "actor=alice" {
		t.Errorf("request = %s %s?%s", h.method, h.path, h.query)
	}
}

func TestHTTPClient_RequestTransition(t *testing.T) {
	h := &testHandler{
		statusCode:   http.StatusAccepted,
		responseBody: `{"kind":"pending","task":{"id":"tk-1","status":"todo"},"approval":{"id":"ap-1","outcome":"open"}}`,
	}
	c, srv := newTestClient(h)
	defer srv.Close()

	res, err := c.RequestTransition(context.Background(), &TransitionRequest{
		TaskID: "tk-1", Actor: "owner", ToStatus: model.StatusTaskReview, Comment: "ready",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.path != "/v1/tasks/tk-1/transitions" {
		t.Errorf("path = %q", h.path)
	}
	if strings.Contains(h.body, "task_id") || !strings.Contains(h.body, `"to_status":"task_review"`) {
		t.Errorf("body = %s", h.body)
	}
	if res.Kind != approval.ResultPending || res.Approval.ID != "ap-1" {
		t.Errorf("res = %+v", res)
	}
}

func TestHTTPClient_GetApprovalState_None(t *testing.T) {
	h := &testHandler{responseBody: `{"approval":null}`}
	c, srv := newTestClient(h)
	defer srv.Close()

	a, err := c.GetApprovalState(context.Background(), "tk-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a != nil {
		t.Errorf("expected nil approval, got %+v", a)
	}
}

func TestHTTPClient_APIError(t *testing.T) {
	h := &testHandler{
		statusCode:   http.StatusConflict,
		responseBody: `{"error":"task locked by pending approval: tk-1","kind":"task_locked"}`,
	}
	c, srv := newTestClient(h)
	defer srv.Close()

	_, err := c.UpdateTask(context.Background(), "tk-1", &UpdateTaskRequest{Actor: "owner"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T: %v", err, err)
	}
	if apiErr.StatusCode != http.StatusConflict || apiErr.Kind != approval.KindTaskLocked {
		t.Errorf("apiErr = %+v", apiErr)
	}
	if !errors.Is(err, approval.ErrTaskLocked) {
		t.Errorf("expected errors.Is(err, ErrTaskLocked)")
	}
}

func TestHTTPClient_APIError_NonJSON(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	})
	c, srv := newTestClient(h)
	defer srv.Close()

	_, err := c.Health(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.Message != "upstream down" || errors.Unwrap(err) != nil {
		t.Errorf("apiErr = %+v", apiErr)
	}
}

func TestHTTPClient_Token(t *testing.T) {
	h := &testHandler{responseBody: `{"status":"ok"}`}
	srv := httptest.NewServer(h)
	defer srv.Close()

	c := NewHTTPClient(srv.URL+"/", "s3cret")
	status, err := c.Health(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != "ok" || h.auth != "Bearer s3cret" || h.path != "/v1/health" {
		t.Errorf("status=%q auth=%q path=%q", status, h.auth, h.path)
	}
}

// newLiveClient runs a real server over the memory store.
func newLiveClient(t *testing.T) *HTTPClient {
	t.Helper()
	s := server.NewServer(memory.New(), &events.NoopPublisher{}, authz.NewPolicy("admin"))
	ts := httptest.NewServer(s.NewHTTPHandler(""))
	t.Cleanup(ts.Close)
	return NewHTTPClient(ts.URL, "")
}

func TestHTTPClient_LiveApprovalFlow(t *testing.T) {
	c := newLiveClient(t)
	ctx := context.Background()

	task, err := c.CreateTask(ctx, &CreateTaskRequest{
		Title: "Launch", CreatedBy: "owner", StakeholderIDs: []string{"alice", "bob"},
	})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	res, err := c.RequestTransition(ctx, &TransitionRequest{TaskID: task.ID, Actor: "owner", ToStatus: model.StatusTaskReview})
	if err != nil {
		t.Fatalf("RequestTransition: %v", err)
	}
	if res.Kind != approval.ResultPending {
		t.Fatalf("kind = %q", res.Kind)
	}

	pending, err := c.PendingApprovals(ctx, "bob")
	if err != nil || len(pending) != 1 {
		t.Fatalf("PendingApprovals = %v, %v", pending, err)
	}

	_, err = c.SetStakeholders(ctx, task.ID, "owner", []string{"carol"})
	if !errors.Is(err, approval.ErrTaskLocked) {
		t.Fatalf("SetStakeholders err = %v, want ErrTaskLocked", err)
	}

	if _, err := c.CastBallot(ctx, &BallotRequest{ApprovalID: res.Approval.ID, Actor: "alice", Vote: model.VoteApproved}); err != nil {
		t.Fatalf("alice vote: %v", err)
	}
	_, err = c.CastBallot(ctx, &BallotRequest{ApprovalID: res.Approval.ID, Actor: "alice", Vote: model.VoteApproved})
	if !errors.Is(err, approval.ErrAlreadyVoted) {
		t.Fatalf("double vote err = %v, want ErrAlreadyVoted", err)
	}
	br, err := c.CastBallot(ctx, &BallotRequest{ApprovalID: res.Approval.ID, Actor: "bob", Vote: model.VoteApproved})
	if err != nil {
		t.Fatalf("bob vote: %v", err)
	}
	if br.Kind != approval.ResultApplied || br.Task.Status != model.StatusTaskReview {
		t.Fatalf("ballot result = %+v", br)
	}

	allowed, err := c.AllowedTransitions(ctx, task.ID)
	if err != nil || allowed.Status != model.StatusTaskReview || len(allowed.Allowed) != 3 {
		t.Fatalf("AllowedTransitions = %+v, %v", allowed, err)
	}

	history, err := c.GetHistory(ctx, task.ID)
	if err != nil || len(history) != 1 || history[0].ReviewResult != model.ReviewPassed {
		t.Fatalf("GetHistory = %v, %v", history, err)
	}

	approvals, err := c.ListApprovals(ctx, task.ID)
	if err != nil || len(approvals) != 1 {
		t.Fatalf("ListApprovals = %v, %v", approvals, err)
	}
	got, err := c.GetApproval(ctx, approvals[0].ID)
	if err != nil || got.Outcome != model.OutcomeApproved {
		t.Fatalf("GetApproval = %+v, %v", got, err)
	}

	evts, err := c.GetEvents(ctx, task.ID)
	if err != nil || len(evts) == 0 {
		t.Fatalf("GetEvents = %v, %v", evts, err)
	}

	legal, err := c.IsLegal(ctx, model.StatusTaskReview, model.StatusInProgress)
	if err != nil || !legal {
		t.Fatalf("IsLegal = %v, %v", legal, err)
	}
	table, err := c.TransitionTable(ctx)
	if err != nil || len(table.Statuses) != len(model.Statuses) {
		t.Fatalf("TransitionTable = %+v, %v", table, err)
	}
}

func TestHTTPClient_LiveCancelAndDelete(t *testing.T) {
	c := newLiveClient(t)
	ctx := context.Background()

	task, err := c.CreateTask(ctx, &CreateTaskRequest{Title: "Tidy", CreatedBy: "owner", StakeholderIDs: []string{"alice"}})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	res, err := c.RequestTransition(ctx, &TransitionRequest{TaskID: task.ID, Actor: "owner", ToStatus: model.StatusCancelled})
	if err != nil {
		t.Fatalf("RequestTransition: %v", err)
	}

	if _, err := c.CancelApproval(ctx, res.Approval.ID, "alice"); !errors.Is(err, approval.ErrUnauthorized) {
		t.Fatalf("cancel by stakeholder err = %v, want ErrUnauthorized", err)
	}
	a, err := c.CancelApproval(ctx, res.Approval.ID, "owner")
	if err != nil || a.Outcome != model.OutcomeCancelled {
		t.Fatalf("CancelApproval = %+v, %v", a, err)
	}
	if open, err := c.GetApprovalState(ctx, task.ID); err != nil || open != nil {
		t.Fatalf("GetApprovalState = %+v, %v", open, err)
	}

	title := "Tidy up"
	updated, err := c.UpdateTask(ctx, task.ID, &UpdateTaskRequest{Actor: "owner", Title: &title})
	if err != nil || updated.Title != title {
		t.Fatalf("UpdateTask = %+v, %v", updated, err)
	}

	if err := c.DeleteTask(ctx, task.ID, "owner"); err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}
	if _, err := c.GetTask(ctx, task.ID); !errors.Is(err, approval.ErrNotFound) {
		t.Fatalf("GetTask after delete err = %v, want ErrNotFound", err)
	}

	list, err := c.ListTasks(ctx, &ListTasksRequest{})
	if err != nil || list.Total != 0 {
		t.Fatalf("ListTasks = %+v, %v", list, err)
	}
}
