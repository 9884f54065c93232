package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// sseEventParsed represents a single parsed SSE event from the stream.
type sseEventParsed struct {
	ID    string
	Event string
	Data  string
}

// sseReader reads SSE events from an HTTP response body using a bufio.Scanner.
// It sends parsed events to the returned channel and stops when the context is cancelled
// or the body is closed.
func sseReader(ctx context.Context, resp *http.Response) <-chan sseEventParsed {
	ch := make(chan sseEventParsed, 32)
	go func() {
		defer close(ch)
		scanner := bufio.NewScanner(resp.Body)
		var current sseEventParsed
		for scanner.Scan() {
			select {
			case <-ctx.Done():
				return
			default:
			}

			line := scanner.Text()
			switch {
			case strings.HasPrefix(line, "id:"):
				current.ID = strings.TrimPrefix(line, "id:")
			case strings.HasPrefix(line, "event:"):
				current.Event = strings.TrimPrefix(line, "event:")
			case strings.HasPrefix(line, "data:"):
				current.Data = strings.TrimPrefix(line, "data:")
			case line == "":
				// Empty line marks end of SSE event block.
				if current.Event != "" || current.Data != "" {
					ch <- current
					current = sseEventParsed{}
				}
			}
		}
	}()
	return ch
}

// waitForEvent reads from the SSE event channel until an event with the given
// topic is received, or the timeout expires.
func waitForEvent(t *testing.T, ch <-chan sseEventParsed, topic string, timeout time.Duration) sseEventParsed {
	t.Helper()
	timer := time.After(timeout)
	for {
		select {
		case evt, ok := <-ch:
			if !ok {
				t.Fatalf("SSE channel closed before receiving event %q", topic)
			}
			if evt.Event == topic {
				return evt
			}
			// Keep reading; may receive other events first.
		case <-timer:
			t.Fatalf("timed out waiting for SSE event %q", topic)
		}
	}
}

// startSSEClient opens an SSE connection to the test server and returns a channel
// of parsed events plus a cancel function. The caller must call cancel when done.
func startSSEClient(t *testing.T, serverURL string, queryParams string) (<-chan sseEventParsed, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())

	url := serverURL + "/v1/events/stream"
	if queryParams != "" {
		url += "?" + queryParams
	}

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		cancel()
		t.Fatalf("failed to create SSE request: %v", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		cancel()
		t.Fatalf("failed to connect to SSE stream: %v", err)
	}

	if resp.Header.Get("Content-Type") != "text/event-stream" {
		resp.Body.Close()
		cancel()
		t.Fatalf("expected Content-Type=text/event-stream, got %q", resp.Header.Get("Content-Type"))
	}

	ch := sseReader(ctx, resp)

	// Return a wrapped cancel that also closes the body.
	cleanup := func() {
		cancel()
		resp.Body.Close()
	}

	return ch, cleanup
}

// startIntegrationServer creates a test server with a real TCP listener for
// integration tests, returning the server URL and HTTP handler for direct calls.
func startIntegrationServer(t *testing.T) (string, http.Handler, func()) {
	t.Helper()
	_, _, handler := newTestServer()
	ts := httptest.NewServer(handler)
	return ts.URL, handler, ts.Close
}

// doHTTPJSON performs an HTTP request with an optional JSON body against a real server URL.
func doHTTPJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var req *http.Request
	var err error
	if body != nil {
		b, _ := json.Marshal(body)
		req, err = http.NewRequest(method, url, strings.NewReader(string(b)))
		if err != nil {
			t.Fatalf("failed to create request: %v", err)
		}
		req.Header.Set("Content-Type", "application/json")
	} else {
		req, err = http.NewRequest(method, url, nil)
		if err != nil {
			t.Fatalf("failed to create request: %v", err)
		}
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("HTTP request failed: %v", err)
	}
	return resp
}

// requireHTTPStatus asserts the response has the expected status code.
func requireHTTPStatus(t *testing.T, resp *http.Response, code int) {
	t.Helper()
	if resp.StatusCode != code {
		t.Fatalf("expected status %d, got %d", code, resp.StatusCode)
	}
}

// decodeHTTPJSON decodes the response body JSON into v.
func decodeHTTPJSON(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
}

// createTaskHTTP creates a task owned by "owner" on a live server.
func createTaskHTTP(t *testing.T, serverURL string, stakeholders ...string) string {
	t.Helper()
	resp := doHTTPJSON(t, "POST", serverURL+"/v1/tasks", map[string]any{
		"title": "Integration task", "created_by": "owner", "stakeholder_ids": stakeholders,
	})
	requireHTTPStatus(t, resp, 201)
	var created struct {
		ID string `json:"id"`
	}
	decodeHTTPJSON(t, resp, &created)
	if created.ID == "" {
		t.Fatal("expected created task to have an ID")
	}
	return created.ID
}

// --- Integration Tests ---

func TestSSEIntegration_CreateTaskTriggersEvent(t *testing.T) {
	serverURL, _, cleanup := startIntegrationServer(t)
	defer cleanup()

	sseEvents, sseCancel := startSSEClient(t, serverURL, "")
	defer sseCancel()
	time.Sleep(50 * time.Millisecond)

	taskID := createTaskHTTP(t, serverURL)

	evt := waitForEvent(t, sseEvents, "taskgate.task.created", 2*time.Second)
	var payload struct {
		Task struct {
			ID string `json:"id"`
		} `json:"task"`
	}
	if err := json.Unmarshal([]byte(evt.Data), &payload); err != nil {
		t.Fatalf("failed to parse SSE data: %v", err)
	}
	if payload.Task.ID != taskID {
		t.Fatalf("SSE event task ID=%q does not match created task ID=%q", payload.Task.ID, taskID)
	}
	if evt.ID == "" {
		t.Fatal("expected SSE event to have a non-empty ID")
	}
}

func TestSSEIntegration_ApprovalLifecycle(t *testing.T) {
	serverURL, _, cleanup := startIntegrationServer(t)
	defer cleanup()

	taskID := createTaskHTTP(t, serverURL, "alice", "bob")

	sseEvents, sseCancel := startSSEClient(t, serverURL, "task="+taskID)
	defer sseCancel()
	time.Sleep(50 * time.Millisecond)

	resp := doHTTPJSON(t, "POST", serverURL+"/v1/tasks/"+taskID+"/transitions", map[string]any{
		"actor": "owner", "to_status": "task_review",
	})
	requireHTTPStatus(t, resp, http.StatusAccepted)
	var pending struct {
		Approval struct {
			ID string `json:"id"`
		} `json:"approval"`
	}
	decodeHTTPJSON(t, resp, &pending)

	reqEvt := waitForEvent(t, sseEvents, "taskgate.approval.requested", 2*time.Second)
	var requested struct {
		Roster     []string `json:"roster"`
		Recipients []string `json:"recipients"`
	}
	if err := json.Unmarshal([]byte(reqEvt.Data), &requested); err != nil {
		t.Fatalf("failed to parse requested event: %v", err)
	}
	if strings.Join(requested.Roster, ",") != "alice,bob" {
		t.Fatalf("roster = %v, want [alice bob]", requested.Roster)
	}
	if strings.Join(requested.Recipients, ",") != "alice,bob" {
		t.Fatalf("recipients = %v, want [alice bob]", requested.Recipients)
	}

	for _, who := range []string{"alice", "bob"} {
		resp = doHTTPJSON(t, "POST", serverURL+"/v1/approvals/"+pending.Approval.ID+"/ballots", map[string]any{
			"actor": who, "vote": "approved",
		})
		requireHTTPStatus(t, resp, http.StatusOK)
		resp.Body.Close()
	}

	castEvt := waitForEvent(t, sseEvents, "taskgate.approval.ballot_cast", 2*time.Second)
	var cast struct {
		Ballot struct {
			StakeholderID string `json:"stakeholder_id"`
		} `json:"ballot"`
		Recipients []string `json:"recipients"`
	}
	if err := json.Unmarshal([]byte(castEvt.Data), &cast); err != nil {
		t.Fatalf("failed to parse ballot event: %v", err)
	}
	if cast.Ballot.StakeholderID != "alice" || strings.Join(cast.Recipients, ",") != "owner" {
		t.Fatalf("ballot event = %+v", cast)
	}

	approvedEvt := waitForEvent(t, sseEvents, "taskgate.approval.approved", 2*time.Second)
	var approved struct {
		Task struct {
			Status string `json:"status"`
		} `json:"task"`
		By string `json:"by"`
	}
	if err := json.Unmarshal([]byte(approvedEvt.Data), &approved); err != nil {
		t.Fatalf("failed to parse approved event: %v", err)
	}
	if approved.Task.Status != "task_review" || approved.By != "bob" {
		t.Fatalf("approved event = %+v", approved)
	}
}

func TestSSEIntegration_RejectAndCancel(t *testing.T) {
	serverURL, _, cleanup := startIntegrationServer(t)
	defer cleanup()

	taskID := createTaskHTTP(t, serverURL, "alice")

	sseEvents, sseCancel := startSSEClient(t, serverURL, "topics=taskgate.approval.rejected,taskgate.approval.cancelled")
	defer sseCancel()
	time.Sleep(50 * time.Millisecond)

	open := func() string {
		resp := doHTTPJSON(t, "POST", serverURL+"/v1/tasks/"+taskID+"/transitions", map[string]any{
			"actor": "owner", "to_status": "cancelled",
		})
		requireHTTPStatus(t, resp, http.StatusAccepted)
		var res struct {
			Approval struct {
				ID string `json:"id"`
			} `json:"approval"`
		}
		decodeHTTPJSON(t, resp, &res)
		return res.Approval.ID
	}

	first := open()
	resp := doHTTPJSON(t, "POST", serverURL+"/v1/approvals/"+first+"/ballots", map[string]any{
		"actor": "alice", "vote": "rejected", "comment": "not yet",
	})
	requireHTTPStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	rejEvt := waitForEvent(t, sseEvents, "taskgate.approval.rejected", 2*time.Second)
	var rejected struct {
		Comment string `json:"comment"`
		History struct {
			Feedback     string `json:"feedback"`
			ReviewResult string `json:"review_result"`
		} `json:"history"`
	}
	if err := json.Unmarshal([]byte(rejEvt.Data), &rejected); err != nil {
		t.Fatalf("failed to parse rejected event: %v", err)
	}
	if rejected.Comment != "not yet" || rejected.History.Feedback != "not yet" || rejected.History.ReviewResult != "rejected" {
		t.Fatalf("rejected event = %+v", rejected)
	}

	second := open()
	resp = doHTTPJSON(t, "POST", serverURL+"/v1/approvals/"+second+"/cancel", map[string]any{"actor": "owner"})
	requireHTTPStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	cancelEvt := waitForEvent(t, sseEvents, "taskgate.approval.cancelled", 2*time.Second)
	if !strings.Contains(cancelEvt.Data, second) {
		t.Fatalf("cancel event does not mention %s: %s", second, cancelEvt.Data)
	}

	// Only the filtered topics were delivered.
	select {
	case extra, ok := <-sseEvents:
		if ok {
			t.Fatalf("unexpected event %q", extra.Event)
		}
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSSEIntegration_MultipleClients(t *testing.T) {
	serverURL, _, cleanup := startIntegrationServer(t)
	defer cleanup()

	sseEvents1, sseCancel1 := startSSEClient(t, serverURL, "")
	defer sseCancel1()
	sseEvents2, sseCancel2 := startSSEClient(t, serverURL, "")
	defer sseCancel2()
	time.Sleep(50 * time.Millisecond)

	createTaskHTTP(t, serverURL)

	evt1 := waitForEvent(t, sseEvents1, "taskgate.task.created", 2*time.Second)
	evt2 := waitForEvent(t, sseEvents2, "taskgate.task.created", 2*time.Second)
	if evt1.ID != evt2.ID {
		t.Fatalf("expected same event ID for both clients, got %q and %q", evt1.ID, evt2.ID)
	}
}
