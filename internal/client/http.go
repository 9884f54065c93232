package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/alfredjeanlab/taskgate/internal/approval"
	"github.com/alfredjeanlab/taskgate/internal/model"
)

// HTTPClient implements Client using the taskgate HTTP/JSON REST API.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewHTTPClient creates a new HTTP client targeting the given base URL
// (e.g. "http://localhost:8080"). When token is non-empty, an Authorization
// header is set on every request.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{},
	}
}

var _ Client = (*HTTPClient)(nil)

// Close is a no-op for the HTTP client.
func (c *HTTPClient) Close() error { return nil }

// --- Tasks ---

func (c *HTTPClient) CreateTask(ctx context.Context, req *CreateTaskRequest) (*model.Task, error) {
	var task model.Task
	if err := c.doJSON(ctx, http.MethodPost, "/v1/tasks", req, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (c *HTTPClient) GetTask(ctx context.Context, id string) (*model.Task, error) {
	var task model.Task
	if err := c.doJSON(ctx, http.MethodGet, taskPath(id), nil, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (c *HTTPClient) ListTasks(ctx context.Context, req *ListTasksRequest) (*ListTasksResponse, error) {
	q := url.Values{}
	if len(req.Status) > 0 {
		q.Set("status", joinStrings(req.Status))
	}
	if len(req.Priority) > 0 {
		q.Set("priority", joinStrings(req.Priority))
	}
	if req.Assignee != "" {
		q.Set("assignee", req.Assignee)
	}
	if req.CreatedBy != "" {
		q.Set("created_by", req.CreatedBy)
	}
	if req.Stakeholder != "" {
		q.Set("stakeholder", req.Stakeholder)
	}
	if req.Search != "" {
		q.Set("search", req.Search)
	}
	if req.Sort != "" {
		q.Set("sort", req.Sort)
	}
	if req.Limit > 0 {
		q.Set("limit", strconv.Itoa(req.Limit))
	}
	if req.Offset > 0 {
		q.Set("offset", strconv.Itoa(req.Offset))
	}

	path := "/v1/tasks"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp ListTasksResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) UpdateTask(ctx context.Context, id string, req *UpdateTaskRequest) (*model.Task, error) {
	var task model.Task
	if err := c.doJSON(ctx, http.MethodPatch, taskPath(id), req, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (c *HTTPClient) DeleteTask(ctx context.Context, id, actor string) error {
	return c.doJSON(ctx, http.MethodDelete, taskPath(id)+"?actor="+url.QueryEscape(actor), nil, nil)
}

func (c *HTTPClient) SetStakeholders(ctx context.Context, id, actor string, stakeholderIDs []string) (*model.Task, error) {
	if stakeholderIDs == nil {
		stakeholderIDs = []string{}
	}
	body := map[string]any{"actor": actor, "stakeholder_ids": stakeholderIDs}
	var task model.Task
	if err := c.doJSON(ctx, http.MethodPut, taskPath(id)+"/stakeholders", body, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// --- Approvals ---

func (c *HTTPClient) RequestTransition(ctx context.Context, req *TransitionRequest) (*approval.TransitionResult, error) {
	var res approval.TransitionResult
	if err := c.doJSON(ctx, http.MethodPost, taskPath(req.TaskID)+"/transitions", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *HTTPClient) CastBallot(ctx context.Context, req *BallotRequest) (*approval.BallotResult, error) {
	var res approval.BallotResult
	if err := c.doJSON(ctx, http.MethodPost, approvalPath(req.ApprovalID)+"/ballots", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *HTTPClient) CancelApproval(ctx context.Context, approvalID, actor string) (*model.PendingApproval, error) {
	var a model.PendingApproval
	if err := c.doJSON(ctx, http.MethodPost, approvalPath(approvalID)+"/cancel", map[string]string{"actor": actor}, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *HTTPClient) GetApprovalState(ctx context.Context, taskID string) (*model.PendingApproval, error) {
	var resp struct {
		Approval *model.PendingApproval `json:"approval"`
	}
	if err := c.doJSON(ctx, http.MethodGet, taskPath(taskID)+"/approval", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Approval, nil
}

func (c *HTTPClient) IsLegal(ctx context.Context, from, to model.Status) (bool, error) {
	q := url.Values{}
	q.Set("from", string(from))
	q.Set("to", string(to))
	var resp struct {
		Legal bool `json:"legal"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/transitions?"+q.Encode(), nil, &resp); err != nil {
		return false, err
	}
	return resp.Legal, nil
}

func (c *HTTPClient) AllowedTransitions(ctx context.Context, taskID string) (*AllowedTransitions, error) {
	var resp AllowedTransitions
	if err := c.doJSON(ctx, http.MethodGet, taskPath(taskID)+"/transitions", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) TransitionTable(ctx context.Context) (*TransitionTable, error) {
	var resp TransitionTable
	if err := c.doJSON(ctx, http.MethodGet, "/v1/transitions", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) ListApprovals(ctx context.Context, taskID string) ([]*model.PendingApproval, error) {
	var resp struct {
		Approvals []*model.PendingApproval `json:"approvals"`
	}
	if err := c.doJSON(ctx, http.MethodGet, taskPath(taskID)+"/approvals", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Approvals, nil
}

func (c *HTTPClient) GetApproval(ctx context.Context, id string) (*model.PendingApproval, error) {
	var a model.PendingApproval
	if err := c.doJSON(ctx, http.MethodGet, approvalPath(id), nil, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *HTTPClient) PendingApprovals(ctx context.Context, stakeholderID string) ([]*model.PendingApproval, error) {
	var resp struct {
		Approvals []*model.PendingApproval `json:"approvals"`
	}
	path := "/v1/approvals?stakeholder=" + url.QueryEscape(stakeholderID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Approvals, nil
}

// --- Audit ---

func (c *HTTPClient) GetHistory(ctx context.Context, taskID string) ([]*model.HistoryEntry, error) {
	var resp struct {
		History []*model.HistoryEntry `json:"history"`
	}
	if err := c.doJSON(ctx, http.MethodGet, taskPath(taskID)+"/history", nil, &resp); err != nil {
		return nil, err
	}
	return resp.History, nil
}

func (c *HTTPClient) GetEvents(ctx context.Context, taskID string) ([]*model.Event, error) {
	var resp struct {
		Events []*model.Event `json:"events"`
	}
	if err := c.doJSON(ctx, http.MethodGet, taskPath(taskID)+"/events", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Events, nil
}

// --- Health ---

func (c *HTTPClient) Health(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/health", nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// --- internal helpers ---

func taskPath(id string) string     { return "/v1/tasks/" + url.PathEscape(id) }
func approvalPath(id string) string { return "/v1/approvals/" + url.PathEscape(id) }

func joinStrings[S ~string](vals []S) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = string(v)
	}
	return strings.Join(parts, ",")
}

// APIError represents an error response from the server. It unwraps to the
// approval sentinel matching Kind, so callers can test it with errors.Is.
type APIError struct {
	StatusCode int
	Kind       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return approval.KindError(e.Kind)
}

// doJSON performs an HTTP request with optional JSON body and decodes the JSON response.
// If result is nil, the response body is discarded (for DELETE/204 responses).
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	// 204 No Content: success with no body.
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
			Kind  string `json:"kind"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return &APIError{StatusCode: resp.StatusCode, Kind: errResp.Kind, Message: errResp.Error}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}
