// Package client provides transport-agnostic access to the taskgate service:
// an HTTP/JSON implementation covering the whole REST API and a gRPC
// implementation of the approval calls.
package client

import (
	"context"

	"github.com/alfredjeanlab/taskgate/internal/approval"
	"github.com/alfredjeanlab/taskgate/internal/model"
)

// ApprovalClient is the approval workflow API. It is implemented by both
// HTTPClient and GRPCClient.
type ApprovalClient interface {
	RequestTransition(ctx context.Context, req *TransitionRequest) (*approval.TransitionResult, error)
	CastBallot(ctx context.Context, req *BallotRequest) (*approval.BallotResult, error)
	CancelApproval(ctx context.Context, approvalID, actor string) (*model.PendingApproval, error)
	// GetApprovalState returns the task's open approval, or nil when none is open.
	GetApprovalState(ctx context.Context, taskID string) (*model.PendingApproval, error)
	IsLegal(ctx context.Context, from, to model.Status) (bool, error)

	Close() error
}

// Client is the full API the tg CLI uses. It is implemented by HTTPClient.
type Client interface {
	ApprovalClient

	// Tasks
	CreateTask(ctx context.Context, req *CreateTaskRequest) (*model.Task, error)
	GetTask(ctx context.Context, id string) (*model.Task, error)
	ListTasks(ctx context.Context, req *ListTasksRequest) (*ListTasksResponse, error)
	UpdateTask(ctx context.Context, id string, req *UpdateTaskRequest) (*model.Task, error)
	DeleteTask(ctx context.Context, id, actor string) error
	SetStakeholders(ctx context.Context, id, actor string, stakeholderIDs []string) (*model.Task, error)

	// Approvals and audit
	AllowedTransitions(ctx context.Context, taskID string) (*AllowedTransitions, error)
	TransitionTable(ctx context.Context) (*TransitionTable, error)
	ListApprovals(ctx context.Context, taskID string) ([]*model.PendingApproval, error)
	GetApproval(ctx context.Context, id string) (*model.PendingApproval, error)
	PendingApprovals(ctx context.Context, stakeholderID string) ([]*model.PendingApproval, error)
	GetHistory(ctx context.Context, taskID string) ([]*model.HistoryEntry, error)
	GetEvents(ctx context.Context, taskID string) ([]*model.Event, error)

	Health(ctx context.Context) (string, error)
}

// CreateTaskRequest holds parameters for creating a task.
type CreateTaskRequest struct {
	Title          string         `json:"title"`
	Description    string         `json:"description,omitempty"`
	Priority       model.Priority `json:"priority,omitempty"`
	Assignee       string         `json:"assignee,omitempty"`
	CreatedBy      string         `json:"created_by"`
	StakeholderIDs []string       `json:"stakeholder_ids,omitempty"`
}

// ListTasksRequest holds parameters for listing tasks.
type ListTasksRequest struct {
	Status      []model.Status
	Priority    []model.Priority
	Assignee    string
	CreatedBy   string
	Stakeholder string
	Search      string
	Sort        string
	Limit       int
	Offset      int
}

// ListTasksResponse is the response from ListTasks.
type ListTasksResponse struct {
	Tasks []*model.Task `json:"tasks"`
	Total int           `json:"total"`
}

// UpdateTaskRequest holds optional parameters for updating a task.
// Nil pointer fields mean "don't change".
type UpdateTaskRequest struct {
	Actor       string          `json:"actor"`
	Title       *string         `json:"title,omitempty"`
	Description *string         `json:"description,omitempty"`
	Priority    *model.Priority `json:"priority,omitempty"`
	Assignee    *string         `json:"assignee,omitempty"`
}

// TransitionRequest asks for a task's status to change.
type TransitionRequest struct {
	TaskID   string       `json:"-"`
	Actor    string       `json:"actor"`
	ToStatus model.Status `json:"to_status"`
	Comment  string       `json:"comment,omitempty"`
}

// BallotRequest is a stakeholder's vote.
type BallotRequest struct {
	ApprovalID string     `json:"-"`
	Actor      string     `json:"actor"`
	Vote       model.Vote `json:"vote"`
	Comment    string     `json:"comment,omitempty"`
}

// AllowedTransitions lists the statuses a task may move to next.
type AllowedTransitions struct {
	Status  model.Status   `json:"status"`
	Allowed []model.Status `json:"allowed"`
}

// TransitionTable is the full status graph.
type TransitionTable struct {
	Statuses    []model.Status                  `json:"statuses"`
	Transitions map[model.Status][]model.Status `json:"transitions"`
}
