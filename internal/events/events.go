package events

import (
	"context"

	"github.com/alfredjeanlab/taskgate/internal/model"
)

// Event topic constants. Topics double as NATS subjects.
const (
	TopicTaskCreated   = "taskgate.task.created"
	TopicTaskUpdated   = "taskgate.task.updated"
	TopicTaskDeleted   = "taskgate.task.deleted"
	TopicStatusChanged = "taskgate.task.status_changed"

	TopicApprovalRequested = "taskgate.approval.requested"
	TopicApprovalApproved  = "taskgate.approval.approved"
	TopicApprovalRejected  = "taskgate.approval.rejected"
	TopicApprovalCancelled = "taskgate.approval.cancelled"
	TopicBallotCast        = "taskgate.approval.ballot_cast"

	// AllTopics matches every topic above.
	AllTopics = "taskgate.>"
)

// Event types

type TaskCreated struct {
	Task       *model.Task `json:"task"`
	Recipients []string    `json:"recipients,omitempty"`
}

type TaskUpdated struct {
	Task *model.Task `json:"task"`
	By   string      `json:"by,omitempty"`
}

type TaskDeleted struct {
	TaskID string `json:"task_id"`
	By     string `json:"by,omitempty"`
}

// StatusChanged is emitted when a status change applies without a vote.
type StatusChanged struct {
	Task       *model.Task         `json:"task"`
	History    *model.HistoryEntry `json:"history"`
	Recipients []string            `json:"recipients,omitempty"`
}

type ApprovalRequested struct {
	Task       *model.Task            `json:"task"`
	Approval   *model.PendingApproval `json:"approval"`
	Roster     []string               `json:"roster"`
	Recipients []string               `json:"recipients,omitempty"`
}

// ApprovalResolved covers approved, rejected and cancelled approvals. By is
// the stakeholder whose vote resolved it, or the requester who cancelled.
type ApprovalResolved struct {
	Task       *model.Task            `json:"task"`
	Approval   *model.PendingApproval `json:"approval"`
	By         string                 `json:"by,omitempty"`
	Comment    string                 `json:"comment,omitempty"`
	History    *model.HistoryEntry    `json:"history,omitempty"`
	Recipients []string               `json:"recipients,omitempty"`
}

type BallotCast struct {
	TaskID     string        `json:"task_id"`
	ApprovalID string        `json:"approval_id"`
	Ballot     *model.Ballot `json:"ballot"`
	Recipients []string      `json:"recipients,omitempty"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}
