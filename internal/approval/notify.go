package approval

import (
	"context"

	"github.com/alfredjeanlab/taskgate/internal/model"
)

// NotificationKind names what happened.
type NotificationKind string

const (
	NotifyApprovalRequested NotificationKind = "approval_requested"
	NotifyApprovalApproved  NotificationKind = "approval_approved"
	NotifyApprovalRejected  NotificationKind = "approval_rejected"
	NotifyApprovalCancelled NotificationKind = "approval_cancelled"
	NotifyBallotCast        NotificationKind = "ballot_cast"
	NotifyStatusChanged     NotificationKind = "status_changed"
	NotifyTaskCreated       NotificationKind = "task_created"
	NotifyTaskUpdated       NotificationKind = "task_updated"
	NotifyTaskDeleted       NotificationKind = "task_deleted"
)

// Notification describes a committed change. Fields that do not apply to
// a kind are left zero.
type Notification struct {
	Kind       NotificationKind       `json:"kind"`
	TaskID     string                 `json:"task_id"`
	Actor      string                 `json:"actor,omitempty"`
	Task       *model.Task            `json:"task,omitempty"`
	Approval   *model.PendingApproval `json:"approval,omitempty"`
	Roster     model.Roster           `json:"roster,omitempty"`
	Comment    string                 `json:"comment,omitempty"`
	History    *model.HistoryEntry    `json:"history,omitempty"`
	Recipients []string               `json:"recipients,omitempty"`
}

// Notifier receives notifications after the transaction that produced them
// has committed. Delivery is fire-and-forget; Notify must not block for long.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, n Notification)

// Notify calls f(ctx, n).
func (f NotifierFunc) Notify(ctx context.Context, n Notification) { f(ctx, n) }

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, Notification) {}

// recipients returns the members to tell about n, without duplicates and
// without the actor. Requests and cancellations go to the roster; an
// approval goes to the requester, assignee and stakeholders; a rejection
// or a single vote goes to the requester.
func recipients(n Notification) []string {
	var ids []string
	switch n.Kind {
	case NotifyApprovalRequested, NotifyApprovalCancelled:
		ids = append(ids, n.Roster...)
	case NotifyApprovalApproved, NotifyStatusChanged:
		if n.Approval != nil {
			ids = append(ids, n.Approval.RequesterID)
		}
		if n.Task != nil {
			ids = append(ids, n.Task.CreatedBy, n.Task.Assignee)
			ids = append(ids, n.Task.StakeholderIDs...)
		}
	case NotifyApprovalRejected, NotifyBallotCast:
		if n.Approval != nil {
			ids = append(ids, n.Approval.RequesterID)
		}
	case NotifyTaskCreated:
		if n.Task != nil {
			ids = append(ids, n.Task.Assignee)
		}
	}
	return model.NewRoster(ids, n.Actor)
}
