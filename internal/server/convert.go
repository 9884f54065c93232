package server

import (
	"github.com/alfredjeanlab/taskgate/internal/approval"
	"github.com/alfredjeanlab/taskgate/internal/events"
)

// eventFor converts an engine notification into its bus topic and payload.
func eventFor(n approval.Notification) (string, any) {
	switch n.Kind {
	case approval.NotifyTaskCreated:
		return events.TopicTaskCreated, events.TaskCreated{Task: n.Task, Recipients: n.Recipients}
	case approval.NotifyTaskUpdated:
		return events.TopicTaskUpdated, events.TaskUpdated{Task: n.Task, By: n.Actor}
	case approval.NotifyTaskDeleted:
		return events.TopicTaskDeleted, events.TaskDeleted{TaskID: n.TaskID, By: n.Actor}
	case approval.NotifyStatusChanged:
		return events.TopicStatusChanged, events.StatusChanged{Task: n.Task, History: n.History, Recipients: n.Recipients}
	case approval.NotifyApprovalRequested:
		return events.TopicApprovalRequested, events.ApprovalRequested{
			Task:       n.Task,
			Approval:   n.Approval,
			Roster:     n.Roster,
			Recipients: n.Recipients,
		}
	case approval.NotifyApprovalApproved:
		return events.TopicApprovalApproved, resolved(n)
	case approval.NotifyApprovalRejected:
		return events.TopicApprovalRejected, resolved(n)
	case approval.NotifyApprovalCancelled:
		return events.TopicApprovalCancelled, resolved(n)
	case approval.NotifyBallotCast:
		ev := events.BallotCast{TaskID: n.TaskID, Recipients: n.Recipients}
		if n.Approval != nil {
			ev.ApprovalID = n.Approval.ID
			ev.Ballot = n.Approval.Ballot(n.Actor)
		}
		return events.TopicBallotCast, ev
	}
	return "", nil
}

func resolved(n approval.Notification) events.ApprovalResolved {
	return events.ApprovalResolved{
		Task:       n.Task,
		Approval:   n.Approval,
		By:         n.Actor,
		Comment:    n.Comment,
		History:    n.History,
		Recipients: n.Recipients,
	}
}
