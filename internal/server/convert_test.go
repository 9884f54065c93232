package server

import (
	"testing"

	"github.com/alfredjeanlab/taskgate/internal/approval"
	"github.com/alfredjeanlab/taskgate/internal/events"
	"github.com/alfredjeanlab/taskgate/internal/model"
)

func TestEventFor_Topics(t *testing.T) {
	for _, tc := range []struct {
		kind  approval.NotificationKind
		topic string
	}{
		{approval.NotifyTaskCreated, events.TopicTaskCreated},
		{approval.NotifyTaskUpdated, events.TopicTaskUpdated},
		{approval.NotifyTaskDeleted, events.TopicTaskDeleted},
		{approval.NotifyStatusChanged, events.TopicStatusChanged},
		{approval.NotifyApprovalRequested, events.TopicApprovalRequested},
		{approval.NotifyApprovalApproved, events.TopicApprovalApproved},
		{approval.NotifyApprovalRejected, events.TopicApprovalRejected},
		{approval.NotifyApprovalCancelled, events.TopicApprovalCancelled},
		{approval.NotifyBallotCast, events.TopicBallotCast},
	} {
		topic, ev := eventFor(approval.Notification{Kind: tc.kind, TaskID: "tk-1"})
		if topic != tc.topic {
			t.Errorf("eventFor(%s) topic = %q, want %q", tc.kind, topic, tc.topic)
		}
		if ev == nil {
			t.Errorf("eventFor(%s) returned nil event", tc.kind)
		}
	}

	if topic, _ := eventFor(approval.Notification{Kind: "bogus"}); topic != "" {
		t.Errorf("unknown kind topic = %q, want empty", topic)
	}
}

func TestEventFor_BallotCast(t *testing.T) {
	a := &model.PendingApproval{
		ID: "ap-1",
		Ballots: []*model.Ballot{
			{ID: "bl-1", StakeholderID: "alice", Vote: model.VoteApproved},
			{ID: "bl-2", StakeholderID: "bob", Vote: model.VotePending},
		},
	}
	_, ev := eventFor(approval.Notification{
		Kind:       approval.NotifyBallotCast,
		TaskID:     "tk-1",
		Actor:      "alice",
		Approval:   a,
		Recipients: []string{"owner"},
	})
	bc, ok := ev.(events.BallotCast)
	if !ok {
		t.Fatalf("event type = %T, want events.BallotCast", ev)
	}
	if bc.ApprovalID != "ap-1" || bc.Ballot == nil || bc.Ballot.ID != "bl-1" {
		t.Fatalf("ballot cast = %+v", bc)
	}
	if len(bc.Recipients) != 1 || bc.Recipients[0] != "owner" {
		t.Fatalf("recipients = %v", bc.Recipients)
	}
}

func TestEventFor_Resolved(t *testing.T) {
	h := &model.HistoryEntry{TaskID: "tk-1", ReviewResult: model.ReviewRejected, Feedback: "no"}
	_, ev := eventFor(approval.Notification{
		Kind:    approval.NotifyApprovalRejected,
		TaskID:  "tk-1",
		Actor:   "alice",
		Comment: "no",
		History: h,
	})
	r, ok := ev.(events.ApprovalResolved)
	if !ok {
		t.Fatalf("event type = %T, want events.ApprovalResolved", ev)
	}
	if r.By != "alice" || r.Comment != "no" || r.History != h {
		t.Fatalf("resolved = %+v", r)
	}
}
