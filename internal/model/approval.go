package model

import "time"

// Outcome is the resolution state of a PendingApproval.
type Outcome string

const (
	OutcomeOpen      Outcome = "open"
	OutcomeApproved  Outcome = "approved"
	OutcomeRejected  Outcome = "rejected"
	OutcomeCancelled Outcome = "cancelled"
)

// IsValid checks whether the outcome is a known value.
func (o Outcome) IsValid() bool {
	switch o {
	case OutcomeOpen, OutcomeApproved, OutcomeRejected, OutcomeCancelled:
		return true
	}
	return false
}

// Vote is a single stakeholder's answer on a ballot.
type Vote string

const (
	VotePending  Vote = "pending"
	VoteApproved Vote = "approved"
	VoteRejected Vote = "rejected"
)

// IsValid checks whether the vote is a known value.
func (v Vote) IsValid() bool {
	switch v {
	case VotePending, VoteApproved, VoteRejected:
		return true
	}
	return false
}

// IsDecision reports whether v is a vote a stakeholder may cast.
func (v Vote) IsDecision() bool {
	return v == VoteApproved || v == VoteRejected
}

// ReviewType names which review a status change concludes.
type ReviewType string

const (
	ReviewTypeTask   ReviewType = "task_review"
	ReviewTypeResult ReviewType = "result_review"
)

// ReviewResult is the recorded verdict of an approval round. Empty means the
// change was applied immediately without a vote.
type ReviewResult string

const (
	ReviewPassed   ReviewResult = "passed"
	ReviewRejected ReviewResult = "rejected"
)

// Roster is the frozen set of stakeholder IDs whose votes an approval needs.
type Roster []string

// NewRoster snapshots ids, dropping blanks, duplicates and the excluded ID.
func NewRoster(ids []string, exclude string) Roster {
	seen := make(map[string]struct{}, len(ids))
	r := make(Roster, 0, len(ids))
	for _, id := range ids {
		if id == "" || id == exclude {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		r = append(r, id)
	}
	return r
}

// Contains reports whether id is on the roster.
func (r Roster) Contains(id string) bool {
	for _, m := range r {
		if m == id {
			return true
		}
	}
	return false
}

// PendingApproval is a requested status change awaiting stakeholder votes.
type PendingApproval struct {
	ID          string     `json:"id"`
	TaskID      string     `json:"task_id"`
	FromStatus  Status     `json:"from_status"`
	ToStatus    Status     `json:"to_status"`
	RequesterID string     `json:"requester_id"`
	Comment     string     `json:"comment,omitempty"`
	ReviewType  ReviewType `json:"review_type,omitempty"`
	Outcome     Outcome    `json:"outcome"`
	CreatedAt   time.Time  `json:"created_at"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`

	// Populated from the ballots table.
	Ballots []*Ballot `json:"ballots,omitempty"`
}

// IsOpen reports whether the approval still accepts votes.
func (a *PendingApproval) IsOpen() bool {
	return a.Outcome == OutcomeOpen
}

// Roster returns the stakeholders that hold a ballot on this approval.
func (a *PendingApproval) Roster() Roster {
	r := make(Roster, 0, len(a.Ballots))
	for _, b := range a.Ballots {
		r = append(r, b.StakeholderID)
	}
	return r
}

// Ballot returns the ballot owned by stakeholderID, or nil.
func (a *PendingApproval) Ballot(stakeholderID string) *Ballot {
	for _, b := range a.Ballots {
		if b.StakeholderID == stakeholderID {
			return b
		}
	}
	return nil
}

// Tally counts the ballots by vote.
func (a *PendingApproval) Tally() (approved, rejected, pending int) {
	for _, b := range a.Ballots {
		switch b.Vote {
		case VoteApproved:
			approved++
		case VoteRejected:
			rejected++
		default:
			pending++
		}
	}
	return approved, rejected, pending
}

// Clone returns a deep copy of the approval and its ballots.
func (a *PendingApproval) Clone() *PendingApproval {
	if a == nil {
		return nil
	}
	c := *a
	if a.ResolvedAt != nil {
		ts := *a.ResolvedAt
		c.ResolvedAt = &ts
	}
	if a.Ballots != nil {
		c.Ballots = make([]*Ballot, len(a.Ballots))
		for i, b := range a.Ballots {
			c.Ballots[i] = b.Clone()
		}
	}
	return &c
}

// Ballot is one roster member's vote on a PendingApproval.
type Ballot struct {
	ID            string     `json:"id"`
	ApprovalID    string     `json:"approval_id"`
	StakeholderID string     `json:"stakeholder_id"`
	Vote          Vote       `json:"vote"`
	Comment       string     `json:"comment,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	VotedAt       *time.Time `json:"voted_at,omitempty"`
}

// Clone returns a deep copy of the ballot.
func (b *Ballot) Clone() *Ballot {
	if b == nil {
		return nil
	}
	c := *b
	if b.VotedAt != nil {
		ts := *b.VotedAt
		c.VotedAt = &ts
	}
	return &c
}
