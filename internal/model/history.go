package model

import "time"

// HistoryEntry is one append-only record of an applied or rejected status change.
type HistoryEntry struct {
	ID           int64        `json:"id"`
	TaskID       string       `json:"task_id"`
	ApprovalID   string       `json:"approval_id,omitempty"`
	FromStatus   Status       `json:"from_status"`
	ToStatus     Status       `json:"to_status"`
	ChangedBy    string       `json:"changed_by"`
	Comment      string       `json:"comment,omitempty"`
	ReviewType   ReviewType   `json:"review_type,omitempty"`
	ReviewResult ReviewResult `json:"review_result,omitempty"`
	Feedback     string       `json:"feedback,omitempty"`
	ChangedAt    time.Time    `json:"changed_at"`
}
