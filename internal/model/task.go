package model

import "time"

// Status represents where a task sits in its lifecycle.
type Status string

const (
	StatusTodo         Status = "todo"
	StatusTaskReview   Status = "task_review"
	StatusInProgress   Status = "in_progress"
	StatusResultReview Status = "result_review"
	StatusDone         Status = "done"
	StatusCancelled    Status = "cancelled"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// IsValid checks whether the status is a known value.
func (s Status) IsValid() bool {
	switch s {
	case StatusTodo, StatusTaskReview, StatusInProgress, StatusResultReview, StatusDone, StatusCancelled:
		return true
	}
	return false
}

// Priority ranks how urgently a task should be picked up.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// String returns the string representation of the priority.
func (p Priority) String() string {
	return string(p)
}

// IsValid checks whether the priority is a known value.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Task is the unit of work whose status changes are gated by stakeholder approval.
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      Status     `json:"status"`
	Priority    Priority   `json:"priority"`
	Assignee    string     `json:"assignee,omitempty"`
	CreatedBy   string     `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Populated from task_stakeholders, not stored on the tasks row.
	StakeholderIDs []string `json:"stakeholder_ids,omitempty"`
}

// Clone returns a deep copy of the task.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	if t.CompletedAt != nil {
		ts := *t.CompletedAt
		c.CompletedAt = &ts
	}
	if t.StakeholderIDs != nil {
		c.StakeholderIDs = append([]string(nil), t.StakeholderIDs...)
	}
	return &c
}

// ApplyStatus moves the task to status and keeps CompletedAt consistent:
// set when entering done, cleared when leaving it.
func (t *Task) ApplyStatus(status Status, now time.Time) {
	if status == StatusDone && t.Status != StatusDone {
		ts := now
		t.CompletedAt = &ts
	} else if status != StatusDone {
		t.CompletedAt = nil
	}
	t.Status = status
	t.UpdatedAt = now
}
