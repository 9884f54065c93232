package model

// TaskFilter holds criteria for querying tasks.
type TaskFilter struct {
	Status      []Status   `json:"status,omitempty"`
	Priority    []Priority `json:"priority,omitempty"`
	Assignee    string     `json:"assignee,omitempty"`
	CreatedBy   string     `json:"created_by,omitempty"`
	Stakeholder string     `json:"stakeholder,omitempty"`
	Search      string     `json:"search,omitempty"` // substring match on title/description
	Sort        string     `json:"sort,omitempty"`   // e.g. "-updated_at", "title"; prefix "-" = descending
	Limit       int        `json:"limit,omitempty"`
	Offset      int        `json:"offset,omitempty"`
}
