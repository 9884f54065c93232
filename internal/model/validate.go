package model

import (
	"fmt"
	"strings"
)

// ValidationError holds a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation failure on a named field.
type FieldError struct {
	Field   string
	Message string
}

// Error formats the validation error as a semicolon-separated list of field messages.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether the validation error contains any field errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

func (e *ValidationError) add(field, format string, args ...any) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// ValidateTask checks a Task for constraint violations.
// It returns a *ValidationError if any rules fail, or nil if the task is valid.
func ValidateTask(t *Task) error {
	var ve ValidationError

	title := strings.TrimSpace(t.Title)
	if title == "" {
		ve.add("title", "is required")
	} else if len([]rune(title)) > 200 {
		ve.add("title", "must be 200 characters or fewer")
	}

	if !t.Status.IsValid() {
		ve.add("status", "invalid value %q", t.Status)
	}
	if !t.Priority.IsValid() {
		ve.add("priority", "invalid value %q", t.Priority)
	}
	if strings.TrimSpace(t.CreatedBy) == "" {
		ve.add("created_by", "is required")
	}

	if t.Status == StatusDone && t.CompletedAt == nil {
		ve.add("completed_at", "is required when status is done")
	}
	if t.Status != StatusDone && t.CompletedAt != nil {
		ve.add("completed_at", "must be nil when status is not done")
	}

	seen := make(map[string]struct{}, len(t.StakeholderIDs))
	for _, id := range t.StakeholderIDs {
		if strings.TrimSpace(id) == "" {
			ve.add("stakeholder_ids", "must not contain blank IDs")
			break
		}
		if _, dup := seen[id]; dup {
			ve.add("stakeholder_ids", "duplicate stakeholder %q", id)
			break
		}
		seen[id] = struct{}{}
	}

	if ve.HasErrors() {
		return &ve
	}
	return nil
}
