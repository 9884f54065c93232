package model

import (
	"strings"
	"testing"
	"time"
)

// validTask returns a Task that passes all validation rules.
func validTask() Task {
	return Task{
		Title:     "Write onboarding guide",
		Status:    StatusTodo,
		Priority:  PriorityMedium,
		CreatedBy: "alice",
	}
}

// fieldErrors extracts a *ValidationError from err or fails the test.
func fieldErrors(t *testing.T, err error) []FieldError {
	t.Helper()
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}
	ve, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	return ve.Errors
}

// hasFieldError reports whether the error list contains an error for the given field.
func hasFieldError(errs []FieldError, field string) bool {
	for _, fe := range errs {
		if fe.Field == field {
			return true
		}
	}
	return false
}

func TestValidate_Valid(t *testing.T) {
	task := validTask()
	if err := ValidateTask(&task); err != nil {
		t.Fatalf("ValidateTask(valid) = %v", err)
	}
}

func TestValidate_TitleRequired(t *testing.T) {
	task := validTask()
	task.Title = "  \t"
	if !hasFieldError(fieldErrors(t, ValidateTask(&task)), "title") {
		t.Error("expected error on field 'title'")
	}
}

func TestValidate_TitleTooLong(t *testing.T) {
	task := validTask()
	task.Title = strings.Repeat("x", 201)
	if !hasFieldError(fieldErrors(t, ValidateTask(&task)), "title") {
		t.Error("expected error on field 'title' for 201 characters")
	}
}

func TestValidate_EnumFields(t *testing.T) {
	task := validTask()
	task.Status = "open"
	task.Priority = "p1"
	errs := fieldErrors(t, ValidateTask(&task))
	if !hasFieldError(errs, "status") || !hasFieldError(errs, "priority") {
		t.Errorf("expected status and priority errors, got %v", errs)
	}
}

func TestValidate_CompletedAtConsistency(t *testing.T) {
	task := validTask()
	task.Status = StatusDone
	if !hasFieldError(fieldErrors(t, ValidateTask(&task)), "completed_at") {
		t.Error("done without completed_at should fail")
	}

	now := time.Now()
	task = validTask()
	task.CompletedAt = &now
	if !hasFieldError(fieldErrors(t, ValidateTask(&task)), "completed_at") {
		t.Error("todo with completed_at should fail")
	}
}

func TestValidate_Stakeholders(t *testing.T) {
	task := validTask()
	task.StakeholderIDs = []string{"bob", "bob"}
	if !hasFieldError(fieldErrors(t, ValidateTask(&task)), "stakeholder_ids") {
		t.Error("duplicate stakeholders should fail")
	}
	task.StakeholderIDs = []string{"bob", ""}
	if !hasFieldError(fieldErrors(t, ValidateTask(&task)), "stakeholder_ids") {
		t.Error("blank stakeholder should fail")
	}
}

func TestValidationError_Message(t *testing.T) {
	ve := &ValidationError{Errors: []FieldError{{"title", "is required"}, {"status", "bad"}}}
	if got := ve.Error(); got != "validation failed: title: is required; status: bad" {
		t.Errorf("Error() = %q", got)
	}
}
