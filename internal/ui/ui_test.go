package ui

import (
	"strings"
	"testing"

	"github.com/alfredjeanlab/taskgate/internal/model"
)

func TestShouldUseColor_Env(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	t.Setenv("CLICOLOR_FORCE", "1")
	if ShouldUseColor() {
		t.Fatal("NO_COLOR should win over CLICOLOR_FORCE")
	}

	t.Setenv("NO_COLOR", "")
	if !ShouldUseColor() {
		t.Fatal("CLICOLOR_FORCE=1 should force color")
	}

	t.Setenv("CLICOLOR_FORCE", "")
	t.Setenv("CLICOLOR", "0")
	if ShouldUseColor() {
		t.Fatal("CLICOLOR=0 should disable color")
	}
}

func TestRender(t *testing.T) {
	if got := RenderStatus(model.StatusTodo); got != "todo" {
		t.Fatalf("todo should be plain, got %q", got)
	}
	if got := RenderStatus(model.StatusTaskReview); !strings.Contains(got, "\x1b[38;5;221m") {
		t.Fatalf("task_review should be highlighted, got %q", got)
	}
	if got := RenderVote(model.VoteRejected); !strings.Contains(got, "rejected") || !strings.HasSuffix(got, "\x1b[0m") {
		t.Fatalf("RenderVote = %q", got)
	}
	if got := RenderOutcome(model.OutcomeApproved); !strings.Contains(got, "approved") {
		t.Fatalf("RenderOutcome = %q", got)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"exactly", 7, "exactly"},
		{"a longer title", 8, "a lon..."},
		{"abcdef", 2, "ab"},
		{"anything", 0, "anything"},
	}
	for _, tt := range tests {
		if got := Truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}
