package ui

import (
	"fmt"

	"github.com/alfredjeanlab/taskgate/internal/model"
)

// ANSI256 color codes matching the Ayu palette.
const (
	colorAccent = 74  // blue
	colorCmd    = 250 // light gray
	colorMuted  = 245 // medium gray
	colorPass   = 114 // green
	colorFail   = 203 // red
	colorWait   = 221 // yellow
	colorActive = 179 // orange
)

var noColor bool

func paint(code int, s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", code, s)
}

// RenderAccent returns s in the accent (blue) color.
func RenderAccent(s string) string { return paint(colorAccent, s) }

// RenderMuted returns s in the muted (gray) color.
func RenderMuted(s string) string { return paint(colorMuted, s) }

// RenderCommand returns s styled as a command name (light gray).
func RenderCommand(s string) string { return paint(colorCmd, s) }

// RenderStatus colors a task status by lifecycle stage. Review statuses are
// highlighted since they usually mean someone is waiting on a vote.
func RenderStatus(s model.Status) string {
	switch s {
	case model.StatusTaskReview, model.StatusResultReview:
		return paint(colorWait, string(s))
	case model.StatusInProgress:
		return paint(colorActive, string(s))
	case model.StatusDone:
		return paint(colorPass, string(s))
	case model.StatusCancelled:
		return paint(colorMuted, string(s))
	default:
		return string(s)
	}
}

// RenderVote colors a ballot's vote.
func RenderVote(v model.Vote) string {
	switch v {
	case model.VoteApproved:
		return paint(colorPass, string(v))
	case model.VoteRejected:
		return paint(colorFail, string(v))
	default:
		return paint(colorWait, string(v))
	}
}

// RenderOutcome colors an approval outcome.
func RenderOutcome(o model.Outcome) string {
	switch o {
	case model.OutcomeApproved:
		return paint(colorPass, string(o))
	case model.OutcomeRejected:
		return paint(colorFail, string(o))
	case model.OutcomeCancelled:
		return paint(colorMuted, string(o))
	default:
		return paint(colorWait, string(o))
	}
}

// ForceNoColor disables color output globally.
func ForceNoColor() {
	noColor = true
}
