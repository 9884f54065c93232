package approval

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by engine operations. Callers match them with
// errors.Is; the returned errors wrap them with context.
var (
	ErrInvalidTransition        = errors.New("invalid transition")
	ErrUnauthorized             = errors.New("unauthorized")
	ErrDuplicatePendingApproval = errors.New("duplicate pending approval")
	ErrAlreadyVoted             = errors.New("already voted")
	ErrAlreadyResolved          = errors.New("approval already resolved")
	ErrTaskLocked               = errors.New("task locked by pending approval")
	ErrNotFound                 = errors.New("not found")
	ErrInvalidVote              = errors.New("invalid vote")
	ErrInvalidInput             = errors.New("invalid input")
)

// Error kinds are stable identifiers for the sentinels above, used on the wire.
const (
	KindInvalidTransition        = "invalid_transition"
	KindUnauthorized             = "unauthorized"
	KindDuplicatePendingApproval = "duplicate_pending_approval"
	KindAlreadyVoted             = "already_voted"
	KindAlreadyResolved          = "already_resolved"
	KindTaskLocked               = "task_locked"
	KindNotFound                 = "not_found"
	KindInvalidVote              = "invalid_vote"
	KindInvalidInput             = "invalid_input"
	KindInternal                 = "internal"
)

var kinds = []struct {
	err  error
	kind string
}{
	{ErrInvalidTransition, KindInvalidTransition},
	{ErrUnauthorized, KindUnauthorized},
	{ErrDuplicatePendingApproval, KindDuplicatePendingApproval},
	{ErrAlreadyVoted, KindAlreadyVoted},
	{ErrAlreadyResolved, KindAlreadyResolved},
	{ErrTaskLocked, KindTaskLocked},
	{ErrNotFound, KindNotFound},
	{ErrInvalidVote, KindInvalidVote},
	{ErrInvalidInput, KindInvalidInput},
}

// Kind returns the stable kind of err, or KindInternal when err does not
// wrap one of the engine sentinels. Kind(nil) is "".
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

// KindError returns the sentinel for a wire kind, or nil for unknown kinds.
func KindError(kind string) error {
	for _, k := range kinds {
		if k.kind == kind {
			return k.err
		}
	}
	return nil
}

func notFound(what, id string) error {
	return fmt.Errorf("%w: %s %s", ErrNotFound, what, id)
}
