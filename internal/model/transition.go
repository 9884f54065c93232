package model

// transitions is the directed graph of legal status changes. A self
// transition is always legal and is not listed here.
var transitions = map[Status][]Status{
	StatusTodo:         {StatusTaskReview, StatusCancelled},
	StatusTaskReview:   {StatusTodo, StatusInProgress, StatusCancelled},
	StatusInProgress:   {StatusResultReview, StatusCancelled},
	StatusResultReview: {StatusInProgress, StatusDone, StatusCancelled},
	StatusDone:         {StatusCancelled},
	StatusCancelled:    {StatusTodo},
}

// Statuses lists every task status in lifecycle order.
var Statuses = []Status{
	StatusTodo,
	StatusTaskReview,
	StatusInProgress,
	StatusResultReview,
	StatusDone,
	StatusCancelled,
}

// IsLegal reports whether a task may move from one status to another.
// Unknown statuses are never legal, not even as a self transition.
func IsLegal(from, to Status) bool {
	if !from.IsValid() || !to.IsValid() {
		return false
	}
	if from == to {
		return true
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// AllowedTransitions returns the statuses reachable from from in one step,
// excluding from itself. The result is a fresh slice.
func AllowedTransitions(from Status) []Status {
	return append([]Status(nil), transitions[from]...)
}

// ReviewTypeFor returns the review being concluded when a task leaves from.
// Moves out of non-review statuses have no review type.
func ReviewTypeFor(from Status) ReviewType {
	switch from {
	case StatusTaskReview:
		return ReviewTypeTask
	case StatusResultReview:
		return ReviewTypeResult
	}
	return ""
}
