package server

import (
	"errors"
	"log/slog"
	"net/http"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/alfredjeanlab/taskgate/internal/approval"
)

// ErrorDomain is the ErrorInfo domain attached to gRPC errors.
const ErrorDomain = "taskgate"

// httpStatusFor maps an engine error kind to an HTTP status code.
func httpStatusFor(kind string) int {
	switch kind {
	case approval.KindNotFound:
		return http.StatusNotFound
	case approval.KindUnauthorized:
		return http.StatusForbidden
	case approval.KindInvalidInput, approval.KindInvalidVote:
		return http.StatusBadRequest
	case approval.KindInvalidTransition:
		return http.StatusUnprocessableEntity
	case approval.KindDuplicatePendingApproval, approval.KindAlreadyVoted,
		approval.KindAlreadyResolved, approval.KindTaskLocked:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// grpcCodeFor maps an engine error kind to a gRPC status code.
func grpcCodeFor(kind string) codes.Code {
	switch kind {
	case approval.KindNotFound:
		return codes.NotFound
	case approval.KindUnauthorized:
		return codes.PermissionDenied
	case approval.KindInvalidInput, approval.KindInvalidVote:
		return codes.InvalidArgument
	case approval.KindDuplicatePendingApproval, approval.KindAlreadyVoted:
		return codes.AlreadyExists
	case approval.KindInvalidTransition, approval.KindAlreadyResolved, approval.KindTaskLocked:
		return codes.FailedPrecondition
	}
	return codes.Internal
}

// errorKind classifies err, treating transport input errors as invalid input.
func errorKind(err error) string {
	var ie inputError
	if errors.As(err, &ie) {
		return approval.KindInvalidInput
	}
	return approval.Kind(err)
}

// writeEngineError writes err as a JSON error response carrying its kind.
// Internal errors are logged and their detail is not echoed.
func writeEngineError(w http.ResponseWriter, err error) {
	kind := errorKind(err)
	msg := err.Error()
	if kind == approval.KindInternal {
		slog.Error("request failed", "error", err)
		msg = "internal error"
	}
	writeJSON(w, httpStatusFor(kind), map[string]string{"error": msg, "kind": kind})
}

// grpcError converts err into a gRPC status with an ErrorInfo detail naming
// its kind.
func grpcError(err error) error {
	kind := errorKind(err)
	msg := err.Error()
	if kind == approval.KindInternal {
		slog.Error("rpc failed", "error", err)
		msg = "internal error"
	}
	st := status.New(grpcCodeFor(kind), msg)
	if detailed, derr := st.WithDetails(&errdetails.ErrorInfo{Reason: kind, Domain: ErrorDomain}); derr == nil {
		st = detailed
	}
	return st.Err()
}
