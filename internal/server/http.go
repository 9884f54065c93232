package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
)

// ActorHeader carries the acting member when a request body does not.
const ActorHeader = "X-Actor-ID"

// NewHTTPHandler returns an http.Handler with all routes registered.
// When authToken is non-empty, requests (except GET /v1/health) must include
// a valid Authorization: Bearer <token> header.
func (s *Server) NewHTTPHandler(authToken string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/tasks", s.handleCreateTask)
	mux.HandleFunc("GET /v1/tasks", s.handleListTasks)
	mux.HandleFunc("GET /v1/tasks/{id}", s.handleGetTask)
	mux.HandleFunc("PATCH /v1/tasks/{id}", s.handleUpdateTask)
	mux.HandleFunc("DELETE /v1/tasks/{id}", s.handleDeleteTask)
	mux.HandleFunc("PUT /v1/tasks/{id}/stakeholders", s.handleSetStakeholders)
	mux.HandleFunc("POST /v1/tasks/{id}/transitions", s.handleRequestTransition)
	mux.HandleFunc("GET /v1/tasks/{id}/transitions", s.handleTaskTransitions)
	mux.HandleFunc("GET /v1/tasks/{id}/approval", s.handleGetApprovalState)
	mux.HandleFunc("GET /v1/tasks/{id}/approvals", s.handleListApprovals)
	mux.HandleFunc("GET /v1/tasks/{id}/history", s.handleGetHistory)
	mux.HandleFunc("GET /v1/tasks/{id}/events", s.handleGetEvents)
	mux.HandleFunc("GET /v1/approvals", s.handlePendingApprovals)
	mux.HandleFunc("GET /v1/approvals/{id}", s.handleGetApproval)
	mux.HandleFunc("POST /v1/approvals/{id}/ballots", s.handleCastBallot)
	mux.HandleFunc("POST /v1/approvals/{id}/cancel", s.handleCancelApproval)
	mux.HandleFunc("GET /v1/transitions", s.handleTransitionTable)
	mux.HandleFunc("GET /v1/events/stream", s.handleEventStream)
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	return LoggingMiddleware(AuthMiddleware(authToken, mux))
}

// handleHealth handles GET /v1/health.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decodeBody decodes a JSON request body into v. An empty body leaves v
// untouched.
func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return inputError("invalid JSON body")
	}
	return nil
}

// actorFrom returns the acting member: the body's actor field when set,
// else the X-Actor-ID header.
func actorFrom(r *http.Request, bodyActor string) (string, error) {
	actor := strings.TrimSpace(bodyActor)
	if actor == "" {
		actor = strings.TrimSpace(r.Header.Get(ActorHeader))
	}
	if actor == "" {
		return "", inputError("actor is required (body field or " + ActorHeader + " header)")
	}
	return actor, nil
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
