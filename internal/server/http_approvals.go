package server

import (
	"net/http"

	"github.com/alfredjeanlab/taskgate/internal/approval"
	"github.com/alfredjeanlab/taskgate/internal/model"
)

type transitionInput struct {
	Actor    string       `json:"actor"`
	ToStatus model.Status `json:"to_status"`
	Comment  string       `json:"comment"`
}

type ballotInput struct {
	Actor   string     `json:"actor"`
	Vote    model.Vote `json:"vote"`
	Comment string     `json:"comment"`
}

type cancelInput struct {
	Actor string `json:"actor"`
}

// handleRequestTransition handles POST /v1/tasks/{id}/transitions. A change
// that awaits votes answers 202 Accepted.
func (s *Server) handleRequestTransition(w http.ResponseWriter, r *http.Request) {
	var in transitionInput
	if err := decodeBody(r, &in); err != nil {
		writeEngineError(w, err)
		return
	}
	actor, err := actorFrom(r, in.Actor)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if in.ToStatus == "" {
		writeEngineError(w, inputError("to_status is required"))
		return
	}

	res, err := s.engine.RequestTransition(r.Context(), approval.TransitionRequest{
		TaskID:      r.PathValue("id"),
		RequesterID: actor,
		ToStatus:    in.ToStatus,
		Comment:     in.Comment,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	code := http.StatusOK
	if res.Kind == approval.ResultPending {
		code = http.StatusAccepted
	}
	writeJSON(w, code, res)
}

// handleTaskTransitions handles GET /v1/tasks/{id}/transitions.
func (s *Server) handleTaskTransitions(w http.ResponseWriter, r *http.Request) {
	task, err := s.engine.GetTask(r.Context(), r.PathValue("id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  task.Status,
		"allowed": model.AllowedTransitions(task.Status),
	})
}

// handleTransitionTable handles GET /v1/transitions. With from and to query
// parameters it answers whether that single move is legal.
func (s *Server) handleTransitionTable(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if from, to := q.Get("from"), q.Get("to"); from != "" || to != "" {
		writeJSON(w, http.StatusOK, map[string]any{
			"from":  from,
			"to":    to,
			"legal": s.engine.IsLegal(model.Status(from), model.Status(to)),
		})
		return
	}
	table := make(map[model.Status][]model.Status, len(model.Statuses))
	for _, st := range model.Statuses {
		table[st] = model.AllowedTransitions(st)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"statuses":    model.Statuses,
		"transitions": table,
	})
}

// handleGetApprovalState handles GET /v1/tasks/{id}/approval. The approval
// field is null when nothing is open.
func (s *Server) handleGetApprovalState(w http.ResponseWriter, r *http.Request) {
	a, err := s.engine.GetApprovalState(r.Context(), r.PathValue("id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"approval": a})
}

// handleListApprovals handles GET /v1/tasks/{id}/approvals.
func (s *Server) handleListApprovals(w http.ResponseWriter, r *http.Request) {
	list, err := s.engine.ListApprovals(r.Context(), r.PathValue("id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if list == nil {
		list = []*model.PendingApproval{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"approvals": list})
}

// handlePendingApprovals handles GET /v1/approvals?stakeholder=ID, the open
// approvals still waiting on that stakeholder's vote.
func (s *Server) handlePendingApprovals(w http.ResponseWriter, r *http.Request) {
	who, err := actorFrom(r, r.URL.Query().Get("stakeholder"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	list, err := s.engine.PendingForStakeholder(r.Context(), who)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if list == nil {
		list = []*model.PendingApproval{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"approvals": list})
}

// handleGetApproval handles GET /v1/approvals/{id}.
func (s *Server) handleGetApproval(w http.ResponseWriter, r *http.Request) {
	a, err := s.engine.GetApproval(r.Context(), r.PathValue("id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// handleCastBallot handles POST /v1/approvals/{id}/ballots.
func (s *Server) handleCastBallot(w http.ResponseWriter, r *http.Request) {
	var in ballotInput
	if err := decodeBody(r, &in); err != nil {
		writeEngineError(w, err)
		return
	}
	actor, err := actorFrom(r, in.Actor)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	res, err := s.engine.CastBallot(r.Context(), approval.BallotRequest{
		ApprovalID:    r.PathValue("id"),
		StakeholderID: actor,
		Vote:          in.Vote,
		Comment:       in.Comment,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleCancelApproval handles POST /v1/approvals/{id}/cancel.
func (s *Server) handleCancelApproval(w http.ResponseWriter, r *http.Request) {
	var in cancelInput
	if err := decodeBody(r, &in); err != nil {
		writeEngineError(w, err)
		return
	}
	actor, err := actorFrom(r, in.Actor)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	a, err := s.engine.CancelPendingApproval(r.Context(), r.PathValue("id"), actor)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}
