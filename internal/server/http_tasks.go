package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/alfredjeanlab/taskgate/internal/approval"
	"github.com/alfredjeanlab/taskgate/internal/model"
)

type createTaskInput struct {
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	Priority       model.Priority `json:"priority"`
	Assignee       string         `json:"assignee"`
	CreatedBy      string         `json:"created_by"`
	StakeholderIDs []string       `json:"stakeholder_ids"`
}

type updateTaskInput struct {
	Actor       string          `json:"actor"`
	Title       *string         `json:"title"`
	Description *string         `json:"description"`
	Priority    *model.Priority `json:"priority"`
	Assignee    *string         `json:"assignee"`
}

type stakeholdersInput struct {
	Actor          string   `json:"actor"`
	StakeholderIDs []string `json:"stakeholder_ids"`
}

// handleCreateTask handles POST /v1/tasks.
func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var in createTaskInput
	if err := decodeBody(r, &in); err != nil {
		writeEngineError(w, err)
		return
	}
	creator, err := actorFrom(r, in.CreatedBy)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	task, err := s.engine.CreateTask(r.Context(), approval.NewTask{
		Title:          in.Title,
		Description:    in.Description,
		Priority:       in.Priority,
		Assignee:       in.Assignee,
		CreatedBy:      creator,
		StakeholderIDs: in.StakeholderIDs,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

// handleListTasks handles GET /v1/tasks.
func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.TaskFilter{
		Assignee:    q.Get("assignee"),
		CreatedBy:   q.Get("created_by"),
		Stakeholder: q.Get("stakeholder"),
		Search:      q.Get("search"),
		Sort:        q.Get("sort"),
	}
	if v := q.Get("status"); v != "" {
		for _, st := range strings.Split(v, ",") {
			filter.Status = append(filter.Status, model.Status(st))
		}
	}
	if v := q.Get("priority"); v != "" {
		for _, p := range strings.Split(v, ",") {
			filter.Priority = append(filter.Priority, model.Priority(p))
		}
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}

	tasks, total, err := s.engine.ListTasks(r.Context(), filter)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	// Ensure tasks is never null in JSON output.
	if tasks == nil {
		tasks = []*model.Task{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tasks": tasks,
		"total": total,
	})
}

// handleGetTask handles GET /v1/tasks/{id}.
func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.engine.GetTask(r.Context(), r.PathValue("id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// handleUpdateTask handles PATCH /v1/tasks/{id}.
func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	var in updateTaskInput
	if err := decodeBody(r, &in); err != nil {
		writeEngineError(w, err)
		return
	}
	actor, err := actorFrom(r, in.Actor)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	task, err := s.engine.UpdateTask(r.Context(), r.PathValue("id"), actor, approval.TaskUpdate{
		Title:       in.Title,
		Description: in.Description,
		Priority:    in.Priority,
		Assignee:    in.Assignee,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// handleDeleteTask handles DELETE /v1/tasks/{id}.
func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r, r.URL.Query().Get("actor"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if err := s.engine.DeleteTask(r.Context(), r.PathValue("id"), actor); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSetStakeholders handles PUT /v1/tasks/{id}/stakeholders.
func (s *Server) handleSetStakeholders(w http.ResponseWriter, r *http.Request) {
	var in stakeholdersInput
	if err := decodeBody(r, &in); err != nil {
		writeEngineError(w, err)
		return
	}
	actor, err := actorFrom(r, in.Actor)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	task, err := s.engine.SetStakeholders(r.Context(), r.PathValue("id"), actor, in.StakeholderIDs)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// handleGetHistory handles GET /v1/tasks/{id}/history.
func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := s.engine.History(r.Context(), r.PathValue("id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if entries == nil {
		entries = []*model.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": entries})
}

// handleGetEvents handles GET /v1/tasks/{id}/events.
func (s *Server) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	evts, err := s.store.GetEvents(r.Context(), r.PathValue("id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if evts == nil {
		evts = []*model.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": evts})
}
