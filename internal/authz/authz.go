// Package authz decides who may request status changes and edit tasks.
package authz

import (
	"strings"

	"github.com/alfredjeanlab/taskgate/internal/model"
)

// Policy grants task control to the task's creator and to a fixed set of
// admins.
type Policy struct {
	admins map[string]struct{}
}

// NewPolicy returns a Policy with the given admin IDs. Blank IDs are ignored.
func NewPolicy(admins ...string) *Policy {
	p := &Policy{admins: make(map[string]struct{}, len(admins))}
	for _, a := range admins {
		if a = strings.TrimSpace(a); a != "" {
			p.admins[a] = struct{}{}
		}
	}
	return p
}

// ParseAdmins splits a comma-separated admin list such as the value of
// TASKGATE_ADMINS.
func ParseAdmins(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// IsAdmin reports whether id is an admin.
func (p *Policy) IsAdmin(id string) bool {
	_, ok := p.admins[id]
	return ok
}

// IsCreatorOrAdmin reports whether requesterID created task or is an admin.
func (p *Policy) IsCreatorOrAdmin(requesterID string, task *model.Task) bool {
	if requesterID == "" || task == nil {
		return false
	}
	return requesterID == task.CreatedBy || p.IsAdmin(requesterID)
}
