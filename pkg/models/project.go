// Package models contains domain types for mentor-engine.
package models

import (
	"time"
)

// Project represents a mentored project and everything it exclusively owns:
// the ordered technology-decision list and the collaborator set.
type Project struct {
	ID            string               `json:"id"` // generator-issued, "proj_" prefix
	OwnerUsername string               `json:"owner_username"`
	Name          string               `json:"name"`
	Status        string               `json:"status"`
	Progress      int                  `json:"progress"` // always in [0,100]
	Decisions     []TechnologyDecision `json:"decisions"`
	Collaborators map[string]string    `json:"collaborators"` // username -> role
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

// Project status constants.
const (
	ProjectActive   = "active"
	ProjectArchived = "archived"
	ProjectDeleted  = "deleted"
)

// Collaborator role constants.
const (
	RoleOwner  = "owner"
	RoleEditor = "editor"
	RoleViewer = "viewer"
)

// ValidCollaboratorRoles contains the roles assignable to collaborators.
var ValidCollaboratorRoles = []string{RoleOwner, RoleEditor, RoleViewer}

// IsValidCollaboratorRole checks if the given role is assignable.
func IsValidCollaboratorRole(role string) bool {
	for _, r := range ValidCollaboratorRoles {
		if r == role {
			return true
		}
	}
	return false
}

// TechnologyDecision records one technology choice made for a project.
// Decisions are append-only and keep insertion order. Category is the
// conflict category the value matched when it was recorded; empty for
// technologies the framework does not know.
type TechnologyDecision struct {
	Category  string    `json:"category,omitempty"`
	Value     string    `json:"value"`
	DecidedBy string    `json:"decided_by"`
	DecidedAt time.Time `json:"decided_at"`
}

// CanTransition reports whether a project status change is allowed.
// Transitions are one-directional except restore-from-archive.
func (p *Project) CanTransition(to string) bool {
	switch p.Status {
	case ProjectActive:
		return to == ProjectArchived || to == ProjectDeleted
	case ProjectArchived:
		return to == ProjectActive || to == ProjectDeleted
	default:
		return false
	}
}

// OwnerCount returns the number of collaborators holding the owner role.
// The exactly-one-owner invariant is enforced by the project agent.
func (p *Project) OwnerCount() int {
	n := 0
	for _, role := range p.Collaborators {
		if role == RoleOwner {
			n++
		}
	}
	return n
}
