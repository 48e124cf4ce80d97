// Package agents implements the eight capability agents. Each agent owns
// one business area, reads and writes only through the repositories built
// on the shared resource handle, and never calls another agent. Agents are
// reached exclusively through the orchestrator registry.
package agents

import (
	"bytes"
	"encoding/json"

	"github.com/mentorstack/mentor-engine/pkg/apperrors"
	"github.com/mentorstack/mentor-engine/pkg/models"
)

// decodeStrict parses a payload rejecting unknown fields. Empty payloads
// decode to the zero value so optional-field payloads stay ergonomic.
func decodeStrict[T any](raw json.RawMessage) (*T, error) {
	var v T
	if len(bytes.TrimSpace(raw)) == 0 {
		return &v, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		return nil, apperrors.Validationf("invalid_payload", "invalid payload: %v", err)
	}
	return &v, nil
}

// roleOf returns the caller's role on a project, or "" for non-members.
func roleOf(p *models.Project, username string) string {
	return p.Collaborators[username]
}

// canView reports whether the caller may read the project.
func canView(p *models.Project, username string) bool {
	return roleOf(p, username) != ""
}

// canEdit reports whether the caller may mutate project content.
func canEdit(p *models.Project, username string) bool {
	role := roleOf(p, username)
	return role == models.RoleOwner || role == models.RoleEditor
}

// isOwner reports whether the caller holds the owner role.
func isOwner(p *models.Project, username string) bool {
	return roleOf(p, username) == models.RoleOwner
}

var errProjectForbidden = apperrors.Business("project_forbidden", "caller has no access to this project")
