package agents

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mentorstack/mentor-engine/pkg/apperrors"
	"github.com/mentorstack/mentor-engine/pkg/conflicts"
	"github.com/mentorstack/mentor-engine/pkg/ident"
	"github.com/mentorstack/mentor-engine/pkg/locks"
	"github.com/mentorstack/mentor-engine/pkg/models"
	"github.com/mentorstack/mentor-engine/pkg/orchestrator"
	"github.com/mentorstack/mentor-engine/pkg/repositories"
)

// ProjectAgent owns the project lifecycle: creation, field updates, status
// transitions, the technology-decision list, and the collaborator set.
type ProjectAgent interface {
	Create(ctx context.Context, caller *models.Identity, p *CreateProjectPayload) (*models.Project, error)
	Update(ctx context.Context, caller *models.Identity, p *UpdateProjectPayload) (*models.Project, error)
	Archive(ctx context.Context, caller *models.Identity, projectID string) (*models.Project, error)
	Restore(ctx context.Context, caller *models.Identity, projectID string) (*models.Project, error)
	Delete(ctx context.Context, caller *models.Identity, projectID string) error
	AddDecision(ctx context.Context, caller *models.Identity, p *AddDecisionPayload) (*models.Project, error)
	AddCollaborator(ctx context.Context, caller *models.Identity, p *CollaboratorPayload) (*models.Project, error)
	RemoveCollaborator(ctx context.Context, caller *models.Identity, p *CollaboratorPayload) (*models.Project, error)
	Get(ctx context.Context, caller *models.Identity, projectID string) (*models.Project, error)
	ListByOwner(ctx context.Context, caller *models.Identity) ([]*models.Project, error)
	Capabilities() []orchestrator.Capability
}

type projectAgent struct {
	projects  repositories.ProjectRepository
	knowledge repositories.KnowledgeRepository
	users     repositories.UserRepository
	locks     *locks.KeyedMutex
	logger    *zap.Logger
}

var _ ProjectAgent = (*projectAgent)(nil)

// NewProjectAgent creates the project agent.
func NewProjectAgent(
	projects repositories.ProjectRepository,
	knowledge repositories.KnowledgeRepository,
	users repositories.UserRepository,
	projectLocks *locks.KeyedMutex,
	logger *zap.Logger,
) ProjectAgent {
	return &projectAgent{
		projects:  projects,
		knowledge: knowledge,
		users:     users,
		locks:     projectLocks,
		logger:    logger.Named("agent.project"),
	}
}

// CreateProjectPayload creates a project. Owner fields are not accepted:
// the owner is always the authenticated caller.
type CreateProjectPayload struct {
	Name string `json:"name"`
}

// UpdateProjectPayload is a field-level update; absent fields are untouched.
type UpdateProjectPayload struct {
	ProjectID string  `json:"project_id"`
	Name      *string `json:"name,omitempty"`
	Progress  *int    `json:"progress,omitempty"`
}

// AddDecisionPayload appends one technology decision.
type AddDecisionPayload struct {
	ProjectID string `json:"project_id"`
	Value     string `json:"value"`
}

// CollaboratorPayload adds or removes a collaborator.
type CollaboratorPayload struct {
	ProjectID string `json:"project_id"`
	Username  string `json:"username"`
	Role      string `json:"role,omitempty"` // ignored on remove
}

type projectIDPayload struct {
	ProjectID string `json:"project_id"`
}

func (a *projectAgent) Create(ctx context.Context, caller *models.Identity, p *CreateProjectPayload) (*models.Project, error) {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return nil, apperrors.Validation("missing_name", "name is required")
	}

	project := &models.Project{
		ID:            ident.Generate(ident.KindProject),
		OwnerUsername: caller.Username,
		Name:          name,
		Status:        models.ProjectActive,
		Progress:      0,
		Decisions:     []models.TechnologyDecision{},
		Collaborators: map[string]string{caller.Username: models.RoleOwner},
	}

	if err := a.projects.Create(ctx, project); err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			return nil, apperrors.Businessf("duplicate_name", "project %q already exists for this owner", name)
		}
		return nil, err
	}

	a.logger.Info("project created",
		zap.String("project_id", project.ID),
		zap.String("owner", caller.Username))
	return project, nil
}

func (a *projectAgent) Update(ctx context.Context, caller *models.Identity, p *UpdateProjectPayload) (*models.Project, error) {
	if p.Name == nil && p.Progress == nil {
		return nil, apperrors.Validation("empty_update", "at least one field must be provided")
	}
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return nil, apperrors.Validation("missing_name", "name must not be empty")
	}
	if p.Progress != nil && (*p.Progress < 0 || *p.Progress > 100) {
		return nil, apperrors.Validationf("progress_out_of_range", "progress must be in [0,100], got %d", *p.Progress)
	}

	return a.mutate(ctx, caller, p.ProjectID, canEdit, func(project *models.Project) (bool, error) {
		if project.Status != models.ProjectActive {
			return false, apperrors.Business("project_not_active", "only active projects can be updated")
		}
		if p.Name != nil {
			project.Name = strings.TrimSpace(*p.Name)
		}
		if p.Progress != nil {
			project.Progress = *p.Progress
		}
		return true, nil
	})
}

func (a *projectAgent) Archive(ctx context.Context, caller *models.Identity, projectID string) (*models.Project, error) {
	return a.transition(ctx, caller, projectID, models.ProjectArchived)
}

func (a *projectAgent) Restore(ctx context.Context, caller *models.Identity, projectID string) (*models.Project, error) {
	return a.transition(ctx, caller, projectID, models.ProjectActive)
}

// transition moves a project to the target status. Repeating a transition
// the project has already made is a no-op.
func (a *projectAgent) transition(ctx context.Context, caller *models.Identity, projectID, target string) (*models.Project, error) {
	return a.mutate(ctx, caller, projectID, isOwner, func(project *models.Project) (bool, error) {
		if project.Status == target {
			return false, nil
		}
		if !project.CanTransition(target) {
			return false, apperrors.Businessf("invalid_transition", "cannot move project from %s to %s", project.Status, target)
		}
		project.Status = target
		return true, nil
	})
}

func (a *projectAgent) Delete(ctx context.Context, caller *models.Identity, projectID string) error {
	if projectID == "" {
		return apperrors.Validation("missing_project_id", "project_id is required")
	}

	a.locks.Lock(projectID)
	defer a.locks.Unlock(projectID)

	project, err := a.projects.Get(ctx, projectID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.Business("project_not_found", "project not found")
		}
		return err
	}
	if !isOwner(project, caller.Username) {
		return errProjectForbidden
	}

	// Knowledge entries go first so a crash between the two deletes never
	// leaves orphaned entries pointing at a live project.
	if err := a.knowledge.DeleteByProject(ctx, projectID); err != nil {
		return err
	}
	if err := a.projects.Delete(ctx, projectID); err != nil {
		return err
	}

	a.logger.Info("project deleted",
		zap.String("project_id", projectID),
		zap.String("owner", caller.Username))
	return nil
}

func (a *projectAgent) AddDecision(ctx context.Context, caller *models.Identity, p *AddDecisionPayload) (*models.Project, error) {
	value := strings.TrimSpace(p.Value)
	if value == "" {
		return nil, apperrors.Validation("missing_value", "value is required")
	}

	category, _ := conflicts.FindConflictCategory(value)
	decidedAt := time.Now()
	return a.mutate(ctx, caller, p.ProjectID, canEdit, func(project *models.Project) (bool, error) {
		if project.Status != models.ProjectActive {
			return false, apperrors.Business("project_not_active", "only active projects accept decisions")
		}
		project.Decisions = append(project.Decisions, models.TechnologyDecision{
			Category:  category,
			Value:     value,
			DecidedBy: caller.Username,
			DecidedAt: decidedAt,
		})
		return true, nil
	})
}

func (a *projectAgent) AddCollaborator(ctx context.Context, caller *models.Identity, p *CollaboratorPayload) (*models.Project, error) {
	if p.Username == "" {
		return nil, apperrors.Validation("missing_username", "username is required")
	}
	if !models.IsValidCollaboratorRole(p.Role) {
		return nil, apperrors.Validationf("invalid_role", "role must be one of %s", strings.Join(models.ValidCollaboratorRoles, ", "))
	}
	if p.Role == models.RoleOwner {
		return nil, apperrors.Business("owner_exists", "a project has exactly one owner")
	}

	if _, err := a.users.GetByUsername(ctx, p.Username); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.Businessf("user_not_found", "user %q does not exist", p.Username)
		}
		return nil, err
	}

	return a.mutate(ctx, caller, p.ProjectID, isOwner, func(project *models.Project) (bool, error) {
		if roleOf(project, p.Username) == models.RoleOwner {
			return false, apperrors.Business("owner_exists", "a project has exactly one owner")
		}
		project.Collaborators[p.Username] = p.Role
		return true, nil
	})
}

func (a *projectAgent) RemoveCollaborator(ctx context.Context, caller *models.Identity, p *CollaboratorPayload) (*models.Project, error) {
	if p.Username == "" {
		return nil, apperrors.Validation("missing_username", "username is required")
	}

	return a.mutate(ctx, caller, p.ProjectID, isOwner, func(project *models.Project) (bool, error) {
		role, ok := project.Collaborators[p.Username]
		if !ok {
			return false, apperrors.Businessf("not_a_collaborator", "user %q is not a collaborator", p.Username)
		}
		if role == models.RoleOwner {
			return false, apperrors.Business("owner_required", "the owner cannot be removed")
		}
		delete(project.Collaborators, p.Username)
		return true, nil
	})
}

func (a *projectAgent) Get(ctx context.Context, caller *models.Identity, projectID string) (*models.Project, error) {
	if projectID == "" {
		return nil, apperrors.Validation("missing_project_id", "project_id is required")
	}
	project, err := a.projects.Get(ctx, projectID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.Business("project_not_found", "project not found")
		}
		return nil, err
	}
	if !canView(project, caller.Username) {
		return nil, errProjectForbidden
	}
	return project, nil
}

func (a *projectAgent) ListByOwner(ctx context.Context, caller *models.Identity) ([]*models.Project, error) {
	return a.projects.ListByOwner(ctx, caller.Username)
}

// mutate applies fn to a project under its per-project lock and persists
// the result when fn reports a change. The permission check runs on the
// freshly loaded record.
func (a *projectAgent) mutate(ctx context.Context, caller *models.Identity, projectID string, permitted func(*models.Project, string) bool, fn func(*models.Project) (bool, error)) (*models.Project, error) {
	if projectID == "" {
		return nil, apperrors.Validation("missing_project_id", "project_id is required")
	}

	a.locks.Lock(projectID)
	defer a.locks.Unlock(projectID)

	project, err := a.projects.Get(ctx, projectID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.Business("project_not_found", "project not found")
		}
		return nil, err
	}
	if !permitted(project, caller.Username) {
		return nil, errProjectForbidden
	}

	changed, err := fn(project)
	if err != nil {
		return nil, err
	}
	if !changed {
		return project, nil
	}

	if err := a.projects.Update(ctx, project); err != nil {
		return nil, err
	}
	return project, nil
}

// Capabilities returns the project agent's registry entries.
func (a *projectAgent) Capabilities() []orchestrator.Capability {
	return []orchestrator.Capability{
		{
			Name:        "project.create",
			Description: "Create a project owned by the caller",
			Agent:       "project",
			MinTier:     models.TierFree,
			Validate:    validateAs[CreateProjectPayload],
			Execute: func(ctx context.Context, caller *models.Identity, payload any) (any, error) {
				return a.Create(ctx, caller, payload.(*CreateProjectPayload))
			},
		},
		{
			Name:        "project.update",
			Description: "Update project fields",
			Agent:       "project",
			MinTier:     models.TierFree,
			Validate:    validateAs[UpdateProjectPayload],
			Execute: func(ctx context.Context, caller *models.Identity, payload any) (any, error) {
				return a.Update(ctx, caller, payload.(*UpdateProjectPayload))
			},
		},
		{
			Name:        "project.archive",
			Description: "Archive a project",
			Agent:       "project",
			MinTier:     models.TierFree,
			Validate:    validateAs[projectIDPayload],
			Execute: func(ctx context.Context, caller *models.Identity, payload any) (any, error) {
				return a.Archive(ctx, caller, payload.(*projectIDPayload).ProjectID)
			},
		},
		{
			Name:        "project.restore",
			Description: "Restore an archived project",
			Agent:       "project",
			MinTier:     models.TierFree,
			Validate:    validateAs[projectIDPayload],
			Execute: func(ctx context.Context, caller *models.Identity, payload any) (any, error) {
				return a.Restore(ctx, caller, payload.(*projectIDPayload).ProjectID)
			},
		},
		{
			Name:        "project.delete",
			Description: "Delete a project and everything it owns",
			Agent:       "project",
			MinTier:     models.TierFree,
			Validate:    validateAs[projectIDPayload],
			Execute: func(ctx context.Context, caller *models.Identity, payload any) (any, error) {
				if err := a.Delete(ctx, caller, payload.(*projectIDPayload).ProjectID); err != nil {
					return nil, err
				}
				return map[string]bool{"deleted": true}, nil
			},
		},
		{
			Name:        "project.decision.add",
			Description: "Record a technology decision",
			Agent:       "project",
			MinTier:     models.TierFree,
			Validate:    validateAs[AddDecisionPayload],
			Execute: func(ctx context.Context, caller *models.Identity, payload any) (any, error) {
				return a.AddDecision(ctx, caller, payload.(*AddDecisionPayload))
			},
		},
		{
			Name:        "project.collaborator.add",
			Description: "Add a collaborator",
			Agent:       "project",
			MinTier:     models.TierFree,
			Validate:    validateAs[CollaboratorPayload],
			Execute: func(ctx context.Context, caller *models.Identity, payload any) (any, error) {
				return a.AddCollaborator(ctx, caller, payload.(*CollaboratorPayload))
			},
		},
		{
			Name:        "project.collaborator.remove",
			Description: "Remove a collaborator",
			Agent:       "project",
			MinTier:     models.TierFree,
			Validate:    validateAs[CollaboratorPayload],
			Execute: func(ctx context.Context, caller *models.Identity, payload any) (any, error) {
				return a.RemoveCollaborator(ctx, caller, payload.(*CollaboratorPayload))
			},
		},
		{
			Name:        "project.get",
			Description: "Fetch one project",
			Agent:       "project",
			MinTier:     models.TierFree,
			Validate:    validateAs[projectIDPayload],
			Execute: func(ctx context.Context, caller *models.Identity, payload any) (any, error) {
				return a.Get(ctx, caller, payload.(*projectIDPayload).ProjectID)
			},
		},
		{
			Name:        "project.list",
			Description: "List the caller's own projects",
			Agent:       "project",
			MinTier:     models.TierFree,
			Validate:    validateAs[struct{}],
			Execute: func(ctx context.Context, caller *models.Identity, _ any) (any, error) {
				return a.ListByOwner(ctx, caller)
			},
		},
	}
}

// validateAs adapts decodeStrict to the registry's Validate signature.
func validateAs[T any](raw json.RawMessage) (any, error) {
	return decodeStrict[T](raw)
}
