package agents

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/mentorstack/mentor-engine/pkg/apperrors"
	"github.com/mentorstack/mentor-engine/pkg/conflicts"
	"github.com/mentorstack/mentor-engine/pkg/models"
	"github.com/mentorstack/mentor-engine/pkg/orchestrator"
	"github.com/mentorstack/mentor-engine/pkg/repositories"
)

// ConflictReport is the detector's result: conflicts ordered by severity
// descending, then category name.
type ConflictReport struct {
	ProjectID string                `json:"project_id"`
	Decisions int                   `json:"decisions"`
	Conflicts []models.ConflictInfo `json:"conflicts"`
}

// ConflictAgent checks a project's technology decisions for mutually
// incompatible choices.
type ConflictAgent interface {
	Detect(ctx context.Context, caller *models.Identity, projectID string) (*ConflictReport, error)
	Capabilities() []orchestrator.Capability
}

type conflictAgent struct {
	projects repositories.ProjectRepository
	logger   *zap.Logger
}

var _ ConflictAgent = (*conflictAgent)(nil)

// NewConflictAgent creates the conflict detector.
func NewConflictAgent(projects repositories.ProjectRepository, logger *zap.Logger) ConflictAgent {
	return &conflictAgent{
		projects: projects,
		logger:   logger.Named("agent.conflict"),
	}
}

func (a *conflictAgent) Detect(ctx context.Context, caller *models.Identity, projectID string) (*ConflictReport, error) {
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

	values := make([]string, len(project.Decisions))
	for i, d := range project.Decisions {
		values[i] = d.Value
	}

	found := conflicts.Detect(values)
	if len(found) > 0 {
		a.logger.Info("conflicts detected",
			zap.String("project_id", projectID),
			zap.Int("count", len(found)))
	}
	return &ConflictReport{
		ProjectID: projectID,
		Decisions: len(values),
		Conflicts: found,
	}, nil
}

// Capabilities returns the detector's registry entries.
func (a *conflictAgent) Capabilities() []orchestrator.Capability {
	return []orchestrator.Capability{
		{
			Name:        "conflict.detect",
			Description: "Detect incompatible technology decisions",
			Agent:       "conflict",
			MinTier:     models.TierFree,
			Validate:    validateAs[projectIDPayload],
			Execute: func(ctx context.Context, caller *models.Identity, payload any) (any, error) {
				return a.Detect(ctx, caller, payload.(*projectIDPayload).ProjectID)
			},
		},
	}
}
