package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mentorstack/mentor-engine/pkg/apperrors"
	"github.com/mentorstack/mentor-engine/pkg/llm"
	"github.com/mentorstack/mentor-engine/pkg/models"
	"github.com/mentorstack/mentor-engine/pkg/orchestrator"
	"github.com/mentorstack/mentor-engine/pkg/repositories"
)

// ScaffoldPayload asks for scaffold code for one component of a project.
type ScaffoldPayload struct {
	ProjectID string `json:"project_id"`
	Component string `json:"component"`
}

// Scaffold is generated code plus its provenance.
type Scaffold struct {
	ProjectID string `json:"project_id"`
	Component string `json:"component"`
	Model     string `json:"model"`
	Code      string `json:"code"`
}

// CodegenAgent generates scaffold code consistent with a project's
// recorded decision stack.
type CodegenAgent interface {
	Scaffold(ctx context.Context, caller *models.Identity, p *ScaffoldPayload) (*Scaffold, error)
	Capabilities() []orchestrator.Capability
}

type codegenAgent struct {
	projects repositories.ProjectRepository
	chat     llm.ChatClient
	logger   *zap.Logger
}

var _ CodegenAgent = (*codegenAgent)(nil)

// NewCodegenAgent creates the code generator.
func NewCodegenAgent(projects repositories.ProjectRepository, chat llm.ChatClient, logger *zap.Logger) CodegenAgent {
	return &codegenAgent{
		projects: projects,
		chat:     chat,
		logger:   logger.Named("agent.codegen"),
	}
}

func (a *codegenAgent) Scaffold(ctx context.Context, caller *models.Identity, p *ScaffoldPayload) (*Scaffold, error) {
	if p.ProjectID == "" {
		return nil, apperrors.Validation("missing_project_id", "project_id is required")
	}
	component := strings.TrimSpace(p.Component)
	if component == "" {
		return nil, apperrors.Validation("missing_component", "component is required")
	}

	project, err := a.projects.Get(ctx, p.ProjectID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.Business("project_not_found", "project not found")
		}
		return nil, err
	}
	if !canEdit(project, caller.Username) {
		return nil, errProjectForbidden
	}

	prompt := fmt.Sprintf(
		"Generate scaffold code for the %q component of project %q.\nTechnology stack: %s.\nReturn only code, no commentary.",
		component, project.Name, decisionList(project))

	code, usage, err := a.chat.Complete(ctx,
		"You scaffold production code matching the given technology stack exactly.",
		prompt)
	orchestrator.AddUsage(ctx, usage)
	if err != nil {
		return nil, fmt.Errorf("scaffold generation: %w", err)
	}

	a.logger.Info("scaffold generated",
		zap.String("project_id", project.ID),
		zap.String("component", component),
		zap.Int("tokens", usage.Total()))
	return &Scaffold{
		ProjectID: project.ID,
		Component: component,
		Model:     a.chat.Model(),
		Code:      code,
	}, nil
}

// Capabilities returns the generator's registry entries.
func (a *codegenAgent) Capabilities() []orchestrator.Capability {
	return []orchestrator.Capability{
		{
			Name:        "codegen.scaffold",
			Description: "Generate scaffold code for a project component",
			Agent:       "codegen",
			MinTier:     models.TierPro,
			Validate:    validateAs[ScaffoldPayload],
			Execute: func(ctx context.Context, caller *models.Identity, payload any) (any, error) {
				return a.Scaffold(ctx, caller, payload.(*ScaffoldPayload))
			},
		},
	}
}
