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

const analyzerSearchLimit = 5

// ContextSummary is the analyzer's output: a snapshot of the structured
// record plus the knowledge entries most relevant to the query.
type ContextSummary struct {
	ProjectID     string           `json:"project_id"`
	Name          string           `json:"name"`
	Status        string           `json:"status"`
	Progress      int              `json:"progress"`
	Decisions     []string         `json:"decisions"`
	Collaborators int              `json:"collaborators"`
	Knowledge     []KnowledgeMatch `json:"knowledge"`
	Narrative     string           `json:"narrative,omitempty"`
}

// KnowledgeMatch is one relevant knowledge entry.
type KnowledgeMatch struct {
	ID      string `json:"id"`
	Source  string `json:"source"`
	Content string `json:"content"`
}

// AnalyzePayload requests a context summary. Query steers the knowledge
// search; when empty the project name is used.
type AnalyzePayload struct {
	ProjectID string `json:"project_id"`
	Query     string `json:"query,omitempty"`
}

// AnalyzerAgent summarizes a project from its structured record and its
// knowledge index.
type AnalyzerAgent interface {
	Analyze(ctx context.Context, caller *models.Identity, p *AnalyzePayload) (*ContextSummary, error)
	Capabilities() []orchestrator.Capability
}

type analyzerAgent struct {
	projects  repositories.ProjectRepository
	knowledge repositories.KnowledgeRepository
	chat      llm.ChatClient
	embedder  llm.Embedder
	logger    *zap.Logger
}

var _ AnalyzerAgent = (*analyzerAgent)(nil)

// NewAnalyzerAgent creates the context analyzer.
func NewAnalyzerAgent(
	projects repositories.ProjectRepository,
	knowledge repositories.KnowledgeRepository,
	chat llm.ChatClient,
	embedder llm.Embedder,
	logger *zap.Logger,
) AnalyzerAgent {
	return &analyzerAgent{
		projects:  projects,
		knowledge: knowledge,
		chat:      chat,
		embedder:  embedder,
		logger:    logger.Named("agent.analyzer"),
	}
}

func (a *analyzerAgent) Analyze(ctx context.Context, caller *models.Identity, p *AnalyzePayload) (*ContextSummary, error) {
	if p.ProjectID == "" {
		return nil, apperrors.Validation("missing_project_id", "project_id is required")
	}
	project, err := a.projects.Get(ctx, p.ProjectID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.Business("project_not_found", "project not found")
		}
		return nil, err
	}
	if !canView(project, caller.Username) {
		return nil, errProjectForbidden
	}

	query := strings.TrimSpace(p.Query)
	if query == "" {
		query = project.Name
	}
	vector, err := a.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	entries, err := a.knowledge.SearchSimilar(ctx, project.ID, vector, analyzerSearchLimit)
	if err != nil {
		return nil, err
	}

	summary := &ContextSummary{
		ProjectID:     project.ID,
		Name:          project.Name,
		Status:        project.Status,
		Progress:      project.Progress,
		Decisions:     decisionValues(project),
		Collaborators: len(project.Collaborators),
		Knowledge:     make([]KnowledgeMatch, 0, len(entries)),
	}
	for _, e := range entries {
		summary.Knowledge = append(summary.Knowledge, KnowledgeMatch{
			ID:      e.ID,
			Source:  e.Source,
			Content: e.Content,
		})
	}

	narrative, usage, err := a.chat.Complete(ctx,
		"You summarize software project state for a mentor. Three sentences, factual, no advice.",
		a.narrativePrompt(summary, query))
	orchestrator.AddUsage(ctx, usage)
	if err != nil {
		return nil, fmt.Errorf("summary generation: %w", err)
	}
	summary.Narrative = strings.TrimSpace(narrative)

	return summary, nil
}

func (a *analyzerAgent) narrativePrompt(s *ContextSummary, query string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Project %q, status %s, progress %d%%.\n", s.Name, s.Status, s.Progress)
	fmt.Fprintf(&b, "Decisions: %s.\n", strings.Join(s.Decisions, ", "))
	fmt.Fprintf(&b, "Focus: %s.\n", query)
	if len(s.Knowledge) > 0 {
		b.WriteString("Relevant notes:\n")
		for _, k := range s.Knowledge {
			fmt.Fprintf(&b, "- %s\n", k.Content)
		}
	}
	return b.String()
}

func decisionValues(p *models.Project) []string {
	values := make([]string, len(p.Decisions))
	for i, d := range p.Decisions {
		values[i] = d.Value
	}
	return values
}

// Capabilities returns the analyzer's registry entries.
func (a *analyzerAgent) Capabilities() []orchestrator.Capability {
	return []orchestrator.Capability{
		{
			Name:        "context.analyze",
			Description: "Summarize a project from its record and knowledge",
			Agent:       "analyzer",
			MinTier:     models.TierPro,
			Validate:    validateAs[AnalyzePayload],
			Execute: func(ctx context.Context, caller *models.Identity, payload any) (any, error) {
				return a.Analyze(ctx, caller, payload.(*AnalyzePayload))
			},
		},
	}
}
