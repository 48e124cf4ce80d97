package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mentorstack/mentor-engine/pkg/apperrors"
	"github.com/mentorstack/mentor-engine/pkg/ident"
	"github.com/mentorstack/mentor-engine/pkg/llm"
	"github.com/mentorstack/mentor-engine/pkg/models"
	"github.com/mentorstack/mentor-engine/pkg/orchestrator"
	"github.com/mentorstack/mentor-engine/pkg/repositories"
)

// maxChunkRunes caps one knowledge entry; oversized paragraphs are split.
const maxChunkRunes = 2000

// IngestPayload feeds one extracted document into a project's knowledge.
type IngestPayload struct {
	ProjectID string `json:"project_id"`
	Name      string `json:"name"`
	Content   string `json:"content"`
}

// IngestResult reports what was stored.
type IngestResult struct {
	ProjectID string   `json:"project_id"`
	Source    string   `json:"source"`
	Chunks    int      `json:"chunks"`
	EntryIDs  []string `json:"entry_ids"`
}

// DocumentAgent turns extracted document text into immutable knowledge
// entries. Entries live and die with their project.
type DocumentAgent interface {
	Ingest(ctx context.Context, caller *models.Identity, p *IngestPayload) (*IngestResult, error)
	Capabilities() []orchestrator.Capability
}

type documentAgent struct {
	projects  repositories.ProjectRepository
	knowledge repositories.KnowledgeRepository
	embedder  llm.Embedder
	logger    *zap.Logger
}

var _ DocumentAgent = (*documentAgent)(nil)

// NewDocumentAgent creates the document agent.
func NewDocumentAgent(
	projects repositories.ProjectRepository,
	knowledge repositories.KnowledgeRepository,
	embedder llm.Embedder,
	logger *zap.Logger,
) DocumentAgent {
	return &documentAgent{
		projects:  projects,
		knowledge: knowledge,
		embedder:  embedder,
		logger:    logger.Named("agent.document"),
	}
}

func (a *documentAgent) Ingest(ctx context.Context, caller *models.Identity, p *IngestPayload) (*IngestResult, error) {
	if p.ProjectID == "" {
		return nil, apperrors.Validation("missing_project_id", "project_id is required")
	}
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return nil, apperrors.Validation("missing_name", "name is required")
	}
	if strings.TrimSpace(p.Content) == "" {
		return nil, apperrors.Validation("missing_content", "content is required")
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

	chunks := chunkParagraphs(p.Content)
	vectors, err := a.embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("embed document: %w", err)
	}

	source := "document:" + name
	ids := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		entry := &models.KnowledgeEntry{
			ID:        ident.Generate(ident.KindKnowledge),
			ProjectID: project.ID,
			Content:   chunk,
			Source:    source,
			Embedding: vectors[i],
		}
		if err := a.knowledge.Create(ctx, entry); err != nil {
			return nil, err
		}
		ids = append(ids, entry.ID)
	}

	a.logger.Info("document ingested",
		zap.String("project_id", project.ID),
		zap.String("source", source),
		zap.Int("chunks", len(ids)))
	return &IngestResult{
		ProjectID: project.ID,
		Source:    source,
		Chunks:    len(ids),
		EntryIDs:  ids,
	}, nil
}

// chunkParagraphs splits text on blank lines, dropping empty paragraphs
// and slicing anything longer than maxChunkRunes.
func chunkParagraphs(content string) []string {
	normalized := strings.ReplaceAll(content, "\r\n", "\n")
	var chunks []string
	for _, para := range strings.Split(normalized, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		runes := []rune(para)
		for len(runes) > maxChunkRunes {
			chunks = append(chunks, string(runes[:maxChunkRunes]))
			runes = runes[maxChunkRunes:]
		}
		if len(runes) > 0 {
			chunks = append(chunks, string(runes))
		}
	}
	return chunks
}

// Capabilities returns the document agent's registry entries.
func (a *documentAgent) Capabilities() []orchestrator.Capability {
	return []orchestrator.Capability{
		{
			Name:        "document.ingest",
			Description: "Ingest extracted document text as project knowledge",
			Agent:       "document",
			MinTier:     models.TierPro,
			Validate:    validateAs[IngestPayload],
			Execute: func(ctx context.Context, caller *models.Identity, payload any) (any, error) {
				return a.Ingest(ctx, caller, payload.(*IngestPayload))
			},
		},
	}
}
