package repositories

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/mentorstack/mentor-engine/pkg/database"
	"github.com/mentorstack/mentor-engine/pkg/models"
)

// KnowledgeRepository defines the interface for knowledge entry data access.
// Entries are immutable once created; there is no Update.
type KnowledgeRepository interface {
	Create(ctx context.Context, entry *models.KnowledgeEntry) error
	ListByProject(ctx context.Context, projectID string) ([]*models.KnowledgeEntry, error)
	DeleteByProject(ctx context.Context, projectID string) error
	// SearchSimilar ranks a project's entries by cosine similarity to the
	// query embedding and returns the top limit entries.
	SearchSimilar(ctx context.Context, projectID string, embedding []float32, limit int) ([]*models.KnowledgeEntry, error)
}

type knowledgeRepository struct {
	db *database.DB
}

// NewKnowledgeRepository creates a new knowledge repository.
func NewKnowledgeRepository(db *database.DB) KnowledgeRepository {
	return &knowledgeRepository{db: db}
}

var _ KnowledgeRepository = (*knowledgeRepository)(nil)

// Create inserts a new knowledge entry.
func (r *knowledgeRepository) Create(ctx context.Context, entry *models.KnowledgeEntry) error {
	entry.CreatedAt = time.Now()

	query := `
		INSERT INTO mentor_knowledge (id, project_id, content, source, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.Exec(ctx, query,
		entry.ID,
		entry.ProjectID,
		entry.Content,
		entry.Source,
		entry.Embedding,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create knowledge entry: %w", err)
	}

	return nil
}

// ListByProject returns all entries for a project in insertion order.
func (r *knowledgeRepository) ListByProject(ctx context.Context, projectID string) ([]*models.KnowledgeEntry, error) {
	query := `
		SELECT id, project_id, content, source, embedding, created_at
		FROM mentor_knowledge
		WHERE project_id = $1
		ORDER BY created_at ASC, id ASC`

	rows, err := r.db.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list knowledge entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.KnowledgeEntry
	for rows.Next() {
		var entry models.KnowledgeEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.ProjectID,
			&entry.Content,
			&entry.Source,
			&entry.Embedding,
			&entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan knowledge entry: %w", err)
		}
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}

// DeleteByProject removes all entries owned by a project.
func (r *knowledgeRepository) DeleteByProject(ctx context.Context, projectID string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM mentor_knowledge WHERE project_id = $1`, projectID); err != nil {
		return fmt.Errorf("failed to delete knowledge entries: %w", err)
	}
	return nil
}

// SearchSimilar loads the project's entries and ranks them in process.
// Project knowledge sets are small (hundreds of entries), so a full scan per
// query beats maintaining a server-side index.
func (r *knowledgeRepository) SearchSimilar(ctx context.Context, projectID string, embedding []float32, limit int) ([]*models.KnowledgeEntry, error) {
	entries, err := r.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	return RankBySimilarity(entries, embedding, limit), nil
}

// RankBySimilarity orders entries by cosine similarity to the query
// embedding, descending, ties broken by entry ID for determinism.
func RankBySimilarity(entries []*models.KnowledgeEntry, query []float32, limit int) []*models.KnowledgeEntry {
	type scored struct {
		entry *models.KnowledgeEntry
		score float64
	}

	ranked := make([]scored, 0, len(entries))
	for _, e := range entries {
		ranked = append(ranked, scored{entry: e, score: CosineSimilarity(query, e.Embedding)})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].entry.ID < ranked[j].entry.ID
	})

	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}

	result := make([]*models.KnowledgeEntry, len(ranked))
	for i, s := range ranked {
		result[i] = s.entry
	}
	return result
}
