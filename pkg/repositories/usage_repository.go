package repositories

import (
	"context"
	"fmt"

	"github.com/mentorstack/mentor-engine/pkg/database"
	"github.com/mentorstack/mentor-engine/pkg/models"
)

// UsageRepository defines the interface for token-usage data access.
// Rows are append-only.
type UsageRepository interface {
	Record(ctx context.Context, usage *models.TokenUsage) error
	SummarizeByUser(ctx context.Context, username string) ([]*models.UsageSummary, error)
}

type usageRepository struct {
	db *database.DB
}

// NewUsageRepository creates a new usage repository.
func NewUsageRepository(db *database.DB) UsageRepository {
	return &usageRepository{db: db}
}

var _ UsageRepository = (*usageRepository)(nil)

// Record appends one usage row.
func (r *usageRepository) Record(ctx context.Context, usage *models.TokenUsage) error {
	query := `
		INSERT INTO mentor_token_usage (username, capability, prompt_tokens, completion_tokens, cost_usd, succeeded, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())`

	_, err := r.db.Exec(ctx, query,
		usage.Username,
		usage.Capability,
		usage.PromptTokens,
		usage.CompletionTokens,
		usage.CostUSD,
		usage.Succeeded,
	)
	if err != nil {
		return fmt.Errorf("failed to record token usage: %w", err)
	}

	return nil
}

// SummarizeByUser aggregates usage per capability for one user, ordered by
// capability name for stable reports.
func (r *usageRepository) SummarizeByUser(ctx context.Context, username string) ([]*models.UsageSummary, error) {
	query := `
		SELECT capability,
		       COUNT(*),
		       COUNT(*) FILTER (WHERE NOT succeeded),
		       COALESCE(SUM(prompt_tokens), 0),
		       COALESCE(SUM(completion_tokens), 0),
		       COALESCE(SUM(cost_usd), 0)
		FROM mentor_token_usage
		WHERE username = $1
		GROUP BY capability
		ORDER BY capability`

	rows, err := r.db.Query(ctx, query, username)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize usage: %w", err)
	}
	defer rows.Close()

	var summaries []*models.UsageSummary
	for rows.Next() {
		var s models.UsageSummary
		if err := rows.Scan(
			&s.Capability,
			&s.Invocations,
			&s.Failures,
			&s.PromptTokens,
			&s.CompletionTokens,
			&s.CostUSD,
		); err != nil {
			return nil, fmt.Errorf("failed to scan usage summary: %w", err)
		}
		summaries = append(summaries, &s)
	}
	return summaries, rows.Err()
}
