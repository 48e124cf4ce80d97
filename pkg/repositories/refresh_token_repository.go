package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mentorstack/mentor-engine/pkg/apperrors"
	"github.com/mentorstack/mentor-engine/pkg/database"
	"github.com/mentorstack/mentor-engine/pkg/models"
)

// RefreshTokenRepository defines the interface for refresh-token data access.
// Only token digests are ever stored.
type RefreshTokenRepository interface {
	Create(ctx context.Context, token *models.RefreshToken) error
	GetByDigest(ctx context.Context, digest string) (*models.RefreshToken, error)
	MarkRevoked(ctx context.Context, id string, at time.Time) error
	RevokeAllForUser(ctx context.Context, username string, at time.Time) error
}

type refreshTokenRepository struct {
	db *database.DB
}

// NewRefreshTokenRepository creates a new refresh token repository.
func NewRefreshTokenRepository(db *database.DB) RefreshTokenRepository {
	return &refreshTokenRepository{db: db}
}

var _ RefreshTokenRepository = (*refreshTokenRepository)(nil)

// Create inserts a new refresh token record.
func (r *refreshTokenRepository) Create(ctx context.Context, token *models.RefreshToken) error {
	token.CreatedAt = time.Now()

	query := `
		INSERT INTO mentor_refresh_tokens (id, username, digest, expires_at, revoked_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.Exec(ctx, query,
		token.ID,
		token.Username,
		token.Digest,
		token.ExpiresAt,
		token.RevokedAt,
		token.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create refresh token: %w", err)
	}

	return nil
}

// GetByDigest retrieves a refresh token by its value digest.
func (r *refreshTokenRepository) GetByDigest(ctx context.Context, digest string) (*models.RefreshToken, error) {
	query := `
		SELECT id, username, digest, expires_at, revoked_at, created_at
		FROM mentor_refresh_tokens
		WHERE digest = $1`

	var token models.RefreshToken
	err := r.db.QueryRow(ctx, query, digest).Scan(
		&token.ID,
		&token.Username,
		&token.Digest,
		&token.ExpiresAt,
		&token.RevokedAt,
		&token.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get refresh token: %w", err)
	}

	return &token, nil
}

// MarkRevoked sets the revocation timestamp on a token. Idempotent: a token
// already revoked keeps its original revocation time.
func (r *refreshTokenRepository) MarkRevoked(ctx context.Context, id string, at time.Time) error {
	query := `
		UPDATE mentor_refresh_tokens
		SET revoked_at = $2
		WHERE id = $1 AND revoked_at IS NULL`

	if _, err := r.db.Exec(ctx, query, id, at); err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	return nil
}

// RevokeAllForUser revokes every live token owned by the user.
func (r *refreshTokenRepository) RevokeAllForUser(ctx context.Context, username string, at time.Time) error {
	query := `
		UPDATE mentor_refresh_tokens
		SET revoked_at = $2
		WHERE username = $1 AND revoked_at IS NULL`

	if _, err := r.db.Exec(ctx, query, username, at); err != nil {
		return fmt.Errorf("failed to revoke user tokens: %w", err)
	}
	return nil
}
