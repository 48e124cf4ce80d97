package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mentorstack/mentor-engine/pkg/agents"
	"github.com/mentorstack/mentor-engine/pkg/apperrors"
	"github.com/mentorstack/mentor-engine/pkg/crypto"
	"github.com/mentorstack/mentor-engine/pkg/ident"
	"github.com/mentorstack/mentor-engine/pkg/locks"
	"github.com/mentorstack/mentor-engine/pkg/models"
	"github.com/mentorstack/mentor-engine/pkg/repositories"
)

// TokenPair is what login and refresh hand back.
type TokenPair struct {
	AccessToken     string       `json:"access_token"`
	AccessExpiresAt time.Time    `json:"access_expires_at"`
	RefreshToken    string       `json:"refresh_token"` // raw value, returned exactly once
	User            *models.User `json:"user"`
}

// Service drives registration, login, and the refresh-token lifecycle.
// It calls user-agent logic directly: signup and login arrive without an
// identity, so they cannot pass the orchestrator's caller gate, yet must
// use the exact same hashing and identifier schemes.
type Service struct {
	users      agents.UserAgent
	tokens     repositories.RefreshTokenRepository
	issuer     *TokenIssuer
	refreshTTL time.Duration
	userLocks  *locks.KeyedMutex
	now        func() time.Time
	logger     *zap.Logger
}

// NewService creates the auth service.
func NewService(
	users agents.UserAgent,
	tokens repositories.RefreshTokenRepository,
	issuer *TokenIssuer,
	refreshTTL time.Duration,
	logger *zap.Logger,
) *Service {
	return &Service{
		users:      users,
		tokens:     tokens,
		issuer:     issuer,
		refreshTTL: refreshTTL,
		userLocks:  locks.NewKeyedMutex(),
		now:        time.Now,
		logger:     logger.Named("auth"),
	}
}

// Register creates an account and logs it straight in.
func (s *Service) Register(ctx context.Context, p *agents.RegisterUserPayload) (*TokenPair, error) {
	user, err := s.users.Register(ctx, p)
	if err != nil {
		return nil, err
	}
	return s.issuePair(ctx, user)
}

// Login verifies a credential and issues a token pair.
func (s *Service) Login(ctx context.Context, username, credential string) (*TokenPair, error) {
	user, err := s.users.Authenticate(ctx, username, credential)
	if err != nil {
		return nil, err
	}
	return s.issuePair(ctx, user)
}

// Refresh rotates a token pair. Validation and revocation for one user
// are serialized so a token cannot be validated and revoked concurrently
// with inconsistent results.
func (s *Service) Refresh(ctx context.Context, rawToken string) (*TokenPair, error) {
	if rawToken == "" {
		return nil, apperrors.Validation("missing_refresh_token", "refresh_token is required")
	}

	token, err := s.tokens.GetByDigest(ctx, crypto.TokenDigest(rawToken))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.Business("token_invalid", "unknown refresh token")
		}
		return nil, err
	}

	s.userLocks.Lock(token.Username)
	defer s.userLocks.Unlock(token.Username)

	// Re-read under the lock; a concurrent refresh may have revoked it.
	token, err = s.tokens.GetByDigest(ctx, crypto.TokenDigest(rawToken))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.Business("token_invalid", "unknown refresh token")
		}
		return nil, err
	}

	now := s.now()
	if token.RevokedAt != nil {
		return nil, apperrors.Business("token_revoked", "refresh token has been revoked")
	}
	if !now.Before(token.ExpiresAt) {
		// Lazy revocation: the first validation after expiry marks the
		// token revoked; later attempts fail citing revocation.
		if err := s.tokens.MarkRevoked(ctx, token.ID, now); err != nil {
			return nil, err
		}
		return nil, apperrors.Business("token_expired", "refresh token has expired")
	}

	user, err := s.users.Get(ctx, token.Username)
	if err != nil {
		return nil, err
	}
	if user.Status != models.UserActive {
		return nil, apperrors.Business("user_archived", "account is archived")
	}

	if err := s.tokens.MarkRevoked(ctx, token.ID, now); err != nil {
		return nil, err
	}
	return s.issuePair(ctx, user)
}

// Logout revokes every outstanding refresh token for the caller.
func (s *Service) Logout(ctx context.Context, username string) error {
	s.userLocks.Lock(username)
	defer s.userLocks.Unlock(username)

	if err := s.tokens.RevokeAllForUser(ctx, username, s.now()); err != nil {
		return err
	}
	s.logger.Info("user logged out", zap.String("username", username))
	return nil
}

// Verify validates an access token into a caller identity.
func (s *Service) Verify(token string) (*models.Identity, error) {
	return s.issuer.VerifyAccess(token)
}

func (s *Service) issuePair(ctx context.Context, user *models.User) (*TokenPair, error) {
	identity := models.IdentityOf(user)
	access, expiresAt, err := s.issuer.IssueAccess(identity)
	if err != nil {
		return nil, err
	}

	raw, err := newRefreshValue()
	if err != nil {
		return nil, err
	}
	if err := s.tokens.Create(ctx, &models.RefreshToken{
		ID:        ident.Generate(ident.KindRefreshToken),
		Username:  user.Username,
		Digest:    crypto.TokenDigest(raw),
		ExpiresAt: s.now().Add(s.refreshTTL),
	}); err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:     access,
		AccessExpiresAt: expiresAt,
		RefreshToken:    raw,
		User:            user,
	}, nil
}

// newRefreshValue returns 32 bytes of entropy, hex-encoded.
func newRefreshValue() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
