package agents

import (
	"context"
	"errors"
	"regexp"

	"go.uber.org/zap"

	"github.com/mentorstack/mentor-engine/pkg/apperrors"
	"github.com/mentorstack/mentor-engine/pkg/crypto"
	"github.com/mentorstack/mentor-engine/pkg/models"
	"github.com/mentorstack/mentor-engine/pkg/orchestrator"
	"github.com/mentorstack/mentor-engine/pkg/repositories"
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{2,31}$`)

const minCredentialLength = 8

// UserAgent owns account lifecycle and credential verification. Register
// and Authenticate are also called directly by the auth service, which is
// how unauthenticated signup and login reach agent logic without passing
// the orchestrator's identity gate.
type UserAgent interface {
	Register(ctx context.Context, p *RegisterUserPayload) (*models.User, error)
	Authenticate(ctx context.Context, username, credential string) (*models.User, error)
	Archive(ctx context.Context, caller *models.Identity, username string) (*models.User, error)
	Restore(ctx context.Context, caller *models.Identity, username string) (*models.User, error)
	Delete(ctx context.Context, caller *models.Identity, username string) error
	Get(ctx context.Context, username string) (*models.User, error)
	Capabilities() []orchestrator.Capability
}

type userAgent struct {
	users  repositories.UserRepository
	hasher crypto.CredentialHasher
	logger *zap.Logger
}

var _ UserAgent = (*userAgent)(nil)

// NewUserAgent creates the user agent.
func NewUserAgent(users repositories.UserRepository, hasher crypto.CredentialHasher, logger *zap.Logger) UserAgent {
	return &userAgent{
		users:  users,
		hasher: hasher,
		logger: logger.Named("agent.user"),
	}
}

// RegisterUserPayload creates an account. Tier defaults to free.
type RegisterUserPayload struct {
	Username   string      `json:"username"`
	Credential string      `json:"credential"`
	Tier       models.Tier `json:"tier,omitempty"`
}

type usernamePayload struct {
	Username string `json:"username"`
}

func (a *userAgent) Register(ctx context.Context, p *RegisterUserPayload) (*models.User, error) {
	if !usernamePattern.MatchString(p.Username) {
		return nil, apperrors.Validation("invalid_username",
			"username must be 3-32 characters of lowercase letters, digits, _ or -")
	}
	if len(p.Credential) < minCredentialLength {
		return nil, apperrors.Validationf("credential_too_short",
			"credential must be at least %d characters", minCredentialLength)
	}
	tier := p.Tier
	if tier == "" {
		tier = models.TierFree
	}
	if !models.IsValidTier(tier) {
		return nil, apperrors.Validationf("invalid_tier", "unknown tier %q", tier)
	}

	hash, err := a.hasher.Hash(p.Credential)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Username:       p.Username,
		CredentialHash: hash,
		Tier:           tier,
		Status:         models.UserActive,
	}
	if err := a.users.Create(ctx, user); err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			return nil, apperrors.Businessf("duplicate_username", "username %q is taken", p.Username)
		}
		return nil, err
	}

	a.logger.Info("user registered", zap.String("username", user.Username), zap.String("tier", string(tier)))
	return user, nil
}

// Authenticate verifies a credential against the stored hash. Unknown
// usernames and wrong credentials fail identically so login attempts
// cannot probe for accounts.
func (a *userAgent) Authenticate(ctx context.Context, username, credential string) (*models.User, error) {
	user, err := a.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.Business("invalid_credentials", "invalid username or credential")
		}
		return nil, err
	}
	if !a.hasher.Verify(credential, user.CredentialHash) {
		return nil, apperrors.Business("invalid_credentials", "invalid username or credential")
	}
	if user.Status != models.UserActive {
		return nil, apperrors.Business("user_archived", "account is archived")
	}
	return user, nil
}

func (a *userAgent) Archive(ctx context.Context, caller *models.Identity, username string) (*models.User, error) {
	return a.setStatus(ctx, caller, username, models.UserArchived)
}

func (a *userAgent) Restore(ctx context.Context, caller *models.Identity, username string) (*models.User, error) {
	return a.setStatus(ctx, caller, username, models.UserActive)
}

func (a *userAgent) setStatus(ctx context.Context, caller *models.Identity, username, status string) (*models.User, error) {
	if username == "" {
		username = caller.Username
	}
	if err := a.authorizeAccountChange(caller, username); err != nil {
		return nil, err
	}

	user, err := a.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.Business("user_not_found", "user not found")
		}
		return nil, err
	}
	if user.Status == status {
		return user, nil
	}

	user.Status = status
	if err := a.users.Update(ctx, user); err != nil {
		return nil, err
	}
	a.logger.Info("user status changed",
		zap.String("username", username), zap.String("status", status))
	return user, nil
}

func (a *userAgent) Delete(ctx context.Context, caller *models.Identity, username string) error {
	if username == "" {
		username = caller.Username
	}
	if err := a.authorizeAccountChange(caller, username); err != nil {
		return err
	}

	if err := a.users.Delete(ctx, username); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.Business("user_not_found", "user not found")
		}
		return err
	}
	a.logger.Info("user deleted", zap.String("username", username))
	return nil
}

// authorizeAccountChange allows self-service changes; changes to other
// accounts need the enterprise tier.
func (a *userAgent) authorizeAccountChange(caller *models.Identity, username string) error {
	if username == caller.Username {
		return nil
	}
	if !caller.Tier.AtLeast(models.TierEnterprise) {
		return apperrors.Business("account_forbidden", "only enterprise callers may manage other accounts")
	}
	return nil
}

func (a *userAgent) Get(ctx context.Context, username string) (*models.User, error) {
	user, err := a.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.Business("user_not_found", "user not found")
		}
		return nil, err
	}
	return user, nil
}

// Capabilities returns the user agent's registry entries. Register and
// Authenticate are deliberately absent: they run pre-authentication
// through the auth service.
func (a *userAgent) Capabilities() []orchestrator.Capability {
	return []orchestrator.Capability{
		{
			Name:        "user.get",
			Description: "Fetch a user record",
			Agent:       "user",
			MinTier:     models.TierFree,
			Validate:    validateAs[usernamePayload],
			Execute: func(ctx context.Context, caller *models.Identity, payload any) (any, error) {
				username := payload.(*usernamePayload).Username
				if username == "" {
					username = caller.Username
				}
				return a.Get(ctx, username)
			},
		},
		{
			Name:        "user.archive",
			Description: "Archive an account",
			Agent:       "user",
			MinTier:     models.TierFree,
			Validate:    validateAs[usernamePayload],
			Execute: func(ctx context.Context, caller *models.Identity, payload any) (any, error) {
				return a.Archive(ctx, caller, payload.(*usernamePayload).Username)
			},
		},
		{
			Name:        "user.restore",
			Description: "Restore an archived account",
			Agent:       "user",
			MinTier:     models.TierEnterprise,
			Validate:    validateAs[usernamePayload],
			Execute: func(ctx context.Context, caller *models.Identity, payload any) (any, error) {
				return a.Restore(ctx, caller, payload.(*usernamePayload).Username)
			},
		},
		{
			Name:        "user.delete",
			Description: "Delete an account",
			Agent:       "user",
			MinTier:     models.TierFree,
			Validate:    validateAs[usernamePayload],
			Execute: func(ctx context.Context, caller *models.Identity, payload any) (any, error) {
				if err := a.Delete(ctx, caller, payload.(*usernamePayload).Username); err != nil {
					return nil, err
				}
				return map[string]bool{"deleted": true}, nil
			},
		},
	}
}
