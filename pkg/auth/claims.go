// Package auth issues and verifies the engine's own credentials: short
// lived HS256 access tokens carrying the caller's identity, and opaque
// refresh tokens stored digest-only. It also bridges the unauthenticated
// register and login flows to the user agent.
package auth

import (
	"context"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mentorstack/mentor-engine/pkg/models"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

// IdentityKey is the context key for the authenticated caller's identity.
const IdentityKey contextKey = "identity"

// Claims is the access-token payload. It embeds RegisteredClaims for the
// standard fields (sub, exp, iat) and carries the caller's full identity,
// so handlers never need a second lookup to branch on tier or status.
type Claims struct {
	jwt.RegisteredClaims
	Tier   models.Tier `json:"tier"`
	Status string      `json:"status"`
}

// Identity rebuilds the caller identity from the claims.
func (c *Claims) Identity() *models.Identity {
	return &models.Identity{
		Username: c.Subject,
		Tier:     c.Tier,
		Status:   c.Status,
	}
}

// WithIdentity stores the caller identity in the context.
func WithIdentity(ctx context.Context, identity *models.Identity) context.Context {
	return context.WithValue(ctx, IdentityKey, identity)
}

// GetIdentity retrieves the caller identity from the context.
// Returns nil and false if no identity is present.
func GetIdentity(ctx context.Context) (*models.Identity, bool) {
	identity, ok := ctx.Value(IdentityKey).(*models.Identity)
	return identity, ok
}
