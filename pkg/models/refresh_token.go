package models

import "time"

// RefreshToken is a session credential. Only the SHA-256 digest of the token
// value is persisted, never the raw value. A token is usable only while
// RevokedAt is nil and the current time is before ExpiresAt; expired tokens
// are lazily marked revoked on the first validation attempt after expiry.
type RefreshToken struct {
	ID        string     `json:"id"` // generator-issued, "rtok_" prefix
	Username  string     `json:"username"`
	Digest    string     `json:"-"`
	ExpiresAt time.Time  `json:"expires_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Usable reports whether the token is valid at the given instant.
func (t *RefreshToken) Usable(now time.Time) bool {
	return t.RevokedAt == nil && now.Before(t.ExpiresAt)
}
