// Package crypto holds the canonical credential-hashing scheme and the
// encryption utilities for secrets at rest. Exactly one hashing algorithm
// version is in force at a time; every caller path must hash and verify
// through this package so the two entry points can never diverge on
// password-verification results.
package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// bcryptCost is the single algorithm parameter in force. Changing it only
// affects newly hashed credentials; existing digests keep verifying.
const bcryptCost = bcrypt.DefaultCost

// CredentialHasher is the canonical password-hashing scheme.
// There is no fallback algorithm.
type CredentialHasher interface {
	Hash(secret string) (string, error)
	Verify(secret, digest string) bool
}

type bcryptHasher struct{}

// NewCredentialHasher returns the canonical hasher.
func NewCredentialHasher() CredentialHasher {
	return &bcryptHasher{}
}

var _ CredentialHasher = (*bcryptHasher)(nil)

// Hash produces a salted digest of the secret. Hashing the same secret twice
// yields different digests; both verify.
func (h *bcryptHasher) Hash(secret string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(secret), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash credential: %w", err)
	}
	return string(digest), nil
}

// Verify reports whether secret matches digest.
func (h *bcryptHasher) Verify(secret, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(secret)) == nil
}

// TokenDigest returns the hex SHA-256 of a token value. Refresh tokens are
// persisted as digests only, never raw. Unlike credentials, token values are
// high-entropy random strings, so an unsalted digest supports exact lookup
// without weakening the scheme.
func TokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
