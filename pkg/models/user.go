package models

import "time"

// User represents a registered account. The username is the unique identifier.
// CredentialHash is produced only by the canonical hashing scheme in
// pkg/crypto; no agent may persist a hash from a different scheme.
type User struct {
	Username       string    `json:"username"`
	CredentialHash string    `json:"-"`
	Tier           Tier      `json:"tier"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// User status constants.
const (
	UserActive   = "active"
	UserArchived = "archived"
)

// Tier is a subscription level gating access to certain capabilities.
type Tier string

// Subscription tiers, lowest to highest.
const (
	TierFree       Tier = "free"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

var tierRank = map[Tier]int{
	TierFree:       0,
	TierPro:        1,
	TierEnterprise: 2,
}

// IsValidTier checks if the given tier is known.
func IsValidTier(t Tier) bool {
	_, ok := tierRank[t]
	return ok
}

// AtLeast reports whether t meets or exceeds the required tier.
// Unknown tiers never satisfy any requirement.
func (t Tier) AtLeast(required Tier) bool {
	tr, ok := tierRank[t]
	if !ok {
		return false
	}
	rr, ok := tierRank[required]
	if !ok {
		return false
	}
	return tr >= rr
}

// Identity is the authenticated caller's full record, never a bare username.
// Agents receive it on every invocation so they can branch on tier, role, or
// archived status without a second lookup.
type Identity struct {
	Username string `json:"username"`
	Tier     Tier   `json:"tier"`
	Status   string `json:"status"`
}

// IsActive reports whether the identity may invoke capabilities.
func (i *Identity) IsActive() bool {
	return i != nil && i.Username != "" && i.Status == UserActive
}

// IdentityOf builds the Identity for a user record.
func IdentityOf(u *User) *Identity {
	return &Identity{Username: u.Username, Tier: u.Tier, Status: u.Status}
}
