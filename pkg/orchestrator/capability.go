package orchestrator

import (
	"context"
	"encoding/json"

	"github.com/mentorstack/mentor-engine/pkg/models"
)

// Capability is one registered operation. The registry built from these
// entries is the single source of truth for routing, tier gating, and
// payload validation; both entry points dispatch through it.
type Capability struct {
	// Name is the dispatch key, e.g. "project.create".
	Name string

	// Description is shown by the console help listing.
	Description string

	// Agent names the owning agent, recorded on usage rows.
	Agent string

	// MinTier is the lowest subscription tier allowed to invoke this
	// capability.
	MinTier models.Tier

	// Validate parses and checks the raw payload. It returns the typed
	// payload passed to Execute, or a validation error.
	Validate func(payload json.RawMessage) (any, error)

	// Execute runs the agent operation with the validated payload and the
	// caller's full identity.
	Execute func(ctx context.Context, caller *models.Identity, payload any) (any, error)
}

// Info describes a capability for listings.
type Info struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Agent       string      `json:"agent"`
	MinTier     models.Tier `json:"min_tier"`
}
