// Package orchestrator is the central dispatcher. Every capability
// invocation, from the console or over HTTP, goes through Process: it is
// the only sanctioned path to agent logic, so the subscription check, the
// identifier scheme, and the credential scheme are applied identically
// regardless of entry point.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/mentorstack/mentor-engine/pkg/apperrors"
	"github.com/mentorstack/mentor-engine/pkg/logging"
	"github.com/mentorstack/mentor-engine/pkg/models"
	"github.com/mentorstack/mentor-engine/pkg/repositories"
)

// Outcome is the normalized result of one invocation. Exactly one of Data
// and Err is meaningful.
type Outcome struct {
	Data any              `json:"data,omitempty"`
	Err  *apperrors.Error `json:"-"`
}

// OK reports whether the invocation succeeded.
func (o *Outcome) OK() bool { return o.Err == nil }

// Orchestrator routes capability invocations to their owning agents.
type Orchestrator struct {
	capabilities map[string]Capability
	usage        repositories.UsageRepository
	logger       *zap.Logger
}

// New creates an orchestrator with an empty registry.
func New(usage repositories.UsageRepository, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		capabilities: make(map[string]Capability),
		usage:        usage,
		logger:       logger.Named("orchestrator"),
	}
}

// Register adds capabilities to the registry. Duplicate names are a wiring
// bug and fail loudly.
func (o *Orchestrator) Register(caps ...Capability) error {
	for _, c := range caps {
		if c.Name == "" || c.Validate == nil || c.Execute == nil {
			return fmt.Errorf("capability %q is incomplete", c.Name)
		}
		if _, exists := o.capabilities[c.Name]; exists {
			return fmt.Errorf("capability %q registered twice", c.Name)
		}
		o.capabilities[c.Name] = c
	}
	return nil
}

// Capabilities lists the registered capabilities sorted by name.
func (o *Orchestrator) Capabilities() []Info {
	infos := make([]Info, 0, len(o.capabilities))
	for _, c := range o.capabilities {
		infos = append(infos, Info{
			Name:        c.Name,
			Description: c.Description,
			Agent:       c.Agent,
			MinTier:     c.MinTier,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// Process dispatches one invocation.
//
// Order of gates: caller identity, capability lookup, tier check, payload
// validation, execution. A TokenUsage row is recorded for every invocation
// that reaches the agent (validation onward), success or failure.
func (o *Orchestrator) Process(ctx context.Context, capability string, payload json.RawMessage, caller *models.Identity) *Outcome {
	if !caller.IsActive() {
		return &Outcome{Err: apperrors.Unauthenticated()}
	}

	entry, ok := o.capabilities[capability]
	if !ok {
		return &Outcome{Err: apperrors.UnknownCapability(capability)}
	}

	if !caller.Tier.AtLeast(entry.MinTier) {
		return &Outcome{Err: apperrors.SubscriptionRequired(capability, string(entry.MinTier))}
	}

	ctx, meter := WithMeter(ctx)

	parsed, err := entry.Validate(payload)
	if err != nil {
		appErr := o.normalize(capability, caller, err)
		o.record(ctx, caller, capability, meter, false)
		return &Outcome{Err: appErr}
	}

	data, err := entry.Execute(ctx, caller, parsed)
	if err != nil {
		appErr := o.normalize(capability, caller, err)
		o.record(ctx, caller, capability, meter, false)
		return &Outcome{Err: appErr}
	}

	o.record(ctx, caller, capability, meter, true)
	return &Outcome{Data: data}
}

// normalize maps an agent error onto the taxonomy. Typed errors pass
// through unchanged except internal ones, which are logged with full
// context and replaced with an opaque message.
func (o *Orchestrator) normalize(capability string, caller *models.Identity, err error) *apperrors.Error {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) && appErr.Kind != apperrors.KindInternal {
		return appErr
	}

	kind := apperrors.KindOf(err)
	if kind != apperrors.KindInternal {
		return &apperrors.Error{Kind: kind, Code: apperrors.CodeOf(err), Message: err.Error()}
	}

	o.logger.Error("capability failed",
		zap.String("capability", capability),
		zap.String("username", caller.Username),
		zap.String("error", logging.SanitizeError(err)))
	return apperrors.Internal(nil)
}

// record persists the invocation's usage row. Recording survives caller
// cancellation so committed agent work stays accounted for.
func (o *Orchestrator) record(ctx context.Context, caller *models.Identity, capability string, meter *Meter, succeeded bool) {
	usage := meter.Snapshot()
	row := &models.TokenUsage{
		Username:         caller.Username,
		Capability:       capability,
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		CostUSD:          usage.CostUSD,
		Succeeded:        succeeded,
	}
	if err := o.usage.Record(context.WithoutCancel(ctx), row); err != nil {
		o.logger.Error("failed to record token usage",
			zap.String("capability", capability),
			zap.String("username", caller.Username),
			zap.Error(err))
	}
}
