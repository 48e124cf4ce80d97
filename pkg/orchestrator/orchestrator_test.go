package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mentorstack/mentor-engine/pkg/apperrors"
	"github.com/mentorstack/mentor-engine/pkg/llm"
	"github.com/mentorstack/mentor-engine/pkg/models"
)

type mockUsageRepo struct {
	records []*models.TokenUsage
	err     error
}

func (m *mockUsageRepo) Record(_ context.Context, usage *models.TokenUsage) error {
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, usage)
	return nil
}

func (m *mockUsageRepo) SummarizeByUser(context.Context, string) ([]*models.UsageSummary, error) {
	return nil, nil
}

func activeCaller(tier models.Tier) *models.Identity {
	return &models.Identity{Username: "alice", Tier: tier, Status: models.UserActive}
}

func passthroughValidate(payload json.RawMessage) (any, error) { return payload, nil }

func newTestOrchestrator(t *testing.T, usage *mockUsageRepo, caps ...Capability) *Orchestrator {
	t.Helper()
	o := New(usage, zap.NewNop())
	require.NoError(t, o.Register(caps...))
	return o
}

func TestProcessRejectsUnauthenticatedBeforeAgent(t *testing.T) {
	executed := false
	usage := &mockUsageRepo{}
	o := newTestOrchestrator(t, usage, Capability{
		Name:     "echo",
		MinTier:  models.TierFree,
		Validate: passthroughValidate,
		Execute: func(context.Context, *models.Identity, any) (any, error) {
			executed = true
			return nil, nil
		},
	})

	cases := []struct {
		name   string
		caller *models.Identity
	}{
		{"nil caller", nil},
		{"archived caller", &models.Identity{Username: "bob", Tier: models.TierFree, Status: models.UserArchived}},
		{"empty username", &models.Identity{Status: models.UserActive}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := o.Process(context.Background(), "echo", nil, tc.caller)
			require.False(t, out.OK())
			assert.Equal(t, apperrors.KindUnauthenticated, out.Err.Kind)
		})
	}

	assert.False(t, executed)
	assert.Empty(t, usage.records)
}

func TestProcessUnknownCapability(t *testing.T) {
	usage := &mockUsageRepo{}
	o := newTestOrchestrator(t, usage)

	out := o.Process(context.Background(), "no.such.thing", nil, activeCaller(models.TierFree))

	require.False(t, out.OK())
	assert.Equal(t, apperrors.KindUnknownCapability, out.Err.Kind)
	assert.Empty(t, usage.records, "gate failures must not produce usage rows")
}

func TestProcessTierGate(t *testing.T) {
	usage := &mockUsageRepo{}
	o := newTestOrchestrator(t, usage, Capability{
		Name:     "premium.thing",
		MinTier:  models.TierPro,
		Validate: passthroughValidate,
		Execute: func(context.Context, *models.Identity, any) (any, error) {
			return "ok", nil
		},
	})

	out := o.Process(context.Background(), "premium.thing", nil, activeCaller(models.TierFree))
	require.False(t, out.OK())
	assert.Equal(t, apperrors.KindSubscriptionRequired, out.Err.Kind)
	assert.Empty(t, usage.records)

	out = o.Process(context.Background(), "premium.thing", nil, activeCaller(models.TierEnterprise))
	assert.True(t, out.OK())
}

func TestProcessValidationErrorRecordsUsage(t *testing.T) {
	usage := &mockUsageRepo{}
	o := newTestOrchestrator(t, usage, Capability{
		Name:    "strict",
		MinTier: models.TierFree,
		Validate: func(json.RawMessage) (any, error) {
			return nil, apperrors.Validation("missing_field", "name is required")
		},
		Execute: func(context.Context, *models.Identity, any) (any, error) {
			t.Fatal("execute must not run after validation failure")
			return nil, nil
		},
	})

	out := o.Process(context.Background(), "strict", json.RawMessage(`{}`), activeCaller(models.TierFree))

	require.False(t, out.OK())
	assert.Equal(t, apperrors.KindValidation, out.Err.Kind)
	assert.Equal(t, "missing_field", out.Err.Code)

	require.Len(t, usage.records, 1)
	assert.False(t, usage.records[0].Succeeded)
	assert.Equal(t, "strict", usage.records[0].Capability)
}

func TestProcessSuccessRecordsMeteredUsage(t *testing.T) {
	usage := &mockUsageRepo{}
	o := newTestOrchestrator(t, usage, Capability{
		Name:     "generate",
		MinTier:  models.TierFree,
		Validate: passthroughValidate,
		Execute: func(ctx context.Context, _ *models.Identity, _ any) (any, error) {
			AddUsage(ctx, llm.Usage{PromptTokens: 100, CompletionTokens: 40, CostUSD: 0.002})
			return map[string]string{"result": "done"}, nil
		},
	})

	out := o.Process(context.Background(), "generate", nil, activeCaller(models.TierFree))

	require.True(t, out.OK())
	require.Len(t, usage.records, 1)
	row := usage.records[0]
	assert.True(t, row.Succeeded)
	assert.Equal(t, "alice", row.Username)
	assert.Equal(t, 100, row.PromptTokens)
	assert.Equal(t, 40, row.CompletionTokens)
	assert.InDelta(t, 0.002, row.CostUSD, 1e-9)
}

func TestProcessBusinessErrorPassesThrough(t *testing.T) {
	usage := &mockUsageRepo{}
	o := newTestOrchestrator(t, usage, Capability{
		Name:     "dup",
		MinTier:  models.TierFree,
		Validate: passthroughValidate,
		Execute: func(context.Context, *models.Identity, any) (any, error) {
			return nil, apperrors.Business("duplicate_name", "a project with that name exists")
		},
	})

	out := o.Process(context.Background(), "dup", nil, activeCaller(models.TierFree))

	require.False(t, out.OK())
	assert.Equal(t, apperrors.KindBusiness, out.Err.Kind)
	assert.Equal(t, "duplicate_name", out.Err.Code)
	assert.Equal(t, "a project with that name exists", out.Err.Message)
	require.Len(t, usage.records, 1)
	assert.False(t, usage.records[0].Succeeded)
}

func TestProcessSanitizesInternalErrors(t *testing.T) {
	usage := &mockUsageRepo{}
	o := newTestOrchestrator(t, usage, Capability{
		Name:     "broken",
		MinTier:  models.TierFree,
		Validate: passthroughValidate,
		Execute: func(context.Context, *models.Identity, any) (any, error) {
			return nil, errors.New("pq: connection refused host=10.0.0.3")
		},
	})

	out := o.Process(context.Background(), "broken", nil, activeCaller(models.TierFree))

	require.False(t, out.OK())
	assert.Equal(t, apperrors.KindInternal, out.Err.Kind)
	assert.NotContains(t, out.Err.Message, "10.0.0.3")
	assert.NotContains(t, out.Err.Error(), "connection refused")
}

func TestProcessMapsRepositorySentinels(t *testing.T) {
	usage := &mockUsageRepo{}
	o := newTestOrchestrator(t, usage, Capability{
		Name:     "fetch",
		MinTier:  models.TierFree,
		Validate: passthroughValidate,
		Execute: func(context.Context, *models.Identity, any) (any, error) {
			return nil, apperrors.ErrNotFound
		},
	})

	out := o.Process(context.Background(), "fetch", nil, activeCaller(models.TierFree))

	require.False(t, out.OK())
	assert.Equal(t, apperrors.KindBusiness, out.Err.Kind)
	assert.Equal(t, "not_found", out.Err.Code)
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	o := New(&mockUsageRepo{}, zap.NewNop())
	c := Capability{Name: "x", Validate: passthroughValidate,
		Execute: func(context.Context, *models.Identity, any) (any, error) { return nil, nil }}

	require.NoError(t, o.Register(c))
	assert.Error(t, o.Register(c))
}

func TestCapabilitiesSorted(t *testing.T) {
	o := New(&mockUsageRepo{}, zap.NewNop())
	exec := func(context.Context, *models.Identity, any) (any, error) { return nil, nil }
	require.NoError(t, o.Register(
		Capability{Name: "b.op", Validate: passthroughValidate, Execute: exec},
		Capability{Name: "a.op", Validate: passthroughValidate, Execute: exec},
	))

	infos := o.Capabilities()
	require.Len(t, infos, 2)
	assert.Equal(t, "a.op", infos[0].Name)
	assert.Equal(t, "b.op", infos[1].Name)
}
