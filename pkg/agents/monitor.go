package agents

import (
	"context"

	"go.uber.org/zap"

	"github.com/mentorstack/mentor-engine/pkg/apperrors"
	"github.com/mentorstack/mentor-engine/pkg/models"
	"github.com/mentorstack/mentor-engine/pkg/orchestrator"
	"github.com/mentorstack/mentor-engine/pkg/repositories"
)

// UsageReport aggregates a caller's token usage by capability.
type UsageReport struct {
	Username   string                 `json:"username"`
	Capability []*models.UsageSummary `json:"by_capability"`
	Totals     models.UsageSummary    `json:"totals"`
}

type usageReportPayload struct {
	Username string `json:"username,omitempty"`
}

// MonitorAgent reports on the system's own consumption.
type MonitorAgent interface {
	UsageReport(ctx context.Context, caller *models.Identity, username string) (*UsageReport, error)
	Capabilities() []orchestrator.Capability
}

type monitorAgent struct {
	usage  repositories.UsageRepository
	logger *zap.Logger
}

var _ MonitorAgent = (*monitorAgent)(nil)

// NewMonitorAgent creates the system monitor.
func NewMonitorAgent(usage repositories.UsageRepository, logger *zap.Logger) MonitorAgent {
	return &monitorAgent{
		usage:  usage,
		logger: logger.Named("agent.monitor"),
	}
}

// UsageReport summarizes usage for one user. Callers see their own usage;
// other users' reports need the enterprise tier.
func (a *monitorAgent) UsageReport(ctx context.Context, caller *models.Identity, username string) (*UsageReport, error) {
	if username == "" {
		username = caller.Username
	}
	if username != caller.Username && !caller.Tier.AtLeast(models.TierEnterprise) {
		return nil, apperrors.Business("report_forbidden", "only enterprise callers may view other users' usage")
	}

	summaries, err := a.usage.SummarizeByUser(ctx, username)
	if err != nil {
		return nil, err
	}

	report := &UsageReport{
		Username:   username,
		Capability: summaries,
	}
	for _, s := range summaries {
		report.Totals.Invocations += s.Invocations
		report.Totals.Failures += s.Failures
		report.Totals.PromptTokens += s.PromptTokens
		report.Totals.CompletionTokens += s.CompletionTokens
		report.Totals.CostUSD += s.CostUSD
	}
	return report, nil
}

// Capabilities returns the monitor's registry entries.
func (a *monitorAgent) Capabilities() []orchestrator.Capability {
	return []orchestrator.Capability{
		{
			Name:        "monitor.usage",
			Description: "Report token usage by capability",
			Agent:       "monitor",
			MinTier:     models.TierFree,
			Validate:    validateAs[usageReportPayload],
			Execute: func(ctx context.Context, caller *models.Identity, payload any) (any, error) {
				return a.UsageReport(ctx, caller, payload.(*usageReportPayload).Username)
			},
		},
	}
}
