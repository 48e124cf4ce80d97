package models

import "time"

// TokenUsage records the resource consumption of one agent invocation.
// Rows are append-only; the system monitor agent aggregates them.
type TokenUsage struct {
	ID               int64     `json:"id"`
	Username         string    `json:"username"`
	Capability       string    `json:"capability"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	CostUSD          float64   `json:"cost_usd"`
	Succeeded        bool      `json:"succeeded"`
	CreatedAt        time.Time `json:"created_at"`
}

// UsageSummary is an aggregate over TokenUsage rows.
type UsageSummary struct {
	Capability       string  `json:"capability"`
	Invocations      int     `json:"invocations"`
	Failures         int     `json:"failures"`
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	CostUSD          float64 `json:"cost_usd"`
}
