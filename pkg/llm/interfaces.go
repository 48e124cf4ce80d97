// Package llm provides the chat and embedding clients used by the
// mentoring agents. Backends are selected from configuration; a
// deterministic local implementation covers tests and offline runs.
package llm

import "context"

// Usage reports the token consumption of a single model call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	CostUSD          float64
}

// Total returns prompt plus completion tokens.
func (u Usage) Total() int {
	return u.PromptTokens + u.CompletionTokens
}

// Add accumulates another usage record into this one.
func (u *Usage) Add(other Usage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.CostUSD += other.CostUSD
}

// ChatClient produces a completion for a system/user prompt pair.
type ChatClient interface {
	Complete(ctx context.Context, system, prompt string) (string, Usage, error)
	Model() string
}

// Embedder converts text into vectors for similarity search.
type Embedder interface {
	Embed(ctx context.Context, input string) ([]float32, error)
	EmbedBatch(ctx context.Context, inputs []string) ([][]float32, error)
}
