package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalEmbedderDeterministic(t *testing.T) {
	e := NewLocalEmbedder()

	a, err := e.Embed(context.Background(), "build a REST API in Go")
	require.NoError(t, err)
	b, err := e.Embed(context.Background(), "build a REST API in Go")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, localEmbeddingDim)
}

func TestLocalEmbedderNormalized(t *testing.T) {
	e := NewLocalEmbedder()

	vec, err := e.Embed(context.Background(), "postgres schema design")
	require.NoError(t, err)

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, norm, 1e-5)
}

func TestLocalEmbedderBatch(t *testing.T) {
	e := NewLocalEmbedder()

	vectors, err := e.EmbedBatch(context.Background(), []string{"one", "two"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.NotEqual(t, vectors[0], vectors[1])
}

func TestMockChatClientRecordsCalls(t *testing.T) {
	m := NewMockChatClient()

	out, usage, err := m.Complete(context.Background(), "system prompt", "user prompt")
	require.NoError(t, err)
	assert.Equal(t, "mock response", out)
	assert.Positive(t, usage.Total())

	require.Len(t, m.Calls, 1)
	assert.Equal(t, "system prompt", m.Calls[0].System)
	assert.Equal(t, "user prompt", m.Calls[0].Prompt)
}

func TestUsageAdd(t *testing.T) {
	u := Usage{PromptTokens: 10, CompletionTokens: 5, CostUSD: 0.01}
	u.Add(Usage{PromptTokens: 3, CompletionTokens: 2, CostUSD: 0.005})

	assert.Equal(t, 13, u.PromptTokens)
	assert.Equal(t, 7, u.CompletionTokens)
	assert.Equal(t, 20, u.Total())
	assert.InDelta(t, 0.015, u.CostUSD, 1e-9)
}
