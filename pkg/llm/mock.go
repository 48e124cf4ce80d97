package llm

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

// MockChatClient is a configurable in-memory chat client for tests and
// the mock provider. Each call is recorded so tests can assert prompts.
type MockChatClient struct {
	CompleteFunc func(ctx context.Context, system, prompt string) (string, Usage, error)
	Calls        []MockCall
}

// MockCall records one Complete invocation.
type MockCall struct {
	System string
	Prompt string
}

var _ ChatClient = (*MockChatClient)(nil)

// NewMockChatClient returns a mock that echoes a canned acknowledgement
// with a small fixed usage, suitable for offline runs.
func NewMockChatClient() *MockChatClient {
	return &MockChatClient{}
}

func (m *MockChatClient) Model() string { return "mock" }

func (m *MockChatClient) Complete(ctx context.Context, system, prompt string) (string, Usage, error) {
	m.Calls = append(m.Calls, MockCall{System: system, Prompt: prompt})
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, system, prompt)
	}
	usage := Usage{
		PromptTokens:     approximateTokens(system) + approximateTokens(prompt),
		CompletionTokens: 12,
	}
	return "mock response", usage, nil
}

func approximateTokens(s string) int {
	return len(strings.Fields(s))
}

const localEmbeddingDim = 256

// localEmbedder produces deterministic vectors by hashing tokens into a
// fixed-size bag-of-words projection. The same input always yields the
// same vector, so similarity ranking is stable across runs.
type localEmbedder struct{}

var _ Embedder = (*localEmbedder)(nil)

// NewLocalEmbedder returns the deterministic offline embedder.
func NewLocalEmbedder() Embedder { return &localEmbedder{} }

func (e *localEmbedder) Embed(_ context.Context, input string) ([]float32, error) {
	vec := make([]float32, localEmbeddingDim)
	for _, tok := range strings.Fields(strings.ToLower(input)) {
		h := fnv.New32a()
		h.Write([]byte(tok))
		vec[h.Sum32()%localEmbeddingDim]++
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		inv := 1 / math.Sqrt(norm)
		for i := range vec {
			vec[i] = float32(float64(vec[i]) * inv)
		}
	}
	return vec, nil
}

func (e *localEmbedder) EmbedBatch(ctx context.Context, inputs []string) ([][]float32, error) {
	vectors := make([][]float32, len(inputs))
	for i, input := range inputs {
		vec, err := e.Embed(ctx, input)
		if err != nil {
			return nil, err
		}
		vectors[i] = vec
	}
	return vectors, nil
}
