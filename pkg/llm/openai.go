package llm

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// openAIClient talks to OpenAI or any OpenAI-compatible endpoint.
type openAIClient struct {
	client      *openai.Client
	model       string
	costPer1K   float64
	temperature float32
	logger      *zap.Logger
}

var _ ChatClient = (*openAIClient)(nil)

// NewOpenAIClient creates a chat client for an OpenAI-compatible API.
// endpoint may be empty to use the default OpenAI base URL.
func NewOpenAIClient(apiKey, endpoint, model string, costPer1K float64, logger *zap.Logger) ChatClient {
	cfg := openai.DefaultConfig(apiKey)
	if endpoint != "" {
		cfg.BaseURL = endpoint
	}
	return &openAIClient{
		client:      openai.NewClientWithConfig(cfg),
		model:       model,
		costPer1K:   costPer1K,
		temperature: 0.7,
		logger:      logger.Named("llm.openai"),
	}
}

func (c *openAIClient) Model() string { return c.model }

func (c *openAIClient) Complete(ctx context.Context, system, prompt string) (string, Usage, error) {
	messages := []openai.ChatCompletionMessage{}
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
	})
	if err != nil {
		return "", Usage{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", Usage{}, fmt.Errorf("chat completion: empty response")
	}

	usage := Usage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}
	usage.CostUSD = float64(usage.Total()) / 1000 * c.costPer1K

	c.logger.Debug("completion",
		zap.String("model", c.model),
		zap.Int("prompt_tokens", usage.PromptTokens),
		zap.Int("completion_tokens", usage.CompletionTokens))

	return resp.Choices[0].Message.Content, usage, nil
}

// openAIEmbedder uses the OpenAI embeddings endpoint.
type openAIEmbedder struct {
	client *openai.Client
	model  string
}

var _ Embedder = (*openAIEmbedder)(nil)

// NewOpenAIEmbedder creates an embedder for an OpenAI-compatible API.
func NewOpenAIEmbedder(apiKey, endpoint, model string) Embedder {
	cfg := openai.DefaultConfig(apiKey)
	if endpoint != "" {
		cfg.BaseURL = endpoint
	}
	return &openAIEmbedder{client: openai.NewClientWithConfig(cfg), model: model}
}

func (e *openAIEmbedder) Embed(ctx context.Context, input string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{input})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (e *openAIEmbedder) EmbedBatch(ctx context.Context, inputs []string) ([][]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: inputs,
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}
	if len(resp.Data) != len(inputs) {
		return nil, fmt.Errorf("create embeddings: got %d vectors for %d inputs", len(resp.Data), len(inputs))
	}
	vectors := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vectors[i] = d.Embedding
	}
	return vectors, nil
}
