package llm

import (
	"context"
	"fmt"

	anthropic "github.com/liushuangls/go-anthropic/v2"
	"go.uber.org/zap"
)

const anthropicMaxTokens = 4096

// anthropicClient talks to the Anthropic messages API.
type anthropicClient struct {
	client    *anthropic.Client
	model     string
	costPer1K float64
	logger    *zap.Logger
}

var _ ChatClient = (*anthropicClient)(nil)

// NewAnthropicClient creates a chat client backed by Anthropic.
func NewAnthropicClient(apiKey, model string, costPer1K float64, logger *zap.Logger) ChatClient {
	return &anthropicClient{
		client:    anthropic.NewClient(apiKey),
		model:     model,
		costPer1K: costPer1K,
		logger:    logger.Named("llm.anthropic"),
	}
}

func (c *anthropicClient) Model() string { return c.model }

func (c *anthropicClient) Complete(ctx context.Context, system, prompt string) (string, Usage, error) {
	resp, err := c.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:     anthropic.Model(c.model),
		System:    system,
		MaxTokens: anthropicMaxTokens,
		Messages: []anthropic.Message{
			anthropic.NewUserTextMessage(prompt),
		},
	})
	if err != nil {
		return "", Usage{}, fmt.Errorf("create messages: %w", err)
	}

	text := resp.GetFirstContentText()
	if text == "" {
		return "", Usage{}, fmt.Errorf("create messages: empty response")
	}

	usage := Usage{
		PromptTokens:     resp.Usage.InputTokens,
		CompletionTokens: resp.Usage.OutputTokens,
	}
	usage.CostUSD = float64(usage.Total()) / 1000 * c.costPer1K

	c.logger.Debug("completion",
		zap.String("model", c.model),
		zap.Int("prompt_tokens", usage.PromptTokens),
		zap.Int("completion_tokens", usage.CompletionTokens))

	return text, usage, nil
}
