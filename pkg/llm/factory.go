package llm

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mentorstack/mentor-engine/pkg/config"
	"github.com/mentorstack/mentor-engine/pkg/crypto"
)

// encryptedKeyPrefix marks an API key stored encrypted at rest.
const encryptedKeyPrefix = "enc:"

// New builds the chat client and embedder for the configured provider.
//
// Anthropic has no embeddings endpoint, so that provider pairs the
// Anthropic chat client with the deterministic local embedder unless an
// OpenAI-compatible endpoint is configured for embeddings.
func New(cfg config.AIConfig, logger *zap.Logger) (ChatClient, Embedder, error) {
	apiKey, err := resolveAPIKey(cfg)
	if err != nil {
		return nil, nil, err
	}

	switch cfg.Provider {
	case "mock":
		return NewMockChatClient(), NewLocalEmbedder(), nil

	case "openai":
		chat := NewOpenAIClient(apiKey, cfg.Endpoint, cfg.Model, cfg.CostPer1KTokensUSD, logger)
		var embedder Embedder = NewLocalEmbedder()
		if cfg.EmbeddingModel != "" {
			embedder = NewOpenAIEmbedder(apiKey, cfg.Endpoint, cfg.EmbeddingModel)
		}
		return chat, embedder, nil

	case "anthropic":
		chat := NewAnthropicClient(apiKey, cfg.Model, cfg.CostPer1KTokensUSD, logger)
		var embedder Embedder = NewLocalEmbedder()
		if cfg.EmbeddingModel != "" && cfg.Endpoint != "" {
			embedder = NewOpenAIEmbedder(apiKey, cfg.Endpoint, cfg.EmbeddingModel)
		}
		return chat, embedder, nil

	default:
		return nil, nil, fmt.Errorf("unknown AI provider %q", cfg.Provider)
	}
}

// resolveAPIKey returns the provider key, decrypting "enc:" values with
// the configured credentials key.
func resolveAPIKey(cfg config.AIConfig) (string, error) {
	if !strings.HasPrefix(cfg.APIKey, encryptedKeyPrefix) {
		return cfg.APIKey, nil
	}
	if cfg.CredentialsKey == "" {
		return "", fmt.Errorf("AI API key is encrypted but no credentials key is configured")
	}
	box, err := crypto.NewSecretBox(cfg.CredentialsKey)
	if err != nil {
		return "", fmt.Errorf("build secret box: %w", err)
	}
	key, err := box.Decrypt(strings.TrimPrefix(cfg.APIKey, encryptedKeyPrefix))
	if err != nil {
		return "", fmt.Errorf("decrypt AI API key: %w", err)
	}
	return key, nil
}
