// Package config loads mentor-engine configuration.
// Configuration can come from a YAML file (config.yaml) or environment
// variables; environment variables always override YAML values. Secrets
// (database password, JWT secret, AI API keys) must only come from
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for mentor-engine.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8460"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// MigrationsPath is where the serve command looks for SQL migrations.
	MigrationsPath string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"migrations"`

	Auth     AuthConfig     `yaml:"auth"`
	Database DatabaseConfig `yaml:"database"`
	AI       AIConfig       `yaml:"ai"`
	Socratic SocraticConfig `yaml:"socratic"`
}

// AuthConfig holds token issuance settings.
type AuthConfig struct {
	// JWTSecret signs access tokens. Server fails to start without it.
	JWTSecret string `yaml:"-" env:"JWT_SECRET"` // Secret - not in YAML

	// AccessTTLMinutes is the access-token lifetime.
	AccessTTLMinutes int `yaml:"access_ttl_minutes" env:"AUTH_ACCESS_TTL_MINUTES" env-default:"15"`

	// RefreshTTLHours is the refresh-token lifetime.
	RefreshTTLHours int `yaml:"refresh_ttl_hours" env:"AUTH_REFRESH_TTL_HOURS" env-default:"720"`
}

// DatabaseConfig holds PostgreSQL settings.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"mentor"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"mentor_engine"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// DSN returns the postgres connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Database, d.SSLMode)
}

// AIConfig selects the LLM and embedding backends used by the knowledge
// agents. Provider "mock" runs fully offline with deterministic outputs.
type AIConfig struct {
	Provider       string `yaml:"provider" env:"AI_PROVIDER" env-default:"mock"` // "anthropic", "openai", or "mock"
	Endpoint       string `yaml:"endpoint" env:"AI_ENDPOINT" env-default:""`     // optional OpenAI-compatible base URL
	Model          string `yaml:"model" env:"AI_MODEL" env-default:""`
	EmbeddingModel string `yaml:"embedding_model" env:"AI_EMBEDDING_MODEL" env-default:""`
	APIKey         string `yaml:"-" env:"AI_API_KEY"` // Secret - not in YAML

	// CostPer1KTokensUSD prices usage records; zero disables cost estimates.
	CostPer1KTokensUSD float64 `yaml:"cost_per_1k_tokens_usd" env:"AI_COST_PER_1K_TOKENS_USD" env-default:"0"`

	// CredentialsKey encrypts provider API keys persisted by settings flows.
	// Any passphrase works; 32-byte base64 keys are used directly.
	CredentialsKey string `yaml:"-" env:"AI_CREDENTIALS_KEY"`
}

// SocraticConfig tunes the counselor state machine.
type SocraticConfig struct {
	// MaxPhases is the highest question phase; answering at the maximum
	// phase no longer advances it.
	MaxPhases int `yaml:"max_phases" env:"SOCRATIC_MAX_PHASES" env-default:"5"`

	// MinAnswersPerPhase gates explicit phase skips.
	MinAnswersPerPhase int `yaml:"min_answers_per_phase" env:"SOCRATIC_MIN_ANSWERS_PER_PHASE" env-default:"1"`
}

// Load reads configuration from config.yaml (when present) and the
// environment, then validates it.
func Load(version string) (*Config, error) {
	cfg := &Config{Version: version}

	if _, err := os.Stat("config.yaml"); err == nil {
		if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
			return nil, fmt.Errorf("failed to read config.yaml: %w", err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Auth.JWTSecret == "" {
		return errors.New("JWT_SECRET must be set")
	}
	if c.Auth.AccessTTLMinutes <= 0 || c.Auth.RefreshTTLHours <= 0 {
		return errors.New("token lifetimes must be positive")
	}
	switch c.AI.Provider {
	case "anthropic", "openai", "mock":
	default:
		return fmt.Errorf("unknown AI provider %q", c.AI.Provider)
	}
	if c.AI.Provider != "mock" && c.AI.APIKey == "" {
		return fmt.Errorf("AI_API_KEY must be set for provider %q", c.AI.Provider)
	}
	if c.Socratic.MaxPhases < 1 {
		return errors.New("socratic max_phases must be at least 1")
	}
	if c.Socratic.MinAnswersPerPhase < 0 {
		return errors.New("socratic min_answers_per_phase must not be negative")
	}
	return nil
}
