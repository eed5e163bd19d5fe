package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds the configuration for the session engine server.
type Config struct {
	// Server settings
	MetricsPort string `envconfig:"METRICS_PORT" default:"9090"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogEncoding string `envconfig:"LOG_ENCODING" default:"json"`

	// Realtime store backend: "memory" or "firestore"
	StoreBackend       string `envconfig:"STORE_BACKEND" default:"firestore"`
	FirestoreProjectID string `envconfig:"FIRESTORE_PROJECT_ID"`
	// Path to a service account key file. Empty means application default
	// credentials.
	FirestoreCredentialsFile string `envconfig:"FIRESTORE_CREDENTIALS_FILE"`

	// Narration service settings
	AIClientType          string        `envconfig:"AI_CLIENT_TYPE" default:"openai"`
	AIBaseURL             string        `envconfig:"AI_BASE_URL" default:"https://api.openai.com/v1"`
	AIAPIKey              string        `envconfig:"AI_API_KEY"`
	AIModel               string        `envconfig:"AI_MODEL" default:"gpt-4o-mini"`
	AITimeout             time.Duration `envconfig:"AI_TIMEOUT" default:"90s"`
	AIPromptTokenBudget   int           `envconfig:"AI_PROMPT_TOKEN_BUDGET" default:"6000"`
	AIMaxCompletionTokens int           `envconfig:"AI_MAX_COMPLETION_TOKENS" default:"1024"`

	// Orchestration lease settings. With an empty RedisAddr the engine falls
	// back to the process-local advisory lease.
	RedisAddr     string        `envconfig:"REDIS_ADDR"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	LeaseTTL      time.Duration `envconfig:"ORCHESTRATION_LEASE_TTL" default:"2m"`
}

// Load reads the configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if cfg.StoreBackend == "firestore" && cfg.FirestoreProjectID == "" {
		return nil, fmt.Errorf("FIRESTORE_PROJECT_ID is required for the firestore store backend")
	}
	if cfg.AIClientType == "openai" && cfg.AIAPIKey == "" {
		return nil, fmt.Errorf("AI_API_KEY is required for the openai client")
	}
	if cfg.LeaseTTL < cfg.AITimeout {
		// The lease must outlive the narration call, otherwise a second host
		// could start a duplicate turn while the first is still waiting.
		return nil, fmt.Errorf("ORCHESTRATION_LEASE_TTL (%v) must not be shorter than AI_TIMEOUT (%v)", cfg.LeaseTTL, cfg.AITimeout)
	}

	return &cfg, nil
}
