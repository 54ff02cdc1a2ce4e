package caseflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/viant/scy"
)

// Config is populated from the environment. The zero value works for tests;
// production deployments set at least OPENAI_API_KEY (or an encrypted
// OPENAI_API_KEY_URL) and SERPER_API_KEY.
type Config struct {
	Port           int      `env:"PORT" envDefault:"8000"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`

	// DatabasePath locates the SQLite case store; ":memory:" keeps it ephemeral.
	DatabasePath string `env:"DATABASE_PATH" envDefault:"caseflow.db"`

	OpenAIAPIKey string `env:"OPENAI_API_KEY"`
	// OpenAIAPIKeyURL points at an encrypted secret (e.g. blowfish://default
	// scy resource) used when the plain key is not set.
	OpenAIAPIKeyURL   string  `env:"OPENAI_API_KEY_URL"`
	OpenAIKeySecret   string  `env:"OPENAI_API_KEY_SECRET" envDefault:"blowfish://default"`
	OpenAIModel       string  `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	OpenAITemperature float64 `env:"OPENAI_TEMPERATURE" envDefault:"0.1"`
	OpenAIBaseURL     string  `env:"OPENAI_BASE_URL"`

	SerperAPIKey string `env:"SERPER_API_KEY"`
	DocstoreURL  string `env:"DOCSTORE_URL"`

	Workers       int `env:"WORKERS" envDefault:"5"`
	RunTimeoutSec int `env:"RUN_TIMEOUT_SEC" envDefault:"600"`

	// TraceFile enables OpenTelemetry tracing; spans are written to the file,
	// or to stdout when set to "-".
	TraceFile string `env:"TRACE_FILE"`
}

// LoadConfig reads the configuration from the environment and resolves the
// OpenAI key from its encrypted location when needed.
func LoadConfig(ctx context.Context) (*Config, error) {
	config := &Config{}
	if err := env.Parse(config); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}
	if err := config.resolveSecrets(ctx); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate returns an error describing the first invalid setting, or nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be > 0")
	}
	if c.RunTimeoutSec <= 0 {
		return fmt.Errorf("runTimeoutSec must be > 0")
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("databasePath is required")
	}
	return nil
}

func (c *Config) resolveSecrets(ctx context.Context) error {
	if c.OpenAIAPIKey != "" || c.OpenAIAPIKeyURL == "" {
		return nil
	}
	secrets := scy.New()
	resource := scy.NewResource(nil, c.OpenAIAPIKeyURL, c.OpenAIKeySecret)
	secret, err := secrets.Load(ctx, resource)
	if err != nil {
		return fmt.Errorf("failed to load OpenAI key from %s: %w", c.OpenAIAPIKeyURL, err)
	}
	c.OpenAIAPIKey = strings.TrimSpace(secret.String())
	return nil
}
