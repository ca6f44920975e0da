package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/puku-sh/gateway/pkg/api"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig          `mapstructure:"server"`
	Auth      AuthConfig            `mapstructure:"auth"`
	Log       LogConfig             `mapstructure:"log"`
	Tracing   TracingConfig         `mapstructure:"tracing"`
	RateLimit RateLimitConfig       `mapstructure:"rate_limit"`
	Usage     UsageConfig           `mapstructure:"usage"`
	Puku      PukuConfig            `mapstructure:"puku"`
	Providers []ProviderConfig      `mapstructure:"providers"`
	Models    []api.ModelDescriptor `mapstructure:"models"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Env  string `mapstructure:"env"`
}

type AuthConfig struct {
	// Enforce toggles authentication globally. When false every token
	// validates, matching local single-user deployments.
	Enforce bool `mapstructure:"enforce"`

	// DefaultToken always validates when set.
	DefaultToken string `mapstructure:"default_token"`

	// TrustFirstToken enables the trust-on-first-use bootstrap: with an
	// empty store and no default token, the first non-empty token
	// presented is registered as valid. Convenience for offline
	// deployments; disable it anywhere the gateway is reachable by
	// untrusted callers.
	TrustFirstToken bool `mapstructure:"trust_first_token"`

	// SessionTokenTTLMinutes bounds the capability tokens minted by the
	// product token route. Expiry is advisory: it is recorded in token
	// metadata for the caller, not enforced server-side.
	SessionTokenTTLMinutes int `mapstructure:"session_token_ttl_minutes"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type TracingConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type UsageConfig struct {
	// DSN is the SQLite DSN for the usage ledger. Usage rows are
	// operational accounting only; no conversation content is stored.
	DSN string `mapstructure:"dsn"`

	// Monthly entitlements per quota kind. Zero means unlimited.
	ChatQuota        int64 `mapstructure:"chat_quota"`
	CompletionsQuota int64 `mapstructure:"completions_quota"`
}

type PukuConfig struct {
	// FIMModel is the model used when a fill-in-middle request carries no
	// model of its own.
	FIMModel string `mapstructure:"fim_model"`

	// EmbeddingsModel is the fixed, caller-invisible model behind the
	// product embeddings route.
	EmbeddingsModel string `mapstructure:"embeddings_model"`
}

type ProviderConfig struct {
	ID      string            `mapstructure:"id"`
	Type    string            `mapstructure:"type"`
	Name    string            `mapstructure:"name"`
	APIKey  string            `mapstructure:"api_key" validate:"required"`
	BaseURL string            `mapstructure:"base_url"`
	Config  map[string]string `mapstructure:"config"`
	Enabled bool              `mapstructure:"enabled"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig() (*Config, error) {
	// Load .env file if present
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Default Values
	v.SetDefault("server.port", "11434")
	v.SetDefault("server.env", "development")
	v.SetDefault("auth.enforce", true)
	v.SetDefault("auth.trust_first_token", true)
	v.SetDefault("auth.session_token_ttl_minutes", 30)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("rate_limit.enabled", false)
	v.SetDefault("rate_limit.requests_per_second", 10.0)
	v.SetDefault("rate_limit.burst", 20)
	v.SetDefault("usage.dsn", "file:puku-usage.db?cache=shared&mode=rwc&_journal_mode=WAL&_busy_timeout=5000")
	v.SetDefault("puku.embeddings_model", "puku-embed")
	v.SetDefault("puku.fim_model", "puku-fim")

	// Environment Variables
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	// Resolve API Keys
	for i, p := range cfg.Providers {
		if strings.HasPrefix(p.APIKey, "ENV:") {
			envVar := strings.TrimPrefix(p.APIKey, "ENV:")
			// Check process environment first (explicit override)
			val := os.Getenv(envVar)
			if val == "" {
				// Then check viper (which might have it from other sources)
				val = v.GetString(envVar)
			}
			cfg.Providers[i].APIKey = val
		}
	}

	return &cfg, nil
}
