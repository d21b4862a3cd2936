// Package config loads relay configuration from defaults, an optional YAML
// file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "RELAY_"

type Config struct {
	Server        ServerConfig              `koanf:"server"`
	PostgresDSN   string                    `koanf:"postgres_dsn"`
	RedisAddr     string                    `koanf:"redis_addr"`
	Providers     map[string]ProviderConfig `koanf:"providers"`
	VendorTimeout time.Duration             `koanf:"vendor_timeout"`
	RateLimit     RateLimitConfig           `koanf:"rate_limit"`
	Billing       BillingConfig             `koanf:"billing"`
	Auth          AuthConfig                `koanf:"auth"`
	Telemetry     TelemetryConfig           `koanf:"telemetry"`
	RunSeed       bool                      `koanf:"run_seed"`
}

type ServerConfig struct {
	Port         string        `koanf:"port"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
	IdleTimeout  time.Duration `koanf:"idle_timeout"`
}

type ProviderConfig struct {
	APIKey  string `koanf:"api_key"`
	BaseURL string `koanf:"base_url"`
}

type RateLimitConfig struct {
	PerHour         int           `koanf:"per_hour"`          // 0 disables
	Window          time.Duration `koanf:"window"`            // bucket TTL
	TokensPerMinute int           `koanf:"tokens_per_minute"` // 0 disables
}

type BillingConfig struct {
	PricePerCredit float64 `koanf:"price_per_credit"`
	StripeAPIKey   string  `koanf:"stripe_api_key"`
	// StripeSubscriptionItems maps org id to a metered subscription item.
	StripeSubscriptionItems map[string]string `koanf:"stripe_subscription_items"`
	// LogUsage also writes every usage record to the process log.
	LogUsage bool `koanf:"log_usage"`
}

type AuthConfig struct {
	JWTSecret string `koanf:"jwt_secret"`
}

type TelemetryConfig struct {
	Exporter string `koanf:"exporter"` // stdout, otlp or none
	Endpoint string `koanf:"endpoint"`
}

var defaults = map[string]any{
	"server.port":                  "8080",
	"server.read_timeout":          30 * time.Second,
	"server.write_timeout":         150 * time.Second,
	"server.idle_timeout":          120 * time.Second,
	"vendor_timeout":               120 * time.Second,
	"rate_limit.per_hour":          1000,
	"rate_limit.window":            time.Hour,
	"rate_limit.tokens_per_minute": 0,
	"billing.price_per_credit":     0.01,
	"telemetry.exporter":           "stdout",
	"telemetry.endpoint":           "localhost:4317",
}

// Vendors with legacy <VENDOR>_API_KEY variables.
var legacyVendors = []string{"openai", "anthropic", "gemini", "deepseek", "groq", "xai", "perplexity"}

// Load reads .env, then RELAY_CONFIG (default config.yaml, optional), then
// RELAY_* variables, then the legacy unprefixed variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	path := os.Getenv("RELAY_CONFIG")
	if path == "" {
		path = "config.yaml"
	}
	return LoadFile(path)
}

// LoadFile is Load with an explicit YAML path. A missing file is skipped.
func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")

	for key, v := range defaults {
		if err := k.Set(key, v); err != nil {
			return nil, fmt.Errorf("setting default %s: %w", key, err)
		}
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("loading config file: %w", err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	// RELAY_RATE_LIMIT__PER_HOUR -> rate_limit.per_hour
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	if err := applyLegacyEnv(k); err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if cfg.Providers == nil {
		cfg.Providers = map[string]ProviderConfig{}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyLegacyEnv maps the unprefixed variables the gateway used to read.
// They only fill keys that are still unset or at their default.
func applyLegacyEnv(k *koanf.Koanf) error {
	set := func(key, envName string) {
		if v, ok := os.LookupEnv(envName); ok && v != "" && (!k.Exists(key) || k.Get(key) == defaults[key]) {
			_ = k.Set(key, v)
		}
	}

	set("server.port", "PORT")
	set("postgres_dsn", "POSTGRES_DSN")
	set("redis_addr", "REDIS_ADDR")
	set("telemetry.exporter", "OTEL_EXPORTER_TYPE")
	set("telemetry.endpoint", "OTEL_EXPORTER_ENDPOINT")
	set("auth.jwt_secret", "JWT_SECRET")
	set("billing.stripe_api_key", "STRIPE_API_KEY")

	if v := os.Getenv("RUN_SEED"); v != "" && !k.Exists("run_seed") {
		seed, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid RUN_SEED: %w", err)
		}
		_ = k.Set("run_seed", seed)
	}

	if v := os.Getenv("DEFAULT_RATE_LIMIT_TPM"); v != "" && k.Int("rate_limit.tokens_per_minute") == 0 {
		tpm, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid DEFAULT_RATE_LIMIT_TPM: %w", err)
		}
		_ = k.Set("rate_limit.tokens_per_minute", tpm)
	}

	for _, id := range legacyVendors {
		key := "providers." + id + ".api_key"
		upper := strings.ToUpper(id)
		set(key, upper+"_API_KEY")
		set(key, "LLM_"+upper+"_API_KEY")
	}
	return nil
}

func (c *Config) Validate() error {
	if c.PostgresDSN == "" {
		return fmt.Errorf("postgres_dsn is required")
	}
	if c.RedisAddr == "" {
		return fmt.Errorf("redis_addr is required")
	}
	if c.Billing.PricePerCredit < 0 {
		return fmt.Errorf("billing.price_per_credit must not be negative")
	}
	switch c.Telemetry.Exporter {
	case "stdout", "otlp", "none":
	default:
		return fmt.Errorf("telemetry.exporter must be stdout, otlp or none, got %q", c.Telemetry.Exporter)
	}
	return nil
}
