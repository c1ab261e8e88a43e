package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/wekeepgrowing/semo-backend-monorepo/billing-sync/pkg/config"
	"github.com/wekeepgrowing/semo-backend-monorepo/billing-sync/pkg/logger"
	"gopkg.in/yaml.v3"
)

const envPrefix = "billing"

type Config struct {
	Service  ServiceConfig  `yaml:"service"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Server   ServerConfig   `yaml:"server"`
	Stripe   StripeConfig   `yaml:"stripe"`
	Webhook  WebhookConfig  `yaml:"webhook"`
	Auth     AuthConfig     `yaml:"auth"`
	Log      logger.Config  `yaml:"log"`
}

func LoadConfig() (*Config, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./configs/billing.yaml"
	}

	// Ensure absolute path
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data, config.NewEnvOverlay(envPrefix))
}

// Parse decodes YAML, applies defaults, overlays environment values and validates the result.
func Parse(data []byte, env config.Config) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if env != nil {
		cfg.applyEnv(env)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a config with every optional value filled in.
func Default() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:        "billing-sync",
			Environment: "development",
		},
		Database: DatabaseConfig{
			Port:            5432,
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: defaultConnMaxLifetime,
			ConnMaxIdleTime: defaultConnMaxIdleTime,
			SlowThreshold:   defaultSlowThreshold,
		},
		Server: ServerConfig{
			HTTP: HTTPConfig{Host: "0.0.0.0", Port: 8080},
			GRPC: GRPCConfig{Host: "0.0.0.0", Port: 9090},
		},
		Stripe: StripeConfig{
			SignatureTolerance: defaultSignatureTolerance,
			LookupCacheTTL:     defaultLookupCacheTTL,
		},
		Webhook: WebhookConfig{
			DedupeEvents:   true,
			MaxAttempts:    5,
			ReplayInterval: defaultReplayInterval,
			ReplayBatch:    50,
		},
		Log: logger.Config{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnv overrides individual values from BILLING_* environment variables.
func (c *Config) applyEnv(env config.Config) {
	overrideString(env, "service.environment", &c.Service.Environment)

	overrideString(env, "database.host", &c.Database.Host)
	overrideInt(env, "database.port", &c.Database.Port)
	overrideString(env, "database.name", &c.Database.Name)
	overrideString(env, "database.user", &c.Database.User)
	overrideString(env, "database.password", &c.Database.Password)
	overrideString(env, "database.sslmode", &c.Database.SSLMode)

	overrideString(env, "redis.addr", &c.Redis.Addr)
	overrideString(env, "redis.password", &c.Redis.Password)
	overrideInt(env, "redis.db", &c.Redis.DB)

	overrideInt(env, "server.http.port", &c.Server.HTTP.Port)
	overrideInt(env, "server.grpc.port", &c.Server.GRPC.Port)

	overrideString(env, "stripe.secret_key", &c.Stripe.SecretKey)
	overrideString(env, "stripe.webhook_secret", &c.Stripe.WebhookSecret)
	overrideString(env, "stripe.api_url", &c.Stripe.APIURL)
	overrideDuration(env, "stripe.lookup_cache_ttl", &c.Stripe.LookupCacheTTL)

	overrideBool(env, "webhook.dedupe_events", &c.Webhook.DedupeEvents)
	overrideBool(env, "webhook.record_unassociated", &c.Webhook.RecordUnassociated)
	overrideInt(env, "webhook.max_attempts", &c.Webhook.MaxAttempts)
	overrideDuration(env, "webhook.replay_interval", &c.Webhook.ReplayInterval)

	overrideString(env, "auth.jwt_secret", &c.Auth.JWTSecret)

	overrideString(env, "log.level", &c.Log.Level)
	overrideString(env, "log.format", &c.Log.Format)
}

// Validate checks required values and ranges.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func overrideString(env config.Config, key string, dst *string) {
	if env.IsSet(key) {
		*dst = env.GetString(key)
	}
}

func overrideInt(env config.Config, key string, dst *int) {
	if env.IsSet(key) {
		*dst = env.GetInt(key)
	}
}

func overrideBool(env config.Config, key string, dst *bool) {
	if env.IsSet(key) {
		*dst = env.GetBool(key)
	}
}

func overrideDuration(env config.Config, key string, dst *time.Duration) {
	if env.IsSet(key) {
		*dst = env.GetDuration(key)
	}
}
