package config

import "time"

const (
	defaultSignatureTolerance = 300 * time.Second
	defaultLookupCacheTTL     = 60 * time.Second
	defaultReplayInterval     = time.Minute
)

type ServiceConfig struct {
	Name        string `yaml:"name" validate:"required"`
	Environment string `yaml:"environment" validate:"oneof=development staging production test"`
	Version     string `yaml:"version"`
}

type StripeConfig struct {
	SecretKey     string `yaml:"secret_key" validate:"required"`
	WebhookSecret string `yaml:"webhook_secret" validate:"required"`
	// APIURL overrides the Stripe API base URL, used against stripe-mock
	APIURL             string        `yaml:"api_url" validate:"omitempty,url"`
	SignatureTolerance time.Duration `yaml:"signature_tolerance"`
	LookupCacheTTL     time.Duration `yaml:"lookup_cache_ttl"`
}

type WebhookConfig struct {
	DedupeEvents       bool          `yaml:"dedupe_events"`
	RecordUnassociated bool          `yaml:"record_unassociated"`
	MaxAttempts        int           `yaml:"max_attempts" validate:"min=1"`
	ReplayInterval     time.Duration `yaml:"replay_interval"`
	ReplayBatch        int           `yaml:"replay_batch" validate:"min=1"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" validate:"required,min=16"`
}
