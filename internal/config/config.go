// Package config defines the configuration structure for the VonVault API.
// Configuration is loaded once at process start and is immutable thereafter.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> struct defaults (Lowest)
//
// Any missing required value or invalid format fails startup.
package config

import (
	"time"

	"vonvault/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type used
// throughout configuration to prevent accidental logging of sensitive values.
type SecretString = types.SecretString

// Metrics backends selectable through METRICS_BACKEND.
const (
	MetricsBackendNone       = "none"
	MetricsBackendCloudWatch = "cloudwatch"
	MetricsBackendPrometheus = "prometheus"
)

// Config is the top-level configuration struct for the VonVault API.
// Sub-components receive only the specific config subsets they require.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"vonvault-api"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	// Domain Configurations
	Server        ServerConfig
	Database      DatabaseConfig
	Auth          AuthConfig
	Redis         RedisConfig
	Investment    InvestmentConfig
	AWS           AWSConfig
	Security      SecurityConfig
	Observability ObservabilityConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8080"`
	RequestTimeout  time.Duration `envconfig:"REQUEST_TIMEOUT" default:"15s" validate:"gt=0"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s" validate:"gt=0"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required,url"`

	// Tuning Parameters
	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10" validate:"gte=1"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2" validate:"gte=0,ltefield=MaxConns"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`

	// Startup tasks
	RunMigrations bool `envconfig:"DB_RUN_MIGRATIONS" default:"true"`
	SeedPlans     bool `envconfig:"DB_SEED_PLANS" default:"true"`
}

// AuthConfig holds the bearer token verification settings.
type AuthConfig struct {
	JWTSecret      SecretString  `envconfig:"JWT_SECRET" validate:"required,min=32"`
	AccessTokenTTL time.Duration `envconfig:"JWT_ACCESS_TOKEN_TTL" default:"24h" validate:"gt=0"`
}

// RedisConfig enables the cross-instance investment lock and the shared
// idempotency store. Both fall back to in-process implementations when URL is
// empty.
type RedisConfig struct {
	URL SecretString `envconfig:"REDIS_URL" validate:"omitempty,url"`
}

// InvestmentConfig tunes the investment commit protocol.
type InvestmentConfig struct {
	// LockTTL bounds how long a crashed holder can block a user.
	LockTTL time.Duration `envconfig:"INVESTMENT_LOCK_TTL" default:"10s" validate:"gt=0"`
	// LockWait caps how long a submission waits for the per-user lock.
	LockWait time.Duration `envconfig:"INVESTMENT_LOCK_WAIT" default:"5s" validate:"gt=0"`

	CacheRetryAttempts int           `envconfig:"MEMBERSHIP_CACHE_RETRY_ATTEMPTS" default:"3" validate:"gte=1"`
	CacheRetryWait     time.Duration `envconfig:"MEMBERSHIP_CACHE_RETRY_WAIT" default:"100ms"`

	IdempotencyTTL time.Duration `envconfig:"IDEMPOTENCY_TTL" default:"24h" validate:"gt=0"`
}

// AWSConfig holds AWS resource identifiers and regional configuration.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"us-east-1"`

	// InvestmentEventsQueue receives investment.created and membership.upgraded
	// events. Publishing is disabled when empty.
	InvestmentEventsQueue string `envconfig:"SQS_INVESTMENT_EVENTS" validate:"omitempty,url"`

	// LocalStack Support (Empty in Prod)
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL" validate:"omitempty,url"`
}

// SecurityConfig holds CORS settings.
type SecurityConfig struct {
	CorsAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// ObservabilityConfig holds telemetry settings.
type ObservabilityConfig struct {
	MetricsBackend  string `envconfig:"METRICS_BACKEND" default:"none" validate:"oneof=none cloudwatch prometheus"`
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"VonVault"`
}

// BuildInfo holds build-time metadata injected via ldflags.
// These values are NOT populated from environment variables.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
	// ErrDotenv indicates an explicitly requested dotenv file could not be read.
	ErrDotenv ConfigErrorType = "DOTENV_FAILED"
)
