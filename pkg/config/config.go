package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/inkwell-cms/inkwell/pkg/observability"
	"github.com/inkwell-cms/inkwell/pkg/ratelimit"
	"github.com/inkwell-cms/inkwell/pkg/storage"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      storage.PostgresConfig
	RedisURL      string
	Auth          AuthConfig
	RateLimits    ratelimit.Limits
	Workflow      WorkflowConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// AuthConfig holds credential-verification settings
type AuthConfig struct {
	// SigningKeysURL is the JWKS endpoint for bearer-token verification
	SigningKeysURL string
	SigningKeyTTL  time.Duration

	// KeyPepper is the deployment-wide salt mixed into stored key hashes
	KeyPepper string

	// SystemAdmins is the list of token subjects seeded as system
	// administrators on startup
	SystemAdmins []string
}

// WorkflowConfig holds content-workflow settings
type WorkflowConfig struct {
	// PolicyFile optionally overrides per-site review policies
	PolicyFile string

	// SweepSchedule is the cron expression for the key-expiry sweep
	SweepSchedule string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("INKWELL_HOST", "0.0.0.0"),
			Port:            getEnv("INKWELL_PORT", "8080"),
			ReadTimeout:     getEnvDuration("INKWELL_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("INKWELL_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvDuration("INKWELL_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("INKWELL_SHUTDOWN_TIMEOUT", 30*time.Second),
			HealthPort:      getEnv("INKWELL_HEALTH_PORT", "8081"),
		},
		Database: storage.PostgresConfig{
			URL:         getEnv("INKWELL_POSTGRES_URL", ""),
			MaxConns:    getEnvInt("INKWELL_POSTGRES_MAX_CONNS", 25),
			MinConns:    getEnvInt("INKWELL_POSTGRES_MIN_CONNS", 5),
			Timeout:     getEnvDuration("INKWELL_POSTGRES_TIMEOUT", 10*time.Second),
			MaxLifetime: getEnvDuration("INKWELL_POSTGRES_MAX_LIFETIME", time.Hour),
			MaxIdleTime: getEnvDuration("INKWELL_POSTGRES_MAX_IDLE_TIME", 10*time.Minute),
		},
		RedisURL: getEnv("INKWELL_REDIS_URL", ""),
		Auth: AuthConfig{
			SigningKeysURL: getEnv("INKWELL_SIGNING_KEYS_URL", ""),
			SigningKeyTTL:  getEnvDuration("INKWELL_SIGNING_KEY_TTL", 15*time.Minute),
			KeyPepper:      getEnv("INKWELL_KEY_PEPPER", ""),
			SystemAdmins:   getEnvList("INKWELL_SYSTEM_ADMINS"),
		},
		RateLimits: ratelimit.Limits{
			PerSecond: getEnvInt("INKWELL_RATE_LIMIT_PER_SECOND", 10),
			PerMinute: getEnvInt("INKWELL_RATE_LIMIT_PER_MINUTE", 100),
			PerHour:   getEnvInt("INKWELL_RATE_LIMIT_PER_HOUR", 1000),
			PerDay:    getEnvInt("INKWELL_RATE_LIMIT_PER_DAY", 10000),
		},
		Workflow: WorkflowConfig{
			PolicyFile:    getEnv("INKWELL_WORKFLOW_POLICY_FILE", ""),
			SweepSchedule: getEnv("INKWELL_KEY_SWEEP_SCHEDULE", "@hourly"),
		},
		Observability: ObservabilityConfig{
			LogLevel:       parseLogLevel(getEnv("INKWELL_LOG_LEVEL", "info")),
			MetricsEnabled: getEnvBool("INKWELL_METRICS_ENABLED", true),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}
	if c.Database.URL == "" {
		return fmt.Errorf("postgres URL is required")
	}
	if c.Auth.KeyPepper == "" {
		return fmt.Errorf("key pepper is required")
	}
	return nil
}

func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
