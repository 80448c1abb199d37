package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/redscope/redscope/internal/session"
)

// Config holds all client and dev-server configuration
type Config struct {
	API           APIConfig
	Observability ObservabilityConfig
	Dev           DevServerConfig
}

// APIConfig holds settings for the platform API client
type APIConfig struct {
	BaseURL         string
	Timeout         time.Duration
	CredentialsFile string
}

// ObservabilityConfig holds logging and tracing configuration
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string
	OTELEnabled    bool
	ServiceName    string
	ServiceVersion string
}

// DevServerConfig holds configuration for the local development auth server
type DevServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	SigningKey      string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	DatabaseURL     string
	RateLimitRPS    float64
	RateLimitBurst  int
	Argon2Memory    uint32
	Argon2Iters     uint32
	Argon2Threads   uint8
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	credFile := os.Getenv("REDSCOPE_CREDENTIALS_FILE")
	if credFile == "" {
		path, err := session.DefaultPath()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve credentials path: %w", err)
		}
		credFile = path
	}

	cfg := &Config{
		API: APIConfig{
			BaseURL:         getEnv("REDSCOPE_API_URL", "http://localhost:8000/api/v1"),
			Timeout:         parseDuration("REDSCOPE_API_TIMEOUT", "30s"),
			CredentialsFile: credFile,
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "text"),
			OTELEnabled:    parseBool("OTEL_ENABLED", false),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "redscope"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "0.1.0"),
		},
		Dev: DevServerConfig{
			Host:            getEnv("REDSCOPE_DEV_HOST", "127.0.0.1"),
			Port:            getEnv("REDSCOPE_DEV_PORT", "8000"),
			ReadTimeout:     parseDuration("REDSCOPE_DEV_READ_TIMEOUT", "15s"),
			WriteTimeout:    parseDuration("REDSCOPE_DEV_WRITE_TIMEOUT", "15s"),
			IdleTimeout:     parseDuration("REDSCOPE_DEV_IDLE_TIMEOUT", "60s"),
			SigningKey:      getEnv("REDSCOPE_DEV_SIGNING_KEY", "dev-only-insecure-key"),
			AccessTokenTTL:  parseDuration("REDSCOPE_DEV_ACCESS_TTL", "15m"),
			RefreshTokenTTL: parseDuration("REDSCOPE_DEV_REFRESH_TTL", "168h"),
			DatabaseURL:     getEnv("REDSCOPE_DEV_DATABASE_URL", ""),
			RateLimitRPS:    float64(parseInt("REDSCOPE_DEV_RATELIMIT_RPS", 10)),
			RateLimitBurst:  parseInt("REDSCOPE_DEV_RATELIMIT_BURST", 20),
			Argon2Memory:    uint32(parseInt("ARGON2_MEMORY", 65536)),
			Argon2Iters:     uint32(parseInt("ARGON2_ITERATIONS", 3)),
			Argon2Threads:   uint8(parseInt("ARGON2_PARALLELISM", 4)),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("REDSCOPE_API_URL is required")
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("REDSCOPE_API_TIMEOUT must be positive")
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func parseBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func parseDuration(key string, defaultValue string) time.Duration {
	value := getEnv(key, defaultValue)
	d, err := time.ParseDuration(value)
	if err != nil {
		// Fallback to default
		d, _ = time.ParseDuration(defaultValue)
	}
	return d
}
