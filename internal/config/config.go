package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Database
	DatabaseURL string

	// Auth0
	Auth0Domain   string
	Auth0Audience string

	// Server
	Port        string
	CORSOrigins []string
	Env         string

	// Per-user request limits
	RateLimitPerMinute int
	RateLimitBurst     int

	// How many milestones a list request evaluates in parallel
	EvaluationConcurrency int

	// S3 backup storage; an empty bucket disables backups
	S3 S3Config
}

// S3Config holds AWS S3 configuration
type S3Config struct {
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string // Optional: for MinIO/LocalStack local dev
}

// Enabled reports whether backup storage is configured
func (c S3Config) Enabled() bool {
	return c.Bucket != ""
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		Auth0Domain:   getEnv("AUTH0_DOMAIN", ""),
		Auth0Audience: getEnv("AUTH0_AUDIENCE", ""),
		Port:          getEnv("PORT", "8080"),
		CORSOrigins:   splitList(getEnv("CORS_ORIGINS", "http://localhost:3000")),
		Env:           getEnv("ENV", "development"),
		S3: S3Config{
			Region:          getEnv("S3_REGION", "us-east-1"),
			Bucket:          getEnv("S3_BUCKET", ""),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			Endpoint:        getEnv("S3_ENDPOINT", ""),
		},
	}

	var err error
	if cfg.RateLimitPerMinute, err = getEnvInt("RATE_LIMIT_PER_MINUTE", 120); err != nil {
		return nil, err
	}
	if cfg.RateLimitBurst, err = getEnvInt("RATE_LIMIT_BURST", 20); err != nil {
		return nil, err
	}
	if cfg.EvaluationConcurrency, err = getEnvInt("EVALUATION_CONCURRENCY", 4); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// IsProduction reports whether ENV is production
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Auth0Domain == "" {
		return fmt.Errorf("AUTH0_DOMAIN is required")
	}
	if c.Auth0Audience == "" {
		return fmt.Errorf("AUTH0_AUDIENCE is required")
	}
	if c.RateLimitPerMinute <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE and RATE_LIMIT_BURST must be positive")
	}
	if c.EvaluationConcurrency <= 0 {
		return fmt.Errorf("EVALUATION_CONCURRENCY must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
