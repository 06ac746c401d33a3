package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/ledger")
	t.Setenv("AUTH0_DOMAIN", "tenant.auth0.com")
	t.Setenv("AUTH0_AUDIENCE", "https://api.ledger.test")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 120, cfg.RateLimitPerMinute)
	assert.Equal(t, 20, cfg.RateLimitBurst)
	assert.Equal(t, 4, cfg.EvaluationConcurrency)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORSOrigins)
	assert.False(t, cfg.S3.Enabled())
	assert.False(t, cfg.IsProduction())
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("CORS_ORIGINS", "https://a.test, https://b.test,")
	t.Setenv("EVALUATION_CONCURRENCY", "8")
	t.Setenv("S3_BUCKET", "ledger-backups")
	t.Setenv("ENV", "production")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.test", "https://b.test"}, cfg.CORSOrigins)
	assert.Equal(t, 8, cfg.EvaluationConcurrency)
	assert.True(t, cfg.S3.Enabled())
	assert.True(t, cfg.IsProduction())
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("AUTH0_DOMAIN", "tenant.auth0.com")
	t.Setenv("AUTH0_AUDIENCE", "aud")

	_, err := Load()

	assert.ErrorContains(t, err, "DATABASE_URL")
}

func TestLoad_InvalidInteger(t *testing.T) {
	setRequired(t)
	t.Setenv("RATE_LIMIT_BURST", "lots")

	_, err := Load()

	assert.ErrorContains(t, err, "RATE_LIMIT_BURST")
}
