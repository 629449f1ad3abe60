package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "postgres://localhost:5432/claimlens")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "local", cfg.AppEnv)
	assert.InDelta(t, 0.75, cfg.SimilarityThreshold, 1e-6)
	assert.InDelta(t, 0.3, cfg.DetectionThreshold, 1e-6)
	assert.Equal(t, 5, cfg.VerificationBatch)
	assert.Equal(t, "in-en", cfg.SearchRegion)
	assert.Equal(t, "w", cfg.SearchTimeLimit)
	assert.Equal(t, 3, cfg.SourceRateLimitSeconds)
	assert.Contains(t, cfg.AuthoritativeDomains, "who.int")
	assert.Contains(t, cfg.AuthoritativeDomains, "pib.gov.in")
}

func TestLoadDomainOverride(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "postgres://localhost:5432/claimlens")
	t.Setenv("AUTHORITATIVE_DOMAINS", "Example.org, trusted.in")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"example.org", "trusted.in"}, cfg.AuthoritativeDomains)
}
