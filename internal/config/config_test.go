package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "3000", cfg.App.Port)
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, 12, cfg.Guide.ConversationWindow)
	assert.Equal(t, "last_month", cfg.Guide.DefaultRange)
	assert.Equal(t, 10*time.Minute, cfg.Guide.LifeContextCacheTTL)
	assert.Equal(t, uint32(5), cfg.Guide.BreakerMinRequests)
	assert.Empty(t, cfg.Guide.DefaultEnabledAction)
	assert.False(t, cfg.Telemetry.OtelEnabled)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	assert.Equal(t, time.Hour, cfg.Database.ConnMaxLifetime)
	assert.False(t, cfg.Database.LogSQL)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("GO_ENV", "production")
	t.Setenv("GUIDE_CONVERSATION_WINDOW", "6")
	t.Setenv("GUIDE_SEMANTIC_THRESHOLD", "0.5")
	t.Setenv("GUIDE_LIFE_CONTEXT_TTL", "90s")
	t.Setenv("GUIDE_ENABLED_ACTIONS", "open_passage, ,start_reflection")
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("DB_SLOW_THRESHOLD", "2s")

	cfg := Load()

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 6, cfg.Guide.ConversationWindow)
	assert.InDelta(t, 0.5, cfg.Guide.SemanticThreshold, 1e-9)
	assert.Equal(t, 90*time.Second, cfg.Guide.LifeContextCacheTTL)
	assert.Equal(t, []string{"open_passage", "start_reflection"}, cfg.Guide.DefaultEnabledAction)
	assert.True(t, cfg.Telemetry.OtelEnabled)
	assert.Equal(t, 2*time.Second, cfg.Database.SlowThreshold)
}

func TestLoad_MalformedValuesFallBack(t *testing.T) {
	t.Setenv("GUIDE_FETCH_LIMIT", "many")
	t.Setenv("LLM_BREAKER_OPEN_TIMEOUT", "soon")
	t.Setenv("OTEL_ENABLED", "maybe")

	cfg := Load()

	assert.Equal(t, 8, cfg.Guide.FetchLimit)
	assert.Equal(t, 30*time.Second, cfg.Guide.BreakerOpenTimeout)
	assert.False(t, cfg.Telemetry.OtelEnabled)
}
