package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.ChatBatchSize)
	assert.Equal(t, 72*time.Hour, cfg.JWTTTL)
	assert.Equal(t, 90*time.Second, cfg.PresenceTTL)
	assert.Equal(t, "@every 1m", cfg.PresenceSweepSpec)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("ENV", "production")
	t.Setenv("CHAT_BATCH_SIZE", "10")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("MINIO_USE_SSL", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Port)
	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, 10, cfg.ChatBatchSize)
	assert.Equal(t, 2.5, cfg.RateLimitRPS)
	assert.True(t, cfg.MinioUseSSL)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("CHAT_BATCH_SIZE", "0")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("CHAT_BATCH_SIZE", "5")
	t.Setenv("JWT_TTL", "-1h")
	_, err = Load()
	assert.Error(t, err)
}
