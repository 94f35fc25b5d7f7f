package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	// Empty values count as unset for the parsed keys.
	t.Setenv("STORE", "postgres")
	t.Setenv("JWT_SECRET", devJWTSecret)
	t.Setenv("ENV", "development")
	t.Setenv("REDIS_URL", "")
	t.Setenv("PUSH_TIMEOUT", "")
	t.Setenv("WS_SEND_QUEUE", "")
	t.Setenv("WS_ALLOWED_ORIGINS", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Store)
	assert.Empty(t, cfg.RedisURL)
	assert.Equal(t, 10*time.Second, cfg.PushTimeout)
	assert.Equal(t, 128, cfg.WSSendQueue)
	assert.Empty(t, cfg.WSAllowedOrigins)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("ENV", "development")
	t.Setenv("STORE", "Memory")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("PUSH_TIMEOUT", "3s")
	t.Setenv("PROFILE_CACHE_TTL", "1m")
	t.Setenv("WS_SEND_QUEUE", "16")
	t.Setenv("WS_ALLOWED_ORIGINS", "https://a.example.com, ,https://b.example.com")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Store)
	assert.Equal(t, 3*time.Second, cfg.PushTimeout)
	assert.Equal(t, time.Minute, cfg.ProfileCacheTTL)
	assert.Equal(t, 16, cfg.WSSendQueue)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.WSAllowedOrigins)
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Run("unknown store", func(t *testing.T) {
		t.Setenv("STORE", "mongo")
		t.Setenv("JWT_SECRET", "x")
		_, err := LoadConfig()
		assert.Error(t, err)
	})
	t.Run("dev secret in production", func(t *testing.T) {
		t.Setenv("STORE", "memory")
		t.Setenv("ENV", "production")
		t.Setenv("JWT_SECRET", devJWTSecret)
		_, err := LoadConfig()
		assert.Error(t, err)
	})
}

func TestParsers(t *testing.T) {
	t.Setenv("D", "nonsense")
	assert.Equal(t, time.Second, GetDuration("D", time.Second))
	t.Setenv("D", "-5s")
	assert.Equal(t, time.Second, GetDuration("D", time.Second))
	t.Setenv("D", "250ms")
	assert.Equal(t, 250*time.Millisecond, GetDuration("D", time.Second))

	t.Setenv("I", "x")
	assert.Equal(t, 7, GetInt("I", 7))
	t.Setenv("I", "0")
	assert.Equal(t, 7, GetInt("I", 7))
	t.Setenv("I", "42")
	assert.Equal(t, 42, GetInt("I", 7))

	t.Setenv("G", "set")
	assert.Equal(t, "set", GetEnv("G", "default"))
	assert.Equal(t, "default", GetEnv("MARKETCHAT_UNSET_FOR_TEST", "default"))
}
