package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func setRequired(t *testing.T) {
	for k, v := range map[string]string{
		"APP_ENV": "test", "APP_PORT": "8080", "DB_USER": "shop", "DB_HOST": "localhost",
		"DB_PORT": "3306", "DB_NAME": "storefront", "JWT_SECRET": "s3cret",
	} {
		t.Setenv(k, v)
	}
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)
	cfg := Load()
	assert.Equal(t, 120, cfg.AccessTTLMin)
	assert.Equal(t, 10, cfg.BcryptCost)
	assert.Equal(t, "http://localhost:5173", cfg.FrontendURL)
	assert.Equal(t, []string{"http://localhost:5173", "http://localhost:3000"}, cfg.CORSOrigins)

	user, _, host, port, name := cfg.DSNParts()
	assert.Equal(t, []string{"shop", "localhost", "3306", "storefront"}, []string{user, host, port, name})
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("ACCESS_TOKEN_TTL_MIN", "15")
	t.Setenv("CORS_ORIGINS", " https://shop.example , ,https://admin.example")
	cfg := Load()
	assert.Equal(t, 15, cfg.AccessTTLMin)
	assert.Equal(t, []string{"https://shop.example", "https://admin.example"}, cfg.CORSOrigins)
}

func TestSweepConfig(t *testing.T) {
	t.Setenv("SWEEP_MAX_AGE", "-5s")
	t.Setenv("SWEEP_SCHEDULE", "*/5 * * * *")
	cfg := LoadSweepConfig()
	assert.True(t, cfg.Enabled)
	assert.Equal(t, time.Minute, cfg.MaxAge)
	assert.Equal(t, "*/5 * * * *", cfg.Schedule)
}

func TestPayPalConfigured(t *testing.T) {
	t.Setenv("PAYPAL_CLIENT_ID", "id")
	assert.False(t, LoadPayPalConfig().Configured())
	t.Setenv("PAYPAL_SECRET", "secret")
	cfg := LoadPayPalConfig()
	assert.True(t, cfg.Configured())
	assert.Equal(t, "USD", cfg.Currency)
}

func TestRateLimitConfigClamps(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_EVERY", "2s")
	t.Setenv("RATE_LIMIT_TTL", "1s")
	cfg := LoadRateLimitConfig()
	assert.Equal(t, 1, cfg.Capacity)
	assert.Equal(t, 2*time.Second, cfg.RefillInterval)
	assert.Equal(t, 10*time.Second, cfg.TTL)
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("X_BOOL", "maybe")
	t.Setenv("X_INT", "abc")
	assert.True(t, envBool("X_BOOL", true))
	assert.Equal(t, 7, envInt("X_INT", 7))
	assert.Equal(t, map[string]bool{"GET": true, "HEAD": true}, parseMethods("get, head,"))
}
