package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.True(t, cfg.MigrateOnStart)
	assert.Equal(t, 30*time.Minute, cfg.AccessTTL)
	assert.False(t, cfg.Production())
	assert.False(t, cfg.LogosEnabled())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("ACCESS_TTL", "5m")
	t.Setenv("BCRYPT_COST", "4")
	t.Setenv("MIGRATE_ON_START", "false")
	t.Setenv("S3_BUCKET", "logos")
	t.Setenv("S3_ACCESS_KEY", "key")
	t.Setenv("S3_SECRET_KEY", "secret")
	t.Setenv("CORS_ORIGINS", "https://clubs.example.edu, ,http://localhost:3000")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("REDIS_PREFIX", "staging")

	cfg := Load()

	assert.True(t, cfg.Production())
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, 5*time.Minute, cfg.AccessTTL)
	assert.Equal(t, 4, cfg.BcryptCost)
	assert.False(t, cfg.MigrateOnStart)
	assert.True(t, cfg.LogosEnabled())
	assert.Equal(t, []string{"https://clubs.example.edu", "http://localhost:3000"}, cfg.CORSOrigins)
	assert.Equal(t, 2, cfg.Redis().DB)
	assert.Equal(t, "staging", cfg.Redis().Prefix)
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("ACCESS_TTL", "soon")
	t.Setenv("RATE_LIMIT_PER_MIN", "lots")
	t.Setenv("MIGRATE_ON_START", "maybe")

	cfg := Load()

	assert.Equal(t, 30*time.Minute, cfg.AccessTTL)
	assert.Equal(t, 120, cfg.RateLimitPerMin)
	assert.True(t, cfg.MigrateOnStart)
}
