package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Store, cfg.Store)
	assert.Equal(t, "8080", cfg.Server.Port)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeFile(t, `
server:
  port: "9090"
  request_timeout: 3s
store:
  backend: redis
rate_limit:
  enabled: true
  global_ip:
    rate: 5
    window: 10s
cors:
  allowed_origins: ["https://ops.example.com"]
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 3*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout, "unset keys keep defaults")
	assert.Equal(t, BackendRedis, cfg.Store.Backend)
	assert.Equal(t, "camera", cfg.Store.StreamPrefix)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 5, cfg.RateLimit.GlobalIP.Rate)
	assert.Equal(t, 10*time.Second, cfg.RateLimit.GlobalIP.Window)
	assert.Equal(t, []string{"https://ops.example.com"}, cfg.CORS.AllowedOrigins)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "7000")
	t.Setenv("STORE_BACKEND", "postgres")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("REDIS_ADDR", "redis.internal:6379")
	t.Setenv("NATS_URL", "nats://bus:4222")
	t.Setenv("JWT_SIGNING_KEY", "s3cret")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "7000", cfg.Server.Port)
	assert.Equal(t, BackendPostgres, cfg.Store.Backend)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 6543, cfg.Database.Port)
	assert.Equal(t, "redis.internal:6379", cfg.Redis.Addr)
	assert.Equal(t, "nats://bus:4222", cfg.NATS.URL)
	assert.True(t, cfg.NATS.Enabled)
	assert.Equal(t, "s3cret", cfg.Auth.SigningKey)
}

func TestLoad_BadDBPort(t *testing.T) {
	t.Setenv("DB_PORT", "five")
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "DB_PORT")
}

func TestLoad_Invalid(t *testing.T) {
	_, err := Load(writeFile(t, "store:\n  backend: cassandra\n"))
	assert.ErrorContains(t, err, "cassandra")

	_, err = Load(writeFile(t, "server: [not, a, map]\n"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "auth:\n  enabled: true\n  signing_key: \"\"\n"))
	assert.ErrorContains(t, err, "signing_key")
}

func TestLoad_AuthRejectsDevKey(t *testing.T) {
	_, err := Load(writeFile(t, "auth:\n  enabled: true\n"))
	assert.ErrorContains(t, err, "shipped default")

	_, err = Load(writeFile(t, "auth:\n  enabled: true\n  signing_key: "+DevSigningKey+"\n"))
	assert.ErrorContains(t, err, "shipped default")

	t.Setenv("JWT_SIGNING_KEY", "rotated-2026-key")
	cfg, err := Load(writeFile(t, "auth:\n  enabled: true\n"))
	require.NoError(t, err)
	assert.Equal(t, "rotated-2026-key", cfg.Auth.SigningKey)

	// Auth off keeps the placeholder usable for local runs.
	t.Setenv("JWT_SIGNING_KEY", "")
	_, err = Load(writeFile(t, "auth:\n  enabled: false\n"))
	assert.NoError(t, err)
}

func TestDefaultFileParses(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", DefaultPath))
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, cfg.Store.Backend)
	assert.Equal(t, 600*time.Second, cfg.Idempotency.TTL())
}
