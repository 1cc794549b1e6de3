package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8088, cfg.Server.Port)
	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
	assert.Equal(t, 1, cfg.Reconnect.MaxAttempts)
	assert.Equal(t, 5*time.Second, cfg.Reconnect.AttemptTimeout)
	assert.Equal(t, 15*time.Second, cfg.Reconnect.RetireGrace)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, int64(1048576), cfg.Ingestion.MaxEventSize)
	assert.Equal(t, time.Minute, cfg.Ingestion.RateLimitWindow)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.True(t, cfg.HostStats.Enabled)
	assert.Equal(t, 10*time.Second, cfg.HostStats.FlushInterval)
}

func TestLoad_Overrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ingest.yaml")
	content := `
server:
  port: 9088
reconnect:
  max_attempts: 3
redis:
  enabled: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("INGEST_NATS_URL", "nats://nats:4222")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9088, cfg.Server.Port)
	assert.Equal(t, 3, cfg.Reconnect.MaxAttempts)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "nats://nats:4222", cfg.NATS.URL)
}
