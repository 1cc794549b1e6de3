package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sentinel-consumer", cfg.NATS.Name)
	assert.Equal(t, 10*time.Second, cfg.NATS.DrainTimeout)
	assert.Equal(t, "postgres", cfg.Store.Backend)
	assert.Equal(t, 3, cfg.Reconnect.MaxAttempts)
	assert.True(t, cfg.Consumer.Bootstrap)
	assert.True(t, cfg.Consumer.DeadLetter)
	assert.Equal(t, 30*time.Second, cfg.Consumer.AckWait)
	assert.Equal(t, ":9102", cfg.Metrics.Addr)
}

func TestLoad_Env(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CONSUMER_STORE_BACKEND", "opensearch")
	t.Setenv("CONSUMER_CONSUMER_BOOTSTRAP", "false")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "opensearch", cfg.Store.Backend)
	assert.False(t, cfg.Consumer.Bootstrap)
}
