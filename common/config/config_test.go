package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServiceConfig struct {
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
	CORS    CORSConfig    `mapstructure:"cors"`
}

func testDefaults(v *viper.Viper) {
	ServerDefaults(v, 8088)
	LoggingDefaults(v)
	CORSDefaults(v)
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	var cfg testServiceConfig
	require.NoError(t, Load(Options{Service: "test", EnvPrefix: "SENTINELTEST", Defaults: testDefaults}, &cfg))

	assert.Equal(t, 8088, cfg.Server.Port)
	assert.Equal(t, ":8088", cfg.Server.Addr())
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORS.AllowedOrigins)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "svc.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9000\nlogging:\n  level: debug\n"), 0o600))

	t.Setenv("SENTINELTEST_LOGGING_FORMAT", "text")

	var cfg testServiceConfig
	require.NoError(t, Load(Options{Service: "test", EnvPrefix: "SENTINELTEST", Path: path, Defaults: testDefaults}, &cfg))

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoad_InvalidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unterminated"), 0o600))

	var cfg testServiceConfig
	assert.Error(t, Load(Options{Service: "test", Path: path, Defaults: testDefaults}, &cfg))
}

func TestLoadCLI(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SENTINEL_CONFIG_DIR", dir)

	cfg, err := LoadCLI()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8088", cfg.IngestURL)
	assert.Equal(t, "table", cfg.Output)
	assert.Equal(t, filepath.Join(dir, "config.yaml"), cfg.Path())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("query_url: http://query:8082\n"), 0o600))
	t.Setenv("SENTINEL_OUTPUT", "json")

	cfg, err = LoadCLI()
	require.NoError(t, err)
	assert.Equal(t, "http://query:8082", cfg.QueryURL)
	assert.Equal(t, "json", cfg.Output)
}
