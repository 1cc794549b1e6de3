package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// CLIConfig holds settings for the sentinel operator CLI.
type CLIConfig struct {
	IngestURL string        `mapstructure:"ingest_url" yaml:"ingest_url"`
	QueryURL  string        `mapstructure:"query_url" yaml:"query_url"`
	Output    string        `mapstructure:"output" yaml:"output"`
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout"`

	path string
}

// DefaultCLI returns the CLI defaults.
func DefaultCLI() *CLIConfig {
	return &CLIConfig{
		IngestURL: "http://localhost:8088",
		QueryURL:  "http://localhost:8082",
		Output:    "table",
		Timeout:   10 * time.Second,
	}
}

// Path is the config file the CLI settings were read from.
func (c *CLIConfig) Path() string { return c.path }

// LoadCLI loads configuration for the CLI from $SENTINEL_CONFIG_DIR
// (default $HOME/.sentinel) with SENTINEL_* environment overrides.
func LoadCLI() (*CLIConfig, error) {
	defaults := DefaultCLI()

	v := viper.New()
	v.SetDefault("ingest_url", defaults.IngestURL)
	v.SetDefault("query_url", defaults.QueryURL)
	v.SetDefault("output", defaults.Output)
	v.SetDefault("timeout", defaults.Timeout.String())

	configDir := os.Getenv("SENTINEL_CONFIG_DIR")
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to determine home directory: %w", err)
		}
		configDir = filepath.Join(home, ".sentinel")
	}

	configPath := filepath.Join(configDir, "config.yaml")
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("SENTINEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The file is optional.
	if err := v.ReadInConfig(); err != nil {
		if _, statErr := os.Stat(configPath); statErr == nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &CLIConfig{path: configPath}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}
