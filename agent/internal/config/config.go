package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/telhawk-systems/telhawk-sentinel/agent/internal/spool"
	"github.com/telhawk-systems/telhawk-sentinel/agent/internal/tailer"
	common "github.com/telhawk-systems/telhawk-sentinel/common/config"
)

type Config struct {
	Backend    BackendConfig        `mapstructure:"backend"`
	EventLog   EventLogConfig       `mapstructure:"eventlog"`
	Tailer     tailer.Config        `mapstructure:"tailer"`
	Spool      SpoolConfig          `mapstructure:"spool"`
	Checkpoint CheckpointConfig     `mapstructure:"checkpoint"`
	Metrics    MetricsConfig        `mapstructure:"metrics"`
	Logging    common.LoggingConfig `mapstructure:"logging"`
}

type BackendConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type EventLogConfig struct {
	// Source is "windows" or "file".
	Source    string `mapstructure:"source"`
	Server    string `mapstructure:"server"`
	LogName   string `mapstructure:"log_name"`
	FilePath  string `mapstructure:"file_path"`
	BatchSize int    `mapstructure:"batch_size"`
}

type SpoolConfig struct {
	Capacity int               `mapstructure:"capacity"`
	Policy   string            `mapstructure:"policy"`
	Retry    spool.RetryConfig `mapstructure:"retry"`
}

type CheckpointConfig struct {
	// Store is "memory" or "redis".
	Store    string `mapstructure:"store"`
	RedisURL string `mapstructure:"redis_url"`
	Key      string `mapstructure:"key"`
}

type MetricsConfig struct {
	// Addr is the listen address for /metrics; empty disables the listener.
	Addr string `mapstructure:"addr"`
}

func defaultSource() string {
	if isWindows {
		return "windows"
	}
	return "file"
}

func setDefaults(v *viper.Viper) {
	hostname, _ := os.Hostname()

	v.SetDefault("backend.url", "http://localhost:8088")
	v.SetDefault("backend.timeout", "5s")
	v.SetDefault("eventlog.source", defaultSource())
	v.SetDefault("eventlog.server", "")
	v.SetDefault("eventlog.log_name", "Security")
	v.SetDefault("eventlog.file_path", "security-events.jsonl")
	v.SetDefault("eventlog.batch_size", 64)
	v.SetDefault("tailer.hostname", hostname)
	v.SetDefault("tailer.poll_interval", "2s")
	v.SetDefault("tailer.backoff", "5s")
	v.SetDefault("tailer.poll_timeout", "30s")
	v.SetDefault("spool.capacity", spool.DefaultCapacity)
	v.SetDefault("spool.policy", string(spool.PolicyDropOldest))
	v.SetDefault("spool.retry.initial_interval", "500ms")
	v.SetDefault("spool.retry.max_interval", "30s")
	v.SetDefault("spool.retry.max_elapsed_time", "5m")
	v.SetDefault("checkpoint.store", "memory")
	v.SetDefault("checkpoint.redis_url", "redis://localhost:6379/0")
	v.SetDefault("checkpoint.key", "")
	v.SetDefault("metrics.addr", ":9101")
	common.LoggingDefaults(v)
}

// Load reads the agent configuration. Environment overrides use the AGENT_
// prefix, e.g. AGENT_BACKEND_URL.
func Load(configPath string) (*Config, error) {
	var cfg Config
	err := common.Load(common.Options{
		Service:   "agent",
		EnvPrefix: "AGENT",
		Path:      configPath,
		Defaults:  setDefaults,
	}, &cfg)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the agent cannot run with.
func (c *Config) Validate() error {
	if c.Backend.URL == "" {
		return fmt.Errorf("backend.url is required")
	}
	if c.Tailer.Hostname == "" {
		return fmt.Errorf("tailer.hostname is required")
	}
	if _, err := spool.ParsePolicy(c.Spool.Policy); err != nil {
		return err
	}
	switch c.EventLog.Source {
	case "windows":
	case "file":
		if c.EventLog.FilePath == "" {
			return fmt.Errorf("eventlog.file_path is required for the file source")
		}
	default:
		return fmt.Errorf("unknown eventlog.source %q (supported: windows, file)", c.EventLog.Source)
	}
	switch c.Checkpoint.Store {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown checkpoint.store %q (supported: memory, redis)", c.Checkpoint.Store)
	}
	return nil
}
