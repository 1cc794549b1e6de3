package config

import (
	"time"

	"github.com/spf13/viper"

	common "github.com/telhawk-systems/telhawk-sentinel/common/config"
	"github.com/telhawk-systems/telhawk-sentinel/common/reconnect"
)

type Config struct {
	Server    common.ServerConfig  `mapstructure:"server"`
	NATS      common.NATSConfig    `mapstructure:"nats"`
	Reconnect reconnect.Policy     `mapstructure:"reconnect"`
	Redis     common.RedisConfig   `mapstructure:"redis"`
	Ingestion IngestionConfig      `mapstructure:"ingestion"`
	HostStats HostStatsConfig      `mapstructure:"host_stats"`
	CORS      common.CORSConfig    `mapstructure:"cors"`
	Logging   common.LoggingConfig `mapstructure:"logging"`
}

type IngestionConfig struct {
	MaxEventSize      int64         `mapstructure:"max_event_size"`
	RateLimitEnabled  bool          `mapstructure:"rate_limit_enabled"`
	RateLimitRequests int           `mapstructure:"rate_limit_requests"`
	RateLimitWindow   time.Duration `mapstructure:"rate_limit_window"`
}

// HostStatsConfig controls per-host statistics; they require Redis.
type HostStatsConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
	InstanceID    string        `mapstructure:"instance_id"`
}

func setDefaults(v *viper.Viper) {
	common.ServerDefaults(v, 8088)
	common.NATSDefaults(v, "sentinel-ingest")
	common.ReconnectDefaults(v)
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("ingestion.max_event_size", 1048576)
	v.SetDefault("ingestion.rate_limit_enabled", true)
	v.SetDefault("ingestion.rate_limit_requests", 10000)
	v.SetDefault("ingestion.rate_limit_window", "1m")
	v.SetDefault("host_stats.enabled", true)
	v.SetDefault("host_stats.flush_interval", "10s")
	v.SetDefault("host_stats.instance_id", "")
	common.CORSDefaults(v)
	common.LoggingDefaults(v)
}

// Load reads the ingest configuration. Environment overrides use the
// INGEST_ prefix, e.g. INGEST_NATS_URL.
func Load(configPath string) (*Config, error) {
	var cfg Config
	err := common.Load(common.Options{
		Service:   "ingest",
		EnvPrefix: "INGEST",
		Path:      configPath,
		Defaults:  setDefaults,
	}, &cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}
