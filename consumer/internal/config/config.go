package config

import (
	"time"

	"github.com/spf13/viper"

	common "github.com/telhawk-systems/telhawk-sentinel/common/config"
	"github.com/telhawk-systems/telhawk-sentinel/common/eventstore"
	"github.com/telhawk-systems/telhawk-sentinel/common/reconnect"
)

// Config contains runtime configuration for the storage consumer.
type Config struct {
	NATS      common.NATSConfig    `mapstructure:"nats"`
	Store     eventstore.Config    `mapstructure:"store"`
	Reconnect reconnect.Policy     `mapstructure:"reconnect"`
	Consumer  ConsumerConfig       `mapstructure:"consumer"`
	Metrics   MetricsConfig        `mapstructure:"metrics"`
	Logging   common.LoggingConfig `mapstructure:"logging"`
}

type ConsumerConfig struct {
	// Bootstrap creates the table or index before consuming.
	Bootstrap bool          `mapstructure:"bootstrap"`
	AckWait   time.Duration `mapstructure:"ack_wait"`
	NakDelay  time.Duration `mapstructure:"nak_delay"`

	// DeadLetter parks undecodable messages on the SENTINEL_DLQ stream.
	DeadLetter bool `mapstructure:"dead_letter"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

func setDefaults(v *viper.Viper) {
	common.NATSDefaults(v, "sentinel-consumer")
	common.StoreDefaults(v)
	common.ReconnectDefaults(v)
	// Inserts try the store a few times before the message is NAKed.
	v.SetDefault("reconnect.max_attempts", 3)
	v.SetDefault("consumer.bootstrap", true)
	v.SetDefault("consumer.ack_wait", "30s")
	v.SetDefault("consumer.nak_delay", "5s")
	v.SetDefault("consumer.dead_letter", true)
	v.SetDefault("metrics.addr", ":9102")
	common.LoggingDefaults(v)
}

// Load reads configuration from path and CONSUMER_ environment variables.
func Load(path string) (*Config, error) {
	var cfg Config
	err := common.Load(common.Options{
		Service:   "consumer",
		EnvPrefix: "CONSUMER",
		Path:      path,
		Defaults:  setDefaults,
	}, &cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}
