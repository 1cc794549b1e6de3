package config

import (
	"github.com/spf13/viper"

	common "github.com/telhawk-systems/telhawk-sentinel/common/config"
	"github.com/telhawk-systems/telhawk-sentinel/common/eventstore"
	"github.com/telhawk-systems/telhawk-sentinel/common/reconnect"
)

// Config contains runtime configuration for the query service.
type Config struct {
	Server    common.ServerConfig  `mapstructure:"server"`
	Store     eventstore.Config    `mapstructure:"store"`
	Reconnect reconnect.Policy     `mapstructure:"reconnect"`
	CORS      common.CORSConfig    `mapstructure:"cors"`
	Logging   common.LoggingConfig `mapstructure:"logging"`
}

func setDefaults(v *viper.Viper) {
	common.ServerDefaults(v, 8082)
	common.StoreDefaults(v)
	common.ReconnectDefaults(v)
	common.CORSDefaults(v)
	common.LoggingDefaults(v)
}

// Load reads configuration from the provided path and QUERY_ environment
// variables, e.g. QUERY_STORE_POSTGRES_HOST.
func Load(path string) (*Config, error) {
	var cfg Config
	err := common.Load(common.Options{
		Service:   "query",
		EnvPrefix: "QUERY",
		Path:      path,
		Defaults:  setDefaults,
	}, &cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}
