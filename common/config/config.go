// Package config provides the viper loading shared by every Sentinel
// service, plus the configuration blocks they have in common.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// Addr returns the listen address for the configured port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// NATSConfig holds NATS connection settings.
type NATSConfig struct {
	URL           string        `mapstructure:"url"`
	Name          string        `mapstructure:"name"`
	MaxReconnects int           `mapstructure:"max_reconnects"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"`
	Timeout       time.Duration `mapstructure:"timeout"`
	DrainTimeout  time.Duration `mapstructure:"drain_timeout"`
	Username      string        `mapstructure:"username"`
	Password      string        `mapstructure:"password"`
	Token         string        `mapstructure:"token"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
}

// CORSConfig lists the origins allowed to call a service from a browser.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Options describes how a service loads its configuration.
type Options struct {
	// Service names the config directory under /etc/telhawk/sentinel.
	Service string
	// EnvPrefix is prepended to environment overrides, e.g. INGEST_SERVER_PORT.
	EnvPrefix string
	// Path is an explicit config file; when empty config.yaml is searched
	// for in the working directory and the service config directory.
	Path string
	// Defaults registers default values.
	Defaults func(v *viper.Viper)
}

// Load reads defaults, the optional YAML file and the environment into out.
func Load(opts Options, out any) error {
	v := viper.New()

	if opts.Defaults != nil {
		opts.Defaults(v)
	}

	if opts.Path != "" {
		v.SetConfigFile(opts.Path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/telhawk/sentinel/" + opts.Service)
	}

	v.SetEnvPrefix(opts.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found; use defaults
	}

	if err := v.Unmarshal(out); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return nil
}

// ServerDefaults registers server defaults under prefix "server".
func ServerDefaults(v *viper.Viper, port int) {
	v.SetDefault("server.port", port)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "60s")
}

// LoggingDefaults registers logging defaults.
func LoggingDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// NATSDefaults registers NATS defaults.
func NATSDefaults(v *viper.Viper, clientName string) {
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.name", clientName)
	v.SetDefault("nats.max_reconnects", -1)
	v.SetDefault("nats.reconnect_wait", "2s")
	v.SetDefault("nats.timeout", "5s")
	v.SetDefault("nats.drain_timeout", "10s")
}

// ReconnectDefaults registers the dependency reconnect policy under "reconnect".
func ReconnectDefaults(v *viper.Viper) {
	v.SetDefault("reconnect.max_attempts", 1)
	v.SetDefault("reconnect.initial_interval", "200ms")
	v.SetDefault("reconnect.max_interval", "2s")
	v.SetDefault("reconnect.attempt_timeout", "5s")
	v.SetDefault("reconnect.retire_grace", "15s")
}

// StoreDefaults registers event store defaults under "store".
func StoreDefaults(v *viper.Viper) {
	v.SetDefault("store.backend", "postgres")
	v.SetDefault("store.postgres.host", "localhost")
	v.SetDefault("store.postgres.port", 5432)
	v.SetDefault("store.postgres.user", "sentinel")
	v.SetDefault("store.postgres.password", "sentinel")
	v.SetDefault("store.postgres.database", "sentinel")
	v.SetDefault("store.postgres.sslmode", "disable")
	v.SetDefault("store.opensearch.url", "https://localhost:9200")
	v.SetDefault("store.opensearch.username", "admin")
	v.SetDefault("store.opensearch.insecure", true)
	v.SetDefault("store.opensearch.index", "sentinel-security-events")
	v.SetDefault("store.opensearch.refresh", false)
}

// CORSDefaults allows the local dashboard origin.
func CORSDefaults(v *viper.Viper) {
	v.SetDefault("cors.allowed_origins", []string{"http://localhost:3000"})
}
