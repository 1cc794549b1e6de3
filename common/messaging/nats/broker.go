package nats

import (
	"context"
	"log/slog"

	"github.com/telhawk-systems/telhawk-sentinel/common/config"
	"github.com/telhawk-systems/telhawk-sentinel/common/messaging"
	"github.com/telhawk-systems/telhawk-sentinel/common/reconnect"
)

// ConfigFrom converts the shared service configuration block.
func ConfigFrom(c config.NATSConfig) Config {
	cfg := DefaultConfig()
	if c.URL != "" {
		cfg.URL = c.URL
	}
	if c.Name != "" {
		cfg.Name = c.Name
	}
	if c.MaxReconnects != 0 {
		cfg.MaxReconnects = c.MaxReconnects
	}
	if c.ReconnectWait > 0 {
		cfg.ReconnectWait = c.ReconnectWait
	}
	if c.Timeout > 0 {
		cfg.Timeout = c.Timeout
	}
	if c.DrainTimeout > 0 {
		cfg.DrainTimeout = c.DrainTimeout
	}
	cfg.Username = c.Username
	cfg.Password = c.Password
	cfg.Token = c.Token
	return cfg
}

// DialStream connects to JetStream and makes sure stream exists.
func DialStream(ctx context.Context, cfg Config, stream StreamConfig, logger *slog.Logger) (*JetStreamClient, error) {
	client, err := NewJetStreamClient(cfg, logger)
	if err != nil {
		return nil, err
	}
	if _, err := client.EnsureStream(ctx, stream); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

// NewPublisherDependency wraps a JetStream publisher for stream in a
// reconnectable dependency. The handle is replaced when it is disconnected
// or JetStream stops answering.
func NewPublisherDependency(cfg Config, stream StreamConfig, policy reconnect.Policy, logger *slog.Logger) *reconnect.Dependency[messaging.Publisher] {
	return reconnect.New[messaging.Publisher]("nats",
		func(ctx context.Context) (messaging.Publisher, error) {
			return DialStream(ctx, cfg, stream, logger)
		},
		func(ctx context.Context, p messaging.Publisher) error {
			return messaging.CheckPublisherHealth(ctx, p).Err()
		},
		func(p messaging.Publisher) { _ = p.Close() },
		policy, logger)
}
