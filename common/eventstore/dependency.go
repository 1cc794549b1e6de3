package eventstore

import (
	"context"
	"log/slog"

	"github.com/telhawk-systems/telhawk-sentinel/common/reconnect"
)

// NewDependency wraps the configured store in a reconnectable dependency.
// A handle that fails Ping is closed and reopened under policy.
func NewDependency(cfg Config, policy reconnect.Policy, logger *slog.Logger) *reconnect.Dependency[Store] {
	backend := cfg.Backend
	if backend == "" {
		backend = "postgres"
	}
	return reconnect.New[Store](backend,
		func(ctx context.Context) (Store, error) {
			s, err := Open(ctx, cfg, logger)
			if err != nil {
				return nil, err
			}
			if err := s.Ping(ctx); err != nil {
				s.Close()
				return nil, err
			}
			return s, nil
		},
		func(ctx context.Context, s Store) error { return s.Ping(ctx) },
		func(s Store) { s.Close() },
		policy, logger)
}
