// Package eventstore persists security events and serves the latest ones.
// Two backends are provided: PostgreSQL (pgx) and OpenSearch.
package eventstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/telhawk-systems/telhawk-sentinel/common/database"
	"github.com/telhawk-systems/telhawk-sentinel/common/models"
)

// Table is the PostgreSQL table holding security events.
const Table = "security_events"

// ErrMalformedRow is returned when a stored row cannot be mapped to an
// event. The whole read fails; no partial results are returned.
var ErrMalformedRow = errors.New("malformed event row")

// Store is the persistence contract used by the query service and the
// storage consumer. Implementations are safe for concurrent use.
type Store interface {
	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error

	// Latest returns up to limit events ordered by timestamp, newest first.
	Latest(ctx context.Context, limit int) ([]models.StoredEvent, error)

	// Insert persists one event.
	Insert(ctx context.Context, event models.StoredEvent) error

	Close()
}

// Config selects and configures a backend.
type Config struct {
	// Backend is "postgres" or "opensearch".
	Backend    string           `mapstructure:"backend"`
	Postgres   PostgresConfig   `mapstructure:"postgres"`
	OpenSearch OpenSearchConfig `mapstructure:"opensearch"`
}

// Open connects to the configured backend. It does not create schema; call
// Bootstrap for that.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (Store, error) {
	switch cfg.Backend {
	case "postgres", "":
		return NewPostgresStore(ctx, cfg.Postgres.ConnString())
	case "opensearch":
		return NewOpenSearchStore(cfg.OpenSearch, logger)
	default:
		return nil, fmt.Errorf("unknown event store backend %q (supported: postgres, opensearch)", cfg.Backend)
	}
}

// Bootstrap creates the table or index the backend needs, bounded by
// database.DefaultMigrationTimeout.
func Bootstrap(ctx context.Context, cfg Config, logger *slog.Logger) error {
	ctx, cancel := database.MigrationContext(ctx)
	defer cancel()

	switch cfg.Backend {
	case "postgres", "":
		return Migrate(ctx, cfg.Postgres.ConnString(), logger)
	case "opensearch":
		s, err := NewOpenSearchStore(cfg.OpenSearch, logger)
		if err != nil {
			return err
		}
		defer s.Close()
		return s.EnsureIndex(ctx)
	default:
		return fmt.Errorf("unknown event store backend %q (supported: postgres, opensearch)", cfg.Backend)
	}
}
