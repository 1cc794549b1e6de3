package eventstore

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/telhawk-systems/telhawk-sentinel/common/models"
)

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"sslmode"`
}

// ConnString builds a postgres:// URL usable by pgx and golang-migrate.
func (c PostgresConfig) ConnString() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.Database,
		RawQuery: "sslmode=" + url.QueryEscape(sslMode),
	}
	return u.String()
}

const (
	latestQuery = `SELECT timestamp, hostname, event_type, details
        FROM ` + Table + `
        ORDER BY timestamp DESC
        LIMIT $1`

	insertQuery = `INSERT INTO ` + Table + ` (timestamp, hostname, event_type, details)
        VALUES ($1, $2, $3, $4)`
)

// PostgresStore implements Store on a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore opens a pool and verifies connectivity.
func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Close() { s.pool.Close() }

// Latest maps each row positionally; a row with the wrong arity or column
// types fails the whole call.
func (s *PostgresStore) Latest(ctx context.Context, limit int) ([]models.StoredEvent, error) {
	rows, err := s.pool.Query(ctx, latestQuery, limit)
	if err != nil {
		return nil, fmt.Errorf("query latest events: %w", err)
	}
	defer rows.Close()

	events := make([]models.StoredEvent, 0, limit)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		ev, err := eventFromValues(values)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return events, nil
}

func (s *PostgresStore) Insert(ctx context.Context, event models.StoredEvent) error {
	_, err := s.pool.Exec(ctx, insertQuery, event.Timestamp.UTC(), event.Hostname, event.EventType, event.Details)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// eventFromValues maps (timestamp, hostname, event_type, details).
func eventFromValues(values []any) (models.StoredEvent, error) {
	if len(values) != 4 {
		return models.StoredEvent{}, fmt.Errorf("%w: expected 4 columns, got %d", ErrMalformedRow, len(values))
	}
	ts, ok := values[0].(time.Time)
	if !ok {
		return models.StoredEvent{}, fmt.Errorf("%w: timestamp column has type %T", ErrMalformedRow, values[0])
	}
	strs := make([]string, 3)
	for i := range strs {
		v, ok := values[i+1].(string)
		if !ok {
			return models.StoredEvent{}, fmt.Errorf("%w: column %d has type %T", ErrMalformedRow, i+1, values[i+1])
		}
		strs[i] = v
	}
	return models.StoredEvent{
		Timestamp: ts.UTC(),
		Hostname:  strs[0],
		EventType: strs[1],
		Details:   strs[2],
	}, nil
}
