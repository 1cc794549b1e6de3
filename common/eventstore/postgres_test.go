package eventstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/telhawk-systems/telhawk-sentinel/common/models"
)

func TestEventFromValues(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name    string
		values  []any
		wantErr bool
	}{
		{"valid row", []any{ts, "host", "Process Creation", "details"}, false},
		{"too few columns", []any{ts, "host", "Process Creation"}, true},
		{"too many columns", []any{ts, "host", "Process Creation", "details", "extra"}, true},
		{"timestamp wrong type", []any{"2024-01-02", "host", "Process Creation", "details"}, true},
		{"hostname wrong type", []any{ts, 42, "Process Creation", "details"}, true},
		{"nil details", []any{ts, "host", "Process Creation", nil}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := eventFromValues(tt.values)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrMalformedRow)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, ts, ev.Timestamp)
			assert.Equal(t, "host", ev.Hostname)
			assert.Equal(t, "Process Creation", ev.EventType)
			assert.Equal(t, "details", ev.Details)
		})
	}
}

func TestPostgresConfig_ConnString(t *testing.T) {
	cfg := PostgresConfig{Host: "db", Port: 5432, User: "sentinel", Password: "p@ss", Database: "events"}
	assert.Equal(t, "postgres://sentinel:p%40ss@db:5432/events?sslmode=disable", cfg.ConnString())

	cfg.SSLMode = "require"
	assert.Contains(t, cfg.ConnString(), "sslmode=require")
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), Config{Backend: "clickhouse"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown event store backend")
}

func setupPostgres(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := postgres.Run(ctx,
		"postgres:17-alpine",
		postgres.WithDatabase("sentinel_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	connString, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return connString
}

func TestPostgresStore_InsertAndLatest(t *testing.T) {
	connString := setupPostgres(t)
	ctx := context.Background()

	require.NoError(t, Migrate(ctx, connString, nil))
	// Second run is a no-op.
	require.NoError(t, Migrate(ctx, connString, nil))

	store, err := NewPostgresStore(ctx, connString)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Ping(ctx))

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 25; i++ {
		require.NoError(t, store.Insert(ctx, models.StoredEvent{
			Timestamp: base.Add(time.Duration(i) * time.Second),
			Hostname:  "WS-01",
			EventType: models.EventTypeProcessCreation,
			Details:   "Process 'cmd.exe' launched by 'explorer.exe'",
		}))
	}

	events, err := store.Latest(ctx, 20)
	require.NoError(t, err)
	require.Len(t, events, 20)
	assert.Equal(t, base.Add(24*time.Second), events[0].Timestamp)
	for i := 1; i < len(events); i++ {
		assert.False(t, events[i].Timestamp.After(events[i-1].Timestamp))
	}
}
