package nats

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/telhawk-systems/telhawk-sentinel/common/messaging"
)

func setupNATS(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "nats:2.10-alpine",
			Cmd:          []string{"-js"},
			ExposedPorts: []string{"4222/tcp"},
			WaitingFor:   wait.ForLog("Server is ready").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	endpoint, err := container.PortEndpoint(ctx, "4222/tcp", "nats")
	require.NoError(t, err)
	return endpoint
}

func TestClient_DrainReturnsOnceClosed(t *testing.T) {
	cfg := DefaultConfig()
	cfg.URL = setupNATS(t)
	ctx := context.Background()

	client, err := NewJetStreamClient(cfg, nil)
	require.NoError(t, err)
	defer client.Close()

	durable, err := NewDurableConsumer(ctx, client, SecurityEventsStream, StorageConsumer)
	require.NoError(t, err)

	var handled atomic.Int32
	stop, err := durable.Consume(ctx, func(ctx context.Context, msg *messaging.Message) error {
		handled.Add(1)
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, client.PublishMsg(ctx, &messaging.Message{
		Subject: messaging.SubjectSecurityEvents,
		Data:    []byte(`{"hostname":"WS-01"}`),
	}))
	require.Eventually(t, func() bool { return handled.Load() == 1 }, 10*time.Second, 20*time.Millisecond)

	stop()
	require.NoError(t, client.Drain())
	assert.True(t, client.conn.IsClosed())
	assert.False(t, client.IsConnected())
}

func TestClient_DrainAfterClose(t *testing.T) {
	cfg := DefaultConfig()
	cfg.URL = setupNATS(t)

	client, err := NewClient(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, client.Close())

	assert.Error(t, client.Drain())
}
