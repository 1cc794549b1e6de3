package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/telhawk-sentinel/common/eventstore"
	"github.com/telhawk-systems/telhawk-sentinel/common/messaging"
	"github.com/telhawk-systems/telhawk-sentinel/common/models"
	"github.com/telhawk-systems/telhawk-sentinel/common/reconnect"
	"github.com/telhawk-systems/telhawk-sentinel/consumer/internal/deadletter"
)

type memStore struct {
	mu        sync.Mutex
	events    []models.StoredEvent
	insertErr error
}

func (m *memStore) Ping(ctx context.Context) error { return nil }
func (m *memStore) Close()                         {}

func (m *memStore) Latest(ctx context.Context, limit int) ([]models.StoredEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.StoredEvent(nil), m.events...), nil
}

func (m *memStore) Insert(ctx context.Context, ev models.StoredEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	m.events = append(m.events, ev)
	return nil
}

func dependency(store eventstore.Store, dialErr error) *reconnect.Dependency[eventstore.Store] {
	policy := reconnect.Policy{MaxAttempts: 1, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}
	return reconnect.New[eventstore.Store]("mem",
		func(context.Context) (eventstore.Store, error) {
			if dialErr != nil {
				return nil, dialErr
			}
			return store, nil
		},
		nil, nil, policy, nil)
}

type fakeConsumer struct {
	handler messaging.MessageHandler
	stopped bool
}

func (f *fakeConsumer) Consume(ctx context.Context, handler messaging.MessageHandler) (func(), error) {
	f.handler = handler
	return func() { f.stopped = true }, nil
}

func message(data string) *messaging.Message {
	return &messaging.Message{Subject: messaging.SubjectSecurityEvents, Data: []byte(data), Timestamp: time.Now()}
}

const validEvent = `{"timestamp":"2024-01-15T10:30:00Z","hostname":"WS-01","event_type":"Process Creation","details":"Process 'cmd.exe' launched by 'explorer.exe'"}`

func TestHandle_StoresEvent(t *testing.T) {
	store := &memStore{}
	h := NewHandler(nil, dependency(store, nil), nil, nil)

	require.NoError(t, h.Handle(context.Background(), message(validEvent)))

	require.Len(t, store.events, 1)
	ev := store.events[0]
	assert.Equal(t, time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC), ev.Timestamp)
	assert.Equal(t, "WS-01", ev.Hostname)
	assert.Equal(t, models.EventTypeProcessCreation, ev.EventType)
}

func TestHandle_PoisonMessages(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `{"timestamp":`},
		{"missing hostname", `{"timestamp":"2024-01-15T10:30:00Z","event_type":"Process Creation","details":"x"}`},
		{"bad timestamp", `{"timestamp":"yesterday","hostname":"WS-01","event_type":"Process Creation","details":"x"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &memStore{}
			h := NewHandler(nil, dependency(store, nil), nil, nil)

			err := h.Handle(context.Background(), message(tt.data))
			require.Error(t, err)
			assert.True(t, messaging.IsPoison(err))
			assert.Empty(t, store.events)
		})
	}
}

func TestHandle_InsertFailureIsRetryable(t *testing.T) {
	store := &memStore{insertErr: errors.New("deadlock detected")}
	h := NewHandler(nil, dependency(store, nil), nil, nil)

	err := h.Handle(context.Background(), message(validEvent))
	require.Error(t, err)
	assert.False(t, messaging.IsPoison(err))
}

func TestHandle_StoreUnavailableIsRetryable(t *testing.T) {
	h := NewHandler(nil, dependency(nil, errors.New("connection refused")), nil, nil)

	err := h.Handle(context.Background(), message(validEvent))
	require.ErrorIs(t, err, reconnect.ErrUnavailable)
	assert.False(t, messaging.IsPoison(err))
}

func TestStartStop(t *testing.T) {
	store := &memStore{}
	source := &fakeConsumer{}
	h := NewHandler(source, dependency(store, nil), nil, nil)

	require.NoError(t, h.Start(context.Background()))
	require.NotNil(t, source.handler)
	require.NoError(t, source.handler(context.Background(), message(validEvent)))
	assert.Len(t, store.events, 1)

	h.Stop()
	assert.True(t, source.stopped)
}

type recordingDeadLetter struct {
	reasons []string
	err     error
}

func (r *recordingDeadLetter) Write(ctx context.Context, msg *messaging.Message, reason string, cause error) error {
	if r.err != nil {
		return r.err
	}
	r.reasons = append(r.reasons, reason)
	return nil
}

func TestHandle_DeadLettersPoison(t *testing.T) {
	dl := &recordingDeadLetter{}
	h := NewHandler(nil, dependency(&memStore{}, nil), dl, nil)

	assert.True(t, messaging.IsPoison(h.Handle(context.Background(), message(`not json`))))
	assert.True(t, messaging.IsPoison(h.Handle(context.Background(), message(`{"hostname":"WS-01"}`))))
	assert.Equal(t, []string{deadletter.ReasonDecode, deadletter.ReasonInvalidEvent}, dl.reasons)
}

func TestHandle_DeadLetterFailureRedelivers(t *testing.T) {
	dl := &recordingDeadLetter{err: errors.New("nats: timeout")}
	h := NewHandler(nil, dependency(&memStore{}, nil), dl, nil)

	err := h.Handle(context.Background(), message(`not json`))
	require.Error(t, err)
	assert.False(t, messaging.IsPoison(err))
}

type countingPublisher struct{}

func (countingPublisher) PublishMsg(ctx context.Context, msg *messaging.Message) error { return nil }
func (countingPublisher) IsConnected() bool                                            { return true }
func (countingPublisher) Close() error                                                 { return nil }

func TestHealth(t *testing.T) {
	t.Run("without dead-letter queue", func(t *testing.T) {
		h := NewHandler(nil, dependency(&memStore{}, nil), nil, nil)
		rec := httptest.NewRecorder()
		h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"UP"}`, rec.Body.String())
	})

	t.Run("reports dead-lettered count", func(t *testing.T) {
		q := deadletter.NewQueue(countingPublisher{}, nil)
		h := NewHandler(nil, dependency(&memStore{}, nil), q, nil)
		require.True(t, messaging.IsPoison(h.Handle(context.Background(), message(`not json`))))

		rec := httptest.NewRecorder()
		h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "UP", body["status"])
		assert.Equal(t, float64(1), body["dead_lettered"])
	})
}
