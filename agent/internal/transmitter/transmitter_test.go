package transmitter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/telhawk-sentinel/common/models"
)

func testEvent() models.SecurityEvent {
	return models.SecurityEvent{
		Timestamp: "2024-01-15T10:30:00Z",
		Hostname:  "WS-01",
		EventType: models.EventTypeProcessCreation,
		Details:   "Process 'cmd.exe' launched by 'explorer.exe'",
	}
}

func TestTransmit_Success(t *testing.T) {
	var got models.SecurityEvent
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/ingest", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"event received"}`))
	}))
	defer server.Close()

	c := New(server.URL+"/", time.Second, nil)
	require.NoError(t, c.Transmit(context.Background(), testEvent()))
	assert.Equal(t, testEvent(), got)
}

func TestTransmit_StatusErrors(t *testing.T) {
	tests := []struct {
		status    int
		retryable bool
	}{
		{http.StatusBadRequest, false},
		{http.StatusUnprocessableEntity, false},
		{http.StatusTooManyRequests, false},
		{http.StatusInternalServerError, true},
		{http.StatusServiceUnavailable, true},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":"nope"}`))
			}))
			defer server.Close()

			err := New(server.URL, time.Second, nil).Transmit(context.Background(), testEvent())
			var se *StatusError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tt.status, se.StatusCode)
			assert.Equal(t, "nope", se.Message)
			assert.Equal(t, tt.retryable, se.Retryable())
			assert.Equal(t, int32(1), calls.Load(), "transmitter must not retry")
		})
	}
}

func TestTransmit_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	err := New(server.URL, 20*time.Millisecond, nil).Transmit(context.Background(), testEvent())
	require.Error(t, err)
	var se *StatusError
	assert.False(t, errors.As(err, &se))
}

func TestTransmit_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	err := New(url, time.Second, nil).Transmit(context.Background(), testEvent())
	assert.Error(t, err)
}
