package messaging

import (
	"context"
	"errors"
	"time"
)

// HealthStatus represents the health state of a messaging connection.
type HealthStatus struct {
	Connected bool          `json:"connected"`
	Latency   time.Duration `json:"latency_ms"`
	Error     string        `json:"error,omitempty"`
}

// Err returns the status as an error, or nil when healthy.
func (h HealthStatus) Err() error {
	if h.Connected && h.Error == "" {
		return nil
	}
	if h.Error == "" {
		return errors.New("not connected")
	}
	return errors.New(h.Error)
}

// Pinger is implemented by publishers that can round-trip to the broker.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CheckPublisherHealth reports connection state and, when p supports it,
// the latency of a broker round trip.
func CheckPublisherHealth(ctx context.Context, p Publisher) HealthStatus {
	status := HealthStatus{}
	if p == nil {
		status.Error = "publisher is nil"
		return status
	}

	status.Connected = p.IsConnected()
	if !status.Connected {
		status.Error = "not connected to message broker"
		return status
	}

	if pinger, ok := p.(Pinger); ok {
		start := time.Now()
		err := pinger.Ping(ctx)
		status.Latency = time.Since(start)
		if err != nil {
			status.Error = "health check failed: " + err.Error()
		}
	}
	return status
}
