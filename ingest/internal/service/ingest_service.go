package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/telhawk-systems/telhawk-sentinel/common/logging"
	"github.com/telhawk-systems/telhawk-sentinel/common/messaging"
	"github.com/telhawk-systems/telhawk-sentinel/common/models"
	"github.com/telhawk-systems/telhawk-sentinel/common/reconnect"
	"github.com/telhawk-systems/telhawk-sentinel/ingest/internal/metrics"
)

var (
	// ErrQueueUnavailable means no broker connection could be obtained.
	ErrQueueUnavailable = errors.New("event queue unavailable")
	// ErrPublishFailed means the broker did not acknowledge the event.
	ErrPublishFailed = errors.New("failed to publish event")
)

// IngestService validates events and publishes them to the durable queue.
// It holds no per-request state.
type IngestService struct {
	broker  *reconnect.Dependency[messaging.Publisher]
	subject string
	logger  *slog.Logger
}

// NewIngestService creates a service publishing to messaging.SubjectSecurityEvents.
func NewIngestService(broker *reconnect.Dependency[messaging.Publisher], logger *slog.Logger) *IngestService {
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestService{
		broker:  broker,
		subject: messaging.SubjectSecurityEvents,
		logger:  logger,
	}
}

// Ingest validates ev and publishes its JSON encoding, returning once the
// broker has acknowledged it. Submissions are not deduplicated.
func (s *IngestService) Ingest(ctx context.Context, ev models.SecurityEvent) error {
	if err := ev.Validate(); err != nil {
		return err
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("serialize event: %w", err)
	}

	pub, err := s.broker.Get(ctx)
	if err != nil {
		metrics.PublishErrors.WithLabelValues("unavailable").Inc()
		return fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
	}

	start := time.Now()
	err = pub.PublishMsg(ctx, &messaging.Message{
		Subject:   s.subject,
		Data:      data,
		Metadata:  map[string]string{messaging.HeaderHostname: ev.Hostname},
		Timestamp: start,
	})
	metrics.PublishDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.PublishErrors.WithLabelValues("publish").Inc()
		s.logger.ErrorContext(ctx, "publish failed",
			logging.Subject(s.subject), logging.Hostname(ev.Hostname), logging.Error(err))
		return fmt.Errorf("%w: %v", ErrPublishFailed, err)
	}
	return nil
}

// Ready reports whether the broker is reachable, reconnecting if needed.
func (s *IngestService) Ready(ctx context.Context) messaging.HealthStatus {
	pub, err := s.broker.Get(ctx)
	if err != nil {
		return messaging.HealthStatus{Error: err.Error()}
	}
	return messaging.CheckPublisherHealth(ctx, pub)
}
