// Package deadletter parks messages the storage consumer cannot process on
// a JetStream stream so they can be inspected instead of silently lost.
package deadletter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/telhawk-systems/telhawk-sentinel/common/logging"
	"github.com/telhawk-systems/telhawk-sentinel/common/messaging"
)

const (
	ReasonDecode       = "decode"
	ReasonInvalidEvent = "invalid_event"
)

// Entry is the payload written to the dead-letter stream.
type Entry struct {
	FailedAt  time.Time         `json:"failed_at"`
	Subject   string            `json:"subject"`
	Reason    string            `json:"reason"`
	Error     string            `json:"error"`
	Payload   []byte            `json:"payload"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Published time.Time         `json:"published_at"`
}

// Queue publishes Entries to sentinel.dlq.<reason>. It is safe for use
// across consumer instances.
type Queue struct {
	publisher messaging.Publisher
	written   atomic.Uint64
	logger    *slog.Logger
	now       func() time.Time
}

func NewQueue(publisher messaging.Publisher, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{publisher: publisher, logger: logger, now: time.Now}
}

// Write parks msg. A nil Queue discards.
func (q *Queue) Write(ctx context.Context, msg *messaging.Message, reason string, cause error) error {
	if q == nil {
		return nil
	}

	entry := Entry{
		FailedAt:  q.now().UTC(),
		Subject:   msg.Subject,
		Reason:    reason,
		Error:     cause.Error(),
		Payload:   msg.Data,
		Metadata:  msg.Metadata,
		Published: msg.Timestamp,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal dead-letter entry: %w", err)
	}

	out := &messaging.Message{
		Subject:   messaging.SubjectDeadLetterPrefix + reason,
		Data:      data,
		Metadata:  msg.Metadata,
		Timestamp: entry.FailedAt,
	}
	if err := q.publisher.PublishMsg(ctx, out); err != nil {
		return fmt.Errorf("publish dead-letter entry: %w", err)
	}

	q.written.Add(1)
	q.logger.InfoContext(ctx, "message dead-lettered",
		logging.Subject(out.Subject),
		slog.String("reason", reason))
	return nil
}

// Written is the number of entries this instance has published.
func (q *Queue) Written() uint64 {
	if q == nil {
		return 0
	}
	return q.written.Load()
}
