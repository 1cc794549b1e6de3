// Package consumer moves security events from the durable queue into the
// event store.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/telhawk-systems/telhawk-sentinel/common/database"
	"github.com/telhawk-systems/telhawk-sentinel/common/eventstore"
	"github.com/telhawk-systems/telhawk-sentinel/common/httputil"
	"github.com/telhawk-systems/telhawk-sentinel/common/logging"
	"github.com/telhawk-systems/telhawk-sentinel/common/messaging"
	"github.com/telhawk-systems/telhawk-sentinel/common/models"
	"github.com/telhawk-systems/telhawk-sentinel/common/reconnect"
	"github.com/telhawk-systems/telhawk-sentinel/consumer/internal/deadletter"
	"github.com/telhawk-systems/telhawk-sentinel/consumer/internal/metrics"
)

// DeadLetter parks messages that can never be stored.
type DeadLetter interface {
	Write(ctx context.Context, msg *messaging.Message, reason string, cause error) error
}

// Handler stores each delivered event. Unparsable messages are
// dead-lettered (when a DeadLetter is set) and terminated; store failures
// are returned so the broker redelivers.
type Handler struct {
	source     messaging.Consumer
	store      *reconnect.Dependency[eventstore.Store]
	deadLetter DeadLetter
	stop       func()
	logger     *slog.Logger
}

// NewHandler creates the handler. deadLetter may be nil.
func NewHandler(source messaging.Consumer, store *reconnect.Dependency[eventstore.Store], deadLetter DeadLetter, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		source:     source,
		store:      store,
		deadLetter: deadLetter,
		logger:     logger.With(slog.String("component", "storage-consumer")),
	}
}

// Start begins consuming. It returns once the subscription is active.
func (h *Handler) Start(ctx context.Context) error {
	stop, err := h.source.Consume(ctx, h.Handle)
	if err != nil {
		return fmt.Errorf("failed to start consumer: %w", err)
	}
	h.stop = stop
	h.logger.Info("Storage consumer started")
	return nil
}

// Stop ends consumption. In-flight messages that are not acked are
// redelivered later.
func (h *Handler) Stop() {
	if h.stop != nil {
		h.stop()
		h.stop = nil
	}
	h.logger.Info("Storage consumer stopped")
}

// Health reports liveness and, when the dead-letter queue counts its
// writes, how many messages this instance has parked.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{"status": "UP"}
	if c, ok := h.deadLetter.(interface{ Written() uint64 }); ok {
		status["dead_lettered"] = c.Written()
	}
	httputil.WriteJSON(w, http.StatusOK, status)
}

// Handle decodes one message and inserts it into the store.
func (h *Handler) Handle(ctx context.Context, msg *messaging.Message) error {
	var ev models.SecurityEvent
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		return h.poison(ctx, msg, deadletter.ReasonDecode, fmt.Errorf("decode event: %w", err))
	}
	if err := ev.Validate(); err != nil {
		return h.poison(ctx, msg, deadletter.ReasonInvalidEvent, err)
	}
	stored, err := ev.Stored()
	if err != nil {
		return h.poison(ctx, msg, deadletter.ReasonInvalidEvent, err)
	}

	store, err := h.store.Get(ctx)
	if err != nil {
		metrics.MessagesTotal.WithLabelValues("store_unavailable").Inc()
		h.logger.WarnContext(ctx, "event store unavailable, message will be redelivered", logging.Error(err))
		return err
	}

	wctx, cancel := database.WriteContext(ctx)
	defer cancel()
	start := time.Now()
	err = store.Insert(wctx, stored)
	metrics.InsertDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.MessagesTotal.WithLabelValues("insert_failed").Inc()
		h.logger.WarnContext(ctx, "failed to insert event", logging.Hostname(stored.Hostname), logging.Error(err))
		return fmt.Errorf("insert event: %w", err)
	}

	metrics.MessagesTotal.WithLabelValues("stored").Inc()
	h.logger.DebugContext(ctx, "event stored",
		logging.Hostname(stored.Hostname),
		logging.EventType(stored.EventType))
	return nil
}

func (h *Handler) poison(ctx context.Context, msg *messaging.Message, reason string, err error) error {
	if h.deadLetter != nil {
		if dlErr := h.deadLetter.Write(ctx, msg, reason, err); dlErr != nil {
			// Keep the message on the main stream until it can be parked.
			h.logger.WarnContext(ctx, "failed to dead-letter message", logging.Error(dlErr))
			return dlErr
		}
	}
	metrics.MessagesTotal.WithLabelValues("dropped").Inc()
	h.logger.ErrorContext(ctx, "dropping unprocessable message",
		logging.Subject(msg.Subject),
		slog.Int("bytes", len(msg.Data)),
		logging.Error(err))
	if errors.Is(err, messaging.ErrPoison) {
		return err
	}
	return fmt.Errorf("%w: %w", messaging.ErrPoison, err)
}
