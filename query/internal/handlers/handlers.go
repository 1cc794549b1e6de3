package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/telhawk-systems/telhawk-sentinel/common/httputil"
	"github.com/telhawk-systems/telhawk-sentinel/common/logging"
	"github.com/telhawk-systems/telhawk-sentinel/common/models"
	"github.com/telhawk-systems/telhawk-sentinel/query/internal/metrics"
	"github.com/telhawk-systems/telhawk-sentinel/query/internal/service"
)

// QueryService is what the handlers need from the service layer.
type QueryService interface {
	LatestEvents(ctx context.Context) ([]models.StoredEvent, error)
	Ready(ctx context.Context) error
}

type Handler struct {
	svc    QueryService
	logger *slog.Logger
}

func New(svc QueryService, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

// Events handles GET /events.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		metrics.RequestsTotal.WithLabelValues(strconv.Itoa(http.StatusMethodNotAllowed)).Inc()
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	events, err := h.svc.LatestEvents(r.Context())
	if err != nil {
		if errors.Is(err, service.ErrStoreConnection) {
			h.logger.ErrorContext(r.Context(), "event store unavailable", logging.Error(err))
		} else {
			h.logger.ErrorContext(r.Context(), "event query failed", logging.Error(err))
		}
		metrics.RequestsTotal.WithLabelValues(strconv.Itoa(http.StatusInternalServerError)).Inc()
		httputil.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if events == nil {
		events = []models.StoredEvent{}
	}

	metrics.RequestsTotal.WithLabelValues(strconv.Itoa(http.StatusOK)).Inc()
	httputil.WriteJSON(w, http.StatusOK, events)
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "UP"})
}

// Ready handles GET /ready.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Ready(r.Context()); err != nil {
		httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"store":  err.Error(),
		})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready", "store": "ok"})
}
