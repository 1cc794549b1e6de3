package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/telhawk-systems/telhawk-sentinel/common/httputil"
	"github.com/telhawk-systems/telhawk-sentinel/common/logging"
	"github.com/telhawk-systems/telhawk-sentinel/common/messaging"
	"github.com/telhawk-systems/telhawk-sentinel/common/models"
	"github.com/telhawk-systems/telhawk-sentinel/ingest/internal/hoststats"
	"github.com/telhawk-systems/telhawk-sentinel/ingest/internal/metrics"
	"github.com/telhawk-systems/telhawk-sentinel/ingest/internal/ratelimit"
	"github.com/telhawk-systems/telhawk-sentinel/ingest/internal/service"
)

// IngestService is the behaviour the handler needs from the service layer.
type IngestService interface {
	Ingest(ctx context.Context, ev models.SecurityEvent) error
	Ready(ctx context.Context) messaging.HealthStatus
}

// HostRecorder counts accepted events per host.
type HostRecorder interface {
	Record(hostname, remoteIP string)
}

// HostStatsReader reads per-host statistics.
type HostStatsReader interface {
	Get(ctx context.Context, hostname string) (*hoststats.Stats, error)
	ActiveHosts(ctx context.Context, since time.Duration) ([]string, error)
}

type IngestHandler struct {
	service     IngestService
	rateLimiter ratelimit.RateLimiter
	maxBody     int64
	recorder    HostRecorder
	hostStats   HostStatsReader
	logger      *slog.Logger
}

// NewIngestHandler creates the handler. rateLimiter may be nil.
func NewIngestHandler(svc IngestService, rateLimiter ratelimit.RateLimiter, maxBody int64, logger *slog.Logger) *IngestHandler {
	if rateLimiter == nil {
		rateLimiter = &ratelimit.NoOpRateLimiter{}
	}
	if maxBody <= 0 {
		maxBody = httputil.DefaultMaxBodyBytes
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestHandler{service: svc, rateLimiter: rateLimiter, maxBody: maxBody, logger: logger}
}

// WithHostStats enables per-host statistics.
func (h *IngestHandler) WithHostStats(recorder HostRecorder, reader HostStatsReader) *IngestHandler {
	h.recorder = recorder
	h.hostStats = reader
	return h
}

// Ingest handles POST /ingest.
func (h *IngestHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := http.StatusOK
	defer func() {
		metrics.RequestDuration.WithLabelValues("/ingest", strconv.Itoa(status)).Observe(time.Since(start).Seconds())
	}()
	fail := func(code int, msg string) {
		status = code
		metrics.EventsTotal.WithLabelValues("rejected").Inc()
		httputil.WriteError(w, code, msg)
	}

	if r.Method != http.MethodPost {
		fail(http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var ev models.SecurityEvent
	if err := httputil.DecodeJSON(w, r, &ev, h.maxBody); err != nil {
		fail(http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if r.ContentLength > 0 {
		metrics.EventBytesTotal.Add(float64(r.ContentLength))
	}

	if err := ev.Validate(); err != nil {
		fail(http.StatusBadRequest, err.Error())
		return
	}

	allowed, err := h.rateLimiter.Allow(r.Context(), ev.Hostname)
	if err != nil {
		// Fail open when Redis is unreachable.
		h.logger.WarnContext(r.Context(), "rate limiter unavailable", logging.Error(err))
	} else if !allowed {
		fail(http.StatusTooManyRequests, "rate limit exceeded for host "+ev.Hostname)
		return
	}

	if err := h.service.Ingest(r.Context(), ev); err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidEvent):
			fail(http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrQueueUnavailable):
			h.logger.ErrorContext(r.Context(), "event queue unavailable", logging.Error(err))
			fail(http.StatusServiceUnavailable, service.ErrQueueUnavailable.Error())
		default:
			fail(http.StatusInternalServerError, err.Error())
		}
		return
	}

	metrics.EventsTotal.WithLabelValues("accepted").Inc()
	if h.recorder != nil {
		h.recorder.Record(ev.Hostname, remoteIP(r))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "event received"})
}

// Health handles GET /health.
func (h *IngestHandler) Health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "UP"})
}

// Ready handles GET /ready, reporting broker reachability.
func (h *IngestHandler) Ready(w http.ResponseWriter, r *http.Request) {
	status := h.service.Ready(r.Context())
	code := http.StatusOK
	state := "ready"
	if !status.Connected || status.Error != "" {
		code = http.StatusServiceUnavailable
		state = "not ready"
	}
	httputil.WriteJSON(w, code, map[string]any{
		"status": state,
		"queue":  status,
	})
}

// Hosts handles GET /hosts, listing hosts seen in the last 24 hours.
func (h *IngestHandler) Hosts(w http.ResponseWriter, r *http.Request) {
	if h.hostStats == nil {
		httputil.WriteError(w, http.StatusNotFound, "host statistics are not enabled")
		return
	}
	hosts, err := h.hostStats.ActiveHosts(r.Context(), 24*time.Hour)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list hosts", logging.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "failed to list hosts")
		return
	}
	if hosts == nil {
		hosts = []string{}
	}
	sort.Strings(hosts)
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"hosts": hosts})
}

// HostStats handles GET /hosts/{hostname}.
func (h *IngestHandler) HostStats(w http.ResponseWriter, r *http.Request) {
	if h.hostStats == nil {
		httputil.WriteError(w, http.StatusNotFound, "host statistics are not enabled")
		return
	}
	hostname := r.PathValue("hostname")
	stats, err := h.hostStats.Get(r.Context(), hostname)
	switch {
	case errors.Is(err, hoststats.ErrUnknownHost):
		httputil.WriteError(w, http.StatusNotFound, err.Error())
	case err != nil:
		h.logger.ErrorContext(r.Context(), "failed to read host stats", logging.Hostname(hostname), logging.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "failed to read host statistics")
	default:
		httputil.WriteJSON(w, http.StatusOK, stats)
	}
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
