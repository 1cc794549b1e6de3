package server

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/telhawk-systems/telhawk-sentinel/common/middleware"
	"github.com/telhawk-systems/telhawk-sentinel/ingest/internal/handlers"
)

// NewRouter constructs a ServeMux with ingest API routes registered.
func NewRouter(h *handlers.IngestHandler, allowedOrigins []string, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()

	mux.HandleFunc("/ingest", h.Ingest)
	mux.HandleFunc("GET /hosts", h.Hosts)
	mux.HandleFunc("GET /hosts/{hostname}", h.HostStats)

	// Health endpoints
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /ready", h.Ready)

	// Prometheus metrics
	mux.Handle("GET /metrics", promhttp.Handler())

	var handler http.Handler = mux
	handler = middleware.AccessLog(logger)(handler)
	handler = middleware.CORS(middleware.DashboardCORS(allowedOrigins))(handler)
	return middleware.RequestID(handler)
}
