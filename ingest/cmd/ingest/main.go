package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/telhawk-systems/telhawk-sentinel/common/logging"
	"github.com/telhawk-systems/telhawk-sentinel/ingest/internal/config"
	"github.com/telhawk-systems/telhawk-sentinel/ingest/internal/handlers"
	"github.com/telhawk-systems/telhawk-sentinel/ingest/internal/hoststats"
	"github.com/telhawk-systems/telhawk-sentinel/ingest/internal/ratelimit"
	"github.com/telhawk-systems/telhawk-sentinel/ingest/internal/server"
	"github.com/telhawk-systems/telhawk-sentinel/ingest/internal/service"

	natsclient "github.com/telhawk-systems/telhawk-sentinel/common/messaging/nats"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize structured logging
	logger := logging.New(
		logging.ParseLevel(cfg.Logging.Level),
		cfg.Logging.Format,
	).With(logging.Service("ingest"))
	logging.SetDefault(logger)

	slog.Info("Starting Ingest service",
		slog.Int("port", cfg.Server.Port),
		slog.String("nats_url", cfg.NATS.URL),
		slog.String("log_level", cfg.Logging.Level),
		slog.String("log_format", cfg.Logging.Format),
	)
	if *configPath != "" {
		slog.Info("Loaded configuration", slog.String("config_path", *configPath))
	}

	ctx := context.Background()

	// Initialize rate limiter
	var rateLimiter ratelimit.RateLimiter = &ratelimit.NoOpRateLimiter{}
	if cfg.Redis.Enabled && cfg.Ingestion.RateLimitEnabled {
		limiter, err := ratelimit.NewRedisRateLimiter(ctx,
			cfg.Redis.URL,
			cfg.Ingestion.RateLimitRequests,
			cfg.Ingestion.RateLimitWindow,
		)
		if err != nil {
			slog.Warn("Failed to initialize Redis rate limiter, continuing without rate limiting", logging.Error(err))
		} else {
			rateLimiter = limiter
			slog.Info("Rate limiting enabled",
				slog.Int("requests", cfg.Ingestion.RateLimitRequests),
				slog.Duration("window", cfg.Ingestion.RateLimitWindow))
		}
	} else {
		slog.Info("Rate limiting disabled")
	}
	defer rateLimiter.Close()

	// The broker handle starts degraded if NATS is down; requests reconnect.
	broker := natsclient.NewPublisherDependency(
		natsclient.ConfigFrom(cfg.NATS),
		natsclient.SecurityEventsStream,
		cfg.Reconnect,
		logger.Logger,
	)
	if err := broker.Connect(ctx); err != nil {
		slog.Warn("Event queue unavailable at startup, will retry per request", logging.Error(err))
	} else {
		slog.Info("Connected to event queue", slog.String("stream", natsclient.SecurityEventsStream.Name))
	}
	defer broker.Close()

	ingestService := service.NewIngestService(broker, logger.Logger)
	handler := handlers.NewIngestHandler(ingestService, rateLimiter, cfg.Ingestion.MaxEventSize, logger.Logger)

	// Per-host statistics share the rate limiter's Redis.
	if cfg.Redis.Enabled && cfg.HostStats.Enabled {
		instanceID := cfg.HostStats.InstanceID
		if instanceID == "" {
			instanceID, _ = os.Hostname()
		}
		statsClient, err := hoststats.NewClient(ctx, cfg.Redis.URL, instanceID)
		if err != nil {
			slog.Warn("Failed to initialize host statistics, continuing without them", logging.Error(err))
		} else {
			collector := hoststats.NewCollector(statsClient, cfg.HostStats.FlushInterval, logger.Logger)
			defer statsClient.Close()
			defer collector.Stop()
			handler.WithHostStats(collector, statsClient)
			slog.Info("Host statistics enabled", slog.String("instance_id", instanceID))
		}
	}
	router := server.NewRouter(handler, cfg.CORS.AllowedOrigins, logger.Logger)

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		slog.Info("Ingest service listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server error", logging.Error(err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.WriteTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", logging.Error(err))
	}

	slog.Info("Server stopped")
}
