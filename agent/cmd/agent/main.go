package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/telhawk-systems/telhawk-sentinel/agent/internal/checkpoint"
	"github.com/telhawk-systems/telhawk-sentinel/agent/internal/config"
	"github.com/telhawk-systems/telhawk-sentinel/agent/internal/eventlog"
	"github.com/telhawk-systems/telhawk-sentinel/agent/internal/spool"
	"github.com/telhawk-systems/telhawk-sentinel/agent/internal/tailer"
	"github.com/telhawk-systems/telhawk-sentinel/agent/internal/transmitter"
	"github.com/telhawk-systems/telhawk-sentinel/common/logging"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logging.New(
		logging.ParseLevel(cfg.Logging.Level),
		cfg.Logging.Format,
	).With(logging.Service("agent"))
	logging.SetDefault(logger)

	slog.Info("Starting Sentinel agent",
		logging.Hostname(cfg.Tailer.Hostname),
		slog.String("backend_url", cfg.Backend.URL),
		slog.String("eventlog_source", cfg.EventLog.Source),
		slog.String("spool_policy", cfg.Spool.Policy),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	source, err := openSource(cfg, logger.Logger)
	if err != nil {
		log.Fatalf("Failed to open event log: %v", err)
	}
	defer source.Close()

	var store checkpoint.Store
	if cfg.Checkpoint.Store == "redis" {
		key := cfg.Checkpoint.Key
		if key == "" {
			key = checkpoint.Key(cfg.Tailer.Hostname, cfg.EventLog.LogName)
		}
		redisStore, err := checkpoint.NewRedisStore(ctx, cfg.Checkpoint.RedisURL, key)
		if err != nil {
			slog.Warn("Checkpoint store unavailable, keeping checkpoint in memory", logging.Error(err))
		} else {
			defer redisStore.Close()
			store = redisStore
			slog.Info("Checkpoint persistence enabled", slog.String("key", key))
		}
	}
	tracker := checkpoint.New(source.Newest, store, logger.Logger)

	policy, _ := spool.ParsePolicy(cfg.Spool.Policy)
	sp := spool.New(cfg.Spool.Capacity, policy, logger.Logger)
	tx := transmitter.New(cfg.Backend.URL, cfg.Backend.Timeout, logger.Logger)
	fwd := spool.NewForwarder(sp, tx, cfg.Spool.Retry, logger.Logger)
	tl := tailer.New(cfg.Tailer, source, tracker, sp, logger.Logger)

	var metricsSrv *http.Server
	if cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			slog.Info("Metrics listener started", slog.String("addr", cfg.Metrics.Addr))
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("Metrics listener failed", logging.Error(err))
			}
		}()
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := fwd.Run(ctx); err != nil {
			slog.Error("Forwarder stopped", logging.Error(err))
		}
	}()
	go func() {
		defer wg.Done()
		if err := tl.Run(ctx); err != nil {
			slog.Error("Tailer stopped", logging.Error(err))
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down agent...")

	if pending := sp.Close(); pending > 0 {
		slog.Warn("Discarding spooled events", slog.Int("count", pending))
	}
	wg.Wait()

	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	slog.Info("Agent stopped", logging.RecordNumber(tracker.Current()))
}

func openSource(cfg *config.Config, logger *slog.Logger) (eventlog.Source, error) {
	if cfg.EventLog.Source == "windows" {
		return eventlog.NewWindowsSource(cfg.EventLog.Server, cfg.EventLog.LogName)
	}
	return eventlog.NewFileSource(cfg.EventLog.FilePath, cfg.EventLog.BatchSize, logger), nil
}
