package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/telhawk-systems/telhawk-sentinel/common/eventstore"
	"github.com/telhawk-systems/telhawk-sentinel/common/logging"
	"github.com/telhawk-systems/telhawk-sentinel/consumer/internal/config"
	"github.com/telhawk-systems/telhawk-sentinel/consumer/internal/consumer"
	"github.com/telhawk-systems/telhawk-sentinel/consumer/internal/deadletter"

	natsclient "github.com/telhawk-systems/telhawk-sentinel/common/messaging/nats"
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
	).With(logging.Service("consumer"))
	logging.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Consumer.Bootstrap {
		err := retry(ctx, "bootstrap event store", func() error {
			return eventstore.Bootstrap(ctx, cfg.Store, logger.Logger)
		})
		if err != nil {
			log.Fatalf("Failed to bootstrap event store: %v", err)
		}
	}

	store := eventstore.NewDependency(cfg.Store, cfg.Reconnect, logger.Logger)
	if err := store.Connect(ctx); err != nil {
		slog.Warn("Event store unavailable at startup, inserts will reconnect", logging.Error(err))
	}
	defer store.Close()

	var client *natsclient.JetStreamClient
	err = retry(ctx, "connect to event queue", func() error {
		c, err := natsclient.DialStream(ctx, natsclient.ConfigFrom(cfg.NATS), natsclient.SecurityEventsStream, logger.Logger)
		if err != nil {
			return err
		}
		client = c
		return nil
	})
	if err != nil {
		log.Fatalf("Failed to connect to event queue: %v", err)
	}
	defer client.Close()

	consumerCfg := natsclient.StorageConsumer
	if cfg.Consumer.AckWait > 0 {
		consumerCfg.AckWait = cfg.Consumer.AckWait
	}
	if cfg.Consumer.NakDelay > 0 {
		consumerCfg.NakDelay = cfg.Consumer.NakDelay
	}
	durable, err := natsclient.NewDurableConsumer(ctx, client, natsclient.SecurityEventsStream, consumerCfg)
	if err != nil {
		log.Fatalf("Failed to create durable consumer: %v", err)
	}

	var deadLetter consumer.DeadLetter
	if cfg.Consumer.DeadLetter {
		if _, err := client.EnsureStream(ctx, natsclient.DeadLetterStream); err != nil {
			log.Fatalf("Failed to create dead-letter stream: %v", err)
		}
		deadLetter = deadletter.NewQueue(client, logger.Logger)
	}

	handler := consumer.NewHandler(durable, store, deadLetter, logger.Logger)
	if err := handler.Start(ctx); err != nil {
		log.Fatalf("Failed to start consumer: %v", err)
	}
	defer handler.Stop()

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /health", handler.Health)
	metricsSrv := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		slog.Info("Metrics listening", slog.String("addr", cfg.Metrics.Addr))
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server error", logging.Error(err))
		}
	}()

	slog.Info("Storage consumer running",
		slog.String("stream", natsclient.SecurityEventsStream.Name),
		slog.String("consumer", consumerCfg.Name),
		slog.String("backend", cfg.Store.Backend))

	<-ctx.Done()
	slog.Info("Shutting down consumer...")

	// Stop pulling, then let in-flight handlers finish their ack or NAK.
	handler.Stop()
	if err := client.Drain(); err != nil {
		slog.Warn("Error draining NATS connection", logging.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)
}

// retry runs op with exponential backoff until it succeeds or ctx ends.
func retry(ctx context.Context, what string, op func() error) error {
	b := backoff.WithContext(backoff.NewExponentialBackOff(backoff.WithMaxElapsedTime(0)), ctx)
	return backoff.RetryNotify(op, b, func(err error, next time.Duration) {
		slog.Warn("Retrying "+what, slog.Duration("next", next), logging.Error(err))
	})
}
