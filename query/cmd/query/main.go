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
	"time"

	"github.com/telhawk-systems/telhawk-sentinel/common/eventstore"
	"github.com/telhawk-systems/telhawk-sentinel/common/logging"
	"github.com/telhawk-systems/telhawk-sentinel/query/internal/config"
	"github.com/telhawk-systems/telhawk-sentinel/query/internal/handlers"
	"github.com/telhawk-systems/telhawk-sentinel/query/internal/server"
	"github.com/telhawk-systems/telhawk-sentinel/query/internal/service"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	addr := flag.String("addr", "", "override listen address")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := logging.New(
		logging.ParseLevel(cfg.Logging.Level),
		cfg.Logging.Format,
	).With(logging.Service("query"))
	logging.SetDefault(logger)

	listenAddr := cfg.Server.Addr()
	if *addr != "" {
		listenAddr = *addr
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := eventstore.NewDependency(cfg.Store, cfg.Reconnect, logger.Logger)
	if err := store.Connect(shutdownCtx); err != nil {
		slog.Warn("Event store unavailable at startup, will retry per request",
			slog.String("backend", cfg.Store.Backend), logging.Error(err))
	} else {
		slog.Info("Connected to event store", slog.String("backend", cfg.Store.Backend))
	}
	defer store.Close()

	svc := service.NewQueryService(store, logger.Logger)
	h := handlers.New(svc, logger.Logger)

	srv := &http.Server{
		Addr:         listenAddr,
		Handler:      server.NewRouter(h, cfg.CORS.AllowedOrigins, logger.Logger),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		slog.Info("Query service listening", slog.String("addr", listenAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server error", logging.Error(err))
			os.Exit(1)
		}
	}()

	<-shutdownCtx.Done()
	slog.Info("Shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Graceful shutdown failed", logging.Error(err))
	}
}
