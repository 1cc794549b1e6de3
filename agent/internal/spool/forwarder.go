package spool

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/telhawk-systems/telhawk-sentinel/agent/internal/metrics"
	"github.com/telhawk-systems/telhawk-sentinel/common/logging"
	"github.com/telhawk-systems/telhawk-sentinel/common/models"
)

// Transmitter delivers one event.
type Transmitter interface {
	Transmit(ctx context.Context, ev models.SecurityEvent) error
}

// RetryConfig controls redelivery of retryable failures.
type RetryConfig struct {
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	// MaxElapsedTime bounds the retries for one event; 0 retries until shutdown.
	MaxElapsedTime time.Duration `mapstructure:"max_elapsed_time"`
}

// DefaultRetryConfig returns the forwarder defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     30 * time.Second,
		MaxElapsedTime:  5 * time.Minute,
	}
}

// retryable is implemented by errors that know whether a retry can help.
// Errors without it are treated as transport failures and retried.
type retryable interface {
	Retryable() bool
}

// IsRetryable reports whether err is worth retrying.
func IsRetryable(err error) bool {
	var r retryable
	if errors.As(err, &r) {
		return r.Retryable()
	}
	return true
}

// Forwarder drains a spool in order through a Transmitter. Run it in a
// single goroutine so transmission order equals spool order.
type Forwarder struct {
	spool  *Spool
	tx     Transmitter
	retry  RetryConfig
	logger *slog.Logger
}

// NewForwarder creates a forwarder.
func NewForwarder(s *Spool, tx Transmitter, retry RetryConfig, logger *slog.Logger) *Forwarder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Forwarder{spool: s, tx: tx, retry: retry, logger: logger}
}

// Run forwards events until ctx is cancelled or the spool is closed and empty.
func (f *Forwarder) Run(ctx context.Context) error {
	for {
		ev, err := f.spool.Pop(ctx)
		if err != nil {
			if errors.Is(err, ErrClosed) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		f.deliver(ctx, ev)
	}
}

func (f *Forwarder) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = f.retry.InitialInterval
	b.MaxInterval = f.retry.MaxInterval
	b.MaxElapsedTime = f.retry.MaxElapsedTime
	return backoff.WithContext(b, ctx)
}

// deliver sends ev, retrying retryable failures. It reports whether ev was
// accepted by the backend.
func (f *Forwarder) deliver(ctx context.Context, ev models.SecurityEvent) bool {
	op := func() error {
		start := time.Now()
		err := f.tx.Transmit(ctx, ev)
		metrics.TransmitDuration.Observe(time.Since(start).Seconds())
		if err == nil {
			metrics.TransmitTotal.WithLabelValues("success").Inc()
			return nil
		}
		if !IsRetryable(err) {
			metrics.TransmitTotal.WithLabelValues("rejected").Inc()
			return backoff.Permanent(err)
		}
		metrics.TransmitTotal.WithLabelValues("retry").Inc()
		return err
	}
	notify := func(err error, wait time.Duration) {
		f.logger.Warn("event transmission failed, retrying",
			logging.Error(err), logging.EventType(ev.EventType), slog.Duration("retry_in", wait))
	}

	err := backoff.RetryNotify(op, f.backOff(ctx), notify)
	if err == nil {
		return true
	}

	reason := "retries_exhausted"
	switch {
	case ctx.Err() != nil:
		reason = "shutdown"
	case !IsRetryable(err):
		reason = "rejected"
	}
	metrics.EventsDropped.WithLabelValues(reason).Inc()
	f.logger.Error("dropping event",
		slog.String("reason", reason),
		logging.Error(err),
		logging.Hostname(ev.Hostname),
		logging.EventType(ev.EventType))
	return false
}
