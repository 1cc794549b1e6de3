// Package checkpoint tracks the last event log record the agent has scanned.
package checkpoint

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/telhawk-systems/telhawk-sentinel/common/logging"
)

// TailFunc reports the newest record number currently in the log.
type TailFunc func(ctx context.Context) (uint64, error)

// Store persists the checkpoint between agent runs.
type Store interface {
	// Load returns the persisted value; ok is false when none exists.
	Load(ctx context.Context) (value uint64, ok bool, err error)
	Save(ctx context.Context, value uint64) error
}

// Tracker holds the checkpoint. The zero value is not usable; call New.
type Tracker struct {
	mu     sync.Mutex
	value  uint64
	tail   TailFunc
	store  Store
	logger *slog.Logger
}

// New creates a tracker. store may be nil for an in-memory checkpoint.
func New(tail TailFunc, store Store, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{tail: tail, store: store, logger: logger}
}

// Initialize sets the checkpoint to the current log tail, or to the persisted
// value when one exists and does not exceed the tail.
func (t *Tracker) Initialize(ctx context.Context) (uint64, error) {
	tail, err := t.tail(ctx)
	if err != nil {
		return 0, fmt.Errorf("read log tail: %w", err)
	}

	start := tail
	if t.store != nil {
		saved, ok, err := t.store.Load(ctx)
		switch {
		case err != nil:
			t.logger.Warn("checkpoint store unavailable, starting at log tail", logging.Error(err))
		case ok && saved <= tail:
			start = saved
		case ok:
			t.logger.Warn("persisted checkpoint is beyond log tail, log was probably cleared",
				slog.Uint64("persisted", saved), slog.Uint64("tail", tail))
		}
	}

	t.mu.Lock()
	t.value = start
	t.mu.Unlock()

	t.persist(ctx, start)
	t.logger.Info("checkpoint initialized", logging.RecordNumber(start), slog.Uint64("tail", tail))
	return start, nil
}

// Current returns the checkpoint.
func (t *Tracker) Current() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.value
}

// Advance moves the checkpoint to candidate when candidate is greater and
// reports whether it moved.
func (t *Tracker) Advance(ctx context.Context, candidate uint64) bool {
	t.mu.Lock()
	if candidate <= t.value {
		t.mu.Unlock()
		return false
	}
	t.value = candidate
	t.mu.Unlock()

	t.persist(ctx, candidate)
	return true
}

func (t *Tracker) persist(ctx context.Context, value uint64) {
	if t.store == nil {
		return
	}
	if err := t.store.Save(ctx, value); err != nil {
		t.logger.Warn("failed to persist checkpoint", logging.RecordNumber(value), logging.Error(err))
	}
}
