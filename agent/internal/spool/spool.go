// Package spool decouples detection from transmission with a bounded,
// ordered buffer of events.
package spool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/telhawk-systems/telhawk-sentinel/agent/internal/metrics"
	"github.com/telhawk-systems/telhawk-sentinel/common/logging"
	"github.com/telhawk-systems/telhawk-sentinel/common/models"
)

// DefaultCapacity is the default number of events the spool holds.
const DefaultCapacity = 1024

// Policy decides what Push does when the spool is full.
type Policy string

const (
	// PolicyDropOldest discards the oldest queued event to make room.
	PolicyDropOldest Policy = "drop-oldest"
	// PolicyBlock makes Push wait for room.
	PolicyBlock Policy = "block"
)

// ParsePolicy validates a configured policy name.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(s); p {
	case PolicyDropOldest, PolicyBlock:
		return p, nil
	case "":
		return PolicyDropOldest, nil
	default:
		return "", fmt.Errorf("unknown spool policy %q (supported: %s, %s)", s, PolicyDropOldest, PolicyBlock)
	}
}

// ErrClosed is returned by Push and Pop after Close.
var ErrClosed = errors.New("spool closed")

// Spool is a fixed-capacity FIFO ring of events. It is safe for concurrent
// use by any number of producers and consumers.
type Spool struct {
	mu       sync.Mutex
	buf      []models.SecurityEvent
	head     int
	size     int
	policy   Policy
	overflow uint64
	closed   bool

	notEmpty chan struct{}
	notFull  chan struct{}
	done     chan struct{}

	logger *slog.Logger
}

// New creates a spool holding up to capacity events.
func New(capacity int, policy Policy, logger *slog.Logger) *Spool {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if policy == "" {
		policy = PolicyDropOldest
	}
	if logger == nil {
		logger = slog.Default()
	}
	metrics.SpoolCapacity.Set(float64(capacity))
	return &Spool{
		buf:      make([]models.SecurityEvent, capacity),
		policy:   policy,
		notEmpty: make(chan struct{}, 1),
		notFull:  make(chan struct{}, 1),
		done:     make(chan struct{}),
		logger:   logger,
	}
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// Push appends ev. Under PolicyBlock it waits for room until ctx is done.
func (s *Spool) Push(ctx context.Context, ev models.SecurityEvent) error {
	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return ErrClosed
		}
		if s.size < len(s.buf) {
			s.buf[(s.head+s.size)%len(s.buf)] = ev
			s.size++
			if s.size < len(s.buf) {
				signal(s.notFull)
			}
			s.mu.Unlock()
			metrics.SpoolDepth.Inc()
			signal(s.notEmpty)
			return nil
		}
		if s.policy == PolicyDropOldest {
			dropped := s.buf[s.head]
			s.buf[s.head] = ev
			s.head = (s.head + 1) % len(s.buf)
			s.overflow++
			s.mu.Unlock()
			metrics.SpoolOverflow.Inc()
			s.logger.Warn("spool full, dropped oldest event",
				logging.Hostname(dropped.Hostname),
				slog.String("dropped_timestamp", dropped.Timestamp))
			signal(s.notEmpty)
			return nil
		}
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			return ErrClosed
		case <-s.notFull:
		}
	}
}

// Pop removes and returns the oldest event, waiting until one is available.
func (s *Spool) Pop(ctx context.Context) (models.SecurityEvent, error) {
	for {
		s.mu.Lock()
		if s.size > 0 {
			ev := s.buf[s.head]
			s.buf[s.head] = models.SecurityEvent{}
			s.head = (s.head + 1) % len(s.buf)
			s.size--
			if s.size > 0 {
				signal(s.notEmpty)
			}
			s.mu.Unlock()
			metrics.SpoolDepth.Dec()
			signal(s.notFull)
			return ev, nil
		}
		if s.closed {
			s.mu.Unlock()
			return models.SecurityEvent{}, ErrClosed
		}
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return models.SecurityEvent{}, ctx.Err()
		case <-s.done:
		case <-s.notEmpty:
		}
	}
}

// Len returns the number of queued events.
func (s *Spool) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

// Cap returns the spool capacity.
func (s *Spool) Cap() int { return len(s.buf) }

// Overflow returns how many events PolicyDropOldest has discarded.
func (s *Spool) Overflow() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overflow
}

// snapshot returns the queued events, oldest first, without removing them.
func (s *Spool) snapshot() []models.SecurityEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.SecurityEvent, s.size)
	for i := range out {
		out[i] = s.buf[(s.head+i)%len(s.buf)]
	}
	return out
}

// Close rejects further pushes, wakes waiters and returns the number of
// events still queued. Pop keeps draining queued events after Close.
func (s *Spool) Close() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.done)
	}
	return s.size
}
