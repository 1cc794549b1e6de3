// Package reconnect wraps an external client handle (broker, database) so
// that every service applies the same reconnect-with-backoff policy when
// the handle is missing or unhealthy.
package reconnect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrUnavailable is wrapped by Get when no healthy handle could be obtained.
var ErrUnavailable = errors.New("dependency unavailable")

// Policy controls reconnect attempts made by a single Get call.
type Policy struct {
	// MaxAttempts is the number of dial attempts per Get (minimum 1).
	MaxAttempts int `mapstructure:"max_attempts"`

	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`

	// AttemptTimeout bounds each dial and each health check.
	AttemptTimeout time.Duration `mapstructure:"attempt_timeout"`

	// RetireGrace delays closing a replaced handle so callers that already
	// hold it can finish. Zero closes it immediately.
	RetireGrace time.Duration `mapstructure:"retire_grace"`
}

// DefaultPolicy makes one reconnect attempt per request.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     1,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		AttemptTimeout:  5 * time.Second,
		RetireGrace:     15 * time.Second,
	}
}

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		eb.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		eb.MaxInterval = p.MaxInterval
	}
	eb.MaxElapsedTime = 0
	eb.Reset()

	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return backoff.WithContext(backoff.WithMaxRetries(eb, uint64(attempts-1)), ctx)
}

// Dialer opens a new handle.
type Dialer[T any] func(ctx context.Context) (T, error)

// Checker reports whether an open handle is still usable.
type Checker[T any] func(ctx context.Context, conn T) error

// Closer releases a handle that is being replaced.
type Closer[T any] func(conn T)

// Dependency owns one handle of type T. It is safe for concurrent use;
// reconnects are serialised and a handle replaced by one caller is reused
// by callers that observed the same failure. A replaced handle is closed
// after Policy.RetireGrace, not while other callers may still be using it.
type Dependency[T any] struct {
	name   string
	dial   Dialer[T]
	check  Checker[T]
	close  Closer[T]
	policy Policy
	logger *slog.Logger

	mu      sync.Mutex
	conn    T
	ok      bool
	gen     uint64
	lastErr error
	retired []*retiredHandle[T]
}

type retiredHandle[T any] struct {
	conn  T
	timer *time.Timer
}

// New creates a Dependency. check and close may be nil.
func New[T any](name string, dial Dialer[T], check Checker[T], close Closer[T], policy Policy, logger *slog.Logger) *Dependency[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dependency[T]{
		name:   name,
		dial:   dial,
		check:  check,
		close:  close,
		policy: policy,
		logger: logger.With(slog.String("dependency", name)),
	}
}

// Connect makes the startup connection attempt. A failure leaves the
// dependency degraded; later Get calls retry.
func (d *Dependency[T]) Connect(ctx context.Context) error {
	_, err := d.reconnect(ctx, 0)
	return err
}

// Get returns a healthy handle, reconnecting according to the policy when
// the current handle is missing or fails its health check.
func (d *Dependency[T]) Get(ctx context.Context) (T, error) {
	d.mu.Lock()
	conn, ok, gen := d.conn, d.ok, d.gen
	d.mu.Unlock()

	if ok {
		err := d.runCheck(ctx, conn)
		if err == nil {
			return conn, nil
		}
		d.logger.Warn("dependency health check failed, reconnecting", slog.String("error", err.Error()))
	}
	return d.reconnect(ctx, gen)
}

// peek returns the current handle without checking or reconnecting.
func (d *Dependency[T]) peek() (T, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conn, d.ok
}

// lastError returns the error of the most recent failed connection attempt,
// or nil after a success.
func (d *Dependency[T]) lastError() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastErr
}

// Close releases the current handle and any retired ones still waiting
// out their grace period.
func (d *Dependency[T]) Close() {
	d.mu.Lock()
	d.drop()
	retired := d.retired
	d.retired = nil
	d.mu.Unlock()

	for _, r := range retired {
		r.timer.Stop()
		d.close(r.conn)
	}
}

func (d *Dependency[T]) runCheck(ctx context.Context, conn T) error {
	if d.check == nil {
		return nil
	}
	if d.policy.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.policy.AttemptTimeout)
		defer cancel()
	}
	return d.check(ctx, conn)
}

func (d *Dependency[T]) drop() {
	if !d.ok {
		return
	}
	if d.close != nil {
		d.close(d.conn)
	}
	var zero T
	d.conn = zero
	d.ok = false
}

// retire takes the current handle out of service. Callers must hold d.mu.
func (d *Dependency[T]) retire() {
	if !d.ok {
		return
	}
	if d.close == nil || d.policy.RetireGrace <= 0 {
		d.drop()
		return
	}
	r := &retiredHandle[T]{conn: d.conn}
	d.retired = append(d.retired, r)
	r.timer = time.AfterFunc(d.policy.RetireGrace, func() { d.closeRetired(r) })

	var zero T
	d.conn = zero
	d.ok = false
}

func (d *Dependency[T]) closeRetired(r *retiredHandle[T]) {
	d.mu.Lock()
	found := false
	for i, h := range d.retired {
		if h == r {
			d.retired = append(d.retired[:i], d.retired[i+1:]...)
			found = true
			break
		}
	}
	d.mu.Unlock()

	// Close may already have taken it.
	if found {
		d.close(r.conn)
	}
}

func (d *Dependency[T]) reconnect(ctx context.Context, seen uint64) (T, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.ok && d.gen != seen {
		return d.conn, nil
	}
	d.retire()

	attempt := 0
	conn, err := backoff.RetryWithData(func() (T, error) {
		attempt++
		dialCtx := ctx
		if d.policy.AttemptTimeout > 0 {
			var cancel context.CancelFunc
			dialCtx, cancel = context.WithTimeout(ctx, d.policy.AttemptTimeout)
			defer cancel()
		}
		c, err := d.dial(dialCtx)
		if err != nil {
			d.logger.Warn("dependency connection attempt failed",
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()),
			)
		}
		return c, err
	}, d.policy.backOff(ctx))
	if err != nil {
		d.lastErr = err
		var zero T
		return zero, fmt.Errorf("%w: %s: %v", ErrUnavailable, d.name, err)
	}

	d.conn = conn
	d.ok = true
	d.gen++
	d.lastErr = nil
	d.logger.Info("dependency connected", slog.Int("attempts", attempt))
	return conn, nil
}
