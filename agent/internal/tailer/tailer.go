// Package tailer polls an event log for new process-creation records and
// turns them into security events.
package tailer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/telhawk-systems/telhawk-sentinel/agent/internal/checkpoint"
	"github.com/telhawk-systems/telhawk-sentinel/agent/internal/eventlog"
	"github.com/telhawk-systems/telhawk-sentinel/agent/internal/metrics"
	"github.com/telhawk-systems/telhawk-sentinel/common/logging"
	"github.com/telhawk-systems/telhawk-sentinel/common/models"
)

// State is a phase of the poll loop.
type State string

const (
	StateStarting   State = "starting"
	StatePolling    State = "polling"
	StateIdle       State = "idle"
	StateProcessing State = "processing"
	StateBackoff    State = "backoff"
)

var allStates = []State{StateStarting, StatePolling, StateIdle, StateProcessing, StateBackoff}

// Sink receives detected events in discovery order.
type Sink interface {
	Push(ctx context.Context, ev models.SecurityEvent) error
}

// Config controls the poll loop.
type Config struct {
	Hostname     string        `mapstructure:"hostname"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	Backoff      time.Duration `mapstructure:"backoff"`
	PollTimeout  time.Duration `mapstructure:"poll_timeout"`
}

// DefaultConfig returns the tailer defaults.
func DefaultConfig() Config {
	return Config{
		PollInterval: 2 * time.Second,
		Backoff:      5 * time.Second,
		PollTimeout:  30 * time.Second,
	}
}

// Result summarises one poll.
type Result struct {
	Scanned    int
	Emitted    int
	Skipped    int
	Checkpoint uint64
}

// Tailer owns the checkpoint and the read cursor of one log.
type Tailer struct {
	cfg     Config
	source  eventlog.Source
	tracker *checkpoint.Tracker
	sink    Sink
	logger  *slog.Logger
	now     func() time.Time

	mu    sync.Mutex
	state State
}

// New creates a tailer.
func New(cfg Config, source eventlog.Source, tracker *checkpoint.Tracker, sink Sink, logger *slog.Logger) *Tailer {
	def := DefaultConfig()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = def.Backoff
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = def.PollTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	t := &Tailer{
		cfg:     cfg,
		source:  source,
		tracker: tracker,
		sink:    sink,
		logger:  logger,
		now:     time.Now,
	}
	t.setState(StateStarting)
	return t
}

// State returns the current loop state.
func (t *Tailer) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Tailer) setState(s State) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
	for _, st := range allStates {
		v := 0.0
		if st == s {
			v = 1
		}
		metrics.TailerState.WithLabelValues(string(st)).Set(v)
	}
}

// Run initializes the checkpoint and polls until ctx is cancelled. Log
// access failures are retried forever after the backoff delay.
func (t *Tailer) Run(ctx context.Context) error {
	t.setState(StateStarting)
	for {
		start, err := t.tracker.Initialize(ctx)
		if err == nil {
			metrics.Checkpoint.Set(float64(start))
			break
		}
		metrics.PollErrors.Inc()
		t.logger.Error("failed to initialize checkpoint", logging.Error(err))
		if !t.wait(ctx, StateBackoff, t.cfg.Backoff) {
			return nil
		}
		t.setState(StateStarting)
	}

	for {
		t.setState(StatePolling)
		res, err := t.Poll(ctx)
		delay := t.cfg.PollInterval
		next := StateIdle
		switch {
		case ctx.Err() != nil:
			return nil
		case err != nil:
			metrics.PollErrors.Inc()
			t.logger.Error("event log poll failed", logging.Error(err))
			delay, next = t.cfg.Backoff, StateBackoff
		case res.Scanned > 0:
			t.logger.Debug("poll complete",
				slog.Int("scanned", res.Scanned),
				slog.Int("emitted", res.Emitted),
				slog.Int("skipped", res.Skipped),
				logging.RecordNumber(res.Checkpoint))
		}
		if !t.wait(ctx, next, delay) {
			return nil
		}
	}
}

func (t *Tailer) wait(ctx context.Context, s State, d time.Duration) bool {
	t.setState(s)
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// Poll reads every record newer than the checkpoint, emits events for the
// decodable ones oldest first and advances the checkpoint to the newest
// record seen.
func (t *Tailer) Poll(ctx context.Context) (Result, error) {
	start := time.Now()
	defer func() { metrics.PollDuration.Observe(time.Since(start).Seconds()) }()

	cp := t.tracker.Current()
	records, err := t.collect(ctx, cp)
	if err != nil {
		return Result{Checkpoint: cp}, err
	}
	res := Result{Scanned: len(records), Checkpoint: cp}
	if len(records) == 0 {
		return res, nil
	}

	t.setState(StateProcessing)
	metrics.RecordsScanned.Add(float64(len(records)))

	maxSeen := cp
	for _, rec := range records {
		maxSeen = max(maxSeen, rec.RecordNumber)
		if rec.EventID != eventlog.EventIDProcessCreation {
			continue
		}
		pc, err := eventlog.DecodeProcessCreation(rec)
		if err != nil {
			res.Skipped++
			metrics.RecordsSkipped.WithLabelValues("unsupported_schema").Inc()
			t.logger.Warn("skipping record", logging.RecordNumber(rec.RecordNumber), logging.Error(err))
			continue
		}
		ev := models.NewProcessCreation(t.cfg.Hostname, pc.NewProcessName, pc.ParentProcessName, t.now())
		if err := t.sink.Push(ctx, ev); err != nil {
			return res, fmt.Errorf("queue event for record %d: %w", rec.RecordNumber, err)
		}
		res.Emitted++
		metrics.EventsDetected.WithLabelValues(ev.EventType).Inc()
	}

	if t.tracker.Advance(ctx, maxSeen) {
		metrics.Checkpoint.Set(float64(maxSeen))
	}
	res.Checkpoint = t.tracker.Current()
	return res, nil
}

// collect walks the log backwards until it reaches a record at or below
// cp, then returns the newer records oldest first.
func (t *Tailer) collect(ctx context.Context, cp uint64) ([]eventlog.Record, error) {
	pollCtx, cancel := context.WithTimeout(ctx, t.cfg.PollTimeout)
	defer cancel()

	cur, err := t.source.Backward(pollCtx)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	defer cur.Close()

	var (
		collected []eventlog.Record
		first     = true
	)
	for {
		batch, err := cur.Next(pollCtx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read event log: %w", err)
		}
		reached := false
		for _, rec := range batch {
			if first {
				first = false
				if rec.RecordNumber < cp {
					t.logger.Warn("newest record is below checkpoint, log was probably cleared",
						logging.RecordNumber(rec.RecordNumber), slog.Uint64("checkpoint", cp))
				}
			}
			if rec.RecordNumber <= cp {
				reached = true
				break
			}
			collected = append(collected, rec)
		}
		if reached {
			break
		}
	}

	slices.Reverse(collected)
	return collected, nil
}
