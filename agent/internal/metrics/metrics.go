package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Tailer metrics
	RecordsScanned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sentinel_agent_records_scanned_total",
			Help: "Total number of event log records scanned",
		},
	)

	RecordsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_agent_records_skipped_total",
			Help: "Total number of records skipped by the decoder",
		},
		[]string{"reason"},
	)

	EventsDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_agent_events_detected_total",
			Help: "Total number of security events produced",
		},
		[]string{"event_type"},
	)

	PollErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sentinel_agent_poll_errors_total",
			Help: "Total number of failed log polls",
		},
	)

	PollDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sentinel_agent_poll_duration_seconds",
			Help:    "Duration of one log poll in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	Checkpoint = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sentinel_agent_checkpoint",
			Help: "Last event log record number scanned",
		},
	)

	TailerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sentinel_agent_tailer_state",
			Help: "1 for the tailer's current state, 0 otherwise",
		},
		[]string{"state"},
	)

	// Spool metrics
	SpoolDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sentinel_agent_spool_depth",
			Help: "Current number of events waiting in the spool",
		},
	)

	SpoolCapacity = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sentinel_agent_spool_capacity",
			Help: "Maximum number of events the spool holds",
		},
	)

	SpoolOverflow = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sentinel_agent_spool_overflow_total",
			Help: "Total number of events dropped because the spool was full",
		},
	)

	// Transmission metrics
	TransmitTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_agent_transmit_total",
			Help: "Total number of transmission attempts",
		},
		[]string{"result"},
	)

	TransmitDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sentinel_agent_transmit_duration_seconds",
			Help:    "Duration of event transmission in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	EventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_agent_events_dropped_total",
			Help: "Total number of events the forwarder gave up on",
		},
		[]string{"reason"},
	)
)
