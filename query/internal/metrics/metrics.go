package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_query_requests_total",
			Help: "Total number of event queries",
		},
		[]string{"status"},
	)

	QueryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sentinel_query_store_duration_seconds",
			Help:    "Duration of event store queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	EventsReturned = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sentinel_query_events_returned",
			Help:    "Number of events returned per query",
			Buckets: []float64{0, 1, 5, 10, 20},
		},
	)

	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_query_store_errors_total",
			Help: "Total number of event store failures",
		},
		[]string{"reason"},
	)
)
