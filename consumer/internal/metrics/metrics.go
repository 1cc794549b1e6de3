package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_consumer_messages_total",
			Help: "Messages processed by the storage consumer",
		},
		[]string{"result"},
	)

	InsertDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sentinel_consumer_insert_duration_seconds",
			Help:    "Duration of event store inserts in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)
