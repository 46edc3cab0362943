// internal/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SyncRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "allotter_sync_runs_total",
			Help: "Total number of sheet sync runs",
		},
		[]string{"result"},
	)

	SyncRowsUpserted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "allotter_sync_rows_upserted_total",
			Help: "Total number of sheet rows upserted by sync",
		},
	)

	SyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "allotter_sync_duration_seconds",
			Help:    "Sheet sync duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 8),
		},
	)

	WriteBackTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "allotter_writeback_total",
			Help: "Write-back attempts by outcome",
		},
		[]string{"status"},
	)

	UpdatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "allotter_updates_total",
			Help: "Teacher updates by resulting status",
		},
		[]string{"status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method", "status"},
	)
)
