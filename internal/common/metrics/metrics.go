// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offline_cache_hits_total",
			Help: "Total number of intercepted fetches served from cache",
		},
		[]string{"destination"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offline_cache_misses_total",
			Help: "Total number of intercepted fetches that went to network",
		},
		[]string{"destination"},
	)

	CacheFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offline_cache_fallbacks_total",
			Help: "Total number of typed offline fallbacks served",
		},
		[]string{"destination"},
	)

	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "offline_queue_depth",
			Help: "Number of queued requests pending replay per tag",
		},
		[]string{"tag"},
	)

	ReplaysCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offline_replays_completed_total",
			Help: "Total number of queued requests replayed successfully",
		},
		[]string{"tag"},
	)

	ReplaysFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offline_replays_failed_total",
			Help: "Total number of replay attempts that left the record queued",
		},
		[]string{"tag"},
	)

	ReplaysDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offline_replays_dropped_total",
			Help: "Total number of queued requests dropped by the retry ceiling",
		},
		[]string{"tag", "reason"},
	)

	NotificationsStored = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "offline_notifications_stored_total",
			Help: "Total number of push notifications persisted",
		},
	)

	NotificationsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "offline_notifications_dropped_total",
			Help: "Total number of push payloads dropped as malformed",
		},
	)

	ReceiptsSynced = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "offline_read_receipts_synced_total",
			Help: "Total number of read receipts acknowledged by the server",
		},
	)

	DrainDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "offline_drain_duration_seconds",
			Help: "Duration of queue drain passes in seconds",
		},
		[]string{"tag"},
	)
)
