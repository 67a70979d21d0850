// Package metrics defines the Prometheus collectors for the application.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "checkship"

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Current number of HTTP requests being processed",
		},
	)
)

// Inspection lifecycle metrics
var (
	InspectionsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inspections_started_total",
			Help:      "Total number of inspections started",
		},
	)

	InspectionsSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inspections_submitted_total",
			Help:      "Total number of inspections submitted",
		},
		[]string{"path"}, // "online" or "offline"
	)

	ApprovalDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "approval_decisions_total",
			Help:      "Total number of approval workflow decisions",
		},
		[]string{"result"}, // "approved", "rejected", "deferred"
	)

	DraftsSaved = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "drafts_saved_total",
			Help:      "Total number of offline drafts saved",
		},
	)
)

// Offline sync metrics
var (
	CacheRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_refreshes_total",
			Help:      "Total number of reference cache refreshes",
		},
		[]string{"status"}, // "ok" or "error"
	)

	CacheLastSync = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_last_sync_timestamp_seconds",
			Help:      "Unix timestamp of the last successful cache refresh",
		},
	)

	PendingQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_queue_depth",
			Help:      "Number of completed inspections awaiting sync",
		},
	)

	SyncAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_attempts_total",
			Help:      "Total number of pending inspection sync attempts",
		},
		[]string{"status"}, // "ok" or "error"
	)
)

// Object storage metrics
var (
	PhotoUploads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "photo_uploads_total",
			Help:      "Total number of photo evidence uploads",
		},
		[]string{"status"}, // "ok", "error", "inline_fallback"
	)
)
