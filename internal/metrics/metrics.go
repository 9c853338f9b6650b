// Package metrics defines the Prometheus collectors shared across the
// application. Collectors register themselves via promauto at init time and
// are served from the /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RecordsSaved counts persisted inspection records by result status and
	// station location kind.
	RecordsSaved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trapline_inspection_records_saved_total",
			Help: "Total number of inspection records saved",
		},
		[]string{"status", "kind"},
	)

	// SessionsStarted counts scheduled -> in_progress transitions, explicit
	// and auto-start alike.
	SessionsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trapline_sessions_started_total",
			Help: "Total number of inspection sessions started",
		},
	)

	// SessionsCompleted counts in_progress -> completed transitions.
	SessionsCompleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trapline_sessions_completed_total",
			Help: "Total number of inspection sessions completed",
		},
	)

	// PhotoUploadFailures counts aborted saves caused by photo storage errors.
	PhotoUploadFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trapline_photo_upload_failures_total",
			Help: "Total number of photo uploads that failed and aborted a save",
		},
	)
)
