// Package metrics holds the prometheus collectors of the app
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcomes of a save that went through the upload behavior
const (
	OutcomeMoved    = "moved"
	OutcomeSkipped  = "skipped" // No new file was sent
	OutcomeRejected = "rejected"
	OutcomeInvalid  = "invalid"
	OutcomeFailed   = "failed"
)

var (
	Intakes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "proffer",
		Name:      "intakes_total",
		Help:      "Saves handled by the upload behavior, by table and outcome",
	}, []string{"table", "outcome"})

	IntakeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "proffer",
		Name:      "intake_duration_seconds",
		Help:      "Time spent moving uploads and generating thumbnails",
		Buckets:   prometheus.DefBuckets,
	}, []string{"table"})
)
