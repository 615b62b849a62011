package ledgerx

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	engineConflictRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledgerx_engine_conflict_retries_total",
			Help: "Optimistic lock conflicts that restarted a ledger operation",
		},
		[]string{"op"},
	)

	engineConflictsExhausted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledgerx_engine_conflicts_exhausted_total",
			Help: "Ledger operations that gave up after running out of attempts",
		},
		[]string{"op"},
	)

	eventPublishErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ledgerx_event_publish_errors_total",
			Help: "Movement events that could not be published",
		},
	)

	serviceRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledgerx_service_requests_total",
			Help: "Service calls by method and outcome",
		},
		[]string{"method", "outcome"},
	)

	serviceDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ledgerx_service_duration_seconds",
			Help:    "Duration of service calls",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"method"},
	)
)
