package resilience

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeSuccess  = "success"
	outcomeRetry    = "retry"
	outcomeFailure  = "failure"
	outcomeCanceled = "canceled"
)

var (
	// attemptsTotal counts attempts by how the bridge disposed of them.
	attemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_attempts_total",
			Help: "Total number of bridged call attempts",
		},
		[]string{"operation", "outcome"},
	)

	// failuresTotal counts normalized failures per kind.
	failuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_failures_total",
			Help: "Total number of normalized call failures",
		},
		[]string{"operation", "kind"},
	)

	callDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bridge_call_duration_seconds",
			Help:    "Bridged call duration in seconds, including retries and backoff",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
)
