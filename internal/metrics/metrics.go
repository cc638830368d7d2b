// Package metrics defines the Prometheus collectors exposed on the admin
// server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SessionsActive tracks currently connected client sessions.
	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "zkverify_sessions_active",
		Help: "Number of client sessions currently being served.",
	})

	// SessionsRejected counts connections rejected at the concurrency cap.
	SessionsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "zkverify_sessions_rejected_total",
		Help: "Connections rejected because the session cap was reached.",
	})

	// ProofsTotal counts completed proving attempts by outcome
	// (success, failure, error).
	ProofsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zkverify_proofs_total",
		Help: "Completed proving attempts by outcome.",
	}, []string{"outcome"})

	// ProveDuration observes wall-clock proving pipeline duration.
	ProveDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "zkverify_prove_duration_seconds",
		Help:    "Wall-clock duration of the two-stage proving pipeline.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})
)
