// Package metrics registers the engine's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TripRequests counts admission outcomes by result
	// (matched, searching, rejected, disabled).
	TripRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dispatch",
		Name:      "trip_requests_total",
		Help:      "Trip requests by admission outcome",
	}, []string{"outcome"})

	// ClaimRaces counts driver claims lost to a concurrent writer.
	ClaimRaces = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dispatch",
		Name:      "claim_races_total",
		Help:      "Driver claims lost to a concurrent claim",
	})

	// TripTransitions counts state-machine transitions by target status.
	TripTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dispatch",
		Name:      "trip_transitions_total",
		Help:      "Trip state transitions by target status",
	}, []string{"status"})

	// SweepExpirations counts documents expired by the sweeper, by kind
	// (search_timeout, offer_expired, driver_no_show).
	SweepExpirations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dispatch",
		Name:      "sweep_expirations_total",
		Help:      "Documents expired by the timeout sweeper",
	}, []string{"kind"})

	// SweepErrors counts per-document sweep failures (logged and skipped).
	SweepErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dispatch",
		Name:      "sweep_errors_total",
		Help:      "Per-document sweep failures",
	})

	// SweepDuration observes full-sweep wall time.
	SweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "dispatch",
		Name:      "sweep_duration_seconds",
		Help:      "Duration of a full sweeper pass",
		Buckets:   prometheus.DefBuckets,
	})

	// MatchingDuration observes time from admission to match decision.
	MatchingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "dispatch",
		Name:      "matching_duration_seconds",
		Help:      "Duration of the driver matching phase",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
	})

	// PaymentsConfirmed counts confirmed cash payments.
	PaymentsConfirmed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dispatch",
		Name:      "payments_confirmed_total",
		Help:      "Cash payments confirmed by drivers",
	})
)
