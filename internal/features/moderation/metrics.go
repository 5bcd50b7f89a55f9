package moderation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// sweepsTotal counts completed sweeps
	sweepsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "moderation_sweeps_total",
		Help: "Total completed moderation sweeps",
	})

	// actionsTotal counts petition transitions by action type
	actionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "moderation_actions_total",
		Help: "Petition transitions made by the sweep by action type",
	}, []string{"action"})

	// petitionFailures counts petitions the sweep could not process
	petitionFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "moderation_petition_failures_total",
		Help: "Petitions skipped because of an error during the sweep",
	})

	// sweepDuration tracks sweep wall time
	sweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "moderation_sweep_duration_seconds",
		Help:    "Moderation sweep duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.01, 4, 8), // 10ms to ~160s
	})

	// lastSweep is the unix time of the last completed sweep
	lastSweep = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "moderation_last_sweep_timestamp_seconds",
		Help: "Unix time of the last completed moderation sweep",
	})
)
