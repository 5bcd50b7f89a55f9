package engagement

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// pointsAwarded counts points granted by action
	pointsAwarded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engagement_points_awarded_total",
		Help: "Total points granted by action",
	}, []string{"action"})

	// awardsDeduplicated counts referenced awards that were already applied
	awardsDeduplicated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engagement_awards_deduplicated_total",
		Help: "Repeated referenced awards ignored by action",
	}, []string{"action"})

	// levelUps counts level transitions
	levelUps = promauto.NewCounter(prometheus.CounterOpts{
		Name: "engagement_level_ups_total",
		Help: "Total level transitions",
	})

	// badgesGranted counts newly granted badges
	badgesGranted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engagement_badges_granted_total",
		Help: "Total badges granted by badge id",
	}, []string{"badge"})
)
