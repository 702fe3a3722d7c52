// Package metrics exposes Prometheus metrics for the reputation engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Votes ──────────────────────────────────────────────────────────────────

// VotesCast counts vote operations by outcome (created, removed, changed).
var VotesCast = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "reputation",
	Name:      "votes_cast_total",
	Help:      "Vote operations by outcome.",
}, []string{"action", "target_type"})

// ─── Points ─────────────────────────────────────────────────────────────────

// PointsAwarded sums applied point deltas by reason. Reclaims are counted
// separately since counters cannot go down.
var PointsAwarded = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "reputation",
	Name:      "points_awarded_total",
	Help:      "Points granted, by reason.",
}, []string{"reason"})

var PointsReclaimed = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "reputation",
	Name:      "points_reclaimed_total",
	Help:      "Points taken back, by reason.",
}, []string{"reason"})

// BadgesEarned counts badge unlocks by badge id.
var BadgesEarned = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "reputation",
	Name:      "badges_earned_total",
	Help:      "Badges unlocked.",
}, []string{"badge"})

// ─── Store ──────────────────────────────────────────────────────────────────

// CASConflicts counts lost compare-and-set attempts by record kind.
var CASConflicts = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "reputation",
	Name:      "cas_conflicts_total",
	Help:      "Compare-and-set attempts that lost a race.",
}, []string{"record"})

// SecondaryFailures counts suppressed best-effort failures by effect.
var SecondaryFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "reputation",
	Name:      "secondary_failures_total",
	Help:      "Best-effort side effects that failed and were suppressed.",
}, []string{"effect"})

// LeaderboardLatency tracks TopN duration in seconds.
var LeaderboardLatency = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "reputation",
	Name:      "leaderboard_latency_seconds",
	Help:      "Leaderboard query and join duration.",
	Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
})
