// Package obs holds the link cost subsystem's prometheus instrumentation.
// Collectors are registered once at package init (promauto), the same
// convention the host repository uses for its API metrics. Probe and rebuild
// counters go through the Record* helpers below; the gauges are exported and
// set directly by their call sites.
package obs

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CurrentCost = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "linkcost_current_cost",
			Help: "Current published cost for a neighbor adjacency.",
		},
		[]string{"neighbor"},
	)

	RTTProbeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "linkcost_rtt_probe_duration_seconds",
			Help:    "Measured round-trip time of accepted RTT probes.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 13), // 1ms .. ~4s
		},
		[]string{"neighbor"},
	)

	ProbesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkcost_probes_total",
			Help: "Total number of outbound RTT probes by outcome.",
		},
		[]string{"neighbor", "outcome"}, // outcome: success, nack, timeout
	)

	RebuildsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkcost_rebuilds_total",
			Help: "Total number of adjacency LSA rebuild requests triggered by cost changes.",
		},
		[]string{"neighbor"},
	)

	RebuildsRateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkcost_rebuilds_rate_limited_total",
			Help: "Total number of cost updates that were applied silently because the rebuild rate limit was in effect.",
		},
		[]string{"neighbor"},
	)

	CalculatorOutput = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "linkcost_calculator_output",
			Help: "Most recent cost produced by the active adaptive calculator, before engine gating.",
		},
		[]string{"neighbor", "calculator"},
	)

	DryRunCost = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "linkcost_dryrun_cost",
			Help: "Cost the dry-run calculator would have applied, for operator evaluation before switching calculators live.",
		},
		[]string{"neighbor"},
	)

	FeedbackScore = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "linkcost_feedback_score",
			Help: "Most recent link-performance feedback score published to the adaptive calculator (0=best, 1=worst).",
		},
		[]string{"neighbor"},
	)

	PreviewCost = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "linkcost_preview_cost",
			Help: "Multi-dimensional preview cost last computed for a neighbor (diagnostic only).",
		},
		[]string{"neighbor"},
	)

	ActiveNeighbors = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "linkcost_active_neighbors",
			Help: "Number of neighbors currently in ACTIVE status.",
		},
	)
)

// RecordProbeOutcome records the outcome of one outbound probe.
func RecordProbeOutcome(neighbor, outcome string, rtt time.Duration) {
	ProbesTotal.WithLabelValues(neighbor, outcome).Inc()
	if outcome == "success" {
		RTTProbeDuration.WithLabelValues(neighbor).Observe(rtt.Seconds())
	}
}

// RecordRebuild records whether a cost update actually triggered a rebuild
// or was applied silently due to rate limiting.
func RecordRebuild(neighbor string, rateLimited bool) {
	if rateLimited {
		RebuildsRateLimited.WithLabelValues(neighbor).Inc()
		return
	}
	RebuildsTotal.WithLabelValues(neighbor).Inc()
}
