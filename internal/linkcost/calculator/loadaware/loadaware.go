// Package loadaware implements the Load-Aware Calculator of spec section
// 4.6: an adaptive calculator that shifts the RTT-based candidate cost up
// (never down past the original cost) based on RTT trend, load, and
// stability, tracked via its own bounded per-neighbor RTT history rather
// than the store's.
package loadaware

import (
	"math"

	"github.com/ndn-routing/linkcost/internal/linkcost/ports"
)

// DefaultHistoryCapacity bounds the calculator's own trend-awareness window.
const DefaultHistoryCapacity = 5

// Weights are the default component weights. They need not sum to 1 (the
// formula is `1 + w_r·r + w_l·l + w_s·s`, not a convex combination).
type Weights struct {
	RTT       float64
	Load      float64
	Stability float64
}

// DefaultWeights returns the spec-mandated defaults (0.3/0.4/0.3).
func DefaultWeights() Weights {
	return Weights{RTT: 0.3, Load: 0.4, Stability: 0.3}
}

// Calculator implements ports.Calculator.
type Calculator struct {
	weights Weights
	history map[string][]float64
	cap     int
}

// New constructs a Calculator with DefaultWeights.
func New() *Calculator {
	return &Calculator{
		weights: DefaultWeights(),
		history: make(map[string][]float64),
		cap:     DefaultHistoryCapacity,
	}
}

// WithWeights overrides the component weights.
func (c *Calculator) WithWeights(w Weights) *Calculator {
	c.weights = w
	return c
}

// Adjust implements ports.Calculator: candidate is shifted up by a weighted
// combination of RTT trend, load, and stability, clamped to never go below
// the neighbor's original configured cost.
func (c *Calculator) Adjust(neighbor string, candidate float64, snap ports.NeighborSnapshot) (float64, error) {
	hist := c.recordAndTrim(neighbor, snap)

	r := rttComponent(hist)
	l := loadComponent(snap)
	s := stabilityComponent(hist)

	adjusted := candidate * (1 + c.weights.RTT*r + c.weights.Load*l + c.weights.Stability*s)
	if adjusted < float64(snap.OriginalCost) {
		adjusted = float64(snap.OriginalCost)
	}
	return adjusted, nil
}

func (c *Calculator) recordAndTrim(neighbor string, snap ports.NeighborSnapshot) []float64 {
	var latest float64
	if n := len(snap.RTTSamplesMS); n > 0 {
		latest = float64(snap.RTTSamplesMS[n-1])
	}
	h := append(c.history[neighbor], latest)
	if len(h) > c.cap {
		h = h[len(h)-c.cap:]
	}
	c.history[neighbor] = h
	return h
}

// rttComponent is in [0,1]: how far the most recent sample sits above a
// reference 100ms RTT, saturating at 1.
func rttComponent(hist []float64) float64 {
	if len(hist) == 0 {
		return 0
	}
	latest := hist[len(hist)-1]
	v := latest / 100
	return clamp01(v)
}

// loadComponent is in [0,1]: derived from the configured utilization, or 0
// when no external load metric has been set.
func loadComponent(snap ports.NeighborSnapshot) float64 {
	if snap.Utilization == nil {
		return 0
	}
	return clamp01(*snap.Utilization)
}

// stabilityComponent is in [0,1]: the coefficient of variation over the
// calculator's own history window, saturating at 1.
func stabilityComponent(hist []float64) float64 {
	if len(hist) < 2 {
		return 0
	}
	var sum float64
	for _, v := range hist {
		sum += v
	}
	mean := sum / float64(len(hist))
	if mean == 0 {
		return 0
	}
	var sumSq float64
	for _, v := range hist {
		d := v - mean
		sumSq += d * d
	}
	stddev := math.Sqrt(sumSq / float64(len(hist)))
	return clamp01(stddev / mean)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
