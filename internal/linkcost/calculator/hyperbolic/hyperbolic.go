// Package hyperbolic implements the Hyperbolic and HyperbolicDryRun
// calculator selector entries (spec section 4.9's otherwise-unexplained
// enum values, supplemented here): a deterministic calculator that scales
// the candidate cost by a tanh saturation curve of the RTT ratio against a
// reference RTT, plus a dry-run variant that records its would-be output
// without ever feeding it back to the engine.
package hyperbolic

import (
	"math"

	"github.com/ndn-routing/linkcost/internal/linkcost/obs"
	"github.com/ndn-routing/linkcost/internal/linkcost/ports"
)

// ReferenceRTTMillis is the RTT at which the saturation curve reaches
// roughly 76% of its maximum boost (tanh(1)).
const ReferenceRTTMillis = 100

// MaxBoost bounds how much the curve can scale the candidate cost up.
const MaxBoost = 1.0

// Calculator implements ports.Calculator with a tanh saturation curve.
type Calculator struct{}

// New constructs a Calculator.
func New() *Calculator { return &Calculator{} }

func saturation(avgMS float64) float64 {
	return math.Tanh(avgMS / ReferenceRTTMillis)
}

func boosted(candidate float64, snap ports.NeighborSnapshot) float64 {
	if len(snap.RTTSamplesMS) == 0 {
		return candidate
	}
	var sum float64
	for _, s := range snap.RTTSamplesMS {
		sum += float64(s)
	}
	avg := sum / float64(len(snap.RTTSamplesMS))
	return candidate * (1 + MaxBoost*saturation(avg))
}

// Adjust implements ports.Calculator.
func (c *Calculator) Adjust(neighbor string, candidate float64, snap ports.NeighborSnapshot) (float64, error) {
	return boosted(candidate, snap), nil
}

// DryRun computes the same curve but only records it to the dry-run gauge,
// for operator evaluation before switching calculators live. It has no
// Adjust method, so it is not a ports.Calculator and is never registered as
// the engine's active calculator (see selector package); the selector calls
// its Observe as a passive observer instead.
type DryRun struct{}

// NewDryRun constructs a DryRun calculator.
func NewDryRun() *DryRun { return &DryRun{} }

// Observe computes what Calculator.Adjust would have returned and records
// it to obs.DryRunCost, without influencing routing.
func (d *DryRun) Observe(neighbor string, candidate float64, snap ports.NeighborSnapshot) {
	would := boosted(candidate, snap)
	obs.DryRunCost.WithLabelValues(neighbor).Set(would)
}
