// Package ports holds the small set of interfaces that let the cost engine,
// the pluggable calculators, and the feedback publisher reference each
// other without an import cycle. This is the Go expression of the design
// note "callback-shaped plug-in": in a language with free closures the
// calculator would just be a function value captured by the engine; here it
// is a single-method interface, registered and deregistered explicitly so
// the engine/calculator reference cycle has an explicit owner on each side.
package ports

import "time"

// NeighborSnapshot is the read-only view of link state handed to a
// calculator or to the metrics control channel. It never exposes anything
// mutable; calculators compute from it, they never write through it.
type NeighborSnapshot struct {
	Status         Status
	OriginalCost   uint64
	CurrentCost    float64
	RTTSamplesMS   []uint32 // oldest first, bounded history
	TimeoutCount   uint32
	LastSuccess    time.Time
	BandwidthMbps  *float64
	Utilization    *float64 // [0,1]
	PacketLoss     *float64 // [0,1]
	SpectrumDBM    *float64
	MetricsSetAt   time.Time
}

// Status mirrors store.NeighborStatus without importing the store package.
type Status int

const (
	StatusInactive Status = iota
	StatusActive
)

// Calculator adjusts an RTT-derived candidate cost using whatever
// additional signal it holds (load, a trained model, ...). Returning an
// error causes the engine to fall back to candidate unchanged, per
// spec's "Recoverable" error class.
type Calculator interface {
	Adjust(neighbor string, candidate float64, snap NeighborSnapshot) (float64, error)
}

// FeedbackSubscriber receives a scalar link-performance signal
// (0=best, 1=worst) after every measurement with enough history to score.
type FeedbackSubscriber interface {
	OnFeedback(neighbor string, performance float64, snap NeighborSnapshot)
}

// DryRunObserver shadows a candidate cost for diagnostic purposes only. It
// reports whether it actually consumed the observation in dry-run mode; the
// engine uses that to skip ApplyCostUpdate entirely rather than letting a
// dry-run calculator affect routing.
type DryRunObserver interface {
	ObserveDryRun(neighbor string, candidate float64, snap NeighborSnapshot) bool
}
