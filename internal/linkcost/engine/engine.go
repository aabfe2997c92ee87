// Package engine implements the Cost Engine: deriving an RTT-based
// candidate cost, gating it against change-ratio thresholds and a
// per-neighbor rebuild-rate limiter, optionally delegating to a pluggable
// adaptive calculator, and finally asking the host to rebuild the
// adjacency LSA and recalculate routes.
package engine

import (
	"log/slog"
	"math"
	"time"

	"golang.org/x/time/rate"

	"github.com/ndn-routing/linkcost/internal/linkcost/host"
	"github.com/ndn-routing/linkcost/internal/linkcost/lcerrors"
	"github.com/ndn-routing/linkcost/internal/linkcost/obs"
	"github.com/ndn-routing/linkcost/internal/linkcost/ports"
	"github.com/ndn-routing/linkcost/internal/linkcost/store"
)

// Config configures the Cost Engine. Both change-ratio gates default to
// 0.05 per spec; they are intentionally kept as two separate knobs (see
// DESIGN.md open question) rather than collapsed into one.
type Config struct {
	Logger            *slog.Logger
	EngineChangeRatio float64
	InnerChangeRatio  float64
	RebuildInterval   time.Duration
}

func (c *Config) setDefaults() {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.EngineChangeRatio <= 0 {
		c.EngineChangeRatio = 0.05
	}
	if c.InnerChangeRatio <= 0 {
		c.InnerChangeRatio = 0.05
	}
	if c.RebuildInterval <= 0 {
		c.RebuildInterval = 10 * time.Second
	}
}

// Engine is the Cost Engine. It holds no calculator of its own by default;
// one is wired in via RegisterCalculator by the calculator selector.
type Engine struct {
	cfg        Config
	store      *store.Store
	adjacency  host.AdjacencyList
	lsdb       host.LSDB
	calculator ports.Calculator
	dryRun     ports.DryRunObserver
	limiters   map[host.NeighborID]*rate.Limiter
}

// New constructs an Engine bound to store, the host adjacency list, and the
// host LSDB.
func New(cfg Config, st *store.Store, adjacency host.AdjacencyList, lsdb host.LSDB) *Engine {
	cfg.setDefaults()
	return &Engine{
		cfg:       cfg,
		store:     st,
		adjacency: adjacency,
		lsdb:      lsdb,
		limiters:  make(map[host.NeighborID]*rate.Limiter),
	}
}

// RegisterCalculator wires an adaptive calculator into the engine. At most
// one calculator is registered at a time; a second call replaces the first.
func (e *Engine) RegisterCalculator(c ports.Calculator) { e.calculator = c }

// ClearCalculator deregisters whatever calculator is currently wired in,
// per the selector's teardown contract.
func (e *Engine) ClearCalculator() { e.calculator = nil }

// SetDryRunObserver wires a dry-run observer (the calculator selector in
// HyperbolicDryRun mode) that shadows every measurement's candidate cost
// without ever mutating routing state, per spec section 11's dry-run mode.
func (e *Engine) SetDryRunObserver(o ports.DryRunObserver) { e.dryRun = o }

// ClearDryRunObserver deregisters the current dry-run observer.
func (e *Engine) ClearDryRunObserver() { e.dryRun = nil }

// notParticipating is the sentinel float returned by ComputeRTTBasedCost
// for an absent or inactive neighbor; callers should check ok instead of
// comparing against this value directly.
const notParticipating = -1

// ComputeRTTBasedCost implements spec section 4.3: the RTT-to-cost
// formula candidate = original_cost * (1 + ln(1 + avg_ms/100)), clamped by
// the configured max multiplier and rounded to an integer-valued float64.
func (e *Engine) ComputeRTTBasedCost(n host.NeighborID) (candidate float64, ok bool) {
	ls, found := e.store.Get(n)
	if !found || ls.Status != store.StatusActive {
		return notParticipating, false
	}
	snap, _ := e.store.Snapshot(n)
	if len(snap.RTTSamplesMS) == 0 {
		return float64(ls.OriginalCost), true
	}
	var sumMS float64
	for _, ms := range snap.RTTSamplesMS {
		sumMS += float64(ms)
	}
	avgMS := sumMS / float64(len(snap.RTTSamplesMS))
	factor := math.Log(1 + avgMS/100)
	candidate = float64(ls.OriginalCost) * (1 + factor)
	ceiling := float64(ls.OriginalCost) * e.store.MaxMultiplier()
	if candidate > ceiling {
		candidate = ceiling
	}
	return math.Round(candidate), true
}

// ShouldUpdate is the engine-level change-ratio gate of spec section 4.3.
func (e *Engine) ShouldUpdate(n host.NeighborID, candidate float64) bool {
	ls, ok := e.store.Get(n)
	if !ok || ls.CurrentCost == 0 {
		return false
	}
	ratio := math.Abs(candidate-ls.CurrentCost) / ls.CurrentCost
	return ratio >= e.cfg.EngineChangeRatio
}

func (e *Engine) limiterFor(n host.NeighborID) *rate.Limiter {
	l, ok := e.limiters[n]
	if !ok {
		l = rate.NewLimiter(rate.Every(e.cfg.RebuildInterval), 1)
		e.limiters[n] = l
	}
	return l
}

// ApplyCostUpdate implements spec section 4.3 end to end: calculator
// delegation, the second (inner) change-ratio gate, the per-neighbor
// rebuild-rate limiter, and finally the conditional LSA rebuild request.
func (e *Engine) ApplyCostUpdate(n host.NeighborID, candidate float64) error {
	ls, ok := e.store.Get(n)
	if !ok {
		return lcerrors.ErrNotFound
	}

	final := candidate
	if e.calculator != nil {
		snap, _ := e.store.Snapshot(n)
		adjusted, err := e.calculator.Adjust(n.String(), candidate, snap)
		if err != nil {
			// Recoverable: swallowed, proceed with the RTT-only candidate.
			e.cfg.Logger.Debug("calculator adjust failed, falling back to rtt-only candidate",
				"neighbor", n, "error", lcerrors.NewRecoverable(err))
		} else {
			final = adjusted
			obs.CalculatorOutput.WithLabelValues(n.String(), "adaptive").Set(final)
		}
	}

	// Clamp to the invariant bounds regardless of calculator output.
	ceiling := float64(ls.OriginalCost) * e.store.MaxMultiplier()
	if final < float64(ls.OriginalCost) {
		final = float64(ls.OriginalCost)
	}
	if final > ceiling {
		final = ceiling
	}

	// Second (inner) change-ratio gate.
	if ls.CurrentCost != 0 {
		ratio := math.Abs(final-ls.CurrentCost) / ls.CurrentCost
		if ratio < e.cfg.InnerChangeRatio {
			return nil
		}
	}

	allowed := e.limiterFor(n).Allow()
	ls.CurrentCost = final
	obs.CurrentCost.WithLabelValues(n.String()).Set(final)
	e.adjacency.SetLinkCost(n, uint64(math.Round(final)))

	if !allowed {
		obs.RecordRebuild(n.String(), true)
		return nil
	}

	ls.LastRebuildTrigger = time.Now()
	obs.RecordRebuild(n.String(), false)

	if ls.TimeoutCount == 0 {
		e.lsdb.ScheduleAdjLSABuild()
		e.lsdb.ScheduleRoutingTableCalculation()
	}
	return nil
}

// HandleMeasurement is the engine's single entry point for an accepted RTT
// measurement: it recomputes the candidate cost and, if the change-ratio
// gate passes, applies the update. It does nothing unless enoughSamples is
// true, and returns only the error from ApplyCostUpdate (nil when no update
// was applied).
func (e *Engine) HandleMeasurement(n host.NeighborID, enoughSamples bool) error {
	if !enoughSamples {
		return nil
	}
	candidate, ok := e.ComputeRTTBasedCost(n)
	if !ok {
		return nil
	}
	if e.dryRun != nil {
		snap, _ := e.store.Snapshot(n)
		if e.dryRun.ObserveDryRun(n.String(), candidate, snap) {
			// Dry-run mode: shadow the candidate, never call back into
			// ApplyCostUpdate, per spec section 11.
			return nil
		}
	}
	if !e.ShouldUpdate(n, candidate) {
		return nil
	}
	return e.ApplyCostUpdate(n, candidate)
}

// HandleTimeout logs a transient probe failure. No cost mutation happens
// here; a timed-out probe simply retries on the next scheduled interval.
func (e *Engine) HandleTimeout(n host.NeighborID, reason string) {
	e.cfg.Logger.Debug("probe timeout", "neighbor", n, "reason", reason)
}
