// Package selector implements the Calculator Selector of spec section 4.9:
// it reads one configured adaptive mode, lazily instantiates the
// corresponding calculator on the first routing-table build after startup,
// and owns registering/deregistering it with the Cost Engine and Feedback
// Publisher for the daemon's lifetime.
package selector

import (
	"log/slog"

	"github.com/ndn-routing/linkcost/internal/linkcost/calculator/hyperbolic"
	"github.com/ndn-routing/linkcost/internal/linkcost/calculator/loadaware"
	"github.com/ndn-routing/linkcost/internal/linkcost/calculator/mladaptive"
	"github.com/ndn-routing/linkcost/internal/linkcost/ports"
)

// Mode is the configured adaptive calculator variant.
type Mode int

const (
	Standard Mode = iota
	LoadAware
	MLAdaptive
	Hyperbolic
	HyperbolicDryRun
)

func (m Mode) String() string {
	switch m {
	case LoadAware:
		return "load_aware"
	case MLAdaptive:
		return "ml_adaptive"
	case Hyperbolic:
		return "hyperbolic"
	case HyperbolicDryRun:
		return "hyperbolic_dry_run"
	default:
		return "standard"
	}
}

// CalculatorEngine is the subset of *engine.Engine the selector drives.
// Declared as an interface here (rather than importing package engine
// directly) purely to keep this package's test doubles lightweight; the
// production wiring in package subsystem passes a real *engine.Engine.
type CalculatorEngine interface {
	RegisterCalculator(ports.Calculator)
	ClearCalculator()
}

// FeedbackRegistry is the subset of *feedback.Publisher the selector drives.
type FeedbackRegistry interface {
	SetSubscriber(ports.FeedbackSubscriber)
	ClearSubscriber()
}

// Selector owns at most one active adaptive calculator at a time.
type Selector struct {
	logger   *slog.Logger
	engine   CalculatorEngine
	feedback FeedbackRegistry

	mode     Mode
	active   bool
	dryRun   *hyperbolic.DryRun
	dryRunOn bool
}

// New constructs a Selector bound to engine (the LCM) and feedback. engine
// may be nil to model "LCM absent"; any adaptive mode then falls back to
// Standard with a logged warning.
func New(logger *slog.Logger, eng CalculatorEngine, fb FeedbackRegistry) *Selector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Selector{logger: logger, engine: eng, feedback: fb, mode: Standard}
}

// Configure records the desired mode without instantiating anything yet;
// the calculator is lazily created on the next Activate call, which the
// subsystem invokes on the first routing-table build after startup.
func (s *Selector) Configure(mode Mode) {
	s.mode = mode
}

// Activate lazily instantiates and registers the calculator for the
// currently configured mode, if not already active. Idempotent.
func (s *Selector) Activate() {
	if s.active {
		return
	}
	if s.mode != Standard && s.engine == nil {
		s.logger.Warn("adaptive calculator requested but LCM is unavailable, falling back to standard",
			"requested_mode", s.mode)
		s.mode = Standard
	}

	switch s.mode {
	case LoadAware:
		s.engine.RegisterCalculator(loadaware.New())
	case MLAdaptive:
		ml := mladaptive.New()
		s.engine.RegisterCalculator(ml)
		if s.feedback != nil {
			s.feedback.SetSubscriber(ml)
		}
	case Hyperbolic:
		s.engine.RegisterCalculator(hyperbolic.New())
	case HyperbolicDryRun:
		s.dryRun = hyperbolic.NewDryRun()
		s.dryRunOn = true
		// Dry-run never registers with the engine: it only observes.
	case Standard:
		// no calculator, no probes driven by this selector
	}
	s.active = true
}

// ObserveDryRun feeds (neighbor, candidate, snapshot) into the dry-run
// calculator and reports whether it was consumed (i.e. HyperbolicDryRun is
// the active mode); the caller (the cost engine) uses that to skip
// committing the measurement to routing state at all. A no-op, returning
// false, in every other mode.
func (s *Selector) ObserveDryRun(neighbor string, candidate float64, snap ports.NeighborSnapshot) bool {
	if s.dryRunOn && s.dryRun != nil {
		s.dryRun.Observe(neighbor, candidate, snap)
		return true
	}
	return false
}

// Teardown deregisters whatever calculator is active, per spec's "on
// tear-down deregisters its callbacks".
func (s *Selector) Teardown() {
	if !s.active {
		return
	}
	if s.engine != nil {
		s.engine.ClearCalculator()
	}
	if s.feedback != nil {
		s.feedback.ClearSubscriber()
	}
	s.active = false
	s.dryRun = nil
	s.dryRunOn = false
}

// Mode returns the currently configured (post-fallback) mode.
func (s *Selector) Mode() Mode { return s.mode }
