// Package subsystem wires the Link State Store, Cost Engine, Probe
// Scheduler & Responder, Feedback Publisher, Metrics Control Channel,
// Calculator Selector, and Lifecycle State Machine into the single
// cooperative core loop described in spec section 5: one goroutine owns
// every piece of mutable state; every other goroutine (timers, the
// network face, the HTTP control listener) only ever posts a job onto the
// loop's channel and waits for it to run, never touching state directly.
// This mirrors the teacher's re-armed single-timer worker loop, generalized
// from one timer to an arbitrary job mailbox since this subsystem has many
// independent timers (one per neighbor) feeding a single owner.
package subsystem

import (
	"context"
	"log/slog"
	"time"

	"github.com/ndn-routing/linkcost/internal/linkcost/calculator/selector"
	"github.com/ndn-routing/linkcost/internal/linkcost/control"
	"github.com/ndn-routing/linkcost/internal/linkcost/engine"
	"github.com/ndn-routing/linkcost/internal/linkcost/feedback"
	"github.com/ndn-routing/linkcost/internal/linkcost/host"
	"github.com/ndn-routing/linkcost/internal/linkcost/lifecycle"
	"github.com/ndn-routing/linkcost/internal/linkcost/obs"
	"github.com/ndn-routing/linkcost/internal/linkcost/ports"
	"github.com/ndn-routing/linkcost/internal/linkcost/probe"
	"github.com/ndn-routing/linkcost/internal/linkcost/store"
)

// Config configures the Subsystem.
type Config struct {
	Logger          *slog.Logger
	Self            host.Name
	StoreConfig     store.Config
	EngineConfig    engine.Config
	ProbeConfig     probe.Config
	LifecycleConfig lifecycle.Config
	FeedbackWeights feedback.Weights
	CalculatorMode  selector.Mode
}

func (c *Config) setDefaults() {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Subsystem is the top-level assembly of every link-cost component, run
// behind one core loop goroutine.
type Subsystem struct {
	logger *slog.Logger
	face   host.Face

	store     *store.Store
	engine    *engine.Engine
	scheduler *probe.Scheduler
	responder *probe.Responder
	publisher *feedback.Publisher
	control   *control.Service
	selector  *selector.Selector
	lifecycle *lifecycle.Machine

	jobs   chan func()
	done   chan struct{}
	cancel context.CancelFunc
}

// New assembles every component. adjacency and lsdb and face are the host
// daemon's collaborators, reached only through the internal/linkcost/host
// interfaces.
func New(cfg Config, face host.Face, adjacency host.AdjacencyList, lsdb host.LSDB, signer host.Signer) *Subsystem {
	cfg.setDefaults()

	st := store.New(cfg.StoreConfig)
	st.Initialize(adjacentEntries(adjacency))

	pub := feedback.New(orDefaultWeights(cfg.FeedbackWeights))
	act := &lsdbActivator{real: lsdb}
	eng := engine.New(cfg.EngineConfig, st, adjacency, act)
	act.eng = eng
	sel := selector.New(cfg.Logger, eng, pub)
	sel.Configure(cfg.CalculatorMode)
	act.sel = sel

	s := &Subsystem{
		logger:    cfg.Logger,
		face:      face,
		store:     st,
		engine:    eng,
		publisher: pub,
		selector:  sel,
		jobs:      make(chan func(), 64),
		done:      make(chan struct{}),
	}

	// The control channel's Set/Get touch the store from whatever goroutine
	// calls them (the HTTP handler is the only transport wired up); routed
	// through &controlStoreAdapter{s} so every store access still happens on
	// the core loop, per the no-locks concurrency model (spec section 5).
	s.control = control.New(&controlStoreAdapter{s: s})

	cfg.ProbeConfig.Dispatch = s.do
	completion := &completionAdapter{s: s}
	storeRecorder := &storeAdapter{s: s}
	s.scheduler = probe.NewScheduler(cfg.ProbeConfig, face, storeRecorder, &stabilityAdapter{s: s}, completion)
	s.responder = probe.NewResponder(cfg.Logger, cfg.Self, signer)

	s.lifecycle = lifecycle.New(cfg.LifecycleConfig, &neighborListerAdapter{s: s}, &proberAdapter{s: s}, lsdb, &statusReporterAdapter{s: s})

	return s
}

// adjacentEntries reads every configured adjacency off adjacency so the
// store can seed its per-neighbor link state from the host's static
// configuration (spec section 4.1).
func adjacentEntries(adjacency host.AdjacencyList) []host.AdjacentEntry {
	neighbors := adjacency.Neighbors()
	out := make([]host.AdjacentEntry, 0, len(neighbors))
	for _, n := range neighbors {
		entry, ok := adjacency.FindAdjacent(n)
		if !ok {
			continue
		}
		out = append(out, *entry)
	}
	return out
}

func orDefaultWeights(w feedback.Weights) feedback.Weights {
	if w == (feedback.Weights{}) {
		return feedback.DefaultWeights()
	}
	return w
}

// Run starts the core loop. It blocks until ctx is cancelled or Stop is
// called; callers typically run it in its own goroutine.
func (s *Subsystem) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.responder.Start(s.face)
	s.lifecycle.Initialize()
	s.lifecycle.Start()

	for {
		select {
		case job := <-s.jobs:
			job()
		case <-ctx.Done():
			// lifecycle.Stop issues its rollback/StopAll/rebuild calls
			// through the same s.do mailbox this loop serves, so it must
			// run off-loop; this inner select keeps draining s.jobs while
			// it does, then exits once Stop has returned.
			stopped := make(chan struct{})
			go func() {
				s.lifecycle.Stop()
				s.selector.Teardown()
				s.engine.ClearDryRunObserver()
				close(stopped)
			}()
			for drained := false; !drained; {
				select {
				case job := <-s.jobs:
					job()
				case <-stopped:
					drained = true
				}
			}
			close(s.done)
			return
		}
	}
}

// Stop requests the core loop to run the lifecycle's shutdown sequence and
// exit.
func (s *Subsystem) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	<-s.done
}

// do enqueues f onto the core loop and blocks until it has run. Called only
// from goroutines outside the loop (timers, HTTP handlers); code already
// running on the loop must call store/engine methods directly instead, to
// avoid deadlocking on a full or unread jobs channel.
func (s *Subsystem) do(f func()) {
	done := make(chan struct{})
	s.jobs <- func() { f(); close(done) }
	<-done
}

var _ host.HelloSink = (*Subsystem)(nil)

// OnHelloSent implements host.HelloSink. The hello subsystem owns liveness
// entirely through OnHelloTimeout/OnStatusChange; this is a diagnostic
// hook only.
func (s *Subsystem) OnHelloSent(n host.NeighborID) {
	s.do(func() { s.logger.Debug("hello sent", "neighbor", n) })
}

// OnHelloData implements host.HelloSink. Diagnostic hook only; see
// OnHelloSent.
func (s *Subsystem) OnHelloData(n host.NeighborID) {
	s.do(func() { s.logger.Debug("hello data received", "neighbor", n) })
}

// OnHelloTimeout implements host.HelloSink: a genuine hello-subsystem
// timeout, as opposed to a dropped RTT probe (which probe.Scheduler
// classifies as Transient and never routes here). Per spec section 4.1,
// reaching the configured retry limit transitions the neighbor to
// INACTIVE, clearing its history and dropping any in-flight RTT probes.
func (s *Subsystem) OnHelloTimeout(n host.NeighborID, count uint32) {
	s.do(func() {
		if s.store.OnHelloTimeout(n, count) {
			s.scheduler.Disarm(n)
		}
	})
}

// OnStatusChange implements host.HelloSink: applies an externally driven
// status transition (spec section 4.1). A decline to INACTIVE disarms the
// neighbor's probe timer and drops its pending measurements; a transition
// back to ACTIVE arms a fresh probe if the subsystem is actually running
// (the warm-up period or a stopped subsystem must not arm probes).
func (s *Subsystem) OnStatusChange(n host.NeighborID, status host.HelloStatus) {
	s.do(func() {
		ls, ok := s.store.Get(n)
		if !ok {
			return
		}
		wasActive := ls.Status == store.StatusActive

		next := store.StatusInactive
		if status == host.HelloActive {
			next = store.StatusActive
		}
		s.store.OnStatusChange(n, next)

		switch {
		case next == store.StatusInactive:
			s.scheduler.Disarm(n)
		case !wasActive && s.lifecycle.State() == lifecycle.Running:
			s.scheduler.Arm(n)
		}
	})
}

// ControlHTTPHandler builds the chi-routed HTTP adapter for the Metrics
// Control Channel (spec section 4.4, supplemented in SPEC section 10.2),
// wired to this subsystem's core loop through controlStoreAdapter. Callers
// typically mount the returned router's Router() under their own HTTP
// server, e.g. in cmd/linkcostd.
func (s *Subsystem) ControlHTTPHandler() *control.HTTPHandler {
	return control.NewHTTPHandler(s.control, s.logger)
}

// lsdbActivator wraps the host's real LSDB so the first routing-table
// recalculation request after startup also lazily activates the calculator
// selector, per spec section 4.9 ("instantiates the adaptive object lazily
// on the first routing-table build after startup"). Everything here runs
// on the core loop (engine.ApplyCostUpdate is only ever called from there),
// so no synchronization is needed for the activated flag.
type lsdbActivator struct {
	real      host.LSDB
	sel       *selector.Selector
	eng       *engine.Engine
	activated bool
}

func (a *lsdbActivator) ScheduleAdjLSABuild() { a.real.ScheduleAdjLSABuild() }

func (a *lsdbActivator) ScheduleRoutingTableCalculation() {
	if !a.activated {
		a.activated = true
		a.sel.Activate()
		if a.sel.Mode() == selector.HyperbolicDryRun {
			a.eng.SetDryRunObserver(a.sel)
		}
	}
	a.real.ScheduleRoutingTableCalculation()
}

// --- adapters: the only things allowed to call into core state from a
// goroutine other than the core loop. ---

// controlStoreAdapter lets the control.Service (reached from an HTTP
// handler goroutine, never the core loop) read and mutate store state
// without breaking the single-loop-owns-all-state invariant: every method
// below hops onto the loop via s.do before touching s.store.
type controlStoreAdapter struct{ s *Subsystem }

func (a *controlStoreAdapter) Get(n host.NeighborID) (ls *store.LinkState, ok bool) {
	a.s.do(func() { ls, ok = a.s.store.Get(n) })
	return ls, ok
}

func (a *controlStoreAdapter) Neighbors() (out []host.NeighborID) {
	a.s.do(func() { out = a.s.store.Neighbors() })
	return out
}

func (a *controlStoreAdapter) Snapshot(n host.NeighborID) (snap ports.NeighborSnapshot, ok bool) {
	a.s.do(func() { snap, ok = a.s.store.Snapshot(n) })
	return snap, ok
}

func (a *controlStoreAdapter) ApplyExternalMetrics(n host.NeighborID, m store.ExternalMetrics) (err error) {
	a.s.do(func() { err = a.s.store.ApplyExternalMetrics(n, m) })
	return err
}

// completionAdapter, storeAdapter and stabilityAdapter are the exception:
// probe.Scheduler calls them from fire, which Config.Dispatch (s.do) already
// runs on the core loop, so they call store/engine directly.
type completionAdapter struct{ s *Subsystem }

func (a *completionAdapter) HandleMeasurement(n host.NeighborID, enoughSamples bool) (err error) {
	err = a.s.engine.HandleMeasurement(n, enoughSamples)
	if enoughSamples {
		if snap, ok := a.s.store.Snapshot(n); ok {
			a.s.publisher.Publish(n.String(), snap)
		}
	}
	return err
}

func (a *completionAdapter) HandleTimeout(n host.NeighborID, reason string) {
	a.s.engine.HandleTimeout(n, reason)
}

type storeAdapter struct{ s *Subsystem }

func (a *storeAdapter) RecordMeasurement(n host.NeighborID, d time.Duration) (enough bool, err error) {
	return a.s.store.RecordMeasurement(n, d)
}

type stabilityAdapter struct{ s *Subsystem }

func (a *stabilityAdapter) IsStable(n host.NeighborID) (stable bool) {
	return a.s.store.IsStable(n)
}

type proberAdapter struct{ s *Subsystem }

func (a *proberAdapter) Arm(n host.NeighborID) {
	a.s.do(func() { a.s.scheduler.Arm(n) })
}

func (a *proberAdapter) StopAll() {
	a.s.do(func() { a.s.scheduler.StopAll() })
}

type neighborListerAdapter struct{ s *Subsystem }

func (a *neighborListerAdapter) Neighbors() (out []host.NeighborID) {
	a.s.do(func() { out = a.s.store.Neighbors() })
	return out
}

func (a *neighborListerAdapter) IsStable(n host.NeighborID) (stable bool) {
	a.s.do(func() { stable = a.s.store.IsStable(n) })
	return stable
}

func (a *neighborListerAdapter) RollbackAll() {
	a.s.do(func() { a.s.store.RollbackAll() })
}

type statusReporterAdapter struct{ s *Subsystem }

// ReportStatus emits the supplemented structured status-report tick (SPEC
// section 11): one log line per neighbor, active or not, then a refresh of
// the active-neighbor gauge.
func (a *statusReporterAdapter) ReportStatus() {
	a.s.do(func() {
		active := 0
		for _, n := range a.s.store.Neighbors() {
			snap, ok := a.s.store.Snapshot(n)
			if !ok {
				continue
			}
			if snap.Status == ports.StatusActive {
				active++
			}
			a.s.logger.Info("link cost status",
				"neighbor", n,
				"status", snap.Status,
				"current_cost", snap.CurrentCost,
				"sample_count", len(snap.RTTSamplesMS),
				"timeout_count", snap.TimeoutCount,
			)
		}
		obs.ActiveNeighbors.Set(float64(active))
	})
}
