// Package lifecycle implements the Subsystem Lifecycle State Machine of
// spec section 4.8: Uninitialized -> Initialized -> Running <-> Stopping ->
// Stopped, including the warm-up delay before probing starts and the
// rollback-everything behavior on shutdown.
package lifecycle

import (
	"log/slog"
	"time"

	"github.com/ndn-routing/linkcost/internal/linkcost/host"
)

// State is one of the five lifecycle states.
type State int

const (
	Uninitialized State = iota
	Initialized
	Running
	Stopping
	Stopped
)

func (s State) String() string {
	switch s {
	case Initialized:
		return "initialized"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	default:
		return "uninitialized"
	}
}

// DefaultWarmup is the one-shot delay after Start before any probes are
// armed, per spec section 4.8.
const DefaultWarmup = 30 * time.Second

// DefaultStatusReportInterval is the recurring status-report tick period.
const DefaultStatusReportInterval = 10 * time.Minute

// Prober is the subset of the probe scheduler the lifecycle drives.
type Prober interface {
	Arm(n host.NeighborID)
	StopAll()
}

// NeighborLister is the subset of the store the lifecycle needs to find
// which neighbors are eligible to be armed at startup.
type NeighborLister interface {
	Neighbors() []host.NeighborID
	IsStable(n host.NeighborID) bool
	RollbackAll()
}

// LSDB requests one final adjacency LSA rebuild on shutdown.
type LSDB interface {
	ScheduleAdjLSABuild()
}

// StatusReporter emits the recurring structured status-report tick.
type StatusReporter interface {
	ReportStatus()
}

// Config configures the lifecycle state machine.
type Config struct {
	Logger              *slog.Logger
	Warmup              time.Duration
	StatusReportInterval time.Duration
}

func (c *Config) setDefaults() {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Warmup <= 0 {
		c.Warmup = DefaultWarmup
	}
	if c.StatusReportInterval <= 0 {
		c.StatusReportInterval = DefaultStatusReportInterval
	}
}

// Machine is the Subsystem Lifecycle State Machine.
type Machine struct {
	cfg    Config
	state  State
	store  NeighborLister
	prober Prober
	lsdb   LSDB
	report StatusReporter

	warmupTimer *time.Timer
	statusTimer *time.Ticker
	stopStatus  chan struct{}
}

// New constructs a Machine in the Uninitialized state.
func New(cfg Config, store NeighborLister, prober Prober, lsdb LSDB, report StatusReporter) *Machine {
	cfg.setDefaults()
	return &Machine{cfg: cfg, state: Uninitialized, store: store, prober: prober, lsdb: lsdb, report: report}
}

// State returns the current lifecycle state.
func (m *Machine) State() State { return m.state }

// Initialize transitions Uninitialized -> Initialized. The store is
// expected to already be populated by the caller (see package store); this
// only marks the subsystem ready to start. No probing happens here.
func (m *Machine) Initialize() {
	if m.state != Uninitialized {
		return
	}
	m.state = Initialized
}

// Start transitions Initialized -> Running after a one-shot warm-up delay,
// then arms probes on every stable neighbor and a recurring status-report
// tick. Calling Start while already Running is idempotent (log-and-ignore).
func (m *Machine) Start() {
	if m.state == Running {
		m.cfg.Logger.Info("start requested while already running, ignoring")
		return
	}
	if m.state != Initialized {
		m.cfg.Logger.Warn("start requested from unexpected state", "state", m.state)
		return
	}
	m.warmupTimer = time.AfterFunc(m.cfg.Warmup, m.armAfterWarmup)
}

func (m *Machine) armAfterWarmup() {
	for _, n := range m.store.Neighbors() {
		if m.store.IsStable(n) {
			m.prober.Arm(n)
		}
	}
	m.state = Running
	m.startStatusReportTicker()
}

func (m *Machine) startStatusReportTicker() {
	m.statusTimer = time.NewTicker(m.cfg.StatusReportInterval)
	m.stopStatus = make(chan struct{})
	go func() {
		for {
			select {
			case <-m.statusTimer.C:
				if m.report != nil {
					m.report.ReportStatus()
				}
			case <-m.stopStatus:
				return
			}
		}
	}()
}

// Stop transitions Running -> Stopping -> Stopped: cancels every scheduled
// event, drops pending measurements, rolls every neighbor's current_cost
// back to original_cost, and requests one final LSDB rebuild.
func (m *Machine) Stop() {
	if m.state != Running && m.state != Initialized {
		return
	}
	m.state = Stopping

	if m.warmupTimer != nil {
		m.warmupTimer.Stop()
	}
	if m.statusTimer != nil {
		m.statusTimer.Stop()
		close(m.stopStatus)
	}
	m.prober.StopAll()
	m.store.RollbackAll()
	m.lsdb.ScheduleAdjLSABuild()

	m.state = Stopped
}
