// Package probe implements the RTT Probe Scheduler and Responder: the
// active side that arms a jittered per-neighbor timer and expresses an
// Interest, and the passive side that answers another router's probe. The
// active side funnels into a single completion handler so a response, a
// network NACK, and an outright timeout all converge on the same accounting path
// (spec section 4.2), matching the re-armed single-timer worker idiom used
// elsewhere in this codebase's probing loops.
package probe

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/ndn-routing/linkcost/internal/linkcost/host"
	"github.com/ndn-routing/linkcost/internal/linkcost/lcerrors"
	"github.com/ndn-routing/linkcost/internal/linkcost/obs"
)

const (
	// DefaultInterval is the base interval between probes to one neighbor.
	DefaultInterval = 30 * time.Second
	// MaxJitter bounds the random delay added on top of DefaultInterval, so
	// probes to many neighbors don't all land on the wire at once.
	MaxJitter = 5 * time.Second
	// DefaultTimeout is how long the scheduler waits for a probe response
	// before declaring it lost.
	DefaultTimeout = 2 * time.Second
)

// Stability reports whether a neighbor is currently eligible to be probed.
// Implemented by *store.Store in production; a narrow interface here keeps
// this package free of a direct store dependency.
type Stability interface {
	IsStable(host.NeighborID) bool
}

// Completion is notified of every probe's final outcome, success or not.
// *engine.Engine implements this via a thin adapter in the subsystem wiring.
type Completion interface {
	HandleMeasurement(n host.NeighborID, enoughSamples bool) error
	HandleTimeout(n host.NeighborID, reason string)
}

// StoreRecorder records the accepted measurement before Completion is asked
// to react to it. Kept separate from Completion because the store decides
// enoughSamples, which Completion then consumes. A dropped or timed-out RTT
// probe is a Transient failure (spec section 7) and never touches the
// store's hello-timeout accounting, which only the host's genuine hello
// signals may do (section 4.1) — so this interface has no OnHelloTimeout
// method; see subsystem.go's HelloSink methods for that path.
type StoreRecorder interface {
	RecordMeasurement(n host.NeighborID, d time.Duration) (enoughSamples bool, err error)
}

// pending is an in-flight probe awaiting a response.
type pending struct {
	neighbor  host.NeighborID
	seq       uint32
	sentAt    time.Time
	correlate string
}

// Scheduler arms one timer per neighbor and drives the active probing side
// of the subsystem's single core loop.
type Scheduler struct {
	logger    *slog.Logger
	face      host.Face
	store     StoreRecorder
	stability Stability
	completer Completion
	self      host.Name

	interval time.Duration
	timeout  time.Duration

	nextSeq  uint32
	pendings map[uint32]*pending
	timers   map[host.NeighborID]*time.Timer
	dispatch func(func())
}

// Config configures a Scheduler.
type Config struct {
	Logger   *slog.Logger
	Interval time.Duration
	Timeout  time.Duration
	Self     host.Name
	// Dispatch, if set, wraps every timer-fired callback so it runs
	// serialized on the subsystem's single core loop instead of directly on
	// the timer's own goroutine. Defaults to running the callback inline.
	Dispatch func(func())
}

func (c *Config) setDefaults() {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
}

// NewScheduler constructs a Scheduler. No timers are armed until Arm is
// called per neighbor.
func NewScheduler(cfg Config, face host.Face, store StoreRecorder, stability Stability, completer Completion) *Scheduler {
	cfg.setDefaults()
	dispatch := cfg.Dispatch
	if dispatch == nil {
		dispatch = func(f func()) { f() }
	}
	return &Scheduler{
		logger:    cfg.Logger,
		face:      face,
		store:     store,
		stability: stability,
		completer: completer,
		self:      cfg.Self,
		interval:  cfg.Interval,
		timeout:   cfg.Timeout,
		pendings:  make(map[uint32]*pending),
		timers:    make(map[host.NeighborID]*time.Timer),
		dispatch:  dispatch,
	}
}

func jitteredDelay(base time.Duration) time.Duration {
	return base + time.Duration(rand.Int64N(int64(MaxJitter)))
}

// Arm starts (or re-arms) the jittered timer for n. Calling Arm on an
// already-armed neighbor replaces its timer.
func (s *Scheduler) Arm(n host.NeighborID) {
	if t, ok := s.timers[n]; ok {
		t.Stop()
	}
	delay := jitteredDelay(s.interval)
	s.timers[n] = time.AfterFunc(delay, func() { s.dispatch(func() { s.fire(n) }) })
}

// Disarm stops the timer for n and discards any pending probe to it,
// called when a neighbor declines to INACTIVE.
func (s *Scheduler) Disarm(n host.NeighborID) {
	if t, ok := s.timers[n]; ok {
		t.Stop()
		delete(s.timers, n)
	}
	for seq, p := range s.pendings {
		if p.neighbor == n {
			delete(s.pendings, seq)
		}
	}
}

// fire runs on whatever goroutine Config.Dispatch serializes it onto (the
// subsystem's core loop in production), so it and sendProbe/complete can
// touch Scheduler's maps without a lock.
func (s *Scheduler) fire(n host.NeighborID) {
	if !s.stability.IsStable(n) {
		s.logger.Debug("skipping probe, neighbor not stable", "neighbor", n)
		s.Arm(n)
		return
	}
	s.sendProbe(n)
	s.Arm(n)
}

func (s *Scheduler) sendProbe(n host.NeighborID) {
	seq := s.nextSeq
	s.nextSeq++
	corr := uuid.NewString()
	p := &pending{neighbor: n, seq: seq, sentAt: time.Now(), correlate: corr}
	s.pendings[seq] = p

	name := host.Name(n).Child("link-cost", "rtt-probe", fmt.Sprintf("%d", seq))
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	s.logger.Debug("sending rtt probe", "neighbor", n, "seq", seq, "correlation_id", corr)
	_, err := s.face.ExpressInterest(ctx, host.Interest{Name: name, Lifetime: s.timeout})
	s.complete(seq, err)
}

// complete is the single convergence point for response, NACK, and timeout,
// per spec section 4.2.
func (s *Scheduler) complete(seq uint32, expressErr error) {
	p, ok := s.pendings[seq]
	if !ok {
		return
	}
	delete(s.pendings, seq)

	if expressErr != nil {
		elapsed := time.Since(p.sentAt)
		obs.RecordProbeOutcome(p.neighbor.String(), "timeout", elapsed)
		transient := lcerrors.NewTransient(
			fmt.Sprintf("rtt probe to %s nacked or timed out", p.neighbor), expressErr)
		s.logger.Debug("rtt probe failed, discarding and retrying on next scheduled probe",
			"neighbor", p.neighbor, "error", transient)
		s.completer.HandleTimeout(p.neighbor, expressErr.Error())
		return
	}

	rtt := time.Since(p.sentAt)
	obs.RecordProbeOutcome(p.neighbor.String(), "success", rtt)
	enough, err := s.store.RecordMeasurement(p.neighbor, rtt)
	if err != nil {
		s.logger.Debug("measurement rejected", "neighbor", p.neighbor, "error", err)
		return
	}
	if err := s.completer.HandleMeasurement(p.neighbor, enough); err != nil {
		s.logger.Warn("handle measurement failed", "neighbor", p.neighbor, "error", err)
	}
}

// StopAll disarms every timer and drops all pending probes, used on
// subsystem shutdown.
func (s *Scheduler) StopAll() {
	for n := range s.timers {
		s.Disarm(n)
	}
}
