// Package store implements the Link State Store: the per-neighbor state
// described in spec section 3 (status, costs, bounded RTT history, timeout
// accounting, and externally configured metrics). It is the sole shared
// structure in the subsystem; every method here assumes it is only ever
// called from the subsystem's single core loop goroutine (see package
// subsystem) and takes no locks, per the "single-threaded cooperative"
// concurrency model.
package store

import (
	"fmt"
	"time"

	"github.com/ndn-routing/linkcost/internal/linkcost/host"
	"github.com/ndn-routing/linkcost/internal/linkcost/lcerrors"
	"github.com/ndn-routing/linkcost/internal/linkcost/ports"
)

// NeighborStatus is the two-state liveness variant of spec section 3.
type NeighborStatus int

const (
	StatusInactive NeighborStatus = iota
	StatusActive
)

func (s NeighborStatus) String() string {
	if s == StatusActive {
		return "ACTIVE"
	}
	return "INACTIVE"
}

// Default tunables, overridable per-store via Config.
const (
	DefaultHistoryCapacity = 10
	DefaultMaxMultiplier   = 5.0
	DefaultRetryLimit      = 3
	minRTTMillis           = 1
	maxRTTMillis           = 5000
)

// RttSample is one accepted round-trip measurement.
type RttSample struct {
	DurationMS uint32
	ReceivedAt time.Time
}

// ExternalMetrics are the externally configured, out-of-band link
// properties fused into the multi-dimensional preview cost.
type ExternalMetrics struct {
	BandwidthMbps *float64
	Utilization   *float64 // [0,1]
	PacketLoss    *float64 // [0,1]
	SpectrumDBM   *float64
	UpdatedAt     time.Time
}

// rttHistory is a bounded FIFO ring buffer of RttSample.
type rttHistory struct {
	buf      []RttSample
	capacity int
}

func newRTTHistory(capacity int) *rttHistory {
	if capacity < DefaultHistoryCapacity {
		capacity = DefaultHistoryCapacity
	}
	return &rttHistory{buf: make([]RttSample, 0, capacity), capacity: capacity}
}

func (h *rttHistory) push(s RttSample) {
	h.buf = append(h.buf, s)
	if len(h.buf) > h.capacity {
		h.buf = h.buf[len(h.buf)-h.capacity:]
	}
}

func (h *rttHistory) clear() { h.buf = h.buf[:0] }

func (h *rttHistory) len() int { return len(h.buf) }

func (h *rttHistory) samples() []RttSample { return h.buf }

func (h *rttHistory) mean() float64 {
	if len(h.buf) == 0 {
		return 0
	}
	var sum float64
	for _, s := range h.buf {
		sum += float64(s.DurationMS)
	}
	return sum / float64(len(h.buf))
}

// LinkState is the per-neighbor record of spec section 3. Only its fields
// mutate over the subsystem's lifetime; it is created once, during
// Initialize, and never removed.
type LinkState struct {
	Neighbor           host.NeighborID
	Status             NeighborStatus
	OriginalCost       uint64
	CurrentCost        float64
	History            *rttHistory
	TimeoutCount       uint32
	LastSuccess        time.Time
	LastRebuildTrigger time.Time
	External           *ExternalMetrics
}

// Config configures a Store. All fields have sane defaults when zero.
type Config struct {
	HistoryCapacity int
	MaxMultiplier   float64
	RetryLimit      uint32
}

func (c *Config) setDefaults() {
	if c.HistoryCapacity <= 0 {
		c.HistoryCapacity = DefaultHistoryCapacity
	}
	if c.MaxMultiplier <= 0 {
		c.MaxMultiplier = DefaultMaxMultiplier
	}
	if c.RetryLimit == 0 {
		c.RetryLimit = DefaultRetryLimit
	}
}

// Store is the Link State Store.
type Store struct {
	cfg   Config
	byNbr map[host.NeighborID]*LinkState
	order []host.NeighborID
}

// New constructs an empty Store. Call Initialize to populate it from the
// host's adjacency list.
func New(cfg Config) *Store {
	cfg.setDefaults()
	return &Store{cfg: cfg, byNbr: make(map[host.NeighborID]*LinkState)}
}

// Initialize performs the one-shot sweep over the adjacency list described
// in spec section 3's Lifecycle: one LinkState is created per adjacency,
// original_cost is fixed forever, and current_cost starts equal to it.
// Calling Initialize a second time is a no-op for neighbors already present.
func (s *Store) Initialize(adjacencies []host.AdjacentEntry) {
	for _, a := range adjacencies {
		if _, ok := s.byNbr[a.Neighbor]; ok {
			continue
		}
		ls := &LinkState{
			Neighbor:     a.Neighbor,
			Status:       StatusActive,
			OriginalCost: a.OriginalCost,
			CurrentCost:  float64(a.OriginalCost),
			History:      newRTTHistory(s.cfg.HistoryCapacity),
		}
		s.byNbr[a.Neighbor] = ls
		s.order = append(s.order, a.Neighbor)
	}
}

// Get returns the LinkState for n, if present.
func (s *Store) Get(n host.NeighborID) (*LinkState, bool) {
	ls, ok := s.byNbr[n]
	return ls, ok
}

// Neighbors enumerates every neighbor present in the store, in
// initialization order.
func (s *Store) Neighbors() []host.NeighborID {
	out := make([]host.NeighborID, len(s.order))
	copy(out, s.order)
	return out
}

// clampRTT applies the asymmetric clamp of spec section 3: durations below
// 1ms are raised to 1ms; durations above 5000ms are rejected outright. This
// asymmetry is deliberate (see DESIGN.md open question) and is preserved
// here rather than "fixed" to be symmetric.
func clampRTT(d time.Duration) (uint32, error) {
	ms := d.Milliseconds()
	if ms > maxRTTMillis {
		return 0, lcerrors.NewTransient(fmt.Sprintf("rtt %dms exceeds %dms ceiling", ms, maxRTTMillis), nil)
	}
	if ms < minRTTMillis {
		ms = minRTTMillis
	}
	return uint32(ms), nil
}

// RecordMeasurement appends an accepted RTT sample for neighbor and reports
// whether the sample count now justifies a cost recomputation (>=3 samples).
// Per spec section 4.1: an absent or INACTIVE neighbor silently ignores the
// measurement.
func (s *Store) RecordMeasurement(n host.NeighborID, d time.Duration) (enoughSamples bool, err error) {
	ls, ok := s.byNbr[n]
	if !ok || ls.Status != StatusActive {
		return false, nil
	}
	ms, err := clampRTT(d)
	if err != nil {
		return false, err
	}
	ls.History.push(RttSample{DurationMS: ms, ReceivedAt: time.Now()})
	ls.LastSuccess = time.Now()
	return ls.History.len() >= 3, nil
}

// OnHelloTimeout updates the neighbor's consecutive-timeout count and, once
// it reaches the configured retry limit, transitions the neighbor to
// INACTIVE and clears its history. Dropping pending measurements is the
// caller's job (the probe scheduler owns them), signalled by transitioned.
func (s *Store) OnHelloTimeout(n host.NeighborID, count uint32) (transitioned bool) {
	ls, ok := s.byNbr[n]
	if !ok {
		return false
	}
	ls.TimeoutCount = count
	if count >= s.cfg.RetryLimit && ls.Status == StatusActive {
		s.transitionToInactive(ls)
		return true
	}
	return false
}

func (s *Store) transitionToInactive(ls *LinkState) {
	ls.Status = StatusInactive
	ls.History.clear()
	ls.TimeoutCount = s.cfg.RetryLimit
}

// OnStatusChange applies an externally driven (hello-subsystem) status
// transition, per spec section 4.1.
func (s *Store) OnStatusChange(n host.NeighborID, next NeighborStatus) {
	ls, ok := s.byNbr[n]
	if !ok {
		return
	}
	switch {
	case ls.Status == StatusActive && next == StatusInactive:
		s.transitionToInactive(ls)
	case ls.Status != StatusActive && next == StatusActive:
		ls.Status = StatusActive
		ls.CurrentCost = float64(ls.OriginalCost)
		ls.TimeoutCount = 0
		ls.LastSuccess = time.Now()
	}
}

// ApplyExternalMetrics upserts the externally configured link properties
// used by the multi-dimensional preview cost. Range validation is the
// caller's (control package's) responsibility; this just stores the value.
func (s *Store) ApplyExternalMetrics(n host.NeighborID, m ExternalMetrics) error {
	ls, ok := s.byNbr[n]
	if !ok {
		return lcerrors.ErrNotFound
	}
	m.UpdatedAt = time.Now()
	ls.External = &m
	return nil
}

// Rollback resets current_cost to original_cost, used at shutdown (spec
// section 4.8 "stop") and is also the state a neighbor returns to on
// reactivation.
func (s *Store) Rollback(n host.NeighborID) {
	if ls, ok := s.byNbr[n]; ok {
		ls.CurrentCost = float64(ls.OriginalCost)
	}
}

// RollbackAll rolls back every neighbor's current_cost, for shutdown.
func (s *Store) RollbackAll() {
	for _, n := range s.order {
		s.Rollback(n)
	}
}

// Snapshot produces the read-only view of n handed to calculators and the
// metrics control channel.
func (s *Store) Snapshot(n host.NeighborID) (ports.NeighborSnapshot, bool) {
	ls, ok := s.byNbr[n]
	if !ok {
		return ports.NeighborSnapshot{}, false
	}
	samples := ls.History.samples()
	ms := make([]uint32, len(samples))
	for i, sm := range samples {
		ms[i] = sm.DurationMS
	}
	snap := ports.NeighborSnapshot{
		OriginalCost: ls.OriginalCost,
		CurrentCost:  ls.CurrentCost,
		RTTSamplesMS: ms,
		TimeoutCount: ls.TimeoutCount,
		LastSuccess:  ls.LastSuccess,
	}
	if ls.Status == StatusActive {
		snap.Status = ports.StatusActive
	}
	if ls.External != nil {
		snap.BandwidthMbps = ls.External.BandwidthMbps
		snap.Utilization = ls.External.Utilization
		snap.PacketLoss = ls.External.PacketLoss
		snap.SpectrumDBM = ls.External.SpectrumDBM
		snap.MetricsSetAt = ls.External.UpdatedAt
	}
	return snap, true
}

// IsStable reports the stability predicate of spec section 4.2: ACTIVE and
// zero recent timeouts. Only stable neighbors may be probed.
func (s *Store) IsStable(n host.NeighborID) bool {
	ls, ok := s.byNbr[n]
	return ok && ls.Status == StatusActive && ls.TimeoutCount == 0
}

// MaxMultiplier returns the configured cost ceiling multiplier.
func (s *Store) MaxMultiplier() float64 { return s.cfg.MaxMultiplier }

// RetryLimit returns the configured consecutive-hello-timeout limit.
func (s *Store) RetryLimit() uint32 { return s.cfg.RetryLimit }
