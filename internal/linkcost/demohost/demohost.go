// Package demohost is a standalone, in-memory stand-in for the routing
// daemon this subsystem is meant to plug into: a Face that simulates RTT
// instead of sending real NDN Interests, an AdjacencyList backed by a map,
// and an LSDB that only logs rebuild requests. It exists so cmd/linkcostd
// can run and exercise the full link-cost subsystem without a real NDN
// forwarder, the same role the teacher's mock backends play in its local
// dev tooling (dev/controlcenter's process manager runs the real services,
// not fakes of them, but the shape — a small standalone harness a cmd/
// binary wires up for local exercise — is the same idea applied here since
// this module has no forwarder of its own to run).
package demohost

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/ndn-routing/linkcost/internal/linkcost/host"
)

// NeighborProfile configures one simulated neighbor's RTT behavior.
type NeighborProfile struct {
	Neighbor     host.NeighborID
	OriginalCost uint64
	BaseRTT      time.Duration
	Jitter       time.Duration
	LossRate     float64 // probability in [0,1] that a probe is dropped (times out)
}

// Face simulates the NDN network layer by waiting for a synthetic RTT and
// returning success or a simulated loss (a timeout), instead of touching a real
// forwarder. Safe to share across goroutines: its only mutable state is
// guarded by the fact that ExpressInterest never mutates shared maps.
type Face struct {
	logger   *slog.Logger
	profiles map[host.NeighborID]NeighborProfile
}

// NewFace constructs a Face from the given neighbor profiles.
func NewFace(logger *slog.Logger, profiles []NeighborProfile) *Face {
	if logger == nil {
		logger = slog.Default()
	}
	m := make(map[host.NeighborID]NeighborProfile, len(profiles))
	for _, p := range profiles {
		m[p.Neighbor] = p
	}
	return &Face{logger: logger, profiles: m}
}

// ExpressInterest blocks for a synthetic RTT derived from the target
// neighbor's profile (inferred from i.Name's first component) and either
// returns a fabricated Data or a simulated nack/timeout error.
func (f *Face) ExpressInterest(ctx context.Context, i host.Interest) (*host.Data, error) {
	n := neighborFromProbeName(i.Name)
	profile, ok := f.profiles[n]
	if !ok {
		profile = NeighborProfile{BaseRTT: 20 * time.Millisecond, Jitter: 5 * time.Millisecond}
	}

	if profile.LossRate > 0 && rand.Float64() < profile.LossRate {
		select {
		case <-time.After(i.Lifetime):
		case <-ctx.Done():
		}
		return nil, context.DeadlineExceeded
	}

	delay := profile.BaseRTT
	if profile.Jitter > 0 {
		delay += time.Duration(rand.Int64N(int64(profile.Jitter)))
	}
	select {
	case <-time.After(delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &host.Data{Name: i.Name, FreshnessPeriod: time.Second, Payload: []byte("demohost-pong"), Signed: true}, nil
}

// SetInterestFilter is a no-op in the single-process demo: there is no peer
// router to originate a matching Interest against this handler. It is kept
// so Face satisfies host.Face for the Responder to register against.
func (f *Face) SetInterestFilter(prefix host.Name, handler func(host.Interest) host.Data) {}

// neighborFromProbeName extracts the neighbor component from a probe name
// of the form "<neighbor>/link-cost/rtt-probe/<seq>".
func neighborFromProbeName(n host.Name) host.NeighborID {
	s := string(n)
	const suffix = "/link-cost/rtt-probe"
	for i := 0; i+len(suffix) <= len(s); i++ {
		if s[i:i+len(suffix)] == suffix {
			return host.NeighborID(s[:i])
		}
	}
	return host.NeighborID(s)
}

// LSDB logs every rebuild/recalculation request instead of touching a real
// link-state database.
type LSDB struct {
	logger         *slog.Logger
	rebuilds       int
	recalculations int
}

// NewLSDB constructs a logging-only LSDB stand-in.
func NewLSDB(logger *slog.Logger) *LSDB {
	if logger == nil {
		logger = slog.Default()
	}
	return &LSDB{logger: logger}
}

func (l *LSDB) ScheduleAdjLSABuild() {
	l.rebuilds++
	l.logger.Info("adjacency LSA rebuild requested", "total", l.rebuilds)
}

func (l *LSDB) ScheduleRoutingTableCalculation() {
	l.recalculations++
	l.logger.Info("routing table recalculation requested", "total", l.recalculations)
}

// Rebuilds returns how many adjacency LSA rebuilds have been requested so far.
func (l *LSDB) Rebuilds() int { return l.rebuilds }

// Recalculations returns how many routing table recalculations have been
// requested so far.
func (l *LSDB) Recalculations() int { return l.recalculations }

// AdjacencyList is a map-backed host.AdjacencyList seeded once at
// construction, matching the contract that this subsystem never adds or
// removes adjacencies — only the LinkCost field of each moves.
type AdjacencyList struct {
	order   []host.NeighborID
	entries map[host.NeighborID]*host.AdjacentEntry
}

// NewAdjacencyList constructs an AdjacencyList from profile-declared
// original costs.
func NewAdjacencyList(profiles []NeighborProfile) *AdjacencyList {
	al := &AdjacencyList{entries: make(map[host.NeighborID]*host.AdjacentEntry, len(profiles))}
	for _, p := range profiles {
		al.order = append(al.order, p.Neighbor)
		al.entries[p.Neighbor] = &host.AdjacentEntry{
			Neighbor:     p.Neighbor,
			OriginalCost: p.OriginalCost,
			LinkCost:     p.OriginalCost,
		}
	}
	return al
}

func (al *AdjacencyList) FindAdjacent(n host.NeighborID) (*host.AdjacentEntry, bool) {
	e, ok := al.entries[n]
	return e, ok
}

func (al *AdjacencyList) SetLinkCost(n host.NeighborID, cost uint64) bool {
	e, ok := al.entries[n]
	if !ok {
		return false
	}
	e.LinkCost = cost
	return true
}

func (al *AdjacencyList) Neighbors() []host.NeighborID {
	out := make([]host.NeighborID, len(al.order))
	copy(out, al.order)
	return out
}

// Signer is a no-op signer: the demo never verifies signatures, it only
// needs Responder's call to Sign to succeed so it can mark Data as signed.
type Signer struct{}

func (Signer) Sign(d *host.Data) error { return nil }
