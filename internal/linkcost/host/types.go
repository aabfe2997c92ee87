// Package host defines the boundary between the link cost subsystem and the
// routing daemon that hosts it: the adjacency list, the link-state database
// (LSDB), and the NDN face. None of these are implemented here — the wire
// codec, signing, and forwarding plane all belong to the host daemon. The
// subsystem only ever reaches the outside world through these interfaces.
package host

import (
	"context"
	"strings"
	"time"
)

// Name is an NDN-style hierarchical name. Equality is structural (string
// comparison of the full component path), matching spec's requirement that
// neighbor identifiers hash and compare structurally.
type Name string

// NeighborID identifies an adjacency. It is just a Name, but kept as a
// distinct type so the link-cost packages never confuse a neighbor name
// with an arbitrary interest/data name.
type NeighborID Name

func (n NeighborID) String() string { return string(n) }

// Child appends a path component, e.g. Name("/nlsr/site/rtr").Child("link-cost", "rtt-probe").
func (n Name) Child(components ...string) Name {
	b := strings.Builder{}
	b.WriteString(string(n))
	for _, c := range components {
		if !strings.HasSuffix(b.String(), "/") {
			b.WriteByte('/')
		}
		b.WriteString(c)
	}
	return Name(b.String())
}

// Interest is a minimal stand-in for an NDN Interest packet: enough of the
// shape (name + lifetime) for the subsystem's scheduling logic to reason
// about, without reimplementing the wire format.
type Interest struct {
	Name     Name
	Lifetime time.Duration
}

// Data is a minimal stand-in for a signed NDN Data packet.
type Data struct {
	Name            Name
	FreshnessPeriod time.Duration
	Payload         []byte
	Signed          bool
}

// Signer signs outgoing Data packets. The host daemon owns key material;
// this subsystem never touches a private key directly.
type Signer interface {
	Sign(d *Data) error
}

// Face is the subsystem's view of the host's NDN network layer: it can
// express an Interest and wait for the matching Data (or an error on nack /
// timeout), and it can register a handler for incoming Interests matching a
// name prefix.
type Face interface {
	// ExpressInterest sends i and blocks until a Data arrives, the
	// interest's lifetime elapses, or ctx is cancelled. A network or
	// protocol-level rejection (nack) is returned as an error satisfying
	// lcerrors.IsTransient.
	ExpressInterest(ctx context.Context, i Interest) (*Data, error)

	// SetInterestFilter registers handler to answer Interests whose name
	// has prefix. Only one handler may be registered per prefix.
	SetInterestFilter(prefix Name, handler func(Interest) Data)
}

// AdjacentEntry is the host's view of one configured adjacency: everything
// the subsystem is allowed to read, plus the one field (link cost) it is
// allowed to mutate. The host re-reads LinkCost on every LSA build; nothing
// else about the adjacency is ever touched by this subsystem.
type AdjacentEntry struct {
	Neighbor NeighborID
	// OriginalCost is the cost declared in static configuration.
	OriginalCost uint64
	// LinkCost is the mutable, advisory cost slot the host re-reads on each
	// adjacency LSA build.
	LinkCost uint64
}

// AdjacencyList is the host's configured set of neighbors. The subsystem
// never adds or removes entries; it only mutates LinkCost on the entry
// returned by FindAdjacent.
type AdjacencyList interface {
	// FindAdjacent returns the entry for n, or ok=false if n is not a
	// configured adjacency.
	FindAdjacent(n NeighborID) (entry *AdjacentEntry, ok bool)
	// SetLinkCost writes back the new advisory cost for n. It is a no-op
	// (and returns false) if n is not a configured adjacency.
	SetLinkCost(n NeighborID, cost uint64) bool
	// Neighbors enumerates every configured adjacency, in the order the
	// host's configuration declared them.
	Neighbors() []NeighborID
}

// HelloStatus mirrors the two-state neighbor liveness variant the host's
// hello subsystem drives (spec section 3's NeighborStatus). It is declared
// here, independent of the link-state store's own status type, so this
// boundary package stays free of a dependency on package store.
type HelloStatus int

const (
	HelloInactive HelloStatus = iota
	HelloActive
)

func (s HelloStatus) String() string {
	if s == HelloActive {
		return "ACTIVE"
	}
	return "INACTIVE"
}

// HelloSink is what the host daemon's hello subsystem calls into, per spec
// section 6's "Inbound hello signals (from host)". The link-cost
// subsystem is the only implementation; the host never reaches into the
// subsystem's internals any other way.
type HelloSink interface {
	// OnHelloSent notifies that a hello Interest was just sent to n.
	OnHelloSent(n NeighborID)
	// OnHelloData notifies that hello Data was received from n.
	OnHelloData(n NeighborID)
	// OnHelloTimeout notifies that n's hello has timed out count times
	// consecutively (spec section 4.1): only this path may transition a
	// neighbor to INACTIVE on a retry-limit breach.
	OnHelloTimeout(n NeighborID, count uint32)
	// OnStatusChange notifies that the hello subsystem (or its own timeout
	// accounting) has moved n to status (spec section 4.1).
	OnStatusChange(n NeighborID, status HelloStatus)
}

// LSDB is the host's link-state database. The subsystem never reads or
// writes LSAs directly; it only asks the LSDB to do so on its behalf.
type LSDB interface {
	// ScheduleAdjLSABuild asks the host to rebuild this router's adjacency
	// LSA from the current adjacency list (including any updated link
	// costs). Calls are coalesced by the host.
	ScheduleAdjLSABuild()
	// ScheduleRoutingTableCalculation asks the host to re-run its
	// Dijkstra-style routing table calculation.
	ScheduleRoutingTableCalculation()
}
