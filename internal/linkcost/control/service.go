// Package control implements the Metrics Control Channel: the operator and
// host-peer facing surface for supplying externally measured link
// properties and previewing (never applying) a multi-dimensional cost.
// Every operation here is a pure function over a snapshot; the HTTP
// transport (http.go) is a thin adapter over this logic, the way the
// teacher's api handlers front their internal query functions. No NDN-name
// handler for these operations is registered on a host.Face.
package control

import (
	"math"

	"github.com/ndn-routing/linkcost/internal/linkcost/host"
	"github.com/ndn-routing/linkcost/internal/linkcost/lcerrors"
	"github.com/ndn-routing/linkcost/internal/linkcost/ports"
	"github.com/ndn-routing/linkcost/internal/linkcost/store"
)

// Weights are the default preview-cost composite weights from spec
// section 4.4. They sum to 1.
type Weights struct {
	RTT       float64
	Bandwidth float64
	Loss      float64
	Spectrum  float64
}

// DefaultWeights returns the spec-mandated defaults (0.4/0.3/0.2/0.1).
func DefaultWeights() Weights {
	return Weights{RTT: 0.4, Bandwidth: 0.3, Loss: 0.2, Spectrum: 0.1}
}

// SetMetricsRequest carries the optional externally measured properties for
// one neighbor. A nil field leaves that property untouched in the store.
type SetMetricsRequest struct {
	BandwidthMbps *float64
	Utilization   *float64
	PacketLoss    *float64
	SpectrumDBM   *float64
}

// SetMetricsResponse echoes the values actually applied.
type SetMetricsResponse struct {
	Neighbor string
	Applied  SetMetricsRequest
}

// NeighborSnapshotView is the operator-facing view returned by Get and List:
// the store snapshot plus the diagnostic preview cost.
type NeighborSnapshotView struct {
	Neighbor     string
	Status       string
	OriginalCost uint64
	CurrentCost  float64
	PreviewCost  uint64
	SampleCount  int
	TimeoutCount uint32
}

// neighborStore is the subset of *store.Store the control service needs.
// Kept as an interface so tests can supply a fake without constructing a
// full Store.
type neighborStore interface {
	Get(n host.NeighborID) (*store.LinkState, bool)
	Neighbors() []host.NeighborID
	Snapshot(n host.NeighborID) (ports.NeighborSnapshot, bool)
	ApplyExternalMetrics(n host.NeighborID, m store.ExternalMetrics) error
}

// Service implements the set/get/list operations of spec section 4.4.
type Service struct {
	store   neighborStore
	weights Weights
}

// New constructs a Service bound to st, using DefaultWeights.
func New(st neighborStore) *Service {
	return &Service{store: st, weights: DefaultWeights()}
}

// WithWeights overrides the composite preview weights.
func (s *Service) WithWeights(w Weights) *Service {
	s.weights = w
	return s
}

func validateUnitInterval(name string, v *float64) error {
	if v == nil {
		return nil
	}
	if *v < 0 || *v > 1 {
		return lcerrors.ErrInvalidArgument
	}
	return nil
}

func validateSpectrum(v *float64) error {
	if v == nil {
		return nil
	}
	if *v < -100 || *v > -20 {
		return lcerrors.ErrInvalidArgument
	}
	return nil
}

// Set validates req and, if valid, upserts the neighbor's external metrics.
func (s *Service) Set(n host.NeighborID, req SetMetricsRequest) (SetMetricsResponse, error) {
	if err := validateUnitInterval("utilization", req.Utilization); err != nil {
		return SetMetricsResponse{}, err
	}
	if err := validateUnitInterval("packet_loss", req.PacketLoss); err != nil {
		return SetMetricsResponse{}, err
	}
	if err := validateSpectrum(req.SpectrumDBM); err != nil {
		return SetMetricsResponse{}, err
	}
	if _, ok := s.store.Get(n); !ok {
		return SetMetricsResponse{}, lcerrors.ErrNotFound
	}

	err := s.store.ApplyExternalMetrics(n, store.ExternalMetrics{
		BandwidthMbps: req.BandwidthMbps,
		Utilization:   req.Utilization,
		PacketLoss:    req.PacketLoss,
		SpectrumDBM:   req.SpectrumDBM,
	})
	if err != nil {
		return SetMetricsResponse{}, err
	}
	return SetMetricsResponse{Neighbor: n.String(), Applied: req}, nil
}

// Get returns the snapshot and preview cost for n.
func (s *Service) Get(n host.NeighborID) (NeighborSnapshotView, error) {
	ls, ok := s.store.Get(n)
	if !ok {
		return NeighborSnapshotView{}, lcerrors.ErrNotFound
	}
	snap, _ := s.store.Snapshot(n)
	return s.view(n, ls, snap), nil
}

// Neighbors enumerates every neighbor known to the store, in store order.
// Used by HTTPHandler.handleList to drive RefreshAll's bounded-concurrency
// fan-out instead of a sequential List call.
func (s *Service) Neighbors() []host.NeighborID {
	return s.store.Neighbors()
}

// List enumerates every neighbor's snapshot view, in store order.
func (s *Service) List() []NeighborSnapshotView {
	neighbors := s.store.Neighbors()
	out := make([]NeighborSnapshotView, 0, len(neighbors))
	for _, n := range neighbors {
		ls, ok := s.store.Get(n)
		if !ok {
			continue
		}
		snap, _ := s.store.Snapshot(n)
		out = append(out, s.view(n, ls, snap))
	}
	return out
}

func (s *Service) view(n host.NeighborID, ls *store.LinkState, snap ports.NeighborSnapshot) NeighborSnapshotView {
	return NeighborSnapshotView{
		Neighbor:     n.String(),
		Status:       ls.Status.String(),
		OriginalCost: ls.OriginalCost,
		CurrentCost:  ls.CurrentCost,
		PreviewCost:  PreviewCost(ls.OriginalCost, snap, s.weights),
		SampleCount:  len(snap.RTTSamplesMS),
		TimeoutCount: snap.TimeoutCount,
	}
}

// PreviewCost implements the diagnostic-only multi-dimensional cost formula
// of spec section 4.4. It is never applied to routing; only the engine's
// RTT-based cost and registered calculators mutate the published cost.
func PreviewCost(originalCost uint64, snap ports.NeighborSnapshot, w Weights) uint64 {
	composite := w.RTT*rttFactor(snap.RTTSamplesMS) +
		w.Bandwidth*bandwidthFactor(snap.Utilization) +
		w.Loss*lossFactor(snap.PacketLoss) +
		w.Spectrum*spectrumFactor(snap.SpectrumDBM)
	return uint64(math.Round(float64(originalCost) * composite))
}

func meanU32(samples []uint32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s)
	}
	return sum / float64(len(samples))
}

func rttFactor(samples []uint32) float64 {
	if len(samples) == 0 {
		return 1.1 // no RTT data: treated as 20ms
	}
	avg := meanU32(samples)
	switch {
	case avg <= 0:
		return 1.0
	case avg >= 200:
		return 2.0
	default:
		return 1 + avg/200
	}
}

func bandwidthFactor(util *float64) float64 {
	if util == nil {
		return 1.3 // absent: treated as 0.30 utilization
	}
	u := *util
	switch {
	case u <= 0:
		return 1.0
	case u >= 1:
		return 2.0
	default:
		return 1 + u
	}
}

func lossFactor(loss *float64) float64 {
	if loss == nil {
		return 1.02 // absent: treated as 0.01 loss
	}
	l := *loss
	switch {
	case l <= 0:
		return 1.0
	case l >= 0.5:
		return 2.0
	default:
		return 1 + 2*l
	}
}

func spectrumFactor(strength *float64) float64 {
	if strength == nil {
		return 1.4 // absent: treated as -50 dBm
	}
	v := *strength
	switch {
	case v >= -30:
		return 1.0
	case v <= -80:
		return 2.0
	default:
		return 1 + (-30-v)/50
	}
}
