package control

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ndn-routing/linkcost/internal/linkcost/host"
	"github.com/ndn-routing/linkcost/internal/linkcost/lcerrors"
	"github.com/ndn-routing/linkcost/internal/linkcost/ports"
	"github.com/ndn-routing/linkcost/internal/linkcost/store"
)

func floatPtr(v float64) *float64 { return &v }

func newTestService(t *testing.T) (*Service, *store.Store) {
	t.Helper()
	st := store.New(store.Config{})
	st.Initialize([]host.AdjacentEntry{
		{Neighbor: "neighbor_A", OriginalCost: 10},
		{Neighbor: "neighbor_B", OriginalCost: 20},
	})
	return New(st), st
}

func TestService_Set_UnknownNeighborIsNotFound(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Set("ghost", SetMetricsRequest{})
	require.ErrorIs(t, err, lcerrors.ErrNotFound)
}

func TestService_Set_OutOfRangeUtilizationIsInvalidArgument(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Set("neighbor_A", SetMetricsRequest{Utilization: floatPtr(1.5)})
	require.ErrorIs(t, err, lcerrors.ErrInvalidArgument)
}

func TestService_Set_OutOfRangePacketLossIsInvalidArgument(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Set("neighbor_A", SetMetricsRequest{PacketLoss: floatPtr(-0.1)})
	require.ErrorIs(t, err, lcerrors.ErrInvalidArgument)
}

func TestService_Set_OutOfRangeSpectrumIsInvalidArgument(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Set("neighbor_A", SetMetricsRequest{SpectrumDBM: floatPtr(-10)})
	require.ErrorIs(t, err, lcerrors.ErrInvalidArgument)
}

func TestService_Set_ValidRequestEchoesAppliedValues(t *testing.T) {
	svc, _ := newTestService(t)
	resp, err := svc.Set("neighbor_A", SetMetricsRequest{
		Utilization: floatPtr(0.4),
		PacketLoss:  floatPtr(0.01),
		SpectrumDBM: floatPtr(-45),
	})
	require.NoError(t, err)
	require.Equal(t, "neighbor_A", resp.Neighbor)
	require.Equal(t, 0.4, *resp.Applied.Utilization)
}

func TestService_Get_UnknownNeighborIsNotFound(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Get("ghost")
	require.ErrorIs(t, err, lcerrors.ErrNotFound)
}

func TestService_Get_ReturnsPreviewCostWithNoData(t *testing.T) {
	svc, _ := newTestService(t)
	view, err := svc.Get("neighbor_A")
	require.NoError(t, err)
	// all four factors fall back to their "absent" defaults:
	// composite = 0.4*1.1 + 0.3*1.3 + 0.2*1.02 + 0.1*1.4 = 1.174
	require.Equal(t, uint64(12), view.PreviewCost)
}

func TestService_List_EnumeratesAllNeighbors(t *testing.T) {
	svc, _ := newTestService(t)
	views := svc.List()
	require.Len(t, views, 2)
}

func TestPreviewCost_S4Scenario(t *testing.T) {
	// S4 from spec section 8: original_cost=12, no RTT data, util=0.65,
	// packet_loss=0.02, spectrum=-45dBm previews to 15.
	snap := ports.NeighborSnapshot{
		Utilization: floatPtr(0.65),
		PacketLoss:  floatPtr(0.02),
		SpectrumDBM: floatPtr(-45),
	}
	got := PreviewCost(12, snap, DefaultWeights())
	require.Equal(t, uint64(15), got)
}
