package demohost

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ndn-routing/linkcost/internal/linkcost/host"
)

func TestFaceExpressInterestSimulatesRTT(t *testing.T) {
	profiles := []NeighborProfile{
		{Neighbor: "/rtr/a", OriginalCost: 10, BaseRTT: 5 * time.Millisecond},
	}
	f := NewFace(nil, profiles)

	start := time.Now()
	data, err := f.ExpressInterest(context.Background(), host.Interest{
		Name:     host.Name("/rtr/a").Child("link-cost", "rtt-probe", "1"),
		Lifetime: time.Second,
	})
	elapsed := time.Since(start)

	require.NoError(t, err)
	require.NotNil(t, data)
	require.True(t, data.Signed)
	require.GreaterOrEqual(t, elapsed, 5*time.Millisecond)
}

func TestFaceExpressInterestSimulatesLoss(t *testing.T) {
	profiles := []NeighborProfile{
		{Neighbor: "/rtr/a", OriginalCost: 10, LossRate: 1.0},
	}
	f := NewFace(nil, profiles)

	_, err := f.ExpressInterest(context.Background(), host.Interest{
		Name:     host.Name("/rtr/a").Child("link-cost", "rtt-probe", "1"),
		Lifetime: 10 * time.Millisecond,
	})
	require.Error(t, err)
}

func TestAdjacencyListSetLinkCostOnlyMutatesLinkCost(t *testing.T) {
	al := NewAdjacencyList([]NeighborProfile{{Neighbor: "/rtr/a", OriginalCost: 12}})

	entry, ok := al.FindAdjacent("/rtr/a")
	require.True(t, ok)
	require.EqualValues(t, 12, entry.OriginalCost)
	require.EqualValues(t, 12, entry.LinkCost)

	require.True(t, al.SetLinkCost("/rtr/a", 30))
	entry, _ = al.FindAdjacent("/rtr/a")
	require.EqualValues(t, 12, entry.OriginalCost)
	require.EqualValues(t, 30, entry.LinkCost)

	require.False(t, al.SetLinkCost("/rtr/unknown", 1))
}

func TestLSDBCountsRequests(t *testing.T) {
	l := NewLSDB(nil)
	l.ScheduleAdjLSABuild()
	l.ScheduleAdjLSABuild()
	l.ScheduleRoutingTableCalculation()
	require.Equal(t, 2, l.rebuilds)
	require.Equal(t, 1, l.recalculations)
}

func TestNeighborFromProbeName(t *testing.T) {
	n := neighborFromProbeName(host.Name("/rtr/a").Child("link-cost", "rtt-probe", "42"))
	require.Equal(t, host.NeighborID("/rtr/a"), n)
}
