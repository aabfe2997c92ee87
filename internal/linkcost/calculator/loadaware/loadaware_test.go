package loadaware

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ndn-routing/linkcost/internal/linkcost/ports"
)

func TestCalculator_Adjust_NeverBelowOriginalCost(t *testing.T) {
	c := New()
	snap := ports.NeighborSnapshot{OriginalCost: 10, RTTSamplesMS: []uint32{1}}
	adjusted, err := c.Adjust("neighbor_A", 5, snap)
	require.NoError(t, err)
	require.GreaterOrEqual(t, adjusted, float64(10))
}

func TestCalculator_Adjust_HighRTTIncreasesCost(t *testing.T) {
	c := New()
	low := ports.NeighborSnapshot{OriginalCost: 10, RTTSamplesMS: []uint32{10}}
	high := ports.NeighborSnapshot{OriginalCost: 10, RTTSamplesMS: []uint32{300}}

	lowAdjusted, _ := c.Adjust("neighbor_A", 10, low)
	highAdjusted, _ := c.Adjust("neighbor_B", 10, high)

	require.Greater(t, highAdjusted, lowAdjusted)
}

func TestCalculator_Adjust_UtilizationIncreasesCost(t *testing.T) {
	c := New()
	util := 0.9
	snap := ports.NeighborSnapshot{OriginalCost: 10, Utilization: &util}
	adjusted, _ := c.Adjust("neighbor_A", 10, snap)
	require.Greater(t, adjusted, float64(10))
}

func TestCalculator_Adjust_HistoryBoundedAtCapacity(t *testing.T) {
	c := New()
	for i := 0; i < 20; i++ {
		snap := ports.NeighborSnapshot{OriginalCost: 10, RTTSamplesMS: []uint32{uint32(i)}}
		_, _ = c.Adjust("neighbor_A", 10, snap)
	}
	require.LessOrEqual(t, len(c.history["neighbor_A"]), DefaultHistoryCapacity)
}
