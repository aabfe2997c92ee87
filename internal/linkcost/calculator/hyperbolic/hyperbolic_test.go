package hyperbolic

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ndn-routing/linkcost/internal/linkcost/ports"
)

func TestCalculator_Adjust_NoSamplesReturnsCandidateUnchanged(t *testing.T) {
	c := New()
	adjusted, err := c.Adjust("neighbor_A", 10, ports.NeighborSnapshot{})
	require.NoError(t, err)
	require.Equal(t, float64(10), adjusted)
}

func TestCalculator_Adjust_HigherRTTBoostsMore(t *testing.T) {
	c := New()
	low, _ := c.Adjust("neighbor_A", 10, ports.NeighborSnapshot{RTTSamplesMS: []uint32{10}})
	high, _ := c.Adjust("neighbor_A", 10, ports.NeighborSnapshot{RTTSamplesMS: []uint32{500}})
	require.Greater(t, high, low)
	require.GreaterOrEqual(t, low, float64(10))
}

func TestCalculator_Adjust_SaturatesNearDoubleCandidate(t *testing.T) {
	c := New()
	adjusted, _ := c.Adjust("neighbor_A", 10, ports.NeighborSnapshot{RTTSamplesMS: []uint32{10000}})
	require.Less(t, adjusted, float64(21))
}

func TestDryRun_Observe_DoesNotPanic(t *testing.T) {
	d := NewDryRun()
	d.Observe("neighbor_A", 10, ports.NeighborSnapshot{RTTSamplesMS: []uint32{80}})
}
