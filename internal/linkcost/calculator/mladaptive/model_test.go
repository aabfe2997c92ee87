package mladaptive

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ndn-routing/linkcost/internal/linkcost/ports"
)

func TestCalculator_Adjust_BeforeFeedbackUsesFallbackWeights(t *testing.T) {
	c := New()
	snap := ports.NeighborSnapshot{OriginalCost: 10, RTTSamplesMS: []uint32{50, 55, 60, 65, 70, 75}}
	final, err := c.Adjust("neighbor_A", 10, snap)
	require.NoError(t, err)
	require.Greater(t, final, float64(0))
	require.False(t, c.hasFeedback)
}

func TestCalculator_Adjust_OutputNeverNonFinite(t *testing.T) {
	c := New()
	final, err := c.Adjust("neighbor_A", 10, ports.NeighborSnapshot{OriginalCost: 10})
	require.NoError(t, err)
	require.False(t, final != final) // NaN check
}

func TestCalculator_Adjust_ZeroOriginalCostFallsBackToCandidate(t *testing.T) {
	c := New()
	final, err := c.Adjust("neighbor_A", 7, ports.NeighborSnapshot{OriginalCost: 0})
	require.NoError(t, err)
	require.Equal(t, float64(7), final)
}

func TestCalculator_OnFeedback_NoPriorPredictionIsNoop(t *testing.T) {
	c := New()
	c.OnFeedback("neighbor_A", 0.5, ports.NeighborSnapshot{})
	require.False(t, c.hasFeedback)
}

func TestCalculator_OnFeedback_FirstFeedbackAlwaysTriggersUpdate(t *testing.T) {
	c := New()
	snap := ports.NeighborSnapshot{OriginalCost: 10, RTTSamplesMS: []uint32{10, 10, 10}}
	_, _ = c.Adjust("neighbor_A", 10, snap)
	c.OnFeedback("neighbor_A", 0.9, snap)
	require.True(t, c.hasFeedback)
}

func TestCalculator_TemporalTable_DefaultsToHalfWhenUnseen(t *testing.T) {
	c := New()
	require.Equal(t, 0.5, c.temporalFeature(3))
}

func TestCalculator_TemporalTable_UpdatesViaEMA(t *testing.T) {
	c := New()
	c.updateTemporal(10, 0.8)
	require.Equal(t, 0.8, c.temporal[10].mean)
	c.updateTemporal(10, 0.2)
	require.InDelta(t, 0.74, c.temporal[10].mean, 1e-9) // 0.1*0.2 + 0.9*0.8
}

// S6 — ML learning convergence: feed 200 synthetic feedback tuples toward a
// fixed target far from the model's initial prediction and confirm the EMA
// prediction error at the end is substantially lower than its value after
// the first 20 updates (the spec's convergence criterion: a drop of at
// least 50%).
func TestCalculator_OnFeedback_ConvergesOverManyUpdates(t *testing.T) {
	c := New()
	snap := ports.NeighborSnapshot{OriginalCost: 10, RTTSamplesMS: []uint32{40, 42, 45, 48, 50, 52}}
	const target = 0.95

	var emaAt20 float64
	for i := 1; i <= 200; i++ {
		_, _ = c.Adjust("neighbor_A", 10, snap)
		c.OnFeedback("neighbor_A", target, snap)
		if i == 20 {
			emaAt20 = c.EMAError()
		}
	}

	require.Greater(t, emaAt20, float64(0))
	require.LessOrEqual(t, c.EMAError(), emaAt20*0.5,
		"EMA error must drop by at least 50%% relative to its value after the first 20 updates")
}

func TestLoadIndicator_SecondDifferenceClamped(t *testing.T) {
	require.Equal(t, float64(0), loadIndicator([]uint32{1, 2}))
	v := loadIndicator([]uint32{0, 0, 100000})
	require.Equal(t, float64(1), v)
}

func TestSuccessRateProxy_AllFastIsOne(t *testing.T) {
	require.Equal(t, float64(1), successRateProxy([]uint32{10, 20, 30}))
}

func TestSuccessRateProxy_MixedIsFraction(t *testing.T) {
	require.InDelta(t, 0.5, successRateProxy([]uint32{10, 600}), 1e-9)
}
