package feedback

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ndn-routing/linkcost/internal/linkcost/ports"
)

type recordingSubscriber struct {
	neighbor    string
	performance float64
	calls       int
}

func (r *recordingSubscriber) OnFeedback(neighbor string, performance float64, snap ports.NeighborSnapshot) {
	r.neighbor = neighbor
	r.performance = performance
	r.calls++
}

func TestPublisher_Publish_TooFewSamplesNotDelivered(t *testing.T) {
	p := New(DefaultWeights())
	sub := &recordingSubscriber{}
	p.SetSubscriber(sub)
	score, delivered := p.Publish("neighbor_A", ports.NeighborSnapshot{RTTSamplesMS: []uint32{10, 12}})
	require.False(t, delivered)
	require.Equal(t, float64(0), score)
	require.Equal(t, 0, sub.calls)
}

func TestPublisher_Publish_DeliversToSubscriber(t *testing.T) {
	p := New(DefaultWeights())
	sub := &recordingSubscriber{}
	p.SetSubscriber(sub)
	snap := ports.NeighborSnapshot{RTTSamplesMS: []uint32{10, 11, 9}}
	score, delivered := p.Publish("neighbor_A", snap)
	require.True(t, delivered)
	require.Equal(t, 1, sub.calls)
	require.Equal(t, "neighbor_A", sub.neighbor)
	require.Equal(t, score, sub.performance)
}

func TestPublisher_Publish_NoSubscriberStillScores(t *testing.T) {
	p := New(DefaultWeights())
	snap := ports.NeighborSnapshot{RTTSamplesMS: []uint32{300, 310, 290}}
	score, delivered := p.Publish("neighbor_A", snap)
	require.False(t, delivered)
	require.Greater(t, score, float64(0))
}

func TestPublisher_ClearSubscriber_StopsDelivery(t *testing.T) {
	p := New(DefaultWeights())
	sub := &recordingSubscriber{}
	p.SetSubscriber(sub)
	p.ClearSubscriber()
	_, delivered := p.Publish("neighbor_A", ports.NeighborSnapshot{RTTSamplesMS: []uint32{10, 11, 9}})
	require.False(t, delivered)
	require.Equal(t, 0, sub.calls)
}

func TestRttScore_Anchors(t *testing.T) {
	require.Equal(t, float64(0), rttScore([]uint32{5}))
	require.InDelta(t, 0.3, rttScore([]uint32{50}), 1e-9)
	require.InDelta(t, 0.6, rttScore([]uint32{100}), 1e-9)
	require.InDelta(t, 0.9, rttScore([]uint32{200}), 1e-9)
	require.Equal(t, float64(1), rttScore([]uint32{1000}))
	// halfway between 50 and 100 should interpolate to halfway between 0.3 and 0.6
	require.InDelta(t, 0.45, rttScore([]uint32{75}), 1e-9)
}

func TestStabilityScore_LowCVIsZero(t *testing.T) {
	require.Equal(t, float64(0), stabilityScore([]uint32{100, 100, 100, 100, 100}))
}

func TestStabilityScore_HighCVSaturatesNearOne(t *testing.T) {
	score := stabilityScore([]uint32{10, 200, 10, 200, 10})
	require.Greater(t, score, float64(0.4))
	require.LessOrEqual(t, score, float64(1))
}

func TestReliabilityScore_Steps(t *testing.T) {
	require.Equal(t, float64(0), reliabilityScore(0))
	require.Equal(t, 0.2, reliabilityScore(1))
	require.Equal(t, 0.2, reliabilityScore(2))
	require.Equal(t, 0.5, reliabilityScore(3))
	require.Equal(t, 0.5, reliabilityScore(5))
	require.Equal(t, 0.8, reliabilityScore(6))
}

func TestTrendScore_RequiresSixSamples(t *testing.T) {
	require.Equal(t, float64(0), trendScore([]uint32{1, 2, 3, 4, 5}))
}

func TestTrendScore_ImprovingLatencyIsZero(t *testing.T) {
	// last3 mean (90) is >10% below prior3 mean (110)
	require.Equal(t, float64(0), trendScore([]uint32{110, 110, 110, 90, 90, 90}))
}

func TestTrendScore_WorseningLatencyScoresHigh(t *testing.T) {
	// last3 mean (200) is >30% above prior3 mean (100)
	require.Equal(t, 0.8, trendScore([]uint32{100, 100, 100, 200, 200, 200}))
}
