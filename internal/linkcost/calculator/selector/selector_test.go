package selector

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ndn-routing/linkcost/internal/linkcost/ports"
)

type fakeEngine struct {
	registered ports.Calculator
	cleared    int
}

func (f *fakeEngine) RegisterCalculator(c ports.Calculator) { f.registered = c }
func (f *fakeEngine) ClearCalculator()                      { f.registered = nil; f.cleared++ }

type fakeFeedback struct {
	subscriber ports.FeedbackSubscriber
	cleared    int
}

func (f *fakeFeedback) SetSubscriber(s ports.FeedbackSubscriber) { f.subscriber = s }
func (f *fakeFeedback) ClearSubscriber()                         { f.subscriber = nil; f.cleared++ }

func TestSelector_Activate_Standard_RegistersNothing(t *testing.T) {
	eng := &fakeEngine{}
	s := New(nil, eng, nil)
	s.Configure(Standard)
	s.Activate()
	require.Nil(t, eng.registered)
}

func TestSelector_Activate_LoadAware_RegistersCalculator(t *testing.T) {
	eng := &fakeEngine{}
	s := New(nil, eng, nil)
	s.Configure(LoadAware)
	s.Activate()
	require.NotNil(t, eng.registered)
}

func TestSelector_Activate_MLAdaptive_RegistersCalculatorAndSubscriber(t *testing.T) {
	eng := &fakeEngine{}
	fb := &fakeFeedback{}
	s := New(nil, eng, fb)
	s.Configure(MLAdaptive)
	s.Activate()
	require.NotNil(t, eng.registered)
	require.NotNil(t, fb.subscriber)
}

func TestSelector_Activate_IsIdempotent(t *testing.T) {
	eng := &fakeEngine{}
	s := New(nil, eng, nil)
	s.Configure(LoadAware)
	s.Activate()
	first := eng.registered
	s.Activate()
	require.Same(t, first, eng.registered)
}

func TestSelector_Activate_NilEngineFallsBackToStandard(t *testing.T) {
	s := New(nil, nil, nil)
	s.Configure(LoadAware)
	s.Activate()
	require.Equal(t, Standard, s.Mode())
}

func TestSelector_Activate_HyperbolicDryRun_NeverRegistersWithEngine(t *testing.T) {
	eng := &fakeEngine{}
	s := New(nil, eng, nil)
	s.Configure(HyperbolicDryRun)
	s.Activate()
	require.Nil(t, eng.registered)

	consumed := s.ObserveDryRun("neighbor_A", 10, ports.NeighborSnapshot{RTTSamplesMS: []uint32{80}})
	require.True(t, consumed, "HyperbolicDryRun mode must consume the observation")
}

func TestSelector_ObserveDryRun_NotConsumedOutsideDryRunMode(t *testing.T) {
	eng := &fakeEngine{}
	s := New(nil, eng, nil)
	s.Configure(Standard)
	s.Activate()

	consumed := s.ObserveDryRun("neighbor_A", 10, ports.NeighborSnapshot{})
	require.False(t, consumed)
}

func TestSelector_Teardown_ClearsEngineAndFeedback(t *testing.T) {
	eng := &fakeEngine{}
	fb := &fakeFeedback{}
	s := New(nil, eng, fb)
	s.Configure(MLAdaptive)
	s.Activate()
	s.Teardown()
	require.Nil(t, eng.registered)
	require.Nil(t, fb.subscriber)
	require.Equal(t, 1, eng.cleared)
	require.Equal(t, 1, fb.cleared)
}
