package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ndn-routing/linkcost/internal/linkcost/host"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := New(Config{})
	s.Initialize([]host.AdjacentEntry{
		{Neighbor: "neighbor_A", OriginalCost: 10},
		{Neighbor: "neighbor_B", OriginalCost: 12},
	})
	return s
}

func TestStore_Initialize_CurrentEqualsOriginal(t *testing.T) {
	s := newTestStore(t)
	ls, ok := s.Get("neighbor_A")
	require.True(t, ok)
	require.Equal(t, StatusActive, ls.Status)
	require.Equal(t, uint64(10), ls.OriginalCost)
	require.Equal(t, float64(10), ls.CurrentCost)
	require.Equal(t, 0, ls.History.len())
}

func TestStore_Initialize_IsIdempotentPerNeighbor(t *testing.T) {
	s := newTestStore(t)
	s.Initialize([]host.AdjacentEntry{{Neighbor: "neighbor_A", OriginalCost: 999}})
	ls, _ := s.Get("neighbor_A")
	require.Equal(t, uint64(10), ls.OriginalCost, "original cost must never change after initialize")
}

func TestStore_RecordMeasurement_ClampsLowRTT(t *testing.T) {
	s := newTestStore(t)
	enough, err := s.RecordMeasurement("neighbor_A", 200*time.Microsecond)
	require.NoError(t, err)
	require.False(t, enough)
	ls, _ := s.Get("neighbor_A")
	require.Equal(t, uint32(1), ls.History.samples()[0].DurationMS)
}

func TestStore_RecordMeasurement_RejectsOversizedRTT(t *testing.T) {
	s := newTestStore(t)
	_, err := s.RecordMeasurement("neighbor_A", 6*time.Second)
	require.Error(t, err)
	ls, _ := s.Get("neighbor_A")
	require.Equal(t, 0, ls.History.len(), "oversized RTT must not be appended")
}

func TestStore_RecordMeasurement_IgnoredWhenInactive(t *testing.T) {
	s := newTestStore(t)
	s.OnStatusChange("neighbor_A", StatusInactive)
	enough, err := s.RecordMeasurement("neighbor_A", 50*time.Millisecond)
	require.NoError(t, err)
	require.False(t, enough)
	ls, _ := s.Get("neighbor_A")
	require.Equal(t, 0, ls.History.len())
}

func TestStore_RecordMeasurement_EnoughSamplesAtThree(t *testing.T) {
	s := newTestStore(t)
	var enough bool
	for i := 0; i < 3; i++ {
		var err error
		enough, err = s.RecordMeasurement("neighbor_A", 40*time.Millisecond)
		require.NoError(t, err)
	}
	require.True(t, enough)
}

func TestStore_History_BoundedAtCapacity(t *testing.T) {
	s := New(Config{HistoryCapacity: 10})
	s.Initialize([]host.AdjacentEntry{{Neighbor: "n", OriginalCost: 10}})
	for i := 0; i < 25; i++ {
		_, err := s.RecordMeasurement("n", 40*time.Millisecond)
		require.NoError(t, err)
	}
	ls, _ := s.Get("n")
	require.LessOrEqual(t, ls.History.len(), 10)
}

func TestStore_OnHelloTimeout_TransitionsAtRetryLimit(t *testing.T) {
	s := New(Config{RetryLimit: 5})
	s.Initialize([]host.AdjacentEntry{{Neighbor: "neighbor_A", OriginalCost: 10}})
	_, _ = s.RecordMeasurement("neighbor_A", 40*time.Millisecond)
	_, _ = s.RecordMeasurement("neighbor_A", 40*time.Millisecond)
	_, _ = s.RecordMeasurement("neighbor_A", 40*time.Millisecond)

	for i := uint32(1); i < 5; i++ {
		transitioned := s.OnHelloTimeout("neighbor_A", i)
		require.False(t, transitioned)
	}
	transitioned := s.OnHelloTimeout("neighbor_A", 5)
	require.True(t, transitioned)

	ls, _ := s.Get("neighbor_A")
	require.Equal(t, StatusInactive, ls.Status)
	require.Equal(t, 0, ls.History.len(), "history must be cleared on decline")
}

func TestStore_OnStatusChange_ReactivationResetsCost(t *testing.T) {
	s := newTestStore(t)
	_, _ = s.RecordMeasurement("neighbor_A", 400*time.Millisecond)
	ls, _ := s.Get("neighbor_A")
	ls.CurrentCost = 26 // simulate an engine-applied update

	s.OnStatusChange("neighbor_A", StatusInactive)
	require.Equal(t, 0, ls.History.len())

	s.OnStatusChange("neighbor_A", StatusActive)
	ls, _ = s.Get("neighbor_A")
	require.Equal(t, float64(ls.OriginalCost), ls.CurrentCost)
	require.Equal(t, uint32(0), ls.TimeoutCount)
}

func TestStore_RollbackAll_ResetsEveryNeighbor(t *testing.T) {
	s := newTestStore(t)
	ls, _ := s.Get("neighbor_A")
	ls.CurrentCost = 26
	s.RollbackAll()
	ls, _ = s.Get("neighbor_A")
	require.Equal(t, float64(10), ls.CurrentCost)
}

func TestStore_IsStable_RequiresActiveAndZeroTimeouts(t *testing.T) {
	s := newTestStore(t)
	require.True(t, s.IsStable("neighbor_A"))
	s.OnHelloTimeout("neighbor_A", 1)
	require.False(t, s.IsStable("neighbor_A"))
}

func TestStore_Snapshot_UnknownNeighbor(t *testing.T) {
	s := newTestStore(t)
	_, ok := s.Snapshot("ghost")
	require.False(t, ok)
}
