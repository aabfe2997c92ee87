package control

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ndn-routing/linkcost/internal/linkcost/host"
)

func TestHTTPHandler_List_ReturnsAllNeighbors(t *testing.T) {
	svc, _ := newTestService(t)
	h := NewHTTPHandler(svc, nil)
	req := httptest.NewRequest(http.MethodGet, "/neighbors", nil)
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var views []NeighborSnapshotView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
	require.Len(t, views, 2)
}

func TestHTTPHandler_Get_UnknownNeighborReturns404(t *testing.T) {
	svc, _ := newTestService(t)
	h := NewHTTPHandler(svc, nil)
	req := httptest.NewRequest(http.MethodGet, "/neighbors/ghost", nil)
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHTTPHandler_Set_InvalidRangeReturns400(t *testing.T) {
	svc, _ := newTestService(t)
	h := NewHTTPHandler(svc, nil)
	body := strings.NewReader(`{"utilization": 1.5}`)
	req := httptest.NewRequest(http.MethodPost, "/neighbors/neighbor_A/metrics", body)
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHTTPHandler_Set_ValidRequestReturns200(t *testing.T) {
	svc, _ := newTestService(t)
	h := NewHTTPHandler(svc, nil)
	body := strings.NewReader(`{"utilization": 0.3}`)
	req := httptest.NewRequest(http.MethodPost, "/neighbors/neighbor_A/metrics", body)
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHTTPHandler_RefreshAll_FetchesEveryNeighbor(t *testing.T) {
	svc, _ := newTestService(t)
	h := NewHTTPHandler(svc, nil)
	views, err := h.RefreshAll(context.Background(), []host.NeighborID{"neighbor_A", "neighbor_B"}, 2)
	require.NoError(t, err)
	require.Len(t, views, 2)
}
