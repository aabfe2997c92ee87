package control

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/ndn-routing/linkcost/internal/linkcost/host"
	"github.com/ndn-routing/linkcost/internal/linkcost/lcerrors"
)

// HTTPHandler fronts Service with a small chi router, for local development
// and for the operator CLI to exercise without an NDN face. It never
// contains logic of its own beyond request decoding and status mapping; the
// Service methods are the only source of truth.
type HTTPHandler struct {
	svc    *Service
	logger *slog.Logger
}

// NewHTTPHandler constructs an HTTPHandler wrapping svc.
func NewHTTPHandler(svc *Service, logger *slog.Logger) *HTTPHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPHandler{svc: svc, logger: logger}
}

// Router builds the chi router: GET /neighbors, GET /neighbors/{id},
// POST /neighbors/{id}/metrics.
func (h *HTTPHandler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Get("/neighbors", h.handleList)
	r.Get("/neighbors/{id}", h.handleGet)
	r.Post("/neighbors/{id}/metrics", h.handleSet)
	return r
}

// handleList fans the per-neighbor snapshot reads out across RefreshAll's
// errgroup-bounded concurrency instead of running them sequentially, so
// link-metrics list's single round trip to this endpoint still does its
// actual work in parallel for routers with many neighbors.
func (h *HTTPHandler) handleList(w http.ResponseWriter, r *http.Request) {
	views, err := h.RefreshAll(r.Context(), h.svc.Neighbors(), 4)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *HTTPHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	view, err := h.svc.Get(host.NeighborID(id))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *HTTPHandler) handleSet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req SetMetricsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, lcerrors.ErrInvalidArgument)
		return
	}
	resp, err := h.svc.Set(host.NeighborID(id), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, lcerrors.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, lcerrors.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, lcerrors.ErrUnavailable):
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// RefreshAll concurrently fetches a snapshot view for every neighbor,
// bounded by limit in-flight at once. It exists for operator tooling that
// wants a consistent multi-neighbor read without N sequential round trips,
// mirroring the teacher's errgroup-bounded refresh loop.
func (h *HTTPHandler) RefreshAll(ctx context.Context, neighbors []host.NeighborID, limit int) ([]NeighborSnapshotView, error) {
	if limit <= 0 {
		limit = 4
	}
	results := make([]NeighborSnapshotView, len(neighbors))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, n := range neighbors {
		i, n := i, n
		g.Go(func() error {
			view, err := h.svc.Get(n)
			if err != nil {
				return err
			}
			results[i] = view
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
