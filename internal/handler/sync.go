package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/Arthur094/checkship/internal/auth"
	"github.com/Arthur094/checkship/internal/domain"
	"github.com/Arthur094/checkship/internal/service"
	"github.com/Arthur094/checkship/internal/synccache"
)

// SyncHandler exposes the offline cache to clients. Reads are served from
// the cache only, so they answer even when the database is down.
type SyncHandler struct {
	sync   service.SyncService
	cache  *synccache.Cache
	logger *slog.Logger
}

// NewSyncHandler creates a new SyncHandler.
func NewSyncHandler(sync service.SyncService, cache *synccache.Cache, logger *slog.Logger) *SyncHandler {
	return &SyncHandler{
		sync:   sync,
		cache:  cache,
		logger: logger,
	}
}

// RegisterRoutes registers sync routes behind the user guard.
func (h *SyncHandler) RegisterRoutes(mux *http.ServeMux, requireUser func(http.Handler) http.Handler) {
	mux.Handle("POST /api/sync/refresh", requireUser(http.HandlerFunc(h.Refresh)))
	mux.Handle("GET /api/sync/status", requireUser(http.HandlerFunc(h.Status)))
	mux.Handle("GET /api/sync/vehicles", requireUser(http.HandlerFunc(h.Vehicles)))
	mux.Handle("GET /api/sync/templates", requireUser(http.HandlerFunc(h.Templates)))
	mux.Handle("GET /api/sync/inspections", requireUser(http.HandlerFunc(h.RecentInspections)))
}

// Refresh replaces the cached reference data for the caller.
func (h *SyncHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromRequest(r)
	if err := h.sync.Refresh(r.Context(), user.ID); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	status, err := h.sync.Status(r.Context())
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// Status reports cache freshness and local queue depths.
func (h *SyncHandler) Status(w http.ResponseWriter, r *http.Request) {
	status, err := h.sync.Status(r.Context())
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// Vehicles returns the cached active vehicle list. A cache that was never
// refreshed is an empty fleet, not a server fault.
func (h *SyncHandler) Vehicles(w http.ResponseWriter, r *http.Request) {
	vehicles, err := h.cache.Vehicles(r.Context())
	if err != nil && !errors.Is(err, synccache.ErrMiss) {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	if vehicles == nil {
		vehicles = []domain.Vehicle{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"vehicles": vehicles})
}

// Templates returns the cached assigned template versions.
func (h *SyncHandler) Templates(w http.ResponseWriter, r *http.Request) {
	templates, err := h.cache.Templates(r.Context())
	if err != nil && !errors.Is(err, synccache.ErrMiss) {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	if templates == nil {
		templates = []domain.Template{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"templates": templates})
}

// RecentInspections returns the cached recent inspection history.
func (h *SyncHandler) RecentInspections(w http.ResponseWriter, r *http.Request) {
	inspections, err := h.cache.RecentInspections(r.Context())
	if err != nil && !errors.Is(err, synccache.ErrMiss) {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	if inspections == nil {
		inspections = []domain.Inspection{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"inspections": inspections})
}
