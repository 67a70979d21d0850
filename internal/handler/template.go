package handler

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/Arthur094/checkship/internal/domain"
	"github.com/Arthur094/checkship/internal/service"
)

// TemplateHandler handles template management endpoints.
type TemplateHandler struct {
	templates service.TemplateService
	logger    *slog.Logger
}

// NewTemplateHandler creates a new TemplateHandler.
func NewTemplateHandler(templates service.TemplateService, logger *slog.Logger) *TemplateHandler {
	return &TemplateHandler{
		templates: templates,
		logger:    logger,
	}
}

// RegisterRoutes registers template routes. Reads are open to any
// authenticated user; writes require the manager role.
func (h *TemplateHandler) RegisterRoutes(mux *http.ServeMux, requireUser, requireManager func(http.Handler) http.Handler) {
	mux.Handle("GET /api/templates", requireUser(http.HandlerFunc(h.List)))
	mux.Handle("GET /api/templates/{id}", requireUser(http.HandlerFunc(h.Get)))
	mux.Handle("POST /api/templates", requireManager(http.HandlerFunc(h.Create)))
	mux.Handle("PUT /api/templates/{id}", requireManager(http.HandlerFunc(h.Update)))
	mux.Handle("POST /api/templates/{id}/publish", requireManager(http.HandlerFunc(h.Publish)))
	mux.Handle("POST /api/template-groups/{groupID}/versions", requireManager(http.HandlerFunc(h.NewVersion)))
}

// List returns the currently published template versions.
func (h *TemplateHandler) List(w http.ResponseWriter, r *http.Request) {
	templates, err := h.templates.ListPublished(r.Context())
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"templates": templates})
}

// Get returns one template version.
func (h *TemplateHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("handler.Get", "template id must be a valid UUID"))
		return
	}

	tpl, err := h.templates.GetByID(r.Context(), id)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, tpl)
}

// Create stores a new template group as a draft version 1.
func (h *TemplateHandler) Create(w http.ResponseWriter, r *http.Request) {
	var tpl domain.Template
	if err := decodeJSON(w, r, &tpl); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	created, err := h.templates.Create(r.Context(), tpl)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// Update rewrites a draft template version.
func (h *TemplateHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("handler.Update", "template id must be a valid UUID"))
		return
	}

	var tpl domain.Template
	if err := decodeJSON(w, r, &tpl); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	tpl.ID = id

	if err := h.templates.Update(r.Context(), tpl); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

// Publish promotes a draft to the group's published version.
func (h *TemplateHandler) Publish(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("handler.Publish", "template id must be a valid UUID"))
		return
	}

	if err := h.templates.Publish(r.Context(), id); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

// NewVersion clones the group's latest version into a fresh draft.
func (h *TemplateHandler) NewVersion(w http.ResponseWriter, r *http.Request) {
	groupID, err := uuid.Parse(r.PathValue("groupID"))
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("handler.NewVersion", "group id must be a valid UUID"))
		return
	}

	tpl, err := h.templates.NewVersion(r.Context(), groupID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, tpl)
}
