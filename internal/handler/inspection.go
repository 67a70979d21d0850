package handler

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/Arthur094/checkship/internal/auth"
	"github.com/Arthur094/checkship/internal/domain"
	"github.com/Arthur094/checkship/internal/service"
)

// maxPhotoUploadBytes bounds multipart photo uploads before decode.
const maxPhotoUploadBytes = 20 << 20

// InspectionHandler handles the inspection pipeline endpoints.
type InspectionHandler struct {
	inspections service.InspectionService
	logger      *slog.Logger
}

// NewInspectionHandler creates a new InspectionHandler.
func NewInspectionHandler(inspections service.InspectionService, logger *slog.Logger) *InspectionHandler {
	return &InspectionHandler{
		inspections: inspections,
		logger:      logger,
	}
}

// RegisterRoutes registers inspection routes with the provided guard.
// The handle travels in the request body rather than the path because
// offline inspections have no server id until submission.
func (h *InspectionHandler) RegisterRoutes(mux *http.ServeMux, requireDriver func(http.Handler) http.Handler) {
	mux.Handle("POST /api/inspections", requireDriver(http.HandlerFunc(h.Begin)))
	mux.Handle("GET /api/inspections/{id}", requireDriver(http.HandlerFunc(h.Get)))
	mux.Handle("POST /api/inspections/answers", requireDriver(http.HandlerFunc(h.RecordAnswer)))
	mux.Handle("POST /api/inspections/photos", requireDriver(http.HandlerFunc(h.AttachPhoto)))
	mux.Handle("POST /api/inspections/draft", requireDriver(http.HandlerFunc(h.SaveDraft)))
	mux.Handle("POST /api/inspections/submit", requireDriver(http.HandlerFunc(h.Submit)))
}

// Begin starts or resumes an inspection for a template and vehicle.
func (h *InspectionHandler) Begin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TemplateID uuid.UUID `json:"template_id"`
		VehicleID  uuid.UUID `json:"vehicle_id"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	if req.TemplateID == uuid.Nil || req.VehicleID == uuid.Nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("handler.Begin", "template_id and vehicle_id are required"))
		return
	}

	user := auth.GetUserFromRequest(r)
	result, err := h.inspections.Begin(r.Context(), req.TemplateID, req.VehicleID, user.ID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	status := http.StatusCreated
	if result.Resumed {
		status = http.StatusOK
	}
	writeJSON(w, status, result)
}

// Get returns one inspection by its server id.
func (h *InspectionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("handler.Get", "inspection id must be a valid UUID"))
		return
	}

	insp, err := h.inspections.GetByID(r.Context(), id)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, insp)
}

// RecordAnswer merges a partial answer update into one checklist item.
func (h *InspectionHandler) RecordAnswer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Handle service.Handle     `json:"handle"`
		ItemID string             `json:"item_id"`
		Patch  domain.AnswerPatch `json:"patch"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	if req.ItemID == "" {
		ErrorResponse(w, r, h.logger, domain.Invalid("handler.RecordAnswer", "item_id is required"))
		return
	}

	insp, err := h.inspections.RecordAnswer(r.Context(), h.handle(r, req.Handle), req.ItemID, req.Patch)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, insp)
}

// AttachPhoto accepts a multipart photo upload for one item. Form fields
// carry the handle; the file part is named "photo".
func (h *InspectionHandler) AttachPhoto(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxPhotoUploadBytes)
	if err := r.ParseMultipartForm(maxPhotoUploadBytes); err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("handler.AttachPhoto", "expected a multipart photo upload"))
		return
	}

	handle, err := parseHandleForm(r)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	itemID := r.FormValue("item_id")
	if itemID == "" {
		ErrorResponse(w, r, h.logger, domain.Invalid("handler.AttachPhoto", "item_id is required"))
		return
	}

	file, header, err := r.FormFile("photo")
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("handler.AttachPhoto", "a photo file part is required"))
		return
	}
	defer file.Close()

	insp, err := h.inspections.AttachPhoto(r.Context(), handle, itemID, header.Filename, file)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, insp)
}

// SaveDraft persists the full response set without validation.
func (h *InspectionHandler) SaveDraft(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Handle    service.Handle     `json:"handle"`
		Responses domain.ResponseSet `json:"responses"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	if err := h.inspections.SaveDraft(r.Context(), h.handle(r, req.Handle), req.Responses); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

// Submit validates, scores and finalizes the inspection.
func (h *InspectionHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Handle             service.Handle `json:"handle"`
		DriverSignatureURL string         `json:"driver_signature_url,omitempty"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	result, err := h.inspections.Submit(r.Context(), h.handle(r, req.Handle), service.SubmitOptions{
		DriverSignatureURL: req.DriverSignatureURL,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	if result.NeedsSignature {
		writeJSON(w, http.StatusAccepted, result)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handle stamps the authenticated caller onto the client-supplied handle so
// one driver cannot act on another's inspection.
func (h *InspectionHandler) handle(r *http.Request, in service.Handle) service.Handle {
	if user := auth.GetUserFromRequest(r); user != nil {
		in.InspectorID = user.ID
	}
	return in
}

// parseHandleForm reads a handle from multipart form fields.
func parseHandleForm(r *http.Request) (service.Handle, error) {
	const op = "handler.parseHandleForm"

	var handle service.Handle
	templateID, err := uuid.Parse(r.FormValue("template_id"))
	if err != nil {
		return handle, domain.Invalid(op, "template_id must be a valid UUID")
	}
	vehicleID, err := uuid.Parse(r.FormValue("vehicle_id"))
	if err != nil {
		return handle, domain.Invalid(op, "vehicle_id must be a valid UUID")
	}

	handle.TemplateID = templateID
	handle.VehicleID = vehicleID
	if raw := r.FormValue("inspection_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return handle, domain.Invalid(op, "inspection_id must be a valid UUID")
		}
		handle.ID = id
	}
	handle.Offline = r.FormValue("offline") == "true"
	if user := auth.GetUserFromRequest(r); user != nil {
		handle.InspectorID = user.ID
	}
	return handle, nil
}
