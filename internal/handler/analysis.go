package handler

import (
	"bytes"
	"context"
	"encoding/base64"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/Arthur094/checkship/internal/auth"
	"github.com/Arthur094/checkship/internal/domain"
	"github.com/Arthur094/checkship/internal/service"
)

// AnalysisHandler handles the approval workflow endpoints.
type AnalysisHandler struct {
	analysis service.AnalysisService
	logger   *slog.Logger
}

// NewAnalysisHandler creates a new AnalysisHandler.
func NewAnalysisHandler(analysis service.AnalysisService, logger *slog.Logger) *AnalysisHandler {
	return &AnalysisHandler{
		analysis: analysis,
		logger:   logger,
	}
}

// RegisterRoutes registers analysis routes behind the analyst guard.
func (h *AnalysisHandler) RegisterRoutes(mux *http.ServeMux, requireAnalyst func(http.Handler) http.Handler) {
	mux.Handle("GET /api/analysis/pending", requireAnalyst(http.HandlerFunc(h.ListPending)))
	mux.Handle("POST /api/inspections/{id}/approve", requireAnalyst(http.HandlerFunc(h.Approve)))
	mux.Handle("POST /api/inspections/{id}/reject", requireAnalyst(http.HandlerFunc(h.Reject)))
}

// ListPending returns inspections awaiting review, oldest first.
func (h *AnalysisHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	pending, err := h.analysis.ListPending(r.Context())
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"inspections": pending})
}

// Approve grants the inspection's current approval step.
func (h *AnalysisHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.analysis.Approve)
}

// Reject rejects the inspection. A non-empty reason is required.
func (h *AnalysisHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.analysis.Reject)
}

func (h *AnalysisHandler) decide(
	w http.ResponseWriter,
	r *http.Request,
	apply func(ctx context.Context, inspectionID uuid.UUID, req service.ApprovalRequest) (*domain.ApprovalOutcome, error),
) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("handler.decide", "inspection id must be a valid UUID"))
		return
	}

	var req struct {
		Reason string `json:"reason,omitempty"`

		// Signature is the analyst signature image, base64-encoded.
		Signature string `json:"signature,omitempty"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	approval := service.ApprovalRequest{
		AnalystID: auth.GetUserFromRequest(r).ID,
		Reason:    req.Reason,
	}
	if req.Signature != "" {
		sig, err := base64.StdEncoding.DecodeString(req.Signature)
		if err != nil {
			ErrorResponse(w, r, h.logger, domain.Invalid("handler.decide", "signature must be base64-encoded"))
			return
		}
		approval.Signature = bytes.NewReader(sig)
	}

	outcome, err := apply(r.Context(), id, approval)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	if outcome.NeedsSignature {
		writeJSON(w, http.StatusAccepted, outcome)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}
