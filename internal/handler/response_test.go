package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Arthur094/checkship/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestErrorCodeToHTTPStatus(t *testing.T) {
	tests := []struct {
		code   string
		status int
	}{
		{domain.EINVALID, http.StatusBadRequest},
		{domain.ENOTFOUND, http.StatusNotFound},
		{domain.ECONFLICT, http.StatusConflict},
		{domain.ELOCKED, http.StatusLocked},
		{domain.ETRANSITION, http.StatusConflict},
		{domain.EUNAVAILABLE, http.StatusServiceUnavailable},
		{domain.EINTERNAL, http.StatusInternalServerError},
		{"unknown", http.StatusInternalServerError},
	}

	for _, tc := range tests {
		if got := errorCodeToHTTPStatus(tc.code); got != tc.status {
			t.Errorf("code %q: expected %d, got %d", tc.code, tc.status, got)
		}
	}
}

func TestErrorResponse_DomainError(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/templates/x", nil)

	ErrorResponse(rec, req, testLogger(), domain.NotFound("test", "template", "x"))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected application/json, got %s", ct)
	}

	var body map[string]errorBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decoding error body: %v", err)
	}
	if body["error"].Code != domain.ENOTFOUND {
		t.Errorf("expected code %q, got %q", domain.ENOTFOUND, body["error"].Code)
	}
}

func TestErrorResponse_MissingPhoto(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/inspections/submit", nil)

	ErrorResponse(rec, req, testLogger(), &domain.MissingPhotoError{
		ItemID:   "tires",
		ItemName: "Tire condition",
	})

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}

	var body struct {
		Error struct {
			Code    string            `json:"code"`
			Details map[string]string `json:"details"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decoding error body: %v", err)
	}
	if body.Error.Code != "photo_required" {
		t.Errorf("expected photo_required, got %q", body.Error.Code)
	}
	if body.Error.Details["item_id"] != "tires" {
		t.Errorf("expected item_id detail, got %v", body.Error.Details)
	}
}

func TestErrorResponse_MissingReason(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/inspections/x/reject", nil)

	ErrorResponse(rec, req, testLogger(), &domain.MissingReasonError{Op: "test"})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestErrorResponse_InternalHidesDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/templates", nil)

	ErrorResponse(rec, req, testLogger(), domain.Internal(io.ErrUnexpectedEOF, "test", "connection pool exhausted"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}

	var body map[string]errorBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decoding error body: %v", err)
	}
	// Internal errors must not leak their underlying message
	if body["error"].Message == "connection pool exhausted" {
		t.Error("internal error detail leaked to client")
	}
}
