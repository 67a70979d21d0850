// Package handler implements the JSON HTTP surface of the Checkship API.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/Arthur094/checkship/internal/domain"
)

// maxBodyBytes bounds JSON request bodies. Photo uploads use a separate
// multipart limit.
const maxBodyBytes = 1 << 20

// errorBody is the wire shape of every error response.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// writeJSON writes a success response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]*errorBody{
		"error": {Code: code, Message: message, Details: details},
	})
}

// ErrorResponse maps an application error to an HTTP response. Typed
// validation failures carry structured details so clients can point at the
// offending item.
func ErrorResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var photoErr *domain.MissingPhotoError
	if errors.As(err, &photoErr) {
		writeError(w, http.StatusUnprocessableEntity, "photo_required", photoErr.Error(), map[string]string{
			"item_id":   photoErr.ItemID,
			"item_name": photoErr.ItemName,
		})
		return
	}

	var reasonErr *domain.MissingReasonError
	if errors.As(err, &reasonErr) {
		writeError(w, http.StatusBadRequest, "reason_required", reasonErr.Error(), nil)
		return
	}

	code := domain.ErrorCode(err)
	status := errorCodeToHTTPStatus(code)

	if status >= http.StatusInternalServerError {
		logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"error", err,
		)
	} else {
		logger.Info("request rejected",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"code", code,
		)
	}

	writeError(w, status, code, domain.ErrorMessage(err), nil)
}

// errorCodeToHTTPStatus maps domain error codes to HTTP status codes.
func errorCodeToHTTPStatus(code string) int {
	switch code {
	case domain.EINVALID:
		return http.StatusBadRequest
	case domain.ENOTFOUND:
		return http.StatusNotFound
	case domain.ECONFLICT:
		return http.StatusConflict
	case domain.ELOCKED:
		return http.StatusLocked
	case domain.ETRANSITION:
		return http.StatusConflict
	case domain.EUNAVAILABLE:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON decodes a bounded JSON request body into dst. An empty body
// leaves dst at its zero value.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return domain.Invalid("handler.decodeJSON", "malformed JSON request body")
	}
	return nil
}
