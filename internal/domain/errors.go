package domain

import (
	"errors"
	"fmt"
)

// Application error codes
const (
	EINVALID     = "invalid"     // Invalid input or validation failure
	ENOTFOUND    = "not_found"   // Resource not found
	ECONFLICT    = "conflict"    // Resource conflict (e.g., duplicate)
	ELOCKED      = "locked"      // Resource is immutable and cannot be edited
	ETRANSITION  = "transition"  // State transition outside the allowed edges
	EUNAVAILABLE = "unavailable" // Remote store unreachable; offline fallback applies
	EINTERNAL    = "internal"    // Internal error
)

// Error represents an application error with structured information.
type Error struct {
	Code    string // Machine-readable error code
	Op      string // Operation that failed (e.g., "inspection.submit")
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrorCode returns the code of the root error, or EINTERNAL if none.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return EINTERNAL
}

// ErrorMessage returns the human-readable message of the error.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		if e.Code == EINTERNAL {
			return "An internal error occurred. Please try again later."
		}
		return e.Message
	}
	return "An internal error occurred. Please try again later."
}

// Convenience constructors for common error types

// NotFound creates a not found error.
func NotFound(op, resource, id string) *Error {
	return &Error{
		Code:    ENOTFOUND,
		Op:      op,
		Message: fmt.Sprintf("%s with ID %q not found", resource, id),
	}
}

// Invalid creates a validation error.
func Invalid(op, message string) *Error {
	return &Error{
		Code:    EINVALID,
		Op:      op,
		Message: message,
	}
}

// Conflict creates a conflict error.
func Conflict(op, message string) *Error {
	return &Error{
		Code:    ECONFLICT,
		Op:      op,
		Message: message,
	}
}

// Locked creates an immutability violation error.
func Locked(op, message string) *Error {
	return &Error{
		Code:    ELOCKED,
		Op:      op,
		Message: message,
	}
}

// InvalidTransition creates a state machine transition error.
// Transitions outside the allowed edges never mutate state.
func InvalidTransition(op string, from, to fmt.Stringer) *Error {
	return &Error{
		Code:    ETRANSITION,
		Op:      op,
		Message: fmt.Sprintf("cannot transition from %q to %q", from, to),
	}
}

// Unavailable wraps a remote I/O failure. Callers fall back to the offline
// queue (writes) or stale cached data (reads) instead of failing outright.
func Unavailable(err error, op, message string) *Error {
	return &Error{
		Code:    EUNAVAILABLE,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// Internal creates an internal error, wrapping the underlying error.
func Internal(err error, op, message string) *Error {
	return &Error{
		Code:    EINTERNAL,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// IsUnavailable reports whether err (anywhere in its chain) is a remote
// availability failure, i.e. the offline fallback should engage.
func IsUnavailable(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == EUNAVAILABLE
}

// =============================================================================
// Typed Validation Failures
// =============================================================================

// MissingPhotoError reports the first item whose current answer requires
// photo evidence that has not been attached. Submission fails closed on it.
type MissingPhotoError struct {
	ItemID   string
	ItemName string
}

func (e *MissingPhotoError) Error() string {
	return fmt.Sprintf("item %q requires a photo before submission", e.ItemID)
}

// MissingReasonError is returned when a rejection is attempted without a
// non-empty reason.
type MissingReasonError struct {
	Op string
}

func (e *MissingReasonError) Error() string {
	return fmt.Sprintf("%s: a rejection reason is required", e.Op)
}
