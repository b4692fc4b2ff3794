package errors

import (
	"fmt"
	"net/http"
)

// AppError is the central interface for all typed application errors.
// It lets the outer layers (handlers) read the category and the HTTP
// status suggested for the failure without inspecting concrete types.
type AppError interface {
	Error() string
	Category() string
	HTTPStatus() int
	Unwrap() error
}

// --- Domain errors ---

// ValidationError represents a rejected input value.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string    { return fmt.Sprintf("validation failed: %s", e.Msg) }
func (e *ValidationError) Category() string { return "VALIDATION_ERROR" }
func (e *ValidationError) HTTPStatus() int  { return http.StatusBadRequest }
func (e *ValidationError) Unwrap() error    { return nil }

// NewValidationError creates a new validation error.
func NewValidationError(msg string) AppError {
	return &ValidationError{Msg: msg}
}

// NotFoundError represents the absence of a requested resource.
type NotFoundError struct {
	Msg string
}

func (e *NotFoundError) Error() string    { return fmt.Sprintf("not found: %s", e.Msg) }
func (e *NotFoundError) Category() string { return "NOT_FOUND" }
func (e *NotFoundError) HTTPStatus() int  { return http.StatusNotFound }
func (e *NotFoundError) Unwrap() error    { return nil }

// NewNotFoundError creates a new not-found error.
func NewNotFoundError(msg string) AppError {
	return &NotFoundError{Msg: msg}
}

// ConflictError represents a state conflict (e.g. a concurrent write
// rejected by the store, or a duplicate resource).
type ConflictError struct {
	Msg string
}

func (e *ConflictError) Error() string    { return fmt.Sprintf("state conflict: %s", e.Msg) }
func (e *ConflictError) Category() string { return "CONFLICT" }
func (e *ConflictError) HTTPStatus() int  { return http.StatusConflict }
func (e *ConflictError) Unwrap() error    { return nil }

// NewConflictError creates a new conflict error.
func NewConflictError(msg string) AppError {
	return &ConflictError{Msg: msg}
}

// UnavailableError represents a dependency that could not be reached
// (the record store or the generative text service).
type UnavailableError struct {
	Msg string
	Err error
}

func (e *UnavailableError) Error() string    { return fmt.Sprintf("dependency unavailable: %s", e.Msg) }
func (e *UnavailableError) Category() string { return "UNAVAILABLE" }
func (e *UnavailableError) HTTPStatus() int  { return http.StatusBadGateway }
func (e *UnavailableError) Unwrap() error    { return e.Err }

// NewUnavailableError creates a new unavailable error wrapping the cause.
func NewUnavailableError(msg string, err error) AppError {
	return &UnavailableError{Msg: msg, Err: err}
}

// --- Infrastructure errors ---

// InternalError represents an unexpected failure in the service or
// repository layers. It wraps the underlying cause (e.g. a driver error).
type InternalError struct {
	Msg string
	Err error
}

func (e *InternalError) Error() string    { return fmt.Sprintf("internal error: %s", e.Msg) }
func (e *InternalError) Category() string { return "INTERNAL_ERROR" }
func (e *InternalError) HTTPStatus() int  { return http.StatusInternalServerError }
func (e *InternalError) Unwrap() error    { return e.Err }

// NewInternalError creates a server-side error for unexpected failures.
func NewInternalError(msg string, err error) AppError {
	return &InternalError{Msg: msg, Err: err}
}

// NewDBError is a shortcut for an InternalError raised by the record store.
func NewDBError(msg string, err error) AppError {
	return NewInternalError(fmt.Sprintf("%s (store): %s", msg, err.Error()), err)
}

// --- Handler helper ---

// MapToHTTPStatus translates an error into the HTTP status, category and
// message used for the response body. Untyped errors map to a generic 500.
func MapToHTTPStatus(err error) (int, string, string) {
	if appErr, ok := err.(AppError); ok {
		return appErr.HTTPStatus(), appErr.Category(), appErr.Error()
	}
	return http.StatusInternalServerError, "UNKNOWN_ERROR", "An unexpected error occurred."
}
