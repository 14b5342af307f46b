package services

import (
	"errors"
	"net/http"
)

// Machine-readable error types surfaced to API clients
const (
	ErrTypeNotFound        = "not_found"
	ErrTypeAlreadyUsed     = "already_used"
	ErrTypeInvalidState    = "invalid_state"
	ErrTypeVerifierTimeout = "verifier_timeout"
	ErrTypeConnectionError = "connection_error"
)

// AppError is a client-facing error with a machine-readable type
type AppError struct {
	Type    string
	Message string
}

func (e *AppError) Error() string {
	return e.Message
}

// StatusCode maps the error type to an HTTP status
func (e *AppError) StatusCode() int {
	switch e.Type {
	case ErrTypeNotFound:
		return http.StatusNotFound
	case ErrTypeAlreadyUsed, ErrTypeInvalidState:
		return http.StatusConflict
	case ErrTypeVerifierTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadRequest
	}
}

// Retryable reports whether the caller may safely retry the operation
func (e *AppError) Retryable() bool {
	return e.Type == ErrTypeVerifierTimeout
}

func NewNotFound(message string) *AppError {
	return &AppError{Type: ErrTypeNotFound, Message: message}
}

func NewAlreadyUsed(message string) *AppError {
	return &AppError{Type: ErrTypeAlreadyUsed, Message: message}
}

func NewInvalidState(message string) *AppError {
	return &AppError{Type: ErrTypeInvalidState, Message: message}
}

func NewVerifierTimeout(message string) *AppError {
	return &AppError{Type: ErrTypeVerifierTimeout, Message: message}
}

// AsAppError extracts an AppError from an error chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsErrType reports whether err is an AppError of the given type
func IsErrType(err error, errType string) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Type == errType
}
