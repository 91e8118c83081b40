package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy. Gateway adapters classify every failure into one of these
// kinds so workflows can branch with errors.Is regardless of backend.
var (
	ErrAuth       = errors.New("authentication failed")
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("conflict")
	ErrTransport  = errors.New("transport error")
)

// Profile validation errors
var (
	ErrInvalidRole      = errors.New("invalid role")
	ErrInvalidBirthdate = errors.New("birthdate must be formatted YYYY-MM-DD")
)

// ValidationError is raised client-side before any network call.
type ValidationError struct {
	Field   string
	Message string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// RemoteError carries a failure reported by the backend. Error returns the
// server's message verbatim so it can be surfaced to the user unchanged.
type RemoteError struct {
	Kind    error
	Status  int
	Code    string
	Message string
}

func (e *RemoteError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Status != 0 {
		return fmt.Sprintf("%v (status %d)", e.Kind, e.Status)
	}
	return e.Kind.Error()
}

func (e *RemoteError) Unwrap() error {
	return e.Kind
}
