// Package apperror defines the domain error taxonomy shared by repositories,
// services and HTTP handlers.
//
// Every failure a handler can produce is one of the sentinels below, wrapped in
// an *AppError that carries the client-facing message. The HTTP layer maps the
// sentinel to a status code in exactly one place (handler.writeError), so a new
// error kind that is not mapped there surfaces as a 500 instead of vanishing.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrValidation        = errors.New("Validation Error")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
	ErrCredentials       = errors.New("invalid credentials")
	ErrInvalidCollection = errors.New("invalid collection")
	ErrInvalidExtension  = errors.New("invalid extension")
	ErrMissingFile       = errors.New("missing file")
	ErrStorage           = errors.New("storage error")
)

type AppError struct {
	Err     error  // actual error
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NotFound reports a well-formed id with no matching record.
func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("No existe un %s con el id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// Duplicate is the validation error raised when a unique column collides.
func Duplicate(field string) *AppError {
	return ValidationFailed(field, fmt.Sprintf("%s debe ser único.", field))
}

func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Credentials keeps the reason (unknown email, wrong password) in the message
// while sharing one sentinel, so both map to the same status.
func Credentials(message string) *AppError {
	return &AppError{
		Err:     ErrCredentials,
		Message: message,
	}
}

func InvalidCollection(message string) *AppError {
	return &AppError{
		Err:     ErrInvalidCollection,
		Message: message,
	}
}

func InvalidExtension(message string) *AppError {
	return &AppError{
		Err:     ErrInvalidExtension,
		Message: message,
	}
}

func MissingFile(message string) *AppError {
	return &AppError{
		Err:     ErrMissingFile,
		Message: message,
	}
}

// Storage wraps a filesystem or object-store fault. The cause is kept in the
// chain for logging but never shown to the client.
func Storage(message string, cause error) *AppError {
	return &AppError{
		Err:     fmt.Errorf("%w: %w", ErrStorage, cause),
		Message: message,
	}
}
