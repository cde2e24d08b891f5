package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrValidation    = errors.New("Validation Error")
	ErrConflict      = errors.New("conflict")
	ErrForbidden     = errors.New("forbidden")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrReauthNeeded  = errors.New("reauthentication required")
	ErrRemoteFailure = errors.New("remote store failure")
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

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthorized returns an AppError for a missing or invalid session.
// HTTP handlers map this to 401 Unauthorized.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// ReauthNeeded returns the actionable "please sign in again" error raised
// when account deletion is attempted without a fresh authentication proof.
// It is the one provider error the handlers distinguish by kind rather than
// collapsing into a generic failure banner.
func ReauthNeeded() *AppError {
	return &AppError{
		Err:     ErrReauthNeeded,
		Message: "Please confirm your password and try again.",
	}
}

// Remote wraps a failed call to the content store. The multi-step sequence
// that hit it is aborted without rollback; the recommended recovery is a
// full refetch.
func Remote(op string, err error) *AppError {
	return &AppError{
		Err:     fmt.Errorf("%w: %s: %v", ErrRemoteFailure, op, err),
		Message: "Something went wrong. Please try again.",
	}
}
