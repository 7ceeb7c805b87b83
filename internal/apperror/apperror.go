// Package apperror defines the application-wide error taxonomy.
//
// Services return these typed errors; the HTTP layer maps them to status
// codes (or, on the webhook path, swallows them into the uniform 200
// acknowledgment). Handlers never branch on error strings — always on the
// sentinel values below via errors.Is.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation error")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrUpstream     = errors.New("upstream error")
	ErrConfig       = errors.New("configuration error")
)

type AppError struct {
	Err     error  // sentinel category (one of the vars above)
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

// Unauthorized returns an AppError for failed authentication.
// The message is intentionally generic — callers must not leak WHY
// authentication failed (bad secret vs unknown account vs expired token).
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
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

// Upstream returns an AppError for a failed identity-provider or other
// remote call. Full detail belongs in logs; the message here is what the
// user may see.
func Upstream(provider, message string) *AppError {
	return &AppError{
		Err:     ErrUpstream,
		Message: fmt.Sprintf("%s: %s", provider, message),
	}
}

// Config returns an AppError for a missing or invalid startup setting.
// These are fatal — main exits instead of serving with a broken config.
func Config(name, message string) *AppError {
	return &AppError{
		Err:     ErrConfig,
		Message: fmt.Sprintf("%s: %s", name, message),
		Field:   name,
	}
}
