// Package common defines shared constants and sentinel errors used across
// the server layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")
	ErrConflict   = errors.New("already exists")

	// Service-level errors.
	ErrDependencyUnavailable = errors.New("dependency unavailable")
	ErrConfiguration         = errors.New("configuration error")
	ErrHashing               = errors.New("password hashing failed")

	// Credential errors.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrSamePassword       = errors.New("new password must differ from the current one")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Token lifecycle errors.
	ErrTokenExpired          = errors.New("token expired")
	ErrInvalidOrExpiredToken = errors.New("invalid or expired reset token")

	// Validation errors. Use ValidationError to carry a message.
	ErrValidation = errors.New("validation error")
)

// ValidationError reports invalid input rejected by the service or the
// account store. It matches ErrValidation under errors.Is.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Msg
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
