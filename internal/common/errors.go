// Package common defines shared constants and sentinel errors used across
// the share access service. Callers should use errors.Is to match these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Validation errors. They are produced locally and never touch storage.
	ErrorValidation          = errors.New("validation error")
	ErrInvalidShareCode      = fmt.Errorf("%w: share code must be 4-20 letters or digits", ErrorValidation)
	ErrInvalidPasswordFormat = fmt.Errorf("%w: password must be exactly 4 digits", ErrorValidation)

	// Share state errors.
	ErrShareNotFound = errors.New("share not found")
	ErrShareInactive = errors.New("share disabled")
	ErrShareExpired  = errors.New("share expired")
	ErrLockedOut     = errors.New("temporarily blocked")

	// Admission errors.
	ErrPasswordMismatch = errors.New("password mismatch")

	// Admin mutation errors.
	ErrCodeConflict     = errors.New("share code already taken")
	ErrCodeExhausted    = errors.New("could not generate a unique share code")
	ErrProjectNotLinked = errors.New("project is not part of this share")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenKindMismatch  = errors.New("token kind mismatch")
	ErrTokenScopeMismatch = errors.New("token issued for another share")

	// Token lifecycle errors.
	ErrTokenExpired = errors.New("token expired")
)

// PasswordMismatchError reports a wrong share password together with the
// number of attempts the caller has left before the lockout kicks in.
type PasswordMismatchError struct {
	Remaining int
}

func (e *PasswordMismatchError) Error() string {
	return fmt.Sprintf("%s: %d attempts remaining", ErrPasswordMismatch, e.Remaining)
}

func (e *PasswordMismatchError) Is(target error) bool {
	return target == ErrPasswordMismatch
}
