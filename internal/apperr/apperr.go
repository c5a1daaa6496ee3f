// Package apperr holds the error kinds shared by repositories, services and
// handlers. Callers wrap them with fmt.Errorf("...: %w", apperr.ErrX) and
// inspect them with errors.Is.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound: a referenced message, chat, group, member or user does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized: the caller is not a participant, not a member, or lacks the admin role.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrConflict: a uniqueness violation (duplicate contact, member, chat pair).
	ErrConflict = errors.New("conflict")
	// ErrValidation: malformed input.
	ErrValidation = errors.New("validation failed")
)

// Validation returns an ErrValidation carrying msg.
func Validation(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}

// NotFound returns an ErrNotFound naming what was missing.
func NotFound(what string) error {
	return fmt.Errorf("%s %w", what, ErrNotFound)
}

// Unauthorized returns an ErrUnauthorized carrying msg.
func Unauthorized(msg string) error {
	return fmt.Errorf("%w: %s", ErrUnauthorized, msg)
}

// Conflict returns an ErrConflict carrying msg.
func Conflict(msg string) error {
	return fmt.Errorf("%w: %s", ErrConflict, msg)
}

// IsStoreFailure reports whether err is none of the known kinds, i.e. an
// infrastructure failure that should surface as a 500.
func IsStoreFailure(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, ErrNotFound) &&
		!errors.Is(err, ErrUnauthorized) &&
		!errors.Is(err, ErrConflict) &&
		!errors.Is(err, ErrValidation)
}
