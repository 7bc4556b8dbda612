package services

import (
	"errors"
	"fmt"

	"medigo/internal/repositories"
)

// Errors returned by every service. Handlers map them to HTTP statuses with
// errors.Is; lifecycle errors pass through unchanged.
var (
	ErrNotFound           = errors.New("resource not found")
	ErrForbidden          = errors.New("forbidden")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrMixedPharmacies    = errors.New("all items must come from the same pharmacy")
	ErrConflict           = errors.New("conflict")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
)

// translate maps store errors onto service errors, keeping the cause in
// the message.
func translate(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrNotFound):
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	case errors.Is(err, repositories.ErrDuplicate):
		return fmt.Errorf("%s: %w", what, ErrConflict)
	case errors.Is(err, repositories.ErrInsufficientStock):
		return fmt.Errorf("%s: %w: %v", what, ErrInsufficientStock, err)
	case errors.Is(err, repositories.ErrStaleState):
		return fmt.Errorf("%s changed while updating, retry: %w", what, ErrConflict)
	}
	return fmt.Errorf("%s: %w", what, err)
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

func forbidden(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrForbidden, fmt.Sprintf(format, args...))
}
