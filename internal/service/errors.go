package service

import (
	"errors"
	"fmt"

	"pickupmap/internal/repository"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrForbidden        = errors.New("forbidden")
	ErrInvalidState     = errors.New("operation not valid in the current game state")
	ErrNotOpen          = errors.New("game is not open")
	ErrAlreadyJoined    = errors.New("already joined")
	ErrCapacityExceeded = errors.New("game is full")
	ErrUnauthenticated  = errors.New("authentication required")
	ErrGone             = errors.New("game is no longer available")
	ErrValidation       = errors.New("validation failed")
)

// ValidationError reports malformed input for a single field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Is lets callers match any ValidationError with errors.Is(err, ErrValidation).
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// translate maps repository sentinels onto the service taxonomy and wraps
// anything else with op.
func translate(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrGameNotFound), errors.Is(err, repository.ErrLocationNotFound):
		return ErrNotFound
	case errors.Is(err, repository.ErrGameNotOpen):
		return ErrNotOpen
	case errors.Is(err, repository.ErrAlreadyJoined):
		return ErrAlreadyJoined
	case errors.Is(err, repository.ErrCapacityExceeded):
		return ErrCapacityExceeded
	case errors.Is(err, repository.ErrGameTerminal):
		return ErrInvalidState
	}
	return fmt.Errorf("%s: %w", op, err)
}
