package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a referenced entity does not exist
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when an operation would violate lifecycle or
	// structural rules (illegal transition, deleting the last project, ...)
	ErrConflict = errors.New("conflict")

	// ErrTransient is returned when the backend is unreachable; callers may
	// retry after surfacing the failure, the store never retries on its own
	ErrTransient = errors.New("backend unavailable")
)

// ValidationError reports malformed input, naming the offending field
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NewValidationError creates a validation error for a named field
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is (or wraps) a ValidationError
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ConflictError wraps ErrConflict with a description of the violated rule
func ConflictError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

// NotFoundError wraps ErrNotFound with the entity kind and identifier
func NotFoundError(entity, id string) error {
	return fmt.Errorf("%w: %s %s", ErrNotFound, entity, id)
}
