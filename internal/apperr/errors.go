// Package apperr defines the error categories shared by the store packages
// and mapped to transport status codes at the edges.
package apperr

import (
	"errors"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var (
	// ErrNotFound reports an identifier that does not resolve to a stored entity.
	ErrNotFound = errors.New("not found")
	// ErrValidation matches every *ValidationError via errors.Is.
	ErrValidation = errors.New("validation failed")
	// ErrCorrupt reports a persisted document that cannot be parsed or violates its schema.
	ErrCorrupt = errors.New("corrupt document")
)

// ValidationError carries a caller-facing reason for rejected input.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// Is lets errors.Is(err, ErrValidation) match any ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Invalid builds a ValidationError with a formatted reason.
func Invalid(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// FromValidation converts ozzo-validation results into a ValidationError.
// Internal rule errors are returned unchanged.
func FromValidation(err error) error {
	if err == nil {
		return nil
	}
	var internal validation.InternalError
	if errors.As(err, &internal) {
		return err
	}
	return &ValidationError{Reason: err.Error()}
}

// Corrupt wraps ErrCorrupt with the offending document name and cause.
func Corrupt(doc string, cause error) error {
	if cause == nil {
		return fmt.Errorf("%s: %w", doc, ErrCorrupt)
	}
	return fmt.Errorf("%s: %w: %v", doc, ErrCorrupt, cause)
}
