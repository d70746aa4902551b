// Package domain defines the core business entities and errors.
package domain

import (
	"errors"
	"fmt"
)

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// It is usually wrapped by a *ValidationError naming the offending field.
	ErrValidation = errors.New("validation failed")

	// ErrFireTimeTooSoon is returned when a reminder fire time does not lead
	// the current time by at least the guard margin.
	ErrFireTimeTooSoon = errors.New("fire_at must be in the future")

	// ErrAlreadySent is returned when an operation requires an unsent reminder.
	ErrAlreadySent = errors.New("reminder already sent")

	// ErrCancelled is returned when an operation requires a reminder that
	// has not been cancelled.
	ErrCancelled = errors.New("reminder cancelled")

	// ErrDeliveryInProgress is returned when a reminder cannot change while
	// its delivery attempt is queued or running.
	ErrDeliveryInProgress = errors.New("reminder delivery in progress")
)

// ValidationError describes a single invalid field.
// It unwraps to ErrValidation and, when set, to a more specific cause.
type ValidationError struct {
	Field   string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrValidation, e.Field, e.Message)
}

// Unwrap supports errors.Is for both ErrValidation and the specific cause.
func (e *ValidationError) Unwrap() []error {
	if e.Cause != nil {
		return []error{ErrValidation, e.Cause}
	}
	return []error{ErrValidation}
}

// NewValidationError creates a ValidationError for the given field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}
