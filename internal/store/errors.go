package store

import (
	"errors"
	"fmt"
)

// Common store errors used across all store implementations.
var (
	// ErrNotFound is returned when a requested entity does not exist in the store.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when an operation would violate a uniqueness constraint.
	ErrDuplicate = errors.New("entity already exists")

	// ErrInvalidEntity is returned when the storage layer rejects an entity,
	// for example because a referenced row does not exist.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrUpdateFailed is returned when an update cannot be applied in the
	// entity's current state.
	ErrUpdateFailed = errors.New("update failed")

	// ErrTransactionFailed is returned when a transaction fails to begin or commit.
	ErrTransactionFailed = errors.New("transaction failed")

	// ErrSubscriptionNotFound indicates that the requested subscription does not exist.
	ErrSubscriptionNotFound = fmt.Errorf("%w: subscription", ErrNotFound)

	// ErrScheduleNotFound indicates that the requested schedule does not exist.
	ErrScheduleNotFound = fmt.Errorf("%w: schedule", ErrNotFound)
)

// IsNotFoundError checks if the error is any kind of "not found" error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDuplicateError checks if the error is any kind of "duplicate" error.
func IsDuplicateError(err error) bool {
	return errors.Is(err, ErrDuplicate)
}

// StoreError is a store failure with the entity and operation it concerns.
type StoreError struct {
	Entity    string // The entity type (e.g., "subscription", "schedule")
	Operation string // The operation that failed (e.g., "insert", "mark_sent")
	Message   string
	Err       error
}

// Error implements the error interface for StoreError.
func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf(
			"%s operation on %s failed: %s: %v",
			e.Operation,
			e.Entity,
			e.Message,
			e.Err,
		)
	}
	return fmt.Sprintf("%s operation on %s failed: %s", e.Operation, e.Entity, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError.
func NewStoreError(entity, operation, message string, err error) *StoreError {
	return &StoreError{
		Entity:    entity,
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
