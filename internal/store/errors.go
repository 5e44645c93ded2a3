package store

import (
	"errors"
	"fmt"
)

// Common store errors used across all store implementations.
var (
	// ErrNotFound is returned when a requested entity does not exist in the store.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when an insert collides with an existing ID.
	ErrDuplicate = errors.New("entity already exists")

	// ErrInvalidEntity is returned when an entity violates a store constraint.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrUpdateFailed is returned when an update matched no row in the expected state.
	ErrUpdateFailed = errors.New("update failed")

	// ErrTransactionFailed is returned when a transaction cannot begin or commit.
	ErrTransactionFailed = errors.New("transaction failed")

	// ErrUnavailable is returned when the backing store cannot be reached.
	ErrUnavailable = errors.New("store unavailable")

	// ErrTaskNotFound indicates that the requested mail task does not exist.
	ErrTaskNotFound = fmt.Errorf("%w: mail task", ErrNotFound)

	// ErrStatusChanged indicates that a conditional update lost to a
	// concurrent transition of the same task.
	ErrStatusChanged = fmt.Errorf("%w: task status changed concurrently", ErrUpdateFailed)
)

// IsNotFoundError checks if the error is any kind of "not found" error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// StoreError is a store failure annotated with the entity and operation involved.
type StoreError struct {
	Entity    string // The entity type (e.g., "mail_task")
	Operation string // The operation that failed (e.g., "claim", "list")
	Message   string // Error message
	Err       error  // Original error
}

// Error implements the error interface for StoreError.
func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s operation on %s failed: %s: %v", e.Operation, e.Entity, e.Message, e.Err)
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
