package service

import (
	"errors"
	"fmt"

	"github.com/phrazzld/scheduled-mail-api/internal/domain"
	"github.com/phrazzld/scheduled-mail-api/internal/store"
)

// Sentinel errors returned by the mail task service.
// The API layer maps them to HTTP status codes.
var (
	// ErrTaskNotFound indicates an unknown or malformed task ID.
	// API layer should map this to HTTP 404 Not Found.
	ErrTaskNotFound = errors.New("mail task not found")

	// ErrStoreUnavailable indicates the task store failed or could not be reached.
	// API layer should map this to HTTP 503 Service Unavailable.
	ErrStoreUnavailable = errors.New("task store unavailable")
)

// ServiceError wraps a store failure with the operation that hit it.
// It matches both ErrStoreUnavailable and the underlying cause.
type ServiceError struct {
	Operation string
	Message   string
	Err       error
}

// Error implements the error interface for ServiceError.
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("mail task service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("mail task service %s failed: %s", e.Operation, e.Message)
}

// Unwrap exposes ErrStoreUnavailable and the cause to errors.Is/errors.As.
func (e *ServiceError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrStoreUnavailable}
	}
	return []error{ErrStoreUnavailable, e.Err}
}

// NewServiceError classifies err for callers. Not-found errors collapse to
// ErrTaskNotFound and validation errors pass through untouched; anything else
// is a store failure.
func NewServiceError(operation, message string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrTaskNotFound) || store.IsNotFoundError(err) {
		return ErrTaskNotFound
	}
	if errors.Is(err, domain.ErrValidation) {
		return err
	}
	return &ServiceError{Operation: operation, Message: message, Err: err}
}
