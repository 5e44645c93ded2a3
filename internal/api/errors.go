package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/scheduled-mail-api/internal/api/shared"
	"github.com/phrazzld/scheduled-mail-api/internal/domain"
	"github.com/phrazzld/scheduled-mail-api/internal/service"
	"github.com/phrazzld/scheduled-mail-api/internal/store"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	var vErrs validator.ValidationErrors
	switch {
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, shared.ErrInvalidBody),
		errors.As(err, &vErrs):
		return http.StatusBadRequest

	case errors.Is(err, service.ErrTaskNotFound),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, service.ErrStoreUnavailable),
		errors.Is(err, store.ErrUnavailable):
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. This prevents leaking sensitive internal details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	var vErr *domain.ValidationError
	var vErrs validator.ValidationErrors
	switch {
	case errors.As(err, &vErr):
		return fmt.Sprintf("Invalid %s: %s", vErr.Field, vErr.Message)
	case errors.As(err, &vErrs):
		return SanitizeValidationError(vErrs)
	case errors.Is(err, shared.ErrInvalidBody):
		return "Invalid request format"
	case errors.Is(err, domain.ErrValidation):
		return "Validation error"
	case errors.Is(err, service.ErrTaskNotFound),
		errors.Is(err, store.ErrNotFound):
		return "Task not found"
	case errors.Is(err, service.ErrStoreUnavailable),
		errors.Is(err, store.ErrUnavailable):
		return "Service unavailable"
	default:
		return "An unexpected error occurred"
	}
}

// SanitizeValidationError reports the first failed field without echoing
// the rejected value.
func SanitizeValidationError(errs validator.ValidationErrors) string {
	if len(errs) == 0 {
		return "Validation error"
	}
	first := errs[0]
	return fmt.Sprintf("Invalid %s: %s", first.Field(), getValidationTagMessage(first.Tag()))
}

// getValidationTagMessage maps validation tags to user-friendly error messages
func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "email":
		return "invalid email format"
	case "max":
		return "too long"
	case "oneof":
		return "invalid value"
	default:
		return "validation failed"
	}
}

// HandleAPIError writes the error response for err. defaultMsg replaces the
// generic message for unclassified (500) errors when non-empty.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, defaultMsg string) {
	status := MapErrorToStatusCode(err)
	msg := GetSafeErrorMessage(err)
	if status == http.StatusInternalServerError && defaultMsg != "" {
		msg = defaultMsg
	}
	shared.RespondWithErrorAndLog(w, r, status, msg, err)
}
