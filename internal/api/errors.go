package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/phrazzld/miniminder/internal/api/shared"
	"github.com/phrazzld/miniminder/internal/domain"
	"github.com/phrazzld/miniminder/internal/service"
	"github.com/phrazzld/miniminder/internal/store"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	// Validation wins over not-found: an unknown subscription_id is a bad
	// request, not a missing resource.
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrFireTimeTooSoon),
		errors.Is(err, shared.ErrInvalidBody),
		errors.Is(err, store.ErrInvalidEntity),
		errors.Is(err, service.ErrPushNotConfigured):
		return http.StatusBadRequest

	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, domain.ErrAlreadySent),
		errors.Is(err, domain.ErrCancelled),
		errors.Is(err, domain.ErrDeliveryInProgress),
		errors.Is(err, store.ErrDuplicate):
		return http.StatusConflict

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

	var ve *domain.ValidationError
	switch {
	case errors.Is(err, service.ErrPushNotConfigured):
		return "push not configured"

	case errors.Is(err, domain.ErrFireTimeTooSoon):
		return "fire_at must be in the future"

	case errors.As(err, &ve):
		return fmt.Sprintf("Invalid %s: %s", ve.Field, ve.Message)

	case errors.Is(err, shared.ErrInvalidBody):
		return "Invalid request format"

	case errors.Is(err, store.ErrInvalidEntity):
		return "Invalid entity data"

	case errors.Is(err, store.ErrSubscriptionNotFound):
		return "Subscription not found"

	case errors.Is(err, store.ErrScheduleNotFound):
		return "Schedule not found"

	case errors.Is(err, domain.ErrAlreadySent):
		return "Reminder already sent"

	case errors.Is(err, domain.ErrCancelled):
		return "Reminder cancelled"

	case errors.Is(err, domain.ErrDeliveryInProgress):
		return "Reminder delivery in progress"

	default:
		return "An unexpected error occurred"
	}
}

// HandleAPIError writes the status and safe message for err and logs the
// redacted details.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error) {
	shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
}

// SanitizeValidationError turns validator errors into a message naming the
// first offending field by its JSON name.
func SanitizeValidationError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Validation error"
	}

	fe := verrs[0]
	field := jsonFieldPath(fe.Namespace())
	return fmt.Sprintf("Invalid %s: %s", field, getValidationTagMessage(fe.Tag()))
}

// jsonFieldPath drops the top-level struct name from a validator namespace.
func jsonFieldPath(ns string) string {
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

// getValidationTagMessage maps validation tags to user-friendly error messages
func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "gt", "min":
		return "too small"
	case "max":
		return "too long"
	case "url", "http_url":
		return "invalid URL"
	default:
		return "validation failed"
	}
}
