package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	BuildsErrorValidation    = "BUILDS_VALIDATION_FAILED"
	BuildsErrorTransient     = "BUILDS_PROVIDER_TRANSIENT"
	BuildsErrorConflict      = "BUILDS_RECONCILE_CONFLICT"
	BuildsErrorNotification  = "BUILDS_NOTIFICATION_FAILED"
	BuildsErrorConfiguration = "BUILDS_CONFIGURATION_INVALID"
	BuildsErrorNotFound      = "BUILDS_NOT_FOUND"
	BuildsErrorInternal      = "BUILDS_INTERNAL_ERROR"
)

// NewValidationError rejects a malformed or incomplete event, naming the
// offending field. Validation failures are logged and dropped, never
// persisted.
func NewValidationError(field string, message string) error {
	return goerrors.NewValidation("core: event validation failed", goerrors.FieldError{
		Field:   strings.TrimSpace(field),
		Message: strings.TrimSpace(message),
	}).
		WithCode(http.StatusBadRequest).
		WithTextCode(BuildsErrorValidation)
}

// NewTransientProviderError marks a network/5xx poll failure as eligible
// for bounded retry with backoff.
func NewTransientProviderError(message string, cause error) error {
	if cause != nil {
		return goerrors.Wrap(cause, goerrors.CategoryExternal, message).
			WithCode(http.StatusBadGateway).
			WithTextCode(BuildsErrorTransient)
	}
	return goerrors.New(message, goerrors.CategoryExternal).
		WithCode(http.StatusBadGateway).
		WithTextCode(BuildsErrorTransient)
}

// NewConflictError surfaces an exhausted upsert race as a reconciliation
// failure.
func NewConflictError(message string, cause error) error {
	if cause != nil {
		return goerrors.Wrap(cause, goerrors.CategoryConflict, message).
			WithCode(http.StatusConflict).
			WithTextCode(BuildsErrorConflict)
	}
	return goerrors.New(message, goerrors.CategoryConflict).
		WithCode(http.StatusConflict).
		WithTextCode(BuildsErrorConflict)
}

// NewNotificationError records a failed notifier send. Never auto-retried.
func NewNotificationError(message string, cause error) error {
	if cause != nil {
		return goerrors.Wrap(cause, goerrors.CategoryOperation, message).
			WithCode(http.StatusBadGateway).
			WithTextCode(BuildsErrorNotification)
	}
	return goerrors.New(message, goerrors.CategoryOperation).
		WithCode(http.StatusBadGateway).
		WithTextCode(BuildsErrorNotification)
}

// NewConfigurationError excludes a misconfigured source from scheduling.
// Logged once at construction, not every cycle.
func NewConfigurationError(message string, cause error) error {
	if cause != nil {
		return goerrors.Wrap(cause, goerrors.CategoryBadInput, message).
			WithCode(http.StatusBadRequest).
			WithTextCode(BuildsErrorConfiguration)
	}
	return goerrors.New(message, goerrors.CategoryBadInput).
		WithCode(http.StatusBadRequest).
		WithTextCode(BuildsErrorConfiguration)
}

// IsValidationError reports whether err carries the validation text code.
func IsValidationError(err error) bool {
	return hasTextCode(err, BuildsErrorValidation)
}

// IsTransientError reports whether err is retryable under the poller's
// backoff policy.
func IsTransientError(err error) bool {
	return hasTextCode(err, BuildsErrorTransient)
}

// IsConflictError reports whether err is an upsert race.
func IsConflictError(err error) bool {
	return hasTextCode(err, BuildsErrorConflict)
}

func hasTextCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(richErr.TextCode), code)
}

// MapError normalizes any error into the build-health envelope, assigning
// category, HTTP code, and text code when missing.
func MapError(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "not found"):
		return ensureErrorEnvelope(goerrors.New(err.Error(), goerrors.CategoryNotFound).
			WithTextCode(BuildsErrorNotFound))
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline exceeded"),
		strings.Contains(msg, "connection refused"):
		return ensureErrorEnvelope(goerrors.New(err.Error(), goerrors.CategoryExternal).
			WithTextCode(BuildsErrorTransient))
	case strings.Contains(msg, "unique"), strings.Contains(msg, "duplicate"):
		return ensureErrorEnvelope(goerrors.New(err.Error(), goerrors.CategoryConflict).
			WithTextCode(BuildsErrorConflict))
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"):
		return ensureErrorEnvelope(goerrors.New(err.Error(), goerrors.CategoryBadInput).
			WithTextCode(BuildsErrorValidation))
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureErrorEnvelope(mapped)
}

func ensureErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = buildsHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultBuildsTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultBuildsTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return BuildsErrorValidation
	case goerrors.CategoryNotFound:
		return BuildsErrorNotFound
	case goerrors.CategoryConflict:
		return BuildsErrorConflict
	case goerrors.CategoryExternal:
		return BuildsErrorTransient
	case goerrors.CategoryOperation:
		return BuildsErrorNotification
	default:
		return BuildsErrorInternal
	}
}

func buildsHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryExternal, goerrors.CategoryOperation:
		return http.StatusBadGateway
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
