package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/dafibh/fortuna/ledger-backend/internal/domain"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// ProblemDetails represents an RFC 7807 Problem Details response
type ProblemDetails struct {
	Type     string            `json:"type"`
	Title    string            `json:"title"`
	Status   int               `json:"status"`
	Detail   string            `json:"detail,omitempty"`
	Instance string            `json:"instance,omitempty"`
	Errors   []ValidationError `json:"errors,omitempty"`
}

// ValidationError represents a single validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error types
const (
	ErrorTypeValidation   = "https://fortuna.app/errors/validation"
	ErrorTypeNotFound     = "https://fortuna.app/errors/not-found"
	ErrorTypeUnauthorized = "https://fortuna.app/errors/unauthorized"
	ErrorTypeForbidden    = "https://fortuna.app/errors/forbidden"
	ErrorTypeConflict     = "https://fortuna.app/errors/conflict"
	ErrorTypeInternal     = "https://fortuna.app/errors/internal"
	ErrorTypeUnavailable  = "https://fortuna.app/errors/unavailable"
)

const dateLayout = "2006-01-02"

// NewValidationError creates a validation error response
func NewValidationError(c echo.Context, detail string, errors []ValidationError) error {
	return c.JSON(http.StatusBadRequest, ProblemDetails{
		Type:     ErrorTypeValidation,
		Title:    "Validation Error",
		Status:   http.StatusBadRequest,
		Detail:   detail,
		Instance: c.Request().URL.Path,
		Errors:   errors,
	})
}

// NewNotFoundError creates a not found error response
func NewNotFoundError(c echo.Context, detail string) error {
	return c.JSON(http.StatusNotFound, ProblemDetails{
		Type:     ErrorTypeNotFound,
		Title:    "Not Found",
		Status:   http.StatusNotFound,
		Detail:   detail,
		Instance: c.Request().URL.Path,
	})
}

// NewUnauthorizedError creates an unauthorized error response
func NewUnauthorizedError(c echo.Context, detail string) error {
	return c.JSON(http.StatusUnauthorized, ProblemDetails{
		Type:     ErrorTypeUnauthorized,
		Title:    "Unauthorized",
		Status:   http.StatusUnauthorized,
		Detail:   detail,
		Instance: c.Request().URL.Path,
	})
}

// NewForbiddenError creates a forbidden error response
func NewForbiddenError(c echo.Context, detail string) error {
	return c.JSON(http.StatusForbidden, ProblemDetails{
		Type:     ErrorTypeForbidden,
		Title:    "Forbidden",
		Status:   http.StatusForbidden,
		Detail:   detail,
		Instance: c.Request().URL.Path,
	})
}

// NewConflictError creates a conflict error response
func NewConflictError(c echo.Context, detail string) error {
	return c.JSON(http.StatusConflict, ProblemDetails{
		Type:     ErrorTypeConflict,
		Title:    "Conflict",
		Status:   http.StatusConflict,
		Detail:   detail,
		Instance: c.Request().URL.Path,
	})
}

// NewInternalError creates an internal error response
func NewInternalError(c echo.Context, detail string) error {
	return c.JSON(http.StatusInternalServerError, ProblemDetails{
		Type:     ErrorTypeInternal,
		Title:    "Internal Server Error",
		Status:   http.StatusInternalServerError,
		Detail:   detail,
		Instance: c.Request().URL.Path,
	})
}

// NewServiceUnavailableError creates a service unavailable error response
func NewServiceUnavailableError(c echo.Context, detail string) error {
	return c.JSON(http.StatusServiceUnavailable, ProblemDetails{
		Type:     ErrorTypeUnavailable,
		Title:    "Service Unavailable",
		Status:   http.StatusServiceUnavailable,
		Detail:   detail,
		Instance: c.Request().URL.Path,
	})
}

// handleServiceError maps a service error onto a problem details response
func handleServiceError(c echo.Context, err error) error {
	var fieldErrs domain.ValidationErrors
	switch {
	case errors.As(err, &fieldErrs):
		out := make([]ValidationError, len(fieldErrs))
		for i, fe := range fieldErrs {
			out[i] = ValidationError{Field: fe.Field, Message: fe.Message}
		}
		return NewValidationError(c, "Validation failed", out)
	case errors.Is(err, domain.ErrInvariantViolation):
		log.Error().Err(err).Str("path", c.Request().URL.Path).Msg("Ledger invariant violated")
		return NewInternalError(c, "Stored data is inconsistent")
	case errors.Is(err, domain.ErrInvalidCondition), errors.Is(err, domain.ErrValidation):
		return NewValidationError(c, err.Error(), nil)
	case errors.Is(err, domain.ErrNotFound):
		return NewNotFoundError(c, err.Error())
	case errors.Is(err, domain.ErrAlreadyExists), errors.Is(err, domain.ErrWalletInUse):
		return NewConflictError(c, err.Error())
	case errors.Is(err, domain.ErrBackupDisabled):
		return NewServiceUnavailableError(c, "Backups are not configured")
	}
	log.Error().Err(err).Str("path", c.Request().URL.Path).Msg("Request failed")
	return NewInternalError(c, "An unexpected error occurred")
}

func invalidIDError(c echo.Context, field string) error {
	return NewValidationError(c, "Invalid ID", []ValidationError{
		{Field: field, Message: "Must be a valid UUID"},
	})
}

func invalidDateError(c echo.Context, field string) error {
	return NewValidationError(c, "Invalid date", []ValidationError{
		{Field: field, Message: "Must be in YYYY-MM-DD format"},
	})
}

// parseOptionalDate parses a YYYY-MM-DD value; empty input yields nil
func parseOptionalDate(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	parsed, err := time.Parse(dateLayout, value)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}
