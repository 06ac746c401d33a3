package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors
var (
	ErrNotFound           = errors.New("resource not found")
	ErrAlreadyExists      = errors.New("resource already exists")
	ErrValidation         = errors.New("validation failed")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidCondition   = errors.New("invalid condition")
	ErrInvariantViolation = errors.New("invariant violation")

	ErrUserNotFound        = fmt.Errorf("%w: user", ErrNotFound)
	ErrWalletNotFound      = fmt.Errorf("%w: wallet", ErrNotFound)
	ErrBudgetNotFound      = fmt.Errorf("%w: budget", ErrNotFound)
	ErrTransactionNotFound = fmt.Errorf("%w: transaction", ErrNotFound)
	ErrMilestoneNotFound   = fmt.Errorf("%w: milestone", ErrNotFound)
	ErrBackupNotFound      = fmt.Errorf("%w: backup", ErrNotFound)

	// ErrInvalidPeriod is an ErrInvalidCondition so callers can match either.
	ErrInvalidPeriod = fmt.Errorf("%w: invalid period", ErrInvalidCondition)

	ErrBudgetNameTaken = fmt.Errorf("%w: budget name", ErrAlreadyExists)
	ErrWalletInUse     = errors.New("wallet is still referenced")
	ErrBackupDisabled  = errors.New("backup storage is not configured")
)

// Validation constants
const (
	MaxNameLength          = 255
	MaxMilestoneNameLength = 200
	MaxMilestoneDescLength = 1000
	MaxMilestoneIconLength = 50
	MinMilestoneConditions = 1
	MaxMilestoneConditions = 10
	MaxConsecutiveMonths   = 12
	AmountFractionDigits   = 4
)

// FieldError describes a single invalid input field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors collects field errors. It matches ErrValidation via errors.Is.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	parts := make([]string, len(v))
	for i, fe := range v {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Is reports ValidationErrors as ErrValidation
func (v ValidationErrors) Is(target error) bool {
	return target == ErrValidation
}

// Add appends a field error
func (v *ValidationErrors) Add(field, message string) {
	*v = append(*v, FieldError{Field: field, Message: message})
}

// Err returns nil when no field errors were collected
func (v ValidationErrors) Err() error {
	if len(v) == 0 {
		return nil
	}
	return v
}
