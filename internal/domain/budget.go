package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Budget caps expense spending across a set of categories within a date range.
// Spent is derived from the ledger on every read.
type Budget struct {
	ID          uuid.UUID       `json:"id"`
	UserID      uuid.UUID       `json:"userId"`
	Name        string          `json:"name"`
	CategoryIDs []uuid.UUID     `json:"categoryIds"`
	LimitAmount decimal.Decimal `json:"limitAmount"`
	StartDate   time.Time       `json:"startDate"`
	EndDate     time.Time       `json:"endDate"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// Window returns the budget's active range as a half-open window.
// EndDate is inclusive, so the window ends at the start of the following day.
func (b *Budget) Window() Window {
	return Window{Start: b.StartDate, End: b.EndDate.AddDate(0, 0, 1)}
}

// Validate checks budget input
func (b *Budget) Validate() error {
	var errs ValidationErrors
	if b.Name == "" {
		errs.Add("name", "Name is required")
	} else if len(b.Name) > MaxNameLength {
		errs.Add("name", "Name must be 255 characters or less")
	}
	if len(b.CategoryIDs) == 0 {
		errs.Add("categoryIds", "At least one category is required")
	}
	if !b.LimitAmount.IsPositive() {
		errs.Add("limitAmount", "Limit must be greater than zero")
	}
	if b.StartDate.IsZero() || b.EndDate.IsZero() {
		errs.Add("startDate", "Start and end dates are required")
	} else if b.EndDate.Before(b.StartDate) {
		errs.Add("endDate", "End date must not be before start date")
	}
	return errs.Err()
}

type BudgetRepository interface {
	Create(ctx context.Context, budget *Budget) (*Budget, error)
	GetByID(ctx context.Context, userID, id uuid.UUID) (*Budget, error)
	GetAllByUser(ctx context.Context, userID uuid.UUID) ([]*Budget, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
	DeleteAllByUser(ctx context.Context, userID uuid.UUID) error
}
