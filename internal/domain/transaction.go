package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionTypeIncome   TransactionType = "income"
	TransactionTypeExpense  TransactionType = "expense"
	TransactionTypeTransfer TransactionType = "transfer"
)

// Valid reports whether t is one of the known transaction types
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypeIncome, TransactionTypeExpense, TransactionTypeTransfer:
		return true
	}
	return false
}

// Transaction is an immutable ledger entry. Income and expense carry a category,
// transfers carry a destination wallet; never both.
type Transaction struct {
	ID                  uuid.UUID       `json:"id"`
	UserID              uuid.UUID       `json:"userId"`
	Type                TransactionType `json:"type"`
	Amount              decimal.Decimal `json:"amount"`
	WalletID            uuid.UUID       `json:"walletId"`
	CategoryID          *uuid.UUID      `json:"categoryId,omitempty"`
	DestinationWalletID *uuid.UUID      `json:"destinationWalletId,omitempty"`
	Date                time.Time       `json:"date"`
	Note                *string         `json:"note,omitempty"`
	CreatedAt           time.Time       `json:"createdAt"`
	UpdatedAt           time.Time       `json:"updatedAt"`
}

// Validate checks the input invariants of a ledger entry
func (t *Transaction) Validate() error {
	var errs ValidationErrors

	if !t.Type.Valid() {
		errs.Add("type", "Type must be one of: income, expense, transfer")
	}
	if !t.Amount.IsPositive() {
		errs.Add("amount", "Amount must be greater than zero")
	} else if !t.Amount.Equal(t.Amount.Truncate(AmountFractionDigits)) {
		errs.Add("amount", "Amount supports at most 4 fractional digits")
	}
	if t.WalletID == uuid.Nil {
		errs.Add("walletId", "Wallet is required")
	}
	if t.Date.IsZero() {
		errs.Add("date", "Date is required")
	}

	switch t.Type {
	case TransactionTypeTransfer:
		if t.DestinationWalletID == nil {
			errs.Add("destinationWalletId", "Destination wallet is required for transfers")
		} else if *t.DestinationWalletID == t.WalletID {
			errs.Add("destinationWalletId", "Source and destination wallets cannot be the same")
		}
		if t.CategoryID != nil {
			errs.Add("categoryId", "Category must not be set for transfers")
		}
	case TransactionTypeIncome, TransactionTypeExpense:
		if t.CategoryID == nil {
			errs.Add("categoryId", "Category is required for income and expense")
		}
		if t.DestinationWalletID != nil {
			errs.Add("destinationWalletId", "Destination wallet must only be set for transfers")
		}
	}

	return errs.Err()
}

// CheckInvariant fails loudly on a stored row that breaks the category/destination
// exclusivity. Such rows cannot be produced through Validate.
func (t *Transaction) CheckInvariant() error {
	if t.CategoryID != nil && t.DestinationWalletID != nil {
		return fmt.Errorf("%w: transaction %s has both category and destination wallet", ErrInvariantViolation, t.ID)
	}
	if t.Type == TransactionTypeTransfer && t.DestinationWalletID == nil {
		return fmt.Errorf("%w: transfer %s has no destination wallet", ErrInvariantViolation, t.ID)
	}
	return nil
}

// AmountOrder selects how ledger queries order rows by amount
type AmountOrder int

const (
	OrderByDate AmountOrder = iota
	OrderByAmountAsc
	OrderByAmountDesc
)

// LedgerFilter selects ledger rows. Nil fields do not filter.
type LedgerFilter struct {
	UserID              uuid.UUID
	Type                *TransactionType
	WalletID            *uuid.UUID
	DestinationWalletID *uuid.UUID
	// AnyWalletID matches either side of a transfer
	AnyWalletID *uuid.UUID
	CategoryID  *uuid.UUID
	CategoryIDs []uuid.UUID
	Amount      *decimal.Decimal
	Window      *Window
	Order       AmountOrder
	Limit       int
}

// WalletMovementSummary aggregates the four movement kinds touching one wallet
type WalletMovementSummary struct {
	WalletID       uuid.UUID
	SumIncome      decimal.Decimal
	SumExpense     decimal.Decimal
	SumTransferOut decimal.Decimal
	SumTransferIn  decimal.Decimal
}

// Net returns income - expense - transfer_out + transfer_in
func (s *WalletMovementSummary) Net() decimal.Decimal {
	return s.SumIncome.Sub(s.SumExpense).Sub(s.SumTransferOut).Add(s.SumTransferIn)
}

// UpdateTransactionData holds a partial update. Clear* flags unset the optional references.
type UpdateTransactionData struct {
	Type                     *TransactionType
	Amount                   *decimal.Decimal
	WalletID                 *uuid.UUID
	CategoryID               *uuid.UUID
	ClearCategory            bool
	DestinationWalletID      *uuid.UUID
	ClearDestinationWalletID bool
	Date                     *time.Time
	Note                     *string
}

type TransactionRepository interface {
	Create(ctx context.Context, transaction *Transaction) (*Transaction, error)
	GetByID(ctx context.Context, userID, id uuid.UUID) (*Transaction, error)
	Update(ctx context.Context, transaction *Transaction) (*Transaction, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
	DeleteAllByUser(ctx context.Context, userID uuid.UUID) error
	Find(ctx context.Context, filter LedgerFilter) ([]*Transaction, error)
	Sum(ctx context.Context, filter LedgerFilter) (decimal.Decimal, error)
	// SummarizeWallets returns one summary per wallet that has movements in the window.
	// An empty walletIDs slice summarizes every wallet of the user.
	SummarizeWallets(ctx context.Context, userID uuid.UUID, walletIDs []uuid.UUID, window *Window) ([]*WalletMovementSummary, error)
}
