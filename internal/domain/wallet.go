package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Wallet holds money. Its current balance is never stored; it is derived from the ledger.
type Wallet struct {
	ID             uuid.UUID       `json:"id"`
	UserID         uuid.UUID       `json:"userId"`
	Name           string          `json:"name"`
	Icon           *string         `json:"icon,omitempty"`
	InitialBalance decimal.Decimal `json:"initialBalance"`
	Hidden         bool            `json:"hidden"`
	IsMainWallet   bool            `json:"isMainWallet"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// WalletFilter narrows a wallet listing
type WalletFilter struct {
	IncludeHidden bool
}

type WalletRepository interface {
	Create(ctx context.Context, wallet *Wallet) (*Wallet, error)
	GetByID(ctx context.Context, userID, id uuid.UUID) (*Wallet, error)
	GetAllByUser(ctx context.Context, userID uuid.UUID, filter WalletFilter) ([]*Wallet, error)
	Update(ctx context.Context, wallet *Wallet) (*Wallet, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
	DeleteAllByUser(ctx context.Context, userID uuid.UUID) error
}
