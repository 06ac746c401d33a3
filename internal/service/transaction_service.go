package service

import (
	"context"
	"strings"
	"time"

	"github.com/dafibh/fortuna/ledger-backend/internal/domain"
	"github.com/dafibh/fortuna/ledger-backend/internal/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// MaxTransactionNoteLength caps the free-text note on a ledger entry
const MaxTransactionNoteLength = 1000

// TransactionService handles ledger writes and listings
type TransactionService struct {
	transactionRepo domain.TransactionRepository
	walletRepo      domain.WalletRepository
	eventPublisher  websocket.EventPublisher
	now             func() time.Time
}

// NewTransactionService creates a new TransactionService
func NewTransactionService(transactionRepo domain.TransactionRepository, walletRepo domain.WalletRepository) *TransactionService {
	return &TransactionService{
		transactionRepo: transactionRepo,
		walletRepo:      walletRepo,
		now:             time.Now,
	}
}

// SetEventPublisher sets the event publisher for real-time updates
func (s *TransactionService) SetEventPublisher(publisher websocket.EventPublisher) {
	s.eventPublisher = publisher
}

func (s *TransactionService) publishEvent(userID uuid.UUID, event websocket.Event) {
	if s.eventPublisher != nil {
		s.eventPublisher.Publish(userID, event)
	}
}

// CreateTransactionInput holds the input for creating a transaction
type CreateTransactionInput struct {
	Type                domain.TransactionType
	Amount              decimal.Decimal
	WalletID            uuid.UUID
	CategoryID          *uuid.UUID
	DestinationWalletID *uuid.UUID
	Date                *time.Time
	Note                *string
}

// ListTransactionsFilter narrows a transaction listing. WalletID matches either side of a transfer.
type ListTransactionsFilter struct {
	Type       *domain.TransactionType
	WalletID   *uuid.UUID
	CategoryID *uuid.UUID
	StartDate  *time.Time
	EndDate    *time.Time
	Limit      int
}

// CreateTransaction validates the type invariant and wallet ownership, then appends the entry
func (s *TransactionService) CreateTransaction(ctx context.Context, userID uuid.UUID, input CreateTransactionInput) (*domain.Transaction, error) {
	date := s.now().UTC().Truncate(24 * time.Hour)
	if input.Date != nil {
		date = *input.Date
	}

	transaction := &domain.Transaction{
		UserID:              userID,
		Type:                input.Type,
		Amount:              input.Amount,
		WalletID:            input.WalletID,
		CategoryID:          input.CategoryID,
		DestinationWalletID: input.DestinationWalletID,
		Date:                date,
	}
	if err := setNote(transaction, input.Note); err != nil {
		return nil, err
	}
	if err := transaction.Validate(); err != nil {
		return nil, err
	}
	if err := s.checkWallets(ctx, transaction); err != nil {
		return nil, err
	}

	created, err := s.transactionRepo.Create(ctx, transaction)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID.String()).Msg("Failed to create transaction")
		return nil, err
	}

	s.publishEvent(userID, websocket.TransactionCreated(created))
	return created, nil
}

// GetTransaction retrieves one ledger entry
func (s *TransactionService) GetTransaction(ctx context.Context, userID, id uuid.UUID) (*domain.Transaction, error) {
	return s.transactionRepo.GetByID(ctx, userID, id)
}

// ListTransactions returns entries newest first
func (s *TransactionService) ListTransactions(ctx context.Context, userID uuid.UUID, filter ListTransactionsFilter) ([]*domain.Transaction, error) {
	ledgerFilter := domain.LedgerFilter{
		UserID:      userID,
		Type:        filter.Type,
		AnyWalletID: filter.WalletID,
		CategoryID:  filter.CategoryID,
		Order:       domain.OrderByDate,
		Limit:       filter.Limit,
		Window:      dateRangeWindow(filter.StartDate, filter.EndDate),
	}
	return s.transactionRepo.Find(ctx, ledgerFilter)
}

// UpdateTransaction merges the patch onto the stored entry and re-validates the whole row.
// Changing the type clears the category (to transfer) or the destination (from transfer).
func (s *TransactionService) UpdateTransaction(ctx context.Context, userID, id uuid.UUID, data domain.UpdateTransactionData) (*domain.Transaction, error) {
	existing, err := s.transactionRepo.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	updated := *existing
	if data.Type != nil {
		updated.Type = *data.Type
	}
	if data.Amount != nil {
		updated.Amount = *data.Amount
	}
	if data.WalletID != nil {
		updated.WalletID = *data.WalletID
	}
	if data.ClearCategory {
		updated.CategoryID = nil
	} else if data.CategoryID != nil {
		updated.CategoryID = data.CategoryID
	}
	if data.ClearDestinationWalletID {
		updated.DestinationWalletID = nil
	} else if data.DestinationWalletID != nil {
		updated.DestinationWalletID = data.DestinationWalletID
	}
	if data.Date != nil {
		updated.Date = *data.Date
	}
	if data.Note != nil {
		if err := setNote(&updated, data.Note); err != nil {
			return nil, err
		}
	}
	// a type change drops the stored field the new type forbids
	if updated.Type != existing.Type {
		if updated.Type == domain.TransactionTypeTransfer {
			updated.CategoryID = nil
		} else {
			updated.DestinationWalletID = nil
		}
	}

	if err := updated.Validate(); err != nil {
		return nil, err
	}
	if err := s.checkWallets(ctx, &updated); err != nil {
		return nil, err
	}

	saved, err := s.transactionRepo.Update(ctx, &updated)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID.String()).Str("transaction_id", id.String()).Msg("Failed to update transaction")
		return nil, err
	}

	s.publishEvent(userID, websocket.TransactionUpdated(saved))
	return saved, nil
}

// DeleteTransaction removes a ledger entry; balances recompute on the next read
func (s *TransactionService) DeleteTransaction(ctx context.Context, userID, id uuid.UUID) error {
	if err := s.transactionRepo.Delete(ctx, userID, id); err != nil {
		return err
	}
	s.publishEvent(userID, websocket.TransactionDeleted(id.String()))
	return nil
}

func (s *TransactionService) checkWallets(ctx context.Context, t *domain.Transaction) error {
	if _, err := s.walletRepo.GetByID(ctx, t.UserID, t.WalletID); err != nil {
		return err
	}
	if t.DestinationWalletID != nil {
		if _, err := s.walletRepo.GetByID(ctx, t.UserID, *t.DestinationWalletID); err != nil {
			return err
		}
	}
	return nil
}

func setNote(t *domain.Transaction, note *string) error {
	if note == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*note)
	if trimmed == "" {
		t.Note = nil
		return nil
	}
	if len(trimmed) > MaxTransactionNoteLength {
		var errs domain.ValidationErrors
		errs.Add("note", "Note must be 1000 characters or less")
		return errs.Err()
	}
	t.Note = &trimmed
	return nil
}
