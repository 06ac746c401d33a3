package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dafibh/fortuna/ledger-backend/internal/domain"
	"github.com/dafibh/fortuna/ledger-backend/internal/repository/storage"
	"github.com/dafibh/fortuna/ledger-backend/internal/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// BackupFormatVersion is written into every snapshot; Restore rejects other versions
const BackupFormatVersion = 1

// BackupDownloadExpiry bounds how long a presigned download link stays valid
const BackupDownloadExpiry = 15 * time.Minute

// Snapshot is the serialized form of one user's ledger and milestones.
// Milestones carry raw conditions, never computed progress.
type Snapshot struct {
	Version      int                   `json:"version"`
	CreatedAt    time.Time             `json:"createdAt"`
	Wallets      []*domain.Wallet      `json:"wallets"`
	Budgets      []*domain.Budget      `json:"budgets"`
	Transactions []*domain.Transaction `json:"transactions"`
	Milestones   []*domain.Milestone   `json:"milestones"`
}

// RestoreResult counts what a restore recreated
type RestoreResult struct {
	Key                 string `json:"key"`
	Wallets             int    `json:"wallets"`
	Budgets             int    `json:"budgets"`
	Transactions        int    `json:"transactions"`
	Milestones          int    `json:"milestones"`
	SkippedMilestones   int    `json:"skippedMilestones"`
	DroppedConditions   int    `json:"droppedConditions"`
	SkippedTransactions int    `json:"skippedTransactions"`
}

// BackupService exports and restores user data through a BackupStore
type BackupService struct {
	store           storage.BackupStore
	walletRepo      domain.WalletRepository
	budgetRepo      domain.BudgetRepository
	transactionRepo domain.TransactionRepository
	milestoneRepo   domain.MilestoneRepository
	eventPublisher  websocket.EventPublisher
	now             func() time.Time
}

// NewBackupService creates a new BackupService. A nil store disables every operation.
func NewBackupService(
	store storage.BackupStore,
	walletRepo domain.WalletRepository,
	budgetRepo domain.BudgetRepository,
	transactionRepo domain.TransactionRepository,
	milestoneRepo domain.MilestoneRepository,
) *BackupService {
	return &BackupService{
		store:           store,
		walletRepo:      walletRepo,
		budgetRepo:      budgetRepo,
		transactionRepo: transactionRepo,
		milestoneRepo:   milestoneRepo,
		now:             time.Now,
	}
}

// SetEventPublisher sets the event publisher for real-time updates
func (s *BackupService) SetEventPublisher(publisher websocket.EventPublisher) {
	s.eventPublisher = publisher
}

// SetClock overrides the time source
func (s *BackupService) SetClock(now func() time.Time) {
	s.now = now
}

// Export writes a snapshot of the user's data and returns its object key
func (s *BackupService) Export(ctx context.Context, userID uuid.UUID) (string, error) {
	if s.store == nil {
		return "", domain.ErrBackupDisabled
	}

	snapshot, err := s.snapshot(ctx, userID)
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return "", fmt.Errorf("failed to encode snapshot: %w", err)
	}

	key := storage.BackupKey(userID, snapshot.CreatedAt)
	if err := s.store.Put(ctx, key, data); err != nil {
		return "", err
	}

	log.Info().
		Str("user_id", userID.String()).
		Str("key", key).
		Int("bytes", len(data)).
		Msg("Backup exported")
	return key, nil
}

func (s *BackupService) snapshot(ctx context.Context, userID uuid.UUID) (*Snapshot, error) {
	wallets, err := s.walletRepo.GetAllByUser(ctx, userID, domain.WalletFilter{IncludeHidden: true})
	if err != nil {
		return nil, err
	}
	budgets, err := s.budgetRepo.GetAllByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	transactions, err := s.transactionRepo.Find(ctx, domain.LedgerFilter{UserID: userID})
	if err != nil {
		return nil, err
	}
	milestones, err := s.milestoneRepo.GetAllByUser(ctx, userID, domain.MilestoneFilter{SortBy: domain.MilestoneSortCreatedAt})
	if err != nil {
		return nil, err
	}
	return &Snapshot{
		Version:      BackupFormatVersion,
		CreatedAt:    s.now().UTC(),
		Wallets:      wallets,
		Budgets:      budgets,
		Transactions: transactions,
		Milestones:   milestones,
	}, nil
}

// List returns the user's backup keys, newest first
func (s *BackupService) List(ctx context.Context, userID uuid.UUID) ([]string, error) {
	if s.store == nil {
		return nil, domain.ErrBackupDisabled
	}
	return s.store.List(ctx, storage.BackupPrefix(userID))
}

// DownloadURL returns a short-lived link to one of the user's backups
func (s *BackupService) DownloadURL(ctx context.Context, userID uuid.UUID, key string) (string, error) {
	if s.store == nil {
		return "", domain.ErrBackupDisabled
	}
	if !strings.HasPrefix(key, storage.BackupPrefix(userID)) {
		return "", domain.ErrBackupNotFound
	}
	url, err := s.store.GeneratePresignedURL(ctx, key, BackupDownloadExpiry)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return "", domain.ErrBackupNotFound
	}
	return url, err
}

// Restore replaces the user's data with a stored snapshot. Wallets and budgets get fresh ids
// and every reference to them is remapped.
func (s *BackupService) Restore(ctx context.Context, userID uuid.UUID, key string) (*RestoreResult, error) {
	if s.store == nil {
		return nil, domain.ErrBackupDisabled
	}
	// keys are scoped per user; another user's key is reported as missing
	if !strings.HasPrefix(key, storage.BackupPrefix(userID)) {
		return nil, domain.ErrBackupNotFound
	}

	data, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, domain.ErrBackupNotFound
		}
		return nil, err
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("%w: backup is not a valid snapshot: %v", domain.ErrValidation, err)
	}
	if snapshot.Version != BackupFormatVersion {
		return nil, fmt.Errorf("%w: unsupported backup version %d", domain.ErrValidation, snapshot.Version)
	}

	if err := s.clear(ctx, userID); err != nil {
		return nil, err
	}

	result := &RestoreResult{Key: key}
	walletIDs := make(map[uuid.UUID]uuid.UUID, len(snapshot.Wallets))
	for _, w := range snapshot.Wallets {
		created, err := s.walletRepo.Create(ctx, &domain.Wallet{
			UserID:         userID,
			Name:           w.Name,
			Icon:           w.Icon,
			InitialBalance: w.InitialBalance,
			Hidden:         w.Hidden,
			IsMainWallet:   w.IsMainWallet,
		})
		if err != nil {
			return nil, fmt.Errorf("restore wallet %s: %w", w.ID, err)
		}
		walletIDs[w.ID] = created.ID
		result.Wallets++
	}

	budgetIDs := make(map[uuid.UUID]uuid.UUID, len(snapshot.Budgets))
	for _, b := range snapshot.Budgets {
		created, err := s.budgetRepo.Create(ctx, &domain.Budget{
			UserID:      userID,
			Name:        b.Name,
			CategoryIDs: b.CategoryIDs,
			LimitAmount: b.LimitAmount,
			StartDate:   b.StartDate,
			EndDate:     b.EndDate,
		})
		if err != nil {
			return nil, fmt.Errorf("restore budget %s: %w", b.ID, err)
		}
		budgetIDs[b.ID] = created.ID
		result.Budgets++
	}

	for _, t := range snapshot.Transactions {
		restored, ok := remapTransaction(t, userID, walletIDs)
		if !ok {
			log.Warn().
				Str("user_id", userID.String()).
				Str("transaction_id", t.ID.String()).
				Msg("Skipping restored transaction that references a wallet missing from the backup")
			result.SkippedTransactions++
			continue
		}
		if _, err := s.transactionRepo.Create(ctx, restored); err != nil {
			return nil, fmt.Errorf("restore transaction %s: %w", t.ID, err)
		}
		result.Transactions++
	}

	for _, m := range snapshot.Milestones {
		conditions, dropped := remapConditions(m.Conditions, walletIDs, budgetIDs)
		result.DroppedConditions += dropped
		if len(conditions) == 0 {
			result.SkippedMilestones++
			continue
		}
		if _, err := s.milestoneRepo.Create(ctx, &domain.Milestone{
			UserID:      userID,
			Name:        m.Name,
			Description: m.Description,
			Icon:        m.Icon,
			Color:       m.Color,
			Conditions:  conditions,
			TargetDate:  m.TargetDate,
			AchievedAt:  m.AchievedAt,
			Status:      m.Status,
		}); err != nil {
			return nil, fmt.Errorf("restore milestone %s: %w", m.ID, err)
		}
		result.Milestones++
	}

	log.Info().
		Str("user_id", userID.String()).
		Str("key", key).
		Int("wallets", result.Wallets).
		Int("budgets", result.Budgets).
		Int("transactions", result.Transactions).
		Int("milestones", result.Milestones).
		Int("dropped_conditions", result.DroppedConditions).
		Msg("Backup restored")

	if s.eventPublisher != nil {
		s.eventPublisher.Publish(userID, websocket.LedgerRestored(result))
	}
	return result, nil
}

// clear deletes the user's data so nothing is left referencing a deleted row
func (s *BackupService) clear(ctx context.Context, userID uuid.UUID) error {
	if err := s.milestoneRepo.DeleteAllByUser(ctx, userID); err != nil {
		return fmt.Errorf("clear milestones: %w", err)
	}
	if err := s.transactionRepo.DeleteAllByUser(ctx, userID); err != nil {
		return fmt.Errorf("clear transactions: %w", err)
	}
	if err := s.budgetRepo.DeleteAllByUser(ctx, userID); err != nil {
		return fmt.Errorf("clear budgets: %w", err)
	}
	if err := s.walletRepo.DeleteAllByUser(ctx, userID); err != nil {
		return fmt.Errorf("clear wallets: %w", err)
	}
	return nil
}

func remapTransaction(t *domain.Transaction, userID uuid.UUID, walletIDs map[uuid.UUID]uuid.UUID) (*domain.Transaction, bool) {
	walletID, ok := walletIDs[t.WalletID]
	if !ok {
		return nil, false
	}
	restored := &domain.Transaction{
		UserID:     userID,
		Type:       t.Type,
		Amount:     t.Amount,
		WalletID:   walletID,
		CategoryID: t.CategoryID,
		Date:       t.Date,
		Note:       t.Note,
	}
	if t.DestinationWalletID != nil {
		dest, ok := walletIDs[*t.DestinationWalletID]
		if !ok {
			return nil, false
		}
		restored.DestinationWalletID = &dest
	}
	return restored, true
}

// remapConditions rewrites wallet and budget references. Budget conditions whose budget is
// gone are dropped; wallet conditions whose wallet is gone fall back to all wallets.
func remapConditions(conditions []domain.Condition, walletIDs, budgetIDs map[uuid.UUID]uuid.UUID) ([]domain.Condition, int) {
	out := make([]domain.Condition, 0, len(conditions))
	dropped := 0
	for _, c := range conditions {
		switch cfg := c.Config.(type) {
		case domain.WalletBalanceConfig:
			if cfg.WalletID != nil {
				if newID, ok := walletIDs[*cfg.WalletID]; ok {
					cfg.WalletID = &newID
				} else {
					cfg.WalletID = nil
				}
			}
			c.Config = cfg
		case domain.BudgetControlConfig:
			newID, ok := budgetIDs[cfg.BudgetID]
			if !ok {
				dropped++
				continue
			}
			cfg.BudgetID = newID
			c.Config = cfg
		}
		out = append(out, c)
	}
	return out, dropped
}
