package service

import (
	"context"
	"strings"

	"github.com/dafibh/fortuna/ledger-backend/internal/domain"
	"github.com/dafibh/fortuna/ledger-backend/internal/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// WalletService handles wallet management. Balances come from CalculationService.
type WalletService struct {
	walletRepo         domain.WalletRepository
	transactionRepo    domain.TransactionRepository
	milestoneRepo      domain.MilestoneRepository
	calculationService *CalculationService
	eventPublisher     websocket.EventPublisher
}

// NewWalletService creates a new WalletService
func NewWalletService(walletRepo domain.WalletRepository, transactionRepo domain.TransactionRepository, milestoneRepo domain.MilestoneRepository, calculationService *CalculationService) *WalletService {
	return &WalletService{
		walletRepo:         walletRepo,
		transactionRepo:    transactionRepo,
		milestoneRepo:      milestoneRepo,
		calculationService: calculationService,
	}
}

// SetEventPublisher sets the event publisher for real-time updates
func (s *WalletService) SetEventPublisher(publisher websocket.EventPublisher) {
	s.eventPublisher = publisher
}

func (s *WalletService) publishEvent(userID uuid.UUID, event websocket.Event) {
	if s.eventPublisher != nil {
		s.eventPublisher.Publish(userID, event)
	}
}

// CreateWalletInput holds the input for creating a wallet
type CreateWalletInput struct {
	Name           string
	Icon           *string
	InitialBalance decimal.Decimal
	Hidden         bool
	IsMainWallet   bool
}

// UpdateWalletInput is a partial wallet update
type UpdateWalletInput struct {
	Name           *string
	Icon           *string
	InitialBalance *decimal.Decimal
	Hidden         *bool
	IsMainWallet   *bool
}

func validateWalletName(name string) (string, error) {
	name = strings.TrimSpace(name)
	var errs domain.ValidationErrors
	if name == "" {
		errs.Add("name", "Name is required")
	} else if len(name) > domain.MaxNameLength {
		errs.Add("name", "Name must be 255 characters or less")
	}
	return name, errs.Err()
}

// CreateWallet creates a wallet; making it the main wallet demotes the previous one
func (s *WalletService) CreateWallet(ctx context.Context, userID uuid.UUID, input CreateWalletInput) (*WalletBalanceResult, error) {
	name, err := validateWalletName(input.Name)
	if err != nil {
		return nil, err
	}

	wallet, err := s.walletRepo.Create(ctx, &domain.Wallet{
		UserID:         userID,
		Name:           name,
		Icon:           input.Icon,
		InitialBalance: input.InitialBalance,
		Hidden:         input.Hidden,
		IsMainWallet:   input.IsMainWallet,
	})
	if err != nil {
		log.Error().Err(err).Str("user_id", userID.String()).Msg("Failed to create wallet")
		return nil, err
	}

	result := &WalletBalanceResult{Wallet: wallet, CalculatedBalance: wallet.InitialBalance}
	s.publishEvent(userID, websocket.WalletCreated(wallet))
	return result, nil
}

// GetWallet returns one wallet with its derived balance
func (s *WalletService) GetWallet(ctx context.Context, userID, id uuid.UUID) (*WalletBalanceResult, error) {
	wallet, err := s.walletRepo.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	balance, err := s.calculationService.WalletBalance(ctx, userID, id, nil)
	if err != nil {
		return nil, err
	}
	return &WalletBalanceResult{Wallet: wallet, CalculatedBalance: balance}, nil
}

// ListWallets returns the user's wallets with derived balances
func (s *WalletService) ListWallets(ctx context.Context, userID uuid.UUID, includeHidden bool) ([]*WalletBalanceResult, error) {
	return s.calculationService.CalculateWalletBalances(ctx, userID, includeHidden)
}

// NetWorth returns the sum of all wallet balances
func (s *WalletService) NetWorth(ctx context.Context, userID uuid.UUID, includeHidden bool) (decimal.Decimal, error) {
	return s.calculationService.NetWorth(ctx, userID, includeHidden)
}

// UpdateWallet applies a partial update
func (s *WalletService) UpdateWallet(ctx context.Context, userID, id uuid.UUID, input UpdateWalletInput) (*WalletBalanceResult, error) {
	wallet, err := s.walletRepo.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	updated := *wallet
	if input.Name != nil {
		name, err := validateWalletName(*input.Name)
		if err != nil {
			return nil, err
		}
		updated.Name = name
	}
	if input.Icon != nil {
		updated.Icon = input.Icon
	}
	if input.InitialBalance != nil {
		updated.InitialBalance = *input.InitialBalance
	}
	if input.Hidden != nil {
		updated.Hidden = *input.Hidden
	}
	if input.IsMainWallet != nil {
		updated.IsMainWallet = *input.IsMainWallet
	}

	saved, err := s.walletRepo.Update(ctx, &updated)
	if err != nil {
		return nil, err
	}
	balance, err := s.calculationService.WalletBalance(ctx, userID, id, nil)
	if err != nil {
		return nil, err
	}

	s.publishEvent(userID, websocket.WalletUpdated(saved))
	return &WalletBalanceResult{Wallet: saved, CalculatedBalance: balance}, nil
}

// DeleteWallet removes a wallet that no transaction and no milestone condition references
func (s *WalletService) DeleteWallet(ctx context.Context, userID, id uuid.UUID) error {
	if _, err := s.walletRepo.GetByID(ctx, userID, id); err != nil {
		return err
	}

	refs, err := s.transactionRepo.Find(ctx, domain.LedgerFilter{UserID: userID, AnyWalletID: &id, Limit: 1})
	if err != nil {
		return err
	}
	if len(refs) > 0 {
		return domain.ErrWalletInUse
	}

	milestones, err := s.milestoneRepo.GetAllByUser(ctx, userID, domain.MilestoneFilter{})
	if err != nil {
		return err
	}
	for _, m := range milestones {
		if referencesWallet(m, id) {
			log.Debug().Str("wallet_id", id.String()).Str("milestone_id", m.ID.String()).Msg("wallet referenced by milestone")
			return domain.ErrWalletInUse
		}
	}

	if err := s.walletRepo.Delete(ctx, userID, id); err != nil {
		return err
	}
	s.publishEvent(userID, websocket.WalletDeleted(id.String()))
	return nil
}

func referencesWallet(m *domain.Milestone, walletID uuid.UUID) bool {
	for _, c := range m.Conditions {
		if cfg, ok := c.Config.(domain.WalletBalanceConfig); ok && cfg.WalletID != nil && *cfg.WalletID == walletID {
			return true
		}
	}
	return false
}
