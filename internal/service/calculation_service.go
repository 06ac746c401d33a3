package service

import (
	"context"

	"github.com/dafibh/fortuna/ledger-backend/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CalculationService derives wallet balances and budget spending from the ledger.
// Nothing here is stored: every value is recomputed from transactions on each call.
type CalculationService struct {
	walletRepo      domain.WalletRepository
	transactionRepo domain.TransactionRepository
}

// NewCalculationService creates a new CalculationService
func NewCalculationService(walletRepo domain.WalletRepository, transactionRepo domain.TransactionRepository) *CalculationService {
	return &CalculationService{
		walletRepo:      walletRepo,
		transactionRepo: transactionRepo,
	}
}

// WalletBalanceResult holds calculated balance information for a wallet
type WalletBalanceResult struct {
	Wallet            *domain.Wallet
	CalculatedBalance decimal.Decimal
}

// WalletBalance returns initial + income - expense - transfer_out + transfer_in for one wallet.
// A nil window covers the wallet's whole history.
func (s *CalculationService) WalletBalance(ctx context.Context, userID, walletID uuid.UUID, window *domain.Window) (decimal.Decimal, error) {
	wallet, err := s.walletRepo.GetByID(ctx, userID, walletID)
	if err != nil {
		return decimal.Zero, err
	}

	summaries, err := s.transactionRepo.SummarizeWallets(ctx, userID, []uuid.UUID{walletID}, window)
	if err != nil {
		return decimal.Zero, err
	}

	balance := wallet.InitialBalance
	for _, summary := range summaries {
		if summary.WalletID == walletID {
			balance = balance.Add(summary.Net())
		}
	}
	return balance, nil
}

// CalculateWalletBalances calculates balances for all of a user's wallets in one ledger pass
func (s *CalculationService) CalculateWalletBalances(ctx context.Context, userID uuid.UUID, includeHidden bool) ([]*WalletBalanceResult, error) {
	wallets, err := s.walletRepo.GetAllByUser(ctx, userID, domain.WalletFilter{IncludeHidden: includeHidden})
	if err != nil {
		return nil, err
	}
	if len(wallets) == 0 {
		return []*WalletBalanceResult{}, nil
	}

	ids := make([]uuid.UUID, len(wallets))
	for i, w := range wallets {
		ids[i] = w.ID
	}

	summaries, err := s.transactionRepo.SummarizeWallets(ctx, userID, ids, nil)
	if err != nil {
		return nil, err
	}

	summaryMap := make(map[uuid.UUID]*domain.WalletMovementSummary, len(summaries))
	for _, summary := range summaries {
		summaryMap[summary.WalletID] = summary
	}

	results := make([]*WalletBalanceResult, 0, len(wallets))
	for _, wallet := range wallets {
		result := &WalletBalanceResult{
			Wallet:            wallet,
			CalculatedBalance: wallet.InitialBalance,
		}
		if summary, ok := summaryMap[wallet.ID]; ok {
			result.CalculatedBalance = wallet.InitialBalance.Add(summary.Net())
		}
		results = append(results, result)
	}
	return results, nil
}

// NetWorth sums the balances of the user's wallets, optionally skipping hidden ones.
// A transfer between two included wallets nets to zero.
func (s *CalculationService) NetWorth(ctx context.Context, userID uuid.UUID, includeHidden bool) (decimal.Decimal, error) {
	results, err := s.CalculateWalletBalances(ctx, userID, includeHidden)
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, result := range results {
		total = total.Add(result.CalculatedBalance)
	}
	return total, nil
}

// BudgetSpent sums expenses in the budget's categories within window ∩ the budget's own range.
// A nil window means the budget's full range.
func (s *CalculationService) BudgetSpent(ctx context.Context, budget *domain.Budget, window *domain.Window) (decimal.Decimal, error) {
	if len(budget.CategoryIDs) == 0 {
		return decimal.Zero, nil
	}

	effective := budget.Window()
	if window != nil {
		effective = effective.Intersect(*window)
	}
	if effective.Empty() {
		return decimal.Zero, nil
	}

	expense := domain.TransactionTypeExpense
	return s.transactionRepo.Sum(ctx, domain.LedgerFilter{
		UserID:      budget.UserID,
		Type:        &expense,
		CategoryIDs: budget.CategoryIDs,
		Window:      &effective,
	})
}
