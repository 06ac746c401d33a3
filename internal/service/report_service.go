package service

import (
	"context"
	"sort"
	"time"

	"github.com/dafibh/fortuna/ledger-backend/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReportService aggregates the ledger over a date range for read-only reports.
// Hidden wallets are left out unless the filter includes them.
type ReportService struct {
	walletRepo      domain.WalletRepository
	transactionRepo domain.TransactionRepository
}

// NewReportService creates a new ReportService
func NewReportService(walletRepo domain.WalletRepository, transactionRepo domain.TransactionRepository) *ReportService {
	return &ReportService{
		walletRepo:      walletRepo,
		transactionRepo: transactionRepo,
	}
}

// ReportFilter bounds a report. Both dates are optional and inclusive.
type ReportFilter struct {
	StartDate     *time.Time
	EndDate       *time.Time
	IncludeHidden bool
}

// Summary totals the user's movements. Transfers are attributed to their source wallet.
type Summary struct {
	TotalIncome   decimal.Decimal
	TotalExpense  decimal.Decimal
	TotalTransfer decimal.Decimal
	Net           decimal.Decimal
}

// CategoryTotal is the sum of one category's entries of one type
type CategoryTotal struct {
	CategoryID uuid.UUID
	Total      decimal.Decimal
}

// WalletReport is a wallet's opening balance at the range start, the money in and out
// during the range, and the resulting closing balance
type WalletReport struct {
	Wallet         *domain.Wallet
	InitialBalance decimal.Decimal
	TotalIncome    decimal.Decimal
	TotalExpense   decimal.Decimal
	FinalBalance   decimal.Decimal
}

// dateRangeWindow turns optional inclusive dates into a half-open window; nil when unbounded
func dateRangeWindow(start, end *time.Time) *domain.Window {
	if start == nil && end == nil {
		return nil
	}
	window := domain.Window{Start: time.Time{}, End: time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC)}
	if start != nil {
		window.Start = *start
	}
	if end != nil {
		// end date is inclusive
		window.End = end.AddDate(0, 0, 1)
	}
	return &window
}

func (s *ReportService) wallets(ctx context.Context, userID uuid.UUID, includeHidden bool) ([]*domain.Wallet, []uuid.UUID, error) {
	wallets, err := s.walletRepo.GetAllByUser(ctx, userID, domain.WalletFilter{IncludeHidden: includeHidden})
	if err != nil {
		return nil, nil, err
	}
	ids := make([]uuid.UUID, len(wallets))
	for i, w := range wallets {
		ids[i] = w.ID
	}
	return wallets, ids, nil
}

// Summary returns income, expense and transfer totals over the range
func (s *ReportService) Summary(ctx context.Context, userID uuid.UUID, filter ReportFilter) (*Summary, error) {
	result := &Summary{}
	_, ids, err := s.wallets(ctx, userID, filter.IncludeHidden)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return result, nil
	}

	summaries, err := s.transactionRepo.SummarizeWallets(ctx, userID, ids, dateRangeWindow(filter.StartDate, filter.EndDate))
	if err != nil {
		return nil, err
	}
	for _, summary := range summaries {
		result.TotalIncome = result.TotalIncome.Add(summary.SumIncome)
		result.TotalExpense = result.TotalExpense.Add(summary.SumExpense)
		result.TotalTransfer = result.TotalTransfer.Add(summary.SumTransferOut)
	}
	result.Net = result.TotalIncome.Sub(result.TotalExpense)
	return result, nil
}

// ByCategory groups income and expense totals per category, keyed by transaction type.
// Each list is ordered by total, largest first.
func (s *ReportService) ByCategory(ctx context.Context, userID uuid.UUID, filter ReportFilter) (map[domain.TransactionType][]CategoryTotal, error) {
	_, ids, err := s.wallets(ctx, userID, filter.IncludeHidden)
	if err != nil {
		return nil, err
	}
	result := map[domain.TransactionType][]CategoryTotal{}
	if len(ids) == 0 {
		return result, nil
	}
	visible := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		visible[id] = true
	}

	rows, err := s.transactionRepo.Find(ctx, domain.LedgerFilter{
		UserID: userID,
		Window: dateRangeWindow(filter.StartDate, filter.EndDate),
	})
	if err != nil {
		return nil, err
	}

	type key struct {
		typ        domain.TransactionType
		categoryID uuid.UUID
	}
	totals := map[key]decimal.Decimal{}
	for _, t := range rows {
		if t.CategoryID == nil || !visible[t.WalletID] {
			continue
		}
		k := key{t.Type, *t.CategoryID}
		totals[k] = totals[k].Add(t.Amount)
	}

	for k, total := range totals {
		result[k.typ] = append(result[k.typ], CategoryTotal{CategoryID: k.categoryID, Total: total})
	}
	for _, list := range result {
		sort.Slice(list, func(i, j int) bool {
			if c := list[i].Total.Cmp(list[j].Total); c != 0 {
				return c > 0
			}
			return list[i].CategoryID.String() < list[j].CategoryID.String()
		})
	}
	return result, nil
}

// ByWallet reports every included wallet. Transfers in count as income and transfers out
// as expense, so FinalBalance matches the derived balance at the range end.
func (s *ReportService) ByWallet(ctx context.Context, userID uuid.UUID, filter ReportFilter) ([]*WalletReport, error) {
	wallets, ids, err := s.wallets(ctx, userID, filter.IncludeHidden)
	if err != nil {
		return nil, err
	}
	if len(wallets) == 0 {
		return []*WalletReport{}, nil
	}

	var before map[uuid.UUID]*domain.WalletMovementSummary
	if filter.StartDate != nil {
		before, err = s.summarize(ctx, userID, ids, &domain.Window{Start: time.Time{}, End: *filter.StartDate})
		if err != nil {
			return nil, err
		}
	}
	during, err := s.summarize(ctx, userID, ids, dateRangeWindow(filter.StartDate, filter.EndDate))
	if err != nil {
		return nil, err
	}

	reports := make([]*WalletReport, 0, len(wallets))
	for _, wallet := range wallets {
		report := &WalletReport{Wallet: wallet, InitialBalance: wallet.InitialBalance}
		if summary, ok := before[wallet.ID]; ok {
			report.InitialBalance = report.InitialBalance.Add(summary.Net())
		}
		if summary, ok := during[wallet.ID]; ok {
			report.TotalIncome = summary.SumIncome.Add(summary.SumTransferIn)
			report.TotalExpense = summary.SumExpense.Add(summary.SumTransferOut)
		}
		report.FinalBalance = report.InitialBalance.Add(report.TotalIncome).Sub(report.TotalExpense)
		reports = append(reports, report)
	}
	return reports, nil
}

func (s *ReportService) summarize(ctx context.Context, userID uuid.UUID, ids []uuid.UUID, window *domain.Window) (map[uuid.UUID]*domain.WalletMovementSummary, error) {
	summaries, err := s.transactionRepo.SummarizeWallets(ctx, userID, ids, window)
	if err != nil {
		return nil, err
	}
	byWallet := make(map[uuid.UUID]*domain.WalletMovementSummary, len(summaries))
	for _, summary := range summaries {
		byWallet[summary.WalletID] = summary
	}
	return byWallet, nil
}
