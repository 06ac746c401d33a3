package service

import (
	"context"
	"testing"
	"time"

	"github.com/dafibh/fortuna/ledger-backend/internal/domain"
	"github.com/dafibh/fortuna/ledger-backend/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reportFixture struct {
	service      *ReportService
	wallets      *testutil.MockWalletRepository
	transactions *testutil.MockTransactionRepository
	bank         *domain.Wallet
	cash         *domain.Wallet
	stash        *domain.Wallet
}

// bank and cash are visible, stash is hidden
func newReportFixture() *reportFixture {
	f := &reportFixture{
		wallets:      testutil.NewMockWalletRepository(),
		transactions: testutil.NewMockTransactionRepository(),
	}
	f.service = NewReportService(f.wallets, f.transactions)
	f.bank = f.wallets.AddWallet(&domain.Wallet{UserID: testUserID, Name: "Bank", InitialBalance: dec("1000")})
	f.cash = f.wallets.AddWallet(&domain.Wallet{UserID: testUserID, Name: "Cash", InitialBalance: dec("50")})
	f.stash = f.wallets.AddWallet(&domain.Wallet{UserID: testUserID, Name: "Stash", InitialBalance: dec("500"), Hidden: true})
	return f
}

func datePtr(y int, m time.Month, d int) *time.Time {
	t := day(y, m, d)
	return &t
}

func TestReportSummary_ExcludesHiddenWallets(t *testing.T) {
	f := newReportFixture()
	groceries := uuid.New()
	addIncome(f.transactions, f.bank.ID, "2000", day(2024, 3, 1))
	addExpense(f.transactions, f.bank.ID, groceries, "300", day(2024, 3, 5))
	addExpense(f.transactions, f.stash.ID, groceries, "80", day(2024, 3, 6))
	addTransfer(f.transactions, f.bank.ID, f.cash.ID, "100", day(2024, 3, 7))
	addTransfer(f.transactions, f.stash.ID, f.bank.ID, "40", day(2024, 3, 8))

	summary, err := f.service.Summary(context.Background(), testUserID, ReportFilter{})
	require.NoError(t, err)
	assertDecimal(t, "2000", summary.TotalIncome)
	assertDecimal(t, "300", summary.TotalExpense)
	assertDecimal(t, "100", summary.TotalTransfer)
	assertDecimal(t, "1700", summary.Net)

	summary, err = f.service.Summary(context.Background(), testUserID, ReportFilter{IncludeHidden: true})
	require.NoError(t, err)
	assertDecimal(t, "380", summary.TotalExpense)
	assertDecimal(t, "140", summary.TotalTransfer)
	assertDecimal(t, "1620", summary.Net)
}

func TestReportSummary_InclusiveDateRange(t *testing.T) {
	f := newReportFixture()
	addIncome(f.transactions, f.bank.ID, "10", day(2024, 2, 29))
	addIncome(f.transactions, f.bank.ID, "20", day(2024, 3, 1))
	addIncome(f.transactions, f.bank.ID, "30", day(2024, 3, 31))
	addIncome(f.transactions, f.bank.ID, "40", day(2024, 4, 1))

	summary, err := f.service.Summary(context.Background(), testUserID, ReportFilter{
		StartDate: datePtr(2024, 3, 1),
		EndDate:   datePtr(2024, 3, 31),
	})

	require.NoError(t, err)
	assertDecimal(t, "50", summary.TotalIncome)
}

func TestReportSummary_NoWallets(t *testing.T) {
	svc := NewReportService(testutil.NewMockWalletRepository(), testutil.NewMockTransactionRepository())

	summary, err := svc.Summary(context.Background(), testUserID, ReportFilter{})

	require.NoError(t, err)
	assert.True(t, summary.Net.IsZero())
}

func TestReportByCategory_GroupsByTypeLargestFirst(t *testing.T) {
	f := newReportFixture()
	rent, food, salary := uuid.New(), uuid.New(), uuid.New()
	addExpense(f.transactions, f.bank.ID, food, "30", day(2024, 3, 2))
	addExpense(f.transactions, f.cash.ID, food, "45", day(2024, 3, 3))
	addExpense(f.transactions, f.bank.ID, rent, "900", day(2024, 3, 1))
	addExpense(f.transactions, f.stash.ID, rent, "1", day(2024, 3, 1))
	addTransfer(f.transactions, f.bank.ID, f.cash.ID, "20", day(2024, 3, 4))
	f.transactions.AddTransaction(&domain.Transaction{
		UserID: testUserID, Type: domain.TransactionTypeIncome, Amount: dec("3000"),
		WalletID: f.bank.ID, CategoryID: &salary, Date: day(2024, 3, 1),
	})

	grouped, err := f.service.ByCategory(context.Background(), testUserID, ReportFilter{})
	require.NoError(t, err)

	expenses := grouped[domain.TransactionTypeExpense]
	require.Len(t, expenses, 2)
	assert.Equal(t, rent, expenses[0].CategoryID)
	assertDecimal(t, "900", expenses[0].Total)
	assert.Equal(t, food, expenses[1].CategoryID)
	assertDecimal(t, "75", expenses[1].Total)

	income := grouped[domain.TransactionTypeIncome]
	require.Len(t, income, 1)
	assertDecimal(t, "3000", income[0].Total)
	assert.NotContains(t, grouped, domain.TransactionTypeTransfer)
}

func TestReportByWallet_OpeningAndClosingBalances(t *testing.T) {
	f := newReportFixture()
	food := uuid.New()
	addIncome(f.transactions, f.bank.ID, "200", day(2024, 2, 10))
	addExpense(f.transactions, f.bank.ID, food, "50", day(2024, 3, 5))
	addTransfer(f.transactions, f.bank.ID, f.cash.ID, "100", day(2024, 3, 6))
	addIncome(f.transactions, f.bank.ID, "999", day(2024, 4, 2))

	reports, err := f.service.ByWallet(context.Background(), testUserID, ReportFilter{
		StartDate: datePtr(2024, 3, 1),
		EndDate:   datePtr(2024, 3, 31),
	})
	require.NoError(t, err)
	require.Len(t, reports, 2)

	bank := reports[0]
	assert.Equal(t, f.bank.ID, bank.Wallet.ID)
	assertDecimal(t, "1200", bank.InitialBalance)
	assertDecimal(t, "0", bank.TotalIncome)
	assertDecimal(t, "150", bank.TotalExpense)
	assertDecimal(t, "1050", bank.FinalBalance)

	cash := reports[1]
	assertDecimal(t, "50", cash.InitialBalance)
	assertDecimal(t, "100", cash.TotalIncome)
	assertDecimal(t, "150", cash.FinalBalance)
}

func TestReportByWallet_IncludeHidden(t *testing.T) {
	f := newReportFixture()

	reports, err := f.service.ByWallet(context.Background(), testUserID, ReportFilter{IncludeHidden: true})
	require.NoError(t, err)
	require.Len(t, reports, 3)
	assert.Equal(t, "Stash", reports[2].Wallet.Name)
	assertDecimal(t, "500", reports[2].FinalBalance)
}
