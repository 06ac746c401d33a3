package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/dafibh/fortuna/ledger-backend/internal/domain"
	"github.com/dafibh/fortuna/ledger-backend/internal/testutil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type evaluatorFixture struct {
	wallets      *testutil.MockWalletRepository
	transactions *testutil.MockTransactionRepository
	budgets      *testutil.MockBudgetRepository
	evaluator    *ConditionEvaluator
}

func newEvaluatorFixture() *evaluatorFixture {
	f := &evaluatorFixture{
		wallets:      testutil.NewMockWalletRepository(),
		transactions: testutil.NewMockTransactionRepository(),
		budgets:      testutil.NewMockBudgetRepository(),
	}
	calc := NewCalculationService(f.wallets, f.transactions)
	f.evaluator = NewConditionEvaluator(calc, f.budgets, f.transactions)
	return f
}

func (f *evaluatorFixture) eval(t *testing.T, cfg domain.ConditionConfig, now time.Time) domain.ConditionProgress {
	t.Helper()
	p, err := f.evaluator.Evaluate(context.Background(), testUserID, domain.Condition{ID: uuid.New(), Config: cfg}, now)
	require.NoError(t, err)
	return p
}

func assertDecimal(t *testing.T, expected string, actual decimal.Decimal) {
	t.Helper()
	assert.True(t, dec(expected).Equal(actual), "expected %s, got %s", expected, actual.String())
}

var evalNow = time.Date(2024, 6, 20, 12, 0, 0, 0, time.UTC)

func TestEvaluate_WalletBalance(t *testing.T) {
	f := newEvaluatorFixture()
	wallet := f.wallets.AddWallet(&domain.Wallet{UserID: testUserID, Name: "Bank", InitialBalance: dec("1000")})
	addIncome(f.transactions, wallet.ID, "500", day(2024, 6, 1))
	addExpense(f.transactions, wallet.ID, uuid.New(), "200", day(2024, 6, 2))

	p := f.eval(t, domain.WalletBalanceConfig{WalletID: &wallet.ID, Operator: domain.OpGreaterOrEqual, TargetAmount: dec("2000")}, evalNow)

	assertDecimal(t, "1300", p.CurrentValue)
	assertDecimal(t, "2000", p.TargetValue)
	assertDecimal(t, "65", p.ProgressPercentage)
	assert.False(t, p.IsMet)
	assert.Equal(t, domain.ConditionWalletBalance, p.Type)
}

func TestEvaluate_WalletBalance_AllWallets(t *testing.T) {
	f := newEvaluatorFixture()
	a := f.wallets.AddWallet(&domain.Wallet{UserID: testUserID, Name: "A", InitialBalance: dec("1000")})
	b := f.wallets.AddWallet(&domain.Wallet{UserID: testUserID, Name: "B", Hidden: true})
	addTransfer(f.transactions, a.ID, b.ID, "300", day(2024, 6, 1))

	p := f.eval(t, domain.WalletBalanceConfig{Operator: domain.OpGreaterOrEqual, TargetAmount: dec("1000")}, evalNow)

	assertDecimal(t, "1000", p.CurrentValue)
	assertDecimal(t, "100", p.ProgressPercentage)
	assert.True(t, p.IsMet)
}

func TestEvaluate_WalletBalance_MissingWallet(t *testing.T) {
	f := newEvaluatorFixture()
	missing := uuid.New()

	_, err := f.evaluator.Evaluate(context.Background(), testUserID, domain.Condition{
		ID:     uuid.New(),
		Config: domain.WalletBalanceConfig{WalletID: &missing, Operator: domain.OpGreaterOrEqual, TargetAmount: dec("1")},
	}, evalNow)

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRatioPercentage_Clamp(t *testing.T) {
	cases := []struct {
		current, target, expected string
	}{
		{"0", "0", "100"},
		{"500", "0", "100"},
		{"-1", "0", "0"},
		{"-250", "100", "0"},
		{"5000", "100", "100"},
		{"1", "3", "33.33"},
		{"2", "3", "66.67"},
		{"0.0001", "1000000", "0"},
		{"999.9999", "1000", "100"},
	}

	for _, tc := range cases {
		got := ratioPercentage(dec(tc.current), dec(tc.target))
		assert.True(t, got.GreaterThanOrEqual(decimal.Zero) && got.LessThanOrEqual(hundred),
			"progress %s out of range for %s/%s", got, tc.current, tc.target)
		assertDecimal(t, tc.expected, got)
	}
}

func TestEvaluate_BudgetControl_StreakBreaks(t *testing.T) {
	f := newEvaluatorFixture()
	wallet := f.wallets.AddWallet(&domain.Wallet{UserID: testUserID, Name: "Bank"})
	food := uuid.New()
	budget := f.budgets.AddBudget(&domain.Budget{
		UserID: testUserID, Name: "Food", CategoryIDs: []uuid.UUID{food}, LimitAmount: dec("100"),
		StartDate: day(2024, 1, 1), EndDate: day(2024, 12, 31),
	})
	addExpense(f.transactions, wallet.ID, food, "50", day(2024, 1, 10))
	addExpense(f.transactions, wallet.ID, food, "60", day(2024, 2, 10))
	addExpense(f.transactions, wallet.ID, food, "200", day(2024, 3, 10))

	months := 3
	p := f.eval(t, domain.BudgetControlConfig{BudgetID: budget.ID, Condition: domain.BudgetRuleNoOverspend, ConsecutiveMonths: &months}, evalNow)

	assertDecimal(t, "2", p.CurrentValue)
	assertDecimal(t, "3", p.TargetValue)
	assertDecimal(t, "66.67", p.ProgressPercentage)
	assert.False(t, p.IsMet)
}

func TestEvaluate_BudgetControl_UnderPercentage(t *testing.T) {
	f := newEvaluatorFixture()
	wallet := f.wallets.AddWallet(&domain.Wallet{UserID: testUserID, Name: "Bank"})
	fun := uuid.New()
	budget := f.budgets.AddBudget(&domain.Budget{
		UserID: testUserID, Name: "Fun", CategoryIDs: []uuid.UUID{fun}, LimitAmount: dec("100"),
		StartDate: day(2024, 5, 1), EndDate: day(2024, 5, 31),
	})
	addExpense(f.transactions, wallet.ID, fun, "40", day(2024, 5, 3))

	pct := dec("50")
	p := f.eval(t, domain.BudgetControlConfig{BudgetID: budget.ID, Condition: domain.BudgetRuleUnderPercentage, Percentage: &pct}, evalNow)
	assert.True(t, p.IsMet)
	assertDecimal(t, "100", p.ProgressPercentage)

	addExpense(f.transactions, wallet.ID, fun, "10.0001", day(2024, 5, 4))
	p = f.eval(t, domain.BudgetControlConfig{BudgetID: budget.ID, Condition: domain.BudgetRuleUnderPercentage, Percentage: &pct}, evalNow)
	assert.False(t, p.IsMet)
	assertDecimal(t, "0", p.ProgressPercentage)
}

func TestEvaluate_BudgetControl_StopsAtNow(t *testing.T) {
	f := newEvaluatorFixture()
	budget := f.budgets.AddBudget(&domain.Budget{
		UserID: testUserID, Name: "Rent", CategoryIDs: []uuid.UUID{uuid.New()}, LimitAmount: dec("100"),
		StartDate: day(2024, 5, 1), EndDate: day(2024, 12, 31),
	})

	months := 6
	p := f.eval(t, domain.BudgetControlConfig{BudgetID: budget.ID, Condition: domain.BudgetRuleNoOverspend, ConsecutiveMonths: &months}, evalNow)

	assertDecimal(t, "2", p.CurrentValue)
	assertDecimal(t, "33.33", p.ProgressPercentage)
	assert.False(t, p.IsMet)
}

func TestEvaluate_BudgetControl_MonthsAfterBudgetEndCountAsMet(t *testing.T) {
	f := newEvaluatorFixture()
	wallet := f.wallets.AddWallet(&domain.Wallet{UserID: testUserID, Name: "Bank"})
	food := uuid.New()
	budget := f.budgets.AddBudget(&domain.Budget{
		UserID: testUserID, Name: "March food", CategoryIDs: []uuid.UUID{food}, LimitAmount: dec("100"),
		StartDate: day(2024, 3, 1), EndDate: day(2024, 3, 31),
	})
	addExpense(f.transactions, wallet.ID, food, "40", day(2024, 3, 10))
	// outside the budget window, so never counted against it
	addExpense(f.transactions, wallet.ID, food, "500", day(2024, 4, 10))

	months := 3
	p := f.eval(t, domain.BudgetControlConfig{BudgetID: budget.ID, Condition: domain.BudgetRuleNoOverspend, ConsecutiveMonths: &months}, evalNow)

	assertDecimal(t, "3", p.CurrentValue)
	assert.True(t, p.IsMet)
}

func TestEvaluate_BudgetControl_MissingBudget(t *testing.T) {
	f := newEvaluatorFixture()
	months := 4

	p := f.eval(t, domain.BudgetControlConfig{BudgetID: uuid.New(), Condition: domain.BudgetRuleNoOverspend, ConsecutiveMonths: &months}, evalNow)

	assertDecimal(t, "0", p.CurrentValue)
	assertDecimal(t, "4", p.TargetValue)
	assertDecimal(t, "0", p.ProgressPercentage)
	assert.False(t, p.IsMet)
}

func TestEvaluate_TransactionAmount(t *testing.T) {
	f := newEvaluatorFixture()
	wallet := f.wallets.AddWallet(&domain.Wallet{UserID: testUserID, Name: "Bank"})
	category := uuid.New()
	for _, amount := range []string{"20", "150", "80"} {
		addExpense(f.transactions, wallet.ID, category, amount, day(2024, 4, 1))
	}

	cases := []struct {
		name     string
		op       domain.Operator
		amount   string
		current  string
		met      bool
		progress string
	}{
		{"largest for >=", domain.OpGreaterOrEqual, "100", "150", true, "100"},
		{"smallest for <=", domain.OpLessOrEqual, "50", "20", true, "100"},
		{"smallest for <", domain.OpLess, "20", "20", false, "0"},
		{"exact for =", domain.OpEqual, "80", "80", true, "100"},
		{"no exact match", domain.OpEqual, "81", "0", false, "0"},
		{"largest too small", domain.OpGreater, "500", "150", false, "0"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := f.eval(t, domain.TransactionAmountConfig{
				TransactionType: domain.TransactionTypeExpense, Operator: tc.op, Amount: dec(tc.amount),
			}, evalNow)
			assertDecimal(t, tc.current, p.CurrentValue)
			assert.Equal(t, tc.met, p.IsMet)
			assertDecimal(t, tc.progress, p.ProgressPercentage)
		})
	}
}

func TestEvaluate_TransactionAmount_NoneExist(t *testing.T) {
	f := newEvaluatorFixture()

	p := f.eval(t, domain.TransactionAmountConfig{
		TransactionType: domain.TransactionTypeIncome, Operator: domain.OpLessOrEqual, Amount: dec("100"),
	}, evalNow)

	assertDecimal(t, "0", p.CurrentValue)
	assert.False(t, p.IsMet)
	assertDecimal(t, "0", p.ProgressPercentage)
}

func TestEvaluate_TransactionAmount_InvariantViolation(t *testing.T) {
	f := newEvaluatorFixture()
	wallet, other, category := uuid.New(), uuid.New(), uuid.New()
	f.transactions.AddTransaction(&domain.Transaction{
		UserID: testUserID, Type: domain.TransactionTypeExpense, Amount: dec("10"),
		WalletID: wallet, CategoryID: &category, DestinationWalletID: &other, Date: day(2024, 1, 1),
	})

	_, err := f.evaluator.Evaluate(context.Background(), testUserID, domain.Condition{
		ID: uuid.New(),
		Config: domain.TransactionAmountConfig{
			TransactionType: domain.TransactionTypeExpense, Operator: domain.OpGreaterOrEqual, Amount: dec("1"),
		},
	}, evalNow)

	assert.ErrorIs(t, err, domain.ErrInvariantViolation)
}

func TestEvaluate_PeriodTotal_Month(t *testing.T) {
	f := newEvaluatorFixture()
	wallet := f.wallets.AddWallet(&domain.Wallet{UserID: testUserID, Name: "Bank"})
	addExpense(f.transactions, wallet.ID, uuid.New(), "500", day(2024, 6, 3))
	addExpense(f.transactions, wallet.ID, uuid.New(), "250", day(2024, 6, 15))
	addExpense(f.transactions, wallet.ID, uuid.New(), "400", day(2024, 5, 31))
	addIncome(f.transactions, wallet.ID, "3000", day(2024, 6, 1))

	p := f.eval(t, domain.PeriodTotalConfig{
		TransactionType: domain.TransactionTypeExpense, Operator: domain.OpLessOrEqual,
		Amount: dec("1000"), Period: domain.PeriodMonth,
	}, evalNow)

	assertDecimal(t, "750", p.CurrentValue)
	assert.True(t, p.IsMet)
	assertDecimal(t, "75", p.ProgressPercentage)
}

func TestEvaluate_PeriodTotal_CustomWithCategory(t *testing.T) {
	f := newEvaluatorFixture()
	wallet := f.wallets.AddWallet(&domain.Wallet{UserID: testUserID, Name: "Bank"})
	salary := uuid.New()
	addIncome(f.transactions, wallet.ID, "999", day(2024, 2, 1))
	f.transactions.AddTransaction(&domain.Transaction{
		UserID: testUserID, Type: domain.TransactionTypeIncome, Amount: dec("1200"),
		WalletID: wallet.ID, CategoryID: &salary, Date: day(2024, 2, 29),
	})

	start, _ := domain.ParseCalendarDate("2024-02-01")
	end, _ := domain.ParseCalendarDate("2024-02-29")
	p := f.eval(t, domain.PeriodTotalConfig{
		TransactionType: domain.TransactionTypeIncome, Operator: domain.OpGreaterOrEqual,
		Amount: dec("1000"), Period: domain.PeriodCustom, StartDate: &start, EndDate: &end, CategoryID: &salary,
	}, evalNow)

	assertDecimal(t, "1200", p.CurrentValue)
	assert.True(t, p.IsMet)
	assertDecimal(t, "100", p.ProgressPercentage)
}

func TestEvaluate_PeriodTotal_CustomMissingBounds(t *testing.T) {
	f := newEvaluatorFixture()

	_, err := f.evaluator.Evaluate(context.Background(), testUserID, domain.Condition{
		ID: uuid.New(),
		Config: domain.PeriodTotalConfig{
			TransactionType: domain.TransactionTypeIncome, Operator: domain.OpGreaterOrEqual,
			Amount: dec("1"), Period: domain.PeriodCustom,
		},
	}, evalNow)

	assert.ErrorIs(t, err, domain.ErrInvalidPeriod)
	assert.ErrorIs(t, err, domain.ErrInvalidCondition)
}

func TestEvaluate_NetWorth(t *testing.T) {
	f := newEvaluatorFixture()
	f.wallets.AddWallet(&domain.Wallet{UserID: testUserID, Name: "Main", InitialBalance: dec("2500")})
	f.wallets.AddWallet(&domain.Wallet{UserID: testUserID, Name: "Hidden", InitialBalance: dec("2500"), Hidden: true})

	p := f.eval(t, domain.NetWorthConfig{Operator: domain.OpGreaterOrEqual, TargetAmount: dec("10000")}, evalNow)
	assertDecimal(t, "2500", p.CurrentValue)
	assertDecimal(t, "25", p.ProgressPercentage)
	assert.False(t, p.IsMet)

	p = f.eval(t, domain.NetWorthConfig{Operator: domain.OpGreaterOrEqual, TargetAmount: dec("5000"), IncludeHiddenWallets: true}, evalNow)
	assertDecimal(t, "5000", p.CurrentValue)
	assertDecimal(t, "100", p.ProgressPercentage)
	assert.True(t, p.IsMet)
}

func TestEvaluate_CategorySpending(t *testing.T) {
	f := newEvaluatorFixture()
	wallet := f.wallets.AddWallet(&domain.Wallet{UserID: testUserID, Name: "Bank"})
	dining := uuid.New()
	addExpense(f.transactions, wallet.ID, dining, "120", day(2024, 4, 2))
	addExpense(f.transactions, wallet.ID, dining, "80", day(2024, 6, 2))
	addExpense(f.transactions, wallet.ID, dining, "500", day(2024, 3, 31))
	addExpense(f.transactions, wallet.ID, uuid.New(), "999", day(2024, 5, 1))

	under := f.eval(t, domain.CategorySpendingConfig{CategoryID: dining, Operator: domain.OpLessOrEqual, Amount: dec("300"), Period: domain.PeriodQuarter}, evalNow)
	assertDecimal(t, "200", under.CurrentValue)
	assert.True(t, under.IsMet)
	assertDecimal(t, "100", under.ProgressPercentage)

	over := f.eval(t, domain.CategorySpendingConfig{CategoryID: dining, Operator: domain.OpLess, Amount: dec("150"), Period: domain.PeriodQuarter}, evalNow)
	assert.False(t, over.IsMet)
	assertDecimal(t, "0", over.ProgressPercentage)

	ratio := f.eval(t, domain.CategorySpendingConfig{CategoryID: dining, Operator: domain.OpGreaterOrEqual, Amount: dec("800"), Period: domain.PeriodYear}, evalNow)
	assertDecimal(t, "700", ratio.CurrentValue)
	assertDecimal(t, "87.5", ratio.ProgressPercentage)
	assert.False(t, ratio.IsMet)
}

func TestEvaluate_UnknownType(t *testing.T) {
	f := newEvaluatorFixture()

	_, err := f.evaluator.Evaluate(context.Background(), testUserID, domain.Condition{
		ID:     uuid.New(),
		Config: domain.UnknownConfig{Type: "not_a_type", Raw: json.RawMessage(`{}`)},
	}, evalNow)

	assert.ErrorIs(t, err, domain.ErrInvalidCondition)
}
