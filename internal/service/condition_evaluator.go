package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dafibh/fortuna/ledger-backend/internal/domain"
	"github.com/dafibh/fortuna/ledger-backend/internal/util"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ConditionEvaluator computes the progress of a single milestone condition from live ledger data
type ConditionEvaluator struct {
	calculationService *CalculationService
	budgetRepo         domain.BudgetRepository
	transactionRepo    domain.TransactionRepository
}

// NewConditionEvaluator creates a new ConditionEvaluator
func NewConditionEvaluator(calculationService *CalculationService, budgetRepo domain.BudgetRepository, transactionRepo domain.TransactionRepository) *ConditionEvaluator {
	return &ConditionEvaluator{
		calculationService: calculationService,
		budgetRepo:         budgetRepo,
		transactionRepo:    transactionRepo,
	}
}

// CheckReferences verifies that every wallet and budget the conditions point at belongs to
// userID. Id-only entries (nil Config) are skipped. The error matches ErrValidation with one
// field per bad reference, and also ErrWalletNotFound or ErrBudgetNotFound.
func (e *ConditionEvaluator) CheckReferences(ctx context.Context, userID uuid.UUID, conditions []domain.Condition) error {
	var (
		errs    domain.ValidationErrors
		missing []error
	)
	for i, c := range conditions {
		switch cfg := c.Config.(type) {
		case domain.WalletBalanceConfig:
			if cfg.WalletID == nil {
				continue
			}
			_, err := e.calculationService.walletRepo.GetByID(ctx, userID, *cfg.WalletID)
			if errors.Is(err, domain.ErrNotFound) {
				errs.Add(fmt.Sprintf("conditions[%d].walletId", i), "Wallet not found")
				missing = append(missing, domain.ErrWalletNotFound)
				continue
			}
			if err != nil {
				return err
			}
		case domain.BudgetControlConfig:
			_, err := e.budgetRepo.GetByID(ctx, userID, cfg.BudgetID)
			if errors.Is(err, domain.ErrNotFound) {
				errs.Add(fmt.Sprintf("conditions[%d].budgetId", i), "Budget not found")
				missing = append(missing, domain.ErrBudgetNotFound)
				continue
			}
			if err != nil {
				return err
			}
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(append([]error{errs}, missing...)...)
}

// Evaluate dispatches on the condition's config variant. now anchors every period window
// so all conditions of one milestone see the same instant.
func (e *ConditionEvaluator) Evaluate(ctx context.Context, userID uuid.UUID, condition domain.Condition, now time.Time) (domain.ConditionProgress, error) {
	progress := domain.ConditionProgress{
		ID:     condition.ID,
		Type:   condition.Type(),
		Config: condition.Config,
	}

	var err error
	switch cfg := condition.Config.(type) {
	case domain.WalletBalanceConfig:
		err = e.walletBalance(ctx, userID, cfg, &progress)
	case domain.BudgetControlConfig:
		err = e.budgetControl(ctx, userID, cfg, now, &progress)
	case domain.TransactionAmountConfig:
		err = e.transactionAmount(ctx, userID, cfg, &progress)
	case domain.PeriodTotalConfig:
		err = e.periodTotal(ctx, userID, cfg, now, &progress)
	case domain.NetWorthConfig:
		err = e.netWorth(ctx, userID, cfg, &progress)
	case domain.CategorySpendingConfig:
		err = e.categorySpending(ctx, userID, cfg, now, &progress)
	default:
		return progress, fmt.Errorf("%w: unknown condition type %q", domain.ErrInvalidCondition, condition.Type())
	}
	return progress, err
}

func (e *ConditionEvaluator) walletBalance(ctx context.Context, userID uuid.UUID, cfg domain.WalletBalanceConfig, p *domain.ConditionProgress) error {
	var (
		current decimal.Decimal
		err     error
	)
	if cfg.WalletID != nil {
		current, err = e.calculationService.WalletBalance(ctx, userID, *cfg.WalletID, nil)
	} else {
		current, err = e.calculationService.NetWorth(ctx, userID, true)
	}
	if err != nil {
		return err
	}

	setRatioProgress(p, current, cfg.TargetAmount, cfg.Operator)
	return nil
}

func (e *ConditionEvaluator) budgetControl(ctx context.Context, userID uuid.UUID, cfg domain.BudgetControlConfig, now time.Time, p *domain.ConditionProgress) error {
	months := cfg.Months()
	target := decimal.NewFromInt(int64(months))
	p.TargetValue = target
	p.CurrentValue = decimal.Zero
	p.ProgressPercentage = decimal.Zero

	budget, err := e.budgetRepo.GetByID(ctx, userID, cfg.BudgetID)
	if errors.Is(err, domain.ErrNotFound) {
		// a deleted budget reads as no progress rather than an error
		return nil
	}
	if err != nil {
		return err
	}

	threshold := budget.LimitAmount
	if cfg.Condition == domain.BudgetRuleUnderPercentage {
		if cfg.Percentage == nil {
			return fmt.Errorf("%w: under_percentage requires percentage", domain.ErrValidation)
		}
		threshold = budget.LimitAmount.Mul(*cfg.Percentage).Div(hundred)
	}

	met := 0
	for i := 0; i < months; i++ {
		monthStart := util.AddMonths(budget.StartDate, i)
		if monthStart.After(now) {
			break
		}
		monthEnd := util.AddMonths(budget.StartDate, i+1)
		if monthEnd.After(now) {
			monthEnd = now
		}

		window := domain.Window{Start: monthStart, End: monthEnd}
		spent, err := e.calculationService.BudgetSpent(ctx, budget, &window)
		if err != nil {
			return err
		}
		if spent.GreaterThan(threshold) {
			break
		}
		met++
	}

	current := decimal.NewFromInt(int64(met))
	p.CurrentValue = current
	p.ProgressPercentage = clampPercentage(current.Div(target).Mul(hundred))
	p.IsMet = met >= months
	return nil
}

func (e *ConditionEvaluator) transactionAmount(ctx context.Context, userID uuid.UUID, cfg domain.TransactionAmountConfig, p *domain.ConditionProgress) error {
	txType := cfg.TransactionType
	filter := domain.LedgerFilter{
		UserID:     userID,
		Type:       &txType,
		CategoryID: cfg.CategoryID,
		Order:      domain.OrderByAmountDesc,
		Limit:      1,
	}
	switch {
	case cfg.Operator == domain.OpEqual:
		amount := cfg.Amount
		filter.Amount = &amount
	case cfg.Operator.IsUpperBound():
		filter.Order = domain.OrderByAmountAsc
	}

	transactions, err := e.transactionRepo.Find(ctx, filter)
	if err != nil {
		return err
	}

	p.TargetValue = cfg.Amount
	p.CurrentValue = decimal.Zero
	p.ProgressPercentage = decimal.Zero
	if len(transactions) == 0 {
		return nil
	}

	extreme := transactions[0]
	if err := extreme.CheckInvariant(); err != nil {
		return err
	}
	p.CurrentValue = extreme.Amount
	p.IsMet = cfg.Operator.Compare(extreme.Amount, cfg.Amount)
	if p.IsMet {
		p.ProgressPercentage = hundred
	}
	return nil
}

func (e *ConditionEvaluator) periodTotal(ctx context.Context, userID uuid.UUID, cfg domain.PeriodTotalConfig, now time.Time, p *domain.ConditionProgress) error {
	var customStart, customEnd *time.Time
	if cfg.StartDate != nil {
		customStart = &cfg.StartDate.Time
	}
	if cfg.EndDate != nil {
		customEnd = &cfg.EndDate.Time
	}
	window, err := util.ResolvePeriod(cfg.Period, now, customStart, customEnd)
	if err != nil {
		return err
	}

	txType := cfg.TransactionType
	current, err := e.transactionRepo.Sum(ctx, domain.LedgerFilter{
		UserID:     userID,
		Type:       &txType,
		CategoryID: cfg.CategoryID,
		Window:     &window,
	})
	if err != nil {
		return err
	}

	setRatioProgress(p, current, cfg.Amount, cfg.Operator)
	return nil
}

func (e *ConditionEvaluator) netWorth(ctx context.Context, userID uuid.UUID, cfg domain.NetWorthConfig, p *domain.ConditionProgress) error {
	current, err := e.calculationService.NetWorth(ctx, userID, cfg.IncludeHiddenWallets)
	if err != nil {
		return err
	}

	setRatioProgress(p, current, cfg.TargetAmount, cfg.Operator)
	return nil
}

func (e *ConditionEvaluator) categorySpending(ctx context.Context, userID uuid.UUID, cfg domain.CategorySpendingConfig, now time.Time, p *domain.ConditionProgress) error {
	if cfg.Period == domain.PeriodCustom {
		return fmt.Errorf("%w: category spending does not support custom periods", domain.ErrInvalidPeriod)
	}
	window, err := util.ResolvePeriod(cfg.Period, now, nil, nil)
	if err != nil {
		return err
	}

	expense := domain.TransactionTypeExpense
	categoryID := cfg.CategoryID
	current, err := e.transactionRepo.Sum(ctx, domain.LedgerFilter{
		UserID:     userID,
		Type:       &expense,
		CategoryID: &categoryID,
		Window:     &window,
	})
	if err != nil {
		return err
	}

	if !cfg.Operator.IsUpperBound() {
		setRatioProgress(p, current, cfg.Amount, cfg.Operator)
		return nil
	}

	// staying under the cap is success, so progress is all or nothing
	p.CurrentValue = current
	p.TargetValue = cfg.Amount
	p.IsMet = cfg.Operator.Compare(current, cfg.Amount)
	p.ProgressPercentage = decimal.Zero
	if p.IsMet {
		p.ProgressPercentage = hundred
	}
	return nil
}

// setRatioProgress fills current/target/is_met with progress = clamp(current/target*100).
// A zero target reads as 100% for any non-negative current.
func setRatioProgress(p *domain.ConditionProgress, current, target decimal.Decimal, op domain.Operator) {
	p.CurrentValue = current
	p.TargetValue = target
	p.IsMet = op.Compare(current, target)
	p.ProgressPercentage = ratioPercentage(current, target)
}

func ratioPercentage(current, target decimal.Decimal) decimal.Decimal {
	if target.IsZero() {
		if current.IsNegative() {
			return decimal.Zero
		}
		return hundred
	}
	return clampPercentage(current.Div(target).Mul(hundred))
}

// clampPercentage bounds p to [0, 100] and rounds to two decimal places
func clampPercentage(p decimal.Decimal) decimal.Decimal {
	if p.IsNegative() {
		return decimal.Zero
	}
	if p.GreaterThan(hundred) {
		return hundred
	}
	return p.Round(2)
}
