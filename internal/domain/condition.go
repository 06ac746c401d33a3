package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ConditionType string

const (
	ConditionWalletBalance     ConditionType = "wallet_balance"
	ConditionBudgetControl     ConditionType = "budget_control"
	ConditionTransactionAmount ConditionType = "transaction_amount"
	ConditionPeriodTotal       ConditionType = "period_total"
	ConditionNetWorth          ConditionType = "net_worth"
	ConditionCategorySpending  ConditionType = "category_spending"
)

// Operator compares a condition's current value against its target
type Operator string

const (
	OpGreaterOrEqual Operator = ">="
	OpGreater        Operator = ">"
	OpLessOrEqual    Operator = "<="
	OpLess           Operator = "<"
	OpEqual          Operator = "="
)

// Valid reports whether op is one of the five supported operators
func (op Operator) Valid() bool {
	switch op {
	case OpGreaterOrEqual, OpGreater, OpLessOrEqual, OpLess, OpEqual:
		return true
	}
	return false
}

// IsUpperBound reports whether the operator caps the value (less is better)
func (op Operator) IsUpperBound() bool {
	return op == OpLess || op == OpLessOrEqual
}

// Compare evaluates "current op target" with exact decimal comparison
func (op Operator) Compare(current, target decimal.Decimal) bool {
	c := current.Cmp(target)
	switch op {
	case OpGreaterOrEqual:
		return c >= 0
	case OpGreater:
		return c > 0
	case OpLessOrEqual:
		return c <= 0
	case OpLess:
		return c < 0
	case OpEqual:
		return c == 0
	}
	return false
}

// BudgetRule is the spending rule applied to each month of a budget_control condition
type BudgetRule string

const (
	BudgetRuleNoOverspend     BudgetRule = "no_overspend"
	BudgetRuleUnderPercentage BudgetRule = "under_percentage"
)

// CalendarDate is a day-precision date that accepts "2006-01-02" or RFC 3339 input
type CalendarDate struct {
	time.Time
}

const calendarDateLayout = "2006-01-02"

// ParseCalendarDate parses "2006-01-02" or an RFC 3339 timestamp
func ParseCalendarDate(s string) (CalendarDate, error) {
	if t, err := time.Parse(calendarDateLayout, s); err == nil {
		return CalendarDate{t}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return CalendarDate{}, fmt.Errorf("invalid date %q", s)
	}
	return CalendarDate{t}, nil
}

func (d CalendarDate) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Format(calendarDateLayout))
}

func (d *CalendarDate) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseCalendarDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ConditionConfig is the closed set of condition configurations.
// Each variant knows its tag and validates its own fields.
type ConditionConfig interface {
	ConditionType() ConditionType
	validate(prefix string, errs *ValidationErrors)
}

type WalletBalanceConfig struct {
	// WalletID nil means the sum across all of the user's wallets
	WalletID     *uuid.UUID      `json:"walletId"`
	Operator     Operator        `json:"operator"`
	TargetAmount decimal.Decimal `json:"targetAmount"`
}

type BudgetControlConfig struct {
	BudgetID          uuid.UUID        `json:"budgetId"`
	Condition         BudgetRule       `json:"condition"`
	ConsecutiveMonths *int             `json:"consecutiveMonths,omitempty"`
	Percentage        *decimal.Decimal `json:"percentage,omitempty"`
}

// Months returns the configured streak length, defaulting to 1
func (c BudgetControlConfig) Months() int {
	if c.ConsecutiveMonths == nil || *c.ConsecutiveMonths < 1 {
		return 1
	}
	return *c.ConsecutiveMonths
}

type TransactionAmountConfig struct {
	TransactionType TransactionType `json:"transactionType"`
	Operator        Operator        `json:"operator"`
	Amount          decimal.Decimal `json:"amount"`
	CategoryID      *uuid.UUID      `json:"categoryId,omitempty"`
}

type PeriodTotalConfig struct {
	TransactionType TransactionType `json:"transactionType"`
	Operator        Operator        `json:"operator"`
	Amount          decimal.Decimal `json:"amount"`
	Period          Period          `json:"period"`
	StartDate       *CalendarDate   `json:"startDate,omitempty"`
	EndDate         *CalendarDate   `json:"endDate,omitempty"`
	CategoryID      *uuid.UUID      `json:"categoryId,omitempty"`
}

type NetWorthConfig struct {
	Operator             Operator        `json:"operator"`
	TargetAmount         decimal.Decimal `json:"targetAmount"`
	IncludeHiddenWallets bool            `json:"includeHiddenWallets"`
}

type CategorySpendingConfig struct {
	CategoryID uuid.UUID       `json:"categoryId"`
	Operator   Operator        `json:"operator"`
	Amount     decimal.Decimal `json:"amount"`
	Period     Period          `json:"period"`
}

// UnknownConfig preserves a stored condition whose type this build does not know.
// Evaluating it fails with ErrInvalidCondition.
type UnknownConfig struct {
	Type ConditionType
	Raw  json.RawMessage
}

func (WalletBalanceConfig) ConditionType() ConditionType     { return ConditionWalletBalance }
func (BudgetControlConfig) ConditionType() ConditionType     { return ConditionBudgetControl }
func (TransactionAmountConfig) ConditionType() ConditionType { return ConditionTransactionAmount }
func (PeriodTotalConfig) ConditionType() ConditionType       { return ConditionPeriodTotal }
func (NetWorthConfig) ConditionType() ConditionType          { return ConditionNetWorth }
func (CategorySpendingConfig) ConditionType() ConditionType  { return ConditionCategorySpending }
func (c UnknownConfig) ConditionType() ConditionType         { return c.Type }

func (c WalletBalanceConfig) validate(p string, errs *ValidationErrors) {
	validateOperator(p, c.Operator, errs)
	validateAmount(p+".targetAmount", c.TargetAmount, errs)
}

func (c BudgetControlConfig) validate(p string, errs *ValidationErrors) {
	if c.BudgetID == uuid.Nil {
		errs.Add(p+".budgetId", "Budget is required")
	}
	switch c.Condition {
	case BudgetRuleNoOverspend:
	case BudgetRuleUnderPercentage:
		if c.Percentage == nil {
			errs.Add(p+".percentage", "Percentage is required for under_percentage")
		}
	default:
		errs.Add(p+".condition", "Condition must be one of: no_overspend, under_percentage")
	}
	if c.ConsecutiveMonths != nil && (*c.ConsecutiveMonths < 1 || *c.ConsecutiveMonths > MaxConsecutiveMonths) {
		errs.Add(p+".consecutiveMonths", "Consecutive months must be between 1 and 12")
	}
	if c.Percentage != nil && (c.Percentage.LessThan(decimal.NewFromInt(1)) || c.Percentage.GreaterThan(decimal.NewFromInt(100))) {
		errs.Add(p+".percentage", "Percentage must be between 1 and 100")
	}
}

func (c TransactionAmountConfig) validate(p string, errs *ValidationErrors) {
	validateConditionTxType(p, c.TransactionType, errs)
	validateOperator(p, c.Operator, errs)
	validateAmount(p+".amount", c.Amount, errs)
}

func (c PeriodTotalConfig) validate(p string, errs *ValidationErrors) {
	validateConditionTxType(p, c.TransactionType, errs)
	validateOperator(p, c.Operator, errs)
	validateAmount(p+".amount", c.Amount, errs)
	validatePeriod(p, c.Period, errs)
	if c.Period == PeriodCustom {
		if c.StartDate == nil || c.EndDate == nil {
			errs.Add(p+".period", "Custom period requires startDate and endDate")
		} else if c.EndDate.Before(c.StartDate.Time) {
			errs.Add(p+".endDate", "End date must not be before start date")
		}
	}
}

func (c NetWorthConfig) validate(p string, errs *ValidationErrors) {
	validateOperator(p, c.Operator, errs)
	validateAmount(p+".targetAmount", c.TargetAmount, errs)
}

func (c CategorySpendingConfig) validate(p string, errs *ValidationErrors) {
	if c.CategoryID == uuid.Nil {
		errs.Add(p+".categoryId", "Category is required")
	}
	validateOperator(p, c.Operator, errs)
	validateAmount(p+".amount", c.Amount, errs)
	validatePeriod(p, c.Period, errs)
	if c.Period == PeriodCustom {
		errs.Add(p+".period", "Category spending does not support custom periods")
	}
}

func (c UnknownConfig) validate(p string, errs *ValidationErrors) {}

func validateOperator(p string, op Operator, errs *ValidationErrors) {
	if !op.Valid() {
		errs.Add(p+".operator", "Operator must be one of: >=, >, <=, <, =")
	}
}

func validateAmount(field string, amount decimal.Decimal, errs *ValidationErrors) {
	if amount.IsNegative() {
		errs.Add(field, "Amount must not be negative")
	}
}

func validatePeriod(p string, period Period, errs *ValidationErrors) {
	if !period.Valid() {
		errs.Add(p+".period", "Period must be one of: month, quarter, year, custom")
	}
}

func validateConditionTxType(p string, t TransactionType, errs *ValidationErrors) {
	if t != TransactionTypeIncome && t != TransactionTypeExpense {
		errs.Add(p+".transactionType", "Transaction type must be one of: income, expense")
	}
}

// Condition is one typed rule inside a milestone
type Condition struct {
	ID     uuid.UUID
	Config ConditionConfig
}

// Type returns the condition's tag
func (c Condition) Type() ConditionType {
	if c.Config == nil {
		return ""
	}
	return c.Config.ConditionType()
}

type conditionJSON struct {
	ID     uuid.UUID       `json:"id"`
	Type   ConditionType   `json:"type"`
	Config json.RawMessage `json:"config"`
}

func (c Condition) MarshalJSON() ([]byte, error) {
	var raw json.RawMessage
	switch cfg := c.Config.(type) {
	case UnknownConfig:
		raw = cfg.Raw
	case nil:
		raw = json.RawMessage("null")
	default:
		b, err := json.Marshal(cfg)
		if err != nil {
			return nil, err
		}
		raw = b
	}
	return json.Marshal(conditionJSON{ID: c.ID, Type: c.Type(), Config: raw})
}

// UnmarshalJSON decodes the config variant selected by "type". Unknown types are kept
// as UnknownConfig rather than rejected so stored rows survive a round trip.
func (c *Condition) UnmarshalJSON(data []byte) error {
	var env conditionJSON
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	cfg, err := DecodeConditionConfig(env.Type, env.Config)
	if err != nil {
		return err
	}
	c.ID = env.ID
	c.Config = cfg
	return nil
}

// DecodeConditionConfig decodes raw JSON into the config variant for t
func DecodeConditionConfig(t ConditionType, raw json.RawMessage) (ConditionConfig, error) {
	if len(raw) == 0 || string(raw) == "null" {
		raw = json.RawMessage("{}")
	}
	var (
		cfg ConditionConfig
		err error
	)
	switch t {
	case ConditionWalletBalance:
		var v WalletBalanceConfig
		err = json.Unmarshal(raw, &v)
		cfg = v
	case ConditionBudgetControl:
		var v BudgetControlConfig
		err = json.Unmarshal(raw, &v)
		cfg = v
	case ConditionTransactionAmount:
		var v TransactionAmountConfig
		err = json.Unmarshal(raw, &v)
		cfg = v
	case ConditionPeriodTotal:
		var v PeriodTotalConfig
		err = json.Unmarshal(raw, &v)
		cfg = v
	case ConditionNetWorth:
		var v NetWorthConfig
		err = json.Unmarshal(raw, &v)
		cfg = v
	case ConditionCategorySpending:
		var v CategorySpendingConfig
		err = json.Unmarshal(raw, &v)
		cfg = v
	default:
		return UnknownConfig{Type: t, Raw: append(json.RawMessage(nil), raw...)}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s config: %v", ErrValidation, t, err)
	}
	return cfg, nil
}

// ValidateConditions checks count limits, unique ids, known types and per-type configs
func ValidateConditions(conditions []Condition) error {
	var errs ValidationErrors
	if len(conditions) < MinMilestoneConditions || len(conditions) > MaxMilestoneConditions {
		errs.Add("conditions", "Milestone must have between 1 and 10 conditions")
	}
	seen := make(map[uuid.UUID]bool, len(conditions))
	for i, cond := range conditions {
		prefix := fmt.Sprintf("conditions[%d]", i)
		if cond.ID != uuid.Nil {
			if seen[cond.ID] {
				errs.Add(prefix+".id", "Duplicate condition id")
			}
			seen[cond.ID] = true
		}
		if unknown, ok := cond.Config.(UnknownConfig); ok || cond.Config == nil {
			return fmt.Errorf("%w: unknown condition type %q", ErrInvalidCondition, strings.TrimSpace(string(unknown.Type)))
		}
		cond.Config.validate(prefix+".config", &errs)
	}
	return errs.Err()
}
