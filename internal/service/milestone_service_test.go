package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/dafibh/fortuna/ledger-backend/internal/domain"
	"github.com/dafibh/fortuna/ledger-backend/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type milestoneFixture struct {
	*evaluatorFixture
	milestones *testutil.MockMilestoneRepository
	service    *MilestoneService
	now        time.Time
}

func newMilestoneFixture() *milestoneFixture {
	ef := newEvaluatorFixture()
	f := &milestoneFixture{
		evaluatorFixture: ef,
		milestones:       testutil.NewMockMilestoneRepository(),
		now:              evalNow,
	}
	f.service = NewMilestoneService(f.milestones, ef.evaluator, 4)
	f.service.SetClock(func() time.Time { return f.now })
	return f
}

func (f *milestoneFixture) addMilestone(conditions ...domain.ConditionConfig) *domain.Milestone {
	m := &domain.Milestone{
		UserID:     testUserID,
		Name:       "Goal",
		TargetDate: f.now.AddDate(0, 6, 0),
		Status:     domain.MilestoneStatusPending,
		CreatedAt:  f.now,
	}
	for _, cfg := range conditions {
		m.Conditions = append(m.Conditions, domain.Condition{ID: uuid.New(), Config: cfg})
	}
	return f.milestones.AddMilestone(m)
}

func balanceAtLeast(walletID uuid.UUID, target string) domain.WalletBalanceConfig {
	return domain.WalletBalanceConfig{WalletID: &walletID, Operator: domain.OpGreaterOrEqual, TargetAmount: dec(target)}
}

func TestCreateMilestone_AssignsConditionIDs(t *testing.T) {
	f := newMilestoneFixture()
	clientID := uuid.New()

	created, err := f.service.CreateMilestone(context.Background(), testUserID, CreateMilestoneInput{
		Name:       "Emergency fund",
		TargetDate: f.now.AddDate(1, 0, 0),
		Conditions: []domain.Condition{
			{ID: clientID, Config: domain.NetWorthConfig{Operator: domain.OpGreaterOrEqual, TargetAmount: dec("10000")}},
			{Config: domain.NetWorthConfig{Operator: domain.OpGreaterOrEqual, TargetAmount: dec("20000")}},
		},
	})

	require.NoError(t, err)
	assert.Equal(t, domain.MilestoneStatusPending, created.Status)
	require.Len(t, created.Conditions, 2)
	assert.NotEqual(t, clientID, created.Conditions[0].ID)
	assert.NotEqual(t, uuid.Nil, created.Conditions[1].ID)
	assert.NotEqual(t, created.Conditions[0].ID, created.Conditions[1].ID)
}

func TestCreateMilestone_Validation(t *testing.T) {
	f := newMilestoneFixture()
	color := "red"

	_, err := f.service.CreateMilestone(context.Background(), testUserID, CreateMilestoneInput{
		Name:       "",
		Color:      &color,
		TargetDate: f.now,
	})

	var fieldErrs domain.ValidationErrors
	require.True(t, errors.As(err, &fieldErrs))
	assert.ErrorIs(t, err, domain.ErrValidation)
	fields := map[string]bool{}
	for _, fe := range fieldErrs {
		fields[fe.Field] = true
	}
	assert.True(t, fields["name"])
	assert.True(t, fields["color"])
	assert.True(t, fields["conditions"])
	assert.Empty(t, f.milestones.Milestones)
}

func TestCreateMilestone_UnknownConditionType(t *testing.T) {
	f := newMilestoneFixture()

	_, err := f.service.CreateMilestone(context.Background(), testUserID, CreateMilestoneInput{
		Name:       "Goal",
		TargetDate: f.now,
		Conditions: []domain.Condition{{Config: domain.UnknownConfig{Type: "not_a_type"}}},
	})

	assert.ErrorIs(t, err, domain.ErrInvalidCondition)
}

func TestCreateMilestone_MissingWalletIsNotStored(t *testing.T) {
	f := newMilestoneFixture()
	ctx := context.Background()
	ghost := uuid.New()

	_, err := f.service.CreateMilestone(ctx, testUserID, CreateMilestoneInput{
		Name:       "Savings",
		TargetDate: f.now.AddDate(1, 0, 0),
		Conditions: []domain.Condition{{Config: balanceAtLeast(ghost, "500")}},
	})

	assert.ErrorIs(t, err, domain.ErrWalletNotFound)
	var fieldErrs domain.ValidationErrors
	require.True(t, errors.As(err, &fieldErrs))
	assert.Equal(t, "conditions[0].walletId", fieldErrs[0].Field)
	assert.Empty(t, f.milestones.Milestones)

	views, err := f.service.ListMilestones(ctx, testUserID, domain.MilestoneFilter{})
	require.NoError(t, err)
	assert.Empty(t, views)
}

func TestCreateMilestone_MissingBudgetIsNotStored(t *testing.T) {
	f := newMilestoneFixture()
	other := f.wallets.AddWallet(&domain.Wallet{UserID: uuid.New(), Name: "Not mine"})

	_, err := f.service.CreateMilestone(context.Background(), testUserID, CreateMilestoneInput{
		Name:       "Discipline",
		TargetDate: f.now.AddDate(1, 0, 0),
		Conditions: []domain.Condition{
			{Config: balanceAtLeast(other.ID, "1")},
			{Config: domain.BudgetControlConfig{BudgetID: uuid.New(), Condition: domain.BudgetRuleNoOverspend}},
		},
	})

	assert.ErrorIs(t, err, domain.ErrBudgetNotFound)
	assert.ErrorIs(t, err, domain.ErrWalletNotFound)
	var fieldErrs domain.ValidationErrors
	require.True(t, errors.As(err, &fieldErrs))
	require.Len(t, fieldErrs, 2)
	assert.Equal(t, "conditions[1].budgetId", fieldErrs[1].Field)
	assert.Empty(t, f.milestones.Milestones)
}

func TestUpdateMilestone_MissingWalletKeepsStoredConditions(t *testing.T) {
	f := newMilestoneFixture()
	ctx := context.Background()
	wallet := f.wallets.AddWallet(&domain.Wallet{UserID: testUserID, Name: "Bank"})
	m := f.addMilestone(balanceAtLeast(wallet.ID, "100"))
	before := f.milestones.Stored(m.ID).Conditions

	_, err := f.service.UpdateMilestone(ctx, testUserID, m.ID, UpdateMilestoneInput{
		Conditions: []domain.Condition{
			{ID: m.Conditions[0].ID},
			{Config: balanceAtLeast(uuid.New(), "100")},
		},
	})

	assert.ErrorIs(t, err, domain.ErrWalletNotFound)
	assert.Equal(t, before, f.milestones.Stored(m.ID).Conditions)
	_, err = f.service.GetMilestone(ctx, testUserID, m.ID)
	assert.NoError(t, err)
}

func TestEvaluate_NonUTCClockUsesUTCMonth(t *testing.T) {
	f := newMilestoneFixture()
	wallet := f.wallets.AddWallet(&domain.Wallet{UserID: testUserID, Name: "Card"})
	addExpense(f.transactions, wallet.ID, uuid.New(), "750", day(2024, 10, 1))
	f.now = time.Date(2024, time.October, 19, 12, 0, 0, 0, time.FixedZone("EDT", -4*60*60))
	m := f.addMilestone(domain.PeriodTotalConfig{
		TransactionType: domain.TransactionTypeExpense,
		Operator:        domain.OpGreaterOrEqual,
		Amount:          dec("1000"),
		Period:          domain.PeriodMonth,
	})

	view, err := f.service.GetMilestone(context.Background(), testUserID, m.ID)

	require.NoError(t, err)
	assertDecimal(t, "750", view.Conditions[0].CurrentValue)
	assertDecimal(t, "75", view.Conditions[0].ProgressPercentage)
}

func TestEvaluate_AchievedIsIdempotent(t *testing.T) {
	f := newMilestoneFixture()
	ctx := context.Background()
	wallet := f.wallets.AddWallet(&domain.Wallet{UserID: testUserID, Name: "Bank", InitialBalance: dec("1000")})
	m := f.addMilestone(balanceAtLeast(wallet.ID, "500"))

	view, err := f.service.GetMilestone(ctx, testUserID, m.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MilestoneStatusAchieved, view.Status)
	require.NotNil(t, view.AchievedAt)
	assert.True(t, view.AchievedAt.Equal(f.now))
	assert.Equal(t, 1, f.milestones.UpdateStatusCalls)
	firstAchievedAt := *f.milestones.Stored(m.ID).AchievedAt

	f.now = f.now.Add(48 * time.Hour)
	view, err = f.service.GetMilestone(ctx, testUserID, m.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MilestoneStatusAchieved, view.Status)
	assert.True(t, view.AchievedAt.Equal(firstAchievedAt))
	assert.True(t, f.milestones.Stored(m.ID).AchievedAt.Equal(firstAchievedAt))
	assert.Equal(t, 1, f.milestones.UpdateStatusCalls)
}

func TestEvaluate_CancelledIsSticky(t *testing.T) {
	f := newMilestoneFixture()
	ctx := context.Background()
	wallet := f.wallets.AddWallet(&domain.Wallet{UserID: testUserID, Name: "Bank", InitialBalance: dec("0")})
	m := f.addMilestone(balanceAtLeast(wallet.ID, "500"))
	m.Status = domain.MilestoneStatusCancelled

	for _, income := range []string{"100", "1000", "5000"} {
		addIncome(f.transactions, wallet.ID, income, day(2024, 6, 1))
		view, err := f.service.GetMilestone(ctx, testUserID, m.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.MilestoneStatusCancelled, view.Status)
	}

	f.now = m.TargetDate.AddDate(1, 0, 0)
	view, err := f.service.GetMilestone(ctx, testUserID, m.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MilestoneStatusCancelled, view.Status)
	assert.Equal(t, 0, f.milestones.UpdateStatusCalls)
}

func TestEvaluate_StatusTransitions(t *testing.T) {
	f := newMilestoneFixture()
	ctx := context.Background()
	wallet := f.wallets.AddWallet(&domain.Wallet{UserID: testUserID, Name: "Bank"})
	m := f.addMilestone(balanceAtLeast(wallet.ID, "1000"))

	view, err := f.service.GetMilestone(ctx, testUserID, m.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MilestoneStatusPending, view.Status)
	assert.Equal(t, 0, f.milestones.UpdateStatusCalls)

	addIncome(f.transactions, wallet.ID, "250", day(2024, 6, 1))
	view, err = f.service.GetMilestone(ctx, testUserID, m.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MilestoneStatusInProgress, view.Status)
	assertDecimal(t, "25", view.OverallProgress)
	assert.Equal(t, domain.MilestoneStatusInProgress, f.milestones.Stored(m.ID).Status)
	assert.Nil(t, view.AchievedAt)
}

func TestEvaluate_FailedAfterTargetDate(t *testing.T) {
	f := newMilestoneFixture()
	wallet := f.wallets.AddWallet(&domain.Wallet{UserID: testUserID, Name: "Bank"})
	m := f.addMilestone(balanceAtLeast(wallet.ID, "1000"))
	f.now = m.TargetDate.Add(time.Hour)

	view, err := f.service.GetMilestone(context.Background(), testUserID, m.ID)

	require.NoError(t, err)
	assert.Equal(t, domain.MilestoneStatusFailed, view.Status)
	assert.Equal(t, domain.MilestoneStatusFailed, f.milestones.Stored(m.ID).Status)
}

func TestEvaluate_OverallProgressIsMean(t *testing.T) {
	f := newMilestoneFixture()
	wallet := f.wallets.AddWallet(&domain.Wallet{UserID: testUserID, Name: "Bank", InitialBalance: dec("100")})
	m := f.addMilestone(
		balanceAtLeast(wallet.ID, "100"),
		balanceAtLeast(wallet.ID, "300"),
		balanceAtLeast(wallet.ID, "300"),
	)

	view, err := f.service.GetMilestone(context.Background(), testUserID, m.ID)

	require.NoError(t, err)
	require.Len(t, view.Conditions, 3)
	assertDecimal(t, "100", view.Conditions[0].ProgressPercentage)
	assertDecimal(t, "33.33", view.Conditions[1].ProgressPercentage)
	assertDecimal(t, "55.55", view.OverallProgress)
	assert.Equal(t, domain.MilestoneStatusInProgress, view.Status)
	assert.Equal(t, m.Conditions[1].ID, view.Conditions[1].ID)
}

func TestEvaluate_UnknownTypeAbortsWholeMilestone(t *testing.T) {
	f := newMilestoneFixture()
	wallet := f.wallets.AddWallet(&domain.Wallet{UserID: testUserID, Name: "Bank", InitialBalance: dec("1000")})
	m := f.addMilestone(
		balanceAtLeast(wallet.ID, "10"),
		domain.UnknownConfig{Type: "not_a_type", Raw: json.RawMessage(`{"x":1}`)},
	)

	view, err := f.service.GetMilestone(context.Background(), testUserID, m.ID)

	assert.ErrorIs(t, err, domain.ErrInvalidCondition)
	assert.Nil(t, view)
	assert.Equal(t, 0, f.milestones.UpdateStatusCalls)
	assert.Equal(t, domain.MilestoneStatusPending, f.milestones.Stored(m.ID).Status)
}

func TestEvaluate_PersistFailure(t *testing.T) {
	f := newMilestoneFixture()
	wallet := f.wallets.AddWallet(&domain.Wallet{UserID: testUserID, Name: "Bank", InitialBalance: dec("1000")})
	m := f.addMilestone(balanceAtLeast(wallet.ID, "10"))
	storeErr := errors.New("connection reset")
	f.milestones.UpdateStatusFn = func(uuid.UUID, uuid.UUID, domain.MilestoneStatus, *time.Time) error { return storeErr }

	_, err := f.service.GetMilestone(context.Background(), testUserID, m.ID)

	assert.ErrorIs(t, err, storeErr)
}

func TestGetMilestone_NotFound(t *testing.T) {
	f := newMilestoneFixture()
	m := f.addMilestone(domain.NetWorthConfig{Operator: domain.OpGreaterOrEqual, TargetAmount: dec("1")})

	_, err := f.service.GetMilestone(context.Background(), uuid.New(), m.ID)

	assert.ErrorIs(t, err, domain.ErrMilestoneNotFound)
}

func TestListMilestones(t *testing.T) {
	f := newMilestoneFixture()
	wallet := f.wallets.AddWallet(&domain.Wallet{UserID: testUserID, Name: "Bank", InitialBalance: dec("500")})
	names := []string{"Charlie", "Alpha", "Bravo", "Delta", "Echo", "Foxtrot"}
	for _, name := range names {
		m := f.addMilestone(balanceAtLeast(wallet.ID, "1000"))
		m.Name = name
	}

	views, err := f.service.ListMilestones(context.Background(), testUserID, domain.MilestoneFilter{SortBy: domain.MilestoneSortName})

	require.NoError(t, err)
	require.Len(t, views, len(names))
	assert.Equal(t, "Alpha", views[0].Milestone.Name)
	assert.Equal(t, "Foxtrot", views[5].Milestone.Name)
	for _, v := range views {
		assert.Equal(t, domain.MilestoneStatusInProgress, v.Status)
		assertDecimal(t, "50", v.OverallProgress)
	}
}

func TestListMilestones_StatusFilter(t *testing.T) {
	f := newMilestoneFixture()
	cancelled := f.addMilestone(domain.NetWorthConfig{Operator: domain.OpGreaterOrEqual, TargetAmount: dec("1")})
	cancelled.Status = domain.MilestoneStatusCancelled
	f.addMilestone(domain.NetWorthConfig{Operator: domain.OpGreaterOrEqual, TargetAmount: dec("1")})

	status := domain.MilestoneStatusCancelled
	views, err := f.service.ListMilestones(context.Background(), testUserID, domain.MilestoneFilter{Status: &status})

	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, cancelled.ID, views[0].Milestone.ID)
}

func TestListMilestones_OneFailureFailsList(t *testing.T) {
	f := newMilestoneFixture()
	f.addMilestone(domain.NetWorthConfig{Operator: domain.OpGreaterOrEqual, TargetAmount: dec("1")})
	f.addMilestone(domain.UnknownConfig{Type: "legacy"})

	views, err := f.service.ListMilestones(context.Background(), testUserID, domain.MilestoneFilter{})

	assert.ErrorIs(t, err, domain.ErrInvalidCondition)
	assert.Nil(t, views)
}

func TestUpdateMilestone_MergesConditionsByID(t *testing.T) {
	f := newMilestoneFixture()
	ctx := context.Background()
	wallet := f.wallets.AddWallet(&domain.Wallet{UserID: testUserID, Name: "Bank"})
	m := f.addMilestone(
		balanceAtLeast(wallet.ID, "100"),
		domain.NetWorthConfig{Operator: domain.OpGreaterOrEqual, TargetAmount: dec("5000")},
	)
	keptID, replacedID := m.Conditions[0].ID, m.Conditions[1].ID
	keptConfig := m.Conditions[0].Config
	newName := "Renamed"

	view, err := f.service.UpdateMilestone(ctx, testUserID, m.ID, UpdateMilestoneInput{
		Name: &newName,
		Conditions: []domain.Condition{
			{ID: replacedID, Config: domain.NetWorthConfig{Operator: domain.OpGreaterOrEqual, TargetAmount: dec("9000")}},
			{ID: keptID},
			{Config: domain.NetWorthConfig{Operator: domain.OpLess, TargetAmount: dec("1")}},
		},
	})

	require.NoError(t, err)
	stored := f.milestones.Stored(m.ID)
	assert.Equal(t, "Renamed", stored.Name)
	require.Len(t, stored.Conditions, 3)
	assert.Equal(t, replacedID, stored.Conditions[0].ID)
	assertDecimal(t, "9000", stored.Conditions[0].Config.(domain.NetWorthConfig).TargetAmount)
	assert.Equal(t, keptID, stored.Conditions[1].ID)
	assert.Equal(t, keptConfig, stored.Conditions[1].Config)
	assert.NotEqual(t, uuid.Nil, stored.Conditions[2].ID)
	require.Len(t, view.Conditions, 3)
	assert.Equal(t, keptID, view.Conditions[1].ID)
}

func TestUpdateMilestone_RejectsBadConditionRefs(t *testing.T) {
	f := newMilestoneFixture()
	m := f.addMilestone(domain.NetWorthConfig{Operator: domain.OpGreaterOrEqual, TargetAmount: dec("5000")})
	id := m.Conditions[0].ID
	cfg := domain.NetWorthConfig{Operator: domain.OpGreaterOrEqual, TargetAmount: dec("1")}

	cases := map[string][]domain.Condition{
		"duplicate id": {{ID: id, Config: cfg}, {ID: id, Config: cfg}},
		"unknown id":   {{ID: uuid.New()}},
		"missing type": {{}},
	}
	for name, conditions := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.service.UpdateMilestone(context.Background(), testUserID, m.ID, UpdateMilestoneInput{Conditions: conditions})
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
	assert.Equal(t, id, f.milestones.Stored(m.ID).Conditions[0].ID)
}

func TestSetStatus(t *testing.T) {
	f := newMilestoneFixture()
	ctx := context.Background()
	m := f.addMilestone(domain.NetWorthConfig{Operator: domain.OpGreaterOrEqual, TargetAmount: dec("5000")})

	_, err := f.service.SetStatus(ctx, testUserID, m.ID, domain.MilestoneStatusInProgress)
	assert.ErrorIs(t, err, domain.ErrValidation)

	view, err := f.service.SetStatus(ctx, testUserID, m.ID, domain.MilestoneStatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, domain.MilestoneStatusCancelled, view.Status)
	assert.Equal(t, domain.MilestoneStatusCancelled, f.milestones.Stored(m.ID).Status)
	assert.Nil(t, f.milestones.Stored(m.ID).AchievedAt)
}

func TestSetStatus_AchievedStampsOnce(t *testing.T) {
	f := newMilestoneFixture()
	ctx := context.Background()
	f.wallets.AddWallet(&domain.Wallet{UserID: testUserID, Name: "Bank", InitialBalance: dec("5000")})
	m := f.addMilestone(domain.NetWorthConfig{Operator: domain.OpGreaterOrEqual, TargetAmount: dec("5000")})

	view, err := f.service.SetStatus(ctx, testUserID, m.ID, domain.MilestoneStatusAchieved)
	require.NoError(t, err)
	require.NotNil(t, view.AchievedAt)
	stamped := *view.AchievedAt

	f.now = f.now.Add(time.Hour)
	view, err = f.service.SetStatus(ctx, testUserID, m.ID, domain.MilestoneStatusAchieved)
	require.NoError(t, err)
	assert.True(t, view.AchievedAt.Equal(stamped))
	assert.Equal(t, domain.MilestoneStatusAchieved, view.Status)
}

func TestDeleteMilestone(t *testing.T) {
	f := newMilestoneFixture()
	m := f.addMilestone(domain.NetWorthConfig{Operator: domain.OpGreaterOrEqual, TargetAmount: dec("1")})

	require.NoError(t, f.service.DeleteMilestone(context.Background(), testUserID, m.ID))
	assert.ErrorIs(t, f.service.DeleteMilestone(context.Background(), testUserID, m.ID), domain.ErrMilestoneNotFound)
}
