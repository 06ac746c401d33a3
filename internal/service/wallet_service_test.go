package service

import (
	"context"
	"testing"

	"github.com/dafibh/fortuna/ledger-backend/internal/domain"
	"github.com/dafibh/fortuna/ledger-backend/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupWalletService() (*WalletService, *testutil.MockWalletRepository, *testutil.MockTransactionRepository, *recordingPublisher) {
	svc, walletRepo, transactionRepo, _, publisher := setupWalletServiceWithMilestones()
	return svc, walletRepo, transactionRepo, publisher
}

func setupWalletServiceWithMilestones() (*WalletService, *testutil.MockWalletRepository, *testutil.MockTransactionRepository, *testutil.MockMilestoneRepository, *recordingPublisher) {
	walletRepo := testutil.NewMockWalletRepository()
	transactionRepo := testutil.NewMockTransactionRepository()
	milestoneRepo := testutil.NewMockMilestoneRepository()
	svc := NewWalletService(walletRepo, transactionRepo, milestoneRepo, NewCalculationService(walletRepo, transactionRepo))
	publisher := &recordingPublisher{}
	svc.SetEventPublisher(publisher)
	return svc, walletRepo, transactionRepo, milestoneRepo, publisher
}

func TestCreateWallet_SingleMainWallet(t *testing.T) {
	svc, walletRepo, _, publisher := setupWalletService()
	ctx := context.Background()

	first, err := svc.CreateWallet(ctx, testUserID, CreateWalletInput{Name: " Cash ", InitialBalance: dec("10"), IsMainWallet: true})
	require.NoError(t, err)
	assert.Equal(t, "Cash", first.Wallet.Name)
	assertDecimal(t, "10", first.CalculatedBalance)

	second, err := svc.CreateWallet(ctx, testUserID, CreateWalletInput{Name: "Bank", IsMainWallet: true})
	require.NoError(t, err)

	assert.False(t, walletRepo.Wallets[first.Wallet.ID].IsMainWallet)
	assert.True(t, walletRepo.Wallets[second.Wallet.ID].IsMainWallet)
	assert.Equal(t, []string{"wallet.created", "wallet.created"}, publisher.Types())
}

func TestCreateWallet_Validation(t *testing.T) {
	svc, _, _, _ := setupWalletService()

	_, err := svc.CreateWallet(context.Background(), testUserID, CreateWalletInput{Name: "   "})

	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestListWallets_DerivedBalances(t *testing.T) {
	svc, walletRepo, transactionRepo, _ := setupWalletService()
	a := walletRepo.AddWallet(&domain.Wallet{UserID: testUserID, Name: "A", InitialBalance: dec("1000")})
	b := walletRepo.AddWallet(&domain.Wallet{UserID: testUserID, Name: "B", Hidden: true})
	addTransfer(transactionRepo, a.ID, b.ID, "300", day(2024, 1, 1))

	visible, err := svc.ListWallets(context.Background(), testUserID, false)
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assertDecimal(t, "700", visible[0].CalculatedBalance)

	all, err := svc.ListWallets(context.Background(), testUserID, true)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assertDecimal(t, "300", all[1].CalculatedBalance)
}

func TestUpdateWallet(t *testing.T) {
	svc, walletRepo, transactionRepo, publisher := setupWalletService()
	wallet := walletRepo.AddWallet(&domain.Wallet{UserID: testUserID, Name: "A", InitialBalance: dec("100")})
	addIncome(transactionRepo, wallet.ID, "5", day(2024, 1, 1))
	name, balance, hidden := "Renamed", dec("200"), true

	result, err := svc.UpdateWallet(context.Background(), testUserID, wallet.ID, UpdateWalletInput{Name: &name, InitialBalance: &balance, Hidden: &hidden})

	require.NoError(t, err)
	assert.Equal(t, "Renamed", result.Wallet.Name)
	assert.True(t, result.Wallet.Hidden)
	assertDecimal(t, "205", result.CalculatedBalance)
	assert.Equal(t, []string{"wallet.updated"}, publisher.Types())
}

func TestDeleteWallet(t *testing.T) {
	svc, walletRepo, transactionRepo, _ := setupWalletService()
	ctx := context.Background()
	used := walletRepo.AddWallet(&domain.Wallet{UserID: testUserID, Name: "Used"})
	other := walletRepo.AddWallet(&domain.Wallet{UserID: testUserID, Name: "Other"})
	empty := walletRepo.AddWallet(&domain.Wallet{UserID: testUserID, Name: "Empty"})
	addTransfer(transactionRepo, other.ID, used.ID, "1", day(2024, 1, 1))

	assert.ErrorIs(t, svc.DeleteWallet(ctx, testUserID, used.ID), domain.ErrWalletInUse)
	assert.NoError(t, svc.DeleteWallet(ctx, testUserID, empty.ID))
	assert.ErrorIs(t, svc.DeleteWallet(ctx, testUserID, uuid.New()), domain.ErrWalletNotFound)
}

func TestDeleteWallet_ReferencedByMilestone(t *testing.T) {
	svc, walletRepo, _, milestoneRepo, publisher := setupWalletServiceWithMilestones()
	ctx := context.Background()
	savings := walletRepo.AddWallet(&domain.Wallet{UserID: testUserID, Name: "Savings"})
	spare := walletRepo.AddWallet(&domain.Wallet{UserID: testUserID, Name: "Spare"})
	milestoneRepo.AddMilestone(&domain.Milestone{
		UserID:     testUserID,
		Name:       "Rainy day",
		TargetDate: day(2025, 1, 1),
		Conditions: []domain.Condition{
			{ID: uuid.New(), Config: domain.NetWorthConfig{Operator: domain.OpGreaterOrEqual, TargetAmount: dec("1")}},
			{ID: uuid.New(), Config: balanceAtLeast(savings.ID, "500")},
		},
	})

	assert.ErrorIs(t, svc.DeleteWallet(ctx, testUserID, savings.ID), domain.ErrWalletInUse)
	assert.Contains(t, walletRepo.Wallets, savings.ID)

	require.NoError(t, svc.DeleteWallet(ctx, testUserID, spare.ID))
	assert.Equal(t, []string{"wallet.deleted"}, publisher.Types())
}
