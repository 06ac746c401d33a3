package handler

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/dafibh/fortuna/ledger-backend/internal/domain"
	"github.com/dafibh/fortuna/ledger-backend/internal/service"
	"github.com/dafibh/fortuna/ledger-backend/internal/testutil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reportFixture struct {
	handler         *ReportHandler
	transactionRepo *testutil.MockTransactionRepository
	userID          uuid.UUID
	checking        *domain.Wallet
	hidden          *domain.Wallet
	category        uuid.UUID
}

func newReportFixture() *reportFixture {
	walletRepo := testutil.NewMockWalletRepository()
	transactionRepo := testutil.NewMockTransactionRepository()
	userID := uuid.New()
	return &reportFixture{
		handler:         NewReportHandler(service.NewReportService(walletRepo, transactionRepo)),
		transactionRepo: transactionRepo,
		userID:          userID,
		checking:        walletRepo.AddWallet(&domain.Wallet{UserID: userID, Name: "Checking", InitialBalance: decimal.NewFromInt(100)}),
		hidden:          walletRepo.AddWallet(&domain.Wallet{UserID: userID, Name: "Hidden", Hidden: true}),
		category:        uuid.New(),
	}
}

func (f *reportFixture) expense(walletID uuid.UUID, amount int64, date time.Time) {
	f.transactionRepo.AddTransaction(&domain.Transaction{
		UserID: f.userID, Type: domain.TransactionTypeExpense, Amount: decimal.NewFromInt(amount),
		WalletID: walletID, CategoryID: &f.category, Date: date,
	})
}

func TestGetSummary_DefaultsToVisibleWallets(t *testing.T) {
	f := newReportFixture()
	f.expense(f.checking.ID, 25, time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC))
	f.expense(f.hidden.ID, 70, time.Date(2025, 1, 11, 0, 0, 0, 0, time.UTC))

	c, rec := newTestContext(http.MethodGet, "/api/v1/reports/summary", "", f.userID)
	require.NoError(t, f.handler.GetSummary(c))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var response SummaryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "25.00", response.TotalExpense)
	assert.Equal(t, "-25.00", response.Net)

	c, rec = newTestContext(http.MethodGet, "/api/v1/reports/summary?include_hidden=true", "", f.userID)
	require.NoError(t, f.handler.GetSummary(c))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "95.00", response.TotalExpense)
}

func TestGetSummary_InvalidQuery(t *testing.T) {
	f := newReportFixture()

	c, rec := newTestContext(http.MethodGet, "/api/v1/reports/summary?start_date=2025-02-01&end_date=2025-01-01&include_hidden=maybe", "", f.userID)
	require.NoError(t, f.handler.GetSummary(c))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	fields := map[string]bool{}
	for _, e := range decodeProblem(t, rec).Errors {
		fields[e.Field] = true
	}
	assert.True(t, fields["end_date"])
	assert.True(t, fields["include_hidden"])
}

func TestGetSummary_Unauthenticated(t *testing.T) {
	f := newReportFixture()
	c, rec := newTestContext(http.MethodGet, "/api/v1/reports/summary", "", uuid.Nil)

	require.NoError(t, f.handler.GetSummary(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetByCategory(t *testing.T) {
	f := newReportFixture()
	f.expense(f.checking.ID, 10, time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC))
	f.expense(f.checking.ID, 15, time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC))

	c, rec := newTestContext(http.MethodGet, "/api/v1/reports/by-category?start_date=2025-01-01&end_date=2025-01-31", "", f.userID)
	require.NoError(t, f.handler.GetByCategory(c))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var response map[string][]CategoryTotalResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	require.Len(t, response["expense"], 1)
	assert.Equal(t, f.category, response["expense"][0].CategoryID)
	assert.Equal(t, "10.00", response["expense"][0].Total)
}

func TestGetByWallet(t *testing.T) {
	f := newReportFixture()
	f.expense(f.checking.ID, 30, time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC))

	c, rec := newTestContext(http.MethodGet, "/api/v1/reports/by-wallet", "", f.userID)
	require.NoError(t, f.handler.GetByWallet(c))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var response []WalletReportResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	require.Len(t, response, 1)
	assert.Equal(t, "Checking", response[0].Name)
	assert.Equal(t, "100.00", response[0].InitialBalance)
	assert.Equal(t, "30.00", response[0].TotalExpense)
	assert.Equal(t, "70.00", response[0].FinalBalance)
}
