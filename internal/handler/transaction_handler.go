package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/dafibh/fortuna/ledger-backend/internal/domain"
	"github.com/dafibh/fortuna/ledger-backend/internal/middleware"
	"github.com/dafibh/fortuna/ledger-backend/internal/service"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

// TransactionHandler handles transaction-related HTTP requests
type TransactionHandler struct {
	transactionService *service.TransactionService
}

// NewTransactionHandler creates a new TransactionHandler
func NewTransactionHandler(transactionService *service.TransactionService) *TransactionHandler {
	return &TransactionHandler{transactionService: transactionService}
}

// CreateTransactionRequest represents the create transaction request body
type CreateTransactionRequest struct {
	Type                string     `json:"type"`
	Amount              string     `json:"amount"`
	WalletID            uuid.UUID  `json:"walletId"`
	CategoryID          *uuid.UUID `json:"categoryId,omitempty"`
	DestinationWalletID *uuid.UUID `json:"destinationWalletId,omitempty"`
	Date                *string    `json:"date,omitempty"`
	Note                *string    `json:"note,omitempty"`
}

// nullableUUID tells an absent field apart from an explicit null
type nullableUUID struct {
	Set   bool
	Value *uuid.UUID
}

func (n *nullableUUID) UnmarshalJSON(data []byte) error {
	n.Set = true
	if string(data) == "null" {
		n.Value = nil
		return nil
	}
	var id uuid.UUID
	if err := json.Unmarshal(data, &id); err != nil {
		return err
	}
	n.Value = &id
	return nil
}

// UpdateTransactionRequest represents the partial update body.
// categoryId and destinationWalletId accept null to clear them.
type UpdateTransactionRequest struct {
	Type                *string      `json:"type,omitempty"`
	Amount              *string      `json:"amount,omitempty"`
	WalletID            *uuid.UUID   `json:"walletId,omitempty"`
	CategoryID          nullableUUID `json:"categoryId"`
	DestinationWalletID nullableUUID `json:"destinationWalletId"`
	Date                *string      `json:"date,omitempty"`
	Note                *string      `json:"note,omitempty"`
}

// TransactionResponse represents a transaction in API responses
type TransactionResponse struct {
	ID                  uuid.UUID              `json:"id"`
	Type                domain.TransactionType `json:"type"`
	Amount              string                 `json:"amount"`
	WalletID            uuid.UUID              `json:"walletId"`
	CategoryID          *uuid.UUID             `json:"categoryId,omitempty"`
	DestinationWalletID *uuid.UUID             `json:"destinationWalletId,omitempty"`
	Date                string                 `json:"date"`
	Note                *string                `json:"note,omitempty"`
	CreatedAt           string                 `json:"createdAt"`
	UpdatedAt           string                 `json:"updatedAt"`
}

// CreateTransaction handles POST /api/v1/transactions
func (h *TransactionHandler) CreateTransaction(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		return NewUnauthorizedError(c, "Authentication required")
	}

	var req CreateTransactionRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return NewValidationError(c, "Invalid amount", []ValidationError{
			{Field: "amount", Message: "Must be a valid decimal number"},
		})
	}

	var date *time.Time
	if req.Date != nil {
		if date, err = parseOptionalDate(*req.Date); err != nil {
			return invalidDateError(c, "date")
		}
	}

	created, err := h.transactionService.CreateTransaction(c.Request().Context(), userID, service.CreateTransactionInput{
		Type:                domain.TransactionType(req.Type),
		Amount:              amount,
		WalletID:            req.WalletID,
		CategoryID:          req.CategoryID,
		DestinationWalletID: req.DestinationWalletID,
		Date:                date,
		Note:                req.Note,
	})
	if err != nil {
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, toTransactionResponse(created))
}

// GetTransactions handles GET /api/v1/transactions?type=&wallet_id=&category_id=&start_date=&end_date=&limit=
func (h *TransactionHandler) GetTransactions(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		return NewUnauthorizedError(c, "Authentication required")
	}

	var filter service.ListTransactionsFilter
	var errs []ValidationError

	if raw := c.QueryParam("type"); raw != "" {
		t := domain.TransactionType(raw)
		if !t.Valid() {
			errs = append(errs, ValidationError{Field: "type", Message: "Type must be one of: income, expense, transfer"})
		}
		filter.Type = &t
	}
	for _, p := range []struct {
		name   string
		target **uuid.UUID
	}{
		{"wallet_id", &filter.WalletID},
		{"category_id", &filter.CategoryID},
	} {
		if raw := c.QueryParam(p.name); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				errs = append(errs, ValidationError{Field: p.name, Message: "Must be a valid UUID"})
				continue
			}
			*p.target = &id
		}
	}
	start, err := parseOptionalDate(c.QueryParam("start_date"))
	if err != nil {
		errs = append(errs, ValidationError{Field: "start_date", Message: "Must be in YYYY-MM-DD format"})
	}
	end, err := parseOptionalDate(c.QueryParam("end_date"))
	if err != nil {
		errs = append(errs, ValidationError{Field: "end_date", Message: "Must be in YYYY-MM-DD format"})
	}
	filter.StartDate, filter.EndDate = start, end
	if raw := c.QueryParam("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			errs = append(errs, ValidationError{Field: "limit", Message: "Must be a positive integer"})
		}
		filter.Limit = limit
	}
	if len(errs) > 0 {
		return NewValidationError(c, "Invalid query parameters", errs)
	}

	transactions, err := h.transactionService.ListTransactions(c.Request().Context(), userID, filter)
	if err != nil {
		return handleServiceError(c, err)
	}

	response := make([]TransactionResponse, len(transactions))
	for i, t := range transactions {
		response[i] = toTransactionResponse(t)
	}
	return c.JSON(http.StatusOK, response)
}

// GetTransaction handles GET /api/v1/transactions/:id
func (h *TransactionHandler) GetTransaction(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		return NewUnauthorizedError(c, "Authentication required")
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return invalidIDError(c, "id")
	}

	t, err := h.transactionService.GetTransaction(c.Request().Context(), userID, id)
	if err != nil {
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, toTransactionResponse(t))
}

// UpdateTransaction handles PUT /api/v1/transactions/:id
func (h *TransactionHandler) UpdateTransaction(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		return NewUnauthorizedError(c, "Authentication required")
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return invalidIDError(c, "id")
	}

	var req UpdateTransactionRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	data := domain.UpdateTransactionData{
		WalletID:                 req.WalletID,
		CategoryID:               req.CategoryID.Value,
		ClearCategory:            req.CategoryID.Set && req.CategoryID.Value == nil,
		DestinationWalletID:      req.DestinationWalletID.Value,
		ClearDestinationWalletID: req.DestinationWalletID.Set && req.DestinationWalletID.Value == nil,
		Note:                     req.Note,
	}
	if req.Type != nil {
		t := domain.TransactionType(*req.Type)
		data.Type = &t
	}
	if req.Amount != nil {
		amount, err := decimal.NewFromString(*req.Amount)
		if err != nil {
			return NewValidationError(c, "Invalid amount", []ValidationError{
				{Field: "amount", Message: "Must be a valid decimal number"},
			})
		}
		data.Amount = &amount
	}
	if req.Date != nil {
		date, err := parseOptionalDate(*req.Date)
		if err != nil || date == nil {
			return invalidDateError(c, "date")
		}
		data.Date = date
	}

	updated, err := h.transactionService.UpdateTransaction(c.Request().Context(), userID, id, data)
	if err != nil {
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, toTransactionResponse(updated))
}

// DeleteTransaction handles DELETE /api/v1/transactions/:id
func (h *TransactionHandler) DeleteTransaction(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		return NewUnauthorizedError(c, "Authentication required")
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return invalidIDError(c, "id")
	}

	if err := h.transactionService.DeleteTransaction(c.Request().Context(), userID, id); err != nil {
		return handleServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func toTransactionResponse(t *domain.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:                  t.ID,
		Type:                t.Type,
		Amount:              t.Amount.String(),
		WalletID:            t.WalletID,
		CategoryID:          t.CategoryID,
		DestinationWalletID: t.DestinationWalletID,
		Date:                t.Date.Format(dateLayout),
		Note:                t.Note,
		CreatedAt:           formatTime(t.CreatedAt),
		UpdatedAt:           formatTime(t.UpdatedAt),
	}
}
