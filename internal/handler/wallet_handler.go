package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/dafibh/fortuna/ledger-backend/internal/middleware"
	"github.com/dafibh/fortuna/ledger-backend/internal/service"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

// WalletHandler handles wallet-related HTTP requests
type WalletHandler struct {
	walletService *service.WalletService
}

// NewWalletHandler creates a new WalletHandler
func NewWalletHandler(walletService *service.WalletService) *WalletHandler {
	return &WalletHandler{walletService: walletService}
}

// CreateWalletRequest represents the create wallet request body
type CreateWalletRequest struct {
	Name           string  `json:"name"`
	Icon           *string `json:"icon,omitempty"`
	InitialBalance string  `json:"initialBalance"`
	Hidden         bool    `json:"hidden"`
	IsMainWallet   bool    `json:"isMainWallet"`
}

// UpdateWalletRequest represents the partial update body
type UpdateWalletRequest struct {
	Name           *string `json:"name,omitempty"`
	Icon           *string `json:"icon,omitempty"`
	InitialBalance *string `json:"initialBalance,omitempty"`
	Hidden         *bool   `json:"hidden,omitempty"`
	IsMainWallet   *bool   `json:"isMainWallet,omitempty"`
}

// WalletResponse represents a wallet with its derived balance
type WalletResponse struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Icon           *string   `json:"icon,omitempty"`
	InitialBalance string    `json:"initialBalance"`
	Balance        string    `json:"balance"`
	Hidden         bool      `json:"hidden"`
	IsMainWallet   bool      `json:"isMainWallet"`
	CreatedAt      string    `json:"createdAt"`
	UpdatedAt      string    `json:"updatedAt"`
}

// NetWorthResponse represents the sum of wallet balances
type NetWorthResponse struct {
	NetWorth      string `json:"netWorth"`
	IncludeHidden bool   `json:"includeHidden"`
}

// CreateWallet handles POST /api/v1/wallets
func (h *WalletHandler) CreateWallet(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		return NewUnauthorizedError(c, "Authentication required")
	}

	var req CreateWalletRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	initial := decimal.Zero
	if req.InitialBalance != "" {
		parsed, err := decimal.NewFromString(req.InitialBalance)
		if err != nil {
			return NewValidationError(c, "Invalid initial balance", []ValidationError{
				{Field: "initialBalance", Message: "Must be a valid decimal number"},
			})
		}
		initial = parsed
	}

	result, err := h.walletService.CreateWallet(c.Request().Context(), userID, service.CreateWalletInput{
		Name:           strings.TrimSpace(req.Name),
		Icon:           req.Icon,
		InitialBalance: initial,
		Hidden:         req.Hidden,
		IsMainWallet:   req.IsMainWallet,
	})
	if err != nil {
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, toWalletResponse(result))
}

// GetWallets handles GET /api/v1/wallets?include_hidden=
func (h *WalletHandler) GetWallets(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		return NewUnauthorizedError(c, "Authentication required")
	}

	includeHidden, ok := parseBoolQuery(c, "include_hidden")
	if !ok {
		return NewValidationError(c, "Invalid query parameters", []ValidationError{
			{Field: "include_hidden", Message: "Must be true or false"},
		})
	}

	results, err := h.walletService.ListWallets(c.Request().Context(), userID, includeHidden)
	if err != nil {
		return handleServiceError(c, err)
	}

	response := make([]WalletResponse, len(results))
	for i, r := range results {
		response[i] = toWalletResponse(r)
	}
	return c.JSON(http.StatusOK, response)
}

// GetWallet handles GET /api/v1/wallets/:id
func (h *WalletHandler) GetWallet(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		return NewUnauthorizedError(c, "Authentication required")
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return invalidIDError(c, "id")
	}

	result, err := h.walletService.GetWallet(c.Request().Context(), userID, id)
	if err != nil {
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, toWalletResponse(result))
}

// GetNetWorth handles GET /api/v1/wallets/net-worth?include_hidden=
func (h *WalletHandler) GetNetWorth(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		return NewUnauthorizedError(c, "Authentication required")
	}

	includeHidden, ok := parseBoolQuery(c, "include_hidden")
	if !ok {
		return NewValidationError(c, "Invalid query parameters", []ValidationError{
			{Field: "include_hidden", Message: "Must be true or false"},
		})
	}

	netWorth, err := h.walletService.NetWorth(c.Request().Context(), userID, includeHidden)
	if err != nil {
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, NetWorthResponse{NetWorth: netWorth.StringFixed(2), IncludeHidden: includeHidden})
}

// UpdateWallet handles PUT /api/v1/wallets/:id
func (h *WalletHandler) UpdateWallet(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		return NewUnauthorizedError(c, "Authentication required")
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return invalidIDError(c, "id")
	}

	var req UpdateWalletRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	input := service.UpdateWalletInput{
		Icon:         req.Icon,
		Hidden:       req.Hidden,
		IsMainWallet: req.IsMainWallet,
	}
	if req.Name != nil {
		trimmed := strings.TrimSpace(*req.Name)
		input.Name = &trimmed
	}
	if req.InitialBalance != nil {
		parsed, err := decimal.NewFromString(*req.InitialBalance)
		if err != nil {
			return NewValidationError(c, "Invalid initial balance", []ValidationError{
				{Field: "initialBalance", Message: "Must be a valid decimal number"},
			})
		}
		input.InitialBalance = &parsed
	}

	result, err := h.walletService.UpdateWallet(c.Request().Context(), userID, id, input)
	if err != nil {
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, toWalletResponse(result))
}

// DeleteWallet handles DELETE /api/v1/wallets/:id
func (h *WalletHandler) DeleteWallet(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		return NewUnauthorizedError(c, "Authentication required")
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return invalidIDError(c, "id")
	}

	if err := h.walletService.DeleteWallet(c.Request().Context(), userID, id); err != nil {
		return handleServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// parseBoolQuery reads an optional boolean query parameter, defaulting to false
func parseBoolQuery(c echo.Context, name string) (bool, bool) {
	raw := c.QueryParam(name)
	if raw == "" {
		return false, true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}

func toWalletResponse(r *service.WalletBalanceResult) WalletResponse {
	w := r.Wallet
	return WalletResponse{
		ID:             w.ID,
		Name:           w.Name,
		Icon:           w.Icon,
		InitialBalance: w.InitialBalance.StringFixed(2),
		Balance:        r.CalculatedBalance.StringFixed(2),
		Hidden:         w.Hidden,
		IsMainWallet:   w.IsMainWallet,
		CreatedAt:      formatTime(w.CreatedAt),
		UpdatedAt:      formatTime(w.UpdatedAt),
	}
}
