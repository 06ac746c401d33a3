package handler

import (
	"net/http"
	"strings"

	"github.com/dafibh/fortuna/ledger-backend/internal/middleware"
	"github.com/dafibh/fortuna/ledger-backend/internal/service"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

// BudgetHandler handles budget-related HTTP requests
type BudgetHandler struct {
	budgetService *service.BudgetService
}

// NewBudgetHandler creates a new BudgetHandler
func NewBudgetHandler(budgetService *service.BudgetService) *BudgetHandler {
	return &BudgetHandler{budgetService: budgetService}
}

// CreateBudgetRequest represents the create budget request body
type CreateBudgetRequest struct {
	Name        string      `json:"name"`
	CategoryIDs []uuid.UUID `json:"categoryIds"`
	LimitAmount string      `json:"limitAmount"`
	StartDate   string      `json:"startDate"`
	EndDate     string      `json:"endDate"`
}

// BudgetResponse represents a budget with spending derived from the ledger
type BudgetResponse struct {
	ID          uuid.UUID   `json:"id"`
	Name        string      `json:"name"`
	CategoryIDs []uuid.UUID `json:"categoryIds"`
	LimitAmount string      `json:"limitAmount"`
	Spent       string      `json:"spent"`
	Remaining   string      `json:"remaining"`
	StartDate   string      `json:"startDate"`
	EndDate     string      `json:"endDate"`
	CreatedAt   string      `json:"createdAt"`
	UpdatedAt   string      `json:"updatedAt"`
}

// CreateBudget handles POST /api/v1/budgets
func (h *BudgetHandler) CreateBudget(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		return NewUnauthorizedError(c, "Authentication required")
	}

	var req CreateBudgetRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	limit, err := decimal.NewFromString(req.LimitAmount)
	if err != nil {
		return NewValidationError(c, "Invalid limit amount", []ValidationError{
			{Field: "limitAmount", Message: "Must be a valid decimal number"},
		})
	}
	start, err := parseOptionalDate(req.StartDate)
	if err != nil || start == nil {
		return invalidDateError(c, "startDate")
	}
	end, err := parseOptionalDate(req.EndDate)
	if err != nil || end == nil {
		return invalidDateError(c, "endDate")
	}

	usage, err := h.budgetService.CreateBudget(c.Request().Context(), userID, service.CreateBudgetInput{
		Name:        strings.TrimSpace(req.Name),
		CategoryIDs: req.CategoryIDs,
		LimitAmount: limit,
		StartDate:   *start,
		EndDate:     *end,
	})
	if err != nil {
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, toBudgetResponse(usage))
}

// GetBudgets handles GET /api/v1/budgets
func (h *BudgetHandler) GetBudgets(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		return NewUnauthorizedError(c, "Authentication required")
	}

	usages, err := h.budgetService.ListBudgets(c.Request().Context(), userID)
	if err != nil {
		return handleServiceError(c, err)
	}

	response := make([]BudgetResponse, len(usages))
	for i, u := range usages {
		response[i] = toBudgetResponse(u)
	}
	return c.JSON(http.StatusOK, response)
}

// GetBudget handles GET /api/v1/budgets/:id
func (h *BudgetHandler) GetBudget(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		return NewUnauthorizedError(c, "Authentication required")
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return invalidIDError(c, "id")
	}

	usage, err := h.budgetService.GetBudget(c.Request().Context(), userID, id)
	if err != nil {
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, toBudgetResponse(usage))
}

// DeleteBudget handles DELETE /api/v1/budgets/:id
func (h *BudgetHandler) DeleteBudget(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		return NewUnauthorizedError(c, "Authentication required")
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return invalidIDError(c, "id")
	}

	if err := h.budgetService.DeleteBudget(c.Request().Context(), userID, id); err != nil {
		return handleServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func toBudgetResponse(u *service.BudgetUsage) BudgetResponse {
	b := u.Budget
	return BudgetResponse{
		ID:          b.ID,
		Name:        b.Name,
		CategoryIDs: b.CategoryIDs,
		LimitAmount: b.LimitAmount.StringFixed(2),
		Spent:       u.Spent.StringFixed(2),
		Remaining:   u.Remaining.StringFixed(2),
		StartDate:   b.StartDate.Format(dateLayout),
		EndDate:     b.EndDate.Format(dateLayout),
		CreatedAt:   formatTime(b.CreatedAt),
		UpdatedAt:   formatTime(b.UpdatedAt),
	}
}
