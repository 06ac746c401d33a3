package handler

import (
	"net/http"

	"github.com/dafibh/fortuna/ledger-backend/internal/domain"
	"github.com/dafibh/fortuna/ledger-backend/internal/middleware"
	"github.com/dafibh/fortuna/ledger-backend/internal/service"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// ReportHandler serves read-only ledger reports
type ReportHandler struct {
	reportService *service.ReportService
}

// NewReportHandler creates a new ReportHandler
func NewReportHandler(reportService *service.ReportService) *ReportHandler {
	return &ReportHandler{reportService: reportService}
}

// SummaryResponse represents the totals over a report range
type SummaryResponse struct {
	TotalIncome   string `json:"totalIncome"`
	TotalExpense  string `json:"totalExpense"`
	TotalTransfer string `json:"totalTransfer"`
	Net           string `json:"net"`
}

// CategoryTotalResponse is one category line of the category report
type CategoryTotalResponse struct {
	CategoryID uuid.UUID `json:"categoryId"`
	Total      string    `json:"total"`
}

// WalletReportResponse is one wallet line of the wallet report
type WalletReportResponse struct {
	WalletID       uuid.UUID `json:"walletId"`
	Name           string    `json:"name"`
	InitialBalance string    `json:"initialBalance"`
	TotalIncome    string    `json:"totalIncome"`
	TotalExpense   string    `json:"totalExpense"`
	FinalBalance   string    `json:"finalBalance"`
}

// parseReportFilter reads start_date, end_date and include_hidden
func parseReportFilter(c echo.Context) (service.ReportFilter, []ValidationError) {
	var filter service.ReportFilter
	var errs []ValidationError

	start, err := parseOptionalDate(c.QueryParam("start_date"))
	if err != nil {
		errs = append(errs, ValidationError{Field: "start_date", Message: "Must be in YYYY-MM-DD format"})
	}
	end, err := parseOptionalDate(c.QueryParam("end_date"))
	if err != nil {
		errs = append(errs, ValidationError{Field: "end_date", Message: "Must be in YYYY-MM-DD format"})
	}
	if start != nil && end != nil && end.Before(*start) {
		errs = append(errs, ValidationError{Field: "end_date", Message: "End date must not be before start date"})
	}
	filter.StartDate, filter.EndDate = start, end

	includeHidden, ok := parseBoolQuery(c, "include_hidden")
	if !ok {
		errs = append(errs, ValidationError{Field: "include_hidden", Message: "Must be true or false"})
	}
	filter.IncludeHidden = includeHidden
	return filter, errs
}

// GetSummary handles GET /api/v1/reports/summary?start_date=&end_date=&include_hidden=
func (h *ReportHandler) GetSummary(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		return NewUnauthorizedError(c, "Authentication required")
	}
	filter, errs := parseReportFilter(c)
	if len(errs) > 0 {
		return NewValidationError(c, "Invalid query parameters", errs)
	}

	summary, err := h.reportService.Summary(c.Request().Context(), userID, filter)
	if err != nil {
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, SummaryResponse{
		TotalIncome:   summary.TotalIncome.StringFixed(2),
		TotalExpense:  summary.TotalExpense.StringFixed(2),
		TotalTransfer: summary.TotalTransfer.StringFixed(2),
		Net:           summary.Net.StringFixed(2),
	})
}

// GetByCategory handles GET /api/v1/reports/by-category. The body is keyed by transaction type.
func (h *ReportHandler) GetByCategory(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		return NewUnauthorizedError(c, "Authentication required")
	}
	filter, errs := parseReportFilter(c)
	if len(errs) > 0 {
		return NewValidationError(c, "Invalid query parameters", errs)
	}

	grouped, err := h.reportService.ByCategory(c.Request().Context(), userID, filter)
	if err != nil {
		return handleServiceError(c, err)
	}
	response := make(map[domain.TransactionType][]CategoryTotalResponse, len(grouped))
	for typ, totals := range grouped {
		lines := make([]CategoryTotalResponse, len(totals))
		for i, t := range totals {
			lines[i] = CategoryTotalResponse{CategoryID: t.CategoryID, Total: t.Total.StringFixed(2)}
		}
		response[typ] = lines
	}
	return c.JSON(http.StatusOK, response)
}

// GetByWallet handles GET /api/v1/reports/by-wallet
func (h *ReportHandler) GetByWallet(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		return NewUnauthorizedError(c, "Authentication required")
	}
	filter, errs := parseReportFilter(c)
	if len(errs) > 0 {
		return NewValidationError(c, "Invalid query parameters", errs)
	}

	reports, err := h.reportService.ByWallet(c.Request().Context(), userID, filter)
	if err != nil {
		return handleServiceError(c, err)
	}
	response := make([]WalletReportResponse, len(reports))
	for i, r := range reports {
		response[i] = WalletReportResponse{
			WalletID:       r.Wallet.ID,
			Name:           r.Wallet.Name,
			InitialBalance: r.InitialBalance.StringFixed(2),
			TotalIncome:    r.TotalIncome.StringFixed(2),
			TotalExpense:   r.TotalExpense.StringFixed(2),
			FinalBalance:   r.FinalBalance.StringFixed(2),
		}
	}
	return c.JSON(http.StatusOK, response)
}
