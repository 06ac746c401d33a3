package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dafibh/fortuna/ledger-backend/internal/domain"
	"github.com/dafibh/fortuna/ledger-backend/internal/middleware"
	"github.com/dafibh/fortuna/ledger-backend/internal/service"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

// MilestoneHandler handles milestone-related HTTP requests
type MilestoneHandler struct {
	milestoneService *service.MilestoneService
}

// NewMilestoneHandler creates a new MilestoneHandler
func NewMilestoneHandler(milestoneService *service.MilestoneService) *MilestoneHandler {
	return &MilestoneHandler{milestoneService: milestoneService}
}

// ConditionRequest is one condition in a create or update body.
// On update, an entry with an id and no type keeps the stored condition.
type ConditionRequest struct {
	ID     *uuid.UUID      `json:"id,omitempty"`
	Type   string          `json:"type"`
	Config json.RawMessage `json:"config"`
}

// CreateMilestoneRequest represents the create milestone request body
type CreateMilestoneRequest struct {
	Name        string             `json:"name"`
	Description *string            `json:"description,omitempty"`
	Icon        *string            `json:"icon,omitempty"`
	Color       *string            `json:"color,omitempty"`
	Conditions  []ConditionRequest `json:"conditions"`
	TargetDate  string             `json:"targetDate"`
}

// UpdateMilestoneRequest represents the partial update body
type UpdateMilestoneRequest struct {
	Name        *string            `json:"name,omitempty"`
	Description *string            `json:"description,omitempty"`
	Icon        *string            `json:"icon,omitempty"`
	Color       *string            `json:"color,omitempty"`
	Conditions  []ConditionRequest `json:"conditions,omitempty"`
	TargetDate  *string            `json:"targetDate,omitempty"`
}

// UpdateStatusRequest represents the manual status override body
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// ConditionProgressResponse is one evaluated condition
type ConditionProgressResponse struct {
	ID                 uuid.UUID              `json:"id"`
	Type               domain.ConditionType   `json:"type"`
	Config             domain.ConditionConfig `json:"config"`
	CurrentValue       decimal.Decimal        `json:"currentValue"`
	TargetValue        decimal.Decimal        `json:"targetValue"`
	ProgressPercentage decimal.Decimal        `json:"progressPercentage"`
	IsMet              bool                   `json:"isMet"`
}

// MilestoneResponse represents a milestone with computed progress
type MilestoneResponse struct {
	ID              uuid.UUID                   `json:"id"`
	Name            string                      `json:"name"`
	Description     *string                     `json:"description,omitempty"`
	Icon            *string                     `json:"icon,omitempty"`
	Color           *string                     `json:"color,omitempty"`
	TargetDate      string                      `json:"targetDate"`
	Status          domain.MilestoneStatus      `json:"status"`
	AchievedAt      *string                     `json:"achievedAt,omitempty"`
	OverallProgress decimal.Decimal             `json:"overallProgress"`
	Conditions      []ConditionProgressResponse `json:"conditions"`
	CreatedAt       string                      `json:"createdAt"`
	UpdatedAt       string                      `json:"updatedAt"`
}

// CreateMilestone handles POST /api/v1/milestones
func (h *MilestoneHandler) CreateMilestone(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		return NewUnauthorizedError(c, "Authentication required")
	}

	var req CreateMilestoneRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	targetDate, err := parseOptionalDate(req.TargetDate)
	if err != nil {
		return invalidDateError(c, "targetDate")
	}
	if targetDate == nil {
		return NewValidationError(c, "Validation failed", []ValidationError{
			{Field: "targetDate", Message: "Target date is required"},
		})
	}

	conditions, err := decodeConditions(req.Conditions)
	if err != nil {
		return handleServiceError(c, err)
	}

	created, err := h.milestoneService.CreateMilestone(c.Request().Context(), userID, service.CreateMilestoneInput{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Icon:        req.Icon,
		Color:       req.Color,
		Conditions:  conditions,
		TargetDate:  *targetDate,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	view, err := h.milestoneService.Evaluate(c.Request().Context(), created)
	if err != nil {
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, toMilestoneResponse(view))
}

// GetMilestones handles GET /api/v1/milestones?status=&sort_by=&order=
func (h *MilestoneHandler) GetMilestones(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		return NewUnauthorizedError(c, "Authentication required")
	}

	filter, verr := parseMilestoneFilter(c)
	if verr != nil {
		return NewValidationError(c, "Invalid query parameters", []ValidationError{*verr})
	}

	views, err := h.milestoneService.ListMilestones(c.Request().Context(), userID, filter)
	if err != nil {
		return handleServiceError(c, err)
	}

	response := make([]MilestoneResponse, len(views))
	for i, v := range views {
		response[i] = toMilestoneResponse(v)
	}
	return c.JSON(http.StatusOK, response)
}

// GetMilestone handles GET /api/v1/milestones/:id
func (h *MilestoneHandler) GetMilestone(c echo.Context) error {
	return h.readMilestone(c, h.milestoneService.GetMilestone)
}

// CheckProgress handles GET /api/v1/milestones/:id/check-progress
func (h *MilestoneHandler) CheckProgress(c echo.Context) error {
	return h.readMilestone(c, h.milestoneService.CheckProgress)
}

func (h *MilestoneHandler) readMilestone(c echo.Context, read func(ctx context.Context, userID, id uuid.UUID) (*domain.MilestoneView, error)) error {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		return NewUnauthorizedError(c, "Authentication required")
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return invalidIDError(c, "id")
	}

	view, err := read(c.Request().Context(), userID, id)
	if err != nil {
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, toMilestoneResponse(view))
}

// UpdateMilestone handles PATCH /api/v1/milestones/:id
func (h *MilestoneHandler) UpdateMilestone(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		return NewUnauthorizedError(c, "Authentication required")
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return invalidIDError(c, "id")
	}

	var req UpdateMilestoneRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	input := service.UpdateMilestoneInput{
		Name:        req.Name,
		Description: req.Description,
		Icon:        req.Icon,
		Color:       req.Color,
	}
	if req.Name != nil {
		trimmed := strings.TrimSpace(*req.Name)
		input.Name = &trimmed
	}
	if req.TargetDate != nil {
		targetDate, err := parseOptionalDate(*req.TargetDate)
		if err != nil || targetDate == nil {
			return invalidDateError(c, "targetDate")
		}
		input.TargetDate = targetDate
	}
	if req.Conditions != nil {
		conditions, err := decodeConditions(req.Conditions)
		if err != nil {
			return handleServiceError(c, err)
		}
		input.Conditions = conditions
	}

	view, err := h.milestoneService.UpdateMilestone(c.Request().Context(), userID, id, input)
	if err != nil {
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, toMilestoneResponse(view))
}

// UpdateStatus handles PATCH /api/v1/milestones/:id/status
func (h *MilestoneHandler) UpdateStatus(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		return NewUnauthorizedError(c, "Authentication required")
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return invalidIDError(c, "id")
	}

	var req UpdateStatusRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}

	view, err := h.milestoneService.SetStatus(c.Request().Context(), userID, id, domain.MilestoneStatus(req.Status))
	if err != nil {
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, toMilestoneResponse(view))
}

// DeleteMilestone handles DELETE /api/v1/milestones/:id
func (h *MilestoneHandler) DeleteMilestone(c echo.Context) error {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		return NewUnauthorizedError(c, "Authentication required")
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return invalidIDError(c, "id")
	}

	if err := h.milestoneService.DeleteMilestone(c.Request().Context(), userID, id); err != nil {
		return handleServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// decodeConditions turns request entries into domain conditions.
// An entry without a type keeps a nil Config so the service can merge it by id.
func decodeConditions(requests []ConditionRequest) ([]domain.Condition, error) {
	conditions := make([]domain.Condition, len(requests))
	for i, r := range requests {
		if r.ID != nil {
			conditions[i].ID = *r.ID
		}
		if r.Type == "" {
			continue
		}
		cfg, err := domain.DecodeConditionConfig(domain.ConditionType(r.Type), r.Config)
		if err != nil {
			return nil, err
		}
		conditions[i].Config = cfg
	}
	return conditions, nil
}

func parseMilestoneFilter(c echo.Context) (domain.MilestoneFilter, *ValidationError) {
	filter := domain.MilestoneFilter{SortBy: domain.MilestoneSortTargetDate}

	if raw := c.QueryParam("status"); raw != "" {
		status := domain.MilestoneStatus(raw)
		if !status.Valid() {
			return filter, &ValidationError{Field: "status", Message: "Status must be one of: pending, in_progress, achieved, failed, cancelled"}
		}
		filter.Status = &status
	}

	if raw := c.QueryParam("sort_by"); raw != "" {
		switch sortBy := domain.MilestoneSortField(raw); sortBy {
		case domain.MilestoneSortTargetDate, domain.MilestoneSortCreatedAt, domain.MilestoneSortName:
			filter.SortBy = sortBy
		default:
			return filter, &ValidationError{Field: "sort_by", Message: "sort_by must be one of: target_date, created_at, name"}
		}
	}

	switch strings.ToUpper(c.QueryParam("order")) {
	case "", "ASC":
	case "DESC":
		filter.Descending = true
	default:
		return filter, &ValidationError{Field: "order", Message: "order must be ASC or DESC"}
	}
	return filter, nil
}

func toMilestoneResponse(v *domain.MilestoneView) MilestoneResponse {
	m := v.Milestone
	conditions := make([]ConditionProgressResponse, len(v.Conditions))
	for i, cp := range v.Conditions {
		conditions[i] = ConditionProgressResponse(cp)
	}
	return MilestoneResponse{
		ID:              m.ID,
		Name:            m.Name,
		Description:     m.Description,
		Icon:            m.Icon,
		Color:           m.Color,
		TargetDate:      m.TargetDate.Format(dateLayout),
		Status:          v.Status,
		AchievedAt:      formatTimePtr(v.AchievedAt),
		OverallProgress: v.OverallProgress,
		Conditions:      conditions,
		CreatedAt:       formatTime(m.CreatedAt),
		UpdatedAt:       formatTime(m.UpdatedAt),
	}
}
