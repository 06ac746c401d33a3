package domain

import (
	"context"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type MilestoneStatus string

const (
	MilestoneStatusPending    MilestoneStatus = "pending"
	MilestoneStatusInProgress MilestoneStatus = "in_progress"
	MilestoneStatusAchieved   MilestoneStatus = "achieved"
	MilestoneStatusFailed     MilestoneStatus = "failed"
	MilestoneStatusCancelled  MilestoneStatus = "cancelled"
)

// Valid reports whether s is a known milestone status
func (s MilestoneStatus) Valid() bool {
	switch s {
	case MilestoneStatusPending, MilestoneStatusInProgress, MilestoneStatusAchieved,
		MilestoneStatusFailed, MilestoneStatusCancelled:
		return true
	}
	return false
}

// IsManual reports whether a user may set s directly
func (s MilestoneStatus) IsManual() bool {
	return s == MilestoneStatusAchieved || s == MilestoneStatusFailed || s == MilestoneStatusCancelled
}

var hexColorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// Milestone is a user-defined financial goal made of typed conditions
type Milestone struct {
	ID          uuid.UUID       `json:"id"`
	UserID      uuid.UUID       `json:"userId"`
	Name        string          `json:"name"`
	Description *string         `json:"description,omitempty"`
	Icon        *string         `json:"icon,omitempty"`
	Color       *string         `json:"color,omitempty"`
	Conditions  []Condition     `json:"conditions"`
	TargetDate  time.Time       `json:"targetDate"`
	AchievedAt  *time.Time      `json:"achievedAt,omitempty"`
	Status      MilestoneStatus `json:"status"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// Validate checks the descriptive fields and every condition
func (m *Milestone) Validate() error {
	var errs ValidationErrors
	if m.Name == "" {
		errs.Add("name", "Name is required")
	} else if len(m.Name) > MaxMilestoneNameLength {
		errs.Add("name", "Name must be 200 characters or less")
	}
	if m.Description != nil && len(*m.Description) > MaxMilestoneDescLength {
		errs.Add("description", "Description must be 1000 characters or less")
	}
	if m.Icon != nil && len(*m.Icon) > MaxMilestoneIconLength {
		errs.Add("icon", "Icon must be 50 characters or less")
	}
	if m.Color != nil && !hexColorPattern.MatchString(*m.Color) {
		errs.Add("color", "Color must be a valid hex color code (e.g., #26de81)")
	}
	if m.TargetDate.IsZero() {
		errs.Add("targetDate", "Target date is required")
	}

	if err := ValidateConditions(m.Conditions); err != nil {
		if fieldErrs, ok := err.(ValidationErrors); ok {
			errs = append(errs, fieldErrs...)
		} else {
			return err
		}
	}
	return errs.Err()
}

// ConditionProgress is the computed, never persisted, state of one condition
type ConditionProgress struct {
	ID                 uuid.UUID       `json:"id"`
	Type               ConditionType   `json:"type"`
	Config             ConditionConfig `json:"config"`
	CurrentValue       decimal.Decimal `json:"currentValue"`
	TargetValue        decimal.Decimal `json:"targetValue"`
	ProgressPercentage decimal.Decimal `json:"progressPercentage"`
	IsMet              bool            `json:"isMet"`
}

// MilestoneView is a milestone together with freshly computed progress
type MilestoneView struct {
	Milestone       *Milestone
	Conditions      []ConditionProgress
	Status          MilestoneStatus
	AchievedAt      *time.Time
	OverallProgress decimal.Decimal
}

// MilestoneSortField is the column a milestone listing is ordered by
type MilestoneSortField string

const (
	MilestoneSortTargetDate MilestoneSortField = "target_date"
	MilestoneSortCreatedAt  MilestoneSortField = "created_at"
	MilestoneSortName       MilestoneSortField = "name"
)

// MilestoneFilter narrows and orders a milestone listing
type MilestoneFilter struct {
	Status     *MilestoneStatus
	SortBy     MilestoneSortField
	Descending bool
}

type MilestoneRepository interface {
	Create(ctx context.Context, milestone *Milestone) (*Milestone, error)
	GetByID(ctx context.Context, userID, id uuid.UUID) (*Milestone, error)
	GetAllByUser(ctx context.Context, userID uuid.UUID, filter MilestoneFilter) ([]*Milestone, error)
	// Update writes the descriptive fields and conditions only, never status or achieved_at
	Update(ctx context.Context, milestone *Milestone) (*Milestone, error)
	// UpdateStatus writes status and achieved_at only
	UpdateStatus(ctx context.Context, userID, id uuid.UUID, status MilestoneStatus, achievedAt *time.Time) error
	Delete(ctx context.Context, userID, id uuid.UUID) error
	DeleteAllByUser(ctx context.Context, userID uuid.UUID) error
}
