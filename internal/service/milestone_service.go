package service

import (
	"context"
	"fmt"
	"time"

	"github.com/dafibh/fortuna/ledger-backend/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// MilestoneService owns milestone CRUD and the status state machine driven by condition progress
type MilestoneService struct {
	milestoneRepo domain.MilestoneRepository
	evaluator     *ConditionEvaluator
	now           func() time.Time
	concurrency   int
}

// NewMilestoneService creates a new MilestoneService. concurrency bounds how many
// milestones a list call evaluates at once.
func NewMilestoneService(milestoneRepo domain.MilestoneRepository, evaluator *ConditionEvaluator, concurrency int) *MilestoneService {
	if concurrency < 1 {
		concurrency = 1
	}
	return &MilestoneService{
		milestoneRepo: milestoneRepo,
		evaluator:     evaluator,
		now:           time.Now,
		concurrency:   concurrency,
	}
}

// SetClock replaces the time source (used by tests)
func (s *MilestoneService) SetClock(now func() time.Time) {
	s.now = now
}

// CreateMilestoneInput holds the user-supplied fields of a new milestone
type CreateMilestoneInput struct {
	Name        string
	Description *string
	Icon        *string
	Color       *string
	Conditions  []domain.Condition
	TargetDate  time.Time
}

// UpdateMilestoneInput is a partial update. A nil Conditions slice keeps the stored conditions.
// Inside Conditions, an entry whose Config is nil refers to a stored condition by id and keeps it.
type UpdateMilestoneInput struct {
	Name        *string
	Description *string
	Icon        *string
	Color       *string
	Conditions  []domain.Condition
	TargetDate  *time.Time
}

// CreateMilestone assigns a fresh id to every condition and stores the milestone as pending
func (s *MilestoneService) CreateMilestone(ctx context.Context, userID uuid.UUID, input CreateMilestoneInput) (*domain.Milestone, error) {
	conditions := make([]domain.Condition, len(input.Conditions))
	for i, c := range input.Conditions {
		conditions[i] = domain.Condition{ID: uuid.New(), Config: c.Config}
	}

	milestone := &domain.Milestone{
		UserID:      userID,
		Name:        input.Name,
		Description: input.Description,
		Icon:        input.Icon,
		Color:       input.Color,
		Conditions:  conditions,
		TargetDate:  input.TargetDate,
		Status:      domain.MilestoneStatusPending,
	}
	if err := milestone.Validate(); err != nil {
		return nil, err
	}
	if err := s.evaluator.CheckReferences(ctx, userID, milestone.Conditions); err != nil {
		return nil, err
	}

	created, err := s.milestoneRepo.Create(ctx, milestone)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("user_id", userID.String()).
		Str("milestone_id", created.ID.String()).
		Int("conditions", len(created.Conditions)).
		Msg("Milestone created")
	return created, nil
}

// GetMilestone loads a milestone and recomputes its progress and status
func (s *MilestoneService) GetMilestone(ctx context.Context, userID, id uuid.UUID) (*domain.MilestoneView, error) {
	milestone, err := s.milestoneRepo.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	return s.Evaluate(ctx, milestone)
}

// CheckProgress is GetMilestone under the name clients use to force a refresh.
// Every read already recomputes, so the two are identical.
func (s *MilestoneService) CheckProgress(ctx context.Context, userID, id uuid.UUID) (*domain.MilestoneView, error) {
	return s.GetMilestone(ctx, userID, id)
}

// ListMilestones evaluates every matching milestone. A single failed evaluation fails the list.
func (s *MilestoneService) ListMilestones(ctx context.Context, userID uuid.UUID, filter domain.MilestoneFilter) ([]*domain.MilestoneView, error) {
	milestones, err := s.milestoneRepo.GetAllByUser(ctx, userID, filter)
	if err != nil {
		return nil, err
	}

	views := make([]*domain.MilestoneView, len(milestones))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, milestone := range milestones {
		g.Go(func() error {
			view, err := s.Evaluate(gctx, milestone)
			if err != nil {
				return err
			}
			views[i] = view
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return views, nil
}

// UpdateMilestone applies a partial update, merging conditions by id, and returns the recomputed view
func (s *MilestoneService) UpdateMilestone(ctx context.Context, userID, id uuid.UUID, input UpdateMilestoneInput) (*domain.MilestoneView, error) {
	milestone, err := s.milestoneRepo.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		milestone.Name = *input.Name
	}
	if input.Description != nil {
		milestone.Description = input.Description
	}
	if input.Icon != nil {
		milestone.Icon = input.Icon
	}
	if input.Color != nil {
		milestone.Color = input.Color
	}
	if input.TargetDate != nil {
		milestone.TargetDate = *input.TargetDate
	}
	if input.Conditions != nil {
		merged, err := mergeConditions(milestone.Conditions, input.Conditions)
		if err != nil {
			return nil, err
		}
		milestone.Conditions = merged
	}

	if err := milestone.Validate(); err != nil {
		return nil, err
	}
	// only configs the client sent are checked; kept conditions were checked when written
	if err := s.evaluator.CheckReferences(ctx, userID, input.Conditions); err != nil {
		return nil, err
	}

	updated, err := s.milestoneRepo.Update(ctx, milestone)
	if err != nil {
		return nil, err
	}
	return s.Evaluate(ctx, updated)
}

// mergeConditions builds the new ordered condition list. Entries keep their id when given
// one and get a fresh id otherwise; an id-only entry keeps the stored config for that id.
func mergeConditions(existing, incoming []domain.Condition) ([]domain.Condition, error) {
	byID := make(map[uuid.UUID]domain.Condition, len(existing))
	for _, c := range existing {
		byID[c.ID] = c
	}

	var errs domain.ValidationErrors
	seen := make(map[uuid.UUID]bool, len(incoming))
	merged := make([]domain.Condition, 0, len(incoming))
	for i, c := range incoming {
		field := fmt.Sprintf("conditions[%d]", i)
		if c.ID == uuid.Nil {
			if c.Config == nil {
				errs.Add(field+".type", "Type is required for a new condition")
				continue
			}
			merged = append(merged, domain.Condition{ID: uuid.New(), Config: c.Config})
			continue
		}

		if seen[c.ID] {
			errs.Add(field+".id", "Duplicate condition id")
			continue
		}
		seen[c.ID] = true

		if c.Config == nil {
			stored, ok := byID[c.ID]
			if !ok {
				errs.Add(field+".id", "Unknown condition id")
				continue
			}
			merged = append(merged, stored)
			continue
		}
		merged = append(merged, domain.Condition{ID: c.ID, Config: c.Config})
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}
	return merged, nil
}

// DeleteMilestone removes a milestone
func (s *MilestoneService) DeleteMilestone(ctx context.Context, userID, id uuid.UUID) error {
	return s.milestoneRepo.Delete(ctx, userID, id)
}

// SetStatus applies a manual status override and returns the recomputed view.
// Moving to achieved stamps achieved_at unless it is already set.
func (s *MilestoneService) SetStatus(ctx context.Context, userID, id uuid.UUID, status domain.MilestoneStatus) (*domain.MilestoneView, error) {
	if !status.IsManual() {
		var errs domain.ValidationErrors
		errs.Add("status", "Status must be one of: achieved, failed, cancelled")
		return nil, errs.Err()
	}

	milestone, err := s.milestoneRepo.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	achievedAt := milestone.AchievedAt
	if status == domain.MilestoneStatusAchieved && achievedAt == nil {
		now := s.now().UTC()
		achievedAt = &now
	}
	if err := s.milestoneRepo.UpdateStatus(ctx, userID, id, status, achievedAt); err != nil {
		return nil, err
	}

	log.Info().
		Str("user_id", userID.String()).
		Str("milestone_id", id.String()).
		Str("from", string(milestone.Status)).
		Str("to", string(status)).
		Msg("Milestone status set manually")

	milestone.Status = status
	milestone.AchievedAt = achievedAt
	return s.Evaluate(ctx, milestone)
}

// Evaluate recomputes every condition from live data, derives the status and persists it
// when it changed. Any condition error aborts the whole evaluation.
func (s *MilestoneService) Evaluate(ctx context.Context, milestone *domain.Milestone) (*domain.MilestoneView, error) {
	now := s.now().UTC()

	progress := make([]domain.ConditionProgress, 0, len(milestone.Conditions))
	for _, condition := range milestone.Conditions {
		p, err := s.evaluator.Evaluate(ctx, milestone.UserID, condition, now)
		if err != nil {
			return nil, fmt.Errorf("condition %s: %w", condition.ID, err)
		}
		progress = append(progress, p)
	}

	status, achievedAt := nextStatus(milestone, progress, now)
	if status != milestone.Status || !sameInstant(achievedAt, milestone.AchievedAt) {
		// pending is the rest state and is never written back
		if status != domain.MilestoneStatusPending {
			if err := s.milestoneRepo.UpdateStatus(ctx, milestone.UserID, milestone.ID, status, achievedAt); err != nil {
				return nil, err
			}
			log.Info().
				Str("user_id", milestone.UserID.String()).
				Str("milestone_id", milestone.ID.String()).
				Str("from", string(milestone.Status)).
				Str("to", string(status)).
				Msg("Milestone status changed")
		}
	}

	return &domain.MilestoneView{
		Milestone:       milestone,
		Conditions:      progress,
		Status:          status,
		AchievedAt:      achievedAt,
		OverallProgress: overallProgress(progress),
	}, nil
}

// nextStatus is the lifecycle rule: cancelled is sticky, then achieved, in_progress,
// failed (past target date) and finally pending.
func nextStatus(milestone *domain.Milestone, progress []domain.ConditionProgress, now time.Time) (domain.MilestoneStatus, *time.Time) {
	achievedAt := milestone.AchievedAt
	if milestone.Status == domain.MilestoneStatusCancelled {
		return milestone.Status, achievedAt
	}

	allMet := len(progress) > 0
	anyProgress := false
	for _, p := range progress {
		if !p.IsMet {
			allMet = false
		}
		if p.ProgressPercentage.IsPositive() {
			anyProgress = true
		}
	}

	switch {
	case allMet:
		if achievedAt == nil {
			achievedAt = &now
		}
		return domain.MilestoneStatusAchieved, achievedAt
	case anyProgress:
		return domain.MilestoneStatusInProgress, achievedAt
	case milestone.TargetDate.Before(now):
		return domain.MilestoneStatusFailed, achievedAt
	}
	return domain.MilestoneStatusPending, achievedAt
}

func overallProgress(progress []domain.ConditionProgress) decimal.Decimal {
	if len(progress) == 0 {
		return decimal.Zero
	}
	total := decimal.Zero
	for _, p := range progress {
		total = total.Add(p.ProgressPercentage)
	}
	return total.Div(decimal.NewFromInt(int64(len(progress)))).Round(2)
}

func sameInstant(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
