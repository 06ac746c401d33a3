package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dafibh/fortuna/ledger-backend/internal/domain"
	"github.com/dafibh/fortuna/ledger-backend/internal/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// BudgetService handles budgets and their derived spending
type BudgetService struct {
	budgetRepo         domain.BudgetRepository
	calculationService *CalculationService
	eventPublisher     websocket.EventPublisher
}

// NewBudgetService creates a new BudgetService
func NewBudgetService(budgetRepo domain.BudgetRepository, calculationService *CalculationService) *BudgetService {
	return &BudgetService{
		budgetRepo:         budgetRepo,
		calculationService: calculationService,
	}
}

// SetEventPublisher sets the event publisher for real-time updates
func (s *BudgetService) SetEventPublisher(publisher websocket.EventPublisher) {
	s.eventPublisher = publisher
}

func (s *BudgetService) publishEvent(userID uuid.UUID, event websocket.Event) {
	if s.eventPublisher != nil {
		s.eventPublisher.Publish(userID, event)
	}
}

// CreateBudgetInput holds the input for creating a budget
type CreateBudgetInput struct {
	Name        string
	CategoryIDs []uuid.UUID
	LimitAmount decimal.Decimal
	StartDate   time.Time
	EndDate     time.Time
}

// BudgetUsage is a budget with spending derived over its full window
type BudgetUsage struct {
	Budget    *domain.Budget
	Spent     decimal.Decimal
	Remaining decimal.Decimal
}

// CreateBudget validates and stores a budget. Names are unique per user.
func (s *BudgetService) CreateBudget(ctx context.Context, userID uuid.UUID, input CreateBudgetInput) (*BudgetUsage, error) {
	budget := &domain.Budget{
		UserID:      userID,
		Name:        strings.TrimSpace(input.Name),
		CategoryIDs: uniqueIDs(input.CategoryIDs),
		LimitAmount: input.LimitAmount,
		StartDate:   input.StartDate,
		EndDate:     input.EndDate,
	}
	if err := budget.Validate(); err != nil {
		return nil, err
	}

	created, err := s.budgetRepo.Create(ctx, budget)
	if err != nil {
		if !errors.Is(err, domain.ErrBudgetNameTaken) {
			log.Error().Err(err).Str("user_id", userID.String()).Msg("Failed to create budget")
		}
		return nil, err
	}

	s.publishEvent(userID, websocket.BudgetCreated(created))
	return s.usage(ctx, created)
}

// GetBudget returns one budget with spent and remaining
func (s *BudgetService) GetBudget(ctx context.Context, userID, id uuid.UUID) (*BudgetUsage, error) {
	budget, err := s.budgetRepo.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	return s.usage(ctx, budget)
}

// ListBudgets returns every budget of the user with spent and remaining
func (s *BudgetService) ListBudgets(ctx context.Context, userID uuid.UUID) ([]*BudgetUsage, error) {
	budgets, err := s.budgetRepo.GetAllByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	result := make([]*BudgetUsage, 0, len(budgets))
	for _, budget := range budgets {
		usage, err := s.usage(ctx, budget)
		if err != nil {
			return nil, err
		}
		result = append(result, usage)
	}
	return result, nil
}

// DeleteBudget removes a budget. budget_control conditions pointing at it read as zero progress.
func (s *BudgetService) DeleteBudget(ctx context.Context, userID, id uuid.UUID) error {
	if err := s.budgetRepo.Delete(ctx, userID, id); err != nil {
		return err
	}
	s.publishEvent(userID, websocket.BudgetDeleted(id.String()))
	return nil
}

func (s *BudgetService) usage(ctx context.Context, budget *domain.Budget) (*BudgetUsage, error) {
	spent, err := s.calculationService.BudgetSpent(ctx, budget, nil)
	if err != nil {
		return nil, err
	}
	return &BudgetUsage{
		Budget:    budget,
		Spent:     spent,
		Remaining: budget.LimitAmount.Sub(spent),
	}, nil
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
