package postgres

import (
	"context"
	"fmt"

	"github.com/dafibh/fortuna/ledger-backend/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// BudgetRepository implements domain.BudgetRepository using PostgreSQL
type BudgetRepository struct {
	pool *pgxpool.Pool
}

// NewBudgetRepository creates a new BudgetRepository
func NewBudgetRepository(pool *pgxpool.Pool) *BudgetRepository {
	return &BudgetRepository{pool: pool}
}

const budgetColumns = `id, user_id, name, category_ids::text[], limit_amount, start_date, end_date, created_at, updated_at`

func scanBudget(row pgx.Row) (*domain.Budget, error) {
	var b domain.Budget
	var categories []string
	var limit pgtype.Numeric
	if err := row.Scan(&b.ID, &b.UserID, &b.Name, &categories, &limit, &b.StartDate, &b.EndDate, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	ids, err := parseUUIDs(categories)
	if err != nil {
		return nil, fmt.Errorf("budget %s has invalid category ids: %w", b.ID, err)
	}
	b.CategoryIDs = ids
	b.LimitAmount = pgNumericToDecimal(limit)
	return &b, nil
}

// Create inserts a budget; a case-insensitive duplicate name yields ErrBudgetNameTaken
func (r *BudgetRepository) Create(ctx context.Context, budget *domain.Budget) (*domain.Budget, error) {
	limit, err := decimalToPgNumeric(budget.LimitAmount)
	if err != nil {
		return nil, fmt.Errorf("invalid limit amount: %w", err)
	}

	created, err := scanBudget(r.pool.QueryRow(ctx, `
		INSERT INTO budgets (user_id, name, category_ids, limit_amount, start_date, end_date)
		VALUES ($1, $2, $3::uuid[], $4, $5, $6)
		RETURNING `+budgetColumns,
		budget.UserID, budget.Name, uuidStrings(budget.CategoryIDs), limit, budget.StartDate, budget.EndDate))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrBudgetNameTaken
		}
		return nil, err
	}
	return created, nil
}

// GetByID retrieves a budget owned by userID
func (r *BudgetRepository) GetByID(ctx context.Context, userID, id uuid.UUID) (*domain.Budget, error) {
	budget, err := scanBudget(r.pool.QueryRow(ctx,
		`SELECT `+budgetColumns+` FROM budgets WHERE id = $1 AND user_id = $2`, id, userID))
	if err != nil {
		return nil, notFound(err, domain.ErrBudgetNotFound)
	}
	return budget, nil
}

// GetAllByUser lists a user's budgets by name
func (r *BudgetRepository) GetAllByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Budget, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+budgetColumns+` FROM budgets WHERE user_id = $1 ORDER BY lower(name), id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var budgets []*domain.Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, err
		}
		budgets = append(budgets, b)
	}
	return budgets, rows.Err()
}

// Delete removes a budget
func (r *BudgetRepository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM budgets WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrBudgetNotFound
	}
	return nil
}

// DeleteAllByUser removes every budget of a user
func (r *BudgetRepository) DeleteAllByUser(ctx context.Context, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM budgets WHERE user_id = $1`, userID)
	return err
}
