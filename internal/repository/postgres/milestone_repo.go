package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dafibh/fortuna/ledger-backend/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MilestoneRepository implements domain.MilestoneRepository using PostgreSQL.
// Conditions are stored as a JSONB array of {id, type, config}.
type MilestoneRepository struct {
	pool *pgxpool.Pool
}

// NewMilestoneRepository creates a new MilestoneRepository
func NewMilestoneRepository(pool *pgxpool.Pool) *MilestoneRepository {
	return &MilestoneRepository{pool: pool}
}

const milestoneColumns = `id, user_id, name, description, icon, color, conditions, target_date, achieved_at, status, created_at, updated_at`

var milestoneSortColumns = map[domain.MilestoneSortField]string{
	domain.MilestoneSortTargetDate: "target_date",
	domain.MilestoneSortCreatedAt:  "created_at",
	domain.MilestoneSortName:       "lower(name)",
}

func scanMilestone(row pgx.Row) (*domain.Milestone, error) {
	var m domain.Milestone
	var conditions []byte
	var status string
	err := row.Scan(&m.ID, &m.UserID, &m.Name, &m.Description, &m.Icon, &m.Color, &conditions,
		&m.TargetDate, &m.AchievedAt, &status, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	m.Status = domain.MilestoneStatus(status)
	if err := json.Unmarshal(conditions, &m.Conditions); err != nil {
		return nil, fmt.Errorf("milestone %s has malformed conditions: %w", m.ID, err)
	}
	return &m, nil
}

// Create inserts a milestone including its status and achieved_at
func (r *MilestoneRepository) Create(ctx context.Context, milestone *domain.Milestone) (*domain.Milestone, error) {
	conditions, err := json.Marshal(milestone.Conditions)
	if err != nil {
		return nil, fmt.Errorf("encode conditions: %w", err)
	}
	status := milestone.Status
	if status == "" {
		status = domain.MilestoneStatusPending
	}

	return scanMilestone(r.pool.QueryRow(ctx, `
		INSERT INTO milestones (user_id, name, description, icon, color, conditions, target_date, achieved_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+milestoneColumns,
		milestone.UserID, milestone.Name, milestone.Description, milestone.Icon, milestone.Color,
		conditions, milestone.TargetDate, milestone.AchievedAt, string(status)))
}

// GetByID retrieves a milestone owned by userID
func (r *MilestoneRepository) GetByID(ctx context.Context, userID, id uuid.UUID) (*domain.Milestone, error) {
	m, err := scanMilestone(r.pool.QueryRow(ctx,
		`SELECT `+milestoneColumns+` FROM milestones WHERE id = $1 AND user_id = $2`, id, userID))
	if err != nil {
		return nil, notFound(err, domain.ErrMilestoneNotFound)
	}
	return m, nil
}

// GetAllByUser lists milestones, optionally filtered by stored status
func (r *MilestoneRepository) GetAllByUser(ctx context.Context, userID uuid.UUID, filter domain.MilestoneFilter) ([]*domain.Milestone, error) {
	w := &whereBuilder{}
	w.add("user_id = %s", userID)
	if filter.Status != nil {
		w.add("status = %s", string(*filter.Status))
	}

	column, ok := milestoneSortColumns[filter.SortBy]
	if !ok {
		column = milestoneSortColumns[domain.MilestoneSortTargetDate]
	}
	direction := "ASC"
	if filter.Descending {
		direction = "DESC"
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+milestoneColumns+` FROM milestones`+w.String()+` ORDER BY `+column+` `+direction+`, id`,
		w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var milestones []*domain.Milestone
	for rows.Next() {
		m, err := scanMilestone(rows)
		if err != nil {
			return nil, err
		}
		milestones = append(milestones, m)
	}
	return milestones, rows.Err()
}

// Update writes the descriptive fields and conditions only
func (r *MilestoneRepository) Update(ctx context.Context, milestone *domain.Milestone) (*domain.Milestone, error) {
	conditions, err := json.Marshal(milestone.Conditions)
	if err != nil {
		return nil, fmt.Errorf("encode conditions: %w", err)
	}

	m, err := scanMilestone(r.pool.QueryRow(ctx, `
		UPDATE milestones
		SET name = $3, description = $4, icon = $5, color = $6, conditions = $7, target_date = $8, updated_at = now()
		WHERE id = $1 AND user_id = $2
		RETURNING `+milestoneColumns,
		milestone.ID, milestone.UserID, milestone.Name, milestone.Description, milestone.Icon, milestone.Color,
		conditions, milestone.TargetDate))
	if err != nil {
		return nil, notFound(err, domain.ErrMilestoneNotFound)
	}
	return m, nil
}

// UpdateStatus writes status and achieved_at only
func (r *MilestoneRepository) UpdateStatus(ctx context.Context, userID, id uuid.UUID, status domain.MilestoneStatus, achievedAt *time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE milestones SET status = $3, achieved_at = $4, updated_at = now()
		WHERE id = $1 AND user_id = $2`,
		id, userID, string(status), achievedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrMilestoneNotFound
	}
	return nil
}

// Delete removes a milestone
func (r *MilestoneRepository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM milestones WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrMilestoneNotFound
	}
	return nil
}

// DeleteAllByUser removes every milestone of a user
func (r *MilestoneRepository) DeleteAllByUser(ctx context.Context, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM milestones WHERE user_id = $1`, userID)
	return err
}
