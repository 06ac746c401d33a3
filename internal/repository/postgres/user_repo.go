package postgres

import (
	"context"

	"github.com/dafibh/fortuna/ledger-backend/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserRepository implements domain.UserRepository using PostgreSQL
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

const userColumns = `id, auth0_id, email, created_at`

// GetByAuth0ID retrieves a user by their Auth0 ID
func (r *UserRepository) GetByAuth0ID(ctx context.Context, auth0ID string) (*domain.User, error) {
	var u domain.User
	err := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE auth0_id = $1`, auth0ID).
		Scan(&u.ID, &u.Auth0ID, &u.Email, &u.CreatedAt)
	if err != nil {
		return nil, notFound(err, domain.ErrUserNotFound)
	}
	return &u, nil
}

// CreateOrGetByAuth0ID creates a new user or returns the existing one (upsert on login).
// A non-empty email refreshes the stored one.
func (r *UserRepository) CreateOrGetByAuth0ID(ctx context.Context, auth0ID, email string) (*domain.User, error) {
	var u domain.User
	err := r.pool.QueryRow(ctx, `
		INSERT INTO users (auth0_id, email) VALUES ($1, $2)
		ON CONFLICT (auth0_id) DO UPDATE
		SET email = CASE WHEN EXCLUDED.email = '' THEN users.email ELSE EXCLUDED.email END
		RETURNING `+userColumns, auth0ID, email).
		Scan(&u.ID, &u.Auth0ID, &u.Email, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
