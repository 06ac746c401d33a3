package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// User is the owner of every wallet, budget, transaction and milestone
type User struct {
	ID        uuid.UUID `json:"id"`
	Auth0ID   string    `json:"auth0Id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// UserRepository defines the interface for user persistence operations
type UserRepository interface {
	GetByAuth0ID(ctx context.Context, auth0ID string) (*User, error)
	CreateOrGetByAuth0ID(ctx context.Context, auth0ID, email string) (*User, error)
}
