package service

import (
	"context"

	"github.com/dafibh/fortuna/ledger-backend/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// AuthService maps Auth0 identities to local users
type AuthService struct {
	userRepo domain.UserRepository
}

// NewAuthService creates a new AuthService
func NewAuthService(userRepo domain.UserRepository) *AuthService {
	return &AuthService{userRepo: userRepo}
}

// ResolveUser returns the local user id for an Auth0 subject, creating the user on first login
func (s *AuthService) ResolveUser(ctx context.Context, auth0ID, email string) (uuid.UUID, error) {
	if existing, err := s.userRepo.GetByAuth0ID(ctx, auth0ID); err == nil {
		return existing.ID, nil
	}

	user, err := s.userRepo.CreateOrGetByAuth0ID(ctx, auth0ID, email)
	if err != nil {
		log.Error().Err(err).Str("auth0_id", auth0ID).Msg("Failed to create or get user")
		return uuid.Nil, err
	}

	log.Info().Str("user_id", user.ID.String()).Msg("Created new user")
	return user.ID, nil
}

// GetUserByAuth0ID retrieves a user by their Auth0 ID
func (s *AuthService) GetUserByAuth0ID(ctx context.Context, auth0ID string) (*domain.User, error) {
	return s.userRepo.GetByAuth0ID(ctx, auth0ID)
}
