package handler

import (
	"net/http"
	"time"

	"github.com/dafibh/fortuna/ledger-backend/internal/middleware"
	"github.com/dafibh/fortuna/ledger-backend/internal/service"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	authService *service.AuthService
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
	}
}

// UserResponse represents a user in API responses
type UserResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	CreatedAt string `json:"createdAt"`
}

// Me returns the local user the bearer token resolved to
// GET /api/v1/auth/me
func (h *AuthHandler) Me(c echo.Context) error {
	auth0ID := middleware.GetAuth0ID(c)
	if auth0ID == "" {
		return NewUnauthorizedError(c, "Authentication required")
	}

	user, err := h.authService.GetUserByAuth0ID(c.Request().Context(), auth0ID)
	if err != nil {
		log.Error().Err(err).Str("auth0_id", auth0ID).Msg("Failed to get user")
		return NewNotFoundError(c, "User not found")
	}

	return c.JSON(http.StatusOK, UserResponse{
		ID:        user.ID.String(),
		Email:     user.Email,
		CreatedAt: user.CreatedAt.UTC().Format(time.RFC3339),
	})
}
