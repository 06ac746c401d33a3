package middleware

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/auth0/go-jwt-middleware/v2/jwks"
	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// CustomClaims contains the custom claims from Auth0 JWT
type CustomClaims struct {
	Email string `json:"email"`
}

// Validate implements validator.CustomClaims
func (c CustomClaims) Validate(ctx context.Context) error {
	return nil
}

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const (
	// ClaimsKey is the context key for JWT claims
	ClaimsKey contextKey = "claims"
	// Auth0IDKey is the context key for the Auth0 user ID (subject)
	Auth0IDKey contextKey = "auth0_id"
	// UserIDKey is the context key for the local user id
	UserIDKey contextKey = "user_id"
)

// UserResolver maps an Auth0 subject to the local user id
type UserResolver interface {
	ResolveUser(ctx context.Context, auth0ID, email string) (uuid.UUID, error)
}

// TokenValidator validates a raw bearer token. *validator.Validator satisfies it.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (interface{}, error)
}

// AuthMiddleware provides JWT validation middleware
type AuthMiddleware struct {
	validator TokenValidator
	users     UserResolver
}

// NewAuthMiddleware creates a new AuthMiddleware with Auth0 configuration
func NewAuthMiddleware(domain, audience string, users UserResolver) (*AuthMiddleware, error) {
	issuerURL, err := url.Parse("https://" + domain + "/")
	if err != nil {
		return nil, err
	}

	provider := jwks.NewCachingProvider(issuerURL, 5*time.Minute)

	jwtValidator, err := validator.New(
		provider.KeyFunc,
		validator.RS256,
		issuerURL.String(),
		[]string{audience},
		validator.WithCustomClaims(func() validator.CustomClaims {
			return &CustomClaims{}
		}),
		validator.WithAllowedClockSkew(time.Minute),
	)
	if err != nil {
		return nil, err
	}

	return NewAuthMiddlewareWithValidator(jwtValidator, users), nil
}

// NewAuthMiddlewareWithValidator creates an AuthMiddleware around an existing validator
func NewAuthMiddlewareWithValidator(v TokenValidator, users UserResolver) *AuthMiddleware {
	return &AuthMiddleware{validator: v, users: users}
}

// Authenticate returns an Echo middleware that validates JWT tokens and resolves the caller
func (m *AuthMiddleware) Authenticate() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return unauthorizedError(c, "Missing authorization header")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || parts[1] == "" {
				return unauthorizedError(c, "Invalid authorization header format")
			}

			claims, err := m.validator.ValidateToken(c.Request().Context(), parts[1])
			if err != nil {
				log.Debug().Err(err).Msg("Token validation failed")
				return unauthorizedError(c, "Invalid token")
			}

			validatedClaims, ok := claims.(*validator.ValidatedClaims)
			if !ok {
				return unauthorizedError(c, "Invalid claims")
			}

			auth0ID := validatedClaims.RegisteredClaims.Subject
			var email string
			if custom, ok := validatedClaims.CustomClaims.(*CustomClaims); ok {
				email = custom.Email
			}

			userID, err := m.users.ResolveUser(c.Request().Context(), auth0ID, email)
			if err != nil {
				log.Error().Err(err).Str("auth0_id", auth0ID).Msg("Failed to resolve user")
				return unauthorizedError(c, "User could not be resolved")
			}

			ctx := context.WithValue(c.Request().Context(), ClaimsKey, validatedClaims)
			ctx = context.WithValue(ctx, Auth0IDKey, auth0ID)
			ctx = context.WithValue(ctx, UserIDKey, userID)
			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}

// GetAuth0ID extracts the Auth0 user ID from the context
func GetAuth0ID(c echo.Context) string {
	if id, ok := c.Request().Context().Value(Auth0IDKey).(string); ok {
		return id
	}
	return ""
}

// GetClaims extracts the validated claims from the context
func GetClaims(c echo.Context) *validator.ValidatedClaims {
	if claims, ok := c.Request().Context().Value(ClaimsKey).(*validator.ValidatedClaims); ok {
		return claims
	}
	return nil
}

// GetUserID extracts the resolved user id; uuid.Nil when unauthenticated
func GetUserID(c echo.Context) uuid.UUID {
	if id, ok := c.Request().Context().Value(UserIDKey).(uuid.UUID); ok {
		return id
	}
	return uuid.Nil
}

// WithUserID returns a copy of ctx carrying userID
func WithUserID(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}
