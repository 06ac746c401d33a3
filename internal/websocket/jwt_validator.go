package websocket

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/auth0/go-jwt-middleware/v2/jwks"
	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/google/uuid"
)

// ErrInvalidToken is returned when JWT validation fails
var ErrInvalidToken = errors.New("invalid token")

// ErrUserNotResolved is returned when the token's subject cannot be mapped to a user
var ErrUserNotResolved = errors.New("user not resolved")

// UserResolver maps an Auth0 subject to the local user id, creating the user on first sight
type UserResolver interface {
	ResolveUser(ctx context.Context, auth0ID, email string) (uuid.UUID, error)
}

// CustomClaims contains the custom claims read from the Auth0 JWT
type CustomClaims struct {
	Email string `json:"email"`
}

// Validate implements validator.CustomClaims
func (c *CustomClaims) Validate(ctx context.Context) error {
	return nil
}

// Auth0JWTValidator validates the token passed on the websocket upgrade request
type Auth0JWTValidator struct {
	validator *validator.Validator
	users     UserResolver
}

// NewAuth0JWTValidator builds a validator backed by the tenant's cached JWKS
func NewAuth0JWTValidator(domain, audience string, users UserResolver) (*Auth0JWTValidator, error) {
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

	return &Auth0JWTValidator{validator: jwtValidator, users: users}, nil
}

// ValidateToken validates a JWT and returns the user it belongs to
func (v *Auth0JWTValidator) ValidateToken(ctx context.Context, token string) (uuid.UUID, error) {
	claims, err := v.validator.ValidateToken(ctx, token)
	if err != nil {
		return uuid.Nil, ErrInvalidToken
	}

	validated, ok := claims.(*validator.ValidatedClaims)
	if !ok {
		return uuid.Nil, ErrInvalidToken
	}

	var email string
	if custom, ok := validated.CustomClaims.(*CustomClaims); ok {
		email = custom.Email
	}

	userID, err := v.users.ResolveUser(ctx, validated.RegisteredClaims.Subject, email)
	if err != nil {
		return uuid.Nil, ErrUserNotResolved
	}
	return userID, nil
}
