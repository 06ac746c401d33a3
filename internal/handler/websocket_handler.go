package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/dafibh/fortuna/ledger-backend/internal/websocket"
	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// maxConnectionsPerUser caps open sockets per user (tabs, devices)
const maxConnectionsPerUser = 5

// JWTValidator validates JWT tokens and returns the user they belong to
type JWTValidator interface {
	ValidateToken(ctx context.Context, token string) (uuid.UUID, error)
}

// WebSocketHandler upgrades authenticated requests to ledger event streams
type WebSocketHandler struct {
	hub       *websocket.Hub
	validator JWTValidator
	origins   map[string]struct{}
	upgrader  ws.Upgrader
}

// NewWebSocketHandler creates a new WebSocketHandler. Browsers must send one of allowedOrigins.
func NewWebSocketHandler(hub *websocket.Hub, validator JWTValidator, allowedOrigins []string) *WebSocketHandler {
	h := &WebSocketHandler{
		hub:       hub,
		validator: validator,
		origins:   make(map[string]struct{}, len(allowedOrigins)),
	}
	for _, origin := range allowedOrigins {
		h.origins[strings.TrimSuffix(origin, "/")] = struct{}{}
	}
	h.upgrader = ws.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		// non-browser clients send no Origin
		return true
	}
	if _, ok := h.origins[origin]; ok {
		return true
	}
	log.Warn().Str("origin", origin).Msg("WebSocket origin rejected")
	return false
}

// bearerToken reads the token from ?token= (browsers cannot set headers on upgrade)
// or from an Authorization header.
func bearerToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

// HandleWS handles GET /ws
func (h *WebSocketHandler) HandleWS(c echo.Context) error {
	token := bearerToken(c.Request())
	if token == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing token")
	}

	userID, err := h.validator.ValidateToken(c.Request().Context(), token)
	if err != nil {
		log.Debug().Err(err).Msg("WebSocket token rejected")
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}

	if h.hub.ClientCount(userID) >= maxConnectionsPerUser {
		log.Warn().Str("user_id", userID.String()).Msg("WebSocket connection limit reached")
		return echo.NewHTTPError(http.StatusTooManyRequests, "too many open connections")
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader has already written the HTTP error
		log.Debug().Err(err).Str("user_id", userID.String()).Msg("WebSocket upgrade failed")
		return err
	}

	client := websocket.NewClient(conn, userID, h.hub)
	h.hub.Register(client)

	if hello, err := websocket.ConnectionReady(client.ID()).ToJSON(); err == nil {
		_ = client.Send(hello)
	}

	log.Info().
		Str("user_id", userID.String()).
		Str("client_id", client.ID()).
		Msg("WebSocket client connected")

	go client.Run()
	return nil
}
