package websocket

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ErrClientClosed is returned when attempting to send to a closed client
var ErrClientClosed = errors.New("client is closed")

// ClientInterface is what the hub needs from a connection
type ClientInterface interface {
	ID() string
	UserID() uuid.UUID
	Send(data []byte) error
	Close() error
}

// Hub tracks live connections per user. It is safe for concurrent use.
type Hub struct {
	users map[uuid.UUID]map[string]ClientInterface
	mu    sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		users: make(map[uuid.UUID]map[string]ClientInterface),
	}
}

// Register adds a client under its user
func (h *Hub) Register(client ClientInterface) {
	h.mu.Lock()
	defer h.mu.Unlock()

	userID := client.UserID()
	conns, ok := h.users[userID]
	if !ok {
		conns = make(map[string]ClientInterface)
		h.users[userID] = conns
	}
	conns[client.ID()] = client

	log.Debug().
		Str("user_id", userID.String()).
		Str("client_id", client.ID()).
		Int("connections", len(conns)).
		Msg("WebSocket client registered")
}

// Unregister removes a client; unknown clients are ignored
func (h *Hub) Unregister(client ClientInterface) {
	h.mu.Lock()
	defer h.mu.Unlock()

	userID := client.UserID()
	conns, ok := h.users[userID]
	if !ok {
		return
	}
	if _, exists := conns[client.ID()]; !exists {
		return
	}
	delete(conns, client.ID())
	if len(conns) == 0 {
		delete(h.users, userID)
	}

	log.Debug().
		Str("user_id", userID.String()).
		Str("client_id", client.ID()).
		Msg("WebSocket client unregistered")
}

func (h *Hub) snapshot(userID uuid.UUID) []ClientInterface {
	h.mu.RLock()
	defer h.mu.RUnlock()

	conns := h.users[userID]
	out := make([]ClientInterface, 0, len(conns))
	for _, c := range conns {
		out = append(out, c)
	}
	return out
}

// Broadcast queues an event on every connection of one user. Sends never block; a client
// that is closed or has a full queue is dropped.
func (h *Hub) Broadcast(userID uuid.UUID, event Event) {
	targets := h.snapshot(userID)
	if len(targets) == 0 {
		return
	}

	data, err := event.ToJSON()
	if err != nil {
		log.Error().
			Err(err).
			Str("user_id", userID.String()).
			Str("event_type", event.Type).
			Msg("Failed to serialize event")
		return
	}

	for _, client := range targets {
		if err := client.Send(data); err != nil {
			log.Warn().
				Err(err).
				Str("user_id", userID.String()).
				Str("client_id", client.ID()).
				Msg("Dropping websocket client")
			h.Unregister(client)
			client.Close()
		}
	}

	log.Debug().
		Str("user_id", userID.String()).
		Str("event_type", event.Type).
		Int("client_count", len(targets)).
		Msg("Broadcast event")
}

// ClientCount returns the number of connections a user has open
func (h *Hub) ClientCount(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID])
}

// TotalClientCount returns the number of connections across all users
func (h *Hub) TotalClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	total := 0
	for _, conns := range h.users {
		total += len(conns)
	}
	return total
}

// CloseAll disconnects every client; used on shutdown since hijacked connections
// are not closed by the HTTP server
func (h *Hub) CloseAll() int {
	h.mu.Lock()
	users := h.users
	h.users = make(map[uuid.UUID]map[string]ClientInterface)
	h.mu.Unlock()

	closed := 0
	for _, conns := range users {
		for _, c := range conns {
			c.Close()
			closed++
		}
	}
	return closed
}
