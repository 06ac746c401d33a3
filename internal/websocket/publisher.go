package websocket

import "github.com/google/uuid"

// EventPublisher pushes ledger change events to a user's open connections
type EventPublisher interface {
	Publish(userID uuid.UUID, event Event)
}

var _ EventPublisher = (*Hub)(nil)

// Publish implements EventPublisher by broadcasting the event to the user
func (h *Hub) Publish(userID uuid.UUID, event Event) {
	h.Broadcast(userID, event)
}

// NoOpPublisher drops every event (used when websockets are disabled and in tests)
type NoOpPublisher struct{}

func (n *NoOpPublisher) Publish(userID uuid.UUID, event Event) {}
