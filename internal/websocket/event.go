package websocket

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType is the change that happened to an entity
type EventType string

const (
	EventTypeCreated  EventType = "created"
	EventTypeUpdated  EventType = "updated"
	EventTypeDeleted  EventType = "deleted"
	EventTypeRestored EventType = "restored"
	EventTypeReady    EventType = "ready"
)

// EntityType is the ledger entity an event is about
type EntityType string

const (
	EntityTypeTransaction EntityType = "transaction"
	EntityTypeWallet      EntityType = "wallet"
	EntityTypeBudget      EntityType = "budget"
	EntityTypeLedger      EntityType = "ledger"
	EntityTypeConnection  EntityType = "connection"
)

// Event is the message pushed to clients.
// Format: { type, entity, payload, timestamp }
type Event struct {
	Type      string      `json:"type"`
	Entity    EntityType  `json:"entity"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewEvent creates a new event with a combined "entity.change" type
func NewEvent(eventType EventType, entityType EntityType, payload interface{}) Event {
	return Event{
		Type:      fmt.Sprintf("%s.%s", entityType, eventType),
		Entity:    entityType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON serializes the event to JSON bytes
func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// DeletedPayload is the payload of every *.deleted event
type DeletedPayload struct {
	ID string `json:"id"`
}

func TransactionCreated(payload interface{}) Event {
	return NewEvent(EventTypeCreated, EntityTypeTransaction, payload)
}

func TransactionUpdated(payload interface{}) Event {
	return NewEvent(EventTypeUpdated, EntityTypeTransaction, payload)
}

func TransactionDeleted(id string) Event {
	return NewEvent(EventTypeDeleted, EntityTypeTransaction, DeletedPayload{ID: id})
}

func WalletCreated(payload interface{}) Event {
	return NewEvent(EventTypeCreated, EntityTypeWallet, payload)
}

func WalletUpdated(payload interface{}) Event {
	return NewEvent(EventTypeUpdated, EntityTypeWallet, payload)
}

func WalletDeleted(id string) Event {
	return NewEvent(EventTypeDeleted, EntityTypeWallet, DeletedPayload{ID: id})
}

func BudgetCreated(payload interface{}) Event {
	return NewEvent(EventTypeCreated, EntityTypeBudget, payload)
}

func BudgetDeleted(id string) Event {
	return NewEvent(EventTypeDeleted, EntityTypeBudget, DeletedPayload{ID: id})
}

// LedgerRestored tells clients to refetch everything after a backup restore
func LedgerRestored(payload interface{}) Event {
	return NewEvent(EventTypeRestored, EntityTypeLedger, payload)
}

// ConnectionReady is the first message on every socket
func ConnectionReady(clientID string) Event {
	return NewEvent(EventTypeReady, EntityTypeConnection, map[string]string{"clientId": clientID})
}
