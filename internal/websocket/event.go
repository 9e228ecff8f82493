package websocket

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType represents what happened to an entity
type EventType string

const (
	EventTypeCreated     EventType = "created"
	EventTypeTransmitted EventType = "transmitted"
	EventTypeExecuted    EventType = "executed"
	EventTypeFailed      EventType = "failed"
	EventTypeBounced     EventType = "bounced"
	EventTypeAssigned    EventType = "assigned"
)

// EntityType represents the type of entity the event is about
type EntityType string

const (
	EntityTypeBatch   EntityType = "batch"
	EntityTypePayment EntityType = "payment"
	EntityTypeMandate EntityType = "mandate"
)

// Event represents a WebSocket event message sent to clients
// Format: { type, entity, payload, timestamp }
type Event struct {
	Type      string      `json:"type"`      // Combined type e.g. "batch.transmitted"
	Entity    EntityType  `json:"entity"`    // Entity type e.g. "batch"
	Payload   interface{} `json:"payload"`   // Full entity data
	Timestamp time.Time   `json:"timestamp"` // Event timestamp
}

// NewEvent creates a new event with the given type, entity, and payload
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

// BatchCreated creates a batch.created event
func BatchCreated(payload interface{}) Event {
	return NewEvent(EventTypeCreated, EntityTypeBatch, payload)
}

// BatchTransmitted creates a batch.transmitted event
func BatchTransmitted(payload interface{}) Event {
	return NewEvent(EventTypeTransmitted, EntityTypeBatch, payload)
}

// BatchExecuted creates a batch.executed event
func BatchExecuted(payload interface{}) Event {
	return NewEvent(EventTypeExecuted, EntityTypeBatch, payload)
}

// BatchFailed creates a batch.failed event
func BatchFailed(payload interface{}) Event {
	return NewEvent(EventTypeFailed, EntityTypeBatch, payload)
}

// PaymentBounced creates a payment.bounced event
func PaymentBounced(payload interface{}) Event {
	return NewEvent(EventTypeBounced, EntityTypePayment, payload)
}

// MandateAssigned creates a mandate.assigned event
func MandateAssigned(payload interface{}) Event {
	return NewEvent(EventTypeAssigned, EntityTypeMandate, payload)
}
