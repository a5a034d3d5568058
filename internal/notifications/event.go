// Package notifications fans order events out to downstream subsystems after
// the owning transaction has committed. Delivery is best effort.
package notifications

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventOrderPlaced     EventType = "order.placed"
	EventOrderPaid       EventType = "order.paid"
	EventOrderCanceled   EventType = "order.canceled"
	EventShipmentUpdated EventType = "shipment.updated"
)

const envelopeVersion = 1

// Event describes a committed change to an order.
type Event struct {
	ID         uuid.UUID
	Type       EventType
	OrderID    uuid.UUID
	UserID     uuid.UUID
	OccurredAt time.Time
	Data       map[string]any
}

// NewEvent stamps a fresh id and the current time.
func NewEvent(eventType EventType, orderID, userID uuid.UUID, data map[string]any) Event {
	return Event{
		ID:         uuid.New(),
		Type:       eventType,
		OrderID:    orderID,
		UserID:     userID,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}

// Envelope is the stable wire shape published for every event.
type Envelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	EventType  EventType       `json:"eventType"`
	OrderID    string          `json:"orderId"`
	UserID     string          `json:"userId,omitempty"`
	OccurredAt time.Time       `json:"occurredAt"`
	Data       json.RawMessage `json:"data"`
}

// Encode renders the event as its JSON envelope.
func (e Event) Encode() ([]byte, error) {
	data, err := json.Marshal(e.Data)
	if err != nil {
		return nil, err
	}
	env := Envelope{
		Version:    envelopeVersion,
		EventID:    e.ID.String(),
		EventType:  e.Type,
		OrderID:    e.OrderID.String(),
		OccurredAt: e.OccurredAt,
		Data:       data,
	}
	if e.UserID != uuid.Nil {
		env.UserID = e.UserID.String()
	}
	return json.Marshal(env)
}
