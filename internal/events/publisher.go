package events

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/smarttransit/seat-segment-backend/internal/models"
)

// Publisher delivers one encoded order event to a broker
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}

// Message is the envelope sent for every outbox row
type Message struct {
	ID         string                `json:"id"`
	Type       models.OrderEventType `json:"type"`
	OrderID    int64                 `json:"order_id"`
	Producer   string                `json:"producer"`
	OccurredAt time.Time             `json:"occurred_at"`
	Payload    json.RawMessage       `json:"payload"`
}

// producerName identifies this service in published envelopes
const producerName = "seat-segment-backend"

// NewMessage wraps an outbox row in the publish envelope
func NewMessage(event models.OrderEvent) Message {
	return Message{
		ID:         event.ID,
		Type:       event.EventType,
		OrderID:    event.OrderID,
		Producer:   producerName,
		OccurredAt: event.CreatedAt,
		Payload:    event.Payload,
	}
}

// Key keeps all events of one order on the same partition
func (m Message) Key() []byte {
	return []byte(strconv.FormatInt(m.OrderID, 10))
}
