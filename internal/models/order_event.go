package models

import (
	"encoding/json"
	"time"
)

// OrderEventType names an order lifecycle event
type OrderEventType string

const (
	OrderEventConfirmed OrderEventType = "order.confirmed"
	OrderEventCancelled OrderEventType = "order.cancelled"
	OrderEventRestored  OrderEventType = "order.restored"
)

// Outbox statuses
const (
	OutboxStatusPending    = "pending"
	OutboxStatusProcessing = "processing"
	OutboxStatusPublished  = "published"
)

// OrderEvent is an outbox row written in the same transaction as the order change
type OrderEvent struct {
	ID          string          `json:"id" db:"id"`
	OrderID     int64           `json:"order_id" db:"order_id"`
	EventType   OrderEventType  `json:"event_type" db:"event_type"`
	Payload     json.RawMessage `json:"payload" db:"payload"`
	Status      string          `json:"status" db:"status"`
	Attempts    int             `json:"attempts" db:"attempts"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	ClaimedAt   *time.Time      `json:"claimed_at,omitempty" db:"claimed_at"`
	PublishedAt *time.Time      `json:"published_at,omitempty" db:"published_at"`
}

// OrderEventPayload is the body carried by every order event
type OrderEventPayload struct {
	OrderID       int64       `json:"order_id"`
	RunID         int64       `json:"run_id"`
	SeatID        int64       `json:"seat_id"`
	SeatClass     string      `json:"seat_class"`
	FromStation   string      `json:"from_station"`
	ToStation     string      `json:"to_station"`
	PassengerName string      `json:"passenger_name"`
	PassengerID   string      `json:"passenger_id"`
	Price         float64     `json:"price"`
	Status        OrderStatus `json:"status"`
	OccurredAt    time.Time   `json:"occurred_at"`
}
