package models

import (
	"fmt"
	"strings"
	"time"
)

// OrderStatus represents the lifecycle state of an order
type OrderStatus string

const (
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// orderTransitions lists the legal next states for each status
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusConfirmed: {OrderStatusCancelled},
	OrderStatusCancelled: {OrderStatusConfirmed},
}

// IsValid reports whether s is a known status
func (s OrderStatus) IsValid() bool {
	_, ok := orderTransitions[s]
	return ok
}

// IsActive reports whether an order in this status holds its seat
func (s OrderStatus) IsActive() bool {
	return s == OrderStatusConfirmed
}

// CanTransitionTo reports whether moving from s to next is legal
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Order is a passenger's purchase of one seat for one segment of one run.
// IsActive always mirrors Status.IsActive().
type Order struct {
	ID            int64       `json:"id" db:"id"`
	RunID         int64       `json:"run_id" db:"run_id"`
	VehicleID     int64       `json:"vehicle_id" db:"vehicle_id"`
	FromStation   string      `json:"from_station" db:"from_station"`
	ToStation     string      `json:"to_station" db:"to_station"`
	SeatClass     string      `json:"seat_class" db:"seat_class"`
	PassengerName string      `json:"passenger_name" db:"passenger_name"`
	PassengerID   string      `json:"passenger_id" db:"passenger_id"`
	Price         float64     `json:"price" db:"price"`
	Status        OrderStatus `json:"status" db:"status"`
	IsActive      bool        `json:"is_active" db:"is_active"`
	CancelledAt   *time.Time  `json:"cancelled_at,omitempty" db:"cancelled_at"`
	CreatedAt     time.Time   `json:"created_at" db:"created_at"`
}

// Transition moves the order to next, rejecting illegal moves
func (o *Order) Transition(next OrderStatus, at time.Time) error {
	if !o.Status.CanTransitionTo(next) {
		return fmt.Errorf("order %d cannot move from %s to %s", o.ID, o.Status, next)
	}
	o.Status = next
	o.IsActive = next.IsActive()
	if next == OrderStatusCancelled {
		o.CancelledAt = &at
	} else {
		o.CancelledAt = nil
	}
	return nil
}

// OrderDetail is an order joined with its run, vehicle and seat
type OrderDetail struct {
	Order
	VehicleName    string    `json:"vehicle_name" db:"vehicle_name"`
	DepartureDate  time.Time `json:"departure_date" db:"departure_date"`
	DepartureTime  *string   `json:"departure_time,omitempty" db:"departure_time"`
	SeatID         *int64    `json:"seat_id,omitempty" db:"seat_id"`
	SeatNumber     *string   `json:"seat_number,omitempty" db:"seat_number"`
	CarriageNumber *int      `json:"carriage_number,omitempty" db:"carriage_number"`
}

// OrderFilter narrows order listings by passenger and activity
type OrderFilter struct {
	PassengerName string
	PassengerID   string
	Active        bool
}

// BookRequest is a booking request for one passenger on one segment.
// Either RunID, or VehicleID with an optional Date, identifies the run.
type BookRequest struct {
	RunID         int64  `json:"run_id"`
	VehicleID     int64  `json:"vehicle_id"`
	Date          string `json:"date"`
	SeatClass     string `json:"seat_class" binding:"required"`
	FromStation   string `json:"from_station" binding:"required"`
	ToStation     string `json:"to_station" binding:"required"`
	PassengerName string `json:"passenger_name" binding:"required"`
	PassengerID   string `json:"passenger_id" binding:"required"`
}

// Validate checks request fields gin binding cannot express
func (r *BookRequest) Validate() error {
	if r.RunID <= 0 && r.VehicleID <= 0 {
		return fmt.Errorf("run_id or vehicle_id is required")
	}
	if strings.TrimSpace(r.PassengerName) == "" || strings.TrimSpace(r.PassengerID) == "" {
		return fmt.Errorf("passenger_name and passenger_id are required")
	}
	if r.FromStation == r.ToStation {
		return fmt.Errorf("from_station and to_station must differ")
	}
	if r.Date != "" {
		if _, err := time.Parse(DateLayout, r.Date); err != nil {
			return fmt.Errorf("date must be YYYY-MM-DD")
		}
	}
	return nil
}

// BookingConfirmation is returned for a committed booking
type BookingConfirmation struct {
	OrderID        int64       `json:"order_id"`
	RunID          int64       `json:"run_id"`
	VehicleID      int64       `json:"vehicle_id"`
	Date           string      `json:"date"`
	SeatClass      string      `json:"seat_class"`
	SeatID         int64       `json:"seat_id"`
	SeatNumber     string      `json:"seat_number"`
	CarriageNumber int         `json:"carriage_number"`
	FromStation    string      `json:"from_station"`
	ToStation      string      `json:"to_station"`
	PassengerName  string      `json:"passenger_name"`
	PassengerID    string      `json:"passenger_id"`
	Price          float64     `json:"price"`
	Status         OrderStatus `json:"status"`
}

// OrderAck acknowledges a cancel or restore
type OrderAck struct {
	OrderID int64       `json:"order_id"`
	Status  OrderStatus `json:"status"`
}
