package models

import (
	"time"
)

// Carriage is a seat-class allotment of a vehicle
type Carriage struct {
	ID             int64  `json:"id" db:"id"`
	VehicleID      int64  `json:"vehicle_id" db:"vehicle_id"`
	CarriageNumber int    `json:"carriage_number" db:"carriage_number"`
	SeatClass      string `json:"seat_class" db:"seat_class"`
	SeatCount      int    `json:"seat_count" db:"seat_count"`
}

// Seat is a physical seat; its identity does not change per run
type Seat struct {
	ID             int64  `json:"id" db:"id"`
	CarriageID     int64  `json:"carriage_id" db:"carriage_id"`
	CarriageNumber int    `json:"carriage_number" db:"carriage_number"`
	SeatNumber     string `json:"seat_number" db:"seat_number"`
	SeatClass      string `json:"seat_class" db:"seat_class"`
}

// SeatAllocation is one seat held by one passenger for one segment of one run
type SeatAllocation struct {
	ID            int64      `json:"id" db:"id"`
	RunID         int64      `json:"run_id" db:"run_id"`
	SeatID        int64      `json:"seat_id" db:"seat_id"`
	FromStation   string     `json:"from_station" db:"from_station"`
	ToStation     string     `json:"to_station" db:"to_station"`
	PassengerName string     `json:"passenger_name" db:"passenger_name"`
	PassengerID   string     `json:"passenger_id" db:"passenger_id"`
	OrderID       int64      `json:"order_id" db:"order_id"`
	IsActive      bool       `json:"is_active" db:"is_active"`
	DeactivatedAt *time.Time `json:"deactivated_at,omitempty" db:"deactivated_at"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
}
