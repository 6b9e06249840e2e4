package models

import "time"

// RunSearchRequest asks for bookable runs between two stations
type RunSearchRequest struct {
	FromStation string `json:"from_station" binding:"required"`
	ToStation   string `json:"to_station" binding:"required"`
	Date        string `json:"date"` // YYYY-MM-DD, defaults to today
}

// AvailabilityQuote is the remaining seat count and fare for one class on one segment
type AvailabilityQuote struct {
	RunID       int64    `json:"run_id"`
	SeatClass   string   `json:"seat_class"`
	FromStation string   `json:"from_station"`
	ToStation   string   `json:"to_station"`
	Available   int      `json:"available"`
	Price       *float64 `json:"price,omitempty"` // nil when no fare row exists
}

// SeatClassAvailability describes one seat class on a bookable run
type SeatClassAvailability struct {
	SeatClass  string  `json:"seat_class"`
	Available  int     `json:"available"`
	TotalSeats int     `json:"total_seats"`
	Price      float64 `json:"price"`
}

// BookableRun is a search result for a run serving the requested segment
type BookableRun struct {
	RunID       int64                   `json:"run_id"`
	VehicleID   int64                   `json:"vehicle_id"`
	VehicleName string                  `json:"vehicle_name"`
	Origin      string                  `json:"origin"`
	Terminus    string                  `json:"terminus"`
	Date        string                  `json:"date"`
	Schedule    []Stop                  `json:"schedule"`
	SeatClasses []SeatClassAvailability `json:"seat_classes"`
}

// RunWithVehicle is a run joined with its vehicle
type RunWithVehicle struct {
	Run
	VehicleName string `db:"vehicle_name"`
	Origin      string `db:"from_station"`
	Terminus    string `db:"to_station"`
}

// StopFare is a stop with the fare from the vehicle's origin per seat class
type StopFare struct {
	Stop
	Fares []Fare `json:"fares"`
}

// IntegrityViolation is a pair of active allocations of one seat whose segments overlap
type IntegrityViolation struct {
	RunID       int64 `json:"run_id"`
	SeatID      int64 `json:"seat_id"`
	AllocationA int64 `json:"allocation_a"`
	AllocationB int64 `json:"allocation_b"`
	OrderA      int64 `json:"order_a"`
	OrderB      int64 `json:"order_b"`
}

// AuditReport summarises an integrity audit pass
type AuditReport struct {
	StartedAt       time.Time            `json:"started_at"`
	FinishedAt      time.Time            `json:"finished_at"`
	RunsScanned     int                  `json:"runs_scanned"`
	AllocationsSeen int                  `json:"allocations_seen"`
	Violations      []IntegrityViolation `json:"violations"`
}
