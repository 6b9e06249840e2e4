package models

// Fare is a precomputed price for an exact (from, to, class) tuple of a vehicle
type Fare struct {
	ID          int64   `json:"id" db:"id"`
	VehicleID   int64   `json:"vehicle_id" db:"vehicle_id"`
	FromStation string  `json:"from_station" db:"from_station"`
	ToStation   string  `json:"to_station" db:"to_station"`
	SeatClass   string  `json:"seat_class" db:"seat_class"`
	Price       float64 `json:"price" db:"price"`
}
