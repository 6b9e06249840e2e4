package models

import (
	"time"
)

// Vehicle is a train with a fixed stop list and carriage configuration
type Vehicle struct {
	ID          int64     `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	FromStation string    `json:"from_station" db:"from_station"`
	ToStation   string    `json:"to_station" db:"to_station"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Run is one scheduled occurrence of a vehicle on a specific date.
// Runs are immutable once scheduled.
type Run struct {
	ID            int64     `json:"id" db:"id"`
	VehicleID     int64     `json:"vehicle_id" db:"vehicle_id"`
	DepartureDate time.Time `json:"departure_date" db:"departure_date"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// DateString returns the run date as YYYY-MM-DD
func (r *Run) DateString() string {
	return r.DepartureDate.Format(DateLayout)
}

// DateLayout is the wire format for run dates
const DateLayout = "2006-01-02"

// Stop is one station on a vehicle's route
type Stop struct {
	ID            int64   `json:"id" db:"id"`
	VehicleID     int64   `json:"vehicle_id" db:"vehicle_id"`
	StationName   string  `json:"station_name" db:"station_name"`
	StationOrder  int     `json:"station_order" db:"station_order"`
	ArrivalTime   *string `json:"arrival_time,omitempty" db:"arrival_time"`     // nil on the first stop
	DepartureTime *string `json:"departure_time,omitempty" db:"departure_time"` // nil on the last stop
	DistanceKm    int     `json:"distance_km" db:"distance_km"`
}

// Route is the ordered stop list of a vehicle with a station index
type Route struct {
	VehicleID int64
	Stops     []Stop
	orders    map[string]int
}

// NewRoute builds a Route; stops are expected in ascending station_order
func NewRoute(vehicleID int64, stops []Stop) *Route {
	orders := make(map[string]int, len(stops))
	for _, stop := range stops {
		orders[stop.StationName] = stop.StationOrder
	}
	return &Route{
		VehicleID: vehicleID,
		Stops:     stops,
		orders:    orders,
	}
}

// OrderOf returns the station order of a station on this route
func (r *Route) OrderOf(station string) (int, bool) {
	order, ok := r.orders[station]
	return order, ok
}

// Origin returns the first station name, or "" for an empty route
func (r *Route) Origin() string {
	if len(r.Stops) == 0 {
		return ""
	}
	return r.Stops[0].StationName
}
