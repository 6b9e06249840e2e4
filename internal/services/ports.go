package services

import (
	"context"
	"time"

	"github.com/smarttransit/seat-segment-backend/internal/models"
)

// Transactor runs fn inside one database transaction carried by ctx.
// Any error returned by fn rolls the whole transaction back.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// TopologyStore reads vehicles, runs and stop lists.
// Getters return (nil, nil) when the row does not exist.
type TopologyStore interface {
	GetVehicle(ctx context.Context, vehicleID int64) (*models.Vehicle, error)
	GetRun(ctx context.Context, runID int64) (*models.Run, error)
	GetRunByVehicleAndDate(ctx context.Context, vehicleID int64, date time.Time) (*models.Run, error)
	// LockRun takes a row lock on the run held until the transaction ends.
	// Every writer of the run's seat allocations takes it first.
	LockRun(ctx context.Context, runID int64) error
	ListStops(ctx context.Context, vehicleID int64) ([]models.Stop, error)
	// ListRunsServing returns runs on date whose route visits from before to
	ListRunsServing(ctx context.Context, fromStation, toStation string, date time.Time) ([]models.RunWithVehicle, error)
}

// SeatStore reads seats and their allocations
type SeatStore interface {
	// ListSeats returns seats of a class ordered by carriage number then seat number
	ListSeats(ctx context.Context, vehicleID int64, seatClass string) ([]models.Seat, error)
	ListSeatClasses(ctx context.Context, vehicleID int64) ([]string, error)
	ListActiveAllocations(ctx context.Context, runID int64, seatClass string) ([]models.SeatAllocation, error)
	ListActiveAllocationsForSeat(ctx context.Context, runID, seatID int64) ([]models.SeatAllocation, error)
	ListActiveAllocationsForRun(ctx context.Context, runID int64) ([]models.SeatAllocation, error)
	ListRunsWithActiveAllocations(ctx context.Context) ([]int64, error)
	GetSeat(ctx context.Context, seatID int64) (*models.Seat, error)
}

// FareStore reads the fare table
type FareStore interface {
	GetFare(ctx context.Context, vehicleID int64, fromStation, toStation, seatClass string) (*models.Fare, error)
	ListFaresFrom(ctx context.Context, vehicleID int64, fromStation string) ([]models.Fare, error)
}

// OrderStore persists orders and their seat allocations
type OrderStore interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	CreateAllocation(ctx context.Context, allocation *models.SeatAllocation) error
	GetOrder(ctx context.Context, orderID int64) (*models.Order, error)
	// LockOrder returns the order with the given activity flag, row-locked
	LockOrder(ctx context.Context, orderID int64, active bool) (*models.Order, error)
	GetAllocationByOrder(ctx context.Context, orderID int64) (*models.SeatAllocation, error)
	UpdateOrderStatus(ctx context.Context, order *models.Order) error
	SetAllocationActive(ctx context.Context, orderID int64, active bool, at time.Time) error
	GetOrderDetail(ctx context.Context, orderID int64) (*models.OrderDetail, error)
	ListOrders(ctx context.Context, filter models.OrderFilter) ([]models.OrderDetail, error)
}

// EventStore appends order events to the outbox
type EventStore interface {
	AppendEvent(ctx context.Context, event *models.OrderEvent) error
}

// Stores bundles the persistence ports the services are built from
type Stores struct {
	Topology TopologyStore
	Seats    SeatStore
	Fares    FareStore
	Orders   OrderStore
	Events   EventStore
}
