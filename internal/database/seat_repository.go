package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/smarttransit/seat-segment-backend/internal/models"
)

// SeatRepository handles seats and seat_allocations
type SeatRepository struct {
	db *sqlx.DB
}

// NewSeatRepository creates a new SeatRepository
func NewSeatRepository(db *sqlx.DB) *SeatRepository {
	return &SeatRepository{db: db}
}

const allocationColumns = `
	a.id, a.run_id, a.seat_id, a.from_station, a.to_station,
	a.passenger_name, a.passenger_id, a.order_id, a.is_active,
	a.deactivated_at, a.created_at`

// ListSeats retrieves the seats of one class of a vehicle, ordered by carriage then seat number
func (r *SeatRepository) ListSeats(ctx context.Context, vehicleID int64, seatClass string) ([]models.Seat, error) {
	var seats []models.Seat
	query := `
		SELECT s.id, s.carriage_id, c.carriage_number, s.seat_number, s.seat_class
		FROM seats s
		JOIN carriages c ON c.id = s.carriage_id
		WHERE c.vehicle_id = $1 AND s.seat_class = $2
		ORDER BY c.carriage_number, s.seat_number
	`

	if err := sqlx.SelectContext(ctx, executor(ctx, r.db), &seats, query, vehicleID, seatClass); err != nil {
		return nil, fmt.Errorf("failed to list seats: %w", err)
	}

	return seats, nil
}

// ListSeatClasses retrieves the distinct seat classes a vehicle carries
func (r *SeatRepository) ListSeatClasses(ctx context.Context, vehicleID int64) ([]string, error) {
	var classes []string
	query := `
		SELECT DISTINCT s.seat_class
		FROM seats s
		JOIN carriages c ON c.id = s.carriage_id
		WHERE c.vehicle_id = $1
		ORDER BY s.seat_class
	`

	if err := sqlx.SelectContext(ctx, executor(ctx, r.db), &classes, query, vehicleID); err != nil {
		return nil, fmt.Errorf("failed to list seat classes: %w", err)
	}

	return classes, nil
}

// GetSeat retrieves a seat by ID
func (r *SeatRepository) GetSeat(ctx context.Context, seatID int64) (*models.Seat, error) {
	var seat models.Seat
	query := `
		SELECT s.id, s.carriage_id, c.carriage_number, s.seat_number, s.seat_class
		FROM seats s
		JOIN carriages c ON c.id = s.carriage_id
		WHERE s.id = $1
	`

	err := sqlx.GetContext(ctx, executor(ctx, r.db), &seat, query, seatID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get seat: %w", err)
	}

	return &seat, nil
}

// ListActiveAllocations retrieves active allocations of a run restricted to one seat class
func (r *SeatRepository) ListActiveAllocations(ctx context.Context, runID int64, seatClass string) ([]models.SeatAllocation, error) {
	var allocations []models.SeatAllocation
	query := `SELECT` + allocationColumns + `
		FROM seat_allocations a
		JOIN seats s ON s.id = a.seat_id
		WHERE a.run_id = $1 AND a.is_active = TRUE AND s.seat_class = $2
		ORDER BY a.id
	`

	if err := sqlx.SelectContext(ctx, executor(ctx, r.db), &allocations, query, runID, seatClass); err != nil {
		return nil, fmt.Errorf("failed to list active allocations: %w", err)
	}

	return allocations, nil
}

// ListActiveAllocationsForSeat retrieves active allocations of one seat on a run
func (r *SeatRepository) ListActiveAllocationsForSeat(ctx context.Context, runID, seatID int64) ([]models.SeatAllocation, error) {
	var allocations []models.SeatAllocation
	query := `SELECT` + allocationColumns + `
		FROM seat_allocations a
		WHERE a.run_id = $1 AND a.seat_id = $2 AND a.is_active = TRUE
		ORDER BY a.id
	`

	if err := sqlx.SelectContext(ctx, executor(ctx, r.db), &allocations, query, runID, seatID); err != nil {
		return nil, fmt.Errorf("failed to list seat allocations: %w", err)
	}

	return allocations, nil
}

// ListActiveAllocationsForRun retrieves every active allocation of a run
func (r *SeatRepository) ListActiveAllocationsForRun(ctx context.Context, runID int64) ([]models.SeatAllocation, error) {
	var allocations []models.SeatAllocation
	query := `SELECT` + allocationColumns + `
		FROM seat_allocations a
		WHERE a.run_id = $1 AND a.is_active = TRUE
		ORDER BY a.seat_id, a.id
	`

	if err := sqlx.SelectContext(ctx, executor(ctx, r.db), &allocations, query, runID); err != nil {
		return nil, fmt.Errorf("failed to list run allocations: %w", err)
	}

	return allocations, nil
}

// ListRunsWithActiveAllocations retrieves the IDs of runs holding at least one active allocation
func (r *SeatRepository) ListRunsWithActiveAllocations(ctx context.Context) ([]int64, error) {
	var runIDs []int64
	query := `
		SELECT DISTINCT run_id
		FROM seat_allocations
		WHERE is_active = TRUE
		ORDER BY run_id
	`

	if err := sqlx.SelectContext(ctx, executor(ctx, r.db), &runIDs, query); err != nil {
		return nil, fmt.Errorf("failed to list runs with allocations: %w", err)
	}

	return runIDs, nil
}
