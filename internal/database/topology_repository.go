package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/smarttransit/seat-segment-backend/internal/models"
)

// TopologyRepository handles vehicles, runs and stops
type TopologyRepository struct {
	db *sqlx.DB
}

// NewTopologyRepository creates a new TopologyRepository
func NewTopologyRepository(db *sqlx.DB) *TopologyRepository {
	return &TopologyRepository{db: db}
}

const stopColumns = `
	id, vehicle_id, station_name, station_order,
	to_char(arrival_time, 'HH24:MI') AS arrival_time,
	to_char(departure_time, 'HH24:MI') AS departure_time,
	distance_km`

// GetVehicle retrieves a vehicle by ID
func (r *TopologyRepository) GetVehicle(ctx context.Context, vehicleID int64) (*models.Vehicle, error) {
	var vehicle models.Vehicle
	query := `
		SELECT id, name, from_station, to_station, created_at
		FROM vehicles
		WHERE id = $1
	`

	err := sqlx.GetContext(ctx, executor(ctx, r.db), &vehicle, query, vehicleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get vehicle: %w", err)
	}

	return &vehicle, nil
}

// GetRun retrieves a run by ID
func (r *TopologyRepository) GetRun(ctx context.Context, runID int64) (*models.Run, error) {
	var run models.Run
	query := `
		SELECT id, vehicle_id, departure_date, created_at
		FROM runs
		WHERE id = $1
	`

	err := sqlx.GetContext(ctx, executor(ctx, r.db), &run, query, runID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	return &run, nil
}

// GetRunByVehicleAndDate retrieves the run of a vehicle on a date
func (r *TopologyRepository) GetRunByVehicleAndDate(ctx context.Context, vehicleID int64, date time.Time) (*models.Run, error) {
	var run models.Run
	query := `
		SELECT id, vehicle_id, departure_date, created_at
		FROM runs
		WHERE vehicle_id = $1 AND departure_date = $2::date
	`

	err := sqlx.GetContext(ctx, executor(ctx, r.db), &run, query, vehicleID, date.Format(models.DateLayout))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get run by vehicle and date: %w", err)
	}

	return &run, nil
}

// LockRun takes a FOR UPDATE lock on the run row.
// Must be called inside a transaction; the lock is released on commit or rollback.
func (r *TopologyRepository) LockRun(ctx context.Context, runID int64) error {
	var id int64
	err := sqlx.GetContext(ctx, executor(ctx, r.db), &id, `SELECT id FROM runs WHERE id = $1 FOR UPDATE`, runID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("run %d not found", runID)
		}
		return fmt.Errorf("failed to lock run: %w", err)
	}
	return nil
}

// ListStops retrieves a vehicle's stops in route order
func (r *TopologyRepository) ListStops(ctx context.Context, vehicleID int64) ([]models.Stop, error) {
	var stops []models.Stop
	query := `SELECT` + stopColumns + `
		FROM stops
		WHERE vehicle_id = $1
		ORDER BY station_order
	`

	if err := sqlx.SelectContext(ctx, executor(ctx, r.db), &stops, query, vehicleID); err != nil {
		return nil, fmt.Errorf("failed to list stops: %w", err)
	}

	return stops, nil
}

// ListRunsServing retrieves runs on a date whose route visits fromStation before toStation
func (r *TopologyRepository) ListRunsServing(ctx context.Context, fromStation, toStation string, date time.Time) ([]models.RunWithVehicle, error) {
	var runs []models.RunWithVehicle
	query := `
		SELECT r.id, r.vehicle_id, r.departure_date, r.created_at,
			   v.name AS vehicle_name, v.from_station, v.to_station
		FROM runs r
		JOIN vehicles v ON v.id = r.vehicle_id
		JOIN stops sf ON sf.vehicle_id = r.vehicle_id AND sf.station_name = $1
		JOIN stops st ON st.vehicle_id = r.vehicle_id AND st.station_name = $2
		WHERE r.departure_date = $3::date
		  AND sf.station_order < st.station_order
		ORDER BY sf.departure_time NULLS LAST, v.name
	`

	err := sqlx.SelectContext(ctx, executor(ctx, r.db), &runs, query, fromStation, toStation, date.Format(models.DateLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to list runs serving segment: %w", err)
	}

	return runs, nil
}
