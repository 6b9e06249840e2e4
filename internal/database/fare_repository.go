package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/smarttransit/seat-segment-backend/internal/models"
)

// FareRepository handles the fares table
type FareRepository struct {
	db *sqlx.DB
}

// NewFareRepository creates a new FareRepository
func NewFareRepository(db *sqlx.DB) *FareRepository {
	return &FareRepository{db: db}
}

// GetFare retrieves the fare for an exact (from, to, class) tuple
func (r *FareRepository) GetFare(ctx context.Context, vehicleID int64, fromStation, toStation, seatClass string) (*models.Fare, error) {
	var fare models.Fare
	query := `
		SELECT id, vehicle_id, from_station, to_station, seat_class, price::float8 AS price
		FROM fares
		WHERE vehicle_id = $1 AND from_station = $2 AND to_station = $3 AND seat_class = $4
	`

	err := sqlx.GetContext(ctx, executor(ctx, r.db), &fare, query, vehicleID, fromStation, toStation, seatClass)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get fare: %w", err)
	}

	return &fare, nil
}

// ListFaresFrom retrieves every fare of a vehicle departing fromStation
func (r *FareRepository) ListFaresFrom(ctx context.Context, vehicleID int64, fromStation string) ([]models.Fare, error) {
	var fares []models.Fare
	query := `
		SELECT id, vehicle_id, from_station, to_station, seat_class, price::float8 AS price
		FROM fares
		WHERE vehicle_id = $1 AND from_station = $2
		ORDER BY to_station, seat_class
	`

	if err := sqlx.SelectContext(ctx, executor(ctx, r.db), &fares, query, vehicleID, fromStation); err != nil {
		return nil, fmt.Errorf("failed to list fares: %w", err)
	}

	return fares, nil
}
