package services

import (
	"context"
	"fmt"

	"github.com/smarttransit/seat-segment-backend/internal/models"
)

// PricingService looks up exact-match fares
type PricingService struct {
	fares FareStore
}

// NewPricingService creates a new PricingService
func NewPricingService(fares FareStore) *PricingService {
	return &PricingService{fares: fares}
}

// Price returns the fare for (from, to, class) on a vehicle.
// Fails with FareNotFound when no positive fare row matches exactly.
func (s *PricingService) Price(ctx context.Context, vehicleID int64, fromStation, toStation, seatClass string) (float64, error) {
	fare, err := s.lookup(ctx, vehicleID, fromStation, toStation, seatClass)
	if err != nil {
		return 0, err
	}
	if fare == nil {
		return 0, newError(KindFareNotFound, "no %s fare from %s to %s on vehicle %d", seatClass, fromStation, toStation, vehicleID)
	}
	return fare.Price, nil
}

// Quote returns the fare or nil when none exists
func (s *PricingService) Quote(ctx context.Context, vehicleID int64, fromStation, toStation, seatClass string) (*float64, error) {
	fare, err := s.lookup(ctx, vehicleID, fromStation, toStation, seatClass)
	if err != nil || fare == nil {
		return nil, err
	}
	price := fare.Price
	return &price, nil
}

func (s *PricingService) lookup(ctx context.Context, vehicleID int64, fromStation, toStation, seatClass string) (*models.Fare, error) {
	fare, err := s.fares.GetFare(ctx, vehicleID, fromStation, toStation, seatClass)
	if err != nil {
		return nil, fmt.Errorf("failed to look up fare: %w", err)
	}
	if fare == nil || fare.Price <= 0 {
		return nil, nil
	}
	return fare, nil
}
