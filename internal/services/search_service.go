package services

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/smarttransit/seat-segment-backend/internal/models"
)

// SearchService answers read-only availability, run and stop queries
type SearchService struct {
	stores       Stores
	topologySvc  *TopologyService
	availability *AvailabilityService
	pricing      *PricingService
	clock        Clock
	logger       *logrus.Logger
}

// NewSearchService creates a new SearchService
func NewSearchService(
	stores Stores,
	topologySvc *TopologyService,
	availability *AvailabilityService,
	pricing *PricingService,
	clock Clock,
	logger *logrus.Logger,
) *SearchService {
	return &SearchService{
		stores:       stores,
		topologySvc:  topologySvc,
		availability: availability,
		pricing:      pricing,
		clock:        clock,
		logger:       logger,
	}
}

// SearchAvailability returns the free seat count and fare for one class and
// segment of a run. The count is zero for anything that cannot be resolved;
// the price is nil when no fare exists.
func (s *SearchService) SearchAvailability(ctx context.Context, runID int64, seatClass, fromStation, toStation string) (*models.AvailabilityQuote, error) {
	quote := &models.AvailabilityQuote{
		RunID:       runID,
		SeatClass:   seatClass,
		FromStation: fromStation,
		ToStation:   toStation,
		Available:   s.availability.AvailableSeats(ctx, runID, seatClass, fromStation, toStation),
	}

	run, err := s.stores.Topology.GetRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load run: %w", err)
	}
	if run == nil {
		return quote, nil
	}

	price, err := s.pricing.Quote(ctx, run.VehicleID, fromStation, toStation, seatClass)
	if err != nil {
		return nil, err
	}
	quote.Price = price
	return quote, nil
}

// SearchBookableRuns lists runs on the requested date whose route visits
// fromStation before toStation, with every seat class that still has a free
// seat and a fare for the segment
func (s *SearchService) SearchBookableRuns(ctx context.Context, req *models.RunSearchRequest) ([]models.BookableRun, error) {
	date, err := parseRunDate(s.clock, req.Date)
	if err != nil {
		return nil, wrapError(KindRouteInvalid, fmt.Errorf("invalid date %q: %w", req.Date, err))
	}

	runs, err := s.stores.Topology.ListRunsServing(ctx, req.FromStation, req.ToStation, date)
	if err != nil {
		return nil, err
	}

	results := make([]models.BookableRun, 0, len(runs))
	for i := range runs {
		run := &runs[i]

		route, seg, err := s.topologySvc.resolve(ctx, run.VehicleID, req.FromStation, req.ToStation)
		if err != nil {
			s.logger.WithFields(logrus.Fields{
				"run_id": run.ID,
				"error":  err.Error(),
			}).Warn("Skipping run whose segment does not resolve")
			continue
		}

		classes, err := s.stores.Seats.ListSeatClasses(ctx, run.VehicleID)
		if err != nil {
			return nil, err
		}

		var offered []models.SeatClassAvailability
		for _, class := range classes {
			occ, err := s.availability.occupancyOn(ctx, &run.Run, route, class, seg)
			if err != nil {
				return nil, err
			}
			if occ.available() == 0 {
				continue
			}
			price, err := s.pricing.Quote(ctx, run.VehicleID, req.FromStation, req.ToStation, class)
			if err != nil {
				return nil, err
			}
			if price == nil {
				continue
			}
			offered = append(offered, models.SeatClassAvailability{
				SeatClass:  class,
				Available:  occ.available(),
				TotalSeats: occ.total(),
				Price:      *price,
			})
		}

		if len(offered) == 0 {
			continue
		}

		results = append(results, models.BookableRun{
			RunID:       run.ID,
			VehicleID:   run.VehicleID,
			VehicleName: run.VehicleName,
			Origin:      run.Origin,
			Terminus:    run.Terminus,
			Date:        run.DateString(),
			Schedule:    route.Stops,
			SeatClasses: offered,
		})
	}

	return results, nil
}

// GetVehicleStops returns a vehicle's stops in order, each with the fares
// from the vehicle's origin to that stop
func (s *SearchService) GetVehicleStops(ctx context.Context, vehicleID int64) ([]models.StopFare, error) {
	vehicle, err := s.stores.Topology.GetVehicle(ctx, vehicleID)
	if err != nil {
		return nil, err
	}
	if vehicle == nil {
		return nil, newError(KindVehicleNotFound, "vehicle %d not found", vehicleID)
	}

	route, err := s.topologySvc.Route(ctx, vehicleID)
	if err != nil {
		return nil, err
	}

	fares, err := s.stores.Fares.ListFaresFrom(ctx, vehicleID, route.Origin())
	if err != nil {
		return nil, err
	}
	byDestination := make(map[string][]models.Fare)
	for _, fare := range fares {
		byDestination[fare.ToStation] = append(byDestination[fare.ToStation], fare)
	}

	stops := make([]models.StopFare, 0, len(route.Stops))
	for _, stop := range route.Stops {
		stopFares := byDestination[stop.StationName]
		if stopFares == nil {
			stopFares = []models.Fare{}
		}
		stops = append(stops, models.StopFare{Stop: stop, Fares: stopFares})
	}
	return stops, nil
}
