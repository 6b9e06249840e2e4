package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
	"github.com/smarttransit/seat-segment-backend/internal/models"
)

// AvailabilityService counts free seats and picks a concrete seat for a segment
type AvailabilityService struct {
	topology    TopologyStore
	seats       SeatStore
	topologySvc *TopologyService
	logger      *logrus.Logger
}

// NewAvailabilityService creates a new AvailabilityService
func NewAvailabilityService(topology TopologyStore, seats SeatStore, topologySvc *TopologyService, logger *logrus.Logger) *AvailabilityService {
	return &AvailabilityService{
		topology:    topology,
		seats:       seats,
		topologySvc: topologySvc,
		logger:      logger,
	}
}

// occupancy is the seat list of one class on one run with the seats that
// conflict with a requested segment marked
type occupancy struct {
	seats    []models.Seat
	occupied map[int64]bool
}

func (o *occupancy) total() int {
	return len(o.seats)
}

func (o *occupancy) available() int {
	free := len(o.seats) - len(o.occupied)
	if free < 0 {
		return 0
	}
	return free
}

// firstFree returns the first unoccupied seat in (carriage, seat number) order
func (o *occupancy) firstFree() *models.Seat {
	for i := range o.seats {
		if !o.occupied[o.seats[i].ID] {
			seat := o.seats[i]
			return &seat
		}
	}
	return nil
}

// occupancyOn reads the seats of a class and marks every seat holding an
// active allocation that overlaps seg
func (s *AvailabilityService) occupancyOn(ctx context.Context, run *models.Run, route *models.Route, seatClass string, seg Segment) (*occupancy, error) {
	seats, err := s.seats.ListSeats(ctx, run.VehicleID, seatClass)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(seats, func(i, j int) bool {
		if seats[i].CarriageNumber != seats[j].CarriageNumber {
			return seats[i].CarriageNumber < seats[j].CarriageNumber
		}
		return seats[i].SeatNumber < seats[j].SeatNumber
	})

	allocations, err := s.seats.ListActiveAllocations(ctx, run.ID, seatClass)
	if err != nil {
		return nil, err
	}

	inClass := make(map[int64]bool, len(seats))
	for _, seat := range seats {
		inClass[seat.ID] = true
	}

	occupied := make(map[int64]bool)
	for _, allocation := range allocations {
		if !inClass[allocation.SeatID] || occupied[allocation.SeatID] {
			continue
		}
		conflict, resolved := allocationConflicts(route, allocation, seg)
		if !resolved {
			s.logger.WithFields(logrus.Fields{
				"run_id":        run.ID,
				"seat_id":       allocation.SeatID,
				"allocation_id": allocation.ID,
				"from_station":  allocation.FromStation,
				"to_station":    allocation.ToStation,
			}).Warn("Active allocation references stations missing from the route, treating seat as taken")
		}
		if conflict {
			occupied[allocation.SeatID] = true
		}
	}

	return &occupancy{seats: seats, occupied: occupied}, nil
}

// resolveRun loads a run and resolves the segment on its vehicle's route.
// It returns (nil, nil, Segment{}, nil) when the run does not exist.
func (s *AvailabilityService) resolveRun(ctx context.Context, runID int64, fromStation, toStation string) (*models.Run, *models.Route, Segment, error) {
	run, err := s.topology.GetRun(ctx, runID)
	if err != nil || run == nil {
		return nil, nil, Segment{}, err
	}
	route, seg, err := s.topologySvc.resolve(ctx, run.VehicleID, fromStation, toStation)
	if err != nil {
		return nil, nil, Segment{}, err
	}
	return run, route, seg, nil
}

// AvailableSeats returns how many seats of seatClass are free for the whole
// segment on the run. It never fails: an unknown run, an unresolvable segment
// or a store error all count as zero seats.
func (s *AvailabilityService) AvailableSeats(ctx context.Context, runID int64, seatClass, fromStation, toStation string) int {
	run, route, seg, err := s.resolveRun(ctx, runID, fromStation, toStation)
	if err != nil || run == nil {
		if err != nil {
			s.logger.WithFields(logrus.Fields{
				"run_id": runID,
				"error":  err.Error(),
			}).Debug("Availability query could not be resolved")
		}
		return 0
	}

	occ, err := s.occupancyOn(ctx, run, route, seatClass, seg)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"run_id":     runID,
			"seat_class": seatClass,
			"error":      err.Error(),
		}).Warn("Failed to count available seats")
		return 0
	}
	return occ.available()
}

// FindSeat returns the first seat of seatClass, in carriage then seat number
// order, that is free for the whole segment. It returns nil when none is free
// or the run and segment cannot be resolved.
func (s *AvailabilityService) FindSeat(ctx context.Context, runID int64, seatClass, fromStation, toStation string) (*models.Seat, error) {
	run, route, seg, err := s.resolveRun(ctx, runID, fromStation, toStation)
	if err != nil {
		if KindOf(err) != "" {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to resolve run %d: %w", runID, err)
	}
	if run == nil {
		return nil, nil
	}

	occ, err := s.occupancyOn(ctx, run, route, seatClass, seg)
	if err != nil {
		return nil, fmt.Errorf("failed to search seats: %w", err)
	}
	return occ.firstFree(), nil
}
