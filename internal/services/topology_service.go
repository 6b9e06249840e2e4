package services

import (
	"context"
	"fmt"

	"github.com/smarttransit/seat-segment-backend/internal/models"
)

// TopologyService resolves station names to ordered segments on a vehicle's route
type TopologyService struct {
	topology TopologyStore
}

// NewTopologyService creates a new TopologyService
func NewTopologyService(topology TopologyStore) *TopologyService {
	return &TopologyService{topology: topology}
}

// Route loads the ordered stop list of a vehicle
func (s *TopologyService) Route(ctx context.Context, vehicleID int64) (*models.Route, error) {
	stops, err := s.topology.ListStops(ctx, vehicleID)
	if err != nil {
		return nil, fmt.Errorf("failed to load route of vehicle %d: %w", vehicleID, err)
	}
	return models.NewRoute(vehicleID, stops), nil
}

// SegmentOrder returns the station orders of fromStation and toStation on the
// vehicle's route. It fails with StationNotOnRoute when either station is absent
// and with InvalidSegment when the segment is backward or empty.
func (s *TopologyService) SegmentOrder(ctx context.Context, vehicleID int64, fromStation, toStation string) (int, int, error) {
	route, err := s.Route(ctx, vehicleID)
	if err != nil {
		return 0, 0, err
	}
	seg, err := SegmentOnRoute(route, fromStation, toStation)
	if err != nil {
		return 0, 0, err
	}
	return seg.From, seg.To, nil
}

// resolve loads the route and resolves the segment in one step
func (s *TopologyService) resolve(ctx context.Context, vehicleID int64, fromStation, toStation string) (*models.Route, Segment, error) {
	route, err := s.Route(ctx, vehicleID)
	if err != nil {
		return nil, Segment{}, err
	}
	seg, err := SegmentOnRoute(route, fromStation, toStation)
	if err != nil {
		return nil, Segment{}, err
	}
	return route, seg, nil
}
