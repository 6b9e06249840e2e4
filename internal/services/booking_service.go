package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/smarttransit/seat-segment-backend/internal/metrics"
	"github.com/smarttransit/seat-segment-backend/internal/models"
)

// BookingService books one seat for one segment of one run
type BookingService struct {
	tx           Transactor
	stores       Stores
	topologySvc  *TopologyService
	availability *AvailabilityService
	pricing      *PricingService
	clock        Clock
	logger       *logrus.Logger
}

// NewBookingService creates a new BookingService
func NewBookingService(
	tx Transactor,
	stores Stores,
	topologySvc *TopologyService,
	availability *AvailabilityService,
	pricing *PricingService,
	clock Clock,
	logger *logrus.Logger,
) *BookingService {
	return &BookingService{
		tx:           tx,
		stores:       stores,
		topologySvc:  topologySvc,
		availability: availability,
		pricing:      pricing,
		clock:        clock,
		logger:       logger,
	}
}

// Book runs the whole booking inside one transaction:
//  1. resolve the run and segment (RunNotFound, RouteInvalid)
//  2. lock the run and re-check availability (SoldOut)
//  3. pick the first free seat (AllocationFailed)
//  4. look up the fare (FareNotFound)
//  5. write the order and its allocation
//  6. verify the seat's active allocations still do not overlap (IntegrityViolation)
//
// Nothing is written unless every step succeeds.
func (s *BookingService) Book(ctx context.Context, req *models.BookRequest) (*models.BookingConfirmation, error) {
	var confirmation *models.BookingConfirmation

	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		run, err := s.resolveRun(ctx, req)
		if err != nil {
			return err
		}

		if err := s.stores.Topology.LockRun(ctx, run.ID); err != nil {
			return err
		}

		route, seg, err := s.topologySvc.resolve(ctx, run.VehicleID, req.FromStation, req.ToStation)
		if err != nil {
			if KindOf(err) != "" {
				return wrapError(KindRouteInvalid, err)
			}
			return err
		}

		// the run lock is held, so count and search see the same allocation set
		occ, err := s.availability.occupancyOn(ctx, run, route, req.SeatClass, seg)
		if err != nil {
			return fmt.Errorf("failed to check availability: %w", err)
		}
		if occ.available() == 0 {
			return newError(KindSoldOut, "no %s seats left from %s to %s on run %d", req.SeatClass, req.FromStation, req.ToStation, run.ID)
		}

		seat := occ.firstFree()
		if seat == nil {
			return newError(KindAllocationFailed, "no free %s seat could be assigned on run %d, please retry", req.SeatClass, run.ID)
		}

		price, err := s.pricing.Price(ctx, run.VehicleID, req.FromStation, req.ToStation, req.SeatClass)
		if err != nil {
			return err
		}

		order := &models.Order{
			RunID:         run.ID,
			VehicleID:     run.VehicleID,
			FromStation:   req.FromStation,
			ToStation:     req.ToStation,
			SeatClass:     req.SeatClass,
			PassengerName: strings.TrimSpace(req.PassengerName),
			PassengerID:   strings.TrimSpace(req.PassengerID),
			Price:         price,
			Status:        models.OrderStatusConfirmed,
			IsActive:      true,
		}
		if err := s.stores.Orders.CreateOrder(ctx, order); err != nil {
			return err
		}

		allocation := &models.SeatAllocation{
			RunID:         run.ID,
			SeatID:        seat.ID,
			FromStation:   order.FromStation,
			ToStation:     order.ToStation,
			PassengerName: order.PassengerName,
			PassengerID:   order.PassengerID,
			OrderID:       order.ID,
			IsActive:      true,
		}
		if err := s.stores.Orders.CreateAllocation(ctx, allocation); err != nil {
			return err
		}

		if err := verifyAllocation(ctx, s.stores, route, order.ID, s.logger); err != nil {
			return err
		}

		if err := appendOrderEvent(ctx, s.stores.Events, models.OrderEventConfirmed, order, seat.ID, s.clock.Now()); err != nil {
			return err
		}

		confirmation = &models.BookingConfirmation{
			OrderID:        order.ID,
			RunID:          run.ID,
			VehicleID:      run.VehicleID,
			Date:           run.DateString(),
			SeatClass:      order.SeatClass,
			SeatID:         seat.ID,
			SeatNumber:     seat.SeatNumber,
			CarriageNumber: seat.CarriageNumber,
			FromStation:    order.FromStation,
			ToStation:      order.ToStation,
			PassengerName:  order.PassengerName,
			PassengerID:    order.PassengerID,
			Price:          order.Price,
			Status:         order.Status,
		}
		return nil
	})

	metrics.BookingsTotal.WithLabelValues(resultLabel(err, "confirmed")).Inc()
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"run_id":       req.RunID,
			"vehicle_id":   req.VehicleID,
			"seat_class":   req.SeatClass,
			"from_station": req.FromStation,
			"to_station":   req.ToStation,
			"kind":         KindOf(err),
			"error":        err.Error(),
		}).Info("Booking rejected")
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"order_id":     confirmation.OrderID,
		"run_id":       confirmation.RunID,
		"seat_id":      confirmation.SeatID,
		"from_station": confirmation.FromStation,
		"to_station":   confirmation.ToStation,
	}).Info("Booking confirmed")

	return confirmation, nil
}

// resolveRun finds the run by ID, or by vehicle and date with the date
// defaulting to the clock's today
func (s *BookingService) resolveRun(ctx context.Context, req *models.BookRequest) (*models.Run, error) {
	var (
		run *models.Run
		err error
	)

	if req.RunID > 0 {
		run, err = s.stores.Topology.GetRun(ctx, req.RunID)
		if err == nil && run != nil && req.VehicleID > 0 && run.VehicleID != req.VehicleID {
			return nil, newError(KindRunNotFound, "run %d does not belong to vehicle %d", req.RunID, req.VehicleID)
		}
	} else {
		date, parseErr := parseRunDate(s.clock, req.Date)
		if parseErr != nil {
			return nil, wrapError(KindRouteInvalid, fmt.Errorf("invalid date %q: %w", req.Date, parseErr))
		}
		run, err = s.stores.Topology.GetRunByVehicleAndDate(ctx, req.VehicleID, date)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to resolve run: %w", err)
	}
	if run == nil {
		return nil, newError(KindRunNotFound, "no run found for the requested vehicle and date")
	}
	return run, nil
}

// resultLabel turns an operation outcome into a metric label
func resultLabel(err error, success string) string {
	if err == nil {
		return success
	}
	if kind := KindOf(err); kind != "" {
		return strings.ToLower(string(kind))
	}
	return "error"
}
