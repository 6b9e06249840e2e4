package services

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/smarttransit/seat-segment-backend/internal/metrics"
	"github.com/smarttransit/seat-segment-backend/internal/models"
)

// OrderLifecycleService cancels, restores and lists orders.
// Status changes go through models.Order.Transition only.
type OrderLifecycleService struct {
	tx           Transactor
	stores       Stores
	topologySvc  *TopologyService
	availability *AvailabilityService
	clock        Clock
	logger       *logrus.Logger
}

// NewOrderLifecycleService creates a new OrderLifecycleService
func NewOrderLifecycleService(
	tx Transactor,
	stores Stores,
	topologySvc *TopologyService,
	availability *AvailabilityService,
	clock Clock,
	logger *logrus.Logger,
) *OrderLifecycleService {
	return &OrderLifecycleService{
		tx:           tx,
		stores:       stores,
		topologySvc:  topologySvc,
		availability: availability,
		clock:        clock,
		logger:       logger,
	}
}

// Cancel deactivates an active order and its seat allocation.
// Fails with OrderNotFound when no active order has that ID.
func (s *OrderLifecycleService) Cancel(ctx context.Context, orderID int64) (*models.OrderAck, error) {
	var ack *models.OrderAck

	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		order, err := s.stores.Orders.LockOrder(ctx, orderID, true)
		if err != nil {
			return err
		}
		if order == nil {
			return newError(KindOrderNotFound, "no active order with id %d", orderID)
		}

		if err := s.stores.Topology.LockRun(ctx, order.RunID); err != nil {
			return err
		}

		allocation, err := s.stores.Orders.GetAllocationByOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if allocation == nil {
			return newError(KindOrderNotFound, "order %d has no seat allocation", orderID)
		}

		now := s.clock.Now()
		if err := order.Transition(models.OrderStatusCancelled, now); err != nil {
			return wrapError(KindInvalidTransition, err)
		}
		if err := s.stores.Orders.UpdateOrderStatus(ctx, order); err != nil {
			return err
		}
		if err := s.stores.Orders.SetAllocationActive(ctx, orderID, false, now); err != nil {
			return err
		}

		if err := appendOrderEvent(ctx, s.stores.Events, models.OrderEventCancelled, order, allocation.SeatID, now); err != nil {
			return err
		}

		ack = &models.OrderAck{OrderID: order.ID, Status: order.Status}
		return nil
	})

	metrics.OrderTransitionsTotal.WithLabelValues("cancel", resultLabel(err, "ok")).Inc()
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"order_id": orderID,
			"kind":     KindOf(err),
			"error":    err.Error(),
		}).Info("Cancel rejected")
		return nil, err
	}

	s.logger.WithField("order_id", orderID).Info("Order cancelled")
	return ack, nil
}

// Restore reactivates a cancelled order on its original seat and segment.
// Fails with OrderNotFound when no cancelled order has that ID, and with
// SeatNoLongerAvailable when the class is sold out for the segment or the
// original seat has since been taken for an overlapping segment.
func (s *OrderLifecycleService) Restore(ctx context.Context, orderID int64) (*models.OrderAck, error) {
	var ack *models.OrderAck

	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		order, err := s.stores.Orders.LockOrder(ctx, orderID, false)
		if err != nil {
			return err
		}
		if order == nil {
			return newError(KindOrderNotFound, "no cancelled order with id %d", orderID)
		}

		if err := s.stores.Topology.LockRun(ctx, order.RunID); err != nil {
			return err
		}

		allocation, err := s.stores.Orders.GetAllocationByOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if allocation == nil {
			return newError(KindOrderNotFound, "order %d has no seat allocation", orderID)
		}

		run, err := s.stores.Topology.GetRun(ctx, order.RunID)
		if err != nil {
			return fmt.Errorf("failed to load run: %w", err)
		}
		if run == nil {
			return newError(KindOrderNotFound, "run %d of order %d no longer exists", order.RunID, orderID)
		}

		route, seg, err := s.topologySvc.resolve(ctx, run.VehicleID, allocation.FromStation, allocation.ToStation)
		if err != nil {
			if KindOf(err) != "" {
				return &BookingError{Kind: KindSeatNoLongerAvailable, Message: "original segment no longer resolves on the route", Err: err}
			}
			return err
		}

		// only active allocations are counted, so the cancelled one does not block itself
		occ, err := s.availability.occupancyOn(ctx, run, route, order.SeatClass, seg)
		if err != nil {
			return fmt.Errorf("failed to check availability: %w", err)
		}
		if occ.available() == 0 {
			return newError(KindSeatNoLongerAvailable, "no %s seats left from %s to %s", order.SeatClass, allocation.FromStation, allocation.ToStation)
		}
		if occ.occupied[allocation.SeatID] {
			return newError(KindSeatNoLongerAvailable, "seat %d has been booked for an overlapping segment", allocation.SeatID)
		}

		now := s.clock.Now()
		if err := order.Transition(models.OrderStatusConfirmed, now); err != nil {
			return wrapError(KindInvalidTransition, err)
		}
		if err := s.stores.Orders.UpdateOrderStatus(ctx, order); err != nil {
			return err
		}
		if err := s.stores.Orders.SetAllocationActive(ctx, orderID, true, now); err != nil {
			return err
		}

		if err := verifyAllocation(ctx, s.stores, route, orderID, s.logger); err != nil {
			return err
		}

		if err := appendOrderEvent(ctx, s.stores.Events, models.OrderEventRestored, order, allocation.SeatID, now); err != nil {
			return err
		}

		ack = &models.OrderAck{OrderID: order.ID, Status: order.Status}
		return nil
	})

	metrics.OrderTransitionsTotal.WithLabelValues("restore", resultLabel(err, "ok")).Inc()
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"order_id": orderID,
			"kind":     KindOf(err),
			"error":    err.Error(),
		}).Info("Restore rejected")
		return nil, err
	}

	s.logger.WithField("order_id", orderID).Info("Order restored")
	return ack, nil
}

// ListOrders returns a passenger's active or cancelled orders with seat details
func (s *OrderLifecycleService) ListOrders(ctx context.Context, filter models.OrderFilter) ([]models.OrderDetail, error) {
	orders, err := s.stores.Orders.ListOrders(ctx, filter)
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []models.OrderDetail{}
	}
	return orders, nil
}

// GetOrder returns one order with seat details
func (s *OrderLifecycleService) GetOrder(ctx context.Context, orderID int64) (*models.OrderDetail, error) {
	detail, err := s.stores.Orders.GetOrderDetail(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if detail == nil {
		return nil, newError(KindOrderNotFound, "order %d not found", orderID)
	}
	return detail, nil
}
