package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/smarttransit/seat-segment-backend/internal/metrics"
	"github.com/smarttransit/seat-segment-backend/internal/models"
)

// verifyAllocation re-reads an order and its allocation inside the current
// transaction and re-scans every active allocation of the same seat on the run.
// Any overlap is a broken invariant: it is logged as such and fails the transaction.
func verifyAllocation(ctx context.Context, stores Stores, route *models.Route, orderID int64, logger *logrus.Logger) error {
	order, err := stores.Orders.GetOrder(ctx, orderID)
	if err != nil {
		return fmt.Errorf("failed to re-read order: %w", err)
	}
	allocation, err := stores.Orders.GetAllocationByOrder(ctx, orderID)
	if err != nil {
		return fmt.Errorf("failed to re-read seat allocation: %w", err)
	}

	if order == nil || allocation == nil || !order.IsActive || !allocation.IsActive || order.Status != models.OrderStatusConfirmed {
		return integrityBreach(logger, "order and allocation were not both written as active", logrus.Fields{
			"order_id": orderID,
		})
	}

	held, err := stores.Seats.ListActiveAllocationsForSeat(ctx, allocation.RunID, allocation.SeatID)
	if err != nil {
		return fmt.Errorf("failed to re-scan seat allocations: %w", err)
	}

	found := false
	for _, a := range held {
		if a.ID == allocation.ID {
			found = true
			break
		}
	}
	if !found {
		return integrityBreach(logger, "written allocation is missing from the seat's active set", logrus.Fields{
			"order_id":      orderID,
			"allocation_id": allocation.ID,
		})
	}

	if violations := findOverlaps(route, held); len(violations) > 0 {
		v := violations[0]
		return integrityBreach(logger, "overlapping active allocations on one seat", logrus.Fields{
			"run_id":       v.RunID,
			"seat_id":      v.SeatID,
			"allocation_a": v.AllocationA,
			"allocation_b": v.AllocationB,
			"order_a":      v.OrderA,
			"order_b":      v.OrderB,
			"violations":   len(violations),
		})
	}

	return nil
}

func integrityBreach(logger *logrus.Logger, message string, fields logrus.Fields) error {
	fields["invariant_breach"] = true
	logger.WithFields(fields).Error("Seat allocation invariant violated: " + message)
	metrics.IntegrityViolations.WithLabelValues("booking").Inc()
	return newError(KindIntegrityViolation, "seat allocation integrity check failed: %s", message)
}

// appendOrderEvent writes an outbox row describing the order's new state
func appendOrderEvent(ctx context.Context, events EventStore, eventType models.OrderEventType, order *models.Order, seatID int64, at time.Time) error {
	payload, err := json.Marshal(models.OrderEventPayload{
		OrderID:       order.ID,
		RunID:         order.RunID,
		SeatID:        seatID,
		SeatClass:     order.SeatClass,
		FromStation:   order.FromStation,
		ToStation:     order.ToStation,
		PassengerName: order.PassengerName,
		PassengerID:   order.PassengerID,
		Price:         order.Price,
		Status:        order.Status,
		OccurredAt:    at,
	})
	if err != nil {
		return fmt.Errorf("failed to encode order event: %w", err)
	}

	event := &models.OrderEvent{
		OrderID:   order.ID,
		EventType: eventType,
		Payload:   payload,
		Status:    models.OutboxStatusPending,
	}
	if err := events.AppendEvent(ctx, event); err != nil {
		return fmt.Errorf("failed to append %s event: %w", eventType, err)
	}
	return nil
}
