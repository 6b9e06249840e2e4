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

// OrderRepository handles orders and their seat allocations
type OrderRepository struct {
	db *sqlx.DB
}

// NewOrderRepository creates a new OrderRepository
func NewOrderRepository(db *sqlx.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

const orderColumns = `
	o.id, o.run_id, o.vehicle_id, o.from_station, o.to_station, o.seat_class,
	o.passenger_name, o.passenger_id, o.price::float8 AS price, o.status,
	o.is_active, o.cancelled_at, o.created_at`

const orderDetailQuery = `SELECT` + orderColumns + `,
		v.name AS vehicle_name, r.departure_date,
		to_char(st.departure_time, 'HH24:MI') AS departure_time,
		a.seat_id, s.seat_number, c.carriage_number
	FROM orders o
	JOIN runs r ON r.id = o.run_id
	JOIN vehicles v ON v.id = o.vehicle_id
	LEFT JOIN stops st ON st.vehicle_id = o.vehicle_id AND st.station_name = o.from_station
	LEFT JOIN seat_allocations a ON a.order_id = o.id
	LEFT JOIN seats s ON s.id = a.seat_id
	LEFT JOIN carriages c ON c.id = s.carriage_id`

// CreateOrder inserts an order and fills in its ID and creation time
func (r *OrderRepository) CreateOrder(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (
			run_id, vehicle_id, from_station, to_station, seat_class,
			passenger_name, passenger_id, price, status, is_active, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW()
		)
		RETURNING id, created_at
	`

	err := executor(ctx, r.db).QueryRowxContext(ctx, query,
		order.RunID,
		order.VehicleID,
		order.FromStation,
		order.ToStation,
		order.SeatClass,
		order.PassengerName,
		order.PassengerID,
		order.Price,
		order.Status,
		order.IsActive,
	).Scan(&order.ID, &order.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}

	return nil
}

// CreateAllocation inserts a seat allocation and fills in its ID and creation time
func (r *OrderRepository) CreateAllocation(ctx context.Context, allocation *models.SeatAllocation) error {
	query := `
		INSERT INTO seat_allocations (
			run_id, seat_id, from_station, to_station,
			passenger_name, passenger_id, order_id, is_active, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, NOW()
		)
		RETURNING id, created_at
	`

	err := executor(ctx, r.db).QueryRowxContext(ctx, query,
		allocation.RunID,
		allocation.SeatID,
		allocation.FromStation,
		allocation.ToStation,
		allocation.PassengerName,
		allocation.PassengerID,
		allocation.OrderID,
		allocation.IsActive,
	).Scan(&allocation.ID, &allocation.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create seat allocation: %w", err)
	}

	return nil
}

// GetOrder retrieves an order by ID
func (r *OrderRepository) GetOrder(ctx context.Context, orderID int64) (*models.Order, error) {
	var order models.Order
	query := `SELECT` + orderColumns + `
		FROM orders o
		WHERE o.id = $1
	`

	err := sqlx.GetContext(ctx, executor(ctx, r.db), &order, query, orderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	return &order, nil
}

// LockOrder retrieves an order with the given activity flag and locks its row
func (r *OrderRepository) LockOrder(ctx context.Context, orderID int64, active bool) (*models.Order, error) {
	var order models.Order
	query := `SELECT` + orderColumns + `
		FROM orders o
		WHERE o.id = $1 AND o.is_active = $2
		FOR UPDATE
	`

	err := sqlx.GetContext(ctx, executor(ctx, r.db), &order, query, orderID, active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to lock order: %w", err)
	}

	return &order, nil
}

// GetAllocationByOrder retrieves the seat allocation backing an order
func (r *OrderRepository) GetAllocationByOrder(ctx context.Context, orderID int64) (*models.SeatAllocation, error) {
	var allocation models.SeatAllocation
	query := `SELECT` + allocationColumns + `
		FROM seat_allocations a
		WHERE a.order_id = $1
	`

	err := sqlx.GetContext(ctx, executor(ctx, r.db), &allocation, query, orderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get seat allocation: %w", err)
	}

	return &allocation, nil
}

// UpdateOrderStatus persists status, is_active and cancelled_at
func (r *OrderRepository) UpdateOrderStatus(ctx context.Context, order *models.Order) error {
	query := `
		UPDATE orders
		SET status = $1,
			is_active = $2,
			cancelled_at = $3
		WHERE id = $4
	`

	result, err := executor(ctx, r.db).ExecContext(ctx, query,
		order.Status,
		order.IsActive,
		order.CancelledAt,
		order.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("order %d not found", order.ID)
	}

	return nil
}

// SetAllocationActive flips the active flag of the allocation backing an order.
// deactivated_at is set to at when deactivating and cleared when reactivating.
func (r *OrderRepository) SetAllocationActive(ctx context.Context, orderID int64, active bool, at time.Time) error {
	var deactivatedAt *time.Time
	if !active {
		deactivatedAt = &at
	}

	query := `
		UPDATE seat_allocations
		SET is_active = $1,
			deactivated_at = $2
		WHERE order_id = $3
	`

	result, err := executor(ctx, r.db).ExecContext(ctx, query, active, deactivatedAt, orderID)
	if err != nil {
		return fmt.Errorf("failed to update seat allocation: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("seat allocation for order %d not found", orderID)
	}

	return nil
}

// GetOrderDetail retrieves an order joined with its run, vehicle and seat
func (r *OrderRepository) GetOrderDetail(ctx context.Context, orderID int64) (*models.OrderDetail, error) {
	var detail models.OrderDetail
	query := orderDetailQuery + `
		WHERE o.id = $1
	`

	err := sqlx.GetContext(ctx, executor(ctx, r.db), &detail, query, orderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get order detail: %w", err)
	}

	return &detail, nil
}

// ListOrders retrieves orders matching the filter, newest first.
// Empty passenger fields do not narrow the result.
func (r *OrderRepository) ListOrders(ctx context.Context, filter models.OrderFilter) ([]models.OrderDetail, error) {
	var details []models.OrderDetail
	query := orderDetailQuery + `
		WHERE o.is_active = $1
		  AND ($2 = '' OR o.passenger_name = $2)
		  AND ($3 = '' OR o.passenger_id = $3)
		ORDER BY o.created_at DESC, o.id DESC
	`

	err := sqlx.SelectContext(ctx, executor(ctx, r.db), &details, query,
		filter.Active,
		filter.PassengerName,
		filter.PassengerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	return details, nil
}
