package database

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/smarttransit/seat-segment-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestDB creates a mock database for testing
func setupTestDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	return sqlx.NewDb(mockDB, "sqlmock"), mock
}

func TestTopologyRepository_GetRun(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewTopologyRepository(db)
	ctx := context.Background()

	t.Run("Found", func(t *testing.T) {
		date := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
		mock.ExpectQuery(`SELECT (.+) FROM runs WHERE id = \$1`).
			WithArgs(int64(7)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "vehicle_id", "departure_date", "created_at"}).
				AddRow(int64(7), int64(1), date, time.Now()))

		run, err := repo.GetRun(ctx, 7)
		require.NoError(t, err)
		require.NotNil(t, run)
		assert.Equal(t, int64(1), run.VehicleID)
		assert.Equal(t, "2026-03-01", run.DateString())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Not Found", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM runs WHERE id = \$1`).
			WithArgs(int64(8)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "vehicle_id", "departure_date", "created_at"}))

		run, err := repo.GetRun(ctx, 8)
		assert.NoError(t, err)
		assert.Nil(t, run)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Database Error", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM runs WHERE id = \$1`).
			WithArgs(int64(9)).
			WillReturnError(fmt.Errorf("connection reset"))

		run, err := repo.GetRun(ctx, 9)
		assert.Error(t, err)
		assert.Nil(t, run)
		assert.Contains(t, err.Error(), "failed to get run")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTopologyRepository_LockRun(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewTopologyRepository(db)
	ctx := context.Background()

	t.Run("Locked", func(t *testing.T) {
		mock.ExpectQuery(`SELECT id FROM runs WHERE id = \$1 FOR UPDATE`).
			WithArgs(int64(3)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(3)))

		assert.NoError(t, repo.LockRun(ctx, 3))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Missing Run", func(t *testing.T) {
		mock.ExpectQuery(`SELECT id FROM runs WHERE id = \$1 FOR UPDATE`).
			WithArgs(int64(4)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		err := repo.LockRun(ctx, 4)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "not found")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTopologyRepository_ListStops(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewTopologyRepository(db)

	dep := "08:00"
	arr := "09:05"
	mock.ExpectQuery(`SELECT (.+) FROM stops WHERE vehicle_id = \$1 ORDER BY station_order`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "vehicle_id", "station_name", "station_order", "arrival_time", "departure_time", "distance_km",
		}).
			AddRow(int64(1), int64(1), "Beijing", 1, nil, dep, 0).
			AddRow(int64(2), int64(1), "Nanjing", 2, arr, "09:10", 1023).
			AddRow(int64(3), int64(1), "Shanghai", 3, "10:30", nil, 1318))

	stops, err := repo.ListStops(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, stops, 3)
	assert.Nil(t, stops[0].ArrivalTime)
	assert.Equal(t, dep, *stops[0].DepartureTime)
	assert.Equal(t, "Nanjing", stops[1].StationName)
	assert.Nil(t, stops[2].DepartureTime)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeatRepository_ListActiveAllocations(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewSeatRepository(db)

	columns := []string{
		"id", "run_id", "seat_id", "from_station", "to_station",
		"passenger_name", "passenger_id", "order_id", "is_active",
		"deactivated_at", "created_at",
	}
	mock.ExpectQuery(`SELECT (.+) FROM seat_allocations a JOIN seats s (.+) WHERE a.run_id = \$1 AND a.is_active = TRUE AND s.seat_class = \$2`).
		WithArgs(int64(5), "second").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(int64(11), int64(5), int64(100), "Beijing", "Nanjing", "Li Lei", "110101", int64(21), true, nil, time.Now()))

	allocations, err := repo.ListActiveAllocations(context.Background(), 5, "second")
	require.NoError(t, err)
	require.Len(t, allocations, 1)
	assert.Equal(t, int64(100), allocations[0].SeatID)
	assert.True(t, allocations[0].IsActive)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFareRepository_GetFare(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewFareRepository(db)
	ctx := context.Background()

	t.Run("Found", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM fares WHERE vehicle_id = \$1 AND from_station = \$2`).
			WithArgs(int64(1), "Beijing", "Shanghai", "first").
			WillReturnRows(sqlmock.NewRows([]string{"id", "vehicle_id", "from_station", "to_station", "seat_class", "price"}).
				AddRow(int64(1), int64(1), "Beijing", "Shanghai", "first", 933.0))

		fare, err := repo.GetFare(ctx, 1, "Beijing", "Shanghai", "first")
		require.NoError(t, err)
		require.NotNil(t, fare)
		assert.Equal(t, 933.0, fare.Price)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Missing Fare", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM fares`).
			WithArgs(int64(1), "Nanjing", "Shanghai", "first").
			WillReturnRows(sqlmock.NewRows([]string{"id", "vehicle_id", "from_station", "to_station", "seat_class", "price"}))

		fare, err := repo.GetFare(ctx, 1, "Nanjing", "Shanghai", "first")
		assert.NoError(t, err)
		assert.Nil(t, fare)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestOrderRepository_CreateOrder(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewOrderRepository(db)
	now := time.Now()

	order := &models.Order{
		RunID:         5,
		VehicleID:     1,
		FromStation:   "Beijing",
		ToStation:     "Nanjing",
		SeatClass:     "second",
		PassengerName: "Li Lei",
		PassengerID:   "110101",
		Price:         443.5,
		Status:        models.OrderStatusConfirmed,
		IsActive:      true,
	}

	mock.ExpectQuery(`INSERT INTO orders`).
		WithArgs(int64(5), int64(1), "Beijing", "Nanjing", "second", "Li Lei", "110101", 443.5, "confirmed", true).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(42), now))

	require.NoError(t, repo.CreateOrder(context.Background(), order))
	assert.Equal(t, int64(42), order.ID)
	assert.Equal(t, now, order.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_LockOrder(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewOrderRepository(db)

	mock.ExpectQuery(`SELECT (.+) FROM orders o WHERE o.id = \$1 AND o.is_active = \$2 FOR UPDATE`).
		WithArgs(int64(42), true).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	order, err := repo.LockOrder(context.Background(), 42, true)
	assert.NoError(t, err)
	assert.Nil(t, order)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_UpdateOrderStatus(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewOrderRepository(db)
	ctx := context.Background()
	cancelledAt := time.Now()

	order := &models.Order{ID: 42, Status: models.OrderStatusCancelled, CancelledAt: &cancelledAt}

	t.Run("Success", func(t *testing.T) {
		mock.ExpectExec(`UPDATE orders SET status = \$1`).
			WithArgs("cancelled", false, cancelledAt, int64(42)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.UpdateOrderStatus(ctx, order))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("No Rows", func(t *testing.T) {
		mock.ExpectExec(`UPDATE orders SET status = \$1`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.UpdateOrderStatus(ctx, order)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "not found")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestOrderRepository_SetAllocationActive(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewOrderRepository(db)
	ctx := context.Background()
	at := time.Now()

	t.Run("Deactivate Stamps Time", func(t *testing.T) {
		mock.ExpectExec(`UPDATE seat_allocations SET is_active = \$1`).
			WithArgs(false, at, int64(42)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.SetAllocationActive(ctx, 42, false, at))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Reactivate Clears Time", func(t *testing.T) {
		mock.ExpectExec(`UPDATE seat_allocations SET is_active = \$1`).
			WithArgs(true, nil, int64(42)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.SetAllocationActive(ctx, 42, true, at))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestOutboxRepository_AppendEvent(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewOutboxRepository(db)
	now := time.Now()

	event := &models.OrderEvent{
		OrderID:   42,
		EventType: models.OrderEventCancelled,
		Payload:   json.RawMessage(`{"order_id":42}`),
	}

	mock.ExpectQuery(`INSERT INTO order_events`).
		WithArgs(sqlmock.AnyArg(), int64(42), "order.cancelled", []byte(`{"order_id":42}`), "pending").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(now))

	require.NoError(t, repo.AppendEvent(context.Background(), event))
	assert.NotEmpty(t, event.ID)
	assert.Equal(t, models.OutboxStatusPending, event.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxRepository_ClaimAndMark(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewOutboxRepository(db)
	ctx := context.Background()

	mock.ExpectQuery(`WITH claimed AS (.+) FOR UPDATE SKIP LOCKED`).
		WithArgs(10, float64(60)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "order_id", "event_type", "payload", "status", "attempts", "created_at", "claimed_at", "published_at",
		}).AddRow("evt-1", int64(42), "order.confirmed", []byte(`{}`), "processing", 1, time.Now(), time.Now(), nil))

	events, err := repo.ClaimBatch(ctx, 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, models.OrderEventConfirmed, events[0].EventType)
	assert.NotNil(t, events[0].ClaimedAt)

	mock.ExpectExec(`UPDATE order_events SET status = 'published'`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	assert.NoError(t, repo.MarkPublished(ctx, []string{"evt-1"}))

	// empty batches never reach the database
	assert.NoError(t, repo.Release(ctx, nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxRepository_ReclaimsExpiredLease(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewOutboxRepository(db)
	ctx := context.Background()

	claimed := time.Now()
	mock.ExpectQuery(`status = 'processing' AND claimed_at < NOW\(\) - make_interval\(secs => \$2\)`).
		WithArgs(5, float64(30)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "order_id", "event_type", "payload", "status", "attempts", "created_at", "claimed_at", "published_at",
		}).AddRow("evt-7", int64(7), "order.cancelled", []byte(`{}`), "processing", 3, claimed.Add(-time.Hour), claimed, nil))

	events, err := repo.ClaimBatch(ctx, 5, 30*time.Second)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, 3, events[0].Attempts)

	mock.ExpectExec(`SET status = 'pending', claimed_at = NULL`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	assert.NoError(t, repo.Release(ctx, []string{"evt-7"}))
	assert.NoError(t, mock.ExpectationsWereMet())
}
