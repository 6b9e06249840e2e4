package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/smarttransit/seat-segment-backend/internal/models"
)

// OutboxRepository handles the order_events outbox table
type OutboxRepository struct {
	db *sqlx.DB
}

// NewOutboxRepository creates a new OutboxRepository
func NewOutboxRepository(db *sqlx.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

// AppendEvent inserts an order event. Called inside the transaction that
// changed the order so the event commits or rolls back with it.
func (r *OutboxRepository) AppendEvent(ctx context.Context, event *models.OrderEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Status == "" {
		event.Status = models.OutboxStatusPending
	}

	query := `
		INSERT INTO order_events (id, order_id, event_type, payload, status, attempts, created_at)
		VALUES ($1, $2, $3, $4, $5, 0, NOW())
		RETURNING created_at
	`

	err := executor(ctx, r.db).QueryRowxContext(ctx, query,
		event.ID,
		event.OrderID,
		event.EventType,
		[]byte(event.Payload),
		event.Status,
	).Scan(&event.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append order event: %w", err)
	}

	return nil
}

// ClaimBatch moves up to limit pending events to processing and returns them.
// Rows left in processing longer than lease belong to a poller that died
// mid-batch and are claimed again.
// SKIP LOCKED lets several pollers share the table without double delivery.
func (r *OutboxRepository) ClaimBatch(ctx context.Context, limit int, lease time.Duration) ([]models.OrderEvent, error) {
	var events []models.OrderEvent
	query := `
		WITH claimed AS (
			SELECT id
			FROM order_events
			WHERE status = 'pending'
			   OR (status = 'processing' AND claimed_at < NOW() - make_interval(secs => $2))
			ORDER BY created_at
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE order_events
		SET status = 'processing', attempts = attempts + 1, claimed_at = NOW()
		WHERE id IN (SELECT id FROM claimed)
		RETURNING id, order_id, event_type, payload, status, attempts, created_at, claimed_at, published_at
	`

	if err := sqlx.SelectContext(ctx, executor(ctx, r.db), &events, query, limit, lease.Seconds()); err != nil {
		return nil, fmt.Errorf("failed to claim order events: %w", err)
	}

	return events, nil
}

// MarkPublished marks events as delivered
func (r *OutboxRepository) MarkPublished(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	query := `
		UPDATE order_events
		SET status = 'published', published_at = NOW()
		WHERE id = ANY($1)
	`

	if _, err := executor(ctx, r.db).ExecContext(ctx, query, pq.Array(ids)); err != nil {
		return fmt.Errorf("failed to mark events published: %w", err)
	}

	return nil
}

// Release returns events to pending so the next poll retries them
func (r *OutboxRepository) Release(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	query := `
		UPDATE order_events
		SET status = 'pending', claimed_at = NULL
		WHERE id = ANY($1)
	`

	if _, err := executor(ctx, r.db).ExecContext(ctx, query, pq.Array(ids)); err != nil {
		return fmt.Errorf("failed to release order events: %w", err)
	}

	return nil
}
