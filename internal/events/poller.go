package events

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/smarttransit/seat-segment-backend/internal/config"
	"github.com/smarttransit/seat-segment-backend/internal/metrics"
	"github.com/smarttransit/seat-segment-backend/internal/models"
)

// OutboxStore is the slice of the outbox repository the poller needs
type OutboxStore interface {
	ClaimBatch(ctx context.Context, limit int, lease time.Duration) ([]models.OrderEvent, error)
	MarkPublished(ctx context.Context, ids []string) error
	Release(ctx context.Context, ids []string) error
}

// OutboxPoller moves committed order events from the outbox to the broker
type OutboxPoller struct {
	outbox    OutboxStore
	publisher Publisher
	interval  time.Duration
	batchSize int
	lease     time.Duration
	logger    *logrus.Logger
}

// NewOutboxPoller creates a new OutboxPoller. lease is how long a claimed
// row may stay in processing before another poller takes it over.
func NewOutboxPoller(outbox OutboxStore, publisher Publisher, interval time.Duration, batchSize int, lease time.Duration, logger *logrus.Logger) *OutboxPoller {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 50
	}
	if lease <= 0 {
		lease = time.Minute
	}
	return &OutboxPoller{
		outbox:    outbox,
		publisher: publisher,
		interval:  interval,
		batchSize: batchSize,
		lease:     lease,
		logger:    logger,
	}
}

// NewPublisher builds the publisher for the configured broker.
// It returns nil for broker "none".
func NewPublisher(cfg config.EventsConfig) (Publisher, error) {
	switch cfg.Broker {
	case "none", "":
		return nil, nil
	case "rabbitmq":
		publisher, err := NewRabbitMQPublisher(RabbitMQConfig{URL: cfg.AMQPURL, Exchange: cfg.AMQPExchange})
		if err != nil {
			return nil, err
		}
		return publisher, nil
	case "kafka":
		return NewKafkaPublisher(KafkaConfig{Brokers: cfg.KafkaBrokers, Topic: cfg.KafkaTopic}), nil
	default:
		return nil, fmt.Errorf("unknown events broker %q", cfg.Broker)
	}
}

// Run polls until ctx is cancelled
func (p *OutboxPoller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.WithFields(logrus.Fields{
		"interval":   p.interval.String(),
		"batch_size": p.batchSize,
	}).Info("Outbox poller started")

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Outbox poller stopped")
			return
		case <-ticker.C:
			if _, err := p.ProcessBatch(ctx); err != nil {
				p.logger.WithError(err).Error("Failed to process outbox batch")
			}
		}
	}
}

// ProcessBatch claims one batch, publishes it and settles every claimed row.
// It returns the number of events published.
func (p *OutboxPoller) ProcessBatch(ctx context.Context) (int, error) {
	batch, err := p.outbox.ClaimBatch(ctx, p.batchSize, p.lease)
	if err != nil {
		return 0, err
	}
	if len(batch) == 0 {
		return 0, nil
	}

	var published, failed []string
	for _, event := range batch {
		sendCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := p.publisher.Publish(sendCtx, NewMessage(event))
		cancel()

		if err != nil {
			p.logger.WithFields(logrus.Fields{
				"event_id":   event.ID,
				"event_type": event.EventType,
				"order_id":   event.OrderID,
				"attempts":   event.Attempts,
				"error":      err.Error(),
			}).Warn("Failed to publish order event")
			metrics.OutboxPublishErrors.Inc()
			failed = append(failed, event.ID)
			continue
		}

		metrics.OutboxPublished.Inc()
		published = append(published, event.ID)
	}

	// claimed rows are settled on a fresh context so shutdown never strands them in processing
	settleCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	markErr := p.outbox.MarkPublished(settleCtx, published)
	if err := p.outbox.Release(settleCtx, failed); err != nil {
		p.logger.WithError(err).Error("Failed to release unpublished order events")
	}
	if markErr != nil {
		// delivered rows stay in processing and are redelivered once the lease expires
		return 0, markErr
	}

	if len(published) > 0 {
		p.logger.WithField("count", len(published)).Debug("Published order events")
	}
	return len(published), nil
}
