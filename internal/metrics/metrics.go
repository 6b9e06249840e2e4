package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BookingsTotal counts booking attempts by outcome ("confirmed" or an error kind)
	BookingsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seat_bookings_total",
		Help: "Booking attempts by result",
	}, []string{"result"})

	// OrderTransitionsTotal counts cancel/restore attempts by operation and outcome
	OrderTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seat_order_transitions_total",
		Help: "Cancel and restore attempts by operation and result",
	}, []string{"operation", "result"})

	// IntegrityViolations counts overlapping active allocations caught by the
	// booking verification pass or the audit job
	IntegrityViolations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seat_integrity_violations_total",
		Help: "Overlapping active allocations detected",
	}, []string{"source"})

	// TxRetries counts transactions retried after a serialization failure or deadlock
	TxRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "seat_tx_retries_total",
		Help: "Transactions retried after serialization failure or deadlock",
	})

	// OutboxPublished counts order events delivered to the broker
	OutboxPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "seat_outbox_events_published_total",
		Help: "Order events published to the broker",
	})

	// OutboxPublishErrors counts failed publish attempts
	OutboxPublishErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "seat_outbox_publish_errors_total",
		Help: "Failed order event publish attempts",
	})
)
