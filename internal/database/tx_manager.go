package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/seat-segment-backend/internal/metrics"
)

// SQLSTATE codes that mean "the transaction lost a race, run it again"
const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
)

type txKey struct{}

// TxManager runs functions inside a database transaction.
// The transaction travels in the context; repositories pick it up via executor.
type TxManager struct {
	db          *sqlx.DB
	isolation   sql.IsolationLevel
	maxAttempts int
	logger      *logrus.Logger
}

// NewTxManager creates a TxManager.
// isolation is read_committed or serializable.
func NewTxManager(db *sqlx.DB, isolation string, maxAttempts int, logger *logrus.Logger) *TxManager {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &TxManager{
		db:          db,
		isolation:   ParseIsolationLevel(isolation),
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// ParseIsolationLevel maps a config value to a database/sql isolation level.
// REPEATABLE READ is not supported: its snapshot predates the run lock.
func ParseIsolationLevel(level string) sql.IsolationLevel {
	switch level {
	case "serializable":
		return sql.LevelSerializable
	default:
		return sql.LevelReadCommitted
	}
}

// WithinTransaction executes fn within a transaction. The transaction is rolled
// back on error or panic and committed otherwise. Serialization failures and
// deadlocks are retried up to maxAttempts. A call made while a transaction is
// already in the context joins that transaction.
func (tm *TxManager) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return fn(ctx)
	}

	var err error
	for attempt := 1; attempt <= tm.maxAttempts; attempt++ {
		err = tm.runOnce(ctx, fn)
		if err == nil || !IsRetryable(err) || attempt == tm.maxAttempts {
			return err
		}

		metrics.TxRetries.Inc()
		tm.logger.WithFields(logrus.Fields{
			"attempt": attempt,
			"error":   err.Error(),
		}).Warn("Transaction aborted by concurrent writer, retrying")
	}
	return err
}

func (tm *TxManager) runOnce(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	tx, err := tm.db.BeginTxx(ctx, &sql.TxOptions{Isolation: tm.isolation})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// IsRetryable reports whether err carries a serialization or deadlock SQLSTATE
// from either driver.
func IsRetryable(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		code := string(pqErr.Code)
		return code == sqlStateSerializationFailure || code == sqlStateDeadlockDetected
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == sqlStateSerializationFailure || pgErr.Code == sqlStateDeadlockDetected
	}

	return false
}

// executor returns the transaction in ctx, or the pool when there is none
func executor(ctx context.Context, db *sqlx.DB) sqlx.ExtContext {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return db
}
