package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// ErrLockTimeout means a statement gave up waiting on a row lock.
// Callers may retry with backoff.
var ErrLockTimeout = errors.New("database lock wait timed out")

// PostgreSQL error codes that indicate contention rather than a bug
const (
	pgLockNotAvailable     = "55P03"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgQueryCanceled        = "57014"
	pgUniqueViolation      = "23505"
)

// WithTx runs fn inside a transaction. lock_timeout is scoped to the
// transaction so a blocked row lock surfaces as ErrLockTimeout instead of hanging.
func WithTx(ctx context.Context, db DB, lockTimeout time.Duration, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return ClassifyError(fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer tx.Rollback()

	if lockTimeout > 0 {
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", lockTimeout.Milliseconds())
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return ClassifyError(fmt.Errorf("failed to set lock timeout: %w", err))
		}
	}

	if err := fn(tx); err != nil {
		return ClassifyError(err)
	}

	if err := tx.Commit(); err != nil {
		return ClassifyError(fmt.Errorf("failed to commit transaction: %w", err))
	}

	return nil
}

// ClassifyError maps lock contention and deadline errors onto ErrLockTimeout
func ClassifyError(err error) error {
	if err == nil || errors.Is(err, ErrLockTimeout) {
		return err
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pgLockNotAvailable, pgSerializationFailure, pgDeadlockDetected, pgQueryCanceled:
			return fmt.Errorf("%w: %w", ErrLockTimeout, err)
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrLockTimeout, err)
	}

	return err
}

// IsUniqueViolation reports whether err is a unique constraint violation
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == pgUniqueViolation
}
