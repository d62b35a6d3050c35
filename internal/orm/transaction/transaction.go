// Package transaction runs database work in a transaction, retrying when
// the database aborts it over a deadlock or serialization conflict.
package transaction

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

const (
	// DefaultMaxAttempts is the number of tries before giving up
	DefaultMaxAttempts = 3
	// DefaultBaseBackoff is doubled after every failed attempt
	DefaultBaseBackoff = 50 * time.Millisecond
)

// ErrRetriesExhausted wraps the last conflict once every attempt failed
var ErrRetriesExhausted = errors.New("transaction retries exhausted")

// SQLSTATE codes worth retrying
const (
	serializationFailure = "40001"
	deadlockDetected     = "40P01"
)

// RetryConfig bounds the retries of Run
type RetryConfig struct {
	MaxAttempts int
	BaseBackoff time.Duration
	// Options are passed to BeginTx; nil uses the driver default isolation
	Options *sql.TxOptions
}

// DefaultRetryConfig returns the default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxAttempts: DefaultMaxAttempts, BaseBackoff: DefaultBaseBackoff}
}

// Do runs fn once inside a transaction, committing when it returns nil
func Do(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Run calls Do until it succeeds, fails with an error that is not
// retryable, or runs out of attempts. fn must be safe to run again.
func Run(ctx context.Context, db *sql.DB, config RetryConfig, fn func(tx *sql.Tx) error) error {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < config.MaxAttempts; attempt++ {
		if attempt > 0 {
			backoff := config.BaseBackoff * time.Duration(1<<uint(attempt-1))
			select {
			case <-ctx.Done():
				return fmt.Errorf("transaction cancelled during retry: %w", ctx.Err())
			case <-time.After(backoff):
			}
		}

		err := Do(ctx, db, config.Options, fn)
		if err == nil || !IsRetryable(err) {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, config.MaxAttempts, lastErr)
}

// IsRetryable reports deadlocks, serialization failures and SQLite lock
// contention
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == serializationFailure || pgErr.Code == deadlockDetected
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == serializationFailure || string(pqErr.Code) == deadlockDetected
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code == sqlite3.ErrBusy || liteErr.Code == sqlite3.ErrLocked
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "deadlock detected") || strings.Contains(msg, "could not serialize access")
}
