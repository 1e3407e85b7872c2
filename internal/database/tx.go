package database

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"time"
)

type TxOptions struct {
	IsolationLevel sql.IsolationLevel
	ReadOnly       bool
	MaxRetries     int
	BaseBackoff    time.Duration
}

func DefaultTxOptions() TxOptions {
	return TxOptions{
		IsolationLevel: sql.LevelReadCommitted,
		ReadOnly:       false,
		MaxRetries:     3,
		BaseBackoff:    50 * time.Millisecond,
	}
}

// WithTransaction runs fn once inside a transaction, committing on success and
// rolling back on any error.
func WithTransaction(ctx context.Context, db *sql.DB, opts TxOptions, fn func(*sql.Tx) error) error {
	return runTx(ctx, db, opts, fn)
}

// WithRetry behaves like WithTransaction but reruns fn from scratch when the failure is
// a deadlock, serialization failure or lock timeout. fn must not carry state between attempts.
func WithRetry(ctx context.Context, db *sql.DB, opts TxOptions, fn func(*sql.Tx) error) error {
	backoff := opts.BaseBackoff
	if backoff <= 0 {
		backoff = 50 * time.Millisecond
	}

	var err error
	for attempt := 0; attempt <= opts.MaxRetries; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		err = runTx(ctx, db, opts, fn)
		if err == nil || !IsRetryable(err) {
			return err
		}

		if attempt == opts.MaxRetries {
			break
		}

		jitter := time.Duration(rand.Int63n(int64(backoff/4) + 1))
		select {
		case <-time.After(backoff + jitter):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff *= 2
	}

	return fmt.Errorf("max retries (%d) exceeded: %w", opts.MaxRetries, err)
}

func runTx(ctx context.Context, db *sql.DB, opts TxOptions, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, &sql.TxOptions{
		Isolation: opts.IsolationLevel,
		ReadOnly:  opts.ReadOnly,
	})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}
