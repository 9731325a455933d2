package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ayo6706/remittance-ledger/internal/domain"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// PendingTransferCodeIndex guards transfer_code uniqueness among pending transfers.
const PendingTransferCodeIndex = "transfers_pending_code_key"

// StoreOptions bounds lock waits and retries inside RunInTx.
type StoreOptions struct {
	LockTimeout   time.Duration
	RetryAttempts int
	BaseDelay     time.Duration
	MaxDelay      time.Duration
	// OnRetry is called before each retry; used for metrics.
	OnRetry func(attempt int, err error)
}

// Store provides access to queries and transaction scoping.
type Store struct {
	db      *pgxpool.Pool
	queries *Queries
	opts    StoreOptions
}

// NewStore creates a store wrapper around a pgx connection pool.
func NewStore(db *pgxpool.Pool, opts StoreOptions) *Store {
	if opts.RetryAttempts <= 0 {
		opts.RetryAttempts = 3
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = 20 * time.Millisecond
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = 500 * time.Millisecond
	}
	return &Store{
		db:      db,
		queries: New(db),
		opts:    opts,
	}
}

// Queries returns the non-transactional query set.
func (s *Store) Queries() Querier {
	return s.queries
}

// RunInTx executes fn within a database transaction. Lock timeouts, deadlocks, serialization
// failures and pending-code collisions retry the whole unit; once attempts run out the caller
// gets domain.ErrBusy.
func (s *Store) RunInTx(ctx context.Context, fn func(q Querier) error) error {
	var lastErr error
	for attempt := 1; attempt <= s.opts.RetryAttempts; attempt++ {
		err := s.runOnce(ctx, fn)
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return err
		}
		lastErr = err
		if attempt == s.opts.RetryAttempts {
			break
		}
		if s.opts.OnRetry != nil {
			s.opts.OnRetry(attempt, err)
		}
		zap.L().Debug("retrying transaction", zap.Int("attempt", attempt), zap.Error(err))
		if err := sleepCtx(ctx, Backoff(attempt, s.opts.BaseDelay, s.opts.MaxDelay)); err != nil {
			return err
		}
	}
	return domain.Busy(lastErr)
}

func (s *Store) runOnce(ctx context.Context, fn func(q Querier) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if s.opts.LockTimeout > 0 {
		// SET does not take bind parameters.
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.opts.LockTimeout.Milliseconds())
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("set lock timeout: %w", err)
		}
	}

	if err := fn(s.queries.WithTx(tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// IsRetryable reports whether err is a transient contention failure.
func IsRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "55P03", "40P01", "40001":
		return true
	case "23505":
		return pgErr.ConstraintName == PendingTransferCodeIndex
	}
	return false
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
