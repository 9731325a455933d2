package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ayo6706/remittance-ledger/internal/domain"
	"github.com/ayo6706/remittance-ledger/internal/repository"
	"github.com/jackc/pgx/v5"
)

// RedeemGuard throttles principals that keep presenting codes that do not resolve. Counters
// live in the redeem_attempts table so every API instance sees the same state.
type RedeemGuard struct {
	maxFailures int
	window      time.Duration
	now         func() time.Time
}

// NewRedeemGuard returns a guard; maxFailures <= 0 disables throttling.
func NewRedeemGuard(maxFailures int, window time.Duration) *RedeemGuard {
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &RedeemGuard{maxFailures: maxFailures, window: window, now: time.Now}
}

func redeemGuardKey(p domain.Principal) string {
	return "redeem:" + p.AccountID.String()
}

// Check fails with TooManyAttempts while the principal is over the limit for the current window.
func (g *RedeemGuard) Check(ctx context.Context, q repository.Querier, key string) error {
	if g == nil || g.maxFailures <= 0 {
		return nil
	}
	a, err := q.GetRedeemAttempt(ctx, key)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("get redeem attempts: %w", err)
	}
	if g.now().Sub(a.WindowStart) >= g.window {
		return nil
	}
	if int(a.Failures) >= g.maxFailures {
		return domain.ErrTooManyAttempts
	}
	return nil
}

// RecordFailure counts one failed redemption. It must run outside the failed transaction.
func (g *RedeemGuard) RecordFailure(ctx context.Context, q repository.Querier, key string) error {
	if g == nil || g.maxFailures <= 0 {
		return nil
	}
	if _, err := q.RecordRedeemFailure(ctx, repository.RecordRedeemFailureParams{
		PrincipalKey: key,
		Now:          g.now(),
		Window:       g.window,
	}); err != nil {
		return fmt.Errorf("record redeem failure: %w", err)
	}
	return nil
}

// Reset clears the counter after a successful redemption.
func (g *RedeemGuard) Reset(ctx context.Context, q repository.Querier, key string) error {
	if g == nil || g.maxFailures <= 0 {
		return nil
	}
	if err := q.ClearRedeemAttempts(ctx, key); err != nil {
		return fmt.Errorf("clear redeem attempts: %w", err)
	}
	return nil
}
