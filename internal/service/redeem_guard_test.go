package service

import (
	"context"
	"testing"
	"time"

	"github.com/ayo6706/remittance-ledger/internal/domain"
	"github.com/ayo6706/remittance-ledger/internal/testutil/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedeemGuardWindow(t *testing.T) {
	ctx := context.Background()
	q := memstore.New().Queries()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	g := NewRedeemGuard(2, time.Minute)
	g.now = func() time.Time { return now }

	require.NoError(t, g.Check(ctx, q, "k"))
	require.NoError(t, g.RecordFailure(ctx, q, "k"))
	require.NoError(t, g.Check(ctx, q, "k"))
	require.NoError(t, g.RecordFailure(ctx, q, "k"))
	assert.ErrorIs(t, g.Check(ctx, q, "k"), domain.ErrTooManyAttempts)
	require.NoError(t, g.Check(ctx, q, "other"))

	now = now.Add(time.Minute)
	require.NoError(t, g.Check(ctx, q, "k"))

	require.NoError(t, g.RecordFailure(ctx, q, "k"))
	require.NoError(t, g.RecordFailure(ctx, q, "k"))
	assert.ErrorIs(t, g.Check(ctx, q, "k"), domain.ErrTooManyAttempts)
	require.NoError(t, g.Reset(ctx, q, "k"))
	require.NoError(t, g.Check(ctx, q, "k"))
}

func TestDisabledRedeemGuard(t *testing.T) {
	ctx := context.Background()
	q := memstore.New().Queries()
	g := NewRedeemGuard(0, time.Minute)
	for i := 0; i < 5; i++ {
		require.NoError(t, g.RecordFailure(ctx, q, "k"))
	}
	require.NoError(t, g.Check(ctx, q, "k"))
}
