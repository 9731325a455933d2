package idempotency

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ayo6706/remittance-ledger/internal/testutil/memstore"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewStore(rdb, memstore.New(), time.Hour), mr
}

func TestReserveFinalizeReplay(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()
	key := Scope(uuid.New(), "k1")

	_, err := s.Lookup(ctx, key, "h")
	assert.ErrorIs(t, err, ErrNotFound)

	ok, err := s.Reserve(ctx, key, "h", http.MethodPost, "/v1/transfers")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Reserve(ctx, key, "h", http.MethodPost, "/v1/transfers")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Lookup(ctx, key, "h")
	assert.ErrorIs(t, err, ErrInProgress)

	rec, err := s.Finalize(ctx, key, "h", http.StatusCreated, []byte(`{"id":"1"}`), "application/json")
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, rec.Status)
	assert.True(t, mr.Exists(redisKey(key)))

	rec, err = s.Lookup(ctx, key, "h")
	require.NoError(t, err)
	assert.Equal(t, "redis", rec.ServedBy)
	assert.JSONEq(t, `{"id":"1"}`, string(rec.Body))

	_, err = s.Lookup(ctx, key, "other")
	assert.ErrorIs(t, err, ErrHashMismatch)

	mr.FlushAll()
	rec, err = s.Lookup(ctx, key, "h")
	require.NoError(t, err)
	assert.Equal(t, "postgres", rec.ServedBy)
}

func TestReleaseAllowsRetry(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	key := Scope(uuid.New(), "k2")

	ok, err := s.Reserve(ctx, key, "h", http.MethodPost, "/v1/transfers")
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, s.Release(ctx, key, "h"))

	ok, err = s.Reserve(ctx, key, "h", http.MethodPost, "/v1/transfers")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestScopeSeparatesPrincipals(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	ok, err := s.Reserve(ctx, Scope(uuid.New(), "same"), "h1", http.MethodPost, "/v1/transfers")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.Reserve(ctx, Scope(uuid.New(), "same"), "h2", http.MethodPost, "/v1/transfers")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestWaitForCompletion(t *testing.T) {
	s, _ := newTestStore(t)
	s.poll = 5 * time.Millisecond
	ctx := context.Background()
	key := Scope(uuid.New(), "k3")

	_, err := s.Reserve(ctx, key, "h", http.MethodPost, "/v1/transfers")
	require.NoError(t, err)

	go func() {
		time.Sleep(20 * time.Millisecond)
		_, _ = s.Finalize(context.Background(), key, "h", http.StatusOK, []byte(`{}`), "application/json")
	}()

	rec, err := s.WaitForCompletion(ctx, key, "h")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Status)

	timeout, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	other := Scope(uuid.New(), "k4")
	_, err = s.Reserve(ctx, other, "h", http.MethodPost, "/v1/transfers")
	require.NoError(t, err)
	_, err = s.WaitForCompletion(timeout, other, "h")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
