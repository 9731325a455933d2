package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ayo6706/remittance-ledger/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingExpirer struct {
	calls atomic.Int32
	err   error
}

func (c *countingExpirer) Expire(context.Context) (int, error) {
	c.calls.Add(1)
	return 1, c.err
}

type countingReconciler struct {
	calls atomic.Int32
}

func (c *countingReconciler) Run(context.Context) (service.ReconciliationReport, error) {
	c.calls.Add(1)
	return service.ReconciliationReport{}, nil
}

func TestExpiryWorkerSweepsUntilStopped(t *testing.T) {
	exp := &countingExpirer{}
	w := NewExpiryWorker(exp).WithInterval(5 * time.Millisecond)

	stop := w.Run(context.Background())
	require.Eventually(t, func() bool { return exp.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	stop()
	stop()

	time.Sleep(20 * time.Millisecond)
	settled := exp.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, settled, exp.calls.Load())
}

func TestExpiryWorkerSweepOnceReportsErrors(t *testing.T) {
	exp := &countingExpirer{err: errors.New("db down")}
	n, err := NewExpiryWorker(exp).SweepOnce(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 1, n)
}

func TestExpiryWorkerStopsOnContextCancel(t *testing.T) {
	exp := &countingExpirer{}
	w := NewExpiryWorker(exp).WithInterval(time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
	assert.Zero(t, exp.calls.Load())
}

func TestReconciliationWorkerRunsAtStartup(t *testing.T) {
	rec := &countingReconciler{}
	w := NewReconciliationWorker(rec).WithInterval(time.Hour)
	stop := w.Run(context.Background())
	defer stop()
	require.Eventually(t, func() bool { return rec.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
}
