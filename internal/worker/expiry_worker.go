package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ayo6706/remittance-ledger/internal/observability"
	"go.uber.org/zap"
)

// Expirer reverses pending transfers that outlived their TTL.
type Expirer interface {
	Expire(ctx context.Context) (int, error)
}

// ExpiryWorker sweeps stale pending transfers in the background.
// Safe for concurrent instances thanks to FOR UPDATE SKIP LOCKED.
type ExpiryWorker struct {
	expirer  Expirer
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewExpiryWorker creates a worker that sweeps once a minute.
func NewExpiryWorker(expirer Expirer) *ExpiryWorker {
	return &ExpiryWorker{
		expirer:  expirer,
		interval: time.Minute,
		stopCh:   make(chan struct{}),
	}
}

// WithInterval sets the sweep interval.
func (w *ExpiryWorker) WithInterval(interval time.Duration) *ExpiryWorker {
	if interval > 0 {
		w.interval = interval
	}
	return w
}

// Start runs sweeps until Stop is called or the context is canceled.
func (w *ExpiryWorker) Start(ctx context.Context) {
	zap.L().Info("expiry worker starting", zap.Duration("interval", w.interval))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("expiry worker context canceled")
			return
		case <-w.stopCh:
			zap.L().Info("expiry worker stop signal received")
			return
		case <-ticker.C:
			if _, err := w.SweepOnce(ctx); err != nil && ctx.Err() == nil {
				zap.L().Error("expiry sweep failed", zap.Error(err))
			}
		}
	}
}

// Stop signals the worker to stop.
func (w *ExpiryWorker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
}

// SweepOnce expires a single batch immediately.
func (w *ExpiryWorker) SweepOnce(ctx context.Context) (int, error) {
	n, err := w.expirer.Expire(ctx)
	if err != nil {
		observability.IncrementWorkerRun("expiry", "failed")
		return n, err
	}
	observability.IncrementWorkerRun("expiry", "success")
	return n, nil
}

// Run starts the worker in a goroutine and returns a stop function.
func (w *ExpiryWorker) Run(ctx context.Context) func() {
	go w.Start(ctx)
	return w.Stop
}

func (w *ExpiryWorker) String() string {
	return fmt.Sprintf("ExpiryWorker(interval=%v)", w.interval)
}
