package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce            sync.Once
	httpDurationHistogram   *prometheus.HistogramVec
	ledgerImbalanceCounter  *prometheus.CounterVec
	idempotencyCounter      *prometheus.CounterVec
	transferCounter         *prometheus.CounterVec
	transferTransitionCount *prometheus.CounterVec
	pendingEscrowGauge      *prometheus.GaugeVec
	txRetryCounter          *prometheus.CounterVec
	redeemRejectCounter     *prometheus.CounterVec
	workerRunCounter        *prometheus.CounterVec
)

// Init registers all Prometheus collectors.
func Init() {
	registerOnce.Do(func() {
		httpDurationHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"})

		ledgerImbalanceCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_imbalance_total",
			Help: "Reconciliation findings by kind and currency",
		}, []string{"kind", "currency"})

		idempotencyCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "idempotency_events_total",
			Help: "Idempotency middleware outcomes",
		}, []string{"outcome"})

		transferCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "transfers_created_total",
			Help: "Transfers created by type and currency",
		}, []string{"type", "currency"})

		transferTransitionCount = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "transfer_transitions_total",
			Help: "Transfer state transitions",
		}, []string{"from", "to"})

		pendingEscrowGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "transfers_pending_escrow",
			Help: "Funds held in escrow for pending transfers, in currency units",
		}, []string{"currency"})

		txRetryCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "db_transaction_retries_total",
			Help: "Transactions retried after lock contention",
		}, []string{"attempt"})

		redeemRejectCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "transfer_redeem_rejections_total",
			Help: "Rejected redemption attempts",
		}, []string{"reason"})

		workerRunCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_runs_total",
			Help: "Background worker run outcomes",
		}, []string{"worker", "result"})

		prometheus.MustRegister(
			httpDurationHistogram,
			ledgerImbalanceCounter,
			idempotencyCounter,
			transferCounter,
			transferTransitionCount,
			pendingEscrowGauge,
			txRetryCounter,
			redeemRejectCounter,
			workerRunCounter,
		)
	})
}

func ObserveHTTP(method, path string, status int, duration time.Duration) {
	if httpDurationHistogram == nil {
		return
	}
	httpDurationHistogram.WithLabelValues(method, path, strconv.Itoa(status)).Observe(duration.Seconds())
}

func IncrementLedgerImbalance(kind, currency string) {
	if ledgerImbalanceCounter == nil {
		return
	}
	ledgerImbalanceCounter.WithLabelValues(kind, currency).Inc()
}

func IncrementIdempotencyEvent(outcome string) {
	if idempotencyCounter == nil {
		return
	}
	idempotencyCounter.WithLabelValues(outcome).Inc()
}

func IncrementTransferCreated(transferType, currency string) {
	if transferCounter == nil {
		return
	}
	transferCounter.WithLabelValues(transferType, currency).Inc()
}

func IncrementTransferTransition(from, to string) {
	if transferTransitionCount == nil {
		return
	}
	transferTransitionCount.WithLabelValues(from, to).Inc()
}

func SetPendingEscrow(currency string, amount float64) {
	if pendingEscrowGauge == nil {
		return
	}
	pendingEscrowGauge.WithLabelValues(currency).Set(amount)
}

func IncrementTxRetry(attempt int) {
	if txRetryCounter == nil {
		return
	}
	txRetryCounter.WithLabelValues(strconv.Itoa(attempt)).Inc()
}

func IncrementRedeemRejection(reason string) {
	if redeemRejectCounter == nil {
		return
	}
	redeemRejectCounter.WithLabelValues(reason).Inc()
}

func IncrementWorkerRun(worker, result string) {
	if workerRunCounter == nil {
		return
	}
	workerRunCounter.WithLabelValues(worker, result).Inc()
}
