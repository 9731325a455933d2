package service

import (
	"context"
	"fmt"

	"github.com/ayo6706/remittance-ledger/internal/domain"
	"github.com/ayo6706/remittance-ledger/internal/observability"
	"go.uber.org/zap"
)

// ReconciliationReport lists every integrity finding of one run.
type ReconciliationReport struct {
	UnbalancedReferences int
	DriftedBalances      int
	EscrowMismatches     int
}

// Balanced reports whether the run found nothing.
func (r ReconciliationReport) Balanced() bool {
	return r.UnbalancedReferences == 0 && r.DriftedBalances == 0 && r.EscrowMismatches == 0
}

// ReconciliationService verifies ledger integrity invariants.
type ReconciliationService struct {
	store  QueryStore
	ledger *BalanceLedger
}

// NewReconciliationService creates a reconciliation service.
func NewReconciliationService(store QueryStore, ledger *BalanceLedger) *ReconciliationService {
	return &ReconciliationService{store: store, ledger: ledger}
}

// Run checks that every ledger reference nets to zero, that each balance equals its journal, and
// that escrow holds exactly what pending transfers owe.
func (s *ReconciliationService) Run(ctx context.Context) (ReconciliationReport, error) {
	var report ReconciliationReport
	queries := s.store.Queries()

	imbalances, err := queries.GetReferenceImbalances(ctx)
	if err != nil {
		return report, fmt.Errorf("run reference imbalance query: %w", err)
	}
	for _, row := range imbalances {
		report.UnbalancedReferences++
		observability.IncrementLedgerImbalance("reference", row.Currency)
		zap.L().Error("CRITICAL: ledger reference does not net to zero",
			zap.String("reference_id", row.ReferenceID.String()),
			zap.String("currency", row.Currency),
			zap.Int64("net_micros", row.NetMicros))
	}

	drifts, err := queries.GetBalanceDrifts(ctx)
	if err != nil {
		return report, fmt.Errorf("run balance drift query: %w", err)
	}
	for _, row := range drifts {
		report.DriftedBalances++
		observability.IncrementLedgerImbalance("balance", row.Currency)
		zap.L().Error("CRITICAL: balance disagrees with journal",
			zap.String("account_id", row.AccountID.String()),
			zap.String("currency", row.Currency),
			zap.Int64("balance_micros", row.BalanceMicros),
			zap.Int64("journal_micros", row.JournalMicros))
	}

	owed, err := queries.SumPendingEscrow(ctx)
	if err != nil {
		return report, fmt.Errorf("run pending escrow query: %w", err)
	}
	held, err := s.ledger.ListBalances(ctx, escrowID)
	if err != nil {
		return report, fmt.Errorf("load escrow balances: %w", err)
	}
	heldBy := map[string]int64{}
	for _, b := range held {
		heldBy[b.Currency] = b.BalanceMicros
	}
	owedBy := map[string]int64{}
	for _, row := range owed {
		owedBy[row.Currency] = row.NetMicros
		observability.SetPendingEscrow(row.Currency, domain.NewMoney(row.NetMicros, row.Currency).ToDecimal().InexactFloat64())
	}
	for currency := range heldBy {
		if _, ok := owedBy[currency]; !ok {
			owedBy[currency] = 0
			observability.SetPendingEscrow(currency, 0)
		}
	}
	for currency, want := range owedBy {
		if got := heldBy[currency]; got != want {
			report.EscrowMismatches++
			observability.IncrementLedgerImbalance("escrow", currency)
			zap.L().Error("CRITICAL: escrow does not match pending transfers",
				zap.String("currency", currency),
				zap.Int64("escrow_micros", got),
				zap.Int64("pending_micros", want))
		}
	}

	if report.Balanced() {
		zap.L().Info("Ledger Balanced")
	}
	return report, nil
}
