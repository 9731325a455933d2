package service

import (
	"context"
	"testing"

	"github.com/ayo6706/remittance-ledger/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconciliationDetectsDriftAndEscrowMismatch(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.rule(t, "international", "LYD", domain.ScopeSystem, "system", "Fixed", "1")
	office := h.office("TN", true, "LYD")
	sender := user("Ali")
	h.fund(t, sender, "100", "LYD")
	_, err := h.transfers.Create(ctx, sender, CreateTransferRequest{
		DestinationCountry: "TN", ReceiverOfficeID: office, Amount: decimal.RequireFromString("30"), Currency: "LYD", ReceiverName: "Salma",
	})
	require.NoError(t, err)

	report, err := h.recon.Run(ctx)
	require.NoError(t, err)
	assert.True(t, report.Balanced())

	h.store.SetBalanceMicros(sender.AccountID, "LYD", 1)
	h.store.SetBalanceMicros(escrowID, "LYD", 29_000_000)

	report, err = h.recon.Run(ctx)
	require.NoError(t, err)
	assert.False(t, report.Balanced())
	assert.Equal(t, 2, report.DriftedBalances)
	assert.Equal(t, 1, report.EscrowMismatches)
	assert.Zero(t, report.UnbalancedReferences)
}
