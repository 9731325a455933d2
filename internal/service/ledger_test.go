package service

import (
	"context"
	"math"
	"testing"

	"github.com/ayo6706/remittance-ledger/internal/domain"
	"github.com/ayo6706/remittance-ledger/internal/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyIsAllOrNothing(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a, b := user("A"), user("B")
	h.fund(t, a, "10", "LYD")
	h.fund(t, b, "1", "LYD")
	entries := len(h.store.Entries())

	ref := Reference{ID: uuid.New(), Kind: domain.ReferenceKindInternal}
	err := h.store.RunInTx(ctx, func(qtx repository.Querier) error {
		return h.ledger.Apply(ctx, qtx, ref,
			Debit(a.AccountID, domain.NewMoney(5_000_000, "LYD")),
			Credit(b.AccountID, domain.NewMoney(5_000_000, "LYD")),
			Debit(b.AccountID, domain.NewMoney(7_000_000, "LYD")),
		)
	})
	assert.Equal(t, domain.CodeInsufficientFunds, domain.CodeOf(err))
	assert.Len(t, h.store.Entries(), entries)
	assert.Equal(t, "10.000", h.balance(t, a.AccountID, "LYD"))
	assert.Equal(t, "1.000", h.balance(t, b.AccountID, "LYD"))
}

func TestApplyNetsLegsPerBalance(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a, b := user("A"), user("B")
	h.fund(t, a, "10", "LYD")
	h.fund(t, b, "1", "LYD")

	ref := Reference{ID: uuid.New(), Kind: domain.ReferenceKindInternal}
	err := h.store.RunInTx(ctx, func(qtx repository.Querier) error {
		return h.ledger.Apply(ctx, qtx, ref,
			Debit(a.AccountID, domain.NewMoney(4_000_000, "LYD")),
			Credit(b.AccountID, domain.NewMoney(4_000_000, "LYD")),
			Debit(b.AccountID, domain.NewMoney(1_000_000, "LYD")),
			Credit(a.AccountID, domain.NewMoney(1_000_000, "LYD")),
		)
	})
	require.NoError(t, err)
	assert.Equal(t, "7.000", h.balance(t, a.AccountID, "LYD"))
	assert.Equal(t, "4.000", h.balance(t, b.AccountID, "LYD"))

	var net int64
	for _, e := range h.store.Entries() {
		if e.ReferenceID != ref.ID {
			continue
		}
		if e.Direction == domain.DirectionDebit {
			net -= e.AmountMicros
		} else {
			net += e.AmountMicros
		}
	}
	assert.Zero(t, net)
}

func TestApplyUnknownAccount(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	err := h.store.RunInTx(ctx, func(qtx repository.Querier) error {
		return h.ledger.Credit(ctx, qtx, Reference{ID: uuid.New(), Kind: domain.ReferenceKindInternal}, uuid.New(), domain.NewMoney(1, "LYD"))
	})
	assert.Equal(t, domain.CodeNotFound, domain.CodeOf(err))
}

func TestCurrenciesAreIndependent(t *testing.T) {
	h := newHarness(t)
	a := user("A")
	h.fund(t, a, "10", "LYD")
	h.fund(t, a, "3.5", "USD")

	assert.Equal(t, "10.000", h.balance(t, a.AccountID, "LYD"))
	assert.Equal(t, "3.50", h.balance(t, a.AccountID, "USD"))
	assert.Equal(t, "0.000", h.balance(t, a.AccountID, "TND"))

	_, err := h.ledger.GetBalance(context.Background(), uuid.New(), "LYD")
	assert.Equal(t, domain.CodeNotFound, domain.CodeOf(err))
	_, err = h.ledger.GetBalance(context.Background(), a.AccountID, "ABC")
	assert.Equal(t, domain.CodeValidation, domain.CodeOf(err))
}

func TestDepositRules(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := user("A")

	_, err := h.accounts.Deposit(ctx, a, a.AccountID, decimal.NewFromInt(5), "LYD", "")
	assert.Equal(t, domain.CodeForbidden, domain.CodeOf(err))
	_, err = h.accounts.Deposit(ctx, h.admin, escrowID, decimal.NewFromInt(5), "LYD", "")
	assert.Equal(t, domain.CodeValidation, domain.CodeOf(err))
	_, err = h.accounts.Deposit(ctx, h.admin, a.AccountID, decimal.NewFromInt(-5), "LYD", "")
	assert.Equal(t, domain.CodeValidation, domain.CodeOf(err))

	bal, err := h.accounts.Deposit(ctx, h.admin, a.AccountID, decimal.NewFromInt(5), "lyd", "counter cash")
	require.NoError(t, err)
	assert.Equal(t, "5.000", bal.Fixed())
	assert.Equal(t, "-5.000", h.balance(t, systemPoolID, "LYD"))
}

func TestDepositRejectsOutOfRangeAmounts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := user("A")

	_, err := h.accounts.Deposit(ctx, h.admin, a.AccountID, decimal.RequireFromString("20000000000000"), "USD", "")
	assert.Equal(t, domain.CodeValidation, domain.CodeOf(err))
	assert.Empty(t, h.store.Entries())
	assert.Equal(t, "0.00", h.balance(t, systemPoolID, "USD"))
}

func TestApplyRejectsBalanceOverflow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := user("A")
	h.fund(t, a, "1", "USD")
	h.store.SetBalanceMicros(a.AccountID, "USD", math.MaxInt64-1_000_000)
	entries := len(h.store.Entries())

	ref := Reference{ID: uuid.New(), Kind: domain.ReferenceKindDeposit}
	err := h.store.RunInTx(ctx, func(qtx repository.Querier) error {
		return h.ledger.Move(ctx, qtx, ref, systemPoolID, a.AccountID, domain.NewMoney(2_000_000, "USD"))
	})
	assert.Equal(t, domain.CodeValidation, domain.CodeOf(err))
	assert.Len(t, h.store.Entries(), entries)

	err = h.store.RunInTx(ctx, func(qtx repository.Querier) error {
		return h.ledger.Apply(ctx, qtx, ref,
			Credit(a.AccountID, domain.NewMoney(math.MaxInt64, "USD")),
			Credit(a.AccountID, domain.NewMoney(1, "USD")),
		)
	})
	assert.Equal(t, domain.CodeValidation, domain.CodeOf(err))
	assert.Len(t, h.store.Entries(), entries)
}

func TestAccountAccess(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a, b := user("A"), user("B")
	h.fund(t, a, "10", "LYD")

	_, err := h.accounts.GetBalances(ctx, b, a.AccountID)
	assert.Equal(t, domain.CodeForbidden, domain.CodeOf(err))

	rows, err := h.accounts.GetBalances(ctx, b, b.AccountID)
	require.NoError(t, err)
	assert.Empty(t, rows)

	rows, err = h.accounts.GetBalances(ctx, h.admin, a.AccountID)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	_, err = h.accounts.GetBalances(ctx, h.admin, uuid.New())
	assert.Equal(t, domain.CodeNotFound, domain.CodeOf(err))
}

func TestStatementPaging(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := user("A")
	for i := 0; i < 3; i++ {
		h.fund(t, a, "1", "LYD")
	}

	first, err := h.accounts.GetStatement(ctx, a, a.AccountID, 1, 2)
	require.NoError(t, err)
	assert.Len(t, first, 2)
	second, err := h.accounts.GetStatement(ctx, a, a.AccountID, 2, 2)
	require.NoError(t, err)
	assert.Len(t, second, 1)
	for _, e := range append(first, second...) {
		assert.Equal(t, domain.DirectionCredit, e.Direction)
		assert.Equal(t, int64(1_000_000), e.AmountMicros)
	}
}
