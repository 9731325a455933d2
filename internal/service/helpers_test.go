package service

import (
	"context"
	"testing"
	"time"

	"github.com/ayo6706/remittance-ledger/internal/directory"
	"github.com/ayo6706/remittance-ledger/internal/directory/mocks"
	"github.com/ayo6706/remittance-ledger/internal/domain"
	"github.com/ayo6706/remittance-ledger/internal/testutil/memstore"
	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type harness struct {
	store       *memstore.Store
	dir         *mocks.MockDirectory
	ledger      *BalanceLedger
	commissions *CommissionService
	transfers   *TransferService
	accounts    *AccountService
	recon       *ReconciliationService
	admin       domain.Principal
}

type harnessOption func(*harnessConfig)

type harnessConfig struct {
	transfer    TransferConfig
	codes       *CodeGenerator
	maxFailures int
}

func withTransferConfig(fn func(*TransferConfig)) harnessOption {
	return func(c *harnessConfig) { fn(&c.transfer) }
}

func withCodes(g *CodeGenerator) harnessOption {
	return func(c *harnessConfig) { c.codes = g }
}

func withRedeemLimit(n int) harnessOption {
	return func(c *harnessConfig) { c.maxFailures = n }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	cfg := harnessConfig{
		transfer: TransferConfig{TTL: 720 * time.Hour, HomeCountry: "LY", ExpiryBatchSize: 10},
		codes:    NewCodeGenerator(nil, 5),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	store := memstore.New()
	ctrl := gomock.NewController(t)
	dir := mocks.NewMockDirectory(ctrl)
	ledger := NewBalanceLedger(store)
	commissions := NewCommissionService(store, decimal.NewFromInt(1))
	transfers := NewTransferService(store, ledger, commissions, dir, cfg.codes, NewRedeemGuard(cfg.maxFailures, time.Hour), cfg.transfer)

	return &harness{
		store:       store,
		dir:         dir,
		ledger:      ledger,
		commissions: commissions,
		transfers:   transfers,
		accounts:    NewAccountService(store, ledger),
		recon:       NewReconciliationService(store, ledger),
		admin:       domain.Principal{AccountID: uuid.New(), Role: domain.RoleAdmin, Name: "ops", Active: true},
	}
}

func (h *harness) office(country string, active bool, currencies ...string) uuid.UUID {
	id := uuid.New()
	h.dir.EXPECT().Office(gomock.Any(), id).Return(directory.Office{
		ID:                 id,
		Name:               "Office " + country,
		Country:            country,
		AcceptedCurrencies: currencies,
		Active:             active,
	}, nil).AnyTimes()
	return id
}

func (h *harness) unknownOffice() uuid.UUID {
	id := uuid.New()
	h.dir.EXPECT().Office(gomock.Any(), id).Return(directory.Office{}, &domain.Error{Code: domain.CodeNotFound, Message: "office not found"}).AnyTimes()
	return id
}

func user(name string) domain.Principal {
	return domain.Principal{AccountID: uuid.New(), Role: domain.RoleUser, Name: name, Active: true}
}

func agent(name string, officeID uuid.UUID) domain.Principal {
	return domain.Principal{AccountID: uuid.New(), OfficeID: &officeID, Role: domain.RoleAgent, Name: name, Active: true}
}

func (h *harness) fund(t *testing.T, p domain.Principal, amount, currency string) {
	t.Helper()
	_, err := h.accounts.Deposit(context.Background(), h.admin, p.AccountID, decimal.RequireFromString(amount), currency, "test funding")
	require.NoError(t, err)
}

func (h *harness) balance(t *testing.T, accountID uuid.UUID, currency string) string {
	t.Helper()
	m, err := h.ledger.GetBalance(context.Background(), accountID, currency)
	require.NoError(t, err)
	return m.Fixed()
}

func (h *harness) rule(t *testing.T, transferType, currency, scope, party, kind, value string) {
	t.Helper()
	_, err := h.commissions.UpsertRule(context.Background(), h.admin.AccountID, RuleInput{
		TransferType: transferType,
		Currency:     currency,
		Scope:        scope,
		Party:        party,
		Kind:         kind,
		Value:        decimal.RequireFromString(value),
	})
	require.NoError(t, err)
}

func (h *harness) create(t *testing.T, sender domain.Principal, officeID uuid.UUID, country, amount, currency string) (CreateTransferRequest, error) {
	t.Helper()
	req := CreateTransferRequest{
		DestinationCountry: country,
		ReceiverOfficeID:   officeID,
		Amount:             decimal.RequireFromString(amount),
		Currency:           currency,
		ReceiverName:       "Salma",
		ReceiverPhone:      "+21891000000",
	}
	_, err := h.transfers.Create(context.Background(), sender, req)
	return req, err
}

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}
