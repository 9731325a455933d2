package memstore

import (
	"bytes"
	"context"
	"sort"
	"time"

	"github.com/ayo6706/remittance-ledger/internal/domain"
	"github.com/ayo6706/remittance-ledger/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Queries implements repository.Querier. A nil tx means autocommit against the live state.
type Queries struct {
	store *Store
	tx    *state
}

var _ repository.Querier = (*Queries)(nil)

func (q *Queries) begin() (*state, func()) {
	if q.tx != nil {
		return q.tx, func() {}
	}
	q.store.mu.Lock()
	return q.store.st, q.store.mu.Unlock
}

func (q *Queries) GetAccount(_ context.Context, id uuid.UUID) (repository.Account, error) {
	st, done := q.begin()
	defer done()
	a, ok := st.accounts[id]
	if !ok {
		return repository.Account{}, pgx.ErrNoRows
	}
	return a, nil
}

func (q *Queries) GetAccountByOwner(_ context.Context, arg repository.GetAccountByOwnerParams) (repository.Account, error) {
	st, done := q.begin()
	defer done()
	for _, a := range st.accounts {
		if a.OwnerID == arg.OwnerID && a.Kind == arg.Kind {
			return a, nil
		}
	}
	return repository.Account{}, pgx.ErrNoRows
}

func (q *Queries) CreateAccount(_ context.Context, arg repository.CreateAccountParams) (repository.Account, error) {
	st, done := q.begin()
	defer done()
	for _, a := range st.accounts {
		if a.OwnerID == arg.OwnerID && a.Kind == arg.Kind {
			return a, nil
		}
	}
	if _, ok := st.accounts[arg.ID]; ok {
		return repository.Account{}, uniqueViolation("accounts_pkey")
	}
	a := repository.Account{ID: arg.ID, OwnerID: arg.OwnerID, Kind: arg.Kind, CreatedAt: q.store.now()}
	st.accounts[a.ID] = a
	return a, nil
}

func (q *Queries) GetBalance(_ context.Context, arg repository.GetBalanceParams) (repository.Balance, error) {
	st, done := q.begin()
	defer done()
	b, ok := st.balances[balanceKey{arg.AccountID, arg.Currency}]
	if !ok {
		return repository.Balance{}, pgx.ErrNoRows
	}
	return b, nil
}

func (q *Queries) ListBalances(_ context.Context, accountID uuid.UUID) ([]repository.Balance, error) {
	st, done := q.begin()
	defer done()
	var out []repository.Balance
	for k, b := range st.balances {
		if k.account == accountID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Currency < out[j].Currency })
	return out, nil
}

func (q *Queries) LockBalanceForUpdate(_ context.Context, arg repository.GetBalanceParams) (repository.Balance, error) {
	st, done := q.begin()
	defer done()
	if _, ok := st.accounts[arg.AccountID]; !ok {
		return repository.Balance{}, fkViolation("accounts")
	}
	k := balanceKey{arg.AccountID, arg.Currency}
	b, ok := st.balances[k]
	if !ok {
		b = repository.Balance{AccountID: arg.AccountID, Currency: arg.Currency, UpdatedAt: q.store.now()}
		st.balances[k] = b
	}
	return b, nil
}

func (q *Queries) AddToBalance(_ context.Context, arg repository.AddToBalanceParams) (int64, error) {
	st, done := q.begin()
	defer done()
	k := balanceKey{arg.AccountID, arg.Currency}
	b, ok := st.balances[k]
	if !ok {
		return 0, nil
	}
	b.BalanceMicros += arg.DeltaMicros
	b.Version++
	b.UpdatedAt = q.store.now()
	st.balances[k] = b
	return 1, nil
}

func (q *Queries) CreateEntry(_ context.Context, arg repository.CreateEntryParams) (repository.Entry, error) {
	st, done := q.begin()
	defer done()
	e := repository.Entry{
		ID:            arg.ID,
		ReferenceID:   arg.ReferenceID,
		ReferenceKind: arg.ReferenceKind,
		AccountID:     arg.AccountID,
		Currency:      arg.Currency,
		AmountMicros:  arg.AmountMicros,
		Direction:     arg.Direction,
		CreatedAt:     q.store.now(),
	}
	st.entries = append(st.entries, e)
	return e, nil
}

func (q *Queries) ListEntries(_ context.Context, arg repository.ListEntriesParams) ([]repository.Entry, error) {
	st, done := q.begin()
	defer done()
	var out []repository.Entry
	for i := len(st.entries) - 1; i >= 0; i-- {
		if st.entries[i].AccountID == arg.AccountID {
			out = append(out, st.entries[i])
		}
	}
	return page(out, arg.Limit, arg.Offset), nil
}

func signed(e repository.Entry) int64 {
	if e.Direction == domain.DirectionCredit {
		return e.AmountMicros
	}
	return -e.AmountMicros
}

func (q *Queries) GetReferenceImbalances(_ context.Context) ([]repository.ReferenceImbalance, error) {
	st, done := q.begin()
	defer done()
	type key struct {
		ref      uuid.UUID
		currency string
	}
	nets := map[key]int64{}
	for _, e := range st.entries {
		nets[key{e.ReferenceID, e.Currency}] += signed(e)
	}
	var out []repository.ReferenceImbalance
	for k, n := range nets {
		if n != 0 {
			out = append(out, repository.ReferenceImbalance{ReferenceID: k.ref, Currency: k.currency, NetMicros: n})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReferenceID.String() < out[j].ReferenceID.String() })
	return out, nil
}

func (q *Queries) GetBalanceDrifts(_ context.Context) ([]repository.BalanceDrift, error) {
	st, done := q.begin()
	defer done()
	journal := map[balanceKey]int64{}
	for _, e := range st.entries {
		journal[balanceKey{e.AccountID, e.Currency}] += signed(e)
	}
	var out []repository.BalanceDrift
	for k, b := range st.balances {
		if b.BalanceMicros != journal[k] {
			out = append(out, repository.BalanceDrift{AccountID: k.account, Currency: k.currency, BalanceMicros: b.BalanceMicros, JournalMicros: journal[k]})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AccountID != out[j].AccountID {
			return out[i].AccountID.String() < out[j].AccountID.String()
		}
		return out[i].Currency < out[j].Currency
	})
	return out, nil
}

func (q *Queries) SumPendingEscrow(_ context.Context) ([]repository.CurrencyNet, error) {
	st, done := q.begin()
	defer done()
	sums := map[string]int64{}
	for _, t := range st.transfers {
		if t.Status == domain.TransferStatusPending {
			sums[t.Currency] += t.AmountMicros + t.ReceiverCommissionMicros
		}
	}
	out := make([]repository.CurrencyNet, 0, len(sums))
	for c, n := range sums {
		out = append(out, repository.CurrencyNet{Currency: c, NetMicros: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Currency < out[j].Currency })
	return out, nil
}

func (q *Queries) GetActiveCommissionRules(_ context.Context, arg repository.GetActiveCommissionRulesParams) ([]repository.CommissionRule, error) {
	st, done := q.begin()
	defer done()
	scopes := map[string]bool{}
	for _, s := range arg.Scopes {
		scopes[s] = true
	}
	var out []repository.CommissionRule
	for _, r := range st.rules {
		if r.Active && r.TransferType == arg.TransferType && r.Currency == arg.Currency && scopes[r.Scope] {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Party != out[j].Party {
			return out[i].Party < out[j].Party
		}
		return out[i].Scope < out[j].Scope
	})
	return out, nil
}

func (q *Queries) ListCommissionRules(_ context.Context, arg repository.ListCommissionRulesParams) ([]repository.CommissionRule, error) {
	st, done := q.begin()
	defer done()
	var out []repository.CommissionRule
	for _, r := range st.rules {
		if arg.TransferType != nil && r.TransferType != *arg.TransferType {
			continue
		}
		if arg.Currency != nil && r.Currency != *arg.Currency {
			continue
		}
		if arg.ActiveOnly && !r.Active {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch {
		case a.TransferType != b.TransferType:
			return a.TransferType < b.TransferType
		case a.Currency != b.Currency:
			return a.Currency < b.Currency
		case a.Scope != b.Scope:
			return a.Scope < b.Scope
		case a.Party != b.Party:
			return a.Party < b.Party
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
	return page(out, arg.Limit, arg.Offset), nil
}

func (q *Queries) GetCommissionRule(_ context.Context, id uuid.UUID) (repository.CommissionRule, error) {
	st, done := q.begin()
	defer done()
	r, ok := st.rules[id]
	if !ok {
		return repository.CommissionRule{}, pgx.ErrNoRows
	}
	return r, nil
}

func (q *Queries) InsertCommissionRule(_ context.Context, arg repository.InsertCommissionRuleParams) (repository.CommissionRule, error) {
	st, done := q.begin()
	defer done()
	for _, r := range st.rules {
		if r.Active && r.TransferType == arg.TransferType && r.Currency == arg.Currency && r.Scope == arg.Scope && r.Party == arg.Party {
			return repository.CommissionRule{}, uniqueViolation("commission_rules_active_key")
		}
	}
	now := q.store.now()
	r := repository.CommissionRule{
		ID:           arg.ID,
		TransferType: arg.TransferType,
		Currency:     arg.Currency,
		Scope:        arg.Scope,
		Party:        arg.Party,
		Kind:         arg.Kind,
		ValueMicros:  arg.ValueMicros,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	st.rules[r.ID] = r
	return r, nil
}

func (q *Queries) DeactivateCommissionRules(_ context.Context, arg repository.DeactivateCommissionRulesParams) (int64, error) {
	st, done := q.begin()
	defer done()
	var n int64
	for id, r := range st.rules {
		if r.Active && r.TransferType == arg.TransferType && r.Currency == arg.Currency && r.Scope == arg.Scope && r.Party == arg.Party {
			r.Active = false
			r.UpdatedAt = q.store.now()
			st.rules[id] = r
			n++
		}
	}
	return n, nil
}

func (q *Queries) DeactivateCommissionRule(_ context.Context, id uuid.UUID) (int64, error) {
	st, done := q.begin()
	defer done()
	r, ok := st.rules[id]
	if !ok || !r.Active {
		return 0, nil
	}
	r.Active = false
	r.UpdatedAt = q.store.now()
	st.rules[id] = r
	return 1, nil
}

func (q *Queries) InsertTransfer(_ context.Context, arg repository.InsertTransferParams) (repository.Transfer, error) {
	st, done := q.begin()
	defer done()
	if _, ok := st.accounts[arg.SenderAccountID]; !ok {
		return repository.Transfer{}, fkViolation("accounts")
	}
	for _, t := range st.transfers {
		if t.Status == domain.TransferStatusPending && t.TransferCode == arg.TransferCode {
			return repository.Transfer{}, uniqueViolation(repository.PendingTransferCodeIndex)
		}
	}
	t := repository.Transfer{
		ID:                       arg.ID,
		SenderAccountID:          arg.SenderAccountID,
		SenderName:               arg.SenderName,
		ReceiverOfficeID:         arg.ReceiverOfficeID,
		DestinationCountry:       arg.DestinationCountry,
		TransferType:             arg.TransferType,
		Currency:                 arg.Currency,
		AmountMicros:             arg.AmountMicros,
		SystemCommissionMicros:   arg.SystemCommissionMicros,
		ReceiverCommissionMicros: arg.ReceiverCommissionMicros,
		TotalMicros:              arg.TotalMicros,
		TransferCode:             arg.TransferCode,
		ReceiverCode:             arg.ReceiverCode,
		ReceiverName:             arg.ReceiverName,
		ReceiverPhone:            arg.ReceiverPhone,
		Notes:                    arg.Notes,
		Status:                   domain.TransferStatusPending,
		CreatedAt:                q.store.now(),
	}
	st.transfers[t.ID] = t
	return t, nil
}

func (q *Queries) GetTransfer(_ context.Context, id uuid.UUID) (repository.Transfer, error) {
	st, done := q.begin()
	defer done()
	t, ok := st.transfers[id]
	if !ok {
		return repository.Transfer{}, pgx.ErrNoRows
	}
	return t, nil
}

func (q *Queries) GetTransferForUpdate(ctx context.Context, id uuid.UUID) (repository.Transfer, error) {
	return q.GetTransfer(ctx, id)
}

func (q *Queries) GetTransferByCodeForUpdate(_ context.Context, arg repository.GetTransferByCodeParams) (repository.Transfer, error) {
	st, done := q.begin()
	defer done()
	var matches []repository.Transfer
	for _, t := range st.transfers {
		if t.TransferCode == arg.TransferCode && t.ReceiverOfficeID == arg.ReceiverOfficeID {
			matches = append(matches, t)
		}
	}
	if len(matches) == 0 {
		return repository.Transfer{}, pgx.ErrNoRows
	}
	sort.Slice(matches, func(i, j int) bool {
		pi := matches[i].Status == domain.TransferStatusPending
		pj := matches[j].Status == domain.TransferStatusPending
		if pi != pj {
			return pi
		}
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})
	return matches[0], nil
}

func (q *Queries) PendingTransferCodeExists(_ context.Context, code string) (bool, error) {
	st, done := q.begin()
	defer done()
	for _, t := range st.transfers {
		if t.TransferCode == code && t.Status == domain.TransferStatusPending {
			return true, nil
		}
	}
	return false, nil
}

func (q *Queries) UpdateTransferStatus(_ context.Context, arg repository.UpdateTransferStatusParams) (int64, error) {
	st, done := q.begin()
	defer done()
	t, ok := st.transfers[arg.ID]
	if !ok || t.Status != domain.TransferStatusPending {
		return 0, nil
	}
	at := arg.At
	t.Status = arg.Status
	if arg.RedeemedBy != nil {
		by := *arg.RedeemedBy
		t.RedeemedBy = &by
	}
	switch arg.Status {
	case domain.TransferStatusCompleted:
		t.CompletedAt = &at
	case domain.TransferStatusCancelled:
		t.CancelledAt = &at
	case domain.TransferStatusExpired:
		t.ExpiredAt = &at
	}
	st.transfers[arg.ID] = t
	return 1, nil
}

func (q *Queries) ListTransfersForAccount(_ context.Context, arg repository.ListTransfersForAccountParams) ([]repository.Transfer, error) {
	st, done := q.begin()
	defer done()
	var out []repository.Transfer
	for _, t := range st.transfers {
		if t.SenderAccountID == arg.AccountID || (arg.OfficeID != nil && t.ReceiverOfficeID == *arg.OfficeID) {
			out = append(out, t)
		}
	}
	sortTransfersNewestFirst(out)
	return page(out, arg.Limit, arg.Offset), nil
}

func (q *Queries) ListExpirablePendingTransfers(_ context.Context, arg repository.ListExpirablePendingTransfersParams) ([]uuid.UUID, error) {
	st, done := q.begin()
	defer done()
	var due []repository.Transfer
	for _, t := range st.transfers {
		if t.Status == domain.TransferStatusPending && t.CreatedAt.Before(arg.CreatedBefore) &&
			(arg.AfterCreatedAt == nil || afterCursor(t, *arg.AfterCreatedAt, arg.AfterID)) {
			due = append(due, t)
		}
	}
	sort.Slice(due, func(i, j int) bool { return afterCursor(due[j], due[i].CreatedAt, due[i].ID) })
	due = page(due, arg.Limit, 0)
	ids := make([]uuid.UUID, 0, len(due))
	for _, t := range due {
		ids = append(ids, t.ID)
	}
	return ids, nil
}

// afterCursor reports whether t sorts after (createdAt, id), matching Postgres row comparison.
func afterCursor(t repository.Transfer, createdAt time.Time, id uuid.UUID) bool {
	if !t.CreatedAt.Equal(createdAt) {
		return t.CreatedAt.After(createdAt)
	}
	return bytes.Compare(t.ID[:], id[:]) > 0
}

func (q *Queries) InsertAuditLog(_ context.Context, arg repository.InsertAuditLogParams) (int64, error) {
	st, done := q.begin()
	defer done()
	st.audit = append(st.audit, arg)
	return int64(len(st.audit)), nil
}

func (q *Queries) GetOffice(_ context.Context, id uuid.UUID) (repository.Office, error) {
	st, done := q.begin()
	defer done()
	o, ok := st.offices[id]
	if !ok {
		return repository.Office{}, pgx.ErrNoRows
	}
	return o, nil
}

func (q *Queries) GetIdempotencyKey(_ context.Context, key string) (repository.IdempotencyKey, error) {
	st, done := q.begin()
	defer done()
	k, ok := st.idem[key]
	if !ok {
		return repository.IdempotencyKey{}, pgx.ErrNoRows
	}
	return k, nil
}

func (q *Queries) ReserveIdempotencyKey(_ context.Context, arg repository.ReserveIdempotencyKeyParams) (repository.IdempotencyKey, error) {
	st, done := q.begin()
	defer done()
	if _, ok := st.idem[arg.IdempotencyKey]; ok {
		return repository.IdempotencyKey{}, pgx.ErrNoRows
	}
	k := repository.IdempotencyKey{
		IdempotencyKey: arg.IdempotencyKey,
		RequestHash:    arg.RequestHash,
		Method:         arg.Method,
		Path:           arg.Path,
		InProgress:     true,
	}
	st.idem[arg.IdempotencyKey] = k
	return k, nil
}

func (q *Queries) FinalizeIdempotencyKey(_ context.Context, arg repository.FinalizeIdempotencyKeyParams) (repository.IdempotencyKey, error) {
	st, done := q.begin()
	defer done()
	k, ok := st.idem[arg.IdempotencyKey]
	if !ok || k.RequestHash != arg.RequestHash || !k.InProgress {
		return repository.IdempotencyKey{}, pgx.ErrNoRows
	}
	k.ResponseStatus = arg.ResponseStatus
	k.ResponseBody = append([]byte(nil), arg.ResponseBody...)
	k.ContentType = arg.ContentType
	k.InProgress = false
	st.idem[arg.IdempotencyKey] = k
	return k, nil
}

func (q *Queries) ReleaseIdempotencyKey(_ context.Context, arg repository.ReleaseIdempotencyKeyParams) (int64, error) {
	st, done := q.begin()
	defer done()
	k, ok := st.idem[arg.IdempotencyKey]
	if !ok || k.RequestHash != arg.RequestHash || !k.InProgress {
		return 0, nil
	}
	delete(st.idem, arg.IdempotencyKey)
	return 1, nil
}

func (q *Queries) GetRedeemAttempt(_ context.Context, principalKey string) (repository.RedeemAttempt, error) {
	st, done := q.begin()
	defer done()
	a, ok := st.redeem[principalKey]
	if !ok {
		return repository.RedeemAttempt{}, pgx.ErrNoRows
	}
	return a, nil
}

func (q *Queries) RecordRedeemFailure(_ context.Context, arg repository.RecordRedeemFailureParams) (repository.RedeemAttempt, error) {
	st, done := q.begin()
	defer done()
	now := arg.Now.UTC().Truncate(time.Microsecond)
	a, ok := st.redeem[arg.PrincipalKey]
	if !ok || !a.WindowStart.After(now.Add(-arg.Window)) {
		a = repository.RedeemAttempt{PrincipalKey: arg.PrincipalKey, WindowStart: now, Failures: 1}
	} else {
		a.Failures++
	}
	st.redeem[arg.PrincipalKey] = a
	return a, nil
}

func (q *Queries) ClearRedeemAttempts(_ context.Context, principalKey string) error {
	st, done := q.begin()
	defer done()
	delete(st.redeem, principalKey)
	return nil
}
