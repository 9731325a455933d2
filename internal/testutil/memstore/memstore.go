// Package memstore is an in-memory repository.Querier for service and handler tests.
// Transactions are serialized by a single mutex and run against a snapshot that is
// committed only when the callback succeeds, so rollback semantics match Postgres.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ayo6706/remittance-ledger/internal/domain"
	"github.com/ayo6706/remittance-ledger/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

type balanceKey struct {
	account  uuid.UUID
	currency string
}

type state struct {
	accounts  map[uuid.UUID]repository.Account
	balances  map[balanceKey]repository.Balance
	entries   []repository.Entry
	rules     map[uuid.UUID]repository.CommissionRule
	transfers map[uuid.UUID]repository.Transfer
	audit     []repository.InsertAuditLogParams
	offices   map[uuid.UUID]repository.Office
	idem      map[string]repository.IdempotencyKey
	redeem    map[string]repository.RedeemAttempt
}

func newState() *state {
	return &state{
		accounts:  map[uuid.UUID]repository.Account{},
		balances:  map[balanceKey]repository.Balance{},
		rules:     map[uuid.UUID]repository.CommissionRule{},
		transfers: map[uuid.UUID]repository.Transfer{},
		offices:   map[uuid.UUID]repository.Office{},
		idem:      map[string]repository.IdempotencyKey{},
		redeem:    map[string]repository.RedeemAttempt{},
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	for k, v := range s.balances {
		c.balances[k] = v
	}
	c.entries = append([]repository.Entry(nil), s.entries...)
	for k, v := range s.rules {
		c.rules[k] = v
	}
	for k, v := range s.transfers {
		c.transfers[k] = v
	}
	c.audit = append([]repository.InsertAuditLogParams(nil), s.audit...)
	for k, v := range s.offices {
		c.offices[k] = v
	}
	for k, v := range s.idem {
		c.idem[k] = v
	}
	for k, v := range s.redeem {
		c.redeem[k] = v
	}
	return c
}

// Store mirrors repository.Store over process memory.
type Store struct {
	mu    sync.Mutex
	st    *state
	clock func() time.Time
	last  time.Time

	// Retries bounds RunInTx re-execution on retryable errors, like the Postgres store.
	Retries int
	// TxCount counts committed transactions.
	TxCount int
}

// New returns a store seeded with the system pool and escrow accounts.
func New() *Store {
	s := &Store{st: newState(), clock: time.Now, Retries: 3}
	owner := uuid.MustParse(domain.SystemOwnerID)
	for id, kind := range map[string]string{
		domain.SystemPoolAccountID: domain.AccountKindSystemPool,
		domain.EscrowAccountID:     domain.AccountKindEscrow,
	} {
		aid := uuid.MustParse(id)
		s.st.accounts[aid] = repository.Account{ID: aid, OwnerID: owner, Kind: kind, CreatedAt: time.Now().UTC()}
	}
	return s
}

// SetClock replaces the timestamp source used for created_at columns.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock = now
	s.last = time.Time{}
}

// now returns strictly increasing timestamps so ordering by created_at is stable. Caller holds mu.
func (s *Store) now() time.Time {
	t := s.clock().UTC()
	if !t.After(s.last) {
		t = s.last.Add(time.Microsecond)
	}
	s.last = t
	return t
}

// Queries returns an autocommit view.
func (s *Store) Queries() repository.Querier {
	return &Queries{store: s}
}

// RunInTx runs fn against a snapshot and publishes it when fn returns nil.
func (s *Store) RunInTx(ctx context.Context, fn func(q repository.Querier) error) error {
	attempts := s.Retries
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := s.runOnce(fn)
		if err == nil {
			return nil
		}
		if !repository.IsRetryable(err) {
			return err
		}
		lastErr = err
	}
	return domain.Busy(lastErr)
}

func (s *Store) runOnce(fn func(q repository.Querier) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.st.clone()
	if err := fn(&Queries{store: s, tx: snapshot}); err != nil {
		return err
	}
	s.st = snapshot
	s.TxCount++
	return nil
}

// AddOffice registers a directory office.
func (s *Store) AddOffice(o repository.Office) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.offices[o.ID] = o
}

// AuditLogs returns a copy of every audit row written.
func (s *Store) AuditLogs() []repository.InsertAuditLogParams {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]repository.InsertAuditLogParams(nil), s.st.audit...)
}

// Entries returns a copy of the journal in insertion order.
func (s *Store) Entries() []repository.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]repository.Entry(nil), s.st.entries...)
}

// Backdate moves a transfer's created_at, for expiry tests.
func (s *Store) Backdate(id uuid.UUID, createdAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.st.transfers[id]; ok {
		t.CreatedAt = createdAt
		s.st.transfers[id] = t
	}
}

// SetBalanceMicros overwrites a balance row without journaling; used to simulate drift.
func (s *Store) SetBalanceMicros(accountID uuid.UUID, currency string, micros int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := balanceKey{accountID, currency}
	b := s.st.balances[k]
	b.AccountID, b.Currency, b.BalanceMicros = accountID, currency, micros
	s.st.balances[k] = b
}

func uniqueViolation(constraint string) error {
	return &pgconn.PgError{Code: "23505", ConstraintName: constraint, Message: "duplicate key value violates unique constraint"}
}

func page[T any](items []T, limit, offset int32) []T {
	if offset < 0 {
		offset = 0
	}
	if int(offset) >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && int(limit) < len(items) {
		items = items[:limit]
	}
	return items
}

func sortTransfersNewestFirst(ts []repository.Transfer) {
	sort.Slice(ts, func(i, j int) bool {
		if !ts[i].CreatedAt.Equal(ts[j].CreatedAt) {
			return ts[i].CreatedAt.After(ts[j].CreatedAt)
		}
		return ts[i].ID.String() < ts[j].ID.String()
	})
}

func fkViolation(table string) error {
	return &pgconn.PgError{Code: "23503", TableName: table, Message: "violates foreign key constraint"}
}
