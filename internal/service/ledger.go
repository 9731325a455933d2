package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/ayo6706/remittance-ledger/internal/domain"
	"github.com/ayo6706/remittance-ledger/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

var (
	systemPoolID = uuid.MustParse(domain.SystemPoolAccountID)
	escrowID     = uuid.MustParse(domain.EscrowAccountID)
)

// Leg is one signed balance change. Negative deltas debit, positive deltas credit.
type Leg struct {
	AccountID   uuid.UUID
	Currency    string
	DeltaMicros int64
}

// Debit returns a leg taking m from account.
func Debit(account uuid.UUID, m domain.Money) Leg {
	return Leg{AccountID: account, Currency: m.Currency, DeltaMicros: -m.Amount}
}

// Credit returns a leg adding m to account.
func Credit(account uuid.UUID, m domain.Money) Leg {
	return Leg{AccountID: account, Currency: m.Currency, DeltaMicros: m.Amount}
}

// Reference ties journal entries written by one unit of work together.
type Reference struct {
	ID   uuid.UUID
	Kind string
}

// BalanceLedger owns per-account, per-currency balances and their journal.
type BalanceLedger struct {
	store QueryStore
	audit *AuditService
}

func NewBalanceLedger(store QueryStore) *BalanceLedger {
	return &BalanceLedger{store: store, audit: NewAuditService()}
}

// GetBalance returns the balance of accountID in currency; a currency never touched reads as zero.
func (l *BalanceLedger) GetBalance(ctx context.Context, accountID uuid.UUID, currency string) (domain.Money, error) {
	currency, err := domain.NormalizeCurrency(currency)
	if err != nil {
		return domain.Money{}, err
	}
	queries := l.store.Queries()
	if _, err := queries.GetAccount(ctx, accountID); err != nil {
		return domain.Money{}, notFoundOr(err, "account")
	}
	row, err := queries.GetBalance(ctx, repository.GetBalanceParams{AccountID: accountID, Currency: currency})
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.NewMoney(0, currency), nil
	}
	if err != nil {
		return domain.Money{}, fmt.Errorf("get balance: %w", err)
	}
	return domain.NewMoney(row.BalanceMicros, row.Currency), nil
}

// ListBalances returns every currency balance held by accountID.
func (l *BalanceLedger) ListBalances(ctx context.Context, accountID uuid.UUID) ([]repository.Balance, error) {
	queries := l.store.Queries()
	if _, err := queries.GetAccount(ctx, accountID); err != nil {
		return nil, notFoundOr(err, "account")
	}
	rows, err := queries.ListBalances(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("list balances: %w", err)
	}
	return rows, nil
}

// ListEntries pages through the journal of accountID, newest first.
func (l *BalanceLedger) ListEntries(ctx context.Context, accountID uuid.UUID, limit, offset int32) ([]repository.Entry, error) {
	rows, err := l.store.Queries().ListEntries(ctx, repository.ListEntriesParams{AccountID: accountID, Limit: limit, Offset: offset})
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return rows, nil
}

// Debit takes m from account inside the caller's transaction.
func (l *BalanceLedger) Debit(ctx context.Context, qtx repository.Querier, ref Reference, account uuid.UUID, m domain.Money) error {
	return l.Apply(ctx, qtx, ref, Debit(account, m))
}

// Credit adds m to account inside the caller's transaction, creating the balance row if needed.
func (l *BalanceLedger) Credit(ctx context.Context, qtx repository.Querier, ref Reference, account uuid.UUID, m domain.Money) error {
	return l.Apply(ctx, qtx, ref, Credit(account, m))
}

// Move debits from and credits to atomically.
func (l *BalanceLedger) Move(ctx context.Context, qtx repository.Querier, ref Reference, from, to uuid.UUID, m domain.Money) error {
	return l.Apply(ctx, qtx, ref, Debit(from, m), Credit(to, m))
}

type balanceKey struct {
	account  uuid.UUID
	currency string
}

// Apply performs all legs or none. Rows are locked in (account, currency) order so concurrent
// multi-leg moves cannot deadlock; any non-pool balance that would go negative aborts with
// InsufficientFunds, and any sum that would leave int64 aborts with ValidationError, before
// anything is written.
func (l *BalanceLedger) Apply(ctx context.Context, qtx repository.Querier, ref Reference, legs ...Leg) error {
	net := map[balanceKey]int64{}
	var ordered []balanceKey
	for _, leg := range legs {
		if leg.DeltaMicros == 0 {
			continue
		}
		k := balanceKey{leg.AccountID, leg.Currency}
		if _, seen := net[k]; !seen {
			ordered = append(ordered, k)
		}
		sum, ok := domain.AddMicros(net[k], leg.DeltaMicros)
		if !ok {
			return domain.Validationf("posting for %s is out of range", k.currency)
		}
		net[k] = sum
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].account != ordered[j].account {
			return ordered[i].account.String() < ordered[j].account.String()
		}
		return ordered[i].currency < ordered[j].currency
	})

	for _, k := range ordered {
		bal, err := qtx.LockBalanceForUpdate(ctx, repository.GetBalanceParams{AccountID: k.account, Currency: k.currency})
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23503" {
				return &domain.Error{Code: domain.CodeNotFound, Message: "account not found"}
			}
			return fmt.Errorf("lock balance %s/%s: %w", k.account, k.currency, err)
		}
		next, ok := domain.AddMicros(bal.BalanceMicros, net[k])
		if !ok {
			return domain.Validationf("%s balance would be out of range", k.currency)
		}
		if k.account != systemPoolID && next < 0 {
			return &domain.Error{
				Code:    domain.CodeInsufficientFunds,
				Message: fmt.Sprintf("insufficient %s balance", k.currency),
			}
		}
	}

	for _, k := range ordered {
		delta := net[k]
		if delta == 0 {
			continue
		}
		rows, err := qtx.AddToBalance(ctx, repository.AddToBalanceParams{AccountID: k.account, Currency: k.currency, DeltaMicros: delta})
		if err != nil {
			return fmt.Errorf("update balance: %w", err)
		}
		if err := requireExactlyOne(rows, "update balance"); err != nil {
			return err
		}

		direction, amount := domain.DirectionCredit, delta
		if delta < 0 {
			direction, amount = domain.DirectionDebit, -delta
		}
		if _, err := qtx.CreateEntry(ctx, repository.CreateEntryParams{
			ID:            uuid.New(),
			ReferenceID:   ref.ID,
			ReferenceKind: ref.Kind,
			AccountID:     k.account,
			Currency:      k.currency,
			AmountMicros:  amount,
			Direction:     direction,
		}); err != nil {
			return fmt.Errorf("create %s entry: %w", direction, err)
		}
	}
	return nil
}

// Deposit funds accountID from the system pool. The pool may go negative; it represents cash
// taken in at an office counter.
func (l *BalanceLedger) Deposit(ctx context.Context, actorID uuid.UUID, accountID uuid.UUID, m domain.Money, note string) (domain.Money, error) {
	if m.Amount <= 0 {
		return domain.Money{}, domain.Validationf("amount must be greater than zero")
	}
	if accountID == systemPoolID || accountID == escrowID {
		return domain.Money{}, domain.Validationf("system accounts cannot receive deposits")
	}

	ref := Reference{ID: uuid.New(), Kind: domain.ReferenceKindDeposit}
	var balance domain.Money
	err := l.store.RunInTx(ctx, func(qtx repository.Querier) error {
		if _, err := l.EnsureUserAccount(ctx, qtx, accountID); err != nil {
			return err
		}
		if err := l.Move(ctx, qtx, ref, systemPoolID, accountID, m); err != nil {
			return err
		}
		row, err := qtx.GetBalance(ctx, repository.GetBalanceParams{AccountID: accountID, Currency: m.Currency})
		if err != nil {
			return fmt.Errorf("read balance: %w", err)
		}
		balance = domain.NewMoney(row.BalanceMicros, row.Currency)

		metadata, _ := json.Marshal(map[string]string{"amount": m.Fixed(), "currency": m.Currency, "note": note})
		return l.audit.Write(ctx, qtx, "account", accountID, &actorID, "DEPOSIT", "", "", metadata)
	})
	if err != nil {
		return domain.Money{}, err
	}

	zap.L().Info("deposit posted",
		zap.String("account_id", accountID.String()),
		zap.String("amount", m.String()),
		zap.String("reference_id", ref.ID.String()))
	return balance, nil
}

// EnsureUserAccount returns accountID, opening it as a user wallet on first use.
func (l *BalanceLedger) EnsureUserAccount(ctx context.Context, qtx repository.Querier, accountID uuid.UUID) (repository.Account, error) {
	acct, err := qtx.GetAccount(ctx, accountID)
	if err == nil {
		return acct, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return repository.Account{}, fmt.Errorf("get account: %w", err)
	}
	acct, err = qtx.CreateAccount(ctx, repository.CreateAccountParams{ID: accountID, OwnerID: accountID, Kind: domain.AccountKindUser})
	if err != nil {
		return repository.Account{}, fmt.Errorf("open user account: %w", err)
	}
	return acct, nil
}

// OfficeAccount returns the settlement account of officeID, creating it on first use.
func (l *BalanceLedger) OfficeAccount(ctx context.Context, qtx repository.Querier, officeID uuid.UUID) (repository.Account, error) {
	acct, err := qtx.GetAccountByOwner(ctx, repository.GetAccountByOwnerParams{OwnerID: officeID, Kind: domain.AccountKindAgentOffice})
	if err == nil {
		return acct, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return repository.Account{}, fmt.Errorf("get office account: %w", err)
	}
	acct, err = qtx.CreateAccount(ctx, repository.CreateAccountParams{ID: uuid.New(), OwnerID: officeID, Kind: domain.AccountKindAgentOffice})
	if err != nil {
		return repository.Account{}, fmt.Errorf("open office account: %w", err)
	}
	return acct, nil
}
