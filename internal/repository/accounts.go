package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

func (q *Queries) GetAccount(ctx context.Context, id uuid.UUID) (Account, error) {
	var a Account
	err := q.db.QueryRow(ctx, `SELECT id, owner_id, kind, created_at FROM accounts WHERE id = $1`, id).
		Scan(&a.ID, &a.OwnerID, &a.Kind, &a.CreatedAt)
	return a, err
}

func (q *Queries) GetAccountByOwner(ctx context.Context, arg GetAccountByOwnerParams) (Account, error) {
	var a Account
	err := q.db.QueryRow(ctx, `SELECT id, owner_id, kind, created_at FROM accounts WHERE owner_id = $1 AND kind = $2`, arg.OwnerID, arg.Kind).
		Scan(&a.ID, &a.OwnerID, &a.Kind, &a.CreatedAt)
	return a, err
}

// CreateAccount inserts the account, or returns the existing one for (owner_id, kind).
func (q *Queries) CreateAccount(ctx context.Context, arg CreateAccountParams) (Account, error) {
	var a Account
	err := q.db.QueryRow(ctx, `
		INSERT INTO accounts (id, owner_id, kind, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (owner_id, kind) DO UPDATE SET kind = EXCLUDED.kind
		RETURNING id, owner_id, kind, created_at`,
		arg.ID, arg.OwnerID, arg.Kind).
		Scan(&a.ID, &a.OwnerID, &a.Kind, &a.CreatedAt)
	return a, err
}

func (q *Queries) GetBalance(ctx context.Context, arg GetBalanceParams) (Balance, error) {
	var b Balance
	err := q.db.QueryRow(ctx, `
		SELECT account_id, currency, balance_micros, version, updated_at
		FROM balances WHERE account_id = $1 AND currency = $2`, arg.AccountID, arg.Currency).
		Scan(&b.AccountID, &b.Currency, &b.BalanceMicros, &b.Version, &b.UpdatedAt)
	return b, err
}

func (q *Queries) ListBalances(ctx context.Context, accountID uuid.UUID) ([]Balance, error) {
	rows, err := q.db.Query(ctx, `
		SELECT account_id, currency, balance_micros, version, updated_at
		FROM balances WHERE account_id = $1 ORDER BY currency`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Balance
	for rows.Next() {
		var b Balance
		if err := rows.Scan(&b.AccountID, &b.Currency, &b.BalanceMicros, &b.Version, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan balance: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// LockBalanceForUpdate creates the zero row when absent and locks it for the rest of the transaction.
func (q *Queries) LockBalanceForUpdate(ctx context.Context, arg GetBalanceParams) (Balance, error) {
	if _, err := q.db.Exec(ctx, `
		INSERT INTO balances (account_id, currency, balance_micros, version, updated_at)
		VALUES ($1, $2, 0, 0, NOW())
		ON CONFLICT (account_id, currency) DO NOTHING`, arg.AccountID, arg.Currency); err != nil {
		return Balance{}, err
	}
	var b Balance
	err := q.db.QueryRow(ctx, `
		SELECT account_id, currency, balance_micros, version, updated_at
		FROM balances WHERE account_id = $1 AND currency = $2
		FOR UPDATE`, arg.AccountID, arg.Currency).
		Scan(&b.AccountID, &b.Currency, &b.BalanceMicros, &b.Version, &b.UpdatedAt)
	return b, err
}

func (q *Queries) AddToBalance(ctx context.Context, arg AddToBalanceParams) (int64, error) {
	tag, err := q.db.Exec(ctx, `
		UPDATE balances
		SET balance_micros = balance_micros + $3, version = version + 1, updated_at = NOW()
		WHERE account_id = $1 AND currency = $2`, arg.AccountID, arg.Currency, arg.DeltaMicros)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (q *Queries) GetOffice(ctx context.Context, id uuid.UUID) (Office, error) {
	var o Office
	err := q.db.QueryRow(ctx, `SELECT id, name, country, accepted_currencies, active FROM offices WHERE id = $1`, id).
		Scan(&o.ID, &o.Name, &o.Country, &o.AcceptedCurrencies, &o.Active)
	return o, err
}

func collectRows[T any](rows pgx.Rows, scan func(pgx.Rows) (T, error)) ([]T, error) {
	defer rows.Close()
	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
