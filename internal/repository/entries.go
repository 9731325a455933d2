package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
)

func (q *Queries) CreateEntry(ctx context.Context, arg CreateEntryParams) (Entry, error) {
	var e Entry
	err := q.db.QueryRow(ctx, `
		INSERT INTO entries (id, reference_id, reference_kind, account_id, currency, amount_micros, direction, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING id, reference_id, reference_kind, account_id, currency, amount_micros, direction, created_at`,
		arg.ID, arg.ReferenceID, arg.ReferenceKind, arg.AccountID, arg.Currency, arg.AmountMicros, arg.Direction).
		Scan(&e.ID, &e.ReferenceID, &e.ReferenceKind, &e.AccountID, &e.Currency, &e.AmountMicros, &e.Direction, &e.CreatedAt)
	return e, err
}

func (q *Queries) ListEntries(ctx context.Context, arg ListEntriesParams) ([]Entry, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, reference_id, reference_kind, account_id, currency, amount_micros, direction, created_at
		FROM entries
		WHERE account_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3`, arg.AccountID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	return collectRows(rows, func(r pgx.Rows) (Entry, error) {
		var e Entry
		err := r.Scan(&e.ID, &e.ReferenceID, &e.ReferenceKind, &e.AccountID, &e.Currency, &e.AmountMicros, &e.Direction, &e.CreatedAt)
		return e, err
	})
}

// GetReferenceImbalances returns every (reference, currency) whose debits and credits differ.
func (q *Queries) GetReferenceImbalances(ctx context.Context) ([]ReferenceImbalance, error) {
	rows, err := q.db.Query(ctx, `
		SELECT reference_id, currency,
		       SUM(CASE WHEN direction = 'credit' THEN amount_micros ELSE -amount_micros END)::BIGINT AS net
		FROM entries
		GROUP BY reference_id, currency
		HAVING SUM(CASE WHEN direction = 'credit' THEN amount_micros ELSE -amount_micros END) <> 0
		ORDER BY reference_id`)
	if err != nil {
		return nil, err
	}
	return collectRows(rows, func(r pgx.Rows) (ReferenceImbalance, error) {
		var ri ReferenceImbalance
		err := r.Scan(&ri.ReferenceID, &ri.Currency, &ri.NetMicros)
		return ri, err
	})
}

// GetBalanceDrifts compares each balance row with the signed sum of its journal.
func (q *Queries) GetBalanceDrifts(ctx context.Context) ([]BalanceDrift, error) {
	rows, err := q.db.Query(ctx, `
		SELECT b.account_id, b.currency, b.balance_micros, COALESCE(j.net, 0)::BIGINT
		FROM balances b
		LEFT JOIN (
			SELECT account_id, currency,
			       SUM(CASE WHEN direction = 'credit' THEN amount_micros ELSE -amount_micros END) AS net
			FROM entries
			GROUP BY account_id, currency
		) j ON j.account_id = b.account_id AND j.currency = b.currency
		WHERE b.balance_micros <> COALESCE(j.net, 0)
		ORDER BY b.account_id, b.currency`)
	if err != nil {
		return nil, err
	}
	return collectRows(rows, func(r pgx.Rows) (BalanceDrift, error) {
		var d BalanceDrift
		err := r.Scan(&d.AccountID, &d.Currency, &d.BalanceMicros, &d.JournalMicros)
		return d, err
	})
}

// SumPendingEscrow totals amount plus receiver commission of pending transfers per currency.
func (q *Queries) SumPendingEscrow(ctx context.Context) ([]CurrencyNet, error) {
	rows, err := q.db.Query(ctx, `
		SELECT currency, COALESCE(SUM(amount_micros + receiver_commission_micros), 0)::BIGINT
		FROM transfers
		WHERE status = 'PENDING'
		GROUP BY currency
		ORDER BY currency`)
	if err != nil {
		return nil, err
	}
	return collectRows(rows, func(r pgx.Rows) (CurrencyNet, error) {
		var c CurrencyNet
		err := r.Scan(&c.Currency, &c.NetMicros)
		return c, err
	})
}
