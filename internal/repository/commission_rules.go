package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const commissionRuleColumns = `id, transfer_type, currency, scope, party, kind, value_micros, active, created_at, updated_at`

func scanCommissionRule(r pgx.Row) (CommissionRule, error) {
	var c CommissionRule
	err := r.Scan(&c.ID, &c.TransferType, &c.Currency, &c.Scope, &c.Party, &c.Kind, &c.ValueMicros, &c.Active, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// GetActiveCommissionRules returns the active rules for (type, currency) restricted to the given scopes.
func (q *Queries) GetActiveCommissionRules(ctx context.Context, arg GetActiveCommissionRulesParams) ([]CommissionRule, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+commissionRuleColumns+`
		FROM commission_rules
		WHERE active AND transfer_type = $1 AND currency = $2 AND scope = ANY($3::text[])
		ORDER BY party, scope`, arg.TransferType, arg.Currency, arg.Scopes)
	if err != nil {
		return nil, err
	}
	return collectRows(rows, func(r pgx.Rows) (CommissionRule, error) { return scanCommissionRule(r) })
}

func (q *Queries) ListCommissionRules(ctx context.Context, arg ListCommissionRulesParams) ([]CommissionRule, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+commissionRuleColumns+`
		FROM commission_rules
		WHERE ($1::text IS NULL OR transfer_type = $1)
		  AND ($2::text IS NULL OR currency = $2)
		  AND (NOT $3 OR active)
		ORDER BY transfer_type, currency, scope, party, created_at DESC
		LIMIT $4 OFFSET $5`, arg.TransferType, arg.Currency, arg.ActiveOnly, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	return collectRows(rows, func(r pgx.Rows) (CommissionRule, error) { return scanCommissionRule(r) })
}

func (q *Queries) GetCommissionRule(ctx context.Context, id uuid.UUID) (CommissionRule, error) {
	return scanCommissionRule(q.db.QueryRow(ctx, `SELECT `+commissionRuleColumns+` FROM commission_rules WHERE id = $1`, id))
}

func (q *Queries) InsertCommissionRule(ctx context.Context, arg InsertCommissionRuleParams) (CommissionRule, error) {
	return scanCommissionRule(q.db.QueryRow(ctx, `
		INSERT INTO commission_rules (id, transfer_type, currency, scope, party, kind, value_micros, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE, NOW(), NOW())
		RETURNING `+commissionRuleColumns,
		arg.ID, arg.TransferType, arg.Currency, arg.Scope, arg.Party, arg.Kind, arg.ValueMicros))
}

func (q *Queries) DeactivateCommissionRules(ctx context.Context, arg DeactivateCommissionRulesParams) (int64, error) {
	tag, err := q.db.Exec(ctx, `
		UPDATE commission_rules SET active = FALSE, updated_at = NOW()
		WHERE active AND transfer_type = $1 AND currency = $2 AND scope = $3 AND party = $4`,
		arg.TransferType, arg.Currency, arg.Scope, arg.Party)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (q *Queries) DeactivateCommissionRule(ctx context.Context, id uuid.UUID) (int64, error) {
	tag, err := q.db.Exec(ctx, `UPDATE commission_rules SET active = FALSE, updated_at = NOW() WHERE id = $1 AND active`, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
