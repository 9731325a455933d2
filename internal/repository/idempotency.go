package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
)

const idempotencyColumns = `idempotency_key, request_hash, method, path, COALESCE(response_status, 0), response_body, COALESCE(content_type, ''), in_progress`

func scanIdempotencyKey(r pgx.Row) (IdempotencyKey, error) {
	var k IdempotencyKey
	err := r.Scan(&k.IdempotencyKey, &k.RequestHash, &k.Method, &k.Path, &k.ResponseStatus, &k.ResponseBody, &k.ContentType, &k.InProgress)
	return k, err
}

func (q *Queries) GetIdempotencyKey(ctx context.Context, key string) (IdempotencyKey, error) {
	return scanIdempotencyKey(q.db.QueryRow(ctx, `SELECT `+idempotencyColumns+` FROM idempotency_keys WHERE idempotency_key = $1`, key))
}

// ReserveIdempotencyKey returns pgx.ErrNoRows when the key is already taken.
func (q *Queries) ReserveIdempotencyKey(ctx context.Context, arg ReserveIdempotencyKeyParams) (IdempotencyKey, error) {
	return scanIdempotencyKey(q.db.QueryRow(ctx, `
		INSERT INTO idempotency_keys (idempotency_key, request_hash, method, path, in_progress, created_at)
		VALUES ($1, $2, $3, $4, TRUE, NOW())
		ON CONFLICT (idempotency_key) DO NOTHING
		RETURNING `+idempotencyColumns,
		arg.IdempotencyKey, arg.RequestHash, arg.Method, arg.Path))
}

func (q *Queries) FinalizeIdempotencyKey(ctx context.Context, arg FinalizeIdempotencyKeyParams) (IdempotencyKey, error) {
	return scanIdempotencyKey(q.db.QueryRow(ctx, `
		UPDATE idempotency_keys
		SET response_status = $1, response_body = $2, content_type = $3, in_progress = FALSE, completed_at = NOW()
		WHERE idempotency_key = $4 AND request_hash = $5 AND in_progress
		RETURNING `+idempotencyColumns,
		arg.ResponseStatus, arg.ResponseBody, arg.ContentType, arg.IdempotencyKey, arg.RequestHash))
}

func (q *Queries) ReleaseIdempotencyKey(ctx context.Context, arg ReleaseIdempotencyKeyParams) (int64, error) {
	tag, err := q.db.Exec(ctx, `DELETE FROM idempotency_keys WHERE idempotency_key = $1 AND request_hash = $2 AND in_progress`,
		arg.IdempotencyKey, arg.RequestHash)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
