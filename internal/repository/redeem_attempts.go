package repository

import (
	"context"
	"time"
)

func (q *Queries) GetRedeemAttempt(ctx context.Context, principalKey string) (RedeemAttempt, error) {
	var a RedeemAttempt
	err := q.db.QueryRow(ctx, `SELECT principal_key, window_start, failures FROM redeem_attempts WHERE principal_key = $1`, principalKey).
		Scan(&a.PrincipalKey, &a.WindowStart, &a.Failures)
	return a, err
}

// RecordRedeemFailure counts a failure, restarting the window once it has elapsed.
func (q *Queries) RecordRedeemFailure(ctx context.Context, arg RecordRedeemFailureParams) (RedeemAttempt, error) {
	var a RedeemAttempt
	windowFloor := arg.Now.Add(-arg.Window)
	err := q.db.QueryRow(ctx, `
		INSERT INTO redeem_attempts (principal_key, window_start, failures)
		VALUES ($1, $2, 1)
		ON CONFLICT (principal_key) DO UPDATE
		SET failures = CASE WHEN redeem_attempts.window_start <= $3 THEN 1 ELSE redeem_attempts.failures + 1 END,
		    window_start = CASE WHEN redeem_attempts.window_start <= $3 THEN $2 ELSE redeem_attempts.window_start END
		RETURNING principal_key, window_start, failures`,
		arg.PrincipalKey, arg.Now.UTC().Truncate(time.Microsecond), windowFloor).
		Scan(&a.PrincipalKey, &a.WindowStart, &a.Failures)
	return a, err
}

func (q *Queries) ClearRedeemAttempts(ctx context.Context, principalKey string) error {
	_, err := q.db.Exec(ctx, `DELETE FROM redeem_attempts WHERE principal_key = $1`, principalKey)
	return err
}
