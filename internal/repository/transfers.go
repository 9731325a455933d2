package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const transferColumns = `id, sender_account_id, sender_name, receiver_office_id, destination_country, transfer_type,
	currency, amount_micros, system_commission_micros, receiver_commission_micros, total_micros,
	transfer_code, receiver_code, receiver_name, receiver_phone, notes, status, redeemed_by,
	created_at, completed_at, cancelled_at, expired_at`

func scanTransfer(r pgx.Row) (Transfer, error) {
	var t Transfer
	err := r.Scan(
		&t.ID, &t.SenderAccountID, &t.SenderName, &t.ReceiverOfficeID, &t.DestinationCountry, &t.TransferType,
		&t.Currency, &t.AmountMicros, &t.SystemCommissionMicros, &t.ReceiverCommissionMicros, &t.TotalMicros,
		&t.TransferCode, &t.ReceiverCode, &t.ReceiverName, &t.ReceiverPhone, &t.Notes, &t.Status, &t.RedeemedBy,
		&t.CreatedAt, &t.CompletedAt, &t.CancelledAt, &t.ExpiredAt,
	)
	return t, err
}

func (q *Queries) InsertTransfer(ctx context.Context, arg InsertTransferParams) (Transfer, error) {
	return scanTransfer(q.db.QueryRow(ctx, `
		INSERT INTO transfers (
			id, sender_account_id, sender_name, receiver_office_id, destination_country, transfer_type,
			currency, amount_micros, system_commission_micros, receiver_commission_micros, total_micros,
			transfer_code, receiver_code, receiver_name, receiver_phone, notes, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, 'PENDING', NOW())
		RETURNING `+transferColumns,
		arg.ID, arg.SenderAccountID, arg.SenderName, arg.ReceiverOfficeID, arg.DestinationCountry, arg.TransferType,
		arg.Currency, arg.AmountMicros, arg.SystemCommissionMicros, arg.ReceiverCommissionMicros, arg.TotalMicros,
		arg.TransferCode, arg.ReceiverCode, arg.ReceiverName, arg.ReceiverPhone, arg.Notes))
}

func (q *Queries) GetTransfer(ctx context.Context, id uuid.UUID) (Transfer, error) {
	return scanTransfer(q.db.QueryRow(ctx, `SELECT `+transferColumns+` FROM transfers WHERE id = $1`, id))
}

func (q *Queries) GetTransferForUpdate(ctx context.Context, id uuid.UUID) (Transfer, error) {
	return scanTransfer(q.db.QueryRow(ctx, `SELECT `+transferColumns+` FROM transfers WHERE id = $1 FOR UPDATE`, id))
}

// GetTransferByCodeForUpdate locks the pending transfer for the code at the office, falling back
// to the most recent terminal one so a losing concurrent redeemer observes the final status.
func (q *Queries) GetTransferByCodeForUpdate(ctx context.Context, arg GetTransferByCodeParams) (Transfer, error) {
	return scanTransfer(q.db.QueryRow(ctx, `
		SELECT `+transferColumns+`
		FROM transfers
		WHERE transfer_code = $1 AND receiver_office_id = $2
		ORDER BY (status = 'PENDING') DESC, created_at DESC
		LIMIT 1
		FOR UPDATE`, arg.TransferCode, arg.ReceiverOfficeID))
}

func (q *Queries) PendingTransferCodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := q.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM transfers WHERE transfer_code = $1 AND status = 'PENDING')`, code).Scan(&exists)
	return exists, err
}

// UpdateTransferStatus moves a PENDING transfer to a terminal status and stamps the matching timestamp.
func (q *Queries) UpdateTransferStatus(ctx context.Context, arg UpdateTransferStatusParams) (int64, error) {
	tag, err := q.db.Exec(ctx, `
		UPDATE transfers
		SET status = $2,
		    redeemed_by = COALESCE($4, redeemed_by),
		    completed_at = CASE WHEN $2 = 'COMPLETED' THEN $3 ELSE completed_at END,
		    cancelled_at = CASE WHEN $2 = 'CANCELLED' THEN $3 ELSE cancelled_at END,
		    expired_at = CASE WHEN $2 = 'EXPIRED' THEN $3 ELSE expired_at END
		WHERE id = $1 AND status = 'PENDING'`, arg.ID, arg.Status, arg.At, arg.RedeemedBy)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ListTransfersForAccount returns transfers sent from the account, plus those addressed to the
// office when an office id is given.
func (q *Queries) ListTransfersForAccount(ctx context.Context, arg ListTransfersForAccountParams) ([]Transfer, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+transferColumns+`
		FROM transfers
		WHERE sender_account_id = $1 OR ($2::uuid IS NOT NULL AND receiver_office_id = $2)
		ORDER BY created_at DESC, id
		LIMIT $3 OFFSET $4`, arg.AccountID, arg.OfficeID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	return collectRows(rows, func(r pgx.Rows) (Transfer, error) { return scanTransfer(r) })
}

func (q *Queries) ListExpirablePendingTransfers(ctx context.Context, arg ListExpirablePendingTransfersParams) ([]uuid.UUID, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id FROM transfers
		WHERE status = 'PENDING' AND created_at < $1
		  AND ($3::timestamptz IS NULL OR (created_at, id) > ($3, $4))
		ORDER BY created_at, id
		LIMIT $2
		FOR UPDATE SKIP LOCKED`, arg.CreatedBefore, arg.Limit, arg.AfterCreatedAt, arg.AfterID)
	if err != nil {
		return nil, err
	}
	return collectRows(rows, func(r pgx.Rows) (uuid.UUID, error) {
		var id uuid.UUID
		err := r.Scan(&id)
		return id, err
	})
}
