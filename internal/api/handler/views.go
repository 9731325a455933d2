package handler

import (
	"strings"

	"github.com/ayo6706/remittance-ledger/internal/domain"
	"github.com/ayo6706/remittance-ledger/internal/models"
	"github.com/ayo6706/remittance-ledger/internal/repository"
	"github.com/ayo6706/remittance-ledger/internal/service"
)

func fixed(micros int64, currency string) string {
	return domain.NewMoney(micros, currency).Fixed()
}

func transferView(t repository.Transfer) models.Transfer {
	return models.Transfer{
		ID:                 t.ID,
		SenderAccountID:    t.SenderAccountID,
		SenderName:         t.SenderName,
		ReceiverOfficeID:   t.ReceiverOfficeID,
		DestinationCountry: t.DestinationCountry,
		TransferType:       t.TransferType,
		Currency:           t.Currency,
		Amount:             fixed(t.AmountMicros, t.Currency),
		SystemCommission:   fixed(t.SystemCommissionMicros, t.Currency),
		ReceiverCommission: fixed(t.ReceiverCommissionMicros, t.Currency),
		TotalDebited:       fixed(t.TotalMicros, t.Currency),
		TransferCode:       t.TransferCode,
		ReceiverCode:       t.ReceiverCode,
		ReceiverName:       t.ReceiverName,
		ReceiverPhone:      t.ReceiverPhone,
		Notes:              t.Notes,
		Status:             t.Status,
		RedeemedBy:         t.RedeemedBy,
		CreatedAt:          t.CreatedAt,
		CompletedAt:        t.CompletedAt,
		CancelledAt:        t.CancelledAt,
		ExpiredAt:          t.ExpiredAt,
	}
}

func cancelledView(t repository.Transfer) models.CancelledTransfer {
	return models.CancelledTransfer{
		ID:          t.ID,
		Status:      strings.ToLower(t.Status),
		Currency:    t.Currency,
		Refunded:    fixed(t.TotalMicros, t.Currency),
		CancelledAt: t.CancelledAt,
	}
}

// redeemedView hides the codes from the paying office.
func redeemedView(t repository.Transfer) models.Transfer {
	v := transferView(t)
	v.Redact()
	return v
}

func quoteView(q service.Quote) models.Quote {
	return models.Quote{
		TransferType:       string(q.TransferType),
		Currency:           q.Amount.Currency,
		Amount:             q.Amount.Fixed(),
		SystemCommission:   q.SystemCommission.Fixed(),
		ReceiverCommission: q.ReceiverCommission.Fixed(),
		Total:              q.Total.Fixed(),
	}
}

func balanceView(b repository.Balance) models.Balance {
	return models.Balance{
		AccountID: b.AccountID,
		Currency:  b.Currency,
		Amount:    fixed(b.BalanceMicros, b.Currency),
		UpdatedAt: b.UpdatedAt,
	}
}

func entryView(e repository.Entry) models.Entry {
	return models.Entry{
		ID:            e.ID,
		ReferenceID:   e.ReferenceID,
		ReferenceKind: e.ReferenceKind,
		AccountID:     e.AccountID,
		Currency:      e.Currency,
		Amount:        fixed(e.AmountMicros, e.Currency),
		Direction:     e.Direction,
		CreatedAt:     e.CreatedAt,
	}
}

func ruleView(r repository.CommissionRule) models.CommissionRule {
	return models.CommissionRule{
		ID:           r.ID,
		TransferType: r.TransferType,
		Currency:     r.Currency,
		Scope:        r.Scope,
		Party:        r.Party,
		Kind:         r.Kind,
		Value:        domain.NewMoney(r.ValueMicros, r.Currency).ToDecimal().String(),
		Active:       r.Active,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func internalTransferView(res service.InternalTransferResult) models.InternalTransfer {
	return models.InternalTransfer{
		ReferenceID:       res.ReferenceID,
		SenderAccountID:   res.SenderAccountID,
		ReceiverAccountID: res.ReceiverAccountID,
		Currency:          res.Amount.Currency,
		Amount:            res.Amount.Fixed(),
		SystemCommission:  res.SystemCommission.Fixed(),
		TotalDebited:      res.Total.Fixed(),
	}
}
