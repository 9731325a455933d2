package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ayo6706/remittance-ledger/internal/directory"
	"github.com/ayo6706/remittance-ledger/internal/domain"
	"github.com/ayo6706/remittance-ledger/internal/models"
	"github.com/ayo6706/remittance-ledger/internal/observability"
	"github.com/ayo6706/remittance-ledger/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var codePattern = regexp.MustCompile(`^[0-9]{6}$`)

// TransferConfig holds the policy knobs of the transfer state machine.
type TransferConfig struct {
	TTL                 time.Duration
	HomeCountry         string
	RequireReceiverCode bool
	ExpiryBatchSize     int
}

// TransferService creates, redeems, cancels and expires office transfers.
type TransferService struct {
	store       QueryStore
	ledger      *BalanceLedger
	commissions *CommissionService
	directory   directory.Directory
	codes       *CodeGenerator
	guard       *RedeemGuard
	audit       *AuditService
	cfg         TransferConfig
	now         func() time.Time
}

func NewTransferService(store QueryStore, ledger *BalanceLedger, commissions *CommissionService, dir directory.Directory, codes *CodeGenerator, guard *RedeemGuard, cfg TransferConfig) *TransferService {
	if cfg.TTL <= 0 {
		cfg.TTL = 720 * time.Hour
	}
	if cfg.HomeCountry == "" {
		cfg.HomeCountry = "LY"
	}
	cfg.HomeCountry = strings.ToUpper(cfg.HomeCountry)
	if cfg.ExpiryBatchSize <= 0 {
		cfg.ExpiryBatchSize = 100
	}
	return &TransferService{
		store:       store,
		ledger:      ledger,
		commissions: commissions,
		directory:   dir,
		codes:       codes,
		guard:       guard,
		audit:       NewAuditService(),
		cfg:         cfg,
		now:         time.Now,
	}
}

func requireActive(p domain.Principal) error {
	if !p.Active {
		return &domain.Error{Code: domain.CodeForbidden, Message: "principal is inactive"}
	}
	return nil
}

// QuoteRequest prices a prospective office transfer.
type QuoteRequest struct {
	Amount             decimal.Decimal
	Currency           string
	ReceiverOfficeID   uuid.UUID
	DestinationCountry string
}

// pricing is the validated, priced form of a transfer request. It is computed before any
// transaction opens so no directory or cache I/O happens under row locks.
type pricing struct {
	office directory.Office
	quote  Quote
}

func (s *TransferService) price(ctx context.Context, req QuoteRequest) (pricing, error) {
	currency, err := domain.NormalizeCurrency(req.Currency)
	if err != nil {
		return pricing{}, err
	}
	amount, err := domain.ParseAmount(req.Amount, currency)
	if err != nil {
		return pricing{}, err
	}
	if req.ReceiverOfficeID == uuid.Nil {
		return pricing{}, domain.Validationf("receiver_office_id is required")
	}

	office, err := s.directory.Office(ctx, req.ReceiverOfficeID)
	if err != nil {
		return pricing{}, err
	}
	if !office.Active {
		return pricing{}, domain.Validationf("receiving office is not active")
	}
	if !office.Accepts(currency) {
		return pricing{}, domain.Validationf("receiving office does not pay out %s", currency)
	}
	country := strings.ToUpper(strings.TrimSpace(req.DestinationCountry))
	if country != "" && country != office.Country {
		return pricing{}, domain.Validationf("receiving office is not in %s", country)
	}

	transferType := domain.TransferTypeInterOffice
	if office.Country != s.cfg.HomeCountry {
		transferType = domain.TransferTypeInternational
	}
	officeID := office.ID
	quote, err := s.commissions.Resolve(ctx, transferType, amount, &officeID)
	if err != nil {
		return pricing{}, err
	}
	return pricing{office: office, quote: quote}, nil
}

// Quote runs the exact pricing path of Create without touching any balance.
func (s *TransferService) Quote(ctx context.Context, req QuoteRequest) (Quote, error) {
	p, err := s.price(ctx, req)
	if err != nil {
		return Quote{}, err
	}
	return p.quote, nil
}

// CreateTransferRequest is the sender's instruction.
type CreateTransferRequest struct {
	DestinationCountry string
	ReceiverOfficeID   uuid.UUID
	Amount             decimal.Decimal
	Currency           string
	ReceiverName       string
	ReceiverPhone      string
	Notes              string
}

// Create debits the sender, books the system commission and parks the payout in escrow as one
// unit of work. The returned transfer carries both codes; only the sender ever sees them.
func (s *TransferService) Create(ctx context.Context, sender domain.Principal, req CreateTransferRequest) (repository.Transfer, error) {
	if err := requireActive(sender); err != nil {
		return repository.Transfer{}, err
	}
	if strings.TrimSpace(req.DestinationCountry) == "" {
		return repository.Transfer{}, domain.Validationf("destination_country is required")
	}
	if strings.TrimSpace(req.ReceiverName) == "" {
		return repository.Transfer{}, domain.Validationf("receiver_name is required")
	}

	priced, err := s.price(ctx, QuoteRequest{
		Amount:             req.Amount,
		Currency:           req.Currency,
		ReceiverOfficeID:   req.ReceiverOfficeID,
		DestinationCountry: req.DestinationCountry,
	})
	if err != nil {
		return repository.Transfer{}, err
	}
	q := priced.quote
	held, err := q.Amount.CheckedAdd(q.ReceiverCommission)
	if err != nil {
		return repository.Transfer{}, err
	}

	transferID := uuid.New()
	ref := Reference{ID: transferID, Kind: domain.ReferenceKindTransfer}
	var created repository.Transfer
	err = s.store.RunInTx(ctx, func(qtx repository.Querier) error {
		if _, err := s.ledger.EnsureUserAccount(ctx, qtx, sender.AccountID); err != nil {
			return err
		}
		if err := s.ledger.Apply(ctx, qtx, ref,
			Debit(sender.AccountID, q.Total),
			Credit(systemPoolID, q.SystemCommission),
			Credit(escrowID, held),
		); err != nil {
			return err
		}

		transferCode, err := s.codes.TransferCode(ctx, qtx)
		if err != nil {
			return err
		}
		receiverCode, err := s.codes.ReceiverCode(transferCode)
		if err != nil {
			return err
		}

		row, err := qtx.InsertTransfer(ctx, repository.InsertTransferParams{
			ID:                       transferID,
			SenderAccountID:          sender.AccountID,
			SenderName:               sender.Name,
			ReceiverOfficeID:         priced.office.ID,
			DestinationCountry:       priced.office.Country,
			TransferType:             string(q.TransferType),
			Currency:                 q.Amount.Currency,
			AmountMicros:             q.Amount.Amount,
			SystemCommissionMicros:   q.SystemCommission.Amount,
			ReceiverCommissionMicros: q.ReceiverCommission.Amount,
			TotalMicros:              q.Total.Amount,
			TransferCode:             transferCode,
			ReceiverCode:             &receiverCode,
			ReceiverName:             strings.TrimSpace(req.ReceiverName),
			ReceiverPhone:            strings.TrimSpace(req.ReceiverPhone),
			Notes:                    req.Notes,
		})
		if err != nil {
			return fmt.Errorf("insert transfer: %w", err)
		}
		created = row

		metadata, _ := json.Marshal(map[string]string{
			"amount":              q.Amount.Fixed(),
			"currency":            q.Amount.Currency,
			"system_commission":   q.SystemCommission.Fixed(),
			"receiver_commission": q.ReceiverCommission.Fixed(),
			"total":               q.Total.Fixed(),
		})
		return s.audit.Write(ctx, qtx, "transfer", transferID, &sender.AccountID, "CREATE", "", domain.TransferStatusPending, metadata)
	})
	if err != nil {
		return repository.Transfer{}, err
	}

	observability.IncrementTransferCreated(created.TransferType, created.Currency)
	zap.L().Info("transfer created",
		zap.String("transfer_id", created.ID.String()),
		zap.String("sender_account_id", created.SenderAccountID.String()),
		zap.String("receiver_office_id", created.ReceiverOfficeID.String()),
		zap.String("transfer_type", created.TransferType),
		zap.String("total", q.Total.String()))
	return created, nil
}

// RedeemRequest is presented at the receiving office counter.
type RedeemRequest struct {
	TransferCode string
	ReceiverCode string
}

var errRedeemNotFound = &domain.Error{Code: domain.CodeNotFound, Message: "transfer not found"}

// Redeem pays a pending transfer out to the redeemer's office. Unknown codes, codes addressed
// to another office and wrong receiver codes are indistinguishable to the caller.
func (s *TransferService) Redeem(ctx context.Context, redeemer domain.Principal, req RedeemRequest) (repository.Transfer, error) {
	if err := requireActive(redeemer); err != nil {
		return repository.Transfer{}, err
	}
	if redeemer.OfficeID == nil {
		return repository.Transfer{}, &domain.Error{Code: domain.CodeForbidden, Message: "only office members can redeem transfers"}
	}
	code := strings.TrimSpace(req.TransferCode)
	if !codePattern.MatchString(code) {
		return repository.Transfer{}, domain.Validationf("transfer_code must be 6 digits")
	}
	receiverCode := strings.TrimSpace(req.ReceiverCode)
	if s.cfg.RequireReceiverCode && receiverCode == "" {
		return repository.Transfer{}, domain.Validationf("receiver_code is required")
	}

	guardKey := redeemGuardKey(redeemer)
	if err := s.guard.Check(ctx, s.store.Queries(), guardKey); err != nil {
		if errors.Is(err, domain.ErrTooManyAttempts) {
			observability.IncrementRedeemRejection("throttled")
		}
		return repository.Transfer{}, err
	}

	officeID := *redeemer.OfficeID
	var redeemed repository.Transfer
	err := s.store.RunInTx(ctx, func(qtx repository.Querier) error {
		t, err := qtx.GetTransferByCodeForUpdate(ctx, repository.GetTransferByCodeParams{
			TransferCode:     code,
			ReceiverOfficeID: officeID,
		})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return errRedeemNotFound
			}
			return fmt.Errorf("get transfer by code: %w", err)
		}
		if receiverCode != "" || s.cfg.RequireReceiverCode {
			if t.ReceiverCode == nil || *t.ReceiverCode != receiverCode {
				return errRedeemNotFound
			}
		}
		if t.Status != domain.TransferStatusPending {
			return domain.ErrAlreadyTerminal
		}

		officeAccount, err := s.ledger.OfficeAccount(ctx, qtx, officeID)
		if err != nil {
			return err
		}
		payout := domain.NewMoney(t.AmountMicros+t.ReceiverCommissionMicros, t.Currency)
		ref := Reference{ID: t.ID, Kind: domain.ReferenceKindTransfer}
		if err := s.ledger.Move(ctx, qtx, ref, escrowID, officeAccount.ID, payout); err != nil {
			return err
		}

		metadata, _ := json.Marshal(map[string]string{"office_id": officeID.String(), "paid_out": payout.Fixed()})
		if err := transitionTransfer(ctx, qtx, s.audit, &t, domain.TransferStatusCompleted, s.now().UTC(), &redeemer.AccountID, "REDEEM", metadata); err != nil {
			return err
		}
		if err := s.guard.Reset(ctx, qtx, guardKey); err != nil {
			return err
		}
		redeemed = t
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			observability.IncrementRedeemRejection("not_found")
			if gerr := s.guard.RecordFailure(ctx, s.store.Queries(), guardKey); gerr != nil {
				zap.L().Error("failed to record redeem failure", zap.Error(gerr))
			}
		}
		return repository.Transfer{}, err
	}

	zap.L().Info("transfer redeemed",
		zap.String("transfer_id", redeemed.ID.String()),
		zap.String("office_id", officeID.String()),
		zap.String("redeemed_by", redeemer.AccountID.String()))
	return redeemed, nil
}

// reverse undoes the creation-time postings of a pending transfer: escrow and the system
// commission go back to the sender.
func (s *TransferService) reverse(ctx context.Context, qtx repository.Querier, t repository.Transfer) error {
	held := domain.NewMoney(t.AmountMicros+t.ReceiverCommissionMicros, t.Currency)
	fee := domain.NewMoney(t.SystemCommissionMicros, t.Currency)
	total := domain.NewMoney(t.TotalMicros, t.Currency)
	return s.ledger.Apply(ctx, qtx, Reference{ID: t.ID, Kind: domain.ReferenceKindTransfer},
		Debit(escrowID, held),
		Debit(systemPoolID, fee),
		Credit(t.SenderAccountID, total),
	)
}

// Cancel refunds the full debited total to the sender. Only the sender or an admin may cancel;
// anyone else is told the transfer does not exist.
func (s *TransferService) Cancel(ctx context.Context, actor domain.Principal, transferID uuid.UUID) (repository.Transfer, error) {
	if err := requireActive(actor); err != nil {
		return repository.Transfer{}, err
	}
	var cancelled repository.Transfer
	err := s.store.RunInTx(ctx, func(qtx repository.Querier) error {
		t, err := qtx.GetTransferForUpdate(ctx, transferID)
		if err != nil {
			return notFoundOr(err, "transfer")
		}
		if t.SenderAccountID != actor.AccountID && !actor.IsAdmin() {
			return &domain.Error{Code: domain.CodeNotFound, Message: "transfer not found"}
		}
		if t.Status != domain.TransferStatusPending {
			return domain.ErrAlreadyTerminal
		}
		if err := s.reverse(ctx, qtx, t); err != nil {
			return err
		}
		if err := transitionTransfer(ctx, qtx, s.audit, &t, domain.TransferStatusCancelled, s.now().UTC(), &actor.AccountID, "CANCEL", nil); err != nil {
			return err
		}
		cancelled = t
		return nil
	})
	if err != nil {
		return repository.Transfer{}, err
	}

	zap.L().Info("transfer cancelled",
		zap.String("transfer_id", cancelled.ID.String()),
		zap.String("actor_id", actor.AccountID.String()))
	return cancelled, nil
}

// Expire reverses up to one batch of pending transfers older than the TTL. Each transfer is
// claimed with SKIP LOCKED and handled in its own transaction, so a sweep never waits on a
// transfer that is being redeemed or cancelled, and running it twice is harmless. The sweep
// walks forward by (created_at, id); a transfer whose reversal fails is logged and left
// pending while the rest of the batch proceeds.
func (s *TransferService) Expire(ctx context.Context) (int, error) {
	cutoff := s.now().UTC().Add(-s.cfg.TTL)
	var (
		afterCreatedAt *time.Time
		afterID        uuid.UUID
		expired        int
		failed         int
	)
	for expired+failed < s.cfg.ExpiryBatchSize {
		var claimed *repository.Transfer
		transitioned := false
		err := s.store.RunInTx(ctx, func(qtx repository.Querier) error {
			claimed, transitioned = nil, false
			ids, err := qtx.ListExpirablePendingTransfers(ctx, repository.ListExpirablePendingTransfersParams{
				CreatedBefore:  cutoff,
				AfterCreatedAt: afterCreatedAt,
				AfterID:        afterID,
				Limit:          1,
			})
			if err != nil {
				return fmt.Errorf("list expirable transfers: %w", err)
			}
			if len(ids) == 0 {
				return nil
			}
			t, err := qtx.GetTransferForUpdate(ctx, ids[0])
			if err != nil {
				return fmt.Errorf("get transfer: %w", err)
			}
			claimed = &t
			if t.Status != domain.TransferStatusPending || !t.CreatedAt.Before(cutoff) {
				return nil
			}
			if err := s.reverse(ctx, qtx, t); err != nil {
				return err
			}
			if err := transitionTransfer(ctx, qtx, s.audit, &t, domain.TransferStatusExpired, s.now().UTC(), nil, "EXPIRE", nil); err != nil {
				return err
			}
			transitioned = true
			return nil
		})
		if claimed == nil {
			if err != nil {
				return expired, err
			}
			break
		}
		createdAt := claimed.CreatedAt
		afterCreatedAt, afterID = &createdAt, claimed.ID
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return expired, err
			}
			failed++
			zap.L().Error("expire transfer failed; skipping",
				zap.String("transfer_id", claimed.ID.String()),
				zap.String("code", string(domain.CodeOf(err))),
				zap.Error(err))
		case transitioned:
			expired++
		}
	}
	if expired > 0 || failed > 0 {
		zap.L().Info("expired pending transfers",
			zap.Int("count", expired),
			zap.Int("failed", failed),
			zap.Time("cutoff", cutoff))
	}
	return expired, nil
}

// InternalTransferRequest moves funds between two wallets immediately.
type InternalTransferRequest struct {
	ReceiverAccountID uuid.UUID
	Amount            decimal.Decimal
	Currency          string
}

// InternalTransferResult reports the postings of an internal transfer.
type InternalTransferResult struct {
	ReferenceID       uuid.UUID
	SenderAccountID   uuid.UUID
	ReceiverAccountID uuid.UUID
	Amount            domain.Money
	SystemCommission  domain.Money
	Total             domain.Money
}

// InternalTransfer debits amount plus the internal system commission from the sender and credits
// amount to the receiver in one step. Receiver-party rules do not apply to wallet moves.
func (s *TransferService) InternalTransfer(ctx context.Context, sender domain.Principal, req InternalTransferRequest) (InternalTransferResult, error) {
	if err := requireActive(sender); err != nil {
		return InternalTransferResult{}, err
	}
	if req.ReceiverAccountID == sender.AccountID {
		return InternalTransferResult{}, domain.Validationf("cannot transfer to the same account")
	}
	if req.ReceiverAccountID == systemPoolID || req.ReceiverAccountID == escrowID {
		return InternalTransferResult{}, domain.Validationf("receiver must be a wallet account")
	}
	currency, err := domain.NormalizeCurrency(req.Currency)
	if err != nil {
		return InternalTransferResult{}, err
	}
	amount, err := domain.ParseAmount(req.Amount, currency)
	if err != nil {
		return InternalTransferResult{}, err
	}
	quote, err := s.commissions.Resolve(ctx, domain.TransferTypeInternal, amount, nil, domain.PartySystem)
	if err != nil {
		return InternalTransferResult{}, err
	}
	total := quote.Total

	ref := Reference{ID: uuid.New(), Kind: domain.ReferenceKindInternal}
	err = s.store.RunInTx(ctx, func(qtx repository.Querier) error {
		if _, err := s.ledger.EnsureUserAccount(ctx, qtx, sender.AccountID); err != nil {
			return err
		}
		if _, err := qtx.GetAccount(ctx, req.ReceiverAccountID); err != nil {
			return notFoundOr(err, "receiver account")
		}
		if err := s.ledger.Apply(ctx, qtx, ref,
			Debit(sender.AccountID, total),
			Credit(req.ReceiverAccountID, amount),
			Credit(systemPoolID, quote.SystemCommission),
		); err != nil {
			return err
		}
		metadata, _ := json.Marshal(map[string]string{
			"reference_id":      ref.ID.String(),
			"receiver_id":       req.ReceiverAccountID.String(),
			"amount":            amount.Fixed(),
			"currency":          amount.Currency,
			"system_commission": quote.SystemCommission.Fixed(),
		})
		return s.audit.Write(ctx, qtx, "account", sender.AccountID, &sender.AccountID, "INTERNAL_TRANSFER", "", "", metadata)
	})
	if err != nil {
		return InternalTransferResult{}, err
	}

	observability.IncrementTransferCreated(string(domain.TransferTypeInternal), amount.Currency)
	zap.L().Info("internal transfer posted",
		zap.String("reference_id", ref.ID.String()),
		zap.String("sender_account_id", sender.AccountID.String()),
		zap.String("receiver_account_id", req.ReceiverAccountID.String()),
		zap.String("total", total.String()))
	return InternalTransferResult{
		ReferenceID:       ref.ID,
		SenderAccountID:   sender.AccountID,
		ReceiverAccountID: req.ReceiverAccountID,
		Amount:            amount,
		SystemCommission:  quote.SystemCommission,
		Total:             total,
	}, nil
}

func redactFor(viewer domain.Principal, t repository.Transfer) repository.Transfer {
	if t.SenderAccountID == viewer.AccountID {
		return t
	}
	t.TransferCode = models.RedactedCode
	if t.ReceiverCode != nil {
		masked := models.RedactedCode
		t.ReceiverCode = &masked
	}
	return t
}

// GetTransfer returns a transfer visible to the sender, the receiving office or an admin. Codes
// are masked for everyone but the sender.
func (s *TransferService) GetTransfer(ctx context.Context, viewer domain.Principal, id uuid.UUID) (repository.Transfer, error) {
	if err := requireActive(viewer); err != nil {
		return repository.Transfer{}, err
	}
	t, err := s.store.Queries().GetTransfer(ctx, id)
	if err != nil {
		return repository.Transfer{}, notFoundOr(err, "transfer")
	}
	if t.SenderAccountID != viewer.AccountID && !viewer.MemberOf(t.ReceiverOfficeID) && !viewer.IsAdmin() {
		return repository.Transfer{}, &domain.Error{Code: domain.CodeNotFound, Message: "transfer not found"}
	}
	return redactFor(viewer, t), nil
}

// ListHistory pages through transfers sent from accountID or addressed to the office behind it.
func (s *TransferService) ListHistory(ctx context.Context, viewer domain.Principal, accountID uuid.UUID, limit, offset int32) ([]repository.Transfer, error) {
	if err := requireActive(viewer); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	params := repository.ListTransfersForAccountParams{AccountID: accountID, Limit: limit, Offset: offset}
	acct, err := s.store.Queries().GetAccount(ctx, accountID)
	switch {
	case err == nil && acct.Kind == domain.AccountKindAgentOffice:
		if !viewer.MemberOf(acct.OwnerID) && !viewer.IsAdmin() {
			return nil, &domain.Error{Code: domain.CodeForbidden, Message: "not a member of this office"}
		}
		office := acct.OwnerID
		params.OfficeID = &office
	case err == nil || errors.Is(err, pgx.ErrNoRows):
		if accountID != viewer.AccountID && !viewer.IsAdmin() {
			return nil, &domain.Error{Code: domain.CodeForbidden, Message: "cannot view another account's history"}
		}
		if accountID == viewer.AccountID && viewer.OfficeID != nil {
			office := *viewer.OfficeID
			params.OfficeID = &office
		}
	default:
		return nil, fmt.Errorf("get account: %w", err)
	}

	rows, err := s.store.Queries().ListTransfersForAccount(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}
	out := make([]repository.Transfer, 0, len(rows))
	for _, t := range rows {
		out = append(out, redactFor(viewer, t))
	}
	return out, nil
}
