package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Querier is the data access contract shared by the Postgres queries and the in-memory
// test store. Methods ending in ForUpdate take row locks and must run inside RunInTx.
type Querier interface {
	// accounts & balances
	GetAccount(ctx context.Context, id uuid.UUID) (Account, error)
	GetAccountByOwner(ctx context.Context, arg GetAccountByOwnerParams) (Account, error)
	CreateAccount(ctx context.Context, arg CreateAccountParams) (Account, error)
	GetBalance(ctx context.Context, arg GetBalanceParams) (Balance, error)
	ListBalances(ctx context.Context, accountID uuid.UUID) ([]Balance, error)
	LockBalanceForUpdate(ctx context.Context, arg GetBalanceParams) (Balance, error)
	AddToBalance(ctx context.Context, arg AddToBalanceParams) (int64, error)

	// ledger journal
	CreateEntry(ctx context.Context, arg CreateEntryParams) (Entry, error)
	ListEntries(ctx context.Context, arg ListEntriesParams) ([]Entry, error)
	GetReferenceImbalances(ctx context.Context) ([]ReferenceImbalance, error)
	GetBalanceDrifts(ctx context.Context) ([]BalanceDrift, error)
	SumPendingEscrow(ctx context.Context) ([]CurrencyNet, error)

	// commission rules
	GetActiveCommissionRules(ctx context.Context, arg GetActiveCommissionRulesParams) ([]CommissionRule, error)
	ListCommissionRules(ctx context.Context, arg ListCommissionRulesParams) ([]CommissionRule, error)
	GetCommissionRule(ctx context.Context, id uuid.UUID) (CommissionRule, error)
	InsertCommissionRule(ctx context.Context, arg InsertCommissionRuleParams) (CommissionRule, error)
	DeactivateCommissionRules(ctx context.Context, arg DeactivateCommissionRulesParams) (int64, error)
	DeactivateCommissionRule(ctx context.Context, id uuid.UUID) (int64, error)

	// transfers
	InsertTransfer(ctx context.Context, arg InsertTransferParams) (Transfer, error)
	GetTransfer(ctx context.Context, id uuid.UUID) (Transfer, error)
	GetTransferForUpdate(ctx context.Context, id uuid.UUID) (Transfer, error)
	GetTransferByCodeForUpdate(ctx context.Context, arg GetTransferByCodeParams) (Transfer, error)
	PendingTransferCodeExists(ctx context.Context, code string) (bool, error)
	UpdateTransferStatus(ctx context.Context, arg UpdateTransferStatusParams) (int64, error)
	ListTransfersForAccount(ctx context.Context, arg ListTransfersForAccountParams) ([]Transfer, error)
	ListExpirablePendingTransfers(ctx context.Context, arg ListExpirablePendingTransfersParams) ([]uuid.UUID, error)

	// audit
	InsertAuditLog(ctx context.Context, arg InsertAuditLogParams) (int64, error)

	// directory (read only)
	GetOffice(ctx context.Context, id uuid.UUID) (Office, error)

	// idempotency
	GetIdempotencyKey(ctx context.Context, key string) (IdempotencyKey, error)
	ReserveIdempotencyKey(ctx context.Context, arg ReserveIdempotencyKeyParams) (IdempotencyKey, error)
	FinalizeIdempotencyKey(ctx context.Context, arg FinalizeIdempotencyKeyParams) (IdempotencyKey, error)
	ReleaseIdempotencyKey(ctx context.Context, arg ReleaseIdempotencyKeyParams) (int64, error)

	// redemption throttle
	GetRedeemAttempt(ctx context.Context, principalKey string) (RedeemAttempt, error)
	RecordRedeemFailure(ctx context.Context, arg RecordRedeemFailureParams) (RedeemAttempt, error)
	ClearRedeemAttempts(ctx context.Context, principalKey string) error
}

type GetAccountByOwnerParams struct {
	OwnerID uuid.UUID
	Kind    string
}

type CreateAccountParams struct {
	ID      uuid.UUID
	OwnerID uuid.UUID
	Kind    string
}

type GetBalanceParams struct {
	AccountID uuid.UUID
	Currency  string
}

type AddToBalanceParams struct {
	AccountID   uuid.UUID
	Currency    string
	DeltaMicros int64
}

type CreateEntryParams struct {
	ID            uuid.UUID
	ReferenceID   uuid.UUID
	ReferenceKind string
	AccountID     uuid.UUID
	Currency      string
	AmountMicros  int64
	Direction     string
}

type ListEntriesParams struct {
	AccountID uuid.UUID
	Limit     int32
	Offset    int32
}

type GetActiveCommissionRulesParams struct {
	TransferType string
	Currency     string
	Scopes       []string
}

type ListCommissionRulesParams struct {
	TransferType *string
	Currency     *string
	ActiveOnly   bool
	Limit        int32
	Offset       int32
}

type InsertCommissionRuleParams struct {
	ID           uuid.UUID
	TransferType string
	Currency     string
	Scope        string
	Party        string
	Kind         string
	ValueMicros  int64
}

type DeactivateCommissionRulesParams struct {
	TransferType string
	Currency     string
	Scope        string
	Party        string
}

type InsertTransferParams struct {
	ID                       uuid.UUID
	SenderAccountID          uuid.UUID
	SenderName               string
	ReceiverOfficeID         uuid.UUID
	DestinationCountry       string
	TransferType             string
	Currency                 string
	AmountMicros             int64
	SystemCommissionMicros   int64
	ReceiverCommissionMicros int64
	TotalMicros              int64
	TransferCode             string
	ReceiverCode             *string
	ReceiverName             string
	ReceiverPhone            string
	Notes                    string
}

type GetTransferByCodeParams struct {
	TransferCode     string
	ReceiverOfficeID uuid.UUID
}

type UpdateTransferStatusParams struct {
	ID         uuid.UUID
	Status     string
	At         time.Time
	RedeemedBy *uuid.UUID
}

type ListTransfersForAccountParams struct {
	AccountID uuid.UUID
	OfficeID  *uuid.UUID
	Limit     int32
	Offset    int32
}

// ListExpirablePendingTransfersParams pages by (created_at, id). A nil AfterCreatedAt starts
// from the oldest row.
type ListExpirablePendingTransfersParams struct {
	CreatedBefore  time.Time
	AfterCreatedAt *time.Time
	AfterID        uuid.UUID
	Limit          int32
}

type InsertAuditLogParams struct {
	EntityType string
	EntityID   uuid.UUID
	ActorID    *uuid.UUID
	Action     string
	PrevState  *string
	NextState  *string
	Metadata   []byte
}

type ReserveIdempotencyKeyParams struct {
	IdempotencyKey string
	RequestHash    string
	Method         string
	Path           string
}

type FinalizeIdempotencyKeyParams struct {
	ResponseStatus int32
	ResponseBody   []byte
	ContentType    string
	IdempotencyKey string
	RequestHash    string
}

type ReleaseIdempotencyKeyParams struct {
	IdempotencyKey string
	RequestHash    string
}

type RecordRedeemFailureParams struct {
	PrincipalKey string
	Now          time.Time
	Window       time.Duration
}
