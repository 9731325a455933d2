package repository

import (
	"time"

	"github.com/google/uuid"
)

type Account struct {
	ID        uuid.UUID
	OwnerID   uuid.UUID
	Kind      string
	CreatedAt time.Time
}

type Balance struct {
	AccountID     uuid.UUID
	Currency      string
	BalanceMicros int64
	Version       int64
	UpdatedAt     time.Time
}

type CommissionRule struct {
	ID           uuid.UUID
	TransferType string
	Currency     string
	Scope        string
	Party        string
	Kind         string
	ValueMicros  int64
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Transfer struct {
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
	Status                   string
	RedeemedBy               *uuid.UUID
	CreatedAt                time.Time
	CompletedAt              *time.Time
	CancelledAt              *time.Time
	ExpiredAt                *time.Time
}

type Entry struct {
	ID            uuid.UUID
	ReferenceID   uuid.UUID
	ReferenceKind string
	AccountID     uuid.UUID
	Currency      string
	AmountMicros  int64
	Direction     string
	CreatedAt     time.Time
}

type Office struct {
	ID                 uuid.UUID
	Name               string
	Country            string
	AcceptedCurrencies []string
	Active             bool
}

type IdempotencyKey struct {
	IdempotencyKey string
	RequestHash    string
	Method         string
	Path           string
	ResponseStatus int32
	ResponseBody   []byte
	ContentType    string
	InProgress     bool
}

type RedeemAttempt struct {
	PrincipalKey string
	WindowStart  time.Time
	Failures     int32
}

// CurrencyNet is a per-currency signed total.
type CurrencyNet struct {
	Currency  string
	NetMicros int64
}

// ReferenceImbalance is a ledger reference whose entries do not net to zero.
type ReferenceImbalance struct {
	ReferenceID uuid.UUID
	Currency    string
	NetMicros   int64
}

// BalanceDrift is a balance row that disagrees with its journal.
type BalanceDrift struct {
	AccountID     uuid.UUID
	Currency      string
	BalanceMicros int64
	JournalMicros int64
}
