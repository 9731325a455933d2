// Package models holds the JSON views returned by the API. Amounts are decimal strings
// rendered at the currency's settlement precision.
package models

import (
	"time"

	"github.com/google/uuid"
)

// RedactedCode replaces transfer and receiver codes for anyone but the sender.
const RedactedCode = "******"

type Balance struct {
	AccountID uuid.UUID `json:"account_id"`
	Currency  string    `json:"currency"`
	Amount    string    `json:"amount"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

type Quote struct {
	TransferType       string `json:"transfer_type"`
	Currency           string `json:"currency"`
	Amount             string `json:"amount"`
	SystemCommission   string `json:"system_commission"`
	ReceiverCommission string `json:"receiver_commission"`
	Total              string `json:"total"`
}

type Transfer struct {
	ID                 uuid.UUID  `json:"id"`
	SenderAccountID    uuid.UUID  `json:"sender_account_id"`
	SenderName         string     `json:"sender_name,omitempty"`
	ReceiverOfficeID   uuid.UUID  `json:"receiver_office_id"`
	DestinationCountry string     `json:"destination_country"`
	TransferType       string     `json:"transfer_type"`
	Currency           string     `json:"currency"`
	Amount             string     `json:"amount"`
	SystemCommission   string     `json:"system_commission"`
	ReceiverCommission string     `json:"receiver_commission"`
	TotalDebited       string     `json:"total_debited"`
	TransferCode       string     `json:"transfer_code"`
	ReceiverCode       *string    `json:"receiver_code,omitempty"`
	ReceiverName       string     `json:"receiver_name"`
	ReceiverPhone      string     `json:"receiver_phone,omitempty"`
	Notes              string     `json:"notes,omitempty"`
	Status             string     `json:"status"`
	RedeemedBy         *uuid.UUID `json:"redeemed_by,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	ExpiredAt          *time.Time `json:"expired_at,omitempty"`
}

type Office struct {
	ID                 uuid.UUID `json:"id"`
	Name               string    `json:"name"`
	Country            string    `json:"country"`
	AcceptedCurrencies []string  `json:"accepted_currencies"`
	Active             bool      `json:"active"`
}

// CancelledTransfer is the cancel response: the lowercase terminal status plus what went back
// to the sender.
type CancelledTransfer struct {
	ID          uuid.UUID  `json:"id"`
	Status      string     `json:"status"`
	Currency    string     `json:"currency"`
	Refunded    string     `json:"refunded"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
}

// Redact masks the codes in place.
func (t *Transfer) Redact() {
	t.TransferCode = RedactedCode
	if t.ReceiverCode != nil {
		masked := RedactedCode
		t.ReceiverCode = &masked
	}
}

type InternalTransfer struct {
	ReferenceID       uuid.UUID `json:"reference_id"`
	SenderAccountID   uuid.UUID `json:"sender_account_id"`
	ReceiverAccountID uuid.UUID `json:"receiver_account_id"`
	Currency          string    `json:"currency"`
	Amount            string    `json:"amount"`
	SystemCommission  string    `json:"system_commission"`
	TotalDebited      string    `json:"total_debited"`
}

type CommissionRule struct {
	ID           uuid.UUID `json:"id"`
	TransferType string    `json:"transfer_type"`
	Currency     string    `json:"currency"`
	Scope        string    `json:"scope"`
	Party        string    `json:"party"`
	Kind         string    `json:"kind"`
	Value        string    `json:"value"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Entry struct {
	ID            uuid.UUID `json:"id"`
	ReferenceID   uuid.UUID `json:"reference_id"`
	ReferenceKind string    `json:"reference_kind"`
	AccountID     uuid.UUID `json:"account_id"`
	Currency      string    `json:"currency"`
	Amount        string    `json:"amount"`
	Direction     string    `json:"direction"` // "debit" or "credit"
	CreatedAt     time.Time `json:"created_at"`
}

type ExpirySweep struct {
	Expired int `json:"expired"`
}
