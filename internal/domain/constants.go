package domain

// System IDs (Must match migration 000001)
const (
	SystemOwnerID = "11111111-1111-1111-1111-111111111111"

	SystemPoolAccountID = "22222222-2222-2222-2222-222222222222"
	EscrowAccountID     = "33333333-3333-3333-3333-333333333333"

	DirectionDebit  = "debit"
	DirectionCredit = "credit"

	AccountKindUser        = "user"
	AccountKindAgentOffice = "agentOffice"
	AccountKindSystemPool  = "systemPool"
	AccountKindEscrow      = "escrow"

	TransferStatusPending   = "PENDING"
	TransferStatusCompleted = "COMPLETED"
	TransferStatusCancelled = "CANCELLED"
	TransferStatusExpired   = "EXPIRED"

	RoleUser  = "user"
	RoleAgent = "agent"
	RoleAdmin = "admin"

	// Ledger references that are not transfers.
	ReferenceKindTransfer = "transfer"
	ReferenceKindInternal = "internal"
	ReferenceKindDeposit  = "deposit"
)

// TransferType selects which commission rules apply to a movement of funds.
type TransferType string

const (
	TransferTypeInternal      TransferType = "internal"
	TransferTypeCity          TransferType = "city"
	TransferTypeInterOffice   TransferType = "inter-office"
	TransferTypeInternational TransferType = "international"
	TransferTypeMarket        TransferType = "market"
)

// ParseTransferType validates a transfer type name.
func ParseTransferType(s string) (TransferType, error) {
	switch t := TransferType(s); t {
	case TransferTypeInternal, TransferTypeCity, TransferTypeInterOffice, TransferTypeInternational, TransferTypeMarket:
		return t, nil
	}
	return "", Validationf("unknown transfer type %q", s)
}
