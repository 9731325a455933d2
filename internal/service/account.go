package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/ayo6706/remittance-ledger/internal/domain"
	"github.com/ayo6706/remittance-ledger/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// AccountService exposes balances and statements to the account's owner, the members of an
// office for the office account, and admins.
type AccountService struct {
	store  QueryStore
	ledger *BalanceLedger
}

func NewAccountService(store QueryStore, ledger *BalanceLedger) *AccountService {
	return &AccountService{
		store:  store,
		ledger: ledger,
	}
}

func (s *AccountService) authorize(ctx context.Context, viewer domain.Principal, accountID uuid.UUID) error {
	if err := requireActive(viewer); err != nil {
		return err
	}
	if viewer.IsAdmin() {
		return nil
	}
	acct, err := s.store.Queries().GetAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) && accountID == viewer.AccountID {
			return nil
		}
		return notFoundOr(err, "account")
	}
	switch acct.Kind {
	case domain.AccountKindUser:
		if acct.ID == viewer.AccountID {
			return nil
		}
	case domain.AccountKindAgentOffice:
		if viewer.MemberOf(acct.OwnerID) {
			return nil
		}
	}
	return &domain.Error{Code: domain.CodeForbidden, Message: "cannot view this account"}
}

// GetBalances lists every currency balance; a wallet that was never used has none.
func (s *AccountService) GetBalances(ctx context.Context, viewer domain.Principal, accountID uuid.UUID) ([]repository.Balance, error) {
	if err := s.authorize(ctx, viewer, accountID); err != nil {
		return nil, err
	}
	rows, err := s.ledger.ListBalances(ctx, accountID)
	if errors.Is(err, domain.ErrNotFound) && accountID == viewer.AccountID {
		return nil, nil
	}
	return rows, err
}

func (s *AccountService) GetStatement(ctx context.Context, viewer domain.Principal, accountID uuid.UUID, page, pageSize int) ([]repository.Entry, error) {
	if err := s.authorize(ctx, viewer, accountID); err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 200 {
		pageSize = 10
	}
	offset := (page - 1) * pageSize
	return s.ledger.ListEntries(ctx, accountID, int32(pageSize), int32(offset))
}

// Deposit credits a wallet from the system pool. Admin only.
func (s *AccountService) Deposit(ctx context.Context, admin domain.Principal, accountID uuid.UUID, amount decimal.Decimal, currency, note string) (domain.Money, error) {
	if err := requireActive(admin); err != nil {
		return domain.Money{}, err
	}
	if !admin.IsAdmin() {
		return domain.Money{}, &domain.Error{Code: domain.CodeForbidden, Message: "admin role required"}
	}
	currency, err := domain.NormalizeCurrency(currency)
	if err != nil {
		return domain.Money{}, err
	}
	m, err := domain.ParseAmount(amount, currency)
	if err != nil {
		return domain.Money{}, err
	}
	balance, err := s.ledger.Deposit(ctx, admin.AccountID, accountID, m, note)
	if err != nil {
		return domain.Money{}, fmt.Errorf("deposit: %w", err)
	}
	return balance, nil
}
