package service

import (
	"errors"
	"fmt"

	"github.com/ayo6706/remittance-ledger/internal/domain"
	"github.com/jackc/pgx/v5"
)

func requireExactlyOne(rows int64, operation string) error {
	if rows != 1 {
		return fmt.Errorf("%s affected %d rows", operation, rows)
	}
	return nil
}

// notFoundOr maps pgx.ErrNoRows to a domain NotFound and wraps anything else.
func notFoundOr(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return &domain.Error{Code: domain.CodeNotFound, Message: what + " not found"}
	}
	return fmt.Errorf("get %s: %w", what, err)
}
