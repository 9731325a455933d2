package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ayo6706/remittance-ledger/internal/domain"
	"github.com/ayo6706/remittance-ledger/internal/observability"
	"github.com/ayo6706/remittance-ledger/internal/repository"
	"github.com/google/uuid"
)

var transferTransitions = map[string]map[string]struct{}{
	domain.TransferStatusPending: {
		domain.TransferStatusCompleted: {},
		domain.TransferStatusCancelled: {},
		domain.TransferStatusExpired:   {},
	},
	domain.TransferStatusCompleted: {},
	domain.TransferStatusCancelled: {},
	domain.TransferStatusExpired:   {},
}

func normalizeState(state string) string {
	return strings.ToUpper(strings.TrimSpace(state))
}

func canTransition(current, next string) bool {
	nextStates, ok := transferTransitions[normalizeState(current)]
	if !ok {
		return false
	}
	_, ok = nextStates[normalizeState(next)]
	return ok
}

func isTerminal(state string) bool {
	next, ok := transferTransitions[normalizeState(state)]
	return ok && len(next) == 0
}

// transitionTransfer moves a row-locked transfer to next, stamping the matching timestamp and
// writing the audit record.
func transitionTransfer(ctx context.Context, qtx repository.Querier, audit *AuditService, t *repository.Transfer, next string, at time.Time, actorID *uuid.UUID, action string, metadata []byte) error {
	if !canTransition(t.Status, next) {
		if isTerminal(t.Status) {
			return domain.ErrAlreadyTerminal
		}
		return fmt.Errorf("invalid transfer state transition: %s -> %s", t.Status, next)
	}

	var redeemedBy *uuid.UUID
	if next == domain.TransferStatusCompleted {
		redeemedBy = actorID
	}
	rows, err := qtx.UpdateTransferStatus(ctx, repository.UpdateTransferStatusParams{
		ID:         t.ID,
		Status:     next,
		At:         at,
		RedeemedBy: redeemedBy,
	})
	if err != nil {
		return fmt.Errorf("update transfer state: %w", err)
	}
	if err := requireExactlyOne(rows, "update transfer state"); err != nil {
		return err
	}

	prev := t.Status
	if err := audit.Write(ctx, qtx, "transfer", t.ID, actorID, action, prev, next, metadata); err != nil {
		return err
	}

	t.Status = next
	switch next {
	case domain.TransferStatusCompleted:
		t.CompletedAt = &at
		t.RedeemedBy = redeemedBy
	case domain.TransferStatusCancelled:
		t.CancelledAt = &at
	case domain.TransferStatusExpired:
		t.ExpiredAt = &at
	}
	observability.IncrementTransferTransition(prev, next)
	return nil
}
