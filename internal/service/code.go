package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"math/big"

	"github.com/ayo6706/remittance-ledger/internal/domain"
	"github.com/ayo6706/remittance-ledger/internal/repository"
)

const (
	codeMin = 100000
	codeMax = 999999

	defaultCodeAttempts = 5
)

var codeSpan = big.NewInt(codeMax - codeMin + 1)

// CodeGenerator draws 6-digit transfer codes.
type CodeGenerator struct {
	rand     io.Reader
	attempts int
}

// NewCodeGenerator uses crypto/rand when r is nil.
func NewCodeGenerator(r io.Reader, attempts int) *CodeGenerator {
	if r == nil {
		r = rand.Reader
	}
	if attempts <= 0 {
		attempts = defaultCodeAttempts
	}
	return &CodeGenerator{rand: r, attempts: attempts}
}

func (g *CodeGenerator) draw() (string, error) {
	n, err := rand.Int(g.rand, codeSpan)
	if err != nil {
		return "", fmt.Errorf("read random code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+codeMin), nil
}

// TransferCode returns a code not held by any pending transfer. The check runs in the caller's
// transaction; the partial unique index settles any race that slips past it.
func (g *CodeGenerator) TransferCode(ctx context.Context, qtx repository.Querier) (string, error) {
	for i := 0; i < g.attempts; i++ {
		code, err := g.draw()
		if err != nil {
			return "", err
		}
		taken, err := qtx.PendingTransferCodeExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("check transfer code: %w", err)
		}
		if !taken {
			return code, nil
		}
	}
	return "", domain.ErrCodeExhausted
}

// ReceiverCode returns a code distinct from transferCode.
func (g *CodeGenerator) ReceiverCode(transferCode string) (string, error) {
	for i := 0; i < g.attempts; i++ {
		code, err := g.draw()
		if err != nil {
			return "", err
		}
		if code != transferCode {
			return code, nil
		}
	}
	return "", domain.ErrCodeExhausted
}
