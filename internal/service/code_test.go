package service

import (
	"bytes"
	"context"
	"testing"

	"github.com/ayo6706/remittance-ledger/internal/domain"
	"github.com/ayo6706/remittance-ledger/internal/testutil/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodesStayInRange(t *testing.T) {
	g := NewCodeGenerator(nil, 0)
	q := memstore.New().Queries()
	for i := 0; i < 200; i++ {
		code, err := g.TransferCode(context.Background(), q)
		require.NoError(t, err)
		assert.Regexp(t, `^[1-9][0-9]{5}$`, code)

		rc, err := g.ReceiverCode(code)
		require.NoError(t, err)
		assert.NotEqual(t, code, rc)
	}
}

func TestReceiverCodeExhaustion(t *testing.T) {
	g := NewCodeGenerator(zeroReader{}, 2)
	code, err := g.TransferCode(context.Background(), memstore.New().Queries())
	require.NoError(t, err)
	assert.Equal(t, "100000", code)

	_, err = g.ReceiverCode(code)
	assert.ErrorIs(t, err, domain.ErrCodeExhausted)
}

func TestCodeReaderFailure(t *testing.T) {
	g := NewCodeGenerator(bytes.NewReader(nil), 2)
	_, err := g.TransferCode(context.Background(), memstore.New().Queries())
	require.Error(t, err)
	assert.False(t, domain.IsDomain(err))
}
