package service

import (
	"testing"

	"github.com/slickledger/ledger/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	assert.True(t, canTransition(domain.StatusPending, domain.StatusProcessed))
	assert.True(t, canTransition(domain.StatusPending, domain.StatusVoid))
	assert.True(t, canTransition(domain.StatusProcessed, domain.StatusVoid))

	assert.False(t, canTransition(domain.StatusProcessed, domain.StatusProcessed))
	assert.False(t, canTransition(domain.StatusProcessed, domain.StatusPending))
	assert.False(t, canTransition(domain.StatusVoid, domain.StatusPending))
	assert.False(t, canTransition(domain.StatusVoid, domain.StatusProcessed))
	assert.False(t, canTransition("archived", domain.StatusVoid))
}

func TestLegsForDirection(t *testing.T) {
	out := Delta{Balance: -5 * usd, Available: -5 * usd}
	in := out.Negate()

	for _, typ := range []domain.TransactionType{
		domain.TypeDebit, domain.TypeRefundDebit, domain.TypeTransferDebit, domain.TypeReversalDebit,
	} {
		source, dest := legsFor(typ, 5*usd)
		assert.Equal(t, out, source, typ)
		assert.Equal(t, in, dest, typ)
	}

	for _, typ := range []domain.TransactionType{
		domain.TypeCredit, domain.TypeRefundCredit, domain.TypeTransferCredit, domain.TypeReversalCredit,
	} {
		source, dest := legsFor(typ, 5*usd)
		assert.Equal(t, in, source, typ)
		assert.Equal(t, out, dest, typ)
	}
}

func TestDeltaNegate(t *testing.T) {
	d := Delta{Balance: 3, Available: -7}
	assert.Equal(t, Delta{Balance: -3, Available: 7}, d.Negate())
	assert.Equal(t, d, d.Negate().Negate())
}
