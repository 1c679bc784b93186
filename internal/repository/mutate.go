package repository

import (
	"fmt"
	"time"

	"github.com/slickledger/ledger/internal/models"
)

// CheckImmutable rejects a mutator result that touched fields the lifecycle
// rules freeze: identity, accounts, amount, type, status, and timestamps.
// Disputed and the reference/description/method metadata stay editable in
// any state, so they are deliberately absent here.
func CheckImmutable(prev, next *models.Transaction) error {
	switch {
	case next.ID != prev.ID,
		next.AccountID != prev.AccountID,
		next.DestinationAccountID != prev.DestinationAccountID,
		next.Amount != prev.Amount,
		next.Currency != prev.Currency,
		next.Type != prev.Type,
		next.Status != prev.Status,
		!next.CreatedAt.Equal(prev.CreatedAt),
		!timePtrEqual(next.ProcessedAt, prev.ProcessedAt),
		!timePtrEqual(next.VoidedAt, prev.VoidedAt):
		return fmt.Errorf("%w: attempted update of immutable transaction field", models.ErrValidation)
	}
	return nil
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
