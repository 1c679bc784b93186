package repository

import (
	"context"
	"time"

	"github.com/slickledger/ledger/internal/domain"
	"github.com/slickledger/ledger/internal/models"
)

// AccountFilter narrows List results. Zero values mean "any".
type AccountFilter struct {
	HolderID   string
	ParentID   string
	Type       domain.AccountType
	ActiveOnly bool
}

// AccountStore persists accounts and their balance pair.
//
// AdjustBalance must be atomic with respect to concurrent callers on the
// same account id: implementations apply both deltas and bump updated_at in
// a single step, never as a read followed by a separate write.
type AccountStore interface {
	Create(ctx context.Context, account *models.Account) error
	Get(ctx context.Context, id string) (*models.Account, error)
	List(ctx context.Context, filter AccountFilter) ([]*models.Account, error)
	AdjustBalance(ctx context.Context, id string, balanceDelta, availableDelta int64) (*models.Account, error)
	SetActive(ctx context.Context, id string, active bool) (*models.Account, error)
}

// TransactionStore persists transactions keyed by id.
//
// UpdateStatus is the compare-and-swap primitive: the write succeeds only if
// the stored status equals expected, otherwise it fails with
// models.ErrInvalidState. Exactly one of two racing transitions can win.
type TransactionStore interface {
	Create(ctx context.Context, txn *models.Transaction) error
	Get(ctx context.Context, id string) (*models.Transaction, error)
	ListByAccount(ctx context.Context, accountID string) ([]*models.Transaction, error)
	ListByStatus(ctx context.Context, accountID string, status domain.TransactionStatus) ([]*models.Transaction, error)

	// Update applies mutate to a copy of the stored transaction and persists
	// the result, rejecting with models.ErrValidation any change to fields
	// that are immutable in the transaction's lifecycle state.
	Update(ctx context.Context, id string, mutate func(*models.Transaction) error) (*models.Transaction, error)

	// UpdateStatus transitions status from expected to next, stamping
	// processed_at or voided_at with at as appropriate. Transitioning back
	// to pending clears the stamp (compensation path).
	UpdateStatus(ctx context.Context, id string, expected, next domain.TransactionStatus, at time.Time) (*models.Transaction, error)
}

// AuditStore records immutable lifecycle trail entries.
type AuditStore interface {
	Append(ctx context.Context, rec *models.AuditRecord) error
	ListByEntity(ctx context.Context, entityID string) ([]*models.AuditRecord, error)
}
