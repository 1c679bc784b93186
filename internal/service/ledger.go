package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/slickledger/ledger/internal/domain"
	"github.com/slickledger/ledger/internal/gateway"
	"github.com/slickledger/ledger/internal/models"
	"github.com/slickledger/ledger/internal/observability"
	"github.com/slickledger/ledger/internal/repository"
	"go.uber.org/zap"
)

// LedgerService is the facade the API layer calls; it orchestrates the
// account and transaction stores, the state machine, and the balance
// reconciliation engine, and is the only entry point into the core.
type LedgerService struct {
	accounts     repository.AccountStore
	transactions repository.TransactionStore
	engine       *Engine
	audit        *AuditService
	institutions gateway.InstitutionGateway
}

func NewLedgerService(
	accounts repository.AccountStore,
	transactions repository.TransactionStore,
	engine *Engine,
	audit *AuditService,
	institutions gateway.InstitutionGateway,
) *LedgerService {
	return &LedgerService{
		accounts:     accounts,
		transactions: transactions,
		engine:       engine,
		audit:        audit,
		institutions: institutions,
	}
}

// CreateAccountParams carries the fields for any of the three account kinds.
type CreateAccountParams struct {
	AccountName     string
	AccountType     domain.AccountType
	Currency        string
	AccountHolderID string
	OpeningBalance  int64
	AllowOverdraft  bool
	Metadata        map[string]string

	// Sub-ledger accounts only.
	ParentAccountID string

	// Linked accounts only.
	LinkedAccountID string
	InstitutionID   string
	InstitutionName string
}

// CreateAccount validates and persists a new account. Sub-ledger accounts
// require an active general-ledger parent; linked accounts are authorized
// against the external institution before they are usable.
func (s *LedgerService) CreateAccount(ctx context.Context, params CreateAccountParams) (*models.Account, error) {
	if params.AccountName == "" || params.AccountHolderID == "" {
		return nil, fmt.Errorf("%w: account_name and account_holder_id are required", models.ErrValidation)
	}
	if !domain.ValidAccountType(params.AccountType) {
		return nil, fmt.Errorf("%w: unknown account type %q", models.ErrValidation, params.AccountType)
	}
	if !domain.ValidCurrency(params.Currency) {
		return nil, fmt.Errorf("%w: invalid currency %q", models.ErrValidation, params.Currency)
	}
	if params.OpeningBalance < 0 {
		return nil, fmt.Errorf("%w: opening balance must not be negative", models.ErrValidation)
	}

	account := &models.Account{
		ID:               uuid.NewString(),
		AccountName:      params.AccountName,
		AccountType:      params.AccountType,
		Balance:          params.OpeningBalance,
		AvailableBalance: params.OpeningBalance,
		OpeningBalance:   params.OpeningBalance,
		Currency:         params.Currency,
		AccountHolderID:  params.AccountHolderID,
		Active:           true,
		AllowOverdraft:   params.AllowOverdraft,
		Metadata:         params.Metadata,
	}

	switch params.AccountType {
	case domain.AccountSubLedger:
		if params.ParentAccountID == "" {
			return nil, fmt.Errorf("%w: sub-ledger account requires parent_account_id", models.ErrValidation)
		}
		parent, err := s.accounts.Get(ctx, params.ParentAccountID)
		if err != nil {
			return nil, err
		}
		if parent.AccountType != domain.AccountGeneralLedger {
			return nil, fmt.Errorf("%w: parent %s is not a general-ledger account", models.ErrValidation, parent.ID)
		}
		if !parent.Active {
			return nil, fmt.Errorf("%w: parent account %s is inactive", models.ErrValidation, parent.ID)
		}
		account.ParentAccountID = params.ParentAccountID

	case domain.AccountLinked:
		if params.LinkedAccountID == "" || params.InstitutionID == "" || params.InstitutionName == "" {
			return nil, fmt.Errorf("%w: linked account requires linked_account_id, institution_id and institution_name", models.ErrValidation)
		}
		account.LinkedAccountID = params.LinkedAccountID
		account.InstitutionID = params.InstitutionID
		account.InstitutionName = params.InstitutionName
		if _, err := s.institutions.AuthorizeLink(ctx, params.InstitutionID, params.LinkedAccountID); err != nil {
			account.LinkStatus = domain.LinkError
			return nil, fmt.Errorf("authorize institution link: %w", err)
		}
		now := time.Now().UTC()
		account.LinkStatus = domain.LinkActive
		account.LinkAuthorizedAt = &now

	default:
		if params.ParentAccountID != "" {
			return nil, fmt.Errorf("%w: only sub-ledger accounts take a parent_account_id", models.ErrValidation)
		}
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		return nil, err
	}
	s.writeAudit(ctx, "account", account.ID, "account.create", "", string(params.AccountType), nil)
	return account, nil
}

// GetAccount returns the account by id.
func (s *LedgerService) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	return s.accounts.Get(ctx, id)
}

// ListAccounts returns accounts matching the filter.
func (s *LedgerService) ListAccounts(ctx context.Context, filter repository.AccountFilter) ([]*models.Account, error) {
	return s.accounts.List(ctx, filter)
}

// AccountBalance is the balance pair reported for one account.
type AccountBalance struct {
	AccountID        string `json:"id"`
	Balance          int64  `json:"balance"`
	AvailableBalance int64  `json:"available_balance"`
	Currency         string `json:"currency"`
}

// GetAccountBalance returns the current posted and available balances.
func (s *LedgerService) GetAccountBalance(ctx context.Context, id string) (*AccountBalance, error) {
	account, err := s.accounts.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &AccountBalance{
		AccountID:        account.ID,
		Balance:          account.Balance,
		AvailableBalance: account.AvailableBalance,
		Currency:         account.Currency,
	}, nil
}

// DeactivateAccount retires an account. A general-ledger account with
// active sub-ledger children cannot be retired; the children go first.
// Nothing is physically deleted.
func (s *LedgerService) DeactivateAccount(ctx context.Context, id string) (*models.Account, error) {
	account, err := s.accounts.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if account.AccountType == domain.AccountGeneralLedger {
		children, err := s.accounts.List(ctx, repository.AccountFilter{ParentID: id, ActiveOnly: true})
		if err != nil {
			return nil, err
		}
		if len(children) > 0 {
			return nil, fmt.Errorf("%w: account %s has %d active sub-ledger accounts", models.ErrValidation, id, len(children))
		}
	}
	updated, err := s.accounts.SetActive(ctx, id, false)
	if err != nil {
		return nil, err
	}
	s.writeAudit(ctx, "account", id, "account.deactivate", "active", "inactive", nil)
	return updated, nil
}

// CreateTransactionParams carries a new transaction request.
type CreateTransactionParams struct {
	AccountID            string
	DestinationAccountID string
	Amount               int64
	Reference            string
	Description          string
	Type                 domain.TransactionType
	Method               domain.TransactionMethod
	MethodID             string
}

// CreateTransaction validates the request and persists the transaction in
// PENDING. Balances do not move until processing: creation is the
// authorization half of the authorization/settlement split.
func (s *LedgerService) CreateTransaction(ctx context.Context, params CreateTransactionParams) (*models.Transaction, error) {
	if params.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", models.ErrValidation)
	}
	if len(params.Reference) > domain.MaxReferenceLen {
		return nil, fmt.Errorf("%w: reference exceeds %d characters", models.ErrValidation, domain.MaxReferenceLen)
	}
	if len(params.Description) > domain.MaxDescriptionLen {
		return nil, fmt.Errorf("%w: description exceeds %d characters", models.ErrValidation, domain.MaxDescriptionLen)
	}
	if !domain.ValidTransactionType(params.Type) {
		return nil, fmt.Errorf("%w: unknown transaction type %q", models.ErrValidation, params.Type)
	}
	if !domain.ValidTransactionMethod(params.Method) {
		return nil, fmt.Errorf("%w: unknown transaction method %q", models.ErrValidation, params.Method)
	}
	if params.AccountID == "" || params.DestinationAccountID == "" {
		return nil, fmt.Errorf("%w: account_id and destination_account_id are required", models.ErrValidation)
	}
	if params.AccountID == params.DestinationAccountID {
		return nil, fmt.Errorf("%w: source and destination must differ", models.ErrValidation)
	}

	source, err := s.accounts.Get(ctx, params.AccountID)
	if err != nil {
		return nil, err
	}
	dest, err := s.accounts.Get(ctx, params.DestinationAccountID)
	if err != nil {
		return nil, err
	}
	if !source.Active {
		return nil, fmt.Errorf("%w: source account %s is inactive", models.ErrValidation, source.ID)
	}
	if !dest.Active {
		return nil, fmt.Errorf("%w: destination account %s is inactive", models.ErrValidation, dest.ID)
	}
	if source.Currency != dest.Currency {
		return nil, fmt.Errorf("%w: currency mismatch, source is %s and destination is %s",
			models.ErrValidation, source.Currency, dest.Currency)
	}

	txn := &models.Transaction{
		ID:                   uuid.NewString(),
		AccountID:            params.AccountID,
		DestinationAccountID: params.DestinationAccountID,
		Amount:               params.Amount,
		Currency:             source.Currency,
		Reference:            params.Reference,
		Description:          params.Description,
		Type:                 params.Type,
		Method:               params.Method,
		MethodID:             params.MethodID,
		Status:               domain.StatusPending,
	}
	if err := s.transactions.Create(ctx, txn); err != nil {
		return nil, err
	}

	observability.IncrementTransition("create", "ok")
	s.writeAudit(ctx, "transaction", txn.ID, "transaction.create", "", string(domain.StatusPending), map[string]string{
		"amount":   domain.FormatMicros(txn.Amount),
		"currency": txn.Currency,
		"type":     string(txn.Type),
	})
	return txn, nil
}

// GetTransaction returns the transaction by id.
func (s *LedgerService) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	return s.transactions.Get(ctx, id)
}

// ListTransactions returns transactions touching the account, optionally
// narrowed to one status.
func (s *LedgerService) ListTransactions(ctx context.Context, accountID string, status domain.TransactionStatus) ([]*models.Transaction, error) {
	if status == "" {
		return s.transactions.ListByAccount(ctx, accountID)
	}
	if !domain.ValidTransactionStatus(status) {
		return nil, fmt.Errorf("%w: unknown transaction status %q", models.ErrValidation, status)
	}
	return s.transactions.ListByStatus(ctx, accountID, status)
}

// ProcessTransaction settles a pending transaction: the engine applies both
// legs and the status moves PENDING -> PROCESSED via CAS. The CAS runs
// under the account locks before any balance moves, so of two concurrent
// calls exactly one settles and the loser fails with ErrInvalidState. On
// InsufficientFunds the claim is reverted and the transaction stays PENDING.
func (s *LedgerService) ProcessTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	txn, err := s.transactions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canTransition(txn.Status, domain.StatusProcessed) {
		observability.IncrementTransition("process", "invalid_state")
		return nil, fmt.Errorf("%w: cannot process transaction in status %s", models.ErrInvalidState, txn.Status)
	}

	sourceDelta, destDelta := legsFor(txn.Type, txn.Amount)
	now := time.Now().UTC()

	var processed *models.Transaction
	claim := func() error {
		updated, err := s.transactions.UpdateStatus(ctx, id, domain.StatusPending, domain.StatusProcessed, now)
		if err != nil {
			return err
		}
		processed = updated
		return nil
	}
	revert := func() error {
		_, err := s.transactions.UpdateStatus(ctx, id, domain.StatusProcessed, domain.StatusPending, time.Time{})
		return err
	}

	err = s.engine.ApplyLegs(ctx, txn.AccountID, txn.DestinationAccountID, sourceDelta, destDelta,
		WithClaim(claim), WithRevert(revert))
	if err != nil {
		observability.IncrementTransition("process", transitionOutcome(err))
		return nil, err
	}

	observability.IncrementTransition("process", "ok")
	s.writeAudit(ctx, "transaction", id, "transaction.process",
		string(domain.StatusPending), string(domain.StatusProcessed), nil)
	return processed, nil
}

// VoidTransaction voids a transaction. From PENDING the status simply flips
// (no funds ever moved); from PROCESSED the engine force-applies the
// negated legs so both accounts return to their pre-processing balances.
func (s *LedgerService) VoidTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	txn, err := s.transactions.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if txn.Status == domain.StatusPending {
		voided, err := s.transactions.UpdateStatus(ctx, id, domain.StatusPending, domain.StatusVoid, now)
		if err == nil {
			observability.IncrementTransition("void", "ok")
			s.writeAudit(ctx, "transaction", id, "transaction.void",
				string(domain.StatusPending), string(domain.StatusVoid), nil)
			return voided, nil
		}
		if !errors.Is(err, models.ErrInvalidState) {
			return nil, err
		}
		// Lost the race against a concurrent process; reload and fall
		// through to the reversal path if the settle won.
		txn, err = s.transactions.Get(ctx, id)
		if err != nil {
			return nil, err
		}
	}

	if txn.Status != domain.StatusProcessed {
		observability.IncrementTransition("void", "invalid_state")
		return nil, fmt.Errorf("%w: cannot void transaction in status %s", models.ErrInvalidState, txn.Status)
	}

	sourceDelta, destDelta := legsFor(txn.Type, txn.Amount)
	processedAt := now
	if txn.ProcessedAt != nil {
		processedAt = *txn.ProcessedAt
	}

	var voided *models.Transaction
	claim := func() error {
		updated, err := s.transactions.UpdateStatus(ctx, id, domain.StatusProcessed, domain.StatusVoid, now)
		if err != nil {
			return err
		}
		voided = updated
		return nil
	}
	revert := func() error {
		_, err := s.transactions.UpdateStatus(ctx, id, domain.StatusVoid, domain.StatusProcessed, processedAt)
		return err
	}

	err = s.engine.ApplyLegs(ctx, txn.AccountID, txn.DestinationAccountID,
		sourceDelta.Negate(), destDelta.Negate(),
		Force(), WithClaim(claim), WithRevert(revert))
	if err != nil {
		observability.IncrementTransition("void", transitionOutcome(err))
		return nil, err
	}

	observability.IncrementTransition("void", "ok")
	s.writeAudit(ctx, "transaction", id, "transaction.void",
		string(domain.StatusProcessed), string(domain.StatusVoid), nil)
	return voided, nil
}

// DisputeTransaction raises the disputed flag. The flag is orthogonal to
// the lifecycle and can be set in any status; balances never move.
func (s *LedgerService) DisputeTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	txn, err := s.transactions.Update(ctx, id, func(t *models.Transaction) error {
		t.Disputed = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	observability.IncrementTransition("dispute", "ok")
	s.writeAudit(ctx, "transaction", id, "transaction.dispute", "", "", nil)
	return txn, nil
}

// TransactionUpdate carries the metadata fields that stay editable after a
// transaction reaches a terminal state.
type TransactionUpdate struct {
	Reference   *string
	Description *string
	Method      *domain.TransactionMethod
	MethodID    *string
}

// UpdateTransaction edits reference/description/method metadata. All other
// fields are immutable once the transaction exists.
func (s *LedgerService) UpdateTransaction(ctx context.Context, id string, update TransactionUpdate) (*models.Transaction, error) {
	if update.Reference != nil && len(*update.Reference) > domain.MaxReferenceLen {
		return nil, fmt.Errorf("%w: reference exceeds %d characters", models.ErrValidation, domain.MaxReferenceLen)
	}
	if update.Description != nil && len(*update.Description) > domain.MaxDescriptionLen {
		return nil, fmt.Errorf("%w: description exceeds %d characters", models.ErrValidation, domain.MaxDescriptionLen)
	}
	if update.Method != nil && !domain.ValidTransactionMethod(*update.Method) {
		return nil, fmt.Errorf("%w: unknown transaction method %q", models.ErrValidation, *update.Method)
	}

	return s.transactions.Update(ctx, id, func(t *models.Transaction) error {
		if update.Reference != nil {
			t.Reference = *update.Reference
		}
		if update.Description != nil {
			t.Description = *update.Description
		}
		if update.Method != nil {
			t.Method = *update.Method
		}
		if update.MethodID != nil {
			t.MethodID = *update.MethodID
		}
		return nil
	})
}

// AuditTrail exposes the immutable trail for one entity.
func (s *LedgerService) AuditTrail(ctx context.Context, entityID string) ([]*models.AuditRecord, error) {
	return s.audit.Trail(ctx, entityID)
}

func (s *LedgerService) writeAudit(ctx context.Context, entityType, entityID, action, prev, next string, metadata map[string]string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Write(ctx, entityType, entityID, action, prev, next, metadata); err != nil {
		zap.L().Warn("audit write failed", zap.String("entity_id", entityID), zap.String("action", action), zap.Error(err))
	}
}

func transitionOutcome(err error) string {
	switch {
	case errors.Is(err, models.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, models.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, models.ErrLockTimeout):
		return "lock_timeout"
	default:
		return "error"
	}
}
