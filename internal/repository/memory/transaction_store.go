package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/slickledger/ledger/internal/domain"
	"github.com/slickledger/ledger/internal/models"
	"github.com/slickledger/ledger/internal/repository"
)

// TransactionStore keeps transactions in a mutex-guarded map with a
// per-account index. UpdateStatus performs the compare-and-swap under the
// store lock, so exactly one of two racing transitions can observe the
// expected prior status.
type TransactionStore struct {
	mu           sync.RWMutex
	transactions map[string]*models.Transaction
	accountIndex map[string][]string
}

func NewTransactionStore() *TransactionStore {
	return &TransactionStore{
		transactions: make(map[string]*models.Transaction),
		accountIndex: make(map[string][]string),
	}
}

func (s *TransactionStore) Create(ctx context.Context, txn *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.transactions[txn.ID]; exists {
		return fmt.Errorf("%w: transaction %s", models.ErrConflict, txn.ID)
	}

	now := time.Now().UTC()
	cp := txn.Clone()
	cp.CreatedAt = now
	cp.UpdatedAt = now
	s.transactions[cp.ID] = cp
	s.index(cp.AccountID, cp.ID)
	if cp.DestinationAccountID != cp.AccountID {
		s.index(cp.DestinationAccountID, cp.ID)
	}

	txn.CreatedAt = now
	txn.UpdatedAt = now
	return nil
}

func (s *TransactionStore) index(accountID, txnID string) {
	if accountID == "" {
		return
	}
	s.accountIndex[accountID] = append(s.accountIndex[accountID], txnID)
}

func (s *TransactionStore) Get(ctx context.Context, id string) (*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	txn, exists := s.transactions[id]
	if !exists {
		return nil, fmt.Errorf("%w: transaction %s", models.ErrNotFound, id)
	}
	return txn.Clone(), nil
}

func (s *TransactionStore) ListByAccount(ctx context.Context, accountID string) ([]*models.Transaction, error) {
	return s.list(accountID, "")
}

func (s *TransactionStore) ListByStatus(ctx context.Context, accountID string, status domain.TransactionStatus) ([]*models.Transaction, error) {
	return s.list(accountID, status)
}

func (s *TransactionStore) list(accountID string, status domain.TransactionStatus) ([]*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []*models.Transaction{}
	for _, id := range s.accountIndex[accountID] {
		txn := s.transactions[id]
		if status != "" && txn.Status != status {
			continue
		}
		result = append(result, txn.Clone())
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// Update applies mutate to a copy and persists it only if no immutable field
// changed. What counts as immutable follows the lifecycle rules: identity,
// amount, accounts, type, status, and timestamps never change here; disputed
// and the reference/description/method metadata stay editable in any state.
func (s *TransactionStore) Update(ctx context.Context, id string, mutate func(*models.Transaction) error) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, exists := s.transactions[id]
	if !exists {
		return nil, fmt.Errorf("%w: transaction %s", models.ErrNotFound, id)
	}

	next := stored.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}
	if err := repository.CheckImmutable(stored, next); err != nil {
		return nil, err
	}

	next.UpdatedAt = time.Now().UTC()
	s.transactions[id] = next
	return next.Clone(), nil
}

// UpdateStatus is the CAS transition primitive. processed_at and voided_at
// stay mutually exclusive: entering a state stamps its field and clears the
// other, and compensating back to pending clears both.
func (s *TransactionStore) UpdateStatus(ctx context.Context, id string, expected, next domain.TransactionStatus, at time.Time) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	txn, exists := s.transactions[id]
	if !exists {
		return nil, fmt.Errorf("%w: transaction %s", models.ErrNotFound, id)
	}
	if txn.Status != expected {
		return nil, fmt.Errorf("%w: expected %s, found %s", models.ErrInvalidState, expected, txn.Status)
	}

	txn.Status = next
	txn.UpdatedAt = time.Now().UTC()
	switch next {
	case domain.StatusProcessed:
		stamp := at
		txn.ProcessedAt = &stamp
		txn.VoidedAt = nil
	case domain.StatusVoid:
		stamp := at
		txn.VoidedAt = &stamp
		txn.ProcessedAt = nil
	case domain.StatusPending:
		txn.ProcessedAt = nil
		txn.VoidedAt = nil
	}
	return txn.Clone(), nil
}
