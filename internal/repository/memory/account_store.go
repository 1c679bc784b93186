package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/slickledger/ledger/internal/models"
	"github.com/slickledger/ledger/internal/repository"
)

// AccountStore keeps accounts in a mutex-guarded map. Every read hands out a
// clone, so the map entries are only ever mutated under the store lock; that
// single writer discipline is what makes AdjustBalance atomic per account.
type AccountStore struct {
	mu          sync.RWMutex
	accounts    map[string]*models.Account
	holderIndex map[string][]string
}

func NewAccountStore() *AccountStore {
	return &AccountStore{
		accounts:    make(map[string]*models.Account),
		holderIndex: make(map[string][]string),
	}
}

func (s *AccountStore) Create(ctx context.Context, account *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[account.ID]; exists {
		return fmt.Errorf("%w: account %s", models.ErrConflict, account.ID)
	}

	now := time.Now().UTC()
	cp := account.Clone()
	cp.CreatedAt = now
	cp.UpdatedAt = now
	s.accounts[cp.ID] = cp
	if cp.AccountHolderID != "" {
		s.holderIndex[cp.AccountHolderID] = append(s.holderIndex[cp.AccountHolderID], cp.ID)
	}

	account.CreatedAt = now
	account.UpdatedAt = now
	return nil
}

func (s *AccountStore) Get(ctx context.Context, id string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, exists := s.accounts[id]
	if !exists {
		return nil, fmt.Errorf("%w: account %s", models.ErrNotFound, id)
	}
	return account.Clone(), nil
}

func (s *AccountStore) List(ctx context.Context, filter repository.AccountFilter) ([]*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.Account
	for _, account := range s.accounts {
		if filter.HolderID != "" && account.AccountHolderID != filter.HolderID {
			continue
		}
		if filter.ParentID != "" && account.ParentAccountID != filter.ParentID {
			continue
		}
		if filter.Type != "" && account.AccountType != filter.Type {
			continue
		}
		if filter.ActiveOnly && !account.Active {
			continue
		}
		result = append(result, account.Clone())
	}
	return result, nil
}

func (s *AccountStore) AdjustBalance(ctx context.Context, id string, balanceDelta, availableDelta int64) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, exists := s.accounts[id]
	if !exists {
		return nil, fmt.Errorf("%w: account %s", models.ErrNotFound, id)
	}

	account.Balance += balanceDelta
	account.AvailableBalance += availableDelta
	account.UpdatedAt = time.Now().UTC()
	return account.Clone(), nil
}

func (s *AccountStore) SetActive(ctx context.Context, id string, active bool) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, exists := s.accounts[id]
	if !exists {
		return nil, fmt.Errorf("%w: account %s", models.ErrNotFound, id)
	}

	account.Active = active
	account.UpdatedAt = time.Now().UTC()
	return account.Clone(), nil
}
