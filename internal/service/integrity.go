package service

import (
	"context"

	"github.com/slickledger/ledger/internal/observability"
	"github.com/slickledger/ledger/internal/repository"
	"go.uber.org/zap"
)

// IntegrityService verifies ledger conservation: every settled transaction
// moved equal and opposite amounts, so the net change across all accounts
// since opening must be zero.
type IntegrityService struct {
	accounts repository.AccountStore
}

// NewIntegrityService creates an integrity checker over the account store.
func NewIntegrityService(accounts repository.AccountStore) *IntegrityService {
	return &IntegrityService{accounts: accounts}
}

// Run sums (balance - opening_balance) over every account and reports drift.
func (s *IntegrityService) Run(ctx context.Context) error {
	accounts, err := s.accounts.List(ctx, repository.AccountFilter{})
	if err != nil {
		return err
	}

	netByCurrency := make(map[string]int64)
	for _, account := range accounts {
		netByCurrency[account.Currency] += account.Balance - account.OpeningBalance
	}

	balanced := true
	for currency, net := range netByCurrency {
		if net == 0 {
			continue
		}
		balanced = false
		observability.IncrementLedgerImbalance()
		zap.L().Error("CRITICAL: ledger imbalance detected",
			zap.String("currency", currency), zap.Int64("net_micros", net))
	}

	if balanced {
		zap.L().Info("ledger balanced", zap.Int("accounts", len(accounts)))
	}
	return nil
}
