package service

import (
	"context"
	"fmt"
	"time"

	"github.com/slickledger/ledger/internal/models"
	"github.com/slickledger/ledger/internal/observability"
	"github.com/slickledger/ledger/internal/repository"
	"go.uber.org/zap"
)

// Delta is one leg's signed effect on an account's balance pair, in micros.
type Delta struct {
	Balance   int64
	Available int64
}

// Negate mirrors the delta for reversals.
func (d Delta) Negate() Delta {
	return Delta{Balance: -d.Balance, Available: -d.Available}
}

type applyConfig struct {
	force  bool
	claim  func() error
	revert func() error
}

// ApplyOption tunes a single ApplyLegs call.
type ApplyOption func(*applyConfig)

// Force skips the available-balance check. Used when reversing a processed
// posting: the reversal must restore the prior balances even if the funds
// have since moved on.
func Force() ApplyOption {
	return func(c *applyConfig) { c.force = true }
}

// WithClaim runs fn under the account locks before any balance moves.
// The state machine passes its CAS status transition here, so a lost race
// surfaces before either account is touched.
func WithClaim(fn func() error) ApplyOption {
	return func(c *applyConfig) { c.claim = fn }
}

// WithRevert runs fn when the legs cannot be applied after a successful
// claim, still under the account locks. It undoes the claim's CAS.
func WithRevert(fn func() error) ApplyOption {
	return func(c *applyConfig) { c.revert = fn }
}

// Engine applies the two legs of a transaction to the account store as an
// all-or-nothing unit. Exclusive access to both accounts is taken in
// lexicographic id order, the one lock-ordering discipline in the system,
// so opposing transfers on the same pair cannot deadlock.
type Engine struct {
	accounts    repository.AccountStore
	locks       *accountLocks
	lockTimeout time.Duration
}

// NewEngine creates a reconciliation engine over the account store.
// lockTimeout bounds each per-account lock acquisition; on expiry the caller
// receives models.ErrLockTimeout instead of blocking indefinitely.
func NewEngine(accounts repository.AccountStore, lockTimeout time.Duration) *Engine {
	if lockTimeout <= 0 {
		lockTimeout = 5 * time.Second
	}
	return &Engine{
		accounts:    accounts,
		locks:       newAccountLocks(),
		lockTimeout: lockTimeout,
	}
}

// ApplyLegs debits/credits sourceID and destID by the signed deltas. Either
// both accounts are updated or neither is. A negative available delta is
// refused with models.ErrInsufficientFunds when it would drive the
// account's available balance below zero and overdraft is not permitted.
func (e *Engine) ApplyLegs(ctx context.Context, sourceID, destID string, sourceDelta, destDelta Delta, opts ...ApplyOption) error {
	var cfg applyConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	release, err := e.lockPair(ctx, sourceID, destID)
	if err != nil {
		return err
	}
	defer release()

	source, err := e.accounts.Get(ctx, sourceID)
	if err != nil {
		return err
	}
	dest, err := e.accounts.Get(ctx, destID)
	if err != nil {
		return err
	}

	if cfg.claim != nil {
		if err := cfg.claim(); err != nil {
			return err
		}
	}

	if !cfg.force {
		if err := checkAvailable(source, sourceDelta); err != nil {
			e.undoClaim(cfg)
			return err
		}
		if err := checkAvailable(dest, destDelta); err != nil {
			e.undoClaim(cfg)
			return err
		}
	}

	if _, err := e.accounts.AdjustBalance(ctx, sourceID, sourceDelta.Balance, sourceDelta.Available); err != nil {
		e.undoClaim(cfg)
		return fmt.Errorf("apply source leg: %w", err)
	}
	if _, err := e.accounts.AdjustBalance(ctx, destID, destDelta.Balance, destDelta.Available); err != nil {
		// Roll the first leg back so the pair stays all-or-nothing.
		neg := sourceDelta.Negate()
		if _, compErr := e.accounts.AdjustBalance(ctx, sourceID, neg.Balance, neg.Available); compErr != nil {
			zap.L().Error("leg compensation failed, ledger requires manual repair",
				zap.String("account_id", sourceID), zap.Error(compErr))
		}
		e.undoClaim(cfg)
		return fmt.Errorf("apply destination leg: %w", err)
	}

	return nil
}

func (e *Engine) undoClaim(cfg applyConfig) {
	if cfg.revert == nil {
		return
	}
	if err := cfg.revert(); err != nil {
		zap.L().Error("claim revert failed", zap.Error(err))
	}
}

// lockPair acquires both account locks in lexicographic id order and
// returns a release function that unlocks in reverse order.
func (e *Engine) lockPair(ctx context.Context, a, b string) (func(), error) {
	first, second := a, b
	if second < first {
		first, second = second, first
	}

	start := time.Now()
	releaseFirst, err := e.locks.Acquire(ctx, first, e.lockTimeout)
	if err != nil {
		observability.IncrementLockTimeout()
		return nil, err
	}
	if first == second {
		observability.ObserveLockWait(time.Since(start))
		return releaseFirst, nil
	}
	releaseSecond, err := e.locks.Acquire(ctx, second, e.lockTimeout)
	if err != nil {
		releaseFirst()
		observability.IncrementLockTimeout()
		return nil, err
	}
	observability.ObserveLockWait(time.Since(start))

	return func() {
		releaseSecond()
		releaseFirst()
	}, nil
}

func checkAvailable(account *models.Account, delta Delta) error {
	if delta.Available >= 0 || account.AllowOverdraft {
		return nil
	}
	if account.AvailableBalance+delta.Available < 0 {
		observability.IncrementInsufficientFunds(account.Currency)
		return fmt.Errorf("%w: account %s", models.ErrInsufficientFunds, account.ID)
	}
	return nil
}
