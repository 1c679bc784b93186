package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/slickledger/ledger/internal/models"
)

// accountLocks hands out one mutex per account id. Entries are refcounted
// and dropped once the last holder releases, so the map does not grow with
// the account population.
//
// Each mutex is a buffered channel so acquisition can race a deadline:
// sync.Mutex has no bounded TryLock-with-timeout, and nothing in the
// dependency set provides keyed mutexes.
type accountLocks struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	ch   chan struct{}
	refs int
}

func newAccountLocks() *accountLocks {
	return &accountLocks{entries: make(map[string]*lockEntry)}
}

// Acquire blocks until the lock for id is held, the timeout elapses, or ctx
// is canceled. On success the returned function releases the lock; on
// timeout the caller gets models.ErrLockTimeout and no lock is held.
func (l *accountLocks) Acquire(ctx context.Context, id string, timeout time.Duration) (func(), error) {
	l.mu.Lock()
	entry, ok := l.entries[id]
	if !ok {
		entry = &lockEntry{ch: make(chan struct{}, 1)}
		l.entries[id] = entry
	}
	entry.refs++
	l.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case entry.ch <- struct{}{}:
		return func() {
			<-entry.ch
			l.release(id)
		}, nil
	case <-timer.C:
		l.release(id)
		return nil, fmt.Errorf("%w: account %s", models.ErrLockTimeout, id)
	case <-ctx.Done():
		l.release(id)
		return nil, fmt.Errorf("acquire lock for account %s: %w", id, ctx.Err())
	}
}

func (l *accountLocks) release(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry := l.entries[id]
	entry.refs--
	if entry.refs == 0 {
		delete(l.entries, id)
	}
}
