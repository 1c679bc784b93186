package models

import "errors"

// Typed failures surfaced by the ledger core. Callers branch on these with
// errors.Is; the core never retries on their behalf.
var (
	// ErrNotFound means the referenced account or transaction does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict means a create collided with an existing id.
	ErrConflict = errors.New("already exists")

	// ErrInvalidState means the requested transition is not legal from the
	// current status, including a lost double-process or double-void race.
	ErrInvalidState = errors.New("invalid transaction state")

	// ErrInsufficientFunds means a debit would drive available balance
	// negative on an account that does not permit overdraft.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrValidation means the request was malformed: bad enum value,
	// non-positive amount, or a field length limit exceeded.
	ErrValidation = errors.New("validation failed")

	// ErrLockTimeout means a per-account lock could not be acquired within
	// the configured bound. No side effect occurred; callers may retry.
	ErrLockTimeout = errors.New("account busy: lock acquisition timed out")
)
