package service

import (
	"github.com/slickledger/ledger/internal/domain"
)

// transactionTransitions is the lifecycle table. Pending settles or voids;
// a processed transaction can still be voided (reversal); void is terminal.
// The disputed flag is orthogonal and never appears here.
var transactionTransitions = map[domain.TransactionStatus]map[domain.TransactionStatus]struct{}{
	domain.StatusPending: {
		domain.StatusProcessed: {},
		domain.StatusVoid:      {},
	},
	domain.StatusProcessed: {
		domain.StatusVoid: {},
	},
	domain.StatusVoid: {},
}

func canTransition(current, next domain.TransactionStatus) bool {
	nextStates, ok := transactionTransitions[current]
	if !ok {
		return false
	}
	_, ok = nextStates[next]
	return ok
}

// legsFor computes the signed balance deltas a transaction of the given type
// and magnitude applies to its source and destination accounts. Debit types
// move funds source -> destination; credit types are the mirror image.
// Available balance moves in lockstep with the posted balance: no hold is
// placed at creation, so the pair diverges only for storage backends that
// track external holds.
func legsFor(txnType domain.TransactionType, amount int64) (source, dest Delta) {
	out := Delta{Balance: -amount, Available: -amount}
	in := Delta{Balance: amount, Available: amount}
	if txnType.DebitsSource() {
		return out, in
	}
	return in, out
}
