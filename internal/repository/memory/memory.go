// Package memory is the canonical in-process implementation of the ledger
// store contracts. It backs the test suites and single-node deployments;
// the postgres package provides the durable production adapter.
package memory

import (
	"github.com/slickledger/ledger/internal/repository"
)

var (
	_ repository.AccountStore     = (*AccountStore)(nil)
	_ repository.TransactionStore = (*TransactionStore)(nil)
	_ repository.AuditStore       = (*AuditStore)(nil)
)
