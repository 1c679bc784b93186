package service

import (
	"context"
	"testing"
	"time"

	"github.com/slickledger/ledger/internal/domain"
	"github.com/slickledger/ledger/internal/gateway"
	"github.com/slickledger/ledger/internal/models"
	"github.com/slickledger/ledger/internal/repository/memory"
	"github.com/stretchr/testify/require"
)

type testLedger struct {
	svc      *LedgerService
	accounts *memory.AccountStore
	txns     *memory.TransactionStore
	audit    *memory.AuditStore
	engine   *Engine
}

func newTestLedger(t *testing.T) *testLedger {
	t.Helper()
	accounts := memory.NewAccountStore()
	txns := memory.NewTransactionStore()
	auditStore := memory.NewAuditStore()
	engine := NewEngine(accounts, 2*time.Second)
	institutions := &gateway.MockGateway{FailureRate: 0, MaxDelay: time.Millisecond}
	svc := NewLedgerService(accounts, txns, engine, NewAuditService(auditStore), institutions)
	return &testLedger{svc: svc, accounts: accounts, txns: txns, audit: auditStore, engine: engine}
}

func (l *testLedger) createAccount(t *testing.T, name string, openingMicros int64) *models.Account {
	t.Helper()
	account, err := l.svc.CreateAccount(context.Background(), CreateAccountParams{
		AccountName:     name,
		AccountType:     domain.AccountGeneralLedger,
		Currency:        "USD",
		AccountHolderID: "holder-" + name,
		OpeningBalance:  openingMicros,
	})
	require.NoError(t, err)
	return account
}

func (l *testLedger) createTransfer(t *testing.T, from, to string, amountMicros int64) *models.Transaction {
	t.Helper()
	txn, err := l.svc.CreateTransaction(context.Background(), CreateTransactionParams{
		AccountID:            from,
		DestinationAccountID: to,
		Amount:               amountMicros,
		Type:                 domain.TypeTransferDebit,
		Method:               domain.MethodElectronicTransfer,
	})
	require.NoError(t, err)
	return txn
}

func (l *testLedger) balance(t *testing.T, id string) (balance, available int64) {
	t.Helper()
	account, err := l.accounts.Get(context.Background(), id)
	require.NoError(t, err)
	return account.Balance, account.AvailableBalance
}

const usd = int64(1_000_000)
