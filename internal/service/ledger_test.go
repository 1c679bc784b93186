package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/slickledger/ledger/internal/domain"
	"github.com/slickledger/ledger/internal/gateway"
	"github.com/slickledger/ledger/internal/models"
	"github.com/slickledger/ledger/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAccountValidation(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	_, err := l.svc.CreateAccount(ctx, CreateAccountParams{
		AccountType: domain.AccountGeneralLedger, Currency: "USD",
	})
	assert.ErrorIs(t, err, models.ErrValidation, "missing name and holder")

	_, err = l.svc.CreateAccount(ctx, CreateAccountParams{
		AccountName: "x", AccountHolderID: "h", AccountType: "savings", Currency: "USD",
	})
	assert.ErrorIs(t, err, models.ErrValidation, "unknown account type")

	_, err = l.svc.CreateAccount(ctx, CreateAccountParams{
		AccountName: "x", AccountHolderID: "h", AccountType: domain.AccountGeneralLedger, Currency: "us",
	})
	assert.ErrorIs(t, err, models.ErrValidation, "bad currency")

	_, err = l.svc.CreateAccount(ctx, CreateAccountParams{
		AccountName: "x", AccountHolderID: "h", AccountType: domain.AccountGeneralLedger,
		Currency: "USD", OpeningBalance: -1,
	})
	assert.ErrorIs(t, err, models.ErrValidation, "negative opening balance")
}

func TestCreateAccountOpeningBalances(t *testing.T) {
	l := newTestLedger(t)

	account := l.createAccount(t, "main", 100*usd)
	assert.Equal(t, 100*usd, account.Balance)
	assert.Equal(t, 100*usd, account.AvailableBalance)
	assert.Equal(t, 100*usd, account.OpeningBalance)
	assert.True(t, account.Active)
}

func TestSubLedgerRequiresActiveParent(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	parent := l.createAccount(t, "parent", 0)

	sub, err := l.svc.CreateAccount(ctx, CreateAccountParams{
		AccountName: "sub", AccountHolderID: "h", AccountType: domain.AccountSubLedger,
		Currency: "USD", ParentAccountID: parent.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, parent.ID, sub.ParentAccountID)

	// A sub-ledger cannot itself be a parent.
	_, err = l.svc.CreateAccount(ctx, CreateAccountParams{
		AccountName: "sub2", AccountHolderID: "h", AccountType: domain.AccountSubLedger,
		Currency: "USD", ParentAccountID: sub.ID,
	})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = l.svc.CreateAccount(ctx, CreateAccountParams{
		AccountName: "orphan", AccountHolderID: "h", AccountType: domain.AccountSubLedger,
		Currency: "USD", ParentAccountID: "missing",
	})
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestDeactivateParentWithActiveChildren(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	parent := l.createAccount(t, "parent", 0)
	sub, err := l.svc.CreateAccount(ctx, CreateAccountParams{
		AccountName: "sub", AccountHolderID: "h", AccountType: domain.AccountSubLedger,
		Currency: "USD", ParentAccountID: parent.ID,
	})
	require.NoError(t, err)

	_, err = l.svc.DeactivateAccount(ctx, parent.ID)
	assert.ErrorIs(t, err, models.ErrValidation, "parent with active children")

	_, err = l.svc.DeactivateAccount(ctx, sub.ID)
	require.NoError(t, err)

	deactivated, err := l.svc.DeactivateAccount(ctx, parent.ID)
	require.NoError(t, err)
	assert.False(t, deactivated.Active)
}

func TestLinkedAccountAuthorization(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	linked, err := l.svc.CreateAccount(ctx, CreateAccountParams{
		AccountName: "checking", AccountHolderID: "h", AccountType: domain.AccountLinked,
		Currency: "USD", LinkedAccountID: "ext-1", InstitutionID: "inst-1", InstitutionName: "First Bank",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.LinkActive, linked.LinkStatus)
	require.NotNil(t, linked.LinkAuthorizedAt)

	_, err = l.svc.CreateAccount(ctx, CreateAccountParams{
		AccountName: "incomplete", AccountHolderID: "h", AccountType: domain.AccountLinked,
		Currency: "USD", LinkedAccountID: "ext-2",
	})
	assert.ErrorIs(t, err, models.ErrValidation, "missing institution fields")
}

func TestLinkedAccountAuthorizationFailure(t *testing.T) {
	l := newTestLedger(t)
	failing := &gateway.MockGateway{FailureRate: 1, MaxDelay: time.Millisecond}
	svc := NewLedgerService(l.accounts, l.txns, l.engine, NewAuditService(l.audit), failing)

	_, err := svc.CreateAccount(context.Background(), CreateAccountParams{
		AccountName: "checking", AccountHolderID: "h", AccountType: domain.AccountLinked,
		Currency: "USD", LinkedAccountID: "ext-1", InstitutionID: "inst-1", InstitutionName: "First Bank",
	})
	require.Error(t, err)

	accounts, listErr := svc.ListAccounts(context.Background(), repository.AccountFilter{})
	require.NoError(t, listErr)
	assert.Empty(t, accounts, "failed authorization must not create the account")
}

func TestCreateTransactionPendingDoesNotMoveBalances(t *testing.T) {
	l := newTestLedger(t)
	a := l.createAccount(t, "a", 100*usd)
	b := l.createAccount(t, "b", 0)

	txn := l.createTransfer(t, a.ID, b.ID, 40*usd)
	assert.Equal(t, domain.StatusPending, txn.Status)
	assert.Equal(t, "USD", txn.Currency)

	balA, availA := l.balance(t, a.ID)
	balB, availB := l.balance(t, b.ID)
	assert.Equal(t, 100*usd, balA)
	assert.Equal(t, 100*usd, availA)
	assert.Equal(t, int64(0), balB)
	assert.Equal(t, int64(0), availB)
}

func TestCreateTransactionValidation(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	a := l.createAccount(t, "a", 100*usd)
	b := l.createAccount(t, "b", 0)

	cases := map[string]CreateTransactionParams{
		"zero amount": {
			AccountID: a.ID, DestinationAccountID: b.ID, Amount: 0,
			Type: domain.TypeTransferDebit, Method: domain.MethodCash,
		},
		"same account": {
			AccountID: a.ID, DestinationAccountID: a.ID, Amount: usd,
			Type: domain.TypeTransferDebit, Method: domain.MethodCash,
		},
		"unknown type": {
			AccountID: a.ID, DestinationAccountID: b.ID, Amount: usd,
			Type: "wire", Method: domain.MethodCash,
		},
		"unknown method": {
			AccountID: a.ID, DestinationAccountID: b.ID, Amount: usd,
			Type: domain.TypeTransferDebit, Method: "telegram",
		},
		"reference too long": {
			AccountID: a.ID, DestinationAccountID: b.ID, Amount: usd,
			Type: domain.TypeTransferDebit, Method: domain.MethodCash,
			Reference: "0123456789012345678901234567890123456789",
		},
	}
	for name, params := range cases {
		_, err := l.svc.CreateTransaction(ctx, params)
		assert.ErrorIs(t, err, models.ErrValidation, name)
	}

	_, err := l.svc.CreateTransaction(ctx, CreateTransactionParams{
		AccountID: a.ID, DestinationAccountID: "missing", Amount: usd,
		Type: domain.TypeTransferDebit, Method: domain.MethodCash,
	})
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = l.svc.DeactivateAccount(ctx, b.ID)
	require.NoError(t, err)
	_, err = l.svc.CreateTransaction(ctx, CreateTransactionParams{
		AccountID: a.ID, DestinationAccountID: b.ID, Amount: usd,
		Type: domain.TypeTransferDebit, Method: domain.MethodCash,
	})
	assert.ErrorIs(t, err, models.ErrValidation, "inactive destination")
}

func TestCurrencyMismatchRejected(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	a := l.createAccount(t, "a", 100*usd)
	eur, err := l.svc.CreateAccount(ctx, CreateAccountParams{
		AccountName: "eur", AccountHolderID: "h", AccountType: domain.AccountGeneralLedger,
		Currency: "EUR",
	})
	require.NoError(t, err)

	_, err = l.svc.CreateTransaction(ctx, CreateTransactionParams{
		AccountID: a.ID, DestinationAccountID: eur.ID, Amount: usd,
		Type: domain.TypeTransferDebit, Method: domain.MethodCash,
	})
	assert.ErrorIs(t, err, models.ErrValidation)
}

// Scenario: A opens with 100.00, transfer_debit of 40.00 to B, process.
// A ends at 60.00 and B at 40.00, both posted and available.
func TestProcessTransferScenario(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	a := l.createAccount(t, "a", 100*usd)
	b := l.createAccount(t, "b", 0)
	txn := l.createTransfer(t, a.ID, b.ID, 40*usd)

	processed, err := l.svc.ProcessTransaction(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessed, processed.Status)
	require.NotNil(t, processed.ProcessedAt)

	balA, availA := l.balance(t, a.ID)
	balB, availB := l.balance(t, b.ID)
	assert.Equal(t, 60*usd, balA)
	assert.Equal(t, 60*usd, availA)
	assert.Equal(t, 40*usd, balB)
	assert.Equal(t, 40*usd, availB)
}

func TestProcessCreditTypeMovesFundsToSource(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	a := l.createAccount(t, "a", 0)
	b := l.createAccount(t, "b", 100*usd)

	txn, err := l.svc.CreateTransaction(ctx, CreateTransactionParams{
		AccountID: a.ID, DestinationAccountID: b.ID, Amount: 30 * usd,
		Type: domain.TypeTransferCredit, Method: domain.MethodElectronicTransfer,
	})
	require.NoError(t, err)
	_, err = l.svc.ProcessTransaction(ctx, txn.ID)
	require.NoError(t, err)

	balA, _ := l.balance(t, a.ID)
	balB, _ := l.balance(t, b.ID)
	assert.Equal(t, 30*usd, balA)
	assert.Equal(t, 70*usd, balB)
}

func TestProcessInsufficientFunds(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	a := l.createAccount(t, "a", 100*usd)
	b := l.createAccount(t, "b", 0)
	txn := l.createTransfer(t, a.ID, b.ID, 150*usd)

	_, err := l.svc.ProcessTransaction(ctx, txn.ID)
	assert.ErrorIs(t, err, models.ErrInsufficientFunds)

	// The failed settlement leaves the transaction pending and balances intact.
	reloaded, err := l.svc.GetTransaction(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, reloaded.Status)
	assert.Nil(t, reloaded.ProcessedAt)

	balA, _ := l.balance(t, a.ID)
	balB, _ := l.balance(t, b.ID)
	assert.Equal(t, 100*usd, balA)
	assert.Equal(t, int64(0), balB)
}

func TestOverdraftAllowed(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	a, err := l.svc.CreateAccount(ctx, CreateAccountParams{
		AccountName: "overdraft", AccountHolderID: "h", AccountType: domain.AccountGeneralLedger,
		Currency: "USD", AllowOverdraft: true,
	})
	require.NoError(t, err)
	b := l.createAccount(t, "b", 0)

	txn := l.createTransfer(t, a.ID, b.ID, 25*usd)
	_, err = l.svc.ProcessTransaction(ctx, txn.ID)
	require.NoError(t, err)

	balA, availA := l.balance(t, a.ID)
	assert.Equal(t, -25*usd, balA)
	assert.Equal(t, -25*usd, availA)
}

// Two concurrent process calls on the same pending transaction: exactly one
// wins, and the legs are applied exactly once.
func TestDoubleProcessRace(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	a := l.createAccount(t, "a", 100*usd)
	b := l.createAccount(t, "b", 0)
	txn := l.createTransfer(t, a.ID, b.ID, 40*usd)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = l.svc.ProcessTransaction(ctx, txn.ID)
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else {
			assert.ErrorIs(t, err, models.ErrInvalidState)
		}
	}
	assert.Equal(t, 1, winners)

	balA, _ := l.balance(t, a.ID)
	balB, _ := l.balance(t, b.ID)
	assert.Equal(t, 60*usd, balA)
	assert.Equal(t, 40*usd, balB)
}

func TestVoidPendingIsPureStatusFlip(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	a := l.createAccount(t, "a", 100*usd)
	b := l.createAccount(t, "b", 0)
	txn := l.createTransfer(t, a.ID, b.ID, 40*usd)

	voided, err := l.svc.VoidTransaction(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusVoid, voided.Status)
	require.NotNil(t, voided.VoidedAt)

	balA, _ := l.balance(t, a.ID)
	balB, _ := l.balance(t, b.ID)
	assert.Equal(t, 100*usd, balA)
	assert.Equal(t, int64(0), balB)

	// Void is terminal.
	_, err = l.svc.ProcessTransaction(ctx, txn.ID)
	assert.ErrorIs(t, err, models.ErrInvalidState)
	_, err = l.svc.VoidTransaction(ctx, txn.ID)
	assert.ErrorIs(t, err, models.ErrInvalidState)
}

// Process then void: the reversal restores both accounts exactly.
func TestVoidProcessedRoundTrip(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	a := l.createAccount(t, "a", 100*usd)
	b := l.createAccount(t, "b", 0)
	txn := l.createTransfer(t, a.ID, b.ID, 40*usd)

	_, err := l.svc.ProcessTransaction(ctx, txn.ID)
	require.NoError(t, err)

	voided, err := l.svc.VoidTransaction(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusVoid, voided.Status)
	require.NotNil(t, voided.VoidedAt)
	assert.Nil(t, voided.ProcessedAt, "void clears the processed stamp")

	balA, availA := l.balance(t, a.ID)
	balB, availB := l.balance(t, b.ID)
	assert.Equal(t, 100*usd, balA)
	assert.Equal(t, 100*usd, availA)
	assert.Equal(t, int64(0), balB)
	assert.Equal(t, int64(0), availB)
}

// Voiding a processed transaction must succeed even when the destination has
// already spent the funds: the reversal skips the availability check.
func TestVoidProcessedForcesReversal(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	a := l.createAccount(t, "a", 100*usd)
	b := l.createAccount(t, "b", 0)
	c := l.createAccount(t, "c", 0)

	first := l.createTransfer(t, a.ID, b.ID, 40*usd)
	_, err := l.svc.ProcessTransaction(ctx, first.ID)
	require.NoError(t, err)

	spend := l.createTransfer(t, b.ID, c.ID, 40*usd)
	_, err = l.svc.ProcessTransaction(ctx, spend.ID)
	require.NoError(t, err)

	_, err = l.svc.VoidTransaction(ctx, first.ID)
	require.NoError(t, err)

	balA, _ := l.balance(t, a.ID)
	balB, _ := l.balance(t, b.ID)
	balC, _ := l.balance(t, c.ID)
	assert.Equal(t, 100*usd, balA)
	assert.Equal(t, -40*usd, balB)
	assert.Equal(t, 40*usd, balC)
}

func TestDisputeIsOrthogonalToLifecycle(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	a := l.createAccount(t, "a", 100*usd)
	b := l.createAccount(t, "b", 0)
	txn := l.createTransfer(t, a.ID, b.ID, 40*usd)

	disputed, err := l.svc.DisputeTransaction(ctx, txn.ID)
	require.NoError(t, err)
	assert.True(t, disputed.Disputed)
	assert.Equal(t, domain.StatusPending, disputed.Status)

	// Dispute never blocks settlement, and survives it.
	processed, err := l.svc.ProcessTransaction(ctx, txn.ID)
	require.NoError(t, err)
	assert.True(t, processed.Disputed)

	again, err := l.svc.DisputeTransaction(ctx, txn.ID)
	require.NoError(t, err)
	assert.True(t, again.Disputed)

	balA, _ := l.balance(t, a.ID)
	assert.Equal(t, 60*usd, balA)
}

func TestUpdateTransactionMetadata(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	a := l.createAccount(t, "a", 100*usd)
	b := l.createAccount(t, "b", 0)
	txn := l.createTransfer(t, a.ID, b.ID, 40*usd)

	ref := "INV-2041"
	desc := "April invoice"
	method := domain.MethodCheck
	updated, err := l.svc.UpdateTransaction(ctx, txn.ID, TransactionUpdate{
		Reference:   &ref,
		Description: &desc,
		Method:      &method,
	})
	require.NoError(t, err)
	assert.Equal(t, "INV-2041", updated.Reference)
	assert.Equal(t, "April invoice", updated.Description)
	assert.Equal(t, domain.MethodCheck, updated.Method)

	longRef := "0123456789012345678901234567890123456789"
	_, err = l.svc.UpdateTransaction(ctx, txn.ID, TransactionUpdate{Reference: &longRef})
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestListTransactionsByStatus(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	a := l.createAccount(t, "a", 100*usd)
	b := l.createAccount(t, "b", 0)

	first := l.createTransfer(t, a.ID, b.ID, 10*usd)
	_ = l.createTransfer(t, a.ID, b.ID, 20*usd)
	_, err := l.svc.ProcessTransaction(ctx, first.ID)
	require.NoError(t, err)

	all, err := l.svc.ListTransactions(ctx, a.ID, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	pending, err := l.svc.ListTransactions(ctx, a.ID, domain.StatusPending)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	processed, err := l.svc.ListTransactions(ctx, b.ID, domain.StatusProcessed)
	require.NoError(t, err)
	assert.Len(t, processed, 1)

	_, err = l.svc.ListTransactions(ctx, a.ID, "archived")
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestAuditTrailRecordsLifecycle(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	a := l.createAccount(t, "a", 100*usd)
	b := l.createAccount(t, "b", 0)
	txn := l.createTransfer(t, a.ID, b.ID, 40*usd)

	_, err := l.svc.ProcessTransaction(ctx, txn.ID)
	require.NoError(t, err)
	_, err = l.svc.VoidTransaction(ctx, txn.ID)
	require.NoError(t, err)

	trail, err := l.svc.AuditTrail(ctx, txn.ID)
	require.NoError(t, err)
	require.Len(t, trail, 3)
	assert.Equal(t, "transaction.create", trail[0].Action)
	assert.Equal(t, "transaction.process", trail[1].Action)
	assert.Equal(t, "transaction.void", trail[2].Action)
}
