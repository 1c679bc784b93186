package domain

// AccountType classifies an account within the ledger hierarchy.
type AccountType string

const (
	AccountGeneralLedger AccountType = "general_ledger"
	AccountSubLedger     AccountType = "sub_ledger"
	AccountLinked        AccountType = "linked"
)

// ValidAccountType reports whether t is a recognized account type.
func ValidAccountType(t AccountType) bool {
	switch t {
	case AccountGeneralLedger, AccountSubLedger, AccountLinked:
		return true
	}
	return false
}

// TransactionStatus is the lifecycle state of a transaction.
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusProcessed TransactionStatus = "processed"
	StatusVoid      TransactionStatus = "void"
)

// ValidTransactionStatus reports whether s is a recognized status.
func ValidTransactionStatus(s TransactionStatus) bool {
	switch s {
	case StatusPending, StatusProcessed, StatusVoid:
		return true
	}
	return false
}

// TransactionType encodes the direction and nature of a transaction.
// The debit/credit suffix names the leg applied to the source account:
// debit types move funds source -> destination, credit types the mirror.
type TransactionType string

const (
	TypeCredit         TransactionType = "credit"
	TypeDebit          TransactionType = "debit"
	TypeRefundCredit   TransactionType = "refund_credit"
	TypeRefundDebit    TransactionType = "refund_debit"
	TypeTransferCredit TransactionType = "transfer_credit"
	TypeTransferDebit  TransactionType = "transfer_debit"
	TypeReversalCredit TransactionType = "reversal_credit"
	TypeReversalDebit  TransactionType = "reversal_debit"
)

// ValidTransactionType reports whether t is a recognized transaction type.
func ValidTransactionType(t TransactionType) bool {
	switch t {
	case TypeCredit, TypeDebit, TypeRefundCredit, TypeRefundDebit,
		TypeTransferCredit, TypeTransferDebit, TypeReversalCredit, TypeReversalDebit:
		return true
	}
	return false
}

// DebitsSource reports whether t moves funds out of the source account.
// Credit types move funds destination -> source instead.
func (t TransactionType) DebitsSource() bool {
	switch t {
	case TypeDebit, TypeRefundDebit, TypeTransferDebit, TypeReversalDebit:
		return true
	}
	return false
}

// TransactionMethod records how a transaction was initiated.
type TransactionMethod string

const (
	MethodCash               TransactionMethod = "cash"
	MethodCheck              TransactionMethod = "check"
	MethodCreditCard         TransactionMethod = "credit_card"
	MethodDebitCard          TransactionMethod = "debit_card"
	MethodElectronicTransfer TransactionMethod = "electronic_transfer"
	MethodOther              TransactionMethod = "other"
)

// ValidTransactionMethod reports whether m is a recognized method.
func ValidTransactionMethod(m TransactionMethod) bool {
	switch m {
	case MethodCash, MethodCheck, MethodCreditCard, MethodDebitCard,
		MethodElectronicTransfer, MethodOther:
		return true
	}
	return false
}

// LinkedAccountStatus is the authorization state of an external link.
type LinkedAccountStatus string

const (
	LinkActive  LinkedAccountStatus = "active"
	LinkRevoked LinkedAccountStatus = "inactive"
	LinkError   LinkedAccountStatus = "error"
)

const (
	// MaxReferenceLen bounds the free-form transaction reference.
	MaxReferenceLen = 32
	// MaxDescriptionLen bounds the free-form transaction description.
	MaxDescriptionLen = 255
)
