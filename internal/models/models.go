package models

import (
	"time"

	"github.com/slickledger/ledger/internal/domain"
)

// Account is a ledger account. Balance and AvailableBalance are stored as
// int64 micros; AvailableBalance is balance minus amounts held against
// pending activity and is the quantity checked by the overdraft policy.
type Account struct {
	ID               string                 `json:"id"`
	AccountName      string                 `json:"account_name"`
	AccountType      domain.AccountType     `json:"account_type"`
	ParentAccountID  string                 `json:"parent_account_id,omitempty"`
	Balance          int64                  `json:"balance"`
	AvailableBalance int64                  `json:"available_balance"`
	OpeningBalance   int64                  `json:"opening_balance"`
	Currency         string                 `json:"currency"`
	AccountHolderID  string                 `json:"account_holder_id"`
	Active           bool                   `json:"active"`
	AllowOverdraft   bool                   `json:"allow_overdraft"`
	Metadata         map[string]string      `json:"metadata,omitempty"`
	CreatedAt        time.Time              `json:"created_at"`
	UpdatedAt        time.Time              `json:"updated_at"`

	// Linked-account fields, set iff AccountType == AccountLinked.
	LinkedAccountID  string                     `json:"linked_account_id,omitempty"`
	InstitutionID    string                     `json:"institution_id,omitempty"`
	InstitutionName  string                     `json:"institution_name,omitempty"`
	LinkStatus       domain.LinkedAccountStatus `json:"linked_account_status,omitempty"`
	LinkAuthorizedAt *time.Time                 `json:"link_authorized_at,omitempty"`
}

// Clone returns a deep copy so stores never hand out aliased state.
func (a *Account) Clone() *Account {
	cp := *a
	if a.Metadata != nil {
		cp.Metadata = make(map[string]string, len(a.Metadata))
		for k, v := range a.Metadata {
			cp.Metadata[k] = v
		}
	}
	if a.LinkAuthorizedAt != nil {
		at := *a.LinkAuthorizedAt
		cp.LinkAuthorizedAt = &at
	}
	return &cp
}

// Transaction moves value between a source and a destination account.
// Amount is a positive magnitude in micros; direction comes from Type.
type Transaction struct {
	ID                   string                   `json:"id"`
	AccountID            string                   `json:"account_id"`
	DestinationAccountID string                   `json:"destination_account_id"`
	Amount               int64                    `json:"amount"`
	Currency             string                   `json:"currency"`
	Reference            string                   `json:"reference"`
	Description          string                   `json:"description"`
	Type                 domain.TransactionType   `json:"transaction_type"`
	Method               domain.TransactionMethod `json:"transaction_method"`
	MethodID             string                   `json:"transaction_method_id,omitempty"`
	Disputed             bool                     `json:"disputed"`
	Status               domain.TransactionStatus `json:"transaction_status"`
	CreatedAt            time.Time                `json:"created_at"`
	UpdatedAt            time.Time                `json:"updated_at"`
	ProcessedAt          *time.Time               `json:"processed_at,omitempty"`
	VoidedAt             *time.Time               `json:"voided_at,omitempty"`
}

// Clone returns a deep copy of the transaction.
func (t *Transaction) Clone() *Transaction {
	cp := *t
	if t.ProcessedAt != nil {
		at := *t.ProcessedAt
		cp.ProcessedAt = &at
	}
	if t.VoidedAt != nil {
		at := *t.VoidedAt
		cp.VoidedAt = &at
	}
	return &cp
}

// Terminal reports whether the transaction has reached a final state.
func (t *Transaction) Terminal() bool {
	return t.Status == domain.StatusProcessed || t.Status == domain.StatusVoid
}

// AuditRecord is an immutable trail entry for a lifecycle transition.
type AuditRecord struct {
	ID         string    `json:"id"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Action     string    `json:"action"`
	PrevState  string    `json:"prev_state,omitempty"`
	NextState  string    `json:"next_state,omitempty"`
	Metadata   string    `json:"metadata,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
