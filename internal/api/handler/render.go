package handler

import (
	"time"

	"github.com/slickledger/ledger/internal/domain"
	"github.com/slickledger/ledger/internal/models"
	"github.com/slickledger/ledger/internal/service"
)

// accountPayload is the wire shape for an account. Monetary fields are
// rendered as decimal strings; micros never leave the service boundary.
type accountPayload struct {
	ID               string                     `json:"id"`
	AccountName      string                     `json:"account_name"`
	AccountType      domain.AccountType         `json:"account_type"`
	ParentAccountID  string                     `json:"parent_account_id,omitempty"`
	Balance          string                     `json:"balance"`
	AvailableBalance string                     `json:"available_balance"`
	OpeningBalance   string                     `json:"opening_balance"`
	Currency         string                     `json:"currency"`
	AccountHolderID  string                     `json:"account_holder_id"`
	Active           bool                       `json:"active"`
	AllowOverdraft   bool                       `json:"allow_overdraft"`
	Metadata         map[string]string          `json:"metadata,omitempty"`
	LinkedAccountID  string                     `json:"linked_account_id,omitempty"`
	InstitutionID    string                     `json:"institution_id,omitempty"`
	InstitutionName  string                     `json:"institution_name,omitempty"`
	LinkStatus       domain.LinkedAccountStatus `json:"linked_account_status,omitempty"`
	LinkAuthorizedAt *time.Time                 `json:"link_authorized_at,omitempty"`
	CreatedAt        time.Time                  `json:"created_at"`
	UpdatedAt        time.Time                  `json:"updated_at"`
}

func renderAccount(a *models.Account) accountPayload {
	return accountPayload{
		ID:               a.ID,
		AccountName:      a.AccountName,
		AccountType:      a.AccountType,
		ParentAccountID:  a.ParentAccountID,
		Balance:          domain.FormatMicros(a.Balance),
		AvailableBalance: domain.FormatMicros(a.AvailableBalance),
		OpeningBalance:   domain.FormatMicros(a.OpeningBalance),
		Currency:         a.Currency,
		AccountHolderID:  a.AccountHolderID,
		Active:           a.Active,
		AllowOverdraft:   a.AllowOverdraft,
		Metadata:         a.Metadata,
		LinkedAccountID:  a.LinkedAccountID,
		InstitutionID:    a.InstitutionID,
		InstitutionName:  a.InstitutionName,
		LinkStatus:       a.LinkStatus,
		LinkAuthorizedAt: a.LinkAuthorizedAt,
		CreatedAt:        a.CreatedAt,
		UpdatedAt:        a.UpdatedAt,
	}
}

func renderAccounts(accounts []*models.Account) []accountPayload {
	out := make([]accountPayload, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, renderAccount(a))
	}
	return out
}

type balancePayload struct {
	AccountID        string `json:"id"`
	Balance          string `json:"balance"`
	AvailableBalance string `json:"available_balance"`
	Currency         string `json:"currency"`
}

func renderBalance(b *service.AccountBalance) balancePayload {
	return balancePayload{
		AccountID:        b.AccountID,
		Balance:          domain.FormatMicros(b.Balance),
		AvailableBalance: domain.FormatMicros(b.AvailableBalance),
		Currency:         b.Currency,
	}
}

type transactionPayload struct {
	ID                   string                   `json:"id"`
	AccountID            string                   `json:"account_id"`
	DestinationAccountID string                   `json:"destination_account_id"`
	Amount               string                   `json:"amount"`
	Currency             string                   `json:"currency"`
	Reference            string                   `json:"reference,omitempty"`
	Description          string                   `json:"description,omitempty"`
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

func renderTransaction(t *models.Transaction) transactionPayload {
	return transactionPayload{
		ID:                   t.ID,
		AccountID:            t.AccountID,
		DestinationAccountID: t.DestinationAccountID,
		Amount:               domain.FormatMicros(t.Amount),
		Currency:             t.Currency,
		Reference:            t.Reference,
		Description:          t.Description,
		Type:                 t.Type,
		Method:               t.Method,
		MethodID:             t.MethodID,
		Disputed:             t.Disputed,
		Status:               t.Status,
		CreatedAt:            t.CreatedAt,
		UpdatedAt:            t.UpdatedAt,
		ProcessedAt:          t.ProcessedAt,
		VoidedAt:             t.VoidedAt,
	}
}

func renderTransactions(txns []*models.Transaction) []transactionPayload {
	out := make([]transactionPayload, 0, len(txns))
	for _, t := range txns {
		out = append(out, renderTransaction(t))
	}
	return out
}
