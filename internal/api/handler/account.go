package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/slickledger/ledger/internal/domain"
	"github.com/slickledger/ledger/internal/repository"
	"github.com/slickledger/ledger/internal/service"
	"go.uber.org/zap"
)

type AccountHandler struct {
	svc *service.LedgerService
}

func NewAccountHandler(svc *service.LedgerService) *AccountHandler {
	return &AccountHandler{svc: svc}
}

type createAccountRequest struct {
	AccountName     string            `json:"account_name" validate:"required,max=128"`
	AccountType     string            `json:"account_type" validate:"required"`
	Currency        string            `json:"currency" validate:"required,len=3"`
	AccountHolderID string            `json:"account_holder_id" validate:"required"`
	OpeningBalance  string            `json:"opening_balance,omitempty"`
	AllowOverdraft  bool              `json:"allow_overdraft,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	ParentAccountID string            `json:"parent_account_id,omitempty"`
	LinkedAccountID string            `json:"linked_account_id,omitempty"`
	InstitutionID   string            `json:"institution_id,omitempty"`
	InstitutionName string            `json:"institution_name,omitempty"`
}

func (h *AccountHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := decodeAndValidate(r, &req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", err.Error())
		return
	}

	opening := int64(0)
	if req.OpeningBalance != "" {
		parsed, err := domain.ParseAmount(req.OpeningBalance)
		if err != nil {
			RespondError(w, r, http.StatusBadRequest, "request/invalid-amount", "Invalid opening_balance")
			return
		}
		opening = parsed
	}

	account, err := h.svc.CreateAccount(r.Context(), service.CreateAccountParams{
		AccountName:     req.AccountName,
		AccountType:     domain.AccountType(req.AccountType),
		Currency:        req.Currency,
		AccountHolderID: req.AccountHolderID,
		OpeningBalance:  opening,
		AllowOverdraft:  req.AllowOverdraft,
		Metadata:        req.Metadata,
		ParentAccountID: req.ParentAccountID,
		LinkedAccountID: req.LinkedAccountID,
		InstitutionID:   req.InstitutionID,
		InstitutionName: req.InstitutionName,
	})
	if err != nil {
		if status, problemType, ok := mapLedgerError(err); ok {
			RespondError(w, r, status, problemType, err.Error())
			return
		}
		zap.L().Error("create account failed", zap.Error(err))
		RespondError(w, r, http.StatusInternalServerError, "account/create-failed", "Failed to create account")
		return
	}

	RespondJSON(w, http.StatusCreated, renderAccount(account))
}

func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	account, err := h.svc.GetAccount(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondLedgerError(w, r, err, "Failed to get account")
		return
	}
	RespondJSON(w, http.StatusOK, renderAccount(account))
}

func (h *AccountHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repository.AccountFilter{
		HolderID:   q.Get("account_holder_id"),
		ParentID:   q.Get("parent_account_id"),
		ActiveOnly: q.Get("active") == "true",
	}
	if t := q.Get("account_type"); t != "" {
		if !domain.ValidAccountType(domain.AccountType(t)) {
			RespondError(w, r, http.StatusBadRequest, "request/invalid-account-type", "Invalid account_type filter")
			return
		}
		filter.Type = domain.AccountType(t)
	}

	accounts, err := h.svc.ListAccounts(r.Context(), filter)
	if err != nil {
		respondLedgerError(w, r, err, "Failed to list accounts")
		return
	}
	RespondJSON(w, http.StatusOK, renderAccounts(accounts))
}

func (h *AccountHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.svc.GetAccountBalance(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondLedgerError(w, r, err, "Failed to get balance")
		return
	}
	RespondJSON(w, http.StatusOK, renderBalance(balance))
}

func (h *AccountHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	account, err := h.svc.DeactivateAccount(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondLedgerError(w, r, err, "Failed to deactivate account")
		return
	}
	RespondJSON(w, http.StatusOK, renderAccount(account))
}

func (h *AccountHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	status := domain.TransactionStatus(r.URL.Query().Get("status"))
	txns, err := h.svc.ListTransactions(r.Context(), chi.URLParam(r, "id"), status)
	if err != nil {
		respondLedgerError(w, r, err, "Failed to list transactions")
		return
	}
	RespondJSON(w, http.StatusOK, renderTransactions(txns))
}

func (h *AccountHandler) AuditTrail(w http.ResponseWriter, r *http.Request) {
	trail, err := h.svc.AuditTrail(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondLedgerError(w, r, err, "Failed to load audit trail")
		return
	}
	RespondJSON(w, http.StatusOK, trail)
}
