package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/slickledger/ledger/internal/domain"
	"github.com/slickledger/ledger/internal/service"
	"go.uber.org/zap"
)

type TransactionHandler struct {
	svc *service.LedgerService
}

func NewTransactionHandler(svc *service.LedgerService) *TransactionHandler {
	return &TransactionHandler{svc: svc}
}

type createTransactionRequest struct {
	AccountID            string `json:"account_id" validate:"required"`
	DestinationAccountID string `json:"destination_account_id" validate:"required"`
	Amount               string `json:"amount" validate:"required"`
	Reference            string `json:"reference,omitempty" validate:"max=32"`
	Description          string `json:"description,omitempty" validate:"max=255"`
	Type                 string `json:"transaction_type" validate:"required"`
	Method               string `json:"transaction_method" validate:"required"`
	MethodID             string `json:"transaction_method_id,omitempty"`
}

func (h *TransactionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if err := decodeAndValidate(r, &req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", err.Error())
		return
	}

	amount, err := domain.ParseAmount(req.Amount)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-amount", "Invalid amount")
		return
	}

	txn, err := h.svc.CreateTransaction(r.Context(), service.CreateTransactionParams{
		AccountID:            req.AccountID,
		DestinationAccountID: req.DestinationAccountID,
		Amount:               amount,
		Reference:            req.Reference,
		Description:          req.Description,
		Type:                 domain.TransactionType(req.Type),
		Method:               domain.TransactionMethod(req.Method),
		MethodID:             req.MethodID,
	})
	if err != nil {
		if status, problemType, ok := mapLedgerError(err); ok {
			RespondError(w, r, status, problemType, err.Error())
			return
		}
		zap.L().Error("create transaction failed", zap.Error(err))
		RespondError(w, r, http.StatusInternalServerError, "transaction/create-failed", "Failed to create transaction")
		return
	}

	RespondJSON(w, http.StatusCreated, renderTransaction(txn))
}

func (h *TransactionHandler) Get(w http.ResponseWriter, r *http.Request) {
	txn, err := h.svc.GetTransaction(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondLedgerError(w, r, err, "Failed to get transaction")
		return
	}
	RespondJSON(w, http.StatusOK, renderTransaction(txn))
}

type updateTransactionRequest struct {
	Reference   *string `json:"reference,omitempty" validate:"omitempty,max=32"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=255"`
	Method      *string `json:"transaction_method,omitempty"`
	MethodID    *string `json:"transaction_method_id,omitempty"`
}

func (h *TransactionHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateTransactionRequest
	if err := decodeAndValidate(r, &req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", err.Error())
		return
	}

	update := service.TransactionUpdate{
		Reference:   req.Reference,
		Description: req.Description,
		MethodID:    req.MethodID,
	}
	if req.Method != nil {
		method := domain.TransactionMethod(*req.Method)
		update.Method = &method
	}

	txn, err := h.svc.UpdateTransaction(r.Context(), chi.URLParam(r, "id"), update)
	if err != nil {
		respondLedgerError(w, r, err, "Failed to update transaction")
		return
	}
	RespondJSON(w, http.StatusOK, renderTransaction(txn))
}

func (h *TransactionHandler) Process(w http.ResponseWriter, r *http.Request) {
	txn, err := h.svc.ProcessTransaction(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondLedgerError(w, r, err, "Failed to process transaction")
		return
	}
	RespondJSON(w, http.StatusOK, renderTransaction(txn))
}

func (h *TransactionHandler) Void(w http.ResponseWriter, r *http.Request) {
	txn, err := h.svc.VoidTransaction(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondLedgerError(w, r, err, "Failed to void transaction")
		return
	}
	RespondJSON(w, http.StatusOK, renderTransaction(txn))
}

func (h *TransactionHandler) Dispute(w http.ResponseWriter, r *http.Request) {
	txn, err := h.svc.DisputeTransaction(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondLedgerError(w, r, err, "Failed to dispute transaction")
		return
	}
	RespondJSON(w, http.StatusOK, renderTransaction(txn))
}
