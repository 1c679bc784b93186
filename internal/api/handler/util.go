package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/slickledger/ledger/internal/api/problem"
	"github.com/slickledger/ledger/internal/models"
)

var validate = validator.New()

// RespondJSON writes a JSON response.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// RespondError writes an error response.
func RespondError(w http.ResponseWriter, r *http.Request, status int, problemType, message string) {
	if problemType != "" && problemType != "about:blank" && !strings.HasPrefix(problemType, "http") {
		problemType = problem.Type(problemType)
	}
	problem.Write(w, r, status, problemType, http.StatusText(status), message)
}

// mapLedgerError translates domain sentinels into HTTP problem responses.
func mapLedgerError(err error) (status int, problemType string, ok bool) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound, "resource/not-found", true
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest, "request/validation-failed", true
	case errors.Is(err, models.ErrConflict):
		return http.StatusConflict, "resource/conflict", true
	case errors.Is(err, models.ErrInvalidState):
		return http.StatusConflict, "transaction/invalid-state", true
	case errors.Is(err, models.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity, "account/insufficient-funds", true
	case errors.Is(err, models.ErrLockTimeout):
		return http.StatusServiceUnavailable, "ledger/busy", true
	default:
		return 0, "", false
	}
}

// respondLedgerError writes the mapped problem for a service error, or a
// generic 500 with the fallback message when the error is not a sentinel.
func respondLedgerError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	if status, problemType, ok := mapLedgerError(err); ok {
		RespondError(w, r, status, problemType, err.Error())
		return
	}
	RespondError(w, r, http.StatusInternalServerError, "internal-server-error", fallback)
}

func decodeAndValidate(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.New("invalid request body")
	}
	if err := validate.Struct(dst); err != nil {
		var invalid *validator.InvalidValidationError
		if errors.As(err, &invalid) {
			return errors.New("invalid request body")
		}
		return err
	}
	return nil
}
