package web

import (
	"encoding/json"
	"net/http"

	lerrors "github.com/ledgerline/ledgerline/errors"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string              `json:"error"`
	Details []lerrors.ErrorJSON `json:"details,omitempty"`
}

// respondJSON writes data with the given status. A nil data writes the
// status only.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// respondError writes an ErrorResponse.
func respondError(w http.ResponseWriter, status int, message string, details []lerrors.ErrorJSON) {
	respondJSON(w, status, ErrorResponse{Error: message, Details: details})
}

// respondLedgerError maps a ledger error to its HTTP status and writes it
// with one detail per underlying error.
func respondLedgerError(w http.ResponseWriter, err error) {
	details := lerrors.NewJSONFormatter().FormatAllToSlice(lerrors.Flatten(err))
	respondError(w, statusFor(err), err.Error(), details)
}

func statusFor(err error) int {
	switch lerrors.Kind(err) {
	case lerrors.KindValidation, lerrors.KindParse:
		return http.StatusBadRequest
	case lerrors.KindNotFound:
		return http.StatusNotFound
	case lerrors.KindAlreadyReconciled, lerrors.KindLockedEntry:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
