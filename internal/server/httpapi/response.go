package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/authkeeper/internal/common"
)

// envelope is the body of every /api response.
type envelope struct {
	Success bool         `json:"success"`
	Data    any          `json:"data,omitempty"`
	Message string       `json:"message,omitempty"`
	Error   string       `json:"error,omitempty"`
	Details []fieldError `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, envelope{Success: true, Message: msg})
}

var errorStatuses = []struct {
	err    error
	status int
}{
	{common.ErrValidation, http.StatusBadRequest},
	{common.ErrTwoFactorNotPending, http.StatusBadRequest},
	{common.ErrTwoFactorAlreadyEnabled, http.StatusBadRequest},
	{common.ErrAuthenticationRequired, http.StatusUnauthorized},
	{common.ErrInvalidCredentials, http.StatusUnauthorized},
	{common.ErrInvalidTwoFactorCode, http.StatusUnauthorized},
	{common.ErrTokenExpired, http.StatusUnauthorized},
	{common.ErrTokenInvalid, http.StatusUnauthorized},
	{common.ErrTokenTypeMismatch, http.StatusUnauthorized},
	{common.ErrSessionRevoked, http.StatusUnauthorized},
	{common.ErrAccountLocked, http.StatusForbidden},
	{common.ErrAccountInactive, http.StatusForbidden},
	{common.ErrorUnauthorized, http.StatusForbidden},
	{common.ErrorNotFound, http.StatusNotFound},
	{common.ErrEmailTaken, http.StatusConflict},
	{common.ErrorAlreadyExists, http.StatusConflict},
}

// writeError maps a service error to a status and a client-safe message.
// Anything unrecognised becomes a bare 500.
func writeError(w http.ResponseWriter, err error) {
	var verrs validationErrors
	if errors.As(err, &verrs) {
		writeJSON(w, http.StatusBadRequest, envelope{Error: common.ErrValidation.Error(), Details: verrs})
		return
	}

	for _, e := range errorStatuses {
		if errors.Is(err, e.err) {
			msg := e.err.Error()
			if e.err == common.ErrValidation {
				msg = err.Error()
			}
			writeJSON(w, e.status, envelope{Error: msg})
			return
		}
	}

	writeJSON(w, http.StatusInternalServerError, envelope{Error: common.ErrorInternal.Error()})
}
