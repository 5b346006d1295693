package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/idhub/authserver/internal/services"
	"github.com/idhub/authserver/internal/store"
	"github.com/idhub/authserver/types"
)

type contextKey string

const contextAccountKey contextKey = "account"

type ErrorResponse struct {
	Error string `json:"error"`
}

func accountFromContext(ctx context.Context) (types.Account, bool) {
	account, ok := ctx.Value(contextAccountKey).(types.Account)
	return account, ok
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// writeFlowError maps the service error taxonomy onto HTTP statuses.
// The mapping is 1:1; flows never mask one kind as another.
func writeFlowError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "account not found")
	case errors.Is(err, store.ErrConflict):
		writeError(w, http.StatusConflict, "email already registered")
	case errors.Is(err, services.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, services.ErrInvalidOTP):
		writeError(w, http.StatusUnauthorized, "invalid verification code")
	case errors.Is(err, services.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, services.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrUpstream):
		writeError(w, http.StatusBadGateway, "upstream failure")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// Healthz reports process liveness.
func Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
