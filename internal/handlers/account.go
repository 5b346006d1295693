package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/idhub/authserver/internal/services"
	"github.com/idhub/authserver/internal/storage"
)

// AccountHandler provides account endpoints for authenticated callers.
type AccountHandler struct {
	accountService *services.AccountService
	avatars        storage.ObjectStorage
}

// NewAccountHandler constructs an AccountHandler.
func NewAccountHandler(accountService *services.AccountService, avatars storage.ObjectStorage) *AccountHandler {
	return &AccountHandler{
		accountService: accountService,
		avatars:        avatars,
	}
}

// AccountRouter registers account routes on the given router.
func AccountRouter(
	r chi.Router,
	accountService *services.AccountService,
	avatars storage.ObjectStorage,
	authMiddleware func(http.Handler) http.Handler,
) {
	handler := NewAccountHandler(accountService, avatars)

	r.With(authMiddleware).Get("/me", handler.Me)
	r.With(authMiddleware, RequireAdmin).Put("/{accountID}/role", handler.UpdateRole)
	if avatars != nil {
		r.With(authMiddleware).Put("/avatar", handler.UploadAvatar)
		r.Get("/avatar/{key}", handler.GetAvatar)
	}
}

// Me returns the current authenticated account. Credential fields are
// excluded by the model's serialization.
func (h *AccountHandler) Me(w http.ResponseWriter, r *http.Request) {
	account, ok := accountFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, account)
}

type UpdateRoleRequest struct {
	Role string `json:"role"`
}

// UpdateRole sets the target account's role. Admin-gated by the router.
func (h *AccountHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	targetID, err := strconv.ParseInt(chi.URLParam(r, "accountID"), 10, 64)
	if err != nil || targetID < 1 {
		writeError(w, http.StatusBadRequest, "invalid account id")
		return
	}

	var req UpdateRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	account, err := h.accountService.UpdateRole(r.Context(), targetID, req.Role)
	if err != nil {
		writeFlowError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, account)
}
