package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/idhub/authserver/internal/services"
)

// AuthHandler provides the authentication endpoints.
type AuthHandler struct {
	authService *services.AuthService
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, authService *services.AuthService, authMiddleware func(http.Handler) http.Handler) {
	handler := NewAuthHandler(authService)

	r.Post("/register", handler.Register)
	r.Post("/login", handler.Login)
	r.Post("/verify-email", handler.VerifyEmail)
	r.Post("/resend-verification", handler.ResendVerification)
	r.Get("/{provider}/callback", handler.OAuthCallback(false))
	r.Get("/{provider}/admin/callback", handler.OAuthCallback(true))
	r.With(authMiddleware).Post("/logout", handler.Logout)
}

type RegisterRequest struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	AdminIntent bool   `json:"admin_intent"`
}

type LoginRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	AdminIntent bool   `json:"admin_intent"`
}

type VerifyEmailRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

type ResendRequest struct {
	Email string `json:"email"`
}

// Register creates a local account and triggers OTP delivery. It always
// responds with a pending-verification state, never a token.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	pending, err := h.authService.Register(r.Context(), services.RegisterInput{
		Name:        req.Name,
		Email:       req.Email,
		Password:    req.Password,
		AdminIntent: req.AdminIntent,
	})
	if err != nil {
		writeFlowError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, pending)
}

// Login verifies local credentials and returns either a session token or
// a pending-verification state for unverified accounts.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing credentials")
		return
	}

	result, err := h.authService.Login(r.Context(), services.LoginInput{
		Email:       req.Email,
		Password:    req.Password,
		AdminIntent: req.AdminIntent,
	})
	if err != nil {
		writeFlowError(w, err)
		return
	}

	if result.Pending != nil {
		writeJSON(w, http.StatusAccepted, result.Pending)
		return
	}
	writeJSON(w, http.StatusOK, result.Session)
}

// VerifyEmail checks the supplied OTP and, on success, returns a token.
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req VerifyEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	session, err := h.authService.VerifyEmail(r.Context(), req.Email, req.OTP)
	if err != nil {
		writeFlowError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, session)
}

// ResendVerification issues a fresh OTP for an unverified account.
func (h *AuthHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var req ResendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	pending, err := h.authService.ResendVerification(r.Context(), req.Email)
	if err != nil {
		writeFlowError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, pending)
}

// OAuthCallback handles a provider redirect. The admin-flagged route
// carries admin intent; provider denial routes to a distinct failure,
// never through to success.
func (h *AuthHandler) OAuthCallback(adminIntent bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		provider := chi.URLParam(r, "provider")

		if denial := r.URL.Query().Get("error"); denial != "" {
			writeError(w, http.StatusBadGateway, "provider denied authorization")
			return
		}
		code := r.URL.Query().Get("code")
		if strings.TrimSpace(code) == "" {
			writeError(w, http.StatusBadRequest, "missing authorization code")
			return
		}

		session, err := h.authService.OAuthCallback(r.Context(), provider, code, adminIntent)
		if err != nil {
			writeFlowError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, session)
	}
}

// Logout acknowledges a client-side token discard. Tokens are stateless;
// nothing is invalidated server-side.
func (h *AuthHandler) Logout(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}
