package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/idhub/authserver/internal/services"
	"github.com/idhub/authserver/internal/token"
	"github.com/idhub/authserver/types"
)

// RequireAuth verifies the bearer token and re-resolves the account by
// the subject claim, so role changes take effect on the next request
// rather than living inside an already-issued token. Any signature,
// expiry, or lookup failure is a 401.
func RequireAuth(issuer *token.Issuer, accounts *services.AccountService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, err := bearerToken(r)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			claims, err := issuer.Verify(tokenString)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			accountID, err := claims.AccountID()
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			account, err := accounts.GetByID(r.Context(), accountID)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			ctx := context.WithValue(r.Context(), contextAccountKey, account)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin rejects requests whose authenticated account is not an
// admin. It composes after RequireAuth.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		account, ok := accountFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if account.Role != types.RoleAdmin {
			writeError(w, http.StatusForbidden, "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) (string, error) {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	tokenString := strings.TrimSpace(parts[1])
	if tokenString == "" {
		return "", errors.New("invalid authorization")
	}
	return tokenString, nil
}
