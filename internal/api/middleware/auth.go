package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/waymark-protocol/waymark/internal/crypto"
	"github.com/waymark-protocol/waymark/internal/models"
	"github.com/waymark-protocol/waymark/internal/store"
)

type contextKey string

const AccountContextKey contextKey = "account"

// AuthMiddleware resolves API tokens to accounts.
type AuthMiddleware struct {
	db store.DataStore
}

// NewAuthMiddleware creates a new auth middleware.
func NewAuthMiddleware(db store.DataStore) *AuthMiddleware {
	return &AuthMiddleware{db: db}
}

// RequireAuth verifies the API token from the X-Api-Key header or the
// access_token cookie and stores the account in the request context.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			jsonError(w, http.StatusUnauthorized, 2, "missing API token")
			return
		}

		account, err := m.db.AccountByAuth(r.Context(), crypto.HashToken(token))
		if err != nil {
			jsonError(w, http.StatusInternalServerError, 7, "database error")
			return
		}
		if account == nil {
			jsonError(w, http.StatusUnauthorized, 2, "invalid API token")
			return
		}

		ctx := context.WithValue(r.Context(), AccountContextKey, account)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// extractToken reads the token from the header, falling back to the
// cookie browsers send after the client registers one.
func extractToken(r *http.Request) string {
	if key := r.Header.Get("X-Api-Key"); key != "" {
		return key
	}
	if cookie, err := r.Cookie("access_token"); err == nil {
		return cookie.Value
	}
	return ""
}

func jsonError(w http.ResponseWriter, status, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{"code": code, "message": message})
}

// GetAccountFromContext retrieves the authenticated account from the
// request context.
func GetAccountFromContext(ctx context.Context) *models.Account {
	account, ok := ctx.Value(AccountContextKey).(*models.Account)
	if !ok {
		return nil
	}
	return account
}
