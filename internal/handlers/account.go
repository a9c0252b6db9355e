package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/waymark-protocol/waymark/internal/api/middleware"
	"github.com/waymark-protocol/waymark/internal/crypto"
	"github.com/waymark-protocol/waymark/internal/metrics"
	"github.com/waymark-protocol/waymark/internal/store"
)

// Register creates a new account and returns its API token as the plain
// response body. The token is never stored in the clear and cannot be
// recovered later.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	token, err := crypto.NewToken()
	if err != nil {
		h.Error(w, http.StatusInternalServerError, CodeInternal, "failed to generate token")
		return
	}

	if _, err := h.db.CreateAccount(r.Context(), crypto.HashToken(token)); err != nil {
		h.log.Error().Err(err).Msg("Failed to create account")
		h.Error(w, http.StatusInternalServerError, CodeInternal, "failed to create account")
		return
	}

	metrics.AccountsRegistered.Inc()
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte(token))
}

// Unregister deletes the account along with its messages and votes.
func (h *Handler) Unregister(w http.ResponseWriter, r *http.Request) {
	account := middleware.GetAccountFromContext(r.Context())

	if err := h.db.DeleteAccount(r.Context(), account.ID); err != nil {
		h.log.Error().Err(err).Int64("account", account.ID).Msg("Failed to delete account")
		h.Error(w, http.StatusInternalServerError, CodeInternal, "failed to delete account")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Ping refreshes the account's last-seen timestamp. Clients call this
// periodically while logged in.
func (h *Handler) Ping(w http.ResponseWriter, r *http.Request) {
	account := middleware.GetAccountFromContext(r.Context())

	if err := h.db.TouchAccount(r.Context(), account.ID); err != nil {
		h.Error(w, http.StatusInternalServerError, CodeInternal, "failed to update account")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Claim redeems a one-time code for extra message slots. The code is the
// plain request body and the new slot count is the plain response body.
func (h *Handler) Claim(w http.ResponseWriter, r *http.Request) {
	account := middleware.GetAccountFromContext(r.Context())

	body, err := io.ReadAll(io.LimitReader(r.Body, 128))
	if err != nil {
		h.Error(w, http.StatusBadRequest, CodeInvalidRequest, "failed to read body")
		return
	}
	code := strings.TrimSpace(string(body))
	if code == "" {
		h.Error(w, http.StatusBadRequest, CodeInvalidRequest, "code is required")
		return
	}

	extra, err := h.db.ClaimExtra(r.Context(), account.ID, code)
	if err != nil {
		if errors.Is(err, store.ErrInvalidCode) {
			h.Error(w, http.StatusNotFound, CodeInvalidExtraCode, "unknown or already-used code")
			return
		}
		h.log.Error().Err(err).Int64("account", account.ID).Msg("Failed to claim extra code")
		h.Error(w, http.StatusInternalServerError, CodeInternal, "failed to claim code")
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte(strconv.FormatInt(extra, 10)))
}
