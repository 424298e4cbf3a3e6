package handler

import (
	"crypto/subtle"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/casashop/cart-api/internal/domain/auth"
)

// requireAPIKey guards an endpoint behind the api_key header. The raw key is
// HMAC-hashed and looked up; only the hash ever reaches storage or logs.
func (h *Handler) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get("api_key")
		if raw == "" {
			respondMessage(w, http.StatusUnauthorized, "api key required")
			return
		}

		hash := auth.HashKey(raw, h.pepper)
		key, err := h.apikeys.FindByHash(r.Context(), hash)
		if err != nil {
			if !errors.Is(err, auth.ErrUnauthorized) {
				zctx.From(r.Context()).Error("api key lookup failed", zap.Error(err))
			}
			respondMessage(w, http.StatusUnauthorized, "invalid api key")
			return
		}
		// The repository matched on the hash already; the constant-time compare
		// keeps the final decision independent of string internals.
		if subtle.ConstantTimeCompare([]byte(key.KeyHash), []byte(hash)) != 1 {
			respondMessage(w, http.StatusUnauthorized, "invalid api key")
			return
		}

		next.ServeHTTP(w, r)
	})
}
