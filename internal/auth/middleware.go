// Package auth guards the admin and student API with issued API keys.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/pendergraft/verichain/internal/storage"
)

type contextKey struct{}

// ErrorWriter renders an error response in the server's JSON envelope.
type ErrorWriter func(w http.ResponseWriter, status int, code, message string)

// GetAPIKeyFromContext returns the key that authenticated the request, or nil.
func GetAPIKeyFromContext(ctx context.Context) *storage.APIKey {
	key, _ := ctx.Value(contextKey{}).(*storage.APIKey)
	return key
}

// GetKeyIDFromContext returns the ID of the key that authenticated the
// request. Issuance records it on every transaction it submits.
func GetKeyIDFromContext(ctx context.Context) string {
	if key := GetAPIKeyFromContext(ctx); key != nil {
		return key.ID
	}
	return ""
}

// WithAPIKey returns ctx carrying key.
func WithAPIKey(ctx context.Context, key *storage.APIKey) context.Context {
	return context.WithValue(ctx, contextKey{}, key)
}

// Middleware rejects requests without a live API key. Values that do not
// carry the issued prefix are refused without a store lookup. A store
// failure is reported as 503 so clients do not discard a good key.
func Middleware(store storage.APIKeyStore, writeError ErrorWriter, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := keyFromRequest(r)
			switch {
			case raw == "":
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "API key required")
				return
			case !HasKeyPrefix(raw):
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid API key")
				return
			}

			key, err := store.ValidateAPIKey(r.Context(), raw)
			if errors.Is(err, storage.ErrNotFound) {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid API key")
				return
			}
			if err != nil {
				logger.Error("api key lookup failed", "error", err, "path", r.URL.Path)
				writeError(w, http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE", "Key store is not reachable")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithAPIKey(r.Context(), key)))
		})
	}
}
