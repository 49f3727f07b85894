// File: internal/middleware/relay_auth.go
package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/iyunix/go-relaychat/internal/auth"
	"github.com/iyunix/go-relaychat/internal/ratelimit"
)

// RequireRelayToken admits only requests carrying a valid relay bearer token.
// An empty secret disables the relay routes entirely.
func RequireRelayToken(secretKey []byte, logger Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(secretKey) == 0 {
				logger.Warn("[RelayAuth] relay disabled, no secret configured", "path", r.URL.Path)
				writeAuthError(w, http.StatusServiceUnavailable, "relay is disabled on this server")
				return
			}

			header := r.Header.Get("Authorization")
			token, found := strings.CutPrefix(header, "Bearer ")
			if !found || token == "" {
				logger.Warn("[RelayAuth] missing bearer token", "remote", ratelimit.GetClientIP(r))
				writeAuthError(w, http.StatusUnauthorized, "missing relay token")
				return
			}

			claims, err := auth.ValidateRelayToken(token, secretKey)
			if err != nil {
				logger.Warn("[RelayAuth] invalid token", "remote", ratelimit.GetClientIP(r), "error", err)
				writeAuthError(w, http.StatusUnauthorized, "invalid relay token")
				return
			}

			ctx := context.WithValue(r.Context(), RelayPeerKey, claims.Subject)
			ctx = context.WithValue(ctx, RelayServerKey, claims.Server)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeAuthError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
