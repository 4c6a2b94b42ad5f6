// Package security provides request filtering and body limits.
package security

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
)

// Config holds the configuration for security middleware
type Config struct {
	FilterEnabled bool
	MaxBodySizeMB int
}

// exemptPaths are probes and scrapes that skip filtering
var exemptPaths = map[string]bool{
	"/health":  true,
	"/healthz": true,
	"/readyz":  true,
	"/metrics": true,
}

// blockedPrefixes are scanner probes. None of them overlap /api/v1.
var blockedPrefixes = []string{
	"/wp-",
	"/xmlrpc.php",
	"/.git/",
	"/.env",
	"/.aws/",
	"/.ssh/",
	"/.htaccess",
	"/.htpasswd",
	"/cgi-bin/",
	"/phpmyadmin",
	"/phpinfo",
	"/server-status",
	"/actuator",
	"/web-inf/",
	"/admin/",
	"/config.",
}

// blockedPatterns may appear anywhere in the path after decoding
var blockedPatterns = []string{
	"../",
	"..\\",
	"\x00",
}

// blocked reports whether path looks like a probe or traversal attempt.
func blocked(path string) bool {
	lower := strings.ToLower(path)
	for _, prefix := range blockedPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	for _, p := range blockedPatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// FilterMiddleware rejects scanner probes and traversal attempts with a
// generic 400. The raw path is unescaped repeatedly so double encoding
// does not slip through.
func FilterMiddleware(enabled bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !enabled {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if exemptPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			if blocked(r.URL.Path) {
				writeBlocked(w)
				return
			}

			raw := r.URL.EscapedPath()
			for i := 0; i < 3; i++ {
				decoded, err := url.PathUnescape(raw)
				if err != nil {
					writeBlocked(w)
					return
				}
				if blocked(decoded) {
					writeBlocked(w)
					return
				}
				if decoded == raw {
					break
				}
				raw = decoded
			}

			next.ServeHTTP(w, r)
		})
	}
}

// writeBlocked writes a 400 that does not say what triggered it
func writeBlocked(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"code":    "BAD_REQUEST",
			"message": "Invalid request",
		},
	})
}
