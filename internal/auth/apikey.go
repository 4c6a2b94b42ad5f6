package auth

import (
	"net/http"
	"strings"
)

// KeyPrefix starts every key the store issues.
const KeyPrefix = "vc_key_"

// HasKeyPrefix reports whether s looks like an issued API key.
func HasKeyPrefix(s string) bool {
	return len(s) > len(KeyPrefix) && strings.HasPrefix(s, KeyPrefix)
}

// keyFromRequest reads X-API-Key, then an "Authorization: Bearer" token.
func keyFromRequest(r *http.Request) string {
	if key := strings.TrimSpace(r.Header.Get("X-API-Key")); key != "" {
		return key
	}
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}
