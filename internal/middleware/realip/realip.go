// Package realip resolves the client address of a request, honoring
// X-Forwarded-For only when the peer is a trusted proxy.
package realip

import (
	"context"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

type contextKey string

// ClientIPKey is the context key for the resolved client IP
const ClientIPKey contextKey = "client_ip"

// Config holds the configuration for the real IP middleware
type Config struct {
	TrustProxy     bool
	TrustedProxies []string // CIDR or bare IP
}

// Resolver decides which address a request came from.
type Resolver struct {
	trust    bool
	prefixes []netip.Prefix
}

// NewResolver parses cfg. Entries that are neither a CIDR nor an IP are
// ignored.
func NewResolver(cfg Config) *Resolver {
	res := &Resolver{trust: cfg.TrustProxy}
	if !cfg.TrustProxy {
		return res
	}
	for _, entry := range cfg.TrustedProxies {
		entry = strings.TrimSpace(entry)
		if p, err := netip.ParsePrefix(entry); err == nil {
			res.prefixes = append(res.prefixes, p.Masked())
			continue
		}
		if a, err := netip.ParseAddr(entry); err == nil {
			res.prefixes = append(res.prefixes, netip.PrefixFrom(a, a.BitLen()))
		}
	}
	return res
}

// Middleware stores the resolved client IP in the request context.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	res := NewResolver(cfg)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), ClientIPKey, res.ClientIP(r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClientIP returns the first untrusted hop, walking X-Forwarded-For from
// the right. A request from an untrusted peer is taken at face value.
func (res *Resolver) ClientIP(r *http.Request) string {
	peer := hostOnly(r.RemoteAddr)
	if !res.trust || !res.trusted(peer) {
		return peer
	}

	xff := r.Header.Get("X-Forwarded-For")
	if xff == "" {
		if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
			return xri
		}
		return peer
	}

	hops := strings.Split(xff, ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop != "" && !res.trusted(hop) {
			return hop
		}
	}
	return strings.TrimSpace(hops[0])
}

func (res *Resolver) trusted(ip string) bool {
	a, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	a = a.Unmap()
	for _, p := range res.prefixes {
		if p.Contains(a) {
			return true
		}
	}
	return false
}

func hostOnly(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

// GetClientIP retrieves the client IP stored by Middleware, falling back to
// the peer address.
func GetClientIP(r *http.Request) string {
	if ip, ok := r.Context().Value(ClientIPKey).(string); ok && ip != "" {
		return ip
	}
	return hostOnly(r.RemoteAddr)
}
