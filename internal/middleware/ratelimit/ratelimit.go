// Package ratelimit provides per-client token bucket rate limiting. Ledger
// writes draw from a separate, smaller bucket than reads.
package ratelimit

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/pendergraft/verichain/internal/middleware/realip"
)

// Config holds the configuration for rate limiting
type Config struct {
	Enabled        bool
	RequestsPerMin int
	BurstSize      int
	// WritesPerMin limits admin mutations. Zero means RequestsPerMin/10, at least 1.
	WritesPerMin   int
	CleanupMinutes int
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter manages per-client limiters
type RateLimiter struct {
	mu         sync.Mutex
	buckets    map[string]*bucket
	readRate   rate.Limit
	readBurst  int
	writeRate  rate.Limit
	writeBurst int
	idle       time.Duration
	now        func() time.Time
	stopCh     chan struct{}
	stopOnce   sync.Once
}

// New creates a RateLimiter and starts its cleanup loop.
func New(cfg Config) *RateLimiter {
	writes := cfg.WritesPerMin
	if writes <= 0 {
		writes = max(cfg.RequestsPerMin/10, 1)
	}
	idle := time.Duration(cfg.CleanupMinutes) * time.Minute
	if idle <= 0 {
		idle = 10 * time.Minute
	}

	rl := &RateLimiter{
		buckets:    make(map[string]*bucket),
		readRate:   rate.Limit(float64(cfg.RequestsPerMin) / 60.0),
		readBurst:  cfg.BurstSize,
		writeRate:  rate.Limit(float64(writes) / 60.0),
		writeBurst: max(cfg.BurstSize/10, 1),
		idle:       idle,
		now:        time.Now,
		stopCh:     make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

// Stop stops the cleanup goroutine
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.idle)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.evictIdle()
		case <-rl.stopCh:
			return
		}
	}
}

// evictIdle drops buckets not used within the idle window.
func (rl *RateLimiter) evictIdle() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rl.idle)
	n := 0
	for key, b := range rl.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(rl.buckets, key)
			n++
		}
	}
	return n
}

// allow charges one token from the client's bucket of the given class.
func (rl *RateLimiter) allow(client string, write bool) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	key := "r:" + client
	r, burst := rl.readRate, rl.readBurst
	if write {
		key = "w:" + client
		r, burst = rl.writeRate, rl.writeBurst
	}

	now := rl.now()
	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(r, burst)}
		rl.buckets[key] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

// exempt paths are probes and scrapes
var exempt = map[string]bool{
	"/health":  true,
	"/healthz": true,
	"/readyz":  true,
	"/metrics": true,
}

// isWrite reports whether r mutates the ledger.
func isWrite(r *http.Request) bool {
	if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
		return false
	}
	return strings.HasPrefix(r.URL.Path, "/api/v1/admin/")
}

// Middleware returns an HTTP middleware that rate limits requests per client
func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if exempt[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			client := realip.GetClientIP(r)
			write := isWrite(r)
			// Writes also count against the general budget.
			if (write && !rl.allow(client, true)) || !rl.allow(client, false) {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "60")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"error": map[string]any{
						"code":    "RATE_LIMIT_EXCEEDED",
						"message": "Too many requests. Please try again later.",
					},
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Middleware builds a limiter from cfg, or a pass-through when disabled.
// The limiter's cleanup loop runs for the lifetime of the process.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	if !cfg.Enabled {
		return func(next http.Handler) http.Handler { return next }
	}
	return New(cfg).Middleware()
}
