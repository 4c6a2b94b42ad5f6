package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

// Middleware records request counts and latency per route.
func Middleware(next http.Handler) http.Handler {
	if !enabled {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		route := routeLabel(r)
		httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.status)).Inc()
		httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rw *statusRecorder) WriteHeader(status int) {
	rw.status = status
	rw.ResponseWriter.WriteHeader(status)
}

func (rw *statusRecorder) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// routeLabel prefers the chi route pattern, so session IDs and student
// addresses never become label values. Requests that matched no route
// share one label unless their path normalizes to a known API shape.
func routeLabel(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" && !strings.HasSuffix(pattern, "*") {
			return pattern
		}
	}
	if path := normalizePath(r.URL.Path); strings.HasPrefix(path, "/api/v1") {
		return path
	}
	return "unmatched"
}

// normalizePath replaces identifier segments of an /api/v1 path with {id}:
//
//	/api/v1/verifier/sessions/6f1c.../lookup -> /api/v1/verifier/sessions/{id}/lookup
//	/api/v1/admin/students/0xabc.../credentials -> /api/v1/admin/students/{id}/credentials
func normalizePath(path string) string {
	rest, ok := strings.CutPrefix(path, "/api/v1/")
	if !ok {
		return path
	}

	normalized := []string{"/api/v1"}
	for _, part := range strings.Split(rest, "/") {
		switch {
		case part == "":
		case isLikelyID(part):
			normalized = append(normalized, "{id}")
		default:
			normalized = append(normalized, part)
		}
	}
	return strings.Join(normalized, "/")
}

// isLikelyID matches addresses, digests, transaction hashes, UUIDs and
// numeric IDs.
func isLikelyID(segment string) bool {
	if hex, ok := strings.CutPrefix(segment, "0x"); ok {
		return len(hex) >= 40 && isHex(hex)
	}
	if strings.Count(segment, "-") >= 4 {
		return true
	}
	return strings.Trim(segment, "0123456789") == ""
}

func isHex(s string) bool {
	return s != "" && strings.Trim(strings.ToLower(s), "0123456789abcdef") == ""
}
