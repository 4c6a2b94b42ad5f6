// Package server provides the HTTP server setup and wiring.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/pendergraft/verichain/internal/auth"
	"github.com/pendergraft/verichain/internal/config"
	credentialsDomain "github.com/pendergraft/verichain/internal/credentials/domain"
	credentialsTransport "github.com/pendergraft/verichain/internal/credentials/transport"
	issuanceDomain "github.com/pendergraft/verichain/internal/issuance/domain"
	issuanceTransport "github.com/pendergraft/verichain/internal/issuance/transport"
	"github.com/pendergraft/verichain/internal/middleware/logging"
	"github.com/pendergraft/verichain/internal/middleware/ratelimit"
	"github.com/pendergraft/verichain/internal/middleware/realip"
	"github.com/pendergraft/verichain/internal/middleware/security"
	"github.com/pendergraft/verichain/internal/observability/metrics"
	"github.com/pendergraft/verichain/internal/pinning"
	"github.com/pendergraft/verichain/internal/session"
	"github.com/pendergraft/verichain/internal/storage"
	verificationDomain "github.com/pendergraft/verichain/internal/verification/domain"
	verificationTransport "github.com/pendergraft/verichain/internal/verification/transport"
)

// Server is the HTTP server
type Server struct {
	cfg     *config.Config
	store   storage.Store
	sess    *session.Context
	logger  *slog.Logger
	router  *chi.Mux
	limiter *ratelimit.RateLimiter

	// Services typed via transport interfaces
	issuanceSvc     issuanceTransport.Service
	credentialsSvc  credentialsTransport.Service
	verificationSvc verificationTransport.Service

	closeVerification func()
}

// New creates a new server around an open session.
func New(cfg *config.Config, store storage.Store, sess *session.Context, logger *slog.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		store:  store,
		sess:   sess,
		logger: logger,
		router: chi.NewRouter(),
	}

	pinner := pinning.New(pinning.Config{
		APIURL:     cfg.Pinning.APIURL,
		GatewayURL: cfg.Pinning.GatewayURL,
		JWT:        cfg.Pinning.JWT,
		Timeout:    cfg.Pinning.Timeout,
	}, logger)

	// Create domain services
	issueImpl := issuanceDomain.NewService(sess, pinner, store, issuanceDomain.Config{
		CredentialTypes: cfg.Issuance.CredentialTypes,
		ConfirmTimeout:  cfg.Chain.ConfirmTimeout,
	}, logger)
	credImpl := credentialsDomain.NewService(sess, sess.Status, pinner, logger)
	verifyImpl := verificationDomain.NewService(sessionOracle{sess: sess}, verificationDomain.Config{
		LookupTimeout: cfg.Verification.LookupTimeout,
		SessionTTL:    cfg.Verification.SessionTTL,
		MaxSessions:   cfg.Verification.MaxSessions,
	}, logger)

	// Wrap services with logging middleware
	s.issuanceSvc = issuanceDomain.LoggingMiddleware(logger)(issueImpl)
	s.credentialsSvc = credentialsDomain.LoggingMiddleware(logger)(credImpl)
	s.verificationSvc = verifyImpl
	s.closeVerification = verifyImpl.Close

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// MetricsHandler returns the metrics HTTP handler for separate metrics server
func (s *Server) MetricsHandler() http.Handler {
	return metrics.Handler()
}

// Close stops background work: the verifier session sweeper, pending
// lookups and the rate limiter cleanup.
func (s *Server) Close() {
	s.closeVerification()
	if s.limiter != nil {
		s.limiter.Stop()
	}
}

func (s *Server) setupMiddleware() {
	// Order matters! Security middleware runs first to block malicious requests early.

	// 1. Real IP extraction (must be first to set client IP for other middleware)
	s.router.Use(realip.Middleware(realip.Config{
		TrustProxy:     s.cfg.Proxy.TrustProxy,
		TrustedProxies: s.cfg.Proxy.TrustedProxies,
	}))

	// 2. Security filter (blocks malicious patterns, bypasses health checks)
	s.router.Use(security.FilterMiddleware(s.cfg.Security.FilterEnabled))

	// 3. Body size limit
	s.router.Use(security.MaxBodySizeMiddleware(s.cfg.Security.MaxBodySizeMB))

	// 4. Rate limiting (bypasses health checks)
	if s.cfg.RateLimit.Enabled {
		s.limiter = ratelimit.New(ratelimit.Config{
			Enabled:        true,
			RequestsPerMin: s.cfg.RateLimit.RequestsPerMin,
			BurstSize:      s.cfg.RateLimit.BurstSize,
			WritesPerMin:   s.cfg.RateLimit.WritesPerMin,
			CleanupMinutes: s.cfg.RateLimit.CleanupMinutes,
		})
		s.router.Use(s.limiter.Middleware())
	}

	// 5. Standard middleware
	s.router.Use(middleware.RequestID)
	s.router.Use(logging.Middleware(s.logger))
	s.router.Use(metrics.Middleware)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))

	// 6. CORS
	s.router.Use(cors)
}

func (s *Server) setupRoutes() {
	// Health checks
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/healthz", s.handleHealth)
	s.router.Get("/readyz", s.handleReady)

	if metrics.Enabled() {
		s.router.Handle("/metrics", metrics.Handler())
	}

	verificationHandler := verificationTransport.NewHandler(s.verificationSvc)
	issuanceHandler := issuanceTransport.NewHandler(s.issuanceSvc)
	credentialsHandler := credentialsTransport.NewHandler(s.credentialsSvc)

	// Auth middleware for operations that act for the connected wallet
	requireAuth := func(r chi.Router) {
		if s.cfg.Auth.Type == "api-key" {
			r.Use(auth.Middleware(s.store, writeError, s.logger))
		}
	}

	// API v1 routes
	s.router.Route("/api/v1", func(r chi.Router) {
		// Public verifier - no auth
		verificationHandler.RegisterRoutes(r)

		r.Get("/session", s.handleSessionStatus)

		r.Group(func(r chi.Router) {
			requireAuth(r)

			r.Post("/session/connect", s.handleSessionConnect)
			r.Put("/session/theme", s.handleSetTheme)
			r.Post("/session/theme/toggle", s.handleToggleTheme)

			r.Route("/me", credentialsHandler.RegisterRoutes)
			r.Route("/admin", issuanceHandler.RegisterRoutes)
		})
	})
}

// Health check handler
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady reports whether the contract answers and the store is up.
// The owner read also refreshes the session role, so an ownership
// transfer shows up on the next probe.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.sess.RefreshOwner(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE", "Ledger is not reachable")
		return
	}
	if _, err := s.store.ListAPIKeys(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE", "Storage is not reachable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// Helper functions

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	})
}
