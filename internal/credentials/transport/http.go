// Package transport provides HTTP handlers for the student dashboard.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pendergraft/verichain/internal/credentials/domain"
	"github.com/pendergraft/verichain/internal/ledger"
	"github.com/pendergraft/verichain/internal/session"
)

// Service defines the student dashboard interface for HTTP transport.
type Service interface {
	Me(ctx context.Context) (session.Status, error)
	MyCredentials(ctx context.Context) ([]domain.Card, error)
}

// Handler handles HTTP requests for the student dashboard.
type Handler struct {
	svc Service
}

// NewHandler creates a new student dashboard HTTP handler.
func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes registers the routes on a chi router mounted at /me.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.handleMe)
	r.Get("/credentials", h.handleMyCredentials)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Me(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *Handler) handleMyCredentials(w http.ResponseWriter, r *http.Request) {
	cards, err := h.svc.MyCredentials(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := map[string]any{"data": cards}
	if len(cards) == 0 {
		resp["message"] = "You have no active credentials."
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNotConnected):
		writeError(w, http.StatusUnauthorized, "WALLET_NOT_CONNECTED", "Connect a wallet to view your credentials")
	case errors.Is(err, session.ErrForbidden):
		writeError(w, http.StatusForbidden, "FORBIDDEN", err.Error())
	case errors.Is(err, ledger.ErrUnavailable):
		writeError(w, http.StatusBadGateway, "LEDGER_UNAVAILABLE", "Failed to fetch credentials")
	default:
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch credentials")
	}
}

// Helper functions

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
