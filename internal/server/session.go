package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pendergraft/verichain/internal/session"
	"github.com/pendergraft/verichain/internal/wallet"
)

// ThemeRequest is the body of PUT /session/theme.
type ThemeRequest struct {
	Theme string `json:"theme"`
}

func (s *Server) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sess.Status())
}

// handleSessionConnect asks the wallet for accounts and rebinds the
// session. A declined request leaves the session as it was.
func (s *Server) handleSessionConnect(w http.ResponseWriter, r *http.Request) {
	if err := s.sess.Connect(r.Context()); err != nil {
		switch {
		case errors.Is(err, wallet.ErrNoWallet):
			writeError(w, http.StatusServiceUnavailable, "WALLET_UNAVAILABLE", "No wallet is configured")
		case errors.Is(err, wallet.ErrDeclined):
			writeError(w, http.StatusForbidden, "USER_DECLINED", "Wallet connection was declined")
		case errors.Is(err, session.ErrLocked):
			writeError(w, http.StatusConflict, "CONFLICT", "Wallet is in use by another process")
		case errors.Is(err, session.ErrNotConnected):
			writeError(w, http.StatusUnauthorized, "WALLET_NOT_CONNECTED", "Wallet granted no accounts")
		default:
			s.logger.Error("wallet connection failed", "error", err)
			writeError(w, http.StatusBadGateway, "UPSTREAM_UNAVAILABLE", "Wallet connection failed")
		}
		return
	}
	writeJSON(w, http.StatusOK, s.sess.Status())
}

func (s *Server) handleSetTheme(w http.ResponseWriter, r *http.Request) {
	var req ThemeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON")
		return
	}
	theme, err := session.ParseTheme(req.Theme)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_FAILED", err.Error())
		return
	}
	s.sess.SetTheme(theme)
	writeJSON(w, http.StatusOK, map[string]any{"theme": s.sess.Theme()})
}

func (s *Server) handleToggleTheme(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"theme": s.sess.ToggleTheme()})
}
