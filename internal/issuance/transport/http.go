// Package transport provides HTTP handlers for the institution dashboard.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pendergraft/verichain/internal/issuance/domain"
	"github.com/pendergraft/verichain/internal/ledger"
	"github.com/pendergraft/verichain/internal/pinning"
	"github.com/pendergraft/verichain/internal/session"
)

// Service defines the issuance service interface for HTTP transport.
type Service interface {
	Issue(ctx context.Context, req domain.IssueRequest) (*domain.TxResult, error)
	Revoke(ctx context.Context, req domain.RevokeRequest) (*domain.TxResult, error)
	History(ctx context.Context, filter domain.HistoryFilter, pagination domain.PaginationParams) (*domain.HistoryResult, error)
	StudentCredentials(ctx context.Context, student string) ([]ledger.Credential, error)
	CredentialTypes() []string
}

// Handler handles HTTP requests for the admin dashboard.
type Handler struct {
	svc Service
}

// NewHandler creates a new issuance HTTP handler.
func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes registers the admin routes on a chi router mounted at /admin.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/credential-types", h.handleCredentialTypes)
	r.Post("/credentials", h.handleIssue)
	r.Post("/credentials/revoke", h.handleRevoke)
	r.Get("/transactions", h.handleHistory)
	r.Get("/students/{address}/credentials", h.handleStudentCredentials)
}

func (h *Handler) handleCredentialTypes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"data": h.svc.CredentialTypes()})
}

func (h *Handler) handleIssue(w http.ResponseWriter, r *http.Request) {
	var req IssueRequest
	if !decode(w, r, &req) {
		return
	}

	result, err := h.svc.Issue(r.Context(), req.ToDomain())
	h.writeTxResult(w, result, err, "Credential issued")
}

func (h *Handler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	var req RevokeRequest
	if !decode(w, r, &req) {
		return
	}

	result, err := h.svc.Revoke(r.Context(), req.ToDomain())
	h.writeTxResult(w, result, err, "Credential revoked")
}

// writeTxResult renders a settled transaction: 201 when confirmed, 202
// while still pending, an error otherwise.
func (h *Handler) writeTxResult(w http.ResponseWriter, result *domain.TxResult, err error, success string) {
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, TxResponse{TxResult: *result, Message: success})
	case errors.Is(err, domain.ErrPending) && result != nil:
		writeJSON(w, http.StatusAccepted, TxResponse{TxResult: *result, Message: "Transaction submitted, awaiting confirmation"})
	case result != nil:
		// Mined but reverted.
		writeJSON(w, http.StatusConflict, TxResponse{
			TxResult: *result,
			Message:  "Transaction failed",
			Error:    &ErrorDetail{Code: "TRANSACTION_FAILED", Message: err.Error()},
		})
	default:
		writeDomainError(w, err)
	}
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))

	result, err := h.svc.History(r.Context(), domain.HistoryFilter{
		Kind:    q.Get("kind"),
		Status:  q.Get("status"),
		Student: q.Get("student"),
	}, domain.PaginationParams{
		Limit:  limit,
		Cursor: q.Get("cursor"),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, HistoryResponse{
		Data: result.Entries,
		Pagination: Pagination{
			HasMore:    result.HasMore,
			NextCursor: result.NextCursor,
		},
	})
}

func (h *Handler) handleStudentCredentials(w http.ResponseWriter, r *http.Request) {
	creds, err := h.svc.StudentCredentials(r.Context(), chi.URLParam(r, "address"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	items := make([]CredentialItem, len(creds))
	for i, c := range creds {
		items[i] = toCredentialItem(c)
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": items})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON")
		return false
	}
	return true
}

// writeDomainError maps the error taxonomy onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidAddress),
		errors.Is(err, domain.ErrInvalidCredentialType),
		errors.Is(err, domain.ErrInvalidFingerprint):
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, session.ErrNotConnected):
		writeError(w, http.StatusUnauthorized, "WALLET_NOT_CONNECTED", "Connect a wallet to use the admin dashboard")
	case errors.Is(err, session.ErrForbidden), errors.Is(err, ledger.ErrUnauthorized):
		writeError(w, http.StatusForbidden, "FORBIDDEN", "Connected account is not the contract owner")
	case errors.Is(err, ledger.ErrNoSigner):
		writeError(w, http.StatusForbidden, "READ_ONLY_WALLET", "Connected wallet cannot sign transactions")
	case errors.Is(err, ledger.ErrReverted):
		writeError(w, http.StatusConflict, "TRANSACTION_REVERTED", err.Error())
	case errors.Is(err, pinning.ErrNotConfigured):
		writeError(w, http.StatusServiceUnavailable, "PINNING_NOT_CONFIGURED", "Pinning service is not configured")
	case errors.Is(err, domain.ErrPinning):
		writeError(w, http.StatusBadGateway, "PINNING_FAILED", err.Error())
	case errors.Is(err, ledger.ErrUnavailable):
		writeError(w, http.StatusBadGateway, "LEDGER_UNAVAILABLE", "Ledger is unavailable, try again")
	default:
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Request failed")
	}
}

// Helper functions

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
}
