// Package transport provides HTTP handlers for the public verifier.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pendergraft/verichain/internal/verification/domain"
)

// Service defines the verification service interface for HTTP transport.
type Service interface {
	Verify(ctx context.Context, fp string) (*domain.Result, error)
	VerifyContent(ctx context.Context, content []byte) (*domain.Result, error)
	CreateSession(ctx context.Context) (*domain.SessionInfo, error)
	GetSession(ctx context.Context, id string) (*domain.SessionInfo, error)
	DeleteSession(ctx context.Context, id string) error
	SelectDigest(ctx context.Context, id, fp string) (*domain.SessionInfo, error)
	SelectDocument(ctx context.Context, id string, content []byte) (*domain.SessionInfo, error)
	StartLookup(ctx context.Context, id string) (*domain.SessionInfo, error)
}

// Handler handles HTTP requests for verification.
type Handler struct {
	svc Service
}

// NewHandler creates a new verification HTTP handler.
func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes registers the verification routes on a chi router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/verify", h.handleVerify)
	r.Post("/verify/document", h.handleVerifyDocument)

	r.Route("/verifier/sessions", func(r chi.Router) {
		r.Post("/", h.handleCreateSession)
		r.Get("/{id}", h.handleGetSession)
		r.Delete("/{id}", h.handleDeleteSession)
		r.Put("/{id}/digest", h.handleSelectDigest)
		r.Put("/{id}/document", h.handleSelectDocument)
		r.Post("/{id}/lookup", h.handleLookup)
	})
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if !decode(w, r, &req) {
		return
	}

	result, err := h.svc.Verify(r.Context(), req.DocumentHash)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toVerifyResponse(result))
}

func (h *Handler) handleVerifyDocument(w http.ResponseWriter, r *http.Request) {
	content, ok := readBody(w, r)
	if !ok {
		return
	}

	result, err := h.svc.VerifyContent(r.Context(), content)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toVerifyResponse(result))
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	info, err := h.svc.CreateSession(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSessionResponse(info))
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	info, err := h.svc.GetSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(info))
}

func (h *Handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteSession(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSelectDigest(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if !decode(w, r, &req) {
		return
	}

	info, err := h.svc.SelectDigest(r.Context(), chi.URLParam(r, "id"), req.DocumentHash)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(info))
}

func (h *Handler) handleSelectDocument(w http.ResponseWriter, r *http.Request) {
	content, ok := readBody(w, r)
	if !ok {
		return
	}

	info, err := h.svc.SelectDocument(r.Context(), chi.URLParam(r, "id"), content)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(info))
}

func (h *Handler) handleLookup(w http.ResponseWriter, r *http.Request) {
	info, err := h.svc.StartLookup(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, toSessionResponse(info))
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	body, ok := readBody(w, r)
	if !ok {
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON")
		return false
	}
	return true
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Document too large")
			return nil, false
		}
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Failed to read request body")
		return nil, false
	}
	return body, true
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Verifier session not found")
	case errors.Is(err, domain.ErrInvalidFingerprint):
		writeError(w, http.StatusBadRequest, "VALIDATION_FAILED", err.Error())
	case errors.Is(err, domain.ErrNoDigest):
		writeError(w, http.StatusBadRequest, "VALIDATION_FAILED", "Select a document to verify")
	case errors.Is(err, domain.ErrLookupPending):
		writeError(w, http.StatusConflict, "LOOKUP_PENDING", "A lookup is already in progress")
	case errors.Is(err, domain.ErrAlreadyChecked):
		writeError(w, http.StatusConflict, "CONFLICT", "Document already checked, select a document to check again")
	case errors.Is(err, domain.ErrTooManySessions):
		w.Header().Set("Retry-After", "60")
		writeError(w, http.StatusServiceUnavailable, "SERVICE_BUSY", "Too many verifier sessions, try again later")
	default:
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Verification failed")
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
