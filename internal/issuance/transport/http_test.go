package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pendergraft/verichain/internal/issuance/domain"
	"github.com/pendergraft/verichain/internal/ledger"
	"github.com/pendergraft/verichain/internal/session"
)

// mockService implements Service for testing
type mockService struct {
	issueResult *domain.TxResult
	issueErr    error
	lastIssue   domain.IssueRequest
	lastRevoke  domain.RevokeRequest
	lastFilter  domain.HistoryFilter
	lastPage    domain.PaginationParams
	history     *domain.HistoryResult
	creds       []ledger.Credential
	err         error
}

func (m *mockService) Issue(ctx context.Context, req domain.IssueRequest) (*domain.TxResult, error) {
	m.lastIssue = req
	return m.issueResult, m.issueErr
}

func (m *mockService) Revoke(ctx context.Context, req domain.RevokeRequest) (*domain.TxResult, error) {
	m.lastRevoke = req
	return m.issueResult, m.issueErr
}

func (m *mockService) History(ctx context.Context, filter domain.HistoryFilter, pagination domain.PaginationParams) (*domain.HistoryResult, error) {
	m.lastFilter = filter
	m.lastPage = pagination
	if m.err != nil {
		return nil, m.err
	}
	return m.history, nil
}

func (m *mockService) StudentCredentials(ctx context.Context, student string) ([]ledger.Credential, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.creds, nil
}

func (m *mockService) CredentialTypes() []string {
	return []string{"STUDENT_ID", "DIPLOMA"}
}

func setupRouter(svc Service) *chi.Mux {
	r := chi.NewRouter()
	r.Route("/admin", NewHandler(svc).RegisterRoutes)
	return r
}

func do(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandleIssue_Confirmed(t *testing.T) {
	svc := &mockService{issueResult: &domain.TxResult{ID: "tx-1", Status: domain.StatusConfirmed, TxHash: "0xabc"}}
	r := setupRouter(svc)

	w := do(t, r, http.MethodPost, "/admin/credentials", IssueRequest{
		StudentAddress: "0xbbbb",
		CredentialType: "STUDENT_ID",
		Name:           "Ada",
	})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, ledger.StudentID, svc.lastIssue.CredentialType)
	assert.Equal(t, "Ada", svc.lastIssue.Name)

	var resp TxResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "0xabc", resp.TxHash)
	assert.Equal(t, "Credential issued", resp.Message)
	assert.Nil(t, resp.Error)
}

func TestHandleIssue_Pending(t *testing.T) {
	svc := &mockService{
		issueResult: &domain.TxResult{Status: domain.StatusPending, TxHash: "0xabc"},
		issueErr:    domain.ErrPending,
	}
	w := do(t, setupRouter(svc), http.MethodPost, "/admin/credentials", IssueRequest{})
	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestHandleIssue_Reverted(t *testing.T) {
	svc := &mockService{
		issueResult: &domain.TxResult{Status: domain.StatusFailed, TxHash: "0xabc"},
		issueErr:    fmt.Errorf("waiting for issue: %w", ledger.ErrReverted),
	}
	w := do(t, setupRouter(svc), http.MethodPost, "/admin/credentials", IssueRequest{})

	assert.Equal(t, http.StatusConflict, w.Code)
	var resp TxResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, "TRANSACTION_FAILED", resp.Error.Code)
	assert.Equal(t, domain.StatusFailed, resp.Status)
}

func TestHandleIssue_InvalidJSON(t *testing.T) {
	r := setupRouter(&mockService{})
	req := httptest.NewRequest(http.MethodPost, "/admin/credentials", bytes.NewBufferString("{"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleIssue_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", fmt.Errorf("%w: name is required", domain.ErrValidation), http.StatusBadRequest, "VALIDATION_ERROR"},
		{"address", domain.ErrInvalidAddress, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"not connected", session.ErrNotConnected, http.StatusUnauthorized, "WALLET_NOT_CONNECTED"},
		{"not admin", session.ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
		{"contract owner", fmt.Errorf("submitting issue: %w", ledger.ErrUnauthorized), http.StatusForbidden, "FORBIDDEN"},
		{"read only", ledger.ErrNoSigner, http.StatusForbidden, "READ_ONLY_WALLET"},
		{"pinning", fmt.Errorf("%w: timeout", domain.ErrPinning), http.StatusBadGateway, "PINNING_FAILED"},
		{"ledger down", ledger.ErrUnavailable, http.StatusBadGateway, "LEDGER_UNAVAILABLE"},
		{"other", fmt.Errorf("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, setupRouter(&mockService{issueErr: tt.err}), http.MethodPost, "/admin/credentials", IssueRequest{})
			assert.Equal(t, tt.status, w.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestHandleRevoke(t *testing.T) {
	svc := &mockService{issueResult: &domain.TxResult{Kind: "revoke", Status: domain.StatusConfirmed}}
	w := do(t, setupRouter(svc), http.MethodPost, "/admin/credentials/revoke", RevokeRequest{
		StudentAddress: "0xbbbb",
		DocumentHash:   "0x01",
	})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "0x01", svc.lastRevoke.DocumentHash)
	assert.Contains(t, w.Body.String(), "Credential revoked")
}

func TestHandleHistory(t *testing.T) {
	svc := &mockService{history: &domain.HistoryResult{
		Entries:    []domain.HistoryEntry{{TxResult: domain.TxResult{ID: "tx-2"}}},
		HasMore:    true,
		NextCursor: "c2",
	}}
	w := do(t, setupRouter(svc), http.MethodGet, "/admin/transactions?kind=issue&status=failed&student=0xbb&limit=5&cursor=c1", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, domain.HistoryFilter{Kind: "issue", Status: "failed", Student: "0xbb"}, svc.lastFilter)
	assert.Equal(t, domain.PaginationParams{Limit: 5, Cursor: "c1"}, svc.lastPage)

	var resp HistoryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "tx-2", resp.Data[0].ID)
	assert.True(t, resp.Pagination.HasMore)
	assert.Equal(t, "c2", resp.Pagination.NextCursor)
}

func TestHandleStudentCredentials(t *testing.T) {
	svc := &mockService{creds: []ledger.Credential{
		{CredentialType: ledger.StudentID, DocumentHash: "0x01", Active: true},
		{CredentialType: ledger.Diploma, DocumentHash: "0x02", Active: false},
	}}
	w := do(t, setupRouter(svc), http.MethodGet, "/admin/students/0xbbbb/credentials", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data []CredentialItem `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "Student ID", resp.Data[0].Title)
	assert.Equal(t, "Diploma", resp.Data[1].Title)
	assert.False(t, resp.Data[1].Active)
}

func TestHandleStudentCredentials_Forbidden(t *testing.T) {
	w := do(t, setupRouter(&mockService{err: session.ErrForbidden}), http.MethodGet, "/admin/students/0xbbbb/credentials", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestHandleCredentialTypes(t *testing.T) {
	w := do(t, setupRouter(&mockService{}), http.MethodGet, "/admin/credential-types", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":["STUDENT_ID","DIPLOMA"]}`, w.Body.String())
}
