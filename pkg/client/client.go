// Package client provides a Go client for the VeriChain API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Client is a VeriChain API client
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

// New creates a new VeriChain client
func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			// Issuance waits for the transaction to be mined.
			Timeout: 3 * time.Minute,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Transaction statuses.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusFailed    = "failed"
)

// Verification outcomes.
const (
	OutcomeUnchecked = "unchecked"
	OutcomePending   = "pending"
	OutcomeConfirmed = "confirmed"
	OutcomeRejected  = "rejected"
)

// SessionStatus describes the server's connected wallet.
type SessionStatus struct {
	Account   string   `json:"account,omitempty"`
	Owner     string   `json:"owner,omitempty"`
	Connected bool     `json:"connected"`
	Admin     bool     `json:"admin"`
	Views     []string `json:"views"`
	Theme     string   `json:"theme"`
}

// VerifyResult is a one-shot verification answer.
type VerifyResult struct {
	Digest    string    `json:"digest"`
	Outcome   string    `json:"outcome"`
	Verified  bool      `json:"verified"`
	Recorded  bool      `json:"recorded"`
	Message   string    `json:"message"`
	Detail    string    `json:"detail,omitempty"`
	CheckedAt time.Time `json:"checkedAt"`
}

// VerifierState is the state of a verifier session.
type VerifierState struct {
	Digest    string     `json:"digest,omitempty"`
	Size      int64      `json:"size,omitempty"`
	Outcome   string     `json:"outcome"`
	Detail    string     `json:"detail,omitempty"`
	CheckedAt *time.Time `json:"checkedAt,omitempty"`
}

// VerifierSession is a server-held verifier session.
type VerifierSession struct {
	ID        string        `json:"id"`
	State     VerifierState `json:"state"`
	CanVerify bool          `json:"canVerify"`
	Message   string        `json:"message,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// StudentProfile is the pinned profile behind a student ID.
type StudentProfile struct {
	Name           string    `json:"name"`
	StudentAddress string    `json:"studentAddress"`
	Type           string    `json:"type"`
	Issued         time.Time `json:"issued"`
}

// Credential is one credential as listed by the API.
type Credential struct {
	Title          string          `json:"title"`
	CredentialType string          `json:"credentialType"`
	DocumentHash   string          `json:"documentHash"`
	MetadataCID    string          `json:"metadataCid,omitempty"`
	IssueDate      time.Time       `json:"issueDate"`
	Active         *bool           `json:"active,omitempty"`
	Profile        *StudentProfile `json:"profile,omitempty"`
}

// IssueRequest is the request for issuing a credential
type IssueRequest struct {
	StudentAddress string `json:"studentAddress"`
	CredentialType string `json:"credentialType"`
	Name           string `json:"name,omitempty"`
	DocumentHash   string `json:"documentHash,omitempty"`
}

// RevokeRequest is the request for revoking a credential
type RevokeRequest struct {
	StudentAddress string `json:"studentAddress"`
	DocumentHash   string `json:"documentHash"`
}

// TxResult describes a submitted transaction.
type TxResult struct {
	ID             string `json:"id"`
	Kind           string `json:"kind"`
	Status         string `json:"status"`
	TxHash         string `json:"txHash"`
	BlockNumber    uint64 `json:"blockNumber,omitempty"`
	StudentAddress string `json:"studentAddress"`
	DocumentHash   string `json:"documentHash"`
	CredentialType string `json:"credentialType,omitempty"`
	MetadataCID    string `json:"metadataCid,omitempty"`
	Message        string `json:"message,omitempty"`
}

// Transaction is a recorded issue or revoke.
type Transaction struct {
	TxResult
	Issuer    string    `json:"issuer"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TransactionQuery filters the transaction history.
type TransactionQuery struct {
	Kind    string
	Status  string
	Student string
	Limit   int
	Cursor  string
}

// ListTransactionsResponse is one page of history.
type ListTransactionsResponse struct {
	Data       []Transaction `json:"data"`
	Pagination Pagination    `json:"pagination"`
}

// Pagination contains pagination info
type Pagination struct {
	HasMore    bool   `json:"hasMore"`
	NextCursor string `json:"nextCursor,omitempty"`
}

// APIError represents an API error response
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Health checks the server is up.
func (c *Client) Health(ctx context.Context) error {
	return c.get(ctx, "/health", nil)
}

// Session returns the server's wallet session.
func (c *Client) Session(ctx context.Context) (*SessionStatus, error) {
	var resp SessionStatus
	if err := c.get(ctx, "/api/v1/session", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Connect asks the server's wallet for accounts.
func (c *Client) Connect(ctx context.Context) (*SessionStatus, error) {
	var resp SessionStatus
	if err := c.send(ctx, http.MethodPost, "/api/v1/session/connect", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SetTheme changes the session display theme.
func (c *Client) SetTheme(ctx context.Context, theme string) (string, error) {
	var resp struct {
		Theme string `json:"theme"`
	}
	if err := c.send(ctx, http.MethodPut, "/api/v1/session/theme", map[string]string{"theme": theme}, &resp); err != nil {
		return "", err
	}
	return resp.Theme, nil
}

// ToggleTheme flips the session display theme.
func (c *Client) ToggleTheme(ctx context.Context) (string, error) {
	var resp struct {
		Theme string `json:"theme"`
	}
	if err := c.send(ctx, http.MethodPost, "/api/v1/session/theme/toggle", nil, &resp); err != nil {
		return "", err
	}
	return resp.Theme, nil
}

// Verify checks a document fingerprint against the ledger.
func (c *Client) Verify(ctx context.Context, documentHash string) (*VerifyResult, error) {
	var resp VerifyResult
	if err := c.send(ctx, http.MethodPost, "/api/v1/verify", map[string]string{"documentHash": documentHash}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// VerifyDocument uploads document content to be fingerprinted and checked.
func (c *Client) VerifyDocument(ctx context.Context, content []byte) (*VerifyResult, error) {
	var resp VerifyResult
	if err := c.upload(ctx, http.MethodPost, "/api/v1/verify/document", content, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CreateVerifierSession starts a verifier session.
func (c *Client) CreateVerifierSession(ctx context.Context) (*VerifierSession, error) {
	var resp VerifierSession
	if err := c.send(ctx, http.MethodPost, "/api/v1/verifier/sessions", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetVerifierSession reads a verifier session.
func (c *Client) GetVerifierSession(ctx context.Context, id string) (*VerifierSession, error) {
	var resp VerifierSession
	if err := c.get(ctx, sessionPath(id, ""), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DeleteVerifierSession ends a verifier session.
func (c *Client) DeleteVerifierSession(ctx context.Context, id string) error {
	return c.send(ctx, http.MethodDelete, sessionPath(id, ""), nil, nil)
}

// SelectDigest selects a document by fingerprint in a verifier session.
func (c *Client) SelectDigest(ctx context.Context, id, documentHash string) (*VerifierSession, error) {
	var resp VerifierSession
	if err := c.send(ctx, http.MethodPut, sessionPath(id, "/digest"), map[string]string{"documentHash": documentHash}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SelectDocument uploads a document into a verifier session.
func (c *Client) SelectDocument(ctx context.Context, id string, content []byte) (*VerifierSession, error) {
	var resp VerifierSession
	if err := c.upload(ctx, http.MethodPut, sessionPath(id, "/document"), content, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// StartLookup starts the ledger lookup for the selected document.
func (c *Client) StartLookup(ctx context.Context, id string) (*VerifierSession, error) {
	var resp VerifierSession
	if err := c.send(ctx, http.MethodPost, sessionPath(id, "/lookup"), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AwaitOutcome polls a verifier session until its lookup settles or ctx
// ends.
func (c *Client) AwaitOutcome(ctx context.Context, id string, interval time.Duration) (*VerifierSession, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		s, err := c.GetVerifierSession(ctx, id)
		if err != nil {
			return nil, err
		}
		if s.State.Outcome != OutcomePending {
			return s, nil
		}
		select {
		case <-ctx.Done():
			return s, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Me returns the connected student's session.
func (c *Client) Me(ctx context.Context) (*SessionStatus, error) {
	var resp SessionStatus
	if err := c.get(ctx, "/api/v1/me", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// MyCredentials lists the connected account's active credentials.
func (c *Client) MyCredentials(ctx context.Context) ([]Credential, error) {
	var resp struct {
		Data []Credential `json:"data"`
	}
	if err := c.get(ctx, "/api/v1/me/credentials", &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// CredentialTypes lists the credential types offered for issuance.
func (c *Client) CredentialTypes(ctx context.Context) ([]string, error) {
	var resp struct {
		Data []string `json:"data"`
	}
	if err := c.get(ctx, "/api/v1/admin/credential-types", &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// Issue issues a credential. A result with StatusPending means the
// transaction was submitted but not yet mined.
func (c *Client) Issue(ctx context.Context, req IssueRequest) (*TxResult, error) {
	var resp TxResult
	if err := c.send(ctx, http.MethodPost, "/api/v1/admin/credentials", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Revoke revokes a credential.
func (c *Client) Revoke(ctx context.Context, req RevokeRequest) (*TxResult, error) {
	var resp TxResult
	if err := c.send(ctx, http.MethodPost, "/api/v1/admin/credentials/revoke", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListTransactions lists recorded issue and revoke transactions.
func (c *Client) ListTransactions(ctx context.Context, q TransactionQuery) (*ListTransactionsResponse, error) {
	v := url.Values{}
	if q.Kind != "" {
		v.Set("kind", q.Kind)
	}
	if q.Status != "" {
		v.Set("status", q.Status)
	}
	if q.Student != "" {
		v.Set("student", q.Student)
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Cursor != "" {
		v.Set("cursor", q.Cursor)
	}
	path := "/api/v1/admin/transactions"
	if len(v) > 0 {
		path += "?" + v.Encode()
	}

	var resp ListTransactionsResponse
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// StudentCredentials lists every credential of a student, revoked included.
func (c *Client) StudentCredentials(ctx context.Context, student string) ([]Credential, error) {
	var resp struct {
		Data []Credential `json:"data"`
	}
	path := "/api/v1/admin/students/" + url.PathEscape(student) + "/credentials"
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func sessionPath(id, suffix string) string {
	return "/api/v1/verifier/sessions/" + url.PathEscape(id) + suffix
}

func (c *Client) get(ctx context.Context, path string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	return c.do(req, result)
}

func (c *Client) send(ctx context.Context, method, path string, body, result any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, result)
}

func (c *Client) upload(ctx context.Context, method, path string, content []byte, result any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(content))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	return c.do(req, result)
}

func (c *Client) do(req *http.Request, result any) error {
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.parseError(resp)
	}

	if result != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	req.Header.Set("Accept", "application/json")
}

func (c *Client) parseError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	var errResp struct {
		Error APIError `json:"error"`
	}
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error.Code == "" {
		return &APIError{Status: resp.StatusCode, Code: "HTTP_" + strconv.Itoa(resp.StatusCode), Message: resp.Status}
	}
	errResp.Error.Status = resp.StatusCode
	return &errResp.Error
}
