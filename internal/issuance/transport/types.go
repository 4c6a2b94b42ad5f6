package transport

import (
	"time"

	"github.com/pendergraft/verichain/internal/issuance/domain"
	"github.com/pendergraft/verichain/internal/ledger"
)

// IssueRequest is the body of POST /admin/credentials.
type IssueRequest struct {
	StudentAddress string `json:"studentAddress"`
	CredentialType string `json:"credentialType"`
	Name           string `json:"name,omitempty"`
	DocumentHash   string `json:"documentHash,omitempty"`
}

// ToDomain converts the request to a domain issue request.
func (r IssueRequest) ToDomain() domain.IssueRequest {
	return domain.IssueRequest{
		Student:        r.StudentAddress,
		CredentialType: ledger.CredentialType(r.CredentialType),
		Name:           r.Name,
		DocumentHash:   r.DocumentHash,
	}
}

// RevokeRequest is the body of POST /admin/credentials/revoke.
type RevokeRequest struct {
	StudentAddress string `json:"studentAddress"`
	DocumentHash   string `json:"documentHash"`
}

// ToDomain converts the request to a domain revoke request.
func (r RevokeRequest) ToDomain() domain.RevokeRequest {
	return domain.RevokeRequest{
		Student:      r.StudentAddress,
		DocumentHash: r.DocumentHash,
	}
}

// TxResponse reports a submitted transaction.
type TxResponse struct {
	domain.TxResult
	Message string       `json:"message"`
	Error   *ErrorDetail `json:"error,omitempty"`
}

// HistoryResponse is a page of recorded transactions.
type HistoryResponse struct {
	Data       []domain.HistoryEntry `json:"data"`
	Pagination Pagination            `json:"pagination"`
}

// Pagination carries cursor metadata.
type Pagination struct {
	HasMore    bool   `json:"hasMore"`
	NextCursor string `json:"nextCursor,omitempty"`
}

// CredentialItem is one credential as listed for a student.
type CredentialItem struct {
	Title          string    `json:"title"`
	CredentialType string    `json:"credentialType"`
	DocumentHash   string    `json:"documentHash"`
	MetadataCID    string    `json:"metadataCid"`
	IssueDate      time.Time `json:"issueDate"`
	Active         bool      `json:"active"`
}

func toCredentialItem(c ledger.Credential) CredentialItem {
	return CredentialItem{
		Title:          c.CredentialType.Title(),
		CredentialType: string(c.CredentialType),
		DocumentHash:   c.DocumentHash,
		MetadataCID:    c.MetadataCID,
		IssueDate:      c.IssueDate,
		Active:         c.Active,
	}
}

// ErrorResponse is the standard error envelope.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes an error.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
