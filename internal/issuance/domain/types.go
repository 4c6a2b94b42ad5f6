// Package domain contains the business logic for issuing and revoking
// credentials from the institution dashboard.
package domain

import (
	"time"

	"github.com/pendergraft/verichain/internal/ledger"
)

// Transaction statuses as recorded in history.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusFailed    = "failed"
)

// IssueRequest is one submission of the issuance form. Name is used for
// STUDENT_ID credentials; DocumentHash for every other type.
type IssueRequest struct {
	Student        string                `json:"studentAddress"`
	CredentialType ledger.CredentialType `json:"credentialType"`
	Name           string                `json:"name,omitempty"`
	DocumentHash   string                `json:"documentHash,omitempty"`
}

// RevokeRequest identifies the credential to revoke.
type RevokeRequest struct {
	Student      string `json:"studentAddress"`
	DocumentHash string `json:"documentHash"`
}

// TxResult describes a submitted ledger transaction and how it settled.
type TxResult struct {
	ID             string                `json:"id"`
	Kind           string                `json:"kind"`
	Status         string                `json:"status"`
	TxHash         string                `json:"txHash"`
	BlockNumber    uint64                `json:"blockNumber,omitempty"`
	Student        string                `json:"studentAddress"`
	DocumentHash   string                `json:"documentHash"`
	CredentialType ledger.CredentialType `json:"credentialType,omitempty"`
	MetadataCID    string                `json:"metadataCid,omitempty"`
}

// HistoryEntry is a recorded transaction.
type HistoryEntry struct {
	TxResult
	Issuer    string    `json:"issuer"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// HistoryFilter narrows the transaction history.
type HistoryFilter struct {
	Kind    string
	Status  string
	Student string
}

// PaginationParams contains pagination options.
type PaginationParams struct {
	Limit  int
	Cursor string
}

// HistoryResult is one page of history.
type HistoryResult struct {
	Entries    []HistoryEntry
	HasMore    bool
	NextCursor string
}
