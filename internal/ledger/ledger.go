// Package ledger defines the credential registry contract as seen by the
// rest of the application. The evm subpackage binds it to a deployed
// contract over JSON-RPC.
package ledger

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// Errors returned by ledger implementations.
var (
	ErrNoSigner     = errors.New("no signer available for state-changing call")
	ErrReverted     = errors.New("transaction reverted")
	ErrUnauthorized = errors.New("caller is not the contract owner")
	ErrUnavailable  = errors.New("ledger unavailable")
)

// CredentialType names the kind of credential being issued.
type CredentialType string

// Credential types offered by the issuance form.
const (
	StudentID  CredentialType = "STUDENT_ID"
	Diploma    CredentialType = "DIPLOMA"
	Transcript CredentialType = "TRANSCRIPT"
)

// DefaultCredentialTypes is the configured set when none is provided.
var DefaultCredentialTypes = []CredentialType{StudentID, Diploma, Transcript}

// NoMetadata is the metadata reference recorded when no profile was pinned.
const NoMetadata = "N/A"

// Title returns the display title for a credential type.
func (t CredentialType) Title() string {
	if t == StudentID {
		return "Student ID"
	}
	r, size := utf8.DecodeRuneInString(string(t))
	if size == 0 {
		return ""
	}
	return string(unicode.ToUpper(r)) + strings.ToLower(string(t)[size:])
}

// Credential is one ledger record as returned by the contract.
type Credential struct {
	DocumentHash   string         `json:"documentHash"`
	CredentialType CredentialType `json:"credentialType"`
	MetadataCID    string         `json:"metadataCid"`
	IssueDate      time.Time      `json:"issueDate"`
	Active         bool           `json:"active"`
}

// HasMetadata reports whether the credential points at a pinned profile.
func (c Credential) HasMetadata() bool {
	return c.MetadataCID != "" && c.MetadataCID != NoMetadata
}

// Receipt reports the outcome of a finalized transaction.
type Receipt struct {
	TxHash      string `json:"txHash"`
	BlockNumber uint64 `json:"blockNumber"`
	GasUsed     uint64 `json:"gasUsed"`
	Success     bool   `json:"success"`
}

// Transaction is a submitted state-changing call.
type Transaction interface {
	Hash() string
	// Wait blocks until the transaction is finalized or ctx ends. A
	// reverted transaction returns its receipt together with ErrReverted.
	Wait(ctx context.Context) (*Receipt, error)
}

// Reader is the read-only surface of the registry contract.
type Reader interface {
	Owner(ctx context.Context) (string, error)
	VerifyDocument(ctx context.Context, documentHash string) (bool, error)
	IsHashVerified(ctx context.Context, documentHash string) (bool, error)
	MyCredentials(ctx context.Context) ([]Credential, error)
	CredentialsForStudent(ctx context.Context, student string) ([]Credential, error)
}

// Ledger is the full registry contract handle, bound to one account.
type Ledger interface {
	Reader
	IssueCredential(ctx context.Context, student, documentHash string, credType CredentialType, metadataCID string) (Transaction, error)
	RevokeCredential(ctx context.Context, student, documentHash string) (Transaction, error)
}

// ActiveOnly filters out revoked credentials, keeping order.
func ActiveOnly(creds []Credential) []Credential {
	out := make([]Credential, 0, len(creds))
	for _, c := range creds {
		if c.Active {
			out = append(out, c)
		}
	}
	return out
}
