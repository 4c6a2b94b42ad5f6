package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pendergraft/verichain/internal/config"
)

// Transaction kinds.
const (
	KindIssue  = "issue"
	KindRevoke = "revoke"
)

// Transaction statuses.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusFailed    = "failed"
)

// TransactionStore records the ledger transactions submitted through the
// admin dashboard.
type TransactionStore interface {
	RecordTransaction(ctx context.Context, tx *Transaction) error
	UpdateTransactionStatus(ctx context.Context, id string, update StatusUpdate) error
	GetTransaction(ctx context.Context, id string) (*Transaction, error)
	ListTransactions(ctx context.Context, filter TransactionFilter, pagination PaginationParams) (*PaginatedResult[Transaction], error)
}

// APIKeyStore handles API key operations
type APIKeyStore interface {
	CreateAPIKey(ctx context.Context, name string) (key string, err error)
	ValidateAPIKey(ctx context.Context, key string) (*APIKey, error)
	ListAPIKeys(ctx context.Context) ([]APIKey, error)
	RevokeAPIKey(ctx context.Context, id string) error
}

// Store combines all storage interfaces with lifecycle methods.
// Domain services define their own minimal interfaces based on their actual usage.
type Store interface {
	TransactionStore
	APIKeyStore

	// Lifecycle
	Close() error
	Migrate(ctx context.Context) error
}

// Transaction is a submitted issue or revoke call and what became of it.
type Transaction struct {
	ID             string
	Kind           string
	Status         string
	TxHash         string
	Issuer         string
	Student        string
	DocumentHash   string
	CredentialType string
	MetadataCID    string
	BlockNumber    uint64
	Error          string
	APIKeyID       string
	CreatedAt      string
	UpdatedAt      string
}

// StatusUpdate is the outcome written once a transaction settles.
type StatusUpdate struct {
	Status      string
	BlockNumber uint64
	Error       string
}

// TransactionFilter contains filter options for listing transactions
type TransactionFilter struct {
	Kind    string
	Status  string
	Student string
}

// APIKey represents an API key
type APIKey struct {
	ID         string
	Name       string
	KeyHash    string
	CreatedAt  string
	LastUsedAt string
	RevokedAt  string
}

// PaginationParams contains pagination options
type PaginationParams struct {
	Limit  int
	Cursor string
}

// PaginatedResult contains paginated results
type PaginatedResult[T any] struct {
	Data       []T
	HasMore    bool
	NextCursor string
	PrevCursor string
}

// New creates a new store based on configuration
func New(cfg config.StorageConfig, logger *slog.Logger) (Store, error) {
	switch cfg.Type {
	case "sqlite":
		return NewSQLiteStore(cfg.SQLite.Path, logger)
	case "postgres":
		return NewPostgresStore(cfg.Postgres.URL, logger)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
