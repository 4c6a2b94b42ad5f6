package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const pgTimeLayout = "2006-01-02T15:04:05Z"

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresStore creates a new Postgres store
func NewPostgresStore(url string, logger *slog.Logger) (*PostgresStore, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &PostgresStore{db: db, logger: logger}, nil
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Migrate runs database migrations
func (s *PostgresStore) Migrate(ctx context.Context) error {
	schema := `
	-- Ledger transactions submitted by the admin dashboard
	CREATE TABLE IF NOT EXISTS transactions (
		seq BIGSERIAL PRIMARY KEY,
		id TEXT NOT NULL UNIQUE,
		kind TEXT NOT NULL,
		status TEXT NOT NULL,
		tx_hash TEXT,
		issuer TEXT NOT NULL,
		student TEXT NOT NULL,
		document_hash TEXT NOT NULL,
		credential_type TEXT,
		metadata_cid TEXT,
		block_number BIGINT,
		error TEXT,
		api_key_id TEXT,
		created_at TIMESTAMPTZ DEFAULT NOW(),
		updated_at TIMESTAMPTZ DEFAULT NOW()
	);

	-- API keys
	CREATE TABLE IF NOT EXISTS api_keys (
		id TEXT PRIMARY KEY,
		key_hash TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		created_at TIMESTAMPTZ DEFAULT NOW(),
		last_used_at TIMESTAMPTZ,
		revoked_at TIMESTAMPTZ
	);

	-- Indexes
	CREATE INDEX IF NOT EXISTS idx_transactions_student ON transactions(student);
	CREATE INDEX IF NOT EXISTS idx_transactions_tx_hash ON transactions(tx_hash);
	CREATE INDEX IF NOT EXISTS idx_transactions_document_hash ON transactions(document_hash);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// RecordTransaction inserts a new transaction record. ID is generated when empty.
func (s *PostgresStore) RecordTransaction(ctx context.Context, tx *Transaction) error {
	if tx.ID == "" {
		tx.ID = generateID()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transactions (id, kind, status, tx_hash, issuer, student, document_hash, credential_type, metadata_cid, block_number, error, api_key_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		tx.ID, tx.Kind, tx.Status, nullString(tx.TxHash), strings.ToLower(tx.Issuer), strings.ToLower(tx.Student),
		tx.DocumentHash, nullString(tx.CredentialType), nullString(tx.MetadataCID), int64(tx.BlockNumber),
		nullString(tx.Error), nullString(tx.APIKeyID),
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrAlreadyExists
	}
	return err
}

// UpdateTransactionStatus records how a transaction settled
func (s *PostgresStore) UpdateTransactionStatus(ctx context.Context, id string, update StatusUpdate) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE transactions
		SET status = $1, block_number = $2, error = $3, updated_at = NOW()
		WHERE id = $4`,
		update.Status, int64(update.BlockNumber), nullString(update.Error), id,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetTransaction retrieves a transaction by ID
func (s *PostgresStore) GetTransaction(ctx context.Context, id string) (*Transaction, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+transactionColumns+" FROM transactions WHERE id = $1", id)
	tx, _, err := scanPostgresTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return tx, err
}

// ListTransactions lists transactions newest first with cursor-based pagination
func (s *PostgresStore) ListTransactions(ctx context.Context, filter TransactionFilter, pagination PaginationParams) (*PaginatedResult[Transaction], error) {
	cursor, err := parseCursor(pagination.Cursor)
	if err != nil {
		return nil, err
	}
	where, args := whereClause(filter, cursor, func(n int) string { return fmt.Sprintf("$%d", n) })
	args = append(args, pagination.Limit+1)
	query := fmt.Sprintf("SELECT %s FROM transactions%s ORDER BY seq DESC LIMIT $%d", transactionColumns, where, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []Transaction
	var seqs []int64
	for rows.Next() {
		tx, seq, err := scanPostgresTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, *tx)
		seqs = append(seqs, seq)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return page(txs, seqs, pagination.Limit), nil
}

func scanPostgresTransaction(row rowScanner) (*Transaction, int64, error) {
	var tx Transaction
	var seq int64
	var txHash, credType, metadataCID, errMsg, apiKeyID sql.NullString
	var block sql.NullInt64
	var createdAt, updatedAt time.Time
	err := row.Scan(&seq, &tx.ID, &tx.Kind, &tx.Status, &txHash, &tx.Issuer, &tx.Student, &tx.DocumentHash,
		&credType, &metadataCID, &block, &errMsg, &apiKeyID, &createdAt, &updatedAt)
	if err != nil {
		return nil, 0, err
	}
	tx.TxHash = txHash.String
	tx.CredentialType = credType.String
	tx.MetadataCID = metadataCID.String
	tx.Error = errMsg.String
	tx.APIKeyID = apiKeyID.String
	if block.Valid {
		tx.BlockNumber = uint64(block.Int64)
	}
	tx.CreatedAt = createdAt.UTC().Format(pgTimeLayout)
	tx.UpdatedAt = updatedAt.UTC().Format(pgTimeLayout)
	return &tx, seq, nil
}

// CreateAPIKey creates a new API key
func (s *PostgresStore) CreateAPIKey(ctx context.Context, name string) (string, error) {
	key := generateAPIKey()
	hash := hashAPIKey(key)
	id := generateID()
	_, err := s.db.ExecContext(ctx, "INSERT INTO api_keys (id, key_hash, name) VALUES ($1, $2, $3)", id, hash, name)
	if err != nil {
		return "", err
	}
	return key, nil
}

// ValidateAPIKey validates an API key
func (s *PostgresStore) ValidateAPIKey(ctx context.Context, key string) (*APIKey, error) {
	hash := hashAPIKey(key)
	var ak APIKey
	var createdAt time.Time
	err := s.db.QueryRowContext(ctx, "SELECT id, key_hash, name, created_at FROM api_keys WHERE key_hash = $1 AND revoked_at IS NULL", hash).Scan(
		&ak.ID, &ak.KeyHash, &ak.Name, &createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	ak.CreatedAt = createdAt.UTC().Format(pgTimeLayout)
	_, _ = s.db.ExecContext(ctx, "UPDATE api_keys SET last_used_at = NOW() WHERE id = $1", ak.ID)
	return &ak, nil
}

// ListAPIKeys lists all API keys
func (s *PostgresStore) ListAPIKeys(ctx context.Context) ([]APIKey, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, created_at, last_used_at FROM api_keys WHERE revoked_at IS NULL ORDER BY created_at")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []APIKey
	for rows.Next() {
		var k APIKey
		var createdAt time.Time
		var lastUsed sql.NullTime
		if err := rows.Scan(&k.ID, &k.Name, &createdAt, &lastUsed); err != nil {
			return nil, err
		}
		k.CreatedAt = createdAt.UTC().Format(pgTimeLayout)
		if lastUsed.Valid {
			k.LastUsedAt = lastUsed.Time.UTC().Format(pgTimeLayout)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// RevokeAPIKey revokes an API key
func (s *PostgresStore) RevokeAPIKey(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE api_keys SET revoked_at = NOW() WHERE id = $1 AND revoked_at IS NULL", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
