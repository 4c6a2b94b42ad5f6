package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store
func NewSQLiteStore(path string, logger *slog.Logger) (*SQLiteStore, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Wait on the writer lock instead of failing with SQLITE_BUSY
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	return &SQLiteStore{db: db, logger: logger}, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate runs database migrations
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	schema := `
	-- Ledger transactions submitted by the admin dashboard
	CREATE TABLE IF NOT EXISTS transactions (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		kind TEXT NOT NULL,
		status TEXT NOT NULL,
		tx_hash TEXT,
		issuer TEXT NOT NULL,
		student TEXT NOT NULL,
		document_hash TEXT NOT NULL,
		credential_type TEXT,
		metadata_cid TEXT,
		block_number INTEGER,
		error TEXT,
		api_key_id TEXT,
		created_at TEXT DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
		updated_at TEXT DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
	);

	-- API keys
	CREATE TABLE IF NOT EXISTS api_keys (
		id TEXT PRIMARY KEY,
		key_hash TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		created_at TEXT DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
		last_used_at TEXT,
		revoked_at TEXT
	);

	-- Indexes
	CREATE INDEX IF NOT EXISTS idx_transactions_student ON transactions(student);
	CREATE INDEX IF NOT EXISTS idx_transactions_tx_hash ON transactions(tx_hash);
	CREATE INDEX IF NOT EXISTS idx_transactions_document_hash ON transactions(document_hash);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

const transactionColumns = `seq, id, kind, status, tx_hash, issuer, student, document_hash, credential_type, metadata_cid, block_number, error, api_key_id, created_at, updated_at`

// RecordTransaction inserts a new transaction record. ID is generated when empty.
func (s *SQLiteStore) RecordTransaction(ctx context.Context, tx *Transaction) error {
	if tx.ID == "" {
		tx.ID = generateID()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transactions (id, kind, status, tx_hash, issuer, student, document_hash, credential_type, metadata_cid, block_number, error, api_key_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.Kind, tx.Status, nullString(tx.TxHash), strings.ToLower(tx.Issuer), strings.ToLower(tx.Student),
		tx.DocumentHash, nullString(tx.CredentialType), nullString(tx.MetadataCID), int64(tx.BlockNumber),
		nullString(tx.Error), nullString(tx.APIKeyID),
	)
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return ErrAlreadyExists
	}
	return err
}

// UpdateTransactionStatus records how a transaction settled
func (s *SQLiteStore) UpdateTransactionStatus(ctx context.Context, id string, update StatusUpdate) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE transactions
		SET status = ?, block_number = ?, error = ?, updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		WHERE id = ?`,
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
func (s *SQLiteStore) GetTransaction(ctx context.Context, id string) (*Transaction, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+transactionColumns+" FROM transactions WHERE id = ?", id)
	tx, _, err := scanSQLiteTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return tx, err
}

// ListTransactions lists transactions newest first with cursor-based pagination
func (s *SQLiteStore) ListTransactions(ctx context.Context, filter TransactionFilter, pagination PaginationParams) (*PaginatedResult[Transaction], error) {
	cursor, err := parseCursor(pagination.Cursor)
	if err != nil {
		return nil, err
	}
	where, args := whereClause(filter, cursor, func(int) string { return "?" })
	args = append(args, pagination.Limit+1)

	rows, err := s.db.QueryContext(ctx, "SELECT "+transactionColumns+" FROM transactions"+where+" ORDER BY seq DESC LIMIT ?", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []Transaction
	var seqs []int64
	for rows.Next() {
		tx, seq, err := scanSQLiteTransaction(rows)
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteTransaction(row rowScanner) (*Transaction, int64, error) {
	var tx Transaction
	var seq int64
	var txHash, credType, metadataCID, errMsg, apiKeyID sql.NullString
	var block sql.NullInt64
	err := row.Scan(&seq, &tx.ID, &tx.Kind, &tx.Status, &txHash, &tx.Issuer, &tx.Student, &tx.DocumentHash,
		&credType, &metadataCID, &block, &errMsg, &apiKeyID, &tx.CreatedAt, &tx.UpdatedAt)
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
	return &tx, seq, nil
}

// CreateAPIKey creates a new API key
func (s *SQLiteStore) CreateAPIKey(ctx context.Context, name string) (string, error) {
	key := generateAPIKey()
	hash := hashAPIKey(key)
	id := generateID()
	_, err := s.db.ExecContext(ctx, "INSERT INTO api_keys (id, key_hash, name) VALUES (?, ?, ?)", id, hash, name)
	if err != nil {
		return "", err
	}
	return key, nil
}

// ValidateAPIKey validates an API key
func (s *SQLiteStore) ValidateAPIKey(ctx context.Context, key string) (*APIKey, error) {
	hash := hashAPIKey(key)
	var ak APIKey
	err := s.db.QueryRowContext(ctx, "SELECT id, key_hash, name, created_at FROM api_keys WHERE key_hash = ? AND revoked_at IS NULL", hash).Scan(
		&ak.ID, &ak.KeyHash, &ak.Name, &ak.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	// Update last used
	_, _ = s.db.ExecContext(ctx, "UPDATE api_keys SET last_used_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now') WHERE id = ?", ak.ID)
	return &ak, nil
}

// ListAPIKeys lists all API keys
func (s *SQLiteStore) ListAPIKeys(ctx context.Context) ([]APIKey, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, created_at, last_used_at FROM api_keys WHERE revoked_at IS NULL ORDER BY created_at")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []APIKey
	for rows.Next() {
		var k APIKey
		var lastUsed sql.NullString
		if err := rows.Scan(&k.ID, &k.Name, &k.CreatedAt, &lastUsed); err != nil {
			return nil, err
		}
		if lastUsed.Valid {
			k.LastUsedAt = lastUsed.String
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// RevokeAPIKey revokes an API key
func (s *SQLiteStore) RevokeAPIKey(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE api_keys SET revoked_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now') WHERE id = ? AND revoked_at IS NULL", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
