package storage

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// keyPrefix must match auth.KeyPrefix.
const keyPrefix = "vc_key_"

// generateID generates a new UUID
func generateID() string {
	return uuid.New().String()
}

// generateAPIKey generates a new API key
func generateAPIKey() string {
	b := make([]byte, 24)
	_, _ = rand.Read(b)
	return fmt.Sprintf("%s%s", keyPrefix, hex.EncodeToString(b))
}

// hashAPIKey hashes an API key for storage
func hashAPIKey(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:])
}

// parseCursor decodes a transaction list cursor. An empty cursor starts
// from the newest row.
func parseCursor(cursor string) (int64, error) {
	if cursor == "" {
		return 0, nil
	}
	seq, err := strconv.ParseInt(cursor, 10, 64)
	if err != nil || seq <= 0 {
		return 0, fmt.Errorf("invalid cursor %q", cursor)
	}
	return seq, nil
}

// whereClause joins filter conditions. placeholder renders the n-th
// argument, so both "?" and "$n" dialects share it.
func whereClause(filter TransactionFilter, cursor int64, placeholder func(n int) string) (string, []any) {
	var conds []string
	var args []any
	add := func(expr string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(expr, placeholder(len(args))))
	}

	if cursor > 0 {
		add("seq < %s", cursor)
	}
	if filter.Kind != "" {
		add("kind = %s", filter.Kind)
	}
	if filter.Status != "" {
		add("status = %s", filter.Status)
	}
	if filter.Student != "" {
		add("student = %s", strings.ToLower(filter.Student))
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// page trims rows fetched with limit+1 and computes the next cursor.
func page(rows []Transaction, seqs []int64, limit int) *PaginatedResult[Transaction] {
	hasMore := len(rows) > limit
	if hasMore {
		rows = rows[:limit]
		seqs = seqs[:limit]
	}
	var next string
	if hasMore && len(seqs) > 0 {
		next = strconv.FormatInt(seqs[len(seqs)-1], 10)
	}
	return &PaginatedResult[Transaction]{
		Data:       rows,
		HasMore:    hasMore,
		NextCursor: next,
	}
}
