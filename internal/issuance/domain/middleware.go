package domain

import (
	"context"
	"log/slog"
	"time"

	"github.com/pendergraft/verichain/internal/ledger"
)

// LoggingMiddleware returns a service middleware that logs all operations.
func LoggingMiddleware(logger *slog.Logger) func(Service) Service {
	return func(next Service) Service {
		return &loggingMiddleware{next: next, logger: logger}
	}
}

type loggingMiddleware struct {
	next   Service
	logger *slog.Logger
}

func (m *loggingMiddleware) Issue(ctx context.Context, req IssueRequest) (*TxResult, error) {
	start := time.Now()
	result, err := m.next.Issue(ctx, req)
	attrs := []any{
		"student", req.Student,
		"credentialType", req.CredentialType,
		"duration", time.Since(start),
	}
	if result != nil {
		attrs = append(attrs, "tx", result.TxHash, "status", result.Status, "documentHash", result.DocumentHash)
	}
	m.logger.Info("Issue", append(attrs, "error", err)...)
	return result, err
}

func (m *loggingMiddleware) Revoke(ctx context.Context, req RevokeRequest) (*TxResult, error) {
	start := time.Now()
	result, err := m.next.Revoke(ctx, req)
	attrs := []any{
		"student", req.Student,
		"documentHash", req.DocumentHash,
		"duration", time.Since(start),
	}
	if result != nil {
		attrs = append(attrs, "tx", result.TxHash, "status", result.Status)
	}
	m.logger.Info("Revoke", append(attrs, "error", err)...)
	return result, err
}

func (m *loggingMiddleware) History(ctx context.Context, filter HistoryFilter, pagination PaginationParams) (*HistoryResult, error) {
	start := time.Now()
	result, err := m.next.History(ctx, filter, pagination)
	m.logger.Debug("History",
		"filter", filter,
		"limit", pagination.Limit,
		"duration", time.Since(start),
		"error", err,
	)
	return result, err
}

func (m *loggingMiddleware) StudentCredentials(ctx context.Context, student string) ([]ledger.Credential, error) {
	start := time.Now()
	creds, err := m.next.StudentCredentials(ctx, student)
	m.logger.Debug("StudentCredentials",
		"student", student,
		"count", len(creds),
		"duration", time.Since(start),
		"error", err,
	)
	return creds, err
}

func (m *loggingMiddleware) CredentialTypes() []string {
	return m.next.CredentialTypes()
}
