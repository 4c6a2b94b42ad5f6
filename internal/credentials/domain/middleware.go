package domain

import (
	"context"
	"log/slog"
	"time"

	"github.com/pendergraft/verichain/internal/session"
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

func (m *loggingMiddleware) Me(ctx context.Context) (session.Status, error) {
	return m.next.Me(ctx)
}

func (m *loggingMiddleware) MyCredentials(ctx context.Context) ([]Card, error) {
	start := time.Now()
	cards, err := m.next.MyCredentials(ctx)
	m.logger.Debug("MyCredentials",
		"count", len(cards),
		"duration", time.Since(start),
		"error", err,
	)
	return cards, err
}
