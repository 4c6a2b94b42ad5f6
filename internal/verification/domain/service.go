// Package domain contains the business logic for document verification.
package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pendergraft/verichain/internal/fingerprint"
	"github.com/pendergraft/verichain/internal/observability/metrics"
)

// Common errors returned by the verification service.
var (
	ErrNotFound           = errors.New("session not found")
	ErrInvalidFingerprint = errors.New("invalid fingerprint")
	ErrNoDigest           = errors.New("no document selected")
	ErrLookupPending      = errors.New("a lookup is already pending")
	ErrAlreadyChecked     = errors.New("document already checked")
	ErrTooManySessions    = errors.New("verifier session limit reached")
)

// Oracle answers whether a fingerprint belongs to an active credential.
type Oracle interface {
	VerifyDocument(ctx context.Context, documentHash string) (bool, error)
}

// RecordChecker reports whether a fingerprint was ever recorded, whether or
// not its credential is still active. Oracles that implement it let a
// rejected result tell a revoked credential from one never issued.
type RecordChecker interface {
	IsHashVerified(ctx context.Context, documentHash string) (bool, error)
}

// Config tunes lookups and session retention.
type Config struct {
	LookupTimeout time.Duration
	SessionTTL    time.Duration
	SweepInterval time.Duration
	// MaxSessions caps live verifier sessions.
	MaxSessions int
}

func (c Config) withDefaults() Config {
	if c.LookupTimeout <= 0 {
		c.LookupTimeout = 30 * time.Second
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = 30 * time.Minute
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = time.Minute
	}
	if c.MaxSessions <= 0 {
		c.MaxSessions = 10000
	}
	return c
}

type entry struct {
	session   *Session
	createdAt time.Time
	updatedAt time.Time
}

type service struct {
	oracle Oracle
	cfg    Config
	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*entry

	lookups   sync.WaitGroup
	stopCh    chan struct{}
	closeOnce sync.Once
}

// NewService creates a new verification service and starts its session
// sweeper. Call Close to stop it.
func NewService(oracle Oracle, cfg Config, logger *slog.Logger) *service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &service{
		oracle:   oracle,
		cfg:      cfg.withDefaults(),
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*entry),
		stopCh:   make(chan struct{}),
	}
	go s.sweepLoop()
	return s
}

// Close stops the sweeper and waits for in-flight lookups to settle.
func (s *service) Close() {
	s.closeOnce.Do(func() {
		close(s.stopCh)
	})
	s.lookups.Wait()
}

// Verify checks one fingerprint without keeping any session state.
func (s *service) Verify(ctx context.Context, fp string) (*Result, error) {
	d, err := fingerprint.Parse(fp)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFingerprint, err)
	}
	return s.verify(ctx, d.Encoded), nil
}

// VerifyContent fingerprints content and checks it.
func (s *service) VerifyContent(ctx context.Context, content []byte) (*Result, error) {
	d := fingerprint.Compute(content)
	return s.verify(ctx, d.Encoded), nil
}

func (s *service) verify(ctx context.Context, encoded string) *Result {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.LookupTimeout)
	defer cancel()

	found, err := s.oracle.VerifyDocument(ctx, encoded)
	outcome := OutcomeFor(found, err)
	metrics.RecordVerification(outcome.String())

	res := &Result{Digest: encoded, Outcome: outcome, CheckedAt: s.now().UTC()}
	if err != nil {
		s.logger.Warn("verification lookup failed", "digest", encoded, "error", err)
		res.Detail = err.Error()
		return res
	}
	if outcome == Rejected {
		res.Recorded = s.recorded(ctx, encoded)
	}
	return res
}

// recorded asks the oracle for the issuance record behind a rejected
// fingerprint. A failed query reads as not recorded.
func (s *service) recorded(ctx context.Context, encoded string) bool {
	rc, ok := s.oracle.(RecordChecker)
	if !ok {
		return false
	}
	found, err := rc.IsHashVerified(ctx, encoded)
	if err != nil {
		s.logger.Warn("record lookup failed", "digest", encoded, "error", err)
		return false
	}
	return found
}

// CreateSession registers an empty verifier session.
func (s *service) CreateSession(ctx context.Context) (*SessionInfo, error) {
	id := uuid.New().String()
	now := s.now().UTC()
	sess := NewSession()
	sess.now = s.now

	s.mu.Lock()
	if len(s.sessions) >= s.cfg.MaxSessions {
		s.mu.Unlock()
		s.logger.Warn("refusing verifier session", "limit", s.cfg.MaxSessions)
		return nil, ErrTooManySessions
	}
	s.sessions[id] = &entry{session: sess, createdAt: now, updatedAt: now}
	s.mu.Unlock()

	return &SessionInfo{ID: id, State: sess.Snapshot(), CreatedAt: now, UpdatedAt: now}, nil
}

// GetSession returns the current state of a session.
func (s *service) GetSession(ctx context.Context, id string) (*SessionInfo, error) {
	e, err := s.get(id, false)
	if err != nil {
		return nil, err
	}
	return s.info(id, e), nil
}

// DeleteSession forgets a session. A pending lookup still completes but
// its result goes nowhere.
func (s *service) DeleteSession(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(s.sessions, id)
	return nil
}

// SelectDigest selects a document by its fingerprint string.
func (s *service) SelectDigest(ctx context.Context, id, fp string) (*SessionInfo, error) {
	d, err := fingerprint.Parse(fp)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFingerprint, err)
	}
	return s.selectDigest(id, d)
}

// SelectDocument selects a document by its content.
func (s *service) SelectDocument(ctx context.Context, id string, content []byte) (*SessionInfo, error) {
	return s.selectDigest(id, fingerprint.Compute(content))
}

func (s *service) selectDigest(id string, d fingerprint.Digest) (*SessionInfo, error) {
	e, err := s.get(id, true)
	if err != nil {
		return nil, err
	}
	e.session.SelectDigest(d)
	return s.info(id, e), nil
}

// StartLookup moves the session to Pending and queries the oracle in the
// background. The returned state is the Pending snapshot; callers poll
// GetSession for the outcome.
func (s *service) StartLookup(ctx context.Context, id string) (*SessionInfo, error) {
	e, err := s.get(id, true)
	if err != nil {
		return nil, err
	}
	ticket, err := e.session.Begin()
	if err != nil {
		return nil, err
	}

	s.lookups.Add(1)
	go s.runLookup(id, e, ticket)

	return s.info(id, e), nil
}

// runLookup is detached from the request context so the lookup outlives
// the HTTP call that started it.
func (s *service) runLookup(id string, e *entry, t Ticket) {
	defer s.lookups.Done()

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.LookupTimeout)
	defer cancel()

	found, err := s.oracle.VerifyDocument(ctx, t.Digest)
	if !e.session.Resolve(t, found, err) {
		metrics.RecordStaleDiscard()
		s.logger.Debug("discarded stale lookup", "session", id, "digest", t.Digest)
		return
	}

	outcome := OutcomeFor(found, err)
	metrics.RecordVerification(outcome.String())
	if err != nil {
		s.logger.Warn("verification lookup failed", "session", id, "digest", t.Digest, "error", err)
	}

	s.mu.Lock()
	e.updatedAt = s.now().UTC()
	s.mu.Unlock()
}

func (s *service) get(id string, touch bool) (*entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	if touch {
		e.updatedAt = s.now().UTC()
	}
	return e, nil
}

func (s *service) info(id string, e *entry) *SessionInfo {
	s.mu.Lock()
	created, updated := e.createdAt, e.updatedAt
	s.mu.Unlock()
	return &SessionInfo{ID: id, State: e.session.Snapshot(), CreatedAt: created, UpdatedAt: updated}
}

func (s *service) sweepLoop() {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stopCh:
			return
		}
	}
}

// sweep removes sessions idle for longer than the TTL.
func (s *service) sweep() int {
	cutoff := s.now().UTC().Add(-s.cfg.SessionTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, e := range s.sessions {
		if e.updatedAt.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		s.logger.Debug("swept idle verifier sessions", "count", removed)
	}
	return removed
}
