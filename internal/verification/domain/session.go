package domain

import (
	"sync"
	"time"

	"github.com/pendergraft/verichain/internal/fingerprint"
)

// Session is one verifier form: a selected document digest and the outcome
// of looking it up. It is safe for concurrent use.
//
// Transitions:
//
//	SelectDigest/Clear  any       -> Unchecked
//	Begin               Unchecked -> Pending
//	Resolve             Pending   -> Confirmed | Rejected
//
// Each selection bumps a sequence number, so a lookup started for an
// earlier selection can never overwrite the current outcome.
type Session struct {
	mu        sync.Mutex
	digest    fingerprint.Digest
	outcome   Outcome
	detail    string
	checkedAt time.Time
	seq       uint64
	now       func() time.Time
}

// NewSession returns an empty session.
func NewSession() *Session {
	return &Session{now: time.Now}
}

// SelectDigest replaces the selected document and resets the outcome.
func (s *Session) SelectDigest(d fingerprint.Digest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
	s.digest = d
}

// Clear drops the selected document.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
	s.digest = fingerprint.Digest{}
}

func (s *Session) reset() {
	s.seq++
	s.outcome = Unchecked
	s.detail = ""
	s.checkedAt = time.Time{}
}

// Begin starts a lookup for the selected digest.
func (s *Session) Begin() (Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.digest.IsZero():
		return Ticket{}, ErrNoDigest
	case s.outcome == Pending:
		return Ticket{}, ErrLookupPending
	case s.outcome.Settled():
		return Ticket{}, ErrAlreadyChecked
	}

	s.seq++
	s.outcome = Pending
	return Ticket{Digest: s.digest.Encoded, seq: s.seq}, nil
}

// Resolve applies a lookup result. It returns false, leaving the session
// untouched, when the ticket is stale.
func (s *Session) Resolve(t Ticket, found bool, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.outcome != Pending || t.seq != s.seq || t.Digest != s.digest.Encoded {
		return false
	}
	s.outcome = OutcomeFor(found, err)
	if err != nil {
		s.detail = err.Error()
	}
	s.checkedAt = s.now()
	return true
}

// Snapshot returns the current state.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{
		Digest:  s.digest.Encoded,
		Size:    s.digest.Size,
		Outcome: s.outcome,
		Detail:  s.detail,
	}
	if !s.checkedAt.IsZero() {
		at := s.checkedAt
		st.CheckedAt = &at
	}
	return st
}
