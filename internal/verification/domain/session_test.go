package domain

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pendergraft/verichain/internal/fingerprint"
)

func TestOutcomeFor(t *testing.T) {
	tests := []struct {
		name  string
		found bool
		err   error
		want  Outcome
	}{
		{"found", true, nil, Confirmed},
		{"absent", false, nil, Rejected},
		{"query failed", false, errors.New("rpc down"), Rejected},
		{"error wins over found", true, errors.New("malformed"), Rejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, OutcomeFor(tt.found, tt.err))
		})
	}
}

func TestOutcome_Text(t *testing.T) {
	b, err := json.Marshal(State{Outcome: Confirmed})
	require.NoError(t, err)
	assert.JSONEq(t, `{"outcome":"confirmed"}`, string(b))

	var st State
	require.NoError(t, json.Unmarshal([]byte(`{"outcome":"pending"}`), &st))
	assert.Equal(t, Pending, st.Outcome)

	assert.Error(t, json.Unmarshal([]byte(`{"outcome":"maybe"}`), &st))
	assert.Equal(t, "outcome(9)", Outcome(9).String())
}

func TestSession_BeginRequiresDigest(t *testing.T) {
	s := NewSession()
	_, err := s.Begin()
	assert.ErrorIs(t, err, ErrNoDigest)
	assert.Equal(t, Unchecked, s.Snapshot().Outcome)
	assert.False(t, s.Snapshot().CanVerify())
}

func TestSession_LifeCycle(t *testing.T) {
	s := NewSession()
	d := fingerprint.Compute([]byte("diploma"))
	s.SelectDigest(d)

	st := s.Snapshot()
	assert.Equal(t, d.Encoded, st.Digest)
	assert.Equal(t, Unchecked, st.Outcome)
	assert.True(t, st.CanVerify())

	ticket, err := s.Begin()
	require.NoError(t, err)
	assert.Equal(t, d.Encoded, ticket.Digest)
	assert.Equal(t, Pending, s.Snapshot().Outcome)
	assert.False(t, s.Snapshot().CanVerify())

	_, err = s.Begin()
	assert.ErrorIs(t, err, ErrLookupPending)

	assert.True(t, s.Resolve(ticket, true, nil))
	st = s.Snapshot()
	assert.Equal(t, Confirmed, st.Outcome)
	assert.NotNil(t, st.CheckedAt)

	// Settled outcomes only leave through a new selection.
	_, err = s.Begin()
	assert.ErrorIs(t, err, ErrAlreadyChecked)
	assert.False(t, s.Resolve(ticket, false, nil))
	assert.Equal(t, Confirmed, s.Snapshot().Outcome)

	s.SelectDigest(d)
	assert.Equal(t, Unchecked, s.Snapshot().Outcome)
	assert.Nil(t, s.Snapshot().CheckedAt)
}

func TestSession_FailureRendersRejected(t *testing.T) {
	s := NewSession()
	s.SelectDigest(fingerprint.Compute([]byte("transcript")))
	ticket, err := s.Begin()
	require.NoError(t, err)

	assert.True(t, s.Resolve(ticket, false, errors.New("rpc timeout")))
	st := s.Snapshot()
	assert.Equal(t, Rejected, st.Outcome)
	assert.Equal(t, "rpc timeout", st.Detail)
}

func TestSession_StaleResultDiscarded(t *testing.T) {
	s := NewSession()
	d1 := fingerprint.Compute([]byte("first"))
	d2 := fingerprint.Compute([]byte("second"))

	s.SelectDigest(d1)
	t1, err := s.Begin()
	require.NoError(t, err)

	s.SelectDigest(d2)
	assert.Equal(t, Unchecked, s.Snapshot().Outcome, "a new selection resets a pending lookup")

	t2, err := s.Begin()
	require.NoError(t, err)

	assert.True(t, s.Resolve(t2, true, nil))
	assert.False(t, s.Resolve(t1, false, nil))

	st := s.Snapshot()
	assert.Equal(t, d2.Encoded, st.Digest)
	assert.Equal(t, Confirmed, st.Outcome)
}

func TestSession_ReselectSameDigestInvalidatesTicket(t *testing.T) {
	s := NewSession()
	d := fingerprint.Compute([]byte("same"))

	s.SelectDigest(d)
	t1, err := s.Begin()
	require.NoError(t, err)

	s.SelectDigest(d)
	t2, err := s.Begin()
	require.NoError(t, err)

	assert.False(t, s.Resolve(t1, false, nil), "ticket from the earlier selection is stale")
	assert.Equal(t, Pending, s.Snapshot().Outcome)
	assert.True(t, s.Resolve(t2, true, nil))
	assert.Equal(t, Confirmed, s.Snapshot().Outcome)
}

func TestSession_Clear(t *testing.T) {
	s := NewSession()
	s.SelectDigest(fingerprint.Compute([]byte("x")))
	ticket, err := s.Begin()
	require.NoError(t, err)

	s.Clear()
	st := s.Snapshot()
	assert.Empty(t, st.Digest)
	assert.Equal(t, Unchecked, st.Outcome)
	assert.False(t, s.Resolve(ticket, true, nil))
}
