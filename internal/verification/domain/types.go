package domain

import (
	"fmt"
	"time"
)

// Outcome is the verifier's view of a document fingerprint.
type Outcome int

// Outcomes in lifecycle order.
const (
	Unchecked Outcome = iota
	Pending
	Confirmed
	Rejected
)

var outcomeNames = map[Outcome]string{
	Unchecked: "unchecked",
	Pending:   "pending",
	Confirmed: "confirmed",
	Rejected:  "rejected",
}

func (o Outcome) String() string {
	if s, ok := outcomeNames[o]; ok {
		return s
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// MarshalText implements encoding.TextMarshaler.
func (o Outcome) MarshalText() ([]byte, error) {
	s, ok := outcomeNames[o]
	if !ok {
		return nil, fmt.Errorf("unknown outcome %d", int(o))
	}
	return []byte(s), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *Outcome) UnmarshalText(b []byte) error {
	for k, v := range outcomeNames {
		if v == string(b) {
			*o = k
			return nil
		}
	}
	return fmt.Errorf("unknown outcome %q", string(b))
}

// Settled reports whether a lookup has completed.
func (o Outcome) Settled() bool {
	return o == Confirmed || o == Rejected
}

// OutcomeFor is the single place that turns an oracle answer into an
// outcome. A failed query is shown the same way as an absent document.
func OutcomeFor(found bool, err error) Outcome {
	if err != nil {
		return Rejected
	}
	if found {
		return Confirmed
	}
	return Rejected
}

// State is an immutable snapshot of a verifier session.
type State struct {
	Digest    string     `json:"digest,omitempty"`
	Size      int64      `json:"size,omitempty"`
	Outcome   Outcome    `json:"outcome"`
	Detail    string     `json:"detail,omitempty"`
	CheckedAt *time.Time `json:"checkedAt,omitempty"`
}

// CanVerify reports whether the verify action is enabled.
func (s State) CanVerify() bool {
	return s.Digest != "" && s.Outcome == Unchecked
}

// Ticket identifies one in-flight lookup. Results are applied only while
// the ticket still matches the session.
type Ticket struct {
	Digest string
	seq    uint64
}

// Result is the answer to a one-shot verification.
type Result struct {
	Digest  string  `json:"digest"`
	Outcome Outcome `json:"outcome"`
	// Recorded is set on a rejected result whose fingerprint was issued
	// once, so its credential has since been revoked.
	Recorded  bool      `json:"recorded"`
	Detail    string    `json:"detail,omitempty"`
	CheckedAt time.Time `json:"checkedAt"`
}

// SessionInfo is a registered session with its id.
type SessionInfo struct {
	ID        string    `json:"id"`
	State     State     `json:"state"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
