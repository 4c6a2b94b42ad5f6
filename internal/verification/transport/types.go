package transport

import (
	"time"

	"github.com/pendergraft/verichain/internal/verification/domain"
)

// Outcome messages shown with a settled result.
const (
	MessageConfirmed = "Document is Authentic: this document's hash was found on the blockchain and is verified."
	MessageRejected  = "Document NOT Recognized: this document's hash was not found on the blockchain, or the document has been altered."
	MessageRevoked   = "Document NOT Recognized: this document was issued on the blockchain but its credential has been revoked."
	MessagePending   = "Verifying..."
)

// VerifyRequest is the body of POST /verify and PUT /verifier/sessions/{id}/digest.
type VerifyRequest struct {
	DocumentHash string `json:"documentHash"`
}

// VerifyResponse is a one-shot verification result.
type VerifyResponse struct {
	Digest    string         `json:"digest"`
	Outcome   domain.Outcome `json:"outcome"`
	Verified  bool           `json:"verified"`
	Recorded  bool           `json:"recorded"`
	Message   string         `json:"message"`
	Detail    string         `json:"detail,omitempty"`
	CheckedAt time.Time      `json:"checkedAt"`
}

func toVerifyResponse(r *domain.Result) VerifyResponse {
	msg := messageFor(r.Outcome)
	if r.Outcome == domain.Rejected && r.Recorded {
		msg = MessageRevoked
	}
	return VerifyResponse{
		Digest:    r.Digest,
		Outcome:   r.Outcome,
		Verified:  r.Outcome == domain.Confirmed,
		Recorded:  r.Recorded,
		Message:   msg,
		Detail:    r.Detail,
		CheckedAt: r.CheckedAt,
	}
}

// SessionResponse is a verifier session snapshot.
type SessionResponse struct {
	domain.SessionInfo
	CanVerify bool   `json:"canVerify"`
	Message   string `json:"message,omitempty"`
}

func toSessionResponse(info *domain.SessionInfo) SessionResponse {
	return SessionResponse{
		SessionInfo: *info,
		CanVerify:   info.State.CanVerify(),
		Message:     messageFor(info.State.Outcome),
	}
}

func messageFor(o domain.Outcome) string {
	switch o {
	case domain.Confirmed:
		return MessageConfirmed
	case domain.Rejected:
		return MessageRejected
	case domain.Pending:
		return MessagePending
	}
	return ""
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
