package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pendergraft/verichain/internal/auth"
	"github.com/pendergraft/verichain/internal/fingerprint"
	"github.com/pendergraft/verichain/internal/ledger"
	"github.com/pendergraft/verichain/internal/observability/metrics"
	"github.com/pendergraft/verichain/internal/pinning"
	"github.com/pendergraft/verichain/internal/session"
	"github.com/pendergraft/verichain/internal/storage"
	"github.com/pendergraft/verichain/internal/validation"
)

// Common errors returned by the issuance service.
var (
	ErrValidation            = errors.New("validation failed")
	ErrInvalidAddress        = errors.New("invalid student address")
	ErrInvalidCredentialType = errors.New("invalid credential type")
	ErrInvalidFingerprint    = errors.New("invalid document fingerprint")
	ErrPinning               = errors.New("pinning student profile failed")
	ErrPending               = errors.New("transaction not yet confirmed")
)

// Session is the part of the application session issuance needs.
type Session interface {
	Require(view session.View) error
	Account() string
	Ledger() ledger.Ledger
}

// Pinner stores JSON documents in the content-addressed store.
type Pinner interface {
	PinJSON(ctx context.Context, content any, name string) (string, error)
}

// Store records submitted transactions.
type Store interface {
	RecordTransaction(ctx context.Context, tx *storage.Transaction) error
	UpdateTransactionStatus(ctx context.Context, id string, update storage.StatusUpdate) error
	ListTransactions(ctx context.Context, filter storage.TransactionFilter, pagination storage.PaginationParams) (*storage.PaginatedResult[storage.Transaction], error)
}

// Config tunes the service.
type Config struct {
	CredentialTypes []string
	// ConfirmTimeout bounds the wait for a transaction to be mined.
	ConfirmTimeout time.Duration
}

// Service defines the issuance service interface.
type Service interface {
	Issue(ctx context.Context, req IssueRequest) (*TxResult, error)
	Revoke(ctx context.Context, req RevokeRequest) (*TxResult, error)
	History(ctx context.Context, filter HistoryFilter, pagination PaginationParams) (*HistoryResult, error)
	StudentCredentials(ctx context.Context, student string) ([]ledger.Credential, error)
	CredentialTypes() []string
}

type service struct {
	session Session
	pinner  Pinner
	store   Store
	types   []string
	timeout time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

// NewService creates a new issuance service.
func NewService(sess Session, pinner Pinner, store Store, cfg Config, logger *slog.Logger) *service {
	types := cfg.CredentialTypes
	if len(types) == 0 {
		for _, t := range ledger.DefaultCredentialTypes {
			types = append(types, string(t))
		}
	}
	timeout := cfg.ConfirmTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &service{
		session: sess,
		pinner:  pinner,
		store:   store,
		types:   types,
		timeout: timeout,
		logger:  logger,
		now:     time.Now,
	}
}

// CredentialTypes returns the types the issuance form offers.
func (s *service) CredentialTypes() []string {
	return append([]string(nil), s.types...)
}

// Issue assembles and submits one issueCredential call, then waits for it
// to be mined. Once a transaction has been submitted the result is returned
// even on error, so callers can surface the transaction hash.
func (s *service) Issue(ctx context.Context, req IssueRequest) (*TxResult, error) {
	student := strings.TrimSpace(req.Student)
	credType := ledger.CredentialType(strings.TrimSpace(string(req.CredentialType)))

	if student == "" || credType == "" {
		return nil, fmt.Errorf("%w: student address and credential type are required", ErrValidation)
	}
	if credType == ledger.StudentID && strings.TrimSpace(req.Name) == "" {
		return nil, fmt.Errorf("%w: student name is required for %s", ErrValidation, credType)
	}
	if credType != ledger.StudentID && strings.TrimSpace(req.DocumentHash) == "" {
		return nil, fmt.Errorf("%w: document hash is required for %s", ErrValidation, credType)
	}
	if err := validation.ValidateAddress(student); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if err := validation.ValidateCredentialType(string(credType), s.types); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredentialType, err)
	}
	if err := s.session.Require(session.ViewAdmin); err != nil {
		return nil, err
	}

	var docHash, metadataCID string
	if credType == ledger.StudentID {
		if err := validation.ValidateStudentName(req.Name); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		profile := pinning.NewStudentProfile(strings.TrimSpace(req.Name), student, s.now())
		cid, err := s.pinner.PinJSON(ctx, profile, fmt.Sprintf("%s_%s.json", credType, student))
		if err != nil {
			metrics.CredentialIssue(string(credType), StatusFailed)
			return nil, fmt.Errorf("%w: %w", ErrPinning, err)
		}
		docHash = fingerprint.ProfileFingerprint(cid)
		metadataCID = cid
	} else {
		normalized, err := fingerprint.Normalize(req.DocumentHash)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFingerprint, err)
		}
		docHash = normalized
		metadataCID = ledger.NoMetadata
	}

	record := &storage.Transaction{
		Kind:           storage.KindIssue,
		Issuer:         s.session.Account(),
		Student:        student,
		DocumentHash:   docHash,
		CredentialType: string(credType),
		MetadataCID:    metadataCID,
		APIKeyID:       auth.GetKeyIDFromContext(ctx),
	}
	tx, err := s.session.Ledger().IssueCredential(ctx, student, docHash, credType, metadataCID)
	result, err := s.settle(ctx, record, tx, err)
	metrics.CredentialIssue(string(credType), resultStatus(result))
	return result, err
}

// Revoke submits revokeCredential for an issued credential.
func (s *service) Revoke(ctx context.Context, req RevokeRequest) (*TxResult, error) {
	student := strings.TrimSpace(req.Student)
	if student == "" || strings.TrimSpace(req.DocumentHash) == "" {
		return nil, fmt.Errorf("%w: student address and document hash are required", ErrValidation)
	}
	if err := validation.ValidateAddress(student); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	docHash, err := fingerprint.Normalize(req.DocumentHash)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFingerprint, err)
	}
	if err := s.session.Require(session.ViewAdmin); err != nil {
		return nil, err
	}

	record := &storage.Transaction{
		Kind:         storage.KindRevoke,
		Issuer:       s.session.Account(),
		Student:      student,
		DocumentHash: docHash,
		APIKeyID:     auth.GetKeyIDFromContext(ctx),
	}
	tx, err := s.session.Ledger().RevokeCredential(ctx, student, docHash)
	result, err := s.settle(ctx, record, tx, err)
	metrics.CredentialRevoke(resultStatus(result))
	return result, err
}

// settle records the submission and waits for it to be mined. A failed
// submission is recorded too, without a hash.
func (s *service) settle(ctx context.Context, record *storage.Transaction, tx ledger.Transaction, submitErr error) (*TxResult, error) {
	if submitErr != nil {
		record.Status = storage.StatusFailed
		record.Error = submitErr.Error()
		s.record(ctx, record)
		return nil, fmt.Errorf("submitting %s: %w", record.Kind, submitErr)
	}

	record.Status = storage.StatusPending
	record.TxHash = tx.Hash()
	s.record(ctx, record)

	waitCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	receipt, err := tx.Wait(waitCtx)

	update := storage.StatusUpdate{Status: storage.StatusConfirmed}
	switch {
	case err == nil:
		update.BlockNumber = receipt.BlockNumber
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		record.Status = storage.StatusPending
		return toResult(record), fmt.Errorf("%w: %s", ErrPending, record.TxHash)
	default:
		update.Status = storage.StatusFailed
		update.Error = err.Error()
		if receipt != nil {
			update.BlockNumber = receipt.BlockNumber
		}
	}

	if record.ID != "" {
		// Use a fresh context: the outcome must land even if the caller left.
		if uerr := s.store.UpdateTransactionStatus(context.WithoutCancel(ctx), record.ID, update); uerr != nil {
			s.logger.Warn("recording transaction outcome", "tx", record.TxHash, "error", uerr)
		}
	}
	record.Status = update.Status
	record.BlockNumber = update.BlockNumber
	record.Error = update.Error

	result := toResult(record)
	if err != nil {
		return result, fmt.Errorf("%s %s: %w", record.Kind, record.TxHash, err)
	}
	return result, nil
}

// record writes the history row. History is best effort: the transaction is
// already on its way and a storage failure must not hide that.
func (s *service) record(ctx context.Context, record *storage.Transaction) {
	if err := s.store.RecordTransaction(ctx, record); err != nil {
		s.logger.Warn("recording transaction", "kind", record.Kind, "tx", record.TxHash, "error", err)
		record.ID = ""
	}
}

// History lists recorded transactions, newest first.
func (s *service) History(ctx context.Context, filter HistoryFilter, pagination PaginationParams) (*HistoryResult, error) {
	if err := s.session.Require(session.ViewAdmin); err != nil {
		return nil, err
	}
	if filter.Student != "" {
		if err := validation.ValidateAddress(filter.Student); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
		}
	}

	page, err := s.store.ListTransactions(ctx, storage.TransactionFilter{
		Kind:    filter.Kind,
		Status:  filter.Status,
		Student: filter.Student,
	}, storage.PaginationParams{
		Limit:  validation.ClampLimit(pagination.Limit, 20, 100),
		Cursor: pagination.Cursor,
	})
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}

	entries := make([]HistoryEntry, len(page.Data))
	for i := range page.Data {
		entries[i] = toHistoryEntry(&page.Data[i])
	}
	return &HistoryResult{
		Entries:    entries,
		HasMore:    page.HasMore,
		NextCursor: page.NextCursor,
	}, nil
}

// StudentCredentials returns every credential recorded for student,
// revoked ones included.
func (s *service) StudentCredentials(ctx context.Context, student string) ([]ledger.Credential, error) {
	if err := validation.ValidateAddress(student); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if err := s.session.Require(session.ViewAdmin); err != nil {
		return nil, err
	}
	creds, err := s.session.Ledger().CredentialsForStudent(ctx, student)
	if err != nil {
		return nil, fmt.Errorf("reading credentials: %w", err)
	}
	return creds, nil
}

func resultStatus(r *TxResult) string {
	if r == nil {
		return StatusFailed
	}
	return r.Status
}

func toResult(t *storage.Transaction) *TxResult {
	return &TxResult{
		ID:             t.ID,
		Kind:           t.Kind,
		Status:         t.Status,
		TxHash:         t.TxHash,
		BlockNumber:    t.BlockNumber,
		Student:        strings.ToLower(t.Student),
		DocumentHash:   t.DocumentHash,
		CredentialType: ledger.CredentialType(t.CredentialType),
		MetadataCID:    t.MetadataCID,
	}
}

func toHistoryEntry(t *storage.Transaction) HistoryEntry {
	created, _ := time.Parse(time.RFC3339, t.CreatedAt)
	updated, _ := time.Parse(time.RFC3339, t.UpdatedAt)
	return HistoryEntry{
		TxResult:  *toResult(t),
		Issuer:    t.Issuer,
		Error:     t.Error,
		CreatedAt: created,
		UpdatedAt: updated,
	}
}
