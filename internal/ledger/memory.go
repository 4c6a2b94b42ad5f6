package ledger

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
)

// Registry is an in-memory credential registry with the same access rules
// as the deployed contract. It backs local development when no RPC
// endpoint is configured.
type Registry struct {
	mu       sync.Mutex
	owner    string
	byOwner  map[string][]Credential
	recorded map[string]bool
	failures map[string]error
	seq      uint64
	block    uint64
	now      func() time.Time
}

// NewRegistry creates a registry owned by owner.
func NewRegistry(owner string) *Registry {
	return &Registry{
		owner:    strings.ToLower(owner),
		byOwner:  make(map[string][]Credential),
		recorded: make(map[string]bool),
		failures: make(map[string]error),
		now:      time.Now,
	}
}

// Fail makes the next call of method return err. Method names follow the
// contract: "owner", "verifyDocument", "issueCredential", "wait" and so on.
func (r *Registry) Fail(method string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[method] = err
}

// TransferOwnership hands the registry to newOwner, as the contract's
// transferOwnership does when called by the current owner.
func (r *Registry) TransferOwnership(newOwner string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.owner = strings.ToLower(newOwner)
}

// SetClock replaces the time source used for issue dates.
func (r *Registry) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

func (r *Registry) failure(method string) error {
	if err, ok := r.failures[method]; ok {
		delete(r.failures, method)
		return err
	}
	return nil
}

// As returns a handle that calls the registry from account.
func (r *Registry) As(account string) Ledger {
	return &memoryLedger{reg: r, from: strings.ToLower(account)}
}

type memoryLedger struct {
	reg  *Registry
	from string
}

func (m *memoryLedger) Owner(ctx context.Context) (string, error) {
	m.reg.mu.Lock()
	defer m.reg.mu.Unlock()
	if err := m.reg.failure("owner"); err != nil {
		return "", err
	}
	return m.reg.owner, nil
}

func (m *memoryLedger) VerifyDocument(ctx context.Context, documentHash string) (bool, error) {
	m.reg.mu.Lock()
	defer m.reg.mu.Unlock()
	if err := m.reg.failure("verifyDocument"); err != nil {
		return false, err
	}
	for _, creds := range m.reg.byOwner {
		for _, c := range creds {
			if c.DocumentHash == documentHash && c.Active {
				return true, nil
			}
		}
	}
	return false, nil
}

func (m *memoryLedger) IsHashVerified(ctx context.Context, documentHash string) (bool, error) {
	m.reg.mu.Lock()
	defer m.reg.mu.Unlock()
	if err := m.reg.failure("isHashVerified"); err != nil {
		return false, err
	}
	return m.reg.recorded[documentHash], nil
}

func (m *memoryLedger) MyCredentials(ctx context.Context) ([]Credential, error) {
	return m.list("getMyCredentials", m.from)
}

func (m *memoryLedger) CredentialsForStudent(ctx context.Context, student string) ([]Credential, error) {
	return m.list("getCredentialsForStudent", strings.ToLower(student))
}

func (m *memoryLedger) list(method, student string) ([]Credential, error) {
	m.reg.mu.Lock()
	defer m.reg.mu.Unlock()
	if err := m.reg.failure(method); err != nil {
		return nil, err
	}
	return append([]Credential(nil), m.reg.byOwner[student]...), nil
}

func (m *memoryLedger) IssueCredential(ctx context.Context, student, documentHash string, credType CredentialType, metadataCID string) (Transaction, error) {
	m.reg.mu.Lock()
	defer m.reg.mu.Unlock()
	if err := m.reg.failure("issueCredential"); err != nil {
		return nil, err
	}
	if m.from == "" {
		return nil, ErrNoSigner
	}
	if m.from != m.reg.owner {
		return nil, fmt.Errorf("issueCredential: %w", ErrUnauthorized)
	}

	student = strings.ToLower(student)
	m.reg.byOwner[student] = append(m.reg.byOwner[student], Credential{
		DocumentHash:   documentHash,
		CredentialType: credType,
		MetadataCID:    metadataCID,
		IssueDate:      m.reg.now().UTC().Truncate(time.Second),
		Active:         true,
	})
	m.reg.recorded[documentHash] = true
	return m.reg.newTx("issueCredential"), nil
}

func (m *memoryLedger) RevokeCredential(ctx context.Context, student, documentHash string) (Transaction, error) {
	m.reg.mu.Lock()
	defer m.reg.mu.Unlock()
	if err := m.reg.failure("revokeCredential"); err != nil {
		return nil, err
	}
	if m.from == "" {
		return nil, ErrNoSigner
	}
	if m.from != m.reg.owner {
		return nil, fmt.Errorf("revokeCredential: %w", ErrUnauthorized)
	}

	creds := m.reg.byOwner[strings.ToLower(student)]
	for i := range creds {
		if creds[i].DocumentHash == documentHash && creds[i].Active {
			creds[i].Active = false
			return m.reg.newTx("revokeCredential"), nil
		}
	}
	return nil, fmt.Errorf("revokeCredential: %w: no active credential", ErrReverted)
}

// newTx must be called with the registry lock held.
func (r *Registry) newTx(method string) Transaction {
	r.seq++
	r.block++
	hash := crypto.Keccak256Hash([]byte(fmt.Sprintf("%s/%d", method, r.seq))).Hex()
	return &memoryTx{reg: r, hash: hash, block: r.block}
}

type memoryTx struct {
	reg   *Registry
	hash  string
	block uint64
}

func (t *memoryTx) Hash() string {
	return t.hash
}

func (t *memoryTx) Wait(ctx context.Context) (*Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.reg.mu.Lock()
	err := t.reg.failure("wait")
	t.reg.mu.Unlock()

	r := &Receipt{TxHash: t.hash, BlockNumber: t.block, GasUsed: 21000, Success: err == nil}
	if err != nil {
		return r, err
	}
	return r, nil
}
