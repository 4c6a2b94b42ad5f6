// Package evm binds the credential registry contract over Ethereum JSON-RPC.
package evm

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/pendergraft/verichain/internal/ledger"
	"github.com/pendergraft/verichain/internal/observability/metrics"
)

// DefaultContractAddress is the deployed registry used when none is configured.
const DefaultContractAddress = "0x05ea136E2402FF0db77d24d0D07f60a6C0AECc94"

//go:embed registry.abi.json
var registryABI string

// Backend is the chain connection a Contract needs: calls, transactions,
// receipts and the chain id for signing.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
	ChainID(ctx context.Context) (*big.Int, error)
}

// TransactorFunc returns signing options for the bound account. It may
// prompt for a passphrase and is only invoked for state-changing calls.
type TransactorFunc func(ctx context.Context, chainID *big.Int) (*bind.TransactOpts, error)

// credentialRecord mirrors the contract's Credential tuple.
type credentialRecord struct {
	DocumentHash   string
	CredentialType string
	MetadataCid    string
	IssueDate      *big.Int
	Active         bool
}

// Contract is a ledger.Ledger backed by a deployed registry contract.
type Contract struct {
	address    common.Address
	abi        abi.ABI
	bound      *bind.BoundContract
	backend    Backend
	from       common.Address
	transactor TransactorFunc
	chainID    *big.Int
	logger     *slog.Logger
}

// Options configures a Contract.
type Options struct {
	// From is the account used for read calls that depend on msg.sender.
	From string
	// Transactor signs state-changing calls. Nil means read-only.
	Transactor TransactorFunc
	// ChainID skips the chain id lookup when set.
	ChainID *big.Int
	Logger  *slog.Logger
}

// ParseABI returns the embedded registry ABI.
func ParseABI() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(registryABI))
}

// New binds the registry at address on backend.
func New(ctx context.Context, backend Backend, address string, opts Options) (*Contract, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("invalid contract address: %s", address)
	}
	parsed, err := ParseABI()
	if err != nil {
		return nil, fmt.Errorf("parsing registry ABI: %w", err)
	}

	chainID := opts.ChainID
	if chainID == nil {
		chainID, err = backend.ChainID(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: reading chain id: %v", ledger.ErrUnavailable, err)
		}
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	addr := common.HexToAddress(address)
	c := &Contract{
		address:    addr,
		abi:        parsed,
		bound:      bind.NewBoundContract(addr, parsed, backend, backend, backend),
		backend:    backend,
		transactor: opts.Transactor,
		chainID:    chainID,
		logger:     logger,
	}
	if opts.From != "" {
		c.from = common.HexToAddress(opts.From)
	}
	return c, nil
}

// Address returns the contract address.
func (c *Contract) Address() string {
	return c.address.Hex()
}

// ChainID returns the chain id the contract is bound on.
func (c *Contract) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

// Owner returns the contract owner address.
func (c *Contract) Owner(ctx context.Context) (string, error) {
	out, err := c.call(ctx, "owner")
	if err != nil {
		return "", err
	}
	owner := *abi.ConvertType(out[0], new(common.Address)).(*common.Address)
	return owner.Hex(), nil
}

// VerifyDocument reports whether an active credential carries documentHash.
func (c *Contract) VerifyDocument(ctx context.Context, documentHash string) (bool, error) {
	return c.callBool(ctx, "verifyDocument", documentHash)
}

// IsHashVerified reports whether documentHash was ever recorded.
func (c *Contract) IsHashVerified(ctx context.Context, documentHash string) (bool, error) {
	return c.callBool(ctx, "isHashVerified", documentHash)
}

// MyCredentials lists the credentials held by the bound account.
func (c *Contract) MyCredentials(ctx context.Context) ([]ledger.Credential, error) {
	out, err := c.call(ctx, "getMyCredentials")
	if err != nil {
		return nil, err
	}
	return toCredentials(out), nil
}

// CredentialsForStudent lists the credentials held by student.
func (c *Contract) CredentialsForStudent(ctx context.Context, student string) ([]ledger.Credential, error) {
	if !common.IsHexAddress(student) {
		return nil, fmt.Errorf("invalid student address: %s", student)
	}
	out, err := c.call(ctx, "getCredentialsForStudent", common.HexToAddress(student))
	if err != nil {
		return nil, err
	}
	return toCredentials(out), nil
}

// IssueCredential submits an issueCredential transaction.
func (c *Contract) IssueCredential(ctx context.Context, student, documentHash string, credType ledger.CredentialType, metadataCID string) (ledger.Transaction, error) {
	if !common.IsHexAddress(student) {
		return nil, fmt.Errorf("invalid student address: %s", student)
	}
	return c.transact(ctx, "issueCredential", common.HexToAddress(student), documentHash, string(credType), metadataCID)
}

// RevokeCredential submits a revokeCredential transaction.
func (c *Contract) RevokeCredential(ctx context.Context, student, documentHash string) (ledger.Transaction, error) {
	if !common.IsHexAddress(student) {
		return nil, fmt.Errorf("invalid student address: %s", student)
	}
	return c.transact(ctx, "revokeCredential", common.HexToAddress(student), documentHash)
}

func (c *Contract) callBool(ctx context.Context, method string, args ...any) (bool, error) {
	out, err := c.call(ctx, method, args...)
	if err != nil {
		return false, err
	}
	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}

func (c *Contract) call(ctx context.Context, method string, args ...any) ([]any, error) {
	start := time.Now()
	defer func() { metrics.RecordLedgerCall(method, time.Since(start)) }()

	var out []any
	opts := &bind.CallOpts{Context: ctx, From: c.from}
	if err := c.bound.Call(opts, &out, method, args...); err != nil {
		return nil, c.classify(method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s returned no values", ledger.ErrUnavailable, method)
	}
	return out, nil
}

func (c *Contract) transact(ctx context.Context, method string, args ...any) (ledger.Transaction, error) {
	if c.transactor == nil {
		return nil, ledger.ErrNoSigner
	}
	opts, err := c.transactor(ctx, c.chainID)
	if err != nil {
		return nil, err
	}
	opts.Context = ctx

	start := time.Now()
	tx, err := c.bound.Transact(opts, method, args...)
	metrics.RecordLedgerCall(method, time.Since(start))
	if err != nil {
		return nil, c.classify(method, err)
	}
	c.logger.Debug("transaction submitted", "method", method, "tx", tx.Hash().Hex())
	return &transaction{tx: tx, backend: c.backend}, nil
}

// classify maps RPC failures onto ledger errors. Custom contract errors
// arrive as revert data on errors implementing rpc.DataError.
func (c *Contract) classify(method string, err error) error {
	var de rpc.DataError
	if errors.As(err, &de) {
		if name, ok := c.revertName(de.ErrorData()); ok {
			if name == "OwnableUnauthorizedAccount" {
				return fmt.Errorf("%s: %w", method, ledger.ErrUnauthorized)
			}
			return fmt.Errorf("%s: %w: %s", method, ledger.ErrReverted, name)
		}
	}
	if strings.Contains(err.Error(), "execution reverted") {
		return fmt.Errorf("%s: %w: %v", method, ledger.ErrReverted, err)
	}
	return fmt.Errorf("%s: %w: %w", method, ledger.ErrUnavailable, err)
}

func (c *Contract) revertName(data any) (string, bool) {
	s, ok := data.(string)
	if !ok {
		return "", false
	}
	raw, err := hexutil.Decode(s)
	if err != nil || len(raw) < 4 {
		return "", false
	}
	for name, e := range c.abi.Errors {
		if bytes.Equal(e.ID[:4], raw[:4]) {
			return name, true
		}
	}
	if reason, err := abi.UnpackRevert(raw); err == nil {
		return reason, true
	}
	return "", false
}

func toCredentials(out []any) []ledger.Credential {
	records := *abi.ConvertType(out[0], new([]credentialRecord)).(*[]credentialRecord)
	creds := make([]ledger.Credential, len(records))
	for i, r := range records {
		var issued time.Time
		if r.IssueDate != nil {
			issued = time.Unix(r.IssueDate.Int64(), 0).UTC()
		}
		creds[i] = ledger.Credential{
			DocumentHash:   r.DocumentHash,
			CredentialType: ledger.CredentialType(r.CredentialType),
			MetadataCID:    r.MetadataCid,
			IssueDate:      issued,
			Active:         r.Active,
		}
	}
	return creds
}

type transaction struct {
	tx      *types.Transaction
	backend bind.DeployBackend
}

func (t *transaction) Hash() string {
	return t.tx.Hash().Hex()
}

func (t *transaction) Wait(ctx context.Context) (*ledger.Receipt, error) {
	receipt, err := bind.WaitMined(ctx, t.backend, t.tx)
	if err != nil {
		return nil, fmt.Errorf("waiting for %s: %w", t.Hash(), err)
	}
	r := &ledger.Receipt{
		TxHash:  receipt.TxHash.Hex(),
		GasUsed: receipt.GasUsed,
		Success: receipt.Status == types.ReceiptStatusSuccessful,
	}
	if receipt.BlockNumber != nil {
		r.BlockNumber = receipt.BlockNumber.Uint64()
	}
	if !r.Success {
		return r, ledger.ErrReverted
	}
	return r, nil
}
