// Package wallet provides the account sources that authorize ledger calls.
//
// A Provider separates the two ways an application learns about accounts:
// Accounts reports what is already authorized and never prompts, while
// RequestAccounts may ask the user (for a keystore passphrase, say) and can
// be declined.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/pendergraft/verichain/internal/ledger/evm"
)

// Errors returned by providers.
var (
	ErrNoWallet       = errors.New("no wallet available")
	ErrDeclined       = errors.New("request declined")
	ErrReadOnly       = errors.New("wallet cannot sign transactions")
	ErrUnknownAccount = errors.New("account not managed by wallet")
)

// Provider is a source of accounts and signatures.
type Provider interface {
	// Accounts returns the already-authorized accounts without prompting.
	Accounts(ctx context.Context) ([]string, error)
	// RequestAccounts asks for authorization and returns the granted accounts.
	RequestAccounts(ctx context.Context) ([]string, error)
	// Transactor returns a signer for state-changing calls from account.
	Transactor(account string) (evm.TransactorFunc, error)
}

// Provider types accepted by New.
const (
	TypeKeystore  = "keystore"
	TypeKey       = "key"
	TypeWatchOnly = "address"
	TypeNone      = "none"
)

// Options selects and configures a provider.
type Options struct {
	Type        string
	KeystoreDir string
	Account     string
	PrivateKey  string
	Address     string
	Passphrase  PassphraseFunc
}

// New builds the provider named by opts.Type.
func New(opts Options) (Provider, error) {
	switch opts.Type {
	case TypeKeystore:
		if opts.KeystoreDir == "" {
			return nil, fmt.Errorf("keystore wallet requires a keystore directory")
		}
		return NewKeystore(opts.KeystoreDir, opts.Account, opts.Passphrase), nil
	case TypeKey:
		return NewKey(opts.PrivateKey)
	case TypeWatchOnly:
		return NewWatchOnly(opts.Address)
	case TypeNone, "":
		return None{}, nil
	default:
		return nil, fmt.Errorf("unknown wallet type: %s", opts.Type)
	}
}

// Normalize returns the canonical lowercase form of an address. All
// address comparisons go through it.
func Normalize(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// SameAddress reports whether a and b name the same account.
func SameAddress(a, b string) bool {
	return a != "" && Normalize(a) == Normalize(b)
}

// None is the absent wallet.
type None struct{}

// Accounts always fails with ErrNoWallet.
func (None) Accounts(context.Context) ([]string, error) { return nil, ErrNoWallet }

// RequestAccounts always fails with ErrNoWallet.
func (None) RequestAccounts(context.Context) ([]string, error) { return nil, ErrNoWallet }

// Transactor always fails with ErrNoWallet.
func (None) Transactor(string) (evm.TransactorFunc, error) { return nil, ErrNoWallet }

// WatchOnly exposes a public address for read-only sessions.
type WatchOnly struct {
	address string
}

// NewWatchOnly returns a provider for address.
func NewWatchOnly(address string) (*WatchOnly, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("invalid address: %s", address)
	}
	return &WatchOnly{address: common.HexToAddress(address).Hex()}, nil
}

// Accounts returns the watched address.
func (w *WatchOnly) Accounts(context.Context) ([]string, error) {
	return []string{w.address}, nil
}

// RequestAccounts returns the watched address.
func (w *WatchOnly) RequestAccounts(ctx context.Context) ([]string, error) {
	return w.Accounts(ctx)
}

// Transactor always fails with ErrReadOnly.
func (w *WatchOnly) Transactor(string) (evm.TransactorFunc, error) {
	return nil, ErrReadOnly
}
