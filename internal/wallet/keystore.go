package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/pendergraft/verichain/internal/ledger/evm"
)

// Keystore signs with accounts from an encrypted go-ethereum keystore.
// An account is authorized once it has been unlocked.
type Keystore struct {
	ks         *keystore.KeyStore
	preferred  string
	passphrase PassphraseFunc

	mu       sync.Mutex
	unlocked map[common.Address]bool
}

// NewKeystore opens the keystore in dir. preferred selects the account to
// unlock on RequestAccounts; empty means the first account found.
func NewKeystore(dir, preferred string, passphrase PassphraseFunc) *Keystore {
	return &Keystore{
		ks:         keystore.NewKeyStore(dir, keystore.StandardScryptN, keystore.StandardScryptP),
		preferred:  preferred,
		passphrase: passphrase,
		unlocked:   make(map[common.Address]bool),
	}
}

// Accounts returns the unlocked accounts.
func (k *Keystore) Accounts(context.Context) ([]string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	var out []string
	for _, a := range k.ks.Accounts() {
		if k.unlocked[a.Address] {
			out = append(out, a.Address.Hex())
		}
	}
	return out, nil
}

// RequestAccounts unlocks the preferred account, prompting for its
// passphrase if it is still locked.
func (k *Keystore) RequestAccounts(ctx context.Context) ([]string, error) {
	acct, err := k.selectAccount()
	if err != nil {
		return nil, err
	}

	k.mu.Lock()
	already := k.unlocked[acct.Address]
	k.mu.Unlock()
	if already {
		return []string{acct.Address.Hex()}, nil
	}

	if k.passphrase == nil {
		return nil, fmt.Errorf("%w: no passphrase source", ErrDeclined)
	}
	pass, err := k.passphrase(ctx, acct.Address.Hex())
	if err != nil {
		return nil, err
	}
	if err := k.ks.Unlock(acct, pass); err != nil {
		if errors.Is(err, keystore.ErrDecrypt) {
			return nil, fmt.Errorf("%w: wrong passphrase", ErrDeclined)
		}
		return nil, fmt.Errorf("unlocking account: %w", err)
	}

	k.mu.Lock()
	k.unlocked[acct.Address] = true
	k.mu.Unlock()
	return []string{acct.Address.Hex()}, nil
}

// Transactor signs with an unlocked keystore account.
func (k *Keystore) Transactor(account string) (evm.TransactorFunc, error) {
	if !common.IsHexAddress(account) {
		return nil, ErrUnknownAccount
	}
	addr := common.HexToAddress(account)
	if !k.ks.HasAddress(addr) {
		return nil, ErrUnknownAccount
	}

	return func(ctx context.Context, chainID *big.Int) (*bind.TransactOpts, error) {
		k.mu.Lock()
		ok := k.unlocked[addr]
		k.mu.Unlock()
		if !ok {
			return nil, fmt.Errorf("%w: %v", ErrDeclined, keystore.ErrLocked)
		}
		return bind.NewKeyStoreTransactorWithChainID(k.ks, accounts.Account{Address: addr}, chainID)
	}, nil
}

// Lock relocks every account.
func (k *Keystore) Lock() {
	k.mu.Lock()
	defer k.mu.Unlock()
	for addr := range k.unlocked {
		_ = k.ks.Lock(addr)
	}
	k.unlocked = make(map[common.Address]bool)
}

func (k *Keystore) selectAccount() (accounts.Account, error) {
	all := k.ks.Accounts()
	if len(all) == 0 {
		return accounts.Account{}, fmt.Errorf("%w: keystore has no accounts", ErrNoWallet)
	}
	if k.preferred == "" {
		return all[0], nil
	}
	for _, a := range all {
		if SameAddress(a.Address.Hex(), k.preferred) {
			return a, nil
		}
	}
	return accounts.Account{}, fmt.Errorf("%w: %s", ErrUnknownAccount, k.preferred)
}

// Key signs with a raw private key held in memory.
type Key struct {
	key     *ecdsa.PrivateKey
	address string
}

// NewKey parses a hex-encoded secp256k1 private key.
func NewKey(hexKey string) (*Key, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if hexKey == "" {
		return nil, fmt.Errorf("key wallet requires a private key")
	}
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}
	return &Key{key: key, address: crypto.PubkeyToAddress(key.PublicKey).Hex()}, nil
}

// Accounts returns the key's address.
func (k *Key) Accounts(context.Context) ([]string, error) {
	return []string{k.address}, nil
}

// RequestAccounts returns the key's address.
func (k *Key) RequestAccounts(ctx context.Context) ([]string, error) {
	return k.Accounts(ctx)
}

// Transactor signs with the key.
func (k *Key) Transactor(account string) (evm.TransactorFunc, error) {
	if !SameAddress(account, k.address) {
		return nil, ErrUnknownAccount
	}
	return func(ctx context.Context, chainID *big.Int) (*bind.TransactOpts, error) {
		return bind.NewKeyedTransactorWithChainID(k.key, chainID)
	}, nil
}
