package server

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pendergraft/verichain/internal/config"
	"github.com/pendergraft/verichain/internal/ledger"
	"github.com/pendergraft/verichain/internal/ledger/evm"
	"github.com/pendergraft/verichain/internal/session"
	"github.com/pendergraft/verichain/internal/wallet"
)

// Binder produces contract handles for the session and owns the backend
// they share.
type Binder struct {
	Bind  session.BindFunc
	close func()
}

// Close releases the chain backend.
func (b *Binder) Close() {
	if b.close != nil {
		b.close()
	}
}

// NewBinder connects to the configured chain. With no RPC URL it falls
// back to an in-memory registry owned by devOwner, or by the first account
// bound when devOwner is empty.
func NewBinder(ctx context.Context, cfg config.ChainConfig, devOwner string, logger *slog.Logger) (*Binder, error) {
	if cfg.RPCURL == "" {
		logger.Warn("no CHAIN_RPC_URL configured, using in-memory credential registry")
		return &Binder{Bind: memoryBinder(devOwner)}, nil
	}

	client, err := evm.Dial(ctx, cfg.RPCURL)
	if err != nil {
		return nil, err
	}
	if err := evm.CheckDeployed(ctx, client, cfg.ContractAddress); err != nil {
		client.Close()
		return nil, err
	}

	bind := func(ctx context.Context, account string, transactor evm.TransactorFunc) (ledger.Ledger, error) {
		c, err := evm.New(ctx, client, cfg.ContractAddress, evm.Options{
			From:       account,
			Transactor: transactor,
			Logger:     logger,
		})
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	logger.Info("bound credential registry", "rpc", cfg.RPCURL, "contract", cfg.ContractAddress)
	return &Binder{Bind: bind, close: client.Close}, nil
}

func memoryBinder(devOwner string) session.BindFunc {
	var (
		mu  sync.Mutex
		reg *ledger.Registry
	)
	return func(ctx context.Context, account string, transactor evm.TransactorFunc) (ledger.Ledger, error) {
		mu.Lock()
		if reg == nil && (devOwner != "" || account != "") {
			owner := devOwner
			if owner == "" {
				owner = account
			}
			reg = ledger.NewRegistry(owner)
		}
		r := reg
		mu.Unlock()

		if r == nil {
			// Nobody to own the registry yet; reads see an empty ledger.
			return readOnly{ledger.NewRegistry("").As("")}, nil
		}
		if transactor == nil {
			return readOnly{r.As(account)}, nil
		}
		return r.As(account), nil
	}
}

// readOnly refuses state-changing calls, like a contract bound without a
// signer.
type readOnly struct {
	ledger.Ledger
}

func (readOnly) IssueCredential(context.Context, string, string, ledger.CredentialType, string) (ledger.Transaction, error) {
	return nil, fmt.Errorf("issueCredential: %w", ledger.ErrNoSigner)
}

func (readOnly) RevokeCredential(context.Context, string, string) (ledger.Transaction, error) {
	return nil, fmt.Errorf("revokeCredential: %w", ledger.ErrNoSigner)
}

// sessionOracle checks fingerprints against whatever contract handle the
// session currently holds.
type sessionOracle struct {
	sess *session.Context
}

func (o sessionOracle) VerifyDocument(ctx context.Context, documentHash string) (bool, error) {
	return o.sess.Ledger().VerifyDocument(ctx, documentHash)
}

func (o sessionOracle) IsHashVerified(ctx context.Context, documentHash string) (bool, error) {
	return o.sess.Ledger().IsHashVerified(ctx, documentHash)
}

// OpenSession builds the wallet provider and contract binder named by cfg
// and opens the application session. The returned func releases both.
func OpenSession(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*session.Context, func(), error) {
	binder, err := NewBinder(ctx, cfg.Chain, cfg.Issuance.DevOwner, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to chain: %w", err)
	}

	passphrase := wallet.PassphraseFromTerminal()
	if cfg.Wallet.PassphraseFile != "" {
		passphrase = wallet.PassphraseFromFile(cfg.Wallet.PassphraseFile)
	}
	provider, err := wallet.New(wallet.Options{
		Type:        cfg.Wallet.Type,
		KeystoreDir: cfg.Wallet.KeystoreDir,
		Account:     cfg.Wallet.Account,
		PrivateKey:  cfg.Wallet.PrivateKey,
		Address:     cfg.Wallet.Address,
		Passphrase:  passphrase,
	})
	if err != nil {
		binder.Close()
		return nil, nil, fmt.Errorf("initializing wallet: %w", err)
	}

	theme, err := session.ParseTheme(cfg.UI.Theme)
	if err != nil {
		logger.Warn("ignoring theme setting", "error", err)
	}

	sess, err := session.Open(ctx, session.Options{
		Provider: provider,
		Bind:     binder.Bind,
		Connect:  cfg.Wallet.Connect,
		LockPath: cfg.Wallet.LockPath,
		Theme:    theme,
		Logger:   logger,
	})
	if err != nil {
		binder.Close()
		return nil, nil, err
	}

	return sess, func() {
		_ = sess.Close()
		binder.Close()
	}, nil
}
