// Package session holds the connected wallet, the contract handle bound to
// it and the role derived from the contract owner. Everything that the
// dashboards share lives here instead of in package globals.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gofrs/flock"

	"github.com/pendergraft/verichain/internal/ledger"
	"github.com/pendergraft/verichain/internal/ledger/evm"
	"github.com/pendergraft/verichain/internal/wallet"
)

// Errors returned by the session.
var (
	ErrNotConnected = errors.New("no account connected")
	ErrForbidden    = errors.New("view not available to this account")
	ErrLocked       = errors.New("wallet is in use by another process")
)

// View is one of the dashboards.
type View string

// Dashboards in display order.
const (
	ViewAdmin    View = "admin"
	ViewStudent  View = "student"
	ViewVerifier View = "verifier"
)

// BindFunc binds the contract for account. An empty account or nil
// transactor yields a read-only handle.
type BindFunc func(ctx context.Context, account string, transactor evm.TransactorFunc) (ledger.Ledger, error)

// Options configures Open.
type Options struct {
	Provider wallet.Provider
	Bind     BindFunc
	// Connect requests accounts when none are already authorized.
	Connect bool
	// LockPath, when set, is locked while an account is connected.
	LockPath string
	Theme    Theme
	Logger   *slog.Logger
}

// Context is the live application session.
type Context struct {
	provider wallet.Provider
	bind     BindFunc
	lockPath string
	logger   *slog.Logger

	mu      sync.RWMutex
	account string
	owner   string
	ledger  ledger.Ledger
	theme   Theme
	lock    *flock.Flock
}

// Open builds a session. A missing or declined wallet leaves the session
// disconnected with only the verifier view; failing to bind the contract
// is an error.
func Open(ctx context.Context, opts Options) (*Context, error) {
	if opts.Bind == nil {
		return nil, errors.New("session requires a contract binder")
	}
	provider := opts.Provider
	if provider == nil {
		provider = wallet.None{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Context{
		provider: provider,
		bind:     opts.Bind,
		lockPath: opts.LockPath,
		logger:   logger,
		theme:    opts.Theme.OrDefault(),
	}

	accounts, err := provider.Accounts(ctx)
	if err != nil && !errors.Is(err, wallet.ErrNoWallet) {
		logger.Warn("listing authorized accounts failed", "error", err)
	}
	if len(accounts) == 0 && opts.Connect {
		accounts, err = provider.RequestAccounts(ctx)
		if err != nil {
			logger.Warn("wallet connection not established", "error", err)
		}
	}

	account := ""
	if len(accounts) > 0 {
		account = accounts[0]
	}
	if err := c.attach(ctx, account); err != nil {
		return nil, err
	}
	return c, nil
}

// Connect requests accounts from the wallet and rebinds the session to the
// first one granted.
func (c *Context) Connect(ctx context.Context) error {
	accounts, err := c.provider.RequestAccounts(ctx)
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		return ErrNotConnected
	}
	return c.attach(ctx, accounts[0])
}

// attach binds the contract for account and reads the owner once.
func (c *Context) attach(ctx context.Context, account string) error {
	var transactor evm.TransactorFunc
	var lock *flock.Flock
	acquired := false

	if account != "" {
		tr, err := c.provider.Transactor(account)
		switch {
		case err == nil:
			transactor = tr
		case errors.Is(err, wallet.ErrReadOnly):
		default:
			return fmt.Errorf("preparing signer: %w", err)
		}

		if transactor != nil && c.lockPath != "" {
			c.mu.RLock()
			lock = c.lock
			c.mu.RUnlock()
			if lock == nil {
				lock = flock.New(c.lockPath)
				ok, err := lock.TryLock()
				if err != nil {
					return fmt.Errorf("locking wallet: %w", err)
				}
				if !ok {
					return fmt.Errorf("%w: %s", ErrLocked, c.lockPath)
				}
				acquired = true
			}
		}
	}

	l, err := c.bind(ctx, account, transactor)
	if err != nil {
		if acquired {
			_ = lock.Unlock()
		}
		return fmt.Errorf("binding contract: %w", err)
	}

	owner, err := l.Owner(ctx)
	if err != nil {
		c.logger.Warn("reading contract owner failed", "error", err)
		owner = ""
	}

	c.mu.Lock()
	prev := c.lock
	c.account = wallet.Normalize(account)
	c.owner = wallet.Normalize(owner)
	c.ledger = l
	c.lock = lock
	c.mu.Unlock()

	if prev != nil && prev != lock {
		_ = prev.Unlock()
	}

	c.logger.Info("session attached",
		"account", c.Account(),
		"admin", c.IsAdmin(),
		"signer", transactor != nil,
	)
	return nil
}

// RefreshOwner re-reads the contract owner.
func (c *Context) RefreshOwner(ctx context.Context) error {
	l := c.Ledger()
	owner, err := l.Owner(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.owner = wallet.Normalize(owner)
	c.mu.Unlock()
	return nil
}

// Close releases the wallet lock.
func (c *Context) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lock != nil {
		err := c.lock.Unlock()
		c.lock = nil
		return err
	}
	return nil
}

// Account returns the connected account in normalized form, or "".
func (c *Context) Account() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.account
}

// Owner returns the contract owner in normalized form, or "" if unknown.
func (c *Context) Owner() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.owner
}

// Connected reports whether an account is connected.
func (c *Context) Connected() bool {
	return c.Account() != ""
}

// IsAdmin reports whether the connected account owns the contract.
func (c *Context) IsAdmin() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.account != "" && c.account == c.owner
}

// Ledger returns the contract handle bound to the current account.
func (c *Context) Ledger() ledger.Ledger {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ledger
}

// Views lists the dashboards available to the current account.
func (c *Context) Views() []View {
	var views []View
	if c.IsAdmin() {
		views = append(views, ViewAdmin)
	}
	if c.Connected() {
		views = append(views, ViewStudent)
	}
	return append(views, ViewVerifier)
}

// Can reports whether view is available.
func (c *Context) Can(view View) bool {
	switch view {
	case ViewAdmin:
		return c.IsAdmin()
	case ViewStudent:
		return c.Connected()
	case ViewVerifier:
		return true
	}
	return false
}

// Require returns ErrForbidden or ErrNotConnected when view is unavailable.
func (c *Context) Require(view View) error {
	if c.Can(view) {
		return nil
	}
	if !c.Connected() {
		return ErrNotConnected
	}
	return fmt.Errorf("%w: %s", ErrForbidden, view)
}

// Theme returns the display theme.
func (c *Context) Theme() Theme {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.theme
}

// SetTheme changes the display theme.
func (c *Context) SetTheme(t Theme) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.theme = t.OrDefault()
}

// ToggleTheme flips the display theme and returns the new value.
func (c *Context) ToggleTheme() Theme {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.theme = c.theme.Toggle()
	return c.theme
}

// Status is a snapshot of the session for display.
type Status struct {
	Account   string `json:"account,omitempty"`
	Owner     string `json:"owner,omitempty"`
	Connected bool   `json:"connected"`
	Admin     bool   `json:"admin"`
	Views     []View `json:"views"`
	Theme     Theme  `json:"theme"`
}

// Status returns a snapshot of the session.
func (c *Context) Status() Status {
	return Status{
		Account:   c.Account(),
		Owner:     c.Owner(),
		Connected: c.Connected(),
		Admin:     c.IsAdmin(),
		Views:     c.Views(),
		Theme:     c.Theme(),
	}
}
