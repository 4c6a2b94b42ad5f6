package wallet

import (
	"context"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Well-known development key; never holds funds.
const devKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func TestNormalize(t *testing.T) {
	assert.Equal(t, "0xabcdef0000000000000000000000000000000001", Normalize(" 0xABCDEF0000000000000000000000000000000001 "))
	assert.True(t, SameAddress("0xAbC0000000000000000000000000000000000001", "0xabc0000000000000000000000000000000000001"))
	assert.False(t, SameAddress("", ""))
	assert.False(t, SameAddress("0x01", "0x02"))
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{"none", Options{Type: TypeNone}, false},
		{"empty type is none", Options{}, false},
		{"key", Options{Type: TypeKey, PrivateKey: devKey}, false},
		{"key without value", Options{Type: TypeKey}, true},
		{"watch only", Options{Type: TypeWatchOnly, Address: "0x2222222222222222222222222222222222222222"}, false},
		{"watch only bad address", Options{Type: TypeWatchOnly, Address: "nope"}, true},
		{"keystore without dir", Options{Type: TypeKeystore}, true},
		{"unknown", Options{Type: "ledger-nano"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.opts)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, p)
		})
	}
}

func TestNone(t *testing.T) {
	var p Provider = None{}
	_, err := p.Accounts(context.Background())
	assert.ErrorIs(t, err, ErrNoWallet)
	_, err = p.RequestAccounts(context.Background())
	assert.ErrorIs(t, err, ErrNoWallet)
	_, err = p.Transactor("0x01")
	assert.ErrorIs(t, err, ErrNoWallet)
}

func TestWatchOnly(t *testing.T) {
	w, err := NewWatchOnly("0x2222222222222222222222222222222222222222")
	require.NoError(t, err)

	accts, err := w.Accounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"0x2222222222222222222222222222222222222222"}, accts)

	_, err = w.Transactor(accts[0])
	assert.ErrorIs(t, err, ErrReadOnly)
}

func TestKey(t *testing.T) {
	k, err := NewKey("0x" + devKey)
	require.NoError(t, err)

	priv, err := crypto.HexToECDSA(devKey)
	require.NoError(t, err)
	want := crypto.PubkeyToAddress(priv.PublicKey).Hex()

	accts, err := k.RequestAccounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{want}, accts)

	fn, err := k.Transactor(Normalize(want))
	require.NoError(t, err)
	opts, err := fn(context.Background(), big.NewInt(1))
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(want), opts.From)

	_, err = k.Transactor("0x2222222222222222222222222222222222222222")
	assert.ErrorIs(t, err, ErrUnknownAccount)

	_, err = NewKey("zz")
	assert.Error(t, err)
}

func newTestKeystore(t *testing.T, pass string) (string, common.Address) {
	dir := t.TempDir()
	ks := keystore.NewKeyStore(dir, keystore.LightScryptN, keystore.LightScryptP)
	acct, err := ks.NewAccount(pass)
	require.NoError(t, err)
	return dir, acct.Address
}

func TestKeystore_RequestAccounts(t *testing.T) {
	dir, addr := newTestKeystore(t, "hunter2")
	prompted := 0
	k := NewKeystore(dir, "", func(ctx context.Context, account string) (string, error) {
		prompted++
		return "hunter2", nil
	})

	accts, err := k.Accounts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, accts, "nothing is authorized before a request")

	_, err = k.Transactor(addr.Hex())
	require.NoError(t, err)

	accts, err = k.RequestAccounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{addr.Hex()}, accts)

	accts, err = k.Accounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{addr.Hex()}, accts)

	_, err = k.RequestAccounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, prompted, "an unlocked account is not prompted again")

	fn, err := k.Transactor(addr.Hex())
	require.NoError(t, err)
	opts, err := fn(context.Background(), big.NewInt(11155111))
	require.NoError(t, err)
	assert.Equal(t, addr, opts.From)

	k.Lock()
	_, err = fn(context.Background(), big.NewInt(11155111))
	assert.ErrorIs(t, err, ErrDeclined)
}

func TestKeystore_Declined(t *testing.T) {
	dir, _ := newTestKeystore(t, "hunter2")

	t.Run("prompt declined", func(t *testing.T) {
		k := NewKeystore(dir, "", func(context.Context, string) (string, error) {
			return "", ErrDeclined
		})
		_, err := k.RequestAccounts(context.Background())
		assert.ErrorIs(t, err, ErrDeclined)
	})

	t.Run("wrong passphrase", func(t *testing.T) {
		k := NewKeystore(dir, "", StaticPassphrase("wrong"))
		_, err := k.RequestAccounts(context.Background())
		assert.ErrorIs(t, err, ErrDeclined)
	})

	t.Run("no passphrase source", func(t *testing.T) {
		k := NewKeystore(dir, "", nil)
		_, err := k.RequestAccounts(context.Background())
		assert.ErrorIs(t, err, ErrDeclined)
	})
}

func TestKeystore_PreferredAccount(t *testing.T) {
	dir, _ := newTestKeystore(t, "pw")
	k := NewKeystore(dir, "0x2222222222222222222222222222222222222222", StaticPassphrase("pw"))
	_, err := k.RequestAccounts(context.Background())
	assert.ErrorIs(t, err, ErrUnknownAccount)

	empty := NewKeystore(t.TempDir(), "", StaticPassphrase("pw"))
	_, err = empty.RequestAccounts(context.Background())
	assert.ErrorIs(t, err, ErrNoWallet)
}

func TestPassphraseFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pass")
	require.NoError(t, os.WriteFile(path, []byte("s3cret\n"), 0600))

	pass, err := PassphraseFromFile(path)(context.Background(), "0x01")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", pass)

	_, err = PassphraseFromFile(filepath.Join(t.TempDir(), "missing"))(context.Background(), "0x01")
	assert.Error(t, err)
}
