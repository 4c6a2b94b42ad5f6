package evm

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pendergraft/verichain/internal/ledger"
)

const (
	ownerAddr   = "0x1111111111111111111111111111111111111111"
	studentAddr = "0x2222222222222222222222222222222222222222"
)

type callHandler func(msg ethereum.CallMsg, args []any) ([]byte, error)

// fakeBackend answers contract calls by method name. Unimplemented
// backend methods panic through the nil embedded interface.
type fakeBackend struct {
	bind.ContractBackend
	t        *testing.T
	abi      abi.ABI
	handlers map[string]callHandler
	sent     []*types.Transaction
	sendErr  error
	receipt  *types.Receipt
	noCode   bool
}

func newFakeBackend(t *testing.T) *fakeBackend {
	parsed, err := ParseABI()
	require.NoError(t, err)
	return &fakeBackend{t: t, abi: parsed, handlers: make(map[string]callHandler)}
}

func (f *fakeBackend) CallContract(ctx context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
	m, err := f.abi.MethodById(msg.Data[:4])
	require.NoError(f.t, err)
	args, err := m.Inputs.Unpack(msg.Data[4:])
	require.NoError(f.t, err)
	h, ok := f.handlers[m.Name]
	require.True(f.t, ok, "unexpected call to %s", m.Name)
	return h(msg, args)
}

func (f *fakeBackend) CodeAt(ctx context.Context, contract common.Address, block *big.Int) ([]byte, error) {
	if f.noCode {
		return nil, nil
	}
	return []byte{0x60, 0x80}, nil
}

func (f *fakeBackend) ChainID(ctx context.Context) (*big.Int, error) {
	return big.NewInt(11155111), nil
}

func (f *fakeBackend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeBackend) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	if f.receipt == nil {
		return nil, ethereum.NotFound
	}
	return f.receipt, nil
}

func (f *fakeBackend) pack(method string, values ...any) []byte {
	out, err := f.abi.Methods[method].Outputs.Pack(values...)
	require.NoError(f.t, err)
	return out
}

// revertError carries revert data the way geth's RPC client reports it.
type revertError struct {
	data string
}

func (e revertError) Error() string          { return "execution reverted" }
func (e revertError) ErrorCode() int         { return 3 }
func (e revertError) ErrorData() interface{} { return e.data }

func testTransactor(t *testing.T) TransactorFunc {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return func(ctx context.Context, chainID *big.Int) (*bind.TransactOpts, error) {
		opts, err := bind.NewKeyedTransactorWithChainID(key, chainID)
		if err != nil {
			return nil, err
		}
		opts.GasPrice = big.NewInt(1)
		opts.GasLimit = 200000
		opts.Nonce = big.NewInt(0)
		return opts, nil
	}
}

func newTestContract(t *testing.T, backend *fakeBackend, transactor TransactorFunc) *Contract {
	c, err := New(context.Background(), backend, DefaultContractAddress, Options{
		From:       studentAddr,
		Transactor: transactor,
	})
	require.NoError(t, err)
	return c
}

func TestNew_InvalidAddress(t *testing.T) {
	_, err := New(context.Background(), newFakeBackend(t), "not-an-address", Options{})
	assert.Error(t, err)
}

func TestContract_ChainIDFromBackend(t *testing.T) {
	c := newTestContract(t, newFakeBackend(t), nil)
	assert.Equal(t, int64(11155111), c.ChainID().Int64())
	assert.Equal(t, common.HexToAddress(DefaultContractAddress).Hex(), c.Address())
}

func TestContract_Owner(t *testing.T) {
	backend := newFakeBackend(t)
	backend.handlers["owner"] = func(msg ethereum.CallMsg, args []any) ([]byte, error) {
		return backend.pack("owner", common.HexToAddress(ownerAddr)), nil
	}
	c := newTestContract(t, backend, nil)

	owner, err := c.Owner(context.Background())
	require.NoError(t, err)
	assert.True(t, strings.EqualFold(ownerAddr, owner))
}

func TestContract_VerifyDocument(t *testing.T) {
	backend := newFakeBackend(t)
	var queried string
	backend.handlers["verifyDocument"] = func(msg ethereum.CallMsg, args []any) ([]byte, error) {
		queried = args[0].(string)
		return backend.pack("verifyDocument", queried == "0xabc"), nil
	}
	c := newTestContract(t, backend, nil)

	ok, err := c.VerifyDocument(context.Background(), "0xabc")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "0xabc", queried)

	ok, err = c.VerifyDocument(context.Background(), "0xdef")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestContract_MyCredentials(t *testing.T) {
	backend := newFakeBackend(t)
	issued := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	backend.handlers["getMyCredentials"] = func(msg ethereum.CallMsg, args []any) ([]byte, error) {
		assert.Equal(t, common.HexToAddress(studentAddr), msg.From)
		return backend.pack("getMyCredentials", []credentialRecord{
			{DocumentHash: "ipfs-json-cid:bafy1", CredentialType: "STUDENT_ID", MetadataCid: "bafy1", IssueDate: big.NewInt(issued.Unix()), Active: true},
			{DocumentHash: "0xfeed", CredentialType: "DIPLOMA", MetadataCid: "N/A", IssueDate: big.NewInt(issued.Unix()), Active: false},
		}), nil
	}
	c := newTestContract(t, backend, nil)

	creds, err := c.MyCredentials(context.Background())
	require.NoError(t, err)
	require.Len(t, creds, 2)
	assert.Equal(t, ledger.StudentID, creds[0].CredentialType)
	assert.Equal(t, "bafy1", creds[0].MetadataCID)
	assert.True(t, creds[0].IssueDate.Equal(issued))
	assert.True(t, creds[0].Active)
	assert.Equal(t, ledger.Diploma, creds[1].CredentialType)
	assert.False(t, creds[1].Active)
}

func TestContract_CredentialsForStudent(t *testing.T) {
	backend := newFakeBackend(t)
	backend.handlers["getCredentialsForStudent"] = func(msg ethereum.CallMsg, args []any) ([]byte, error) {
		assert.Equal(t, common.HexToAddress(studentAddr), args[0].(common.Address))
		return backend.pack("getCredentialsForStudent", []credentialRecord{}), nil
	}
	c := newTestContract(t, backend, nil)

	creds, err := c.CredentialsForStudent(context.Background(), studentAddr)
	require.NoError(t, err)
	assert.Empty(t, creds)

	_, err = c.CredentialsForStudent(context.Background(), "0x123")
	assert.Error(t, err)
}

func TestContract_CallErrors(t *testing.T) {
	backend := newFakeBackend(t)
	parsed, err := ParseABI()
	require.NoError(t, err)
	unauthorized := parsed.Errors["OwnableUnauthorizedAccount"]
	encoded, err := unauthorized.Inputs.Pack(common.HexToAddress(studentAddr))
	require.NoError(t, err)
	data := hexutil.Encode(append(unauthorized.ID[:4], encoded...))

	c := newTestContract(t, backend, nil)

	t.Run("custom revert decodes to unauthorized", func(t *testing.T) {
		backend.handlers["owner"] = func(ethereum.CallMsg, []any) ([]byte, error) {
			return nil, revertError{data: data}
		}
		_, err := c.Owner(context.Background())
		assert.ErrorIs(t, err, ledger.ErrUnauthorized)
	})

	t.Run("plain revert", func(t *testing.T) {
		backend.handlers["owner"] = func(ethereum.CallMsg, []any) ([]byte, error) {
			return nil, errors.New("execution reverted")
		}
		_, err := c.Owner(context.Background())
		assert.ErrorIs(t, err, ledger.ErrReverted)
	})

	t.Run("transport failure", func(t *testing.T) {
		backend.handlers["owner"] = func(ethereum.CallMsg, []any) ([]byte, error) {
			return nil, errors.New("connection refused")
		}
		_, err := c.Owner(context.Background())
		assert.ErrorIs(t, err, ledger.ErrUnavailable)
	})
}

func TestContract_IssueCredential(t *testing.T) {
	backend := newFakeBackend(t)
	c := newTestContract(t, backend, testTransactor(t))

	tx, err := c.IssueCredential(context.Background(), studentAddr, "0xfeed", ledger.Diploma, ledger.NoMetadata)
	require.NoError(t, err)
	require.Len(t, backend.sent, 1)
	assert.Equal(t, backend.sent[0].Hash().Hex(), tx.Hash())

	sent := backend.sent[0]
	m, err := backend.abi.MethodById(sent.Data()[:4])
	require.NoError(t, err)
	assert.Equal(t, "issueCredential", m.Name)
	args, err := m.Inputs.Unpack(sent.Data()[4:])
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(studentAddr), args[0])
	assert.Equal(t, "0xfeed", args[1])
	assert.Equal(t, "DIPLOMA", args[2])
	assert.Equal(t, "N/A", args[3])
}

func TestContract_TransactWithoutSigner(t *testing.T) {
	c := newTestContract(t, newFakeBackend(t), nil)

	_, err := c.IssueCredential(context.Background(), studentAddr, "0xfeed", ledger.Diploma, ledger.NoMetadata)
	assert.ErrorIs(t, err, ledger.ErrNoSigner)

	_, err = c.RevokeCredential(context.Background(), studentAddr, "0xfeed")
	assert.ErrorIs(t, err, ledger.ErrNoSigner)
}

func TestContract_TransactorError(t *testing.T) {
	declined := errors.New("declined")
	c := newTestContract(t, newFakeBackend(t), func(context.Context, *big.Int) (*bind.TransactOpts, error) {
		return nil, declined
	})

	_, err := c.RevokeCredential(context.Background(), studentAddr, "0xfeed")
	assert.ErrorIs(t, err, declined)
}

func TestTransaction_Wait(t *testing.T) {
	tests := []struct {
		name    string
		status  uint64
		wantErr error
	}{
		{"success", types.ReceiptStatusSuccessful, nil},
		{"reverted", types.ReceiptStatusFailed, ledger.ErrReverted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := newFakeBackend(t)
			c := newTestContract(t, backend, testTransactor(t))
			tx, err := c.RevokeCredential(context.Background(), studentAddr, "0xfeed")
			require.NoError(t, err)

			backend.receipt = &types.Receipt{
				Status:      tt.status,
				TxHash:      common.HexToHash(tx.Hash()),
				BlockNumber: big.NewInt(42),
				GasUsed:     21000,
			}
			receipt, err := tx.Wait(context.Background())
			require.NotNil(t, receipt)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.False(t, receipt.Success)
			} else {
				require.NoError(t, err)
				assert.True(t, receipt.Success)
			}
			assert.Equal(t, uint64(42), receipt.BlockNumber)
		})
	}
}

func TestTransaction_WaitCancelled(t *testing.T) {
	backend := newFakeBackend(t)
	c := newTestContract(t, backend, testTransactor(t))
	tx, err := c.RevokeCredential(context.Background(), studentAddr, "0xfeed")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = tx.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCheckDeployed(t *testing.T) {
	backend := newFakeBackend(t)
	require.NoError(t, CheckDeployed(context.Background(), backend, DefaultContractAddress))

	backend.noCode = true
	err := CheckDeployed(context.Background(), backend, DefaultContractAddress)
	assert.ErrorIs(t, err, ErrNoContract)

	assert.Error(t, CheckDeployed(context.Background(), backend, "0x1234"))
}
