package evm

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/pendergraft/verichain/internal/ledger"
)

// ErrNoContract is returned when no code is deployed at the registry address.
var ErrNoContract = errors.New("no contract deployed at address")

// Client is an RPC backend that must be closed after use.
type Client interface {
	Backend
	Close()
}

// Dial connects to an Ethereum JSON-RPC endpoint.
func Dial(ctx context.Context, rpcURL string) (Client, error) {
	if rpcURL == "" {
		return nil, fmt.Errorf("%w: no RPC URL configured", ledger.ErrUnavailable)
	}
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("%w: dialing %s: %v", ledger.ErrUnavailable, rpcURL, err)
	}
	return client, nil
}

// CheckDeployed confirms that code exists at address on the connected
// chain. A wrong network or a mistyped address otherwise only shows up as
// empty call results.
func CheckDeployed(ctx context.Context, backend Backend, address string) error {
	if !common.IsHexAddress(address) {
		return fmt.Errorf("invalid contract address: %s", address)
	}
	code, err := backend.CodeAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return fmt.Errorf("%w: reading code at %s: %v", ledger.ErrUnavailable, address, err)
	}
	if len(code) == 0 {
		return fmt.Errorf("%w: %s", ErrNoContract, address)
	}
	return nil
}
