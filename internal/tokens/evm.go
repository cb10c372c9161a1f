package tokens

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/fystack/walletstream/pkg/common/logger"
	"github.com/fystack/walletstream/pkg/model"
	"github.com/fystack/walletstream/pkg/repository"
)

const erc20MetadataABI = `[
	{"constant":true,"inputs":[],"name":"name","outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[],"name":"symbol","outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"stateMutability":"view","type":"function"}
]`

// ContractCaller is the slice of the eth client the resolver needs.
// *ethclient.Client satisfies it.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// EVMResolver resolves ERC-20 identity: persisted cache first, then the
// token contract itself.
type EVMResolver struct {
	store  repository.TokenStore
	caller ContractCaller
	abi    abi.ABI
}

func NewEVMResolver(store repository.TokenStore, caller ContractCaller) (*EVMResolver, error) {
	parsed, err := abi.JSON(strings.NewReader(erc20MetadataABI))
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	return &EVMResolver{store: store, caller: caller, abi: parsed}, nil
}

func (r *EVMResolver) Resolve(ctx context.Context, address, network string) model.Token {
	addr := strings.ToLower(address)

	if cached, err := r.store.FindByAddress(ctx, addr); err == nil {
		return *cached
	}

	if r.caller == nil {
		return placeholder(addr, network, evmNativeDecimals)
	}

	contract := common.HexToAddress(addr)
	resolved := false

	decimals := uint8(evmNativeDecimals)
	if d, err := r.callDecimals(ctx, contract); err == nil {
		decimals = d
		resolved = true
	}

	name := placeholderName
	if s, err := r.callString(ctx, contract, "name"); err == nil && s != "" {
		name = s
		resolved = true
	}
	symbol := placeholderSymbol
	if s, err := r.callString(ctx, contract, "symbol"); err == nil && s != "" {
		symbol = s
		resolved = true
	}

	if !resolved {
		logger.Warn("Token unresolvable on-chain", "address", addr, "network", network)
		return placeholder(addr, network, evmNativeDecimals)
	}

	return persistResolved(ctx, r.store, model.Token{
		Address:  addr,
		Name:     name,
		Symbol:   symbol,
		Decimals: decimals,
		Chain:    network,
	})
}

func (r *EVMResolver) callDecimals(ctx context.Context, contract common.Address) (uint8, error) {
	out, err := r.call(ctx, contract, "decimals")
	if err != nil {
		return 0, err
	}
	var decimals uint8
	if err := r.abi.UnpackIntoInterface(&decimals, "decimals", out); err != nil {
		return 0, err
	}
	return decimals, nil
}

// callString reads a string accessor, tolerating the non-standard tokens
// that return bytes32 instead.
func (r *EVMResolver) callString(ctx context.Context, contract common.Address, method string) (string, error) {
	out, err := r.call(ctx, contract, method)
	if err != nil {
		return "", err
	}
	var value string
	if err := r.abi.UnpackIntoInterface(&value, method, out); err == nil {
		return value, nil
	}
	if len(out) >= 32 {
		return strings.TrimRight(string(out[:32]), "\x00"), nil
	}
	return "", fmt.Errorf("unexpected %s payload (%d bytes)", method, len(out))
}

func (r *EVMResolver) call(ctx context.Context, contract common.Address, method string) ([]byte, error) {
	data, err := r.abi.Pack(method)
	if err != nil {
		return nil, err
	}
	out, err := r.caller.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: data}, nil)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty %s response", method)
	}
	return out, nil
}
