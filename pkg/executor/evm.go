package executor

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"omni-swap/config"
	"omni-swap/pkg/types"
)

const defaultRequiredConfirmations = 12

// ERC20 fragments needed for allowance handling
const erc20ABI = `[
	{"constant":true,"inputs":[{"name":"_owner","type":"address"},{"name":"_spender","type":"address"}],"name":"allowance","outputs":[{"name":"","type":"uint256"}],"type":"function"},
	{"constant":false,"inputs":[{"name":"_spender","type":"address"},{"name":"_value","type":"uint256"}],"name":"approve","outputs":[{"name":"","type":"bool"}],"type":"function"}
]`

// EthBackend is the slice of the ethclient surface the executor needs;
// tests substitute a fake
type EthBackend interface {
	SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error)
	BlockNumber(ctx context.Context) (uint64, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}

// EVMExecutor serves every configured EVM-compatible network
type EVMExecutor struct {
	networks map[string]config.EVMNetwork

	mu      sync.Mutex
	clients map[string]EthBackend
	dial    func(rpcURL string) (EthBackend, error)

	erc20 abi.ABI
}

// NewEVMExecutor creates an executor over the configured networks,
// dialing RPC endpoints lazily
func NewEVMExecutor(networks map[string]config.EVMNetwork) (*EVMExecutor, error) {
	parsed, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ERC20 ABI: %w", err)
	}
	return &EVMExecutor{
		networks: networks,
		clients:  make(map[string]EthBackend),
		dial: func(rpcURL string) (EthBackend, error) {
			return ethclient.Dial(rpcURL)
		},
		erc20: parsed,
	}, nil
}

func (e *EVMExecutor) Family() types.ChainFamily { return types.FamilyEVM }

func (e *EVMExecutor) SupportsChain(chainID string) bool {
	_, ok := e.networks[chainID]
	return ok
}

// SetBackend injects a backend for a chain; used by tests
func (e *EVMExecutor) SetBackend(chainID string, b EthBackend) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clients[chainID] = b
}

func (e *EVMExecutor) backend(chainID string) (EthBackend, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if c, ok := e.clients[chainID]; ok {
		return c, nil
	}
	network, ok := e.networks[chainID]
	if !ok {
		return nil, fmt.Errorf("unknown EVM chain %s", chainID)
	}
	if network.RPCUrl == "" {
		return nil, fmt.Errorf("RPC URL not configured for chain %s", chainID)
	}
	c, err := e.dial(network.RPCUrl)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC endpoint: %w", err)
	}
	e.clients[chainID] = c
	return c, nil
}

func (e *EVMExecutor) requiredConfirmations(chainID string) uint64 {
	if n, ok := e.networks[chainID]; ok && n.RequiredConfirmations > 0 {
		return n.RequiredConfirmations
	}
	return defaultRequiredConfirmations
}

// PrepareTransaction fills the gas limit (with a 20% buffer) when the
// builder left it empty
func (e *EVMExecutor) PrepareTransaction(ctx context.Context, tx *types.UnsignedTransaction, from string) (*types.UnsignedTransaction, error) {
	if tx.GasLimit != "" {
		return tx, nil
	}
	gas, err := e.EstimateGas(ctx, tx, from)
	if err != nil {
		return nil, err
	}
	prepared := *tx
	prepared.GasLimit = new(big.Int).SetUint64(gas * 120 / 100).String()
	return &prepared, nil
}

// ExecuteTransaction broadcasts a pre-signed, RLP-encoded transaction
func (e *EVMExecutor) ExecuteTransaction(ctx context.Context, signed types.SignedTransaction) (*ExecutionResult, error) {
	client, err := e.backend(signed.ChainID)
	if err != nil {
		return &ExecutionResult{Success: false, Error: err.Error()}, err
	}

	raw, err := hexutil.Decode(signed.Raw)
	if err != nil {
		err = fmt.Errorf("invalid signed transaction encoding: %w", err)
		return &ExecutionResult{Success: false, Error: err.Error()}, err
	}
	tx := new(ethtypes.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		err = fmt.Errorf("failed to decode signed transaction: %w", err)
		return &ExecutionResult{Success: false, Error: err.Error()}, err
	}

	if err := client.SendTransaction(ctx, tx); err != nil {
		err = fmt.Errorf("failed to broadcast transaction: %w", err)
		return &ExecutionResult{Success: false, Error: err.Error()}, err
	}
	return &ExecutionResult{Success: true, TxHash: tx.Hash().Hex()}, nil
}

// GetTransactionStatus derives the state from receipt presence and the
// chain's required confirmation count. A reverted receipt is FAILED no
// matter how many confirmations it has.
func (e *EVMExecutor) GetTransactionStatus(ctx context.Context, chainID, txHash string) (*types.TransactionStatus, error) {
	client, err := e.backend(chainID)
	if err != nil {
		return nil, err
	}

	receipt, err := client.TransactionReceipt(ctx, common.HexToHash(txHash))
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return &types.TransactionStatus{State: types.TxPending}, nil
		}
		return nil, fmt.Errorf("failed to get receipt: %w", err)
	}

	required := e.requiredConfirmations(chainID)
	if receipt.Status == ethtypes.ReceiptStatusFailed {
		return &types.TransactionStatus{
			State:                 types.TxFailed,
			BlockNumber:           receipt.BlockNumber.Int64(),
			RequiredConfirmations: required,
			Error:                 "transaction reverted on-chain",
		}, nil
	}

	current, err := client.BlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get block number: %w", err)
	}

	confirmations := uint64(0)
	if current >= receipt.BlockNumber.Uint64() {
		confirmations = current - receipt.BlockNumber.Uint64() + 1
	}

	state := types.TxConfirming
	if confirmations >= required {
		state = types.TxConfirmed
	}
	return &types.TransactionStatus{
		State:                 state,
		Confirmations:         confirmations,
		RequiredConfirmations: required,
		BlockNumber:           receipt.BlockNumber.Int64(),
	}, nil
}

// EstimateGas estimates execution cost for the unsigned payload
func (e *EVMExecutor) EstimateGas(ctx context.Context, tx *types.UnsignedTransaction, from string) (uint64, error) {
	client, err := e.backend(tx.ChainID)
	if err != nil {
		return 0, err
	}

	msg := ethereum.CallMsg{From: common.HexToAddress(from)}
	if tx.To != "" {
		to := common.HexToAddress(tx.To)
		msg.To = &to
	}
	if tx.Data != "" {
		data, err := hexutil.Decode(tx.Data)
		if err != nil {
			return 0, fmt.Errorf("invalid transaction data: %w", err)
		}
		msg.Data = data
	}
	if tx.Value != "" {
		value, ok := new(big.Int).SetString(tx.Value, 10)
		if !ok {
			return 0, fmt.Errorf("invalid transaction value: %s", tx.Value)
		}
		msg.Value = value
	}

	gas, err := client.EstimateGas(ctx, msg)
	if err != nil {
		return 0, fmt.Errorf("failed to estimate gas: %w", err)
	}
	return gas, nil
}

// CheckAllowance reads the current ERC20 allowance owner has granted
// spender
func (e *EVMExecutor) CheckAllowance(ctx context.Context, chainID, token, owner, spender string) (*big.Int, error) {
	client, err := e.backend(chainID)
	if err != nil {
		return nil, err
	}

	data, err := e.erc20.Pack("allowance", common.HexToAddress(owner), common.HexToAddress(spender))
	if err != nil {
		return nil, fmt.Errorf("failed to pack allowance call: %w", err)
	}

	tokenAddr := common.HexToAddress(token)
	result, err := client.CallContract(ctx, ethereum.CallMsg{To: &tokenAddr, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to call allowance: %w", err)
	}
	return new(big.Int).SetBytes(result), nil
}

// BuildApprovalTransaction builds the unsigned approve() call granting
// spender the given amount
func (e *EVMExecutor) BuildApprovalTransaction(ctx context.Context, chainID, token, spender string, amount *big.Int) (*types.UnsignedTransaction, error) {
	data, err := e.erc20.Pack("approve", common.HexToAddress(spender), amount)
	if err != nil {
		return nil, fmt.Errorf("failed to pack approve call: %w", err)
	}
	return &types.UnsignedTransaction{
		ChainID: chainID,
		To:      token,
		Data:    hexutil.Encode(data),
		Value:   "0",
	}, nil
}
