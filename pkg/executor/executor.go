// Package executor abstracts the four transaction/finality models (EVM
// account-based, Solana slot-based, Sui object-based, CEX off-chain venue)
// behind one capability interface. The registry dispatches once, on chain
// id; nothing downstream branches on chain-family specifics again.
package executor

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"omni-swap/pkg/types"
)

// ErrNotSupported marks capabilities a chain family has no concept of,
// such as allowances outside EVM
var ErrNotSupported = errors.New("operation not supported for this chain family")

// ExecutionResult reports a broadcast attempt
type ExecutionResult struct {
	Success bool   `json:"success"`
	TxHash  string `json:"tx_hash,omitempty"`
	Error   string `json:"error,omitempty"`

	BlockNumber int64 `json:"block_number,omitempty"`

	// PendingID is a synthetic reference for legs with no on-chain hash,
	// such as CEX orders and withdrawals
	PendingID string `json:"pending_id,omitempty"`

	EstimatedCompletionSeconds int `json:"estimated_completion_seconds,omitempty"`
}

// Executor is the per-chain-family capability surface
type Executor interface {
	Family() types.ChainFamily
	SupportsChain(chainID string) bool

	// PrepareTransaction fills in family-specific fields (gas limits and
	// the like) the caller needs before signing
	PrepareTransaction(ctx context.Context, tx *types.UnsignedTransaction, from string) (*types.UnsignedTransaction, error)

	// ExecuteTransaction broadcasts a caller-signed payload
	ExecuteTransaction(ctx context.Context, signed types.SignedTransaction) (*ExecutionResult, error)

	// GetTransactionStatus reports the broadcast's current state
	GetTransactionStatus(ctx context.Context, chainID, txHash string) (*types.TransactionStatus, error)

	// EstimateGas estimates execution cost where the family has one
	EstimateGas(ctx context.Context, tx *types.UnsignedTransaction, from string) (uint64, error)

	// CheckAllowance and BuildApprovalTransaction are meaningful only
	// where an allowance concept exists; others return ErrNotSupported
	CheckAllowance(ctx context.Context, chainID, token, owner, spender string) (*big.Int, error)
	BuildApprovalTransaction(ctx context.Context, chainID, token, spender string, amount *big.Int) (*types.UnsignedTransaction, error)
}

// Registry routes a chain id to its executor with a fixed first-match
// order: EVM, Solana, Sui, CEX. Chain id spaces are disjoint, so no id can
// match more than one family.
type Registry struct {
	executors []Executor
}

// NewRegistry creates a registry over the given executors, consulted in
// the order supplied
func NewRegistry(executors ...Executor) *Registry {
	return &Registry{executors: executors}
}

// GetExecutorForChain returns the first executor claiming the chain id
func (r *Registry) GetExecutorForChain(chainID string) (Executor, error) {
	for _, e := range r.executors {
		if e.SupportsChain(chainID) {
			return e, nil
		}
	}
	return nil, fmt.Errorf("no executor registered for chain %s", chainID)
}

// GetByFamily returns the executor for a chain family, or nil
func (r *Registry) GetByFamily(family types.ChainFamily) Executor {
	for _, e := range r.executors {
		if e.Family() == family {
			return e
		}
	}
	return nil
}
