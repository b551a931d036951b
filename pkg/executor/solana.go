package executor

import (
	"context"
	"encoding/base64"
	"fmt"
	"math/big"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"omni-swap/config"
	"omni-swap/pkg/types"
)

// Finalized commitment on Solana sits roughly 32 slots behind the tip
const solanaFinalizedSlots = 32

// SolanaRPC is the subset of the Solana RPC client the executor uses
type SolanaRPC interface {
	SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error)
	GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, sigs ...solana.Signature) (*rpc.GetSignatureStatusesResult, error)
}

// SolanaExecutor broadcasts and tracks transactions on Solana
type SolanaExecutor struct {
	client SolanaRPC
}

// NewSolanaExecutor creates an executor against the configured RPC endpoint
func NewSolanaExecutor(cfg config.SolanaConfig) *SolanaExecutor {
	return &SolanaExecutor{client: rpc.New(cfg.RPCUrl)}
}

// NewSolanaExecutorWithClient wires an explicit RPC client; used by tests
func NewSolanaExecutorWithClient(client SolanaRPC) *SolanaExecutor {
	return &SolanaExecutor{client: client}
}

func (e *SolanaExecutor) Family() types.ChainFamily { return types.FamilySolana }

func (e *SolanaExecutor) SupportsChain(chainID string) bool {
	return chainID == types.ChainSolana
}

// PrepareTransaction is a no-op on Solana; fee handling happens inside
// the serialized message
func (e *SolanaExecutor) PrepareTransaction(ctx context.Context, tx *types.UnsignedTransaction, from string) (*types.UnsignedTransaction, error) {
	return tx, nil
}

// ExecuteTransaction broadcasts a base64-encoded signed transaction.
// Both legacy and versioned transactions decode through the same path.
func (e *SolanaExecutor) ExecuteTransaction(ctx context.Context, signed types.SignedTransaction) (*ExecutionResult, error) {
	raw, err := base64.StdEncoding.DecodeString(signed.Raw)
	if err != nil {
		err = fmt.Errorf("invalid signed transaction encoding: %w", err)
		return &ExecutionResult{Success: false, Error: err.Error()}, err
	}

	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		err = fmt.Errorf("failed to decode signed transaction: %w", err)
		return &ExecutionResult{Success: false, Error: err.Error()}, err
	}

	sig, err := e.client.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		err = fmt.Errorf("failed to broadcast transaction: %w", err)
		return &ExecutionResult{Success: false, Error: err.Error()}, err
	}
	return &ExecutionResult{Success: true, TxHash: sig.String()}, nil
}

// GetTransactionStatus maps Solana commitment levels onto confirmation
// counts: finalized is fully confirmed, confirmed counts as one of the
// finalization window
func (e *SolanaExecutor) GetTransactionStatus(ctx context.Context, chainID, txHash string) (*types.TransactionStatus, error) {
	sig, err := solana.SignatureFromBase58(txHash)
	if err != nil {
		return nil, fmt.Errorf("invalid transaction signature: %w", err)
	}

	out, err := e.client.GetSignatureStatuses(ctx, true, sig)
	if err != nil {
		return nil, fmt.Errorf("failed to get signature status: %w", err)
	}
	if out == nil || len(out.Value) == 0 || out.Value[0] == nil {
		return &types.TransactionStatus{State: types.TxPending, RequiredConfirmations: solanaFinalizedSlots}, nil
	}

	status := out.Value[0]
	if status.Err != nil {
		return &types.TransactionStatus{
			State:                 types.TxFailed,
			RequiredConfirmations: solanaFinalizedSlots,
			Error:                 fmt.Sprintf("transaction failed on-chain: %v", status.Err),
		}, nil
	}

	ts := &types.TransactionStatus{
		RequiredConfirmations: solanaFinalizedSlots,
		BlockNumber:           int64(status.Slot),
	}
	switch status.ConfirmationStatus {
	case rpc.ConfirmationStatusFinalized:
		ts.State = types.TxConfirmed
		ts.Confirmations = solanaFinalizedSlots
	case rpc.ConfirmationStatusConfirmed:
		ts.State = types.TxConfirming
		ts.Confirmations = 1
	default:
		ts.State = types.TxPending
	}
	return ts, nil
}

// EstimateGas has no Solana equivalent exposed to pre-signed payloads
func (e *SolanaExecutor) EstimateGas(ctx context.Context, tx *types.UnsignedTransaction, from string) (uint64, error) {
	return 0, ErrNotSupported
}

// CheckAllowance has no Solana equivalent; token transfers are delegated
// per-instruction, not via standing approvals
func (e *SolanaExecutor) CheckAllowance(ctx context.Context, chainID, token, owner, spender string) (*big.Int, error) {
	return nil, ErrNotSupported
}

func (e *SolanaExecutor) BuildApprovalTransaction(ctx context.Context, chainID, token, spender string, amount *big.Int) (*types.UnsignedTransaction, error) {
	return nil, ErrNotSupported
}
