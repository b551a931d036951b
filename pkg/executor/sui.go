package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"omni-swap/config"
	"omni-swap/pkg/types"
)

// SuiExecutor talks to a Sui fullnode over JSON-RPC. Sui finality is
// binary: a transaction block either executed or it did not, there is no
// confirmation depth to track.
type SuiExecutor struct {
	rpcURL string
	client *http.Client
}

// NewSuiExecutor creates an executor against the configured fullnode
func NewSuiExecutor(cfg config.SuiConfig) *SuiExecutor {
	return &SuiExecutor{
		rpcURL: cfg.RPCUrl,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// SetRPCURL overrides the fullnode endpoint; used by tests
func (e *SuiExecutor) SetRPCURL(url string) { e.rpcURL = url }

func (e *SuiExecutor) Family() types.ChainFamily { return types.FamilySui }

func (e *SuiExecutor) SupportsChain(chainID string) bool {
	return chainID == types.ChainSui
}

type suiRPCRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type suiRPCResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// suiRPCError is an error the node itself reported, as opposed to a
// transport failure
type suiRPCError struct {
	Code    int
	Message string
}

func (e *suiRPCError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

func (e *SuiExecutor) call(ctx context.Context, method string, params []interface{}, out interface{}) error {
	body, err := json.Marshal(suiRPCRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("failed to encode RPC request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.rpcURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create RPC request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("RPC request failed: %w", err)
	}
	defer resp.Body.Close()

	var rpcResp suiRPCResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("failed to decode RPC response: %w", err)
	}
	if rpcResp.Error != nil {
		return &suiRPCError{Code: rpcResp.Error.Code, Message: rpcResp.Error.Message}
	}
	if out != nil {
		if err := json.Unmarshal(rpcResp.Result, out); err != nil {
			return fmt.Errorf("failed to decode RPC result: %w", err)
		}
	}
	return nil
}

// suiSignedPayload is the Raw encoding for Sui: the caller's serialized
// transaction block bytes plus signatures
type suiSignedPayload struct {
	TxBytes    string   `json:"txBytes"`
	Signatures []string `json:"signatures"`
}

type suiEffects struct {
	Status struct {
		Status string `json:"status"`
		Error  string `json:"error"`
	} `json:"status"`
}

type suiTxBlockResponse struct {
	Digest  string      `json:"digest"`
	Effects *suiEffects `json:"effects"`
}

// PrepareTransaction is a no-op on Sui; gas budget is fixed inside the
// serialized transaction block
func (e *SuiExecutor) PrepareTransaction(ctx context.Context, tx *types.UnsignedTransaction, from string) (*types.UnsignedTransaction, error) {
	return tx, nil
}

// ExecuteTransaction submits a signed transaction block
func (e *SuiExecutor) ExecuteTransaction(ctx context.Context, signed types.SignedTransaction) (*ExecutionResult, error) {
	var payload suiSignedPayload
	if err := json.Unmarshal([]byte(signed.Raw), &payload); err != nil {
		err = fmt.Errorf("invalid signed transaction encoding: %w", err)
		return &ExecutionResult{Success: false, Error: err.Error()}, err
	}

	var result suiTxBlockResponse
	params := []interface{}{
		payload.TxBytes,
		payload.Signatures,
		map[string]bool{"showEffects": true},
		"WaitForEffectsCert",
	}
	if err := e.call(ctx, "sui_executeTransactionBlock", params, &result); err != nil {
		err = fmt.Errorf("failed to broadcast transaction: %w", err)
		return &ExecutionResult{Success: false, Error: err.Error()}, err
	}

	if result.Effects != nil && result.Effects.Status.Status == "failure" {
		msg := result.Effects.Status.Error
		if msg == "" {
			msg = "transaction execution failed"
		}
		return &ExecutionResult{Success: false, TxHash: result.Digest, Error: msg},
			fmt.Errorf("transaction execution failed: %s", msg)
	}
	return &ExecutionResult{Success: true, TxHash: result.Digest}, nil
}

// GetTransactionStatus reads the transaction block's effects; execution
// status is final as soon as effects exist
func (e *SuiExecutor) GetTransactionStatus(ctx context.Context, chainID, txHash string) (*types.TransactionStatus, error) {
	var result suiTxBlockResponse
	params := []interface{}{txHash, map[string]bool{"showEffects": true}}
	err := e.call(ctx, "sui_getTransactionBlock", params, &result)

	// The node reports unknown digests as an RPC error, not an empty
	// result; anything else is a real check failure
	var rpcErr *suiRPCError
	if errors.As(err, &rpcErr) && strings.Contains(rpcErr.Message, "Could not find") {
		return &types.TransactionStatus{State: types.TxPending, RequiredConfirmations: 1}, nil
	}
	if err != nil {
		return nil, err
	}
	if result.Effects == nil {
		return &types.TransactionStatus{State: types.TxPending, RequiredConfirmations: 1}, nil
	}

	if result.Effects.Status.Status == "success" {
		return &types.TransactionStatus{
			State:                 types.TxConfirmed,
			Confirmations:         1,
			RequiredConfirmations: 1,
		}, nil
	}
	msg := result.Effects.Status.Error
	if msg == "" {
		msg = "transaction execution failed"
	}
	return &types.TransactionStatus{
		State:                 types.TxFailed,
		RequiredConfirmations: 1,
		Error:                 msg,
	}, nil
}

// EstimateGas is not available for pre-built transaction blocks
func (e *SuiExecutor) EstimateGas(ctx context.Context, tx *types.UnsignedTransaction, from string) (uint64, error) {
	return 0, ErrNotSupported
}

// CheckAllowance has no Sui equivalent; the object model has no standing
// approvals
func (e *SuiExecutor) CheckAllowance(ctx context.Context, chainID, token, owner, spender string) (*big.Int, error) {
	return nil, ErrNotSupported
}

func (e *SuiExecutor) BuildApprovalTransaction(ctx context.Context, chainID, token, spender string, amount *big.Int) (*types.UnsignedTransaction, error) {
	return nil, ErrNotSupported
}
