package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"


	"omni-swap/config"
	"omni-swap/pkg/cexapi"
	"omni-swap/pkg/types"
)

// Reference prefixes distinguishing the kinds of synthetic ids the CEX
// executor hands back instead of on-chain hashes
const (
	cexRefDeposit  = "cexdep:"
	cexRefOrder    = "cexord:"
	cexRefWithdraw = "cexwd:"
)

// CEXInstruction is the Raw encoding for venue legs. There is nothing to
// sign; the instruction tells the executor which venue action to perform.
type CEXInstruction struct {
	Action string `json:"action"` // deposit, trade, withdraw

	// trade
	Symbol   string `json:"symbol,omitempty"`
	Side     string `json:"side,omitempty"`
	Quantity string `json:"quantity,omitempty"`

	// deposit and withdraw
	Asset   string `json:"asset,omitempty"`
	Network string `json:"network,omitempty"`
	Address string `json:"address,omitempty"`
	Amount  string `json:"amount,omitempty"`

	// deposit: hash of the on-chain transfer funding the venue, submitted
	// after the source chain broadcast
	TxHash string `json:"tx_hash,omitempty"`
}

// CEXExecutor runs the off-chain legs of a route through exchange venues
type CEXExecutor struct {
	clients map[string]*cexapi.Client
}

// NewCEXExecutor creates an executor over the configured venues
func NewCEXExecutor(venues []config.CEXVenue) *CEXExecutor {
	clients := make(map[string]*cexapi.Client, len(venues))
	for _, v := range venues {
		clients[v.Name] = cexapi.NewClient(v)
	}
	return &CEXExecutor{clients: clients}
}

// SetClient injects a venue client; used by tests
func (e *CEXExecutor) SetClient(venue string, c *cexapi.Client) {
	e.clients[venue] = c
}

func (e *CEXExecutor) Family() types.ChainFamily { return types.FamilyCEX }

func (e *CEXExecutor) SupportsChain(chainID string) bool {
	if !types.IsCEXChain(chainID) {
		return false
	}
	_, ok := e.clients[strings.TrimPrefix(chainID, types.CEXChainPrefix)]
	return ok
}

func (e *CEXExecutor) venueClient(chainID string) (*cexapi.Client, error) {
	venue := strings.TrimPrefix(chainID, types.CEXChainPrefix)
	c, ok := e.clients[venue]
	if !ok {
		return nil, fmt.Errorf("unknown CEX venue %s", venue)
	}
	return c, nil
}

// PrepareTransaction is a no-op; venue instructions carry everything
func (e *CEXExecutor) PrepareTransaction(ctx context.Context, tx *types.UnsignedTransaction, from string) (*types.UnsignedTransaction, error) {
	return tx, nil
}

// ExecuteTransaction performs one venue action. Raw holds a
// CEXInstruction rather than a signed payload; deposits produce only a
// synthetic reference since the venue credits them asynchronously.
func (e *CEXExecutor) ExecuteTransaction(ctx context.Context, signed types.SignedTransaction) (*ExecutionResult, error) {
	client, err := e.venueClient(signed.ChainID)
	if err != nil {
		return &ExecutionResult{Success: false, Error: err.Error()}, err
	}

	var instr CEXInstruction
	if err := json.Unmarshal([]byte(signed.Raw), &instr); err != nil {
		err = fmt.Errorf("invalid venue instruction: %w", err)
		return &ExecutionResult{Success: false, Error: err.Error()}, err
	}

	switch instr.Action {
	case "deposit":
		// The on-chain transfer happens on the source chain; here we only
		// mint a reference the monitor polls the venue credit under
		if instr.Asset == "" || instr.TxHash == "" {
			err := fmt.Errorf("deposit instruction requires asset and tx hash")
			return &ExecutionResult{Success: false, Error: err.Error()}, err
		}
		ref := cexRefDeposit + instr.Asset + ":" + instr.TxHash
		return &ExecutionResult{Success: true, PendingID: ref}, nil

	case "trade":
		order, err := client.PlaceMarketOrder(ctx, instr.Symbol, instr.Side, instr.Quantity)
		if err != nil {
			err = fmt.Errorf("failed to place order: %w", err)
			return &ExecutionResult{Success: false, Error: err.Error()}, err
		}
		if order.Status != "FILLED" {
			err = fmt.Errorf("order not filled, venue reported %s", order.Status)
			return &ExecutionResult{Success: false, Error: err.Error()}, err
		}
		return &ExecutionResult{Success: true, PendingID: cexRefOrder + instr.Symbol + ":" + order.OrderID}, nil

	case "withdraw":
		id, err := client.Withdraw(ctx, instr.Asset, instr.Network, instr.Address, instr.Amount)
		if err != nil {
			err = fmt.Errorf("failed to initiate withdrawal: %w", err)
			return &ExecutionResult{Success: false, Error: err.Error()}, err
		}
		return &ExecutionResult{Success: true, PendingID: cexRefWithdraw + id}, nil

	default:
		err := fmt.Errorf("unknown venue action %q", instr.Action)
		return &ExecutionResult{Success: false, Error: err.Error()}, err
	}
}

// GetTransactionStatus resolves a synthetic reference against the venue.
// Deposit references are matched against the venue's deposit history by
// the funding transfer's on-chain hash.
func (e *CEXExecutor) GetTransactionStatus(ctx context.Context, chainID, ref string) (*types.TransactionStatus, error) {
	client, err := e.venueClient(chainID)
	if err != nil {
		return nil, err
	}

	switch {
	case strings.HasPrefix(ref, cexRefDeposit):
		rest := strings.TrimPrefix(ref, cexRefDeposit)
		parts := strings.SplitN(rest, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("malformed deposit reference %q", ref)
		}
		dep, err := client.GetDeposit(ctx, parts[0], parts[1])
		if err != nil {
			return nil, fmt.Errorf("failed to get deposit: %w", err)
		}
		return depositStatus(dep), nil

	case strings.HasPrefix(ref, cexRefOrder):
		rest := strings.TrimPrefix(ref, cexRefOrder)
		parts := strings.SplitN(rest, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("malformed order reference %q", ref)
		}
		order, err := client.GetOrder(ctx, parts[0], parts[1])
		if err != nil {
			return nil, fmt.Errorf("failed to get order: %w", err)
		}
		return orderStatus(order), nil

	case strings.HasPrefix(ref, cexRefWithdraw):
		wd, err := client.GetWithdrawal(ctx, strings.TrimPrefix(ref, cexRefWithdraw))
		if err != nil {
			return nil, fmt.Errorf("failed to get withdrawal: %w", err)
		}
		return withdrawalStatus(wd), nil

	default:
		return nil, fmt.Errorf("unknown venue reference %q", ref)
	}
}

func depositStatus(dep *cexapi.Deposit) *types.TransactionStatus {
	ts := &types.TransactionStatus{RequiredConfirmations: 1}
	if dep == nil {
		// venue has not seen the transfer yet
		ts.State = types.TxConfirming
		return ts
	}
	switch dep.Status {
	case 1:
		ts.State = types.TxConfirmed
		ts.Confirmations = 1
	case 0, 6:
		ts.State = types.TxConfirming
	default:
		ts.State = types.TxFailed
		ts.Error = fmt.Sprintf("venue reported deposit status %d", dep.Status)
	}
	return ts
}

func orderStatus(order *cexapi.Order) *types.TransactionStatus {
	ts := &types.TransactionStatus{RequiredConfirmations: 1}
	switch order.Status {
	case "FILLED":
		ts.State = types.TxConfirmed
		ts.Confirmations = 1
	case "NEW", "PARTIALLY_FILLED":
		ts.State = types.TxConfirming
	default:
		ts.State = types.TxFailed
		ts.Error = fmt.Sprintf("venue reported order status %s", order.Status)
	}
	return ts
}

func withdrawalStatus(wd *cexapi.Withdrawal) *types.TransactionStatus {
	ts := &types.TransactionStatus{RequiredConfirmations: 1}
	switch wd.Status {
	case "COMPLETED":
		ts.State = types.TxConfirmed
		ts.Confirmations = 1
	case "PROCESSING":
		ts.State = types.TxConfirming
	default:
		ts.State = types.TxFailed
		ts.Error = fmt.Sprintf("venue reported withdrawal status %s", wd.Status)
	}
	return ts
}

// EstimateGas has no meaning for off-chain venue actions
func (e *CEXExecutor) EstimateGas(ctx context.Context, tx *types.UnsignedTransaction, from string) (uint64, error) {
	return 0, ErrNotSupported
}

func (e *CEXExecutor) CheckAllowance(ctx context.Context, chainID, token, owner, spender string) (*big.Int, error) {
	return nil, ErrNotSupported
}

func (e *CEXExecutor) BuildApprovalTransaction(ctx context.Context, chainID, token, spender string, amount *big.Int) (*types.UnsignedTransaction, error) {
	return nil, ErrNotSupported
}
