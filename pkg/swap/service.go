// Package swap turns an accepted quote into a broadcast, durably tracked
// execution. The service never signs anything; callers hand in pre-signed
// payloads and the service persists state before it touches the network.
package swap

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"omni-swap/pkg/adapter"
	"omni-swap/pkg/executor"
	"omni-swap/pkg/quote"
	"omni-swap/pkg/types"
)

var (
	// ErrRouteNotFound means the requested source has no route in the quote
	ErrRouteNotFound = errors.New("route not found in quote")

	// ErrNoBuilder means no registered builder handles the route's source
	ErrNoBuilder = errors.New("no transaction builder for source")
)

// TransactionBuilder builds the unsigned transaction for routes from the
// sources it claims. Builders are consulted in registration order and the
// first claimant wins.
type TransactionBuilder interface {
	Name() string
	CanHandle(source string) bool
	Build(ctx context.Context, q *types.Quote, route *types.Route) (*types.UnsignedTransaction, error)
}

// AdapterBuilder builds transactions by handing the route back to the
// adapter that quoted it
type AdapterBuilder struct {
	adapters *adapter.Registry
}

// NewAdapterBuilder creates a builder over the adapter registry
func NewAdapterBuilder(adapters *adapter.Registry) *AdapterBuilder {
	return &AdapterBuilder{adapters: adapters}
}

func (b *AdapterBuilder) Name() string { return "adapter" }

func (b *AdapterBuilder) CanHandle(source string) bool {
	return b.adapters.Get(source) != nil
}

func (b *AdapterBuilder) Build(ctx context.Context, q *types.Quote, route *types.Route) (*types.UnsignedTransaction, error) {
	a := b.adapters.Get(route.Source)
	if a == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoBuilder, route.Source)
	}
	params := adapter.QuoteParams{
		FromToken:   q.Input.Token,
		ToToken:     q.Output.Token,
		AmountIn:    q.Input.Amount,
		SlippageBps: q.SlippageBps,
		UserAddress: q.UserAddress,
		Recipient:   q.Recipient,
	}
	result := &adapter.QuoteResult{
		OutputAmount:    route.OutputAmount,
		ProviderContext: route.ProviderContext,
	}
	return a.BuildTransaction(ctx, params, result)
}

// MonitorNotifier hands a freshly broadcast transaction to the monitoring
// pipeline
type MonitorNotifier interface {
	Track(ctx context.Context, tx *types.MonitoredTransaction) error
}

// BuildRequest asks for the unsigned transaction of one route in a quote
type BuildRequest struct {
	QuoteID string `json:"quote_id"`
	// Source selects a route by adapter name; empty picks the best-return
	// route. Each adapter contributes at most one route per quote, so the
	// name addresses a route as precisely as a positional index would.
	Source string `json:"source,omitempty"`
}

// BuildResult carries the unsigned transaction plus any approval the user
// must broadcast first
type BuildResult struct {
	Transaction         *types.UnsignedTransaction `json:"transaction"`
	ApprovalRequired    bool                       `json:"approval_required"`
	ApprovalTransaction *types.UnsignedTransaction `json:"approval_transaction,omitempty"`
	EstimatedGas        string                     `json:"estimated_gas,omitempty"`
	EstimatedGasUSD     float64                    `json:"estimated_gas_usd,omitempty"`
}

// ExecuteRequest submits a pre-signed transaction for one route in a quote
type ExecuteRequest struct {
	QuoteID string                  `json:"quote_id"`
	Source  string                  `json:"source,omitempty"`
	Signed  types.SignedTransaction `json:"signed_transaction"`
}

// Service coordinates building, persisting and broadcasting swaps
type Service struct {
	quotes    *quote.Service
	store     Store
	executors *executor.Registry
	builders  []TransactionBuilder
	monitor   MonitorNotifier
	feeBps    int
	logger    zerolog.Logger
	now       func() time.Time
}

// NewService creates a swap service. Builders are consulted in the order
// given.
func NewService(quotes *quote.Service, store Store, executors *executor.Registry, monitor MonitorNotifier, feeBps int, logger zerolog.Logger, builders ...TransactionBuilder) *Service {
	return &Service{
		quotes:    quotes,
		store:     store,
		executors: executors,
		builders:  builders,
		monitor:   monitor,
		feeBps:    feeBps,
		logger:    logger.With().Str("component", "swap_service").Logger(),
		now:       time.Now,
	}
}

// selectRoute picks the requested source's route, or the best-return route
// when no source is named
func selectRoute(q *types.Quote, source string) (*types.Route, error) {
	if source == "" {
		for i := range q.Routes {
			if q.Routes[i].HasTag(types.TagBestReturn) {
				return &q.Routes[i], nil
			}
		}
		if len(q.Routes) > 0 {
			return &q.Routes[0], nil
		}
		return nil, ErrRouteNotFound
	}
	for i := range q.Routes {
		if q.Routes[i].Source == source {
			return &q.Routes[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrRouteNotFound, source)
}

func (s *Service) builderFor(source string) TransactionBuilder {
	for _, b := range s.builders {
		if b.CanHandle(source) {
			return b
		}
	}
	return nil
}

// BuildSwapTransaction returns the unsigned transaction for a quoted
// route, plus an approval transaction when the token allowance toward the
// router is insufficient
func (s *Service) BuildSwapTransaction(ctx context.Context, req BuildRequest) (*BuildResult, error) {
	q, err := s.quotes.GetQuoteByID(ctx, req.QuoteID)
	if err != nil {
		return nil, err
	}
	route, err := selectRoute(q, req.Source)
	if err != nil {
		return nil, err
	}

	builder := s.builderFor(route.Source)
	if builder == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoBuilder, route.Source)
	}
	tx, err := builder.Build(ctx, q, route)
	if err != nil {
		return nil, fmt.Errorf("failed to build transaction: %w", err)
	}

	result := &BuildResult{
		Transaction:     tx,
		EstimatedGas:    route.EstimatedGas,
		EstimatedGasUSD: route.EstimatedGasUSD,
	}

	if !q.Input.Token.IsNative() {
		approval, required, err := s.checkApproval(ctx, q, tx)
		if err != nil {
			return nil, err
		}
		result.ApprovalRequired = required
		result.ApprovalTransaction = approval
	}
	return result, nil
}

// checkApproval compares the live allowance toward the transaction target
// against the swap amount. Families without an allowance concept skip the
// check entirely.
func (s *Service) checkApproval(ctx context.Context, q *types.Quote, tx *types.UnsignedTransaction) (*types.UnsignedTransaction, bool, error) {
	exec, err := s.executors.GetExecutorForChain(tx.ChainID)
	if err != nil {
		return nil, false, err
	}

	allowance, err := exec.CheckAllowance(ctx, tx.ChainID, q.Input.Token.Address, q.UserAddress, tx.To)
	if errors.Is(err, executor.ErrNotSupported) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to check allowance: %w", err)
	}

	amount, ok := new(big.Int).SetString(q.Input.Amount, 10)
	if !ok {
		return nil, false, fmt.Errorf("invalid input amount: %s", q.Input.Amount)
	}
	if allowance.Cmp(amount) >= 0 {
		return nil, false, nil
	}

	approval, err := exec.BuildApprovalTransaction(ctx, tx.ChainID, q.Input.Token.Address, tx.To, amount)
	if err != nil {
		return nil, false, fmt.Errorf("failed to build approval transaction: %w", err)
	}
	return approval, true, nil
}

// monitorFamily classifies the tracked leg. A route with a bridge step is
// tracked through the bridge provider's status API until the destination
// leg lands; everything else follows the broadcasting executor's family.
func monitorFamily(route *types.Route, broadcast types.ChainFamily) types.ChainFamily {
	for _, step := range route.Steps {
		if step.Kind == types.StepBridge {
			return types.FamilyBridge
		}
	}
	return broadcast
}

// feeAmount computes the platform fee on the input amount in base units
func (s *Service) feeAmount(amountIn string) string {
	amount, ok := new(big.Int).SetString(amountIn, 10)
	if !ok {
		return ""
	}
	fee := new(big.Int).Mul(amount, big.NewInt(int64(s.feeBps)))
	fee.Div(fee, big.NewInt(10000))
	return fee.String()
}

// ExecuteSwap persists a PENDING swap record, then broadcasts the signed
// payload. The record exists before the first network call, so a crash
// mid-broadcast can never lose a swap. Broadcast failure moves the record
// to FAILED and nothing enters monitoring.
func (s *Service) ExecuteSwap(ctx context.Context, req ExecuteRequest) (*types.Swap, error) {
	q, err := s.quotes.GetQuoteByID(ctx, req.QuoteID)
	if err != nil {
		return nil, err
	}
	route, err := selectRoute(q, req.Source)
	if err != nil {
		return nil, err
	}

	exec, err := s.executors.GetExecutorForChain(req.Signed.ChainID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	sw := &types.Swap{
		ID:          uuid.NewString(),
		Status:      types.SwapPending,
		Input:       q.Input,
		Output:      types.TokenAmount{Token: q.Output.Token, Amount: route.OutputAmount},
		RouteSource: route.Source,
		FeeBps:      s.feeBps,
		FeeAmount:   s.feeAmount(q.Input.Amount),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Insert(ctx, sw); err != nil {
		return nil, fmt.Errorf("failed to persist swap: %w", err)
	}

	result, err := exec.ExecuteTransaction(ctx, req.Signed)
	if err != nil {
		s.logger.Error().Err(err).Str("swap_id", sw.ID).Msg("broadcast failed")
		if uerr := s.store.UpdateStatus(ctx, sw.ID, types.SwapFailed, "", 0, err.Error()); uerr != nil {
			s.logger.Error().Err(uerr).Str("swap_id", sw.ID).Msg("failed to mark swap failed")
		}
		sw.Status = types.SwapFailed
		sw.ErrorMessage = err.Error()
		return sw, err
	}

	ref := result.TxHash
	if ref == "" {
		ref = result.PendingID
	}
	if err := s.store.UpdateStatus(ctx, sw.ID, types.SwapConfirming, ref, 0, ""); err != nil {
		return nil, fmt.Errorf("failed to update swap: %w", err)
	}
	sw.Status = types.SwapConfirming
	sw.TxHash = ref

	entry := &types.MonitoredTransaction{
		SwapID:    sw.ID,
		StepIndex: 0,
		ChainID:   req.Signed.ChainID,
		TxHash:    ref,
		Family:    monitorFamily(route, exec.Family()),
		StartedAt: now,
	}
	if err := s.monitor.Track(ctx, entry); err != nil {
		s.logger.Error().Err(err).Str("swap_id", sw.ID).Msg("failed to enqueue transaction for monitoring")
	}

	s.logger.Info().
		Str("swap_id", sw.ID).
		Str("source", route.Source).
		Str("tx_hash", ref).
		Msg("swap broadcast")
	return sw, nil
}

// GetSwapStatus loads the durable record for a swap
func (s *Service) GetSwapStatus(ctx context.Context, id string) (*types.Swap, error) {
	return s.store.GetByID(ctx, id)
}
