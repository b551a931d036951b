package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"omni-swap/config"
	"omni-swap/pkg/cexapi"
	"omni-swap/pkg/types"
)

const (
	cexTradeSeconds           = 30
	defaultCEXTransferSeconds = 600
)

// quote assets probed, in order, when no direct pair is listed
var fallbackQuoteAssets = []string{"USDT", "USDC"}

// TradeHop is one venue order in a discovered trading path. Side records the
// direction explicitly: SELL means we hold the base asset and receive the
// quote asset, BUY the reverse. The direction decides whether the pair's
// last price is applied directly or inverted.
type TradeHop struct {
	Symbol string `json:"symbol"`
	Base   string `json:"base"`
	Quote  string `json:"quote"`
	Side   string `json:"side"` // BUY | SELL
}

// cexContext is the provider context a CEX quote carries into build/execute
type cexContext struct {
	Venue string     `json:"venue"`
	Hops  []TradeHop `json:"hops"`
}

// CEXAdapter routes a swap through a centralized exchange: deposit on the
// source chain, one or two market trades, withdrawal on the destination
// chain. It accepts same-chain and cross-chain requests alike.
type CEXAdapter struct {
	venue  config.CEXVenue
	client *cexapi.Client
	chains map[string]bool
}

// NewCEXAdapter creates an adapter for one venue
func NewCEXAdapter(venue config.CEXVenue) *CEXAdapter {
	chains := make(map[string]bool)
	for c := range venue.DepositSeconds {
		chains[c] = true
	}
	for c := range venue.WithdrawSeconds {
		chains[c] = true
	}
	return &CEXAdapter{
		venue:  venue,
		client: cexapi.NewClient(venue),
		chains: chains,
	}
}

func (a *CEXAdapter) Name() string           { return "cex-" + a.venue.Name }
func (a *CEXAdapter) Type() SourceType       { return SourceCEX }
func (a *CEXAdapter) Client() *cexapi.Client { return a.client }

func (a *CEXAdapter) SupportsChain(chainID string) bool {
	return a.chains[chainID]
}

// CanHandle accepts any direction as long as the venue can receive on the
// source chain and pay out on the destination chain
func (a *CEXAdapter) CanHandle(params QuoteParams) bool {
	_, depositOK := a.venue.DepositSeconds[params.FromToken.ChainID]
	_, withdrawOK := a.venue.WithdrawSeconds[params.ToToken.ChainID]
	return depositOK && withdrawOK
}

// findTradingPath probes direct-pair existence first, then falls back to
// routing through a shared quote asset
func (a *CEXAdapter) findTradingPath(ctx context.Context, from, to string) ([]TradeHop, error) {
	if hop, err := a.probePair(ctx, from, to); err != nil {
		return nil, err
	} else if hop != nil {
		return []TradeHop{*hop}, nil
	}

	for _, mid := range fallbackQuoteAssets {
		if from == mid || to == mid {
			continue
		}
		first, err := a.probePair(ctx, from, mid)
		if err != nil {
			return nil, err
		}
		if first == nil {
			continue
		}
		second, err := a.probePair(ctx, mid, to)
		if err != nil {
			return nil, err
		}
		if second == nil {
			continue
		}
		return []TradeHop{*first, *second}, nil
	}
	return nil, nil
}

// probePair checks both orderings of a pair and returns the hop that
// converts `from` into `to`, or nil when the venue lists neither
func (a *CEXAdapter) probePair(ctx context.Context, from, to string) (*TradeHop, error) {
	pair, err := a.client.GetPair(ctx, from+to)
	if err != nil {
		return nil, err
	}
	if pair != nil {
		// we hold the base asset: sell it for the quote asset
		return &TradeHop{Symbol: pair.Symbol, Base: from, Quote: to, Side: "SELL"}, nil
	}

	pair, err = a.client.GetPair(ctx, to+from)
	if err != nil {
		return nil, err
	}
	if pair != nil {
		// we hold the quote asset: buy the base asset
		return &TradeHop{Symbol: pair.Symbol, Base: to, Quote: from, Side: "BUY"}, nil
	}
	return nil, nil
}

// composeHopPrice converts an amount through one hop using the pair's last
// price. Selling the base applies the price directly; buying the base means
// we are selling into the quoted side, so the inverse applies.
func composeHopPrice(amount, lastPrice decimal.Decimal, side string) (decimal.Decimal, error) {
	if lastPrice.IsZero() {
		return decimal.Zero, fmt.Errorf("zero last price")
	}
	if side == "SELL" {
		return amount.Mul(lastPrice), nil
	}
	return amount.Div(lastPrice), nil
}

// GetQuote prices the deposit/trade/withdraw path and synthesizes its three
// route steps, each with its own completion estimate
func (a *CEXAdapter) GetQuote(ctx context.Context, params QuoteParams) (*QuoteResult, error) {
	fromAsset := strings.ToUpper(params.FromToken.Symbol)
	toAsset := strings.ToUpper(params.ToToken.Symbol)

	hops, err := a.findTradingPath(ctx, fromAsset, toAsset)
	if err != nil {
		return nil, fmt.Errorf("%s path discovery failed: %w", a.Name(), err)
	}
	if hops == nil {
		return nil, nil
	}

	amountIn, err := parseBigInt(params.AmountIn)
	if err != nil {
		return nil, err
	}
	amount := decimal.NewFromBigInt(amountIn, -int32(params.FromToken.Decimals))

	for _, hop := range hops {
		priceStr, err := a.client.LastPrice(ctx, hop.Symbol)
		if err != nil {
			return nil, fmt.Errorf("%s price lookup failed for %s: %w", a.Name(), hop.Symbol, err)
		}
		price, err := decimal.NewFromString(priceStr)
		if err != nil {
			return nil, fmt.Errorf("%s returned invalid price for %s: %w", a.Name(), hop.Symbol, err)
		}
		amount, err = composeHopPrice(amount, price, hop.Side)
		if err != nil {
			return nil, fmt.Errorf("%s hop %s: %w", a.Name(), hop.Symbol, err)
		}
	}

	// the venue's payout fee comes off before any minimum-output math
	feeStr, err := a.client.WithdrawFee(ctx, toAsset, params.ToToken.ChainID)
	if err != nil {
		return nil, fmt.Errorf("%s withdraw fee lookup failed: %w", a.Name(), err)
	}
	fee, err := decimal.NewFromString(feeStr)
	if err != nil {
		return nil, fmt.Errorf("%s returned invalid withdraw fee: %w", a.Name(), err)
	}
	amount = amount.Sub(fee)
	if amount.Sign() <= 0 {
		// amount too small to survive the payout fee
		return nil, nil
	}

	outputAmount := amount.Shift(int32(params.ToToken.Decimals)).Floor().String()

	depositSec := a.venue.DepositSeconds[params.FromToken.ChainID]
	if depositSec == 0 {
		depositSec = defaultCEXTransferSeconds
	}
	withdrawSec := a.venue.WithdrawSeconds[params.ToToken.ChainID]
	if withdrawSec == 0 {
		withdrawSec = defaultCEXTransferSeconds
	}

	venueToken := func(symbol string) types.Token {
		return types.Token{
			ChainID: types.CEXChainPrefix + a.venue.Name,
			Symbol:  symbol,
			Name:    symbol,
		}
	}

	steps := []types.RouteStep{
		{
			Kind:             types.StepCEXDeposit,
			Protocol:         a.venue.Name,
			From:             params.FromToken,
			To:               venueToken(fromAsset),
			FromAmount:       params.AmountIn,
			ToAmount:         params.AmountIn,
			EstimatedSeconds: depositSec,
		},
		{
			Kind:             types.StepCEXTrade,
			Protocol:         a.venue.Name,
			From:             venueToken(fromAsset),
			To:               venueToken(toAsset),
			FromAmount:       params.AmountIn,
			ToAmount:         outputAmount,
			EstimatedSeconds: cexTradeSeconds,
		},
		{
			Kind:             types.StepCEXWithdraw,
			Protocol:         a.venue.Name,
			From:             venueToken(toAsset),
			To:               params.ToToken,
			FromAmount:       outputAmount,
			ToAmount:         outputAmount,
			EstimatedSeconds: withdrawSec,
		},
	}

	cctx, err := json.Marshal(cexContext{Venue: a.venue.Name, Hops: hops})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal venue context: %w", err)
	}

	return &QuoteResult{
		OutputAmount:     outputAmount,
		EstimatedGas:     "0",
		EstimatedSeconds: depositSec + cexTradeSeconds + withdrawSec,
		Steps:            steps,
		ProviderContext:  string(cctx),
	}, nil
}

// BuildTransaction resolves the venue's deposit address; the returned
// payload is the on-chain transfer the source chain's executor broadcasts
func (a *CEXAdapter) BuildTransaction(ctx context.Context, params QuoteParams, quote *QuoteResult) (*types.UnsignedTransaction, error) {
	if quote == nil || quote.ProviderContext == "" {
		return nil, fmt.Errorf("%s: quote has no venue context to build from", a.Name())
	}

	fromAsset := strings.ToUpper(params.FromToken.Symbol)
	addr, err := a.client.DepositAddress(ctx, fromAsset, params.FromToken.ChainID)
	if err != nil {
		return nil, fmt.Errorf("%s deposit address lookup failed: %w", a.Name(), err)
	}

	return depositTransfer(params.FromToken, addr, params.AmountIn)
}

// ParseCEXContext decodes the provider context a CEX quote carries
func ParseCEXContext(raw string) (venue string, hops []TradeHop, err error) {
	var c cexContext
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return "", nil, fmt.Errorf("invalid venue context: %w", err)
	}
	return c.Venue, c.Hops, nil
}
