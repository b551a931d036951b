package adapter

import (
	"context"

	"omni-swap/pkg/types"
)

// SourceType classifies what kind of liquidity source an adapter fronts
type SourceType string

const (
	SourceDEX    SourceType = "dex"    // same-chain only
	SourceBridge SourceType = "bridge" // cross-chain only
	SourceCEX    SourceType = "cex"    // either direction
)

// QuoteParams describes one requested swap
type QuoteParams struct {
	FromToken   types.Token
	ToToken     types.Token
	AmountIn    string // base units
	SlippageBps int
	UserAddress string
	Recipient   string
}

// SameChain reports whether both legs live on the same chain
func (p QuoteParams) SameChain() bool {
	return p.FromToken.ChainID == p.ToToken.ChainID
}

// QuoteResult is one adapter's answer to a quote request. A nil result with
// a nil error means the source has no route for the pair.
type QuoteResult struct {
	OutputAmount     string
	PriceImpactBps   int
	EstimatedGas     string
	EstimatedSeconds int
	Steps            []types.RouteStep

	// ProviderContext must round-trip into BuildTransaction for two-phase
	// providers; without it the quote cannot be built.
	ProviderContext string
}

// Adapter integrates one external liquidity source behind a common
// quote/build contract. Every outbound call must honor ctx deadlines.
type Adapter interface {
	// Name is the stable route-source identifier
	Name() string

	// Type classifies the source for direction filtering
	Type() SourceType

	// SupportsChain reports whether the adapter serves the given chain
	SupportsChain(chainID string) bool

	// CanHandle is the cheap local predicate consulted before GetQuote
	CanHandle(params QuoteParams) bool

	// GetQuote prices the swap. (nil, nil) means no route.
	GetQuote(ctx context.Context, params QuoteParams) (*QuoteResult, error)

	// BuildTransaction turns a previously returned quote into an unsigned
	// payload. Two-phase providers perform a second network round-trip here.
	BuildTransaction(ctx context.Context, params QuoteParams, quote *QuoteResult) (*types.UnsignedTransaction, error)
}

// directionAllowed applies the per-type direction rule: bridges require
// cross-chain, plain DEXes require same-chain, CEX sources accept either.
func directionAllowed(t SourceType, params QuoteParams) bool {
	switch t {
	case SourceDEX:
		return params.SameChain()
	case SourceBridge:
		return !params.SameChain()
	case SourceCEX:
		return true
	}
	return false
}
