package types

import (
	"fmt"
	"math/big"
	"time"
)

// ChainFamily identifies which transaction/finality model a chain uses
type ChainFamily string

const (
	FamilyEVM    ChainFamily = "evm"
	FamilySolana ChainFamily = "solana"
	FamilySui    ChainFamily = "sui"
	FamilyCEX    ChainFamily = "cex"
	FamilyBridge ChainFamily = "bridge"
)

// Well-known chain ids. EVM chains use their decimal chain id as a string;
// centralized venues use a reserved "cex:" pseudo-chain prefix.
const (
	ChainSolana = "solana"
	ChainSui    = "sui"

	CEXChainPrefix = "cex:"
)

// IsCEXChain reports whether a chain id addresses a centralized venue
func IsCEXChain(chainID string) bool {
	return len(chainID) > len(CEXChainPrefix) && chainID[:len(CEXChainPrefix)] == CEXChainPrefix
}

// Token identifies an asset on a specific chain
type Token struct {
	ChainID  string `json:"chain_id"`
	Address  string `json:"address"` // empty = native asset
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Decimals int    `json:"decimals"`
}

// IsNative returns true for the chain's native asset (no contract address)
func (t Token) IsNative() bool {
	return t.Address == ""
}

// TokenAmount pairs a token with a base-unit amount
type TokenAmount struct {
	Token  Token  `json:"token"`
	Amount string `json:"amount"` // base units, decimal string
}

// StepKind classifies one leg of a route
type StepKind string

const (
	StepSwap        StepKind = "swap"
	StepBridge      StepKind = "bridge"
	StepCEXDeposit  StepKind = "cex-deposit"
	StepCEXTrade    StepKind = "cex-trade"
	StepCEXWithdraw StepKind = "cex-withdraw"
)

// RouteStep is one leg of a route
type RouteStep struct {
	Kind             StepKind `json:"kind"`
	Protocol         string   `json:"protocol"`
	From             Token    `json:"from"`
	To               Token    `json:"to"`
	FromAmount       string   `json:"from_amount"`
	ToAmount         string   `json:"to_amount"`
	EstimatedSeconds int      `json:"estimated_seconds"`
}

// RouteTag marks a route as best along one ranking dimension
type RouteTag string

const (
	TagBestReturn RouteTag = "BEST_RETURN"
	TagFastest    RouteTag = "FASTEST"
	TagCheapest   RouteTag = "CHEAPEST"
)

// Route is a priced path from input to output token/chain via one source
type Route struct {
	Source           string      `json:"source"` // adapter name
	OutputAmount     string      `json:"output_amount"`
	PriceImpactBps   int         `json:"price_impact_bps"`
	EstimatedGas     string      `json:"estimated_gas"`
	EstimatedGasUSD  float64     `json:"estimated_gas_usd"`
	EstimatedSeconds int         `json:"estimated_seconds"`
	Steps            []RouteStep `json:"steps"`
	Tags             []RouteTag  `json:"tags"`

	// ProviderContext is the opaque payload a two-phase provider needs to
	// build the transaction later. A route cannot be built without it.
	ProviderContext string `json:"provider_context,omitempty"`
}

// HasTag reports whether the route carries the given tag
func (r *Route) HasTag(tag RouteTag) bool {
	for _, t := range r.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// AddTag appends a tag if not already present
func (r *Route) AddTag(tag RouteTag) {
	if !r.HasTag(tag) {
		r.Tags = append(r.Tags, tag)
	}
}

// OutputAmountInt parses the output amount as an arbitrary-precision integer
func (r *Route) OutputAmountInt() (*big.Int, error) {
	v, ok := new(big.Int).SetString(r.OutputAmount, 10)
	if !ok {
		return nil, fmt.Errorf("invalid output amount: %s", r.OutputAmount)
	}
	return v, nil
}

// Quote is a time-boxed bundle of ranked routes. It is immutable once
// created; refreshing derives a brand-new quote, never a partial update.
type Quote struct {
	ID             string      `json:"id"`
	Input          TokenAmount `json:"input"`
	Output         TokenAmount `json:"output"` // best route's output
	Routes         []Route     `json:"routes"`
	PlatformFeeBps int         `json:"platform_fee_bps"`
	SlippageBps    int         `json:"slippage_bps"`
	CreatedAt      time.Time   `json:"created_at"`
	ExpiresAt      time.Time   `json:"expires_at"`

	// display-only USD valuations; never involved in ranking
	InputUSD  float64 `json:"input_usd,omitempty"`
	OutputUSD float64 `json:"output_usd,omitempty"`

	// original request context, kept so a refresh can re-derive a brand-new
	// quote from the same parameters
	UserAddress    string   `json:"user_address,omitempty"`
	Recipient      string   `json:"recipient,omitempty"`
	IncludeSources []string `json:"include_sources,omitempty"`
	ExcludeSources []string `json:"exclude_sources,omitempty"`
	PreferSources  []string `json:"prefer_sources,omitempty"`
}

// Expired reports whether the quote is past its expiry at the given instant
func (q *Quote) Expired(now time.Time) bool {
	return now.After(q.ExpiresAt)
}

// SwapStatus is the lifecycle state of a swap execution attempt
type SwapStatus string

const (
	SwapPending    SwapStatus = "PENDING"
	SwapConfirming SwapStatus = "CONFIRMING"
	SwapConfirmed  SwapStatus = "CONFIRMED"
	SwapFailed     SwapStatus = "FAILED"
)

// IsTerminal reports whether no further transitions are allowed
func (s SwapStatus) IsTerminal() bool {
	return s == SwapConfirmed || s == SwapFailed
}

// CanTransition enforces the forward-only lifecycle:
// PENDING -> CONFIRMING -> {CONFIRMED, FAILED}, PENDING -> FAILED.
func (s SwapStatus) CanTransition(to SwapStatus) bool {
	if s.IsTerminal() {
		return false
	}
	switch s {
	case SwapPending:
		return to == SwapConfirming || to == SwapFailed
	case SwapConfirming:
		return to == SwapConfirmed || to == SwapFailed
	}
	return false
}

// Swap is the durable record of one execution attempt
type Swap struct {
	ID           string      `json:"id"`
	Status       SwapStatus  `json:"status"`
	Input        TokenAmount `json:"input"`
	Output       TokenAmount `json:"output"`
	RouteSource  string      `json:"route_source"`
	TxHash       string      `json:"tx_hash,omitempty"`
	BlockNumber  int64       `json:"block_number,omitempty"`
	FeeBps       int         `json:"fee_bps"`
	FeeAmount    string      `json:"fee_amount,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
	ErrorMessage string      `json:"error_message,omitempty"`
}

// MonitoredTransaction is a tracked in-flight broadcast awaiting a terminal
// status. Entries live in memory and are mirrored into the durable store
// keyed by swapId:stepIndex.
type MonitoredTransaction struct {
	SwapID      string      `json:"swap_id"`
	StepIndex   int         `json:"step_index"`
	ChainID     string      `json:"chain_id"`
	TxHash      string      `json:"tx_hash"`
	Family      ChainFamily `json:"family"`
	StartedAt   time.Time   `json:"started_at"`
	LastChecked time.Time   `json:"last_checked"`
}

// Key returns the durable store key for this entry
func (m *MonitoredTransaction) Key() string {
	return fmt.Sprintf("%s:%d", m.SwapID, m.StepIndex)
}
