package adapter

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"omni-swap/config"
	"omni-swap/pkg/types"
)

// DEXAggregatorAdapter fronts one same-chain DEX aggregator HTTP API.
// Multiple instances register under distinct provider names.
type DEXAggregatorAdapter struct {
	provider config.DEXProvider
	chains   map[string]bool
}

// NewDEXAggregatorAdapter creates an adapter for one provider endpoint
func NewDEXAggregatorAdapter(provider config.DEXProvider) *DEXAggregatorAdapter {
	chains := make(map[string]bool, len(provider.Chains))
	for _, c := range provider.Chains {
		chains[c] = true
	}
	return &DEXAggregatorAdapter{provider: provider, chains: chains}
}

func (a *DEXAggregatorAdapter) Name() string     { return a.provider.Name }
func (a *DEXAggregatorAdapter) Type() SourceType { return SourceDEX }

func (a *DEXAggregatorAdapter) SupportsChain(chainID string) bool {
	return a.chains[chainID]
}

// CanHandle accepts same-chain requests on a supported chain
func (a *DEXAggregatorAdapter) CanHandle(params QuoteParams) bool {
	return params.SameChain() && a.SupportsChain(params.FromToken.ChainID)
}

type dexQuoteResponse struct {
	ToAmount       string `json:"toAmount"`
	PriceImpactBps int    `json:"priceImpactBps"`
	EstimatedGas   string `json:"estimatedGas"`
	RouteID        string `json:"routeId"`
}

// GetQuote prices the swap against the aggregator's quote endpoint
func (a *DEXAggregatorAdapter) GetQuote(ctx context.Context, params QuoteParams) (*QuoteResult, error) {
	q := url.Values{}
	q.Set("chainId", params.FromToken.ChainID)
	q.Set("fromToken", tokenAddressParam(params.FromToken))
	q.Set("toToken", tokenAddressParam(params.ToToken))
	q.Set("amount", params.AmountIn)
	q.Set("slippageBps", fmt.Sprintf("%d", params.SlippageBps))

	var resp dexQuoteResponse
	if err := doJSON(ctx, http.MethodGet, a.provider.BaseURL+"/quote?"+q.Encode(), a.provider.APIKey, nil, &resp); err != nil {
		return nil, fmt.Errorf("%s quote failed: %w", a.provider.Name, err)
	}
	if resp.ToAmount == "" || resp.ToAmount == "0" {
		return nil, nil
	}

	return &QuoteResult{
		OutputAmount:     resp.ToAmount,
		PriceImpactBps:   resp.PriceImpactBps,
		EstimatedGas:     resp.EstimatedGas,
		EstimatedSeconds: 30, // one block-ish; same-chain swaps settle fast
		Steps: []types.RouteStep{{
			Kind:             types.StepSwap,
			Protocol:         a.provider.Name,
			From:             params.FromToken,
			To:               params.ToToken,
			FromAmount:       params.AmountIn,
			ToAmount:         resp.ToAmount,
			EstimatedSeconds: 30,
		}},
		ProviderContext: resp.RouteID,
	}, nil
}

type dexBuildRequest struct {
	ChainID     string `json:"chainId"`
	RouteID     string `json:"routeId"`
	UserAddress string `json:"userAddress"`
	SlippageBps int    `json:"slippageBps"`
}

type dexBuildResponse struct {
	To       string `json:"to"`
	Data     string `json:"data"`
	Value    string `json:"value"`
	GasLimit string `json:"gasLimit"`
}

// BuildTransaction asks the aggregator to encode the previously quoted route
func (a *DEXAggregatorAdapter) BuildTransaction(ctx context.Context, params QuoteParams, quote *QuoteResult) (*types.UnsignedTransaction, error) {
	if quote == nil || quote.ProviderContext == "" {
		return nil, fmt.Errorf("%s: quote has no route context to build from", a.provider.Name)
	}

	req := dexBuildRequest{
		ChainID:     params.FromToken.ChainID,
		RouteID:     quote.ProviderContext,
		UserAddress: params.UserAddress,
		SlippageBps: params.SlippageBps,
	}
	var resp dexBuildResponse
	if err := doJSON(ctx, http.MethodPost, a.provider.BaseURL+"/build", a.provider.APIKey, req, &resp); err != nil {
		return nil, fmt.Errorf("%s build failed: %w", a.provider.Name, err)
	}

	return &types.UnsignedTransaction{
		ChainID:  params.FromToken.ChainID,
		To:       resp.To,
		Data:     resp.Data,
		Value:    resp.Value,
		GasLimit: resp.GasLimit,
	}, nil
}

// tokenAddressParam maps the native-asset sentinel to the conventional
// aggregator placeholder address
func tokenAddressParam(t types.Token) string {
	if t.IsNative() {
		return "0xeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee"
	}
	return t.Address
}
