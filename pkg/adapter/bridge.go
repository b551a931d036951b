package adapter

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"omni-swap/config"
	"omni-swap/pkg/types"
)

// BridgeAdapter fronts one cross-chain bridge aggregator. Quote and build
// are separate network round-trips: the price call returns an opaque route
// id that the later encode call consumes, and the route can only be built
// before its expiry.
type BridgeAdapter struct {
	provider config.BridgeProvider
	chains   map[string]bool
}

// NewBridgeAdapter creates an adapter for one bridge aggregator endpoint
func NewBridgeAdapter(provider config.BridgeProvider) *BridgeAdapter {
	chains := make(map[string]bool, len(provider.Chains))
	for _, c := range provider.Chains {
		chains[c] = true
	}
	return &BridgeAdapter{provider: provider, chains: chains}
}

func (a *BridgeAdapter) Name() string     { return a.provider.Name }
func (a *BridgeAdapter) Type() SourceType { return SourceBridge }

func (a *BridgeAdapter) SupportsChain(chainID string) bool {
	return a.chains[chainID]
}

// CanHandle accepts cross-chain requests where both ends are supported
func (a *BridgeAdapter) CanHandle(params QuoteParams) bool {
	return !params.SameChain() &&
		a.SupportsChain(params.FromToken.ChainID) &&
		a.SupportsChain(params.ToToken.ChainID)
}

// bridge asset references travel as "chain:address" pairs
func bridgeAssetRef(t types.Token) string {
	return t.ChainID + ":" + t.Address
}

type bridgePriceRequest struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Amount      string `json:"amount"`
	FromAddress string `json:"fromAddress"`
}

type bridgePriceResponse struct {
	AmountOut     string `json:"amountOut"`
	Fee           string `json:"fee"`
	EstimatedTime int    `json:"estimatedTime"` // seconds
	RouteID       string `json:"routeId"`
	ExpiresAt     int64  `json:"expiresAt"` // unix seconds
	MinAmount     string `json:"minAmount"`
	MaxAmount     string `json:"maxAmount"`
}

// GetQuote prices the transfer. The returned provider context carries the
// bridge's route id; a quote cannot be rebuilt without it.
func (a *BridgeAdapter) GetQuote(ctx context.Context, params QuoteParams) (*QuoteResult, error) {
	req := bridgePriceRequest{
		From:        bridgeAssetRef(params.FromToken),
		To:          bridgeAssetRef(params.ToToken),
		Amount:      params.AmountIn,
		FromAddress: params.UserAddress,
	}
	var resp bridgePriceResponse
	if err := doJSON(ctx, http.MethodPost, a.provider.BaseURL+"/price", a.provider.APIKey, req, &resp); err != nil {
		return nil, fmt.Errorf("%s price failed: %w", a.provider.Name, err)
	}
	if resp.AmountOut == "" || resp.AmountOut == "0" || resp.RouteID == "" {
		return nil, nil
	}

	est := resp.EstimatedTime
	if est == 0 {
		est = 600
	}
	return &QuoteResult{
		OutputAmount:     resp.AmountOut,
		EstimatedGas:     "0", // bridge fee is taken from the transfer amount
		EstimatedSeconds: est,
		Steps: []types.RouteStep{{
			Kind:             types.StepBridge,
			Protocol:         a.provider.Name,
			From:             params.FromToken,
			To:               params.ToToken,
			FromAmount:       params.AmountIn,
			ToAmount:         resp.AmountOut,
			EstimatedSeconds: est,
		}},
		ProviderContext: resp.RouteID,
	}, nil
}

type bridgeEncodeRequest struct {
	RouteID     string `json:"routeId"`
	FromAddress string `json:"fromAddress"`
	Recipient   string `json:"recipient"`
	ExpireTs    int64  `json:"expireTs"`
}

type bridgeEncodeResponse struct {
	Contract string `json:"contract"`
	Encoded  string `json:"encoded"`
	Value    string `json:"value"`
}

// BuildTransaction performs the bridge's encode round-trip for the route id
// captured at quote time
func (a *BridgeAdapter) BuildTransaction(ctx context.Context, params QuoteParams, quote *QuoteResult) (*types.UnsignedTransaction, error) {
	if quote == nil || quote.ProviderContext == "" {
		return nil, fmt.Errorf("%s: quote has no route id to build from", a.provider.Name)
	}

	recipient := params.Recipient
	if recipient == "" {
		recipient = params.UserAddress
	}
	req := bridgeEncodeRequest{
		RouteID:     quote.ProviderContext,
		FromAddress: params.UserAddress,
		Recipient:   recipient,
		ExpireTs:    time.Now().Add(30 * time.Minute).Unix(),
	}
	var resp bridgeEncodeResponse
	if err := doJSON(ctx, http.MethodPost, a.provider.BaseURL+"/encode", a.provider.APIKey, req, &resp); err != nil {
		return nil, fmt.Errorf("%s encode failed: %w", a.provider.Name, err)
	}

	return &types.UnsignedTransaction{
		ChainID: params.FromToken.ChainID,
		To:      resp.Contract,
		Data:    resp.Encoded,
		Value:   resp.Value,
	}, nil
}

type bridgeStatusResponse struct {
	Status string `json:"status"`
	ToTx   string `json:"toTx"`
}

// GetStatus maps the bridge's status vocabulary onto the shared transaction
// states. The monitor consults this for bridge legs instead of an executor.
func (a *BridgeAdapter) GetStatus(ctx context.Context, txHash string) (*types.TransactionStatus, error) {
	q := url.Values{}
	q.Set("tx", txHash)

	var resp bridgeStatusResponse
	if err := doJSON(ctx, http.MethodGet, a.provider.BaseURL+"/status?"+q.Encode(), a.provider.APIKey, nil, &resp); err != nil {
		return nil, fmt.Errorf("%s status failed: %w", a.provider.Name, err)
	}

	switch resp.Status {
	case "EXECUTED", "RELEASED", "COMPLETED":
		return &types.TransactionStatus{State: types.TxConfirmed}, nil
	case "LOCKED", "BONDED", "RELEASING":
		return &types.TransactionStatus{State: types.TxConfirming}, nil
	case "FAILED", "CANCELLED", "EXPIRED", "REFUNDED":
		return &types.TransactionStatus{State: types.TxFailed, Error: "bridge reported " + resp.Status}, nil
	default:
		return &types.TransactionStatus{State: types.TxPending}, nil
	}
}
