package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	oneclick "github.com/defuse-protocol/one-click-sdk-go"

	"omni-swap/pkg/types"
)

// chain ids mapped onto the intents API's blockchain slugs
var oneClickBlockchains = map[string]string{
	"1":               "eth",
	"8453":            "base",
	"42161":           "arb",
	types.ChainSolana: "sol",
}

// OneClickAdapter bridges through the NEAR intents 1Click API. Like other
// two-phase providers the pricing call is a dry run; the build call requests
// the real quote, whose deposit address is the transaction target.
type OneClickAdapter struct {
	client *oneclick.APIClient
	ctx    context.Context
}

// NewOneClickAdapter creates an adapter authenticated with the given JWT
func NewOneClickAdapter(jwtToken string) *OneClickAdapter {
	cfg := oneclick.NewConfiguration()
	ctx := context.WithValue(context.Background(), oneclick.ContextAccessToken, jwtToken)
	return &OneClickAdapter{
		client: oneclick.NewAPIClient(cfg),
		ctx:    ctx,
	}
}

func (a *OneClickAdapter) Name() string     { return "oneclick" }
func (a *OneClickAdapter) Type() SourceType { return SourceBridge }

func (a *OneClickAdapter) SupportsChain(chainID string) bool {
	_, ok := oneClickBlockchains[chainID]
	return ok
}

func (a *OneClickAdapter) CanHandle(params QuoteParams) bool {
	return !params.SameChain() &&
		a.SupportsChain(params.FromToken.ChainID) &&
		a.SupportsChain(params.ToToken.ChainID)
}

// findAsset resolves a token to the API's asset id by symbol and blockchain
func (a *OneClickAdapter) findAsset(ctx context.Context, token types.Token) (*oneclick.TokenResponse, error) {
	resp, httpResp, err := a.client.OneClickAPI.GetTokens(a.authCtx(ctx)).Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to get tokens: %w", err)
	}
	defer httpResp.Body.Close()

	symbol := strings.ToUpper(token.Symbol)
	blockchain := oneClickBlockchains[token.ChainID]
	for _, t := range resp {
		if strings.ToUpper(t.GetSymbol()) == symbol && strings.ToLower(t.GetBlockchain()) == blockchain {
			return &t, nil
		}
	}
	return nil, nil
}

// authCtx layers the SDK's access token onto the caller's context so
// deadlines still apply
func (a *OneClickAdapter) authCtx(ctx context.Context) context.Context {
	return context.WithValue(ctx, oneclick.ContextAccessToken, a.ctx.Value(oneclick.ContextAccessToken))
}

type oneClickContext struct {
	OriginAsset      string `json:"origin_asset"`
	DestinationAsset string `json:"destination_asset"`
	Amount           string `json:"amount"`
}

// requestQuote issues one quote call; dry runs price without reserving a
// deposit address
func (a *OneClickAdapter) requestQuote(ctx context.Context, params QuoteParams, origin, destination string, dry bool) (*oneclick.QuoteResponse, error) {
	recipient := params.Recipient
	if recipient == "" {
		recipient = params.UserAddress
	}
	refundTo := params.UserAddress

	deadline := time.Now().Add(24 * time.Hour)
	quoteReq := oneclick.NewQuoteRequest(
		dry,
		"EXACT_INPUT",
		float32(params.SlippageBps),
		origin,
		"ORIGIN_CHAIN",
		destination,
		params.AmountIn,
		refundTo,
		"ORIGIN_CHAIN",
		recipient,
		"DESTINATION_CHAIN",
		deadline,
	)

	resp, httpResp, err := a.client.OneClickAPI.GetQuote(a.authCtx(ctx)).QuoteRequest(*quoteReq).Execute()
	if err != nil {
		return nil, fmt.Errorf("quote request failed: %w", err)
	}
	defer httpResp.Body.Close()
	if resp == nil {
		return nil, fmt.Errorf("empty quote response")
	}
	return resp, nil
}

// GetQuote prices the transfer with a dry-run quote
func (a *OneClickAdapter) GetQuote(ctx context.Context, params QuoteParams) (*QuoteResult, error) {
	origin, err := a.findAsset(ctx, params.FromToken)
	if err != nil {
		return nil, err
	}
	destination, err := a.findAsset(ctx, params.ToToken)
	if err != nil {
		return nil, err
	}
	if origin == nil || destination == nil {
		// pair not supported by the intents network
		return nil, nil
	}

	resp, err := a.requestQuote(ctx, params, origin.GetAssetId(), destination.GetAssetId(), true)
	if err != nil {
		return nil, err
	}
	q := resp.GetQuote()
	amountOut := q.GetAmountOut()
	if amountOut == "" || amountOut == "0" {
		return nil, nil
	}

	cctx, err := json.Marshal(oneClickContext{
		OriginAsset:      origin.GetAssetId(),
		DestinationAsset: destination.GetAssetId(),
		Amount:           params.AmountIn,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal provider context: %w", err)
	}

	const estSeconds = 300
	return &QuoteResult{
		OutputAmount:     amountOut,
		EstimatedGas:     "0",
		EstimatedSeconds: estSeconds,
		Steps: []types.RouteStep{{
			Kind:             types.StepBridge,
			Protocol:         "oneclick",
			From:             params.FromToken,
			To:               params.ToToken,
			FromAmount:       params.AmountIn,
			ToAmount:         amountOut,
			EstimatedSeconds: estSeconds,
		}},
		ProviderContext: string(cctx),
	}, nil
}

// BuildTransaction requests the real quote. Its deposit address becomes the
// transfer target on the origin chain.
func (a *OneClickAdapter) BuildTransaction(ctx context.Context, params QuoteParams, quote *QuoteResult) (*types.UnsignedTransaction, error) {
	if quote == nil || quote.ProviderContext == "" {
		return nil, fmt.Errorf("oneclick: quote has no provider context to build from")
	}

	var cctx oneClickContext
	if err := json.Unmarshal([]byte(quote.ProviderContext), &cctx); err != nil {
		return nil, fmt.Errorf("oneclick: invalid provider context: %w", err)
	}

	resp, err := a.requestQuote(ctx, params, cctx.OriginAsset, cctx.DestinationAsset, false)
	if err != nil {
		return nil, err
	}
	q := resp.GetQuote()
	depositAddress := q.GetDepositAddress()
	if depositAddress == "" {
		return nil, fmt.Errorf("oneclick: no deposit address in quote response")
	}

	return depositTransfer(params.FromToken, depositAddress, params.AmountIn)
}

// GetStatus maps the intents execution status onto the shared transaction
// states. The reference is the deposit address captured at build time.
func (a *OneClickAdapter) GetStatus(ctx context.Context, depositAddress string) (*types.TransactionStatus, error) {
	resp, httpResp, err := a.client.OneClickAPI.GetExecutionStatus(a.authCtx(ctx)).DepositAddress(depositAddress).Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to get status: %w", err)
	}
	defer httpResp.Body.Close()

	switch resp.GetStatus() {
	case "SUCCESS", "COMPLETED":
		return &types.TransactionStatus{State: types.TxConfirmed}, nil
	case "FAILED", "REFUNDED":
		return &types.TransactionStatus{State: types.TxFailed, Error: "intents reported " + resp.GetStatus()}, nil
	case "PROCESSING", "KNOWN_DEPOSIT_TX", "INCOMPLETE_DEPOSIT":
		return &types.TransactionStatus{State: types.TxConfirming}, nil
	default:
		return &types.TransactionStatus{State: types.TxPending}, nil
	}
}
