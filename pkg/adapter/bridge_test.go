package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"omni-swap/config"
	"omni-swap/pkg/types"
)

func newTestBridge(t *testing.T, handler http.Handler) *BridgeAdapter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewBridgeAdapter(config.BridgeProvider{
		Name:    "bridge-x",
		BaseURL: srv.URL,
		Chains:  []string{"1", "8453", types.ChainSolana},
	})
}

func bridgeParams() QuoteParams {
	return QuoteParams{
		FromToken:   types.Token{ChainID: "1", Symbol: "USDC", Address: "0xusdc", Decimals: 6},
		ToToken:     types.Token{ChainID: "8453", Symbol: "USDC", Address: "0xbase", Decimals: 6},
		AmountIn:    "250000000",
		UserAddress: "0xuser",
	}
}

func TestBridgeCanHandleCrossChainOnly(t *testing.T) {
	a := NewBridgeAdapter(config.BridgeProvider{Name: "bridge-x", Chains: []string{"1", "8453"}})

	assert.True(t, a.CanHandle(bridgeParams()))

	same := bridgeParams()
	same.ToToken.ChainID = "1"
	assert.False(t, a.CanHandle(same))

	unsupported := bridgeParams()
	unsupported.ToToken.ChainID = types.ChainSui
	assert.False(t, a.CanHandle(unsupported))
}

func TestBridgeQuoteAndBuildRoundTripRouteID(t *testing.T) {
	var encodeReq bridgeEncodeRequest
	a := newTestBridge(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/price":
			var req bridgePriceRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "1:0xusdc", req.From)
			assert.Equal(t, "8453:0xbase", req.To)
			fmt.Fprint(w, `{"amountOut":"249000000","fee":"1000000","estimatedTime":420,"routeId":"route-7"}`)
		case "/encode":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&encodeReq))
			fmt.Fprint(w, `{"contract":"0xbridge","encoded":"0xdata","value":"0"}`)
		}
	}))

	params := bridgeParams()
	quote, err := a.GetQuote(context.Background(), params)
	require.NoError(t, err)
	require.NotNil(t, quote)
	assert.Equal(t, "249000000", quote.OutputAmount)
	assert.Equal(t, 420, quote.EstimatedSeconds)
	assert.Equal(t, "route-7", quote.ProviderContext)
	require.Len(t, quote.Steps, 1)
	assert.Equal(t, types.StepBridge, quote.Steps[0].Kind)

	tx, err := a.BuildTransaction(context.Background(), params, quote)
	require.NoError(t, err)
	assert.Equal(t, "route-7", encodeReq.RouteID)
	assert.Equal(t, "0xuser", encodeReq.Recipient, "recipient defaults to the user address")
	assert.Equal(t, "1", tx.ChainID)
	assert.Equal(t, "0xbridge", tx.To)
}

func TestBridgeQuoteNoLiquidity(t *testing.T) {
	a := newTestBridge(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"amountOut":"0","routeId":""}`)
	}))

	quote, err := a.GetQuote(context.Background(), bridgeParams())

	require.NoError(t, err)
	assert.Nil(t, quote)
}

func TestBridgeBuildWithoutContext(t *testing.T) {
	a := NewBridgeAdapter(config.BridgeProvider{Name: "bridge-x"})

	_, err := a.BuildTransaction(context.Background(), bridgeParams(), &QuoteResult{})

	assert.Error(t, err)
}

func TestBridgeStatusMapping(t *testing.T) {
	status := ""
	a := newTestBridge(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"status":%q}`, status)
	}))
	ctx := context.Background()

	cases := map[string]types.TransactionState{
		"EXECUTED":  types.TxConfirmed,
		"COMPLETED": types.TxConfirmed,
		"LOCKED":    types.TxConfirming,
		"RELEASING": types.TxConfirming,
		"REFUNDED":  types.TxFailed,
		"EXPIRED":   types.TxFailed,
		"WHATEVER":  types.TxPending,
	}
	for venueStatus, want := range cases {
		status = venueStatus
		ts, err := a.GetStatus(ctx, "0xhash")
		require.NoError(t, err)
		assert.Equal(t, want, ts.State, venueStatus)
	}
}
