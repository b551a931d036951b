package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"omni-swap/config"
	"omni-swap/pkg/types"
)

// fakeVenue serves the venue REST surface for a configurable set of listed
// pairs and prices
type fakeVenue struct {
	pairs       map[string]bool   // symbol -> listed
	prices      map[string]string // symbol -> last price
	withdrawFee string
}

func (v *fakeVenue) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/exchangeInfo", func(w http.ResponseWriter, r *http.Request) {
		symbol := r.URL.Query().Get("symbol")
		if !v.pairs[symbol] {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintf(w, `{"code":-1121,"msg":"Invalid symbol."}`)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"symbols": []map[string]string{{"symbol": symbol, "status": "TRADING"}},
		})
	})
	mux.HandleFunc("/api/v3/ticker/price", func(w http.ResponseWriter, r *http.Request) {
		symbol := r.URL.Query().Get("symbol")
		price, ok := v.prices[symbol]
		if !ok {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintf(w, `{"code":-1121,"msg":"Invalid symbol."}`)
			return
		}
		fmt.Fprintf(w, `{"symbol":%q,"price":%q}`, symbol, price)
	})
	mux.HandleFunc("/api/v3/capital/withdraw/fee", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"asset":%q,"network":%q,"withdrawFee":%q}`,
			r.URL.Query().Get("asset"), r.URL.Query().Get("network"), v.withdrawFee)
	})
	mux.HandleFunc("/api/v3/capital/deposit/address", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"address":"0xdeposit"}`)
	})
	return mux
}

func newTestCEXAdapter(t *testing.T, v *fakeVenue) *CEXAdapter {
	t.Helper()
	srv := httptest.NewServer(v.handler())
	t.Cleanup(srv.Close)

	a := NewCEXAdapter(config.CEXVenue{
		Name:            "testex",
		BaseURL:         srv.URL,
		DepositSeconds:  map[string]int{"1": 300, types.ChainSolana: 60},
		WithdrawSeconds: map[string]int{"1": 300, types.ChainSolana: 120},
	})
	a.Client().SetBaseURL(srv.URL)
	return a
}

func cexParams(fromSym, fromChain, toSym, toChain string) QuoteParams {
	return QuoteParams{
		FromToken: types.Token{ChainID: fromChain, Symbol: fromSym, Decimals: 6},
		ToToken:   types.Token{ChainID: toChain, Symbol: toSym, Decimals: 9},
		AmountIn:  "250000000", // 250 units at 6 decimals
	}
}

func TestCEXQuoteDirectPair(t *testing.T) {
	a := newTestCEXAdapter(t, &fakeVenue{
		pairs:       map[string]bool{"SOLUSDC": true},
		prices:      map[string]string{"SOLUSDC": "125"},
		withdrawFee: "0.01",
	})

	// Holding USDC, buying SOL: 250 / 125 = 2, minus 0.01 fee
	result, err := a.GetQuote(context.Background(), cexParams("USDC", "1", "SOL", types.ChainSolana))

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "1990000000", result.OutputAmount) // 1.99 SOL at 9 decimals

	require.Len(t, result.Steps, 3)
	assert.Equal(t, types.StepCEXDeposit, result.Steps[0].Kind)
	assert.Equal(t, types.StepCEXTrade, result.Steps[1].Kind)
	assert.Equal(t, types.StepCEXWithdraw, result.Steps[2].Kind)
	assert.Equal(t, 300+30+120, result.EstimatedSeconds)

	venue, hops, err := ParseCEXContext(result.ProviderContext)
	require.NoError(t, err)
	assert.Equal(t, "testex", venue)
	require.Len(t, hops, 1)
	assert.Equal(t, "BUY", hops[0].Side)
}

func TestCEXQuoteTwoHopViaQuoteAsset(t *testing.T) {
	a := newTestCEXAdapter(t, &fakeVenue{
		pairs:       map[string]bool{"FOOUSDT": true, "BARUSDT": true},
		prices:      map[string]string{"FOOUSDT": "10", "BARUSDT": "2"},
		withdrawFee: "0",
	})

	// No direct FOO/BAR listing: sell FOO for USDT, buy BAR with USDT.
	// 250 FOO * 10 = 2500 USDT, 2500 / 2 = 1250 BAR.
	result, err := a.GetQuote(context.Background(), cexParams("FOO", "1", "BAR", types.ChainSolana))

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "1250000000000", result.OutputAmount)

	_, hops, err := ParseCEXContext(result.ProviderContext)
	require.NoError(t, err)
	require.Len(t, hops, 2)
	assert.Equal(t, TradeHop{Symbol: "FOOUSDT", Base: "FOO", Quote: "USDT", Side: "SELL"}, hops[0])
	assert.Equal(t, TradeHop{Symbol: "BARUSDT", Base: "BAR", Quote: "USDT", Side: "BUY"}, hops[1])
}

func TestCEXQuoteNoPathMeansNoRoute(t *testing.T) {
	a := newTestCEXAdapter(t, &fakeVenue{
		pairs:  map[string]bool{},
		prices: map[string]string{},
	})

	result, err := a.GetQuote(context.Background(), cexParams("FOO", "1", "BAR", types.ChainSolana))

	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestCEXQuoteFeeExceedsOutput(t *testing.T) {
	a := newTestCEXAdapter(t, &fakeVenue{
		pairs:       map[string]bool{"SOLUSDC": true},
		prices:      map[string]string{"SOLUSDC": "125"},
		withdrawFee: "1000000", // swallows the whole trade
	})

	result, err := a.GetQuote(context.Background(), cexParams("USDC", "1", "SOL", types.ChainSolana))

	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestCEXCanHandleRequiresBothLegs(t *testing.T) {
	a := NewCEXAdapter(config.CEXVenue{
		Name:            "testex",
		DepositSeconds:  map[string]int{"1": 300},
		WithdrawSeconds: map[string]int{types.ChainSolana: 120},
	})

	assert.True(t, a.CanHandle(cexParams("USDC", "1", "SOL", types.ChainSolana)))
	assert.False(t, a.CanHandle(cexParams("SOL", types.ChainSolana, "USDC", "1")), "deposit chain not served")
}

func TestComposeHopPrice(t *testing.T) {
	amount := decimal.RequireFromString("4")
	price := decimal.RequireFromString("2")

	sell, err := composeHopPrice(amount, price, "SELL")
	require.NoError(t, err)
	assert.True(t, sell.Equal(decimal.RequireFromString("8")))

	buy, err := composeHopPrice(amount, price, "BUY")
	require.NoError(t, err)
	assert.True(t, buy.Equal(decimal.RequireFromString("2")))

	_, err = composeHopPrice(amount, decimal.Zero, "SELL")
	assert.Error(t, err)
}

func TestCEXBuildTransactionUsesDepositAddress(t *testing.T) {
	a := newTestCEXAdapter(t, &fakeVenue{
		pairs:       map[string]bool{"SOLUSDC": true},
		prices:      map[string]string{"SOLUSDC": "125"},
		withdrawFee: "0.01",
	})

	params := cexParams("USDC", "1", "SOL", types.ChainSolana)
	quote, err := a.GetQuote(context.Background(), params)
	require.NoError(t, err)

	tx, err := a.BuildTransaction(context.Background(), params, quote)

	require.NoError(t, err)
	assert.Equal(t, "1", tx.ChainID)
	assert.Equal(t, "0xdeposit", tx.To)
	assert.Equal(t, params.AmountIn, tx.Value)
	assert.Empty(t, tx.Data, "a native transfer carries no calldata")
}

func TestCEXBuildTransactionPacksERC20Transfer(t *testing.T) {
	a := newTestCEXAdapter(t, &fakeVenue{
		pairs:       map[string]bool{"SOLUSDC": true},
		prices:      map[string]string{"SOLUSDC": "125"},
		withdrawFee: "0.01",
	})

	params := cexParams("USDC", "1", "SOL", types.ChainSolana)
	params.FromToken.Address = "0x1111111111111111111111111111111111111111"
	quote, err := a.GetQuote(context.Background(), params)
	require.NoError(t, err)

	tx, err := a.BuildTransaction(context.Background(), params, quote)

	require.NoError(t, err)
	assert.Equal(t, params.FromToken.Address, tx.To, "transfer goes to the token contract")
	assert.Equal(t, "0", tx.Value)
	assert.True(t, strings.HasPrefix(tx.Data, "0xa9059cbb"), "calldata must be an ERC20 transfer")
}
