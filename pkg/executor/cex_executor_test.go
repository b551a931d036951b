package executor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"omni-swap/config"
	"omni-swap/pkg/cexapi"
	"omni-swap/pkg/types"
)

func newCEXTestExecutor(t *testing.T, handler http.Handler) *CEXExecutor {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	venue := config.CEXVenue{Name: "testex", BaseURL: srv.URL}
	e := NewCEXExecutor([]config.CEXVenue{venue})
	c := cexapi.NewClient(venue)
	c.SetBaseURL(srv.URL)
	e.SetClient("testex", c)
	return e
}

func instruction(t *testing.T, instr CEXInstruction) types.SignedTransaction {
	t.Helper()
	raw, err := json.Marshal(instr)
	require.NoError(t, err)
	return types.SignedTransaction{ChainID: "cex:testex", Raw: string(raw)}
}

func TestCEXExecutorTradeFilled(t *testing.T) {
	e := newCEXTestExecutor(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(cexapi.Order{OrderID: "42", Symbol: "SOLUSDC", Status: "FILLED"})
	}))

	result, err := e.ExecuteTransaction(context.Background(), instruction(t, CEXInstruction{
		Action: "trade", Symbol: "SOLUSDC", Side: "BUY", Quantity: "2",
	}))

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "cexord:SOLUSDC:42", result.PendingID)
}

func TestCEXExecutorTradeNotFilled(t *testing.T) {
	e := newCEXTestExecutor(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(cexapi.Order{OrderID: "42", Status: "REJECTED"})
	}))

	result, err := e.ExecuteTransaction(context.Background(), instruction(t, CEXInstruction{
		Action: "trade", Symbol: "SOLUSDC", Side: "BUY", Quantity: "2",
	}))

	require.Error(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "REJECTED")
}

func TestCEXExecutorWithdraw(t *testing.T) {
	e := newCEXTestExecutor(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(cexapi.Withdrawal{ID: "wd-7", Status: "PROCESSING"})
	}))

	result, err := e.ExecuteTransaction(context.Background(), instruction(t, CEXInstruction{
		Action: "withdraw", Asset: "SOL", Network: types.ChainSolana, Address: "dest", Amount: "1.99",
	}))

	require.NoError(t, err)
	assert.Equal(t, "cexwd:wd-7", result.PendingID)
}

func TestCEXExecutorDepositMintsReference(t *testing.T) {
	e := newCEXTestExecutor(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("deposit must not call the venue")
	}))

	result, err := e.ExecuteTransaction(context.Background(), instruction(t, CEXInstruction{
		Action: "deposit", Asset: "USDT", TxHash: "0xfund",
	}))

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "cexdep:USDT:0xfund", result.PendingID)
}

func TestCEXExecutorDepositRequiresFundingHash(t *testing.T) {
	e := newCEXTestExecutor(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	result, err := e.ExecuteTransaction(context.Background(), instruction(t, CEXInstruction{Action: "deposit"}))

	require.Error(t, err)
	assert.False(t, result.Success)
}

func TestCEXExecutorDepositStatusTracksVenueCredit(t *testing.T) {
	var history []cexapi.Deposit
	e := newCEXTestExecutor(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Contains(t, r.URL.Path, "/deposit/hisrec")
		assert.Equal(t, "USDT", r.URL.Query().Get("coin"))
		json.NewEncoder(w).Encode(history)
	}))
	ctx := context.Background()

	// transfer not yet seen by the venue
	ts, err := e.GetTransactionStatus(ctx, "cex:testex", "cexdep:USDT:0xfund")
	require.NoError(t, err)
	assert.Equal(t, types.TxConfirming, ts.State)

	history = []cexapi.Deposit{{TxID: "0xother", Asset: "USDT", Status: 1}, {TxID: "0xfund", Asset: "USDT", Status: 0}}
	ts, err = e.GetTransactionStatus(ctx, "cex:testex", "cexdep:USDT:0xfund")
	require.NoError(t, err)
	assert.Equal(t, types.TxConfirming, ts.State)

	history[1].Status = 1
	ts, err = e.GetTransactionStatus(ctx, "cex:testex", "cexdep:USDT:0xfund")
	require.NoError(t, err)
	assert.Equal(t, types.TxConfirmed, ts.State)

	history[1].Status = 7
	ts, err = e.GetTransactionStatus(ctx, "cex:testex", "cexdep:USDT:0xfund")
	require.NoError(t, err)
	assert.Equal(t, types.TxFailed, ts.State)
}

func TestCEXExecutorStatusMapsVenueStates(t *testing.T) {
	orderStatus := "PARTIALLY_FILLED"
	e := newCEXTestExecutor(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.Contains(r.URL.Path, "/order"):
			json.NewEncoder(w).Encode(cexapi.Order{OrderID: "42", Status: orderStatus})
		case strings.Contains(r.URL.Path, "/withdraw/status"):
			json.NewEncoder(w).Encode(cexapi.Withdrawal{ID: "wd-7", Status: "COMPLETED", TxHash: "0xpayout"})
		}
	}))
	ctx := context.Background()

	ts, err := e.GetTransactionStatus(ctx, "cex:testex", "cexord:SOLUSDC:42")
	require.NoError(t, err)
	assert.Equal(t, types.TxConfirming, ts.State)

	orderStatus = "FILLED"
	ts, err = e.GetTransactionStatus(ctx, "cex:testex", "cexord:SOLUSDC:42")
	require.NoError(t, err)
	assert.Equal(t, types.TxConfirmed, ts.State)

	orderStatus = "CANCELED"
	ts, err = e.GetTransactionStatus(ctx, "cex:testex", "cexord:SOLUSDC:42")
	require.NoError(t, err)
	assert.Equal(t, types.TxFailed, ts.State)

	ts, err = e.GetTransactionStatus(ctx, "cex:testex", "cexwd:wd-7")
	require.NoError(t, err)
	assert.Equal(t, types.TxConfirmed, ts.State)
}

func TestCEXExecutorUnknownReference(t *testing.T) {
	e := newCEXTestExecutor(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	_, err := e.GetTransactionStatus(context.Background(), "cex:testex", "bogus")

	assert.Error(t, err)
}

func TestCEXExecutorSupportsChain(t *testing.T) {
	e := NewCEXExecutor([]config.CEXVenue{{Name: "testex"}})

	assert.True(t, e.SupportsChain("cex:testex"))
	assert.False(t, e.SupportsChain("cex:other"))
	assert.False(t, e.SupportsChain("1"))
}
