package adapter

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"omni-swap/pkg/types"
)

type fakeAdapter struct {
	name      string
	srcType   SourceType
	canHandle bool
	result    *QuoteResult
	err       error
	delay     time.Duration

	quoteCalls atomic.Int32
}

func (f *fakeAdapter) Name() string                     { return f.name }
func (f *fakeAdapter) Type() SourceType                 { return f.srcType }
func (f *fakeAdapter) SupportsChain(chainID string) bool { return true }
func (f *fakeAdapter) CanHandle(params QuoteParams) bool { return f.canHandle }

func (f *fakeAdapter) GetQuote(ctx context.Context, params QuoteParams) (*QuoteResult, error) {
	f.quoteCalls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.result, f.err
}

func (f *fakeAdapter) BuildTransaction(ctx context.Context, params QuoteParams, quote *QuoteResult) (*types.UnsignedTransaction, error) {
	return &types.UnsignedTransaction{}, nil
}

func crossChainParams() QuoteParams {
	return QuoteParams{
		FromToken: types.Token{ChainID: "1", Symbol: "USDC", Address: "0xusdc", Decimals: 6},
		ToToken:   types.Token{ChainID: types.ChainSolana, Symbol: "SOL"},
		AmountIn:  "250000000",
	}
}

func TestRegisterRejectsDuplicateNames(t *testing.T) {
	r := NewRegistry(time.Second, zerolog.Nop())

	require.NoError(t, r.Register(&fakeAdapter{name: "a", srcType: SourceCEX}))
	err := r.Register(&fakeAdapter{name: "a", srcType: SourceCEX})
	assert.Error(t, err)
}

func TestCandidatesSkipAdaptersThatCannotHandle(t *testing.T) {
	r := NewRegistry(time.Second, zerolog.Nop())

	able := &fakeAdapter{name: "able", srcType: SourceCEX, canHandle: true, result: &QuoteResult{OutputAmount: "10"}}
	unable := &fakeAdapter{name: "unable", srcType: SourceCEX, canHandle: false, result: &QuoteResult{OutputAmount: "20"}}
	require.NoError(t, r.Register(able))
	require.NoError(t, r.Register(unable))

	fetched := r.FetchAllQuotes(context.Background(), crossChainParams(), FetchOptions{})

	require.Len(t, fetched, 1)
	assert.Equal(t, "able", fetched[0].Adapter.Name())
	assert.Equal(t, int32(0), unable.quoteCalls.Load(), "ineligible adapter must never be queried")
}

func TestDirectionFiltering(t *testing.T) {
	r := NewRegistry(time.Second, zerolog.Nop())

	dex := &fakeAdapter{name: "dex", srcType: SourceDEX, canHandle: true, result: &QuoteResult{OutputAmount: "1"}}
	bridge := &fakeAdapter{name: "bridge", srcType: SourceBridge, canHandle: true, result: &QuoteResult{OutputAmount: "1"}}
	cex := &fakeAdapter{name: "cex", srcType: SourceCEX, canHandle: true, result: &QuoteResult{OutputAmount: "1"}}
	for _, a := range []Adapter{dex, bridge, cex} {
		require.NoError(t, r.Register(a))
	}

	cross := crossChainParams()
	names := func(params QuoteParams) []string {
		var out []string
		for _, a := range r.Candidates(params, FetchOptions{}) {
			out = append(out, a.Name())
		}
		return out
	}

	assert.ElementsMatch(t, []string{"bridge", "cex"}, names(cross))

	same := cross
	same.ToToken = types.Token{ChainID: "1", Symbol: "WETH", Address: "0xweth"}
	assert.ElementsMatch(t, []string{"dex", "cex"}, names(same))
}

func TestFetchAllQuotesRunsConcurrently(t *testing.T) {
	r := NewRegistry(2*time.Second, zerolog.Nop())

	delay := 150 * time.Millisecond
	for _, name := range []string{"a", "b", "c"} {
		require.NoError(t, r.Register(&fakeAdapter{
			name: name, srcType: SourceCEX, canHandle: true,
			result: &QuoteResult{OutputAmount: "1"}, delay: delay,
		}))
	}

	start := time.Now()
	fetched := r.FetchAllQuotes(context.Background(), crossChainParams(), FetchOptions{})
	elapsed := time.Since(start)

	require.Len(t, fetched, 3)
	assert.Less(t, elapsed, 2*delay, "fan-out must run adapters in parallel, not sequentially")
}

func TestFetchAllQuotesDegradesFailuresAndTimeouts(t *testing.T) {
	r := NewRegistry(100*time.Millisecond, zerolog.Nop())

	ok := &fakeAdapter{name: "ok", srcType: SourceCEX, canHandle: true, result: &QuoteResult{OutputAmount: "100"}}
	slow := &fakeAdapter{name: "slow", srcType: SourceCEX, canHandle: true, result: &QuoteResult{OutputAmount: "999"}, delay: time.Second}
	broken := &fakeAdapter{name: "broken", srcType: SourceCEX, canHandle: true, err: assert.AnError}
	noRoute := &fakeAdapter{name: "noroute", srcType: SourceCEX, canHandle: true}
	for _, a := range []Adapter{ok, slow, broken, noRoute} {
		require.NoError(t, r.Register(a))
	}

	fetched := r.FetchAllQuotes(context.Background(), crossChainParams(), FetchOptions{})

	require.Len(t, fetched, 1)
	assert.Equal(t, "ok", fetched[0].Adapter.Name())
}

func TestGetBestQuoteByOutputUsesArbitraryPrecision(t *testing.T) {
	r := NewRegistry(time.Second, zerolog.Nop())

	// Values beyond uint64 range; float math would lose the distinction
	small := &fakeAdapter{name: "small", srcType: SourceCEX, canHandle: true,
		result: &QuoteResult{OutputAmount: "340282366920938463463374607431768211455"}}
	big := &fakeAdapter{name: "big", srcType: SourceCEX, canHandle: true,
		result: &QuoteResult{OutputAmount: "340282366920938463463374607431768211456"}}
	require.NoError(t, r.Register(small))
	require.NoError(t, r.Register(big))

	best := r.GetBestQuote(context.Background(), crossChainParams(), FetchOptions{}, BestByOutput)

	require.NotNil(t, best)
	assert.Equal(t, "big", best.Adapter.Name())
}

func TestFetchOptionsIncludeExclude(t *testing.T) {
	r := NewRegistry(time.Second, zerolog.Nop())

	for _, name := range []string{"a", "b", "c"} {
		require.NoError(t, r.Register(&fakeAdapter{
			name: name, srcType: SourceCEX, canHandle: true,
			result: &QuoteResult{OutputAmount: "1"},
		}))
	}

	fetched := r.FetchAllQuotes(context.Background(), crossChainParams(), FetchOptions{Include: []string{"a", "b"}, Exclude: []string{"b"}})

	require.Len(t, fetched, 1)
	assert.Equal(t, "a", fetched[0].Adapter.Name())
}

func TestFetchOptionsPreferOrdersResults(t *testing.T) {
	r := NewRegistry(time.Second, zerolog.Nop())

	for _, name := range []string{"a", "b", "c"} {
		require.NoError(t, r.Register(&fakeAdapter{
			name: name, srcType: SourceCEX, canHandle: true,
			result: &QuoteResult{OutputAmount: "500"},
		}))
	}

	fetched := r.FetchAllQuotes(context.Background(), crossChainParams(), FetchOptions{Prefer: []string{"c", "b"}})

	require.Len(t, fetched, 3)
	assert.Equal(t, "c", fetched[0].Adapter.Name())
	assert.Equal(t, "b", fetched[1].Adapter.Name())
	assert.Equal(t, "a", fetched[2].Adapter.Name())

	// With equal outputs the preferred source wins the tie
	best := r.GetBestQuote(context.Background(), crossChainParams(), FetchOptions{Prefer: []string{"b"}}, BestByOutput)
	require.NotNil(t, best)
	assert.Equal(t, "b", best.Adapter.Name())
}
