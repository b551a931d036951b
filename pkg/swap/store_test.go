package swap

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"omni-swap/pkg/types"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleSwap(id string) *types.Swap {
	now := time.Now().UTC().Truncate(time.Second)
	return &types.Swap{
		ID:     id,
		Status: types.SwapPending,
		Input: types.TokenAmount{
			Token:  types.Token{ChainID: "1", Symbol: "USDC", Address: "0xusdc", Decimals: 6},
			Amount: "250000000",
		},
		Output: types.TokenAmount{
			Token:  types.Token{ChainID: types.ChainSolana, Symbol: "SOL", Decimals: 9},
			Amount: "1990000000",
		},
		RouteSource: "cex-testex",
		FeeBps:      30,
		FeeAmount:   "750000",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestStoreInsertAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sw := sampleSwap("swap-1")
	require.NoError(t, store.Insert(ctx, sw))

	got, err := store.GetByID(ctx, "swap-1")
	require.NoError(t, err)

	assert.Equal(t, sw.ID, got.ID)
	assert.Equal(t, types.SwapPending, got.Status)
	assert.Equal(t, sw.Input, got.Input)
	assert.Equal(t, sw.Output, got.Output)
	assert.Equal(t, "cex-testex", got.RouteSource)
	assert.Equal(t, 30, got.FeeBps)
}

func TestStoreGetMissing(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetByID(context.Background(), "nope")

	assert.ErrorIs(t, err, ErrSwapNotFound)
}

func TestStoreStatusLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, sampleSwap("swap-1")))

	require.NoError(t, store.UpdateStatus(ctx, "swap-1", types.SwapConfirming, "0xhash", 0, ""))
	require.NoError(t, store.UpdateStatus(ctx, "swap-1", types.SwapConfirmed, "", 123456, ""))

	got, err := store.GetByID(ctx, "swap-1")
	require.NoError(t, err)
	assert.Equal(t, types.SwapConfirmed, got.Status)
	assert.Equal(t, "0xhash", got.TxHash, "empty txHash must not clear the stored hash")
	assert.Equal(t, int64(123456), got.BlockNumber)
}

func TestStoreRejectsBackwardTransitions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, sampleSwap("swap-1")))

	err := store.UpdateStatus(ctx, "swap-1", types.SwapConfirmed, "0xhash", 1, "")
	assert.ErrorIs(t, err, ErrInvalidTransition, "PENDING may not jump straight to CONFIRMED")

	require.NoError(t, store.UpdateStatus(ctx, "swap-1", types.SwapConfirming, "0xhash", 0, ""))
	require.NoError(t, store.UpdateStatus(ctx, "swap-1", types.SwapConfirmed, "", 1, ""))

	err = store.UpdateStatus(ctx, "swap-1", types.SwapPending, "", 0, "")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	err = store.UpdateStatus(ctx, "swap-1", types.SwapFailed, "", 0, "late failure")
	assert.ErrorIs(t, err, ErrInvalidTransition, "terminal states never change")
}

func TestStorePendingToFailed(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, sampleSwap("swap-1")))
	require.NoError(t, store.UpdateStatus(ctx, "swap-1", types.SwapFailed, "", 0, "broadcast rejected"))

	got, err := store.GetByID(ctx, "swap-1")
	require.NoError(t, err)
	assert.Equal(t, types.SwapFailed, got.Status)
	assert.Equal(t, "broadcast rejected", got.ErrorMessage)
}
