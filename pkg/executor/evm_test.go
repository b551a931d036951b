package executor

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"omni-swap/config"
	"omni-swap/pkg/types"
)

type fakeBackend struct {
	receipt      *ethtypes.Receipt
	receiptErr   error
	currentBlock uint64
	callResult   []byte
	gas          uint64
}

func (b *fakeBackend) SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error {
	return nil
}

func (b *fakeBackend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error) {
	return b.receipt, b.receiptErr
}

func (b *fakeBackend) BlockNumber(ctx context.Context) (uint64, error) {
	return b.currentBlock, nil
}

func (b *fakeBackend) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return b.callResult, nil
}

func (b *fakeBackend) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return b.gas, nil
}

func (b *fakeBackend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1), nil
}

func newTestEVMExecutor(t *testing.T, backend EthBackend) *EVMExecutor {
	t.Helper()
	e, err := NewEVMExecutor(map[string]config.EVMNetwork{
		"1": {ChainID: 1, RequiredConfirmations: 12},
	})
	require.NoError(t, err)
	e.SetBackend("1", backend)
	return e
}

func TestEVMStatusPendingWhenNoReceipt(t *testing.T) {
	e := newTestEVMExecutor(t, &fakeBackend{receiptErr: ethereum.NotFound})

	status, err := e.GetTransactionStatus(context.Background(), "1", "0xabc")

	require.NoError(t, err)
	assert.Equal(t, types.TxPending, status.State)
}

func TestEVMStatusConfirmationMath(t *testing.T) {
	backend := &fakeBackend{
		receipt: &ethtypes.Receipt{
			Status:      ethtypes.ReceiptStatusSuccessful,
			BlockNumber: big.NewInt(100),
		},
	}
	e := newTestEVMExecutor(t, backend)

	// Receipt block included, 5 of 12 confirmations
	backend.currentBlock = 104
	status, err := e.GetTransactionStatus(context.Background(), "1", "0xabc")
	require.NoError(t, err)
	assert.Equal(t, types.TxConfirming, status.State)
	assert.Equal(t, uint64(5), status.Confirmations)
	assert.Equal(t, uint64(12), status.RequiredConfirmations)

	// Exactly at the threshold
	backend.currentBlock = 111
	status, err = e.GetTransactionStatus(context.Background(), "1", "0xabc")
	require.NoError(t, err)
	assert.Equal(t, types.TxConfirmed, status.State)
	assert.Equal(t, uint64(12), status.Confirmations)
}

func TestEVMStatusRevertedReceiptFailsImmediately(t *testing.T) {
	e := newTestEVMExecutor(t, &fakeBackend{
		receipt: &ethtypes.Receipt{
			Status:      ethtypes.ReceiptStatusFailed,
			BlockNumber: big.NewInt(100),
		},
		currentBlock: 200,
	})

	status, err := e.GetTransactionStatus(context.Background(), "1", "0xabc")

	require.NoError(t, err)
	assert.Equal(t, types.TxFailed, status.State)
	assert.NotEmpty(t, status.Error)
}

func TestEVMCheckAllowance(t *testing.T) {
	allowance := big.NewInt(500000)
	e := newTestEVMExecutor(t, &fakeBackend{
		callResult: common.LeftPadBytes(allowance.Bytes(), 32),
	})

	got, err := e.CheckAllowance(context.Background(), "1", "0xtoken", "0xowner", "0xspender")

	require.NoError(t, err)
	assert.Equal(t, 0, got.Cmp(allowance))
}

func TestEVMBuildApprovalTransaction(t *testing.T) {
	e := newTestEVMExecutor(t, &fakeBackend{})

	tx, err := e.BuildApprovalTransaction(context.Background(), "1", "0xtoken", "0xspender", big.NewInt(1000))

	require.NoError(t, err)
	assert.Equal(t, "1", tx.ChainID)
	assert.Equal(t, "0xtoken", tx.To)
	assert.Equal(t, "0", tx.Value)
	// approve(address,uint256) selector
	assert.Equal(t, "0x095ea7b3", tx.Data[:10])
}

func TestEVMPrepareTransactionBuffersGas(t *testing.T) {
	e := newTestEVMExecutor(t, &fakeBackend{gas: 100000})

	prepared, err := e.PrepareTransaction(context.Background(), &types.UnsignedTransaction{
		ChainID: "1", To: "0xrouter", Data: "0xdeadbeef", Value: "0",
	}, "0xuser")

	require.NoError(t, err)
	assert.Equal(t, "120000", prepared.GasLimit)
}

func TestEVMExecuteRejectsMalformedPayload(t *testing.T) {
	e := newTestEVMExecutor(t, &fakeBackend{})

	result, err := e.ExecuteTransaction(context.Background(), types.SignedTransaction{
		ChainID: "1", Raw: "not-hex",
	})

	require.Error(t, err)
	assert.False(t, result.Success)
}
