package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"omni-swap/pkg/types"
)

func parseBigInt(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid integer amount: %s", s)
	}
	return v, nil
}

// ERC20 transfer fragment for building deposit payloads
const erc20TransferABI = `[
	{"constant":false,"inputs":[{"name":"_to","type":"address"},{"name":"_value","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"type":"function"}
]`

var (
	erc20Once sync.Once
	erc20ABI  abi.ABI
	erc20Err  error
)

func isEVMChain(chainID string) bool {
	return chainID != types.ChainSolana && chainID != types.ChainSui && !types.IsCEXChain(chainID)
}

// depositTransfer builds the on-chain payload that funds a provider's
// deposit address. Native assets move as plain value transfers; ERC20
// inputs become a token-contract transfer call with zero value.
func depositTransfer(token types.Token, depositAddress, amount string) (*types.UnsignedTransaction, error) {
	if token.IsNative() || !isEVMChain(token.ChainID) {
		return &types.UnsignedTransaction{
			ChainID: token.ChainID,
			To:      depositAddress,
			Value:   amount,
		}, nil
	}

	erc20Once.Do(func() {
		erc20ABI, erc20Err = abi.JSON(strings.NewReader(erc20TransferABI))
	})
	if erc20Err != nil {
		return nil, fmt.Errorf("failed to parse ERC20 ABI: %w", erc20Err)
	}

	amt, err := parseBigInt(amount)
	if err != nil {
		return nil, err
	}
	data, err := erc20ABI.Pack("transfer", common.HexToAddress(depositAddress), amt)
	if err != nil {
		return nil, fmt.Errorf("failed to pack transfer call: %w", err)
	}
	return &types.UnsignedTransaction{
		ChainID: token.ChainID,
		To:      token.Address,
		Data:    hexutil.Encode(data),
		Value:   "0",
	}, nil
}

var httpClient = &http.Client{Timeout: 30 * time.Second}

// doJSON issues an HTTP request with an optional API key header, decodes the
// JSON response into out and surfaces provider error bodies in the error
func doJSON(ctx context.Context, method, url, apiKey string, reqBody, out interface{}) error {
	var body io.Reader
	if reqBody != nil {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Try to extract the provider's error message from the body
		var errResp map[string]interface{}
		if jsonErr := json.Unmarshal(raw, &errResp); jsonErr == nil {
			if message, ok := errResp["message"].(string); ok {
				return fmt.Errorf("provider error (status %d): %s", resp.StatusCode, message)
			}
		}
		return fmt.Errorf("provider error (status %d): %s", resp.StatusCode, string(raw))
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
