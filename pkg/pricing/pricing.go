// Package pricing supplies USD token prices for display fields. Prices
// never influence route selection.
package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"omni-swap/pkg/types"
)

// PriceSource resolves a token's USD price. A nil error with ok=false means
// the source simply does not know the price.
type PriceSource interface {
	GetTokenPrice(ctx context.Context, chainID, address string) (price float64, ok bool, err error)
}

// coingecko platform/coin slugs per chain id
var coinGeckoPlatforms = map[string]string{
	"1":               "ethereum",
	"8453":            "base",
	"42161":           "arbitrum-one",
	types.ChainSolana: "solana",
	types.ChainSui:    "sui",
}

var coinGeckoNativeCoins = map[string]string{
	"1":               "ethereum",
	"8453":            "ethereum",
	"42161":           "ethereum",
	types.ChainSolana: "solana",
	types.ChainSui:    "sui",
}

// CoinGeckoSource fetches prices from the CoinGecko simple-price API
type CoinGeckoSource struct {
	baseURL string
	client  *http.Client
}

// NewCoinGeckoSource creates a CoinGecko-backed price source
func NewCoinGeckoSource() *CoinGeckoSource {
	return &CoinGeckoSource{
		baseURL: "https://api.coingecko.com/api/v3",
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// GetTokenPrice resolves a price by contract address, or by the chain's
// native coin when the address sentinel is empty
func (s *CoinGeckoSource) GetTokenPrice(ctx context.Context, chainID, address string) (float64, bool, error) {
	if address == "" {
		coin, ok := coinGeckoNativeCoins[chainID]
		if !ok {
			return 0, false, nil
		}
		return s.fetchSimplePrice(ctx, fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=usd", s.baseURL, coin), coin)
	}

	platform, ok := coinGeckoPlatforms[chainID]
	if !ok {
		return 0, false, nil
	}
	addr := strings.ToLower(address)
	u := fmt.Sprintf("%s/simple/token_price/%s?contract_addresses=%s&vs_currencies=usd",
		s.baseURL, platform, url.QueryEscape(addr))
	return s.fetchSimplePrice(ctx, u, addr)
}

func (s *CoinGeckoSource) fetchSimplePrice(ctx context.Context, u, key string) (float64, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, false, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, false, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, false, err
	}
	if resp.StatusCode != http.StatusOK {
		return 0, false, fmt.Errorf("price API returned status %d", resp.StatusCode)
	}

	var parsed map[string]struct {
		USD float64 `json:"usd"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return 0, false, err
	}
	entry, ok := parsed[key]
	if !ok {
		return 0, false, nil
	}
	return entry.USD, true, nil
}

// SetBaseURL overrides the API endpoint; used by tests
func (s *CoinGeckoSource) SetBaseURL(u string) {
	s.baseURL = u
}
