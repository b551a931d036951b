// Package cexapi is a minimal REST client for centralized exchange venues.
// Public market-data calls go out unsigned; account calls are HMAC-SHA256
// signed over the canonical query string with a server timestamp, the way
// spot venues commonly authenticate.
package cexapi

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"omni-swap/config"
)

// Client talks to one venue
type Client struct {
	venue config.CEXVenue
	http  *http.Client
	now   func() time.Time
}

// NewClient creates a venue client
func NewClient(venue config.CEXVenue) *Client {
	return &Client{
		venue: venue,
		http:  &http.Client{Timeout: 15 * time.Second},
		now:   time.Now,
	}
}

// Name returns the venue name
func (c *Client) Name() string {
	return c.venue.Name
}

// Sign computes the HMAC-SHA256 signature over a canonical query string.
// Parameters are sorted by key so the signature is independent of map order.
func Sign(secret string, params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(params.Get(k))
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(sb.String()))
	return hex.EncodeToString(mac.Sum(nil))
}

// do issues a venue request. Signed requests get a timestamp parameter, the
// signature parameter and the API key header.
func (c *Client) do(ctx context.Context, method, path string, params url.Values, signed bool, out interface{}) error {
	if params == nil {
		params = url.Values{}
	}
	if signed {
		params.Set("timestamp", strconv.FormatInt(c.now().UnixMilli(), 10))
		params.Set("signature", Sign(c.venue.APISecret, withoutSignature(params)))
	}

	req, err := http.NewRequestWithContext(ctx, method, c.venue.BaseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if signed {
		req.Header.Set("X-API-Key", c.venue.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var venueErr struct {
			Code    int    `json:"code"`
			Message string `json:"msg"`
		}
		if json.Unmarshal(raw, &venueErr) == nil && venueErr.Message != "" {
			return fmt.Errorf("venue error (status %d, code %d): %s", resp.StatusCode, venueErr.Code, venueErr.Message)
		}
		return fmt.Errorf("venue error (status %d): %s", resp.StatusCode, string(raw))
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

func withoutSignature(params url.Values) url.Values {
	clean := url.Values{}
	for k, vs := range params {
		if k == "signature" {
			continue
		}
		for _, v := range vs {
			clean.Add(k, v)
		}
	}
	return clean
}

// PairInfo describes one listed trading pair
type PairInfo struct {
	Symbol string `json:"symbol"`
	Status string `json:"status"`
	Base   string `json:"baseAsset"`
	Quote  string `json:"quoteAsset"`
}

// GetPair returns pair metadata, or nil when the venue does not list it
func (c *Client) GetPair(ctx context.Context, symbol string) (*PairInfo, error) {
	var resp struct {
		Symbols []PairInfo `json:"symbols"`
	}
	params := url.Values{}
	params.Set("symbol", symbol)
	if err := c.do(ctx, http.MethodGet, "/api/v3/exchangeInfo", params, false, &resp); err != nil {
		// venues answer 400 for unknown symbols
		if strings.Contains(err.Error(), "status 400") {
			return nil, nil
		}
		return nil, err
	}
	for i := range resp.Symbols {
		if resp.Symbols[i].Symbol == symbol && resp.Symbols[i].Status == "TRADING" {
			return &resp.Symbols[i], nil
		}
	}
	return nil, nil
}

// LastPrice returns the pair's last trade price
func (c *Client) LastPrice(ctx context.Context, symbol string) (string, error) {
	var resp struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
	}
	params := url.Values{}
	params.Set("symbol", symbol)
	if err := c.do(ctx, http.MethodGet, "/api/v3/ticker/price", params, false, &resp); err != nil {
		return "", err
	}
	return resp.Price, nil
}

// WithdrawFee returns the fee charged for paying the asset out on a network
func (c *Client) WithdrawFee(ctx context.Context, asset, network string) (string, error) {
	var resp struct {
		Asset   string `json:"asset"`
		Network string `json:"network"`
		Fee     string `json:"withdrawFee"`
	}
	params := url.Values{}
	params.Set("asset", asset)
	params.Set("network", network)
	if err := c.do(ctx, http.MethodGet, "/api/v3/capital/withdraw/fee", params, true, &resp); err != nil {
		return "", err
	}
	return resp.Fee, nil
}

// DepositAddress returns the venue's deposit address for an asset/network
func (c *Client) DepositAddress(ctx context.Context, asset, network string) (string, error) {
	var resp struct {
		Address string `json:"address"`
	}
	params := url.Values{}
	params.Set("asset", asset)
	params.Set("network", network)
	if err := c.do(ctx, http.MethodGet, "/api/v3/capital/deposit/address", params, true, &resp); err != nil {
		return "", err
	}
	if resp.Address == "" {
		return "", fmt.Errorf("venue returned empty deposit address for %s on %s", asset, network)
	}
	return resp.Address, nil
}

// Order is a venue order report
type Order struct {
	OrderID     string `json:"orderId"`
	Symbol      string `json:"symbol"`
	Status      string `json:"status"` // NEW, PARTIALLY_FILLED, FILLED, CANCELED, REJECTED, EXPIRED
	ExecutedQty string `json:"executedQty"`
	OrigQty     string `json:"origQty"`
}

// PlaceMarketOrder submits a market order and returns the venue report
func (c *Client) PlaceMarketOrder(ctx context.Context, symbol, side, quantity string) (*Order, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("side", side)
	params.Set("type", "MARKET")
	params.Set("quantity", quantity)

	var order Order
	if err := c.do(ctx, http.MethodPost, "/api/v3/order", params, true, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrder fetches an order's current state
func (c *Client) GetOrder(ctx context.Context, symbol, orderID string) (*Order, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("orderId", orderID)

	var order Order
	if err := c.do(ctx, http.MethodGet, "/api/v3/order", params, true, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// Withdrawal is a venue payout report
type Withdrawal struct {
	ID     string `json:"id"`
	Status string `json:"status"` // PROCESSING, COMPLETED, FAILED
	TxHash string `json:"txId"`
}

// Withdraw initiates an off-chain payout and returns its pending id
func (c *Client) Withdraw(ctx context.Context, asset, network, address, amount string) (string, error) {
	params := url.Values{}
	params.Set("asset", asset)
	params.Set("network", network)
	params.Set("address", address)
	params.Set("amount", amount)

	var resp Withdrawal
	if err := c.do(ctx, http.MethodPost, "/api/v3/capital/withdraw", params, true, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// Deposit is a venue credit report for an inbound on-chain transfer
type Deposit struct {
	TxID   string `json:"txId"`
	Asset  string `json:"coin"`
	Amount string `json:"amount"`
	Status int    `json:"status"` // 0 pending, 6 credited, 1 success
}

// GetDeposit scans the deposit history for the transfer with the given
// on-chain hash. A nil result means the venue has not seen it yet.
func (c *Client) GetDeposit(ctx context.Context, asset, txID string) (*Deposit, error) {
	params := url.Values{}
	params.Set("coin", asset)

	var list []Deposit
	if err := c.do(ctx, http.MethodGet, "/api/v3/capital/deposit/hisrec", params, true, &list); err != nil {
		return nil, err
	}
	for i := range list {
		if list[i].TxID == txID {
			return &list[i], nil
		}
	}
	return nil, nil
}

// GetWithdrawal fetches a payout's current state
func (c *Client) GetWithdrawal(ctx context.Context, id string) (*Withdrawal, error) {
	params := url.Values{}
	params.Set("id", id)

	var resp Withdrawal
	if err := c.do(ctx, http.MethodGet, "/api/v3/capital/withdraw/status", params, true, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SetBaseURL overrides the venue endpoint; used by tests
func (c *Client) SetBaseURL(u string) {
	c.venue.BaseURL = u
}
