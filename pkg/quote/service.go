package quote

import (
	"context"
	"errors"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"omni-swap/pkg/adapter"
	"omni-swap/pkg/pricing"
	"omni-swap/pkg/types"
)

var (
	// ErrNoRoutes means no liquidity source produced a route for the pair
	ErrNoRoutes = errors.New("no routes found")

	// ErrQuoteNotFound covers both missing and expired quotes
	ErrQuoteNotFound = errors.New("quote not found or expired")
)

// Request describes one quote request
type Request struct {
	FromToken   types.Token
	ToToken     types.Token
	AmountIn    string
	SlippageBps int
	UserAddress string
	Recipient   string
	Options     adapter.FetchOptions
}

// Service orchestrates same-chain and cross-chain quoting
type Service struct {
	adapters *adapter.Registry
	cache    Cache
	prices   pricing.PriceSource

	feeBps          int
	defaultSlippage int
	ttl             time.Duration
	logger          zerolog.Logger
	now             func() time.Time
}

// NewService creates a quote service. The expiry window stays shorter
// than any route's execution estimate so stale prices never reach the
// builder.
func NewService(adapters *adapter.Registry, cache Cache, prices pricing.PriceSource, feeBps, defaultSlippage int, ttl time.Duration, logger zerolog.Logger) *Service {
	return &Service{
		adapters:        adapters,
		cache:           cache,
		prices:          prices,
		feeBps:          feeBps,
		defaultSlippage: defaultSlippage,
		ttl:             ttl,
		logger:          logger.With().Str("component", "quote_service").Logger(),
		now:             time.Now,
	}
}

// GetQuote fans the request out to every eligible adapter, ranks the
// surviving routes and returns an immutable, expiring quote
func (s *Service) GetQuote(ctx context.Context, req Request) (*types.Quote, error) {
	if req.SlippageBps == 0 {
		req.SlippageBps = s.defaultSlippage
	}

	params := adapter.QuoteParams{
		FromToken:   req.FromToken,
		ToToken:     req.ToToken,
		AmountIn:    req.AmountIn,
		SlippageBps: req.SlippageBps,
		UserAddress: req.UserAddress,
		Recipient:   req.Recipient,
	}

	// USD prices are fetched alongside the quote fan-out; they only fill
	// display fields and a failure leaves them at zero. The gas valuation
	// uses the origin chain's native coin since gas is paid in it.
	var inPrice, outPrice, gasPrice float64
	var inOK, outOK, gasOK bool
	var wg sync.WaitGroup
	if s.prices != nil {
		wg.Add(3)
		go func() {
			defer wg.Done()
			inPrice, inOK, _ = s.prices.GetTokenPrice(ctx, req.FromToken.ChainID, req.FromToken.Address)
		}()
		go func() {
			defer wg.Done()
			outPrice, outOK, _ = s.prices.GetTokenPrice(ctx, req.ToToken.ChainID, req.ToToken.Address)
		}()
		go func() {
			defer wg.Done()
			gasPrice, gasOK, _ = s.prices.GetTokenPrice(ctx, req.FromToken.ChainID, "")
		}()
	}

	fetched := s.adapters.FetchAllQuotes(ctx, params, req.Options)
	wg.Wait()

	routes := make([]types.Route, 0, len(fetched))
	for _, f := range fetched {
		r := types.Route{
			Source:           f.Adapter.Name(),
			OutputAmount:     f.Quote.OutputAmount,
			PriceImpactBps:   f.Quote.PriceImpactBps,
			EstimatedGas:     f.Quote.EstimatedGas,
			EstimatedSeconds: f.Quote.EstimatedSeconds,
			Steps:            f.Quote.Steps,
			ProviderContext:  f.Quote.ProviderContext,
		}
		if gasOK && r.EstimatedGas != "" {
			r.EstimatedGasUSD = usdValue(r.EstimatedGas, nativeDecimals(req.FromToken.ChainID), gasPrice)
		}
		routes = append(routes, r)
	}
	if len(routes) == 0 {
		return nil, ErrNoRoutes
	}

	rankRoutes(routes)

	now := s.now()
	q := &types.Quote{
		ID:             uuid.NewString(),
		Input:          types.TokenAmount{Token: req.FromToken, Amount: req.AmountIn},
		Output:         types.TokenAmount{Token: req.ToToken, Amount: routes[0].OutputAmount},
		Routes:         routes,
		PlatformFeeBps: s.feeBps,
		SlippageBps:    req.SlippageBps,
		CreatedAt:      now,
		ExpiresAt:      now.Add(s.ttl),
		UserAddress:    req.UserAddress,
		Recipient:      req.Recipient,
		IncludeSources: req.Options.Include,
		ExcludeSources: req.Options.Exclude,
		PreferSources:  req.Options.Prefer,
	}
	if inOK {
		q.InputUSD = usdValue(req.AmountIn, req.FromToken.Decimals, inPrice)
	}
	if outOK {
		q.OutputUSD = usdValue(routes[0].OutputAmount, req.ToToken.Decimals, outPrice)
	}

	// physical TTL exceeds the logical expiry; GetQuoteByID enforces the
	// latter so a refresh can still read the original parameters
	if err := s.cache.Put(ctx, q, s.ttl+5*time.Minute); err != nil {
		return nil, err
	}

	s.logger.Info().Str("quote_id", q.ID).Int("routes", len(routes)).
		Str("best_output", routes[0].OutputAmount).Msg("quote created")
	return q, nil
}

// GetQuoteByID returns the quote, treating anything past its expiry as
// not-found and evicting it
func (s *Service) GetQuoteByID(ctx context.Context, id string) (*types.Quote, error) {
	q, err := s.cache.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if q == nil {
		return nil, ErrQuoteNotFound
	}
	if q.Expired(s.now()) {
		_ = s.cache.Delete(ctx, id)
		return nil, ErrQuoteNotFound
	}
	return q, nil
}

// RefreshQuote derives a brand-new quote from the stored one's original
// parameters. The stored quote may already be logically expired.
func (s *Service) RefreshQuote(ctx context.Context, id string) (*types.Quote, error) {
	old, err := s.cache.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if old == nil {
		return nil, ErrQuoteNotFound
	}

	return s.GetQuote(ctx, Request{
		FromToken:   old.Input.Token,
		ToToken:     old.Output.Token,
		AmountIn:    old.Input.Amount,
		SlippageBps: old.SlippageBps,
		UserAddress: old.UserAddress,
		Recipient:   old.Recipient,
		Options: adapter.FetchOptions{
			Include: old.IncludeSources,
			Exclude: old.ExcludeSources,
			Prefer:  old.PreferSources,
		},
	})
}

// rankRoutes sorts routes non-increasing by output amount and applies the
// tag invariants: exactly one BEST_RETURN, at least one FASTEST and one
// CHEAPEST (which may all coincide)
func rankRoutes(routes []types.Route) {
	sort.SliceStable(routes, func(i, j int) bool {
		a, errA := routes[i].OutputAmountInt()
		b, errB := routes[j].OutputAmountInt()
		if errA != nil || errB != nil {
			return errB != nil && errA == nil
		}
		return a.Cmp(b) > 0
	})

	routes[0].AddTag(types.TagBestReturn)

	fastest := 0
	for i := range routes {
		if routes[i].EstimatedSeconds < routes[fastest].EstimatedSeconds {
			fastest = i
		}
	}
	routes[fastest].AddTag(types.TagFastest)

	cheapest := 0
	cheapestGas := gasOrMax(routes[0])
	for i := 1; i < len(routes); i++ {
		if g := gasOrMax(routes[i]); g.Cmp(cheapestGas) < 0 {
			cheapest, cheapestGas = i, g
		}
	}
	routes[cheapest].AddTag(types.TagCheapest)
}

// gasOrMax parses a route's gas estimate, treating unknowns as infinitely
// expensive so they never win CHEAPEST
func gasOrMax(r types.Route) *big.Int {
	if r.EstimatedGas == "" {
		return maxGas()
	}
	v, ok := new(big.Int).SetString(r.EstimatedGas, 10)
	if !ok {
		return maxGas()
	}
	return v
}

func maxGas() *big.Int {
	return new(big.Int).Lsh(big.NewInt(1), 256)
}

// nativeDecimals returns the base-unit precision of a chain's gas coin
func nativeDecimals(chainID string) int {
	switch chainID {
	case types.ChainSolana, types.ChainSui:
		return 9
	default:
		return 18
	}
}

// usdValue converts a base-unit amount to a USD display figure
func usdValue(amount string, decimals int, price float64) float64 {
	v, ok := new(big.Int).SetString(amount, 10)
	if !ok {
		return 0
	}
	d := decimal.NewFromBigInt(v, -int32(decimals)).Mul(decimal.NewFromFloat(price))
	f, _ := d.Float64()
	return f
}
