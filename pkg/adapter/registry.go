package adapter

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// FetchOptions narrows which adapters participate in a fan-out
type FetchOptions struct {
	Include []string // only these adapter names (empty = all)
	Exclude []string // never these
	Prefer  []string // moved to the front of results, not a filter
}

// BestBy selects the ranking criterion for GetBestQuote
type BestBy string

const (
	BestByOutput BestBy = "output"
	BestByGas    BestBy = "gas"
	BestByTime   BestBy = "time"
)

// FetchedQuote is one successful {adapter, quote, type} tuple
type FetchedQuote struct {
	Adapter Adapter
	Quote   *QuoteResult
	Type    SourceType
}

// Registry owns all adapters and fans quote requests out to them
type Registry struct {
	mu       sync.RWMutex
	adapters []Adapter
	timeout  time.Duration
	logger   zerolog.Logger
}

// NewRegistry creates an adapter registry with a per-adapter quote timeout
func NewRegistry(timeout time.Duration, logger zerolog.Logger) *Registry {
	return &Registry{
		timeout: timeout,
		logger:  logger.With().Str("component", "adapter_registry").Logger(),
	}
}

// Register adds an adapter. Later registrations with a duplicate name are
// rejected so route sources stay unambiguous.
func (r *Registry) Register(a Adapter) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.adapters {
		if existing.Name() == a.Name() {
			return errors.New("adapter already registered: " + a.Name())
		}
	}
	r.adapters = append(r.adapters, a)
	return nil
}

// Get returns the adapter registered under name, or nil
func (r *Registry) Get(name string) Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, a := range r.adapters {
		if a.Name() == name {
			return a
		}
	}
	return nil
}

// Candidates returns the adapters whose CanHandle accepts the request,
// after applying include/exclude options
func (r *Registry) Candidates(params QuoteParams, opts FetchOptions) []Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()

	included := func(name string) bool {
		if len(opts.Include) == 0 {
			return true
		}
		for _, n := range opts.Include {
			if n == name {
				return true
			}
		}
		return false
	}
	excluded := func(name string) bool {
		for _, n := range opts.Exclude {
			if n == name {
				return true
			}
		}
		return false
	}

	var out []Adapter
	for _, a := range r.adapters {
		if !included(a.Name()) || excluded(a.Name()) {
			continue
		}
		if !directionAllowed(a.Type(), params) {
			continue
		}
		if !a.CanHandle(params) {
			continue
		}
		out = append(out, a)
	}
	return out
}

// FetchAllQuotes issues one GetQuote per candidate concurrently, racing each
// against the per-adapter timeout. A timeout or error degrades that source
// to "no result" and never aborts the batch; the returned set contains only
// the successful tuples.
func (r *Registry) FetchAllQuotes(ctx context.Context, params QuoteParams, opts FetchOptions) []FetchedQuote {
	candidates := r.Candidates(params, opts)
	if len(candidates) == 0 {
		return nil
	}

	results := make([]*FetchedQuote, len(candidates))
	var wg sync.WaitGroup
	for i, a := range candidates {
		wg.Add(1)
		go func(i int, a Adapter) {
			defer wg.Done()

			qctx, cancel := context.WithTimeout(ctx, r.timeout)
			defer cancel()

			quote, err := a.GetQuote(qctx, params)
			if err != nil {
				if errors.Is(err, context.DeadlineExceeded) {
					r.logger.Warn().Str("adapter", a.Name()).Dur("timeout", r.timeout).
						Msg("adapter quote timed out")
				} else {
					r.logger.Warn().Str("adapter", a.Name()).Err(err).
						Msg("adapter quote failed")
				}
				return
			}
			if quote == nil {
				// no route for this pair
				return
			}
			results[i] = &FetchedQuote{Adapter: a, Quote: quote, Type: a.Type()}
		}(i, a)
	}
	wg.Wait()

	out := make([]FetchedQuote, 0, len(candidates))
	for _, res := range results {
		if res != nil {
			out = append(out, *res)
		}
	}
	applyPreference(out, opts.Prefer)
	return out
}

// applyPreference stable-moves preferred sources to the front, in the
// order listed. Later ranking sorts are stable, so preference survives as
// the tie-break between otherwise equal quotes.
func applyPreference(quotes []FetchedQuote, prefer []string) {
	if len(prefer) == 0 {
		return
	}
	rank := func(name string) int {
		for i, n := range prefer {
			if n == name {
				return i
			}
		}
		return len(prefer)
	}
	sort.SliceStable(quotes, func(i, j int) bool {
		return rank(quotes[i].Adapter.Name()) < rank(quotes[j].Adapter.Name())
	})
}

// GetBestQuote fetches all quotes and returns the winner under the given
// criterion, or nil when no source produced a result
func (r *Registry) GetBestQuote(ctx context.Context, params QuoteParams, opts FetchOptions, by BestBy) *FetchedQuote {
	fetched := r.FetchAllQuotes(ctx, params, opts)
	if len(fetched) == 0 {
		return nil
	}

	sort.SliceStable(fetched, func(i, j int) bool {
		return quoteLess(by, fetched[i].Quote, fetched[j].Quote)
	})
	return &fetched[0]
}

// quoteLess orders a before b under the given criterion
func quoteLess(by BestBy, a, b *QuoteResult) bool {
	switch by {
	case BestByGas:
		ga, erra := parseBigInt(a.EstimatedGas)
		gb, errb := parseBigInt(b.EstimatedGas)
		if erra != nil || errb != nil {
			return errb != nil && erra == nil
		}
		return ga.Cmp(gb) < 0
	case BestByTime:
		return a.EstimatedSeconds < b.EstimatedSeconds
	default: // BestByOutput: highest arbitrary-precision output wins
		oa, erra := parseBigInt(a.OutputAmount)
		ob, errb := parseBigInt(b.OutputAmount)
		if erra != nil || errb != nil {
			return errb != nil && erra == nil
		}
		return oa.Cmp(ob) > 0
	}
}
