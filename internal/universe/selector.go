// Package universe implements the Universe Selector: a TTL-cached
// top-N ranking of tradable perpetual symbols by 24h quote volume.
package universe

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"screener-backend/internal/infrastructure/binance"
)

const (
	refreshInterval    = 12 * time.Hour
	maxSelectedSymbols = 80
)

// Fetcher is the subset of the Exchange Facade the selector needs.
type Fetcher interface {
	ListPerpetuals(ctx context.Context) ([]binance.PerpetualSymbol, error)
	Get24hQuoteVolumes(ctx context.Context) (map[string]float64, error)
}

// Selector caches the ranked perpetual universe, refreshed on TTL.
type Selector struct {
	fetcher Fetcher

	mu         sync.RWMutex
	symbols    []string
	filters    map[string]binance.SymbolFilters
	fetchedAt  time.Time
}

// NewSelector builds a Selector over the given Fetcher.
func NewSelector(fetcher Fetcher) *Selector {
	return &Selector{fetcher: fetcher, filters: make(map[string]binance.SymbolFilters)}
}

// Symbols returns the cached top-N symbol list, refreshing it first if
// the TTL has expired or the cache has never been populated.
func (s *Selector) Symbols(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	stale := time.Since(s.fetchedAt) >= refreshInterval
	cached := s.symbols
	s.mu.RUnlock()

	if !stale && cached != nil {
		return cached, nil
	}
	return s.refresh(ctx)
}

// Filters returns the cached quantization filters for symbol, the zero
// value and false if unknown.
func (s *Selector) Filters(symbol string) (binance.SymbolFilters, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.filters[symbol]
	return f, ok
}

func (s *Selector) refresh(ctx context.Context) ([]string, error) {
	perpetuals, err := s.fetcher.ListPerpetuals(ctx)
	if err != nil {
		return nil, err
	}
	volumes, err := s.fetcher.Get24hQuoteVolumes(ctx)
	if err != nil {
		return nil, err
	}

	type ranked struct {
		symbol string
		volume float64
	}
	candidates := make([]ranked, 0, len(perpetuals))
	filters := make(map[string]binance.SymbolFilters, len(perpetuals))
	for _, p := range perpetuals {
		v, ok := volumes[p.Symbol]
		if !ok {
			continue
		}
		candidates = append(candidates, ranked{symbol: p.Symbol, volume: v})
		filters[p.Symbol] = p.Filters
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].volume > candidates[j].volume
	})

	top := int(math.Ceil(float64(len(candidates)) / 2))
	if top > maxSelectedSymbols {
		top = maxSelectedSymbols
	}
	if top > len(candidates) {
		top = len(candidates)
	}

	symbols := make([]string, top)
	for i := 0; i < top; i++ {
		symbols[i] = candidates[i].symbol
	}

	s.mu.Lock()
	s.symbols = symbols
	s.filters = filters
	s.fetchedAt = time.Now()
	s.mu.Unlock()

	return symbols, nil
}
