// Package movers implements the Movers Pipeline: per-cycle
// orchestration of the universe, candle/liquidity fan-out, the Metric
// Engine, and the Score Fuser.
package movers

import (
	"context"
	"math"
	"sync"

	"screener-backend/internal/domain"
	"screener-backend/internal/liquidity"
	"screener-backend/internal/metrics"
	"screener-backend/internal/obslog"
	"screener-backend/internal/scoring"
)

const (
	concurrency = 8
	klineLimit  = 1440
)

// CandleFetcher is the subset of the Exchange Facade the pipeline
// needs for candle history.
type CandleFetcher interface {
	GetKlines(ctx context.Context, symbol string, limit int) ([]domain.Candle, error)
}

// UniverseSource resolves the current tradable symbol set.
type UniverseSource interface {
	Symbols(ctx context.Context) ([]string, error)
}

// Pipeline wires C3 → C2 → C4 → C6 → C5 into a single per-cycle run. It
// also carries each symbol/timeframe's rolling close/efficiency/momentum
// history across cycles, since the Metric Engine itself is stateless.
type Pipeline struct {
	universe  UniverseSource
	candles   CandleFetcher
	liquidity liquidity.Fetcher

	historyMu sync.Mutex
	history   map[string]map[string]domain.SymbolTimeframeMetric
}

// NewPipeline builds a Pipeline over its collaborators.
func NewPipeline(universe UniverseSource, candles CandleFetcher, liq liquidity.Fetcher) *Pipeline {
	return &Pipeline{
		universe:  universe,
		candles:   candles,
		liquidity: liq,
		history:   make(map[string]map[string]domain.SymbolTimeframeMetric),
	}
}

// applyHistory carries the prior cycles' rolling history arrays forward
// onto this cycle's freshly computed metric, appends the current
// sample, and records the result for the next cycle.
func (p *Pipeline) applyHistory(symbol string, fresh map[string]domain.SymbolTimeframeMetric) {
	p.historyMu.Lock()
	defer p.historyMu.Unlock()

	prior := p.history[symbol]
	updated := make(map[string]domain.SymbolTimeframeMetric, len(fresh))
	for label, m := range fresh {
		if prev, ok := prior[label]; ok {
			m.CloseHistory = prev.CloseHistory
			m.EfficiencyHistory = prev.EfficiencyHistory
			m.MomentumHistory = prev.MomentumHistory
		}
		m.PushHistory(m.LatestClose, m.Efficiency, m.MomentumAtr)
		fresh[label] = m
		updated[label] = m
	}
	p.history[symbol] = updated
}

// Run executes one cycle: resolve the universe, fetch candles and
// liquidity in chunks of concurrency, compute metrics, and fuse
// scores into a MoversResult.
func (p *Pipeline) Run(ctx context.Context) (domain.MoversResult, error) {
	symbols, err := p.universe.Symbols(ctx)
	if err != nil {
		return domain.MoversResult{}, err
	}
	if len(symbols) == 0 {
		return domain.MoversResult{Snapshots: map[string]domain.MoversSnapshot{}, Metrics: map[string]map[string]domain.SymbolTimeframeMetric{}}, nil
	}

	inputs := make(map[string]scoring.SymbolInput, len(symbols))
	var mu sync.Mutex

	chunks := chunk(symbols, concurrency)
	for _, c := range chunks {
		var wg sync.WaitGroup
		for _, symbol := range c {
			wg.Add(1)
			go func(symbol string) {
				defer wg.Done()
				input, ok := p.processSymbol(ctx, symbol)
				if !ok {
					return
				}
				mu.Lock()
				inputs[symbol] = input
				mu.Unlock()
			}(symbol)
		}
		wg.Wait()
	}

	return scoring.Fuse(inputs), nil
}

func (p *Pipeline) processSymbol(ctx context.Context, symbol string) (scoring.SymbolInput, bool) {
	candles, err := p.candles.GetKlines(ctx, symbol, klineLimit)
	if err != nil {
		obslog.Warnf("candles fetch failed symbol=%s err=%v", symbol, err)
		return scoring.SymbolInput{}, false
	}
	if len(candles) == 0 {
		return scoring.SymbolInput{}, false
	}

	lastClose := candles[len(candles)-1].Close
	if math.IsNaN(lastClose) || math.IsInf(lastClose, 0) || lastClose <= 0 {
		return scoring.SymbolInput{}, false
	}

	symbolMetrics := metrics.Compute(candles)
	if len(symbolMetrics) == 0 {
		return scoring.SymbolInput{}, false
	}
	p.applyHistory(symbol, symbolMetrics)

	penalty := liquidity.Penalty(ctx, p.liquidity, symbol)

	return scoring.SymbolInput{
		LastPrice:        lastClose,
		LiquidityPenalty: penalty,
		Metrics:          symbolMetrics,
	}, true
}

func chunk(symbols []string, size int) [][]string {
	var out [][]string
	for i := 0; i < len(symbols); i += size {
		end := i + size
		if end > len(symbols) {
			end = len(symbols)
		}
		out = append(out, symbols[i:end])
	}
	return out
}
