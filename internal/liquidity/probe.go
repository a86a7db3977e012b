// Package liquidity implements the Liquidity Probe: a best-effort
// spread/slippage penalty derived from the order book.
package liquidity

import (
	"context"
	"math"

	"screener-backend/internal/infrastructure/binance"
)

const (
	slippageTargetQuote = 10_000.0
	depthLimit           = 200
)

// Fetcher is the subset of the Exchange Facade the probe needs.
type Fetcher interface {
	GetBookTicker(ctx context.Context, symbol string) (binance.BookTicker, error)
	GetDepth(ctx context.Context, symbol string, limit int) (binance.Depth, error)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Penalty computes the [0,1] liquidity penalty for symbol. The probe is
// best-effort: any fetch failure, or a degenerate book, yields a
// penalty of 0 so the symbol is kept rather than dropped.
func Penalty(ctx context.Context, fetcher Fetcher, symbol string) float64 {
	ticker, err := fetcher.GetBookTicker(ctx, symbol)
	if err != nil {
		return 0
	}
	depth, err := fetcher.GetDepth(ctx, symbol, depthLimit)
	if err != nil {
		return 0
	}

	bid, ask := ticker.Bid, ticker.Ask
	if ask <= bid || bid <= 0 || ask <= 0 {
		return 0
	}
	mid := (bid + ask) / 2
	spreadBps := (ask - bid) / mid * 10000

	buySlippage, buyOK := walkSlippage(depth.Asks, mid, slippageTargetQuote, false)
	sellSlippage, sellOK := walkSlippage(depth.Bids, mid, slippageTargetQuote, true)

	if !buyOK || !sellOK {
		return clamp(clamp(spreadBps/10, 0, 1)*0.6+0.4, 0, 1)
	}

	slippageBps := math.Max(buySlippage, sellSlippage)
	penalty := clamp(spreadBps/10, 0, 1)*0.6 + clamp(slippageBps/20, 0, 1)*0.4
	return clamp(penalty, 0, 1)
}

// walkSlippage consumes ladder levels until target quote notional is
// filled, returning the slippage in bps (mirrored for sells) and
// whether the target was fully filled within 5% tolerance.
func walkSlippage(levels []binance.DepthLevel, mid, target float64, sell bool) (float64, bool) {
	var filledQuote, weightedPrice float64
	for _, lvl := range levels {
		levelQuote := lvl.Price * lvl.Quantity
		remaining := target - filledQuote
		if remaining <= 0 {
			break
		}
		take := levelQuote
		if take > remaining {
			take = remaining
		}
		weightedPrice += lvl.Price * take
		filledQuote += take
	}
	if filledQuote == 0 {
		return 0, false
	}
	if (target-filledQuote)/target > 0.05 {
		return 0, false
	}

	avgFill := weightedPrice / filledQuote
	var bps float64
	if sell {
		bps = (mid - avgFill) / mid * 10000
	} else {
		bps = (avgFill - mid) / mid * 10000
	}
	return bps, true
}
