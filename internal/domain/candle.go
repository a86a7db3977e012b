package domain

import "math"

// Candle is a single 1-minute bucketed kline.
type Candle struct {
	OpenTime             int64 // ms
	Open                 float64
	High                 float64
	Low                  float64
	Close                float64
	Volume               float64
	QuoteVolume          float64
	TakerBuyQuoteVolume  float64
}

func (c Candle) finite() bool {
	return isFinite(c.Open) && isFinite(c.High) && isFinite(c.Low) &&
		isFinite(c.Close) && isFinite(c.Volume) && isFinite(c.QuoteVolume) &&
		isFinite(c.TakerBuyQuoteVolume)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// NormalizeCandles dedupes by OpenTime (keeping the last seen value for a
// given bucket), drops any row with a non-finite field, and returns the
// result strictly ordered by ascending OpenTime. Rows are never zero-filled.
func NormalizeCandles(raw []Candle) []Candle {
	byTime := make(map[int64]Candle, len(raw))
	order := make([]int64, 0, len(raw))
	for _, c := range raw {
		if !c.finite() {
			continue
		}
		if _, seen := byTime[c.OpenTime]; !seen {
			order = append(order, c.OpenTime)
		}
		byTime[c.OpenTime] = c
	}

	out := make([]Candle, 0, len(order))
	for _, t := range order {
		out = append(out, byTime[t])
	}

	// Sort ascending by OpenTime; input is expected near-sorted so an
	// insertion sort keeps this simple and avoids importing sort for a
	// tiny, already-mostly-ordered slice... but be correct for any input.
	for i := 1; i < len(out); i++ {
		j := i
		for j > 0 && out[j-1].OpenTime > out[j].OpenTime {
			out[j-1], out[j] = out[j], out[j-1]
			j--
		}
	}
	return out
}

// WindowEndingAt returns the contiguous slice of candles with
// OpenTime in (referenceOpenTime, latestOpenTime], or nil if the
// reference candle is missing or the window length doesn't match minutes.
func WindowEndingAt(candles []Candle, minutes int) []Candle {
	if len(candles) == 0 {
		return nil
	}
	latest := candles[len(candles)-1]
	refTime := latest.OpenTime - int64(minutes)*60_000

	refIdx := -1
	for i, c := range candles {
		if c.OpenTime == refTime {
			refIdx = i
			break
		}
	}
	if refIdx < 0 {
		return nil
	}

	window := candles[refIdx+1:]
	if len(window) != minutes {
		return nil
	}
	return window
}
