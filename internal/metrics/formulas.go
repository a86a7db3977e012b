// Package metrics implements the Metric Engine: the per-symbol,
// per-timeframe movement-quality formulas (efficiency, chop, ATR,
// momentum, flow) computed over a window of 1-minute
// candles.
package metrics

import (
	"math"

	"screener-backend/internal/domain"
)

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// efficiency is |Σ log-return| / Σ |log-return|, clamped to [0,1]; 0
// when the denominator is 0.
func efficiency(window []domain.Candle) float64 {
	var signedSum, absSum float64
	for _, c := range window {
		if c.Open <= 0 || c.Close <= 0 {
			continue
		}
		r := math.Log(c.Close / c.Open)
		signedSum += r
		absSum += math.Abs(r)
	}
	if absSum == 0 {
		return 0
	}
	ratio := math.Abs(signedSum) / absSum
	// Log-returns that cancel exactly can leave a ~1e-16 residue in
	// floating point; treat that as perfect cancellation.
	if ratio < 1e-12 {
		return 0
	}
	return clamp(ratio, 0, 1)
}

// chop measures wasted incremental motion relative to the net change.
func chop(window []domain.Candle, netChange float64) float64 {
	var inc float64
	for _, c := range window {
		if c.Open <= 0 {
			continue
		}
		inc += (c.Close - c.Open) / c.Open
	}
	waste := math.Max(0, inc-netChange)
	denom := waste + math.Abs(netChange)
	if denom == 0 {
		return 0
	}
	return clamp(waste/denom, 0, 1)
}

// meanTrueRange computes the mean true range over window (not
// Wilder-smoothed). The first candle's true range uses its own
// high-low since there is no prior close in scope.
func meanTrueRange(window []domain.Candle) float64 {
	if len(window) == 0 {
		return 0
	}
	var sum float64
	prevClose := window[0].Open
	for _, c := range window {
		tr := math.Max(c.High-c.Low, math.Max(math.Abs(c.High-prevClose), math.Abs(c.Low-prevClose)))
		sum += tr
		prevClose = c.Close
	}
	return sum / float64(len(window))
}

func momentumAtr(netChange, atrPct float64) float64 {
	if atrPct <= 0 {
		return 0
	}
	return clamp(math.Abs(netChange)/(2*atrPct), 0, 1)
}

func smallMoveGate(netChange float64) float64 {
	return clamp(math.Abs(netChange)/(3*0.01), 0, 1)
}

// flowAggregate computes flowRatio = Σtaker/Σquote over window (nil if
// Σquote==0) and its label.
func flowAggregate(window []domain.Candle) (*float64, string) {
	var sumTaker, sumQuote float64
	for _, c := range window {
		sumTaker += c.TakerBuyQuoteVolume
		sumQuote += c.QuoteVolume
	}
	if sumQuote <= 0 {
		return nil, "balanced"
	}
	ratio := sumTaker / sumQuote
	label := "balanced"
	switch {
	case ratio >= 0.62:
		label = "buy-strong"
	case ratio <= 0.38:
		label = "sell-strong"
	}
	return &ratio, label
}

func flowImmediateBase(flowRatio *float64) float64 {
	if flowRatio == nil {
		return 0.5
	}
	return (math.Tanh((*flowRatio-0.5)/0.2) + 1) / 2
}

// flowPersistence correlates the per-minute flow deviation (centered at
// 0.5) against per-minute returns, then combines the correlation with
// the directional agreement ratio.
func flowPersistence(window []domain.Candle) float64 {
	n := len(window)
	if n == 0 {
		return 0
	}

	flows := make([]float64, n)
	returns := make([]float64, n)
	for i, c := range window {
		f := 0.5
		if c.QuoteVolume > 0 {
			f = clamp(c.TakerBuyQuoteVolume/c.QuoteVolume, 0, 1)
		}
		flows[i] = f - 0.5

		ret := 0.0
		if c.Open > 0 {
			ret = (c.Close - c.Open) / c.Open
		}
		returns[i] = ret
	}

	zFlows := zScore(flows)
	zReturns := zScore(returns)

	var product float64
	for i := range zFlows {
		product += zFlows[i] * zReturns[i]
	}
	corr := clamp(product/float64(n), -1, 1)

	var agree, compared int
	for i := range flows {
		fs := signOf(flows[i])
		rs := signOf(returns[i])
		if fs == 0 || rs == 0 {
			continue
		}
		compared++
		if fs == rs {
			agree++
		}
	}
	agreeRatio := 0.0
	if compared > 0 {
		agreeRatio = float64(agree) / float64(compared)
	}

	return clamp(((corr+1)/2)*agreeRatio, 0, 1)
}

func zScore(values []float64) []float64 {
	n := float64(len(values))
	if n == 0 {
		return values
	}
	var mean float64
	for _, v := range values {
		mean += v
	}
	mean /= n

	var variance float64
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= n
	std := math.Sqrt(variance)
	if std < 1e-9 {
		std = 1
	}

	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = (v - mean) / std
	}
	return out
}

func signOf(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
