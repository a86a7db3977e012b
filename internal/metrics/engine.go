package metrics

import (
	"screener-backend/internal/domain"
)

// Compute builds the per-timeframe metrics for one symbol's normalized
// 1-minute candle history. Timeframes whose reference candle is
// missing, or whose window length doesn't match, are omitted from the
// result.
func Compute(candles []domain.Candle) map[string]domain.SymbolTimeframeMetric {
	out := make(map[string]domain.SymbolTimeframeMetric, len(Timeframes))
	if len(candles) == 0 {
		return out
	}

	for _, tf := range Timeframes {
		window := domain.WindowEndingAt(candles, tf.Minutes)
		if window == nil {
			continue
		}
		m, ok := computeWindow(tf, window)
		if !ok {
			continue
		}
		out[tf.Label] = m
	}
	return out
}

func computeWindow(tf Timeframe, window []domain.Candle) (domain.SymbolTimeframeMetric, bool) {
	first := window[0]
	last := window[len(window)-1]
	if first.Open <= 0 || last.Close <= 0 {
		return domain.SymbolTimeframeMetric{}, false
	}

	netChange := (last.Close - first.Open) / first.Open
	eff := efficiency(window)
	ch := chop(window, netChange)

	atr := meanTrueRange(window)
	atrPct := 0.0
	if last.Close > 0 {
		atrPct = atr / last.Close
	}

	var totalQuote float64
	for _, c := range window {
		totalQuote += c.QuoteVolume
	}

	flowRatio, flowLabel := flowAggregate(window)

	m := domain.SymbolTimeframeMetric{
		Timeframe:         tf.Label,
		WindowStart:       first.OpenTime,
		WindowEnd:         last.OpenTime,
		NetChange:         netChange,
		ChangePercent:     netChange * 100,
		Efficiency:        eff,
		Chop:              ch,
		MomentumAtr:       momentumAtr(netChange, atrPct),
		SmallMoveGate:     smallMoveGate(netChange),
		AtrValue:          atr,
		TotalQuoteVolume:  totalQuote,
		FlowRatio:         flowRatio,
		FlowLabel:         flowLabel,
		FlowImmediateBase: flowImmediateBase(flowRatio),
		FlowPersistence:   flowPersistence(window),
		LatestClose:       last.Close,
		HighestClose:      last.Close,
		LowestClose:       last.Close,
	}

	for _, c := range window {
		if c.Close > m.HighestClose {
			m.HighestClose = c.Close
		}
		if c.Close < m.LowestClose {
			m.LowestClose = c.Close
		}
	}

	return m, true
}
