package domain

// HistoryCap bounds the per-symbol rolling history arrays kept on
// SymbolTimeframeMetric.
const HistoryCap = 240

// SymbolTimeframeMetric holds the derived movement-quality measures for
// one (symbol, timeframe) pair, plus the cross-symbol fused scores once
// the Score Fuser has run.
type SymbolTimeframeMetric struct {
	Timeframe string

	WindowStart int64 // ms, openTime of the window's first candle
	WindowEnd   int64 // ms, openTime of the window's last candle

	NetChange     float64 // fractional, e.g. 0.02 == +2%
	ChangePercent float64 // percent-scaled, e.g. 2.0 == +2%

	Efficiency    float64 // [0,1]
	Chop          float64 // [0,1]
	MomentumAtr   float64 // [0,1]
	SmallMoveGate float64 // [0,1]
	AtrValue      float64

	TotalQuoteVolume float64

	FlowRatio *float64 // [0,1], nil if undefined (Σquote == 0)
	FlowLabel string   // "buy-strong" | "sell-strong" | "balanced"

	FlowImmediateBase float64 // [0,1], 0.5 when flow undefined

	Align           float64 // [0,1]
	MtfConsistency  float64 // [0,1]
	VolumeBoost     float64 // [0,1]
	ActiveFlow      float64 // [0,1]
	FlowPersistence float64 // [0,1]

	CoreScore    float64
	ConfirmScore float64
	FinalScore   float64 // [0,1]

	LatestClose  float64
	HighestClose float64
	LowestClose  float64

	CloseHistory      []float64
	EfficiencyHistory []float64
	MomentumHistory   []float64
}

// PushHistory appends to the bounded history arrays, evicting the oldest
// entry once HistoryCap is exceeded.
func (m *SymbolTimeframeMetric) PushHistory(closeVal, efficiency, momentum float64) {
	m.CloseHistory = appendCapped(m.CloseHistory, closeVal)
	m.EfficiencyHistory = appendCapped(m.EfficiencyHistory, efficiency)
	m.MomentumHistory = appendCapped(m.MomentumHistory, momentum)
}

func appendCapped(s []float64, v float64) []float64 {
	s = append(s, v)
	if len(s) > HistoryCap {
		s = s[len(s)-HistoryCap:]
	}
	return s
}

// Scores is the trading-facing percent-scaled view of a metric used by
// the Strategy Engine's framework/direction/gating logic.
type Scores struct {
	Trend      float64
	Efficiency float64
	Align      float64
	Volume     float64
	Flow       float64
}

// SignedTrend implements signedTrend(m) = (1-chop)*100 * sign(netChange).
func (m SymbolTimeframeMetric) SignedTrend() float64 {
	return (1 - m.Chop) * 100 * sign(m.NetChange)
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// ScoresView builds scores(m) = {trend, efficiency, align, volume, flow}.
// flow prefers the Score Fuser's ActiveFlow (FlowImmediateBase scaled
// by the volume gate), falling back to FlowImmediateBase whenever
// ActiveFlow is 0: not computed (e.g. a metric built outside the Score
// Fuser) or zeroed by an at-or-below-mean volume z-score.
func (m SymbolTimeframeMetric) ScoresView() Scores {
	flowBoost := m.ActiveFlow
	if flowBoost == 0 {
		flowBoost = m.FlowImmediateBase
	}
	return Scores{
		Trend:      abs(m.SignedTrend()),
		Efficiency: m.Efficiency * 100,
		Align:      m.Align * 100,
		Volume:     m.VolumeBoost * 100,
		Flow:       flowBoost * 100,
	}
}
