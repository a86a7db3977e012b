package domain

// MoversEntry is one ranked row in a gainers/losers board.
type MoversEntry struct {
	Symbol        string
	LastPrice     float64
	ChangePercent float64
	FlowPercent   *float64
	FlowLabel     *string
	Scores        Scores
}

// Window marks the candle range a snapshot was computed over.
type Window struct {
	Start int64 // ms, openTime of the first candle in the window
	End   int64 // ms, openTime of the last candle in the window
}

// MoversSnapshot is the ranked board for a single timeframe.
type MoversSnapshot struct {
	Timeframe  string
	TopGainers []MoversEntry // sorted desc by ChangePercent, len <= 10
	TopLosers  []MoversEntry // sorted asc by ChangePercent, len <= 10
	Changes    map[string]float64
	Window     Window
}

// AggregatedMoversEntry is one row of the cross-timeframe aggregated top
// list: the single highest-finalScore (symbol, timeframe) candidate per
// symbol.
type AggregatedMoversEntry struct {
	Entry            MoversEntry
	Timeframe        string
	Window           Window
	Changes          map[string]float64
	Metrics          SymbolTimeframeMetric
	LiquidityPenalty float64
}

// MoversResult is the immutable output of one Movers Pipeline cycle.
type MoversResult struct {
	Snapshots     map[string]MoversSnapshot
	AggregatedTop []AggregatedMoversEntry // len <= 20
	Metrics       map[string]map[string]SymbolTimeframeMetric
}
