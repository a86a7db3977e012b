package metrics

// Timeframe is one of the Metric Engine's configured windows.
type Timeframe struct {
	Minutes int
	Label   string
}

// Timeframes lists the Metric Engine's fixed set of configured
// windows, in the order scores/changes are reported.
var Timeframes = []Timeframe{
	{10, "10m"},
	{30, "30m"},
	{60, "1h"},
	{120, "2h"},
}
