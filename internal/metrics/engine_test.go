package metrics

import (
	"math"
	"testing"

	"screener-backend/internal/domain"
)

// TestComputePureTrend mirrors the pure-trend scenario: 60 one-minute
// candles each closing 0.1% above their open, with no retrace.
func TestComputePureTrend(t *testing.T) {
	const step = 0.001
	candles := make([]domain.Candle, 61)
	price := 100.0
	for i := 0; i <= 60; i++ {
		open := price
		close := open * (1 + step)
		candles[i] = domain.Candle{
			OpenTime:    int64(i) * 60_000,
			Open:        open,
			High:        close,
			Low:         open,
			Close:       close,
			QuoteVolume: 1,
		}
		price = close
	}

	metrics := Compute(candles)
	m, ok := metrics["1h"]
	if !ok {
		t.Fatalf("1h metric missing")
	}
	if m.Efficiency != 1 {
		t.Fatalf("efficiency = %v, want 1", m.Efficiency)
	}
	if m.Chop != 0 {
		t.Fatalf("chop = %v, want 0", m.Chop)
	}
	if math.Abs(m.NetChange-0.06) > 0.01 {
		t.Fatalf("netChange = %v, want ~0.06", m.NetChange)
	}
	if m.SmallMoveGate != 1 {
		t.Fatalf("smallMoveGate = %v, want 1", m.SmallMoveGate)
	}
}

func TestComputeOmitsMissingReferenceCandle(t *testing.T) {
	candles := []domain.Candle{
		{OpenTime: 0, Open: 100, Close: 101},
		{OpenTime: 60_000, Open: 101, Close: 102},
	}
	metrics := Compute(candles)
	if _, ok := metrics["1h"]; ok {
		t.Fatalf("expected 1h to be omitted when reference candle is missing")
	}
}
