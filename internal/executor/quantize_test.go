package executor

import (
	"testing"

	"screener-backend/internal/domain"
	"screener-backend/internal/infrastructure/binance"
)

func TestQuantizeFloorsToStepSize(t *testing.T) {
	f := binance.SymbolFilters{StepSize: 0.01, MinQty: 0, QuantityPrecision: 2}
	got := quantize(1.2349, f, 100)
	if got != 1.23 {
		t.Fatalf("quantize() = %v, want 1.23", got)
	}
}

func TestQuantizeRaisesBelowMinQty(t *testing.T) {
	f := binance.SymbolFilters{StepSize: 0.01, MinQty: 5, QuantityPrecision: 2}
	got := quantize(1.0, f, 100)
	if got != 5 {
		t.Fatalf("quantize() = %v, want 5 (raised to minQty)", got)
	}
}

func TestQuantizeRaisesBelowMinNotional(t *testing.T) {
	f := binance.SymbolFilters{StepSize: 0.1, MinQty: 0, MinNotional: 100, QuantityPrecision: 1}
	// rawQty*markPrice = 0.1*10 = 1 < minNotional(100); needed = 100/10 = 10.
	got := quantize(0.1, f, 10)
	if got != 10 {
		t.Fatalf("quantize() = %v, want 10 (raised to satisfy minNotional)", got)
	}
}

func TestRoundToPrecision(t *testing.T) {
	if got := roundTo(1.23456, 2); got != 1.23 {
		t.Fatalf("roundTo(1.23456, 2) = %v, want 1.23", got)
	}
	if got := roundTo(1.235, 2); got != 1.24 {
		t.Fatalf("roundTo(1.235, 2) = %v, want 1.24", got)
	}
}

func TestCloseSideIsOppositeOfDirection(t *testing.T) {
	if got := closeSide(domain.Long); got != "SELL" {
		t.Fatalf("closeSide(Long) = %q, want SELL", got)
	}
	if got := closeSide(domain.Short); got != "BUY" {
		t.Fatalf("closeSide(Short) = %q, want BUY", got)
	}
}

func TestBuildPositionSummariesSkipsFlatLegs(t *testing.T) {
	rows := []binance.PositionRiskEntry{
		{Symbol: "AUSDT", PositionSide: "LONG", PositionAmt: "0.00000001", EntryPrice: "100", UnRealizedProfit: "0"},
		{Symbol: "BUSDT", PositionSide: "LONG", PositionAmt: "2", EntryPrice: "100", UnRealizedProfit: "5"},
		{Symbol: "BUSDT", PositionSide: "SHORT", PositionAmt: "-1", EntryPrice: "100", UnRealizedProfit: "-2"},
	}
	summaries := buildPositionSummaries(rows)
	if _, ok := summaries["AUSDT"]; ok {
		t.Fatalf("flat AUSDT leg should have been skipped")
	}
	b, ok := summaries["BUSDT"]
	if !ok {
		t.Fatalf("BUSDT summary missing")
	}
	if b.Long == nil || b.Long.Quantity != 2 {
		t.Fatalf("BUSDT long leg = %+v, want quantity 2", b.Long)
	}
	if b.Short == nil || b.Short.Quantity != 1 {
		t.Fatalf("BUSDT short leg = %+v, want quantity 1", b.Short)
	}
	if b.Net != 1 {
		t.Fatalf("BUSDT net = %v, want 1 (2 + -1)", b.Net)
	}
}
