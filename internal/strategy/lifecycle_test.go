package strategy

import (
	"context"
	"testing"

	"screener-backend/internal/domain"
)

func TestBreakEvenThresholdStrongFlowIsLower(t *testing.T) {
	if got := breakEvenThreshold(60, 60); got != 1.0 {
		t.Fatalf("breakEvenThreshold(strong) = %v, want 1.0", got)
	}
	if got := breakEvenThreshold(40, 40); got != 1.3 {
		t.Fatalf("breakEvenThreshold(weak) = %v, want 1.3", got)
	}
}

func TestBreakEvenStopPriceNearEntryAndOnSafeSideOfPrice(t *testing.T) {
	entry := 100.0
	price := 105.0
	stop := breakEvenStopPrice(domain.Long, entry, price)
	if stop >= price {
		t.Fatalf("long break-even stop %v must stay below current price %v", stop, price)
	}
	if stop <= entry*0.99 {
		t.Fatalf("long break-even stop %v should sit close to entry %v, not deeply below it", stop, entry)
	}

	entryShort := 100.0
	priceShort := 95.0
	stopShort := breakEvenStopPrice(domain.Short, entryShort, priceShort)
	if stopShort <= priceShort {
		t.Fatalf("short break-even stop %v must stay above current price %v", stopShort, priceShort)
	}
}

func TestTrailingStopLongOnlyTightens(t *testing.T) {
	// New extreme improves the stop: ref=110, multiple*atr=8 -> candidate 102,
	// which tightens past the current stop (100) without crossing price (105).
	newTrail, ok := trailingStop(domain.Long, 110, 90, 110, 90, 1, 8, 100, 105)
	if !ok {
		t.Fatalf("expected trailing stop to apply")
	}
	if newTrail <= 100 {
		t.Fatalf("trailing stop %v did not tighten beyond current stop 100", newTrail)
	}
	if newTrail >= 105 {
		t.Fatalf("trailing stop %v must stay below current price 105", newTrail)
	}

	// Candidate below current stop must be rejected.
	_, ok = trailingStop(domain.Long, 101, 90, 101, 90, 1, 2, 100, 105)
	if ok {
		t.Fatalf("trailing stop must not move backward")
	}
}

func TestTrailingStopRejectsCrossingPrice(t *testing.T) {
	// ref - multiple*atr would land above current price; must reject.
	_, ok := trailingStop(domain.Long, 200, 90, 200, 90, 0.1, 1, 100, 105)
	if ok {
		t.Fatalf("trailing stop must not land at or above current price")
	}
}

func TestTimeStopThresholdMinimumOne(t *testing.T) {
	if got := timeStopThreshold(60, 10); got != 18 {
		t.Fatalf("timeStopThreshold(60,10) = %v, want 18", got)
	}
	if got := timeStopThreshold(0, 10); got != 1 {
		t.Fatalf("timeStopThreshold(0,10) = %v, want 1 (floored)", got)
	}
	if got := timeStopThreshold(60, 0); got != 1 {
		t.Fatalf("timeStopThreshold with zero childMinutes = %v, want 1", got)
	}
}

func TestStructureBrokenRequiresBothClosesWrongSide(t *testing.T) {
	threshold := 100.0
	if structureBroken(domain.Long, []float64{99, 101}, threshold) {
		t.Fatalf("one close on the right side must not count as broken")
	}
	if !structureBroken(domain.Long, []float64{98, 99}, threshold) {
		t.Fatalf("both closes below threshold should count as broken for LONG")
	}
	if structureBroken(domain.Long, []float64{99}, threshold) {
		t.Fatalf("fewer than two closes must not trigger a break")
	}
}

func TestPartialQtyCappedAtTotal(t *testing.T) {
	if got := partialQty(10, 2); got != 2 {
		t.Fatalf("partialQty(10,2) = %v, want 2 (capped by total)", got)
	}
	if got := partialQty(10, 100); got != 3 {
		t.Fatalf("partialQty(10,100) = %v, want 3 (0.3*base)", got)
	}
}

func TestRAndMaxRMonotonic(t *testing.T) {
	state := &domain.ManagedPositionState{
		Direction:         domain.Long,
		EntryPrice:        100,
		InitialSlDistance: 10,
	}
	if got := state.UpdateMaxR(105); got != 0.5 {
		t.Fatalf("R at 105 = %v, want 0.5", got)
	}
	if state.MaxR != 0.5 {
		t.Fatalf("MaxR = %v, want 0.5", state.MaxR)
	}
	// Price retreats: R drops but MaxR must not decrease.
	state.UpdateMaxR(102)
	if state.MaxR != 0.5 {
		t.Fatalf("MaxR decreased to %v after a pullback, want unchanged 0.5", state.MaxR)
	}
	// New high updates MaxR.
	state.UpdateMaxR(120)
	if state.MaxR != 2.0 {
		t.Fatalf("MaxR = %v after new high, want 2.0", state.MaxR)
	}
}

func TestInitialSlDistanceIsImmutableAcrossTrailing(t *testing.T) {
	e := New(&fakeExecutor{}, nil, nil, nil, 1)
	state := newTestState(domain.Long, 100, 90)
	state.TrailAtrMultiple = 1
	state.ParentAtr = 8
	before := state.InitialSlDistance
	// ref=110, 1*8 -> trail at 102: tightens past 90 and stays below price 105.
	parent := domain.SymbolTimeframeMetric{HighestClose: 110, LowestClose: 90}
	e.applyTrailing(context.Background(), state, parent, 105)
	if state.TrailPrice == nil || state.StopPrice != 102 {
		t.Fatalf("expected trailing to move the stop to 102, got %v", state.StopPrice)
	}
	if state.InitialSlDistance != before {
		t.Fatalf("InitialSlDistance changed from %v to %v", before, state.InitialSlDistance)
	}
}
