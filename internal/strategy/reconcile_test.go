package strategy

import (
	"testing"

	"screener-backend/internal/domain"
)

func TestReconcileDropsPositionMissingFromExchange(t *testing.T) {
	e := New(&fakeExecutor{}, nil, nil, nil, 1)

	state := newTestState(domain.Long, 100, 90)
	state.Symbol = "XYZUSDT"
	key := managedKey("XYZUSDT", domain.Long)
	e.managed[key] = state

	e.reconcile(map[string]domain.PositionSummary{}) // exchange reports nothing for XYZUSDT

	if _, ok := e.managed[key]; ok {
		t.Fatalf("expected reconcile to drop a position the exchange no longer reports")
	}
}

func TestReconcileDropsPositionMissingLeg(t *testing.T) {
	e := New(&fakeExecutor{}, nil, nil, nil, 1)

	state := newTestState(domain.Long, 100, 90)
	state.Symbol = "XYZUSDT"
	key := managedKey("XYZUSDT", domain.Long)
	e.managed[key] = state

	// The exchange reports the symbol, but only a SHORT leg.
	positions := map[string]domain.PositionSummary{
		"XYZUSDT": {Symbol: "XYZUSDT", Short: &domain.PositionLeg{Quantity: 2}},
	}
	e.reconcile(positions)

	if _, ok := e.managed[key]; ok {
		t.Fatalf("expected reconcile to drop a LONG managed state when only a SHORT leg is reported")
	}
}

func TestReconcileSyncsTotalQuantityForSurvivingLeg(t *testing.T) {
	e := New(&fakeExecutor{}, nil, nil, nil, 1)

	state := newTestState(domain.Long, 100, 90)
	state.Symbol = "XYZUSDT"
	state.TotalQuantity = 1
	key := managedKey("XYZUSDT", domain.Long)
	e.managed[key] = state

	positions := map[string]domain.PositionSummary{
		"XYZUSDT": {Symbol: "XYZUSDT", Long: &domain.PositionLeg{Quantity: 1.7}},
	}
	e.reconcile(positions)

	got, ok := e.managed[key]
	if !ok {
		t.Fatalf("expected the managed state to survive when its leg is still reported")
	}
	if got.TotalQuantity != 1.7 {
		t.Fatalf("TotalQuantity = %v, want 1.7 synced from the exchange leg", got.TotalQuantity)
	}
}
