package strategy

import (
	"context"
	"sync"
	"testing"

	"screener-backend/internal/domain"
)

func TestOnCycleOpensCandidateScaledBySizeScale(t *testing.T) {
	exec := &fakeExecutor{
		canOpen:      true,
		createResult: &domain.OrderResult{ExecutedQty: 1, ExecutedPrice: 50},
	}
	e := New(exec, nil, nil, nil, 1)

	metrics := map[string]map[string]domain.SymbolTimeframeMetric{
		"XYZUSDT": {
			"1h":  {NetChange: 0.05, Chop: 0.1, Efficiency: 0.6, Align: 0.7},
			"30m": {SmallMoveGate: 0.8, MomentumAtr: 0.7, NetChange: 0.02, Efficiency: 0.8, AtrValue: 2},
		},
	}
	result := domain.MoversResult{
		Metrics: metrics,
		AggregatedTop: []domain.AggregatedMoversEntry{
			{
				Entry:            domain.MoversEntry{Symbol: "XYZUSDT", LastPrice: 50},
				LiquidityPenalty: 0.1,
			},
		},
	}

	e.OnCycle(context.Background(), result)

	if len(exec.createCalls) != 1 {
		t.Fatalf("expected exactly one CreateMarketOrder call, got %d", len(exec.createCalls))
	}
	want := sizeScale(0.1 * 100)
	if exec.createCalls[0].SizeScale != want {
		t.Fatalf("CreateMarketOrder sizeScale = %v, want %v (liquidity-penalty scaled)", exec.createCalls[0].SizeScale, want)
	}
	if exec.createCalls[0].Dir != domain.Long {
		t.Fatalf("expected a LONG order given the worked-example metrics, got %v", exec.createCalls[0].Dir)
	}
	if len(exec.stopLossCalls) != 1 {
		t.Fatalf("expected the opened position to place an initial stop loss")
	}

	key := managedKey("XYZUSDT", domain.Long)
	if _, ok := e.managed[key]; !ok {
		t.Fatalf("expected the opened position to be tracked under %s", key)
	}
}

func TestOnCycleSkipsEntryGatesWhenLiquidityPenaltyTooHigh(t *testing.T) {
	exec := &fakeExecutor{canOpen: true, createResult: &domain.OrderResult{ExecutedQty: 1, ExecutedPrice: 50}}
	e := New(exec, nil, nil, nil, 1)

	metrics := map[string]map[string]domain.SymbolTimeframeMetric{
		"XYZUSDT": {
			"1h":  {NetChange: 0.05, Chop: 0.1, Efficiency: 0.6, Align: 0.7},
			"30m": {SmallMoveGate: 0.8, MomentumAtr: 0.7, NetChange: 0.02, Efficiency: 0.8, AtrValue: 2},
		},
	}
	result := domain.MoversResult{
		Metrics: metrics,
		AggregatedTop: []domain.AggregatedMoversEntry{
			{Entry: domain.MoversEntry{Symbol: "XYZUSDT", LastPrice: 50}, LiquidityPenalty: 0.5},
		},
	}

	e.OnCycle(context.Background(), result)

	if len(exec.createCalls) != 0 {
		t.Fatalf("expected no order when liquidityPenalty*100 >= 40, got %d calls", len(exec.createCalls))
	}
}

// TestOnCycleRefreshesManagedSnapshots exercises refreshManagedSnapshots
// directly: a managed position's parent/child snapshots must pick up
// this cycle's freshly computed metrics rather than staying pinned to
// the entry-time snapshot.
func TestOnCycleRefreshesManagedSnapshots(t *testing.T) {
	exec := &fakeExecutor{}
	e := New(exec, nil, nil, nil, 1)

	state := newTestState(domain.Long, 100, 90)
	state.Symbol = "XYZUSDT"
	state.ParentTimeframe = "1h"
	state.ChildTimeframe = "30m"
	state.Snapshots["1h"] = domain.SymbolTimeframeMetric{Efficiency: 0.1}
	state.Snapshots["30m"] = domain.SymbolTimeframeMetric{Efficiency: 0.1}
	e.managed[managedKey("XYZUSDT", domain.Long)] = state

	fresh := domain.SymbolTimeframeMetric{Efficiency: 0.9}
	result := domain.MoversResult{
		Metrics: map[string]map[string]domain.SymbolTimeframeMetric{
			"XYZUSDT": {"1h": fresh, "30m": fresh},
		},
	}

	e.refreshManagedSnapshots(result)

	if state.Snapshots["1h"].Efficiency != 0.9 || state.Snapshots["30m"].Efficiency != 0.9 {
		t.Fatalf("expected managed snapshots to be replaced with the fresh cycle metrics")
	}
}

func TestOnPriceTickMailboxReplacesWithNewestPendingTick(t *testing.T) {
	base := &fakeExecutor{}
	exec := &blockingExecutor{fakeExecutor: base, entered: make(chan struct{}), release: make(chan struct{})}
	e := New(exec, nil, nil, nil, 1)

	state := newTestState(domain.Long, 100, 90)
	state.ChildTimeframe = "30m"
	state.ParentTimeframe = "1h"
	state.Snapshots["30m"] = domain.SymbolTimeframeMetric{VolumeBoost: 0.6, ActiveFlow: 0.6}

	key := managedKey("BTCUSDT", domain.Long)
	e.managed[key] = state

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		e.OnPriceTick(context.Background(), domain.PriceTick{Symbol: "BTCUSDT", MarkPrice: 110})
	}()

	<-exec.entered // wait until the first tick is mid-flight inside applyBreakEven

	// Sent while the first tick is still in flight; must queue as the
	// single pending slot and return without blocking.
	e.OnPriceTick(context.Background(), domain.PriceTick{Symbol: "BTCUSDT", MarkPrice: 120})

	close(exec.release)
	wg.Wait()

	if state.LastPrice != 120 {
		t.Fatalf("LastPrice = %v, want 120 (the pending tick must run after the in-flight one)", state.LastPrice)
	}
	e.mu.Lock()
	processing := e.processingTick["BTCUSDT"]
	e.mu.Unlock()
	if processing {
		t.Fatalf("expected processingTick to clear once the mailbox drains")
	}
}

// blockingExecutor wraps fakeExecutor and blocks the first
// ReplaceStopLoss call until release is closed, so a test can force two
// OnPriceTick calls to overlap deterministically.
type blockingExecutor struct {
	*fakeExecutor
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingExecutor) ReplaceStopLoss(ctx context.Context, symbol string, dir domain.Direction, qty, stopPrice float64) error {
	b.once.Do(func() {
		close(b.entered)
		<-b.release
	})
	return b.fakeExecutor.ReplaceStopLoss(ctx, symbol, dir, qty, stopPrice)
}

var _ domain.Executor = (*blockingExecutor)(nil)
