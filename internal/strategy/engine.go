// Package strategy implements the Strategy Engine: framework/direction
// selection, entry gating, sizing, and the full position lifecycle
// state machine.
package strategy

import (
	"context"
	"math"
	"sync"
	"time"

	"screener-backend/internal/domain"
	"screener-backend/internal/obslog"
)

// Engine owns every ManagedPositionState and reacts to cycle results
// and live price ticks.
type Engine struct {
	executor      domain.Executor
	streamer      domain.PriceStreamer
	notifier      domain.Notifier
	positionsRepo domain.PositionsRepository
	kSlBuffer     float64

	mu             sync.Mutex
	managed        map[string]*domain.ManagedPositionState
	processingTick map[string]bool
	pendingTick    map[string]domain.PriceTick
	unsubscribeFns map[string]func()
}

// New builds an Engine. kSlBuffer is the KSL_BUFFER env multiplier
// (default 1, clamped [0.5,2]).
func New(executor domain.Executor, streamer domain.PriceStreamer, notifier domain.Notifier, positionsRepo domain.PositionsRepository, kSlBuffer float64) *Engine {
	return &Engine{
		executor:       executor,
		streamer:       streamer,
		notifier:       notifier,
		positionsRepo:  positionsRepo,
		kSlBuffer:      kSlBuffer,
		managed:        make(map[string]*domain.ManagedPositionState),
		processingTick: make(map[string]bool),
		pendingTick:    make(map[string]domain.PriceTick),
		unsubscribeFns: make(map[string]func()),
	}
}

func managedKey(symbol string, dir domain.Direction) string {
	return symbol + "|" + string(dir)
}

// OnCycle reacts to one Movers Pipeline cycle: reconcile, evaluate
// existing positions, open new candidates, then evaluate existing
// positions again so just-opened positions get at least one
// management pass.
func (e *Engine) OnCycle(ctx context.Context, result domain.MoversResult) {
	if err := e.executor.RefreshState(ctx); err != nil {
		obslog.Errorf("strategy cycle: refreshState err=%v", err)
	}
	e.reconcile(e.executor.Positions())
	e.refreshManagedSnapshots(result)

	e.evaluateAll(ctx)
	e.openEligibleCandidates(ctx, result)
	e.evaluateAll(ctx)

	e.publishSnapshot()
}

// refreshManagedSnapshots replaces each managed position's parent/child
// snapshots with this cycle's freshly computed metrics, so lifecycle
// decisions (adds, trailing) act on current market state rather than
// the entry-time snapshot.
func (e *Engine) refreshManagedSnapshots(result domain.MoversResult) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, state := range e.managed {
		symbolMetrics, ok := result.Metrics[state.Symbol]
		if !ok {
			continue
		}
		if m, ok := symbolMetrics[state.ParentTimeframe]; ok {
			state.Snapshots[state.ParentTimeframe] = m
		}
		if m, ok := symbolMetrics[state.ChildTimeframe]; ok {
			state.Snapshots[state.ChildTimeframe] = m
		}
	}
}

func (e *Engine) snapshotKeys() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	keys := make([]string, 0, len(e.managed))
	for k := range e.managed {
		keys = append(keys, k)
	}
	return keys
}

func (e *Engine) evaluateAll(ctx context.Context) {
	for _, k := range e.snapshotKeys() {
		e.mu.Lock()
		state, ok := e.managed[k]
		e.mu.Unlock()
		if !ok {
			continue
		}
		price, err := e.executor.GetMarkPrice(ctx, state.Symbol)
		if err != nil || price <= 0 {
			continue
		}
		e.evaluatePosition(ctx, k, state, price)
	}
}

func (e *Engine) publishSnapshot() {
	if e.positionsRepo == nil {
		return
	}
	e.mu.Lock()
	states := make([]domain.ManagedPositionState, 0, len(e.managed))
	for _, s := range e.managed {
		states = append(states, *s)
	}
	e.mu.Unlock()
	e.positionsRepo.Publish(states)
}

// openEligibleCandidates scans the aggregated top list for candidates
// that pass framework selection, direction, and entry gating, and
// opens a position for each.
func (e *Engine) openEligibleCandidates(ctx context.Context, result domain.MoversResult) {
	for _, candidate := range result.AggregatedTop {
		symbol := candidate.Entry.Symbol
		symbolMetrics, ok := result.Metrics[symbol]
		if !ok {
			continue
		}

		fw, ok := selectFramework(symbolMetrics)
		if !ok {
			continue
		}
		dir, ok := direction(fw.parent)
		if !ok {
			continue
		}

		key := managedKey(symbol, dir)
		e.mu.Lock()
		_, alreadyManaged := e.managed[key]
		e.mu.Unlock()

		canOpen := e.executor.CanOpenPosition(symbol)
		if !entryGates(fw, dir, candidate.LiquidityPenalty, alreadyManaged, canOpen) {
			continue
		}

		e.openPosition(ctx, symbol, dir, fw, candidate.Entry.LastPrice, candidate.LiquidityPenalty)
	}
}

func (e *Engine) openPosition(ctx context.Context, symbol string, dir domain.Direction, fw framework, lastPrice, liquidityPenalty float64) {
	if fw.child.AtrValue <= 0 {
		return
	}

	cleanP := cleanTrendScore(fw.parent)
	gateC := fw.child.SmallMoveGate
	kSl := kSlMultiple(cleanP, gateC)
	slDistance := kSl * fw.child.AtrValue * e.kSlBuffer
	if slDistance <= 0 {
		return
	}

	scale := sizeScale(liquidityPenalty * 100)
	result, err := e.executor.CreateMarketOrder(ctx, symbol, dir, scale)
	if err != nil || result == nil {
		return
	}

	entryPrice := result.ExecutedPrice
	if entryPrice <= 0 {
		entryPrice = lastPrice
	}
	qty := result.ExecutedQty

	stopPrice := math.Max(entryPrice-dir.Sign()*slDistance, 0.0001)
	if err := e.executor.PlaceStopLoss(ctx, symbol, dir, qty, stopPrice); err != nil {
		obslog.Errorf("openPosition: stop loss symbol=%s err=%v", symbol, err)
	}

	trail := trailMultiple(cleanP, gateC, fw.child)

	state := &domain.ManagedPositionState{
		Symbol:            symbol,
		Direction:         dir,
		ParentTimeframe:   fw.parentLabel,
		ChildTimeframe:    fw.childLabel,
		EntryPrice:        entryPrice,
		BaseQuantity:      qty,
		TotalQuantity:     qty,
		KSl:               kSl,
		InitialSlDistance: slDistance,
		SlDistance:        slDistance,
		StopPrice:         stopPrice,
		TrailAtrMultiple:  trail,
		CleanScore:        cleanP,
		GateScore:         gateC,
		OpenedAt:          time.Now(),
		HighestObserved:   entryPrice,
		LowestObserved:    entryPrice,
		ParentAtr:         fw.parent.AtrValue,
		ChildAtr:          fw.child.AtrValue,
		ParentMinutes:     timeframeMinutes(fw.parentLabel),
		ChildMinutes:      timeframeMinutes(fw.childLabel),
		Snapshots:         map[string]domain.SymbolTimeframeMetric{fw.parentLabel: fw.parent, fw.childLabel: fw.child},
		LastPrice:         entryPrice,
	}

	e.mu.Lock()
	e.managed[managedKey(symbol, dir)] = state
	e.mu.Unlock()

	if e.notifier != nil {
		_ = e.notifier.Notify(ctx, symbol+" opened "+string(dir))
	}

	if e.streamer != nil {
		unsub, err := e.streamer.Subscribe(ctx, symbol, func(tick domain.PriceTick) {
			e.OnPriceTick(ctx, tick)
		})
		if err == nil {
			e.mu.Lock()
			e.unsubscribeFns[managedKey(symbol, dir)] = unsub
			e.mu.Unlock()
		}
	}
}

func timeframeMinutes(label string) int {
	switch label {
	case "10m":
		return 10
	case "30m":
		return 30
	case "1h":
		return 60
	case "2h":
		return 120
	}
	return 0
}

// OnPriceTick handles a live mark-price tick, respecting the
// single-slot replace-newest mailbox per symbol.
func (e *Engine) OnPriceTick(ctx context.Context, tick domain.PriceTick) {
	e.mu.Lock()
	if e.processingTick[tick.Symbol] {
		e.pendingTick[tick.Symbol] = tick
		e.mu.Unlock()
		return
	}
	e.processingTick[tick.Symbol] = true
	e.mu.Unlock()

	e.runTick(ctx, tick)

	for {
		e.mu.Lock()
		next, ok := e.pendingTick[tick.Symbol]
		if ok {
			delete(e.pendingTick, tick.Symbol)
		} else {
			e.processingTick[tick.Symbol] = false
		}
		e.mu.Unlock()
		if !ok {
			return
		}
		e.runTick(ctx, next)
	}
}

func (e *Engine) runTick(ctx context.Context, tick domain.PriceTick) {
	for _, dir := range []domain.Direction{domain.Long, domain.Short} {
		key := managedKey(tick.Symbol, dir)
		e.mu.Lock()
		state, ok := e.managed[key]
		e.mu.Unlock()
		if !ok {
			continue
		}
		mutateLiveSnapshot(state, tick.MarkPrice)
		e.evaluatePosition(ctx, key, state, tick.MarkPrice)
	}
}

// mutateLiveSnapshot updates the child snapshot's latest/highest/lowest
// close and capped close history in place.
func mutateLiveSnapshot(state *domain.ManagedPositionState, price float64) {
	child, ok := state.Snapshots[state.ChildTimeframe]
	if !ok {
		return
	}
	child.LatestClose = price
	if price > child.HighestClose {
		child.HighestClose = price
	}
	if price < child.LowestClose {
		child.LowestClose = price
	}
	child.CloseHistory = appendCappedClose(child.CloseHistory, price)
	state.Snapshots[state.ChildTimeframe] = child

	state.LastPrice = price
	if price > state.HighestObserved {
		state.HighestObserved = price
	}
	if price < state.LowestObserved {
		state.LowestObserved = price
	}
}

func appendCappedClose(history []float64, price float64) []float64 {
	history = append(history, price)
	if len(history) > domain.HistoryCap {
		history = history[len(history)-domain.HistoryCap:]
	}
	return history
}

func (e *Engine) unsubscribeLocked(key string) {
	if fn, ok := e.unsubscribeFns[key]; ok {
		fn()
		delete(e.unsubscribeFns, key)
	}
}
