package strategy

import (
	"context"
	"math"
	"time"

	"screener-backend/internal/domain"
	"screener-backend/internal/obslog"
)

// evaluatePosition runs every lifecycle state-machine stage for one
// managed position at the given current price. It is called once per
// cycle (twice, around candidate processing) and once per live tick.
func (e *Engine) evaluatePosition(ctx context.Context, key string, state *domain.ManagedPositionState, price float64) {
	state.LastPrice = price
	state.UpdateMaxR(price)

	child := state.Snapshots[state.ChildTimeframe]
	parent := state.Snapshots[state.ParentTimeframe]
	scores := child.ScoresView()

	if e.closeIfStructureBroken(ctx, key, state, child) {
		return
	}
	if e.closeIfTimeStopped(ctx, key, state) {
		return
	}

	e.applyBreakEven(ctx, state, scores, price)
	e.applyTrailing(ctx, state, parent, price)
	e.applyPartials(ctx, key, state, scores)
	e.applyAdds(ctx, state, child)
}

func (e *Engine) applyBreakEven(ctx context.Context, state *domain.ManagedPositionState, scores domain.Scores, price float64) {
	if state.BeMoved {
		return
	}
	if state.MaxR < breakEvenThreshold(scores.Volume, scores.Flow) {
		return
	}

	newStop := breakEvenStopPrice(state.Direction, state.EntryPrice, price)
	if !improvesStop(state.Direction, state.StopPrice, newStop) {
		return
	}

	if err := e.executor.ReplaceStopLoss(ctx, state.Symbol, state.Direction, state.TotalQuantity, newStop); err != nil {
		obslog.Errorf("breakEven: replace stop symbol=%s err=%v", state.Symbol, err)
		return
	}
	state.StopPrice = newStop
	state.BeMoved = true
}

func (e *Engine) applyTrailing(ctx context.Context, state *domain.ManagedPositionState, parent domain.SymbolTimeframeMetric, price float64) {
	currentStop := state.StopPrice
	if state.TrailPrice != nil {
		currentStop = *state.TrailPrice
	}

	newTrail, ok := trailingStop(state.Direction, parent.HighestClose, parent.LowestClose, state.HighestObserved, state.LowestObserved, state.TrailAtrMultiple, state.ParentAtr, currentStop, price)
	if !ok {
		return
	}

	if err := e.executor.ReplaceStopLoss(ctx, state.Symbol, state.Direction, state.TotalQuantity, newTrail); err != nil {
		obslog.Errorf("trailing: replace stop symbol=%s err=%v", state.Symbol, err)
		return
	}
	state.StopPrice = newTrail
	state.TrailPrice = &newTrail
	state.SlDistance = math.Abs(price - newTrail)
}

func (e *Engine) applyPartials(ctx context.Context, key string, state *domain.ManagedPositionState, scores domain.Scores) {
	r := state.R(state.LastPrice)
	cleanTrend := state.CleanScore >= 0.6 && state.GateScore >= 0.7
	strongVolume := scores.Volume >= 55 && scores.Flow >= 55

	if !state.PartialOneTaken {
		qualifies := (cleanTrend && r >= 2) || (!cleanTrend && !strongVolume && r >= 1.5)
		if qualifies {
			qty := partialQty(state.BaseQuantity, state.TotalQuantity)
			if qty > 0 {
				if err := e.executor.ReducePosition(ctx, state.Symbol, state.Direction, qty); err != nil {
					obslog.Errorf("partial1: reduce symbol=%s err=%v", state.Symbol, err)
				} else {
					state.TotalQuantity -= qty
				}
			}
			state.PartialOneTaken = true
			if !cleanTrend && !state.BeMoved {
				newStop := breakEvenStopPrice(state.Direction, state.EntryPrice, state.LastPrice)
				if improvesStop(state.Direction, state.StopPrice, newStop) {
					if err := e.executor.ReplaceStopLoss(ctx, state.Symbol, state.Direction, state.TotalQuantity, newStop); err == nil {
						state.StopPrice = newStop
						state.BeMoved = true
					}
				}
			}
		}
	}

	if !state.PartialTwoTaken && !cleanTrend && r >= 2 {
		qty := partialQty(state.BaseQuantity, state.TotalQuantity)
		if qty > 0 {
			if err := e.executor.ReducePosition(ctx, state.Symbol, state.Direction, qty); err != nil {
				obslog.Errorf("partial2: reduce symbol=%s err=%v", state.Symbol, err)
			} else {
				state.TotalQuantity -= qty
			}
		}
		state.PartialTwoTaken = true
	}
}

func (e *Engine) applyAdds(ctx context.Context, state *domain.ManagedPositionState, child domain.SymbolTimeframeMetric) {
	if !state.BeMoved || state.AddCount >= 2 {
		return
	}
	if !(state.CleanScore >= 0.65 && state.GateScore >= 0.7 && child.Efficiency*100 >= 55) {
		return
	}

	r := state.R(state.LastPrice)
	var addQty float64
	switch state.AddCount {
	case 0:
		if r < 1 {
			return
		}
		addQty = 0.5 * state.BaseQuantity
	case 1:
		if r < 2 {
			return
		}
		addQty = 0.33 * state.BaseQuantity
	}
	if addQty <= 0 {
		return
	}

	result, err := e.executor.IncreasePosition(ctx, state.Symbol, state.Direction, addQty)
	if err != nil || result == nil {
		return
	}
	state.TotalQuantity += result.ExecutedQty
	state.AddCount++

	stop := state.StopPrice
	if state.TrailPrice != nil {
		stop = *state.TrailPrice
	}
	if err := e.executor.ReplaceStopLoss(ctx, state.Symbol, state.Direction, state.TotalQuantity, stop); err != nil {
		obslog.Errorf("add: replace stop symbol=%s err=%v", state.Symbol, err)
	}
}

func (e *Engine) closeIfTimeStopped(ctx context.Context, key string, state *domain.ManagedPositionState) bool {
	thresh := timeStopThreshold(state.ParentMinutes, state.ChildMinutes)
	childMinutes := state.ChildMinutes
	if childMinutes <= 0 {
		childMinutes = 1
	}

	switch state.TimeStopStage {
	case domain.TimeStopNone:
		elapsedCandles := int(time.Since(state.OpenedAt).Minutes()) / childMinutes
		if elapsedCandles >= thresh && state.MaxR < 0.5 {
			newStop := state.EntryPrice - state.Direction.Sign()*0.5*state.InitialSlDistance
			if err := e.executor.ReplaceStopLoss(ctx, state.Symbol, state.Direction, state.TotalQuantity, newStop); err != nil {
				obslog.Errorf("timeStop: tighten symbol=%s err=%v", state.Symbol, err)
			}
			state.StopPrice = newStop
			state.TimeStopStage = domain.TimeStopTightened
			now := time.Now()
			state.TimeStopTimestamp = &now
		}
	case domain.TimeStopTightened:
		if state.TimeStopTimestamp == nil {
			return false
		}
		elapsedSince := time.Since(*state.TimeStopTimestamp).Minutes()
		if elapsedSince >= float64(thresh*childMinutes) && state.MaxR < 0.5 {
			e.closePosition(ctx, key, state, "time stop")
			return true
		}
	}
	return false
}

func (e *Engine) closeIfStructureBroken(ctx context.Context, key string, state *domain.ManagedPositionState, child domain.SymbolTimeframeMetric) bool {
	stopRef := state.StopPrice
	if state.TrailPrice != nil {
		stopRef = *state.TrailPrice
	}
	threshold := structureBreakThreshold(state.Direction, stopRef, state.ChildAtr)

	if structureBroken(state.Direction, child.CloseHistory, threshold) {
		state.StructureBreakCounter++
	} else {
		state.StructureBreakCounter = 0
	}

	if state.StructureBreakCounter >= structureBreakMax {
		e.closePosition(ctx, key, state, "structure break")
		return true
	}
	return false
}

func (e *Engine) closePosition(ctx context.Context, key string, state *domain.ManagedPositionState, reason string) {
	if err := e.executor.CancelOpenOrders(ctx, state.Symbol); err != nil {
		obslog.Errorf("close: cancel orders symbol=%s err=%v", state.Symbol, err)
	}
	if state.TotalQuantity > domain.QuantityEpsilon {
		if err := e.executor.ReducePosition(ctx, state.Symbol, state.Direction, state.TotalQuantity); err != nil {
			obslog.Errorf("close: reduce symbol=%s err=%v", state.Symbol, err)
		}
	}

	e.mu.Lock()
	delete(e.managed, key)
	e.unsubscribeLocked(key)
	e.mu.Unlock()

	if e.notifier != nil {
		_ = e.notifier.Notify(ctx, state.Symbol+" closed: "+reason)
	}
}

func improvesStop(dir domain.Direction, current, candidate float64) bool {
	if dir == domain.Long {
		return candidate > current
	}
	return candidate < current
}
