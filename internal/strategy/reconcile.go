package strategy

import "screener-backend/internal/domain"

// reconcile drops managed state for any symbol/direction the exchange
// no longer reports a live quantity for (closed externally), and syncs
// totalQuantity for the rest.
func (e *Engine) reconcile(positions map[string]domain.PositionSummary) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for key, state := range e.managed {
		summary, ok := positions[state.Symbol]
		if !ok {
			delete(e.managed, key)
			e.unsubscribeLocked(key)
			continue
		}
		leg := summary.Leg(state.Direction)
		if leg == nil {
			delete(e.managed, key)
			e.unsubscribeLocked(key)
			continue
		}
		state.TotalQuantity = leg.Quantity
	}
}
