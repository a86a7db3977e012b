package domain

import "context"

// MoversRepository caches the latest MoversResult for read-only
// consumers (the optional HTTP surface, the websocket dashboard push).
// Movers data is produced once per cycle and is immutable thereafter;
// this repository only ever swaps in a new, fully-built snapshot.
type MoversRepository interface {
	Save(result MoversResult)
	Latest() (MoversResult, bool)
}

// PositionsRepository publishes a read-only snapshot of the Strategy
// Engine's managed positions for delivery surfaces. It never mutates
// strategy state; the Strategy Engine is the exclusive writer of the
// live ManagedPositionState map and only pushes copies here.
type PositionsRepository interface {
	Publish(states []ManagedPositionState)
	Snapshot() []ManagedPositionState
}

// Notifier sends chat notifications. Concrete implementations must
// split messages on line boundaries to <=4000 characters and pace
// sends >=400ms apart.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// PriceTick is one live mark-price observation.
type PriceTick struct {
	Symbol    string
	MarkPrice float64
	Time      int64 // ms
}

// PriceStreamer delivers live mark-price ticks for a symbol. Unsubscribe
// is returned from Subscribe; implementations may degrade to REST
// polling and the Strategy Engine must tolerate either.
type PriceStreamer interface {
	Subscribe(ctx context.Context, symbol string, cb func(PriceTick)) (unsubscribe func(), err error)
}

// Executor is the Trading Executor's (C8) contract as consumed by the
// Strategy Engine (C9). All operations are no-ops (return zero
// values/nil) when credentials are absent.
type Executor interface {
	Initialize(ctx context.Context) error
	RefreshState(ctx context.Context) error
	CanOpenPosition(symbol string) bool
	Positions() map[string]PositionSummary

	CreateMarketOrder(ctx context.Context, symbol string, dir Direction, sizeScale float64) (*OrderResult, error)
	PlaceStopLoss(ctx context.Context, symbol string, dir Direction, qty, stopPrice float64) error
	ReplaceStopLoss(ctx context.Context, symbol string, dir Direction, qty, stopPrice float64) error
	ReducePosition(ctx context.Context, symbol string, dir Direction, qty float64) error
	IncreasePosition(ctx context.Context, symbol string, dir Direction, qty float64) (*OrderResult, error)
	FlattenResidualPositions(ctx context.Context, threshold float64) error
	GetMarkPrice(ctx context.Context, symbol string) (float64, error)
	CancelOpenOrders(ctx context.Context, symbol string) error
}

// OrderResult is what the Strategy Engine derives pricing/quantity from
// after a mutating Executor call.
type OrderResult struct {
	OrderID       int64
	ExecutedQty   float64
	ExecutedPrice float64
}
