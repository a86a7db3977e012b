package strategy

import (
	"context"
	"sync"

	"screener-backend/internal/domain"
)

// fakeExecutor is an in-memory domain.Executor double that records every
// mutating call so tests can assert on the sequence of actions taken.
type fakeExecutor struct {
	mu sync.Mutex

	canOpen        bool
	markPrice      float64
	createResult   *domain.OrderResult
	createErr      error
	increaseResult *domain.OrderResult
	increaseErr    error

	stopLossCalls    []stopLossCall
	reduceCalls      []reduceCall
	cancelCalls      []string
	createCalls      []createCall
	increaseCalls    []reduceCall
	refreshStateCall int
}

type stopLossCall struct {
	Symbol    string
	Dir       domain.Direction
	Qty       float64
	StopPrice float64
}

type reduceCall struct {
	Symbol string
	Dir    domain.Direction
	Qty    float64
}

type createCall struct {
	Symbol    string
	Dir       domain.Direction
	SizeScale float64
}

func (f *fakeExecutor) Initialize(ctx context.Context) error { return nil }

func (f *fakeExecutor) RefreshState(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshStateCall++
	return nil
}

func (f *fakeExecutor) CanOpenPosition(symbol string) bool { return f.canOpen }

func (f *fakeExecutor) Positions() map[string]domain.PositionSummary { return nil }

func (f *fakeExecutor) CreateMarketOrder(ctx context.Context, symbol string, dir domain.Direction, sizeScale float64) (*domain.OrderResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls = append(f.createCalls, createCall{symbol, dir, sizeScale})
	return f.createResult, f.createErr
}

func (f *fakeExecutor) PlaceStopLoss(ctx context.Context, symbol string, dir domain.Direction, qty, stopPrice float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopLossCalls = append(f.stopLossCalls, stopLossCall{symbol, dir, qty, stopPrice})
	return nil
}

func (f *fakeExecutor) ReplaceStopLoss(ctx context.Context, symbol string, dir domain.Direction, qty, stopPrice float64) error {
	return f.PlaceStopLoss(ctx, symbol, dir, qty, stopPrice)
}

func (f *fakeExecutor) ReducePosition(ctx context.Context, symbol string, dir domain.Direction, qty float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reduceCalls = append(f.reduceCalls, reduceCall{symbol, dir, qty})
	return nil
}

func (f *fakeExecutor) IncreasePosition(ctx context.Context, symbol string, dir domain.Direction, qty float64) (*domain.OrderResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.increaseCalls = append(f.increaseCalls, reduceCall{symbol, dir, qty})
	return f.increaseResult, f.increaseErr
}

func (f *fakeExecutor) FlattenResidualPositions(ctx context.Context, threshold float64) error { return nil }

func (f *fakeExecutor) GetMarkPrice(ctx context.Context, symbol string) (float64, error) {
	return f.markPrice, nil
}

func (f *fakeExecutor) CancelOpenOrders(ctx context.Context, symbol string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelCalls = append(f.cancelCalls, symbol)
	return nil
}

var _ domain.Executor = (*fakeExecutor)(nil)

// fakeStreamer never actually delivers ticks; Subscribe just records.
type fakeStreamer struct {
	subscribed []string
}

func (f *fakeStreamer) Subscribe(ctx context.Context, symbol string, cb func(domain.PriceTick)) (func(), error) {
	f.subscribed = append(f.subscribed, symbol)
	return func() {}, nil
}

var _ domain.PriceStreamer = (*fakeStreamer)(nil)

type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (f *fakeNotifier) Notify(ctx context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, text)
	return nil
}

var _ domain.Notifier = (*fakeNotifier)(nil)

type fakePositionsRepo struct {
	mu        sync.Mutex
	published []domain.ManagedPositionState
}

func (f *fakePositionsRepo) Publish(states []domain.ManagedPositionState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = states
}

func (f *fakePositionsRepo) Snapshot() []domain.ManagedPositionState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.published
}

var _ domain.PositionsRepository = (*fakePositionsRepo)(nil)
