// Package executor implements the Trading Executor: account/position
// state, leverage and margin-mode bootstrap, symbol quantization, and
// order placement against the signed Exchange Facade.
package executor

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"screener-backend/internal/domain"
	"screener-backend/internal/infrastructure/binance"
	"screener-backend/internal/obslog"
)

const (
	maxPositions      = 5
	filterCacheTTL    = 30 * time.Minute
	defaultLeverage   = 5
	marginType        = "CROSSED"
	flattenEpsilon    = 0.001
)

// PublicFetcher is the subset of the public Exchange Facade the
// executor needs for symbol filters and mark price.
type PublicFetcher interface {
	ListPerpetuals(ctx context.Context) ([]binance.PerpetualSymbol, error)
	GetMarkPrice(ctx context.Context, symbol string) (float64, error)
}

// Executor implements domain.Executor. All mutating operations are
// no-ops when credentials are absent.
type Executor struct {
	trading  *binance.TradingClient
	public   PublicFetcher
	enabled  bool
	leverage int

	mu                 sync.Mutex
	totalWalletBalance float64
	availableBalance   float64
	unrealizedPnl      float64
	positions          map[string]domain.PositionSummary
	dualSideConfigured bool
	leverageConfigured map[string]bool

	filterCache   map[string]binance.SymbolFilters
	filterCacheAt time.Time
}

// New builds an Executor. trading is nil when credentials are absent,
// in which case every mutating operation becomes a no-op.
func New(trading *binance.TradingClient, public PublicFetcher, leverage int) *Executor {
	if leverage < 1 {
		leverage = defaultLeverage
	}
	return &Executor{
		trading:            trading,
		public:             public,
		enabled:            trading != nil,
		leverage:           leverage,
		positions:          make(map[string]domain.PositionSummary),
		leverageConfigured: make(map[string]bool),
	}
}

// Initialize enables dual-side position mode (if not already) and
// refreshes balances/positions.
func (e *Executor) Initialize(ctx context.Context) error {
	if !e.enabled {
		return nil
	}
	if err := e.trading.SetDualSidePosition(ctx, true); err != nil {
		return fmt.Errorf("initialize: dual-side mode: %w", err)
	}
	e.mu.Lock()
	e.dualSideConfigured = true
	e.mu.Unlock()

	return e.RefreshState(ctx)
}

// RefreshState re-fetches balances and positions from the exchange.
func (e *Executor) RefreshState(ctx context.Context) error {
	if !e.enabled {
		return nil
	}
	balances, err := e.trading.GetBalances(ctx)
	if err != nil {
		return fmt.Errorf("refreshState: balances: %w", err)
	}
	rows, err := e.trading.GetPositionRisk(ctx)
	if err != nil {
		return fmt.Errorf("refreshState: positionRisk: %w", err)
	}

	positions := buildPositionSummaries(rows)

	e.mu.Lock()
	e.totalWalletBalance = balances.TotalWalletBalance
	e.availableBalance = balances.AvailableBalance
	e.unrealizedPnl = balances.UnrealizedPnl
	e.positions = positions
	e.mu.Unlock()

	return nil
}

// CanOpenPosition reports whether a new position may be opened for
// symbol: trading must be enabled, the exchange must not already report
// a position for the symbol, and fewer than maxPositions symbols may be held.
func (e *Executor) CanOpenPosition(symbol string) bool {
	if !e.enabled {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.positions[symbol]; exists {
		return false
	}
	return len(e.positions) < maxPositions
}

// Positions returns a copy of the current position snapshot.
func (e *Executor) Positions() map[string]domain.PositionSummary {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]domain.PositionSummary, len(e.positions))
	for k, v := range e.positions {
		out[k] = v
	}
	return out
}

// CreateMarketOrder sizes and places a MARKET entry order for symbol in
// the given direction, scaled by sizeScale in [0.1,1].
func (e *Executor) CreateMarketOrder(ctx context.Context, symbol string, dir domain.Direction, sizeScale float64) (*domain.OrderResult, error) {
	if !e.enabled {
		return nil, nil
	}
	sizeScale = clamp(sizeScale, 0.1, 1)

	markPrice, err := e.public.GetMarkPrice(ctx, symbol)
	if err != nil || markPrice <= 0 {
		obslog.Errorf("createMarketOrder: mark price symbol=%s err=%v", symbol, err)
		return nil, err
	}

	if err := e.ensureLeverageAndMargin(ctx, symbol); err != nil {
		obslog.Errorf("createMarketOrder: leverage/margin symbol=%s err=%v", symbol, err)
		return nil, err
	}

	filters, err := e.symbolFilters(ctx, symbol)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	wallet := e.totalWalletBalance
	e.mu.Unlock()

	margin := (wallet / 5) * sizeScale
	notional := margin * float64(e.leverage)
	qty := quantize(notional/markPrice, filters, markPrice)
	if qty <= 0 {
		return nil, fmt.Errorf("createMarketOrder: %s quantity too small", symbol)
	}

	side := "BUY"
	if dir == domain.Short {
		side = "SELL"
	}

	resp, err := e.trading.PlaceMarketOrder(ctx, symbol, side, string(dir), qty)
	if err != nil {
		obslog.Errorf("createMarketOrder: place order symbol=%s err=%v", symbol, err)
		return nil, err
	}

	_ = e.RefreshState(ctx)

	executedPrice := resp.ExecutedPrice
	if executedPrice <= 0 {
		executedPrice = markPrice
	}
	executedQty := resp.ExecutedQty
	if executedQty <= 0 {
		executedQty = qty
	}

	return &domain.OrderResult{OrderID: resp.OrderID, ExecutedQty: executedQty, ExecutedPrice: executedPrice}, nil
}

// PlaceStopLoss places a reduce-side STOP_MARKET closing the full
// position at stopPrice.
func (e *Executor) PlaceStopLoss(ctx context.Context, symbol string, dir domain.Direction, qty, stopPrice float64) error {
	if !e.enabled {
		return nil
	}
	side := closeSide(dir)
	_, err := e.trading.PlaceStopMarketOrder(ctx, symbol, side, string(dir), stopPrice, qty, true)
	if err != nil {
		obslog.Errorf("placeStopLoss: symbol=%s err=%v", symbol, err)
	}
	return err
}

// ReplaceStopLoss cancels existing open orders on symbol and places a
// fresh stop-loss.
func (e *Executor) ReplaceStopLoss(ctx context.Context, symbol string, dir domain.Direction, qty, stopPrice float64) error {
	if !e.enabled {
		return nil
	}
	if err := e.trading.CancelOpenOrders(ctx, symbol); err != nil {
		obslog.Errorf("replaceStopLoss: cancel symbol=%s err=%v", symbol, err)
	}
	return e.PlaceStopLoss(ctx, symbol, dir, qty, stopPrice)
}

// ReducePosition places a reduce-only MARKET order for qty against the
// given direction's position.
func (e *Executor) ReducePosition(ctx context.Context, symbol string, dir domain.Direction, qty float64) error {
	if !e.enabled {
		return nil
	}
	side := closeSide(dir)
	_, err := e.trading.ReduceOnlyMarketOrder(ctx, symbol, side, string(dir), qty)
	if err != nil {
		obslog.Errorf("reducePosition: symbol=%s err=%v", symbol, err)
	}
	return err
}

// IncreasePosition places a same-side MARKET order adding qty to the
// given direction's position.
func (e *Executor) IncreasePosition(ctx context.Context, symbol string, dir domain.Direction, qty float64) (*domain.OrderResult, error) {
	if !e.enabled {
		return nil, nil
	}
	side := "BUY"
	if dir == domain.Short {
		side = "SELL"
	}
	resp, err := e.trading.PlaceMarketOrder(ctx, symbol, side, string(dir), qty)
	if err != nil {
		obslog.Errorf("increasePosition: symbol=%s err=%v", symbol, err)
		return nil, err
	}
	return &domain.OrderResult{OrderID: resp.OrderID, ExecutedQty: resp.ExecutedQty, ExecutedPrice: resp.ExecutedPrice}, nil
}

// FlattenResidualPositions market-reduces any leg below threshold to
// zero.
func (e *Executor) FlattenResidualPositions(ctx context.Context, threshold float64) error {
	if !e.enabled {
		return nil
	}
	if threshold <= 0 {
		threshold = flattenEpsilon
	}

	for symbol, pos := range e.Positions() {
		if pos.Long != nil && pos.Long.Quantity > 0 && pos.Long.Quantity < threshold {
			_ = e.ReducePosition(ctx, symbol, domain.Long, pos.Long.Quantity)
		}
		if pos.Short != nil && pos.Short.Quantity > 0 && pos.Short.Quantity < threshold {
			_ = e.ReducePosition(ctx, symbol, domain.Short, pos.Short.Quantity)
		}
	}
	return nil
}

// GetMarkPrice returns the current mark price for symbol.
func (e *Executor) GetMarkPrice(ctx context.Context, symbol string) (float64, error) {
	return e.public.GetMarkPrice(ctx, symbol)
}

// CancelOpenOrders cancels every open order on symbol.
func (e *Executor) CancelOpenOrders(ctx context.Context, symbol string) error {
	if !e.enabled {
		return nil
	}
	return e.trading.CancelOpenOrders(ctx, symbol)
}

func (e *Executor) ensureLeverageAndMargin(ctx context.Context, symbol string) error {
	e.mu.Lock()
	already := e.leverageConfigured[symbol]
	e.mu.Unlock()
	if already {
		return nil
	}

	if err := e.trading.SetMarginType(ctx, symbol, marginType); err != nil {
		return err
	}
	if err := e.trading.SetLeverage(ctx, symbol, e.leverage); err != nil {
		return err
	}

	e.mu.Lock()
	e.leverageConfigured[symbol] = true
	e.mu.Unlock()
	return nil
}

func (e *Executor) symbolFilters(ctx context.Context, symbol string) (binance.SymbolFilters, error) {
	e.mu.Lock()
	stale := time.Since(e.filterCacheAt) >= filterCacheTTL || e.filterCache == nil
	cache := e.filterCache
	e.mu.Unlock()

	if stale {
		perpetuals, err := e.public.ListPerpetuals(ctx)
		if err != nil {
			return binance.SymbolFilters{}, err
		}
		cache = make(map[string]binance.SymbolFilters, len(perpetuals))
		for _, p := range perpetuals {
			cache[p.Symbol] = p.Filters
		}
		e.mu.Lock()
		e.filterCache = cache
		e.filterCacheAt = time.Now()
		e.mu.Unlock()
	}

	f, ok := cache[symbol]
	if !ok {
		return binance.SymbolFilters{}, fmt.Errorf("symbolFilters: unknown symbol %s", symbol)
	}
	return f, nil
}

// quantize applies minQty/stepSize/minNotional and rounds to
// quantityPrecision decimal places.
func quantize(rawQty float64, f binance.SymbolFilters, markPrice float64) float64 {
	qty := rawQty
	if f.StepSize > 0 {
		qty = math.Floor(qty/f.StepSize) * f.StepSize
	}
	if qty < f.MinQty {
		qty = f.MinQty
	}
	if f.MinNotional > 0 && qty*markPrice < f.MinNotional && markPrice > 0 {
		needed := f.MinNotional / markPrice
		if f.StepSize > 0 {
			needed = math.Ceil(needed/f.StepSize) * f.StepSize
		}
		qty = needed
	}
	return roundTo(qty, f.QuantityPrecision)
}

func roundTo(v float64, precision int) float64 {
	p := math.Pow10(precision)
	return math.Round(v*p) / p
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func closeSide(dir domain.Direction) string {
	if dir == domain.Long {
		return "SELL"
	}
	return "BUY"
}

func buildPositionSummaries(rows []binance.PositionRiskEntry) map[string]domain.PositionSummary {
	out := make(map[string]domain.PositionSummary)
	for _, row := range rows {
		amt := parseFloatSafe(row.PositionAmt)
		if math.Abs(amt) <= domain.QuantityEpsilon {
			continue
		}
		entry := parseFloatSafe(row.EntryPrice)
		pnl := parseFloatSafe(row.UnRealizedProfit)

		summary := out[row.Symbol]
		summary.Symbol = row.Symbol
		summary.Net += amt
		summary.UnrealizedPnl += pnl

		leg := &domain.PositionLeg{Quantity: math.Abs(amt), EntryPrice: entry, UnrealizedPnl: pnl}
		switch row.PositionSide {
		case "LONG":
			summary.Long = leg
		case "SHORT":
			summary.Short = leg
		default:
			if amt > 0 {
				summary.Long = leg
			} else {
				summary.Short = leg
			}
		}
		out[row.Symbol] = summary
	}
	return out
}

func parseFloatSafe(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

var _ domain.Executor = (*Executor)(nil)
