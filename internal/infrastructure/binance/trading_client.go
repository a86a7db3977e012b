package binance

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// errNoChangeCodes covers the "no change" error codes the exchange
// returns for margin-type and dual-side-position requests that are
// already in the desired state; callers treat these as success.
var errNoChangeCodes = map[int]bool{
	ErrNoChangeCode: true, // margin type no change
	-4059:           true, // position side no change
}

// TradingClient is the signed half of the Exchange Facade, generalized
// to dual-side position mode and reduce-only orders.
type TradingClient struct {
	apiKey     string
	secretKey  string
	base       string
	recvWindow int
	httpClient *http.Client
	limiter    *Limiter
}

// NewTradingClient builds a TradingClient sharing the given Limiter.
func NewTradingClient(apiKey, secretKey string, recvWindowMs int, limiter *Limiter) *TradingClient {
	return &TradingClient{
		apiKey:     apiKey,
		secretKey:  secretKey,
		base:       baseURL,
		recvWindow: recvWindowMs,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    limiter,
	}
}

func (c *TradingClient) signedDo(ctx context.Context, method, path string, params url.Values) ([]byte, error) {
	var body []byte
	err := c.limiter.Do(ctx, func(ctx context.Context) error {
		if params == nil {
			params = url.Values{}
		}
		query := signParams(c.secretKey, params, c.recvWindow)

		u := c.base + path + "?" + query
		req, err := http.NewRequestWithContext(ctx, method, u, nil)
		if err != nil {
			return err
		}
		req.Header.Set("X-MBX-APIKEY", c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return parseAPIError(resp.StatusCode, b)
		}
		body = b
		return nil
	})
	return body, err
}

// GetBalances returns the USDT wallet balance snapshot.
func (c *TradingClient) GetBalances(ctx context.Context) (AccountBalances, error) {
	body, err := c.signedDo(ctx, http.MethodGet, "/fapi/v2/balance", nil)
	if err != nil {
		return AccountBalances{}, fmt.Errorf("balance: %w", err)
	}
	return parseBalances(body)
}

// GetPositionRisk returns the exchange's current position report for
// every symbol with an open position.
func (c *TradingClient) GetPositionRisk(ctx context.Context) ([]PositionRiskEntry, error) {
	body, err := c.signedDo(ctx, http.MethodGet, "/fapi/v2/positionRisk", nil)
	if err != nil {
		return nil, fmt.Errorf("positionRisk: %w", err)
	}
	return parsePositionRisk(body)
}

// SetDualSidePosition switches the account between dual-side (hedge)
// and one-way position mode. A "no change" response is treated as
// success.
func (c *TradingClient) SetDualSidePosition(ctx context.Context, dualSide bool) error {
	params := url.Values{}
	params.Set("dualSidePosition", strconv.FormatBool(dualSide))

	_, err := c.signedDo(ctx, http.MethodPost, "/fapi/v1/positionSide/dual", params)
	return ignoreNoChange(err)
}

// SetMarginType sets a symbol's margin type (CROSSED or ISOLATED). A
// "no change" response is treated as success.
func (c *TradingClient) SetMarginType(ctx context.Context, symbol, marginType string) error {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("marginType", marginType)

	_, err := c.signedDo(ctx, http.MethodPost, "/fapi/v1/marginType", params)
	return ignoreNoChange(err)
}

// SetLeverage sets a symbol's leverage multiple.
func (c *TradingClient) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("leverage", strconv.Itoa(leverage))

	_, err := c.signedDo(ctx, http.MethodPost, "/fapi/v1/leverage", params)
	return err
}

// PlaceMarketOrder places a MARKET order for side/positionSide/qty,
// retrying once under positionSide=BOTH if the account turns out to be
// in one-way mode (exchange error -4061).
func (c *TradingClient) PlaceMarketOrder(ctx context.Context, symbol, side, positionSide string, qty float64) (OrderResponse, error) {
	resp, err := c.placeOrder(ctx, symbol, side, positionSide, "MARKET", qty, 0, false)
	if err != nil {
		if apiErr, ok := err.(*APIError); ok && apiErr.Code == -4061 {
			resp, err = c.placeOrder(ctx, symbol, side, "BOTH", "MARKET", qty, 0, false)
		}
	}
	return resp, err
}

// PlaceStopMarketOrder places a reduce-only STOP_MARKET order that
// closes qty of the position at stopPrice (or the full position when
// closePosition is true), working off the mark price with price
// protection enabled.
func (c *TradingClient) PlaceStopMarketOrder(ctx context.Context, symbol, side, positionSide string, stopPrice, qty float64, closePosition bool) (OrderResponse, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("side", side)
	params.Set("type", "STOP_MARKET")
	params.Set("stopPrice", fmt.Sprintf("%.8f", stopPrice))
	params.Set("workingType", "MARK_PRICE")
	params.Set("priceProtect", "true")
	if positionSide != "" {
		params.Set("positionSide", positionSide)
	}
	if closePosition {
		params.Set("closePosition", "true")
	} else {
		params.Set("reduceOnly", "true")
		params.Set("quantity", fmt.Sprintf("%.8f", qty))
	}
	params.Set("newClientOrderId", newClientOrderID())

	body, err := c.signedDo(ctx, http.MethodPost, "/fapi/v1/order", params)
	if err != nil {
		return OrderResponse{}, fmt.Errorf("stopMarketOrder %s: %w", symbol, err)
	}
	return parseOrderResponse(body)
}

// ReduceOnlyMarketOrder places a reduce-only MARKET order, used for
// partial take-profits and position closes.
func (c *TradingClient) ReduceOnlyMarketOrder(ctx context.Context, symbol, side, positionSide string, qty float64) (OrderResponse, error) {
	return c.placeOrder(ctx, symbol, side, positionSide, "MARKET", qty, 0, true)
}

func (c *TradingClient) placeOrder(ctx context.Context, symbol, side, positionSide, orderType string, qty, price float64, reduceOnly bool) (OrderResponse, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("side", side)
	params.Set("type", orderType)
	params.Set("quantity", fmt.Sprintf("%.8f", qty))
	if positionSide != "" {
		params.Set("positionSide", positionSide)
	}
	if reduceOnly {
		params.Set("reduceOnly", "true")
	}
	if orderType == "LIMIT" && price > 0 {
		params.Set("price", fmt.Sprintf("%.8f", price))
		params.Set("timeInForce", "GTC")
	}
	params.Set("newClientOrderId", newClientOrderID())

	body, err := c.signedDo(ctx, http.MethodPost, "/fapi/v1/order", params)
	if err != nil {
		return OrderResponse{}, fmt.Errorf("order %s: %w", symbol, err)
	}
	return parseOrderResponse(body)
}

// newClientOrderID generates a client order ID under the exchange's
// 36-character limit, letting failed-order logs be correlated back to
// the request that issued them without a round trip to the exchange.
func newClientOrderID() string {
	return "sb-" + uuid.NewString()[:20]
}

// CancelOpenOrders cancels every open order for symbol, used before
// replacing a stop-loss or flattening a position.
func (c *TradingClient) CancelOpenOrders(ctx context.Context, symbol string) error {
	params := url.Values{}
	params.Set("symbol", symbol)

	_, err := c.signedDo(ctx, http.MethodDelete, "/fapi/v1/allOpenOrders", params)
	return err
}

func ignoreNoChange(err error) error {
	if apiErr, ok := err.(*APIError); ok && errNoChangeCodes[apiErr.Code] {
		return nil
	}
	return err
}
