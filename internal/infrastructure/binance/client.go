// Package binance implements the Exchange Facade:
// a thin, signed/unsigned HTTP client over Binance USDT-margined
// futures endpoints, with every call routed through a shared Limiter.
package binance

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"screener-backend/internal/domain"
)

const baseURL = "https://fapi.binance.com"

// Client is the public, unsigned half of the Exchange Facade.
type Client struct {
	httpClient *http.Client
	limiter    *Limiter
	base       string
}

// NewClient builds a Client sharing the given Limiter.
func NewClient(limiter *Limiter) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    limiter,
		base:       baseURL,
	}
}

// get performs a rate-limited GET against path with the given query
// params and returns the raw response body, or a *HTTPStatusError /
// *APIError on non-2xx.
func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	var body []byte
	err := c.limiter.Do(ctx, func(ctx context.Context) error {
		u := c.base + path
		if params != nil && len(params) > 0 {
			u += "?" + params.Encode()
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return err
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err // transient: network error
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

// ListPerpetuals returns every tradable USDT-margined perpetual
// symbol with its quantization filters.
func (c *Client) ListPerpetuals(ctx context.Context) ([]PerpetualSymbol, error) {
	body, err := c.get(ctx, "/fapi/v1/exchangeInfo", nil)
	if err != nil {
		return nil, fmt.Errorf("exchangeInfo: %w", err)
	}
	return parseExchangeInfo(body)
}

// Get24hQuoteVolumes returns the 24h quote volume for every symbol,
// used by the Universe Selector.
func (c *Client) Get24hQuoteVolumes(ctx context.Context) (map[string]float64, error) {
	body, err := c.get(ctx, "/fapi/v1/ticker/24hr", nil)
	if err != nil {
		return nil, fmt.Errorf("ticker/24hr: %w", err)
	}
	return parse24hQuoteVolumes(body)
}

// GetKlines fetches up to limit 1-minute candles for symbol, ending at
// the most recently closed minute, and returns them normalized normalized.
func (c *Client) GetKlines(ctx context.Context, symbol string, limit int) ([]domain.Candle, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", "1m")
	params.Set("limit", strconv.Itoa(limit))

	body, err := c.get(ctx, "/fapi/v1/klines", params)
	if err != nil {
		return nil, fmt.Errorf("klines %s: %w", symbol, err)
	}
	return parseKlines(body)
}

// GetBookTicker returns the current best bid/ask for symbol, used by
// the Liquidity Probe.
func (c *Client) GetBookTicker(ctx context.Context, symbol string) (BookTicker, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	body, err := c.get(ctx, "/fapi/v1/ticker/bookTicker", params)
	if err != nil {
		return BookTicker{}, fmt.Errorf("bookTicker %s: %w", symbol, err)
	}
	return parseBookTicker(body)
}

// GetDepth returns an order-book snapshot for symbol with the given
// depth limit, used to walk-the-book for slippage.
func (c *Client) GetDepth(ctx context.Context, symbol string, limit int) (Depth, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("limit", strconv.Itoa(limit))

	body, err := c.get(ctx, "/fapi/v1/depth", params)
	if err != nil {
		return Depth{}, fmt.Errorf("depth %s: %w", symbol, err)
	}
	return parseDepth(body)
}

// GetMarkPrice returns the current mark price for symbol, used by the
// strategy engine for live reconciliation outside of tick updates.
func (c *Client) GetMarkPrice(ctx context.Context, symbol string) (float64, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	body, err := c.get(ctx, "/fapi/v1/ticker/price", params)
	if err != nil {
		return 0, fmt.Errorf("ticker/price %s: %w", symbol, err)
	}
	return parseMarkPrice(body)
}
