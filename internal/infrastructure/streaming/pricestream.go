// Package streaming implements the live mark-price PriceStreamer,
// preferring the exchange's mark-price websocket stream and degrading
// to REST polling on any connection failure.
package streaming

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"screener-backend/internal/domain"
	"screener-backend/internal/obslog"
)

const (
	wsBaseURL      = "wss://fstream.binance.com/ws/"
	pollInterval   = 3 * time.Second
	dialTimeout    = 10 * time.Second
)

// MarkPriceFetcher is the REST fallback used when the websocket
// connection cannot be established or drops.
type MarkPriceFetcher interface {
	GetMarkPrice(ctx context.Context, symbol string) (float64, error)
}

// Streamer implements domain.PriceStreamer.
type Streamer struct {
	fetcher MarkPriceFetcher
	dialer  *websocket.Dialer
}

// NewStreamer builds a Streamer over the REST fallback fetcher.
func NewStreamer(fetcher MarkPriceFetcher) *Streamer {
	return &Streamer{
		fetcher: fetcher,
		dialer:  &websocket.Dialer{HandshakeTimeout: dialTimeout},
	}
}

// Subscribe starts streaming mark-price ticks for symbol until the
// returned unsubscribe func is called or ctx is cancelled.
func (s *Streamer) Subscribe(ctx context.Context, symbol string, cb func(domain.PriceTick)) (func(), error) {
	subCtx, cancel := context.WithCancel(ctx)
	go s.run(subCtx, symbol, cb)
	return cancel, nil
}

func (s *Streamer) run(ctx context.Context, symbol string, cb func(domain.PriceTick)) {
	url := wsBaseURL + strings.ToLower(symbol) + "@markPrice@1s"

	conn, _, err := s.dialer.DialContext(ctx, url, nil)
	if err != nil {
		obslog.Warnf("pricestream: websocket dial failed symbol=%s err=%v, falling back to polling", symbol, err)
		s.poll(ctx, symbol, cb)
		return
	}

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()
	defer close(done)

	for {
		var payload struct {
			Symbol    string `json:"s"`
			MarkPrice string `json:"p"`
			EventTime int64  `json:"E"`
		}
		if err := conn.ReadJSON(&payload); err != nil {
			if ctx.Err() != nil {
				return
			}
			obslog.Warnf("pricestream: websocket read failed symbol=%s err=%v, falling back to polling", symbol, err)
			s.poll(ctx, symbol, cb)
			return
		}

		price, perr := strconv.ParseFloat(payload.MarkPrice, 64)
		if perr != nil || price <= 0 {
			continue
		}
		cb(domain.PriceTick{Symbol: symbol, MarkPrice: price, Time: payload.EventTime})
	}
}

func (s *Streamer) poll(ctx context.Context, symbol string, cb func(domain.PriceTick)) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			price, err := s.fetcher.GetMarkPrice(ctx, symbol)
			if err != nil || price <= 0 {
				continue
			}
			cb(domain.PriceTick{Symbol: symbol, MarkPrice: price, Time: time.Now().UnixMilli()})
		}
	}
}

var _ domain.PriceStreamer = (*Streamer)(nil)
