package binance

import (
	"encoding/json"
	"strconv"

	"screener-backend/internal/domain"
)

// SymbolFilters holds the per-symbol quantization rules
// cached by the Executor with a 30-minute TTL.
type SymbolFilters struct {
	StepSize          float64
	MinQty            float64
	MinNotional       float64
	PricePrecision    int
	QuantityPrecision int
}

type exchangeInfoResponse struct {
	Symbols []struct {
		Symbol            string `json:"symbol"`
		Status            string `json:"status"`
		ContractType      string `json:"contractType"`
		QuoteAsset        string `json:"quoteAsset"`
		PricePrecision    int    `json:"pricePrecision"`
		QuantityPrecision int    `json:"quantityPrecision"`
		Filters           []struct {
			FilterType  string `json:"filterType"`
			StepSize    string `json:"stepSize"`
			MinQty      string `json:"minQty"`
			Notional    string `json:"notional"`
			MinNotional string `json:"minNotional"`
		} `json:"filters"`
	} `json:"symbols"`
}

// PerpetualSymbol is a tradable USDT-margined perpetual contract, with
// its quantization filters.
type PerpetualSymbol struct {
	Symbol  string
	Filters SymbolFilters
}

func parseExchangeInfo(body []byte) ([]PerpetualSymbol, error) {
	var resp exchangeInfoResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}

	out := make([]PerpetualSymbol, 0, len(resp.Symbols))
	for _, s := range resp.Symbols {
		if s.Status != "TRADING" || s.ContractType != "PERPETUAL" || s.QuoteAsset != "USDT" {
			continue
		}
		f := SymbolFilters{
			PricePrecision:    s.PricePrecision,
			QuantityPrecision: s.QuantityPrecision,
		}
		for _, filt := range s.Filters {
			switch filt.FilterType {
			case "LOT_SIZE":
				f.StepSize = parseFloat(filt.StepSize)
				f.MinQty = parseFloat(filt.MinQty)
			case "MIN_NOTIONAL":
				if filt.Notional != "" {
					f.MinNotional = parseFloat(filt.Notional)
				} else {
					f.MinNotional = parseFloat(filt.MinNotional)
				}
			}
		}
		out = append(out, PerpetualSymbol{Symbol: s.Symbol, Filters: f})
	}
	return out, nil
}

type ticker24hEntry struct {
	Symbol      string `json:"symbol"`
	QuoteVolume string `json:"quoteVolume"`
}

func parse24hQuoteVolumes(body []byte) (map[string]float64, error) {
	var entries []ticker24hEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(entries))
	for _, e := range entries {
		out[e.Symbol] = parseFloat(e.QuoteVolume)
	}
	return out, nil
}

// parseKlines maps the exchange's array-of-arrays kline rows into
// domain.Candle, then runs NormalizeCandles.
func parseKlines(body []byte) ([]domain.Candle, error) {
	var rows [][]json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, err
	}

	raw := make([]domain.Candle, 0, len(rows))
	for _, row := range rows {
		const minFields = 11
		if len(row) < minFields {
			continue
		}
		raw = append(raw, domain.Candle{
			OpenTime:            parseRawInt(row[0]),
			Open:                parseRawFloat(row[1]),
			High:                parseRawFloat(row[2]),
			Low:                 parseRawFloat(row[3]),
			Close:               parseRawFloat(row[4]),
			Volume:              parseRawFloat(row[5]),
			QuoteVolume:         parseRawFloat(row[7]),
			TakerBuyQuoteVolume: parseRawFloat(row[10]),
		})
	}
	return domain.NormalizeCandles(raw), nil
}

type bookTickerResponse struct {
	Symbol   string `json:"symbol"`
	BidPrice string `json:"bidPrice"`
	AskPrice string `json:"askPrice"`
}

// BookTicker is the best bid/ask for a symbol.
type BookTicker struct {
	Bid float64
	Ask float64
}

func parseBookTicker(body []byte) (BookTicker, error) {
	var resp bookTickerResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return BookTicker{}, err
	}
	return BookTicker{Bid: parseFloat(resp.BidPrice), Ask: parseFloat(resp.AskPrice)}, nil
}

// DepthLevel is one price/quantity rung of the order book.
type DepthLevel struct {
	Price    float64
	Quantity float64
}

// Depth is a single order-book snapshot.
type Depth struct {
	Bids []DepthLevel
	Asks []DepthLevel
}

func parseDepth(body []byte) (Depth, error) {
	var resp struct {
		Bids [][2]string `json:"bids"`
		Asks [][2]string `json:"asks"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return Depth{}, err
	}
	d := Depth{
		Bids: make([]DepthLevel, 0, len(resp.Bids)),
		Asks: make([]DepthLevel, 0, len(resp.Asks)),
	}
	for _, lvl := range resp.Bids {
		d.Bids = append(d.Bids, DepthLevel{Price: parseFloat(lvl[0]), Quantity: parseFloat(lvl[1])})
	}
	for _, lvl := range resp.Asks {
		d.Asks = append(d.Asks, DepthLevel{Price: parseFloat(lvl[0]), Quantity: parseFloat(lvl[1])})
	}
	return d, nil
}

// AccountBalances is the wallet-level balance snapshot.
type AccountBalances struct {
	TotalWalletBalance float64
	AvailableBalance   float64
	UnrealizedPnl      float64
}

func parseBalances(body []byte) (AccountBalances, error) {
	var entries []struct {
		Asset              string `json:"asset"`
		Balance            string `json:"balance"`
		AvailableBalance   string `json:"availableBalance"`
		CrossUnPnl         string `json:"crossUnPnl"`
	}
	if err := json.Unmarshal(body, &entries); err != nil {
		return AccountBalances{}, err
	}
	var out AccountBalances
	for _, e := range entries {
		if e.Asset != "USDT" {
			continue
		}
		out.TotalWalletBalance = parseFloat(e.Balance)
		out.AvailableBalance = parseFloat(e.AvailableBalance)
		out.UnrealizedPnl = parseFloat(e.CrossUnPnl)
	}
	return out, nil
}

func parsePositionRisk(body []byte) ([]PositionRiskEntry, error) {
	var entries []PositionRiskEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// PositionRiskEntry is one row of the exchange's /fapi/v2/positionRisk
// response.
type PositionRiskEntry struct {
	Symbol           string `json:"symbol"`
	PositionAmt      string `json:"positionAmt"`
	EntryPrice       string `json:"entryPrice"`
	PositionSide     string `json:"positionSide"`
	UnRealizedProfit string `json:"unRealizedProfit"`
}

func parseMarkPrice(body []byte) (float64, error) {
	var resp struct {
		MarkPrice string `json:"markPrice"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, err
	}
	return parseFloat(resp.MarkPrice), nil
}

// OrderResponse is the normalized response from placing an order.
type OrderResponse struct {
	OrderID       int64
	Status        string
	ExecutedQty   float64
	ExecutedPrice float64
}

func parseOrderResponse(body []byte) (OrderResponse, error) {
	var resp struct {
		OrderID     int64  `json:"orderId"`
		Status      string `json:"status"`
		ExecutedQty string `json:"executedQty"`
		AvgPrice    string `json:"avgPrice"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return OrderResponse{}, err
	}
	return OrderResponse{
		OrderID:       resp.OrderID,
		Status:        resp.Status,
		ExecutedQty:   parseFloat(resp.ExecutedQty),
		ExecutedPrice: parseFloat(resp.AvgPrice),
	}, nil
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

func parseRawFloat(raw json.RawMessage) float64 {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return parseFloat(s)
	}
	var f float64
	_ = json.Unmarshal(raw, &f)
	return f
}

func parseRawInt(raw json.RawMessage) int64 {
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		v, _ := strconv.ParseInt(s, 10, 64)
		return v
	}
	return 0
}
