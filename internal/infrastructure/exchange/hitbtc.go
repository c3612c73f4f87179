package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vitos/crypto_trend_taker/internal/domain"
	"go.uber.org/zap"
)

// unboundedMax stands in for markets that publish no maximum order size.
const unboundedMax = 1e12

var candlePeriods = map[string]string{
	"1m":  "M1",
	"5m":  "M5",
	"15m": "M15",
	"30m": "M30",
	"1h":  "H1",
	"4h":  "H4",
	"1d":  "D1",
}

type symbolInfo struct {
	ID                string // exchange identifier, e.g. "BTCUSDT"
	Base              string
	Quote             string
	QuantityIncrement float64
	Status            string
}

// HitBTC implements domain.Exchange against the HitBTC v3 REST and
// websocket APIs. Symbols cross the boundary in "BASE/QUOTE" form; the
// adapter translates to exchange identifiers internally.
type HitBTC struct {
	apiKey    string
	apiSecret string
	baseURL   string
	wsURL     string
	client    *http.Client
	log       *zap.Logger

	symMu     sync.Mutex
	byUnified map[string]symbolInfo // "BTC/USDT" -> info
	byID      map[string]string     // "BTCUSDT" -> "BTC/USDT"

	wsConn     *websocket.Conn
	wsDone     chan struct{}
	subscribed map[string]bool
	callbacks  []func(symbol string, last float64)
	mu         sync.Mutex
}

func NewHitBTC(baseURL, wsURL, apiKey, apiSecret string, log *zap.Logger) *HitBTC {
	return &HitBTC{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		baseURL:   strings.TrimRight(baseURL, "/"),
		wsURL:     wsURL,
		client:    &http.Client{Timeout: 10 * time.Second},
		log:       log,

		subscribed: make(map[string]bool),
	}
}

func (h *HitBTC) sendRequest(ctx context.Context, method, path string, params url.Values, body, out any) error {
	endpoint := h.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if strings.Contains(path, "/spot/") {
		req.SetBasicAuth(h.apiKey, h.apiSecret)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error struct {
				Code        int    `json:"code"`
				Message     string `json:"message"`
				Description string `json:"description"`
			} `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return fmt.Errorf("%s %s: status %d: %s %s",
			method, path, resp.StatusCode, apiErr.Error.Message, apiErr.Error.Description)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// loadSymbols fetches the market catalogue once and caches both directions
// of the symbol mapping.
func (h *HitBTC) loadSymbols(ctx context.Context) error {
	h.symMu.Lock()
	defer h.symMu.Unlock()
	if h.byUnified != nil {
		return nil
	}

	raw, err := retry(ctx, "get symbols", func() (map[string]rawSymbol, error) {
		var result map[string]rawSymbol
		err := h.sendRequest(ctx, http.MethodGet, "/api/3/public/symbol", nil, nil, &result)
		return result, err
	})
	if err != nil {
		return err
	}

	byUnified := make(map[string]symbolInfo, len(raw))
	byID := make(map[string]string, len(raw))
	for id, s := range raw {
		unified := s.BaseCurrency + "/" + s.QuoteCurrency
		byUnified[unified] = symbolInfo{
			ID:                id,
			Base:              s.BaseCurrency,
			Quote:             s.QuoteCurrency,
			QuantityIncrement: parseFloat(s.QuantityIncrement),
			Status:            s.Status,
		}
		byID[id] = unified
	}
	h.byUnified = byUnified
	h.byID = byID
	return nil
}

func (h *HitBTC) symbolID(ctx context.Context, symbol string) (symbolInfo, error) {
	if err := h.loadSymbols(ctx); err != nil {
		return symbolInfo{}, err
	}
	h.symMu.Lock()
	defer h.symMu.Unlock()
	info, ok := h.byUnified[symbol]
	if !ok {
		return symbolInfo{}, fmt.Errorf("unknown market %s", symbol)
	}
	return info, nil
}

type rawSymbol struct {
	BaseCurrency      string `json:"base_currency"`
	QuoteCurrency     string `json:"quote_currency"`
	QuantityIncrement string `json:"quantity_increment"`
	Status            string `json:"status"`
}

type rawCandle struct {
	Timestamp string `json:"timestamp"`
	Open      string `json:"open"`
	Close     string `json:"close"`
	Min       string `json:"min"`
	Max       string `json:"max"`
	Volume    string `json:"volume"`
}

type rawTrade struct {
	Quantity  string `json:"quantity"`
	Price     string `json:"price"`
	Fee       string `json:"fee"`
	Timestamp string `json:"timestamp"`
}

type rawBalance struct {
	Currency  string `json:"currency"`
	Available string `json:"available"`
}

type rawTicker struct {
	Ask       string `json:"ask"`
	Bid       string `json:"bid"`
	Last      string `json:"last"`
	Low       string `json:"low"`
	High      string `json:"high"`
	Open      string `json:"open"`
	Timestamp string `json:"timestamp"`
}

func (h *HitBTC) GetTickers(ctx context.Context) (map[string]domain.Ticker, error) {
	if err := h.loadSymbols(ctx); err != nil {
		return nil, err
	}
	raw, err := retry(ctx, "get tickers", func() (map[string]rawTicker, error) {
		var result map[string]rawTicker
		err := h.sendRequest(ctx, http.MethodGet, "/api/3/public/ticker", nil, nil, &result)
		return result, err
	})
	if err != nil {
		return nil, err
	}

	h.symMu.Lock()
	defer h.symMu.Unlock()
	tickers := make(map[string]domain.Ticker, len(raw))
	for id, t := range raw {
		unified, ok := h.byID[id]
		if !ok {
			continue
		}
		tickers[unified] = toTicker(unified, t)
	}
	return tickers, nil
}

func (h *HitBTC) GetTicker(ctx context.Context, symbol string) (*domain.Ticker, error) {
	info, err := h.symbolID(ctx, symbol)
	if err != nil {
		return nil, err
	}
	raw, err := retry(ctx, "get ticker", func() (rawTicker, error) {
		var result rawTicker
		err := h.sendRequest(ctx, http.MethodGet, "/api/3/public/ticker/"+info.ID, nil, nil, &result)
		return result, err
	})
	if err != nil {
		return nil, err
	}
	ticker := toTicker(symbol, raw)
	return &ticker, nil
}

func toTicker(symbol string, t rawTicker) domain.Ticker {
	last := parseFloat(t.Last)
	open := parseFloat(t.Open)
	percentage := 0.0
	if open > 0 {
		percentage = (last - open) / open * 100
	}
	ts := parseTimestamp(t.Timestamp)
	return domain.Ticker{
		Symbol:      symbol,
		Last:        last,
		Bid:         parseFloat(t.Bid),
		Ask:         parseFloat(t.Ask),
		High:        parseFloat(t.High),
		Low:         parseFloat(t.Low),
		Percentage:  percentage,
		Timestamp:   ts,
		DatetimeUTC: time.UnixMilli(ts).UTC().Format(time.RFC3339),
	}
}

func (h *HitBTC) GetCandles(ctx context.Context, symbol string, count int, timeframe string) ([]domain.Candle, error) {
	info, err := h.symbolID(ctx, symbol)
	if err != nil {
		return nil, err
	}
	period, ok := candlePeriods[timeframe]
	if !ok {
		return nil, fmt.Errorf("unsupported timeframe %s", timeframe)
	}

	params := url.Values{}
	params.Set("period", period)
	params.Set("limit", strconv.Itoa(count))
	params.Set("sort", "ASC")

	raw, err := retry(ctx, "get candles", func() ([]rawCandle, error) {
		var result []rawCandle
		err := h.sendRequest(ctx, http.MethodGet, "/api/3/public/candles/"+info.ID, params, nil, &result)
		return result, err
	})
	if err != nil {
		return nil, err
	}

	candles := make([]domain.Candle, 0, len(raw))
	for _, c := range raw {
		candles = append(candles, domain.Candle{
			Time:   parseTimestamp(c.Timestamp),
			Open:   parseFloat(c.Open),
			High:   parseFloat(c.Max),
			Low:    parseFloat(c.Min),
			Close:  parseFloat(c.Close),
			Volume: parseFloat(c.Volume),
		})
	}
	// The statistics pipeline requires oldest-first candles regardless of
	// what the sort parameter actually did.
	sort.Slice(candles, func(i, j int) bool { return candles[i].Time < candles[j].Time })
	return candles, nil
}

func (h *HitBTC) GetAmountLimits(ctx context.Context, symbol string) (domain.AmountLimits, error) {
	info, err := h.symbolID(ctx, symbol)
	if err != nil {
		return domain.AmountLimits{}, err
	}
	return domain.AmountLimits{Min: info.QuantityIncrement, Max: unboundedMax}, nil
}

func (h *HitBTC) SubmitMarketOrder(ctx context.Context, side domain.Side, symbol string, amountAsBase float64) (*domain.Fill, error) {
	info, err := h.symbolID(ctx, symbol)
	if err != nil {
		return nil, err
	}

	order := map[string]string{
		"symbol":   info.ID,
		"side":     string(side),
		"type":     "market",
		"quantity": strconv.FormatFloat(amountAsBase, 'f', -1, 64),
	}
	// Orders are not retried: a timed-out POST may still have executed,
	// and a blind resend would double the position.
	var placed struct {
		ID                 int64  `json:"id"`
		Status             string `json:"status"`
		QuantityCumulative string `json:"quantity_cumulative"`
	}
	if err := h.sendRequest(ctx, http.MethodPost, "/api/3/spot/order", nil, order, &placed); err != nil {
		return nil, fmt.Errorf("submit %s %s: %w", side, symbol, err)
	}

	fill, err := h.fetchFill(ctx, placed.ID)
	if err != nil {
		return nil, fmt.Errorf("submit %s %s: order %d placed but fills unavailable: %w",
			side, symbol, placed.ID, err)
	}
	fill.Symbol = symbol
	fill.Side = side
	return fill, nil
}

// fetchFill aggregates the trades of an executed order into a single fill
// with a volume-weighted average price.
func (h *HitBTC) fetchFill(ctx context.Context, orderID int64) (*domain.Fill, error) {
	params := url.Values{}
	params.Set("order_id", strconv.FormatInt(orderID, 10))

	trades, err := retry(ctx, "get order trades", func() ([]rawTrade, error) {
		var result []rawTrade
		err := h.sendRequest(ctx, http.MethodGet, "/api/3/spot/history/trade", params, nil, &result)
		if err == nil && len(result) == 0 {
			return nil, fmt.Errorf("order %d has no trades yet", orderID)
		}
		return result, err
	})
	if err != nil {
		return nil, err
	}

	var amount, cost, fee float64
	var ts int64
	for _, t := range trades {
		q := parseFloat(t.Quantity)
		amount += q
		cost += q * parseFloat(t.Price)
		fee += parseFloat(t.Fee)
		if tradeTS := parseTimestamp(t.Timestamp); tradeTS > ts {
			ts = tradeTS
		}
	}
	if amount <= 0 {
		return nil, fmt.Errorf("order %d filled zero amount", orderID)
	}
	return &domain.Fill{
		ID:           strconv.FormatInt(orderID, 10),
		Price:        cost / amount,
		AmountAsBase: amount,
		FeeAsQuote:   fee,
		Timestamp:    ts,
		DatetimeUTC:  time.UnixMilli(ts).UTC().Format(time.RFC3339),
	}, nil
}

func (h *HitBTC) GetBalance(ctx context.Context) (map[string]float64, error) {
	raw, err := retry(ctx, "get balance", func() ([]rawBalance, error) {
		var result []rawBalance
		err := h.sendRequest(ctx, http.MethodGet, "/api/3/spot/balance", nil, nil, &result)
		return result, err
	})
	if err != nil {
		return nil, err
	}

	balances := make(map[string]float64, len(raw))
	for _, b := range raw {
		balances[b.Currency] = parseFloat(b.Available)
	}
	return balances, nil
}

// OnTickerUpdate registers a callback invoked for every streamed price.
func (h *HitBTC) OnTickerUpdate(callback func(symbol string, last float64)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.callbacks = append(h.callbacks, callback)
}

// Subscribe adds symbols to the websocket ticker stream, connecting on
// first use. Symbols stay subscribed until Close.
func (h *HitBTC) Subscribe(symbols []string) error {
	if len(symbols) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := h.loadSymbols(ctx); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ids := make([]string, 0, len(symbols))
	h.symMu.Lock()
	for _, symbol := range symbols {
		info, ok := h.byUnified[symbol]
		if !ok {
			h.symMu.Unlock()
			return fmt.Errorf("unknown market %s", symbol)
		}
		if !h.subscribed[symbol] {
			h.subscribed[symbol] = true
			ids = append(ids, info.ID)
		}
	}
	h.symMu.Unlock()
	if len(ids) == 0 {
		return nil
	}

	if h.wsConn == nil {
		conn, _, err := websocket.DefaultDialer.Dial(h.wsURL, nil)
		if err != nil {
			return fmt.Errorf("websocket dial: %w", err)
		}
		h.wsConn = conn
		h.wsDone = make(chan struct{})
		go h.readLoop(conn, h.wsDone)
	}
	return h.sendSubscription(h.wsConn, ids)
}

func (h *HitBTC) sendSubscription(conn *websocket.Conn, ids []string) error {
	msg := map[string]any{
		"method": "subscribe",
		"ch":     "ticker/1s",
		"params": map[string]any{"symbols": ids},
	}
	if err := conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("websocket subscribe: %w", err)
	}
	return nil
}

func (h *HitBTC) readLoop(conn *websocket.Conn, done chan struct{}) {
	for {
		select {
		case <-done:
			return
		default:
		}

		var msg struct {
			Channel string `json:"ch"`
			Data    map[string]struct {
				Last string `json:"c"`
			} `json:"data"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			select {
			case <-done:
				return
			default:
			}
			h.log.Warn("Websocket read failed, reconnecting", zap.Error(err))
			h.reconnect(done)
			return
		}
		if !strings.HasPrefix(msg.Channel, "ticker") {
			continue
		}

		for id, t := range msg.Data {
			h.symMu.Lock()
			unified, ok := h.byID[id]
			h.symMu.Unlock()
			if !ok {
				continue
			}
			last := parseFloat(t.Last)
			if last <= 0 {
				continue
			}
			h.mu.Lock()
			callbacks := make([]func(string, float64), len(h.callbacks))
			copy(callbacks, h.callbacks)
			h.mu.Unlock()
			for _, cb := range callbacks {
				cb(unified, last)
			}
		}
	}
}

// reconnect re-dials the stream and restores every active subscription.
func (h *HitBTC) reconnect(done chan struct{}) {
	for wait := time.Second; ; wait = min(wait*2, 30*time.Second) {
		select {
		case <-done:
			return
		case <-time.After(wait):
		}

		conn, _, err := websocket.DefaultDialer.Dial(h.wsURL, nil)
		if err != nil {
			h.log.Warn("Websocket reconnect failed", zap.Error(err))
			continue
		}

		h.symMu.Lock()
		ids := make([]string, 0, len(h.subscribed))
		for symbol := range h.subscribed {
			if info, ok := h.byUnified[symbol]; ok {
				ids = append(ids, info.ID)
			}
		}
		h.symMu.Unlock()

		if err := h.sendSubscription(conn, ids); err != nil {
			h.log.Warn("Websocket resubscribe failed", zap.Error(err))
			conn.Close()
			continue
		}

		h.mu.Lock()
		h.wsConn = conn
		h.mu.Unlock()
		h.log.Info("Websocket reconnected", zap.Int("subscriptions", len(ids)))
		go h.readLoop(conn, done)
		return
	}
}

// Close shuts down the websocket stream.
func (h *HitBTC) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.wsDone != nil {
		close(h.wsDone)
		h.wsDone = nil
	}
	if h.wsConn != nil {
		err := h.wsConn.Close()
		h.wsConn = nil
		return err
	}
	return nil
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func parseTimestamp(s string) int64 {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return 0
	}
	return t.UnixMilli()
}
