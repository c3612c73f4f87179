package usecase_test

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vitos/crypto_trend_taker/internal/domain"
)

// MockExchange
type MockExchange struct {
	Tickers    map[string]domain.Ticker
	Candles    map[string][]domain.Candle
	Limits     domain.AmountLimits
	Balances   map[string]float64
	OrderErr   error
	TickerErr  error
	FeeAsQuote float64

	Orders     []domain.Fill
	Subscribed []string
	orderSeq   int
}

func (m *MockExchange) GetTickers(ctx context.Context) (map[string]domain.Ticker, error) {
	return m.Tickers, nil
}

func (m *MockExchange) GetTicker(ctx context.Context, symbol string) (*domain.Ticker, error) {
	if m.TickerErr != nil {
		return nil, m.TickerErr
	}
	t, ok := m.Tickers[symbol]
	if !ok {
		return nil, fmt.Errorf("no ticker for %s", symbol)
	}
	return &t, nil
}

func (m *MockExchange) GetCandles(ctx context.Context, symbol string, count int, timeframe string) ([]domain.Candle, error) {
	return m.Candles[symbol], nil
}

func (m *MockExchange) GetAmountLimits(ctx context.Context, symbol string) (domain.AmountLimits, error) {
	if m.Limits == (domain.AmountLimits{}) {
		return domain.AmountLimits{Min: 0, Max: 1e12}, nil
	}
	return m.Limits, nil
}

func (m *MockExchange) SubmitMarketOrder(ctx context.Context, side domain.Side, symbol string, amountAsBase float64) (*domain.Fill, error) {
	if m.OrderErr != nil {
		return nil, m.OrderErr
	}
	t, ok := m.Tickers[symbol]
	if !ok {
		return nil, fmt.Errorf("no ticker for %s", symbol)
	}
	m.orderSeq++
	fill := domain.Fill{
		ID:           fmt.Sprintf("order-%d", m.orderSeq),
		Symbol:       symbol,
		Side:         side,
		Price:        t.Last,
		AmountAsBase: amountAsBase,
		FeeAsQuote:   m.FeeAsQuote,
		Timestamp:    time.Now().UnixMilli(),
		DatetimeUTC:  time.Now().UTC().Format(time.RFC3339),
	}
	m.Orders = append(m.Orders, fill)
	return &fill, nil
}

func (m *MockExchange) GetBalance(ctx context.Context) (map[string]float64, error) {
	if m.Balances == nil {
		return map[string]float64{}, nil
	}
	return m.Balances, nil
}

func (m *MockExchange) OnTickerUpdate(callback func(symbol string, last float64)) {}

func (m *MockExchange) Subscribe(symbols []string) error {
	m.Subscribed = append(m.Subscribed, symbols...)
	return nil
}

// MockStateStore keeps everything in memory.
type MockStateStore struct {
	JSON    map[string][]byte
	CSVRows map[string][][]string
	SaveErr error
}

func NewMockStateStore() *MockStateStore {
	return &MockStateStore{
		JSON:    make(map[string][]byte),
		CSVRows: make(map[string][][]string),
	}
}

func (m *MockStateStore) SaveJSON(path string, data any) error {
	if m.SaveErr != nil {
		return m.SaveErr
	}
	encoded, err := json.Marshal(data)
	if err != nil {
		return err
	}
	m.JSON[path] = encoded
	return nil
}

func (m *MockStateStore) LoadJSON(path string, out any) (bool, error) {
	data, ok := m.JSON[path]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(data, out)
}

func (m *MockStateStore) AppendCSVRow(path string, header, row []string) error {
	if _, ok := m.CSVRows[path]; !ok {
		m.CSVRows[path] = [][]string{header}
	}
	m.CSVRows[path] = append(m.CSVRows[path], row)
	return nil
}

func (m *MockStateStore) TotalCSVRows() int {
	total := 0
	for _, rows := range m.CSVRows {
		total += len(rows) - 1 // minus header
	}
	return total
}

// MockArchive
type MockArchive struct {
	Results []*domain.CloseResult
	SaveErr error
}

func (m *MockArchive) SaveResult(ctx context.Context, result *domain.CloseResult) error {
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.Results = append(m.Results, result)
	return nil
}

func (m *MockArchive) ListResults(ctx context.Context, limit int) ([]*domain.CloseResult, error) {
	if limit > len(m.Results) {
		limit = len(m.Results)
	}
	return m.Results[:limit], nil
}
