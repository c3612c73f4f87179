package exchange_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/crypto_trend_taker/internal/domain"
	"github.com/vitos/crypto_trend_taker/internal/infrastructure/exchange"
	"go.uber.org/zap"
)

// stubExchange serves fixed market data and fails on anything else.
type stubExchange struct {
	last float64
}

func (s *stubExchange) GetTickers(ctx context.Context) (map[string]domain.Ticker, error) {
	return nil, nil
}

func (s *stubExchange) GetTicker(ctx context.Context, symbol string) (*domain.Ticker, error) {
	return &domain.Ticker{Symbol: symbol, Last: s.last}, nil
}

func (s *stubExchange) GetCandles(ctx context.Context, symbol string, count int, timeframe string) ([]domain.Candle, error) {
	return nil, nil
}

func (s *stubExchange) GetAmountLimits(ctx context.Context, symbol string) (domain.AmountLimits, error) {
	return domain.AmountLimits{Max: 1e12}, nil
}

func (s *stubExchange) SubmitMarketOrder(ctx context.Context, side domain.Side, symbol string, amountAsBase float64) (*domain.Fill, error) {
	panic("paper wrapper must never forward orders")
}

func (s *stubExchange) GetBalance(ctx context.Context) (map[string]float64, error) {
	panic("paper wrapper must never forward balance reads")
}

func (s *stubExchange) OnTickerUpdate(callback func(symbol string, last float64)) {}

func (s *stubExchange) Subscribe(symbols []string) error { return nil }

func TestPaper_BuyThenSell(t *testing.T) {
	stub := &stubExchange{last: 100}
	paper := exchange.NewPaper(stub, "USDT", 1000, zap.NewNop())
	ctx := context.Background()

	buy, err := paper.SubmitMarketOrder(ctx, domain.SideBuy, "ADA/USDT", 2)
	require.NoError(t, err)

	assert.Equal(t, domain.SideBuy, buy.Side)
	assert.InDelta(t, 100, buy.Price, 1e-9)
	assert.InDelta(t, 2, buy.AmountAsBase, 1e-9)
	assert.InDelta(t, 0.4, buy.FeeAsQuote, 1e-9) // 0.2% of 200

	balances, err := paper.GetBalance(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 799.6, balances["USDT"], 1e-9) // 1000 - 200 - 0.4
	assert.InDelta(t, 2, balances["ADA"], 1e-9)

	stub.last = 110
	sell, err := paper.SubmitMarketOrder(ctx, domain.SideSell, "ADA/USDT", 2)
	require.NoError(t, err)
	assert.InDelta(t, 0.44, sell.FeeAsQuote, 1e-9) // 0.2% of 220

	balances, err = paper.GetBalance(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 1019.16, balances["USDT"], 1e-9) // 799.6 + 220 - 0.44
	assert.InDelta(t, 0, balances["ADA"], 1e-9)
}

func TestPaper_InsufficientFunds(t *testing.T) {
	paper := exchange.NewPaper(&stubExchange{last: 100}, "USDT", 50, zap.NewNop())
	ctx := context.Background()

	_, err := paper.SubmitMarketOrder(ctx, domain.SideBuy, "ADA/USDT", 1)
	assert.Error(t, err, "buy above the wallet must fail")

	_, err = paper.SubmitMarketOrder(ctx, domain.SideSell, "ADA/USDT", 1)
	assert.Error(t, err, "selling a base never bought must fail")

	balances, err := paper.GetBalance(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 50, balances["USDT"], 1e-9, "failed orders must not move balances")
}
