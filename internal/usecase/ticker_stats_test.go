package usecase_test

import (
	"testing"

	"github.com/vitos/crypto_trend_taker/internal/domain"
	"github.com/vitos/crypto_trend_taker/internal/usecase"
)

func TestSpread(t *testing.T) {
	ticker := domain.Ticker{Bid: 100, Ask: 101}
	if got := usecase.Spread(ticker); !floatEquals(got, 1) {
		t.Errorf("Spread = %v, want 1", got)
	}
}

func TestSpread_NoBid(t *testing.T) {
	ticker := domain.Ticker{Bid: 0, Ask: 101}
	if got := usecase.Spread(ticker); got != usecase.SpreadSentinel {
		t.Errorf("Spread with zero bid = %v, want sentinel %v", got, usecase.SpreadSentinel)
	}
}

func TestProfitOverAmplitude(t *testing.T) {
	// 24h range 100 -> 110 is a 10% amplitude; a 5% day converts half of it.
	ticker := domain.Ticker{Low: 100, High: 110, Percentage: 5}
	if got := usecase.ProfitOverAmplitude(ticker); !floatEquals(got, 50) {
		t.Errorf("ProfitOverAmplitude = %v, want 50", got)
	}
}

func TestProfitOverAmplitude_Degenerate(t *testing.T) {
	tests := []struct {
		name   string
		ticker domain.Ticker
	}{
		{"Zero Low", domain.Ticker{Low: 0, High: 110, Percentage: 5}},
		{"Flat Range", domain.Ticker{Low: 100, High: 100, Percentage: 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := usecase.ProfitOverAmplitude(tt.ticker); got != 0 {
				t.Errorf("ProfitOverAmplitude = %v, want 0", got)
			}
		})
	}
}

func TestTickerStatistics(t *testing.T) {
	ticker := domain.Ticker{
		Symbol:     "BTC/USDT",
		Last:       105,
		Bid:        104,
		Ask:        105,
		Low:        100,
		High:       110,
		Percentage: 5,
	}
	stats := usecase.TickerStatistics(ticker)
	if stats.LastPrice != 105 {
		t.Errorf("LastPrice = %v, want 105", stats.LastPrice)
	}
	if stats.Percentage != 5 {
		t.Errorf("Percentage = %v, want 5", stats.Percentage)
	}
	if !floatEquals(stats.Spread, usecase.Spread(ticker)) {
		t.Errorf("Spread = %v, want %v", stats.Spread, usecase.Spread(ticker))
	}
	if !floatEquals(stats.ProfitOverAmplitude, 50) {
		t.Errorf("ProfitOverAmplitude = %v, want 50", stats.ProfitOverAmplitude)
	}
}
