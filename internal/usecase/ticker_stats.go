package usecase

import "github.com/vitos/crypto_trend_taker/internal/domain"

// SpreadSentinel is returned by Spread when the ticker carries no usable
// bid/ask. Any sane threshold filters such a market out, which beats
// crashing the scan over one bad snapshot.
const SpreadSentinel = 1_000_000

// Spread returns the bid->ask spread of the ticker, in percent.
func Spread(t domain.Ticker) float64 {
	d, err := Delta(t.Bid, t.Ask)
	if err != nil {
		return SpreadSentinel
	}
	return d
}

// ProfitOverAmplitude relates the 24h percent change to the 24h low->high
// amplitude, in percent. The higher the ratio, the more of the day's range
// the market converted into growth. Degenerate input yields 0: no edge.
func ProfitOverAmplitude(t domain.Ticker) float64 {
	amplitude, err := Delta(t.Low, t.High)
	if err != nil || amplitude == 0 {
		return 0
	}
	return t.Percentage / amplitude * 100
}

// TickerStats is the per-ticker slice of a metrics record.
type TickerStats struct {
	LastPrice           float64 `json:"lastPrice"`
	Percentage          float64 `json:"percentage"`
	Spread              float64 `json:"spread"`
	ProfitOverAmplitude float64 `json:"profitOverAmplitude"`
}

// TickerStatistics computes the ticker-level statistics of a market.
func TickerStatistics(t domain.Ticker) TickerStats {
	return TickerStats{
		LastPrice:           t.Last,
		Percentage:          t.Percentage,
		Spread:              Spread(t),
		ProfitOverAmplitude: ProfitOverAmplitude(t),
	}
}
