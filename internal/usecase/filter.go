package usecase

import (
	"sort"

	"github.com/vitos/crypto_trend_taker/internal/domain"
)

// TickerFilters are the ticker-level acceptance thresholds, in percent.
type TickerFilters struct {
	MinProfit              float64
	MaxSpreadOverProfit    float64
	MinProfitOverAmplitude float64
}

// CandleFilters are the candle-level acceptance thresholds, in percent.
type CandleFilters struct {
	MaxColapses    float64
	MinCompletion  float64
	MinProfitWhole float64
	MinProfitHalf1 float64
	MinProfitHalf2 float64
}

// FilterConfig parameterizes a MarketFilter. Immutable after construction.
type FilterConfig struct {
	Preselected []string
	Tickers     TickerFilters
	Candles     CandleFilters
}

// MarketFilter decides whether a market is tradeable and worth investing in.
type MarketFilter struct {
	cfg FilterConfig
}

func NewMarketFilter(cfg FilterConfig) *MarketFilter {
	return &MarketFilter{cfg: cfg}
}

// IsValidTicker reports whether the ticker belongs to a market that passes
// the ticker-level thresholds. Preselected bases always pass.
func (f *MarketFilter) IsValidTicker(t domain.Ticker) bool {
	if IsPreselected(domain.BaseOf(t.Symbol), f.cfg.Preselected) {
		return true
	}
	if t.Percentage < f.cfg.Tickers.MinProfit {
		return false
	}
	if Spread(t) > f.cfg.Tickers.MaxSpreadOverProfit {
		return false
	}
	if ProfitOverAmplitude(t) < f.cfg.Tickers.MinProfitOverAmplitude {
		return false
	}
	return true
}

// IsPotentialMarket reports whether the computed metrics clear the
// candle-level thresholds. Preselected bases always pass; incomplete
// metrics never do.
func (f *MarketFilter) IsPotentialMarket(m *MetricsRecord) bool {
	if IsPreselected(m.Base, f.cfg.Preselected) {
		return true
	}
	if !m.Completed {
		return false
	}
	if m.Collapses >= f.cfg.Candles.MaxColapses {
		return false
	}
	if m.Completion < f.cfg.Candles.MinCompletion {
		return false
	}
	if m.Whole.ChangeOpenToClose < f.cfg.Candles.MinProfitWhole {
		return false
	}
	if m.Half1.ChangeOpenToClose < f.cfg.Candles.MinProfitHalf1 {
		return false
	}
	if m.Half2.ChangeOpenToClose < f.cfg.Candles.MinProfitHalf2 {
		return false
	}
	return true
}

// RankByPotential sorts records descending by potential score, in place.
// Preselected markets end up in front through their sentinel score; there is
// no second sort key.
func RankByPotential(records []*MetricsRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Potential > records[j].Potential
	})
}
