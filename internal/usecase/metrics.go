package usecase

import (
	"strings"

	"github.com/vitos/crypto_trend_taker/internal/domain"
)

// PreselectedPotential is the sentinel score assigned to preselected bases.
// It keeps a single descending sort as the only ordering rule while forcing
// preselected markets to the front.
const PreselectedPotential = 1_000_000_000

// minProfitPercent is the floor for the take-profit distance of an entry
// plan, so a near-flat ticker never produces a degenerate target.
const minProfitPercent = 1.0

// EntryPlan carries the exit parameters derived from market metrics for a
// position opened at LastPrice.
type EntryPlan struct {
	ProfitPercent   float64 `json:"profitPercent"`
	MaxLossPercent  float64 `json:"maxLossPercent"` // negative
	LastPrice       float64 `json:"lastPrice"`
	TakeProfitPrice float64 `json:"takeProfitPrice"`
	StopLossPrice   float64 `json:"stopLossPrice"`
	MaxHours        float64 `json:"maxHours"`
}

// MetricsRecord is the per-market, per-cycle summary. It is recomputed every
// cycle and owned by the cycle that computed it; it is never persisted.
// Completed is false when any statistic could not be computed, which excludes
// the market from ranking without aborting the cycle.
type MetricsRecord struct {
	Symbol     string       `json:"symbol"`
	Base       string       `json:"base"`
	Quote      string       `json:"quote"`
	Completed  bool         `json:"completed"`
	Ticker     TickerStats  `json:"ticker"`
	Collapses  float64      `json:"collapses"`  // percent of collapsed bars
	Completion float64      `json:"completion"` // percent of window covered
	Whole      *CandleStats `json:"whole,omitempty"`
	Half1      *CandleStats `json:"half1,omitempty"`
	Half2      *CandleStats `json:"half2,omitempty"`
	Entry      *EntryPlan   `json:"entry,omitempty"`
	Potential  float64      `json:"potential"`
}

// MetricsEngine scores the short-term growth potential of markets over a
// fixed analysis window of 1h candles.
type MetricsEngine struct {
	candlesHours int
}

func NewMetricsEngine(candlesDays int) *MetricsEngine {
	return &MetricsEngine{candlesHours: candlesDays * 24}
}

// Calculate builds the metrics record for one market from its latest ticker
// and 1h candles. Deterministic, no side effects. Data-quality failures
// leave Completed false instead of returning an error, so one bad market
// never aborts the scan.
func (e *MetricsEngine) Calculate(ticker domain.Ticker, candles []domain.Candle, preselected []string) *MetricsRecord {
	m := &MetricsRecord{
		Symbol: ticker.Symbol,
		Base:   domain.BaseOf(ticker.Symbol),
		Quote:  domain.QuoteOf(ticker.Symbol),
		Ticker: TickerStatistics(ticker),
	}
	m.Collapses = CollapseRatio(candles)
	m.Completion = CompletionRatio(candles, e.candlesHours)

	whole, err := Statistics(candles, SegmentWhole)
	if err != nil {
		return m
	}
	half1, err := Statistics(candles, SegmentHalf1)
	if err != nil {
		return m
	}
	half2, err := Statistics(candles, SegmentHalf2)
	if err != nil {
		return m
	}
	m.Whole, m.Half1, m.Half2 = whole, half1, half2
	m.Entry = entryPlan(ticker, whole)
	m.Potential = e.potential(m, preselected)
	m.Completed = true
	return m
}

// potential blends the 24h ticker return with the whole-segment candle
// return as a product of ratios: both horizons must agree in sign for a
// positive score, and disagreement punishes the market multiplicatively.
func (e *MetricsEngine) potential(m *MetricsRecord, preselected []string) float64 {
	if IsPreselected(m.Base, preselected) {
		return PreselectedPotential
	}
	tickerRatio := m.Ticker.Percentage / 100
	candlesRatio := m.Whole.ChangeOpenToClose / 100
	return tickerRatio * candlesRatio
}

// entryPlan derives exit parameters for a position opened now. The stop-loss
// distance comes from the lower trend-deviation band; without it risk bands
// cannot be set and the plan is nil.
func entryPlan(ticker domain.Ticker, whole *CandleStats) *EntryPlan {
	if whole.Trend == nil || ticker.Last <= 0 {
		return nil
	}
	profitPercent := ticker.Percentage
	if profitPercent < 0 {
		profitPercent = -profitPercent
	}
	if profitPercent < minProfitPercent {
		profitPercent = minProfitPercent
	}
	maxLossPercent := whole.Trend.Percent.LowerMin
	last := ticker.Last
	return &EntryPlan{
		ProfitPercent:   profitPercent,
		MaxLossPercent:  maxLossPercent,
		LastPrice:       last,
		TakeProfitPrice: last * (1 + profitPercent/100),
		StopLossPrice:   last * (1 + maxLossPercent/100),
		MaxHours:        24,
	}
}

// IsPreselected reports whether the base currency is in the preselected
// list, ignoring case.
func IsPreselected(base string, preselected []string) bool {
	for _, p := range preselected {
		if strings.EqualFold(base, p) {
			return true
		}
	}
	return false
}
