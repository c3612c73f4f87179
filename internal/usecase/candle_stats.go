package usecase

import (
	"errors"
	"math"

	"github.com/vitos/crypto_trend_taker/internal/domain"
)

// ErrZeroBase is returned when a percent delta is requested against a zero
// reference price. Zero-priced inputs are a data-quality failure and must be
// reported, not turned into Inf/NaN.
var ErrZeroBase = errors.New("delta from zero base value")

// Delta returns the percent change from one value to another.
func Delta(from, to float64) (float64, error) {
	if from == 0 {
		return 0, ErrZeroBase
	}
	return (to - from) / from * 100, nil
}

// SegmentKind selects a contiguous sub-range of a candle sequence.
type SegmentKind int

const (
	SegmentWhole SegmentKind = iota
	SegmentHalf1
	SegmentHalf2
	SegmentQuarter1
	SegmentQuarter2
	SegmentQuarter3
	SegmentQuarter4
)

// Segment returns the sub-sequence of candles for the given kind. The index
// range is divided at the rounded 25/50/75 percentile boundaries, so adjacent
// segments share their boundary candle. Empty input yields an empty result.
func Segment(candles []domain.Candle, kind SegmentKind) []domain.Candle {
	n := len(candles)
	if n == 0 {
		return nil
	}
	last := float64(n - 1)
	q1 := int(math.Round(last * 0.25))
	mid := int(math.Round(last * 0.5))
	q3 := int(math.Round(last * 0.75))

	switch kind {
	case SegmentHalf1:
		return candles[:mid+1]
	case SegmentHalf2:
		return candles[mid:]
	case SegmentQuarter1:
		return candles[:q1+1]
	case SegmentQuarter2:
		return candles[q1 : mid+1]
	case SegmentQuarter3:
		return candles[mid : q3+1]
	case SegmentQuarter4:
		return candles[q3:]
	default:
		return candles
	}
}

// LastSegment returns the last n candles, or all of them when fewer exist.
func LastSegment(candles []domain.Candle, n int) []domain.Candle {
	if n <= 0 {
		return nil
	}
	if n >= len(candles) {
		return candles
	}
	return candles[len(candles)-n:]
}

// EstimatedAverage estimates the mean traded price inside a bar from its
// open, high, low and close. A cheap proxy for intrabar VWAP, since
// trade-by-trade prices are not available.
func EstimatedAverage(c domain.Candle) float64 {
	return (c.Open + c.High + c.Low + c.Close) / 4
}

// collapseThresholdPercent is the minimum intrabar min->max movement below
// which a bar counts as collapsed (doji), signaling low liquidity.
const collapseThresholdPercent = 0.1

func isCollapsed(c domain.Candle) bool {
	low := math.Min(math.Min(c.Open, c.Close), math.Min(c.High, c.Low))
	high := math.Max(math.Max(c.Open, c.Close), math.Max(c.High, c.Low))
	d, err := Delta(low, high)
	if err != nil {
		return true
	}
	return d < collapseThresholdPercent
}

// CollapseRatio returns the percent of bars with negligible intrabar
// movement. Absence of data must bias decisions toward rejecting the market,
// so an empty input counts as fully collapsed.
func CollapseRatio(candles []domain.Candle) float64 {
	if len(candles) == 0 {
		return 100
	}
	collapsed := 0
	for _, c := range candles {
		if isCollapsed(c) {
			collapsed++
		}
	}
	return float64(collapsed) / float64(len(candles)) * 100
}

// CompletionRatio returns the percent of the requested 1h-bar window that the
// candles actually cover. Exchanges fill gaps by reaching further into
// history, so bars older than the window (relative to the newest bar) are
// missing liquidity, not extra data. Degenerate input yields 0: like
// CollapseRatio, every failure degrades toward rejecting the market.
func CompletionRatio(candles []domain.Candle, requestedHours int) float64 {
	if len(candles) == 0 || requestedHours <= 0 {
		return 0
	}
	const msPerHour = 60 * 60 * 1000
	windowMs := int64(requestedHours) * msPerHour
	newest := candles[len(candles)-1].Time
	inRange := 0
	for _, c := range candles {
		if newest-c.Time < windowMs {
			inRange++
		}
	}
	return float64(inRange) / float64(requestedHours) * 100
}

// TrendLine interpolates count price points linearly from begin to end.
// Fewer than 3 points cannot describe a trend, so the result is nil.
func TrendLine(begin, end float64, count int) []float64 {
	if count < 3 {
		return nil
	}
	line := make([]float64, count)
	step := (end - begin) / float64(count-1)
	for i := range line {
		line[i] = begin + step*float64(i)
	}
	return line
}

// DeviationBands summarizes one side-partitioned set of deviations.
type DeviationBands struct {
	Max          float64 `json:"max"`
	Average      float64 `json:"average"`
	UpperMax     float64 `json:"upperMax"`
	UpperAverage float64 `json:"upperAverage"`
	LowerMin     float64 `json:"lowerMin"`
	LowerAverage float64 `json:"lowerAverage"`
}

// TrendDeviationStats holds the close-vs-trend deviations in quote currency
// and as percent of the trend value. The lower band estimates a stop-loss
// distance, the upper band a take-profit distance.
type TrendDeviationStats struct {
	Absolute DeviationBands `json:"absolute"`
	Percent  DeviationBands `json:"percent"`
}

// TrendDeviation measures how far each close strays from the trend line.
// Requires at least 5 candles and a trend line of matching length; otherwise
// there is not enough data to set risk bands and the result is nil.
func TrendDeviation(candles []domain.Candle, trend []float64) *TrendDeviationStats {
	if len(candles) < 5 || len(trend) != len(candles) {
		return nil
	}
	absolute := make([]float64, len(candles))
	percent := make([]float64, len(candles))
	for i, c := range candles {
		absolute[i] = c.Close - trend[i]
		p, err := Delta(trend[i], c.Close)
		if err != nil {
			return nil
		}
		percent[i] = p
	}
	return &TrendDeviationStats{
		Absolute: bands(absolute),
		Percent:  bands(percent),
	}
}

func bands(deviations []float64) DeviationBands {
	var b DeviationBands
	var absSum float64
	var upperSum, lowerSum float64
	var upperCount, lowerCount int
	for _, d := range deviations {
		abs := math.Abs(d)
		absSum += abs
		if abs > b.Max {
			b.Max = abs
		}
		switch {
		case d > 0:
			upperSum += d
			upperCount++
			if d > b.UpperMax {
				b.UpperMax = d
			}
		case d < 0:
			lowerSum += d
			lowerCount++
			if d < b.LowerMin {
				b.LowerMin = d
			}
		}
	}
	b.Average = absSum / float64(len(deviations))
	if upperCount > 0 {
		b.UpperAverage = upperSum / float64(upperCount)
	}
	if lowerCount > 0 {
		b.LowerAverage = lowerSum / float64(lowerCount)
	}
	return b
}

// CandleStats is the descriptive summary of one candle segment.
type CandleStats struct {
	Count             int                  `json:"count"`
	Open              float64              `json:"open"`
	Low               float64              `json:"low"`
	High              float64              `json:"high"`
	Close             float64              `json:"close"`
	Mean              float64              `json:"mean"`
	Deviation         float64              `json:"deviation"` // mean absolute deviation
	DeviationPercent  float64              `json:"deviationPercent"`
	ChangeOpenToClose float64              `json:"changeOpenToClose"` // percent
	ChangeOpenToMean  float64              `json:"changeOpenToMean"`  // percent
	SpeedPerCandle    float64              `json:"speedPerCandle"`    // percent per bar
	Trend             *TrendDeviationStats `json:"trendDeviation,omitempty"`
}

// Statistics computes the full descriptive record for one segment of the
// candle sequence. Open/Close and the percent changes use the estimated
// per-bar average price, Low/High the true extremes.
func Statistics(candles []domain.Candle, kind SegmentKind) (*CandleStats, error) {
	seg := Segment(candles, kind)
	if len(seg) == 0 {
		return nil, errors.New("empty candle segment")
	}

	prices := make([]float64, len(seg))
	for i, c := range seg {
		prices[i] = EstimatedAverage(c)
	}

	var sum float64
	low, high := seg[0].Low, seg[0].High
	for i, c := range seg {
		sum += prices[i]
		if c.Low < low {
			low = c.Low
		}
		if c.High > high {
			high = c.High
		}
	}
	mean := sum / float64(len(prices))

	var absSum float64
	for _, p := range prices {
		absSum += math.Abs(p - mean)
	}
	deviation := absSum / float64(len(prices))

	open, close := prices[0], prices[len(prices)-1]
	changeOpenToClose, err := Delta(open, close)
	if err != nil {
		return nil, err
	}
	changeOpenToMean, err := Delta(open, mean)
	if err != nil {
		return nil, err
	}
	deviationPercent, err := Delta(mean, mean+deviation)
	if err != nil {
		return nil, err
	}

	speed := 0.0
	if len(seg) > 1 {
		speed = changeOpenToClose / float64(len(seg)-1)
	}

	trend := TrendDeviation(seg, TrendLine(open, close, len(seg)))

	return &CandleStats{
		Count:             len(seg),
		Open:              open,
		Low:               low,
		High:              high,
		Close:             close,
		Mean:              mean,
		Deviation:         deviation,
		DeviationPercent:  deviationPercent,
		ChangeOpenToClose: changeOpenToClose,
		ChangeOpenToMean:  changeOpenToMean,
		SpeedPerCandle:    speed,
		Trend:             trend,
	}, nil
}
