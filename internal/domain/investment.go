package domain

// Side of a market order.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Fill is the result of an executed market order.
type Fill struct {
	ID           string  `json:"id"`
	Symbol       string  `json:"symbol"`
	Side         Side    `json:"side"`
	Price        float64 `json:"price"` // average filling price in quote
	AmountAsBase float64 `json:"amountAsBase"`
	FeeAsQuote   float64 `json:"feeAsQuote"`
	Timestamp    int64   `json:"timestamp"` // ms
	DatetimeUTC  string  `json:"datetimeUTC"`
}

// AmountAsQuote is the filled amount expressed in quote currency.
func (f Fill) AmountAsQuote() float64 {
	return f.AmountAsBase * f.Price
}

// ExitRules are the exit parameters attached to an investment when it is
// opened. A zero price or percent means the corresponding trigger is not
// configured.
type ExitRules struct {
	ProfitPercent   float64 `json:"profitPercent"`
	MaxLossPercent  float64 `json:"maxLossPercent"`
	TrailingStop    bool    `json:"trailingStop"`
	TakeProfitPrice float64 `json:"takeProfitPrice"`
	StopLossPrice   float64 `json:"stopLossPrice"`
	MaxHours        float64 `json:"maxHours"`
}

// Investment is one open position. It is created when an entry order fills
// and removed when the position is closed. Only the ledger mutates it, and
// only through its defined operations.
type Investment struct {
	Symbol          string    `json:"symbol"`
	AmountAsBase    float64   `json:"amountAsBase"`
	LastTickerPrice float64   `json:"lastTickerPrice"`
	Buy             Fill      `json:"buy"`
	ForExit         ExitRules `json:"forExit"`
}

// CloseResult is the immutable snapshot emitted when an investment closes.
type CloseResult struct {
	Symbol          string  `json:"symbol"`
	AmountAsBase    float64 `json:"amountAsBase"`
	Buy             Fill    `json:"buy"`
	Sell            Fill    `json:"sell"`
	FeeAsQuote      float64 `json:"feeAsQuote"` // buy fee + sell fee
	Hours           float64 `json:"hours"`      // exposure duration
	ProfitAsPercent float64 `json:"profitAsPercent"`
	ProfitAsQuote   float64 `json:"profitAsQuote"`
}

// BalancePoint records the account balance at a ledger boundary event.
type BalancePoint struct {
	Timestamp    int64   `json:"timestamp"`
	DatetimeUTC  string  `json:"datetimeUTC"`
	BalanceQuote float64 `json:"balanceQuote"`
}

// LedgerTotals accumulates lifetime results across closed investments.
// Counters only grow; min/max profit track the extremes seen so far.
type LedgerTotals struct {
	InvestmentsCount int     `json:"investmentsCount"`
	FeeAsQuote       float64 `json:"feeAsQuote"`
	ProfitAsQuote    float64 `json:"profitAsQuote"`
	Hours            float64 `json:"hours"` // wall-clock first fill -> last fill
	ExposureHours    float64 `json:"exposureHours"`

	HasStatistics      bool    `json:"hasStatistics"`
	MinProfitAsPercent float64 `json:"minProfitAsPercent"`
	MaxProfitAsPercent float64 `json:"maxProfitAsPercent"`
	MinProfitAsQuote   float64 `json:"minProfitAsQuote"`
	MaxProfitAsQuote   float64 `json:"maxProfitAsQuote"`
	ProfitInBalance    float64 `json:"profitAsQuoteInBalance"`
	ProfitInBalancePct float64 `json:"profitAsPercentInBalance"`
}

// LedgerState is the persisted ledger file layout.
type LedgerState struct {
	Initial     BalancePoint          `json:"initial"`
	Final       BalancePoint          `json:"final"`
	Totals      LedgerTotals          `json:"totals"`
	Investments map[string]Investment `json:"currentInvestments"`
}

// AmountLimits are the tradable base-amount bounds of a market.
type AmountLimits struct {
	Min float64
	Max float64
}
