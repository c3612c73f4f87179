package domain

import "context"

// Exchange is the access layer to a spot exchange. Implementations retry
// transient failures internally (bounded attempts) and surface only a
// terminal failure.
type Exchange interface {
	GetTickers(ctx context.Context) (map[string]Ticker, error)
	GetTicker(ctx context.Context, symbol string) (*Ticker, error)
	GetCandles(ctx context.Context, symbol string, count int, timeframe string) ([]Candle, error)
	GetAmountLimits(ctx context.Context, symbol string) (AmountLimits, error)
	SubmitMarketOrder(ctx context.Context, side Side, symbol string, amountAsBase float64) (*Fill, error)
	GetBalance(ctx context.Context) (map[string]float64, error)

	// Streaming price updates for intra-cycle exit monitoring.
	OnTickerUpdate(callback func(symbol string, last float64))
	Subscribe(symbols []string) error
}

// StateStore persists ledger state and the append-only CSV ledger.
type StateStore interface {
	SaveJSON(path string, data any) error
	// LoadJSON reports found=false when the file does not exist.
	LoadJSON(path string, out any) (found bool, err error)
	AppendCSVRow(path string, header, row []string) error
}

// ResultArchive stores closed-investment results for later analysis.
type ResultArchive interface {
	SaveResult(ctx context.Context, result *CloseResult) error
	ListResults(ctx context.Context, limit int) ([]*CloseResult, error)
}
