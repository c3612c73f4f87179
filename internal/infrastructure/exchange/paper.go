package exchange

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/vitos/crypto_trend_taker/internal/domain"
	"go.uber.org/zap"
)

// simulatedFeeRate is the taker fee applied to simulated fills.
const simulatedFeeRate = 0.002

// Paper wraps a real exchange, passing market data through while simulating
// order execution and balances locally. Fills execute at the current last
// price with a flat taker fee, so a strategy can run unfunded against live
// data.
type Paper struct {
	domain.Exchange

	log     *zap.Logger
	timeNow func() time.Time

	mu       sync.Mutex
	balances map[string]float64
	orderSeq int64
}

// NewPaper creates a paper exchange holding initialQuote of the quote
// currency and nothing else.
func NewPaper(real domain.Exchange, currencyQuote string, initialQuote float64, log *zap.Logger) *Paper {
	return &Paper{
		Exchange: real,
		log:      log,
		timeNow:  time.Now,
		balances: map[string]float64{currencyQuote: initialQuote},
	}
}

func (p *Paper) SubmitMarketOrder(ctx context.Context, side domain.Side, symbol string, amountAsBase float64) (*domain.Fill, error) {
	if amountAsBase <= 0 {
		return nil, fmt.Errorf("paper %s %s: non-positive amount %v", side, symbol, amountAsBase)
	}
	ticker, err := p.Exchange.GetTicker(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("paper %s %s: %w", side, symbol, err)
	}
	if ticker.Last <= 0 {
		return nil, fmt.Errorf("paper %s %s: %w", side, symbol, domain.ErrNoPrice)
	}

	base, quote := domain.BaseOf(symbol), domain.QuoteOf(symbol)
	cost := amountAsBase * ticker.Last
	fee := cost * simulatedFeeRate

	p.mu.Lock()
	defer p.mu.Unlock()

	switch side {
	case domain.SideBuy:
		if p.balances[quote] < cost+fee {
			return nil, fmt.Errorf("paper buy %s: insufficient %s balance %v for cost %v",
				symbol, quote, p.balances[quote], cost+fee)
		}
		p.balances[quote] -= cost + fee
		p.balances[base] += amountAsBase
	case domain.SideSell:
		if p.balances[base] < amountAsBase {
			return nil, fmt.Errorf("paper sell %s: insufficient %s balance %v for amount %v",
				symbol, base, p.balances[base], amountAsBase)
		}
		p.balances[base] -= amountAsBase
		p.balances[quote] += cost - fee
	default:
		return nil, fmt.Errorf("paper order %s: unknown side %q", symbol, side)
	}

	p.orderSeq++
	now := p.timeNow().UTC()
	fill := &domain.Fill{
		ID:           "paper-" + strconv.FormatInt(p.orderSeq, 10),
		Symbol:       symbol,
		Side:         side,
		Price:        ticker.Last,
		AmountAsBase: amountAsBase,
		FeeAsQuote:   fee,
		Timestamp:    now.UnixMilli(),
		DatetimeUTC:  now.Format(time.RFC3339),
	}
	p.log.Info("Simulated order filled",
		zap.String("symbol", symbol),
		zap.String("side", string(side)),
		zap.Float64("price", fill.Price),
		zap.Float64("amount_base", amountAsBase),
		zap.Float64("fee_quote", fee))
	return fill, nil
}

func (p *Paper) GetBalance(ctx context.Context) (map[string]float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	balances := make(map[string]float64, len(p.balances))
	for currency, amount := range p.balances {
		balances[currency] = amount
	}
	return balances, nil
}
