package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/vitos/crypto_trend_taker/internal/domain"
	"go.uber.org/zap"
)

// TraderConfig holds the scan and sizing parameters of the cycle loop.
type TraderConfig struct {
	CurrencyQuote         string
	AmountToInvestAsQuote float64
	MaxCurrenciesToInvest int
	MaxTickersToSelect    int
	CandlesDays           int
	Preselected           []string
	BlackList             []string
	// Active enables real entries; when false the trader only scores
	// markets and monitors exits of already-open positions.
	Active bool
}

// Trader runs the polling cycle: fetch tickers, filter, score, decide
// entries, evaluate exits. One cycle runs to completion before the next
// begins; a mutex serializes cycles with streaming tick callbacks so the
// ledger has a single writer at a time.
type Trader struct {
	exchange  domain.Exchange
	engine    *MetricsEngine
	filter    *MarketFilter
	lifecycle *InvestmentLifecycle
	ledger    *InvestmentLedger
	cfg       TraderConfig
	log       *zap.Logger
	timeNow   func() time.Time
	mu        sync.Mutex
}

func NewTrader(exchange domain.Exchange, engine *MetricsEngine, filter *MarketFilter, lifecycle *InvestmentLifecycle, ledger *InvestmentLedger, cfg TraderConfig, log *zap.Logger) *Trader {
	return &Trader{
		exchange:  exchange,
		engine:    engine,
		filter:    filter,
		lifecycle: lifecycle,
		ledger:    ledger,
		cfg:       cfg,
		log:       log,
		timeNow:   time.Now,
	}
}

// Startup rehydrates the ledger, settles any exits that became due while the
// bot was down and subscribes to price updates for the open positions.
func (tr *Trader) Startup(ctx context.Context) error {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if err := tr.ledger.Load(); err != nil {
		return err
	}
	tr.lifecycle.CheckInvestments(ctx, tr.timeNow())
	if open := tr.ledger.OpenSymbols(); len(open) > 0 {
		if err := tr.exchange.Subscribe(open); err != nil {
			tr.log.Warn("Cannot subscribe to open position symbols", zap.Error(err))
		}
	}
	return nil
}

// RunCycle executes one full scan cycle.
func (tr *Trader) RunCycle(ctx context.Context) error {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	tickers, err := tr.exchange.GetTickers(ctx)
	if err != nil {
		return fmt.Errorf("run cycle: %w", err)
	}

	candidates := tr.selectTickers(tickers)
	tr.log.Info("Tickers passing market filter", zap.Int("count", len(candidates)))

	records := tr.scoreMarkets(ctx, candidates)
	RankByPotential(records)
	tr.log.Info("Potential markets found", zap.Int("count", len(records)))

	tr.decideEntries(ctx, records)
	tr.lifecycle.CheckInvestments(ctx, tr.timeNow())
	return nil
}

// OnTick evaluates the exit triggers of a position when a streaming price
// update arrives between cycles.
func (tr *Trader) OnTick(symbol string, last float64) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if last <= 0 || !tr.ledger.Contains(symbol) {
		return
	}
	if _, err := tr.lifecycle.EvaluateExit(context.Background(), symbol, last, tr.timeNow()); err != nil {
		tr.log.Error("Exit evaluation on tick failed",
			zap.String("symbol", symbol), zap.Error(err))
	}
}

// CloseAll liquidates every open position. Used by the forced-close mode.
func (tr *Trader) CloseAll(ctx context.Context) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	for _, symbol := range tr.ledger.OpenSymbols() {
		if _, err := tr.lifecycle.Close(ctx, symbol); err != nil {
			tr.log.Error("Forced close failed", zap.String("symbol", symbol), zap.Error(err))
		}
	}
}

// selectTickers keeps the tickers of tradeable markets: matching quote
// currency, not blacklisted, passing the ticker filter. The survivors are
// sorted by 24h growth (preselected bases first) and capped.
func (tr *Trader) selectTickers(tickers map[string]domain.Ticker) []domain.Ticker {
	var selected []domain.Ticker
	for symbol, t := range tickers {
		if domain.QuoteOf(symbol) != tr.cfg.CurrencyQuote {
			continue
		}
		if IsPreselected(domain.BaseOf(symbol), tr.cfg.BlackList) {
			continue
		}
		if !tr.filter.IsValidTicker(t) {
			continue
		}
		selected = append(selected, t)
	}
	sortKey := func(t domain.Ticker) float64 {
		if IsPreselected(domain.BaseOf(t.Symbol), tr.cfg.Preselected) {
			return PreselectedPotential
		}
		return t.Percentage
	}
	sort.SliceStable(selected, func(i, j int) bool {
		return sortKey(selected[i]) > sortKey(selected[j])
	})
	if max := tr.cfg.MaxTickersToSelect; max > 0 && len(selected) > max {
		selected = selected[:max]
	}
	return selected
}

// scoreMarkets fetches candles and computes metrics for each candidate,
// keeping the markets that pass the candle filter. Per-market failures are
// logged and skipped.
func (tr *Trader) scoreMarkets(ctx context.Context, candidates []domain.Ticker) []*MetricsRecord {
	candlesHours := tr.cfg.CandlesDays * 24
	var records []*MetricsRecord
	for _, ticker := range candidates {
		candles, err := tr.exchange.GetCandles(ctx, ticker.Symbol, candlesHours, "1h")
		if err != nil {
			tr.log.Warn("Cannot fetch candles",
				zap.String("symbol", ticker.Symbol), zap.Error(err))
			continue
		}
		metrics := tr.engine.Calculate(ticker, candles, tr.cfg.Preselected)
		if !tr.filter.IsPotentialMarket(metrics) {
			continue
		}
		records = append(records, metrics)
	}
	return records
}

// decideEntries invests in the top-ranked markets until the open-position
// budget is exhausted. Markets already open are kept, not reopened; entry
// failures skip to the next candidate.
func (tr *Trader) decideEntries(ctx context.Context, records []*MetricsRecord) {
	if !tr.cfg.Active {
		return
	}
	for _, m := range records {
		if tr.ledger.Count() >= tr.cfg.MaxCurrenciesToInvest {
			return
		}
		if tr.ledger.Contains(m.Symbol) {
			continue
		}
		if m.Ticker.LastPrice <= 0 {
			continue
		}
		amountAsBase := tr.cfg.AmountToInvestAsQuote / m.Ticker.LastPrice
		if err := tr.lifecycle.Invest(ctx, m.Symbol, amountAsBase, m); err != nil {
			tr.log.Warn("Entry skipped", zap.String("symbol", m.Symbol), zap.Error(err))
			continue
		}
		if err := tr.exchange.Subscribe([]string{m.Symbol}); err != nil {
			tr.log.Warn("Cannot subscribe to symbol",
				zap.String("symbol", m.Symbol), zap.Error(err))
		}
	}
}
