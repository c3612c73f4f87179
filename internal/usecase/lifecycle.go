package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/vitos/crypto_trend_taker/internal/domain"
	"go.uber.org/zap"
)

// ExitTrigger names the exit condition that closed an investment.
type ExitTrigger string

const (
	TriggerNone         ExitTrigger = ""
	TriggerTrailingStop ExitTrigger = "trailing-stop"
	TriggerStopLoss     ExitTrigger = "stop-loss"
	TriggerTakeProfit   ExitTrigger = "take-profit"
	TriggerTimeout      ExitTrigger = "timeout"
)

// LifecycleConfig holds the sizing and exit defaults of the lifecycle.
type LifecycleConfig struct {
	// CandlesDays drives the default max holding time (days * 24 hours)
	// when a position carries no explicit limit.
	CandlesDays int
	// DefaultProfitPercent is the take-profit distance used when metrics
	// provide no entry plan.
	DefaultProfitPercent float64
	// TrailingStop makes the stop-loss of new positions ratchet upward
	// with the price instead of staying at its entry level.
	TrailingStop bool
}

// InvestmentLifecycle opens positions against scored markets, evaluates exit
// triggers every cycle and closes positions. Either both the order and the
// ledger update happen, or neither.
type InvestmentLifecycle struct {
	exchange domain.Exchange
	ledger   *InvestmentLedger
	cfg      LifecycleConfig
	log      *zap.Logger
}

func NewInvestmentLifecycle(exchange domain.Exchange, ledger *InvestmentLedger, cfg LifecycleConfig, log *zap.Logger) *InvestmentLifecycle {
	return &InvestmentLifecycle{
		exchange: exchange,
		ledger:   ledger,
		cfg:      cfg,
		log:      log,
	}
}

// Invest opens a position by buying amountAsBase at market price. The
// current price must be obtainable, the size must respect the market's
// amount limits and the symbol must not already hold a position. Exit
// parameters come from the metrics entry plan when available.
func (lc *InvestmentLifecycle) Invest(ctx context.Context, symbol string, amountAsBase float64, metrics *MetricsRecord) error {
	if lc.ledger.Contains(symbol) {
		return fmt.Errorf("invest %s: %w", symbol, domain.ErrAlreadyOpen)
	}
	ticker, err := lc.exchange.GetTicker(ctx, symbol)
	if err != nil {
		return fmt.Errorf("invest %s: %w", symbol, err)
	}
	lastPrice := ticker.Last
	if lastPrice <= 0 {
		return fmt.Errorf("invest %s: %w", symbol, domain.ErrNoPrice)
	}
	limits, err := lc.exchange.GetAmountLimits(ctx, symbol)
	if err != nil {
		return fmt.Errorf("invest %s: %w", symbol, err)
	}
	if amountAsBase < limits.Min || amountAsBase > limits.Max {
		lc.log.Warn("Amount outside market limits",
			zap.String("symbol", symbol),
			zap.Float64("amount", amountAsBase),
			zap.Float64("min", limits.Min),
			zap.Float64("max", limits.Max))
		return fmt.Errorf("invest %s: amount %v not in [%v, %v]: %w",
			symbol, amountAsBase, limits.Min, limits.Max, domain.ErrOutsideLimits)
	}

	exit := lc.exitRules(lastPrice, metrics)

	buy, err := lc.exchange.SubmitMarketOrder(ctx, domain.SideBuy, symbol, amountAsBase)
	if err != nil {
		return fmt.Errorf("invest %s: market buy: %w", symbol, err)
	}
	balanceQuote := lc.quoteBalance(ctx, symbol)
	if err := lc.ledger.Open(ctx, symbol, lastPrice, *buy, exit, balanceQuote); err != nil {
		return fmt.Errorf("invest %s: %w", symbol, err)
	}
	lc.log.Info("Investment opened",
		zap.String("symbol", symbol),
		zap.Float64("amount_base", buy.AmountAsBase),
		zap.Float64("price", buy.Price),
		zap.Float64("take_profit", exit.TakeProfitPrice),
		zap.Float64("stop_loss", exit.StopLossPrice),
		zap.Float64("max_hours", exit.MaxHours))
	return nil
}

// exitRules derives the exit parameters for a position opened at lastPrice.
// The stop-loss percent is normalized to negative before the level is
// computed; a zero percent leaves the corresponding trigger unset.
func (lc *InvestmentLifecycle) exitRules(lastPrice float64, metrics *MetricsRecord) domain.ExitRules {
	profitPercent := lc.cfg.DefaultProfitPercent
	maxLossPercent := 0.0
	maxHours := float64(lc.cfg.CandlesDays) * 24
	if metrics != nil && metrics.Entry != nil {
		profitPercent = metrics.Entry.ProfitPercent
		maxLossPercent = metrics.Entry.MaxLossPercent
		if metrics.Entry.MaxHours > 0 {
			maxHours = metrics.Entry.MaxHours
		}
	}
	if maxLossPercent > 0 {
		maxLossPercent = -maxLossPercent
	}
	exit := domain.ExitRules{
		ProfitPercent:  profitPercent,
		MaxLossPercent: maxLossPercent,
		TrailingStop:   lc.cfg.TrailingStop && maxLossPercent != 0,
		MaxHours:       maxHours,
	}
	if profitPercent != 0 {
		exit.TakeProfitPrice = lastPrice * (1 + profitPercent/100)
	}
	if maxLossPercent != 0 {
		exit.StopLossPrice = lastPrice * (1 + maxLossPercent/100)
	}
	return exit
}

// EvaluateExit runs the exit triggers for one open position in fixed
// priority order: trailing stop, fixed stop-loss, take-profit, max-hours
// timeout. The first matching trigger closes the position and the remaining
// triggers are not evaluated.
func (lc *InvestmentLifecycle) EvaluateExit(ctx context.Context, symbol string, currentPrice float64, now time.Time) (ExitTrigger, error) {
	inv, ok := lc.ledger.Get(symbol)
	if !ok {
		return TriggerNone, fmt.Errorf("evaluate exit %s: %w", symbol, domain.ErrNotOpen)
	}
	exit := inv.ForExit

	if exit.TrailingStop && exit.StopLossPrice > 0 {
		if currentPrice <= exit.StopLossPrice {
			lc.log.Info("Trailing stop triggered",
				zap.String("symbol", symbol),
				zap.Float64("price", currentPrice),
				zap.Float64("stop", exit.StopLossPrice))
			if _, err := lc.Close(ctx, symbol); err != nil {
				return TriggerNone, err
			}
			return TriggerTrailingStop, nil
		}
		// The stop ratchets: it follows the price upward, never down.
		candidate := currentPrice * (1 + exit.MaxLossPercent/100)
		if lc.ledger.RaiseStop(symbol, candidate) {
			lc.log.Debug("Trailing stop raised",
				zap.String("symbol", symbol),
				zap.Float64("stop", candidate))
		}
	} else if exit.StopLossPrice > 0 && currentPrice <= exit.StopLossPrice {
		lc.log.Info("Stop loss triggered",
			zap.String("symbol", symbol),
			zap.Float64("price", currentPrice),
			zap.Float64("stop", exit.StopLossPrice))
		if _, err := lc.Close(ctx, symbol); err != nil {
			return TriggerNone, err
		}
		return TriggerStopLoss, nil
	}

	if exit.TakeProfitPrice > 0 && currentPrice >= exit.TakeProfitPrice {
		lc.log.Info("Take profit triggered",
			zap.String("symbol", symbol),
			zap.Float64("price", currentPrice),
			zap.Float64("target", exit.TakeProfitPrice))
		if _, err := lc.Close(ctx, symbol); err != nil {
			return TriggerNone, err
		}
		return TriggerTakeProfit, nil
	}

	maxHours := exit.MaxHours
	if maxHours <= 0 {
		maxHours = float64(lc.cfg.CandlesDays) * 24
	}
	elapsedHours := now.Sub(time.UnixMilli(inv.Buy.Timestamp)).Hours()
	if elapsedHours >= maxHours {
		lc.log.Info("Time stop triggered",
			zap.String("symbol", symbol),
			zap.Float64("hours", elapsedHours),
			zap.Float64("max_hours", maxHours))
		if _, err := lc.Close(ctx, symbol); err != nil {
			return TriggerNone, err
		}
		return TriggerTimeout, nil
	}
	return TriggerNone, nil
}

// Close sells the exact originally-filled base amount at market price and
// settles the investment in the ledger. When the sell order fails the
// position stays open, unchanged.
func (lc *InvestmentLifecycle) Close(ctx context.Context, symbol string) (*domain.CloseResult, error) {
	inv, ok := lc.ledger.Get(symbol)
	if !ok {
		return nil, fmt.Errorf("close %s: %w", symbol, domain.ErrNotOpen)
	}
	sell, err := lc.exchange.SubmitMarketOrder(ctx, domain.SideSell, symbol, inv.Buy.AmountAsBase)
	if err != nil {
		return nil, fmt.Errorf("close %s: market sell: %w", symbol, err)
	}
	balanceQuote := lc.quoteBalance(ctx, symbol)
	result, err := lc.ledger.Close(ctx, symbol, *sell, balanceQuote)
	if err != nil {
		return nil, err
	}
	lc.log.Info("Investment closed",
		zap.String("symbol", symbol),
		zap.Float64("buy_price", result.Buy.Price),
		zap.Float64("sell_price", result.Sell.Price),
		zap.Float64("hours", result.Hours),
		zap.Float64("profit_percent", result.ProfitAsPercent),
		zap.Float64("profit_quote", result.ProfitAsQuote))
	return result, nil
}

// CheckInvestments evaluates the exit triggers of every open position. One
// market's failure never aborts the check of the others.
func (lc *InvestmentLifecycle) CheckInvestments(ctx context.Context, now time.Time) {
	for _, symbol := range lc.ledger.OpenSymbols() {
		ticker, err := lc.exchange.GetTicker(ctx, symbol)
		if err != nil {
			lc.log.Warn("Cannot fetch ticker for open investment",
				zap.String("symbol", symbol), zap.Error(err))
			continue
		}
		if ticker.Last <= 0 {
			lc.log.Warn("No usable price for open investment", zap.String("symbol", symbol))
			continue
		}
		if _, err := lc.EvaluateExit(ctx, symbol, ticker.Last, now); err != nil {
			lc.log.Error("Exit evaluation failed",
				zap.String("symbol", symbol), zap.Error(err))
		}
	}
}

// quoteBalance fetches the free balance of the symbol's quote currency.
// Balance is informational for ledger bookkeeping, so failures degrade to 0.
func (lc *InvestmentLifecycle) quoteBalance(ctx context.Context, symbol string) float64 {
	balances, err := lc.exchange.GetBalance(ctx)
	if err != nil {
		lc.log.Warn("Cannot fetch balance", zap.Error(err))
		return 0
	}
	return balances[domain.QuoteOf(symbol)]
}
