package usecase

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/vitos/crypto_trend_taker/internal/domain"
	"go.uber.org/zap"
)

var ledgerCSVHeader = []string{
	"datetimeUTC", "symbol", "side", "amountAsBase", "amountAsQuote", "price", "feeAsQuote",
}

// InvestmentLedger owns the mapping of open investments and the lifetime
// totals. The lifecycle mutates ledger state only through Open, Close and
// RaiseStop; everything else is read-only. State is persisted as JSON after
// every mutation, every fill is appended to a monthly-rotated CSV, and every
// close result goes to the archive.
type InvestmentLedger struct {
	botID     string
	stateFile string
	ledgerDir string
	store     domain.StateStore
	archive   domain.ResultArchive
	log       *zap.Logger
	timeNow   func() time.Time

	state domain.LedgerState
}

func NewInvestmentLedger(botID, directory string, store domain.StateStore, archive domain.ResultArchive, log *zap.Logger) *InvestmentLedger {
	return &InvestmentLedger{
		botID:     botID,
		stateFile: filepath.Join(directory, botID+"_investments.json"),
		ledgerDir: directory,
		store:     store,
		archive:   archive,
		log:       log,
		timeNow:   time.Now,
		state: domain.LedgerState{
			Investments: make(map[string]domain.Investment),
		},
	}
}

// Load rehydrates open investments after a restart. Records missing required
// fields are skipped and logged; partial or corrupt persisted state is a
// recoverable condition, never fatal.
func (l *InvestmentLedger) Load() error {
	var loaded domain.LedgerState
	found, err := l.store.LoadJSON(l.stateFile, &loaded)
	if err != nil {
		return fmt.Errorf("load ledger state: %w", err)
	}
	if !found {
		l.log.Info("No ledger state file found, starting empty", zap.String("path", l.stateFile))
		return nil
	}
	l.state.Initial = loaded.Initial
	l.state.Final = loaded.Final
	l.state.Totals = loaded.Totals
	for symbol, inv := range loaded.Investments {
		if !validInvestment(inv) {
			l.log.Error("Skipping corrupt investment record", zap.String("symbol", symbol))
			continue
		}
		l.state.Investments[symbol] = inv
	}
	l.log.Info("Ledger state loaded",
		zap.String("path", l.stateFile),
		zap.Int("open_investments", len(l.state.Investments)))
	return nil
}

func validInvestment(inv domain.Investment) bool {
	if inv.Symbol == "" || inv.AmountAsBase <= 0 {
		return false
	}
	if inv.Buy.Price <= 0 || inv.Buy.AmountAsBase <= 0 || inv.Buy.Timestamp <= 0 {
		return false
	}
	return true
}

// Open records a new investment. It fails with ErrAlreadyOpen when the
// symbol already holds a position; an open position cannot be reopened.
func (l *InvestmentLedger) Open(ctx context.Context, symbol string, lastPrice float64, buy domain.Fill, exit domain.ExitRules, balanceQuote float64) error {
	if l.Contains(symbol) {
		return fmt.Errorf("open %s: %w", symbol, domain.ErrAlreadyOpen)
	}
	l.state.Investments[symbol] = domain.Investment{
		Symbol:          symbol,
		AmountAsBase:    buy.AmountAsBase,
		LastTickerPrice: lastPrice,
		Buy:             buy,
		ForExit:         exit,
	}
	l.setBorders(buy, balanceQuote)
	l.state.Totals.FeeAsQuote += buy.FeeAsQuote
	l.persist()
	l.appendFill(buy)
	return nil
}

// Close removes the investment, folds its realized result into the totals
// and returns the immutable close snapshot. Fails with ErrNotOpen when no
// position exists for the symbol; the totals stay untouched in that case.
func (l *InvestmentLedger) Close(ctx context.Context, symbol string, sell domain.Fill, balanceQuote float64) (*domain.CloseResult, error) {
	inv, ok := l.state.Investments[symbol]
	if !ok {
		return nil, fmt.Errorf("close %s: %w", symbol, domain.ErrNotOpen)
	}
	l.setBorders(sell, balanceQuote)

	buyAsQuote := inv.Buy.AmountAsQuote()
	sellAsQuote := sell.AmountAsQuote()
	exposureHours := float64(sell.Timestamp-inv.Buy.Timestamp) / 1000 / 60 / 60
	profitAsQuote := sellAsQuote - buyAsQuote
	profitAsPercent, err := Delta(buyAsQuote, sellAsQuote)
	if err != nil {
		return nil, fmt.Errorf("close %s: degenerate buy value: %w", symbol, err)
	}

	t := &l.state.Totals
	t.InvestmentsCount++
	t.FeeAsQuote += sell.FeeAsQuote
	t.ProfitAsQuote += profitAsQuote
	t.Hours = float64(l.state.Final.Timestamp-l.state.Initial.Timestamp) / 1000 / 60 / 60
	t.ExposureHours += exposureHours

	if !t.HasStatistics {
		t.HasStatistics = true
		t.MinProfitAsPercent = profitAsPercent
		t.MaxProfitAsPercent = profitAsPercent
		t.MinProfitAsQuote = profitAsQuote
		t.MaxProfitAsQuote = profitAsQuote
	} else {
		t.MinProfitAsPercent = minFloat(t.MinProfitAsPercent, profitAsPercent)
		t.MaxProfitAsPercent = maxFloat(t.MaxProfitAsPercent, profitAsPercent)
		t.MinProfitAsQuote = minFloat(t.MinProfitAsQuote, profitAsQuote)
		t.MaxProfitAsQuote = maxFloat(t.MaxProfitAsQuote, profitAsQuote)
	}
	t.ProfitInBalance = l.state.Final.BalanceQuote - l.state.Initial.BalanceQuote
	if l.state.Initial.BalanceQuote > 0 {
		t.ProfitInBalancePct, _ = Delta(l.state.Initial.BalanceQuote, l.state.Final.BalanceQuote)
	}

	result := &domain.CloseResult{
		Symbol:          symbol,
		AmountAsBase:    inv.AmountAsBase,
		Buy:             inv.Buy,
		Sell:            sell,
		FeeAsQuote:      inv.Buy.FeeAsQuote + sell.FeeAsQuote,
		Hours:           exposureHours,
		ProfitAsPercent: profitAsPercent,
		ProfitAsQuote:   profitAsQuote,
	}

	delete(l.state.Investments, symbol)
	l.persist()
	l.appendFill(sell)
	if err := l.archive.SaveResult(ctx, result); err != nil {
		l.log.Error("Failed to archive close result", zap.String("symbol", symbol), zap.Error(err))
	}
	return result, nil
}

// RaiseStop lifts the stop-loss price of an open trailing investment. The
// stop only ever moves up; a lower or equal level is ignored. The change is
// persisted so a restart keeps the ratchet.
func (l *InvestmentLedger) RaiseStop(symbol string, newStop float64) bool {
	inv, ok := l.state.Investments[symbol]
	if !ok || !inv.ForExit.TrailingStop || newStop <= inv.ForExit.StopLossPrice {
		return false
	}
	inv.ForExit.StopLossPrice = newStop
	l.state.Investments[symbol] = inv
	l.persist()
	return true
}

func (l *InvestmentLedger) Contains(symbol string) bool {
	_, ok := l.state.Investments[symbol]
	return ok
}

func (l *InvestmentLedger) Get(symbol string) (domain.Investment, bool) {
	inv, ok := l.state.Investments[symbol]
	return inv, ok
}

// OpenSymbols returns the open position symbols in a stable order.
func (l *InvestmentLedger) OpenSymbols() []string {
	symbols := make([]string, 0, len(l.state.Investments))
	for symbol := range l.state.Investments {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}

func (l *InvestmentLedger) IsEmpty() bool {
	return len(l.state.Investments) == 0
}

func (l *InvestmentLedger) Count() int {
	return len(l.state.Investments)
}

func (l *InvestmentLedger) Totals() domain.LedgerTotals {
	return l.state.Totals
}

func (l *InvestmentLedger) setBorders(fill domain.Fill, balanceQuote float64) {
	point := domain.BalancePoint{
		Timestamp:    fill.Timestamp,
		DatetimeUTC:  fill.DatetimeUTC,
		BalanceQuote: balanceQuote,
	}
	if l.state.Initial.Timestamp == 0 {
		l.state.Initial = point
	}
	l.state.Final = point
}

// persist writes the full ledger state. Persistence failures are logged but
// do not fail the operation: the in-memory state is authoritative and the
// next mutation retries the write.
func (l *InvestmentLedger) persist() {
	if err := l.store.SaveJSON(l.stateFile, l.state); err != nil {
		l.log.Error("Failed to persist ledger state", zap.String("path", l.stateFile), zap.Error(err))
	}
}

func (l *InvestmentLedger) appendFill(fill domain.Fill) {
	path := filepath.Join(l.ledgerDir, fmt.Sprintf("%s_ledger_%s.csv", l.botID, l.timeNow().UTC().Format("200601")))
	row := []string{
		fill.DatetimeUTC,
		fill.Symbol,
		string(fill.Side),
		formatFloat(fill.AmountAsBase),
		formatFloat(fill.AmountAsQuote()),
		formatFloat(fill.Price),
		formatFloat(fill.FeeAsQuote),
	}
	if err := l.store.AppendCSVRow(path, ledgerCSVHeader, row); err != nil {
		l.log.Error("Failed to append ledger CSV row", zap.String("path", path), zap.Error(err))
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
