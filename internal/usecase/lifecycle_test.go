package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vitos/crypto_trend_taker/internal/domain"
	"github.com/vitos/crypto_trend_taker/internal/usecase"
	"go.uber.org/zap"
)

func newTestLifecycle(trailing bool) (*usecase.InvestmentLifecycle, *usecase.InvestmentLedger, *MockExchange) {
	ledger, _, _ := newTestLedger()
	mockEx := &MockExchange{
		Tickers: map[string]domain.Ticker{
			"ADA/USDT": {Symbol: "ADA/USDT", Last: 100, Bid: 99.9, Ask: 100, Low: 95, High: 101, Percentage: 5},
		},
		Balances:   map[string]float64{"USDT": 1000},
		FeeAsQuote: 0.2,
	}
	cfg := usecase.LifecycleConfig{
		CandlesDays:          1,
		DefaultProfitPercent: 3,
		TrailingStop:         trailing,
	}
	lc := usecase.NewInvestmentLifecycle(mockEx, ledger, cfg, zap.NewNop())
	return lc, ledger, mockEx
}

func entryMetrics(lastPrice, profitPercent, maxLossPercent, maxHours float64) *usecase.MetricsRecord {
	return &usecase.MetricsRecord{
		Symbol: "ADA/USDT",
		Entry: &usecase.EntryPlan{
			ProfitPercent:   profitPercent,
			MaxLossPercent:  maxLossPercent,
			LastPrice:       lastPrice,
			TakeProfitPrice: lastPrice * (1 + profitPercent/100),
			StopLossPrice:   lastPrice * (1 + maxLossPercent/100),
			MaxHours:        maxHours,
		},
	}
}

func TestInvest(t *testing.T) {
	lc, ledger, mockEx := newTestLifecycle(false)

	if err := lc.Invest(context.Background(), "ADA/USDT", 1, nil); err != nil {
		t.Fatalf("Invest() error = %v", err)
	}

	if len(mockEx.Orders) != 1 {
		t.Fatalf("orders = %d, want 1", len(mockEx.Orders))
	}
	if mockEx.Orders[0].Side != domain.SideBuy {
		t.Errorf("order side = %s, want buy", mockEx.Orders[0].Side)
	}

	inv, ok := ledger.Get("ADA/USDT")
	if !ok {
		t.Fatal("investment not recorded")
	}
	// Default exit: 3% take-profit, no stop-loss.
	if !floatEquals(inv.ForExit.TakeProfitPrice, 103) {
		t.Errorf("TakeProfitPrice = %v, want 103", inv.ForExit.TakeProfitPrice)
	}
	if inv.ForExit.StopLossPrice != 0 {
		t.Errorf("StopLossPrice = %v, want 0 (unset)", inv.ForExit.StopLossPrice)
	}
	if !floatEquals(inv.ForExit.MaxHours, 24) {
		t.Errorf("MaxHours = %v, want 24", inv.ForExit.MaxHours)
	}
}

func TestInvest_PositiveMaxLossIsNormalized(t *testing.T) {
	lc, ledger, _ := newTestLifecycle(false)

	// A positive stop distance still has to put the stop below the price.
	err := lc.Invest(context.Background(), "ADA/USDT", 1, entryMetrics(100, 4, 5, 12))
	if err != nil {
		t.Fatalf("Invest() error = %v", err)
	}
	inv, _ := ledger.Get("ADA/USDT")
	if !floatEquals(inv.ForExit.MaxLossPercent, -5) {
		t.Errorf("MaxLossPercent = %v, want -5", inv.ForExit.MaxLossPercent)
	}
	if !floatEquals(inv.ForExit.StopLossPrice, 95) {
		t.Errorf("StopLossPrice = %v, want 95", inv.ForExit.StopLossPrice)
	}
}

func TestInvest_OutsideLimits(t *testing.T) {
	lc, ledger, mockEx := newTestLifecycle(false)
	mockEx.Limits = domain.AmountLimits{Min: 10, Max: 100}

	err := lc.Invest(context.Background(), "ADA/USDT", 1, nil)
	if !errors.Is(err, domain.ErrOutsideLimits) {
		t.Fatalf("Invest() error = %v, want ErrOutsideLimits", err)
	}
	// The order must never reach the exchange.
	if len(mockEx.Orders) != 0 {
		t.Errorf("orders = %d, want 0", len(mockEx.Orders))
	}
	if !ledger.IsEmpty() {
		t.Error("ledger should stay empty")
	}
}

func TestInvest_Duplicate(t *testing.T) {
	lc, _, mockEx := newTestLifecycle(false)
	ctx := context.Background()

	if err := lc.Invest(ctx, "ADA/USDT", 1, nil); err != nil {
		t.Fatalf("first Invest() error = %v", err)
	}
	if err := lc.Invest(ctx, "ADA/USDT", 1, nil); !errors.Is(err, domain.ErrAlreadyOpen) {
		t.Fatalf("second Invest() error = %v, want ErrAlreadyOpen", err)
	}
	if len(mockEx.Orders) != 1 {
		t.Errorf("orders = %d, want 1", len(mockEx.Orders))
	}
}

func TestInvest_NoPrice(t *testing.T) {
	lc, _, mockEx := newTestLifecycle(false)
	mockEx.Tickers["ADA/USDT"] = domain.Ticker{Symbol: "ADA/USDT", Last: 0}

	err := lc.Invest(context.Background(), "ADA/USDT", 1, nil)
	if !errors.Is(err, domain.ErrNoPrice) {
		t.Fatalf("Invest() error = %v, want ErrNoPrice", err)
	}
}

func TestEvaluateExit_TakeProfitWinsOverTimeout(t *testing.T) {
	lc, ledger, mockEx := newTestLifecycle(false)
	ctx := context.Background()

	if err := lc.Invest(ctx, "ADA/USDT", 1, entryMetrics(100, 3, -5, 1)); err != nil {
		t.Fatalf("Invest() error = %v", err)
	}
	inv, _ := ledger.Get("ADA/USDT")
	// Price above target AND holding time expired: priority order says
	// take-profit reports, not the timeout.
	mockEx.Tickers["ADA/USDT"] = domain.Ticker{Symbol: "ADA/USDT", Last: 104}
	now := time.UnixMilli(inv.Buy.Timestamp).Add(5 * time.Hour)

	trigger, err := lc.EvaluateExit(ctx, "ADA/USDT", 104, now)
	if err != nil {
		t.Fatalf("EvaluateExit() error = %v", err)
	}
	if trigger != usecase.TriggerTakeProfit {
		t.Errorf("trigger = %s, want take-profit", trigger)
	}
	if !ledger.IsEmpty() {
		t.Error("position should be closed")
	}
}

func TestEvaluateExit_StopLoss(t *testing.T) {
	lc, ledger, mockEx := newTestLifecycle(false)
	ctx := context.Background()

	if err := lc.Invest(ctx, "ADA/USDT", 1, entryMetrics(100, 3, -5, 24)); err != nil {
		t.Fatalf("Invest() error = %v", err)
	}
	mockEx.Tickers["ADA/USDT"] = domain.Ticker{Symbol: "ADA/USDT", Last: 94}

	trigger, err := lc.EvaluateExit(ctx, "ADA/USDT", 94, time.Now())
	if err != nil {
		t.Fatalf("EvaluateExit() error = %v", err)
	}
	if trigger != usecase.TriggerStopLoss {
		t.Errorf("trigger = %s, want stop-loss", trigger)
	}
	if !ledger.IsEmpty() {
		t.Error("position should be closed")
	}
}

func TestEvaluateExit_Timeout(t *testing.T) {
	lc, ledger, _ := newTestLifecycle(false)
	ctx := context.Background()

	if err := lc.Invest(ctx, "ADA/USDT", 1, entryMetrics(100, 3, -5, 24)); err != nil {
		t.Fatalf("Invest() error = %v", err)
	}
	inv, _ := ledger.Get("ADA/USDT")
	now := time.UnixMilli(inv.Buy.Timestamp).Add(25 * time.Hour)

	// Price between stop and target: only the clock can close it.
	trigger, err := lc.EvaluateExit(ctx, "ADA/USDT", 100, now)
	if err != nil {
		t.Fatalf("EvaluateExit() error = %v", err)
	}
	if trigger != usecase.TriggerTimeout {
		t.Errorf("trigger = %s, want timeout", trigger)
	}
}

func TestEvaluateExit_TrailingStopRatchet(t *testing.T) {
	lc, ledger, mockEx := newTestLifecycle(true)
	ctx := context.Background()

	if err := lc.Invest(ctx, "ADA/USDT", 1, entryMetrics(100, 50, -5, 24)); err != nil {
		t.Fatalf("Invest() error = %v", err)
	}

	// Price runs up: no trigger, but the stop follows.
	trigger, err := lc.EvaluateExit(ctx, "ADA/USDT", 110, time.Now())
	if err != nil {
		t.Fatalf("EvaluateExit() error = %v", err)
	}
	if trigger != usecase.TriggerNone {
		t.Fatalf("trigger = %s, want none while rising", trigger)
	}
	inv, _ := ledger.Get("ADA/USDT")
	if !floatEquals(inv.ForExit.StopLossPrice, 104.5) { // 110 * 0.95
		t.Errorf("raised stop = %v, want 104.5", inv.ForExit.StopLossPrice)
	}

	// Price dips back below the raised stop: trailing stop fires even
	// though the original 95 stop was never touched.
	mockEx.Tickers["ADA/USDT"] = domain.Ticker{Symbol: "ADA/USDT", Last: 104}
	trigger, err = lc.EvaluateExit(ctx, "ADA/USDT", 104, time.Now())
	if err != nil {
		t.Fatalf("EvaluateExit() error = %v", err)
	}
	if trigger != usecase.TriggerTrailingStop {
		t.Errorf("trigger = %s, want trailing-stop", trigger)
	}
	if !ledger.IsEmpty() {
		t.Error("position should be closed")
	}
}

func TestEvaluateExit_NotOpen(t *testing.T) {
	lc, _, _ := newTestLifecycle(false)
	_, err := lc.EvaluateExit(context.Background(), "ADA/USDT", 100, time.Now())
	if !errors.Is(err, domain.ErrNotOpen) {
		t.Errorf("EvaluateExit() error = %v, want ErrNotOpen", err)
	}
}

func TestClose_SellFailureKeepsPosition(t *testing.T) {
	lc, ledger, mockEx := newTestLifecycle(false)
	ctx := context.Background()

	if err := lc.Invest(ctx, "ADA/USDT", 1, nil); err != nil {
		t.Fatalf("Invest() error = %v", err)
	}
	mockEx.OrderErr = errors.New("exchange down")

	if _, err := lc.Close(ctx, "ADA/USDT"); err == nil {
		t.Fatal("Close() error = nil, want error")
	}
	if !ledger.Contains("ADA/USDT") {
		t.Error("position should survive a failed sell")
	}
}

func TestCheckInvestments_OneFailureDoesNotAbort(t *testing.T) {
	lc, ledger, mockEx := newTestLifecycle(false)
	ctx := context.Background()
	mockEx.Tickers["XYZ/USDT"] = domain.Ticker{Symbol: "XYZ/USDT", Last: 50}

	if err := lc.Invest(ctx, "ADA/USDT", 1, entryMetrics(100, 3, -5, 24)); err != nil {
		t.Fatalf("Invest() error = %v", err)
	}
	if err := lc.Invest(ctx, "XYZ/USDT", 1, entryMetrics(50, 3, -5, 24)); err != nil {
		t.Fatalf("Invest() error = %v", err)
	}

	// XYZ loses its market data; ADA hits its target and must still close.
	delete(mockEx.Tickers, "XYZ/USDT")
	mockEx.Tickers["ADA/USDT"] = domain.Ticker{Symbol: "ADA/USDT", Last: 104}

	lc.CheckInvestments(ctx, time.Now())

	if ledger.Contains("ADA/USDT") {
		t.Error("ADA/USDT should be closed at its target")
	}
	if !ledger.Contains("XYZ/USDT") {
		t.Error("XYZ/USDT should stay open when its ticker is unavailable")
	}
}
