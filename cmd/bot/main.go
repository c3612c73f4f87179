package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/vitos/crypto_trend_taker/internal/config"
	"github.com/vitos/crypto_trend_taker/internal/domain"
	"github.com/vitos/crypto_trend_taker/internal/infrastructure/exchange"
	"github.com/vitos/crypto_trend_taker/internal/infrastructure/logger"
	"github.com/vitos/crypto_trend_taker/internal/infrastructure/storage"
	"github.com/vitos/crypto_trend_taker/internal/usecase"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML configuration")
	flag.Parse()

	// Credentials can live in a .env file next to the binary.
	_ = godotenv.Load()

	// 1. Load Config
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Init Logger
	var log *zap.Logger
	if cfg.Logging.File != "" {
		log, err = logger.NewFileLogger(cfg.Logging.File, cfg.Logging.Level)
	} else {
		log, err = logger.NewLogger(cfg.Logging.Level)
	}
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// 3. Init Storage
	store := storage.NewFileStore()
	archive, err := storage.NewSQLiteArchive(cfg.Storage.SQLitePath)
	if err != nil {
		log.Fatal("Failed to init sqlite archive", zap.Error(err))
	}
	defer archive.Close()

	// 4. Init Exchange (HitBTC)
	hitbtc := exchange.NewHitBTC(cfg.Exchange.RESTEndpoint, cfg.Exchange.WSEndpoint,
		cfg.Exchange.APIKey, cfg.Exchange.APISecret, log)
	defer hitbtc.Close()

	var exch domain.Exchange = hitbtc
	if cfg.Exchange.SimulateOrders {
		log.Info("Order simulation enabled, no real orders will be placed")
		exch = exchange.NewPaper(exch, cfg.Bot.CurrencyQuote, simulatedInitialBalance(cfg), log)
	}

	// 5. Init Services
	ledger := usecase.NewInvestmentLedger(cfg.Bot.ID, cfg.Storage.Directory, store, archive, log)
	engine := usecase.NewMetricsEngine(cfg.Bot.CandlesDays)
	filter := usecase.NewMarketFilter(cfg.FilterConfig())
	lifecycle := usecase.NewInvestmentLifecycle(exch, ledger, cfg.LifecycleConfig(), log)
	trader := usecase.NewTrader(exch, engine, filter, lifecycle, ledger, cfg.TraderConfig(), log)

	ctx := context.Background()
	if err := trader.Startup(ctx); err != nil {
		log.Fatal("Startup failed", zap.Error(err))
	}

	// Forced-close mode: liquidate everything and exit.
	if cfg.Bot.ForceCloseAndExit {
		log.Info("Force close requested, liquidating all open investments")
		trader.CloseAll(ctx)
		return
	}

	// 6. Streaming exit checks between cycles
	exch.OnTickerUpdate(trader.OnTick)

	// 7. Scan scheduler. A cycle that overruns its slot skips the next run
	// instead of stacking up.
	scheduler := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
	))
	_, err = scheduler.AddFunc(cfg.Schedule.ScanCron, func() {
		if err := trader.RunCycle(ctx); err != nil {
			log.Error("Scan cycle failed", zap.Error(err))
		}
	})
	if err != nil {
		log.Fatal("Invalid scan schedule", zap.String("cron", cfg.Schedule.ScanCron), zap.Error(err))
	}

	// Run the first cycle immediately; the schedule handles the rest.
	go func() {
		if err := trader.RunCycle(ctx); err != nil {
			log.Error("Initial scan cycle failed", zap.Error(err))
		}
	}()
	scheduler.Start()

	// 8. Wait for Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("Shutting down...")
	<-scheduler.Stop().Done()
}

// simulatedInitialBalance sizes the paper wallet so every allowed position
// can be funded.
func simulatedInitialBalance(cfg *config.Config) float64 {
	return cfg.Bot.AmountToInvestAsQuote * float64(cfg.Bot.MaxCurrenciesToInvest) * 2
}
