package config

import (
	"fmt"
	"os"

	"github.com/vitos/crypto_trend_taker/internal/usecase"
	"gopkg.in/yaml.v3"
)

// Config is the full bot configuration. It is loaded once at startup and
// treated as immutable afterwards; components receive the slices they need
// at construction instead of reading ambient state.
type Config struct {
	Bot struct {
		ID                    string   `yaml:"id"`
		CurrencyQuote         string   `yaml:"currency_quote"`
		AmountToInvestAsQuote float64  `yaml:"amount_to_invest_as_quote"`
		MaxCurrenciesToInvest int      `yaml:"max_currencies_to_invest"`
		MaxTickersToSelect    int      `yaml:"max_tickers_to_select"`
		CandlesDays           int      `yaml:"candles_days"`
		Preselected           []string `yaml:"preselected"`
		BlackList             []string `yaml:"black_list"`
		ForceCloseAndExit     bool     `yaml:"force_close_and_exit"`
	} `yaml:"bot"`

	Active struct {
		Enable        bool    `yaml:"enable"`
		ProfitPercent float64 `yaml:"profit_percent"`
		TrailingStop  bool    `yaml:"trailing_stop"`
	} `yaml:"active"`

	Filters struct {
		Tickers struct {
			MinProfit              float64 `yaml:"min_profit"`
			MaxSpreadOverProfit    float64 `yaml:"max_spread_over_profit"`
			MinProfitOverAmplitude float64 `yaml:"min_profit_over_amplitude"`
		} `yaml:"tickers"`
		Candles struct {
			MaxColapses    float64 `yaml:"max_colapses"`
			MinCompletion  float64 `yaml:"min_completion"`
			MinProfitWhole float64 `yaml:"min_profit_whole"`
			MinProfitHalf1 float64 `yaml:"min_profit_half1"`
			MinProfitHalf2 float64 `yaml:"min_profit_half2"`
		} `yaml:"candles"`
	} `yaml:"filters"`

	Exchange struct {
		RESTEndpoint   string `yaml:"rest_endpoint"`
		WSEndpoint     string `yaml:"ws_endpoint"`
		APIKey         string `yaml:"api_key"`
		APISecret      string `yaml:"api_secret"`
		SimulateOrders bool   `yaml:"simulate_orders"`
	} `yaml:"exchange"`

	Storage struct {
		Directory  string `yaml:"directory"`
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"storage"`

	Schedule struct {
		ScanCron string `yaml:"scan_cron"`
	} `yaml:"schedule"`

	Logging struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"logging"`
}

// Default returns the built-in configuration. Threshold values are percents.
func Default() *Config {
	cfg := &Config{}
	cfg.Bot.ID = "trendtaker"
	cfg.Bot.CurrencyQuote = "USDT"
	cfg.Bot.AmountToInvestAsQuote = 20
	cfg.Bot.MaxCurrenciesToInvest = 20
	cfg.Bot.MaxTickersToSelect = 50
	cfg.Bot.CandlesDays = 7
	cfg.Bot.Preselected = []string{"BTC", "ETH"}
	cfg.Active.ProfitPercent = 3
	cfg.Filters.Tickers.MinProfit = 0
	cfg.Filters.Tickers.MaxSpreadOverProfit = 33
	cfg.Filters.Tickers.MinProfitOverAmplitude = 33
	cfg.Filters.Candles.MaxColapses = 30
	cfg.Filters.Candles.MinCompletion = 85
	cfg.Filters.Candles.MinProfitWhole = 1.0
	cfg.Filters.Candles.MinProfitHalf1 = 0
	cfg.Filters.Candles.MinProfitHalf2 = 0
	cfg.Exchange.RESTEndpoint = "https://api.hitbtc.com"
	cfg.Exchange.WSEndpoint = "wss://api.hitbtc.com/api/3/ws/public"
	cfg.Storage.Directory = "./ledger"
	cfg.Storage.SQLitePath = "./ledger/results.db"
	cfg.Schedule.ScanCron = "@every 15m"
	cfg.Logging.Level = "info"
	return cfg
}

// Load reads the YAML file over the defaults, then applies environment
// variable overrides for credentials.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if v := os.Getenv("EXCHANGE_API_KEY"); v != "" {
		cfg.Exchange.APIKey = v
	}
	if v := os.Getenv("EXCHANGE_API_SECRET"); v != "" {
		cfg.Exchange.APISecret = v
	}
	return cfg, nil
}

// FilterConfig adapts the configuration for the market filter.
func (c *Config) FilterConfig() usecase.FilterConfig {
	return usecase.FilterConfig{
		Preselected: c.Bot.Preselected,
		Tickers: usecase.TickerFilters{
			MinProfit:              c.Filters.Tickers.MinProfit,
			MaxSpreadOverProfit:    c.Filters.Tickers.MaxSpreadOverProfit,
			MinProfitOverAmplitude: c.Filters.Tickers.MinProfitOverAmplitude,
		},
		Candles: usecase.CandleFilters{
			MaxColapses:    c.Filters.Candles.MaxColapses,
			MinCompletion:  c.Filters.Candles.MinCompletion,
			MinProfitWhole: c.Filters.Candles.MinProfitWhole,
			MinProfitHalf1: c.Filters.Candles.MinProfitHalf1,
			MinProfitHalf2: c.Filters.Candles.MinProfitHalf2,
		},
	}
}

// LifecycleConfig adapts the configuration for the investment lifecycle.
func (c *Config) LifecycleConfig() usecase.LifecycleConfig {
	return usecase.LifecycleConfig{
		CandlesDays:          c.Bot.CandlesDays,
		DefaultProfitPercent: c.Active.ProfitPercent,
		TrailingStop:         c.Active.TrailingStop,
	}
}

// TraderConfig adapts the configuration for the cycle orchestrator.
func (c *Config) TraderConfig() usecase.TraderConfig {
	return usecase.TraderConfig{
		CurrencyQuote:         c.Bot.CurrencyQuote,
		AmountToInvestAsQuote: c.Bot.AmountToInvestAsQuote,
		MaxCurrenciesToInvest: c.Bot.MaxCurrenciesToInvest,
		MaxTickersToSelect:    c.Bot.MaxTickersToSelect,
		CandlesDays:           c.Bot.CandlesDays,
		Preselected:           c.Bot.Preselected,
		BlackList:             c.Bot.BlackList,
		Active:                c.Active.Enable,
	}
}
