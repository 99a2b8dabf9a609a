// Package config assembles runtime configuration from flags, the process
// environment (with .env fallback) and a YAML strategies file.
package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"hlbot/internal/strategy"
)

type Mode string

const (
	ModePaper Mode = "paper"
	ModeLive  Mode = "live"
)

// StrategySpec binds one strategy kind to the symbols it trades.
type StrategySpec struct {
	Kind    string          `yaml:"kind"`
	Symbols []string        `yaml:"symbols"`
	Params  strategy.Params `yaml:"params"`
}

type RiskConfig struct {
	MaxLeverage     float64 `yaml:"max_leverage"`
	MaxPositionUSD  float64 `yaml:"max_position_usd"`
	MaxDailyLossUSD float64 `yaml:"max_daily_loss_usd"`
	MaxDrawdownPct  float64 `yaml:"max_drawdown_pct"`
	MinNotionalUSD  float64 `yaml:"min_notional_usd"`
}

type strategiesFile struct {
	Strategies []StrategySpec `yaml:"strategies"`
	Risk       RiskConfig     `yaml:"risk"`
}

type Config struct {
	Mode              Mode
	Symbols           []string
	Timeframe         string
	CandleHistory     int
	Strategies        []StrategySpec
	Risk              RiskConfig
	ReconcileInterval time.Duration
	FlattenOnShutdown bool
	RateLimitRPS      float64
	StartingEquity    float64
	DecisionsPath     string
	CheckpointPath    string
	StrategiesPath    string
	MetricsAddr       string
	LogLevel          string
	LogFile           string
	APIKey            string
	APISecret         string
}

func Load() (Config, error) {
	var cfg Config
	var mode, symbols string

	// Values already in the environment win over the .env file.
	_ = godotenv.Load()

	flag.StringVar(&mode, "mode", string(ModePaper), "run mode: paper or live")
	flag.StringVar(&symbols, "symbols", "BTC,ETH", "comma separated symbols")
	flag.StringVar(&cfg.Timeframe, "timeframe", "1m", "candle timeframe: 1m 5m 15m 1h 4h 1d")
	flag.IntVar(&cfg.CandleHistory, "candle-history", 200, "candles to fetch per evaluation")
	flag.DurationVar(&cfg.ReconcileInterval, "reconcile-interval", 10*time.Second, "reconciliation interval")
	flag.BoolVar(&cfg.FlattenOnShutdown, "flatten-on-shutdown", false, "close all positions on shutdown")
	flag.Float64Var(&cfg.RateLimitRPS, "rate-limit-rps", 10, "exchange requests per second")
	flag.Float64Var(&cfg.StartingEquity, "starting-equity", 10000, "paper account starting equity")
	flag.StringVar(&cfg.DecisionsPath, "decisions-path", "decisions.ndjson", "path to decisions log")
	flag.StringVar(&cfg.CheckpointPath, "checkpoint-path", "checkpoint.json", "path to checkpoint file")
	flag.StringVar(&cfg.StrategiesPath, "strategies", "strategies.yaml", "path to strategies file")
	flag.StringVar(&cfg.MetricsAddr, "metrics-addr", "", "prometheus listen address, empty disables")
	flag.Parse()

	cfg.Mode = Mode(mode)
	cfg.Symbols = splitSymbols(symbols)
	cfg.LogLevel = envOr("LOG_LEVEL", "info")
	cfg.LogFile = os.Getenv("LOG_FILE")
	cfg.APIKey = os.Getenv("HL_API_KEY")
	cfg.APISecret = os.Getenv("HL_API_SECRET")

	if err := loadStrategies(&cfg); err != nil {
		return cfg, err
	}
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func loadStrategies(cfg *Config) error {
	data, err := os.ReadFile(cfg.StrategiesPath)
	if os.IsNotExist(err) {
		// No file means the stock simple_ma setup on every symbol.
		cfg.Strategies = []StrategySpec{{
			Kind:    string(strategy.KindSimpleMA),
			Symbols: cfg.Symbols,
			Params:  strategy.DefaultParams(strategy.KindSimpleMA),
		}}
		cfg.Risk = defaultRisk()
		return nil
	}
	if err != nil {
		return fmt.Errorf("read strategies file: %w", err)
	}

	var f strategiesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse strategies file: %w", err)
	}
	for i := range f.Strategies {
		if len(f.Strategies[i].Symbols) == 0 {
			f.Strategies[i].Symbols = cfg.Symbols
		}
	}
	cfg.Strategies = f.Strategies
	cfg.Risk = f.Risk
	if cfg.Risk == (RiskConfig{}) {
		cfg.Risk = defaultRisk()
	}
	if cfg.Risk.MinNotionalUSD <= 0 {
		cfg.Risk.MinNotionalUSD = 10
	}
	return nil
}

func defaultRisk() RiskConfig {
	return RiskConfig{
		MaxLeverage:     3,
		MaxPositionUSD:  5000,
		MaxDailyLossUSD: 100,
		MaxDrawdownPct:  10,
		MinNotionalUSD:  10,
	}
}

func splitSymbols(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, strings.ToUpper(p))
		}
	}
	return out
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func validate(cfg Config) error {
	if cfg.Mode != ModePaper && cfg.Mode != ModeLive {
		return fmt.Errorf("invalid mode: %s", cfg.Mode)
	}
	if cfg.Mode == ModeLive && (cfg.APIKey == "" || cfg.APISecret == "") {
		return fmt.Errorf("HL_API_KEY and HL_API_SECRET are required in live mode")
	}
	if len(cfg.Symbols) == 0 {
		return fmt.Errorf("at least one symbol is required")
	}
	switch cfg.Timeframe {
	case "1m", "5m", "15m", "1h", "4h", "1d":
	default:
		return fmt.Errorf("invalid timeframe: %s", cfg.Timeframe)
	}
	if cfg.CandleHistory <= 1 {
		return fmt.Errorf("candle-history must be > 1")
	}
	if cfg.ReconcileInterval <= 0 {
		return fmt.Errorf("reconcile-interval must be > 0")
	}
	if cfg.RateLimitRPS <= 0 {
		return fmt.Errorf("rate-limit-rps must be > 0")
	}
	if len(cfg.Strategies) == 0 {
		return fmt.Errorf("at least one strategy is required")
	}
	for _, s := range cfg.Strategies {
		if _, err := strategy.ParseKind(s.Kind); err != nil {
			return err
		}
	}
	if cfg.Risk.MaxLeverage <= 0 {
		return fmt.Errorf("max_leverage must be > 0")
	}
	if cfg.Risk.MaxPositionUSD <= 0 {
		return fmt.Errorf("max_position_usd must be > 0")
	}
	return nil
}
