package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"hlbot/internal/strategy"
)

func validConfig() Config {
	return Config{
		Mode:              ModePaper,
		Symbols:           []string{"BTC"},
		Timeframe:         "1m",
		CandleHistory:     200,
		ReconcileInterval: 10 * time.Second,
		RateLimitRPS:      10,
		Strategies: []StrategySpec{{
			Kind:    string(strategy.KindSimpleMA),
			Symbols: []string{"BTC"},
		}},
		Risk: defaultRisk(),
	}
}

func TestValidateAcceptsValidConfig(t *testing.T) {
	if err := validate(validConfig()); err != nil {
		t.Fatalf("expected config to be valid, got %v", err)
	}
}

func TestValidateRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad mode", func(c *Config) { c.Mode = "backtest" }},
		{"no symbols", func(c *Config) { c.Symbols = nil }},
		{"bad timeframe", func(c *Config) { c.Timeframe = "2m" }},
		{"bad history", func(c *Config) { c.CandleHistory = 1 }},
		{"bad reconcile interval", func(c *Config) { c.ReconcileInterval = 0 }},
		{"bad strategy kind", func(c *Config) { c.Strategies[0].Kind = "momentum" }},
		{"no strategies", func(c *Config) { c.Strategies = nil }},
		{"bad leverage", func(c *Config) { c.Risk.MaxLeverage = 0 }},
		{"live without keys", func(c *Config) { c.Mode = ModeLive }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			if err := validate(cfg); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestLoadStrategiesFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "strategies.yaml")
	contents := `
strategies:
  - kind: rsi
    symbols: [BTC]
    params:
      rsi_period: 7
      oversold_threshold: 25
  - kind: grid_trading
risk:
  max_leverage: 5
  max_position_usd: 2000
`
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write strategies file: %v", err)
	}

	cfg := Config{Symbols: []string{"BTC", "ETH"}, StrategiesPath: path}
	if err := loadStrategies(&cfg); err != nil {
		t.Fatalf("load strategies: %v", err)
	}

	if len(cfg.Strategies) != 2 {
		t.Fatalf("expected 2 strategies, got %d", len(cfg.Strategies))
	}
	if cfg.Strategies[0].Params.RSIPeriod != 7 {
		t.Fatalf("expected rsi_period 7, got %d", cfg.Strategies[0].Params.RSIPeriod)
	}
	if got := cfg.Strategies[1].Symbols; len(got) != 2 {
		t.Fatalf("expected default symbols for grid, got %v", got)
	}
	if cfg.Risk.MaxLeverage != 5 {
		t.Fatalf("expected max_leverage 5, got %v", cfg.Risk.MaxLeverage)
	}
	if cfg.Risk.MinNotionalUSD != 10 {
		t.Fatalf("expected min notional default 10, got %v", cfg.Risk.MinNotionalUSD)
	}
}

func TestLoadStrategiesMissingFileUsesDefaults(t *testing.T) {
	cfg := Config{
		Symbols:        []string{"BTC"},
		StrategiesPath: filepath.Join(t.TempDir(), "absent.yaml"),
	}
	if err := loadStrategies(&cfg); err != nil {
		t.Fatalf("load strategies: %v", err)
	}
	if len(cfg.Strategies) != 1 || cfg.Strategies[0].Kind != string(strategy.KindSimpleMA) {
		t.Fatalf("expected simple_ma fallback, got %+v", cfg.Strategies)
	}
	if cfg.Risk.MaxDailyLossUSD != 100 {
		t.Fatalf("expected default risk limits, got %+v", cfg.Risk)
	}
}
