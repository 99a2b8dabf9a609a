package strategy

// Params carries the tunable knobs for every strategy kind. Periods are
// candle counts, never wall-clock durations. Unset fields take the kind's
// defaults via WithDefaults.
type Params struct {
	// simple_ma
	FastMAPeriod int `yaml:"fast_ma_period"`
	SlowMAPeriod int `yaml:"slow_ma_period"`

	// rsi
	RSIPeriod           int     `yaml:"rsi_period"`
	OversoldThreshold   float64 `yaml:"oversold_threshold"`
	OverboughtThreshold float64 `yaml:"overbought_threshold"`

	// bollinger_bands
	BBPeriod         int     `yaml:"bb_period"`
	StdDev           float64 `yaml:"std_dev"`
	SqueezeThreshold float64 `yaml:"squeeze_threshold"`

	// macd
	FastEMA   int `yaml:"fast_ema"`
	SlowEMA   int `yaml:"slow_ema"`
	SignalEMA int `yaml:"signal_ema"`

	// grid_trading
	GridLevels          int     `yaml:"grid_levels"`
	GridSpacingPct      float64 `yaml:"grid_spacing_pct"`
	PositionSizePerGrid float64 `yaml:"position_size_per_grid"`
	RangePeriod         int     `yaml:"range_period"`

	// breakout
	LookbackPeriod   int     `yaml:"lookback_period"`
	VolumeMultiplier float64 `yaml:"volume_multiplier"`
	ConfirmationBars int     `yaml:"breakout_confirmation_bars"`
	ATRPeriod        int     `yaml:"atr_period"`

	// common
	PositionSizeUSD   float64 `yaml:"position_size_usd"`
	MaxPositions      int     `yaml:"max_positions"`
	TakeProfitPct     float64 `yaml:"take_profit_percent"`
	StopLossPct       float64 `yaml:"stop_loss_percent"`
	EntryThreshold    float64 `yaml:"entry_threshold"`
}

// DefaultParams returns the stock parameter set for a strategy kind.
func DefaultParams(kind Kind) Params {
	return Params{}.WithDefaults(kind)
}

func (p Params) WithDefaults(kind Kind) Params {
	setInt := func(v *int, d int) {
		if *v <= 0 {
			*v = d
		}
	}
	setFloat := func(v *float64, d float64) {
		if *v <= 0 {
			*v = d
		}
	}

	switch kind {
	case KindSimpleMA:
		setInt(&p.FastMAPeriod, 10)
		setInt(&p.SlowMAPeriod, 30)
	case KindRSI:
		setInt(&p.RSIPeriod, 14)
		setFloat(&p.OversoldThreshold, 30)
		setFloat(&p.OverboughtThreshold, 70)
	case KindBollinger:
		setInt(&p.BBPeriod, 20)
		setFloat(&p.StdDev, 2)
		setFloat(&p.SqueezeThreshold, 0.02)
	case KindMACD:
		setInt(&p.FastEMA, 12)
		setInt(&p.SlowEMA, 26)
		setInt(&p.SignalEMA, 9)
	case KindGrid:
		setInt(&p.GridLevels, 10)
		setFloat(&p.GridSpacingPct, 0.5)
		setFloat(&p.PositionSizePerGrid, 50)
		setInt(&p.RangePeriod, 100)
		setInt(&p.MaxPositions, 5)
		setFloat(&p.TakeProfitPct, 2)
		setFloat(&p.StopLossPct, 5)
	case KindBreakout:
		setInt(&p.LookbackPeriod, 20)
		setFloat(&p.VolumeMultiplier, 1.5)
		setInt(&p.ConfirmationBars, 2)
		setInt(&p.ATRPeriod, 14)
		setFloat(&p.TakeProfitPct, 7)
		setFloat(&p.StopLossPct, 3)
	}

	setFloat(&p.PositionSizeUSD, 100)
	setInt(&p.MaxPositions, 3)
	setFloat(&p.TakeProfitPct, 5)
	setFloat(&p.StopLossPct, 2)
	setFloat(&p.EntryThreshold, 0.5)
	return p
}
