package strategy

import (
	"hlbot/internal/indicator"
	"hlbot/internal/md"
)

// RSI enters long the candle RSI first crosses below the oversold threshold
// and exits when it crosses back above overbought. While long, a near-
// overbought reading emits a weaker early-exit signal.
type RSI struct {
	p Params
}

func (s *RSI) Lookback() int {
	return s.p.RSIPeriod + 2
}

func (s *RSI) Evaluate(candles []md.Candle, pos PositionView) (Signal, error) {
	if len(candles) < s.Lookback() {
		return Signal{}, md.ErrInsufficientHistory
	}
	rsi := indicator.RSI(md.Closes(candles), s.p.RSIPeriod)

	i := len(candles) - 1
	cur, prev := rsi[i], rsi[i-1]
	sig := Signal{
		Direction:   Flat,
		Reason:      "rsi_neutral",
		StrategyID:  string(KindRSI),
		EvaluatedAt: candles[i].OpenTime,
	}

	switch {
	case prev >= s.p.OversoldThreshold && cur < s.p.OversoldThreshold:
		sig.Direction = Long
		sig.Strength = 0.8
		sig.Reason = "rsi_oversold_cross"
	case prev <= s.p.OverboughtThreshold && cur > s.p.OverboughtThreshold:
		sig.Direction = Short
		sig.Strength = 0.8
		sig.Reason = "rsi_overbought_cross"
	case pos.HasLong() && cur > s.p.OverboughtThreshold-5:
		sig.Direction = Short
		sig.Strength = 0.6
		sig.Reason = "rsi_near_overbought"
	}
	return sig, nil
}
