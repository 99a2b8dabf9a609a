package strategy

import (
	"hlbot/internal/indicator"
	"hlbot/internal/md"
)

// SimpleMA trades fast/slow SMA crossovers: golden cross enters long, death
// cross exits.
type SimpleMA struct {
	p Params
}

func (s *SimpleMA) Lookback() int {
	return s.p.SlowMAPeriod + 1
}

func (s *SimpleMA) Evaluate(candles []md.Candle, pos PositionView) (Signal, error) {
	if len(candles) < s.Lookback() {
		return Signal{}, md.ErrInsufficientHistory
	}
	closes := md.Closes(candles)
	fast := indicator.SMA(closes, s.p.FastMAPeriod)
	slow := indicator.SMA(closes, s.p.SlowMAPeriod)

	i := len(closes) - 1
	sig := Signal{
		Direction:   Flat,
		Reason:      "no_crossover",
		StrategyID:  string(KindSimpleMA),
		EvaluatedAt: candles[i].OpenTime,
	}

	if fast[i-1] <= slow[i-1] && fast[i] > slow[i] {
		sig.Direction = Long
		sig.Strength = 1.0
		sig.Reason = "golden_cross"
	} else if fast[i-1] >= slow[i-1] && fast[i] < slow[i] {
		sig.Direction = Short
		sig.Strength = 0.8
		sig.Reason = "death_cross"
	}
	return sig, nil
}
