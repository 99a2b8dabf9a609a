package strategy

import (
	"hlbot/internal/indicator"
	"hlbot/internal/md"
)

// Breakout waits for a close above the recent resistance (or below support)
// on elevated volume, then demands the move hold for ConfirmationBars candles
// before signaling. An ATR-based stop closes longs that give the move back.
type Breakout struct {
	p Params

	pendingDir  Direction
	pendingBars int
	entryPrice  float64
}

func NewBreakout(p Params) *Breakout {
	return &Breakout{p: p}
}

func (s *Breakout) Lookback() int {
	n := s.p.LookbackPeriod + s.p.ConfirmationBars + 1
	if s.p.ATRPeriod+1 > n {
		n = s.p.ATRPeriod + 1
	}
	return n
}

func (s *Breakout) Evaluate(candles []md.Candle, pos PositionView) (Signal, error) {
	if len(candles) < s.Lookback() {
		return Signal{}, md.ErrInsufficientHistory
	}

	i := len(candles) - 1
	sig := Signal{
		Direction:   Flat,
		Reason:      "no_breakout",
		StrategyID:  string(KindBreakout),
		EvaluatedAt: candles[i].OpenTime,
	}

	highs := md.Highs(candles)
	lows := md.Lows(candles)
	closes := md.Closes(candles)
	vols := md.Volumes(candles)

	atr := indicator.ATR(candles, s.p.ATRPeriod)
	curATR := atr[i]

	// ATR trailing stop for an existing long.
	if pos.HasLong() && pos.EntryPrice > 0 && curATR > 0 &&
		closes[i] < pos.EntryPrice-2*curATR {
		s.reset()
		sig.Direction = Short
		sig.Strength = 1.0
		sig.Reason = "atr_stop"
		return sig, nil
	}

	// Resistance and support over the lookback window ending before the
	// candidate breakout bar, so the breakout bar itself cannot raise the bar
	// it has to clear.
	ref := i - s.pendingBars - 1
	if s.pendingDir == Flat {
		ref = i - 1
	}
	if ref < s.p.LookbackPeriod-1 {
		return sig, nil
	}
	resistance := windowMax(highs[:ref+1], s.p.LookbackPeriod)
	support := windowMin(lows[:ref+1], s.p.LookbackPeriod)

	volStart := i - 19
	if volStart < 0 {
		volStart = 0
	}
	avgVol := mean(vols[volStart : i+1])
	volumeOK := avgVol > 0 && vols[i] > avgVol*s.p.VolumeMultiplier

	switch s.pendingDir {
	case Long:
		if closes[i] > resistance {
			s.pendingBars++
			if s.pendingBars >= s.p.ConfirmationBars {
				strong := volumeOK && closes[i] > resistance*1.01
				s.reset()
				sig.Direction = Long
				if strong {
					sig.Strength = 0.85
					sig.Reason = "strong_breakout"
				} else {
					sig.Strength = 0.7
					sig.Reason = "breakout_confirmed"
				}
				return sig, nil
			}
			sig.Reason = "breakout_pending"
			return sig, nil
		}
		s.reset()
	case Short:
		if closes[i] < support {
			s.pendingBars++
			if s.pendingBars >= s.p.ConfirmationBars {
				strong := volumeOK && closes[i] < support*0.99
				s.reset()
				sig.Direction = Short
				if strong {
					sig.Strength = 0.9
					sig.Reason = "strong_breakdown"
				} else {
					sig.Strength = 0.75
					sig.Reason = "breakdown_confirmed"
				}
				return sig, nil
			}
			sig.Reason = "breakdown_pending"
			return sig, nil
		}
		s.reset()
	}

	// Fresh breakout candidates start the confirmation count.
	if closes[i] > resistance && volumeOK {
		s.pendingDir = Long
		s.pendingBars = 1
		if s.p.ConfirmationBars <= 1 {
			s.reset()
			sig.Direction = Long
			sig.Strength = 0.7
			sig.Reason = "breakout_confirmed"
			return sig, nil
		}
		sig.Reason = "breakout_pending"
		return sig, nil
	}
	if closes[i] < support && volumeOK && pos.HasLong() {
		s.pendingDir = Short
		s.pendingBars = 1
		if s.p.ConfirmationBars <= 1 {
			s.reset()
			sig.Direction = Short
			sig.Strength = 0.75
			sig.Reason = "breakdown_confirmed"
			return sig, nil
		}
		sig.Reason = "breakdown_pending"
		return sig, nil
	}
	return sig, nil
}

func (s *Breakout) reset() {
	s.pendingDir = Flat
	s.pendingBars = 0
}

func windowMax(vals []float64, n int) float64 {
	if n > len(vals) {
		n = len(vals)
	}
	max := vals[len(vals)-n]
	for _, v := range vals[len(vals)-n:] {
		if v > max {
			max = v
		}
	}
	return max
}

func windowMin(vals []float64, n int) float64 {
	if n > len(vals) {
		n = len(vals)
	}
	min := vals[len(vals)-n]
	for _, v := range vals[len(vals)-n:] {
		if v < min {
			min = v
		}
	}
	return min
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}
