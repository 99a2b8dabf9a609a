package strategy

import (
	"math"

	"hlbot/internal/indicator"
	"hlbot/internal/md"
)

const divergenceWindow = 20

// MACD trades signal-line crossovers with histogram divergence raising or
// lowering conviction. Divergence detection only looks at the trailing
// window, never ahead.
type MACD struct {
	p Params
}

func (s *MACD) Lookback() int {
	return s.p.SlowEMA + s.p.SignalEMA + 1
}

func (s *MACD) Evaluate(candles []md.Candle, pos PositionView) (Signal, error) {
	if len(candles) < s.Lookback() {
		return Signal{}, md.ErrInsufficientHistory
	}
	closes := md.Closes(candles)
	m := indicator.MACD(closes, s.p.FastEMA, s.p.SlowEMA, s.p.SignalEMA)

	i := len(closes) - 1
	line, sigLine, hist := m.Line[i], m.Signal[i], m.Histogram[i]
	prevLine, prevSig, prevHist := m.Line[i-1], m.Signal[i-1], m.Histogram[i-1]
	if math.IsNaN(sigLine) || math.IsNaN(prevSig) {
		return Signal{}, md.ErrInsufficientHistory
	}

	bullishDiv, bearishDiv := detectDivergence(candles, m.Histogram)
	histIncreasing := hist > prevHist

	sig := Signal{
		Direction:   Flat,
		Reason:      "macd_neutral",
		StrategyID:  string(KindMACD),
		EvaluatedAt: candles[i].OpenTime,
	}

	switch {
	case prevLine <= prevSig && line > sigLine && line < 0:
		sig.Direction = Long
		sig.Strength = 0.7
		sig.Reason = "macd_bullish_cross"
		if bullishDiv {
			sig.Strength = 0.85
			sig.Reason = "macd_bullish_cross_divergence"
		}
	case !pos.HasLong() && bullishDiv && histIncreasing:
		sig.Direction = Long
		sig.Strength = 0.75
		sig.Reason = "macd_bullish_divergence"
	case prevLine >= prevSig && line < sigLine:
		sig.Direction = Short
		sig.Strength = 0.75
		sig.Reason = "macd_bearish_cross"
		if bearishDiv {
			sig.Strength = 0.9
			sig.Reason = "macd_bearish_cross_divergence"
		}
	case pos.HasLong() && hist < 0 && !histIncreasing:
		sig.Direction = Short
		sig.Strength = 0.6
		sig.Reason = "macd_histogram_fade"
	}
	return sig, nil
}

// detectDivergence compares the two deepest lows (highest highs) of the
// trailing window against the histogram at those candles. Price making a
// lower low while the histogram makes a higher low is bullish; the mirror is
// bearish.
func detectDivergence(candles []md.Candle, hist []float64) (bullish, bearish bool) {
	start := len(candles) - divergenceWindow
	if start < 0 {
		start = 0
	}

	lo1, lo2 := twoExtremes(md.Lows(candles), start, false)
	if lo1 >= 0 && lo2 >= 0 && !math.IsNaN(hist[lo1]) && !math.IsNaN(hist[lo2]) {
		if candles[lo2].Low < candles[lo1].Low && hist[lo2] > hist[lo1] {
			bullish = true
		}
	}

	hi1, hi2 := twoExtremes(md.Highs(candles), start, true)
	if hi1 >= 0 && hi2 >= 0 && !math.IsNaN(hist[hi1]) && !math.IsNaN(hist[hi2]) {
		if candles[hi2].High > candles[hi1].High && hist[hi2] < hist[hi1] {
			bearish = true
		}
	}
	return bullish, bearish
}

// twoExtremes returns the indices of the two most extreme values in
// values[start:], ordered by index.
func twoExtremes(values []float64, start int, findMax bool) (int, int) {
	first, second := -1, -1
	better := func(a, b float64) bool {
		if findMax {
			return a > b
		}
		return a < b
	}
	for i := start; i < len(values); i++ {
		switch {
		case first < 0 || better(values[i], values[first]):
			second = first
			first = i
		case second < 0 || better(values[i], values[second]):
			second = i
		}
	}
	if first < 0 || second < 0 {
		return -1, -1
	}
	if first > second {
		first, second = second, first
	}
	return first, second
}
