package strategy

import (
	"math"

	"hlbot/internal/indicator"
	"hlbot/internal/md"
)

// Bollinger is a mean-reversion strategy around SMA bands: entries on lower
// band crosses (skipped during a squeeze), exits on upper band crosses. A
// squeeze followed by band-width expansion triggers a breakout entry.
type Bollinger struct {
	p Params
}

func (s *Bollinger) Lookback() int {
	return s.p.BBPeriod + 5
}

func (s *Bollinger) Evaluate(candles []md.Candle, pos PositionView) (Signal, error) {
	if len(candles) < s.Lookback() {
		return Signal{}, md.ErrInsufficientHistory
	}
	closes := md.Closes(candles)
	bands := indicator.Bollinger(closes, s.p.BBPeriod, s.p.StdDev)

	i := len(closes) - 1
	close, prevClose := closes[i], closes[i-1]
	sig := Signal{
		Direction:   Flat,
		Reason:      "within_bands",
		StrategyID:  string(KindBollinger),
		EvaluatedAt: candles[i].OpenTime,
	}

	switch {
	case prevClose >= bands.Lower[i-1] && close < bands.Lower[i] && bands.Width[i] > s.p.SqueezeThreshold:
		sig.Direction = Long
		sig.Strength = 0.75
		sig.Reason = "lower_band_cross"
	case close < bands.Lower[i]*0.995:
		sig.Direction = Long
		sig.Strength = 0.85
		sig.Reason = "below_lower_band"
	case prevClose <= bands.Upper[i-1] && close > bands.Upper[i]:
		sig.Direction = Short
		sig.Strength = 0.8
		sig.Reason = "upper_band_cross"
	case pos.HasLong() && close > bands.Mid[i] && pricePosition(close, bands, i) > 0.8:
		sig.Direction = Short
		sig.Strength = 0.6
		sig.Reason = "upper_band_ride"
	case bands.Width[i] < s.p.SqueezeThreshold && expanding(bands.Width, i) && close > prevClose:
		sig.Direction = Long
		sig.Strength = 0.7
		sig.Reason = "squeeze_breakout"
	}
	return sig, nil
}

// pricePosition locates close inside the band: 0 at the lower band, 1 at the
// upper.
func pricePosition(close float64, bands indicator.Bands, i int) float64 {
	span := bands.Upper[i] - bands.Lower[i]
	if span == 0 || math.IsNaN(span) {
		return 0.5
	}
	return (close - bands.Lower[i]) / span
}

// expanding reports band width growing past 1.5x its recent mean.
func expanding(width []float64, i int) bool {
	sum, n := 0.0, 0
	for j := i - 4; j <= i; j++ {
		if j >= 0 && !math.IsNaN(width[j]) {
			sum += width[j]
			n++
		}
	}
	if n == 0 {
		return false
	}
	return width[i] > (sum/float64(n))*1.5
}
