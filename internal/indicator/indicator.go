// Package indicator computes technical indicator series over candle history.
//
// Every function is pure: identical input always yields an identical series,
// and values already computed never change when new candles arrive. Series
// are aligned with the input; positions before an indicator's warm-up period
// hold NaN.
package indicator

import (
	"math"

	"hlbot/internal/md"
)

// SMA returns the simple moving average of values over period.
func SMA(values []float64, period int) []float64 {
	out := nanSeries(len(values))
	if period <= 0 || len(values) < period {
		return out
	}
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// EMA returns the exponential moving average with smoothing 2/(period+1).
// The first defined value is seeded with the SMA of the first period.
func EMA(values []float64, period int) []float64 {
	out := nanSeries(len(values))
	if period <= 0 || len(values) < period {
		return out
	}
	seed := 0.0
	for _, v := range values[:period] {
		seed += v
	}
	seed /= float64(period)
	out[period-1] = seed

	alpha := 2.0 / (float64(period) + 1)
	prev := seed
	for i := period; i < len(values); i++ {
		prev = (values[i]-prev)*alpha + prev
		out[i] = prev
	}
	return out
}

// RSI returns the relative strength index using Wilder smoothing: the first
// average gain/loss is a simple mean over period, subsequent averages decay
// with weight (period-1)/period.
func RSI(closes []float64, period int) []float64 {
	out := nanSeries(len(closes))
	if period <= 0 || len(closes) < period+1 {
		return out
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			avgGain += delta
		} else {
			avgLoss += -delta
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period] = rsiValue(avgGain, avgLoss)

	for i := period + 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// Bands holds Bollinger band series.
type Bands struct {
	Mid   []float64
	Upper []float64
	Lower []float64
	Width []float64 // (upper-lower)/mid
}

// Bollinger returns bands at stdDev standard deviations around the SMA.
func Bollinger(closes []float64, period int, stdDev float64) Bands {
	mid := SMA(closes, period)
	upper := nanSeries(len(closes))
	lower := nanSeries(len(closes))
	width := nanSeries(len(closes))
	for i := period - 1; i < len(closes); i++ {
		variance := 0.0
		for _, v := range closes[i-period+1 : i+1] {
			d := v - mid[i]
			variance += d * d
		}
		sd := math.Sqrt(variance / float64(period))
		upper[i] = mid[i] + sd*stdDev
		lower[i] = mid[i] - sd*stdDev
		if mid[i] != 0 {
			width[i] = (upper[i] - lower[i]) / mid[i]
		}
	}
	return Bands{Mid: mid, Upper: upper, Lower: lower, Width: width}
}

// MACDSeries holds the MACD line, its signal line and the histogram.
type MACDSeries struct {
	Line      []float64
	Signal    []float64
	Histogram []float64
}

// MACD returns EMA(fast)-EMA(slow) with an EMA(signal) of the MACD line.
func MACD(closes []float64, fast, slow, signal int) MACDSeries {
	fastEMA := EMA(closes, fast)
	slowEMA := EMA(closes, slow)
	line := nanSeries(len(closes))
	for i := range closes {
		line[i] = fastEMA[i] - slowEMA[i]
	}

	// Signal EMA runs over the defined region of the MACD line only.
	sig := nanSeries(len(closes))
	hist := nanSeries(len(closes))
	start := firstDefined(line)
	if start >= 0 && len(line)-start >= signal {
		partial := EMA(line[start:], signal)
		for i, v := range partial {
			sig[start+i] = v
			if !math.IsNaN(v) {
				hist[start+i] = line[start+i] - v
			}
		}
	}
	return MACDSeries{Line: line, Signal: sig, Histogram: hist}
}

// ATR returns the average true range over period, a simple mean of the true
// range rather than Wilder smoothing.
func ATR(candles []md.Candle, period int) []float64 {
	out := nanSeries(len(candles))
	if period <= 0 || len(candles) < period+1 {
		return out
	}
	tr := make([]float64, len(candles))
	tr[0] = candles[0].High - candles[0].Low
	for i := 1; i < len(candles); i++ {
		c := candles[i]
		prevClose := candles[i-1].Close
		tr[i] = math.Max(c.High-c.Low, math.Max(math.Abs(c.High-prevClose), math.Abs(c.Low-prevClose)))
	}
	sma := SMA(tr, period)
	copy(out, sma)
	return out
}

// RollingMax returns the max of the trailing period values at each position.
func RollingMax(values []float64, period int) []float64 {
	out := nanSeries(len(values))
	for i := period - 1; i < len(values); i++ {
		max := values[i-period+1]
		for _, v := range values[i-period+2 : i+1] {
			if v > max {
				max = v
			}
		}
		out[i] = max
	}
	return out
}

// RollingMin returns the min of the trailing period values at each position.
func RollingMin(values []float64, period int) []float64 {
	out := nanSeries(len(values))
	for i := period - 1; i < len(values); i++ {
		min := values[i-period+1]
		for _, v := range values[i-period+2 : i+1] {
			if v < min {
				min = v
			}
		}
		out[i] = min
	}
	return out
}

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

func firstDefined(values []float64) int {
	for i, v := range values {
		if !math.IsNaN(v) {
			return i
		}
	}
	return -1
}
