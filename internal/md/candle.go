package md

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInsufficientHistory = errors.New("not enough candle history")
	ErrUnorderedHistory    = errors.New("candle history out of order")
	ErrHistoryGap          = errors.New("gap in candle history")
)

// Candle is a closed fixed-interval OHLCV bar. Closed candles are immutable.
type Candle struct {
	OpenTime time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
}

// ValidateHistory checks that candles are strictly ordered by open time with
// no missing intervals. Indicator math assumes a gapless series, so callers
// must skip evaluation on error instead of feeding a broken series through.
func ValidateHistory(candles []Candle, interval time.Duration) error {
	for i := 1; i < len(candles); i++ {
		prev, cur := candles[i-1].OpenTime, candles[i].OpenTime
		if !cur.After(prev) {
			return fmt.Errorf("%w: candle %d opens %s, previous %s", ErrUnorderedHistory, i, cur, prev)
		}
		if interval > 0 && cur.Sub(prev) != interval {
			return fmt.Errorf("%w: %s between candles %d and %d, want %s", ErrHistoryGap, cur.Sub(prev), i-1, i, interval)
		}
	}
	return nil
}

func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

func Highs(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.High
	}
	return out
}

func Lows(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Low
	}
	return out
}

func Volumes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Volume
	}
	return out
}

// ParseTimeframe maps the exchange timeframe labels to durations.
func ParseTimeframe(tf string) (time.Duration, error) {
	switch tf {
	case "1m":
		return time.Minute, nil
	case "5m":
		return 5 * time.Minute, nil
	case "15m":
		return 15 * time.Minute, nil
	case "1h":
		return time.Hour, nil
	case "4h":
		return 4 * time.Hour, nil
	case "1d":
		return 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("unsupported timeframe: %s", tf)
	}
}
