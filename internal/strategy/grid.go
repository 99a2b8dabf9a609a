package strategy

import (
	"fmt"
	"math"
	"time"

	"hlbot/internal/md"
)

const gridRecalcBars = 20

// Grid places buy levels below and sell levels above the current price while
// the market stays range-bound. Filled levels are remembered so each level
// trades once per grid; the grid rebuilds after gridRecalcBars new candles.
type Grid struct {
	p               Params
	levels          []gridLevel
	filled          map[string]bool
	lastKey         string
	lastSeen        time.Time
	barsSinceRecalc int
}

type gridLevel struct {
	side  Side
	price float64
}

func NewGrid(p Params) *Grid {
	return &Grid{p: p, filled: map[string]bool{}}
}

func (s *Grid) Lookback() int {
	return s.p.RangePeriod
}

func (s *Grid) Evaluate(candles []md.Candle, pos PositionView) (Signal, error) {
	if len(candles) < s.Lookback() {
		return Signal{}, md.ErrInsufficientHistory
	}

	i := len(candles) - 1
	sig := Signal{
		Direction:   Flat,
		Reason:      "no_grid_level",
		StrategyID:  string(KindGrid),
		EvaluatedAt: candles[i].OpenTime,
	}

	high, low, volatility := priceRange(candles)
	close := candles[i].Close
	rangePct := (high - low) / close * 100
	if rangePct >= 10 || volatility >= 0.15 {
		sig.Reason = "not_ranging"
		return sig, nil
	}

	if candles[i].OpenTime.After(s.lastSeen) {
		s.lastSeen = candles[i].OpenTime
		s.barsSinceRecalc++
	}
	if s.levels == nil || s.barsSinceRecalc > gridRecalcBars {
		s.rebuild(close, high, low)
	}

	s.lastKey = ""
	for _, lvl := range s.levels {
		key := fmt.Sprintf("%s_%.2f", lvl.side, lvl.price)
		if s.filled[key] {
			continue
		}
		if lvl.side == Buy && close <= lvl.price*1.001 {
			s.consume(key)
			sig.Direction = Long
			sig.Strength = 0.6
			sig.Reason = "grid_buy_level"
			return sig, nil
		}
		if lvl.side == Sell && pos.HasLong() && close >= lvl.price*0.999 {
			s.consume(key)
			sig.Direction = Short
			sig.Strength = 0.6
			sig.Reason = "grid_sell_level"
			return sig, nil
		}
	}
	return sig, nil
}

func (s *Grid) consume(key string) {
	s.filled[key] = true
	s.lastKey = key
}

// AbortEntry releases the most recently consumed level so it can trigger
// again when the order it signaled was never placed.
func (s *Grid) AbortEntry() {
	if s.lastKey != "" {
		delete(s.filled, s.lastKey)
		s.lastKey = ""
	}
}

func (s *Grid) rebuild(close, high, low float64) {
	interval := close * s.p.GridSpacingPct / 100
	levels := make([]gridLevel, 0, s.p.GridLevels)
	for i := 0; i < s.p.GridLevels/2; i++ {
		buy := close - interval*float64(i+1)
		sell := close + interval*float64(i+1)
		if buy > low*0.98 {
			levels = append(levels, gridLevel{side: Buy, price: buy})
		}
		if sell < high*1.02 {
			levels = append(levels, gridLevel{side: Sell, price: sell})
		}
	}
	s.levels = levels
	s.filled = map[string]bool{}
	s.barsSinceRecalc = 0
}

// priceRange reports the window high/low and the stddev of close-to-close
// returns scaled by sqrt(n) as the volatility proxy.
func priceRange(candles []md.Candle) (high, low, volatility float64) {
	high, low = candles[0].High, candles[0].Low
	for _, c := range candles {
		if c.High > high {
			high = c.High
		}
		if c.Low < low {
			low = c.Low
		}
	}

	returns := make([]float64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		if candles[i-1].Close != 0 {
			returns = append(returns, candles[i].Close/candles[i-1].Close-1)
		}
	}
	if len(returns) == 0 {
		return high, low, 0
	}
	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))
	variance := 0.0
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns))
	volatility = math.Sqrt(variance) * math.Sqrt(float64(len(candles)))
	return high, low, volatility
}
