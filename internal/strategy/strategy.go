package strategy

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"hlbot/internal/md"
)

type Direction string

const (
	Long  Direction = "LONG"
	Short Direction = "SHORT"
	Flat  Direction = "FLAT"
)

type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// Signal is a directional opinion derived from indicator state. Identical
// candle history and position view always produce an identical Signal.
type Signal struct {
	Direction   Direction
	Strength    float64 // [0,1]
	Reason      string
	StrategyID  string
	EvaluatedAt time.Time // open time of the newest candle, not wall clock
}

// PositionView is the slice of position state strategies are allowed to see.
type PositionView struct {
	NetSize    float64
	EntryPrice float64
}

func (p PositionView) HasLong() bool { return p.NetSize > 0 }

// Intent is a request to change position, produced by the state machine and
// not yet risk-checked.
type Intent struct {
	Symbol            string
	Side              Side
	RequestedNotional decimal.Decimal
	Reason            string
	StrategyID        string
	CreatedAt         time.Time
	ReduceOnly        bool
}

// IsExit reports whether the intent only reduces existing exposure. Exits
// stay permitted when daily-loss or drawdown gates close new entries.
func (i Intent) IsExit() bool { return i.ReduceOnly }

// Evaluator computes a Signal from candle history. Implementations must be
// deterministic; grid and breakout additionally keep leveled sub-state that
// advances only when a newer candle arrives.
type Evaluator interface {
	Evaluate(candles []md.Candle, pos PositionView) (Signal, error)
	Lookback() int
}

// EntryAborter is implemented by evaluators that reserve internal state when
// they emit a signal. AbortEntry releases the reservation when the resulting
// order is rejected or never placed, so the level can trigger again.
type EntryAborter interface {
	AbortEntry()
}

type Kind string

const (
	KindSimpleMA  Kind = "simple_ma"
	KindRSI       Kind = "rsi"
	KindBollinger Kind = "bollinger_bands"
	KindMACD      Kind = "macd"
	KindGrid      Kind = "grid_trading"
	KindBreakout  Kind = "breakout"
)

var Kinds = []Kind{KindSimpleMA, KindRSI, KindBollinger, KindMACD, KindGrid, KindBreakout}

func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if s == string(k) {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown strategy: %s", s)
}

// New builds the evaluator for kind with params (zero fields filled from the
// kind's defaults).
func New(kind Kind, params Params) (Evaluator, error) {
	p := params.WithDefaults(kind)
	switch kind {
	case KindSimpleMA:
		return &SimpleMA{p: p}, nil
	case KindRSI:
		return &RSI{p: p}, nil
	case KindBollinger:
		return &Bollinger{p: p}, nil
	case KindMACD:
		return &MACD{p: p}, nil
	case KindGrid:
		return NewGrid(p), nil
	case KindBreakout:
		return NewBreakout(p), nil
	default:
		return nil, fmt.Errorf("unknown strategy: %s", kind)
	}
}
