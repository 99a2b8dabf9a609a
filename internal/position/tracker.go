// Package position tracks net exposure per symbol from confirmed fills and
// keeps realized PnL in daily UTC buckets for the risk gates.
package position

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"hlbot/internal/exchange"
	"hlbot/internal/strategy"
)

type Position struct {
	Symbol     string
	NetSize    decimal.Decimal
	EntryPrice decimal.Decimal
}

type Tracker struct {
	mu        sync.Mutex
	positions map[string]Position
	dailyPnL  map[string]decimal.Decimal // yyyy-mm-dd (UTC) -> realized
	peak      decimal.Decimal
}

func NewTracker() *Tracker {
	return &Tracker{
		positions: map[string]Position{},
		dailyPnL:  map[string]decimal.Decimal{},
	}
}

func dayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// ApplyFill books a fill into the symbol's position. Fills that extend the
// position move the weighted entry price; fills that reduce it realize PnL
// into the fill day's bucket.
func (t *Tracker) ApplyFill(f exchange.Fill) {
	t.mu.Lock()
	defer t.mu.Unlock()

	pos := t.positions[f.Symbol]
	pos.Symbol = f.Symbol

	signed := f.Size
	if f.Side == strategy.Sell {
		signed = f.Size.Neg()
	}

	switch {
	case pos.NetSize.IsZero() || pos.NetSize.Sign() == signed.Sign():
		total := pos.NetSize.Add(signed)
		if !total.IsZero() {
			weighted := pos.EntryPrice.Mul(pos.NetSize.Abs()).Add(f.Price.Mul(f.Size))
			pos.EntryPrice = weighted.Div(total.Abs())
		}
		pos.NetSize = total
	default:
		closed := decimal.Min(f.Size, pos.NetSize.Abs())
		pnl := f.Price.Sub(pos.EntryPrice).Mul(closed)
		if pos.NetSize.Sign() < 0 {
			pnl = pnl.Neg()
		}
		pnl = pnl.Sub(f.Fee)
		key := dayKey(f.Time)
		t.dailyPnL[key] = t.dailyPnL[key].Add(pnl)

		pos.NetSize = pos.NetSize.Add(signed)
		if pos.NetSize.IsZero() {
			pos.EntryPrice = decimal.Zero
		} else if pos.NetSize.Sign() != signed.Neg().Sign() {
			// Flipped through zero: the excess opens a new position at the
			// fill price.
			pos.EntryPrice = f.Price
		}
	}

	t.positions[f.Symbol] = pos
}

// Reconcile overwrites local positions with the exchange snapshot. Exchange
// truth wins; local bookkeeping only bridges the gaps between sweeps.
func (t *Tracker) Reconcile(snapshots []exchange.PositionSnapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.positions = map[string]Position{}
	for _, s := range snapshots {
		t.positions[s.Symbol] = Position{
			Symbol:     s.Symbol,
			NetSize:    s.NetSize,
			EntryPrice: s.EntryPrice,
		}
	}
}

func (t *Tracker) Get(symbol string) Position {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.positions[symbol]
}

// View converts a tracked position into what strategies are allowed to see.
func (t *Tracker) View(symbol string) strategy.PositionView {
	p := t.Get(symbol)
	size, _ := p.NetSize.Float64()
	entry, _ := p.EntryPrice.Float64()
	return strategy.PositionView{NetSize: size, EntryPrice: entry}
}

// UnrealizedPnL marks the symbol's position against price.
func (t *Tracker) UnrealizedPnL(symbol string, mark decimal.Decimal) decimal.Decimal {
	p := t.Get(symbol)
	if p.NetSize.IsZero() {
		return decimal.Zero
	}
	return mark.Sub(p.EntryPrice).Mul(p.NetSize)
}

// RealizedToday returns the realized PnL booked since midnight UTC.
func (t *Tracker) RealizedToday(now time.Time) decimal.Decimal {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dailyPnL[dayKey(now)]
}

// ObserveEquity tracks peak equity for drawdown checks. The peak resets with
// the process; persistence across restarts is the checkpoint's job.
func (t *Tracker) ObserveEquity(equity decimal.Decimal) decimal.Decimal {
	t.mu.Lock()
	defer t.mu.Unlock()
	if equity.GreaterThan(t.peak) {
		t.peak = equity
	}
	return t.peak
}

// GrossNotional is the symbol's absolute exposure at price.
func (t *Tracker) GrossNotional(symbol string, mark decimal.Decimal) decimal.Decimal {
	p := t.Get(symbol)
	return p.NetSize.Abs().Mul(mark)
}
