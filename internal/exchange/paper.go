package exchange

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"hlbot/internal/md"
	"hlbot/internal/strategy"
)

const paperWindowSize = 1000

// Paper is an in-process venue for dry runs. Market orders fill immediately
// at the newest close; limit orders rest until a pushed candle crosses them.
type Paper struct {
	mu        sync.Mutex
	candles   map[string]*md.Window
	positions map[string]*PositionSnapshot
	open      map[string]OpenOrder // by exchange order id
	byClient  map[string]string    // client order id -> exchange order id
	fills     []Fill
	equity    decimal.Decimal
	seq       int
}

func NewPaper(startingEquity decimal.Decimal) *Paper {
	return &Paper{
		candles:   map[string]*md.Window{},
		positions: map[string]*PositionSnapshot{},
		open:      map[string]OpenOrder{},
		byClient:  map[string]string{},
		equity:    startingEquity,
	}
}

// Push appends a candle for symbol and fills any resting limit orders the
// candle's range crosses.
func (p *Paper) Push(symbol string, c md.Candle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	w, ok := p.candles[symbol]
	if !ok {
		w = md.NewWindow(paperWindowSize)
		p.candles[symbol] = w
	}
	if !w.Add(c) {
		return
	}

	for id, o := range p.open {
		if o.Symbol != symbol {
			continue
		}
		limit, _ := o.Price.Float64()
		crossed := (o.Side == strategy.Buy && c.Low <= limit) || (o.Side == strategy.Sell && c.High >= limit)
		if crossed {
			delete(p.open, id)
			p.fill(o.Symbol, o.ClientOrderID, id, o.Side, o.Price, o.Size, c.OpenTime)
		}
	}
	if pos, ok := p.positions[symbol]; ok {
		pos.MarkPrice = decimal.NewFromFloat(c.Close)
	}
}

func (p *Paper) Candles(ctx context.Context, symbol, timeframe string, limit int) ([]md.Candle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	w, ok := p.candles[symbol]
	if !ok {
		return nil, nil
	}
	cs := w.Values()
	if limit > 0 && len(cs) > limit {
		cs = cs[len(cs)-limit:]
	}
	return cs, nil
}

func (p *Paper) AccountState(ctx context.Context) (AccountState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	margin := decimal.Zero
	for _, pos := range p.positions {
		margin = margin.Add(pos.NetSize.Abs().Mul(pos.MarkPrice))
	}
	return AccountState{
		Equity:     p.equity,
		MarginUsed: margin,
		Available:  p.equity.Sub(margin),
	}, nil
}

func (p *Paper) SubmitOrder(ctx context.Context, req OrderRequest) (OrderAck, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if id, ok := p.byClient[req.ClientOrderID]; ok {
		return OrderAck{ExchangeOrderID: id, ClientOrderID: req.ClientOrderID, Status: "resting"}, nil
	}
	if req.Size.LessThanOrEqual(decimal.Zero) {
		return OrderAck{}, &RejectionError{Op: "submit", Reason: "invalid size"}
	}

	p.seq++
	id := fmt.Sprintf("paper-%d", p.seq)
	p.byClient[req.ClientOrderID] = id

	if req.Type == OrderTypeMarket {
		w, ok := p.candles[req.Symbol]
		if !ok {
			return OrderAck{}, &RejectionError{Op: "submit", Reason: "no market data"}
		}
		last, ok := w.Last()
		if !ok {
			return OrderAck{}, &RejectionError{Op: "submit", Reason: "no market data"}
		}
		p.fill(req.Symbol, req.ClientOrderID, id, req.Side, decimal.NewFromFloat(last.Close), req.Size, last.OpenTime)
		return OrderAck{ExchangeOrderID: id, ClientOrderID: req.ClientOrderID, Status: "filled"}, nil
	}

	p.open[id] = OpenOrder{
		ExchangeOrderID: id,
		ClientOrderID:   req.ClientOrderID,
		Symbol:          req.Symbol,
		Side:            req.Side,
		Price:           req.Price,
		Size:            req.Size,
		Status:          "open",
	}
	return OrderAck{ExchangeOrderID: id, ClientOrderID: req.ClientOrderID, Status: "open"}, nil
}

func (p *Paper) CancelOrder(ctx context.Context, symbol, exchangeOrderID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.open[exchangeOrderID]; !ok {
		return &RejectionError{Op: "cancel", Reason: "unknown order"}
	}
	delete(p.open, exchangeOrderID)
	return nil
}

func (p *Paper) OpenOrders(ctx context.Context, symbol string) ([]OpenOrder, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []OpenOrder
	for _, o := range p.open {
		if symbol == "" || o.Symbol == symbol {
			out = append(out, o)
		}
	}
	return out, nil
}

func (p *Paper) Positions(ctx context.Context) ([]PositionSnapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []PositionSnapshot
	for _, pos := range p.positions {
		if !pos.NetSize.IsZero() {
			out = append(out, *pos)
		}
	}
	return out, nil
}

func (p *Paper) Fills(ctx context.Context, symbol string, since time.Time) ([]Fill, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Fill
	for _, f := range p.fills {
		if (symbol == "" || f.Symbol == symbol) && !f.Time.Before(since) {
			out = append(out, f)
		}
	}
	return out, nil
}

// fill books the trade against the position and realizes PnL into equity on
// reducing fills. Caller holds p.mu.
func (p *Paper) fill(symbol, clientID, orderID string, side strategy.Side, price, size decimal.Decimal, at time.Time) {
	pos, ok := p.positions[symbol]
	if !ok {
		pos = &PositionSnapshot{Symbol: symbol, MarkPrice: price}
		p.positions[symbol] = pos
	}

	signed := size
	if side == strategy.Sell {
		signed = size.Neg()
	}

	switch {
	case pos.NetSize.IsZero() || pos.NetSize.Sign() == signed.Sign():
		total := pos.NetSize.Add(signed)
		if !total.IsZero() {
			weighted := pos.EntryPrice.Mul(pos.NetSize.Abs()).Add(price.Mul(size))
			pos.EntryPrice = weighted.Div(total.Abs())
		}
		pos.NetSize = total
	default:
		closed := decimal.Min(size, pos.NetSize.Abs())
		pnl := price.Sub(pos.EntryPrice).Mul(closed)
		if pos.NetSize.Sign() < 0 {
			pnl = pnl.Neg()
		}
		p.equity = p.equity.Add(pnl)
		pos.NetSize = pos.NetSize.Add(signed)
		switch {
		case pos.NetSize.IsZero():
			pos.EntryPrice = decimal.Zero
		case pos.NetSize.Sign() == signed.Sign():
			// flipped through zero, remainder opened at this fill
			pos.EntryPrice = price
		}
	}
	pos.MarkPrice = price

	p.fills = append(p.fills, Fill{
		FillID:          fmt.Sprintf("fill-%s", orderID),
		ExchangeOrderID: orderID,
		ClientOrderID:   clientID,
		Symbol:          symbol,
		Side:            side,
		Price:           price,
		Size:            size,
		Time:            at,
	})
}
