// Package exchange defines the narrow surface the bot needs from a trading
// venue: candle history, account state, order placement and the read-side
// calls reconciliation depends on.
package exchange

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"hlbot/internal/md"
	"hlbot/internal/strategy"
)

type OrderType string

const (
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"
)

type OrderRequest struct {
	ClientOrderID string
	Symbol        string
	Side          strategy.Side
	Type          OrderType
	Price         decimal.Decimal // zero for market orders
	Size          decimal.Decimal // base asset quantity
	ReduceOnly    bool
}

// OrderAck is the venue's synchronous answer to a submit.
type OrderAck struct {
	ExchangeOrderID string
	ClientOrderID   string
	Status          string
}

type OpenOrder struct {
	ExchangeOrderID string
	ClientOrderID   string
	Symbol          string
	Side            strategy.Side
	Price           decimal.Decimal
	Size            decimal.Decimal
	FilledSize      decimal.Decimal
	Status          string
}

type PositionSnapshot struct {
	Symbol     string
	NetSize    decimal.Decimal // signed, positive long
	EntryPrice decimal.Decimal
	MarkPrice  decimal.Decimal
}

type Fill struct {
	FillID          string
	ExchangeOrderID string
	ClientOrderID   string
	Symbol          string
	Side            strategy.Side
	Price           decimal.Decimal
	Size            decimal.Decimal
	Fee             decimal.Decimal
	Time            time.Time
}

type AccountState struct {
	Equity     decimal.Decimal
	MarginUsed decimal.Decimal
	Available  decimal.Decimal
}

// Client is the venue surface. Implementations must be safe for concurrent
// use; all calls honor ctx cancellation.
type Client interface {
	Candles(ctx context.Context, symbol, timeframe string, limit int) ([]md.Candle, error)
	AccountState(ctx context.Context) (AccountState, error)
	SubmitOrder(ctx context.Context, req OrderRequest) (OrderAck, error)
	CancelOrder(ctx context.Context, symbol, exchangeOrderID string) error
	OpenOrders(ctx context.Context, symbol string) ([]OpenOrder, error)
	Positions(ctx context.Context) ([]PositionSnapshot, error)
	Fills(ctx context.Context, symbol string, since time.Time) ([]Fill, error)
}
