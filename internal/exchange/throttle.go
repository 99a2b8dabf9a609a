package exchange

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"hlbot/internal/md"
)

// Throttled wraps a Client with a shared token-bucket limiter. On a 429 it
// additionally opens a cooldown window that pauses every caller, since venue
// rate limits are account-wide, not per-endpoint.
type Throttled struct {
	inner   Client
	limiter *rate.Limiter

	mu         sync.Mutex
	pauseUntil time.Time
	cooldown   time.Duration
}

func NewThrottled(inner Client, rps float64, burst int) *Throttled {
	return &Throttled{
		inner:    inner,
		limiter:  rate.NewLimiter(rate.Limit(rps), burst),
		cooldown: 2 * time.Second,
	}
}

func (t *Throttled) wait(ctx context.Context) error {
	t.mu.Lock()
	pause := time.Until(t.pauseUntil)
	t.mu.Unlock()
	if pause > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pause):
		}
	}
	return t.limiter.Wait(ctx)
}

func (t *Throttled) noteRateLimit(err error) {
	var rl *RateLimitError
	if !errors.As(err, &rl) {
		return
	}
	t.mu.Lock()
	t.pauseUntil = time.Now().Add(t.cooldown)
	t.mu.Unlock()
}

func (t *Throttled) Candles(ctx context.Context, symbol, timeframe string, limit int) ([]md.Candle, error) {
	if err := t.wait(ctx); err != nil {
		return nil, err
	}
	out, err := t.inner.Candles(ctx, symbol, timeframe, limit)
	t.noteRateLimit(err)
	return out, err
}

func (t *Throttled) AccountState(ctx context.Context) (AccountState, error) {
	if err := t.wait(ctx); err != nil {
		return AccountState{}, err
	}
	out, err := t.inner.AccountState(ctx)
	t.noteRateLimit(err)
	return out, err
}

func (t *Throttled) SubmitOrder(ctx context.Context, req OrderRequest) (OrderAck, error) {
	if err := t.wait(ctx); err != nil {
		return OrderAck{}, err
	}
	out, err := t.inner.SubmitOrder(ctx, req)
	t.noteRateLimit(err)
	return out, err
}

func (t *Throttled) CancelOrder(ctx context.Context, symbol, exchangeOrderID string) error {
	if err := t.wait(ctx); err != nil {
		return err
	}
	err := t.inner.CancelOrder(ctx, symbol, exchangeOrderID)
	t.noteRateLimit(err)
	return err
}

func (t *Throttled) OpenOrders(ctx context.Context, symbol string) ([]OpenOrder, error) {
	if err := t.wait(ctx); err != nil {
		return nil, err
	}
	out, err := t.inner.OpenOrders(ctx, symbol)
	t.noteRateLimit(err)
	return out, err
}

func (t *Throttled) Positions(ctx context.Context) ([]PositionSnapshot, error) {
	if err := t.wait(ctx); err != nil {
		return nil, err
	}
	out, err := t.inner.Positions(ctx)
	t.noteRateLimit(err)
	return out, err
}

func (t *Throttled) Fills(ctx context.Context, symbol string, since time.Time) ([]Fill, error) {
	if err := t.wait(ctx); err != nil {
		return nil, err
	}
	out, err := t.inner.Fills(ctx, symbol, since)
	t.noteRateLimit(err)
	return out, err
}
