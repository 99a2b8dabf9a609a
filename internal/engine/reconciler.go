package engine

import (
	"context"
	"time"

	"hlbot/internal/exchange"
)

// reconcileLoop pulls exchange truth on a fixed cadence: open orders, fills
// and positions. Local belief is corrected to match, never the other way.
func (e *Engine) reconcileLoop(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.ReconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.reconcileOnce(ctx)
		}
	}
}

func (e *Engine) reconcileOnce(ctx context.Context) {
	sweepStart := time.Now().UTC()

	open, err := e.client.OpenOrders(ctx, "")
	if err != nil {
		e.log.WithError(err).Warn("reconcile open orders failed")
		return
	}
	fills, err := e.client.Fills(ctx, "", e.lastSweep)
	if err != nil {
		e.log.WithError(err).Warn("reconcile fills failed")
		return
	}

	fresh, mismatches := e.orders.Reconcile(ctx, open, fills)
	if mismatches > 0 {
		e.metrics.ReconcileMismatches.Add(float64(mismatches))
		e.log.WithField("count", mismatches).Warn("order state corrected from exchange")
	}

	for _, f := range fresh {
		e.positions.ApplyFill(f)
		e.routeFill(f)
	}

	snapshots, err := e.client.Positions(ctx)
	if err != nil {
		e.log.WithError(err).Warn("reconcile positions failed")
	} else {
		e.positions.Reconcile(snapshots)
	}

	acct, err := e.client.AccountState(ctx)
	if err != nil {
		e.log.WithError(err).Warn("reconcile account failed")
	} else {
		equity, _ := acct.Equity.Float64()
		e.metrics.Equity.Set(equity)
		e.store.SetPeakEquity(equity)
		e.positions.ObserveEquity(acct.Equity)
	}

	e.lastSweep = sweepStart
	if err := e.store.Save(e.cfg.CheckpointPath); err != nil {
		e.log.WithError(err).Warn("checkpoint save failed")
	}
}

// routeFill advances the owning pair's state machine for a confirmed fill.
func (e *Engine) routeFill(f exchange.Fill) {
	o, ok := e.orders.Get(f.ClientOrderID)
	if !ok {
		e.log.WithField("fill_id", f.FillID).Warn("fill for unknown order")
		return
	}
	for _, p := range e.pairs {
		if p.symbol != o.Symbol || p.strategyID != o.StrategyID {
			continue
		}
		price, _ := f.Price.Float64()
		p.mu.Lock()
		e.transition(p, func() { p.machine.OnFill(f.Side, price) })
		e.checkpoint(p, e.positions.View(p.symbol))
		p.mu.Unlock()
		return
	}
}
