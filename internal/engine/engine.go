// Package engine runs the evaluation cycles: candles in, signals through the
// state machines and risk gates, orders out, exchange truth reconciled back.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"hlbot/internal/config"
	"hlbot/internal/exchange"
	"hlbot/internal/md"
	"hlbot/internal/order"
	"hlbot/internal/position"
	"hlbot/internal/risk"
	"hlbot/internal/state"
	"hlbot/internal/strategy"
)

// pairRunner is one (symbol, strategy) pair. Its mutex serializes the
// evaluation cycle against fill routing from the reconciler.
type pairRunner struct {
	mu         sync.Mutex
	symbol     string
	strategyID string
	evaluator  strategy.Evaluator
	machine    *strategy.Machine
	params     strategy.Params
}

type Engine struct {
	cfg       config.Config
	client    exchange.Client
	risk      *risk.Manager
	orders    *order.Manager
	positions *position.Tracker
	store     *state.Store
	decisions *DecisionLogger
	metrics   *Metrics
	log       *logrus.Entry

	interval time.Duration
	pairs    []*pairRunner
	runID    string

	activeMu sync.Mutex
	active   map[string]int // non-FLAT pairs per strategy

	lastSweep time.Time
}

func New(
	cfg config.Config,
	client exchange.Client,
	riskMgr *risk.Manager,
	orders *order.Manager,
	positions *position.Tracker,
	store *state.Store,
	decisions *DecisionLogger,
	metrics *Metrics,
	log *logrus.Entry,
) (*Engine, error) {
	interval, err := md.ParseTimeframe(cfg.Timeframe)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:       cfg,
		client:    client,
		risk:      riskMgr,
		orders:    orders,
		positions: positions,
		store:     store,
		decisions: decisions,
		metrics:   metrics,
		log:       log,
		interval:  interval,
		runID:     decisions.RunID(),
		active:    map[string]int{},
		lastSweep: time.Now().UTC(),
	}

	for _, spec := range cfg.Strategies {
		kind, err := strategy.ParseKind(spec.Kind)
		if err != nil {
			return nil, err
		}
		params := spec.Params.WithDefaults(kind)
		for _, symbol := range spec.Symbols {
			ev, err := strategy.New(kind, spec.Params)
			if err != nil {
				return nil, err
			}
			machine := strategy.NewMachine(symbol, string(kind), params)
			if ps, ok := store.Pair(symbol, string(kind)); ok {
				machine.Restore(strategy.State(ps.MachineState), ps.EntryPrice)
				log.WithFields(logrus.Fields{
					"symbol":   symbol,
					"strategy": kind,
					"state":    ps.MachineState,
				}).Info("pair restored from checkpoint")
			}
			e.pairs = append(e.pairs, &pairRunner{
				symbol:     symbol,
				strategyID: string(kind),
				evaluator:  ev,
				machine:    machine,
				params:     params,
			})
		}
	}
	if len(e.pairs) == 0 {
		return nil, errors.New("no pairs to trade")
	}
	for _, p := range e.pairs {
		if p.machine.State() != strategy.StateFlat {
			e.active[p.strategyID]++
		}
	}
	return e, nil
}

// transition applies a machine mutation and keeps the per-strategy non-FLAT
// counter in step. Every machine write goes through here so cross-pair state
// reads never touch another pair's machine. Caller holds p.mu.
func (e *Engine) transition(p *pairRunner, mutate func()) {
	before := p.machine.State()
	mutate()
	after := p.machine.State()
	if before == after {
		return
	}
	e.activeMu.Lock()
	if before == strategy.StateFlat {
		e.active[p.strategyID]++
	}
	if after == strategy.StateFlat {
		e.active[p.strategyID]--
	}
	e.activeMu.Unlock()
}

// abortIntent rolls the pair back to FLAT after an intent that never reached
// the venue, releasing any level the evaluator reserved when it signaled.
func (e *Engine) abortIntent(p *pairRunner) {
	e.transition(p, p.machine.OnOrderFailed)
	if a, ok := p.evaluator.(strategy.EntryAborter); ok {
		a.AbortEntry()
	}
}

// Run blocks until ctx is cancelled, evaluating every pair once per closed
// candle and reconciling against the exchange on its own cadence.
func (e *Engine) Run(ctx context.Context) error {
	e.log.WithFields(logrus.Fields{
		"pairs":     len(e.pairs),
		"timeframe": e.cfg.Timeframe,
		"run_id":    e.runID,
	}).Info("engine started")

	go e.reconcileLoop(ctx)
	go e.riskSummaryLoop(ctx)

	for {
		next := time.Now().UTC().Truncate(e.interval).Add(e.interval)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Until(next)):
		}
		e.runCycle(ctx)
	}
}

// runCycle evaluates all pairs for one candle boundary. A pair that fails
// logs and skips; the rest of the book keeps trading.
func (e *Engine) runCycle(ctx context.Context) {
	acct, err := e.client.AccountState(ctx)
	if err != nil {
		e.log.WithError(err).Warn("account fetch failed, skipping cycle")
		return
	}

	var wg sync.WaitGroup
	for _, p := range e.pairs {
		wg.Add(1)
		go func(p *pairRunner) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					e.metrics.CycleErrors.WithLabelValues(p.symbol, p.strategyID).Inc()
					e.log.WithFields(logrus.Fields{
						"symbol":   p.symbol,
						"strategy": p.strategyID,
						"panic":    r,
					}).Error("pair cycle panicked")
				}
			}()
			p.mu.Lock()
			defer p.mu.Unlock()
			e.evaluatePair(ctx, p, acct)
		}(p)
	}
	wg.Wait()
}

func (e *Engine) evaluatePair(ctx context.Context, p *pairRunner, acct exchange.AccountState) {
	plog := e.log.WithFields(logrus.Fields{"symbol": p.symbol, "strategy": p.strategyID})
	e.metrics.Cycles.WithLabelValues(p.symbol, p.strategyID).Inc()

	candles, err := e.client.Candles(ctx, p.symbol, e.cfg.Timeframe, e.cfg.CandleHistory)
	if err != nil {
		e.metrics.CycleErrors.WithLabelValues(p.symbol, p.strategyID).Inc()
		plog.WithError(err).Warn("candle fetch failed")
		return
	}
	if err := md.ValidateHistory(candles, e.interval); err != nil {
		e.metrics.CycleErrors.WithLabelValues(p.symbol, p.strategyID).Inc()
		plog.WithError(err).Warn("candle history rejected")
		return
	}

	pos := e.positions.View(p.symbol)
	sig, err := p.evaluator.Evaluate(candles, pos)
	if err != nil {
		if errors.Is(err, md.ErrInsufficientHistory) {
			plog.Debug("not enough history yet")
		} else {
			e.metrics.CycleErrors.WithLabelValues(p.symbol, p.strategyID).Inc()
			plog.WithError(err).Warn("evaluation failed")
		}
		return
	}

	mark := candles[len(candles)-1].Close
	dec := Decision{
		RunID:        e.runID,
		Timestamp:    time.Now().UTC(),
		CandleTime:   sig.EvaluatedAt,
		Symbol:       p.symbol,
		Strategy:     p.strategyID,
		Close:        mark,
		Direction:    string(sig.Direction),
		Strength:     sig.Strength,
		Reason:       sig.Reason,
		MachineState: string(p.machine.State()),
	}

	var intent *strategy.Intent
	e.transition(p, func() { intent = p.machine.OnSignal(sig, pos, mark) })
	if intent == nil {
		dec.Result = "hold"
		e.decisions.Append(dec)
		e.checkpoint(p, pos)
		return
	}

	if !intent.IsExit() && e.activeCount(p.strategyID) > p.params.MaxPositions {
		e.abortIntent(p)
		e.metrics.RiskRejections.WithLabelValues("max_positions").Inc()
		dec.Result = "skipped"
		dec.RejectReason = "max_positions"
		e.decisions.Append(dec)
		e.checkpoint(p, pos)
		return
	}

	// Entries scale with signal confidence; exits always flatten in full.
	if !intent.IsExit() && sig.Strength > 0 {
		intent.RequestedNotional = intent.RequestedNotional.Mul(decimal.NewFromFloat(sig.Strength))
	}

	markDec := decimal.NewFromFloat(mark)
	peak := e.positions.ObserveEquity(acct.Equity)
	verdict := e.risk.Evaluate(*intent, risk.AccountView{
		Equity:           acct.Equity,
		MarginUsed:       acct.MarginUsed,
		PeakEquity:       peak,
		RealizedPnLToday: e.positions.RealizedToday(time.Now().UTC()),
		PositionNotional: e.positions.GrossNotional(p.symbol, markDec),
	})
	if !verdict.Approved {
		e.abortIntent(p)
		e.metrics.RiskRejections.WithLabelValues(verdict.RejectReason).Inc()
		dec.Result = "risk_rejected"
		dec.RejectReason = verdict.RejectReason
		e.decisions.Append(dec)
		e.checkpoint(p, pos)
		return
	}

	size := verdict.SizedNotional.Div(markDec)
	if intent.IsExit() {
		size = decimal.NewFromFloat(pos.NetSize).Abs()
	}

	req := exchange.OrderRequest{
		ClientOrderID: uuid.NewString(),
		Symbol:        p.symbol,
		Side:          intent.Side,
		Type:          exchange.OrderTypeMarket,
		Size:          size,
		ReduceOnly:    intent.ReduceOnly,
	}
	dec.Notional = verdict.SizedNotional.StringFixed(2)

	o, err := e.orders.Submit(ctx, p.strategyID, req)
	switch {
	case errors.Is(err, order.ErrLiveOrderExists):
		e.abortIntent(p)
		dec.Result = "skipped"
		dec.RejectReason = "live_order_exists"
	case err != nil:
		e.abortIntent(p)
		e.metrics.OrdersRejected.WithLabelValues(p.symbol).Inc()
		dec.Result = "order_failed"
		dec.RejectReason = err.Error()
		plog.WithError(err).Warn("order failed, pair reset to FLAT")
	default:
		e.metrics.OrdersSubmitted.WithLabelValues(p.symbol, string(req.Side)).Inc()
		dec.Result = "order_submitted"
		dec.ClientOrderID = o.ClientOrderID
		plog.WithFields(logrus.Fields{
			"client_order_id": o.ClientOrderID,
			"side":            req.Side,
			"size":            size,
			"reason":          intent.Reason,
		}).Info("order submitted")
	}
	e.decisions.Append(dec)
	e.checkpoint(p, pos)
}

// activeCount is the number of this strategy's pairs not sitting FLAT,
// counting the pair currently being evaluated.
func (e *Engine) activeCount(strategyID string) int {
	e.activeMu.Lock()
	defer e.activeMu.Unlock()
	return e.active[strategyID]
}

// checkpoint records the pair's lifecycle. Caller holds p.mu.
func (e *Engine) checkpoint(p *pairRunner, pos strategy.PositionView) {
	ps := state.PairState{
		Symbol:        p.symbol,
		StrategyID:    p.strategyID,
		MachineState:  string(p.machine.State()),
		EntryPrice:    p.machine.EntryPrice(),
		NetSize:       pos.NetSize,
		LastEvaluated: time.Now().UTC(),
	}
	if live, ok := e.orders.Live(p.symbol, p.strategyID); ok {
		ps.LiveOrderID = live.ClientOrderID
	}
	e.store.SetPair(ps)
}

func (e *Engine) riskSummaryLoop(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			acct, err := e.client.AccountState(ctx)
			if err != nil {
				continue
			}
			active := 0
			e.activeMu.Lock()
			for _, n := range e.active {
				active += n
			}
			e.activeMu.Unlock()
			e.log.WithFields(logrus.Fields{
				"equity":         acct.Equity,
				"margin_used":    acct.MarginUsed,
				"peak_equity":    e.positions.ObserveEquity(acct.Equity),
				"realized_today": e.positions.RealizedToday(time.Now().UTC()),
				"active_pairs":   active,
			}).Info("risk summary")
		}
	}
}

// Shutdown optionally flattens every open position, then saves the
// checkpoint so the next run resumes cleanly. Live orders are cancelled and
// the cancellations confirmed against the venue before flattening, otherwise
// the flatten submits would collide with the working orders.
func (e *Engine) Shutdown(ctx context.Context) error {
	if e.cfg.FlattenOnShutdown {
		for _, p := range e.pairs {
			p.mu.Lock()
			if live, ok := e.orders.Live(p.symbol, p.strategyID); ok {
				if err := e.orders.Cancel(ctx, live.ClientOrderID); err != nil {
					e.log.WithError(err).WithField("client_order_id", live.ClientOrderID).
						Warn("cancel on shutdown failed")
				}
			}
			p.mu.Unlock()
		}

		e.reconcileOnce(ctx)

		for _, p := range e.pairs {
			p.mu.Lock()
			pos := e.positions.Get(p.symbol)
			if pos.NetSize.IsPositive() {
				req := exchange.OrderRequest{
					ClientOrderID: uuid.NewString(),
					Symbol:        p.symbol,
					Side:          strategy.Sell,
					Type:          exchange.OrderTypeMarket,
					Size:          pos.NetSize.Abs(),
					ReduceOnly:    true,
				}
				if _, err := e.orders.Submit(ctx, p.strategyID, req); err != nil {
					e.log.WithError(err).WithField("symbol", p.symbol).
						Warn("flatten on shutdown failed")
				}
				e.transition(p, p.machine.OnOrderFailed)
			}
			p.mu.Unlock()
		}
	}
	if err := e.store.Save(e.cfg.CheckpointPath); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}
