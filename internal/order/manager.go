// Package order owns the order lifecycle: idempotent submission with retry,
// status transitions, and reconciliation against exchange truth.
package order

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"hlbot/internal/exchange"
	"hlbot/internal/strategy"
	"hlbot/pkg/retry"
)

type Status string

const (
	StatusPending         Status = "PENDING"
	StatusOpen            Status = "OPEN"
	StatusPartiallyFilled Status = "PARTIALLY_FILLED"
	StatusFilled          Status = "FILLED"
	StatusCancelled       Status = "CANCELLED"
	StatusRejected        Status = "REJECTED"
)

func (s Status) IsTerminal() bool {
	return s == StatusFilled || s == StatusCancelled || s == StatusRejected
}

type Order struct {
	ClientOrderID   string
	ExchangeOrderID string
	Symbol          string
	StrategyID      string
	Side            strategy.Side
	Type            exchange.OrderType
	Price           decimal.Decimal
	Size            decimal.Decimal
	FilledSize      decimal.Decimal
	Status          Status
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ErrLiveOrderExists means the (symbol, strategy) pair already has a working
// order; the caller waits for it to resolve before submitting another.
var ErrLiveOrderExists = errors.New("live order exists for pair")

type Manager struct {
	client exchange.Client
	retry  retry.Config
	log    *logrus.Entry

	mu     sync.Mutex
	orders map[string]*Order // by client order id
	live   map[string]string // symbol|strategy -> client order id
	seen   map[string]bool   // processed fill ids
}

func NewManager(client exchange.Client, retryCfg retry.Config, log *logrus.Entry) *Manager {
	if retryCfg.RetryIf == nil {
		retryCfg.RetryIf = exchange.IsTransient
	}
	return &Manager{
		client: client,
		retry:  retryCfg,
		log:    log,
		orders: map[string]*Order{},
		live:   map[string]string{},
		seen:   map[string]bool{},
	}
}

func pairKey(symbol, strategyID string) string {
	return symbol + "|" + strategyID
}

// Live returns the working order for a pair, if any.
func (m *Manager) Live(symbol, strategyID string) (*Order, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.live[pairKey(symbol, strategyID)]
	if !ok {
		return nil, false
	}
	o := *m.orders[id]
	return &o, true
}

// Get returns a copy of the order with the given client order id.
func (m *Manager) Get(clientOrderID string) (*Order, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[clientOrderID]
	if !ok {
		return nil, false
	}
	cp := *o
	return &cp, true
}

// Submit sends an order, retrying transient transport failures and giving up
// with REJECTED once attempts are exhausted. Resubmitting an already-tracked
// client order id returns the existing order without touching the venue.
func (m *Manager) Submit(ctx context.Context, strategyID string, req exchange.OrderRequest) (*Order, error) {
	m.mu.Lock()
	if existing, ok := m.orders[req.ClientOrderID]; ok {
		cp := *existing
		m.mu.Unlock()
		return &cp, nil
	}
	key := pairKey(req.Symbol, strategyID)
	if _, ok := m.live[key]; ok {
		m.mu.Unlock()
		return nil, ErrLiveOrderExists
	}

	now := time.Now().UTC()
	o := &Order{
		ClientOrderID: req.ClientOrderID,
		Symbol:        req.Symbol,
		StrategyID:    strategyID,
		Side:          req.Side,
		Type:          req.Type,
		Price:         req.Price,
		Size:          req.Size,
		Status:        StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	m.orders[req.ClientOrderID] = o
	m.live[key] = req.ClientOrderID
	m.mu.Unlock()

	var ack exchange.OrderAck
	err := retry.Do(ctx, m.retry, func() error {
		var err error
		ack, err = m.client.SubmitOrder(ctx, req)
		if err == nil {
			return nil
		}
		if exchange.IsRejection(err) {
			return retry.Permanent(err)
		}
		m.log.WithError(err).WithField("client_order_id", req.ClientOrderID).
			Warn("submit attempt failed")
		return err
	})
	if err != nil {
		m.setStatus(req.ClientOrderID, StatusRejected, "")
		cp, _ := m.Get(req.ClientOrderID)
		return cp, fmt.Errorf("submit %s: %w", req.ClientOrderID, err)
	}

	status := StatusOpen
	if ack.Status == "filled" {
		status = StatusFilled
	}
	m.setStatus(req.ClientOrderID, status, ack.ExchangeOrderID)
	m.log.WithFields(logrus.Fields{
		"client_order_id":   req.ClientOrderID,
		"exchange_order_id": ack.ExchangeOrderID,
		"symbol":            req.Symbol,
		"side":              req.Side,
		"size":              req.Size,
		"status":            status,
	}).Info("order submitted")

	cp, _ := m.Get(req.ClientOrderID)
	return cp, nil
}

// Cancel asks the venue to cancel a working order. The local status only
// moves to CANCELLED once reconciliation confirms it is gone.
func (m *Manager) Cancel(ctx context.Context, clientOrderID string) error {
	m.mu.Lock()
	o, ok := m.orders[clientOrderID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("unknown order %s", clientOrderID)
	}
	if o.Status.IsTerminal() {
		m.mu.Unlock()
		return nil
	}
	symbol, exchangeID := o.Symbol, o.ExchangeOrderID
	m.mu.Unlock()

	return m.client.CancelOrder(ctx, symbol, exchangeID)
}

// setStatus applies a transition, refusing to move a terminal order back to a
// working status. Exchange truth can only confirm terminal states, never
// reopen them.
func (m *Manager) setStatus(clientOrderID string, status Status, exchangeOrderID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[clientOrderID]
	if !ok {
		return
	}
	if o.Status.IsTerminal() && !status.IsTerminal() {
		m.log.WithFields(logrus.Fields{
			"client_order_id": clientOrderID,
			"from":            o.Status,
			"to":              status,
		}).Warn("ignoring terminal status revert")
		return
	}
	o.Status = status
	o.UpdatedAt = time.Now().UTC()
	if exchangeOrderID != "" {
		o.ExchangeOrderID = exchangeOrderID
	}
	if status.IsTerminal() {
		delete(m.live, pairKey(o.Symbol, o.StrategyID))
	}
}

// Reconcile replaces local belief with exchange truth. It returns the fills
// not seen before and how many local orders disagreed with the venue. Venue
// orders still working after the local order reached a terminal status are
// cancelled so nothing stays open unmanaged.
func (m *Manager) Reconcile(ctx context.Context, openOrders []exchange.OpenOrder, fills []exchange.Fill) ([]exchange.Fill, int) {
	openByClient := map[string]exchange.OpenOrder{}
	for _, o := range openOrders {
		openByClient[o.ClientOrderID] = o
	}

	var fresh []exchange.Fill
	filled := map[string]decimal.Decimal{}
	m.mu.Lock()
	for _, f := range fills {
		if m.seen[f.FillID] {
			continue
		}
		m.seen[f.FillID] = true
		fresh = append(fresh, f)
		if f.ClientOrderID != "" {
			filled[f.ClientOrderID] = filled[f.ClientOrderID].Add(f.Size)
		}
	}
	m.mu.Unlock()

	mismatches := 0
	m.mu.Lock()
	ids := make([]string, 0, len(m.orders))
	for id := range m.orders {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		m.mu.Lock()
		o := m.orders[id]
		status := o.Status
		size := o.Size
		prevFilled := o.FilledSize
		m.mu.Unlock()
		if status.IsTerminal() {
			continue
		}

		open, isOpen := openByClient[id]
		newFilled := prevFilled.Add(filled[id])

		switch {
		case isOpen:
			o := open
			want := StatusOpen
			if o.FilledSize.IsPositive() || newFilled.IsPositive() {
				want = StatusPartiallyFilled
			}
			if status != want {
				mismatches++
			}
			m.applyFilled(id, newFilled)
			m.setStatus(id, want, o.ExchangeOrderID)
		case newFilled.GreaterThanOrEqual(size) && size.IsPositive():
			mismatches++
			m.applyFilled(id, newFilled)
			m.setStatus(id, StatusFilled, "")
		case status != StatusPending:
			// Gone from the book without a full fill: cancelled upstream.
			mismatches++
			m.applyFilled(id, newFilled)
			m.setStatus(id, StatusCancelled, "")
		}
	}

	for _, oo := range openOrders {
		m.mu.Lock()
		local, tracked := m.orders[oo.ClientOrderID]
		stray := tracked && local.Status.IsTerminal()
		m.mu.Unlock()
		if !stray {
			continue
		}
		mismatches++
		m.log.WithFields(logrus.Fields{
			"client_order_id":   oo.ClientOrderID,
			"exchange_order_id": oo.ExchangeOrderID,
		}).Warn("cancelling venue order past terminal local status")
		if err := m.client.CancelOrder(ctx, oo.Symbol, oo.ExchangeOrderID); err != nil {
			m.log.WithError(err).WithField("exchange_order_id", oo.ExchangeOrderID).
				Warn("stray order cancel failed")
		}
	}

	return fresh, mismatches
}

func (m *Manager) applyFilled(clientOrderID string, filled decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.orders[clientOrderID]; ok && filled.GreaterThan(o.FilledSize) {
		o.FilledSize = filled
	}
}

// MarkFailed records a fatal order failure without a venue round trip.
func (m *Manager) MarkFailed(clientOrderID string) {
	m.setStatus(clientOrderID, StatusRejected, "")
}
