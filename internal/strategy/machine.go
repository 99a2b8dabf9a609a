package strategy

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// State is the per-(symbol, strategy) lifecycle position.
type State string

const (
	StateFlat       State = "FLAT"
	StateEntering   State = "ENTERING"
	StateInPosition State = "IN_POSITION"
	StateExiting    State = "EXITING"
)

// transitions is the allowed edge set. Any state may additionally collapse to
// FLAT through Fail, which is the fatal-order escape hatch.
var transitions = map[State][]State{
	StateFlat:       {StateEntering},
	StateEntering:   {StateInPosition, StateFlat},
	StateInPosition: {StateExiting},
	StateExiting:    {StateFlat},
}

func CanTransition(from, to State) bool {
	for _, t := range transitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// Machine turns signals into order intents for one (symbol, strategy) pair.
// It is not safe for concurrent use; the engine serializes access per pair.
type Machine struct {
	Symbol     string
	StrategyID string

	p          Params
	state      State
	entryPrice float64
}

func NewMachine(symbol, strategyID string, p Params) *Machine {
	return &Machine{
		Symbol:     symbol,
		StrategyID: strategyID,
		p:          p,
		state:      StateFlat,
	}
}

func (m *Machine) State() State        { return m.state }
func (m *Machine) EntryPrice() float64 { return m.entryPrice }

// Restore rehydrates the machine from a checkpoint. It accepts any state so a
// restart can resume mid-lifecycle.
func (m *Machine) Restore(state State, entryPrice float64) {
	m.state = state
	m.entryPrice = entryPrice
}

func (m *Machine) transition(to State) error {
	if !CanTransition(m.state, to) {
		return fmt.Errorf("invalid transition %s -> %s", m.state, to)
	}
	m.state = to
	return nil
}

// OnSignal advances the machine for one evaluation cycle and returns the
// order intent to act on, or nil. Entry requires Strength strictly above the
// entry threshold; take-profit and stop-loss checks run against markPrice
// before the signal itself is consulted.
func (m *Machine) OnSignal(sig Signal, pos PositionView, markPrice float64) *Intent {
	switch m.state {
	case StateFlat:
		if sig.Direction == Long && sig.Strength > m.p.EntryThreshold {
			if err := m.transition(StateEntering); err != nil {
				return nil
			}
			return m.intent(Buy, sig, false)
		}

	case StateInPosition:
		if reason, ok := m.exitTrigger(markPrice); ok {
			if err := m.transition(StateExiting); err != nil {
				return nil
			}
			exit := m.intent(Sell, sig, true)
			exit.Reason = reason
			return exit
		}
		if sig.Direction == Short && pos.HasLong() {
			if err := m.transition(StateExiting); err != nil {
				return nil
			}
			return m.intent(Sell, sig, true)
		}

	case StateEntering, StateExiting:
		// Waiting on a fill or terminal order status.
	}
	return nil
}

func (m *Machine) exitTrigger(markPrice float64) (string, bool) {
	if m.entryPrice <= 0 || markPrice <= 0 {
		return "", false
	}
	if markPrice >= m.entryPrice*(1+m.p.TakeProfitPct/100) {
		return "take_profit", true
	}
	if markPrice <= m.entryPrice*(1-m.p.StopLossPct/100) {
		return "stop_loss", true
	}
	return "", false
}

func (m *Machine) intent(side Side, sig Signal, reduceOnly bool) *Intent {
	return &Intent{
		Symbol:            m.Symbol,
		Side:              side,
		RequestedNotional: decimal.NewFromFloat(m.p.PositionSizeUSD),
		Reason:            sig.Reason,
		StrategyID:        m.StrategyID,
		CreatedAt:         time.Now().UTC(),
		ReduceOnly:        reduceOnly,
	}
}

// OnFill records a confirmed fill for this pair's live order.
func (m *Machine) OnFill(side Side, price float64) {
	switch {
	case m.state == StateEntering && side == Buy:
		if m.transition(StateInPosition) == nil {
			m.entryPrice = price
		}
	case m.state == StateExiting && side == Sell:
		if m.transition(StateFlat) == nil {
			m.entryPrice = 0
		}
	}
}

// OnOrderFailed is the fatal-order escape: a rejected or exhausted order
// drops the machine back to FLAT so the next cycle starts clean.
func (m *Machine) OnOrderFailed() {
	m.state = StateFlat
	m.entryPrice = 0
}

// Params exposes the effective parameter set, defaults applied.
func (m *Machine) Params() Params { return m.p }
