// Package risk gates order intents against account-level limits. Checks run
// in a fixed order and short-circuit on the first rejection; leverage and
// position-cap breaches size the order down instead of rejecting it outright.
package risk

import (
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"hlbot/internal/strategy"
)

type Limits struct {
	MaxLeverage     decimal.Decimal
	MaxPositionUSD  decimal.Decimal
	MaxDailyLossUSD decimal.Decimal
	MaxDrawdownPct  decimal.Decimal
	MinNotionalUSD  decimal.Decimal
}

// AccountView is everything Evaluate needs to know about the account. The
// caller assembles it from exchange state and the position tracker.
type AccountView struct {
	Equity           decimal.Decimal
	MarginUsed       decimal.Decimal
	PeakEquity       decimal.Decimal
	RealizedPnLToday decimal.Decimal
	PositionNotional decimal.Decimal // current gross exposure for the symbol
}

type Decision struct {
	Approved      bool
	SizedNotional decimal.Decimal
	RejectReason  string
}

type Manager struct {
	limits Limits
	log    *logrus.Entry
}

func NewManager(limits Limits, log *logrus.Entry) *Manager {
	return &Manager{limits: limits, log: log}
}

func (m *Manager) Limits() Limits { return m.limits }

// Evaluate sizes or rejects an intent. Exits bypass the daily-loss and
// drawdown gates and are never sized down, so a losing account can always
// flatten.
func (m *Manager) Evaluate(intent strategy.Intent, acct AccountView) Decision {
	if intent.IsExit() {
		return Decision{Approved: true, SizedNotional: intent.RequestedNotional}
	}

	notional := intent.RequestedNotional

	// Leverage headroom: equity * maxLeverage minus what is already deployed.
	if m.limits.MaxLeverage.IsPositive() {
		headroom := acct.Equity.Mul(m.limits.MaxLeverage).Sub(acct.MarginUsed)
		if headroom.LessThan(notional) {
			notional = headroom
		}
	}

	// Per-symbol position cap in USD.
	if m.limits.MaxPositionUSD.IsPositive() {
		headroom := m.limits.MaxPositionUSD.Sub(acct.PositionNotional)
		if headroom.LessThan(notional) {
			notional = headroom
		}
	}

	if notional.LessThan(m.limits.MinNotionalUSD) {
		return m.reject(intent, "size_too_small")
	}

	if m.limits.MaxDailyLossUSD.IsPositive() &&
		acct.RealizedPnLToday.Neg().GreaterThanOrEqual(m.limits.MaxDailyLossUSD) {
		return m.reject(intent, "daily_loss_limit")
	}

	if m.limits.MaxDrawdownPct.IsPositive() && acct.PeakEquity.IsPositive() {
		dd := acct.PeakEquity.Sub(acct.Equity).
			Div(acct.PeakEquity).
			Mul(decimal.NewFromInt(100))
		if dd.GreaterThanOrEqual(m.limits.MaxDrawdownPct) {
			return m.reject(intent, "max_drawdown")
		}
	}

	if notional.LessThan(intent.RequestedNotional) {
		m.log.WithFields(logrus.Fields{
			"symbol":    intent.Symbol,
			"strategy":  intent.StrategyID,
			"requested": intent.RequestedNotional,
			"sized":     notional,
		}).Info("intent sized down")
	}
	return Decision{Approved: true, SizedNotional: notional}
}

func (m *Manager) reject(intent strategy.Intent, reason string) Decision {
	m.log.WithFields(logrus.Fields{
		"symbol":   intent.Symbol,
		"strategy": intent.StrategyID,
		"reason":   reason,
	}).Info("intent rejected")
	return Decision{RejectReason: reason}
}
