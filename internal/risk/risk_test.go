package risk

import (
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"hlbot/internal/strategy"
)

func testManager(limits Limits) *Manager {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewManager(limits, log.WithField("component", "risk"))
}

func defaultLimits() Limits {
	return Limits{
		MaxLeverage:     decimal.NewFromInt(3),
		MaxPositionUSD:  decimal.NewFromInt(5000),
		MaxDailyLossUSD: decimal.NewFromInt(100),
		MaxDrawdownPct:  decimal.NewFromInt(10),
		MinNotionalUSD:  decimal.NewFromInt(10),
	}
}

func entry(notional float64) strategy.Intent {
	return strategy.Intent{
		Symbol:            "BTC",
		Side:              strategy.Buy,
		RequestedNotional: decimal.NewFromFloat(notional),
		StrategyID:        "simple_ma",
		CreatedAt:         time.Now().UTC(),
	}
}

func exit(notional float64) strategy.Intent {
	i := entry(notional)
	i.Side = strategy.Sell
	i.ReduceOnly = true
	return i
}

func TestEvaluateSizesDownToLeverageHeadroom(t *testing.T) {
	m := testManager(defaultLimits())

	// Equity 1000 at 3x leverage caps total exposure at 3000.
	d := m.Evaluate(entry(3500), AccountView{
		Equity:     decimal.NewFromInt(1000),
		PeakEquity: decimal.NewFromInt(1000),
	})
	if !d.Approved {
		t.Fatalf("expected sized-down approval, got reject %q", d.RejectReason)
	}
	if !d.SizedNotional.Equal(decimal.NewFromInt(3000)) {
		t.Fatalf("expected sized to 3000, got %s", d.SizedNotional)
	}
}

func TestEvaluateSizesDownToPositionCap(t *testing.T) {
	m := testManager(defaultLimits())

	d := m.Evaluate(entry(2000), AccountView{
		Equity:           decimal.NewFromInt(100000),
		PeakEquity:       decimal.NewFromInt(100000),
		PositionNotional: decimal.NewFromInt(4500),
	})
	if !d.Approved {
		t.Fatalf("expected approval, got reject %q", d.RejectReason)
	}
	if !d.SizedNotional.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("expected sized to remaining cap 500, got %s", d.SizedNotional)
	}
}

func TestEvaluateRejectsBelowMinNotional(t *testing.T) {
	m := testManager(defaultLimits())

	d := m.Evaluate(entry(2000), AccountView{
		Equity:           decimal.NewFromInt(100000),
		PeakEquity:       decimal.NewFromInt(100000),
		PositionNotional: decimal.NewFromInt(4995),
	})
	if d.Approved {
		t.Fatalf("expected rejection for dust-sized order")
	}
	if d.RejectReason != "size_too_small" {
		t.Fatalf("expected size_too_small, got %q", d.RejectReason)
	}
}

func TestEvaluateDailyLossBlocksEntriesNotExits(t *testing.T) {
	m := testManager(defaultLimits())
	acct := AccountView{
		Equity:           decimal.NewFromInt(1000),
		PeakEquity:       decimal.NewFromInt(1000),
		RealizedPnLToday: decimal.NewFromInt(-105),
	}

	d := m.Evaluate(entry(100), acct)
	if d.Approved || d.RejectReason != "daily_loss_limit" {
		t.Fatalf("expected daily_loss_limit reject, got %+v", d)
	}

	d = m.Evaluate(exit(100), acct)
	if !d.Approved {
		t.Fatalf("expected exit to bypass daily loss gate, got reject %q", d.RejectReason)
	}
}

func TestEvaluateDrawdownBlocksEntriesNotExits(t *testing.T) {
	m := testManager(defaultLimits())
	acct := AccountView{
		Equity:     decimal.NewFromInt(890),
		PeakEquity: decimal.NewFromInt(1000),
	}

	d := m.Evaluate(entry(100), acct)
	if d.Approved || d.RejectReason != "max_drawdown" {
		t.Fatalf("expected max_drawdown reject, got %+v", d)
	}

	if d := m.Evaluate(exit(100), acct); !d.Approved {
		t.Fatalf("expected exit to bypass drawdown gate, got reject %q", d.RejectReason)
	}
}

func TestEvaluateApprovesFullsizeWithHeadroom(t *testing.T) {
	m := testManager(defaultLimits())

	d := m.Evaluate(entry(100), AccountView{
		Equity:     decimal.NewFromInt(1000),
		PeakEquity: decimal.NewFromInt(1000),
	})
	if !d.Approved {
		t.Fatalf("expected approval, got reject %q", d.RejectReason)
	}
	if !d.SizedNotional.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected untouched notional, got %s", d.SizedNotional)
	}
}
