package strategy

import (
	"errors"
	"testing"
	"time"

	"hlbot/internal/md"
)

func TestSimpleMAGoldenCross(t *testing.T) {
	ev, err := New(KindSimpleMA, Params{})
	if err != nil {
		t.Fatalf("new strategy: %v", err)
	}

	closes := append(flatCloses(30, 100), 110)
	sig, err := ev.Evaluate(candlesFromCloses(closes), PositionView{})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	if sig.Direction != Long {
		t.Fatalf("expected LONG, got %s", sig.Direction)
	}
	if sig.Strength != 1.0 {
		t.Fatalf("expected strength 1.0 on golden cross, got %v", sig.Strength)
	}
	if sig.Reason != "golden_cross" {
		t.Fatalf("expected golden_cross, got %q", sig.Reason)
	}
	wantTime := testBase.Add(30 * time.Minute)
	if !sig.EvaluatedAt.Equal(wantTime) {
		t.Fatalf("expected EvaluatedAt from newest candle, got %v", sig.EvaluatedAt)
	}
}

func TestSimpleMAFlatBeforeCross(t *testing.T) {
	ev, _ := New(KindSimpleMA, Params{})

	sig, err := ev.Evaluate(candlesFromCloses(flatCloses(31, 100)), PositionView{})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if sig.Direction != Flat {
		t.Fatalf("expected FLAT on flat prices, got %s", sig.Direction)
	}
}

func TestSimpleMADeathCross(t *testing.T) {
	ev, _ := New(KindSimpleMA, Params{})

	closes := append(flatCloses(30, 100), 80)
	sig, err := ev.Evaluate(candlesFromCloses(closes), PositionView{NetSize: 1})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if sig.Direction != Short || sig.Reason != "death_cross" {
		t.Fatalf("expected death_cross SHORT, got %s %q", sig.Direction, sig.Reason)
	}
	if sig.Strength != 0.8 {
		t.Fatalf("expected strength 0.8, got %v", sig.Strength)
	}
}

func TestSimpleMAInsufficientHistory(t *testing.T) {
	ev, _ := New(KindSimpleMA, Params{})

	_, err := ev.Evaluate(candlesFromCloses(flatCloses(10, 100)), PositionView{})
	if !errors.Is(err, md.ErrInsufficientHistory) {
		t.Fatalf("expected ErrInsufficientHistory, got %v", err)
	}
}

func TestSimpleMADeterministic(t *testing.T) {
	ev, _ := New(KindSimpleMA, Params{})
	candles := candlesFromCloses(append(flatCloses(30, 100), 110))

	first, err := ev.Evaluate(candles, PositionView{})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	second, err := ev.Evaluate(candles, PositionView{})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if first != second {
		t.Fatalf("expected identical signals, got %+v vs %+v", first, second)
	}
}
