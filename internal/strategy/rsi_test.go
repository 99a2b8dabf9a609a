package strategy

import "testing"

func TestRSIOversoldCrossEntersOnce(t *testing.T) {
	ev, err := New(KindRSI, Params{RSIPeriod: 5})
	if err != nil {
		t.Fatalf("new strategy: %v", err)
	}

	closes := []float64{100, 101, 102, 103, 104, 105, 104, 94}
	sig, err := ev.Evaluate(candlesFromCloses(closes), PositionView{})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if sig.Direction != Long || sig.Reason != "rsi_oversold_cross" {
		t.Fatalf("expected oversold cross LONG, got %s %q", sig.Direction, sig.Reason)
	}
	if sig.Strength != 0.8 {
		t.Fatalf("expected strength 0.8, got %v", sig.Strength)
	}

	// Still below the threshold on the next candle: no second entry.
	closes = append(closes, 90)
	sig, err = ev.Evaluate(candlesFromCloses(closes), PositionView{})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if sig.Direction != Flat {
		t.Fatalf("expected FLAT while already oversold, got %s %q", sig.Direction, sig.Reason)
	}
}

func TestRSIOverboughtCrossExits(t *testing.T) {
	ev, _ := New(KindRSI, Params{RSIPeriod: 5})

	closes := []float64{100, 99, 98, 97, 96, 95, 96, 106}
	sig, err := ev.Evaluate(candlesFromCloses(closes), PositionView{NetSize: 1})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if sig.Direction != Short || sig.Reason != "rsi_overbought_cross" {
		t.Fatalf("expected overbought cross SHORT, got %s %q", sig.Direction, sig.Reason)
	}
}
