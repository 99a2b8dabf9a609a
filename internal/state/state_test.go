package state

import (
	"path/filepath"
	"testing"
	"time"
)

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")

	store := NewStore()
	store.SetPair(PairState{
		Symbol:        "BTC",
		StrategyID:    "simple_ma",
		MachineState:  "IN_POSITION",
		EntryPrice:    30125.5,
		NetSize:       0.01,
		LiveOrderID:   "c-1",
		LastEvaluated: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	})
	store.SetPeakEquity(12500)

	if err := store.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded := NewStore()
	if err := loaded.Load(path); err != nil {
		t.Fatalf("load: %v", err)
	}

	ps, ok := loaded.Pair("BTC", "simple_ma")
	if !ok {
		t.Fatalf("expected pair state after load")
	}
	if ps.MachineState != "IN_POSITION" || ps.EntryPrice != 30125.5 {
		t.Fatalf("unexpected pair state: %+v", ps)
	}
	if loaded.PeakEquity() != 12500 {
		t.Fatalf("expected peak equity 12500, got %v", loaded.PeakEquity())
	}
}

func TestSetPeakEquityOnlyRises(t *testing.T) {
	store := NewStore()
	store.SetPeakEquity(1000)
	store.SetPeakEquity(900)
	if store.PeakEquity() != 1000 {
		t.Fatalf("expected peak to hold at 1000, got %v", store.PeakEquity())
	}
}

func TestLoadMissingFileFails(t *testing.T) {
	store := NewStore()
	if err := store.Load(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatalf("expected error for missing checkpoint")
	}
}
