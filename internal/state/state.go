// Package state checkpoints per-pair lifecycle so a restart resumes where
// the last run stopped instead of re-entering open positions.
package state

import (
	"encoding/json"
	"os"
	"sync"
	"time"
)

// PairState is one (symbol, strategy) pair's durable lifecycle.
type PairState struct {
	Symbol        string    `json:"symbol"`
	StrategyID    string    `json:"strategy_id"`
	MachineState  string    `json:"machine_state"`
	EntryPrice    float64   `json:"entry_price"`
	NetSize       float64   `json:"net_size"`
	LiveOrderID   string    `json:"live_order_id,omitempty"`
	LastEvaluated time.Time `json:"last_evaluated"`
}

type Snapshot struct {
	Pairs      map[string]PairState `json:"pairs"` // keyed symbol|strategy
	PeakEquity float64              `json:"peak_equity"`
	SavedAt    time.Time            `json:"saved_at"`
}

type Store struct {
	mu       sync.RWMutex
	snapshot Snapshot
}

func NewStore() *Store {
	return &Store{
		snapshot: Snapshot{Pairs: map[string]PairState{}},
	}
}

func Key(symbol, strategyID string) string {
	return symbol + "|" + strategyID
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	copy := s.snapshot
	copy.Pairs = make(map[string]PairState, len(s.snapshot.Pairs))
	for k, v := range s.snapshot.Pairs {
		copy.Pairs[k] = v
	}
	return copy
}

func (s *Store) Pair(symbol, strategyID string) (PairState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ps, ok := s.snapshot.Pairs[Key(symbol, strategyID)]
	return ps, ok
}

func (s *Store) SetPair(ps PairState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot.Pairs[Key(ps.Symbol, ps.StrategyID)] = ps
}

func (s *Store) SetPeakEquity(equity float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if equity > s.snapshot.PeakEquity {
		s.snapshot.PeakEquity = equity
	}
}

func (s *Store) PeakEquity() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot.PeakEquity
}

func (s *Store) Save(path string) error {
	s.mu.Lock()
	s.snapshot.SavedAt = time.Now().UTC()
	s.mu.Unlock()

	s.mu.RLock()
	defer s.mu.RUnlock()
	data, err := json.MarshalIndent(s.snapshot, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (s *Store) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return err
	}
	if snapshot.Pairs == nil {
		snapshot.Pairs = map[string]PairState{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = snapshot
	return nil
}
