// Package results persists solved dispatch units. A unit is written as a whole
// or not at all; failed units are never written.
package results

import (
	"context"
	"sort"
	"sync"

	"github.com/kilianp07/truckhub/core/model"
)

// Query filters stored units. Zero fields match everything.
type Query struct {
	RunID    string
	Scenario string
	Strategy string
	Week     int
}

// Match reports whether u passes the filter.
func (q Query) Match(u *model.UnitResult) bool {
	switch {
	case q.RunID != "" && u.RunID != q.RunID:
		return false
	case q.Scenario != "" && u.Key.Scenario != q.Scenario:
		return false
	case q.Strategy != "" && u.Key.Strategy != q.Strategy:
		return false
	case q.Week != 0 && u.Key.Week != q.Week:
		return false
	}
	return true
}

// Store persists unit results.
type Store interface {
	WriteUnit(ctx context.Context, u *model.UnitResult) error
	Units(ctx context.Context, q Query) ([]*model.UnitResult, error)
	Close() error
}

// Sort orders units by scenario, strategy and week.
func Sort(units []*model.UnitResult) {
	sort.SliceStable(units, func(i, j int) bool {
		a, b := units[i].Key, units[j].Key
		if a.Scenario != b.Scenario {
			return a.Scenario < b.Scenario
		}
		if a.Strategy != b.Strategy {
			return a.Strategy < b.Strategy
		}
		return a.Week < b.Week
	})
}

// MemoryStore keeps units in memory. A unit written twice replaces the
// earlier copy.
type MemoryStore struct {
	mu    sync.RWMutex
	units map[unitID]*model.UnitResult
}

type unitID struct {
	run string
	key model.UnitKey
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{units: make(map[unitID]*model.UnitResult)}
}

func (s *MemoryStore) WriteUnit(_ context.Context, u *model.UnitResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.units[unitID{u.RunID, u.Key}] = u
	return nil
}

func (s *MemoryStore) Units(_ context.Context, q Query) ([]*model.UnitResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.UnitResult
	for _, u := range s.units {
		if q.Match(u) {
			out = append(out, u)
		}
	}
	Sort(out)
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }
