// Package store provides BalanceStore implementations for the ledger.
package store

import (
	"context"
	"sync"
)

// Memory keeps balances in a map. Unknown accounts have a zero balance.
type Memory struct {
	mu       sync.RWMutex
	balances map[string]int64
}

// NewMemory returns a store seeded with the given balances.
func NewMemory(seed map[string]int64) *Memory {
	m := &Memory{balances: make(map[string]int64, len(seed))}
	for id, b := range seed {
		m.balances[id] = b
	}
	return m
}

func (m *Memory) GetBalance(_ context.Context, id string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.balances[id], nil
}

func (m *Memory) SetBalance(_ context.Context, id string, balance int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[id] = balance
	return nil
}

// Snapshot copies all balances.
func (m *Memory) Snapshot() map[string]int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]int64, len(m.balances))
	for id, b := range m.balances {
		out[id] = b
	}
	return out
}

// Total sums every balance.
func (m *Memory) Total() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var total int64
	for _, b := range m.balances {
		total += b
	}
	return total
}

func (m *Memory) Close() error { return nil }
