// Package store persists emitted signals and cooldown state.
package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"bybit-sentinel/internal/models"
)

// SignalStore persists fully-resolved signals.
type SignalStore interface {
	SaveSignal(ctx context.Context, sig models.Signal) error
	ListSignals(ctx context.Context, filter SignalFilter) ([]models.Signal, error)
	Close() error
}

// CooldownStore tracks the per-key signal cooldowns that stop a setup
// instance from signalling twice. At most one live entry exists per
// key, and entries survive restarts when the implementation persists.
type CooldownStore interface {
	IsOnCooldown(ctx context.Context, symbol string, tf models.Timeframe, side models.Side, zoneKey string) (bool, error)
	AddCooldown(ctx context.Context, symbol string, tf models.Timeframe, side models.Side, zoneKey string, minutes int) error
	CleanupExpired(ctx context.Context) (int, error)
}

// SignalFilter narrows ListSignals queries. Zero values are ignored.
type SignalFilter struct {
	Symbol    string
	Timeframe models.Timeframe
	Side      models.Side
	Stage     models.SignalStage
	Since     time.Time
	Limit     int
}

// CooldownKey builds the identity under which a setup instance is
// considered already signalled.
func CooldownKey(symbol string, tf models.Timeframe, side models.Side, zoneKey string) string {
	return fmt.Sprintf("%s|%s|%s|%s", symbol, tf, side, zoneKey)
}

// MemoryCooldowns is an in-process CooldownStore for backtests and
// tests. It does not survive restarts.
type MemoryCooldowns struct {
	mu      sync.Mutex
	expires map[string]time.Time
	now     func() time.Time
}

var (
	_ CooldownStore = (*MemoryCooldowns)(nil)
	_ SignalStore   = (*MemorySignals)(nil)
)

// NewMemoryCooldowns creates an empty in-memory cooldown store.
func NewMemoryCooldowns() *MemoryCooldowns {
	return &MemoryCooldowns{
		expires: make(map[string]time.Time),
		now:     time.Now,
	}
}

// SetClock overrides the time source, letting backtests run cooldowns
// on candle time instead of wall time.
func (m *MemoryCooldowns) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if now != nil {
		m.now = now
	}
}

// IsOnCooldown implements CooldownStore.
func (m *MemoryCooldowns) IsOnCooldown(_ context.Context, symbol string, tf models.Timeframe, side models.Side, zoneKey string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	exp, ok := m.expires[CooldownKey(symbol, tf, side, zoneKey)]
	return ok && exp.After(m.now()), nil
}

// AddCooldown implements CooldownStore.
func (m *MemoryCooldowns) AddCooldown(_ context.Context, symbol string, tf models.Timeframe, side models.Side, zoneKey string, minutes int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expires[CooldownKey(symbol, tf, side, zoneKey)] = m.now().Add(time.Duration(minutes) * time.Minute)
	return nil
}

// CleanupExpired implements CooldownStore.
func (m *MemoryCooldowns) CleanupExpired(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	removed := 0
	for key, exp := range m.expires {
		if !exp.After(now) {
			delete(m.expires, key)
			removed++
		}
	}
	return removed, nil
}

// MemorySignals is an in-process SignalStore for backtests and tests.
type MemorySignals struct {
	mu      sync.RWMutex
	signals []models.Signal
}

// NewMemorySignals creates an empty in-memory signal store.
func NewMemorySignals() *MemorySignals {
	return &MemorySignals{}
}

// SaveSignal implements SignalStore. Saving an existing ID replaces
// the stored signal.
func (m *MemorySignals) SaveSignal(_ context.Context, sig models.Signal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.signals {
		if m.signals[i].ID == sig.ID {
			m.signals[i] = sig
			return nil
		}
	}
	m.signals = append(m.signals, sig)
	return nil
}

// ListSignals implements SignalStore, newest first.
func (m *MemorySignals) ListSignals(_ context.Context, filter SignalFilter) ([]models.Signal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.Signal
	for i := len(m.signals) - 1; i >= 0; i-- {
		sig := m.signals[i]
		if filter.Symbol != "" && sig.Symbol != filter.Symbol {
			continue
		}
		if filter.Timeframe != "" && sig.Timeframe != filter.Timeframe {
			continue
		}
		if filter.Side != "" && sig.Side != filter.Side {
			continue
		}
		if filter.Stage != "" && sig.Stage != filter.Stage {
			continue
		}
		if !filter.Since.IsZero() && sig.Timestamp.Before(filter.Since) {
			continue
		}
		out = append(out, sig)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

// Close implements SignalStore.
func (m *MemorySignals) Close() error {
	return nil
}
