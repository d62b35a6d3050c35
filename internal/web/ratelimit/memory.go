package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Memory keeps attempts in process memory
type Memory struct {
	config Config
	now    func() time.Time

	mu        sync.Mutex
	attempts  map[string][]time.Time
	lastSweep time.Time
}

// NewMemory creates an in-memory limiter
func NewMemory(config Config) (*Memory, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	return &Memory{config: config, now: time.Now, attempts: make(map[string][]time.Time)}, nil
}

// Allow records an attempt for key if the window has room
func (m *Memory) Allow(_ context.Context, key string) (*Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	cutoff := now.Add(-m.config.Window)
	m.sweep(now, cutoff)

	recent := prune(m.attempts[key], cutoff)
	res := &Result{Limit: m.config.Limit}
	if len(recent) < m.config.Limit {
		recent = append(recent, now)
		res.Allowed = true
	} else {
		res.RetryAfter = recent[0].Sub(cutoff)
	}
	res.Remaining = m.config.Limit - len(recent)
	m.attempts[key] = recent
	return res, nil
}

// Reset forgets key
func (m *Memory) Reset(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.attempts, key)
	return nil
}

// sweep drops idle keys at most once per window; m.mu must be held
func (m *Memory) sweep(now, cutoff time.Time) {
	if now.Sub(m.lastSweep) < m.config.Window {
		return
	}
	m.lastSweep = now
	for key, times := range m.attempts {
		if len(times) == 0 || !times[len(times)-1].After(cutoff) {
			delete(m.attempts, key)
		}
	}
}

// prune drops attempts at or before cutoff; times is sorted
func prune(times []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(times) && !times[i].After(cutoff) {
		i++
	}
	return times[i:]
}
