package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process Limiter. State is lost on restart and is not
// shared between processes; use Redis for multi-instance deployments.
type Memory struct {
	mu       sync.Mutex
	attempts map[string][]time.Time
	maxAge   time.Duration
	now      func() time.Time
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewMemory returns a limiter that forgets keys idle for longer than maxAge,
// sweeping every cleanupInterval.
func NewMemory(maxAge, cleanupInterval time.Duration) *Memory {
	m := &Memory{
		attempts: map[string][]time.Time{},
		maxAge:   maxAge,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
	if cleanupInterval > 0 {
		go m.cleanupLoop(cleanupInterval)
	}
	return m
}

// Allow purges attempts older than the window, rejects when the remaining
// count reaches the maximum, and records the attempt otherwise.
func (m *Memory) Allow(_ context.Context, key string, p Policy) (bool, error) {
	now := m.now()
	cutoff := now.Add(-p.Window)

	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.attempts[key][:0]
	for _, ts := range m.attempts[key] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= p.Max {
		m.attempts[key] = kept
		return false, nil
	}
	m.attempts[key] = append(kept, now)
	return true, nil
}

// Reset forgets all attempts for key.
func (m *Memory) Reset(key string) {
	m.mu.Lock()
	delete(m.attempts, key)
	m.mu.Unlock()
}

func (m *Memory) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.sweep()
		case <-m.stopCh:
			return
		}
	}
}

func (m *Memory) sweep() {
	cutoff := m.now().Add(-m.maxAge)
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, ts := range m.attempts {
		if len(ts) == 0 || ts[len(ts)-1].Before(cutoff) {
			delete(m.attempts, k)
		}
	}
}

// Stop stops the cleanup goroutine.
func (m *Memory) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}
