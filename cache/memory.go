// Package cache provides implementations of warrant.Cache for resolved
// user permissions.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/xraph/warrant"
)

// Compile-time interface check.
var _ warrant.Cache = (*Memory)(nil)

// Memory is an in-memory cache with TTL-based expiration and a size bound.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]*entry
	ttl     time.Duration
	maxSize int
}

type entry struct {
	res       *warrant.Resolution
	expiresAt time.Time
}

// MemoryOption configures the memory cache.
type MemoryOption func(*Memory)

// WithTTL sets the cache entry time-to-live.
func WithTTL(ttl time.Duration) MemoryOption {
	return func(m *Memory) { m.ttl = ttl }
}

// WithMaxSize sets the maximum number of cache entries.
func WithMaxSize(n int) MemoryOption {
	return func(m *Memory) { m.maxSize = n }
}

// NewMemory creates a new in-memory cache.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		entries: make(map[string]*entry),
		ttl:     time.Minute,
		maxSize: 10000,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns a cached resolution.
func (m *Memory) Get(_ context.Context, userID string) (*warrant.Resolution, bool) {
	m.mu.RLock()
	e, ok := m.entries[userID]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		m.mu.Lock()
		if cur, ok := m.entries[userID]; ok && cur == e {
			delete(m.entries, userID)
		}
		m.mu.Unlock()
		return nil, false
	}
	return e.res, true
}

// Set stores a resolution in the cache.
func (m *Memory) Set(_ context.Context, userID string, res *warrant.Resolution) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[userID]; !exists && len(m.entries) >= m.maxSize {
		m.evictExpired()
		if len(m.entries) >= m.maxSize {
			m.evictOne()
		}
	}

	m.entries[userID] = &entry{
		res:       res,
		expiresAt: time.Now().Add(m.ttl),
	}
}

// InvalidateUser removes the cached resolution of one user.
func (m *Memory) InvalidateUser(_ context.Context, userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, userID)
}

// InvalidateAll removes every cached resolution.
func (m *Memory) InvalidateAll(_ context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]*entry)
}

// Len returns the number of entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// evictExpired removes all expired entries. Must hold write lock.
func (m *Memory) evictExpired() {
	now := time.Now()
	for k, e := range m.entries {
		if now.After(e.expiresAt) {
			delete(m.entries, k)
		}
	}
}

// evictOne removes one arbitrary entry. Must hold write lock.
func (m *Memory) evictOne() {
	for k := range m.entries {
		delete(m.entries, k)
		return
	}
}
