package cache

import (
	"context"
	"sync"
	"time"

	"github.com/vision-platform/ai-gateway/internal/types"
)

// Memory is the in-process ResultCache. Expiry is lazy: an entry past its TTL
// is dropped on the read that finds it, no background sweep.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry

	now func() time.Time
}

type memoryEntry struct {
	value     *types.Result
	createdAt time.Time
	ttl       time.Duration
}

func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (m *Memory) Get(_ context.Context, key string) (*types.Result, bool) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if e.ttl > 0 && m.now().Sub(e.createdAt) >= e.ttl {
		m.mu.Lock()
		// Re-check under the write lock; a concurrent Put may have refreshed it.
		if cur, ok := m.entries[key]; ok && cur.createdAt.Equal(e.createdAt) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return nil, false
	}

	return e.value, true
}

func (m *Memory) Put(_ context.Context, key string, value *types.Result, ttl time.Duration) {
	if value == nil {
		return
	}
	m.mu.Lock()
	m.entries[key] = memoryEntry{value: value, createdAt: m.now(), ttl: ttl}
	m.mu.Unlock()
}

// Len reports the number of live entries, counting not-yet-collected expired
// ones.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
