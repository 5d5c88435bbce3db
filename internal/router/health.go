package router

import (
	"sync"
	"time"
)

// HealthTracker manages circuit breakers for all providers. Breakers are
// per-provider with their own locks, so outcome reporting from concurrent
// requests does not funnel through a single global lock.
type HealthTracker struct {
	mu       sync.RWMutex
	breakers map[string]*CircuitBreaker

	failureThreshold int
	failureWindow    time.Duration
	cooldown         time.Duration
}

// NewHealthTracker creates a health tracker with the given circuit breaker config.
func NewHealthTracker(failureThreshold int, failureWindow, cooldown time.Duration) *HealthTracker {
	return &HealthTracker{
		breakers:         make(map[string]*CircuitBreaker),
		failureThreshold: failureThreshold,
		failureWindow:    failureWindow,
		cooldown:         cooldown,
	}
}

// GetBreaker returns (or lazily creates) the circuit breaker for a provider.
func (ht *HealthTracker) GetBreaker(provider string) *CircuitBreaker {
	ht.mu.RLock()
	cb, ok := ht.breakers[provider]
	ht.mu.RUnlock()
	if ok {
		return cb
	}

	ht.mu.Lock()
	defer ht.mu.Unlock()
	// Double-check after acquiring write lock
	if cb, ok := ht.breakers[provider]; ok {
		return cb
	}
	cb = NewCircuitBreaker(ht.failureThreshold, ht.failureWindow, ht.cooldown)
	ht.breakers[provider] = cb
	return cb
}

// IsReady reports whether the provider belongs in the healthy portion of a
// fallback chain.
func (ht *HealthTracker) IsReady(provider string) bool {
	return ht.GetBreaker(provider).Ready()
}

// StateOf returns the provider's current breaker state.
func (ht *HealthTracker) StateOf(provider string) CircuitState {
	return ht.GetBreaker(provider).State()
}

// RecordSuccess records a successful request for the provider.
func (ht *HealthTracker) RecordSuccess(provider string) {
	ht.GetBreaker(provider).RecordSuccess()
}

// RecordFailure records a failed request for the provider.
func (ht *HealthTracker) RecordFailure(provider string) {
	ht.GetBreaker(provider).RecordFailure()
}
