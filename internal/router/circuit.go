package router

import (
	"sync"
	"time"
)

// CircuitState represents the state of a circuit breaker.
type CircuitState int

const (
	StateClosed   CircuitState = iota // healthy — requests flow
	StateOpen                         // unhealthy — skipped until cooldown
	StateHalfOpen                     // probing — one trial call decides
)

func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// CircuitBreaker tracks consecutive failures per provider. The streak only
// counts failures inside the sliding failure window; a success, or a quiet
// stretch longer than the window, resets it. After the streak reaches the
// threshold the breaker opens for the cooldown, then goes half-open: the next
// call is the trial, and its outcome closes or reopens the breaker.
type CircuitBreaker struct {
	mu sync.Mutex

	state       CircuitState
	failures    int
	lastFailure time.Time
	openedAt    time.Time

	// Config
	failureThreshold int
	failureWindow    time.Duration
	cooldown         time.Duration
}

// NewCircuitBreaker creates a circuit breaker with the given thresholds.
func NewCircuitBreaker(failureThreshold int, failureWindow, cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		state:            StateClosed,
		failureThreshold: failureThreshold,
		failureWindow:    failureWindow,
		cooldown:         cooldown,
	}
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.currentState()
}

// currentState returns state, transitioning OPEN→HALF_OPEN once the cooldown
// has elapsed. Must be called with mu held.
func (cb *CircuitBreaker) currentState() CircuitState {
	if cb.state == StateOpen && time.Since(cb.openedAt) >= cb.cooldown {
		cb.state = StateHalfOpen
	}
	return cb.state
}

// Ready reports whether the provider should sit in the healthy portion of a
// fallback chain. Half-open counts as ready: the next call through is the
// trial probe.
func (cb *CircuitBreaker) Ready() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.currentState() != StateOpen
}

// RecordSuccess records a successful request.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.currentState() {
	case StateHalfOpen:
		// Probe succeeded — close the circuit
		cb.state = StateClosed
		cb.failures = 0
	case StateClosed:
		// Success breaks the consecutive-failure streak.
		cb.failures = 0
	}
}

// RecordFailure records a failed request.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := time.Now()
	if !cb.lastFailure.IsZero() && now.Sub(cb.lastFailure) > cb.failureWindow {
		// The previous streak fell out of the window.
		cb.failures = 0
	}
	cb.failures++
	cb.lastFailure = now

	switch cb.currentState() {
	case StateClosed:
		if cb.failures >= cb.failureThreshold {
			cb.state = StateOpen
			cb.openedAt = now
		}
	case StateHalfOpen:
		// Probe failed — reopen
		cb.state = StateOpen
		cb.openedAt = now
	}
}

// Reset returns the breaker to closed with a clean slate.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.failures = 0
	cb.lastFailure = time.Time{}
}
