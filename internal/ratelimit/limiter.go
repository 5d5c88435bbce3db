package ratelimit

import (
	"math"
	"sync"
	"time"

	"github.com/vision-platform/ai-gateway/internal/config"
	"github.com/vision-platform/ai-gateway/internal/types"
)

// Decision is the outcome of a rate limit check.
type Decision struct {
	Allowed    bool
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// Limiter is an in-process token-bucket limiter keyed by caller and
// capability. Buckets refill lazily at check time; state never needs a
// background goroutine.
type Limiter struct {
	mu      sync.RWMutex
	limits  map[string]config.BucketConfig
	buckets map[string]*bucket

	now func() time.Time
}

type bucket struct {
	mu           sync.Mutex
	tokens       float64
	lastRefillAt time.Time
}

func NewLimiter(limits map[string]config.BucketConfig) *Limiter {
	return &Limiter{
		limits:  limits,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// UpdateLimits swaps the bucket configuration on config reload. Live buckets
// keep their token counts; the new burst/refill apply from the next check.
func (l *Limiter) UpdateLimits(limits map[string]config.BucketConfig) {
	l.mu.Lock()
	l.limits = limits
	l.mu.Unlock()
}

// Allow spends one token from the caller's bucket for the capability.
// Tokens stay clamped to [0, burst]; refill is min(burst, tokens +
// elapsed*rate) computed at check time.
func (l *Limiter) Allow(callerID string, capability types.Capability) Decision {
	limit := l.limitFor(capability)
	b := l.bucketFor(callerID + "|" + string(capability))

	b.mu.Lock()
	defer b.mu.Unlock()

	now := l.now()
	if b.lastRefillAt.IsZero() {
		b.tokens = limit.Burst
	} else {
		elapsed := now.Sub(b.lastRefillAt).Seconds()
		b.tokens = math.Min(limit.Burst, b.tokens+elapsed*limit.RefillRate)
	}
	b.lastRefillAt = now

	var d Decision
	if b.tokens >= 1 {
		b.tokens--
		d.Allowed = true
	} else if limit.RefillRate > 0 {
		need := 1 - b.tokens
		d.RetryAfter = time.Duration(need / limit.RefillRate * float64(time.Second))
	}

	d.Remaining = int(b.tokens)
	if limit.RefillRate > 0 {
		untilFull := (limit.Burst - b.tokens) / limit.RefillRate
		d.ResetAt = now.Add(time.Duration(untilFull * float64(time.Second)))
	} else {
		d.ResetAt = now
	}
	return d
}

// Limit returns the burst capacity configured for the capability, for
// response headers.
func (l *Limiter) Limit(capability types.Capability) int {
	return int(l.limitFor(capability).Burst)
}

func (l *Limiter) limitFor(capability types.Capability) config.BucketConfig {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if limit, ok := l.limits[string(capability)]; ok {
		return limit
	}
	if limit, ok := l.limits["default"]; ok {
		return limit
	}
	return config.BucketConfig{Burst: 30, RefillRate: 0.5}
}

func (l *Limiter) bucketFor(key string) *bucket {
	l.mu.RLock()
	b, ok := l.buckets[key]
	l.mu.RUnlock()
	if ok {
		return b
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok := l.buckets[key]; ok {
		return b
	}
	b = &bucket{}
	l.buckets[key] = b
	return b
}
