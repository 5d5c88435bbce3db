package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// BudgetResult is the outcome of a daily token-budget check.
type BudgetResult struct {
	Allowed     bool
	SpentTokens int64
	LimitTokens int64
}

// BudgetTracker tracks daily provider-token spend per caller via Redis. It is
// a second admission gate behind the request bucket: cheap requests still pass
// the bucket, but a caller who burned their daily tokens is cut off.
type BudgetTracker struct {
	rdb *redis.Client
}

// NewBudgetTracker creates a budget tracker. If rdb is nil, all checks pass.
func NewBudgetTracker(rdb *redis.Client) *BudgetTracker {
	return &BudgetTracker{rdb: rdb}
}

func dailyBudgetKey(callerID string) string {
	day := time.Now().UTC().Format("2006-01-02")
	return fmt.Sprintf("gw:budget:daily:%s:%s", callerID, day)
}

// CheckDailySpend reports whether the caller is under their daily token limit.
// Redis errors fail open: budget enforcement is advisory, not load-bearing.
func (b *BudgetTracker) CheckDailySpend(ctx context.Context, callerID string, limitTokens int64) (BudgetResult, error) {
	if b.rdb == nil || limitTokens <= 0 {
		return BudgetResult{Allowed: true, LimitTokens: limitTokens}, nil
	}

	key := dailyBudgetKey(callerID)
	spent, err := b.rdb.Get(ctx, key).Int64()
	if err != nil && err != redis.Nil {
		return BudgetResult{Allowed: true, LimitTokens: limitTokens}, nil
	}

	return BudgetResult{
		Allowed:     spent < limitTokens,
		SpentTokens: spent,
		LimitTokens: limitTokens,
	}, nil
}

// RecordSpend adds provider-reported token usage to the caller's daily
// counter.
func (b *BudgetTracker) RecordSpend(ctx context.Context, callerID string, tokens int64) error {
	if b.rdb == nil || tokens <= 0 {
		return nil
	}

	key := dailyBudgetKey(callerID)
	pipe := b.rdb.Pipeline()
	pipe.IncrBy(ctx, key, tokens)
	// Expire at end of day UTC + 1 hour buffer
	now := time.Now().UTC()
	endOfDay := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, time.UTC)
	ttl := endOfDay.Sub(now) + time.Hour
	pipe.Expire(ctx, key, ttl)
	_, err := pipe.Exec(ctx)
	return err
}
