// Package admit runs pre-dispatch admission checks: payload size limits and
// the OPA policy gate. A blocked request never reaches the rate limiter or
// any provider.
package admit

import (
	"context"

	"github.com/vision-platform/ai-gateway/internal/types"
)

// Result is returned by each admission check.
type Result struct {
	Blocked bool
	Check   string
	Reason  string
}

// Check is the interface all admission checks implement.
type Check interface {
	Name() string
	Enabled() bool
	Admit(ctx context.Context, req *types.Request) Result
}

// Chain runs checks in order, stopping at the first block.
type Chain struct {
	checks []Check
}

// NewChain creates an admission chain from the given checks.
func NewChain(checks ...Check) *Chain {
	return &Chain{checks: checks}
}

// Run executes all enabled checks in order. Returns every result produced
// plus a pointer to the first blocking result, nil when the request is
// admitted.
func (c *Chain) Run(ctx context.Context, req *types.Request) ([]Result, *Result) {
	var results []Result
	for _, check := range c.checks {
		if !check.Enabled() {
			continue
		}
		r := check.Admit(ctx, req)
		results = append(results, r)
		if r.Blocked {
			return results, &r
		}
	}
	return results, nil
}
