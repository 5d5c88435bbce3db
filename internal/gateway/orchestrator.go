package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vision-platform/ai-gateway/internal/admit"
	"github.com/vision-platform/ai-gateway/internal/analytics"
	"github.com/vision-platform/ai-gateway/internal/assemble"
	"github.com/vision-platform/ai-gateway/internal/cache"
	"github.com/vision-platform/ai-gateway/internal/config"
	"github.com/vision-platform/ai-gateway/internal/langdetect"
	"github.com/vision-platform/ai-gateway/internal/ratelimit"
	"github.com/vision-platform/ai-gateway/internal/router"
	"github.com/vision-platform/ai-gateway/internal/telemetry"
	"github.com/vision-platform/ai-gateway/internal/types"
)

// Outcome is the terminal state of one orchestrated request. Code is empty
// on success and carries the caller-facing error code otherwise.
type Outcome struct {
	Result             *types.Result
	Code               string
	Message            string
	ProvidersAttempted []string
	CacheHit           bool
	// RateLimit is set when Code is rate_limited, for response headers.
	RateLimit *RateDenial
	// Err preserves the last adapter error for logging.
	Err error
}

func (o *Outcome) Success() bool { return o.Code == "" && o.Result != nil }

// RateDenial carries limiter metadata for 429 responses.
type RateDenial struct {
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// OrchestratorParams collects the orchestrator's collaborators. Admission,
// Metrics, and Sink may be nil; everything else is required.
type OrchestratorParams struct {
	Registry  *router.Registry
	Cache     cache.ResultCache
	Limiter   *ratelimit.Limiter
	Budget    *ratelimit.BudgetTracker
	Admission *admit.Chain
	Assembler *assemble.Assembler
	Config    func() *config.Config
	Metrics   *telemetry.Metrics
	Sink      analytics.Sink
	Logger    *slog.Logger
}

// Orchestrator drives one request through admission, rate limiting, cache
// lookup, and the provider fallback chain.
type Orchestrator struct {
	registry  *router.Registry
	cache     cache.ResultCache
	limiter   *ratelimit.Limiter
	budget    *ratelimit.BudgetTracker
	admission *admit.Chain
	assembler *assemble.Assembler
	cfg       func() *config.Config
	metrics   *telemetry.Metrics
	sink      analytics.Sink
	logger    *slog.Logger
}

func NewOrchestrator(p OrchestratorParams) *Orchestrator {
	return &Orchestrator{
		registry:  p.Registry,
		cache:     p.Cache,
		limiter:   p.Limiter,
		budget:    p.Budget,
		admission: p.Admission,
		assembler: p.Assembler,
		cfg:       p.Config,
		metrics:   p.Metrics,
		sink:      p.Sink,
		logger:    p.Logger,
	}
}

// Execute runs the request to a terminal state and records telemetry and
// analytics for it. One call, one outcome; fallback happens inside.
func (g *Orchestrator) Execute(ctx context.Context, req *types.Request) *Outcome {
	started := time.Now()
	out := g.run(ctx, req)
	latency := time.Since(started)

	outcome := out.Code
	if out.Success() {
		outcome = "success"
	}
	cacheLabel := telemetry.CacheMiss
	switch {
	case !req.Options.CacheAllowed():
		cacheLabel = telemetry.CacheBypass
	case out.CacheHit:
		cacheLabel = telemetry.CacheHit
	}

	if g.metrics != nil {
		g.metrics.RecordRequest(string(req.Capability), outcome, cacheLabel, float64(latency.Milliseconds()))
	}

	if g.sink != nil {
		ev := analytics.Event{
			CallerID:           req.CallerID,
			Capability:         string(req.Capability),
			Outcome:            outcome,
			ProvidersAttempted: out.ProvidersAttempted,
			CacheHit:           out.CacheHit,
			LatencyMs:          latency.Milliseconds(),
		}
		if out.Result != nil {
			ev.Provider = out.Result.Provider
			ev.PromptTokens = out.Result.Usage.PromptTokens
			ev.CompletionTokens = out.Result.Usage.CompletionTokens
		}
		g.sink.Record(ev)
	}

	g.logger.Info("request completed",
		"request_id", req.RequestID,
		"caller", req.CallerID,
		"capability", req.Capability,
		"outcome", outcome,
		"providers_attempted", out.ProvidersAttempted,
		"cache", cacheLabel,
		"duration_ms", latency.Milliseconds(),
	)
	return out
}

func (g *Orchestrator) run(ctx context.Context, req *types.Request) *Outcome {
	if err := req.Validate(); err != nil {
		return &Outcome{Code: types.CodeInvalidInput, Message: err.Error()}
	}

	if g.admission != nil {
		if _, blocked := g.admission.Run(ctx, req); blocked != nil {
			return &Outcome{Code: types.CodeInvalidInput, Message: blocked.Reason}
		}
	}

	cfg := g.cfg()

	decision := g.limiter.Allow(req.CallerID, req.Capability)
	if !decision.Allowed {
		if g.metrics != nil {
			g.metrics.RecordRateLimitDenial(string(req.Capability))
		}
		return &Outcome{
			Code:    types.CodeRateLimited,
			Message: "rate limit exceeded",
			RateLimit: &RateDenial{
				Limit:      g.limiter.Limit(req.Capability),
				Remaining:  decision.Remaining,
				ResetAt:    decision.ResetAt,
				RetryAfter: decision.RetryAfter,
			},
		}
	}

	if limit := cfg.RateLimit.DailyTokenBudget; limit > 0 {
		res, _ := g.budget.CheckDailySpend(ctx, req.CallerID, limit)
		if !res.Allowed {
			if g.metrics != nil {
				g.metrics.RecordRateLimitDenial(string(req.Capability))
			}
			now := time.Now().UTC()
			reset := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, time.UTC)
			return &Outcome{
				Code:    types.CodeRateLimited,
				Message: fmt.Sprintf("daily token budget exhausted (%d of %d)", res.SpentTokens, res.LimitTokens),
				RateLimit: &RateDenial{
					Limit:      g.limiter.Limit(req.Capability),
					Remaining:  decision.Remaining,
					ResetAt:    reset,
					RetryAfter: reset.Sub(now),
				},
			}
		}
	}

	var key string
	if req.Options.CacheAllowed() {
		key = cache.Fingerprint(req, cfg.Cache.CallerScoped)
		if result, ok := g.cache.Get(ctx, key); ok {
			return &Outcome{Result: result, CacheHit: true, ProvidersAttempted: []string{}}
		}
	}

	prep := g.prepare(req)

	chain := g.registry.ChainFor(req.Capability, req.Options.PreferredProvider)
	if len(chain) == 0 {
		return &Outcome{
			Code:               types.CodeAllProvidersFailed,
			Message:            "no providers configured for " + string(req.Capability),
			ProvidersAttempted: []string{},
		}
	}

	timeout := req.Options.AttemptTimeout(cfg.Routing.DefaultTimeout)
	attempted := make([]string, 0, len(chain))
	var lastErr error

	for _, d := range chain {
		if ctx.Err() != nil {
			return &Outcome{Code: types.CodeCancelled, Message: "request cancelled", ProvidersAttempted: attempted, Err: ctx.Err()}
		}

		attempted = append(attempted, d.Name)
		result, err := g.attempt(ctx, d, prep.req, timeout)
		if err == nil {
			g.reportOutcome(d.Name, true)
			g.finishResult(ctx, prep, result, key, cfg)
			return &Outcome{Result: result, ProvidersAttempted: attempted}
		}
		lastErr = err

		// The caller hanging up is not the provider's fault; leave the
		// breaker alone and stop here.
		if ctx.Err() != nil {
			return &Outcome{Code: types.CodeCancelled, Message: "request cancelled", ProvidersAttempted: attempted, Err: err}
		}

		g.reportOutcome(d.Name, false)

		kind := types.KindOf(err)
		g.logger.Warn("provider attempt failed",
			"request_id", req.RequestID,
			"provider", d.Name,
			"kind", kind,
			"error", err,
		)
		if kind.Terminal() {
			return &Outcome{Code: types.CodeInvalidInput, Message: err.Error(), ProvidersAttempted: attempted, Err: err}
		}
	}

	return &Outcome{
		Code:               types.CodeAllProvidersFailed,
		Message:            lastErr.Error(),
		ProvidersAttempted: attempted,
		Err:                lastErr,
	}
}

// attempt invokes one provider under the per-attempt timeout.
func (g *Orchestrator) attempt(ctx context.Context, d router.Descriptor, req *types.Request, timeout time.Duration) (*types.Result, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	started := time.Now()
	result, err := d.Adapter.Invoke(attemptCtx, req)
	if g.metrics != nil {
		g.metrics.RecordAttempt(d.Name, err == nil, float64(time.Since(started).Milliseconds()))
	}
	return result, err
}

func (g *Orchestrator) reportOutcome(provider string, success bool) {
	g.registry.ReportOutcome(provider, success)
	if g.metrics != nil {
		g.metrics.SetBreakerState(provider, float64(g.registry.StateOf(provider)))
	}
}

// prepared is the request after pre-dispatch enrichment, plus what the
// enrichment learned so the result can be annotated afterwards.
type prepared struct {
	req       *types.Request
	detected  string
	assembled *assemble.AssembledContext
}

// prepare resolves "auto" source languages and assembles document context.
// The inbound request is never mutated; enrichment works on shallow copies so
// the cache key and any retries see the original payload.
func (g *Orchestrator) prepare(req *types.Request) prepared {
	switch {
	case req.Capability == types.CapabilityTranslate && req.Translate.SourceLang == "auto":
		detected, confidence := langdetect.Detect(req.Translate.Text)
		copied := *req
		payload := *req.Translate
		payload.SourceLang = detected
		copied.Translate = &payload
		g.logger.Debug("detected source language", "lang", detected, "confidence", confidence)
		return prepared{req: &copied, detected: detected}

	case req.Capability == types.CapabilityGenerate && len(req.Generate.Documents) > 0:
		assembled := g.assembler.Assemble(req.Generate)
		copied := *req
		payload := *req.Generate
		payload.Prompt = assembled.Prompt
		payload.Documents = nil
		copied.Generate = &payload
		return prepared{req: &copied, assembled: assembled}
	}
	return prepared{req: req}
}

// finishResult annotates the provider result with enrichment metadata, then
// writes it through to the cache and charges the daily budget.
func (g *Orchestrator) finishResult(ctx context.Context, prep prepared, result *types.Result, key string, cfg *config.Config) {
	if prep.detected != "" && result.Translation != nil {
		result.Translation.DetectedLang = prep.detected
	}
	if prep.assembled != nil && result.Generation != nil {
		result.Generation.Citations = prep.assembled.Citations
		result.Generation.ContextTokens = prep.assembled.TokenTotal
	}

	if key != "" {
		g.cache.Put(ctx, key, result, cfg.Cache.TTL)
	}

	if cfg.RateLimit.DailyTokenBudget > 0 && result.Usage.TotalTokens > 0 {
		if err := g.budget.RecordSpend(ctx, prep.req.CallerID, int64(result.Usage.TotalTokens)); err != nil {
			g.logger.Warn("failed to record token spend", "caller", prep.req.CallerID, "error", err)
		}
	}
}
