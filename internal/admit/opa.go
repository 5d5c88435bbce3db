package admit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/open-policy-agent/opa/rego"

	"github.com/vision-platform/ai-gateway/internal/config"
	"github.com/vision-platform/ai-gateway/internal/types"
)

// PolicyInput is the document sent to OPA for evaluation.
type PolicyInput struct {
	Caller  PolicyCaller  `json:"caller"`
	Request PolicyRequest `json:"request"`
	Time    PolicyTime    `json:"time"`
}

type PolicyCaller struct {
	ID string `json:"id"`
}

type PolicyRequest struct {
	Capability        string `json:"capability"`
	PreferredProvider string `json:"preferred_provider"`
	TargetLang        string `json:"target_lang"`
	TextChars         int    `json:"text_chars"`
	DocumentCount     int    `json:"document_count"`
}

type PolicyTime struct {
	Hour int    `json:"hour"`
	Day  string `json:"day"`
}

// PolicyGate implements Check using OPA. Policies decide per caller and
// capability; evaluation failures block (fail closed).
type PolicyGate struct {
	mu       sync.RWMutex
	prepared *rego.PreparedEvalQuery
	cfg      func() config.PolicyConfig
}

// NewPolicyGate creates a policy gate. Call Load to compile policies.
func NewPolicyGate(cfg func() config.PolicyConfig) *PolicyGate {
	return &PolicyGate{cfg: cfg}
}

func (g *PolicyGate) Name() string  { return "policy" }
func (g *PolicyGate) Enabled() bool { return g.cfg().Enabled }

// Load compiles Rego modules from the configured bundle path.
func (g *PolicyGate) Load() error {
	cfg := g.cfg()
	modules, err := LoadRegoFiles(cfg.BundlePath)
	if err != nil {
		return fmt.Errorf("load rego files: %w", err)
	}
	if len(modules) == 0 {
		slog.Warn("no rego files found", "path", cfg.BundlePath)
		return nil
	}
	return g.LoadFromModules(modules)
}

// LoadFromModules compiles policies from in-memory module sources.
func (g *PolicyGate) LoadFromModules(modules map[string]string) error {
	args := []func(*rego.Rego){
		rego.Query("[data.gateway.admission.allow, data.gateway.admission.reason]"),
	}
	for name, src := range modules {
		args = append(args, rego.Module(name, src))
	}

	prepared, err := rego.New(args...).PrepareForEval(context.Background())
	if err != nil {
		return fmt.Errorf("prepare rego: %w", err)
	}

	g.mu.Lock()
	g.prepared = &prepared
	g.mu.Unlock()

	slog.Info("admission policies loaded", "modules", len(modules))
	return nil
}

// Evaluate runs the policy against the given input.
func (g *PolicyGate) Evaluate(ctx context.Context, input PolicyInput) (bool, string, error) {
	g.mu.RLock()
	prepared := g.prepared
	g.mu.RUnlock()

	if prepared == nil {
		// Enabled but nothing loaded — fail closed.
		return false, "no policies loaded", nil
	}

	timeout := g.cfg().EvaluationTimeout
	if timeout == 0 {
		timeout = 100 * time.Millisecond
	}
	evalCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	results, err := prepared.Eval(evalCtx, rego.EvalInput(input))
	if err != nil {
		return false, fmt.Sprintf("policy evaluation error: %v", err), err
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return false, "no policy result", nil
	}

	// Result is [allow, reason]
	arr, ok := results[0].Expressions[0].Value.([]interface{})
	if !ok || len(arr) < 2 {
		return false, "unexpected policy result format", nil
	}

	allowed, _ := arr[0].(bool)
	reason, _ := arr[1].(string)
	return allowed, reason, nil
}

// Admit implements Check.
func (g *PolicyGate) Admit(ctx context.Context, req *types.Request) Result {
	now := time.Now().UTC()
	input := PolicyInput{
		Caller: PolicyCaller{ID: req.CallerID},
		Request: PolicyRequest{
			Capability:        string(req.Capability),
			PreferredProvider: req.Options.PreferredProvider,
		},
		Time: PolicyTime{Hour: now.Hour(), Day: now.Weekday().String()},
	}
	switch req.Capability {
	case types.CapabilityTranslate:
		input.Request.TargetLang = req.Translate.TargetLang
		input.Request.TextChars = utf8.RuneCountInString(req.Translate.Text)
	case types.CapabilityGenerate:
		input.Request.TextChars = utf8.RuneCountInString(req.Generate.Prompt)
		input.Request.DocumentCount = len(req.Generate.Documents)
	}

	allowed, reason, err := g.Evaluate(ctx, input)
	if err != nil {
		slog.Error("policy evaluation failed", "error", err)
		return Result{Blocked: true, Check: g.Name(), Reason: "policy evaluation failed: " + err.Error()}
	}
	if !allowed {
		return Result{Blocked: true, Check: g.Name(), Reason: "denied by policy: " + reason}
	}
	return Result{Check: g.Name()}
}
