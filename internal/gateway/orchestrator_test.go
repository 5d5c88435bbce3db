package gateway

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vision-platform/ai-gateway/internal/admit"
	"github.com/vision-platform/ai-gateway/internal/analytics"
	"github.com/vision-platform/ai-gateway/internal/assemble"
	"github.com/vision-platform/ai-gateway/internal/cache"
	"github.com/vision-platform/ai-gateway/internal/config"
	"github.com/vision-platform/ai-gateway/internal/ratelimit"
	"github.com/vision-platform/ai-gateway/internal/router"
	"github.com/vision-platform/ai-gateway/internal/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// providerServer wraps an httptest server, recording the request bodies it
// receives so tests can assert what reached the provider.
type providerServer struct {
	*httptest.Server
	mu     sync.Mutex
	bodies []string
}

func newProviderServer(t *testing.T, handler http.HandlerFunc) *providerServer {
	t.Helper()
	p := &providerServer{}
	p.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		p.mu.Lock()
		p.bodies = append(p.bodies, string(body))
		p.mu.Unlock()
		handler(w, r)
	}))
	t.Cleanup(p.Close)
	return p
}

func (p *providerServer) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.bodies)
}

func (p *providerServer) lastBody() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.bodies) == 0 {
		return ""
	}
	return p.bodies[len(p.bodies)-1]
}

// completionServer answers with a chat-completions success carrying text.
func completionServer(t *testing.T, text string) *providerServer {
	return newProviderServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"choices":[{"message":{"role":"assistant","content":%q},"finish_reason":"stop"}],"usage":{"prompt_tokens":12,"completion_tokens":3,"total_tokens":15}}`, text)
	})
}

// erroringServer always answers with the given status.
func erroringServer(t *testing.T, status int) *providerServer {
	return newProviderServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		io.WriteString(w, `{"error":{"message":"provider exploded"}}`)
	})
}

// hangingServer never answers; it returns only when the request is cancelled.
func hangingServer(t *testing.T) *providerServer {
	return newProviderServer(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
}

func translateProvider(name, baseURL string, priority int) config.ProviderConfig {
	return config.ProviderConfig{
		Name:       name,
		Type:       config.TypeOpenAI,
		Capability: "translate",
		Priority:   priority,
		BaseURL:    baseURL,
		APIKey:     "test-key",
	}
}

func generateProvider(name, baseURL string, priority int) config.ProviderConfig {
	return config.ProviderConfig{
		Name:       name,
		Type:       config.TypeOpenAI,
		Capability: "generate",
		Priority:   priority,
		BaseURL:    baseURL,
		APIKey:     "test-key",
	}
}

func identityProvider(name string, priority int) config.ProviderConfig {
	return config.ProviderConfig{
		Name:       name,
		Type:       config.TypeIdentity,
		Capability: "translate",
		Priority:   priority,
	}
}

type captureSink struct {
	mu     sync.Mutex
	events []analytics.Event
}

func (s *captureSink) Record(ev analytics.Event) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
}

func (s *captureSink) Close(ctx context.Context) error { return nil }

func (s *captureSink) all() []analytics.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]analytics.Event, len(s.events))
	copy(out, s.events)
	return out
}

type orchestratorEnv struct {
	orch     *Orchestrator
	registry *router.Registry
	cfg      *config.Config
	sink     *captureSink
}

// newTestOrchestrator wires a full orchestrator over the real registry and
// adapters. mutate tweaks the config before anything is built.
func newTestOrchestrator(t *testing.T, mutate func(*config.Config), providers ...config.ProviderConfig) *orchestratorEnv {
	t.Helper()

	cfg := config.DefaultConfig()
	// Headroom so only the rate limit tests trip the limiter.
	cfg.RateLimit.Buckets = map[string]config.BucketConfig{
		"default": {Burst: 1000, RefillRate: 1000},
	}
	if mutate != nil {
		mutate(cfg)
	}

	breaker := cfg.Routing.CircuitBreaker
	health := router.NewHealthTracker(breaker.FailureThreshold, breaker.FailureWindow, breaker.Cooldown)
	registry := router.NewRegistry(health, testLogger())
	registry.Reload(&config.ProvidersConfig{Providers: providers})

	sink := &captureSink{}
	orch := NewOrchestrator(OrchestratorParams{
		Registry:  registry,
		Cache:     cache.NewMemory(),
		Limiter:   ratelimit.NewLimiter(cfg.RateLimit.Buckets),
		Budget:    ratelimit.NewBudgetTracker(nil),
		Admission: admit.NewChain(admit.NewSizeLimits(func() config.AdmissionConfig { return cfg.Admission })),
		Assembler: assemble.New(nil, cfg.Assembler.TokenBudget),
		Config:    func() *config.Config { return cfg },
		Sink:      sink,
		Logger:    testLogger(),
	})
	return &orchestratorEnv{orch: orch, registry: registry, cfg: cfg, sink: sink}
}

func translateRequest(text, source, target string) *types.Request {
	return &types.Request{
		Capability: types.CapabilityTranslate,
		CallerID:   "caller-1",
		Translate:  &types.TranslatePayload{Text: text, SourceLang: source, TargetLang: target},
	}
}

func assertAttempted(t *testing.T, out *Outcome, want ...string) {
	t.Helper()
	if len(out.ProvidersAttempted) != len(want) {
		t.Fatalf("expected providers %v, got %v", want, out.ProvidersAttempted)
	}
	for i, name := range want {
		if out.ProvidersAttempted[i] != name {
			t.Fatalf("expected providers %v, got %v", want, out.ProvidersAttempted)
		}
	}
}

func TestExecute_FallbackToNextProvider(t *testing.T) {
	fail := erroringServer(t, http.StatusInternalServerError)
	ok := completionServer(t, "Hola")
	env := newTestOrchestrator(t, nil,
		translateProvider("mock-fail", fail.URL, 1),
		translateProvider("mock-ok", ok.URL, 2),
	)

	out := env.orch.Execute(context.Background(), translateRequest("Hello", "en", "es"))
	if !out.Success() {
		t.Fatalf("expected success, got %s: %s", out.Code, out.Message)
	}
	if out.Result.Translation == nil || out.Result.Translation.Text != "Hola" {
		t.Fatalf("unexpected result: %+v", out.Result)
	}
	assertAttempted(t, out, "mock-fail", "mock-ok")
	if out.CacheHit {
		t.Error("first request should not be a cache hit")
	}

	// The identical request is served from cache with zero provider calls.
	out = env.orch.Execute(context.Background(), translateRequest("Hello", "en", "es"))
	if !out.Success() || !out.CacheHit {
		t.Fatalf("expected cache hit, got %+v", out)
	}
	assertAttempted(t, out)
	if fail.count() != 1 || ok.count() != 1 {
		t.Errorf("expected one call per provider, got fail=%d ok=%d", fail.count(), ok.count())
	}
}

func TestExecute_TimeoutAdvancesChain(t *testing.T) {
	slow := hangingServer(t)
	ok := completionServer(t, "Hola")
	env := newTestOrchestrator(t, nil,
		translateProvider("mock-slow", slow.URL, 1),
		translateProvider("mock-ok", ok.URL, 2),
	)

	req := translateRequest("Hello", "en", "es")
	req.Options.TimeoutMS = 30

	out := env.orch.Execute(context.Background(), req)
	if !out.Success() {
		t.Fatalf("expected success after timeout fallback, got %s: %s", out.Code, out.Message)
	}
	assertAttempted(t, out, "mock-slow", "mock-ok")
}

func TestExecute_UnauthorizedIsTerminal(t *testing.T) {
	unauth := erroringServer(t, http.StatusUnauthorized)
	ok := completionServer(t, "Hola")
	env := newTestOrchestrator(t, nil,
		translateProvider("mock-unauth", unauth.URL, 1),
		translateProvider("mock-ok", ok.URL, 2),
	)

	out := env.orch.Execute(context.Background(), translateRequest("Hello", "en", "es"))
	if out.Code != types.CodeInvalidInput {
		t.Fatalf("expected invalid_input, got %q", out.Code)
	}
	assertAttempted(t, out, "mock-unauth")
	if ok.count() != 0 {
		t.Errorf("terminal error must not fall through, second provider saw %d calls", ok.count())
	}
}

func TestExecute_AllProvidersFailed(t *testing.T) {
	a := erroringServer(t, http.StatusInternalServerError)
	b := erroringServer(t, http.StatusServiceUnavailable)
	env := newTestOrchestrator(t, nil,
		translateProvider("mock-a", a.URL, 1),
		translateProvider("mock-b", b.URL, 2),
	)

	out := env.orch.Execute(context.Background(), translateRequest("Hello", "en", "es"))
	if out.Code != types.CodeAllProvidersFailed {
		t.Fatalf("expected all_providers_failed, got %q", out.Code)
	}
	assertAttempted(t, out, "mock-a", "mock-b")
	if !strings.Contains(out.Message, "mock-b") {
		t.Errorf("expected last provider error preserved, got %q", out.Message)
	}
}

func TestExecute_NoProvidersConfigured(t *testing.T) {
	env := newTestOrchestrator(t, nil)

	out := env.orch.Execute(context.Background(), translateRequest("Hello", "en", "es"))
	if out.Code != types.CodeAllProvidersFailed {
		t.Fatalf("expected all_providers_failed, got %q", out.Code)
	}
	if len(out.ProvidersAttempted) != 0 {
		t.Errorf("expected no attempts, got %v", out.ProvidersAttempted)
	}
}

func TestExecute_CancelledBeforeAttempt(t *testing.T) {
	ok := completionServer(t, "Hola")
	env := newTestOrchestrator(t, nil, translateProvider("mock-ok", ok.URL, 1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := env.orch.Execute(ctx, translateRequest("Hello", "en", "es"))
	if out.Code != types.CodeCancelled {
		t.Fatalf("expected cancelled, got %q", out.Code)
	}
	assertAttempted(t, out)
	if ok.count() != 0 {
		t.Errorf("cancelled request must not reach providers, saw %d calls", ok.count())
	}
}

func TestExecute_CancelledMidAttempt(t *testing.T) {
	slow := hangingServer(t)
	ok := completionServer(t, "Hola")
	env := newTestOrchestrator(t, nil,
		translateProvider("mock-slow", slow.URL, 1),
		translateProvider("mock-ok", ok.URL, 2),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	time.AfterFunc(20*time.Millisecond, cancel)

	out := env.orch.Execute(ctx, translateRequest("Hello", "en", "es"))
	if out.Code != types.CodeCancelled {
		t.Fatalf("expected cancelled, got %q", out.Code)
	}
	assertAttempted(t, out, "mock-slow")
	if ok.count() != 0 {
		t.Errorf("no fallback after cancellation, second provider saw %d calls", ok.count())
	}
	if env.registry.StateOf("mock-slow") != router.StateClosed {
		t.Error("cancellation must not count against the provider's breaker")
	}
}

func TestExecute_PreferredProviderFirst(t *testing.T) {
	a := completionServer(t, "from-a")
	b := completionServer(t, "from-b")
	env := newTestOrchestrator(t, nil,
		translateProvider("mock-a", a.URL, 1),
		translateProvider("mock-b", b.URL, 2),
	)

	req := translateRequest("Hello", "en", "es")
	req.Options.PreferredProvider = "mock-b"

	out := env.orch.Execute(context.Background(), req)
	if !out.Success() || out.Result.Translation.Text != "from-b" {
		t.Fatalf("expected preferred provider result, got %+v", out)
	}
	assertAttempted(t, out, "mock-b")
	if a.count() != 0 {
		t.Errorf("higher-priority provider should be skipped, saw %d calls", a.count())
	}
}

func TestExecute_RateLimited(t *testing.T) {
	env := newTestOrchestrator(t, func(cfg *config.Config) {
		cfg.RateLimit.Buckets = map[string]config.BucketConfig{
			"default": {Burst: 2, RefillRate: 0.01},
		}
	}, identityProvider("echo", 1))

	first := env.orch.Execute(context.Background(), translateRequest("Hello", "en", "es"))
	if !first.Success() {
		t.Fatalf("first request should pass: %+v", first)
	}
	second := env.orch.Execute(context.Background(), translateRequest("Hello", "en", "es"))
	if !second.Success() || !second.CacheHit {
		t.Fatalf("second request should be a cache hit: %+v", second)
	}

	third := env.orch.Execute(context.Background(), translateRequest("Hello", "en", "es"))
	if third.Code != types.CodeRateLimited {
		t.Fatalf("expected rate_limited, got %q", third.Code)
	}
	if third.RateLimit == nil {
		t.Fatal("expected rate limit metadata")
	}
	if third.RateLimit.RetryAfter <= 0 {
		t.Errorf("expected positive retry-after, got %v", third.RateLimit.RetryAfter)
	}
	if third.RateLimit.Limit != 2 {
		t.Errorf("expected limit 2, got %d", third.RateLimit.Limit)
	}
	if third.RateLimit.Remaining != 0 {
		t.Errorf("expected remaining 0, got %d", third.RateLimit.Remaining)
	}
}

func TestExecute_CacheBypass(t *testing.T) {
	ok := completionServer(t, "Hola")
	env := newTestOrchestrator(t, nil, translateProvider("mock-ok", ok.URL, 1))

	noCache := false
	req := translateRequest("Hello", "en", "es")
	req.Options.AllowCache = &noCache

	for i := 0; i < 2; i++ {
		out := env.orch.Execute(context.Background(), req)
		if !out.Success() || out.CacheHit {
			t.Fatalf("request %d: expected uncached success, got %+v", i, out)
		}
	}
	if ok.count() != 2 {
		t.Errorf("cache bypass should reach the provider twice, saw %d calls", ok.count())
	}
}

func TestExecute_AutoDetectsSourceLanguage(t *testing.T) {
	ok := completionServer(t, "the dog and the cat")
	env := newTestOrchestrator(t, nil, translateProvider("mock-ok", ok.URL, 1))

	out := env.orch.Execute(context.Background(), translateRequest("hola gracias el perro y la casa", "auto", "en"))
	if !out.Success() {
		t.Fatalf("expected success, got %s: %s", out.Code, out.Message)
	}
	if out.Result.Translation.DetectedLang != "es" {
		t.Errorf("expected detected language es, got %q", out.Result.Translation.DetectedLang)
	}
	if !strings.Contains(ok.lastBody(), "from es to en") {
		t.Errorf("provider should see the detected language, got body %s", ok.lastBody())
	}
}

func TestExecute_GenerateAssemblesContext(t *testing.T) {
	gen := completionServer(t, "Paris is the capital [S1].")
	env := newTestOrchestrator(t, nil, generateProvider("mock-gen", gen.URL, 1))

	req := &types.Request{
		Capability: types.CapabilityGenerate,
		CallerID:   "caller-1",
		Generate: &types.GeneratePayload{
			Prompt: "What is the capital of France?",
			Documents: []types.Document{{
				SourceID: "doc-1",
				Label:    "Geography",
				Chunks: []types.DocumentChunk{{
					Ordinal:         0,
					Text:            "The capital of France is Paris.",
					EstimatedTokens: 12,
				}},
			}},
		},
	}

	out := env.orch.Execute(context.Background(), req)
	if !out.Success() {
		t.Fatalf("expected success, got %s: %s", out.Code, out.Message)
	}

	gen1 := out.Result.Generation
	if gen1 == nil {
		t.Fatal("expected generation result")
	}
	if gen1.Citations["doc-1"] != "Geography" {
		t.Errorf("expected citation for doc-1, got %v", gen1.Citations)
	}
	if gen1.ContextTokens != 12 {
		t.Errorf("expected 12 context tokens, got %d", gen1.ContextTokens)
	}

	body := gen.lastBody()
	for _, want := range []string{"[S1] Geography", "The capital of France is Paris.", "Question: What is the capital of France?"} {
		if !strings.Contains(body, want) {
			t.Errorf("provider prompt missing %q in body %s", want, body)
		}
	}
	if strings.Contains(body, "documents") {
		t.Error("raw documents should not be forwarded to the provider")
	}
}

func TestExecute_ValidationRejectsBadShape(t *testing.T) {
	ok := completionServer(t, "Hola")
	env := newTestOrchestrator(t, nil, translateProvider("mock-ok", ok.URL, 1))

	req := &types.Request{
		Capability: types.CapabilityTranslate,
		CallerID:   "caller-1",
		Translate:  &types.TranslatePayload{Text: "Hello"}, // no target language
	}

	out := env.orch.Execute(context.Background(), req)
	if out.Code != types.CodeInvalidInput {
		t.Fatalf("expected invalid_input, got %q", out.Code)
	}
	if ok.count() != 0 {
		t.Errorf("invalid request must not reach providers, saw %d calls", ok.count())
	}
}

func TestExecute_AdmissionBlocksOversizedText(t *testing.T) {
	ok := completionServer(t, "Hola")
	env := newTestOrchestrator(t, func(cfg *config.Config) {
		cfg.Admission.MaxTranslateChars = 5
	}, translateProvider("mock-ok", ok.URL, 1))

	out := env.orch.Execute(context.Background(), translateRequest("this is far too long", "en", "es"))
	if out.Code != types.CodeInvalidInput {
		t.Fatalf("expected invalid_input, got %q", out.Code)
	}
	if !strings.Contains(out.Message, "exceeds limit") {
		t.Errorf("expected size limit reason, got %q", out.Message)
	}
	if ok.count() != 0 {
		t.Errorf("blocked request must not reach providers, saw %d calls", ok.count())
	}
}

func TestExecute_RecordsAnalyticsEvents(t *testing.T) {
	fail := erroringServer(t, http.StatusInternalServerError)
	ok := completionServer(t, "Hola")
	env := newTestOrchestrator(t, nil,
		translateProvider("mock-fail", fail.URL, 1),
		translateProvider("mock-ok", ok.URL, 2),
	)

	env.orch.Execute(context.Background(), translateRequest("Hello", "en", "es"))

	events := env.sink.all()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	ev := events[0]
	if ev.Outcome != "success" || ev.Provider != "mock-ok" {
		t.Errorf("unexpected event: %+v", ev)
	}
	if ev.CallerID != "caller-1" || ev.Capability != "translate" {
		t.Errorf("unexpected event identity: %+v", ev)
	}
	if len(ev.ProvidersAttempted) != 2 {
		t.Errorf("expected both attempts in event, got %v", ev.ProvidersAttempted)
	}
	if ev.PromptTokens != 12 || ev.CompletionTokens != 3 {
		t.Errorf("expected provider usage in event, got %+v", ev)
	}
}
