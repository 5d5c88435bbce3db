package router

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/vision-platform/ai-gateway/internal/config"
	"github.com/vision-platform/ai-gateway/internal/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type entry struct {
	name       string
	capability string
	priority   int
}

// identityProviders builds a providers config from (name, capability,
// priority) triples. The identity type needs no credentials, so entries are
// always configured and no network client is exercised.
func identityProviders(entries ...entry) *config.ProvidersConfig {
	pc := &config.ProvidersConfig{}
	for _, e := range entries {
		pc.Providers = append(pc.Providers, config.ProviderConfig{
			Name:       e.name,
			Type:       config.TypeIdentity,
			Capability: e.capability,
			Priority:   e.priority,
		})
	}
	return pc
}

func newTestRegistry(t *testing.T, entries ...entry) (*Registry, *HealthTracker) {
	t.Helper()
	ht := NewHealthTracker(1, time.Minute, time.Hour)
	r := NewRegistry(ht, testLogger())
	r.Reload(identityProviders(entries...))
	return r, ht
}

func chainNames(chain []Descriptor) []string {
	names := make([]string, len(chain))
	for i, d := range chain {
		names[i] = d.Name
	}
	return names
}

func assertOrder(t *testing.T, got []Descriptor, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected chain %v, got %v", want, chainNames(got))
	}
	for i, name := range want {
		if got[i].Name != name {
			t.Fatalf("expected chain %v, got %v", want, chainNames(got))
		}
	}
}

func TestRegistryReload_SkipsUnconfiguredProviders(t *testing.T) {
	ht := NewHealthTracker(3, time.Minute, time.Hour)
	r := NewRegistry(ht, testLogger())

	r.Reload(&config.ProvidersConfig{Providers: []config.ProviderConfig{
		{Name: "openai-translate", Type: config.TypeOpenAI, Capability: "translate", Priority: 0}, // no api key
		{Name: "identity-fallback", Type: config.TypeIdentity, Capability: "translate", Priority: 9},
	}})

	chain := r.ChainFor(types.CapabilityTranslate, "")
	assertOrder(t, chain, "identity-fallback")
}

func TestChainFor_PriorityOrder(t *testing.T) {
	r, _ := newTestRegistry(t,
		entry{"c", "translate", 2},
		entry{"a", "translate", 0},
		entry{"b", "translate", 1},
	)

	chain := r.ChainFor(types.CapabilityTranslate, "")
	assertOrder(t, chain, "a", "b", "c")
}

func TestChainFor_FileOrderBreaksPriorityTies(t *testing.T) {
	r, _ := newTestRegistry(t,
		entry{"first", "translate", 1},
		entry{"second", "translate", 1},
		entry{"zero", "translate", 0},
	)

	chain := r.ChainFor(types.CapabilityTranslate, "")
	assertOrder(t, chain, "zero", "first", "second")
}

func TestChainFor_UnhealthyMovedToBack(t *testing.T) {
	r, ht := newTestRegistry(t,
		entry{"a", "translate", 0},
		entry{"b", "translate", 1},
		entry{"c", "translate", 2},
	)

	ht.RecordFailure("a") // threshold 1 opens the breaker

	chain := r.ChainFor(types.CapabilityTranslate, "")
	assertOrder(t, chain, "b", "c", "a")
}

func TestChainFor_AllUnhealthyStillYieldsChain(t *testing.T) {
	r, ht := newTestRegistry(t,
		entry{"a", "translate", 0},
		entry{"b", "translate", 1},
	)

	ht.RecordFailure("a")
	ht.RecordFailure("b")

	chain := r.ChainFor(types.CapabilityTranslate, "")
	assertOrder(t, chain, "a", "b")
}

func TestChainFor_PreferredMovesToFront(t *testing.T) {
	r, _ := newTestRegistry(t,
		entry{"a", "translate", 0},
		entry{"b", "translate", 1},
	)

	chain := r.ChainFor(types.CapabilityTranslate, "b")
	assertOrder(t, chain, "b", "a")
}

func TestChainFor_PreferredFirstEvenWhenUnhealthy(t *testing.T) {
	r, ht := newTestRegistry(t,
		entry{"a", "translate", 0},
		entry{"b", "translate", 1},
	)

	ht.RecordFailure("b")

	chain := r.ChainFor(types.CapabilityTranslate, "b")
	assertOrder(t, chain, "b", "a")
}

func TestChainFor_UnknownPreferredIgnored(t *testing.T) {
	r, _ := newTestRegistry(t,
		entry{"a", "translate", 0},
		entry{"b", "translate", 1},
	)

	chain := r.ChainFor(types.CapabilityTranslate, "nonexistent")
	assertOrder(t, chain, "a", "b")
}

func TestChainFor_CapabilitiesIsolated(t *testing.T) {
	r, _ := newTestRegistry(t,
		entry{"translator", "translate", 0},
		entry{"generator", "generate", 0},
	)

	assertOrder(t, r.ChainFor(types.CapabilityTranslate, ""), "translator")
	assertOrder(t, r.ChainFor(types.CapabilityGenerate, ""), "generator")
}

func TestChainFor_EmptyWhenNothingConfigured(t *testing.T) {
	r, _ := newTestRegistry(t, entry{"translator", "translate", 0})

	if chain := r.ChainFor(types.CapabilityExtract, ""); len(chain) != 0 {
		t.Errorf("expected empty chain, got %v", chainNames(chain))
	}
}

func TestReload_SwapsChainAtomically(t *testing.T) {
	r, _ := newTestRegistry(t, entry{"old", "translate", 0})

	r.Reload(identityProviders(entry{"new", "translate", 0}))

	chain := r.ChainFor(types.CapabilityTranslate, "")
	assertOrder(t, chain, "new")
}

func TestReportOutcome_DrivesBreaker(t *testing.T) {
	ht := NewHealthTracker(2, time.Minute, time.Hour)
	r := NewRegistry(ht, testLogger())
	r.Reload(identityProviders(entry{"a", "translate", 0}))

	r.ReportOutcome("a", false)
	if ht.StateOf("a") != StateClosed {
		t.Fatal("expected closed after one failure")
	}
	r.ReportOutcome("a", false)
	if ht.StateOf("a") != StateOpen {
		t.Fatal("expected open after threshold failures")
	}
}

func TestStatus_ReflectsHealth(t *testing.T) {
	r, ht := newTestRegistry(t,
		entry{"a", "translate", 0},
		entry{"b", "generate", 1},
	)

	ht.RecordFailure("a")

	status := r.Status()
	if len(status) != 2 {
		t.Fatalf("expected 2 providers, got %d", len(status))
	}
	byName := make(map[string]ProviderStatus, len(status))
	for _, s := range status {
		byName[s.Name] = s
	}
	if byName["a"].Healthy || byName["a"].State != "open" {
		t.Errorf("expected a unhealthy/open, got %+v", byName["a"])
	}
	if !byName["b"].Healthy || byName["b"].State != "closed" {
		t.Errorf("expected b healthy/closed, got %+v", byName["b"])
	}
}
