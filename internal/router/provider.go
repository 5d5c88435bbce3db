package router

import (
	"log/slog"
	"net/http"
	"sort"
	"sync/atomic"
	"time"

	"github.com/vision-platform/ai-gateway/internal/config"
	"github.com/vision-platform/ai-gateway/internal/router/adapters"
	"github.com/vision-platform/ai-gateway/internal/types"
)

// Descriptor is one configured provider as seen by routing decisions.
type Descriptor struct {
	Name       string
	Capability types.Capability
	Priority   int
	Adapter    adapters.ProviderAdapter
}

// ProviderStatus is the externally visible view of a provider.
type ProviderStatus struct {
	Name       string           `json:"name"`
	Capability types.Capability `json:"capability"`
	Priority   int              `json:"priority"`
	Healthy    bool             `json:"healthy"`
	State      string           `json:"state"`
}

// providerSet is one immutable snapshot of the configured providers, sorted
// by priority within each capability (file order breaks ties).
type providerSet struct {
	byCapability map[types.Capability][]Descriptor
	all          []Descriptor
}

// Registry holds the current provider snapshot plus per-provider health.
// Config reload swaps the snapshot atomically, so readers see either the old
// or the new provider list, never a half-updated one.
type Registry struct {
	snapshot atomic.Pointer[providerSet]
	health   *HealthTracker
	logger   *slog.Logger
}

func NewRegistry(health *HealthTracker, logger *slog.Logger) *Registry {
	r := &Registry{health: health, logger: logger}
	r.snapshot.Store(&providerSet{byCapability: make(map[types.Capability][]Descriptor)})
	return r
}

// Reload builds a fresh snapshot from config and swaps it in. Unconfigured
// providers (missing credentials) are dropped here, so fallback chains only
// ever contain callable providers.
func (r *Registry) Reload(provCfg *config.ProvidersConfig) {
	set := &providerSet{byCapability: make(map[types.Capability][]Descriptor)}

	for _, cfg := range provCfg.Providers {
		if !cfg.Configured() {
			r.logger.Warn("provider missing credentials, skipping", "provider", cfg.Name, "type", cfg.Type)
			continue
		}
		capability, ok := types.ParseCapability(cfg.Capability)
		if !ok {
			r.logger.Warn("provider has unknown capability, skipping", "provider", cfg.Name, "capability", cfg.Capability)
			continue
		}

		adapter := buildAdapter(cfg)
		if adapter == nil {
			r.logger.Warn("provider has unknown type, skipping", "provider", cfg.Name, "type", cfg.Type)
			continue
		}

		d := Descriptor{
			Name:       cfg.Name,
			Capability: capability,
			Priority:   cfg.Priority,
			Adapter:    adapter,
		}
		set.byCapability[capability] = append(set.byCapability[capability], d)
		set.all = append(set.all, d)
	}

	for capability := range set.byCapability {
		list := set.byCapability[capability]
		// Stable sort keeps file order for equal priorities.
		sort.SliceStable(list, func(i, j int) bool { return list[i].Priority < list[j].Priority })
	}

	r.snapshot.Store(set)
	r.logger.Info("provider registry loaded", "providers", len(set.all))
}

func buildAdapter(cfg config.ProviderConfig) adapters.ProviderAdapter {
	client := &http.Client{
		Timeout: cfg.Timeout,
		Transport: &http.Transport{
			MaxIdleConns:        32,
			MaxIdleConnsPerHost: 32,
			IdleConnTimeout:     90 * time.Second,
			ForceAttemptHTTP2:   true,
		},
	}
	if client.Timeout == 0 {
		client.Timeout = 30 * time.Second
	}

	switch cfg.Type {
	case config.TypeOpenAI:
		return adapters.NewOpenAIAdapter(cfg, client)
	case config.TypeGemini:
		return adapters.NewGeminiAdapter(cfg, client)
	case config.TypeAzureTranslator:
		return adapters.NewAzureTranslatorAdapter(cfg, client)
	case config.TypeHuggingFace:
		return adapters.NewHuggingFaceAdapter(cfg, client)
	case config.TypeTesseract:
		return adapters.NewTesseractAdapter(cfg, client)
	case config.TypeIdentity:
		return adapters.NewIdentityAdapter(cfg)
	default:
		return nil
	}
}

// ChainFor returns the fallback chain for a capability: the preferred
// provider first if the request named one, then ready providers by priority,
// then unready ones as last resort. The chain is only empty when nothing for
// the capability is configured at all — a fully-down capability still yields
// its providers so the caller can attempt a last-resort call.
func (r *Registry) ChainFor(capability types.Capability, preferred string) []Descriptor {
	configured := r.snapshot.Load().byCapability[capability]

	var front, ready, down []Descriptor
	for _, d := range configured {
		switch {
		case preferred != "" && d.Name == preferred:
			front = append(front, d)
		case r.health.IsReady(d.Name):
			ready = append(ready, d)
		default:
			down = append(down, d)
		}
	}

	chain := make([]Descriptor, 0, len(configured))
	chain = append(chain, front...)
	chain = append(chain, ready...)
	chain = append(chain, down...)
	return chain
}

// StateOf exposes a provider's breaker state for the metrics gauge.
func (r *Registry) StateOf(provider string) CircuitState {
	return r.health.StateOf(provider)
}

// ReportOutcome feeds one attempt result into the provider's circuit breaker.
func (r *Registry) ReportOutcome(provider string, success bool) {
	if success {
		r.health.RecordSuccess(provider)
	} else {
		r.health.RecordFailure(provider)
	}
}

// Status lists every configured provider with its live health, for the
// providers endpoint and diagnostics.
func (r *Registry) Status() []ProviderStatus {
	set := r.snapshot.Load()
	out := make([]ProviderStatus, 0, len(set.all))
	for _, d := range set.all {
		state := r.health.StateOf(d.Name)
		out = append(out, ProviderStatus{
			Name:       d.Name,
			Capability: d.Capability,
			Priority:   d.Priority,
			Healthy:    state != StateOpen,
			State:      state.String(),
		})
	}
	return out
}
