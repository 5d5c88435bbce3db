package adapters

import (
	"context"

	"github.com/vision-platform/ai-gateway/internal/config"
	"github.com/vision-platform/ai-gateway/internal/types"
)

// identityConfidence is zero: an echoed passthrough carries no signal
// that any translation happened.
const identityConfidence = 0.0

// IdentityAdapter returns the input text unchanged. It exists so a chain
// can be configured to degrade to passthrough instead of failing when
// every real translation provider is down.
type IdentityAdapter struct {
	cfg config.ProviderConfig
}

func NewIdentityAdapter(cfg config.ProviderConfig) *IdentityAdapter {
	return &IdentityAdapter{cfg: cfg}
}

func (a *IdentityAdapter) Name() string { return a.cfg.Name }

func (a *IdentityAdapter) Capability() types.Capability {
	return types.Capability(a.cfg.Capability)
}

func (a *IdentityAdapter) Invoke(ctx context.Context, req *types.Request) (*types.Result, error) {
	if req.Capability != types.CapabilityTranslate || a.Capability() != types.CapabilityTranslate {
		return nil, capabilityError(a.Name(), req.Capability)
	}
	if err := ctx.Err(); err != nil {
		return nil, transportError(a.Name(), err)
	}
	p := req.Translate

	return &types.Result{
		Capability: types.CapabilityTranslate,
		Provider:   a.Name(),
		Translation: &types.TranslationResult{
			Text:       p.Text,
			SourceLang: p.SourceLang,
			TargetLang: p.TargetLang,
			Confidence: identityConfidence,
		},
	}, nil
}
