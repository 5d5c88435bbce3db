package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/vision-platform/ai-gateway/internal/config"
	"github.com/vision-platform/ai-gateway/internal/types"
)

const azureTranslateConfidence = 0.90

// AzureTranslatorAdapter calls the Azure Translator v3 REST API. It only
// serves the translate capability.
type AzureTranslatorAdapter struct {
	cfg    config.ProviderConfig
	client *http.Client
}

func NewAzureTranslatorAdapter(cfg config.ProviderConfig, client *http.Client) *AzureTranslatorAdapter {
	return &AzureTranslatorAdapter{cfg: cfg, client: client}
}

func (a *AzureTranslatorAdapter) Name() string { return a.cfg.Name }

func (a *AzureTranslatorAdapter) Capability() types.Capability {
	return types.Capability(a.cfg.Capability)
}

func (a *AzureTranslatorAdapter) Invoke(ctx context.Context, req *types.Request) (*types.Result, error) {
	if req.Capability != types.CapabilityTranslate || a.Capability() != types.CapabilityTranslate {
		return nil, capabilityError(a.Name(), req.Capability)
	}
	p := req.Translate

	data, err := json.Marshal([]azureTranslateItem{{Text: p.Text}})
	if err != nil {
		return nil, fmt.Errorf("marshal azure request: %w", err)
	}

	q := url.Values{}
	q.Set("api-version", "3.0")
	q.Set("from", p.SourceLang)
	q.Set("to", p.TargetLang)
	endpoint := a.cfg.BaseURL + "/translate?" + q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create http request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Ocp-Apim-Subscription-Key", a.cfg.APIKey)
	if a.cfg.Region != "" {
		httpReq.Header.Set("Ocp-Apim-Subscription-Region", a.cfg.Region)
	}
	for k, v := range a.cfg.Headers {
		if v != "" {
			httpReq.Header.Set(k, v)
		}
	}

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, transportError(a.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(a.Name(), resp.StatusCode, drainBody(resp.Body))
	}

	var azResp []azureTranslateResult
	if err := json.NewDecoder(resp.Body).Decode(&azResp); err != nil {
		return nil, decodeError(a.Name(), err)
	}
	if len(azResp) == 0 || len(azResp[0].Translations) == 0 {
		return nil, emptyError(a.Name(), "response contained no translations")
	}

	return &types.Result{
		Capability: types.CapabilityTranslate,
		Provider:   a.Name(),
		Translation: &types.TranslationResult{
			Text:       azResp[0].Translations[0].Text,
			SourceLang: p.SourceLang,
			TargetLang: p.TargetLang,
			Confidence: azureTranslateConfidence,
		},
	}, nil
}

type azureTranslateItem struct {
	Text string `json:"Text"`
}

type azureTranslateResult struct {
	DetectedLanguage struct {
		Language string  `json:"language"`
		Score    float64 `json:"score"`
	} `json:"detectedLanguage"`
	Translations []struct {
		Text string `json:"text"`
		To   string `json:"to"`
	} `json:"translations"`
}
