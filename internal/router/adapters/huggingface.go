package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/vision-platform/ai-gateway/internal/config"
	"github.com/vision-platform/ai-gateway/internal/types"
)

const huggingFaceConfidence = 0.80

// HuggingFaceAdapter calls the Hugging Face inference API using the
// Helsinki-NLP opus-mt family. When no model is configured the model id
// is derived from the request's language pair, so one adapter entry can
// cover every pair the hub hosts.
type HuggingFaceAdapter struct {
	cfg    config.ProviderConfig
	client *http.Client
}

func NewHuggingFaceAdapter(cfg config.ProviderConfig, client *http.Client) *HuggingFaceAdapter {
	return &HuggingFaceAdapter{cfg: cfg, client: client}
}

func (a *HuggingFaceAdapter) Name() string { return a.cfg.Name }

func (a *HuggingFaceAdapter) Capability() types.Capability {
	return types.Capability(a.cfg.Capability)
}

func (a *HuggingFaceAdapter) Invoke(ctx context.Context, req *types.Request) (*types.Result, error) {
	if req.Capability != types.CapabilityTranslate || a.Capability() != types.CapabilityTranslate {
		return nil, capabilityError(a.Name(), req.Capability)
	}
	p := req.Translate

	data, err := json.Marshal(hfRequestBody{Inputs: p.Text})
	if err != nil {
		return nil, fmt.Errorf("marshal huggingface request: %w", err)
	}

	model := a.cfg.Model
	if model == "" {
		model = fmt.Sprintf("Helsinki-NLP/opus-mt-%s-%s", p.SourceLang, p.TargetLang)
	}
	url := a.cfg.BaseURL + "/models/" + model

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create http request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)
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

	var hfResp []hfTranslation
	if err := json.NewDecoder(resp.Body).Decode(&hfResp); err != nil {
		return nil, decodeError(a.Name(), err)
	}
	if len(hfResp) == 0 || hfResp[0].TranslationText == "" {
		return nil, emptyError(a.Name(), "response contained no translation")
	}

	return &types.Result{
		Capability: types.CapabilityTranslate,
		Provider:   a.Name(),
		Translation: &types.TranslationResult{
			Text:       hfResp[0].TranslationText,
			SourceLang: p.SourceLang,
			TargetLang: p.TargetLang,
			Confidence: huggingFaceConfidence,
		},
	}, nil
}

type hfRequestBody struct {
	Inputs string `json:"inputs"`
}

type hfTranslation struct {
	TranslationText string `json:"translation_text"`
}
