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

// TesseractAdapter calls the self-hosted OCR sidecar. The sidecar wraps
// tesseract behind a small JSON API: it accepts inline base64 image data
// or a URL to fetch, plus an optional language hint in tesseract's
// three-letter codes.
type TesseractAdapter struct {
	cfg    config.ProviderConfig
	client *http.Client
}

func NewTesseractAdapter(cfg config.ProviderConfig, client *http.Client) *TesseractAdapter {
	return &TesseractAdapter{cfg: cfg, client: client}
}

func (a *TesseractAdapter) Name() string { return a.cfg.Name }

func (a *TesseractAdapter) Capability() types.Capability {
	return types.Capability(a.cfg.Capability)
}

func (a *TesseractAdapter) Invoke(ctx context.Context, req *types.Request) (*types.Result, error) {
	if req.Capability != types.CapabilityExtract || a.Capability() != types.CapabilityExtract {
		return nil, capabilityError(a.Name(), req.Capability)
	}
	p := req.Extract

	data, err := json.Marshal(tesseractRequestBody{
		Image:    p.ImageB64,
		ImageURL: p.ImageURL,
		Language: p.LanguageHint,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal tesseract request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.BaseURL+"/ocr", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create http request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
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

	var ocrResp tesseractResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&ocrResp); err != nil {
		return nil, decodeError(a.Name(), err)
	}
	if ocrResp.Text == "" {
		return nil, emptyError(a.Name(), "response contained no extracted text")
	}

	return &types.Result{
		Capability: types.CapabilityExtract,
		Provider:   a.Name(),
		Extraction: &types.ExtractionResult{
			Text:       ocrResp.Text,
			Language:   ocrResp.Language,
			Confidence: ocrResp.Confidence,
		},
	}, nil
}

type tesseractRequestBody struct {
	Image    string `json:"image,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
	Language string `json:"language,omitempty"`
}

type tesseractResponseBody struct {
	Text       string  `json:"text"`
	Language   string  `json:"language"`
	Confidence float64 `json:"confidence"`
}
