package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/vision-platform/ai-gateway/internal/config"
	"github.com/vision-platform/ai-gateway/internal/types"
)

const geminiDefaultModel = "gemini-1.5-flash"

// GeminiAdapter calls the Google Gemini generateContent API for the
// generate capability. Candidates whose parts carry function calls but
// no text are reported as partial failures so the router can fall back
// to a provider that returns prose.
type GeminiAdapter struct {
	cfg    config.ProviderConfig
	client *http.Client
}

func NewGeminiAdapter(cfg config.ProviderConfig, client *http.Client) *GeminiAdapter {
	return &GeminiAdapter{cfg: cfg, client: client}
}

func (a *GeminiAdapter) Name() string { return a.cfg.Name }

func (a *GeminiAdapter) Capability() types.Capability {
	return types.Capability(a.cfg.Capability)
}

func (a *GeminiAdapter) Invoke(ctx context.Context, req *types.Request) (*types.Result, error) {
	if req.Capability != types.CapabilityGenerate || a.Capability() != types.CapabilityGenerate {
		return nil, capabilityError(a.Name(), req.Capability)
	}

	body := geminiRequestBody{
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: req.Generate.Prompt}}},
		},
	}
	if len(req.Generate.Tools) > 0 {
		body.Tools = []geminiTool{{FunctionDeclarations: req.Generate.Tools}}
	}
	if req.Options.MaxTokens != nil {
		body.GenerationConfig.MaxOutputTokens = *req.Options.MaxTokens
	}
	if req.Options.Temperature != nil {
		body.GenerationConfig.Temperature = req.Options.Temperature
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal gemini request: %w", err)
	}

	model := a.cfg.Model
	if model == "" {
		model = geminiDefaultModel
	}
	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", a.cfg.BaseURL, model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create http request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", a.cfg.APIKey)
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

	var gemResp geminiResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&gemResp); err != nil {
		return nil, decodeError(a.Name(), err)
	}
	if len(gemResp.Candidates) == 0 {
		return nil, emptyError(a.Name(), "response contained no candidates")
	}

	cand := gemResp.Candidates[0]
	if cand.FinishReason == "MALFORMED_FUNCTION_CALL" {
		return nil, emptyError(a.Name(), "candidate finished with malformed function call")
	}

	var sb strings.Builder
	calls := 0
	for _, part := range cand.Content.Parts {
		if part.Text != "" {
			sb.WriteString(part.Text)
		}
		if part.FunctionCall != nil {
			calls++
		}
	}
	text := sb.String()
	if text == "" {
		if calls > 0 {
			return nil, emptyError(a.Name(), fmt.Sprintf("candidate carried %d function call parts and no text", calls))
		}
		return nil, emptyError(a.Name(), "candidate contained no text parts")
	}

	return &types.Result{
		Capability: types.CapabilityGenerate,
		Provider:   a.Name(),
		Generation: &types.GenerationResult{
			Text:         text,
			FinishReason: cand.FinishReason,
		},
		Usage: types.Usage{
			PromptTokens:     gemResp.UsageMetadata.PromptTokenCount,
			CompletionTokens: gemResp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      gemResp.UsageMetadata.TotalTokenCount,
		},
	}, nil
}

type geminiPart struct {
	Text         string          `json:"text,omitempty"`
	FunctionCall json.RawMessage `json:"functionCall,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiTool struct {
	FunctionDeclarations []json.RawMessage `json:"functionDeclarations"`
}

type geminiRequestBody struct {
	Contents         []geminiContent `json:"contents"`
	Tools            []geminiTool    `json:"tools,omitempty"`
	GenerationConfig struct {
		MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
		Temperature     *float64 `json:"temperature,omitempty"`
	} `json:"generationConfig,omitempty"`
}

type geminiResponseBody struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}
