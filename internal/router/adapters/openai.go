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

const (
	openAITranslateModel = "gpt-3.5-turbo"
	openAIGenerateModel  = "gpt-4o-mini"

	// translateSystemPrompt keeps model chatter out of the translation body.
	translateSystemPrompt = "You are a professional translator. Provide only the translation without explanations."

	openAITranslateMaxTokens   = 1000
	openAITranslateTemperature = 0.3
	openAITranslateConfidence  = 0.95
)

// OpenAIAdapter calls the OpenAI chat completions API. A single adapter
// instance serves one capability: translation requests are phrased as a
// translator prompt, generation requests pass the prompt through.
type OpenAIAdapter struct {
	cfg    config.ProviderConfig
	client *http.Client
}

func NewOpenAIAdapter(cfg config.ProviderConfig, client *http.Client) *OpenAIAdapter {
	return &OpenAIAdapter{cfg: cfg, client: client}
}

func (a *OpenAIAdapter) Name() string { return a.cfg.Name }

func (a *OpenAIAdapter) Capability() types.Capability {
	return types.Capability(a.cfg.Capability)
}

func (a *OpenAIAdapter) Invoke(ctx context.Context, req *types.Request) (*types.Result, error) {
	if req.Capability != a.Capability() {
		return nil, capabilityError(a.Name(), req.Capability)
	}
	switch req.Capability {
	case types.CapabilityTranslate:
		return a.translate(ctx, req)
	case types.CapabilityGenerate:
		return a.generate(ctx, req)
	default:
		return nil, capabilityError(a.Name(), req.Capability)
	}
}

func (a *OpenAIAdapter) translate(ctx context.Context, req *types.Request) (*types.Result, error) {
	p := req.Translate
	user := fmt.Sprintf("Translate the following text from %s to %s:\n\n%s\n\nTranslation:",
		p.SourceLang, p.TargetLang, p.Text)

	body := openAIRequestBody{
		Model: a.model(openAITranslateModel),
		Messages: []openAIMessage{
			{Role: "system", Content: translateSystemPrompt},
			{Role: "user", Content: user},
		},
		MaxTokens:   openAITranslateMaxTokens,
		Temperature: openAITranslateTemperature,
	}
	if req.Options.MaxTokens != nil {
		body.MaxTokens = *req.Options.MaxTokens
	}
	if req.Options.Temperature != nil {
		body.Temperature = *req.Options.Temperature
	}

	oaiResp, err := a.send(ctx, body)
	if err != nil {
		return nil, err
	}

	text := strings.TrimSpace(oaiResp.Choices[0].Message.Content)
	if text == "" {
		return nil, emptyError(a.Name(), "response contained no translation")
	}

	return &types.Result{
		Capability: types.CapabilityTranslate,
		Provider:   a.Name(),
		Translation: &types.TranslationResult{
			Text:       text,
			SourceLang: p.SourceLang,
			TargetLang: p.TargetLang,
			Confidence: openAITranslateConfidence,
		},
		Usage: oaiResp.usage(),
	}, nil
}

func (a *OpenAIAdapter) generate(ctx context.Context, req *types.Request) (*types.Result, error) {
	body := openAIRequestBody{
		Model: a.model(openAIGenerateModel),
		Messages: []openAIMessage{
			{Role: "user", Content: req.Generate.Prompt},
		},
	}
	if req.Options.MaxTokens != nil {
		body.MaxTokens = *req.Options.MaxTokens
	}
	if req.Options.Temperature != nil {
		body.Temperature = *req.Options.Temperature
	}

	oaiResp, err := a.send(ctx, body)
	if err != nil {
		return nil, err
	}

	choice := oaiResp.Choices[0]
	return &types.Result{
		Capability: types.CapabilityGenerate,
		Provider:   a.Name(),
		Generation: &types.GenerationResult{
			Text:         choice.Message.Content,
			FinishReason: choice.FinishReason,
		},
		Usage: oaiResp.usage(),
	}, nil
}

// send posts the chat completion and returns a decoded response with at
// least one choice.
func (a *OpenAIAdapter) send(ctx context.Context, body openAIRequestBody) (*openAIResponseBody, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal openai request: %w", err)
	}

	url := a.cfg.BaseURL + "/chat/completions"
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

	var oaiResp openAIResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&oaiResp); err != nil {
		return nil, decodeError(a.Name(), err)
	}
	if len(oaiResp.Choices) == 0 {
		return nil, emptyError(a.Name(), "response contained no choices")
	}
	return &oaiResp, nil
}

func (a *OpenAIAdapter) model(fallback string) string {
	if a.cfg.Model != "" {
		return a.cfg.Model
	}
	return fallback
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequestBody struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature,omitempty"`
}

type openAIResponseBody struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int           `json:"index"`
		Message      openAIMessage `json:"message"`
		FinishReason string        `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

func (r *openAIResponseBody) usage() types.Usage {
	return types.Usage{
		PromptTokens:     r.Usage.PromptTokens,
		CompletionTokens: r.Usage.CompletionTokens,
		TotalTokens:      r.Usage.TotalTokens,
	}
}
