package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/vision-platform/ai-gateway/internal/types"
)

func TestGeminiGenerate(t *testing.T) {
	var captured geminiRequestBody
	var gotPath, gotKey string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		json.NewDecoder(r.Body).Decode(&captured)
		w.Write([]byte(`{
			"candidates":[{"content":{"role":"model","parts":[{"text":"Paris "},{"text":"is the capital."}]},"finishReason":"STOP"}],
			"usageMetadata":{"promptTokenCount":10,"candidatesTokenCount":5,"totalTokenCount":15}
		}`))
	}))
	defer server.Close()

	adapter := NewGeminiAdapter(generateProviderConfig("gemini-gen", server.URL), server.Client())

	result, err := adapter.Invoke(context.Background(), newGenerateRequest("What is the capital of France?"))
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}

	if gotPath != "/v1beta/models/gemini-1.5-flash:generateContent" {
		t.Errorf("unexpected path: %s", gotPath)
	}
	if gotKey != "test-key" {
		t.Errorf("expected api key header, got %q", gotKey)
	}
	if len(captured.Contents) != 1 || len(captured.Contents[0].Parts) != 1 {
		t.Fatalf("expected single user content part, got %+v", captured.Contents)
	}
	if captured.Contents[0].Parts[0].Text != "What is the capital of France?" {
		t.Errorf("unexpected prompt: %q", captured.Contents[0].Parts[0].Text)
	}

	if result.Generation == nil {
		t.Fatal("expected generation result")
	}
	if result.Generation.Text != "Paris is the capital." {
		t.Errorf("expected concatenated parts, got %q", result.Generation.Text)
	}
	if result.Generation.FinishReason != "STOP" {
		t.Errorf("expected finish reason STOP, got %s", result.Generation.FinishReason)
	}
	if result.Usage.TotalTokens != 15 {
		t.Errorf("expected total tokens 15, got %d", result.Usage.TotalTokens)
	}
}

func TestGeminiGenerate_ConfiguredModelInPath(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"ok"}]},"finishReason":"STOP"}]}`))
	}))
	defer server.Close()

	cfg := generateProviderConfig("gemini-gen", server.URL)
	cfg.Model = "gemini-1.5-pro"
	adapter := NewGeminiAdapter(cfg, server.Client())

	if _, err := adapter.Invoke(context.Background(), newGenerateRequest("hi")); err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if !strings.Contains(gotPath, "gemini-1.5-pro") {
		t.Errorf("expected configured model in path, got %s", gotPath)
	}
}

func TestGeminiGenerate_ForwardsToolDeclarations(t *testing.T) {
	var captured geminiRequestBody
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&captured)
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"ok"}]},"finishReason":"STOP"}]}`))
	}))
	defer server.Close()

	adapter := NewGeminiAdapter(generateProviderConfig("gemini-gen", server.URL), server.Client())

	req := newGenerateRequest("look up the weather")
	req.Generate.Tools = []json.RawMessage{
		json.RawMessage(`{"name":"get_weather","parameters":{"type":"object"}}`),
	}
	if _, err := adapter.Invoke(context.Background(), req); err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}

	if len(captured.Tools) != 1 || len(captured.Tools[0].FunctionDeclarations) != 1 {
		t.Fatalf("expected one tool with one declaration, got %+v", captured.Tools)
	}
	if !strings.Contains(string(captured.Tools[0].FunctionDeclarations[0]), "get_weather") {
		t.Errorf("declaration not forwarded: %s", captured.Tools[0].FunctionDeclarations[0])
	}
}

func TestGeminiGenerate_FunctionCallOnlyIsPartialFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"candidates":[{"content":{"role":"model","parts":[{"functionCall":{"name":"lookup","args":{}}}]},"finishReason":"STOP"}]
		}`))
	}))
	defer server.Close()

	adapter := NewGeminiAdapter(generateProviderConfig("gemini-gen", server.URL), server.Client())
	_, err := adapter.Invoke(context.Background(), newGenerateRequest("hi"))

	var pe *types.ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if pe.Kind != types.ErrPartialFailure {
		t.Errorf("expected kind partial_failure, got %s", pe.Kind)
	}
	if !strings.Contains(pe.Message, "function call") {
		t.Errorf("expected message to mention function call parts, got %q", pe.Message)
	}
}

func TestGeminiGenerate_MalformedFunctionCallIsPartialFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[{"content":{"parts":[]},"finishReason":"MALFORMED_FUNCTION_CALL"}]}`))
	}))
	defer server.Close()

	adapter := NewGeminiAdapter(generateProviderConfig("gemini-gen", server.URL), server.Client())
	_, err := adapter.Invoke(context.Background(), newGenerateRequest("hi"))

	var pe *types.ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if pe.Kind != types.ErrPartialFailure {
		t.Errorf("expected kind partial_failure, got %s", pe.Kind)
	}
}

func TestGeminiGenerate_NoCandidatesIsPartialFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[]}`))
	}))
	defer server.Close()

	adapter := NewGeminiAdapter(generateProviderConfig("gemini-gen", server.URL), server.Client())
	_, err := adapter.Invoke(context.Background(), newGenerateRequest("hi"))

	var pe *types.ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if pe.Kind != types.ErrPartialFailure {
		t.Errorf("expected kind partial_failure, got %s", pe.Kind)
	}
}
