package types

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Request is the canonical internal representation of one gateway operation.
// Handlers construct it from the wire envelope; it is immutable afterwards and
// never outlives the call that created it.
type Request struct {
	RequestID  string     `json:"request_id"`
	Capability Capability `json:"capability"`

	// CallerID is supplied by the upstream auth layer and treated as opaque.
	// It keys rate limiting and, when caller-scoped caching is enabled,
	// partitions the cache.
	CallerID string `json:"caller_id"`

	// Exactly one payload is set, matching Capability.
	Translate *TranslatePayload `json:"translate,omitempty"`
	Extract   *ExtractPayload   `json:"extract,omitempty"`
	Generate  *GeneratePayload  `json:"generate,omitempty"`

	Options Options `json:"options"`

	ReceivedAt time.Time `json:"-"`
}

// Validate checks request shape: the capability is known, the matching
// payload is present, and its required fields are set. Size limits and
// policy are the admission chain's concern, not Validate's.
func (r *Request) Validate() error {
	switch r.Capability {
	case CapabilityTranslate:
		if r.Translate == nil {
			return errors.New("translate payload is required")
		}
		if strings.TrimSpace(r.Translate.Text) == "" {
			return errors.New("translate: text is required")
		}
		if r.Translate.TargetLang == "" {
			return errors.New("translate: target_lang is required")
		}
	case CapabilityExtract:
		if r.Extract == nil {
			return errors.New("extract payload is required")
		}
		hasImage := r.Extract.ImageB64 != ""
		hasURL := r.Extract.ImageURL != ""
		if hasImage == hasURL {
			return errors.New("extract: exactly one of image_b64 or image_url is required")
		}
	case CapabilityGenerate:
		if r.Generate == nil {
			return errors.New("generate payload is required")
		}
		if strings.TrimSpace(r.Generate.Prompt) == "" && strings.TrimSpace(r.Generate.Query) == "" {
			return errors.New("generate: prompt or query is required")
		}
	default:
		return errors.New("unknown capability")
	}
	return nil
}

type TranslatePayload struct {
	Text string `json:"text"`
	// SourceLang may be "auto", in which case the gateway detects the
	// language before dispatch.
	SourceLang string `json:"source_lang,omitempty"`
	TargetLang string `json:"target_lang"`
}

type ExtractPayload struct {
	ImageB64     string `json:"image_b64,omitempty"`
	ImageURL     string `json:"image_url,omitempty"`
	LanguageHint string `json:"language_hint,omitempty"`
}

type GeneratePayload struct {
	Prompt    string     `json:"prompt"`
	Query     string     `json:"query,omitempty"`
	Documents []Document `json:"documents,omitempty"`
	// Tools are opaque function declarations forwarded verbatim to providers
	// that support function calling; others ignore them.
	Tools []json.RawMessage `json:"tools,omitempty"`
}

// Document arrives pre-chunked from the document store; the gateway never
// parses raw files.
type Document struct {
	SourceID string          `json:"source_id"`
	Label    string          `json:"label,omitempty"`
	Chunks   []DocumentChunk `json:"chunks"`
}

// DocumentChunk is the context-assembly unit. Ordinal preserves original
// document order; chunks sharing a SourceID are selected or dropped, never
// reordered relative to each other.
type DocumentChunk struct {
	SourceID        string `json:"source_id"`
	Ordinal         int    `json:"ordinal"`
	Text            string `json:"text"`
	EstimatedTokens int    `json:"estimated_tokens"`
}

type Options struct {
	PreferredProvider string   `json:"preferred_provider,omitempty"`
	MaxTokens         *int     `json:"max_tokens,omitempty"`
	Temperature       *float64 `json:"temperature,omitempty"`
	// AllowCache defaults to true when absent from the wire.
	AllowCache *bool `json:"allow_cache,omitempty"`
	TimeoutMS  int   `json:"timeout_ms,omitempty"`
}

func (o Options) CacheAllowed() bool {
	return o.AllowCache == nil || *o.AllowCache
}

// AttemptTimeout bounds a single provider attempt. There is no aggregate
// deadline across the fallback chain; callers wanting one supply their own
// context deadline.
func (o Options) AttemptTimeout(fallback time.Duration) time.Duration {
	if o.TimeoutMS > 0 {
		return time.Duration(o.TimeoutMS) * time.Millisecond
	}
	return fallback
}
