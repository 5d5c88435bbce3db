package types

// Result is the normalized success payload produced by an adapter. Exactly one
// capability-specific branch is set.
type Result struct {
	Capability Capability `json:"capability"`
	Provider   string     `json:"provider"`

	Translation *TranslationResult `json:"translation,omitempty"`
	Extraction  *ExtractionResult  `json:"extraction,omitempty"`
	Generation  *GenerationResult  `json:"generation,omitempty"`

	Usage Usage `json:"usage"`
}

// Data returns the capability-specific payload for the response envelope.
func (r *Result) Data() any {
	switch {
	case r.Translation != nil:
		return r.Translation
	case r.Extraction != nil:
		return r.Extraction
	case r.Generation != nil:
		return r.Generation
	default:
		return nil
	}
}

type TranslationResult struct {
	Text       string `json:"text"`
	SourceLang string `json:"source_lang"`
	TargetLang string `json:"target_lang"`
	// DetectedLang is set when the request asked for source auto-detection.
	DetectedLang string  `json:"detected_lang,omitempty"`
	Confidence   float64 `json:"confidence,omitempty"`
}

type ExtractionResult struct {
	Text       string  `json:"text"`
	Language   string  `json:"language,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
}

type GenerationResult struct {
	Text         string `json:"text"`
	FinishReason string `json:"finish_reason,omitempty"`
	// Citations maps source IDs to human-readable labels for the chunks that
	// made it into the prompt.
	Citations     map[string]string `json:"citations,omitempty"`
	ContextTokens int               `json:"context_tokens,omitempty"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
