package config

import (
	"fmt"
	"time"
)

// ProvidersConfig is an ordered list: file order breaks priority ties, so the
// list must never be turned into a map.
type ProvidersConfig struct {
	Providers []ProviderConfig `yaml:"providers"`
}

type ProviderConfig struct {
	Name       string            `yaml:"name"`
	Type       string            `yaml:"type"`
	Capability string            `yaml:"capability"`
	Priority   int               `yaml:"priority"`
	BaseURL    string            `yaml:"base_url"`
	APIKey     string            `yaml:"api_key"`
	Model      string            `yaml:"model,omitempty"`
	Region     string            `yaml:"region,omitempty"`
	Timeout    time.Duration     `yaml:"timeout"`
	Headers    map[string]string `yaml:"headers,omitempty"`
}

// Adapter type names accepted in the "type" field.
const (
	TypeOpenAI          = "openai"
	TypeGemini          = "gemini"
	TypeAzureTranslator = "azure_translator"
	TypeHuggingFace     = "huggingface"
	TypeTesseract       = "tesseract"
	TypeIdentity        = "identity"
)

// Configured reports whether the entry carries enough credentials to attempt
// a call. Unconfigured providers are excluded from fallback chains entirely.
func (p ProviderConfig) Configured() bool {
	switch p.Type {
	case TypeIdentity:
		return true
	case TypeTesseract:
		return p.BaseURL != ""
	default:
		return p.APIKey != ""
	}
}

func (pc *ProvidersConfig) Validate() error {
	seen := make(map[string]bool, len(pc.Providers))
	for i, p := range pc.Providers {
		if p.Name == "" {
			return fmt.Errorf("provider %d: name is required", i)
		}
		if seen[p.Name] {
			return fmt.Errorf("provider %q: duplicate name", p.Name)
		}
		seen[p.Name] = true
		switch p.Type {
		case TypeOpenAI, TypeGemini, TypeAzureTranslator, TypeHuggingFace, TypeTesseract, TypeIdentity:
		default:
			return fmt.Errorf("provider %q: unknown type %q", p.Name, p.Type)
		}
		switch p.Capability {
		case "translate", "ocr", "generate":
		default:
			return fmt.Errorf("provider %q: unknown capability %q", p.Name, p.Capability)
		}
		if p.Priority < 0 {
			return fmt.Errorf("provider %q: priority must be >= 0", p.Name)
		}
	}
	return nil
}
