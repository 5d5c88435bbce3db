// Package cache provides the content-addressed result cache that lets the
// gateway skip repeat provider calls. Entries are written only after a
// successful provider response and expire lazily by TTL.
package cache

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/vision-platform/ai-gateway/internal/types"
)

// ResultCache is implemented by the memory and Redis backends. A backend
// failure must degrade to a miss, never to a request failure.
type ResultCache interface {
	Get(ctx context.Context, key string) (*types.Result, bool)
	Put(ctx context.Context, key string, value *types.Result, ttl time.Duration)
}

// Fingerprint derives the deterministic cache key for a request: a SHA-256
// over capability, normalized payload, target parameters, and the preferred
// provider (or "any"). With callerScoped set, the caller ID partitions the
// key space.
func Fingerprint(req *types.Request, callerScoped bool) string {
	h := sha256.New()
	writeField(h, string(req.Capability))

	switch req.Capability {
	case types.CapabilityTranslate:
		p := req.Translate
		writeField(h, strings.TrimSpace(p.Text))
		writeField(h, strings.ToLower(p.SourceLang))
		writeField(h, strings.ToLower(p.TargetLang))
	case types.CapabilityExtract:
		p := req.Extract
		writeField(h, p.ImageB64)
		writeField(h, p.ImageURL)
		writeField(h, strings.ToLower(p.LanguageHint))
	case types.CapabilityGenerate:
		p := req.Generate
		writeField(h, strings.TrimSpace(p.Prompt))
		writeField(h, strings.TrimSpace(p.Query))
		for _, doc := range p.Documents {
			writeField(h, doc.SourceID)
			for _, c := range doc.Chunks {
				writeField(h, fmt.Sprintf("%s#%d", c.SourceID, c.Ordinal))
				writeField(h, c.Text)
			}
		}
		for _, tool := range p.Tools {
			writeField(h, string(tool))
		}
	}

	if req.Options.MaxTokens != nil {
		writeField(h, fmt.Sprintf("max=%d", *req.Options.MaxTokens))
	}
	if req.Options.Temperature != nil {
		writeField(h, fmt.Sprintf("temp=%g", *req.Options.Temperature))
	}

	provider := req.Options.PreferredProvider
	if provider == "" {
		provider = "any"
	}
	writeField(h, provider)

	if callerScoped {
		writeField(h, req.CallerID)
	}

	return fmt.Sprintf("%x", h.Sum(nil))
}

// writeField frames each field with its length so adjacent fields can never
// collide ("ab"+"c" vs "a"+"bc").
func writeField(w io.Writer, s string) {
	fmt.Fprintf(w, "%d:%s;", len(s), s)
}
