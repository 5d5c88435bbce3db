package admit

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/vision-platform/ai-gateway/internal/config"
	"github.com/vision-platform/ai-gateway/internal/types"
)

// SizeLimits rejects payloads exceeding the configured size ceilings. The
// limits are character counts for text and decoded bytes for images, so a
// caller cannot buy extra headroom with multibyte runes or base64 inflation.
type SizeLimits struct {
	cfg func() config.AdmissionConfig
}

func NewSizeLimits(cfg func() config.AdmissionConfig) *SizeLimits {
	return &SizeLimits{cfg: cfg}
}

func (s *SizeLimits) Name() string  { return "size_limits" }
func (s *SizeLimits) Enabled() bool { return true }

func (s *SizeLimits) Admit(_ context.Context, req *types.Request) Result {
	cfg := s.cfg()

	switch req.Capability {
	case types.CapabilityTranslate:
		if n := utf8.RuneCountInString(req.Translate.Text); cfg.MaxTranslateChars > 0 && n > cfg.MaxTranslateChars {
			return s.block(fmt.Sprintf("text length %d exceeds limit %d", n, cfg.MaxTranslateChars))
		}
	case types.CapabilityExtract:
		if cfg.MaxImageBytes > 0 && decodedB64Len(req.Extract.ImageB64) > cfg.MaxImageBytes {
			return s.block(fmt.Sprintf("image exceeds limit of %d bytes", cfg.MaxImageBytes))
		}
	case types.CapabilityGenerate:
		if n := utf8.RuneCountInString(req.Generate.Prompt); cfg.MaxPromptChars > 0 && n > cfg.MaxPromptChars {
			return s.block(fmt.Sprintf("prompt length %d exceeds limit %d", n, cfg.MaxPromptChars))
		}
		if n := utf8.RuneCountInString(req.Generate.Query); cfg.MaxPromptChars > 0 && n > cfg.MaxPromptChars {
			return s.block(fmt.Sprintf("query length %d exceeds limit %d", n, cfg.MaxPromptChars))
		}
	}

	return Result{Check: s.Name()}
}

func (s *SizeLimits) block(reason string) Result {
	return Result{Blocked: true, Check: s.Name(), Reason: reason}
}

// decodedB64Len estimates the decoded size of a base64 string without
// decoding it.
func decodedB64Len(b64 string) int {
	n := len(b64)
	if n == 0 {
		return 0
	}
	padding := 0
	for i := n - 1; i >= 0 && b64[i] == '='; i-- {
		padding++
	}
	return n*3/4 - padding
}
