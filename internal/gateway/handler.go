package gateway

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vision-platform/ai-gateway/internal/auth"
	"github.com/vision-platform/ai-gateway/internal/httputil"
	"github.com/vision-platform/ai-gateway/internal/langdetect"
	"github.com/vision-platform/ai-gateway/internal/router"
	"github.com/vision-platform/ai-gateway/internal/types"
)

// Handler exposes the gateway over HTTP.
type Handler struct {
	orch     *Orchestrator
	registry *router.Registry
}

func NewHandler(orch *Orchestrator, registry *router.Registry) *Handler {
	return &Handler{orch: orch, registry: registry}
}

// wireRequest is the body of POST /gateway/{capability}. The payload shape
// depends on the capability in the URL.
type wireRequest struct {
	Payload json.RawMessage `json:"payload"`
	Options types.Options   `json:"options"`
}

// Execute handles POST /gateway/{capability}.
func (h *Handler) Execute(w http.ResponseWriter, r *http.Request) {
	reqID := w.Header().Get(httputil.HeaderRequestID)

	capability, ok := types.ParseCapability(chi.URLParam(r, "capability"))
	if !ok {
		httputil.WriteError(w, reqID, http.StatusBadRequest, types.CodeInvalidInput,
			"unknown capability: "+chi.URLParam(r, "capability"), nil)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		httputil.WriteError(w, reqID, http.StatusBadRequest, types.CodeInvalidInput, "failed to read request body", nil)
		return
	}
	defer r.Body.Close()

	var wire wireRequest
	if err := json.Unmarshal(body, &wire); err != nil {
		httputil.WriteError(w, reqID, http.StatusBadRequest, types.CodeInvalidInput, "invalid JSON: "+err.Error(), nil)
		return
	}
	if len(wire.Payload) == 0 {
		httputil.WriteError(w, reqID, http.StatusBadRequest, types.CodeInvalidInput, "payload is required", nil)
		return
	}

	req := &types.Request{
		RequestID:  reqID,
		Capability: capability,
		CallerID:   callerID(r),
		Options:    wire.Options,
		ReceivedAt: time.Now(),
	}
	if err := unmarshalPayload(req, wire.Payload); err != nil {
		httputil.WriteError(w, reqID, http.StatusBadRequest, types.CodeInvalidInput, "invalid payload: "+err.Error(), nil)
		return
	}

	out := h.orch.Execute(r.Context(), req)
	h.writeOutcome(w, reqID, out)
}

// batchRequest is the body of POST /gateway/translate/batch.
type batchRequest struct {
	Items   []types.TranslatePayload `json:"items"`
	Options types.Options            `json:"options"`
}

type batchResponse struct {
	Results []httputil.Envelope `json:"results"`
}

// TranslateBatch handles POST /gateway/translate/batch. Items run
// sequentially and each passes rate limiting on its own; per-item outcomes
// come back in input order.
func (h *Handler) TranslateBatch(w http.ResponseWriter, r *http.Request) {
	reqID := w.Header().Get(httputil.HeaderRequestID)

	var batch batchRequest
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		httputil.WriteError(w, reqID, http.StatusBadRequest, types.CodeInvalidInput, "invalid JSON: "+err.Error(), nil)
		return
	}
	defer r.Body.Close()
	if len(batch.Items) == 0 {
		httputil.WriteError(w, reqID, http.StatusBadRequest, types.CodeInvalidInput, "items is required", nil)
		return
	}

	caller := callerID(r)
	results := make([]httputil.Envelope, 0, len(batch.Items))
	for i := range batch.Items {
		req := &types.Request{
			RequestID:  reqID,
			Capability: types.CapabilityTranslate,
			CallerID:   caller,
			Translate:  &batch.Items[i],
			Options:    batch.Options,
			ReceivedAt: time.Now(),
		}
		out := h.orch.Execute(r.Context(), req)
		results = append(results, envelopeFor(reqID, out))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(batchResponse{Results: results})
}

// Languages handles GET /gateway/languages.
func (h *Handler) Languages(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string][]langdetect.Language{
		"languages": langdetect.Supported(),
	})
}

// Providers handles GET /gateway/providers.
func (h *Handler) Providers(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string][]router.ProviderStatus{
		"providers": h.registry.Status(),
	})
}

func (h *Handler) writeOutcome(w http.ResponseWriter, reqID string, out *Outcome) {
	switch {
	case out.Success():
		httputil.WriteSuccess(w, reqID, out.Result.Data(), out.ProvidersAttempted, out.CacheHit)
	case out.Code == types.CodeRateLimited && out.RateLimit != nil:
		httputil.WriteRateLimited(w, reqID, out.RateLimit.Limit, out.RateLimit.Remaining, out.RateLimit.ResetAt, out.RateLimit.RetryAfter)
	default:
		httputil.WriteError(w, reqID, statusForCode(out.Code), out.Code, out.Message, out.ProvidersAttempted)
	}
}

// envelopeFor builds the per-item envelope for batch responses, where
// headers cannot carry retry metadata.
func envelopeFor(reqID string, out *Outcome) httputil.Envelope {
	env := httputil.Envelope{
		ProvidersAttempted: out.ProvidersAttempted,
		CacheHit:           out.CacheHit,
	}
	if env.ProvidersAttempted == nil {
		env.ProvidersAttempted = []string{}
	}
	if out.Success() {
		env.Success = true
		env.Data = out.Result.Data()
		return env
	}
	env.Error = &httputil.ErrorBody{Code: out.Code, Message: out.Message, RequestID: reqID}
	if out.RateLimit != nil {
		env.Error.RetryAfterMs = out.RateLimit.RetryAfter.Milliseconds()
	}
	return env
}

func statusForCode(code string) int {
	switch code {
	case types.CodeInvalidInput:
		return http.StatusBadRequest
	case types.CodeRateLimited:
		return http.StatusTooManyRequests
	case types.CodeCancelled:
		return http.StatusRequestTimeout
	case types.CodeAllProvidersFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func unmarshalPayload(req *types.Request, raw json.RawMessage) error {
	switch req.Capability {
	case types.CapabilityTranslate:
		var p types.TranslatePayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return err
		}
		req.Translate = &p
	case types.CapabilityExtract:
		var p types.ExtractPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return err
		}
		req.Extract = &p
	case types.CapabilityGenerate:
		var p types.GeneratePayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return err
		}
		req.Generate = &p
	}
	return nil
}

func callerID(r *http.Request) string {
	if info, ok := auth.CallerFromContext(r.Context()); ok {
		return info.ID
	}
	return ""
}
