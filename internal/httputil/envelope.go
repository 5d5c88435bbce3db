package httputil

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"
)

// Rate limit response headers.
const (
	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRateLimitReset     = "X-RateLimit-Reset"
	HeaderRetryAfter         = "Retry-After"
)

const HeaderRequestID = "X-Request-ID"

// Envelope is the body shape shared by every gateway response.
type Envelope struct {
	Success            bool       `json:"success"`
	Data               any        `json:"data,omitempty"`
	Error              *ErrorBody `json:"error,omitempty"`
	ProvidersAttempted []string   `json:"providersAttempted"`
	CacheHit           bool       `json:"cacheHit"`
}

type ErrorBody struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	RetryAfterMs int64  `json:"retryAfterMs,omitempty"`
	RequestID    string `json:"requestId,omitempty"`
}

// WriteSuccess writes a 200 envelope around the capability payload.
func WriteSuccess(w http.ResponseWriter, requestID string, data any, providersAttempted []string, cacheHit bool) {
	writeEnvelope(w, requestID, http.StatusOK, Envelope{
		Success:            true,
		Data:               data,
		ProvidersAttempted: providersAttempted,
		CacheHit:           cacheHit,
	})
}

// WriteError writes a failure envelope with the given status and caller code.
func WriteError(w http.ResponseWriter, requestID string, status int, code, message string, providersAttempted []string) {
	writeEnvelope(w, requestID, status, Envelope{
		Error: &ErrorBody{
			Code:      code,
			Message:   message,
			RequestID: requestID,
		},
		ProvidersAttempted: providersAttempted,
	})
}

// WriteRateLimited writes a 429 envelope with the standard rate limit headers
// and the retry delay in both header and body.
func WriteRateLimited(w http.ResponseWriter, requestID string, limit, remaining int, resetAt time.Time, retryAfter time.Duration) {
	w.Header().Set(HeaderRateLimitLimit, strconv.Itoa(limit))
	w.Header().Set(HeaderRateLimitRemaining, strconv.Itoa(remaining))
	w.Header().Set(HeaderRateLimitReset, strconv.FormatInt(resetAt.Unix(), 10))
	w.Header().Set(HeaderRetryAfter, strconv.Itoa(retrySeconds(retryAfter)))

	writeEnvelope(w, requestID, http.StatusTooManyRequests, Envelope{
		Error: &ErrorBody{
			Code:         "rate_limited",
			Message:      "rate limit exceeded",
			RetryAfterMs: retryAfter.Milliseconds(),
			RequestID:    requestID,
		},
	})
}

// retrySeconds rounds up so a client sleeping the advertised value always
// lands after the refill.
func retrySeconds(d time.Duration) int {
	if d <= 0 {
		return 1
	}
	secs := int(d / time.Second)
	if d%time.Second != 0 {
		secs++
	}
	return secs
}

func writeEnvelope(w http.ResponseWriter, requestID string, status int, env Envelope) {
	// Failure envelopes always list the providers tried, even when empty.
	if env.ProvidersAttempted == nil {
		env.ProvidersAttempted = []string{}
	}
	w.Header().Set("Content-Type", "application/json")
	if requestID != "" {
		w.Header().Set(HeaderRequestID, requestID)
	}
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(env)
}
