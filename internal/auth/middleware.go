package auth

import (
	"crypto/sha256"
	"fmt"
	"net"
	"net/http"
	"strings"
)

const callerIDHeader = "X-Caller-ID"

// Middleware resolves the caller identity and stores it in the request
// context. Authentication itself happens upstream; this only ensures every
// request carries a stable opaque ID for rate limiting and analytics.
//
// Resolution order: X-Caller-ID header (trusted proxy), hashed bearer token,
// remote IP.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			info := resolveCaller(r)
			ctx := ContextWithCaller(r.Context(), info)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func resolveCaller(r *http.Request) *CallerInfo {
	if id := strings.TrimSpace(r.Header.Get(callerIDHeader)); id != "" {
		return &CallerInfo{ID: id, Source: "header"}
	}

	authHeader := r.Header.Get("Authorization")
	if token := strings.TrimPrefix(authHeader, "Bearer "); token != authHeader && token != "" {
		return &CallerInfo{ID: "key:" + HashToken(token), Source: "token"}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return &CallerInfo{ID: "ip:" + host, Source: "ip"}
}

// HashToken returns a short stable digest of a bearer token, so tokens never
// appear in logs, cache keys, or rate-limit state.
func HashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return fmt.Sprintf("%x", h[:8])
}
