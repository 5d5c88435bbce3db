package auth

import "context"

type contextKey string

const callerContextKey contextKey = "gateway_caller"

// CallerInfo identifies the caller for rate limiting and analytics. Identity
// is established upstream; the gateway treats it as opaque.
type CallerInfo struct {
	// ID is the opaque caller identifier.
	ID string
	// Source records how the ID was derived: "header", "token", or "ip".
	Source string
}

func ContextWithCaller(ctx context.Context, info *CallerInfo) context.Context {
	return context.WithValue(ctx, callerContextKey, info)
}

func CallerFromContext(ctx context.Context) (*CallerInfo, bool) {
	info, ok := ctx.Value(callerContextKey).(*CallerInfo)
	return info, ok
}
