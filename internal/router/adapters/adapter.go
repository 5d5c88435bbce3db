// Package adapters translates gateway requests into the wire formats of
// individual AI providers and normalizes their responses and failures.
package adapters

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/vision-platform/ai-gateway/internal/types"
)

// ProviderAdapter is the uniform surface the router dispatches through.
// Invoke performs one attempt against the backing provider and either
// returns a normalized result or a *types.ProviderError describing why
// the attempt failed.
type ProviderAdapter interface {
	Name() string
	Capability() types.Capability
	Invoke(ctx context.Context, req *types.Request) (*types.Result, error)
}

// maxErrorBody caps how much of a provider error response is retained
// for diagnostics.
const maxErrorBody = 2048

// classifyStatus maps an HTTP status from a provider into the gateway's
// error taxonomy.
func classifyStatus(status int) types.ErrorKind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return types.ErrUnauthorized
	case status == http.StatusTooManyRequests:
		return types.ErrRateLimited
	case status == http.StatusBadRequest ||
		status == http.StatusRequestEntityTooLarge ||
		status == http.StatusUnprocessableEntity:
		return types.ErrInvalidInput
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return types.ErrTimeout
	case status >= 500:
		return types.ErrUnavailable
	default:
		return types.ErrUnknown
	}
}

// statusError builds a ProviderError from a non-2xx provider response.
func statusError(provider string, status int, body []byte) *types.ProviderError {
	msg := strings.TrimSpace(string(body))
	if len(msg) > maxErrorBody {
		msg = msg[:maxErrorBody]
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &types.ProviderError{
		Provider: provider,
		Kind:     classifyStatus(status),
		Status:   status,
		Message:  msg,
	}
}

// transportError builds a ProviderError from a failure to reach the
// provider at all. Deadline expiry is a timeout, parent-context
// cancellation stays unknown for the gateway to sort out, and anything
// else means the provider is unreachable.
func transportError(provider string, err error) *types.ProviderError {
	kind := types.ErrUnavailable
	if errors.Is(err, context.DeadlineExceeded) {
		kind = types.ErrTimeout
	} else if errors.Is(err, context.Canceled) {
		kind = types.ErrUnknown
	}
	return &types.ProviderError{
		Provider: provider,
		Kind:     kind,
		Message:  err.Error(),
		Err:      err,
	}
}

// decodeError builds a ProviderError for a 2xx response whose body
// could not be parsed.
func decodeError(provider string, err error) *types.ProviderError {
	return &types.ProviderError{
		Provider: provider,
		Kind:     types.ErrUnknown,
		Message:  fmt.Sprintf("decode response: %v", err),
		Err:      err,
	}
}

// emptyError builds a ProviderError for a syntactically valid response
// that carries no usable payload.
func emptyError(provider, detail string) *types.ProviderError {
	return &types.ProviderError{
		Provider: provider,
		Kind:     types.ErrPartialFailure,
		Message:  detail,
	}
}

// capabilityError rejects a request dispatched to an adapter that does
// not serve its capability. The registry routes by capability so this
// only fires on a wiring bug.
func capabilityError(provider string, got types.Capability) *types.ProviderError {
	return &types.ProviderError{
		Provider: provider,
		Kind:     types.ErrInvalidInput,
		Message:  fmt.Sprintf("capability %q not served by this provider", got),
	}
}

// drainBody reads at most maxErrorBody bytes from a response body for
// inclusion in an error message.
func drainBody(r io.Reader) []byte {
	b, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil {
		return nil
	}
	return b
}
