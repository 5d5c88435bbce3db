package types

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies an adapter failure. Kinds drive the gateway's fallback
// decision: terminal kinds end the chain immediately, every other kind
// advances it.
type ErrorKind string

const (
	ErrUnauthorized   ErrorKind = "unauthorized"
	ErrRateLimited    ErrorKind = "rate_limited"
	ErrInvalidInput   ErrorKind = "invalid_input"
	ErrUnavailable    ErrorKind = "unavailable"
	ErrPartialFailure ErrorKind = "partial_failure"
	ErrTimeout        ErrorKind = "timeout"
	ErrUnknown        ErrorKind = "unknown"
)

// Terminal reports whether the kind is a caller or configuration error that
// trying another provider cannot fix.
func (k ErrorKind) Terminal() bool {
	return k == ErrUnauthorized || k == ErrInvalidInput
}

// Caller-facing error codes carried in the response envelope.
const (
	CodeRateLimited        = "rate_limited"
	CodeInvalidInput       = "invalid_input"
	CodeAllProvidersFailed = "all_providers_failed"
	CodeCancelled          = "cancelled"
)

// ProviderError is a classified failure from one provider attempt.
type ProviderError struct {
	Provider string
	Kind     ErrorKind
	Status   int // HTTP status from the provider, 0 when not applicable
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	switch {
	case e.Message != "":
		return fmt.Sprintf("%s: %s: %s", e.Provider, e.Kind, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Provider, e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Provider, e.Kind)
	}
}

func (e *ProviderError) Unwrap() error { return e.Err }

// KindOf extracts the ErrorKind from err. Deadline expiry maps to ErrTimeout;
// anything unclassified is ErrUnknown. Parent-context cancellation is the
// gateway's concern and is checked there, not here.
func KindOf(err error) ErrorKind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	return ErrUnknown
}
