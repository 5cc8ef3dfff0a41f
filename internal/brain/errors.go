package brain

import (
	"fmt"
	"time"
)

// Error is the closed taxonomy of §4.2. Exactly one concrete type below is
// ever returned from Client methods; the Conductor uses errors.As to branch
// on it, mirroring the teacher's ProviderError/RateLimitError split
// generalized to the full taxonomy the spec names.
type Error interface {
	error
	brainError()
}

// TransportError wraps an io/timeout/tls failure below the HTTP layer.
type TransportError struct{ Err error }

func (e *TransportError) Error() string { return fmt.Sprintf("brain: transport error: %v", e.Err) }
func (*TransportError) brainError()     {}

// HTTPStatusError is a non-2xx HTTP response. Codes >=500 are retryable by
// convention; the Conductor, not this package, decides whether to retry.
type HTTPStatusError struct {
	Code int
	Body string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("brain: http %d: %s", e.Code, e.Body)
}
func (*HTTPStatusError) brainError() {}

func (e *HTTPStatusError) Retryable() bool { return e.Code >= 500 }

// RateLimitedError is the special-cased 429.
type RateLimitedError struct {
	RetryAfter time.Duration
	Body       string
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("brain: rate limited (retry after %s): %s", e.RetryAfter, e.Body)
}
func (*RateLimitedError) brainError() {}

// DecodeFailedError wraps a wire.DecodeError surfaced while folding a stream.
type DecodeFailedError struct{ Err error }

func (e *DecodeFailedError) Error() string { return fmt.Sprintf("brain: decode failed: %v", e.Err) }
func (*DecodeFailedError) brainError()     {}

// ProtocolMismatchError fires when the buffered assembly disagrees with the
// server's Complete snapshot (§4.2 "Assembly invariants").
type ProtocolMismatchError struct{ Reason string }

func (e *ProtocolMismatchError) Error() string {
	return fmt.Sprintf("brain: protocol mismatch: %s", e.Reason)
}
func (*ProtocolMismatchError) brainError() {}

// CancelledError is returned when the caller's cancel signal fired.
type CancelledError struct{}

func (e *CancelledError) Error() string { return "brain: cancelled" }
func (*CancelledError) brainError()     {}
