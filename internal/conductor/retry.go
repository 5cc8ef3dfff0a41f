package conductor

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/chitti-ai/chitti/internal/brain"
)

// retry policy lives here, not in the Brain Client: §4.2's "Retry policy"
// is explicit that retrying a streamed turn is not idempotent once deltas
// have reached the caller, so only the Conductor — which knows whether any
// delta was actually rendered — decides whether a failed sub-turn retries.
// The backoff arithmetic is grounded on the teacher's sleepBackoff
// (sdk/llm/anthropic/client.go), relocated here and rewritten to honor
// brain.RateLimitedError.RetryAfter where present.
//
// maxRetries is the total number of attempts, not the number of retries:
// scenario S6 retries a rate-limited sub-turn exactly once and surfaces
// RateLimited on the second failure, so maxRetries=2 (first attempt plus
// one retry).
const (
	maxRetries     = 2
	retryBaseDelay = 500 * time.Millisecond
	retryMaxDelay  = 20 * time.Second
)

// classify reports whether err should trigger a Conductor-level retry and,
// if so, any server-suggested delay floor.
func classify(err error) (retryable bool, retryAfter time.Duration) {
	var rl *brain.RateLimitedError
	if errors.As(err, &rl) {
		return true, rl.RetryAfter
	}
	var httpErr *brain.HTTPStatusError
	if errors.As(err, &httpErr) {
		return httpErr.Retryable(), 0
	}
	var transportErr *brain.TransportError
	if errors.As(err, &transportErr) {
		return true, 0
	}
	return false, 0
}

func sleepBackoff(ctx context.Context, attempt int, retryAfter time.Duration) {
	d := time.Duration(1<<attempt) * retryBaseDelay
	if d > retryMaxDelay {
		d = retryMaxDelay
	}
	if retryAfter > d {
		d = retryAfter
		if d > retryMaxDelay {
			d = retryMaxDelay
		}
	}
	jitter := time.Duration(rand.Float64() * float64(d) * 0.1)
	d += jitter

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
