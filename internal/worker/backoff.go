package worker

import (
	"time"

	llmerrors "github.com/coderated/gradepipe/internal/llm/errors"
)

// MaxAttempts bounds the provider retry loop for one grading call.
const MaxAttempts = 10

// backoffUnit is the per-attempt linear delay increment.
const backoffUnit = time.Second

// Backoff returns the wait before the next attempt. The delay grows
// linearly with the attempt number; a retry-after carried by the error
// (HTTP 429 guidance) overrides the computed delay when it is longer, so
// the wait never shrinks below what the provider asked for.
func Backoff(attempt int, err error) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := time.Duration(attempt) * backoffUnit

	if ra := llmerrors.GetRetryAfter(err); ra > delay {
		return ra
	}
	return delay
}
