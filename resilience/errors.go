package resilience

import "errors"

var (
	// ErrRateLimitExceeded means no token was available.
	ErrRateLimitExceeded = errors.New("resilience: rate limit exceeded")

	// ErrBulkheadFull means every slot stayed busy for MaxWait.
	ErrBulkheadFull = errors.New("resilience: bulkhead full")

	// ErrTimeout means Within's own deadline passed.
	ErrTimeout = errors.New("resilience: timed out")
)
