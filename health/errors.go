package health

import "errors"

var (
	// ErrUnknownCheck is returned for a checker name nobody registered.
	ErrUnknownCheck = errors.New("health: unknown check")

	// ErrTimedOut marks a checker that outlived the aggregator deadline.
	ErrTimedOut = errors.New("health: check timed out")
)
