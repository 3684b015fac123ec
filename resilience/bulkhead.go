package resilience

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// DefaultMaxConcurrent is the bulkhead size when none is configured.
const DefaultMaxConcurrent = 10

// BulkheadConfig sizes a Bulkhead.
type BulkheadConfig struct {
	// MaxConcurrent is the number of slots. Default: DefaultMaxConcurrent
	MaxConcurrent int

	// MaxWait is how long a caller may queue for a slot. Zero rejects
	// at once when every slot is taken.
	MaxWait time.Duration
}

// Bulkhead caps concurrent work. Use Isolate to run inside it.
type Bulkhead struct {
	size    int
	maxWait time.Duration
	sem     *semaphore.Weighted

	inUse    atomic.Int64
	rejected atomic.Uint64
}

// NewBulkhead creates a bulkhead.
func NewBulkhead(cfg BulkheadConfig) *Bulkhead {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultMaxConcurrent
	}
	return &Bulkhead{
		size:    cfg.MaxConcurrent,
		maxWait: cfg.MaxWait,
		sem:     semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
	}
}

func (b *Bulkhead) acquire(ctx context.Context) error {
	if b.sem.TryAcquire(1) {
		b.inUse.Add(1)
		return nil
	}
	if b.maxWait <= 0 {
		b.rejected.Add(1)
		return ErrBulkheadFull
	}
	waitCtx, cancel := context.WithTimeout(ctx, b.maxWait)
	defer cancel()
	if err := b.sem.Acquire(waitCtx, 1); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if errors.Is(err, context.DeadlineExceeded) {
			b.rejected.Add(1)
			return ErrBulkheadFull
		}
		return err
	}
	b.inUse.Add(1)
	return nil
}

func (b *Bulkhead) release() {
	b.inUse.Add(-1)
	b.sem.Release(1)
}

// BulkheadStats is a point-in-time view of a Bulkhead.
type BulkheadStats struct {
	InUse    int
	Capacity int
	Rejected uint64
}

func (b *Bulkhead) Stats() BulkheadStats {
	return BulkheadStats{
		InUse:    int(b.inUse.Load()),
		Capacity: b.size,
		Rejected: b.rejected.Load(),
	}
}

// Isolate runs op in one slot of b, or fails with ErrBulkheadFull when
// no slot frees up within MaxWait.
func Isolate[T any](ctx context.Context, b *Bulkhead, op func(context.Context) (T, error)) (T, error) {
	if err := b.acquire(ctx); err != nil {
		var zero T
		return zero, err
	}
	defer b.release()
	return op(ctx)
}
