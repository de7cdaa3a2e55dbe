package service

import (
	"context"
	"fmt"
	"runtime"

	"voice-analyze/observe"

	"golang.org/x/sync/semaphore"
)

// Pool bounds how many CPU-heavy jobs run at once. A caller whose context
// ends stops waiting; the job itself runs to completion in the background
// and only then frees its slot.
type Pool struct {
	sem     *semaphore.Weighted
	size    int
	metrics *observe.Metrics
}

// NewPool returns a pool with size slots. Non-positive sizes use GOMAXPROCS.
func NewPool(size int, metrics *observe.Metrics) *Pool {
	if size <= 0 {
		size = runtime.GOMAXPROCS(0)
	}
	if metrics == nil {
		metrics = observe.NewNoopMetrics()
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size)), size: size, metrics: metrics}
}

// Size is the number of slots.
func (p *Pool) Size() int { return p.size }

// Submit runs fn on a pool slot and waits for its result or for ctx.
func Submit[T any](ctx context.Context, p *Pool, fn func() (T, error)) (T, error) {
	var zero T
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return zero, err
	}
	p.metrics.PoolInFlight.Add(ctx, 1)

	type outcome struct {
		value T
		err   error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			p.metrics.PoolInFlight.Add(context.Background(), -1)
			p.sem.Release(1)
		}()
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("worker panic: %v", r)}
			}
		}()
		v, err := fn()
		done <- outcome{value: v, err: err}
	}()

	select {
	case out := <-done:
		return out.value, out.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
