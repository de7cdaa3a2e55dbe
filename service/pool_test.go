package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPoolBoundsConcurrency(t *testing.T) {
	t.Parallel()

	p := NewPool(2, nil)
	var running, peak int32

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := Submit(context.Background(), p, func() (struct{}, error) {
				n := atomic.AddInt32(&running, 1)
				for {
					old := atomic.LoadInt32(&peak)
					if n <= old || atomic.CompareAndSwapInt32(&peak, old, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&running, -1)
				return struct{}{}, nil
			})
			if err != nil {
				t.Errorf("Submit: %v", err)
			}
		}()
	}
	wg.Wait()

	if peak > 2 {
		t.Fatalf("peak concurrency %d exceeds pool size 2", peak)
	}
}

func TestPoolReturnsValueAndError(t *testing.T) {
	t.Parallel()

	p := NewPool(1, nil)
	v, err := Submit(context.Background(), p, func() (int, error) { return 42, nil })
	if err != nil || v != 42 {
		t.Fatalf("got %d, %v", v, err)
	}

	boom := errors.New("boom")
	if _, err := Submit(context.Background(), p, func() (int, error) { return 0, boom }); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestPoolRecoversPanics(t *testing.T) {
	t.Parallel()

	p := NewPool(1, nil)
	if _, err := Submit(context.Background(), p, func() (int, error) { panic("bad frame") }); err == nil {
		t.Fatalf("expected error from panicking job")
	}
	// the slot must have been released
	if _, err := Submit(context.Background(), p, func() (int, error) { return 1, nil }); err != nil {
		t.Fatalf("pool unusable after panic: %v", err)
	}
}

func TestPoolCancelledWhileQueued(t *testing.T) {
	t.Parallel()

	p := NewPool(1, nil)
	release := make(chan struct{})
	started := make(chan struct{})
	go Submit(context.Background(), p, func() (int, error) {
		close(started)
		<-release
		return 0, nil
	})
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := Submit(ctx, p, func() (int, error) { return 0, nil }); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded while queued, got %v", err)
	}
	close(release)

	if _, err := Submit(context.Background(), p, func() (int, error) { return 0, nil }); err != nil {
		t.Fatalf("Submit after release: %v", err)
	}
}

func TestPoolDefaultSize(t *testing.T) {
	t.Parallel()

	if NewPool(0, nil).Size() < 1 {
		t.Fatalf("default pool has no slots")
	}
}
