package workerpool

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func TestPool_BoundsConcurrency(t *testing.T) {
	pool := New(Config{MaxConcurrent: 2}, zaptest.NewLogger(t))

	var current, max int32
	for i := 0; i < 10; i++ {
		pool.Submit(context.Background(), func(ctx context.Context) {
			n := atomic.AddInt32(&current, 1)
			for {
				old := atomic.LoadInt32(&max)
				if n <= old || atomic.CompareAndSwapInt32(&max, old, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			atomic.AddInt32(&current, -1)
		})
	}
	pool.Wait()

	if max > 2 {
		t.Errorf("expected at most 2 concurrent tasks, saw %d", max)
	}
}

func TestPool_SubmitRespectsCancelledContext(t *testing.T) {
	pool := New(Config{MaxConcurrent: 1}, zaptest.NewLogger(t))

	blockCh := make(chan struct{})
	pool.Submit(context.Background(), func(ctx context.Context) { <-blockCh })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ran := false
	done := make(chan struct{})
	go func() {
		pool.Submit(ctx, func(ctx context.Context) { ran = true })
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Submit did not return for a cancelled context while the pool was full")
	}
	close(blockCh)
	pool.Wait()

	if ran {
		t.Error("expected task not to run with an already-cancelled context")
	}
}
