// Package workerpool provides bounded-concurrency task dispatch, generalized
// from pkg/llm.WorkerPool's batch-of-items shape into a long-lived dispatcher
// that accepts one task at a time. The orchestrator uses it to spawn one
// goroutine per discovery job without unbounded goroutine growth.
package workerpool

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Config configures the pool.
type Config struct {
	MaxConcurrent int // Maximum concurrently running tasks (default: 8)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{MaxConcurrent: 8}
}

// Pool runs submitted tasks with bounded parallelism. Unlike
// pkg/llm.WorkerPool's Process (which blocks for a whole batch), Submit
// returns as soon as a slot is acquired and the task is running in its own
// goroutine; callers track completion themselves (the orchestrator does
// this via the Job's status field).
type Pool struct {
	sem    chan struct{}
	wg     sync.WaitGroup
	logger *zap.Logger
}

// New creates a new Pool.
func New(cfg Config, logger *zap.Logger) *Pool {
	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 8
	}
	return &Pool{
		sem:    make(chan struct{}, cfg.MaxConcurrent),
		logger: logger.Named("workerpool"),
	}
}

// Submit blocks until a concurrency slot is free (or ctx is cancelled), then
// runs task in its own goroutine. Submit itself returns immediately once the
// goroutine has started; task's completion is not observable through Submit.
func (p *Pool) Submit(ctx context.Context, task func(ctx context.Context)) {
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		p.logger.Warn("task dropped: context cancelled before a slot was free")
		return
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() { <-p.sem }()
		task(ctx)
	}()
}

// Wait blocks until every submitted task has returned. Used by graceful
// shutdown to drain in-flight discovery jobs.
func (p *Pool) Wait() {
	p.wg.Wait()
}
